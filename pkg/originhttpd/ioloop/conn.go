package ioloop

import (
	"net"
	"sync"
	"sync/atomic"
	"time"
)

// TimerID identifies a scheduled callback. The zero value never refers
// to a live timer; cancelling an already-fired, already-cancelled, or
// zero id is a no-op.
type TimerID uint64

// OnMessageFunc is invoked on the owning Loop's goroutine whenever bytes
// arrive on a Conn. buf is the Conn's persistent receive Buffer; the
// callback is expected to advance it as it consumes complete lines/bodies.
type OnMessageFunc func(c *Conn, buf *Buffer)

// OnCloseFunc is invoked on the owning Loop's goroutine when the
// underlying socket is gone, either because the peer closed it or a
// write/read failed.
type OnCloseFunc func(c *Conn)

// Conn wraps one net.Conn, bound to exactly one Loop for its lifetime.
// It owns the persistent receive Buffer and runs its own read/write
// goroutines, but every callback they trigger (message, write-complete,
// timer fire) is posted back onto the owning Loop so session logic never
// runs concurrently with itself.
type Conn struct {
	loop *Loop
	nc   net.Conn

	buf       *Buffer
	onMessage OnMessageFunc
	onClose   OnCloseFunc

	writeCh chan outbound
	done    chan struct{}
	closed  atomic.Bool

	mu              sync.Mutex
	writeCompleteCb func() bool
	timers          map[TimerID]*time.Timer
	nextTimerID     uint64
}

// NewConn starts read and write goroutines for nc and returns the bound
// Conn. onMessage fires on the Loop goroutine for every chunk read off
// the wire; onClose fires once, also on the Loop goroutine, when the
// connection goes away.
func NewConn(loop *Loop, nc net.Conn, onMessage OnMessageFunc, onClose OnCloseFunc) *Conn {
	c := &Conn{
		loop:      loop,
		nc:        nc,
		buf:       NewBuffer(),
		onMessage: onMessage,
		onClose:   onClose,
		writeCh:   make(chan outbound, 16),
		done:      make(chan struct{}),
		timers:    make(map[TimerID]*time.Timer),
	}
	go c.readLoop()
	go c.writeLoop()
	return c
}

// RemoteAddr returns the peer address, for logging.
func (c *Conn) RemoteAddr() net.Addr { return c.nc.RemoteAddr() }

func (c *Conn) readLoop() {
	rbuf := make([]byte, 4096)
	for {
		n, err := c.nc.Read(rbuf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, rbuf[:n])
			c.loop.Send(funcEvent(func() {
				if c.closed.Load() {
					return
				}
				c.buf.Append(chunk)
				c.onMessage(c, c.buf)
			}))
		}
		if err != nil {
			c.Close()
			return
		}
	}
}

// outbound is one entry in a Conn's write queue: either bytes to write,
// or a shutdown marker that half-closes the write side once every write
// queued before it has drained.
type outbound struct {
	p        []byte
	shutdown bool
}

func (c *Conn) writeLoop() {
	for {
		var ob outbound
		select {
		case ob = <-c.writeCh:
		case <-c.done:
			return
		}
		if ob.shutdown {
			if tcp, ok := c.nc.(*net.TCPConn); ok {
				tcp.CloseWrite()
				continue
			}
			c.Close()
			return
		}
		if _, err := c.nc.Write(ob.p); err != nil {
			c.Close()
			continue
		}
		c.loop.Send(funcEvent(func() {
			if c.closed.Load() {
				return
			}
			c.mu.Lock()
			cb := c.writeCompleteCb
			c.mu.Unlock()
			if cb == nil {
				return
			}
			if done := cb(); done {
				c.mu.Lock()
				c.writeCompleteCb = nil
				c.mu.Unlock()
			}
		}))
	}
}

// Send appends p to the outbound queue. It never performs the socket
// write itself, only hands the bytes to the write goroutine.
func (c *Conn) Send(p []byte) {
	if c.closed.Load() || len(p) == 0 {
		return
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	// Blocks when the outbound queue is saturated rather than dropping
	// bytes out of a response body; a concurrent Close unblocks it.
	select {
	case c.writeCh <- outbound{p: cp}:
	case <-c.done:
	}
}

// ShutdownWrite half-closes the write side so the peer sees EOF, after
// every already-queued write has drained. Falls back to a full close when
// the underlying net.Conn doesn't support CloseWrite (e.g. non-TCP conns).
func (c *Conn) ShutdownWrite() {
	if c.closed.Load() {
		return
	}
	select {
	case c.writeCh <- outbound{shutdown: true}:
	case <-c.done:
	}
}

// Close tears down the connection and fires onClose exactly once, posted
// through the loop so teardown is serialized with in-flight callbacks.
func (c *Conn) Close() {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	c.nc.Close()
	close(c.done)
	c.mu.Lock()
	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()
	c.loop.Send(funcEvent(func() {
		if c.onClose != nil {
			c.onClose(c)
		}
	}))
}

// SetWriteCompleteCallback installs cb to be invoked after every drained
// outbound write. cb returns done=true to retire itself; the static file
// responder uses this to pace streaming a file body one chunk per write
// completion.
func (c *Conn) SetWriteCompleteCallback(cb func() (done bool)) {
	c.mu.Lock()
	c.writeCompleteCb = cb
	c.mu.Unlock()
}

// ClearWriteCompleteCallback removes any installed write-complete
// callback without waiting for it to self-retire.
func (c *Conn) ClearWriteCompleteCallback() {
	c.mu.Lock()
	c.writeCompleteCb = nil
	c.mu.Unlock()
}

// ScheduleAfter arms fn to run once, after d, on this Conn's owning Loop.
// Returns a TimerID usable with CancelTimer.
func (c *Conn) ScheduleAfter(d time.Duration, fn func()) TimerID {
	c.mu.Lock()
	c.nextTimerID++
	id := TimerID(c.nextTimerID)
	t := time.AfterFunc(d, func() {
		c.mu.Lock()
		_, live := c.timers[id]
		if live {
			delete(c.timers, id)
		}
		c.mu.Unlock()
		if !live || c.closed.Load() {
			return
		}
		c.loop.Send(funcEvent(fn))
	})
	c.timers[id] = t
	c.mu.Unlock()
	return id
}

// CancelTimer cancels a previously scheduled timer. Cancelling an id that
// has already fired, already been cancelled, or is the zero value is a
// safe no-op.
func (c *Conn) CancelTimer(id TimerID) {
	if id == 0 {
		return
	}
	c.mu.Lock()
	t, ok := c.timers[id]
	if ok {
		delete(c.timers, id)
	}
	c.mu.Unlock()
	if ok {
		t.Stop()
	}
}
