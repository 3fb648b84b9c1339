// Package ioloop provides the reactor the session layer runs on: a
// single-threaded event loop plus a per-connection transport exposing
// message, write-complete, and timer callbacks, all serialized on the
// owning loop's goroutine.
package ioloop

import (
	"runtime"
	"sync"
)

// Event is posted to a Loop and handled serially on the loop's own
// goroutine.
type Event interface {
	Handle()
}

// Loop is a single-threaded, channel-driven event loop. Every Conn bound
// to a Loop has its message, write-complete and timer callbacks invoked
// serially on that Loop's goroutine, so session logic never runs
// concurrently with itself. A process typically runs several Loops, each
// owning a disjoint set of connections.
type Loop struct {
	events chan Event
	once   sync.Once
}

// NewLoop returns a Loop whose internal event channel has capacity q.
func NewLoop(q int) *Loop {
	return &Loop{events: make(chan Event, q)}
}

// Start begins draining events on a dedicated, OS-thread-locked
// goroutine. Safe to call multiple times; only the first call starts the
// goroutine.
func (l *Loop) Start() {
	l.once.Do(func() {
		go func() {
			runtime.LockOSThread()
			for ev := range l.events {
				ev.Handle()
			}
		}()
	})
}

// Send enqueues ev for serialized handling on the loop goroutine. Blocks
// if the event channel is full.
func (l *Loop) Send(ev Event) {
	l.events <- ev
}

type funcEvent func()

func (f funcEvent) Handle() { f() }
