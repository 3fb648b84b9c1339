// Package server runs the TCP accept loop: it owns the net.Listener,
// binds each accepted connection to an ioloop.Loop and a
// session.Controller, and tracks connection-level stats.
package server

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yourusername/originhttpd/pkg/originhttpd/config"
	"github.com/yourusername/originhttpd/pkg/originhttpd/ioloop"
	"github.com/yourusername/originhttpd/pkg/originhttpd/logging"
	"github.com/yourusername/originhttpd/pkg/originhttpd/pluginloader"
	"github.com/yourusername/originhttpd/pkg/originhttpd/registry"
	"github.com/yourusername/originhttpd/pkg/originhttpd/session"
)

// Stats tracks accept-loop-level counters, independent of the
// request-level counters metrics.RequestsServed etc. already expose via
// Prometheus; these are for a quick in-process health check.
type Stats struct {
	TotalConnections  atomic.Uint64
	ActiveConnections atomic.Int64
	ConnectionErrors  atomic.Uint64
	StartTime         time.Time
}

// Duration returns the time since the server started accepting.
func (s *Stats) Duration() time.Duration { return time.Since(s.StartTime) }

// Server owns the listener, the single Loop every accepted connection is
// bound to, and the Controller every accepted connection is dispatched
// through.
type Server struct {
	cfg  config.Config
	ctl  *session.Controller
	reg  *registry.Registry
	loop *ioloop.Loop

	listener net.Listener
	stats    Stats

	mu       sync.Mutex
	shutdown atomic.Bool
	conns    map[net.Conn]struct{}
	wg       sync.WaitGroup
}

// New builds a Server bound to cfg. It constructs its own Registry,
// pluginloader.Loader, and session.Controller so callers only need a
// Config and a Logger.
func New(cfg config.Config, logger *logging.Logger) *Server {
	reg := registry.New()
	loop := ioloop.NewLoop(256)
	ctl := session.NewController(cfg, reg, pluginloader.New(), logger)

	return &Server{
		cfg:   cfg,
		ctl:   ctl,
		reg:   reg,
		loop:  loop,
		conns: make(map[net.Conn]struct{}),
	}
}

// Stats returns the accept-loop statistics.
func (s *Server) Stats() *Stats { return &s.stats }

// ListenAndServe binds cfg.ListenAddr and serves until Shutdown or Close.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.cfg.ListenAddr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until it is closed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.stats.StartTime = time.Now()
	s.loop.Start()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			s.stats.ConnectionErrors.Add(1)
			return err
		}
		s.handleAccept(nc)
	}
}

func (s *Server) handleAccept(nc net.Conn) {
	s.trackConnection(nc)
	s.stats.TotalConnections.Add(1)
	s.wg.Add(1)

	s.ctl.AcceptConn(s.loop, nc, func() {
		s.untrackConnection(nc)
		s.wg.Done()
	})
}

func (s *Server) trackConnection(nc net.Conn) {
	s.mu.Lock()
	s.conns[nc] = struct{}{}
	s.mu.Unlock()
	s.stats.ActiveConnections.Add(1)
}

func (s *Server) untrackConnection(nc net.Conn) {
	s.mu.Lock()
	delete(s.conns, nc)
	s.mu.Unlock()
	s.stats.ActiveConnections.Add(-1)
}

func (s *Server) closeAllConnections() {
	s.mu.Lock()
	conns := make([]net.Conn, 0, len(s.conns))
	for nc := range s.conns {
		conns = append(conns, nc)
	}
	s.mu.Unlock()
	for _, nc := range conns {
		nc.Close()
	}
}

// Shutdown stops accepting new connections and waits for tracked
// connections to drain, or forces them closed when ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.closeAllConnections()
		return ctx.Err()
	}
}

// Close immediately tears down the listener and every tracked connection.
func (s *Server) Close() error {
	if !s.shutdown.CompareAndSwap(false, true) {
		return nil
	}
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	s.mu.Unlock()
	s.closeAllConnections()
	return nil
}
