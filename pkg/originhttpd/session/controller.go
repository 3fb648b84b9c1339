package session

import (
	"errors"
	"net"
	"strconv"
	"time"

	"github.com/yourusername/originhttpd/pkg/originhttpd/config"
	"github.com/yourusername/originhttpd/pkg/originhttpd/httpresp"
	"github.com/yourusername/originhttpd/pkg/originhttpd/ioloop"
	"github.com/yourusername/originhttpd/pkg/originhttpd/logging"
	"github.com/yourusername/originhttpd/pkg/originhttpd/metrics"
	"github.com/yourusername/originhttpd/pkg/originhttpd/pluginloader"
	"github.com/yourusername/originhttpd/pkg/originhttpd/registry"
)

// PluginLoader is the subset of *pluginloader.Loader the Dynamic Responder
// needs. Named as its own interface so tests can supply a stub handler
// factory instead of opening a real .so file.
type PluginLoader interface {
	Load(path string) (pluginloader.Handler, error)
}

// Controller drives every session from bytes-in to response-out: it owns
// the method dispatch table, the two-timer discipline, and the
// close-or-keep-alive policy every responder ends its work by calling.
type Controller struct {
	cfg     config.Config
	reg     *registry.Registry
	plugins PluginLoader
	logger  *logging.Logger
}

// NewController constructs a Controller bound to the given collaborators.
func NewController(cfg config.Config, reg *registry.Registry, plugins PluginLoader, logger *logging.Logger) *Controller {
	return &Controller{cfg: cfg, reg: reg, plugins: plugins, logger: logger}
}

// AcceptConn binds a newly-accepted connection to a fresh Session and its
// callbacks, and arms the initial-idle connection timer.
func (ctl *Controller) AcceptConn(loop *ioloop.Loop, nc net.Conn, onClosed func()) *Session {
	s := New(nil)

	onMessage := func(c *ioloop.Conn, buf *ioloop.Buffer) {
		ctl.onMessage(s, c, buf)
	}
	onClose := func(c *ioloop.Conn) {
		metrics.SessionsActive.Dec()
		ctl.reg.EraseOffset(s.ID)
		if onClosed != nil {
			onClosed()
		}
	}

	conn := ioloop.NewConn(loop, nc, onMessage, onClose)
	s.Conn = conn

	metrics.SessionsOpened.Inc()
	metrics.SessionsActive.Inc()

	s.ConnectionTimer = conn.ScheduleAfter(ctl.cfg.ConnectionTimeout, func() {
		metrics.TimerFires.WithLabelValues("connection").Inc()
		ctl.logger.LogSessionEvent(uint32(s.ID), "connection timer expired with no request received")
		conn.ShutdownWrite()
	})

	return s
}

func (ctl *Controller) onMessage(s *Session, conn *ioloop.Conn, buf *ioloop.Buffer) {
	conn.CancelTimer(s.ConnectionTimer)
	conn.CancelTimer(s.KeepAliveTimer)
	s.ConnectionTimer = 0
	s.KeepAliveTimer = 0

	switch Parse(s, buf) {
	case ResultShort:
		return
	case ResultError:
		ctl.handleParseError(s)
	case ResultGood:
		s.DispatchStart = time.Now()
		ctl.dispatch(s)
	}
}

func (ctl *Controller) handleParseError(s *Session) {
	status := 500
	message := "unknown parse error"
	if s.MetaError != nil {
		status = s.MetaError.Status
		message = s.MetaError.Message
	}
	ctl.logger.LogSessionEvent(uint32(s.ID), "parse error terminated the request: "+message)
	ctl.sendErrorAndClose(s, status)
}

// dispatch routes a fully-parsed request: GET+static to the static file
// responder, GET+dynamic and every POST to the dynamic responder, anything
// else (PUT, HEAD) to 501.
func (ctl *Controller) dispatch(s *Session) {
	switch {
	case s.Method == Get && s.IsStatic:
		ctl.serveStatic(s, ctl.resolvePath(s.URL))
	case s.Method == Get && !s.IsStatic:
		ctl.serveDynamic(s, ctl.resolveDynamicPath(s.URL), nil)
	case s.Method == Post:
		ctl.serveDynamic(s, ctl.resolveDynamicPath(s.URL), s.Body)
	default:
		ctl.sendErrorAndClose(s, 501)
	}
}

// resolvePath prepends the document root, appending the homepage path
// first when the request target is exactly "/".
func (ctl *Controller) resolvePath(url []byte) string {
	u := string(url)
	if u == "/" {
		u += ctl.cfg.HomepagePath
	}
	return ctl.cfg.RootPath + u
}

// resolveDynamicPath is resolvePath's counterpart for the Dynamic
// Responder: when PluginDir is set, handler paths resolve under it
// instead of RootPath, so plugin .so files can live outside the static
// document root.
func (ctl *Controller) resolveDynamicPath(url []byte) string {
	u := string(url)
	if u == "/" {
		u += ctl.cfg.HomepagePath
	}
	if ctl.cfg.PluginDir != "" {
		return ctl.cfg.PluginDir + u
	}
	return ctl.cfg.RootPath + u
}

// closeConnection ends a response: arm the keep-alive timer on a
// negotiated-keep-alive session, otherwise half-close the write side
// immediately.
func (ctl *Controller) closeConnection(s *Session) {
	if s.IsKeepAlive {
		s.KeepAliveTimer = s.Conn.ScheduleAfter(ctl.cfg.KeepAliveTimeout, func() {
			metrics.TimerFires.WithLabelValues("keepalive").Inc()
			ctl.logger.LogSessionEvent(uint32(s.ID), "keep-alive timer expired with no next request")
			s.Conn.ShutdownWrite()
		})
		return
	}
	s.Conn.ShutdownWrite()
}

// sendErrorAndClose sends a canned error response and always half-closes
// the write side, even on an otherwise keep-alive session.
func (ctl *Controller) sendErrorAndClose(s *Session, status int) {
	resp := httpresp.WriteErrorResponse(status)
	s.Conn.Send(resp)
	ctl.logRequest(s, status, int64(len(resp)))
	s.Conn.ShutdownWrite()
}

func (ctl *Controller) logRequest(s *Session, status int, bytes int64) {
	metrics.RequestsServed.WithLabelValues(strconv.Itoa(status)).Inc()
	var err error
	if s.MetaError != nil {
		err = errors.New(s.MetaError.Message)
	}
	ctl.logger.LogRequest(uint32(s.ID), s.Method.String(), string(s.URL), status, bytes, time.Since(s.DispatchStart), s.IsKeepAlive, err)
}
