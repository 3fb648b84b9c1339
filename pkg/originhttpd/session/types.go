// Package session implements the per-connection session core: the
// incremental request parser, the URL normalizer, the request
// dispatcher, and the static and dynamic responders.
package session

import (
	"time"

	"github.com/yourusername/originhttpd/pkg/originhttpd/ioloop"
	"github.com/yourusername/originhttpd/pkg/originhttpd/registry"
)

// ParsePhase is the request parser's current phase.
type ParsePhase int

const (
	HeaderLine ParsePhase = iota
	HeaderFields
	Body
	Finished
)

func (p ParsePhase) String() string {
	switch p {
	case HeaderLine:
		return "HeaderLine"
	case HeaderFields:
		return "HeaderFields"
	case Body:
		return "Body"
	case Finished:
		return "Finished"
	default:
		return "Unknown"
	}
}

// Method is the recognized request method.
type Method int

const (
	Unsupported Method = iota
	Get
	Post
	Put
	Head
)

func (m Method) String() string {
	switch m {
	case Get:
		return "GET"
	case Post:
		return "POST"
	case Put:
		return "PUT"
	case Head:
		return "HEAD"
	default:
		return "UNSUPPORTED"
	}
}

// Version is the recognized HTTP version.
type Version int

const (
	VersionUnsupported Version = iota
	Http10
	Http11
)

// MetaError records the first parse failure: the status code to answer
// with and a short reason.
type MetaError struct {
	Status  int
	Message string
}

// HeaderField is one header occurrence. Name case is preserved on
// insert; Get below does case-insensitive lookup.
type HeaderField struct {
	Name  string
	Value string
}

// Headers is an insertion-ordered multimap: Add appends, preserving every
// occurrence.
type Headers []HeaderField

// Add appends a new occurrence of name: value.
func (h *Headers) Add(name, value string) {
	*h = append(*h, HeaderField{Name: name, Value: value})
}

// Get returns the value of the first case-insensitive match for name, and
// whether one was found.
func (h Headers) Get(name string) (string, bool) {
	for _, f := range h {
		if equalFold(f.Name, name) {
			return f.Value, true
		}
	}
	return "", false
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// Session is the per-connection state machine driving one TCP
// connection through one or more request/response cycles.
type Session struct {
	ID registry.SessionID

	ParsePhase ParsePhase
	Method     Method
	Version    Version

	// URL is the raw request target during parsing, and the resolved
	// (but not yet root-prefixed) filesystem path after normalization.
	URL []byte
	// Query is empty unless the request target contained "?".
	Query []byte

	Headers Headers

	// Body holds exactly ContentLength bytes once parsing reaches
	// Finished with a body present.
	Body []byte

	IsStatic    bool
	IsComplex   bool
	IsKeepAlive bool

	// ContentLength is nil when the header was absent.
	ContentLength *uint64

	MetaError *MetaError

	// ConnectionTimer and KeepAliveTimer are mutually exclusive: at
	// most one is armed at any instant.
	ConnectionTimer ioloop.TimerID
	KeepAliveTimer  ioloop.TimerID

	// Conn is this session's bound transport; a session never outlives
	// the Conn it was constructed with.
	Conn *ioloop.Conn

	// DispatchStart is stamped when a request reaches the controller's
	// dispatch step, for access-log duration accounting only; it plays no
	// part in protocol behavior.
	DispatchStart time.Time
}

// New constructs a freshly-allocated session in its initial state,
// allocating it a process-wide monotonic id.
func New(conn *ioloop.Conn) *Session {
	s := &Session{
		ID:   registry.NextSessionID(),
		Conn: conn,
	}
	s.resetClassification()
	return s
}

// Reset returns the session to HeaderLine for the next request on a
// keep-alive connection. URL and Query retain their backing array
// capacity; only their length and contents are cleared, so the next
// parse overwrites in place without reallocating.
func (s *Session) Reset() {
	s.ParsePhase = HeaderLine
	s.Headers = s.Headers[:0]
	s.Body = nil
	s.ContentLength = nil
	s.MetaError = nil
	s.URL = s.URL[:0]
	s.Query = s.Query[:0]
	s.resetClassification()
}

func (s *Session) resetClassification() {
	s.Method = Unsupported
	s.Version = VersionUnsupported
	s.IsStatic = true
	s.IsComplex = false
	s.IsKeepAlive = false
}

// Fail records the session's first parse failure. Only the first call
// has effect: the first error is the one that ends the request.
func (s *Session) Fail(status int, message string) {
	if s.MetaError == nil {
		s.MetaError = &MetaError{Status: status, Message: message}
	}
}
