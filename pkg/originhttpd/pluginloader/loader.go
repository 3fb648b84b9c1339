// Package pluginloader opens handler shared objects at runtime and
// instantiates the Handler each one exports.
package pluginloader

import (
	"errors"
	"plugin"
	"sync"
)

// FactorySymbol is the exported symbol every handler .so must provide:
// a func() Handler that the loader calls on every Load to instantiate a
// fresh Handler.
const FactorySymbol = "NewHandler"

var (
	// ErrFactoryMissing means the .so opened but did not export
	// FactorySymbol.
	ErrFactoryMissing = errors.New("pluginloader: handler does not export NewHandler")

	// ErrFactorySignature means the exported symbol exists but is not a
	// func() Handler.
	ErrFactorySignature = errors.New("pluginloader: NewHandler has the wrong signature")
)

// Handler is the dynamic responder's contract with a loaded plugin.
type Handler interface {
	// RespondGet answers a GET request; args is the parsed query string.
	RespondGet(args map[string]string) ([]byte, error)

	// RespondPost answers a POST request with the raw request body.
	RespondPost(body []byte) ([]byte, error)
}

// Loader opens and instantiates Handlers from .so files, caching opened
// plugins by resolved path since plugin.Open against the same path
// repeatedly is wasted work once it has already succeeded once.
type Loader struct {
	mu     sync.Mutex
	opened map[string]*plugin.Plugin
}

// New returns an empty Loader.
func New() *Loader {
	return &Loader{opened: make(map[string]*plugin.Plugin)}
}

// Load opens the shared object at path (or reuses a cached one) and
// instantiates a fresh Handler via its factory. Any failure (missing
// file, load error, missing or malformed factory) is reported uniformly
// so the dynamic responder can answer 404 for all of them.
func (l *Loader) Load(path string) (Handler, error) {
	p, err := l.open(path)
	if err != nil {
		return nil, err
	}
	sym, err := p.Lookup(FactorySymbol)
	if err != nil {
		return nil, ErrFactoryMissing
	}
	factory, ok := sym.(func() Handler)
	if !ok {
		return nil, ErrFactorySignature
	}
	return factory(), nil
}

func (l *Loader) open(path string) (*plugin.Plugin, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if p, ok := l.opened[path]; ok {
		return p, nil
	}
	p, err := plugin.Open(path)
	if err != nil {
		return nil, err
	}
	l.opened[path] = p
	return p, nil
}
