// Package registry holds the server-owned, process-lived tables: the
// per-session streaming offsets, a cached file descriptor table, and the
// monotonic session-id allocator.
package registry

import (
	"os"
	"sync"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// SessionID is the opaque handle the registry keys its per-session state
// by: a process-wide monotonic 32-bit counter starting at 1.
type SessionID uint32

const (
	// fdCacheExpiration and fdCacheCleanup are the TTL and janitor
	// interval for the resolved-path -> *os.File cache.
	fdCacheExpiration = 5 * time.Minute
	fdCacheCleanup    = 10 * time.Minute
)

var nextID atomic.Uint32

// NextSessionID returns the next session id, starting at 1 and
// monotonically increasing across every loop in the process.
func NextSessionID() SessionID {
	return SessionID(nextID.Add(1))
}

// Registry holds the offset table and the optional fd cache. Both are
// goroutine-safe: a process may run several loops sharing one Registry,
// and connection teardown can race a streaming callback on another loop.
type Registry struct {
	mu      sync.Mutex
	offsets map[SessionID]uint64

	fds *gocache.Cache
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{
		offsets: make(map[SessionID]uint64),
		fds:     gocache.New(fdCacheExpiration, fdCacheCleanup),
	}
}

// EmplaceOffset registers offset 0 for a session about to start streaming
// a static file response.
func (r *Registry) EmplaceOffset(id SessionID) {
	r.mu.Lock()
	r.offsets[id] = 0
	r.mu.Unlock()
}

// SearchOffset returns the session's current streaming offset, if any.
// An entry is present exactly while a static file response is streaming
// for that session.
func (r *Registry) SearchOffset(id SessionID) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	off, ok := r.offsets[id]
	return off, ok
}

// IncrementOffset advances a session's streaming offset by n bytes.
func (r *Registry) IncrementOffset(id SessionID, n uint64) {
	r.mu.Lock()
	r.offsets[id] += n
	r.mu.Unlock()
}

// EraseOffset removes a session's offset entry, e.g. when its static
// response body finishes or the session is destroyed.
func (r *Registry) EraseOffset(id SessionID) {
	r.mu.Lock()
	delete(r.offsets, id)
	r.mu.Unlock()
}

// GetFd returns a cached, already-opened file handle for path, if one is
// present.
func (r *Registry) GetFd(path string) (*os.File, bool) {
	v, ok := r.fds.Get(path)
	if !ok {
		return nil, false
	}
	f, ok := v.(*os.File)
	return f, ok
}

// PutFd caches an opened file handle for path for later reuse by
// GetFd.
func (r *Registry) PutFd(path string, f *os.File) {
	r.fds.Set(path, f, gocache.DefaultExpiration)
}
