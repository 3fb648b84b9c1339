package session

import (
	"errors"
	"io"
	"io/fs"
	"os"

	"github.com/yourusername/originhttpd/pkg/originhttpd/httpresp"
	"github.com/yourusername/originhttpd/pkg/originhttpd/metrics"
)

// serveStatic answers a static GET: acquire a file handle, emit headers
// with the file's size, then stream the body one chunk per
// write-complete callback so at most one chunk is ever in-flight per
// session.
func (ctl *Controller) serveStatic(s *Session, path string) {
	f, err := ctl.openFile(path)
	if err != nil {
		status := 500
		if errors.Is(err, fs.ErrNotExist) {
			status = 404
		}
		ctl.sendErrorAndClose(s, status)
		return
	}

	size, err := f.Seek(0, io.SeekEnd)
	if err != nil {
		ctl.sendErrorAndClose(s, 500)
		return
	}
	f.Seek(0, io.SeekStart)

	headers := httpresp.WriteStaticHeaders(size, s.IsKeepAlive)
	s.Conn.Send(headers)

	ctl.reg.EmplaceOffset(s.ID)

	chunk := make([]byte, ctl.cfg.FileChunkSize)
	var sent int64
	sessionID := s.ID

	s.Conn.SetWriteCompleteCallback(func() bool {
		offset, ok := ctl.reg.SearchOffset(sessionID)
		if !ok {
			// Offset entry already erased: the session closed mid-stream.
			return true
		}

		n, readErr := preadAt(f, chunk, int64(offset))
		if n > 0 {
			ctl.reg.IncrementOffset(sessionID, uint64(n))
			metrics.StaticBytesStreamed.Add(float64(n))
			sent += int64(n)
			s.Conn.Send(chunk[:n])
		}

		if n == 0 || (readErr != nil && readErr != io.EOF) {
			ctl.reg.EraseOffset(sessionID)
			ctl.logRequest(s, 200, sent)
			ctl.closeConnection(s)
			return true
		}
		return false
	})
}

// openFile returns an open handle for path, preferring the registry's fd
// cache over opening a fresh one.
func (ctl *Controller) openFile(path string) (*os.File, error) {
	if f, ok := ctl.reg.GetFd(path); ok {
		return f, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	ctl.reg.PutFd(path, f)
	return f, nil
}
