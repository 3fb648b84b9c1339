//go:build !unix

package session

import "os"

// preadAt is the non-unix fallback: os.File.ReadAt is already positional
// and safe to call concurrently against a shared handle.
func preadAt(f *os.File, buf []byte, offset int64) (int, error) {
	return f.ReadAt(buf, offset)
}
