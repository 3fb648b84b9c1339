//go:build unix

package session

import (
	"os"

	"golang.org/x/sys/unix"
)

// preadAt reads into buf from f at offset without disturbing f's shared
// file-position cursor, so a cached, registry-shared *os.File can be
// read by several sessions streaming different offsets of the same file.
func preadAt(f *os.File, buf []byte, offset int64) (int, error) {
	return unix.Pread(int(f.Fd()), buf, offset)
}
