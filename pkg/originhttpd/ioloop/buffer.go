package ioloop

import "bytes"

// initialBufferCap is the starting capacity for a session's read buffer.
// Grows as needed; sized to hold a typical request line plus a handful
// of headers without reallocating.
const initialBufferCap = 1024

// Buffer is the persistent receive buffer the request parser consumes:
// FindCRLF, AdvanceRead, ReadableSize and RetrieveAsBytes for the
// parser, plus Append for feeding bytes in off the wire.
type Buffer struct {
	buf         []byte
	readerIndex int
	writerIndex int
}

// NewBuffer allocates an empty Buffer ready to receive bytes.
func NewBuffer() *Buffer {
	return &Buffer{buf: make([]byte, initialBufferCap)}
}

// ReadableSize reports how many unconsumed bytes are buffered.
func (b *Buffer) ReadableSize() int {
	return b.writerIndex - b.readerIndex
}

// Peek returns the unconsumed bytes without advancing the read cursor.
// The returned slice is only valid until the next Append or AdvanceRead.
func (b *Buffer) Peek() []byte {
	return b.buf[b.readerIndex:b.writerIndex]
}

// FindCRLF scans the unconsumed bytes for the first "\r\n" and returns
// the line preceding it (excluding the CRLF itself). ok is false if no
// CRLF is present yet in the buffered bytes.
func (b *Buffer) FindCRLF() (line []byte, ok bool) {
	readable := b.Peek()
	idx := bytes.Index(readable, crlf)
	if idx < 0 {
		return nil, false
	}
	return readable[:idx], true
}

// AdvanceRead moves the read cursor forward by n bytes, marking them
// consumed. Compacts the buffer back to the start once fully drained so
// it doesn't grow unbounded across many small requests on one connection.
func (b *Buffer) AdvanceRead(n int) {
	if n <= 0 {
		return
	}
	b.readerIndex += n
	if b.readerIndex > b.writerIndex {
		b.readerIndex = b.writerIndex
	}
	if b.readerIndex == b.writerIndex {
		b.readerIndex = 0
		b.writerIndex = 0
	}
}

// RetrieveAsBytes consumes and returns a copy of the next n unconsumed
// bytes. Callers needing a stable []byte (e.g. a request body) should use
// this rather than holding onto a Peek() slice across further Appends.
func (b *Buffer) RetrieveAsBytes(n int) []byte {
	if n > b.ReadableSize() {
		n = b.ReadableSize()
	}
	out := make([]byte, n)
	copy(out, b.buf[b.readerIndex:b.readerIndex+n])
	b.AdvanceRead(n)
	return out
}

// RetrieveAsString consumes and returns the next n unconsumed bytes as a
// string.
func (b *Buffer) RetrieveAsString(n int) string {
	return string(b.RetrieveAsBytes(n))
}

// Append adds p to the writable end of the buffer, growing storage if
// necessary. Used by the Conn read loop to feed bytes arriving off the
// wire into a session's buffer before invoking the message callback.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	required := b.writerIndex + len(p)
	if required > len(b.buf) {
		if b.readerIndex > 0 {
			copy(b.buf, b.buf[b.readerIndex:b.writerIndex])
			b.writerIndex -= b.readerIndex
			b.readerIndex = 0
			required = b.writerIndex + len(p)
		}
		if required > len(b.buf) {
			newCap := len(b.buf) * 2
			if newCap < required {
				newCap = required
			}
			grown := make([]byte, newCap)
			copy(grown, b.buf[:b.writerIndex])
			b.buf = grown
		}
	}
	copy(b.buf[b.writerIndex:], p)
	b.writerIndex += len(p)
}

var crlf = []byte{'\r', '\n'}
