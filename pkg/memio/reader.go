// Package memio exposes in-memory byte buffers through the pull/push I/O
// capabilities that demuxers and muxers consume.
//
// A Reader wraps a finite, immutable input buffer and implements io.Reader
// and io.Seeker (plus a size query). A Writer accumulates muxer output in a
// growable buffer and only releases it once closed, so a container trailer
// is guaranteed to have been flushed into the returned bytes.
package memio

import (
	"errors"
	"io"
)

// SeekSize is a whence value for Seek that reports the total buffer length
// without moving the cursor.
const SeekSize = 0x10000

// Reader errors.
var (
	// ErrNegativeOffset is returned when a seek resolves to a negative position.
	ErrNegativeOffset = errors.New("memio: negative offset")

	// ErrOffsetOutOfRange is returned when a seek resolves past the end of the buffer.
	ErrOffsetOutOfRange = errors.New("memio: offset out of range")

	// ErrInvalidWhence is returned for an unknown seek origin.
	ErrInvalidWhence = errors.New("memio: invalid whence")
)

// Reader is a read/seek cursor over an immutable byte slice.
// It is not safe for concurrent use; the owning session serializes calls.
type Reader struct {
	data []byte
	pos  int64
}

// NewReader returns a Reader positioned at the start of data.
// The slice is never modified and must outlive the Reader.
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Read copies up to len(p) bytes from the cursor. When the cursor already
// sits at the end of the buffer, Read returns 0, io.EOF on the first call.
func (r *Reader) Read(p []byte) (int, error) {
	if r.pos >= int64(len(r.data)) {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := copy(p, r.data[r.pos:])
	r.pos += int64(n)
	return n, nil
}

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos >= int64(len(r.data)) {
		return 0, io.EOF
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

// Seek moves the cursor. whence is io.SeekStart, io.SeekCurrent, io.SeekEnd
// or SeekSize. A target outside [0, Size()] fails and leaves the cursor
// where it was.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	var abs int64
	switch whence {
	case io.SeekStart:
		abs = offset
	case io.SeekCurrent:
		abs = r.pos + offset
	case io.SeekEnd:
		abs = int64(len(r.data)) + offset
	case SeekSize:
		return int64(len(r.data)), nil
	default:
		return r.pos, ErrInvalidWhence
	}

	if abs < 0 {
		return r.pos, ErrNegativeOffset
	}
	if abs > int64(len(r.data)) {
		return r.pos, ErrOffsetOutOfRange
	}
	r.pos = abs
	return abs, nil
}

// Size returns the total length of the buffer.
func (r *Reader) Size() int64 {
	return int64(len(r.data))
}

// Pos returns the current cursor position.
func (r *Reader) Pos() int64 {
	return r.pos
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	if r.pos >= int64(len(r.data)) {
		return 0
	}
	return int(int64(len(r.data)) - r.pos)
}

// Peek returns the next n bytes without advancing the cursor. The returned
// slice aliases the underlying buffer and must not be modified.
func (r *Reader) Peek(n int) ([]byte, error) {
	remaining := r.Len()
	if n > remaining {
		return r.data[r.pos:], io.EOF
	}
	return r.data[r.pos : r.pos+int64(n)], nil
}

// Bytes returns the whole underlying buffer regardless of the cursor.
func (r *Reader) Bytes() []byte {
	return r.data
}
