package memio

import "errors"

// Writer errors.
var (
	// ErrWriterClosed is returned by Write after Close.
	ErrWriterClosed = errors.New("memio: write to closed writer")

	// ErrNotFinalized is returned by Bytes before Close.
	ErrNotFinalized = errors.New("memio: output not finalized")
)

// Writer is an append-only, growable output buffer. Every Write accepts the
// full chunk; the buffer never shrinks and bytes are never reordered.
// It is not safe for concurrent use; the owning session serializes calls.
type Writer struct {
	buf    []byte
	closed bool
}

// NewWriter returns an empty Writer. sizeHint pre-allocates capacity.
func NewWriter(sizeHint int) *Writer {
	if sizeHint < 0 {
		sizeHint = 0
	}
	return &Writer{buf: make([]byte, 0, sizeHint)}
}

// Write appends p to the buffer.
func (w *Writer) Write(p []byte) (int, error) {
	if w.closed {
		return 0, ErrWriterClosed
	}
	w.buf = append(w.buf, p...)
	return len(p), nil
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return len(w.buf)
}

// Close detaches the Writer from its producer. Further writes fail.
// Close is idempotent.
func (w *Writer) Close() error {
	w.closed = true
	return nil
}

// Closed reports whether Close has been called.
func (w *Writer) Closed() bool {
	return w.closed
}

// Bytes returns the accumulated output. It fails until the Writer is closed,
// which happens when the owning output session is torn down.
func (w *Writer) Bytes() ([]byte, error) {
	if !w.closed {
		return nil, ErrNotFinalized
	}
	return w.buf, nil
}
