// Package decompress unwraps compressed media inputs. Files are sniffed by
// magic bytes (gzip, bzip2, xz); HTTP bodies are unwrapped by their
// Content-Encoding (gzip, deflate, br, xz, bzip2).
package decompress

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"compress/flate"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/ulikunitz/xz"
)

// Encoding names a compression scheme.
type Encoding string

// Known encodings. None means the data is passed through unchanged.
const (
	None    Encoding = ""
	Gzip    Encoding = "gzip"
	Bzip2   Encoding = "bzip2"
	XZ      Encoding = "xz"
	Deflate Encoding = "deflate"
	Brotli  Encoding = "br"
)

var (
	// ErrUnsupportedEncoding is returned for an unknown Content-Encoding.
	ErrUnsupportedEncoding = errors.New("decompress: unsupported encoding")
	// ErrTooLarge is returned by ReadAll when the data exceeds its limit.
	ErrTooLarge = errors.New("decompress: data exceeds size limit")
)

var (
	magicGzip  = []byte{0x1f, 0x8b}
	magicBzip2 = []byte("BZh")
	magicXZ    = []byte{0xfd, '7', 'z', 'X', 'Z', 0x00}
)

// Detect returns the encoding whose magic bytes start head.
func Detect(head []byte) Encoding {
	switch {
	case bytes.HasPrefix(head, magicGzip):
		return Gzip
	case bytes.HasPrefix(head, magicBzip2):
		return Bzip2
	case bytes.HasPrefix(head, magicXZ):
		return XZ
	default:
		return None
	}
}

// NewReader sniffs r and returns a reader over its decompressed content
// together with the detected encoding. Uncompressed data is returned as is.
func NewReader(r io.Reader) (io.ReadCloser, Encoding, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(magicXZ))
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, None, fmt.Errorf("peeking header: %w", err)
	}
	enc := Detect(head)
	rc, err := open(br, enc)
	if err != nil {
		return nil, enc, err
	}
	return rc, enc, nil
}

// NewEncodingReader unwraps r according to an HTTP Content-Encoding value.
// Stacked encodings ("gzip, br") are removed in reverse order.
func NewEncodingReader(r io.Reader, contentEncoding string) (io.ReadCloser, error) {
	rc := io.NopCloser(r)
	parts := strings.Split(contentEncoding, ",")
	for i := len(parts) - 1; i >= 0; i-- {
		enc, err := parseEncoding(parts[i])
		if err != nil {
			return nil, err
		}
		next, err := open(rc, enc)
		if err != nil {
			return nil, err
		}
		rc = next
	}
	return rc, nil
}

func parseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "identity":
		return None, nil
	case "gzip", "x-gzip":
		return Gzip, nil
	case "deflate":
		return Deflate, nil
	case "br":
		return Brotli, nil
	case "xz":
		return XZ, nil
	case "bzip2", "x-bzip2":
		return Bzip2, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, s)
	}
}

func open(r io.Reader, enc Encoding) (io.ReadCloser, error) {
	switch enc {
	case Gzip:
		gz, err := gzip.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating gzip reader: %w", err)
		}
		return gz, nil
	case Bzip2:
		return io.NopCloser(bzip2.NewReader(r)), nil
	case XZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, fmt.Errorf("creating xz reader: %w", err)
		}
		return io.NopCloser(xr), nil
	case Deflate:
		return flate.NewReader(r), nil
	case Brotli:
		return io.NopCloser(brotli.NewReader(r)), nil
	default:
		if rc, ok := r.(io.ReadCloser); ok {
			return rc, nil
		}
		return io.NopCloser(r), nil
	}
}

// ReadAll reads r to the end, failing with ErrTooLarge once more than
// limit bytes arrive. A limit of zero or less means no limit.
func ReadAll(r io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w (%d bytes)", ErrTooLarge, limit)
	}
	return data, nil
}
