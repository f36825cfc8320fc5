package picture

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var errNotJPEG = errors.New("picture: not a JPEG image")

// jpegInfo scans JPEG markers up to the first baseline, extended or
// progressive frame header and reads the image geometry from it. Only the
// headers are read; the entropy-coded data is never touched.
func jpegInfo(data []byte) (Info, error) {
	r := jpegReader{b: data}
	if m := r.marker(); m != 0xD8 {
		return Info{}, errNotJPEG
	}
	for {
		m := r.marker()
		if r.err != nil {
			return Info{}, r.err
		}
		if m >= 0xC0 && m <= 0xC2 {
			break
		}
		if m >= 0xD0 && m <= 0xD7 {
			continue
		}
		if !(m >= 0xE0 && m <= 0xEF) && m != 0xFE && m != 0xC4 && m != 0xDB && m != 0xDD {
			return Info{}, fmt.Errorf("picture: unexpected JPEG marker 0x%02X before frame header", m)
		}
		l := r.u16()
		if l < 2 {
			return Info{}, fmt.Errorf("picture: JPEG segment length %d", l)
		}
		r.skip(int(l) - 2)
	}

	if lf := r.u16(); lf < 11 && r.err == nil {
		return Info{}, fmt.Errorf("picture: JPEG frame header length %d", lf)
	}
	precision := r.byte()
	height := r.u16()
	width := r.u16()
	components := r.byte()
	if r.err != nil {
		return Info{}, r.err
	}
	if precision != 8 {
		return Info{}, fmt.Errorf("picture: unsupported JPEG precision %d", precision)
	}
	return Info{
		MIME:   "image/jpeg",
		Width:  uint32(width),
		Height: uint32(height),
		Depth:  uint32(components) * uint32(precision),
	}, nil
}

type jpegReader struct {
	b   []byte
	off int
	err error
}

func (r *jpegReader) byte() byte {
	if r.err != nil {
		return 0
	}
	if r.off >= len(r.b) {
		r.err = ErrTruncated
		return 0
	}
	c := r.b[r.off]
	r.off++
	return c
}

func (r *jpegReader) u16() uint16 {
	if r.err != nil {
		return 0
	}
	if len(r.b)-r.off < 2 {
		r.err = ErrTruncated
		return 0
	}
	v := binary.BigEndian.Uint16(r.b[r.off:])
	r.off += 2
	return v
}

func (r *jpegReader) skip(n int) {
	if r.err != nil {
		return
	}
	if len(r.b)-r.off < n {
		r.err = ErrTruncated
		return
	}
	r.off += n
}

// marker reads the next marker code, skipping fill bytes. A byte other
// than 0xFF where a marker is expected yields 0xFF, which no caller accepts.
func (r *jpegReader) marker() byte {
	c := r.byte()
	if c != 0xFF {
		return 0xFF
	}
	for c == 0xFF && r.err == nil {
		c = r.byte()
	}
	return c
}
