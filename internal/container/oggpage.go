package container

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	oggHeaderContinued = 0x01
	oggHeaderBOS       = 0x02
	oggHeaderEOS       = 0x04

	oggMaxSegments = 255
	// oggPageTarget is the payload size after which a page is flushed.
	oggPageTarget = 4096
	// oggNoGranule marks pages on which no packet completes.
	oggNoGranule int64 = -1
)

var oggCapture = []byte("OggS")

var oggCRCTable = func() [256]uint32 {
	var t [256]uint32
	for i := range t {
		r := uint32(i) << 24
		for range 8 {
			if r&0x80000000 != 0 {
				r = r<<1 ^ 0x04c11db7
			} else {
				r <<= 1
			}
		}
		t[i] = r
	}
	return t
}()

func oggCRC(crc uint32, b []byte) uint32 {
	for _, v := range b {
		crc = crc<<8 ^ oggCRCTable[byte(crc>>24)^v]
	}
	return crc
}

type oggPage struct {
	headerType byte
	granule    int64
	serial     uint32
	sequence   uint32
	segments   []byte
	data       []byte
}

// oggPageReader reads CRC-checked pages.
type oggPageReader struct {
	r *bufio.Reader
}

func newOggPageReader(r io.Reader) *oggPageReader {
	return &oggPageReader{r: bufio.NewReader(r)}
}

// next returns the next page, or io.EOF after the last one.
func (pr *oggPageReader) next() (*oggPage, error) {
	var hdr [27]byte
	if _, err := io.ReadFull(pr.r, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("reading ogg page header: %w", err)
	}
	if string(hdr[:4]) != string(oggCapture) {
		return nil, errors.New("ogg: missing capture pattern")
	}
	if hdr[4] != 0 {
		return nil, fmt.Errorf("ogg: unsupported stream structure version %d", hdr[4])
	}
	segs := make([]byte, hdr[26])
	if _, err := io.ReadFull(pr.r, segs); err != nil {
		return nil, fmt.Errorf("reading ogg segment table: %w", err)
	}
	size := 0
	for _, s := range segs {
		size += int(s)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(pr.r, data); err != nil {
		return nil, fmt.Errorf("reading ogg page data: %w", err)
	}

	want := binary.LittleEndian.Uint32(hdr[22:])
	binary.LittleEndian.PutUint32(hdr[22:], 0)
	crc := oggCRC(0, hdr[:])
	crc = oggCRC(crc, segs)
	crc = oggCRC(crc, data)
	if crc != want {
		return nil, fmt.Errorf("ogg: page checksum mismatch (%#08x != %#08x)", crc, want)
	}

	return &oggPage{
		headerType: hdr[5],
		granule:    int64(binary.LittleEndian.Uint64(hdr[6:])),
		serial:     binary.LittleEndian.Uint32(hdr[14:]),
		sequence:   binary.LittleEndian.Uint32(hdr[18:]),
		segments:   segs,
		data:       data,
	}, nil
}

// oggPacket is a reassembled packet. granule is set only on the last packet
// completed on a page.
type oggPacket struct {
	serial  uint32
	data    []byte
	granule int64
	// pageEnd reports that the packet was the last one completed on its page.
	pageEnd bool
}

// oggDepacketizer joins lacing segments into packets, per logical stream.
type oggDepacketizer struct {
	partial map[uint32][]byte
}

func newOggDepacketizer() *oggDepacketizer {
	return &oggDepacketizer{partial: make(map[uint32][]byte)}
}

func (d *oggDepacketizer) packets(p *oggPage) []oggPacket {
	var out []oggPacket
	buf := d.partial[p.serial]
	if p.headerType&oggHeaderContinued == 0 {
		buf = nil
	}
	off := 0
	for _, s := range p.segments {
		buf = append(buf, p.data[off:off+int(s)]...)
		off += int(s)
		if s < 255 {
			out = append(out, oggPacket{serial: p.serial, data: buf, granule: oggNoGranule})
			buf = nil
		}
	}
	d.partial[p.serial] = buf
	if len(out) > 0 {
		out[len(out)-1].granule = p.granule
		out[len(out)-1].pageEnd = true
	}
	return out
}

// oggPageWriter packs packets of one logical stream into pages.
type oggPageWriter struct {
	w        io.Writer
	serial   uint32
	sequence uint32

	segments []byte
	data     []byte
	granule  int64
	// completed counts packets that end on the pending page.
	completed int
	// continued marks a pending page that starts inside a packet.
	continued bool
	started   bool
}

func newOggPageWriter(w io.Writer, serial uint32) *oggPageWriter {
	return &oggPageWriter{w: w, serial: serial, granule: oggNoGranule}
}

// writePacket appends one packet ending at granule. Pages are flushed as
// they fill.
func (pw *oggPageWriter) writePacket(pkt []byte, granule int64) error {
	rest := pkt
	for first := true; ; first = false {
		if len(pw.segments) == oggMaxSegments {
			if err := pw.flush(false); err != nil {
				return err
			}
			pw.continued = !first
		}
		n := min(len(rest), 255)
		pw.segments = append(pw.segments, byte(n))
		pw.data = append(pw.data, rest[:n]...)
		rest = rest[n:]
		if n < 255 {
			break
		}
	}
	pw.completed++
	pw.granule = granule
	if len(pw.data) >= oggPageTarget {
		return pw.flush(false)
	}
	return nil
}

// flush writes the pending page. With eos set an empty end-of-stream page
// is written even when nothing is pending.
func (pw *oggPageWriter) flush(eos bool) error {
	if len(pw.segments) == 0 && !eos {
		return nil
	}
	var headerType byte
	if pw.continued {
		headerType |= oggHeaderContinued
	}
	if !pw.started {
		headerType |= oggHeaderBOS
	}
	if eos {
		headerType |= oggHeaderEOS
	}
	granule := pw.granule
	if pw.completed == 0 {
		granule = oggNoGranule
	}

	page := make([]byte, 27, 27+len(pw.segments)+len(pw.data))
	copy(page, oggCapture)
	page[5] = headerType
	binary.LittleEndian.PutUint64(page[6:], uint64(granule))
	binary.LittleEndian.PutUint32(page[14:], pw.serial)
	binary.LittleEndian.PutUint32(page[18:], pw.sequence)
	page[26] = byte(len(pw.segments))
	page = append(page, pw.segments...)
	page = append(page, pw.data...)
	binary.LittleEndian.PutUint32(page[22:], oggCRC(0, page))

	if _, err := pw.w.Write(page); err != nil {
		return fmt.Errorf("writing ogg page: %w", err)
	}
	pw.sequence++
	pw.started = true
	pw.segments = pw.segments[:0]
	pw.data = pw.data[:0]
	pw.completed = 0
	pw.continued = false
	return nil
}
