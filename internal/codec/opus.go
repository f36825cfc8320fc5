package codec

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// OpusSampleRate is the rate Opus timestamps and granules are counted in.
const OpusSampleRate = 48000

// DefaultOpusPreSkip is the pre-skip written when none is known: the
// libopus encoder lookahead at 48 kHz.
const DefaultOpusPreSkip = 312

var opusHeadMagic = []byte("OpusHead")

// ErrInvalidOpusPacket is returned for packets whose TOC cannot be parsed.
var ErrInvalidOpusPacket = errors.New("invalid opus packet")

// OpusHead is the Opus identification header (RFC 7845 section 5.1), used as
// Ogg first packet, Matroska CodecPrivate and MP4 dOps source.
type OpusHead struct {
	Version         uint8
	Channels        uint8
	PreSkip         uint16
	InputSampleRate uint32
	OutputGain      int16
	MappingFamily   uint8
	StreamCount     uint8
	CoupledCount    uint8
	ChannelMapping  []byte
}

// vorbisMappings are the family 1 layouts for 3 to 8 channels.
var vorbisMappings = map[int]struct {
	streams, coupled uint8
	mapping          []byte
}{
	3: {2, 1, []byte{0, 2, 1}},
	4: {2, 2, []byte{0, 1, 2, 3}},
	5: {3, 2, []byte{0, 4, 1, 2, 3}},
	6: {4, 2, []byte{0, 4, 1, 2, 3, 5}},
	7: {4, 3, []byte{0, 4, 1, 2, 3, 5, 6}},
	8: {5, 3, []byte{0, 6, 1, 2, 3, 4, 5, 7}},
}

// NewOpusHead synthesises a header for a stream without one.
func NewOpusHead(channels, inputRate, preSkip int) (*OpusHead, error) {
	if channels < 1 || channels > 8 {
		return nil, fmt.Errorf("opus: unsupported channel count %d", channels)
	}
	h := &OpusHead{
		Version:         1,
		Channels:        uint8(channels),
		PreSkip:         uint16(preSkip),
		InputSampleRate: uint32(inputRate),
	}
	if channels > 2 {
		m := vorbisMappings[channels]
		h.MappingFamily = 1
		h.StreamCount = m.streams
		h.CoupledCount = m.coupled
		h.ChannelMapping = append([]byte(nil), m.mapping...)
	}
	return h, nil
}

// ParseOpusHead decodes an identification header.
func ParseOpusHead(b []byte) (*OpusHead, error) {
	if len(b) < 19 || !bytes.Equal(b[:8], opusHeadMagic) {
		return nil, errors.New("opus: not an OpusHead packet")
	}
	h := &OpusHead{
		Version:         b[8],
		Channels:        b[9],
		PreSkip:         binary.LittleEndian.Uint16(b[10:]),
		InputSampleRate: binary.LittleEndian.Uint32(b[12:]),
		OutputGain:      int16(binary.LittleEndian.Uint16(b[16:])),
		MappingFamily:   b[18],
	}
	if h.Version>>4 != 0 {
		return nil, fmt.Errorf("opus: unsupported header version %d", h.Version)
	}
	if h.Channels == 0 {
		return nil, errors.New("opus: zero channels")
	}
	if h.MappingFamily != 0 {
		if len(b) < 21+int(h.Channels) {
			return nil, errors.New("opus: truncated channel mapping table")
		}
		h.StreamCount = b[19]
		h.CoupledCount = b[20]
		h.ChannelMapping = append([]byte(nil), b[21:21+int(h.Channels)]...)
	}
	return h, nil
}

// Marshal encodes the header.
func (h *OpusHead) Marshal() []byte {
	out := make([]byte, 19, 21+len(h.ChannelMapping))
	copy(out, opusHeadMagic)
	out[8] = h.Version
	if out[8] == 0 {
		out[8] = 1
	}
	out[9] = h.Channels
	binary.LittleEndian.PutUint16(out[10:], h.PreSkip)
	binary.LittleEndian.PutUint32(out[12:], h.InputSampleRate)
	binary.LittleEndian.PutUint16(out[16:], uint16(h.OutputGain))
	out[18] = h.MappingFamily
	if h.MappingFamily != 0 {
		out = append(out, h.StreamCount, h.CoupledCount)
		out = append(out, h.ChannelMapping...)
	}
	return out
}

// OpusPacketSamples returns the number of 48 kHz samples in an Opus packet,
// from its TOC byte (RFC 6716 section 3.1).
func OpusPacketSamples(pkt []byte) (int, error) {
	if len(pkt) == 0 {
		return 0, ErrInvalidOpusPacket
	}
	toc := pkt[0]
	config := int(toc >> 3)

	var frameSize int
	switch {
	case config < 12:
		frameSize = []int{480, 960, 1920, 2880}[config%4]
	case config < 16:
		frameSize = []int{480, 960}[config%2]
	default:
		frameSize = []int{120, 240, 480, 960}[config%4]
	}

	var frames int
	switch toc & 0x03 {
	case 0:
		frames = 1
	case 1, 2:
		frames = 2
	default:
		if len(pkt) < 2 {
			return 0, ErrInvalidOpusPacket
		}
		frames = int(pkt[1] & 0x3F)
		if frames == 0 {
			return 0, ErrInvalidOpusPacket
		}
	}

	total := frames * frameSize
	if total > 5760 {
		return 0, fmt.Errorf("%w: %d samples exceeds 120 ms", ErrInvalidOpusPacket, total)
	}
	return total, nil
}
