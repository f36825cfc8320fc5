// Package media defines the data model shared by containers, codecs and the
// conversion engines: stream descriptors, packets, frames, tag dictionaries,
// time windows and classified errors.
package media

import (
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// MediaKind is the kind of an elementary stream.
type MediaKind int

// Media kinds.
const (
	MediaUnknown MediaKind = iota
	MediaAudio
	MediaVideo
	MediaSubtitle
	MediaData
)

// String returns the lowercase kind name.
func (k MediaKind) String() string {
	switch k {
	case MediaAudio:
		return "audio"
	case MediaVideo:
		return "video"
	case MediaSubtitle:
		return "subtitle"
	case MediaData:
		return "data"
	default:
		return "unknown"
	}
}

// SampleFormat describes how decoded samples are laid out in a Frame.
// All formats are interleaved and little-endian.
type SampleFormat int

// Sample formats.
const (
	SampleFormatNone SampleFormat = iota
	SampleFormatU8
	SampleFormatS16
	SampleFormatS32
	SampleFormatF32
)

// BytesPerSample returns the size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int {
	switch f {
	case SampleFormatU8:
		return 1
	case SampleFormatS16:
		return 2
	case SampleFormatS32, SampleFormatF32:
		return 4
	default:
		return 0
	}
}

// String returns the conventional short name (u8, s16, s32, flt).
func (f SampleFormat) String() string {
	switch f {
	case SampleFormatU8:
		return "u8"
	case SampleFormatS16:
		return "s16"
	case SampleFormatS32:
		return "s32"
	case SampleFormatF32:
		return "flt"
	default:
		return "none"
	}
}

// ChannelLayout is a bitmask of speaker positions.
type ChannelLayout uint64

// Speaker positions.
const (
	ChannelFrontLeft    ChannelLayout = 1 << 0
	ChannelFrontRight   ChannelLayout = 1 << 1
	ChannelFrontCenter  ChannelLayout = 1 << 2
	ChannelLowFrequency ChannelLayout = 1 << 3
	ChannelBackLeft     ChannelLayout = 1 << 4
	ChannelBackRight    ChannelLayout = 1 << 5
	ChannelSideLeft     ChannelLayout = 1 << 9
	ChannelSideRight    ChannelLayout = 1 << 10
)

// Common layouts.
const (
	LayoutMono    = ChannelFrontCenter
	LayoutStereo  = ChannelFrontLeft | ChannelFrontRight
	Layout5Point1 = ChannelFrontLeft | ChannelFrontRight | ChannelFrontCenter |
		ChannelLowFrequency | ChannelBackLeft | ChannelBackRight
)

// DefaultLayout returns the conventional layout for a channel count, or 0
// when there is none.
func DefaultLayout(channels int) ChannelLayout {
	switch channels {
	case 1:
		return LayoutMono
	case 2:
		return LayoutStereo
	case 3:
		return LayoutStereo | ChannelFrontCenter
	case 4:
		return LayoutStereo | ChannelBackLeft | ChannelBackRight
	case 5:
		return LayoutStereo | ChannelFrontCenter | ChannelBackLeft | ChannelBackRight
	case 6:
		return Layout5Point1
	default:
		return 0
	}
}

// Channels counts the positions in the layout.
func (l ChannelLayout) Channels() int {
	n := 0
	for v := l; v != 0; v &= v - 1 {
		n++
	}
	return n
}

// CodecParameters describe an encoded stream independently of any codec
// instance. They are copied from input streams or encoders into output
// streams before the output header is written.
type CodecParameters struct {
	// Codec is the canonical codec name, e.g. "opus" or "pcm_s16le".
	Codec string
	Kind  MediaKind

	SampleRate    int
	Channels      int
	ChannelLayout ChannelLayout
	SampleFormat  SampleFormat
	BitsPerSample int

	// FrameSize is the number of samples per packet when constant.
	FrameSize int
	// BitRate in bits per second, 0 when unknown.
	BitRate int64
	// InitialPadding is the number of priming samples (Opus pre-skip).
	InitialPadding int

	// Extradata is codec-specific out-of-band configuration (OpusHead,
	// AudioSpecificConfig, ...).
	Extradata []byte
}

// Clone returns a deep copy.
func (p CodecParameters) Clone() CodecParameters {
	c := p
	if p.Extradata != nil {
		c.Extradata = append([]byte(nil), p.Extradata...)
	}
	return c
}

// Stream describes one elementary stream inside a container.
type Stream struct {
	// Index is the stream's position inside its container.
	Index int
	// ID is the container-level identifier (track number, PID, serial).
	ID int64

	Params   CodecParameters
	TimeBase timebase.Rational

	// StartTime and Duration are in TimeBase units, timebase.NoPTS if unknown.
	StartTime int64
	Duration  int64

	// Default mirrors the container's default-track disposition.
	Default bool

	Tags *Tags
}

// NewStream returns a stream with unknown timing and an empty tag dictionary.
func NewStream(index int) *Stream {
	return &Stream{
		Index:     index,
		StartTime: timebase.NoPTS,
		Duration:  timebase.NoPTS,
		Tags:      NewTags(),
	}
}

// Packet is one unit of compressed data belonging to a stream.
type Packet struct {
	StreamIndex int
	PTS         int64
	DTS         int64
	// Duration in the stream's time base, 0 if unknown.
	Duration int64
	Keyframe bool
	Data     []byte
}

// RescaleTS converts PTS, DTS and Duration between time bases. Unset
// timestamps stay unset.
func (p *Packet) RescaleTS(from, to timebase.Rational) {
	p.PTS = timebase.Rescale(p.PTS, from, to)
	p.DTS = timebase.Rescale(p.DTS, from, to)
	if p.Duration > 0 {
		p.Duration = timebase.Rescale(p.Duration, from, to)
	}
}

// Unref releases the packet payload.
func (p *Packet) Unref() {
	p.Data = nil
}

// Frame is a unit of decoded audio, interleaved in Format.
type Frame struct {
	PTS           int64
	SampleRate    int
	Channels      int
	ChannelLayout ChannelLayout
	Format        SampleFormat
	NbSamples     int
	Data          []byte
}

// Unref releases the frame payload.
func (f *Frame) Unref() {
	f.Data = nil
	f.NbSamples = 0
}
