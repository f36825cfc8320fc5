package codec

import (
	"errors"

	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// ErrAgain is returned by ReceiveFrame/ReceivePacket when no output is
// available until more input is sent.
var ErrAgain = errors.New("codec: output not ready, send more input")

// Decoder turns packets into frames. SendPacket(nil) enters draining mode;
// once every buffered frame has been received, ReceiveFrame returns io.EOF.
type Decoder interface {
	SendPacket(pkt *media.Packet) error
	ReceiveFrame() (*media.Frame, error)
	Close() error
}

// Encoder turns frames into packets. SendFrame(nil) enters draining mode;
// once every buffered packet has been received, ReceivePacket returns io.EOF.
// Packet timestamps are in TimeBase.
type Encoder interface {
	SendFrame(frame *media.Frame) error
	ReceivePacket() (*media.Packet, error)
	// Params describes the encoded stream, valid once the encoder is open.
	Params() media.CodecParameters
	TimeBase() timebase.Rational
	Close() error
}

// EncoderConfig carries the settings an encoder is opened with.
type EncoderConfig struct {
	SampleRate    int
	Channels      int
	ChannelLayout media.ChannelLayout
	// SampleFormat of the frames that will be sent.
	SampleFormat media.SampleFormat
	BitRate      int64
	// FrameSize is the number of samples per output packet; 0 selects the
	// encoder's default.
	FrameSize int
	// Extradata reused from the decoder when the target needs it.
	Extradata []byte
}

// DecoderFactory opens a decoder for a stream.
type DecoderFactory func(params media.CodecParameters) (Decoder, error)

// EncoderFactory opens an encoder.
type EncoderFactory func(cfg EncoderConfig) (Encoder, error)
