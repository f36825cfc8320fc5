package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// DefaultFrameSize is the number of samples per packet produced by the
// built-in PCM encoders when no frame size is configured.
const DefaultFrameSize = 1024

var errDraining = errors.New("codec: input after flush")

// pcmDecoder converts coded PCM/G.711 packets into frames. It has no delay:
// every packet yields exactly one frame.
type pcmDecoder struct {
	desc     Descriptor
	channels int
	rate     int
	layout   media.ChannelLayout

	pending  *media.Frame
	draining bool
}

// NewPCMDecoder opens a decoder for any PCM-like codec in the registry.
func NewPCMDecoder(params media.CodecParameters) (Decoder, error) {
	a, ok := ParseAudio(params.Codec)
	if !ok {
		return nil, fmt.Errorf("unknown codec %q", params.Codec)
	}
	desc, _ := Describe(a)
	if !desc.IsPCM() {
		return nil, fmt.Errorf("%s is not a PCM codec", a)
	}
	if params.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", params.Channels)
	}
	if params.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", params.SampleRate)
	}
	layout := params.ChannelLayout
	if layout == 0 {
		layout = media.DefaultLayout(params.Channels)
	}
	return &pcmDecoder{desc: desc, channels: params.Channels, rate: params.SampleRate, layout: layout}, nil
}

func (d *pcmDecoder) SendPacket(pkt *media.Packet) error {
	if d.draining {
		return errDraining
	}
	if pkt == nil {
		d.draining = true
		return nil
	}
	if d.pending != nil {
		return ErrAgain
	}
	block := d.desc.BitsPerSample / 8 * d.channels
	if len(pkt.Data)%block != 0 {
		return fmt.Errorf("packet of %d bytes is not a multiple of block align %d", len(pkt.Data), block)
	}
	data, err := decodePCM(d.desc, pkt.Data)
	if err != nil {
		return err
	}
	d.pending = &media.Frame{
		PTS:           pkt.PTS,
		SampleRate:    d.rate,
		Channels:      d.channels,
		ChannelLayout: d.layout,
		Format:        d.desc.SampleFormat,
		NbSamples:     len(pkt.Data) / block,
		Data:          data,
	}
	return nil
}

func (d *pcmDecoder) ReceiveFrame() (*media.Frame, error) {
	if d.pending != nil {
		f := d.pending
		d.pending = nil
		return f, nil
	}
	if d.draining {
		return nil, io.EOF
	}
	return nil, ErrAgain
}

func (d *pcmDecoder) Close() error {
	d.pending = nil
	return nil
}

// decodePCM converts coded bytes to the descriptor's frame sample format.
func decodePCM(desc Descriptor, in []byte) ([]byte, error) {
	switch desc.Name {
	case AudioPCMMulaw, AudioPCMAlaw:
		out := make([]byte, len(in)*2)
		expand := MulawToLinear
		if desc.Name == AudioPCMAlaw {
			expand = AlawToLinear
		}
		for i, c := range in {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(expand(c)))
		}
		return out, nil
	case AudioPCMS16BE:
		out := make([]byte, len(in))
		for i := 0; i+1 < len(in); i += 2 {
			out[i], out[i+1] = in[i+1], in[i]
		}
		return out, nil
	case AudioPCMS16LE, AudioPCMS32LE, AudioPCMU8, AudioPCMF32LE:
		return append([]byte(nil), in...), nil
	}
	return nil, fmt.Errorf("no PCM layout for %s", desc.Name)
}

// encodePCM converts samples in the descriptor's frame format to coded bytes.
func encodePCM(desc Descriptor, in []byte) []byte {
	switch desc.Name {
	case AudioPCMMulaw, AudioPCMAlaw:
		out := make([]byte, len(in)/2)
		compress := LinearToMulaw
		if desc.Name == AudioPCMAlaw {
			compress = LinearToAlaw
		}
		for i := range out {
			out[i] = compress(int16(binary.LittleEndian.Uint16(in[i*2:])))
		}
		return out
	case AudioPCMS16BE:
		out := make([]byte, len(in))
		for i := 0; i+1 < len(in); i += 2 {
			out[i], out[i+1] = in[i+1], in[i]
		}
		return out
	}
	return in
}

// pcmEncoder packetizes samples into fixed-size packets. Samples that do not
// fill a whole packet stay buffered until more frames arrive or the encoder
// is flushed.
type pcmEncoder struct {
	desc      Descriptor
	cfg       EncoderConfig
	frameSize int
	block     int

	buf      []byte
	bufPTS   int64
	draining bool
}

func pcmEncoderFactory(a Audio) EncoderFactory {
	return func(cfg EncoderConfig) (Encoder, error) {
		return NewPCMEncoder(a, cfg)
	}
}

// NewPCMEncoder opens an encoder for the PCM-like codec a.
func NewPCMEncoder(a Audio, cfg EncoderConfig) (Encoder, error) {
	desc, ok := Describe(a)
	if !ok || !desc.IsPCM() {
		return nil, fmt.Errorf("%s is not a PCM codec", a)
	}
	if cfg.Channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", cfg.Channels)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", cfg.SampleRate)
	}
	if cfg.FrameSize <= 0 {
		cfg.FrameSize = DefaultFrameSize
	}
	if cfg.ChannelLayout == 0 {
		cfg.ChannelLayout = media.DefaultLayout(cfg.Channels)
	}
	return &pcmEncoder{
		desc:      desc,
		cfg:       cfg,
		frameSize: cfg.FrameSize,
		block:     desc.BitsPerSample / 8 * cfg.Channels,
		bufPTS:    timebase.NoPTS,
	}, nil
}

func (e *pcmEncoder) SendFrame(f *media.Frame) error {
	if e.draining {
		return errDraining
	}
	if f == nil {
		e.draining = true
		return nil
	}
	if f.Channels != e.cfg.Channels {
		return fmt.Errorf("frame has %d channels, encoder expects %d", f.Channels, e.cfg.Channels)
	}
	samples, err := ConvertSamples(f.Data, f.Format, e.desc.SampleFormat)
	if err != nil {
		return err
	}
	if len(e.buf) == 0 {
		switch {
		case f.PTS != timebase.NoPTS:
			e.bufPTS = f.PTS
		case e.bufPTS == timebase.NoPTS:
			e.bufPTS = 0
		}
	}
	e.buf = append(e.buf, encodePCM(e.desc, samples)...)
	return nil
}

func (e *pcmEncoder) ReceivePacket() (*media.Packet, error) {
	n := e.frameSize * e.block
	if len(e.buf) < n {
		if !e.draining {
			return nil, ErrAgain
		}
		if len(e.buf) == 0 {
			return nil, io.EOF
		}
		n = len(e.buf)
	}
	samples := int64(n / e.block)
	pkt := &media.Packet{
		PTS:      e.bufPTS,
		DTS:      e.bufPTS,
		Duration: samples,
		Keyframe: true,
		Data:     append([]byte(nil), e.buf[:n]...),
	}
	e.buf = e.buf[n:]
	e.bufPTS += samples
	return pkt, nil
}

func (e *pcmEncoder) Params() media.CodecParameters {
	return media.CodecParameters{
		Codec:         string(e.desc.Name),
		Kind:          media.MediaAudio,
		SampleRate:    e.cfg.SampleRate,
		Channels:      e.cfg.Channels,
		ChannelLayout: e.cfg.ChannelLayout,
		SampleFormat:  e.desc.SampleFormat,
		BitsPerSample: e.desc.BitsPerSample,
		FrameSize:     e.frameSize,
		BitRate:       int64(e.cfg.SampleRate) * int64(e.cfg.Channels) * int64(e.desc.BitsPerSample),
	}
}

func (e *pcmEncoder) TimeBase() timebase.Rational {
	return timebase.PerSecond(e.cfg.SampleRate)
}

func (e *pcmEncoder) Close() error {
	e.buf = nil
	return nil
}
