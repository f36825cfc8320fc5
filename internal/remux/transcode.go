package remux

import (
	"errors"
	"io"
	"iter"
	"log/slog"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// receiveFrames drains every frame the decoder has ready. The sequence ends
// when the decoder asks for more input or reports end of stream.
func receiveFrames(dec codec.Decoder) iter.Seq2[*media.Frame, error] {
	return func(yield func(*media.Frame, error) bool) {
		for {
			f, err := dec.ReceiveFrame()
			if errors.Is(err, codec.ErrAgain) || errors.Is(err, io.EOF) {
				return
			}
			if !yield(f, err) || err != nil {
				return
			}
		}
	}
}

// receivePackets drains every packet the encoder has ready.
func receivePackets(enc codec.Encoder) iter.Seq2[*media.Packet, error] {
	return func(yield func(*media.Packet, error) bool) {
		for {
			p, err := enc.ReceivePacket()
			if errors.Is(err, codec.ErrAgain) || errors.Is(err, io.EOF) {
				return
			}
			if !yield(p, err) || err != nil {
				return
			}
		}
	}
}

// openCoders opens a decoder for ist and an encoder for target configured
// from the decoder side. The encoder time base is 1/sample_rate.
func openCoders(codecs *codec.Registry, ist *media.Stream, target codec.Audio, opts Options) (codec.Decoder, codec.Encoder, error) {
	dec, err := codecs.NewDecoder(ist.Params)
	if err != nil {
		return nil, nil, err
	}
	cfg := codec.EncoderConfig{
		SampleRate:    ist.Params.SampleRate,
		Channels:      ist.Params.Channels,
		ChannelLayout: ist.Params.ChannelLayout,
		SampleFormat:  decodedSampleFormat(ist.Params),
		BitRate:       opts.BitRate,
		FrameSize:     opts.FrameSize,
	}
	if a, ok := codec.ParseAudio(ist.Params.Codec); ok && a == target {
		cfg.Extradata = ist.Params.Extradata
	}
	enc, err := codecs.NewEncoder(target, cfg)
	if err != nil {
		_ = dec.Close()
		return nil, nil, err
	}
	return dec, enc, nil
}

// decodedSampleFormat guesses the frame layout a decoder produces for p.
func decodedSampleFormat(p media.CodecParameters) media.SampleFormat {
	if p.SampleFormat != media.SampleFormatNone {
		return p.SampleFormat
	}
	if a, ok := codec.ParseAudio(p.Codec); ok {
		if d, ok := codec.Describe(a); ok && d.SampleFormat != media.SampleFormatNone {
			return d.SampleFormat
		}
	}
	return media.SampleFormatS16
}

// transcoder decodes packets of one input stream and re-encodes them into
// one output stream. Every send is followed by a full drain before the next
// send, on both the decoder and the encoder.
type transcoder struct {
	in     *container.Input
	out    *container.Output
	ist    *media.Stream
	ost    *media.Stream
	dec    codec.Decoder
	enc    codec.Encoder
	encTB  timebase.Rational
	trim   trimmer
	logger *slog.Logger

	stats  engineStats
	frames int64
}

func newTranscoder(in *container.Input, out *container.Output, ist, ost *media.Stream,
	dec codec.Decoder, enc codec.Encoder, w media.TimeWindow, logger *slog.Logger,
) *transcoder {
	return &transcoder{
		in:     in,
		out:    out,
		ist:    ist,
		ost:    ost,
		dec:    dec,
		enc:    enc,
		encTB:  enc.TimeBase(),
		trim:   newTrimmer(w, ist.TimeBase),
		logger: logger,
	}
}

// run transcodes until the input or the window ends, then flushes the
// decoder, the encoder and the output in that order.
func (t *transcoder) run() error {
	for {
		pkt, err := t.in.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		t.stats.read++
		if pkt.StreamIndex != t.ist.Index {
			t.stats.skipped++
			pkt.Unref()
			continue
		}
		forward, stop := t.trim.admit(pkt)
		if stop {
			t.logger.Debug("end bound reached", slog.Int64("pts", pkt.PTS))
			pkt.Unref()
			break
		}
		if !forward {
			t.stats.trimmed++
			pkt.Unref()
			continue
		}
		if err := t.decode(pkt); err != nil {
			return err
		}
	}

	if err := t.decode(nil); err != nil {
		return err
	}
	if err := t.encode(nil); err != nil {
		return err
	}
	if err := t.out.Flush(); err != nil {
		return err
	}
	t.logger.Debug("transcode finished", append(t.stats.logAttrs(), slog.Int64("frames", t.frames))...)
	return nil
}

// decode sends one packet, or the flush signal when pkt is nil, and pushes
// every frame it yields through the encoder.
func (t *transcoder) decode(pkt *media.Packet) error {
	err := t.dec.SendPacket(pkt)
	if pkt != nil {
		pkt.Unref()
	}
	if err != nil {
		return media.Wrap(media.KindCodec, "send packet", err)
	}
	for frame, err := range receiveFrames(t.dec) {
		if err != nil {
			return media.Wrap(media.KindCodec, "receive frame", err)
		}
		if err := t.encode(frame); err != nil {
			return err
		}
	}
	return nil
}

// encode sends one frame, or the flush signal when frame is nil, and
// writes every packet it yields.
func (t *transcoder) encode(frame *media.Frame) error {
	if frame != nil {
		t.frames++
		if frame.PTS != timebase.NoPTS {
			frame.PTS = timebase.Rescale(frame.PTS, t.ist.TimeBase, t.encTB)
		}
	}
	err := t.enc.SendFrame(frame)
	if frame != nil {
		frame.Unref()
	}
	if err != nil {
		return media.Wrap(media.KindCodec, "send frame", err)
	}
	for pkt, err := range receivePackets(t.enc) {
		if err != nil {
			return media.Wrap(media.KindCodec, "receive packet", err)
		}
		if err := t.write(pkt); err != nil {
			return err
		}
	}
	return nil
}

func (t *transcoder) write(pkt *media.Packet) error {
	defer pkt.Unref()
	pkt.StreamIndex = t.ost.Index
	pkt.RescaleTS(t.encTB, t.ost.TimeBase)
	if err := t.out.WritePacket(pkt); err != nil {
		return err
	}
	t.stats.wrote(pkt)
	return nil
}
