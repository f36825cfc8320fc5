package container

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/observability"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// InputConfig configures OpenInput.
type InputConfig struct {
	Logger  *slog.Logger
	Formats *Registry
	// Format forces a demuxer instead of probing.
	Format string
}

// Input is the input side of a container session. It owns its demuxer and
// the reader the demuxer is bound to.
type Input struct {
	reader io.ReadSeeker
	format InputFormat
	demux  Demuxer
	logger *slog.Logger

	streams  []*media.Stream
	tags     *media.Tags
	duration int64
	size     int64
}

// formatNamer is implemented by demuxers that refine the probed format name.
type formatNamer interface {
	FormatName() string
}

// OpenInput probes r, opens the matching demuxer and reads the stream
// layout. It fails with an OpenError when no format matches and with a
// ProbeError when the stream layout cannot be read.
func OpenInput(r io.ReadSeeker, cfg InputConfig) (*Input, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Formats == nil {
		cfg.Formats = Default
	}
	logger := observability.WithComponent(cfg.Logger, "container")

	size, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, media.Wrap(media.KindOpen, "open input", fmt.Errorf("measuring input: %w", err))
	}
	if size == 0 {
		return nil, media.Errorf(media.KindOpen, "open input", "input is empty")
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, media.Wrap(media.KindOpen, "open input", err)
	}

	format, err := selectInputFormat(r, cfg)
	if err != nil {
		return nil, err
	}

	in := &Input{
		reader: r,
		format: format,
		demux:  format.NewDemuxer(r, logger.With(slog.String("format", format.Name()))),
		logger: logger,
		size:   size,
	}
	hdr, err := in.demux.ReadHeader()
	if err != nil {
		_ = in.Close()
		return nil, media.Wrap(media.KindProbe, "read header", err)
	}
	if len(hdr.Streams) == 0 {
		_ = in.Close()
		return nil, media.Errorf(media.KindProbe, "read header", "no streams found in %s input", format.Name())
	}
	for i, st := range hdr.Streams {
		st.Index = i
		if st.Tags == nil {
			st.Tags = media.NewTags()
		}
		if !st.TimeBase.Valid() {
			_ = in.Close()
			return nil, media.Errorf(media.KindProbe, "read header", "stream %d has invalid time base %s", i, st.TimeBase)
		}
	}
	in.streams = hdr.Streams
	in.tags = hdr.Tags
	if in.tags == nil {
		in.tags = media.NewTags()
	}
	in.duration = hdr.Duration
	if in.duration <= 0 {
		in.duration = longestStream(hdr.Streams)
	}

	logger.Debug("opened input",
		slog.String("format", in.FormatName()),
		slog.Int("streams", len(in.streams)),
		slog.Int64("size", size),
		slog.Int64("duration_us", in.duration))
	return in, nil
}

func selectInputFormat(r io.ReadSeeker, cfg InputConfig) (InputFormat, error) {
	if cfg.Format != "" {
		f, ok := cfg.Formats.Lookup(cfg.Format)
		if !ok {
			return nil, media.Errorf(media.KindUnsupportedFormat, "open input", "unknown format %q", cfg.Format)
		}
		in, ok := f.(InputFormat)
		if !ok {
			return nil, media.Errorf(media.KindUnsupportedFormat, "open input", "format %q cannot be read", cfg.Format)
		}
		return in, nil
	}

	head := make([]byte, ProbeSize)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, media.Wrap(media.KindOpen, "open input", fmt.Errorf("reading probe data: %w", err))
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, media.Wrap(media.KindOpen, "open input", err)
	}
	format, score := cfg.Formats.Probe(head[:n])
	if format == nil {
		return nil, media.Errorf(media.KindOpen, "open input", "input matches no known container format")
	}
	cfg.Logger.Debug("probed input format",
		slog.String("format", format.Name()),
		slog.Int("score", score))
	return format, nil
}

func longestStream(streams []*media.Stream) int64 {
	var longest int64
	for _, st := range streams {
		if st.Duration == timebase.NoPTS || st.Duration <= 0 {
			continue
		}
		if d := timebase.Rescale(st.Duration, st.TimeBase, timebase.Microseconds); d > longest {
			longest = d
		}
	}
	return longest
}

// Streams returns the discovered streams.
func (in *Input) Streams() []*media.Stream { return in.streams }

// Tags returns the container-level tags.
func (in *Input) Tags() *media.Tags { return in.tags }

// Format returns the demuxing format.
func (in *Input) Format() InputFormat { return in.format }

// FormatName returns the most specific name for the input container.
func (in *Input) FormatName() string {
	if n, ok := in.demux.(formatNamer); ok && n.FormatName() != "" {
		return n.FormatName()
	}
	return in.format.Name()
}

// Duration returns the container duration in microseconds, 0 if unknown.
func (in *Input) Duration() int64 { return in.duration }

// Size returns the input length in bytes.
func (in *Input) Size() int64 { return in.size }

// BitRate returns the overall bit rate in bits per second, 0 if unknown.
func (in *Input) BitRate() int64 {
	if in.duration <= 0 {
		return 0
	}
	return in.size * 8 * 1_000_000 / in.duration
}

// ReadPacket returns the next packet, or io.EOF when the input is exhausted.
func (in *Input) ReadPacket() (*media.Packet, error) {
	if in.demux == nil {
		return nil, media.Errorf(media.KindPrecondition, "read packet", "input is closed")
	}
	pkt, err := in.demux.ReadPacket()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, media.Wrap(media.KindOpen, "read packet", err)
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(in.streams) {
		return nil, media.Errorf(media.KindPrecondition, "read packet",
			"packet references unknown stream %d", pkt.StreamIndex)
	}
	return pkt, nil
}

// Close detaches the reader, then releases the demuxer. It is safe to call
// more than once.
func (in *Input) Close() error {
	in.reader = nil
	if in.demux == nil {
		return nil
	}
	err := in.demux.Close()
	in.demux = nil
	return err
}

// OutputConfig configures OpenOutput.
type OutputConfig struct {
	Logger  *slog.Logger
	Formats *Registry
	// Strict fails WriteHeader when tags were set on a format that cannot
	// carry them. Otherwise they are dropped with a debug log.
	Strict bool
}

type outputState int

const (
	outputOpen outputState = iota
	outputHeaderWritten
	outputTrailerWritten
	outputClosed
)

// Output is the output side of a container session. It owns its muxer and
// the writer the muxer is bound to.
type Output struct {
	writer io.Writer
	format OutputFormat
	mux    Muxer
	logger *slog.Logger
	strict bool

	streams []*media.Stream
	tags    *media.Tags
	state   outputState
	packets int64
}

// OpenOutput creates an output session writing format name into w. It fails
// with an UnsupportedFormatError for unknown format names.
func OpenOutput(name string, w io.Writer, cfg OutputConfig) (*Output, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Formats == nil {
		cfg.Formats = Default
	}
	format, err := cfg.Formats.Output(name)
	if err != nil {
		return nil, err
	}
	logger := observability.WithComponent(cfg.Logger, "container").With(slog.String("format", format.Name()))
	return &Output{
		writer: w,
		format: format,
		mux:    format.NewMuxer(w, logger),
		logger: logger,
		strict: cfg.Strict,
		tags:   media.NewTags(),
	}, nil
}

// Format returns the muxing format.
func (o *Output) Format() OutputFormat { return o.format }

// Streams returns the output streams.
func (o *Output) Streams() []*media.Stream { return o.streams }

// Tags returns the container tag dictionary. Entries added after
// WriteHeader are not written.
func (o *Output) Tags() *media.Tags { return o.tags }

// AddStream appends an output stream whose codec parameters and time base
// are cloned from src. It is rejected once the header is written.
func (o *Output) AddStream(src *media.Stream) (*media.Stream, error) {
	if o.state != outputOpen {
		return nil, media.Errorf(media.KindPrecondition, "add stream", "header already written")
	}
	st := media.NewStream(len(o.streams))
	st.Params = src.Params.Clone()
	st.TimeBase = src.TimeBase
	st.Default = true
	o.streams = append(o.streams, st)
	return st, nil
}

// SetTag sets a container tag. It is rejected once the header is written.
func (o *Output) SetTag(key, value string) error {
	if o.state != outputOpen {
		return media.Errorf(media.KindPrecondition, "set tag", "header already written")
	}
	o.tags.Set(key, value)
	return nil
}

// WriteHeader writes the container header. It fails with a MuxError when
// the format cannot carry the configured streams.
func (o *Output) WriteHeader() error {
	if o.state != outputOpen {
		return media.Errorf(media.KindPrecondition, "write header", "header already written")
	}
	if len(o.streams) == 0 {
		return media.Errorf(media.KindMux, "write header", "no output streams")
	}
	for _, st := range o.streams {
		a, ok := codec.ParseAudio(st.Params.Codec)
		if !ok || !o.format.Supports(a) {
			return media.Errorf(media.KindMux, "write header",
				"codec %q is not supported in %s", st.Params.Codec, o.format.Name())
		}
	}
	tags := o.tags
	if tags.Len() > 0 && !o.format.CarriesTags() {
		if o.strict {
			return media.Errorf(media.KindMux, "write header",
				"%s cannot carry tags %v", o.format.Name(), tags.Keys())
		}
		o.logger.Debug("dropping tags unsupported by format", slog.Any("keys", tags.Keys()))
		tags = media.NewTags()
	}
	if err := o.mux.WriteHeader(o.streams, tags); err != nil {
		return media.Wrap(media.KindMux, "write header", err)
	}
	for _, st := range o.streams {
		if !st.TimeBase.Valid() {
			return media.Errorf(media.KindMux, "write header", "muxer left stream %d without a time base", st.Index)
		}
	}
	o.state = outputHeaderWritten
	return nil
}

// WritePacket forwards one packet whose timestamps are already in the
// output stream's time base.
func (o *Output) WritePacket(pkt *media.Packet) error {
	if o.state != outputHeaderWritten {
		return media.Errorf(media.KindPrecondition, "write packet", "packet written outside header/trailer")
	}
	if pkt.StreamIndex < 0 || pkt.StreamIndex >= len(o.streams) {
		return media.Errorf(media.KindPrecondition, "write packet", "unknown output stream %d", pkt.StreamIndex)
	}
	if err := o.mux.WritePacket(pkt); err != nil {
		return media.Wrap(media.KindMux, "write packet", err)
	}
	o.packets++
	return nil
}

// flusher is implemented by muxers that buffer packets between writes.
type flusher interface {
	Flush() error
}

// Flush signals that no more packets follow and pushes out anything the
// muxer still buffers. The trailer must still be written afterwards.
func (o *Output) Flush() error {
	if o.state != outputHeaderWritten {
		return media.Errorf(media.KindPrecondition, "flush", "flush requires a written header")
	}
	f, ok := o.mux.(flusher)
	if !ok {
		return nil
	}
	if err := f.Flush(); err != nil {
		return media.Wrap(media.KindMux, "flush", err)
	}
	return nil
}

// Packets returns the number of packets written so far.
func (o *Output) Packets() int64 { return o.packets }

// WriteTrailer finalizes the container. It must be called exactly once,
// after the last packet.
func (o *Output) WriteTrailer() error {
	if o.state != outputHeaderWritten {
		return media.Errorf(media.KindPrecondition, "write trailer", "trailer requires a written header and may only be written once")
	}
	o.state = outputTrailerWritten
	if err := o.mux.WriteTrailer(); err != nil {
		return media.Wrap(media.KindMux, "write trailer", err)
	}
	o.logger.Debug("wrote trailer", slog.Int64("packets", o.packets))
	return nil
}

// Close detaches the writer, then releases the muxer. When the writer is an
// io.Closer it is closed so its bytes become retrievable.
func (o *Output) Close() error {
	if o.state == outputClosed {
		return nil
	}
	o.state = outputClosed
	w := o.writer
	o.writer = nil
	o.mux = nil
	if c, ok := w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Session pairs one input with an optional output.
type Session struct {
	Input  *Input
	Output *Output
}

// Close tears down the output, then the input, on every path.
func (s *Session) Close() error {
	var errs []error
	if s.Output != nil {
		errs = append(errs, s.Output.Close())
	}
	if s.Input != nil {
		errs = append(errs, s.Input.Close())
	}
	return errors.Join(errs...)
}
