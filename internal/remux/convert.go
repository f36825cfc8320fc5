package remux

import (
	"context"
	"log/slog"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/observability"
	"github.com/jmylchreest/memmux/internal/picture"
	"github.com/jmylchreest/memmux/pkg/memio"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// Converter runs conversions. It keeps no per-conversion state, so one
// Converter may serve independent calls from several goroutines.
type Converter struct {
	logger  *slog.Logger
	formats *container.Registry
	codecs  *codec.Registry
}

// New returns a Converter. Nil collaborators fall back to the defaults.
func New(cfg Config) *Converter {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Formats == nil {
		cfg.Formats = container.Default
	}
	if cfg.Codecs == nil {
		cfg.Codecs = codec.Default
	}
	return &Converter{
		logger:  observability.WithComponent(cfg.Logger, "remux"),
		formats: cfg.Formats,
		codecs:  cfg.Codecs,
	}
}

// Convert is New(Config{}).Convert.
func Convert(ctx context.Context, input []byte, opts Options) (*Result, error) {
	return New(Config{}).Convert(ctx, input, opts)
}

// Convert reads input, selects its best audio stream and writes it into a
// new container of opts.Format. The stream is copied when the target can
// carry it unchanged and transcoded otherwise. The context is checked once
// before work starts; a running conversion is not interrupted.
func (c *Converter) Convert(ctx context.Context, input []byte, opts Options) (res *Result, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	id := ulid.Make().String()
	logger := observability.WithSession(c.logger, id)
	done := observability.TimedOperationWithError(ctx, logger, "convert", &err)
	defer done()

	var pic *picture.Picture
	if len(opts.Picture) > 0 {
		if pic, err = picture.New(opts.Picture, opts.PictureOptions); err != nil {
			return nil, media.Wrap(media.KindPrecondition, "load picture", err)
		}
	}

	in, err := container.OpenInput(memio.NewReader(input), container.InputConfig{
		Logger:  logger,
		Formats: c.formats,
		Format:  opts.InputFormat,
	})
	if err != nil {
		return nil, err
	}
	w := memio.NewWriter(len(input))
	out, err := container.OpenOutput(opts.Format, w, container.OutputConfig{
		Logger:  logger,
		Formats: c.formats,
		Strict:  opts.Strict,
	})
	if err != nil {
		_ = in.Close()
		return nil, err
	}
	sess := &container.Session{Input: in, Output: out}
	defer func() {
		if cerr := sess.Close(); cerr != nil && err == nil {
			err = media.Wrap(media.KindMux, "close session", cerr)
		}
	}()

	ist, err := container.SelectBestAudioStream(in.Streams())
	if err != nil {
		return nil, err
	}
	mode, target, err := plan(ist, out.Format(), opts)
	if err != nil {
		return nil, err
	}
	logger.Info("converting",
		slog.String("input_format", in.FormatName()),
		slog.String("output_format", out.Format().Name()),
		slog.Int("stream", ist.Index),
		slog.String("source_codec", ist.Params.Codec),
		slog.String("target_codec", string(target)),
		slog.String("mode", string(mode)))

	var (
		ost   *media.Stream
		run   func() error
		stats *engineStats
	)
	switch mode {
	case ModeCopy:
		if ost, err = out.AddStream(ist); err != nil {
			return nil, err
		}
		cp := newStreamCopier(in, out, ist, ost, opts.Window, logger)
		run, stats = cp.run, &cp.stats
	case ModeTranscode:
		dec, enc, err := openCoders(c.codecs, ist, target, opts)
		if err != nil {
			return nil, err
		}
		defer dec.Close()
		defer enc.Close()
		src := media.NewStream(0)
		src.Params = enc.Params()
		src.TimeBase = enc.TimeBase()
		if ost, err = out.AddStream(src); err != nil {
			return nil, err
		}
		tc := newTranscoder(in, out, ist, ost, dec, enc, opts.Window, logger)
		run, stats = tc.run, &tc.stats
	}

	var inherited *media.Tags
	if opts.CopyTags {
		inherited = in.Tags()
	}
	if err := (composer{logger: logger}).compose(out, inherited, opts.Tags, pic); err != nil {
		return nil, err
	}
	if err := out.WriteHeader(); err != nil {
		return nil, err
	}
	if err := run(); err != nil {
		return nil, err
	}
	if err := out.WriteTrailer(); err != nil {
		return nil, err
	}
	if err := sess.Close(); err != nil {
		return nil, media.Wrap(media.KindMux, "close session", err)
	}
	data, err := w.Bytes()
	if err != nil {
		return nil, media.Wrap(media.KindMux, "collect output", err)
	}

	res = &Result{
		SessionID:   id,
		Data:        data,
		Format:      out.Format().Name(),
		Codec:       string(target),
		Mode:        mode,
		InputStream: ist.Index,
		Packets:     stats.written,
		Duration:    timebase.Rescale(stats.end, ost.TimeBase, timebase.Microseconds),
	}
	logger.Debug("conversion result", slog.String("result", res.String()))
	return res, nil
}

// plan chooses between copying and transcoding. Without a target codec the
// source is copied when the format accepts it and otherwise transcoded to
// the format's default codec.
func plan(ist *media.Stream, format container.OutputFormat, opts Options) (Mode, codec.Audio, error) {
	src, srcKnown := codec.ParseAudio(ist.Params.Codec)
	if opts.Codec == "" {
		if srcKnown && format.Supports(src) {
			return ModeCopy, src, nil
		}
		return ModeTranscode, format.DefaultCodec(), nil
	}
	target, _ := codec.ParseAudio(opts.Codec)
	if !format.Supports(target) {
		return "", "", media.Errorf(media.KindUnsupportedFormat, "plan conversion",
			"codec %s cannot be stored in %s", target, format.Name())
	}
	if srcKnown && src == target {
		return ModeCopy, target, nil
	}
	return ModeTranscode, target, nil
}
