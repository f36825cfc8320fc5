package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/memmux/internal/picture"
	"github.com/jmylchreest/memmux/internal/remux"
	"github.com/jmylchreest/memmux/internal/storage"
	"github.com/jmylchreest/memmux/pkg/format"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert a media file to another container",
	Long: `Convert reads the input into memory, selects its best audio stream and
writes it into the target container. The stream is copied when the target
can carry its codec and transcoded otherwise.

The target format comes from --format, then from the extension of --out,
then from convert.default_format.

Examples:
  memmux convert -i talk.webm -o talk.ogg
  memmux convert -i https://example.com/a.mka -o a.wav --codec pcm_s16le
  memmux convert -i in.ogg -o - --format mpegts --start 00:01:00 --end 2m > out.ts
  memmux convert -i in.webm -o out.ogg --tag TITLE=Intro --cover cover.jpg`,
	RunE: runConvert,
}

func init() {
	rootCmd.AddCommand(convertCmd)

	f := convertCmd.Flags()
	f.StringP("in", "i", "", "input file, URL or - for stdin")
	f.StringP("out", "o", stdio, "output file or - for stdout")
	f.StringP("format", "f", "", "target container (webm, matroska, ogg, mp4, mpegts, wav)")
	f.StringP("codec", "c", "", "target codec, empty copies the source codec when possible")
	f.String("input-format", "", "skip probing and read the input as this format")
	f.String("start", "", "window start as seconds, [HH:]MM:SS or a duration")
	f.String("end", "", "window end as seconds, [HH:]MM:SS or a duration")
	f.StringArrayP("tag", "t", nil, "output tag as KEY=VALUE (repeatable)")
	f.Bool("copy-tags", false, "carry the input container tags over")
	f.String("cover", "", "image file embedded as cover art")
	f.String("cover-type", "front_cover", "cover picture type name or number")
	f.String("cover-description", "", "cover picture description")
	f.Int("cover-max-dimension", 0, "downscale covers larger than this many pixels")
	f.Int("frame-size", 0, "encoder frame size in samples when transcoding")
	f.Int64("bit-rate", 0, "encoder bit rate in bits per second")
	f.Bool("strict", false, "fail when tags cannot be carried by the target")
	_ = convertCmd.MarkFlagRequired("in")

	bindConfigFlag(f, "codec", "convert.default_codec")
	bindConfigFlag(f, "frame-size", "convert.frame_size")
	bindConfigFlag(f, "strict", "convert.strict")
	bindConfigFlag(f, "cover-max-dimension", "picture.max_dimension")
}

func runConvert(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	in, _ := f.GetString("in")
	out, _ := f.GetString("out")
	formatName, _ := f.GetString("format")

	conv := remux.New(remux.Config{Logger: logger})

	// The target is resolved before reading so a bad name fails fast.
	filename := ""
	if out != stdio {
		filename = out
	}
	if formatName == "" && filename == "" {
		formatName = cfg.Convert.DefaultFormat
	}
	of, err := conv.OutputFormatFor(formatName, filename)
	if err != nil && formatName == "" {
		of, err = conv.OutputFormatFor(cfg.Convert.DefaultFormat, "")
	}
	if err != nil {
		return err
	}

	opts, err := convertOptions(cmd)
	if err != nil {
		return err
	}
	opts.Format = of.Name()

	data, err := readInput(cmd.Context(), in, cmd.InOrStdin(), cfg.Convert.MaxInputSize.Bytes())
	if err != nil {
		return err
	}

	res, err := conv.Convert(cmd.Context(), data, opts)
	if err != nil {
		return err
	}
	if err := storage.WriteOutput(out, cmd.OutOrStdout(), res.Data); err != nil {
		return err
	}

	logger.Info("conversion complete",
		slog.String("session_id", res.SessionID),
		slog.String("mode", string(res.Mode)),
		slog.String("format", res.Format),
		slog.String("codec", res.Codec),
		slog.String("input_size", format.Bytes(int64(len(data)))),
		slog.String("output_size", format.Bytes(int64(len(res.Data)))),
		slog.String("duration", format.Timestamp(res.Duration)),
		slog.Int64("packets", res.Packets),
	)
	return nil
}

// convertOptions builds the conversion options from flags and config.
func convertOptions(cmd *cobra.Command) (remux.Options, error) {
	f := cmd.Flags()
	start, _ := f.GetString("start")
	end, _ := f.GetString("end")
	pairs, _ := f.GetStringArray("tag")
	copyTags, _ := f.GetBool("copy-tags")
	inputFormat, _ := f.GetString("input-format")
	bitRate, _ := f.GetInt64("bit-rate")
	coverPath, _ := f.GetString("cover")
	coverType, _ := f.GetString("cover-type")
	coverDesc, _ := f.GetString("cover-description")

	window, err := remux.ParseWindow(start, end)
	if err != nil {
		return remux.Options{}, err
	}
	tags, err := remux.ParseTags(pairs)
	if err != nil {
		return remux.Options{}, err
	}
	picType, err := picture.ParseType(coverType)
	if err != nil {
		return remux.Options{}, err
	}

	opts := remux.Options{
		Codec:       cfg.Convert.DefaultCodec,
		InputFormat: inputFormat,
		Window:      window,
		Tags:        tags,
		CopyTags:    copyTags,
		FrameSize:   cfg.Convert.FrameSize,
		BitRate:     bitRate,
		Strict:      cfg.Convert.Strict,
		PictureOptions: picture.Options{
			Type:         picType,
			Description:  coverDesc,
			MaxDimension: cfg.Picture.MaxDimension,
			JPEGQuality:  cfg.Picture.JPEGQuality,
		},
	}
	if coverPath != "" {
		if opts.Picture, err = readInput(cmd.Context(), coverPath, cmd.InOrStdin(), cfg.Convert.MaxInputSize.Bytes()); err != nil {
			return remux.Options{}, fmt.Errorf("reading cover: %w", err)
		}
	}
	return opts, nil
}
