package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/jmylchreest/memmux/internal/config"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/metrics"
	"github.com/jmylchreest/memmux/internal/observability"
	"github.com/jmylchreest/memmux/internal/picture"
	"github.com/jmylchreest/memmux/internal/remux"
	"github.com/jmylchreest/memmux/pkg/decompress"
)

// ConvertHandler serves conversions of uploaded media.
type ConvertHandler struct {
	converter    *remux.Converter
	convert      config.ConvertConfig
	picture      config.PictureConfig
	maxBodyBytes int64
}

// NewConvertHandler creates a convert handler.
func NewConvertHandler(converter *remux.Converter, cfg *config.Config) *ConvertHandler {
	return &ConvertHandler{
		converter:    converter,
		convert:      cfg.Convert,
		picture:      cfg.Picture,
		maxBodyBytes: cfg.Server.MaxBodySize.Bytes(),
	}
}

// ConvertInput is the input for a conversion. The media travels in the
// "file" part, optional cover art in "picture" and tags as repeated
// "tag" fields of KEY=VALUE.
type ConvertInput struct {
	Format             string `query:"format" doc:"Target container (webm, matroska, ogg, mp4, mpegts, wav). Defaults to the configured format."`
	Codec              string `query:"codec" doc:"Target codec. Empty copies the source codec when the target can carry it."`
	InputFormat        string `query:"input_format" doc:"Skip probing and read the input as this format"`
	Start              string `query:"start" doc:"Window start as seconds, [HH:]MM:SS or a duration"`
	End                string `query:"end" doc:"Window end as seconds, [HH:]MM:SS or a duration"`
	CopyTags           bool   `query:"copy_tags" doc:"Carry the input container tags over"`
	FrameSize          int    `query:"frame_size" minimum:"0" doc:"Encoder frame size in samples when transcoding"`
	BitRate            int64  `query:"bit_rate" minimum:"0" doc:"Encoder bit rate in bits per second"`
	Strict             bool   `query:"strict" doc:"Fail when tags cannot be carried by the target"`
	PictureType        string `query:"picture_type" default:"front_cover" doc:"Picture type name or number"`
	PictureDescription string `query:"picture_description"`
	RawBody            multipart.Form
}

// ConvertOutput is the converted container.
type ConvertOutput struct {
	ContentType        string `header:"Content-Type"`
	ContentDisposition string `header:"Content-Disposition"`
	Session            string `header:"X-Memmux-Session"`
	Mode               string `header:"X-Memmux-Mode"`
	Codec              string `header:"X-Memmux-Codec"`
	DurationUs         string `header:"X-Memmux-Duration-Us"`
	Body               []byte
}

// Register registers the convert route with the API.
func (h *ConvertHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID:      "convert",
		Method:           http.MethodPost,
		Path:             "/api/v1/convert",
		Summary:          "Convert media",
		Description:      "Rewraps or transcodes the best audio stream of the uploaded file into the target container",
		Tags:             []string{"Convert"},
		MaxBodyBytes:     h.maxBodyBytes,
		RequestBody:      &huma.RequestBody{Content: map[string]*huma.MediaType{"multipart/form-data": {}}},
		SkipValidateBody: true,
	}, h.Convert)
}

// Convert runs one conversion.
func (h *ConvertHandler) Convert(ctx context.Context, input *ConvertInput) (*ConvertOutput, error) {
	logger := observability.LoggerFromContext(ctx)

	files := input.RawBody.File["file"]
	if len(files) == 0 {
		return nil, badRequest(ctx, http.StatusBadRequest, "no file provided")
	}
	data, err := readPart(files[0], h.convert.MaxInputSize.Bytes())
	if err != nil {
		return nil, readError(ctx, err)
	}

	opts, err := h.options(input)
	if err != nil {
		return nil, newAPIError(ctx, err)
	}
	if pics := input.RawBody.File["picture"]; len(pics) > 0 {
		if opts.Picture, err = readPart(pics[0], h.convert.MaxInputSize.Bytes()); err != nil {
			return nil, readError(ctx, err)
		}
	}

	of, err := h.converter.OutputFormatFor(opts.Format, "")
	if err != nil {
		return nil, newAPIError(ctx, err)
	}

	start := time.Now()
	res, err := h.converter.Convert(ctx, data, opts)
	obs := metrics.Conversion{Format: of.Name(), Err: err, BytesIn: len(data), Elapsed: time.Since(start)}
	if res != nil {
		obs.Mode = string(res.Mode)
		obs.BytesOut = len(res.Data)
		obs.Packets = res.Packets
	}
	metrics.ObserveConversion(obs)
	if err != nil {
		logger.WarnContext(ctx, "conversion failed",
			slog.String("filename", files[0].Filename),
			slog.String("format", of.Name()),
			slog.String("error", err.Error()),
		)
		return nil, newAPIError(ctx, err)
	}

	return &ConvertOutput{
		ContentType:        of.MIMEType(),
		ContentDisposition: fmt.Sprintf("attachment; filename=%q", outputFilename(files[0].Filename, of.Extensions())),
		Session:            res.SessionID,
		Mode:               string(res.Mode),
		Codec:              res.Codec,
		DurationUs:         strconv.FormatInt(res.Duration, 10),
		Body:               res.Data,
	}, nil
}

func (h *ConvertHandler) options(input *ConvertInput) (remux.Options, error) {
	window, err := remux.ParseWindow(input.Start, input.End)
	if err != nil {
		return remux.Options{}, err
	}
	tags, err := remux.ParseTags(input.RawBody.Value["tag"])
	if err != nil {
		return remux.Options{}, err
	}
	picType, err := picture.ParseType(input.PictureType)
	if err != nil {
		return remux.Options{}, media.Wrap(media.KindPrecondition, "parse picture type", err)
	}

	opts := remux.Options{
		Format:      firstNonEmpty(input.Format, h.convert.DefaultFormat),
		Codec:       firstNonEmpty(input.Codec, h.convert.DefaultCodec),
		InputFormat: input.InputFormat,
		Window:      window,
		Tags:        tags,
		CopyTags:    input.CopyTags,
		FrameSize:   input.FrameSize,
		BitRate:     input.BitRate,
		Strict:      input.Strict || h.convert.Strict,
		PictureOptions: picture.Options{
			Type:         picType,
			Description:  input.PictureDescription,
			MaxDimension: h.picture.MaxDimension,
			JPEGQuality:  h.picture.JPEGQuality,
		},
	}
	if opts.FrameSize == 0 {
		opts.FrameSize = h.convert.FrameSize
	}
	return opts, nil
}

func readError(ctx context.Context, err error) *APIError {
	if errors.Is(err, decompress.ErrTooLarge) {
		return badRequest(ctx, http.StatusRequestEntityTooLarge, err.Error())
	}
	if errors.Is(err, decompress.ErrUnsupportedEncoding) {
		return badRequest(ctx, http.StatusUnsupportedMediaType, err.Error())
	}
	return badRequest(ctx, http.StatusBadRequest, "failed to read upload: "+err.Error())
}

// readPart reads an uploaded part, unwrapping compressed uploads.
func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return readMedia(f, limit)
}

// readMedia reads r up to limit bytes after sniffing for compression.
func readMedia(r io.Reader, limit int64) ([]byte, error) {
	rc, _, err := decompress.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return decompress.ReadAll(rc, limit)
}

// outputFilename swaps the extension of the uploaded name for the target's.
func outputFilename(name string, exts []string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	if base == "" || base == "." || base == "/" {
		base = "output"
	}
	if len(exts) == 0 {
		return base
	}
	return base + "." + exts[0]
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
