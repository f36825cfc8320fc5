package handlers

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/config"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/remux"
	"github.com/jmylchreest/memmux/internal/testutil"
)

func newTestAPI(t *testing.T, cfg *config.Config) humatest.TestAPI {
	t.Helper()
	if cfg == nil {
		cfg = config.Defaults()
	}
	_, api := humatest.New(t)
	conv := remux.New(remux.Config{})
	NewConvertHandler(conv, cfg).Register(api)
	NewProbeHandler(conv, cfg).Register(api)
	NewFormatsHandler(conv).Register(api)
	return api
}

// multipartBody builds a convert upload with the given parts and tags.
func multipartBody(t *testing.T, files map[string][]byte, tags ...string) (string, io.Reader) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for field, data := range files {
		part, err := w.CreateFormFile(field, field+".bin")
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	for _, tag := range tags {
		require.NoError(t, w.WriteField("tag", tag))
	}
	require.NoError(t, w.Close())
	return "Content-Type: " + w.FormDataContentType(), &buf
}

func decodeAPIError(t *testing.T, body []byte) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(body, &apiErr))
	return apiErr
}

func TestConvert_CopyToMatroska(t *testing.T) {
	api := newTestAPI(t, nil)
	g := testutil.NewMediaGeneratorWithSeed(11)

	ct, body := multipartBody(t, map[string][]byte{"file": g.Ogg(t, 10, nil)}, "TITLE=Remuxed")
	resp := api.Post("/api/v1/convert?format=mka", ct, body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	assert.Equal(t, "audio/x-matroska", resp.Header().Get("Content-Type"))
	assert.Equal(t, "copy", resp.Header().Get("X-Memmux-Mode"))
	assert.Equal(t, "opus", resp.Header().Get("X-Memmux-Codec"))
	assert.NotEmpty(t, resp.Header().Get("X-Memmux-Session"))
	assert.Contains(t, resp.Header().Get("Content-Disposition"), `filename="file.mka"`)

	probed, err := remux.Probe(context.Background(), resp.Body.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "matroska", probed.Format)
	title, _ := probed.Tags.Get("TITLE")
	assert.Equal(t, "Remuxed", title)
}

func TestConvert_TranscodeGzippedUpload(t *testing.T) {
	api := newTestAPI(t, nil)
	wav := testutil.WAV(8000, 1, testutil.SinePCM16(8000, 1, 4000, 440), "")

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(wav)
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	ct, body := multipartBody(t, map[string][]byte{"file": gz.Bytes()})
	resp := api.Post("/api/v1/convert?format=wav&codec=pcm_mulaw", ct, body)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	assert.Equal(t, "transcode", resp.Header().Get("X-Memmux-Mode"))
	assert.Equal(t, "500000", resp.Header().Get("X-Memmux-Duration-Us"))
}

func TestConvert_Errors(t *testing.T) {
	g := testutil.NewMediaGeneratorWithSeed(12)
	ogg := g.Ogg(t, 5, nil)

	small := config.Defaults()
	small.Convert.MaxInputSize = 16

	tests := []struct {
		name     string
		cfg      *config.Config
		query    string
		files    map[string][]byte
		tags     []string
		status   int
		wantKind string
	}{
		{"missing file", nil, "", map[string][]byte{"other": ogg}, nil, http.StatusBadRequest, "RequestError"},
		{"garbage input", nil, "", map[string][]byte{"file": []byte("not media at all")}, nil, http.StatusUnprocessableEntity, "OpenError"},
		{"unknown format", nil, "?format=avi", map[string][]byte{"file": ogg}, nil, http.StatusBadRequest, "UnsupportedFormatError"},
		{"bad window", nil, "?start=5&end=1", map[string][]byte{"file": ogg}, nil, http.StatusBadRequest, "PreconditionError"},
		{"bad tag", nil, "", map[string][]byte{"file": ogg}, []string{"novalue"}, http.StatusBadRequest, "PreconditionError"},
		{"bad picture type", nil, "?picture_type=poster", map[string][]byte{"file": ogg}, nil, http.StatusBadRequest, "PreconditionError"},
		{"unreadable picture", nil, "", map[string][]byte{"file": ogg, "picture": []byte("nope")}, nil, http.StatusBadRequest, "PreconditionError"},
		{"input too large", small, "", map[string][]byte{"file": ogg}, nil, http.StatusRequestEntityTooLarge, "RequestError"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := newTestAPI(t, tt.cfg)
			ct, body := multipartBody(t, tt.files, tt.tags...)
			resp := api.Post("/api/v1/convert"+tt.query, ct, body)
			require.Equal(t, tt.status, resp.Code, resp.Body.String())
			assert.Equal(t, tt.wantKind, decodeAPIError(t, resp.Body.Bytes()).Kind)
		})
	}
}

func TestProbe(t *testing.T) {
	api := newTestAPI(t, nil)
	wav := testutil.WAV(22050, 2, testutil.SinePCM16(22050, 2, 22050, 440), "Tone")

	resp := api.Post("/api/v1/probe", "Content-Type: application/octet-stream", bytes.NewReader(wav))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var res remux.ProbeResult
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &res))
	assert.Equal(t, "wav", res.Format)
	assert.Equal(t, int64(1_000_000), res.Duration)
	require.Len(t, res.Streams, 1)
	assert.Equal(t, "pcm_s16le", res.Streams[0].Codec)
}

func TestProbe_Garbage(t *testing.T) {
	api := newTestAPI(t, nil)
	resp := api.Post("/api/v1/probe", "Content-Type: application/octet-stream", bytes.NewReader([]byte("garbage bytes")))
	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	assert.Equal(t, "OpenError", decodeAPIError(t, resp.Body.Bytes()).Kind)
}

func TestFormats(t *testing.T) {
	api := newTestAPI(t, nil)
	resp := api.Get("/api/v1/formats")
	require.Equal(t, http.StatusOK, resp.Code)

	var cat remux.Catalog
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &cat))
	var names []string
	for _, f := range cat.Formats {
		names = append(names, f.Name)
	}
	assert.Subset(t, names, []string{"webm", "matroska", "ogg", "mp4", "mpegts", "wav"})
	assert.NotEmpty(t, cat.Codecs)
}

func TestStatusForKind(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{media.Errorf(media.KindOpen, "op", "x"), http.StatusUnprocessableEntity},
		{media.Errorf(media.KindProbe, "op", "x"), http.StatusUnprocessableEntity},
		{media.Errorf(media.KindNoStream, "op", "x"), http.StatusUnprocessableEntity},
		{media.Errorf(media.KindCodec, "op", "x"), http.StatusUnprocessableEntity},
		{media.Errorf(media.KindUnsupportedFormat, "op", "x"), http.StatusBadRequest},
		{media.Errorf(media.KindPrecondition, "op", "x"), http.StatusBadRequest},
		{media.Errorf(media.KindMux, "op", "x"), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(media.KindName(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, statusForKind(tt.err))
		})
	}
}

func TestNewAPIError_HidesUnclassifiedDetail(t *testing.T) {
	apiErr := newAPIError(context.Background(), errors.New("internal path /var/x"))
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Equal(t, "Internal Server Error", apiErr.Message)
	assert.Equal(t, "Error", apiErr.Kind)
}

func TestOutputFilename(t *testing.T) {
	assert.Equal(t, "song.ogg", outputFilename("dir/song.wav", []string{"ogg", "opus"}))
	assert.Equal(t, "output.mkv", outputFilename("", []string{"mkv"}))
	assert.Equal(t, "song", outputFilename("song.wav", nil))
}
