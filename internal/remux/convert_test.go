package remux

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/picture"
	"github.com/jmylchreest/memmux/internal/testutil"
	"github.com/jmylchreest/memmux/pkg/memio"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// readPackets opens data and returns every packet of its first stream.
func readPackets(t *testing.T, data []byte) ([]*media.Packet, *media.Stream) {
	t.Helper()
	in, err := container.OpenInput(memio.NewReader(data), container.InputConfig{})
	require.NoError(t, err)
	defer in.Close()
	st := in.Streams()[0]
	var pkts []*media.Packet
	for {
		pkt, err := in.ReadPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		if pkt.StreamIndex == st.Index {
			pkts = append(pkts, pkt)
		}
	}
	return pkts, st
}

func openTags(t *testing.T, data []byte) *media.Tags {
	t.Helper()
	in, err := container.OpenInput(memio.NewReader(data), container.InputConfig{})
	require.NoError(t, err)
	defer in.Close()
	return in.Tags()
}

func pngCover(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 12))
	for x := range 16 {
		img.Set(x, x%12, color.NRGBA{R: 0xFF, A: 0xFF})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// twoStreamMatroska builds a Matroska file with a low-rate mono stream at
// index 0 and a higher-rate stereo stream at index 1.
func twoStreamMatroska(t *testing.T) []byte {
	t.Helper()
	w := memio.NewWriter(0)
	out, err := container.OpenOutput("matroska", w, container.OutputConfig{})
	require.NoError(t, err)

	mono := media.NewStream(0)
	mono.Params = media.CodecParameters{Codec: "pcm_s16le", Kind: media.MediaAudio, SampleRate: 8000, Channels: 1, BitsPerSample: 16}
	mono.TimeBase = timebase.PerSecond(8000)
	stereo := media.NewStream(1)
	stereo.Params = media.CodecParameters{Codec: "pcm_s16le", Kind: media.MediaAudio, SampleRate: 48000, Channels: 2, BitsPerSample: 16}
	stereo.TimeBase = timebase.PerSecond(48000)

	o0, err := out.AddStream(mono)
	require.NoError(t, err)
	o1, err := out.AddStream(stereo)
	require.NoError(t, err)
	require.NoError(t, out.WriteHeader())
	for i := range 10 {
		ms := int64(i * 10)
		require.NoError(t, out.WritePacket(&media.Packet{
			StreamIndex: o0.Index, PTS: ms, DTS: ms, Duration: 10,
			Data: testutil.SinePCM16(8000, 1, 80, 100),
		}))
		require.NoError(t, out.WritePacket(&media.Packet{
			StreamIndex: o1.Index, PTS: ms, DTS: ms, Duration: 10,
			Data: testutil.SinePCM16(48000, 2, 480, 100),
		}))
	}
	require.NoError(t, out.WriteTrailer())
	require.NoError(t, out.Close())
	data, err := w.Bytes()
	require.NoError(t, err)
	return data
}

func TestProbe_BestStreamIsDeterministic(t *testing.T) {
	data := twoStreamMatroska(t)
	first, err := Probe(context.Background(), data)
	require.NoError(t, err)
	require.Len(t, first.Streams, 2)
	assert.Equal(t, 1, first.BestStream)

	for range 5 {
		again, err := Probe(context.Background(), data)
		require.NoError(t, err)
		assert.Equal(t, first.BestStream, again.BestStream)
	}
}

func TestConvert_SkipsUnselectedStreams(t *testing.T) {
	res, err := Convert(context.Background(), twoStreamMatroska(t), Options{Format: "wav"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.InputStream)
	assert.Equal(t, ModeCopy, res.Mode)
	assert.Equal(t, int64(10), res.Packets)

	_, st := readPackets(t, res.Data)
	assert.Equal(t, 48000, st.Params.SampleRate)
	assert.Equal(t, 2, st.Params.Channels)
	assert.Equal(t, int64(4800), st.Duration)
}

func TestConvert_CopyRoundTrip(t *testing.T) {
	g := testutil.NewMediaGeneratorWithSeed(1)
	input := g.Ogg(t, 250, testutil.SampleTags)
	before, err := Probe(context.Background(), input)
	require.NoError(t, err)

	for _, format := range []string{"webm", "matroska", "ogg", "mpegts", "mp4"} {
		t.Run(format, func(t *testing.T) {
			res, err := Convert(context.Background(), input, Options{Format: format})
			require.NoError(t, err)
			assert.Equal(t, ModeCopy, res.Mode)
			assert.Equal(t, "opus", res.Codec)
			assert.Equal(t, int64(250), res.Packets)
			assert.NotEmpty(t, res.SessionID)

			after, err := Probe(context.Background(), res.Data)
			require.NoError(t, err)
			require.Len(t, after.Streams, len(before.Streams))
			assert.Equal(t, before.Streams[before.BestStream].Codec, after.Streams[after.BestStream].Codec)
			assert.InDelta(t, before.Duration, after.Duration, 20_000)
		})
	}
}

func TestConvert_WindowTrimsAndRebases(t *testing.T) {
	g := testutil.NewMediaGeneratorWithSeed(2)
	input := g.WebM(t, 500, nil) // 0s to 10s in 20ms packets

	res, err := Convert(context.Background(), input, Options{Format: "webm", Window: media.Window(2, 5)})
	require.NoError(t, err)

	pkts, st := readPackets(t, res.Data)
	require.NotEmpty(t, pkts)
	assert.Equal(t, int64(0), pkts[0].PTS)
	for _, p := range pkts {
		orig := timebase.Rescale(p.PTS, st.TimeBase, timebase.Microseconds) + 2_000_000
		assert.LessOrEqual(t, orig, int64(5_000_000))
	}
	assert.Len(t, pkts, 151)
	assert.Equal(t, int64(3000), pkts[len(pkts)-1].PTS)
}

func TestConvert_InvalidWindowRejectedBeforeReading(t *testing.T) {
	// The input is not a container: rejecting the window first proves no
	// byte was read.
	_, err := Convert(context.Background(), []byte("not media"), Options{Format: "ogg", Window: media.Window(5, 2)})
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrPrecondition)
}

func TestConvert_WindowBoundsOutOfRange(t *testing.T) {
	tests := []struct {
		name   string
		window media.TimeWindow
	}{
		{"negative start", media.TimeWindow{Start: -1, HasStart: true}},
		{"negative end", media.TimeWindow{End: -2, HasEnd: true}},
		{"start beyond int64 microseconds", media.TimeWindow{Start: 1e15, HasStart: true}},
		{"end beyond int64 microseconds", media.TimeWindow{End: 1e15, HasEnd: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(context.Background(), []byte("not media"), Options{Format: "ogg", Window: tt.window})
			require.Error(t, err)
			assert.ErrorIs(t, err, media.ErrPrecondition)
		})
	}
}

func TestConvert_OutputIsWellFormedAfterTrailer(t *testing.T) {
	g := testutil.NewMediaGeneratorWithSeed(4)
	input := g.WebM(t, 3, nil)
	for _, format := range []string{"webm", "matroska", "ogg", "mpegts", "mp4"} {
		t.Run(format, func(t *testing.T) {
			res, err := Convert(context.Background(), input, Options{Format: format})
			require.NoError(t, err)
			require.NotEmpty(t, res.Data)
			pkts, _ := readPackets(t, res.Data)
			assert.Len(t, pkts, 3)
		})
	}
}

func TestConvert_TagsAndPicture(t *testing.T) {
	g := testutil.NewMediaGeneratorWithSeed(5)
	input := g.Ogg(t, 20, nil)
	cover := pngCover(t)

	for _, format := range []string{"ogg", "webm"} {
		t.Run(format, func(t *testing.T) {
			res, err := Convert(context.Background(), input, Options{
				Format:         format,
				Tags:           map[string]string{"title": "x"},
				Picture:        cover,
				PictureOptions: picture.Options{Type: picture.TypeFrontCover, Description: "front"},
			})
			require.NoError(t, err)

			tags := openTags(t, res.Data)
			title, ok := tags.Get("title")
			require.True(t, ok)
			assert.Equal(t, "x", title)

			encoded, ok := tags.Get(picture.TagKey)
			require.True(t, ok)
			pic, err := picture.DecodeTag(encoded)
			require.NoError(t, err)
			assert.Equal(t, "image/png", pic.MIME)
			assert.Equal(t, uint32(16), pic.Width)
			assert.Equal(t, uint32(12), pic.Height)
			assert.Equal(t, "front", pic.Description)
			assert.Equal(t, cover, pic.Data)

			probe, err := Probe(context.Background(), res.Data)
			require.NoError(t, err)
			require.NotNil(t, probe.Picture)
			assert.Equal(t, "front_cover", probe.Picture.Type)
			assert.Equal(t, len(cover), probe.Picture.Size)
		})
	}
}

func TestConvert_TagsAndPictureWAV(t *testing.T) {
	pcm := testutil.SinePCM16(8000, 1, 4000, 440)
	input := testutil.WAV(8000, 1, pcm, "")
	cover := pngCover(t)

	res, err := Convert(context.Background(), input, Options{
		Format:         "wav",
		Strict:         true,
		Tags:           map[string]string{"title": "x", "mood": "calm"},
		Picture:        cover,
		PictureOptions: picture.Options{Type: picture.TypeFrontCover, Description: "front"},
	})
	require.NoError(t, err)

	tags := openTags(t, res.Data)
	title, _ := tags.Get("title")
	assert.Equal(t, "x", title)
	mood, ok := tags.Get("mood")
	require.True(t, ok)
	assert.Equal(t, "calm", mood)

	encoded, ok := tags.Get(picture.TagKey)
	require.True(t, ok)
	pic, err := picture.DecodeTag(encoded)
	require.NoError(t, err)
	assert.Equal(t, picture.TypeFrontCover, pic.Type)
	assert.Equal(t, "image/png", pic.MIME)
	assert.Equal(t, uint32(16), pic.Width)
	assert.Equal(t, uint32(12), pic.Height)
	assert.Equal(t, "front", pic.Description)
	assert.Equal(t, cover, pic.Data)
}

func TestConvert_CopyTags(t *testing.T) {
	g := testutil.NewMediaGeneratorWithSeed(6)
	input := g.Ogg(t, 5, testutil.SampleTags)

	res, err := Convert(context.Background(), input, Options{
		Format:   "webm",
		CopyTags: true,
		Tags:     map[string]string{"title": "Override"},
	})
	require.NoError(t, err)
	tags := openTags(t, res.Data)
	title, _ := tags.Get("title")
	artist, _ := tags.Get("artist")
	assert.Equal(t, "Override", title)
	assert.Equal(t, testutil.SampleTags["artist"], artist)

	res, err = Convert(context.Background(), input, Options{Format: "webm"})
	require.NoError(t, err)
	_, ok := openTags(t, res.Data).Get("artist")
	assert.False(t, ok)
}

func TestConvert_Errors(t *testing.T) {
	g := testutil.NewMediaGeneratorWithSeed(7)
	ogg := g.Ogg(t, 5, nil)

	tests := []struct {
		name  string
		input []byte
		opts  Options
		want  error
	}{
		{"no format", ogg, Options{}, media.ErrUnsupportedFormat},
		{"unknown format", ogg, Options{Format: "avi"}, media.ErrUnsupportedFormat},
		{"unknown codec", ogg, Options{Format: "ogg", Codec: "speex"}, media.ErrUnsupportedFormat},
		{"codec not storable", ogg, Options{Format: "ogg", Codec: "aac"}, media.ErrUnsupportedFormat},
		{"garbage input", []byte("this is not a container"), Options{Format: "ogg"}, media.ErrOpen},
		{"empty input", nil, Options{Format: "ogg"}, media.ErrOpen},
		{"strict tags on mpegts", ogg, Options{Format: "mpegts", Tags: map[string]string{"title": "x"}, Strict: true}, media.ErrMux},
		{"unreadable picture", ogg, Options{Format: "ogg", Picture: []byte("nope")}, media.ErrPrecondition},
		{"empty tag key", ogg, Options{Format: "ogg", Tags: map[string]string{" ": "x"}}, media.ErrPrecondition},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Convert(context.Background(), tt.input, tt.opts)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestConvert_LenientTagsOnMPEGTS(t *testing.T) {
	g := testutil.NewMediaGeneratorWithSeed(8)
	res, err := Convert(context.Background(), g.Ogg(t, 5, nil), Options{Format: "ts", Tags: map[string]string{"title": "x"}})
	require.NoError(t, err)
	assert.Equal(t, "mpegts", res.Format)
	_, ok := openTags(t, res.Data).Get("title")
	assert.False(t, ok)
}

func TestConvert_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Convert(ctx, []byte("x"), Options{Format: "ogg"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProbe_Introspection(t *testing.T) {
	pcm := testutil.SinePCM16(22050, 2, 22050, 440)
	res, err := Probe(context.Background(), testutil.WAV(22050, 2, pcm, "Tone"))
	require.NoError(t, err)

	assert.Equal(t, "wav", res.Format)
	assert.Equal(t, int64(1_000_000), res.Duration)
	assert.Equal(t, 0, res.BestStream)
	require.Len(t, res.Streams, 1)
	st := res.Streams[0]
	assert.Equal(t, "audio", st.Kind)
	assert.Equal(t, "pcm_s16le", st.Codec)
	assert.Equal(t, 22050, st.SampleRate)
	assert.Equal(t, 2, st.Channels)
	assert.Equal(t, int64(22050*2*16), st.BitRate)
	assert.Equal(t, "1/22050", st.TimeBase)
	title, _ := res.Tags.Get("title")
	assert.Equal(t, "Tone", title)
	assert.Nil(t, res.Picture)
}

func TestOptions_Validate(t *testing.T) {
	assert.NoError(t, Options{Format: "ogg"}.Validate())
	assert.ErrorIs(t, Options{Format: "ogg", FrameSize: -1}.Validate(), media.ErrPrecondition)
	assert.ErrorIs(t, Options{Format: "ogg", Window: media.Window(3, 1)}.Validate(), media.ErrPrecondition)
	assert.NoError(t, Options{Format: "ogg", Tags: map[string]string{"title": "a", "artist": "b"}}.Validate())
}

func TestConvert_TagKeysDifferingOnlyInCase(t *testing.T) {
	g := testutil.NewMediaGeneratorWithSeed(9)
	_, err := Convert(context.Background(), g.Ogg(t, 5, nil), Options{
		Format: "ogg",
		Tags:   map[string]string{"Title": "a", "title": "b"},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrPrecondition)
	assert.Contains(t, err.Error(), `"Title" and "title"`)
}
