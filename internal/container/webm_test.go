package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/testutil"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

func TestWebM_RoundTrip(t *testing.T) {
	gen := testutil.NewMediaGeneratorWithSeed(11)
	src := gen.OpusPackets(400) // 8 seconds, more than one cluster
	data := testutil.Mux(t, "webm", testutil.OpusStream(), src, testutil.SampleTags)

	in := openInput(t, data)
	assert.Equal(t, "webm", in.FormatName())
	require.Len(t, in.Streams(), 1)
	st := in.Streams()[0]
	assert.Equal(t, "opus", st.Params.Codec)
	assert.Equal(t, 48000, st.Params.SampleRate)
	assert.Equal(t, codec.DefaultOpusPreSkip, st.Params.InitialPadding)
	assert.True(t, st.TimeBase.Equal(timebase.New(1, 1000)))
	assert.True(t, st.Default)

	for k, v := range testutil.SampleTags {
		assert.Equal(t, v, mustTag(t, in.Tags(), k))
	}
	assert.InDelta(t, 8_000_000, in.Duration(), 1000)

	pkts := readAll(t, in)
	require.Len(t, pkts, len(src))
	for i, p := range pkts {
		assert.Equal(t, src[i].Data, p.Data, "packet %d", i)
		assert.Equal(t, int64(i*20), p.PTS, "packet %d", i)
		assert.Equal(t, int64(20), p.Duration)
	}
}

func TestMatroska_PCMRoundTrip(t *testing.T) {
	pcm := testutil.SinePCM16(8000, 1, 800, 300)
	src := openInput(t, testutil.WAV(8000, 1, pcm, ""))
	data := testutil.Mux(t, "mka", src.Streams()[0], readAll(t, src), nil)

	in := openInput(t, data)
	assert.Equal(t, "matroska", in.FormatName())
	st := in.Streams()[0]
	assert.Equal(t, "pcm_s16le", st.Params.Codec)
	assert.Equal(t, 8000, st.Params.SampleRate)
	assert.Equal(t, 16, st.Params.BitsPerSample)

	var joined []byte
	for _, p := range readAll(t, in) {
		joined = append(joined, p.Data...)
	}
	assert.Equal(t, pcm, joined)
}

func TestWebM_RejectsPCM(t *testing.T) {
	f, err := container.Default.Output("webm")
	require.NoError(t, err)
	assert.False(t, f.Supports(codec.AudioPCMS16LE))
	assert.True(t, f.Supports(codec.AudioVorbis))

	st := media.NewStream(0)
	st.Params = media.CodecParameters{Codec: "pcm_s16le", SampleRate: 8000, Channels: 1}
	st.TimeBase = timebase.PerSecond(8000)
	err = writeHeaderError(t, "webm", st)
	assert.ErrorIs(t, err, media.ErrMux)
}
