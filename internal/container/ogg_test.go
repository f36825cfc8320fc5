package container_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/testutil"
	"github.com/jmylchreest/memmux/pkg/memio"
)

func TestOgg_RoundTrip(t *testing.T) {
	gen := testutil.NewMediaGeneratorWithSeed(42)
	src := gen.OpusPackets(100)
	data := testutil.Mux(t, "ogg", testutil.OpusStream(), src, testutil.SampleTags)

	in := openInput(t, data)
	assert.Equal(t, "ogg", in.FormatName())
	require.Len(t, in.Streams(), 1)
	st := in.Streams()[0]
	assert.Equal(t, "opus", st.Params.Codec)
	assert.Equal(t, 48000, st.Params.SampleRate)
	assert.Equal(t, 2, st.Params.Channels)
	assert.Equal(t, codec.DefaultOpusPreSkip, st.Params.InitialPadding)

	head, err := codec.ParseOpusHead(st.Params.Extradata)
	require.NoError(t, err)
	assert.Equal(t, uint16(codec.DefaultOpusPreSkip), head.PreSkip)

	assert.Equal(t, testutil.SampleTags["title"], mustTag(t, in.Tags(), "title"))
	assert.Equal(t, testutil.SampleTags["artist"], mustTag(t, in.Tags(), "ARTIST"))

	pkts := readAll(t, in)
	require.Len(t, pkts, len(src))
	for i, p := range pkts {
		assert.Equal(t, src[i].Data, p.Data, "packet %d", i)
		assert.Equal(t, src[i].PTS, p.PTS, "packet %d", i)
		assert.Equal(t, int64(testutil.OpusFrameSamples), p.Duration)
	}
	assert.Equal(t, int64(100*testutil.OpusFrameSamples), st.Duration)
}

func TestOgg_LargeTagsSpanPages(t *testing.T) {
	gen := testutil.NewMediaGeneratorWithSeed(1)
	cover := bytes.Repeat([]byte("A"), 200_000)
	data := testutil.Mux(t, "ogg", testutil.OpusStream(), gen.OpusPackets(5),
		map[string]string{"METADATA_BLOCK_PICTURE": string(cover)})

	in := openInput(t, data)
	assert.Equal(t, string(cover), mustTag(t, in.Tags(), "metadata_block_picture"))
	assert.Len(t, readAll(t, in), 5)
}

func TestOgg_CorruptPageRejected(t *testing.T) {
	gen := testutil.NewMediaGeneratorWithSeed(3)
	data := gen.Ogg(t, 2, nil)
	// Flip a byte inside the first page payload.
	data[30] ^= 0xFF

	_, err := container.OpenInput(memio.NewReader(data), container.InputConfig{})
	require.Error(t, err)
	assert.ErrorIs(t, err, media.ErrProbe)
}

func TestOgg_SynthesisesOpusHead(t *testing.T) {
	gen := testutil.NewMediaGeneratorWithSeed(5)
	st := testutil.OpusStream()
	st.Params.Channels = 6
	st.Params.InitialPadding = 0
	data := testutil.Mux(t, "ogg", st, gen.OpusPackets(3), nil)

	in := openInput(t, data)
	head, err := codec.ParseOpusHead(in.Streams()[0].Params.Extradata)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), head.Channels)
	assert.Equal(t, uint8(1), head.MappingFamily)
	assert.Equal(t, uint16(codec.DefaultOpusPreSkip), head.PreSkip)
}

func mustTag(t *testing.T, tags *media.Tags, key string) string {
	t.Helper()
	v, ok := tags.Get(key)
	require.True(t, ok, "missing tag %q", key)
	return v
}
