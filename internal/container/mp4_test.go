package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/testutil"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

func TestMP4_RoundTrip(t *testing.T) {
	gen := testutil.NewMediaGeneratorWithSeed(31)
	src := gen.OpusPackets(120) // spans three fragments
	data := testutil.Mux(t, "mp4", testutil.OpusStream(), src, testutil.SampleTags)
	require.Equal(t, "ftyp", string(data[4:8]))

	in := openInput(t, data)
	assert.Equal(t, "mp4", in.FormatName())
	require.Len(t, in.Streams(), 1)
	st := in.Streams()[0]
	assert.Equal(t, "opus", st.Params.Codec)
	assert.True(t, st.TimeBase.Equal(timebase.PerSecond(48000)))
	assert.Zero(t, in.Tags().Len())

	pkts := readAll(t, in)
	require.Len(t, pkts, len(src))
	for i, p := range pkts {
		assert.Equal(t, src[i].Data, p.Data, "packet %d", i)
		assert.Equal(t, src[i].PTS, p.PTS, "packet %d", i)
	}
}
