package container_test

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/picture"
	"github.com/jmylchreest/memmux/internal/testutil"
	"github.com/jmylchreest/memmux/pkg/memio"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// readAll drains an input.
func readAll(t *testing.T, in *container.Input) []*media.Packet {
	t.Helper()
	var pkts []*media.Packet
	for {
		pkt, err := in.ReadPacket()
		if err == io.EOF {
			return pkts
		}
		require.NoError(t, err)
		pkts = append(pkts, pkt)
	}
}

func openInput(t *testing.T, data []byte) *container.Input {
	t.Helper()
	in, err := container.OpenInput(memio.NewReader(data), container.InputConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = in.Close() })
	return in
}

func TestWAV_Demux(t *testing.T) {
	pcm := testutil.SinePCM16(8000, 2, 2500, 440)
	in := openInput(t, testutil.WAV(8000, 2, pcm, "Tone"))

	assert.Equal(t, "wav", in.FormatName())
	require.Len(t, in.Streams(), 1)
	st := in.Streams()[0]
	assert.Equal(t, "pcm_s16le", st.Params.Codec)
	assert.Equal(t, 8000, st.Params.SampleRate)
	assert.Equal(t, 2, st.Params.Channels)
	assert.Equal(t, media.SampleFormatS16, st.Params.SampleFormat)
	assert.True(t, st.TimeBase.Equal(timebase.PerSecond(8000)))
	assert.Equal(t, int64(2500), st.Duration)
	assert.Equal(t, int64(8000*2*16), st.Params.BitRate)

	title, ok := in.Tags().Get("title")
	require.True(t, ok)
	assert.Equal(t, "Tone", title)

	pkts := readAll(t, in)
	require.Len(t, pkts, 3)
	assert.Equal(t, int64(0), pkts[0].PTS)
	assert.Equal(t, int64(1024), pkts[1].PTS)
	assert.Equal(t, int64(2048), pkts[2].PTS)
	assert.Equal(t, int64(452), pkts[2].Duration)

	var joined []byte
	for _, p := range pkts {
		joined = append(joined, p.Data...)
	}
	assert.Equal(t, pcm, joined)
}

func TestWAV_RoundTrip(t *testing.T) {
	pcm := testutil.SinePCM16(16000, 1, 4000, 1000)
	src := openInput(t, testutil.WAV(16000, 1, pcm, ""))
	pkts := readAll(t, src)

	data := testutil.Mux(t, "wav", src.Streams()[0], pkts, map[string]string{
		"title":    "Harbour Lights",
		"artist":   "The Quiet Engines",
		"mood":     "unmapped",
		"encoder":  "memmux",
		"language": "unmapped too",
	})

	in := openInput(t, data)
	st := in.Streams()[0]
	assert.Equal(t, int64(4000), st.Duration)
	tags := in.Tags().Map()
	assert.Equal(t, map[string]string{
		"title":   "Harbour Lights",
		"artist":  "The Quiet Engines",
		"encoder": "memmux",
	}, tags)

	var joined []byte
	for _, p := range readAll(t, in) {
		joined = append(joined, p.Data...)
	}
	assert.Equal(t, pcm, joined)
}

func TestWAV_Supports(t *testing.T) {
	f, err := container.Default.Output("wav")
	require.NoError(t, err)
	for _, a := range []codec.Audio{codec.AudioPCMS16LE, codec.AudioPCMU8, codec.AudioPCMF32LE, codec.AudioPCMMulaw, codec.AudioPCMAlaw} {
		assert.True(t, f.Supports(a), a)
	}
	for _, a := range []codec.Audio{codec.AudioOpus, codec.AudioPCMS16BE, codec.AudioMP3} {
		assert.False(t, f.Supports(a), a)
	}
}

func TestWAV_G711RoundTrip(t *testing.T) {
	st := media.NewStream(0)
	st.Params = media.CodecParameters{
		Codec:      string(codec.AudioPCMAlaw),
		Kind:       media.MediaAudio,
		SampleRate: 8000,
		Channels:   1,
	}
	st.TimeBase = timebase.PerSecond(8000)
	payload := []byte{0xD5, 0x55, 0xAA, 0x2A, 0xD5}
	data := testutil.Mux(t, "wav", st, []*media.Packet{{PTS: 0, Duration: 5, Keyframe: true, Data: payload}}, nil)

	in := openInput(t, data)
	got := in.Streams()[0]
	assert.Equal(t, "pcm_alaw", got.Params.Codec)
	assert.Equal(t, 8, got.Params.BitsPerSample)
	pkts := readAll(t, in)
	require.Len(t, pkts, 1)
	assert.Equal(t, payload, pkts[0].Data)
}

func TestWAV_UnmappedTagsRoundTripThroughID3(t *testing.T) {
	st := media.NewStream(0)
	st.Params = media.CodecParameters{
		Codec:      string(codec.AudioPCMS16LE),
		Kind:       media.MediaAudio,
		SampleRate: 8000,
		Channels:   1,
	}
	st.TimeBase = timebase.PerSecond(8000)
	payload := make([]byte, 64)
	tags := map[string]string{
		"title":           "Tone",
		"mood":            "calm",
		"REPLAYGAIN_GAIN": "-3.2 dB",
		picture.TagKey:    "not a picture block",
	}
	data := testutil.Mux(t, "wav", st, []*media.Packet{{PTS: 0, Duration: 32, Keyframe: true, Data: payload}}, tags)

	in := openInput(t, data)
	for k, want := range tags {
		got, ok := in.Tags().Get(k)
		require.True(t, ok, k)
		assert.Equal(t, want, got, k)
	}
	pkts := readAll(t, in)
	require.Len(t, pkts, 1)
	assert.Equal(t, payload, pkts[0].Data)
}

func TestWAV_MappedTagsWriteNoID3Chunk(t *testing.T) {
	st := media.NewStream(0)
	st.Params = media.CodecParameters{
		Codec:      string(codec.AudioPCMU8),
		Kind:       media.MediaAudio,
		SampleRate: 8000,
		Channels:   1,
	}
	st.TimeBase = timebase.PerSecond(8000)
	data := testutil.Mux(t, "wav", st, []*media.Packet{{PTS: 0, Duration: 4, Keyframe: true, Data: []byte{1, 2, 3, 4}}},
		map[string]string{"title": "Tone", "artist": "memmux"})
	assert.NotContains(t, string(data), "id3 ")
}
