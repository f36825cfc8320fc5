// Package testutil provides test utilities including synthetic media
// generation. Inputs are built in memory; there are no fixture files.
package testutil

import (
	"encoding/binary"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/memio"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// OpusTOC20ms is a TOC byte for a single 20ms CELT fullband frame.
const OpusTOC20ms = 0xF8

// OpusFrameSamples is the duration of a generated Opus packet at 48 kHz.
const OpusFrameSamples = 960

// SampleTags are fictional tags used across tests.
var SampleTags = map[string]string{
	"title":  "Harbour Lights",
	"artist": "The Quiet Engines",
	"album":  "Signal and Noise",
}

// MediaGenerator generates synthetic audio payloads.
type MediaGenerator struct {
	rng *rand.Rand
}

// NewMediaGenerator creates a new generator with a random seed.
func NewMediaGenerator() *MediaGenerator {
	return &MediaGenerator{
		rng: rand.New(rand.NewSource(rand.Int63())),
	}
}

// NewMediaGeneratorWithSeed creates a new generator with a specific seed for
// reproducible output.
func NewMediaGeneratorWithSeed(seed int64) *MediaGenerator {
	return &MediaGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// OpusPacket returns a structurally valid Opus packet of one 20ms frame.
// The payload is noise; it is only ever copied, never decoded.
func (g *MediaGenerator) OpusPacket() []byte {
	pkt := make([]byte, 1+20+g.rng.Intn(40))
	pkt[0] = OpusTOC20ms
	for i := 1; i < len(pkt); i++ {
		pkt[i] = byte(g.rng.Intn(256))
	}
	return pkt
}

// NoisePCM16 returns interleaved s16le noise.
func (g *MediaGenerator) NoisePCM16(samples, channels int) []byte {
	out := make([]byte, samples*channels*2)
	for i := 0; i < len(out); i += 2 {
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(g.rng.Intn(65536)-32768)))
	}
	return out
}

// SinePCM16 returns an interleaved s16le sine tone at half scale.
func SinePCM16(rate, channels, samples int, freq float64) []byte {
	out := make([]byte, samples*channels*2)
	for i := range samples {
		v := int16(math.Sin(2*math.Pi*freq*float64(i)/float64(rate)) * 16384)
		for c := range channels {
			binary.LittleEndian.PutUint16(out[(i*channels+c)*2:], uint16(v))
		}
	}
	return out
}

// WAV builds a canonical 16-bit PCM RIFF/WAVE file with an optional
// LIST/INFO title.
func WAV(rate, channels int, pcm []byte, title string) []byte {
	var info []byte
	if title != "" {
		value := append([]byte(title), 0)
		if len(value)%2 == 1 {
			value = append(value, 0)
		}
		info = append(info, "INFO"...)
		info = append(info, "INAM"...)
		info = binary.LittleEndian.AppendUint32(info, uint32(len(title)+1))
		info = append(info, value...)
	}

	out := []byte("RIFF")
	size := 4 + 8 + 16 + 8 + len(pcm)
	if info != nil {
		size += 8 + len(info)
	}
	out = binary.LittleEndian.AppendUint32(out, uint32(size))
	out = append(out, "WAVEfmt "...)
	out = binary.LittleEndian.AppendUint32(out, 16)
	out = binary.LittleEndian.AppendUint16(out, codec.WAVFormatPCM)
	out = binary.LittleEndian.AppendUint16(out, uint16(channels))
	out = binary.LittleEndian.AppendUint32(out, uint32(rate))
	out = binary.LittleEndian.AppendUint32(out, uint32(rate*channels*2))
	out = binary.LittleEndian.AppendUint16(out, uint16(channels*2))
	out = binary.LittleEndian.AppendUint16(out, 16)
	if info != nil {
		out = append(out, "LIST"...)
		out = binary.LittleEndian.AppendUint32(out, uint32(len(info)))
		out = append(out, info...)
	}
	out = append(out, "data"...)
	out = binary.LittleEndian.AppendUint32(out, uint32(len(pcm)))
	return append(out, pcm...)
}

// OpusStream describes a stereo 48 kHz Opus stream without OpusHead.
func OpusStream() *media.Stream {
	st := media.NewStream(0)
	st.Params = media.CodecParameters{
		Codec:          string(codec.AudioOpus),
		Kind:           media.MediaAudio,
		SampleRate:     codec.OpusSampleRate,
		Channels:       2,
		ChannelLayout:  media.LayoutStereo,
		InitialPadding: codec.DefaultOpusPreSkip,
	}
	st.TimeBase = timebase.PerSecond(codec.OpusSampleRate)
	st.Default = true
	return st
}

// OpusPackets returns n consecutive 20ms packets in a 1/48000 time base.
func (g *MediaGenerator) OpusPackets(n int) []*media.Packet {
	pkts := make([]*media.Packet, n)
	for i := range pkts {
		pts := int64(i * OpusFrameSamples)
		pkts[i] = &media.Packet{
			PTS:      pts,
			DTS:      pts,
			Duration: OpusFrameSamples,
			Keyframe: true,
			Data:     g.OpusPacket(),
		}
	}
	return pkts
}

// Mux writes pkts for a single stream into the named format and returns
// the container bytes. Packet timestamps are in st.TimeBase.
func Mux(tb testing.TB, format string, st *media.Stream, pkts []*media.Packet, tags map[string]string) []byte {
	tb.Helper()
	w := memio.NewWriter(0)
	out, err := container.OpenOutput(format, w, container.OutputConfig{})
	require.NoError(tb, err)
	ost, err := out.AddStream(st)
	require.NoError(tb, err)
	for k, v := range tags {
		require.NoError(tb, out.SetTag(k, v))
	}
	require.NoError(tb, out.WriteHeader())
	for _, p := range pkts {
		cp := *p
		cp.StreamIndex = ost.Index
		cp.RescaleTS(st.TimeBase, ost.TimeBase)
		require.NoError(tb, out.WritePacket(&cp))
	}
	require.NoError(tb, out.WriteTrailer())
	require.NoError(tb, out.Close())
	data, err := w.Bytes()
	require.NoError(tb, err)
	return data
}

// Ogg builds an Ogg Opus file of n packets.
func (g *MediaGenerator) Ogg(tb testing.TB, n int, tags map[string]string) []byte {
	tb.Helper()
	return Mux(tb, "ogg", OpusStream(), g.OpusPackets(n), tags)
}

// WebM builds a WebM file with one Opus track of n packets.
func (g *MediaGenerator) WebM(tb testing.TB, n int, tags map[string]string) []byte {
	tb.Helper()
	return Mux(tb, "webm", OpusStream(), g.OpusPackets(n), tags)
}
