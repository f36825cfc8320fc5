package codec

import (
	"testing"

	"github.com/bluenviron/mediacommon/v2/pkg/formats/mp4"
	"github.com/bluenviron/mediacommon/v2/pkg/formats/mpegts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/media"
)

func TestMPEGTSCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		params media.CodecParameters
	}{
		{"aac", media.CodecParameters{Codec: "aac", SampleRate: 44100, Channels: 2}},
		{"opus", media.CodecParameters{Codec: "opus", SampleRate: 48000, Channels: 2}},
		{"ac3", media.CodecParameters{Codec: "ac3", SampleRate: 48000, Channels: 6}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := MPEGTSCodec(tt.params)
			require.NoError(t, err)
			got, ok := ParamsFromMPEGTS(c)
			require.True(t, ok)
			assert.Equal(t, tt.params.Codec, got.Codec)
			assert.Equal(t, tt.params.SampleRate, got.SampleRate)
			assert.Equal(t, tt.params.Channels, got.Channels)
		})
	}
}

func TestMPEGTSCodec_Unsupported(t *testing.T) {
	_, err := MPEGTSCodec(media.CodecParameters{Codec: "pcm_s16le"})
	assert.Error(t, err)
	_, ok := ParamsFromMPEGTS(&mpegts.CodecH264{})
	assert.False(t, ok)
}

func TestMP4Codec_RoundTrip(t *testing.T) {
	c, err := MP4Codec(media.CodecParameters{Codec: "aac", SampleRate: 48000, Channels: 1})
	require.NoError(t, err)
	got, ok := ParamsFromMP4(c)
	require.True(t, ok)
	assert.Equal(t, "aac", got.Codec)
	assert.Equal(t, 48000, got.SampleRate)
	assert.Equal(t, 1, got.Channels)
	assert.NotEmpty(t, got.Extradata)

	_, ok = ParamsFromMP4(&mp4.CodecH264{})
	assert.False(t, ok)
}

func TestOpusParams_CarryHead(t *testing.T) {
	c, err := MP4Codec(media.CodecParameters{Codec: "opus", Extradata: mustHead(t, 1)})
	require.NoError(t, err)
	assert.Equal(t, 1, c.(*mp4.CodecOpus).ChannelCount)
}

func mustHead(t *testing.T, channels int) []byte {
	t.Helper()
	h, err := NewOpusHead(channels, 48000, DefaultOpusPreSkip)
	require.NoError(t, err)
	return h.Marshal()
}

func TestAACConfig_RequiresRateWithoutExtradata(t *testing.T) {
	_, err := AACConfig(media.CodecParameters{Codec: "aac"})
	assert.Error(t, err)
}
