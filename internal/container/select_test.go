package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

func audioStream(index int, def bool, bitRate int64, channels int) *media.Stream {
	st := media.NewStream(index)
	st.Params = media.CodecParameters{Codec: "opus", Kind: media.MediaAudio, BitRate: bitRate, Channels: channels, SampleRate: 48000}
	st.TimeBase = timebase.PerSecond(48000)
	st.Default = def
	return st
}

func TestSelectBestAudioStream(t *testing.T) {
	tests := []struct {
		name    string
		streams []*media.Stream
		want    int
	}{
		{"single", []*media.Stream{audioStream(0, false, 0, 2)}, 0},
		{"default wins over bitrate", []*media.Stream{audioStream(0, false, 256000, 2), audioStream(1, true, 64000, 2)}, 1},
		{"bitrate", []*media.Stream{audioStream(0, false, 64000, 2), audioStream(1, false, 128000, 2)}, 1},
		{"channels break bitrate ties", []*media.Stream{audioStream(0, false, 0, 2), audioStream(1, false, 0, 6)}, 1},
		{"lowest index last", []*media.Stream{audioStream(0, true, 0, 2), audioStream(1, true, 0, 2)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := container.SelectBestAudioStream(tt.streams)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Index)
		})
	}
}

func TestSelectBestAudioStream_None(t *testing.T) {
	video := media.NewStream(0)
	video.Params.Kind = media.MediaVideo
	_, err := container.SelectBestAudioStream([]*media.Stream{video})
	assert.ErrorIs(t, err, media.ErrNoStream)

	_, err = container.SelectBestAudioStream(nil)
	assert.ErrorIs(t, err, media.ErrNoStream)
}
