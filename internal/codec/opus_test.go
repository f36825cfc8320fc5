package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpusHead_MarshalParse(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		family   uint8
	}{
		{"mono", 1, 0},
		{"stereo", 2, 0},
		{"5.1", 6, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head, err := NewOpusHead(tt.channels, 44100, 312)
			require.NoError(t, err)
			b := head.Marshal()
			assert.Equal(t, "OpusHead", string(b[:8]))

			parsed, err := ParseOpusHead(b)
			require.NoError(t, err)
			assert.Equal(t, uint8(tt.channels), parsed.Channels)
			assert.Equal(t, uint16(312), parsed.PreSkip)
			assert.Equal(t, uint32(44100), parsed.InputSampleRate)
			assert.Equal(t, tt.family, parsed.MappingFamily)
			assert.Len(t, parsed.ChannelMapping, map[uint8]int{0: 0, 1: tt.channels}[tt.family])
		})
	}
}

func TestParseOpusHead_Invalid(t *testing.T) {
	_, err := ParseOpusHead([]byte("OpusTags"))
	assert.Error(t, err)

	head, _ := NewOpusHead(6, 48000, 0)
	b := head.Marshal()
	_, err = ParseOpusHead(b[:22])
	assert.Error(t, err)

	_, err = NewOpusHead(9, 48000, 0)
	assert.Error(t, err)
}

func TestOpusPacketSamples(t *testing.T) {
	tests := []struct {
		name    string
		pkt     []byte
		want    int
		wantErr bool
	}{
		{"silk 10ms", []byte{0 << 3}, 480, false},
		{"silk 60ms", []byte{3 << 3}, 2880, false},
		{"hybrid 20ms", []byte{13 << 3}, 960, false},
		{"celt 2.5ms", []byte{16 << 3}, 120, false},
		{"celt 20ms", []byte{31 << 3}, 960, false},
		{"two frames", []byte{31<<3 | 1}, 1920, false},
		{"code 3 three frames", []byte{31<<3 | 3, 3}, 2880, false},
		{"code 3 too long", []byte{3<<3 | 3, 3}, 0, true},
		{"code 3 truncated", []byte{31<<3 | 3}, 0, true},
		{"empty", nil, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := OpusPacketSamples(tt.pkt)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOpusPacket)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMPEGAudioHeader(t *testing.T) {
	// MPEG-1 layer III, 128 kbps, 44.1 kHz, joint stereo
	rate, ch, err := MPEGAudioHeader([]byte{0xFF, 0xFB, 0x90, 0x64})
	require.NoError(t, err)
	assert.Equal(t, 44100, rate)
	assert.Equal(t, 2, ch)

	// MPEG-2, 24 kHz, mono
	rate, ch, err = MPEGAudioHeader([]byte{0xFF, 0xF3, 0x84, 0xC0})
	require.NoError(t, err)
	assert.Equal(t, 24000, rate)
	assert.Equal(t, 1, ch)

	_, _, err = MPEGAudioHeader([]byte{0x00, 0x00, 0x00, 0x00})
	assert.Error(t, err)
}
