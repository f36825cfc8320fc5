package container_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/testutil"
	"github.com/jmylchreest/memmux/pkg/memio"
	"github.com/jmylchreest/memmux/pkg/timebase"
)

// writeHeaderError opens an output with one stream and returns the
// WriteHeader error.
func writeHeaderError(t *testing.T, format string, st *media.Stream) error {
	t.Helper()
	out, err := container.OpenOutput(format, memio.NewWriter(0), container.OutputConfig{})
	require.NoError(t, err)
	defer out.Close()
	_, err = out.AddStream(st)
	require.NoError(t, err)
	return out.WriteHeader()
}

func TestOpenInput_Errors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		cfg  container.InputConfig
		want error
	}{
		{"empty", nil, container.InputConfig{}, media.ErrOpen},
		{"unrecognised", []byte("this is plain text, not a container"), container.InputConfig{}, media.ErrOpen},
		{"unknown forced format", []byte("RIFF"), container.InputConfig{Format: "avi"}, media.ErrUnsupportedFormat},
		{"truncated wav", []byte("RIFF\x24\x00\x00\x00WAVEfmt "), container.InputConfig{}, media.ErrProbe},
		{"wav without data", testutil.WAV(8000, 1, nil, "")[:36], container.InputConfig{}, media.ErrProbe},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := container.OpenInput(memio.NewReader(tt.data), tt.cfg)
			require.Error(t, err)
			assert.Nil(t, in)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestOpenInput_ForcedFormat(t *testing.T) {
	data := testutil.WAV(8000, 1, make([]byte, 320), "")
	in, err := container.OpenInput(memio.NewReader(data), container.InputConfig{Format: "wave"})
	require.NoError(t, err)
	defer in.Close()
	assert.Equal(t, "wav", in.FormatName())
	assert.Equal(t, int64(len(data)), in.Size())
	assert.Equal(t, int64(20_000), in.Duration())
	assert.Positive(t, in.BitRate())
}

func TestInput_CloseIsIdempotent(t *testing.T) {
	in := openInput(t, testutil.WAV(8000, 1, make([]byte, 320), ""))
	require.NoError(t, in.Close())
	require.NoError(t, in.Close())
}

func pcmStream() *media.Stream {
	st := media.NewStream(0)
	st.Params = media.CodecParameters{
		Codec:        "pcm_s16le",
		Kind:         media.MediaAudio,
		SampleRate:   8000,
		Channels:     1,
		SampleFormat: media.SampleFormatS16,
	}
	st.TimeBase = timebase.PerSecond(8000)
	return st
}

func TestOutput_StateMachine(t *testing.T) {
	w := memio.NewWriter(0)
	out, err := container.OpenOutput("wav", w, container.OutputConfig{})
	require.NoError(t, err)

	pkt := &media.Packet{PTS: 0, Duration: 2, Data: []byte{1, 0, 2, 0}}
	assert.ErrorIs(t, out.WritePacket(pkt), media.ErrPrecondition)
	assert.ErrorIs(t, out.WriteTrailer(), media.ErrPrecondition)
	assert.ErrorIs(t, out.WriteHeader(), media.ErrMux, "no streams")

	_, err = out.AddStream(pcmStream())
	require.NoError(t, err)
	require.NoError(t, out.WriteHeader())
	assert.ErrorIs(t, out.WriteHeader(), media.ErrPrecondition)
	_, err = out.AddStream(pcmStream())
	assert.ErrorIs(t, err, media.ErrPrecondition)
	assert.ErrorIs(t, out.SetTag("title", "late"), media.ErrPrecondition)

	assert.ErrorIs(t, out.WritePacket(&media.Packet{StreamIndex: 3}), media.ErrPrecondition)
	require.NoError(t, out.WritePacket(pkt))
	require.NoError(t, out.WriteTrailer())
	assert.ErrorIs(t, out.WriteTrailer(), media.ErrPrecondition)
	assert.ErrorIs(t, out.WritePacket(pkt), media.ErrPrecondition)

	_, err = w.Bytes()
	assert.ErrorIs(t, err, memio.ErrNotFinalized)
	require.NoError(t, out.Close())
	require.NoError(t, out.Close())
	data, err := w.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data[:4]))
}

func TestOutput_UnsupportedCodec(t *testing.T) {
	err := writeHeaderError(t, "ogg", pcmStream())
	assert.ErrorIs(t, err, media.ErrMux)
}

func TestOutput_TagsOnTaglessFormat(t *testing.T) {
	tests := []struct {
		name   string
		strict bool
		want   error
	}{
		{"strict", true, media.ErrMux},
		{"lenient", false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := container.OpenOutput("mpegts", memio.NewWriter(0), container.OutputConfig{Strict: tt.strict})
			require.NoError(t, err)
			defer out.Close()
			_, err = out.AddStream(testutil.OpusStream())
			require.NoError(t, err)
			require.NoError(t, out.SetTag("title", "dropped"))
			err = out.WriteHeader()
			if tt.want == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.want)
			}
		})
	}
}

func TestOutput_MuxerSetsTimeBase(t *testing.T) {
	tests := []struct {
		format string
		want   timebase.Rational
	}{
		{"webm", timebase.New(1, 1000)},
		{"ogg", timebase.PerSecond(48000)},
		{"mpegts", timebase.MPEGTS},
		{"mp4", timebase.PerSecond(48000)},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			out, err := container.OpenOutput(tt.format, memio.NewWriter(0), container.OutputConfig{})
			require.NoError(t, err)
			defer out.Close()
			st, err := out.AddStream(testutil.OpusStream())
			require.NoError(t, err)
			require.NoError(t, out.WriteHeader())
			assert.True(t, st.TimeBase.Equal(tt.want), "got %s", st.TimeBase)
		})
	}
}

func TestSession_Close(t *testing.T) {
	in := openInput(t, testutil.WAV(8000, 1, make([]byte, 320), ""))
	w := memio.NewWriter(0)
	out, err := container.OpenOutput("wav", w, container.OutputConfig{})
	require.NoError(t, err)

	s := &container.Session{Input: in, Output: out}
	require.NoError(t, s.Close())
	assert.True(t, w.Closed())
}
