package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/memmux/internal/media"
)

func TestDefaultRegistry_BuiltIns(t *testing.T) {
	for _, a := range []Audio{AudioPCMS16LE, AudioPCMU8, AudioPCMMulaw, AudioPCMAlaw} {
		assert.True(t, Default.HasDecoder(a), a)
		assert.True(t, Default.HasEncoder(a), a)
	}
	assert.False(t, Default.HasDecoder(AudioOpus))
	assert.Contains(t, Default.Encoders(), AudioPCMF32LE)
}

func TestRegistry_MissingCodecIsCodecError(t *testing.T) {
	r := NewRegistry()
	_, err := r.NewDecoder(media.CodecParameters{Codec: "opus"})
	assert.ErrorIs(t, err, media.ErrCodec)
	assert.Contains(t, err.Error(), "no decoder")

	_, err = r.NewEncoder(AudioAAC, EncoderConfig{})
	assert.ErrorIs(t, err, media.ErrCodec)
	assert.Contains(t, err.Error(), "no encoder")
}

func TestRegistry_FactoryErrorIsCodecError(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("boom")
	r.RegisterDecoder(AudioOpus, func(media.CodecParameters) (Decoder, error) { return nil, boom })

	_, err := r.NewDecoder(media.CodecParameters{Codec: "libopus"})
	assert.ErrorIs(t, err, media.ErrCodec)
	assert.ErrorIs(t, err, boom)
}

func TestRegistry_CloneIsIndependent(t *testing.T) {
	c := Default.Clone()
	c.RegisterDecoder(AudioOpus, func(media.CodecParameters) (Decoder, error) { return nil, nil })
	assert.True(t, c.HasDecoder(AudioOpus))
	assert.False(t, Default.HasDecoder(AudioOpus))
	require.Equal(t, Default.Encoders(), c.Encoders())
}
