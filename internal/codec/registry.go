package codec

import (
	"fmt"
	"slices"
	"sync"

	"github.com/jmylchreest/memmux/internal/media"
)

// Registry holds decoder and encoder factories keyed by canonical codec.
type Registry struct {
	mu       sync.RWMutex
	decoders map[Audio]DecoderFactory
	encoders map[Audio]EncoderFactory
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		decoders: make(map[Audio]DecoderFactory),
		encoders: make(map[Audio]EncoderFactory),
	}
}

// RegisterDecoder adds or replaces the decoder for a.
func (r *Registry) RegisterDecoder(a Audio, f DecoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.decoders[a] = f
}

// RegisterEncoder adds or replaces the encoder for a.
func (r *Registry) RegisterEncoder(a Audio, f EncoderFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.encoders[a] = f
}

// NewDecoder opens a decoder for params.Codec.
func (r *Registry) NewDecoder(params media.CodecParameters) (Decoder, error) {
	a, ok := ParseAudio(params.Codec)
	if !ok {
		a = Audio(params.Codec)
	}
	r.mu.RLock()
	f, ok := r.decoders[a]
	r.mu.RUnlock()
	if !ok {
		return nil, media.Errorf(media.KindCodec, "open decoder", "no decoder for %q", params.Codec)
	}
	dec, err := f(params)
	if err != nil {
		return nil, media.Wrap(media.KindCodec, "open decoder", fmt.Errorf("opening %s decoder: %w", a, err))
	}
	return dec, nil
}

// NewEncoder opens an encoder for a.
func (r *Registry) NewEncoder(a Audio, cfg EncoderConfig) (Encoder, error) {
	r.mu.RLock()
	f, ok := r.encoders[a]
	r.mu.RUnlock()
	if !ok {
		return nil, media.Errorf(media.KindCodec, "open encoder", "no encoder for %q", a)
	}
	enc, err := f(cfg)
	if err != nil {
		return nil, media.Wrap(media.KindCodec, "open encoder", fmt.Errorf("opening %s encoder: %w", a, err))
	}
	return enc, nil
}

// HasDecoder reports whether a decoder is registered for a.
func (r *Registry) HasDecoder(a Audio) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.decoders[a]
	return ok
}

// HasEncoder reports whether an encoder is registered for a.
func (r *Registry) HasEncoder(a Audio) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.encoders[a]
	return ok
}

// Decoders lists codecs with a registered decoder.
func (r *Registry) Decoders() []Audio {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Audio, 0, len(r.decoders))
	for a := range r.decoders {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// Encoders lists codecs with a registered encoder.
func (r *Registry) Encoders() []Audio {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Audio, 0, len(r.encoders))
	for a := range r.encoders {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy of r.
func (r *Registry) Clone() *Registry {
	c := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for a, f := range r.decoders {
		c.decoders[a] = f
	}
	for a, f := range r.encoders {
		c.encoders[a] = f
	}
	return c
}

// Default is the process-wide registry holding the built-in codecs.
var Default = NewRegistry()

// RegisterDecoder adds a decoder to the default registry.
func RegisterDecoder(a Audio, f DecoderFactory) { Default.RegisterDecoder(a, f) }

// RegisterEncoder adds an encoder to the default registry.
func RegisterEncoder(a Audio, f EncoderFactory) { Default.RegisterEncoder(a, f) }

func init() {
	for _, a := range []Audio{
		AudioPCMS16LE, AudioPCMS16BE, AudioPCMS32LE, AudioPCMU8,
		AudioPCMF32LE, AudioPCMMulaw, AudioPCMAlaw,
	} {
		Default.RegisterDecoder(a, NewPCMDecoder)
		Default.RegisterEncoder(a, pcmEncoderFactory(a))
	}
}
