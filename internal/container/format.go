// Package container implements the container half of the media engine:
// demuxers and muxers for the supported formats, a registry to find them by
// name or by probing, and the Input/Output sessions that bind them to
// in-memory byte streams.
package container

import (
	"io"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/media"
)

// ProbeSize is the number of leading bytes offered to InputFormat.Probe.
const ProbeSize = 4096

// Probe scores.
const (
	ProbeScoreNone      = 0
	ProbeScoreExtension = 50
	ProbeScoreMax       = 100
)

// Format describes a container format.
type Format interface {
	Name() string
	LongName() string
	Aliases() []string
	Extensions() []string
	MIMEType() string
}

// InputFormat is a format that can be demuxed.
type InputFormat interface {
	Format
	// Probe scores how likely head is the start of this format, 0 to 100.
	Probe(head []byte) int
	NewDemuxer(r io.ReadSeeker, logger *slog.Logger) Demuxer
}

// OutputFormat is a format that can be muxed.
type OutputFormat interface {
	Format
	Supports(a codec.Audio) bool
	// DefaultCodec is the codec chosen when transcoding without a target codec.
	DefaultCodec() codec.Audio
	// CarriesTags reports whether container tags survive muxing.
	CarriesTags() bool
	NewMuxer(w io.Writer, logger *slog.Logger) Muxer
}

// Header is the result of reading a container header.
type Header struct {
	Streams []*media.Stream
	Tags    *media.Tags
	// Duration in microseconds, 0 when unknown.
	Duration int64
}

// Demuxer reads packets from one container.
type Demuxer interface {
	ReadHeader() (*Header, error)
	// ReadPacket returns the next packet, or io.EOF at the end of data.
	ReadPacket() (*media.Packet, error)
	Close() error
}

// Muxer writes packets into one container.
type Muxer interface {
	// WriteHeader fixes the stream layout. Muxers may replace each
	// stream's TimeBase; packets must be rescaled to it afterwards.
	WriteHeader(streams []*media.Stream, tags *media.Tags) error
	WritePacket(pkt *media.Packet) error
	WriteTrailer() error
}

// Registry holds the known formats.
type Registry struct {
	mu      sync.RWMutex
	formats []Format
	byName  map[string]Format
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]Format)}
}

// Register adds a format under its name and aliases.
func (r *Registry) Register(f Format) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.formats = append(r.formats, f)
	r.byName[strings.ToLower(f.Name())] = f
	for _, alias := range f.Aliases() {
		r.byName[strings.ToLower(alias)] = f
	}
}

// Lookup returns the format registered under name or alias.
func (r *Registry) Lookup(name string) (Format, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.byName[strings.ToLower(strings.TrimSpace(name))]
	return f, ok
}

// Output returns the output format registered under name.
func (r *Registry) Output(name string) (OutputFormat, error) {
	f, ok := r.Lookup(name)
	if !ok {
		return nil, media.Errorf(media.KindUnsupportedFormat, "open output", "unknown format %q", name)
	}
	of, ok := f.(OutputFormat)
	if !ok {
		return nil, media.Errorf(media.KindUnsupportedFormat, "open output", "format %q cannot be written", name)
	}
	return of, nil
}

// ForFilename guesses the output format from a file extension.
func (r *Registry) ForFilename(name string) (OutputFormat, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return nil, false
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, f := range r.formats {
		of, ok := f.(OutputFormat)
		if ok && slices.Contains(f.Extensions(), ext) {
			return of, true
		}
	}
	return nil, false
}

// Probe returns the input format scoring highest for head.
func (r *Registry) Probe(head []byte) (InputFormat, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var best InputFormat
	bestScore := ProbeScoreNone
	for _, f := range r.formats {
		in, ok := f.(InputFormat)
		if !ok {
			continue
		}
		if score := in.Probe(head); score > bestScore {
			best, bestScore = in, score
		}
	}
	return best, bestScore
}

// Formats lists registered formats ordered by name.
func (r *Registry) Formats() []Format {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := slices.Clone(r.formats)
	slices.SortFunc(out, func(a, b Format) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// Default is the registry holding the built-in formats.
var Default = NewRegistry()

func init() {
	Default.Register(webmFormat{})
	Default.Register(matroskaFormat{})
	Default.Register(oggFormat{})
	Default.Register(mpegtsFormat{})
	Default.Register(mp4Format{})
	Default.Register(wavFormat{})
}
