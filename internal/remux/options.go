// Package remux drives conversions between in-memory containers. It wires
// the container session to the stream copy engine or the transcode engine,
// lets the metadata composer fill the output tags and returns the produced
// bytes.
package remux

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/picture"
	"github.com/jmylchreest/memmux/pkg/duration"
)

// Mode is how the selected stream reaches the output.
type Mode string

// Conversion modes.
const (
	ModeCopy      Mode = "copy"
	ModeTranscode Mode = "transcode"
)

// Options describe one conversion.
type Options struct {
	// Format is the target container name or alias (webm, ogg, mp4, ...).
	Format string
	// Codec forces a target codec. Empty copies the source codec.
	Codec string
	// InputFormat skips probing and opens the input with this demuxer.
	InputFormat string

	Window media.TimeWindow

	// Tags are written to the output container.
	Tags map[string]string
	// CopyTags carries the input container's tags over before Tags apply.
	CopyTags bool

	// Picture is an optional encoded image embedded as cover art.
	Picture        []byte
	PictureOptions picture.Options

	// FrameSize and BitRate configure the encoder in transcode mode.
	FrameSize int
	BitRate   int64

	// Strict fails instead of dropping tags the target cannot carry.
	Strict bool
}

// Validate checks options that can be rejected before any input is read.
func (o Options) Validate() error {
	if strings.TrimSpace(o.Format) == "" {
		return media.Errorf(media.KindUnsupportedFormat, "validate options", "no output format given")
	}
	if o.Codec != "" {
		if _, ok := codec.ParseAudio(o.Codec); !ok {
			return media.Errorf(media.KindUnsupportedFormat, "validate options", "unknown codec %q", o.Codec)
		}
	}
	if err := o.Window.Validate(); err != nil {
		return err
	}
	if err := validateTagKeys(o.Tags); err != nil {
		return err
	}
	if o.FrameSize < 0 {
		return media.Errorf(media.KindPrecondition, "validate options", "frame size %d is negative", o.FrameSize)
	}
	return nil
}

// Config holds the collaborators a Converter works with.
type Config struct {
	Logger  *slog.Logger
	Formats *container.Registry
	Codecs  *codec.Registry
}

// Result is the outcome of a conversion.
type Result struct {
	SessionID string
	Data      []byte
	Format    string
	Codec     string
	Mode      Mode
	// InputStream is the index of the selected input stream.
	InputStream int
	Packets     int64
	// Duration of the written stream in microseconds.
	Duration int64
}

// String summarises the result for logs.
func (r *Result) String() string {
	return fmt.Sprintf("%s %s/%s (%d bytes, %d packets)", r.Mode, r.Format, r.Codec, len(r.Data), r.Packets)
}

// ParseWindow builds a time window from textual start and end positions.
// Empty positions leave that bound unset.
func ParseWindow(start, end string) (media.TimeWindow, error) {
	s, e := -1.0, -1.0
	var err error
	if strings.TrimSpace(start) != "" {
		if s, err = duration.ParseTimestamp(start); err != nil {
			return media.TimeWindow{}, media.Wrap(media.KindPrecondition, "parse start", err)
		}
	}
	if strings.TrimSpace(end) != "" {
		if e, err = duration.ParseTimestamp(end); err != nil {
			return media.TimeWindow{}, media.Wrap(media.KindPrecondition, "parse end", err)
		}
	}
	w := media.Window(s, e)
	if err := w.Validate(); err != nil {
		return media.TimeWindow{}, err
	}
	return w, nil
}

// validateTagKeys rejects keys that tag dictionaries would merge: tag keys
// compare case-insensitively and a map has no order to pick a winner by.
func validateTagKeys(tags map[string]string) error {
	seen := make(map[string]string, len(tags))
	for k := range tags {
		folded := strings.ToLower(k)
		if prev, ok := seen[folded]; ok {
			a, b := min(prev, k), max(prev, k)
			return media.Errorf(media.KindPrecondition, "validate options", "tag keys %q and %q differ only in case", a, b)
		}
		seen[folded] = k
	}
	return nil
}

// ParseTags turns KEY=VALUE pairs into a tag map. Keys compare
// case-insensitively and later pairs win, keeping the later spelling.
func ParseTags(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	tags := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		key, value, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, media.Errorf(media.KindPrecondition, "parse tags", "tag %q is not KEY=VALUE", pair)
		}
		for k := range tags {
			if strings.EqualFold(k, key) {
				delete(tags, k)
			}
		}
		tags[key] = value
	}
	return tags, nil
}
