package remux

import (
	"log/slog"
	"slices"
	"strings"

	"github.com/jmylchreest/memmux/internal/container"
	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/picture"
)

// composer fills an output's tag dictionary before its header is written.
type composer struct {
	logger *slog.Logger
}

// compose sets inherited tags, then caller tags in key order, then the
// encoded picture under picture.TagKey. A caller tag using the reserved key
// is dropped when a picture is supplied.
func (c composer) compose(out *container.Output, inherited *media.Tags, tags map[string]string, pic *picture.Picture) error {
	var err error
	inherited.Each(func(k, v string) {
		if err == nil {
			err = out.SetTag(k, v)
		}
	})
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if strings.TrimSpace(k) == "" {
			return media.Errorf(media.KindPrecondition, "compose tags", "empty tag key")
		}
		if pic != nil && strings.EqualFold(k, picture.TagKey) {
			c.logger.Warn("ignoring tag reserved for the attached picture", slog.String("key", k))
			continue
		}
		if err := out.SetTag(k, tags[k]); err != nil {
			return err
		}
	}

	if pic == nil {
		return nil
	}
	value, err := pic.EncodeTag()
	if err != nil {
		return media.Wrap(media.KindPrecondition, "compose picture", err)
	}
	if err := out.SetTag(picture.TagKey, value); err != nil {
		return err
	}
	c.logger.Debug("attached picture",
		slog.String("mime", pic.MIME),
		slog.Int("width", int(pic.Width)),
		slog.Int("height", int(pic.Height)),
		slog.Int("bytes", len(pic.Data)))
	return nil
}
