package container

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bogem/id3v2/v2"

	"github.com/jmylchreest/memmux/internal/media"
	"github.com/jmylchreest/memmux/internal/picture"
)

// wavID3Chunk is the RIFF chunk id carrying an ID3v2 tag, as written by
// ffmpeg and Audacity.
const wavID3Chunk = "id3 "

// id3Tag builds an ID3v2.4 tag for the tags RIFF INFO cannot hold. Plain
// keys become TXXX frames and the reserved picture key an APIC frame.
// It returns nil when every tag has an INFO mapping.
func id3Tag(tags *media.Tags, logger *slog.Logger) ([]byte, error) {
	tag := id3v2.NewEmptyTag()
	tag.SetVersion(4)
	frames := 0
	tags.Each(func(key, value string) {
		if _, ok := infoIDForKey(key); ok {
			return
		}
		frames++
		if strings.EqualFold(key, picture.TagKey) {
			p, err := picture.DecodeTag(value)
			if err == nil {
				tag.AddAttachedPicture(id3v2.PictureFrame{
					Encoding:    id3v2.EncodingUTF8,
					MimeType:    p.MIME,
					PictureType: byte(p.Type),
					Description: p.Description,
					Picture:     p.Data,
				})
				return
			}
			logger.Debug("storing undecodable picture tag as text", slog.String("error", err.Error()))
		}
		tag.AddUserDefinedTextFrame(id3v2.UserDefinedTextFrame{
			Encoding:    id3v2.EncodingUTF8,
			Description: key,
			Value:       value,
		})
	})
	if frames == 0 {
		return nil, nil
	}
	var buf bytes.Buffer
	if _, err := tag.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing ID3 tag: %w", err)
	}
	return buf.Bytes(), nil
}

// parseID3Chunk adds the TXXX and APIC frames of an ID3v2 chunk to tags.
// A damaged chunk is skipped; it never fails the demux.
func parseID3Chunk(b []byte, tags *media.Tags, logger *slog.Logger) {
	tag, err := id3v2.ParseReader(bytes.NewReader(b), id3v2.Options{Parse: true})
	if err != nil {
		logger.Debug("skipping unreadable ID3 chunk", slog.String("error", err.Error()))
		return
	}

	for _, f := range tag.GetFrames(tag.CommonID("User defined text information frame")) {
		if txxx, ok := f.(id3v2.UserDefinedTextFrame); ok && txxx.Description != "" {
			tags.Set(txxx.Description, txxx.Value)
		}
	}
	for _, f := range tag.GetFrames(tag.CommonID("Attached picture")) {
		apic, ok := f.(id3v2.PictureFrame)
		if !ok {
			continue
		}
		value, err := apicTagValue(apic)
		if err != nil {
			logger.Debug("skipping ID3 picture", slog.String("error", err.Error()))
			continue
		}
		tags.Set(picture.TagKey, value)
		break
	}
}

// apicTagValue re-encodes an APIC frame as a picture block, detecting the
// image geometry APIC does not carry.
func apicTagValue(f id3v2.PictureFrame) (string, error) {
	p, err := picture.New(f.Picture, picture.Options{
		Type:        picture.Type(f.PictureType),
		Description: f.Description,
	})
	if err != nil {
		p = &picture.Picture{
			Type:        picture.Type(f.PictureType),
			MIME:        f.MimeType,
			Description: f.Description,
			Data:        f.Picture,
		}
	}
	return p.EncodeTag()
}
