package remux

import (
	"slices"

	"github.com/jmylchreest/memmux/internal/codec"
	"github.com/jmylchreest/memmux/internal/container"
)

// FormatInfo describes a registered container format.
type FormatInfo struct {
	Name         string   `json:"name"`
	LongName     string   `json:"long_name"`
	Aliases      []string `json:"aliases,omitempty"`
	Extensions   []string `json:"extensions,omitempty"`
	MIMEType     string   `json:"mime_type"`
	Demux        bool     `json:"demux"`
	Mux          bool     `json:"mux"`
	DefaultCodec string   `json:"default_codec,omitempty"`
	CarriesTags  bool     `json:"carries_tags"`
	// Codecs lists the codecs the muxer accepts.
	Codecs []string `json:"codecs,omitempty"`
}

// CodecInfo describes a known audio codec.
type CodecInfo struct {
	Name     string   `json:"name"`
	LongName string   `json:"long_name"`
	Aliases  []string `json:"aliases,omitempty"`
	Decode   bool     `json:"decode"`
	Encode   bool     `json:"encode"`
	Lossless bool     `json:"lossless"`
}

// Catalog lists what the converter can read and write.
type Catalog struct {
	Formats []FormatInfo `json:"formats"`
	Codecs  []CodecInfo  `json:"codecs"`
}

// Catalog reports the formats and codecs this Converter is wired with.
func (c *Converter) Catalog() Catalog {
	var cat Catalog
	all := codec.All()
	for _, f := range c.formats.Formats() {
		info := FormatInfo{
			Name:       f.Name(),
			LongName:   f.LongName(),
			Aliases:    f.Aliases(),
			Extensions: f.Extensions(),
			MIMEType:   f.MIMEType(),
		}
		if _, ok := f.(container.InputFormat); ok {
			info.Demux = true
		}
		if of, ok := f.(container.OutputFormat); ok {
			info.Mux = true
			info.DefaultCodec = string(of.DefaultCodec())
			info.CarriesTags = of.CarriesTags()
			for _, d := range all {
				if of.Supports(d.Name) {
					info.Codecs = append(info.Codecs, string(d.Name))
				}
			}
		}
		cat.Formats = append(cat.Formats, info)
	}
	for _, d := range all {
		cat.Codecs = append(cat.Codecs, CodecInfo{
			Name:     string(d.Name),
			LongName: d.LongName,
			Aliases:  slices.Clone(d.Aliases),
			Decode:   c.codecs.HasDecoder(d.Name),
			Encode:   c.codecs.HasEncoder(d.Name),
			Lossless: d.Lossless,
		})
	}
	return cat
}

// OutputFormatFor resolves a target format name, falling back to the
// extension of filename when name is empty.
func (c *Converter) OutputFormatFor(name, filename string) (container.OutputFormat, error) {
	if name == "" && filename != "" {
		if of, ok := c.formats.ForFilename(filename); ok {
			return of, nil
		}
	}
	return c.formats.Output(name)
}
