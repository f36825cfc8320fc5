package picture

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math/bits"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp" // WebP format support
)

// ErrUnknownImage is returned when the bytes match no supported image format.
var ErrUnknownImage = errors.New("picture: unrecognised image format")

// Info describes an image as the picture block records it.
type Info struct {
	MIME   string
	Width  uint32
	Height uint32
	Depth  uint32
	Colors uint32
}

var mimeTypes = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// Detect reads the image header and returns its MIME type and geometry.
// JPEG is scanned marker by marker; other formats go through the
// registered image decoders.
func Detect(data []byte) (Info, error) {
	if len(data) == 0 {
		return Info{}, ErrUnknownImage
	}
	if len(data) >= 2 && data[0] == 0xFF && data[1] == 0xD8 {
		return jpegInfo(data)
	}
	cfg, name, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		if errors.Is(err, image.ErrFormat) {
			return Info{}, ErrUnknownImage
		}
		return Info{}, fmt.Errorf("reading %s header: %w", name, err)
	}
	mime, ok := mimeTypes[name]
	if !ok {
		mime = "image/" + name
	}
	info := Info{
		MIME:   mime,
		Width:  uint32(cfg.Width),
		Height: uint32(cfg.Height),
	}
	info.Depth, info.Colors = modelDepth(cfg.ColorModel)
	return info, nil
}

// modelDepth returns bits per pixel and, for paletted models, the palette
// size.
func modelDepth(m color.Model) (depth, colors uint32) {
	if p, ok := m.(color.Palette); ok {
		n := len(p)
		if n <= 1 {
			return 1, uint32(n)
		}
		return uint32(bits.Len(uint(n - 1))), uint32(n)
	}
	switch m {
	case color.GrayModel, color.AlphaModel:
		return 8, 0
	case color.Gray16Model, color.Alpha16Model:
		return 16, 0
	case color.YCbCrModel:
		return 24, 0
	case color.RGBA64Model, color.NRGBA64Model:
		return 64, 0
	default:
		return 32, 0
	}
}
