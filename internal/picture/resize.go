package picture

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// DefaultJPEGQuality is used when re-encoding a downscaled JPEG.
const DefaultJPEGQuality = 90

// Options control how raw image bytes become a Picture.
type Options struct {
	Type        Type
	Description string
	// MaxDimension bounds the larger side; bigger images are downscaled.
	// 0 keeps the original bytes.
	MaxDimension int
	JPEGQuality  int
}

// New builds a picture block from encoded image bytes.
func New(data []byte, opts Options) (*Picture, error) {
	info, err := Detect(data)
	if err != nil {
		return nil, err
	}
	if opts.MaxDimension > 0 && (info.Width > uint32(opts.MaxDimension) || info.Height > uint32(opts.MaxDimension)) {
		data, err = downscale(data, info, opts)
		if err != nil {
			return nil, err
		}
		if info, err = Detect(data); err != nil {
			return nil, fmt.Errorf("reading downscaled image: %w", err)
		}
	}
	return &Picture{
		Type:        opts.Type,
		MIME:        info.MIME,
		Description: opts.Description,
		Width:       info.Width,
		Height:      info.Height,
		Depth:       info.Depth,
		Colors:      info.Colors,
		Data:        data,
	}, nil
}

// downscale fits the image inside MaxDimension. JPEG sources stay JPEG;
// everything else is written as PNG to keep transparency.
func downscale(data []byte, info Info, opts Options) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", info.MIME, err)
	}
	img = imaging.Fit(img, opts.MaxDimension, opts.MaxDimension, imaging.Lanczos)

	var buf bytes.Buffer
	if info.MIME == "image/jpeg" {
		q := opts.JPEGQuality
		if q <= 0 {
			q = DefaultJPEGQuality
		}
		err = imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(q))
	} else {
		err = imaging.Encode(&buf, img, imaging.PNG)
	}
	if err != nil {
		return nil, fmt.Errorf("encoding downscaled image: %w", err)
	}
	return buf.Bytes(), nil
}
