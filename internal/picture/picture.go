// Package picture encodes embedded cover art as a FLAC picture block, the
// layout Vorbis comments carry under METADATA_BLOCK_PICTURE.
package picture

import (
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// TagKey is the reserved tag that carries an encoded picture.
const TagKey = "METADATA_BLOCK_PICTURE"

// maxBlockSize is the largest picture block a FLAC metadata header can
// describe (24-bit length).
const maxBlockSize = 1<<24 - 1

// Type is the ID3v2 APIC picture type.
type Type uint32

// Picture types.
const (
	TypeOther      Type = 0
	TypeFileIcon   Type = 1
	TypeOtherIcon  Type = 2
	TypeFrontCover Type = 3
	TypeBackCover  Type = 4
	TypeLeaflet    Type = 5
	TypeMedia      Type = 6
	TypeLeadArtist Type = 7
	TypeArtist     Type = 8
)

// String returns a short name for the picture type.
func (t Type) String() string {
	switch t {
	case TypeOther:
		return "other"
	case TypeFileIcon:
		return "file_icon"
	case TypeOtherIcon:
		return "other_icon"
	case TypeFrontCover:
		return "front_cover"
	case TypeBackCover:
		return "back_cover"
	case TypeLeaflet:
		return "leaflet"
	case TypeMedia:
		return "media"
	case TypeLeadArtist:
		return "lead_artist"
	case TypeArtist:
		return "artist"
	default:
		return fmt.Sprintf("type_%d", uint32(t))
	}
}

// ParseType maps a picture type name or its decimal number to a Type.
func ParseType(s string) (Type, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for t := TypeOther; t <= TypeArtist; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n > 20 {
		return 0, fmt.Errorf("picture: unknown type %q", s)
	}
	return Type(n), nil
}

// ErrTruncated is returned when a picture block ends early.
var ErrTruncated = errors.New("picture: block truncated")

// ErrTooLarge is returned when a picture does not fit in a metadata block.
var ErrTooLarge = errors.New("picture: block exceeds 16 MiB")

// Picture is a decoded picture block.
type Picture struct {
	Type        Type
	MIME        string
	Description string
	Width       uint32
	Height      uint32
	// Depth is the colour depth in bits per pixel.
	Depth uint32
	// Colors is the palette size for indexed images, 0 otherwise.
	Colors uint32
	Data   []byte
}

// Size returns the length of the marshalled block.
func (p *Picture) Size() int {
	return 4 + 4 + len(p.MIME) + 4 + len(p.Description) + 16 + 4 + len(p.Data)
}

// Marshal encodes the block: every integer is a big-endian u32 and strings
// are length-prefixed.
func (p *Picture) Marshal() ([]byte, error) {
	n := p.Size()
	if n > maxBlockSize {
		return nil, ErrTooLarge
	}
	b := make([]byte, 0, n)
	b = binary.BigEndian.AppendUint32(b, uint32(p.Type))
	b = binary.BigEndian.AppendUint32(b, uint32(len(p.MIME)))
	b = append(b, p.MIME...)
	b = binary.BigEndian.AppendUint32(b, uint32(len(p.Description)))
	b = append(b, p.Description...)
	b = binary.BigEndian.AppendUint32(b, p.Width)
	b = binary.BigEndian.AppendUint32(b, p.Height)
	b = binary.BigEndian.AppendUint32(b, p.Depth)
	b = binary.BigEndian.AppendUint32(b, p.Colors)
	b = binary.BigEndian.AppendUint32(b, uint32(len(p.Data)))
	b = append(b, p.Data...)
	return b, nil
}

// Unmarshal decodes a picture block.
func Unmarshal(b []byte) (*Picture, error) {
	r := blockReader{b: b}
	p := &Picture{}
	p.Type = Type(r.u32())
	p.MIME = string(r.bytes(r.u32()))
	p.Description = string(r.bytes(r.u32()))
	p.Width = r.u32()
	p.Height = r.u32()
	p.Depth = r.u32()
	p.Colors = r.u32()
	p.Data = r.bytes(r.u32())
	if r.err != nil {
		return nil, r.err
	}
	return p, nil
}

// EncodeTag returns the base64 tag value for the block.
func (p *Picture) EncodeTag() (string, error) {
	b, err := p.Marshal()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}

// DecodeTag parses a METADATA_BLOCK_PICTURE tag value.
func DecodeTag(s string) (*Picture, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decoding picture tag: %w", err)
	}
	return Unmarshal(b)
}

type blockReader struct {
	b   []byte
	off int
	err error
}

func (r *blockReader) u32() uint32 {
	if r.err != nil {
		return 0
	}
	if len(r.b)-r.off < 4 {
		r.err = ErrTruncated
		return 0
	}
	v := binary.BigEndian.Uint32(r.b[r.off:])
	r.off += 4
	return v
}

func (r *blockReader) bytes(n uint32) []byte {
	if r.err != nil {
		return nil
	}
	if uint64(len(r.b)-r.off) < uint64(n) {
		r.err = ErrTruncated
		return nil
	}
	out := r.b[r.off : r.off+int(n)]
	r.off += int(n)
	return out
}
