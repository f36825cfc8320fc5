package container

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/memmux/internal/media"
)

// VendorString is written as the Vorbis comment vendor.
const VendorString = "memmux"

var opusTagsMagic = []byte("OpusTags")

// parseVorbisComment decodes a comment block (without framing bytes) into
// tags with lowercase keys.
func parseVorbisComment(b []byte, tags *media.Tags) (vendor string, err error) {
	r := bytes.NewReader(b)
	readString := func() (string, error) {
		var n uint32
		if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
			return "", err
		}
		if int64(n) > int64(r.Len()) {
			return "", errors.New("vorbis comment: length exceeds packet")
		}
		s := make([]byte, n)
		_, _ = r.Read(s)
		return string(s), nil
	}
	if vendor, err = readString(); err != nil {
		return "", fmt.Errorf("reading vendor: %w", err)
	}
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return vendor, fmt.Errorf("reading comment count: %w", err)
	}
	for i := range count {
		c, err := readString()
		if err != nil {
			return vendor, fmt.Errorf("reading comment %d: %w", i, err)
		}
		key, value, ok := strings.Cut(c, "=")
		if !ok || key == "" {
			continue
		}
		tags.Set(strings.ToLower(key), value)
	}
	return vendor, nil
}

// marshalVorbisComment encodes tags with uppercase keys.
func marshalVorbisComment(vendor string, tags *media.Tags) []byte {
	var buf bytes.Buffer
	putString := func(s string) {
		_ = binary.Write(&buf, binary.LittleEndian, uint32(len(s)))
		buf.WriteString(s)
	}
	putString(vendor)
	_ = binary.Write(&buf, binary.LittleEndian, uint32(tags.Len()))
	tags.Each(func(key, value string) {
		putString(strings.ToUpper(key) + "=" + value)
	})
	return buf.Bytes()
}
