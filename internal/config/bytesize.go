package config

import (
	"encoding/json"

	"github.com/jmylchreest/memmux/pkg/bytesize"
)

// ByteSize is a size limit written as "512MB", "1.5GiB" or a plain byte
// count. It decodes from viper and YAML text and from JSON strings or
// numbers.
type ByteSize int64

// ParseByteSize parses a human-readable byte size.
func ParseByteSize(s string) (ByteSize, error) {
	n, err := bytesize.Parse(s)
	if err != nil {
		return 0, err
	}
	return ByteSize(n), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (b *ByteSize) UnmarshalText(text []byte) error {
	n, err := ParseByteSize(string(text))
	if err != nil {
		return err
	}
	*b = n
	return nil
}

// UnmarshalJSON accepts "5MB" as well as 5242880.
func (b *ByteSize) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		*b = ByteSize(n)
		return nil
	}
	return b.UnmarshalText([]byte(s))
}

// MarshalText implements encoding.TextMarshaler.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// Bytes returns the size in bytes.
func (b ByteSize) Bytes() int64 { return int64(b) }

func (b ByteSize) String() string {
	return bytesize.Format(bytesize.Size(b))
}
