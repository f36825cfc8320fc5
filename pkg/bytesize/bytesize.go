// Package bytesize parses and formats byte sizes such as "512MB" or
// "1.5 GiB". Units are binary (1024) and case-insensitive; a bare number
// is bytes.
package bytesize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Size is a byte count.
type Size int64

// Binary size units.
const (
	B  Size = 1
	KB Size = 1 << 10
	MB Size = 1 << 20
	GB Size = 1 << 30
	TB Size = 1 << 40
)

var units = map[string]Size{
	"": B, "b": B, "byte": B, "bytes": B,
	"k": KB, "kb": KB, "kib": KB,
	"m": MB, "mb": MB, "mib": MB,
	"g": GB, "gb": GB, "gib": GB,
	"t": TB, "tb": TB, "tib": TB,
}

var pattern = regexp.MustCompile(`(?i)^\s*([0-9]+(?:\.[0-9]+)?)\s*([a-z]*)\s*$`)

// Parse parses s as a byte size.
func Parse(s string) (Size, error) {
	m := pattern.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("bytesize: invalid size %q", s)
	}
	unit, ok := units[strings.ToLower(m[2])]
	if !ok {
		return 0, fmt.Errorf("bytesize: unknown unit %q", m[2])
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("bytesize: invalid number %q: %w", m[1], err)
	}
	return Size(v * float64(unit)), nil
}

// MustParse is Parse for constants; it panics on error.
func MustParse(s string) Size {
	n, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return n
}

// Format renders s in the largest unit with a value of at least one,
// with up to two decimals: 1536 is "1.5KB".
func Format(s Size) string {
	if s < 0 {
		return "-" + Format(-s)
	}
	for _, u := range []struct {
		size Size
		name string
	}{{TB, "TB"}, {GB, "GB"}, {MB, "MB"}, {KB, "KB"}} {
		if s >= u.size {
			v := strconv.FormatFloat(float64(s)/float64(u.size), 'f', 2, 64)
			v = strings.TrimRight(strings.TrimRight(v, "0"), ".")
			return v + u.name
		}
	}
	return strconv.FormatInt(int64(s), 10) + "B"
}

// Bytes returns s as an int64.
func (s Size) Bytes() int64 { return int64(s) }

func (s Size) String() string { return Format(s) }
