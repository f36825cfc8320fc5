// Package format renders sizes, counts, bit rates and media positions for
// humans.
package format

import (
	"fmt"
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Bytes formats a byte count with a binary unit: Bytes(1536) is "1.5 KB".
func Bytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit && exp < 3; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %s", float64(n)/float64(div), [...]string{"KB", "MB", "GB", "TB"}[exp])
}

var printer = message.NewPrinter(language.English)

// Number formats n with thousand separators: Number(1234567) is "1,234,567".
func Number(n int64) string {
	return printer.Sprintf("%d", n)
}

// BitRate formats bits per second the way media tools do: "128 kb/s".
// Zero or negative rates are "N/A".
func BitRate(bps int64) string {
	switch {
	case bps <= 0:
		return "N/A"
	case bps < 1000:
		return strconv.FormatInt(bps, 10) + " b/s"
	case bps < 1_000_000:
		return strconv.FormatInt(bps/1000, 10) + " kb/s"
	default:
		return strconv.FormatFloat(float64(bps)/1e6, 'f', 1, 64) + " Mb/s"
	}
}

// Timestamp formats a position in microseconds as HH:MM:SS.mmm. Negative
// values are "N/A".
func Timestamp(us int64) string {
	if us < 0 {
		return "N/A"
	}
	ms := us / 1000
	return fmt.Sprintf("%02d:%02d:%02d.%03d", ms/3_600_000, ms/60_000%60, ms/1000%60, ms%1000)
}

// Percentage formats value with the given number of decimals.
func Percentage(value float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, value)
}
