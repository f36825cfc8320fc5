// Package duration parses human-readable durations and media timestamps.
//
// Parse accepts everything time.ParseDuration does plus days ("d") and
// weeks ("w"), so "1w2d12h" is 9 days 12 hours. ParseTimestamp accepts
// the positions a user gives for a trim window: "90", "1.5", "01:30",
// "00:01:30.250" or a duration such as "1m30s".
package duration

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// Day is 24 hours.
	Day = 24 * time.Hour
	// Week is 7 days.
	Week = 7 * Day
)

var extended = regexp.MustCompile(`(\d+)([dw])`)

// Parse parses s as a duration.
func Parse(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty string")
	}
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")

	var hours int64
	rest := extended.ReplaceAllStringFunc(strings.ToLower(s), func(m string) string {
		sub := extended.FindStringSubmatch(m)
		n, _ := strconv.ParseInt(sub[1], 10, 64)
		if sub[2] == "w" {
			n *= 7
		}
		hours += n * 24
		return ""
	})
	std := rest
	if hours > 0 {
		std = strconv.FormatInt(hours, 10) + "h" + rest
	}
	d, err := time.ParseDuration(std)
	if err != nil {
		return 0, fmt.Errorf("duration: invalid duration %q", s)
	}
	if neg {
		d = -d
	}
	return d, nil
}

// MustParse is Parse for constants; it panics on error.
func MustParse(s string) time.Duration {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Format renders d with weeks and days split out; zero components are
// omitted, so 36h is "1d12h".
func Format(d time.Duration) string {
	if d == 0 {
		return "0s"
	}
	if d < 0 {
		return "-" + Format(-d)
	}
	var b strings.Builder
	if w := d / Week; w > 0 {
		fmt.Fprintf(&b, "%dw", w)
		d -= w * Week
	}
	if n := d / Day; n > 0 {
		fmt.Fprintf(&b, "%dd", n)
		d -= n * Day
	}
	if d > 0 {
		rest := d.String()
		if strings.HasSuffix(rest, "m0s") {
			rest = strings.TrimSuffix(rest, "0s")
		}
		if strings.HasSuffix(rest, "h0m") {
			rest = strings.TrimSuffix(rest, "0m")
		}
		b.WriteString(rest)
	}
	return b.String()
}

// ParseTimestamp parses a media position into seconds. An empty string
// is an error; callers treat "unset" before calling it.
func ParseTimestamp(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("duration: empty timestamp")
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		if v < 0 {
			return 0, fmt.Errorf("duration: negative timestamp %q", s)
		}
		return v, nil
	}
	if strings.Contains(s, ":") {
		return parseClock(s)
	}
	d, err := Parse(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration: negative timestamp %q", s)
	}
	return d.Seconds(), nil
}

// parseClock parses [HH:]MM:SS[.frac].
func parseClock(s string) (float64, error) {
	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, fmt.Errorf("duration: invalid timestamp %q", s)
	}
	sec, err := strconv.ParseFloat(parts[len(parts)-1], 64)
	if err != nil || sec < 0 || sec >= 60 {
		return 0, fmt.Errorf("duration: invalid seconds in %q", s)
	}
	total := sec
	scale := 60.0
	for i := len(parts) - 2; i >= 0; i-- {
		n, err := strconv.ParseUint(parts[i], 10, 32)
		if err != nil || (i == len(parts)-2 && len(parts) == 3 && n >= 60) {
			return 0, fmt.Errorf("duration: invalid timestamp %q", s)
		}
		total += float64(n) * scale
		scale *= 60
	}
	return total, nil
}
