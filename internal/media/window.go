package media

import (
	"math"

	"github.com/jmylchreest/memmux/pkg/timebase"
)

// TimeWindow selects a time range in seconds. A zero-valued bound is unset.
type TimeWindow struct {
	Start    float64
	End      float64
	HasStart bool
	HasEnd   bool
}

// Window builds a TimeWindow treating negative values as unset.
func Window(start, end float64) TimeWindow {
	return TimeWindow{
		Start:    start,
		End:      end,
		HasStart: start >= 0,
		HasEnd:   end >= 0,
	}
}

// IsZero reports whether neither bound is set.
func (w TimeWindow) IsZero() bool {
	return !w.HasStart && !w.HasEnd
}

// maxBoundSeconds is the first bound whose microsecond count overflows int64.
const maxBoundSeconds = float64(math.MaxInt64) / 1e6

// Validate reports a precondition failure for a set bound that is not a
// finite, non-negative number of seconds representable in microseconds, or
// for a start after the end.
func (w TimeWindow) Validate() error {
	if w.HasStart {
		if err := validateBound("start", w.Start); err != nil {
			return err
		}
	}
	if w.HasEnd {
		if err := validateBound("end", w.End); err != nil {
			return err
		}
	}
	if w.HasStart && w.HasEnd && w.Start > w.End {
		return Errorf(KindPrecondition, "time window", "start %.6fs is after end %.6fs", w.Start, w.End)
	}
	return nil
}

func validateBound(name string, seconds float64) error {
	switch {
	case math.IsNaN(seconds) || math.IsInf(seconds, 0):
		return Errorf(KindPrecondition, "time window", "%s %v is not finite", name, seconds)
	case seconds < 0:
		return Errorf(KindPrecondition, "time window", "%s %vs is negative", name, seconds)
	case seconds >= maxBoundSeconds:
		return Errorf(KindPrecondition, "time window", "%s %vs is out of range", name, seconds)
	}
	return nil
}

// Bounds converts the window into tb units: seconds are truncated to whole
// microseconds and rescaled once. Unset bounds are returned as
// timebase.NoPTS.
func (w TimeWindow) Bounds(tb timebase.Rational) (start, end int64) {
	start, end = timebase.NoPTS, timebase.NoPTS
	if w.HasStart {
		start = timebase.FromSeconds(w.Start, tb)
	}
	if w.HasEnd {
		end = timebase.FromSeconds(w.End, tb)
	}
	return start, end
}
