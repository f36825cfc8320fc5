// Package timebase provides exact rational time bases and timestamp
// rescaling between them.
//
// All arithmetic is done on integers (math/big for the intermediate product)
// so results are bit-exact and independent of floating point behaviour.
package timebase

import (
	"fmt"
	"math"
	"math/big"
	"time"
)

// NoPTS marks an unset timestamp. Rescale passes it through unchanged.
const NoPTS int64 = math.MinInt64

// Rational is a time base: one timestamp unit lasts Num/Den seconds.
type Rational struct {
	Num int64
	Den int64
}

// Common time bases.
var (
	// Microseconds is the 1/1000000 base used to convert wall-clock seconds.
	Microseconds = Rational{Num: 1, Den: 1_000_000}

	// Nanoseconds matches time.Duration.
	Nanoseconds = Rational{Num: 1, Den: 1_000_000_000}

	// MPEGTS is the 90 kHz clock of MPEG transport streams.
	MPEGTS = Rational{Num: 1, Den: 90_000}

	// Matroska is the default 1 ms cluster timecode scale.
	Matroska = Rational{Num: 1, Den: 1_000}
)

// New returns num/den reduced to lowest terms with a positive denominator.
func New(num, den int64) Rational {
	if den == 0 {
		return Rational{Num: num, Den: 0}
	}
	if den < 0 {
		num, den = -num, -den
	}
	if g := gcd(abs(num), den); g > 1 {
		num /= g
		den /= g
	}
	return Rational{Num: num, Den: den}
}

// PerSecond returns the time base 1/rate, e.g. PerSecond(48000).
func PerSecond(rate int) Rational {
	return New(1, int64(rate))
}

// Valid reports whether r can be used as a time base.
func (r Rational) Valid() bool {
	return r.Num > 0 && r.Den > 0
}

// Float64 returns r as a float, for display only.
func (r Rational) Float64() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// Equal compares two rationals by value (1/2 equals 2/4).
func (r Rational) Equal(o Rational) bool {
	if r.Den == 0 || o.Den == 0 {
		return r == o
	}
	a := new(big.Int).Mul(big.NewInt(r.Num), big.NewInt(o.Den))
	b := new(big.Int).Mul(big.NewInt(o.Num), big.NewInt(r.Den))
	return a.Cmp(b) == 0
}

// String formats r as "num/den".
func (r Rational) String() string {
	return fmt.Sprintf("%d/%d", r.Num, r.Den)
}

// Rounding selects how a rescaled value that falls between two integers is
// resolved.
type Rounding int

const (
	// RoundNearInf rounds to nearest, halfway cases away from zero.
	// This is the default used by Rescale.
	RoundNearInf Rounding = iota
	// RoundNearEven rounds to nearest, halfway cases to the even neighbour.
	RoundNearEven
	// RoundDown rounds toward negative infinity.
	RoundDown
	// RoundUp rounds toward positive infinity.
	RoundUp
	// RoundZero truncates toward zero.
	RoundZero
)

// Rescale converts v from time base from to time base to:
//
//	round(v * from.Num * to.Den / (from.Den * to.Num))
//
// with halfway cases rounded away from zero. NoPTS is returned unchanged,
// as is any result that does not fit in an int64.
func Rescale(v int64, from, to Rational) int64 {
	return RescaleRound(v, from, to, RoundNearInf)
}

// RescaleRound is Rescale with an explicit rounding mode.
func RescaleRound(v int64, from, to Rational, mode Rounding) int64 {
	if v == NoPTS {
		return NoPTS
	}
	if from == to {
		return v
	}
	if !from.Valid() || !to.Valid() {
		return NoPTS
	}

	num := new(big.Int).Mul(big.NewInt(v), big.NewInt(from.Num))
	num.Mul(num, big.NewInt(to.Den))
	den := new(big.Int).Mul(big.NewInt(from.Den), big.NewInt(to.Num))

	q, ok := divRound(num, den, mode)
	if !ok {
		return NoPTS
	}
	return q
}

// divRound divides n by a positive d using the given rounding mode.
func divRound(n, d *big.Int, mode Rounding) (int64, bool) {
	q, r := new(big.Int).QuoRem(n, d, new(big.Int))
	if r.Sign() != 0 {
		neg := n.Sign() < 0
		twice := new(big.Int).Abs(r)
		twice.Lsh(twice, 1)
		cmp := twice.Cmp(d)

		step := int64(1)
		if neg {
			step = -1
		}

		switch mode {
		case RoundNearInf:
			if cmp >= 0 {
				q.Add(q, big.NewInt(step))
			}
		case RoundNearEven:
			if cmp > 0 || (cmp == 0 && q.Bit(0) == 1) {
				q.Add(q, big.NewInt(step))
			}
		case RoundDown:
			if neg {
				q.Sub(q, big.NewInt(1))
			}
		case RoundUp:
			if !neg {
				q.Add(q, big.NewInt(1))
			}
		case RoundZero:
		}
	}

	if !q.IsInt64() {
		return 0, false
	}
	return q.Int64(), true
}

// FromSeconds converts wall-clock seconds into units of tb. The seconds are
// first truncated to whole microseconds, then rescaled exactly. Results
// outside the int64 range saturate, so a finite input never yields NoPTS.
// NaN and an invalid tb yield NoPTS.
func FromSeconds(seconds float64, tb Rational) int64 {
	us := seconds * float64(Microseconds.Den)
	switch {
	case math.IsNaN(us) || !tb.Valid():
		return NoPTS
	case us >= math.MaxInt64:
		return math.MaxInt64
	case us <= math.MinInt64:
		return math.MinInt64 + 1
	}
	v := Rescale(int64(us), Microseconds, tb)
	if v == NoPTS {
		if us < 0 {
			return math.MinInt64 + 1
		}
		return math.MaxInt64
	}
	return v
}

// ToSeconds converts v in units of tb to seconds, for display only.
func ToSeconds(v int64, tb Rational) float64 {
	if v == NoPTS || tb.Den == 0 {
		return 0
	}
	return float64(v) * float64(tb.Num) / float64(tb.Den)
}

// ToDuration converts v in units of tb to a time.Duration.
func ToDuration(v int64, tb Rational) time.Duration {
	if v == NoPTS {
		return 0
	}
	return time.Duration(Rescale(v, tb, Nanoseconds))
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
