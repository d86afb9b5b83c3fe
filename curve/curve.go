// Package curve maps schedule parameters and a point in time to the
// cumulative fraction of an allocation that has vested.
//
// Two families are supported: Linear, which releases nothing before the
// cliff and then unlocks pro rata until the end of the duration, and Table,
// which unlocks a configured cumulative fraction at each elapsed month.
// Fractions are exact rationals; no floating point is involved.
package curve

import (
	"errors"
	"fmt"
	"math"
	"math/bits"

	"github.com/xraph/lockup/clock"
	"github.com/xraph/lockup/types"
)

// Validation errors. The engine reports both as invalid schedule configuration.
var (
	ErrInvalidParams = errors.New("curve: invalid schedule parameters")
	ErrInvalidTable  = errors.New("curve: invalid rate table")
)

// Kind names a curve family.
type Kind string

// Curve kinds.
const (
	KindLinear Kind = "linear"
	KindTable  Kind = "table"
)

// DefaultMonthLength is the month used by table curves, 30 days.
const DefaultMonthLength = clock.Month

// Fraction is Num/Den with 0 <= Num <= Den and Den > 0.
type Fraction struct {
	Num uint64 `json:"num"`
	Den uint64 `json:"den"`
}

// Common fractions.
var (
	None = Fraction{Num: 0, Den: 1}
	Full = Fraction{Num: 1, Den: 1}
)

// Valid reports whether f lies in [0, 1].
func (f Fraction) Valid() bool { return f.Den > 0 && f.Num <= f.Den }

// Less reports f < g without overflow.
func (f Fraction) Less(g Fraction) bool {
	lh, ll := bits.Mul64(f.Num, g.Den)
	rh, rl := bits.Mul64(g.Num, f.Den)
	return lh < rh || (lh == rh && ll < rl)
}

// Of returns floor(total * f).
func (f Fraction) Of(total types.Amount) types.Amount {
	if f.Num == 0 {
		return types.Zero
	}
	return total.MulDivUint64(f.Num, f.Den)
}

func (f Fraction) String() string { return fmt.Sprintf("%d/%d", f.Num, f.Den) }

// Params are the time parameters of a schedule, all in seconds.
type Params struct {
	Start    int64 `json:"start"`
	Cliff    int64 `json:"cliff"`
	Duration int64 `json:"duration"`
}

// Validate rejects an unset start, negative spans, a cliff longer than the
// duration and an end time past the int64 range.
func (p Params) Validate() error {
	switch {
	case p.Start <= 0:
		return fmt.Errorf("%w: start is unset", ErrInvalidParams)
	case p.Cliff < 0 || p.Duration < 0:
		return fmt.Errorf("%w: negative cliff or duration", ErrInvalidParams)
	case p.Cliff > p.Duration:
		return fmt.Errorf("%w: cliff %d exceeds duration %d", ErrInvalidParams, p.Cliff, p.Duration)
	case p.Duration > math.MaxInt64-p.Start:
		return fmt.Errorf("%w: start %d plus duration %d overflows", ErrInvalidParams, p.Start, p.Duration)
	}
	return nil
}

// Curve computes the vested fraction at now.
type Curve interface {
	Kind() Kind
	VestedFraction(now int64, p Params) Fraction
}

// Linear vests nothing before start+cliff, everything from start+duration,
// and (now-(start+cliff))/(duration-cliff) in between.
type Linear struct{}

// Kind returns KindLinear.
func (Linear) Kind() Kind { return KindLinear }

// VestedFraction implements Curve.
func (Linear) VestedFraction(now int64, p Params) Fraction {
	cliffEnd := p.Start + p.Cliff
	switch {
	case now < cliffEnd:
		return None
	case now >= p.Start+p.Duration:
		return Full
	}
	return Fraction{
		Num: uint64(now - cliffEnd),
		Den: uint64(p.Duration - p.Cliff),
	}
}

// Build returns the curve for a stored kind and rate table.
func Build(kind Kind, steps []Step, monthLength int64) (Curve, error) {
	switch kind {
	case KindLinear, "":
		return Linear{}, nil
	case KindTable:
		return NewTable(steps, monthLength)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidParams, kind)
	}
}
