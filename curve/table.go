package curve

import "fmt"

// Step unlocks Fraction of the allocation (cumulative) once Month whole
// months have elapsed since start.
type Step struct {
	Month    uint32   `json:"month"`
	Fraction Fraction `json:"fraction"`
}

// Table is a month-indexed cumulative unlock table.
type Table struct {
	steps       []Step
	monthLength int64
}

// NewTable validates steps and returns a Table. Months must be strictly
// increasing, every fraction must lie in [0, 1] and fractions must never
// decrease. A non-positive monthLength selects DefaultMonthLength.
func NewTable(steps []Step, monthLength int64) (*Table, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidTable)
	}
	for i, s := range steps {
		if !s.Fraction.Valid() {
			return nil, fmt.Errorf("%w: step %d fraction %s outside [0,1]", ErrInvalidTable, i, s.Fraction)
		}
		if i == 0 {
			continue
		}
		prev := steps[i-1]
		if s.Month <= prev.Month {
			return nil, fmt.Errorf("%w: step %d month %d not after %d", ErrInvalidTable, i, s.Month, prev.Month)
		}
		if s.Fraction.Less(prev.Fraction) {
			return nil, fmt.Errorf("%w: step %d fraction %s below %s", ErrInvalidTable, i, s.Fraction, prev.Fraction)
		}
	}
	if monthLength <= 0 {
		monthLength = DefaultMonthLength
	}

	cp := make([]Step, len(steps))
	copy(cp, steps)
	return &Table{steps: cp, monthLength: monthLength}, nil
}

// Kind returns KindTable.
func (t *Table) Kind() Kind { return KindTable }

// Steps returns a copy of the table.
func (t *Table) Steps() []Step {
	cp := make([]Step, len(t.steps))
	copy(cp, t.steps)
	return cp
}

// MonthLength returns the month length in seconds.
func (t *Table) MonthLength() int64 { return t.monthLength }

// VestedFraction implements Curve. The schedule cliff still applies, and a
// positive duration caps the schedule at fully vested.
func (t *Table) VestedFraction(now int64, p Params) Fraction {
	if now < p.Start || now < p.Start+p.Cliff {
		return None
	}
	if p.Duration > 0 && now >= p.Start+p.Duration {
		return Full
	}

	elapsed := (now - p.Start) / t.monthLength
	vested := None
	for _, s := range t.steps {
		if int64(s.Month) > elapsed {
			break
		}
		vested = s.Fraction
	}
	return vested
}

// Monthly returns an evenly spaced table that unlocks 1/months of the
// allocation at the end of each month, starting after cliffMonths.
func Monthly(cliffMonths, months uint32) []Step {
	steps := make([]Step, 0, months)
	for i := uint32(1); i <= months; i++ {
		steps = append(steps, Step{
			Month:    cliffMonths + i,
			Fraction: Fraction{Num: uint64(i), Den: uint64(months)},
		})
	}
	return steps
}
