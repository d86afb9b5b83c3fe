package types

import "fmt"

// BPS is a rate in basis points; 10000 is 100%.
type BPS uint32

// MaxBPS is 100%.
const MaxBPS BPS = 10000

// Valid reports whether b is at most 100%.
func (b BPS) Valid() bool { return b <= MaxBPS }

// Of returns floor(a * b / 10000).
func (b BPS) Of(a Amount) Amount {
	return a.MulDivUint64(uint64(b), uint64(MaxBPS))
}

// String formats b as a percentage, e.g. "1.50%".
func (b BPS) String() string {
	return fmt.Sprintf("%d.%02d%%", b/100, b%100)
}
