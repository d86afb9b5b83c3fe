package curve

import (
	"errors"
	"math"
	"testing"

	"github.com/xraph/lockup/clock"
	"github.com/xraph/lockup/types"
)

const start = int64(1_700_000_000)

func TestLinearVestedFraction(t *testing.T) {
	p := Params{Start: start, Cliff: clock.Months(2), Duration: clock.Months(12)}
	total := types.NewAmount(1_000_000)

	tests := []struct {
		name string
		now  int64
		want string
	}{
		{"before start", start - 1, "0"},
		{"month 1", start + clock.Months(1), "0"},
		{"at cliff", start + clock.Months(2), "0"},
		{"month 7", start + clock.Months(7), "500000"},
		{"one second before end", start + clock.Months(12) - 1, "999999"},
		{"at end", start + clock.Months(12), "1000000"},
		{"long after", start + clock.Months(40), "1000000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Linear{}.VestedFraction(tt.now, p).Of(total)
			if got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLinearMonotonic(t *testing.T) {
	p := Params{Start: start, Cliff: clock.Days(5), Duration: clock.Days(60)}
	total := types.NewAmount(987_654_321)

	prev := types.Zero
	for now := start - clock.Day; now <= start+clock.Days(61); now += 3607 {
		got := Linear{}.VestedFraction(now, p).Of(total)
		if got.Lt(prev) {
			t.Fatalf("vested decreased at %d: %s < %s", now, got, prev)
		}
		prev = got
	}
	if !prev.Equal(total) {
		t.Errorf("expected fully vested, got %s", prev)
	}
}

func TestLinearZeroDuration(t *testing.T) {
	p := Params{Start: start}
	if got := (Linear{}).VestedFraction(start, p); got != Full {
		t.Errorf("got %s, want full at start", got)
	}
	if got := (Linear{}).VestedFraction(start-1, p); got != None {
		t.Errorf("got %s, want none before start", got)
	}
}

func TestParamsValidate(t *testing.T) {
	tests := []struct {
		name  string
		p     Params
		valid bool
	}{
		{"ok", Params{Start: start, Cliff: 10, Duration: 20}, true},
		{"cliff equals duration", Params{Start: start, Cliff: 20, Duration: 20}, true},
		{"cliff exceeds duration", Params{Start: start, Cliff: 21, Duration: 20}, false},
		{"unset start", Params{Cliff: 0, Duration: 20}, false},
		{"negative cliff", Params{Start: start, Cliff: -1, Duration: 20}, false},
		{"end overflows", Params{Start: start, Duration: math.MaxInt64}, false},
		{"end at int64 limit", Params{Start: start, Duration: math.MaxInt64 - start}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && !errors.Is(err, ErrInvalidParams) {
				t.Errorf("expected ErrInvalidParams, got %v", err)
			}
		})
	}
}

func TestNewTableValidation(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
	}{
		{"empty", nil},
		{"decreasing fraction", []Step{{1, Fraction{1, 2}}, {2, Fraction{1, 4}}}},
		{"repeated month", []Step{{1, Fraction{1, 4}}, {1, Fraction{1, 2}}}},
		{"fraction above one", []Step{{1, Fraction{3, 2}}}},
		{"zero denominator", []Step{{1, Fraction{0, 0}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewTable(tt.steps, 0); !errors.Is(err, ErrInvalidTable) {
				t.Errorf("expected ErrInvalidTable, got %v", err)
			}
		})
	}

	flat := []Step{{1, Fraction{1, 4}}, {2, Fraction{1, 4}}, {3, Full}}
	if _, err := NewTable(flat, 0); err != nil {
		t.Errorf("equal consecutive fractions should be accepted: %v", err)
	}
}

func TestTableVestedFraction(t *testing.T) {
	tbl, err := NewTable([]Step{
		{Month: 0, Fraction: Fraction{1, 10}},
		{Month: 3, Fraction: Fraction{4, 10}},
		{Month: 6, Fraction: Fraction{7, 10}},
	}, 0)
	if err != nil {
		t.Fatalf("NewTable: %v", err)
	}
	p := Params{Start: start, Duration: clock.Months(12)}
	total := types.NewAmount(1000)

	tests := []struct {
		name string
		now  int64
		want string
	}{
		{"before start", start - 1, "0"},
		{"month 0", start, "100"},
		{"month 2", start + clock.Months(2) + 5, "100"},
		{"month 3", start + clock.Months(3), "400"},
		{"month 8 clamps to last step", start + clock.Months(8), "700"},
		{"end of duration", start + clock.Months(12), "1000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tbl.VestedFraction(tt.now, p).Of(total); got.String() != tt.want {
				t.Errorf("got %s, want %s", got, tt.want)
			}
		})
	}

	withCliff := Params{Start: start, Cliff: clock.Months(4), Duration: clock.Months(12)}
	if got := tbl.VestedFraction(start+clock.Months(3), withCliff); got != None {
		t.Errorf("cliff should hold table at zero, got %s", got)
	}
}

func TestMonthly(t *testing.T) {
	steps := Monthly(2, 10)
	if len(steps) != 10 || steps[0].Month != 3 || steps[9].Fraction != (Fraction{10, 10}) {
		t.Fatalf("unexpected steps %+v", steps)
	}
	if _, err := NewTable(steps, clock.Month); err != nil {
		t.Errorf("monthly table invalid: %v", err)
	}
}

func TestBuild(t *testing.T) {
	c, err := Build(KindLinear, nil, 0)
	if err != nil || c.Kind() != KindLinear {
		t.Errorf("linear: %v %v", c, err)
	}
	if _, err := Build(KindTable, nil, 0); !errors.Is(err, ErrInvalidTable) {
		t.Errorf("expected ErrInvalidTable for empty table, got %v", err)
	}
	if _, err := Build("cubic", nil, 0); !errors.Is(err, ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams for unknown kind, got %v", err)
	}
}

func TestFractionLess(t *testing.T) {
	big := Fraction{Num: 1<<63 - 1, Den: 1<<63 + 1}
	if !big.Less(Full) || Full.Less(big) {
		t.Error("wide fraction comparison failed")
	}
}
