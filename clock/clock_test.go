package clock

import "testing"

func TestManual(t *testing.T) {
	c := NewManual(1000)
	if c.Now() != 1000 {
		t.Fatalf("got %d, want 1000", c.Now())
	}
	if got := c.Advance(Days(2)); got != 1000+2*Day {
		t.Errorf("Advance: got %d", got)
	}
	c.Set(5)
	if c.Now() != 5 {
		t.Errorf("Set: got %d", c.Now())
	}
}

func TestUnits(t *testing.T) {
	if Months(12) != 360*Day {
		t.Errorf("Months(12) = %d", Months(12))
	}
	if Year != 365*Day {
		t.Errorf("Year = %d", Year)
	}
	var f Clock = Func(func() int64 { return 7 })
	if f.Now() != 7 {
		t.Errorf("Func clock returned %d", f.Now())
	}
	if (System{}).Now() <= 0 {
		t.Error("system clock should be positive")
	}
}
