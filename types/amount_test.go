package types

import (
	"encoding/json"
	"testing"
)

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Amount
		expected string
	}{
		{"Add", func() Amount { return NewAmount(100).Add(NewAmount(200)) }, "300"},
		{"Sub", func() Amount { return NewAmount(500).Sub(NewAmount(200)) }, "300"},
		{"SubFloor", func() Amount { return NewAmount(100).SubFloor(NewAmount(200)) }, "0"},
		{"MulDiv", func() Amount { return NewAmount(1_000_000).MulDivUint64(5, 10) }, "500000"},
		{"MulDiv floors", func() Amount { return NewAmount(10).MulDivUint64(1, 3) }, "3"},
		{"Units", func() Amount { return Units(100, 18) }, "100000000000000000000"},
		{"Sum", func() Amount { return Sum(NewAmount(1), NewAmount(2), NewAmount(3)) }, "6"},
		{"Min", func() Amount { return NewAmount(7).Min(NewAmount(3)) }, "3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.op().String(); got != tt.expected {
				t.Errorf("got %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestAmountMulDivWide(t *testing.T) {
	// 2^200 * 2^100 / 2^100 overflows 256 bits in the intermediate only.
	big := MustParseAmount("1606938044258990275541962092341162602522202993782792835301376")
	factor := MustParseAmount("1267650600228229401496703205376")
	if got := big.MulDiv(factor, factor); !got.Equal(big) {
		t.Errorf("got %s, want %s", got, big)
	}
}

func TestAmountSubUnderflowPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on underflow")
		}
	}()
	_ = NewAmount(1).Sub(NewAmount(2))
}

func TestAmountAddOverflow(t *testing.T) {
	ceiling := MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")

	if sum, overflow := ceiling.AddOverflow(Zero); overflow || !sum.Equal(ceiling) {
		t.Errorf("ceiling + 0: got %s overflow=%v", sum, overflow)
	}
	if _, overflow := ceiling.AddOverflow(NewAmount(1)); !overflow {
		t.Error("expected overflow on ceiling + 1")
	}
}

func TestAmountComparison(t *testing.T) {
	a, b := NewAmount(1), NewAmount(2)
	if !a.Lt(b) || a.Gt(b) || a.Cmp(b) != -1 {
		t.Error("expected 1 < 2")
	}
	if !Zero.IsZero() || a.IsZero() {
		t.Error("IsZero mismatch")
	}
	if n, ok := b.Uint64(); !ok || n != 2 {
		t.Errorf("Uint64: got %d %v", n, ok)
	}
}

func TestAmountJSON(t *testing.T) {
	type wrapper struct {
		A Amount `json:"a"`
	}
	data, err := json.Marshal(wrapper{A: Units(5, 18)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"a":"5000000000000000000"}` {
		t.Errorf("unexpected JSON %s", data)
	}

	var w wrapper
	if err := json.Unmarshal([]byte(`{"a":42}`), &w); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if w.A.String() != "42" {
		t.Errorf("got %s, want 42", w.A)
	}
	if err := json.Unmarshal([]byte(`{"a":"-1"}`), &w); err == nil {
		t.Error("expected error for negative amount")
	}
}

func TestAmountValueScan(t *testing.T) {
	original := MustParseAmount("123456789012345678901234567890")
	v, err := original.Value()
	if err != nil {
		t.Fatalf("Value: %v", err)
	}
	var scanned Amount
	if err := scanned.Scan(v); err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !scanned.Equal(original) {
		t.Errorf("got %s, want %s", scanned, original)
	}
	if err := scanned.Scan(int64(-5)); err == nil {
		t.Error("expected error scanning negative int")
	}
}

func TestBPS(t *testing.T) {
	tests := []struct {
		bps     BPS
		amount  uint64
		want    string
		display string
	}{
		{150, 100_493, "1507", "1.50%"},
		{100, 100, "1", "1.00%"},
		{10000, 77, "77", "100.00%"},
		{0, 77, "0", "0.00%"},
	}
	for _, tt := range tests {
		t.Run(tt.display, func(t *testing.T) {
			if got := tt.bps.Of(NewAmount(tt.amount)).String(); got != tt.want {
				t.Errorf("Of: got %s, want %s", got, tt.want)
			}
			if tt.bps.String() != tt.display {
				t.Errorf("String: got %s, want %s", tt.bps.String(), tt.display)
			}
		})
	}
	if BPS(10001).Valid() {
		t.Error("10001 bps should be invalid")
	}
}
