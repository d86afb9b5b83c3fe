// Package types provides the value types shared across lockup packages.
package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Amount is a non-negative token quantity in the smallest unit.
// All arithmetic is integer-only with 256-bit range; there is no floating point.
//
// Amounts are values: the zero Amount is zero and copies are independent.
type Amount struct {
	v uint256.Int
}

// NewAmount returns an Amount of n base units.
func NewAmount(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Units returns n whole tokens expressed with the given number of decimals,
// e.g. Units(100, 18) is 100e18 base units.
func Units(n uint64, decimals uint8) Amount {
	scale := new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
	var a Amount
	if _, overflow := a.v.MulOverflow(uint256.NewInt(n), scale); overflow {
		panic("amount: overflow")
	}
	return a
}

// ParseAmount parses a base-10 string.
func ParseAmount(s string) (Amount, error) {
	var a Amount
	if err := a.v.SetFromDecimal(s); err != nil {
		return Amount{}, fmt.Errorf("amount: parse %q: %w", s, err)
	}
	return a, nil
}

// MustParseAmount is like ParseAmount but panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Zero is the zero Amount.
var Zero Amount

// Arithmetic. Overflow and underflow panic: callers compare before subtracting.

// Add returns a + b.
func (a Amount) Add(b Amount) Amount {
	var r Amount
	if _, overflow := r.v.AddOverflow(&a.v, &b.v); overflow {
		panic("amount: overflow")
	}
	return r
}

// AddOverflow returns a + b and whether the sum exceeded 256 bits.
func (a Amount) AddOverflow(b Amount) (Amount, bool) {
	var r Amount
	_, overflow := r.v.AddOverflow(&a.v, &b.v)
	return r, overflow
}

// Sub returns a - b.
func (a Amount) Sub(b Amount) Amount {
	var r Amount
	if _, underflow := r.v.SubOverflow(&a.v, &b.v); underflow {
		panic(fmt.Sprintf("amount: underflow %s - %s", a, b))
	}
	return r
}

// Mul returns a * b.
func (a Amount) Mul(b Amount) Amount {
	var r Amount
	if _, overflow := r.v.MulOverflow(&a.v, &b.v); overflow {
		panic("amount: overflow")
	}
	return r
}

// SubFloor returns a - b, or zero when b > a.
func (a Amount) SubFloor(b Amount) Amount {
	if a.Lt(b) {
		return Zero
	}
	return a.Sub(b)
}

// MulDiv returns floor(a * num / den) with a 512-bit intermediate.
func (a Amount) MulDiv(num, den Amount) Amount {
	if den.IsZero() {
		panic("amount: division by zero")
	}
	var r Amount
	if _, overflow := r.v.MulDivOverflow(&a.v, &num.v, &den.v); overflow {
		panic("amount: overflow")
	}
	return r
}

// MulDivUint64 is MulDiv with machine-word factors.
func (a Amount) MulDivUint64(num, den uint64) Amount {
	return a.MulDiv(NewAmount(num), NewAmount(den))
}

// Comparison

// Cmp returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Lt reports a < b.
func (a Amount) Lt(b Amount) bool { return a.v.Lt(&b.v) }

// Gt reports a > b.
func (a Amount) Gt(b Amount) bool { return a.v.Gt(&b.v) }

// Equal reports a == b.
func (a Amount) Equal(b Amount) bool { return a.v.Eq(&b.v) }

// IsZero reports a == 0.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Min returns the smaller of a and b.
func (a Amount) Min(b Amount) Amount {
	if a.Lt(b) {
		return a
	}
	return b
}

// Conversion

// String returns the base-10 representation.
func (a Amount) String() string { return a.v.Dec() }

// Uint64 returns the low 64 bits and whether the value fits.
func (a Amount) Uint64() (uint64, bool) { return a.v.Uint64(), a.v.IsUint64() }

// Big returns a copy as *big.Int.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// Sum adds amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Encoding. Amounts are serialized as decimal strings so they survive JSON
// consumers and SQL columns without precision loss.

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Zero
		return nil
	}
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalJSON encodes the amount as a quoted decimal string.
func (a Amount) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

// UnmarshalJSON accepts a quoted decimal string or a bare JSON number.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var n json.Number
		if numErr := json.Unmarshal(data, &n); numErr != nil {
			return fmt.Errorf("amount: unmarshal %s: %w", data, err)
		}
		s = n.String()
	}
	return a.UnmarshalText([]byte(s))
}

// Value implements driver.Valuer.
func (a Amount) Value() (driver.Value, error) { return a.String(), nil }

// Scan implements sql.Scanner.
func (a *Amount) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*a = Zero
		return nil
	case string:
		return a.UnmarshalText([]byte(v))
	case []byte:
		return a.UnmarshalText(v)
	case int64:
		if v < 0 {
			return fmt.Errorf("amount: negative value %d", v)
		}
		*a = NewAmount(uint64(v))
		return nil
	default:
		return fmt.Errorf("amount: cannot scan %T into Amount", src)
	}
}
