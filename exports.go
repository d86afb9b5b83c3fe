package lockup

import (
	"github.com/xraph/lockup/curve"
	"github.com/xraph/lockup/types"
)

// Re-export common types for convenience so users don't have to import the
// types package.

// Amount is re-exported from the types package.
type Amount = types.Amount

// BPS is re-exported from the types package.
type BPS = types.BPS

// Entity is re-exported from the types package.
type Entity = types.Entity

// Fraction is re-exported from the curve package.
type Fraction = curve.Fraction

// Re-export Amount constructors
var (
	NewAmount   = types.NewAmount
	Units       = types.Units
	ParseAmount = types.ParseAmount
	Zero        = types.Zero
	Sum         = types.Sum
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
