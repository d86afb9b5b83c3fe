package fee

import (
	"github.com/xraph/lockup/clock"
	"github.com/xraph/lockup/types"
)

// Defaults.
const (
	DefaultTaxFee            types.BPS = 100
	DefaultPenaltyRate       types.BPS = 150
	DefaultMinChangeInterval           = 2 * clock.Day
)

// Schedule is the engine-wide fee configuration. LastChange is zero until
// the tax fee is first changed.
type Schedule struct {
	types.Entity
	TaxFee            types.BPS `json:"tax_fee_bps"`
	PenaltyRate       types.BPS `json:"penalty_rate_bps"`
	LastChange        int64     `json:"last_change"`
	MinChangeInterval int64     `json:"min_change_interval"`
}

// ApplyFee splits amount into the net transferred and the fee withheld:
// fee = amount * TaxFee / 10000, net = amount - fee.
func (s *Schedule) ApplyFee(amount types.Amount) (net, fee types.Amount) {
	fee = s.TaxFee.Of(amount)
	return amount.Sub(fee), fee
}

// NextChangeAt is the first instant the tax fee may change again.
func (s *Schedule) NextChangeAt() int64 {
	if s.LastChange == 0 {
		return 0
	}
	return s.LastChange + s.MinChangeInterval
}
