package vesting

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/curve"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/types"
)

// DeleteMode selects what a removed beneficiary keeps.
type DeleteMode string

const (
	// DeleteForfeitUnvested forfeits only the unvested remainder; the
	// vested-but-unclaimed delta stays claimable once.
	DeleteForfeitUnvested DeleteMode = "forfeit_unvested"
	// DeleteForfeitAll forfeits everything not yet released.
	DeleteForfeitAll DeleteMode = "forfeit_all"
)

// Pool is a multi-beneficiary vesting pool. All schedules share the pool's
// curve and time parameters.
type Pool struct {
	types.Entity
	ID          id.PoolID         `json:"id"`
	Name        string            `json:"name"`
	Allocation  Allocation        `json:"allocation"`
	Whitelist   bool              `json:"whitelist"`
	Cap         types.Amount      `json:"cap"`
	// Allocated counts every amount ever granted, including schedules
	// that were fully released and then overwritten by a re-add, less
	// what was forfeited. It never exceeds Cap.
	Allocated   types.Amount      `json:"allocated"`
	Released    types.Amount      `json:"released"`
	Forfeited   types.Amount      `json:"forfeited"`
	Start       int64             `json:"start"`
	Cliff       int64             `json:"cliff"`
	Duration    int64             `json:"duration"`
	CurveKind   curve.Kind        `json:"curve_kind"`
	RateTable   []curve.Step      `json:"rate_table,omitempty"`
	MonthLength int64             `json:"month_length,omitempty"`
	DeleteMode  DeleteMode        `json:"delete_mode"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// Params returns the pool's curve parameters.
func (p *Pool) Params() curve.Params {
	return curve.Params{Start: p.Start, Cliff: p.Cliff, Duration: p.Duration}
}

// Curve builds the pool's vesting curve.
func (p *Pool) Curve() (curve.Curve, error) {
	return curve.Build(p.CurveKind, p.RateTable, p.MonthLength)
}

// Available is the unallocated part of the cap.
func (p *Pool) Available() types.Amount {
	return p.Cap.SubFloor(p.Allocated)
}

// Schedule is one beneficiary's allocation within a pool.
type Schedule struct {
	types.Entity
	ID            id.ScheduleID  `json:"id"`
	PoolID        id.PoolID      `json:"pool_id"`
	Beneficiary   common.Address `json:"beneficiary"`
	TotalAmount   types.Amount   `json:"total_amount"`
	InitialUnlock types.Amount   `json:"initial_unlock"`
	Released      types.Amount   `json:"released"`
	Removed       bool           `json:"removed"`
	Forfeited     types.Amount   `json:"forfeited"`
}

// VestedAmount returns the cumulative vested amount at now. A removed
// schedule is frozen at its total, which was cut to what had vested.
func (s *Schedule) VestedAmount(c curve.Curve, p curve.Params, now int64) types.Amount {
	if s.Removed {
		return s.TotalAmount
	}
	if now < p.Start {
		return types.Zero
	}
	linear := s.TotalAmount.SubFloor(s.InitialUnlock)
	return s.InitialUnlock.Add(c.VestedFraction(now, p).Of(linear))
}

// Claimable returns vested minus released.
func (s *Schedule) Claimable(c curve.Curve, p curve.Params, now int64) types.Amount {
	return s.VestedAmount(c, p, now).SubFloor(s.Released)
}

// FullyReleased reports whether nothing more can ever be claimed.
func (s *Schedule) FullyReleased() bool {
	return !s.Released.Lt(s.TotalAmount)
}

// Grant is a beneficiary allocation request.
type Grant struct {
	Beneficiary   common.Address `json:"beneficiary"`
	Amount        types.Amount   `json:"amount"`
	InitialUnlock types.Amount   `json:"initial_unlock"`
}
