// Package factory creates vesting pools from allocation presets: a locked
// wallet for a single recipient, or a whitelist pool for a sale round.
package factory

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/curve"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

// ErrNotWhitelist is returned when a whitelist is requested for an
// allocation that is not sold to a whitelist.
var ErrNotWhitelist = errors.New("factory: allocation is not a whitelist sale")

// Initializer is the part of the engine the factory drives.
type Initializer interface {
	InitPool(ctx context.Context, caller common.Address, params lockup.PoolParams) (*vesting.Pool, error)
}

// Factory creates pools through an engine.
type Factory struct {
	engine Initializer
}

// New returns a factory over engine.
func New(engine Initializer) *Factory {
	return &Factory{engine: engine}
}

// Schedule overrides an allocation's default terms. A zero Schedule keeps
// the defaults.
type Schedule struct {
	Cliff     int64
	Duration  int64
	CurveKind curve.Kind
	RateTable []curve.Step
}

// VestingParams describes a single-recipient locked allocation.
type VestingParams struct {
	Name          string
	Allocation    vesting.Allocation
	Beneficiary   common.Address
	Amount        types.Amount
	InitialUnlock types.Amount
	Start         int64
	Schedule      Schedule
	Metadata      map[string]string
}

// CreateVestingPool creates a pool capped at Amount with Beneficiary as its
// only schedule.
func (f *Factory) CreateVestingPool(ctx context.Context, caller common.Address, p VestingParams) (*vesting.Pool, error) {
	params, err := baseParams(p.Name, p.Allocation, p.Amount, p.Start, p.Schedule, p.Metadata)
	if err != nil {
		return nil, err
	}
	params.Grants = []vesting.Grant{{
		Beneficiary:   p.Beneficiary,
		Amount:        p.Amount,
		InitialUnlock: p.InitialUnlock,
	}}
	return f.engine.InitPool(ctx, caller, params)
}

// WhitelistParams describes a sale-round pool with pre-filled buyers.
type WhitelistParams struct {
	Name       string
	Allocation vesting.Allocation
	Cap        types.Amount
	Start      int64
	Schedule   Schedule
	Buyers     []vesting.Grant
	Metadata   map[string]string
}

// CreateWhitelist creates a private, seed or strategic sale pool.
func (f *Factory) CreateWhitelist(ctx context.Context, caller common.Address, p WhitelistParams) (*vesting.Pool, error) {
	if !p.Allocation.IsWhitelist() {
		return nil, fmt.Errorf("%w: %s", ErrNotWhitelist, p.Allocation)
	}
	params, err := baseParams(p.Name, p.Allocation, p.Cap, p.Start, p.Schedule, p.Metadata)
	if err != nil {
		return nil, err
	}
	params.Grants = p.Buyers
	return f.engine.InitPool(ctx, caller, params)
}

func baseParams(name string, alloc vesting.Allocation, capacity types.Amount, start int64, s Schedule, meta map[string]string) (lockup.PoolParams, error) {
	cliff, duration := s.Cliff, s.Duration
	if cliff == 0 && duration == 0 {
		terms, ok := alloc.DefaultTerms()
		if !ok {
			return lockup.PoolParams{}, fmt.Errorf("%w: allocation %q has no default terms", lockup.ErrInvalidScheduleConfig, alloc)
		}
		cliff, duration = terms.Cliff(), terms.Duration()
	}
	if name == "" {
		name = alloc.String()
	}
	return lockup.PoolParams{
		Name:       name,
		Allocation: alloc,
		Cap:        capacity,
		Start:      start,
		Cliff:      cliff,
		Duration:   duration,
		CurveKind:  s.CurveKind,
		RateTable:  s.RateTable,
		Metadata:   meta,
	}, nil
}
