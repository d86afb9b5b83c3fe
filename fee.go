package lockup

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/access"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/timelock"
	"github.com/xraph/lockup/token"
	"github.com/xraph/lockup/types"
)

// Timelock targets registered by RegisterTimelock. Payloads are the
// RLP-encoded rate in basis points as a uint64.
const (
	TargetChangeTaxFee      = "lockup.change_tax_fee"
	TargetChangePenaltyRate = "lockup.change_penalty_rate"
	TargetChangeAirdropRate = "lockup.change_airdrop_rate"
)

var _ token.FeeApplier = (*Engine)(nil)

// ──────────────────────────────────────────────────
// Fees
// ──────────────────────────────────────────────────

// ApplyFee splits a transfer into net and fee under the current tax fee.
// The engine doubles as the token.FeeApplier of a fee-on-transfer ledger.
func (e *Engine) ApplyFee(amount types.Amount) (net, charged types.Amount) {
	return e.fees.Load().ApplyFee(amount)
}

// FeeSchedule returns a copy of the current fee schedule.
func (e *Engine) FeeSchedule() fee.Schedule {
	return *e.fees.Load()
}

// ChangeTaxFee sets the tax fee. After the first change, further changes
// must be spaced by the minimum change interval.
func (e *Engine) ChangeTaxFee(ctx context.Context, caller common.Address, bps types.BPS) (*fee.Schedule, error) {
	if err := e.authorize(ctx, caller, access.ActionChangeTaxFee); err != nil {
		return nil, err
	}

	e.mu.Lock()
	prev, err := e.loadFeeSchedule(ctx)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	now := e.clock.Now()
	if next := prev.NextChangeAt(); now < next {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: next change allowed at %d", ErrTimelockNotElapsed, next)
	}
	if !bps.Valid() {
		e.mu.Unlock()
		return nil, invalid(ErrInvalidFee, "tax_fee", "%d bps exceeds %d", bps, types.MaxBPS)
	}

	next := *prev
	next.TaxFee = bps
	next.LastChange = now
	next.Touch()
	if err := e.store.SaveFeeSchedule(ctx, &next); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.fees.Store(&next)
	e.mu.Unlock()

	e.plugins.EmitFeeChanged(ctx, prev, &next)
	e.logger.Info("tax fee changed",
		"from", prev.TaxFee,
		"to", bps,
	)
	return &next, nil
}

// ChangePenaltyRate sets the early-withdrawal penalty rate.
func (e *Engine) ChangePenaltyRate(ctx context.Context, caller common.Address, bps types.BPS) (*fee.Schedule, error) {
	if err := e.authorize(ctx, caller, access.ActionChangePenaltyRate); err != nil {
		return nil, err
	}
	if !bps.Valid() {
		return nil, invalid(ErrInvalidFee, "penalty_rate", "%d bps exceeds %d", bps, types.MaxBPS)
	}

	e.mu.Lock()
	prev, err := e.loadFeeSchedule(ctx)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	next := *prev
	next.PenaltyRate = bps
	next.Touch()
	if err := e.store.SaveFeeSchedule(ctx, &next); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.fees.Store(&next)
	e.mu.Unlock()

	e.plugins.EmitFeeChanged(ctx, prev, &next)
	e.logger.Info("penalty rate changed",
		"from", prev.PenaltyRate,
		"to", bps,
	)
	return &next, nil
}

func (e *Engine) defaultFeeSchedule() *fee.Schedule {
	return &fee.Schedule{
		Entity:            types.NewEntity(),
		TaxFee:            e.taxFee,
		PenaltyRate:       e.penaltyRate,
		MinChangeInterval: e.minChangeInterval,
	}
}

// loadFeeSchedule reads the stored schedule, seeding it from the engine
// configuration on first use. Caller holds mu.
func (e *Engine) loadFeeSchedule(ctx context.Context) (*fee.Schedule, error) {
	s, err := e.store.GetFeeSchedule(ctx)
	if err == nil {
		return s, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	s = e.defaultFeeSchedule()
	if err := e.store.SaveFeeSchedule(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// ──────────────────────────────────────────────────
// Timelock integration
// ──────────────────────────────────────────────────

// RegisterTimelock exposes the rate changes as timelock targets. The
// timelock calls them as itself, so the access controller must authorize
// the timelock's address.
func (e *Engine) RegisterTimelock(t *timelock.Timelock) {
	t.Register(TargetChangeTaxFee, e.rateHandler(func(ctx context.Context, caller common.Address, bps types.BPS) error {
		_, err := e.ChangeTaxFee(ctx, caller, bps)
		return err
	}))
	t.Register(TargetChangePenaltyRate, e.rateHandler(func(ctx context.Context, caller common.Address, bps types.BPS) error {
		_, err := e.ChangePenaltyRate(ctx, caller, bps)
		return err
	}))
	t.Register(TargetChangeAirdropRate, e.rateHandler(func(ctx context.Context, caller common.Address, bps types.BPS) error {
		_, err := e.ChangeAirdropRate(ctx, caller, bps)
		return err
	}))
}

func (e *Engine) rateHandler(apply func(context.Context, common.Address, types.BPS) error) timelock.Handler {
	return func(ctx context.Context, caller common.Address, payload []byte) error {
		var bps uint64
		if err := timelock.Decode(payload, &bps); err != nil {
			return err
		}
		if bps > uint64(types.MaxBPS) {
			return invalid(ErrInvalidFee, "payload", "%d bps exceeds %d", bps, types.MaxBPS)
		}
		return apply(ctx, caller, types.BPS(bps))
	}
}

// EncodeRate builds the timelock payload for a rate target.
func EncodeRate(bps types.BPS) ([]byte, error) {
	return timelock.Encode(uint64(bps))
}
