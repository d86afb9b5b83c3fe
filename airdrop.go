package lockup

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/access"
	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/types"
)

// ──────────────────────────────────────────────────
// Airdrop
// ──────────────────────────────────────────────────

// StartAirdrop enables airdrop claims. Starting an enabled airdrop is a no-op.
func (e *Engine) StartAirdrop(ctx context.Context, caller common.Address) (*airdrop.State, error) {
	if err := e.authorize(ctx, caller, access.ActionStartAirdrop); err != nil {
		return nil, err
	}

	e.mu.Lock()
	state, err := e.loadAirdropState(ctx)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if state.Enabled {
		e.mu.Unlock()
		return state, nil
	}
	state.Enabled = true
	state.StartedAt = e.clock.Now()
	state.Touch()
	err = e.store.SaveAirdropState(ctx, state)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.plugins.EmitAirdropStarted(ctx, state)
	e.logger.Info("airdrop started",
		"rate", state.Rate,
		"cooldown", state.Cooldown,
	)
	return state, nil
}

// ChangeAirdropRate sets the share of active principal paid per claim.
func (e *Engine) ChangeAirdropRate(ctx context.Context, caller common.Address, rate types.BPS) (*airdrop.State, error) {
	if err := e.authorize(ctx, caller, access.ActionChangeAirdropRate); err != nil {
		return nil, err
	}
	if !rate.Valid() {
		return nil, invalid(ErrInvalidFee, "rate", "%d bps exceeds %d", rate, types.MaxBPS)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	state, err := e.loadAirdropState(ctx)
	if err != nil {
		return nil, err
	}
	prev := state.Rate
	state.Rate = rate
	state.Touch()
	if err := e.store.SaveAirdropState(ctx, state); err != nil {
		return nil, err
	}

	e.logger.Info("airdrop rate changed",
		"from", prev,
		"to", rate,
	)
	return state, nil
}

// AirdropState returns the current airdrop configuration.
func (e *Engine) AirdropState(ctx context.Context) (*airdrop.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loadAirdropState(ctx)
}

// ClaimAirdrop pays caller the airdrop rate of their active staked
// principal. Claims of one owner are spaced by the cooldown; the first
// claim is always allowed.
func (e *Engine) ClaimAirdrop(ctx context.Context, caller common.Address) (*receipt.Receipt, error) {
	e.mu.Lock()
	state, err := e.loadAirdropState(ctx)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if !state.Enabled {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: airdrop has not started", ErrNotInitialized)
	}

	claim, err := e.store.GetAirdropClaim(ctx, caller)
	if err != nil && !IsNotFound(err) {
		e.mu.Unlock()
		return nil, err
	}
	now := e.clock.Now()
	if ends := claim.CooldownEnds(state.Cooldown); now < ends {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s may claim again at %d", ErrCooldownActive, caller.Hex(), ends)
	}

	principal, err := e.activePrincipal(ctx, caller)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	amount := airdrop.Payout(principal, state.Rate)
	if amount.IsZero() {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: no airdrop for %s with staked %s", ErrInvalidAmount, caller.Hex(), principal)
	}

	var before *airdrop.Claim
	if claim == nil {
		claim = &airdrop.Claim{Entity: types.NewEntity(), Owner: caller}
	} else {
		cp := *claim
		before = &cp
	}
	claim.LastClaim = now
	claim.Claimed = claim.Claimed.Add(amount)
	claim.Count++
	claim.Touch()
	if err := e.store.SaveAirdropClaim(ctx, claim); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	net, err := e.payout(ctx, caller, amount, func(ctx context.Context) error {
		if before == nil {
			return e.store.SaveAirdropClaim(ctx, &airdrop.Claim{Entity: claim.Entity, Owner: caller})
		}
		return e.store.SaveAirdropClaim(ctx, before)
	})
	if err != nil {
		return nil, err
	}

	r := e.record(ctx, &receipt.Receipt{
		Kind:      receipt.KindAirdrop,
		Account:   caller,
		Gross:     amount,
		Net:       net,
		Timestamp: now,
	})
	e.plugins.EmitAirdropClaimed(ctx, r)

	e.logger.Debug("airdrop claimed",
		"owner", caller.Hex(),
		"principal", principal.String(),
		"amount", amount.String(),
	)
	return r, nil
}

// loadAirdropState reads the stored state, seeding it from the engine
// configuration on first use. Caller holds mu.
func (e *Engine) loadAirdropState(ctx context.Context) (*airdrop.State, error) {
	state, err := e.store.GetAirdropState(ctx)
	if err == nil {
		return state, nil
	}
	if !IsNotFound(err) {
		return nil, err
	}
	state = &airdrop.State{
		Entity:   types.NewEntity(),
		Rate:     e.airdropRate,
		Cooldown: e.airdropCooldown,
	}
	if err := e.store.SaveAirdropState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}
