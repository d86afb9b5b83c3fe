package staking

import (
	"errors"
	"fmt"

	"github.com/xraph/lockup/clock"
	"github.com/xraph/lockup/types"
)

// ErrInvalidPolicy is returned for a malformed reward table.
var ErrInvalidPolicy = errors.New("staking: invalid reward policy")

// Tier maps a minimum lock duration (seconds) to an annual rate.
type Tier struct {
	MinDuration int64     `json:"min_duration" mapstructure:"min_duration" yaml:"min_duration"`
	APY         types.BPS `json:"apy_bps" mapstructure:"apy_bps" yaml:"apy_bps"`
}

// RewardPolicy resolves the APY of a lock duration and accrues simple interest.
type RewardPolicy struct {
	tiers []Tier
}

// NewRewardPolicy validates tiers: durations strictly increasing and
// positive, rates non-decreasing.
func NewRewardPolicy(tiers ...Tier) (*RewardPolicy, error) {
	if len(tiers) == 0 {
		return nil, fmt.Errorf("%w: no tiers", ErrInvalidPolicy)
	}
	for i, t := range tiers {
		if t.MinDuration <= 0 {
			return nil, fmt.Errorf("%w: tier %d has non-positive duration", ErrInvalidPolicy, i)
		}
		if i == 0 {
			continue
		}
		if t.MinDuration <= tiers[i-1].MinDuration {
			return nil, fmt.Errorf("%w: tier %d duration not increasing", ErrInvalidPolicy, i)
		}
		if t.APY < tiers[i-1].APY {
			return nil, fmt.Errorf("%w: tier %d rate decreases", ErrInvalidPolicy, i)
		}
	}
	cp := make([]Tier, len(tiers))
	copy(cp, tiers)
	return &RewardPolicy{tiers: cp}, nil
}

// DefaultRewardPolicy pays 5% for 30-day locks and 6% from 90 days.
func DefaultRewardPolicy() *RewardPolicy {
	p, _ := NewRewardPolicy( //nolint:errcheck // static table
		Tier{MinDuration: clock.Days(30), APY: 500},
		Tier{MinDuration: clock.Days(90), APY: 600},
	)
	return p
}

// Tiers returns a copy of the table.
func (p *RewardPolicy) Tiers() []Tier {
	cp := make([]Tier, len(p.tiers))
	copy(cp, p.tiers)
	return cp
}

// APY returns the rate of the highest tier whose MinDuration <= duration.
// ok is false when duration is below every tier.
func (p *RewardPolicy) APY(duration int64) (apy types.BPS, ok bool) {
	for _, t := range p.tiers {
		if t.MinDuration > duration {
			break
		}
		apy, ok = t.APY, true
	}
	return apy, ok
}

// Reward returns principal * APY * elapsed / (10000 * 365 days).
func (p *RewardPolicy) Reward(pos *Position, now int64) types.Amount {
	apy, ok := p.APY(pos.Tier)
	if !ok || now <= pos.Start || pos.Principal.IsZero() {
		return types.Zero
	}
	num := types.NewAmount(uint64(apy)).Mul(types.NewAmount(uint64(now - pos.Start)))
	den := types.NewAmount(uint64(types.MaxBPS)).Mul(types.NewAmount(uint64(clock.Year)))
	return pos.Principal.MulDiv(num, den)
}

// PenaltyPolicy charges Rate on early withdrawals.
type PenaltyPolicy struct {
	Rate types.BPS
}

// Penalty returns Rate of base when now is before maturity, otherwise zero.
func (p PenaltyPolicy) Penalty(base types.Amount, pos *Position, now int64) types.Amount {
	if now >= pos.MaturesAt() {
		return types.Zero
	}
	return p.Rate.Of(base)
}

// Quote computes the payout for withdrawing amount of pos at now. The
// withdrawn share of accrued reward is proportional to amount/principal.
// amount must not exceed the principal.
func Quote(rewards *RewardPolicy, penalty PenaltyPolicy, pos *Position, amount types.Amount, now int64) Withdrawal {
	w := Withdrawal{Amount: amount, Matured: now >= pos.MaturesAt()}
	if amount.IsZero() || pos.Principal.IsZero() {
		w.Reward, w.Penalty, w.Payout = types.Zero, types.Zero, types.Zero
		return w
	}
	w.Reward = rewards.Reward(pos, now).MulDiv(amount, pos.Principal)
	base := amount.Add(w.Reward)
	w.Penalty = penalty.Penalty(base, pos, now)
	w.Payout = base.Sub(w.Penalty)
	return w
}
