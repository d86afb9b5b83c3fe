package lockup

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/types"
)

// ──────────────────────────────────────────────────
// Staking
// ──────────────────────────────────────────────────

// Stake locks amount of caller's tokens for tier seconds. The position is
// credited with what the ledger actually delivered, which is less than
// amount when the ledger charges a transfer fee.
//
// A deposit whose position cannot be recorded, e.g. because a concurrent
// stake filled MaxPositions, is refunded at the net amount credited. A
// fee-charging ledger taxes that refund again unless the engine account is
// fee-exempt, as it is on the extension's built-in ledger.
func (e *Engine) Stake(ctx context.Context, caller common.Address, amount types.Amount, tier int64) (*staking.Position, error) {
	if amount.IsZero() {
		return nil, invalid(ErrInvalidAmount, "amount", "stake amount must be positive")
	}
	if _, ok := e.rewards.APY(tier); !ok {
		return nil, fmt.Errorf("%w: %ds", ErrInvalidTier, tier)
	}
	balance, err := e.ledger.BalanceOf(ctx, caller)
	if err != nil {
		return nil, fmt.Errorf("lockup: balance of %s: %w", caller.Hex(), err)
	}
	if balance.Lt(amount) {
		return nil, fmt.Errorf("%w: %s holds %s, staking %s", ErrExceedsBalance, caller.Hex(), balance, amount)
	}

	e.mu.Lock()
	err = e.checkPositionLimit(ctx, caller)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	// The deposit is the one transfer that precedes the commit: the
	// position must hold the net amount the ledger credited.
	net, err := e.ledger.TransferFrom(ctx, caller, e.account, amount)
	if err != nil {
		return nil, fmt.Errorf("lockup: stake transfer from %s: %w", caller.Hex(), err)
	}
	if net.IsZero() {
		return nil, invalid(ErrInvalidAmount, "amount", "nothing credited after transfer fee")
	}

	e.mu.Lock()
	pos, err := e.openPosition(ctx, caller, net, tier)
	e.mu.Unlock()
	if err != nil {
		e.refund(ctx, caller, net, err)
		return nil, err
	}

	r := e.record(ctx, &receipt.Receipt{
		Kind:      receipt.KindStake,
		Account:   caller,
		Index:     pos.Index,
		Gross:     amount,
		Net:       net,
		Timestamp: pos.Start,
	})
	e.plugins.EmitStaked(ctx, pos, r)

	e.logger.Debug("stake opened",
		"owner", caller.Hex(),
		"index", pos.Index,
		"principal", net.String(),
		"tier", tier,
	)
	return pos, nil
}

// openPosition appends a position. Caller holds mu.
func (e *Engine) openPosition(ctx context.Context, owner common.Address, principal types.Amount, tier int64) (*staking.Position, error) {
	if err := e.checkPositionLimit(ctx, owner); err != nil {
		return nil, err
	}
	index, err := e.store.CountPositions(ctx, owner)
	if err != nil {
		return nil, err
	}
	pos := &staking.Position{
		Entity:    types.NewEntity(),
		ID:        id.NewPositionID(),
		Account:   owner,
		Owner:     owner,
		Index:     index,
		Principal: principal,
		Tier:      tier,
		Start:     e.clock.Now(),
	}
	if err := e.store.CreatePosition(ctx, pos); err != nil {
		return nil, err
	}
	return pos, nil
}

// checkPositionLimit enforces MaxPositions over active positions. Caller holds mu.
func (e *Engine) checkPositionLimit(ctx context.Context, owner common.Address) error {
	if e.maxPositions == 0 {
		return nil
	}
	positions, err := e.store.ListPositions(ctx, owner)
	if err != nil {
		return err
	}
	active := 0
	for _, p := range positions {
		if !p.Tombstoned() {
			active++
		}
	}
	if active >= e.maxPositions {
		return fmt.Errorf("%w: %s has %d active", ErrMaxPositions, owner.Hex(), active)
	}
	return nil
}

// refund returns a deposit whose position could not be recorded. The refund
// is an ordinary transfer and pays the ledger's fee unless the engine
// account is exempt.
func (e *Engine) refund(ctx context.Context, to common.Address, amount types.Amount, cause error) {
	net, err := e.ledger.Transfer(ctx, to, amount)
	if err != nil {
		e.logger.Error("stake refund failed",
			"owner", to.Hex(),
			"amount", amount.String(),
			"cause", cause,
			"error", err,
		)
		e.plugins.EmitTransferFailed(ctx, to, amount, err)
		return
	}
	e.record(ctx, &receipt.Receipt{
		Kind:    receipt.KindRefund,
		Account: to,
		Gross:   amount,
		Net:     net,
	})
	e.logger.Warn("stake refunded",
		"owner", to.Hex(),
		"amount", amount.String(),
		"cause", cause,
	)
}

// WithdrawStake withdraws amount of principal from position index together
// with the proportional share of accrued reward. Before maturity the
// penalty rate is charged on principal plus reward.
func (e *Engine) WithdrawStake(ctx context.Context, caller common.Address, amount types.Amount, index uint64) (*receipt.Receipt, error) {
	if amount.IsZero() {
		return nil, invalid(ErrInvalidAmount, "amount", "withdraw amount must be positive")
	}
	return e.withdraw(ctx, caller, index, func(*staking.Position) types.Amount { return amount })
}

// WithdrawAllStake withdraws the whole principal of position index.
func (e *Engine) WithdrawAllStake(ctx context.Context, caller common.Address, index uint64) (*receipt.Receipt, error) {
	return e.withdraw(ctx, caller, index, func(p *staking.Position) types.Amount { return p.Principal })
}

func (e *Engine) withdraw(ctx context.Context, caller common.Address, index uint64, size func(*staking.Position) types.Amount) (*receipt.Receipt, error) {
	e.mu.Lock()
	pos, err := e.activePosition(ctx, caller, index)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	amount := size(pos)
	if amount.IsZero() || pos.Principal.Lt(amount) {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: withdrawing %s of %s", ErrInvalidAmount, amount, pos.Principal)
	}

	now := e.clock.Now()
	w := staking.Quote(e.rewards, staking.PenaltyPolicy{Rate: e.fees.Load().PenaltyRate}, pos, amount, now)

	before := *pos
	pos.Principal = pos.Principal.Sub(amount)
	pos.Withdrawn = pos.Withdrawn.Add(amount)
	pos.RewardPaid = pos.RewardPaid.Add(w.Reward)
	if pos.Principal.IsZero() {
		pos.Tombstone()
	}
	pos.Touch()
	if err := e.store.UpdatePosition(ctx, pos); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.mu.Unlock()

	net := types.Zero
	if !w.Payout.IsZero() {
		net, err = e.payout(ctx, caller, w.Payout, func(ctx context.Context) error {
			return e.restorePosition(ctx, &before, amount, w.Reward)
		})
		if err != nil {
			return nil, err
		}
	}

	r := e.record(ctx, &receipt.Receipt{
		Kind:      receipt.KindWithdraw,
		Account:   caller,
		Index:     index,
		Gross:     amount,
		Reward:    w.Reward,
		Penalty:   w.Penalty,
		Net:       net,
		Timestamp: now,
	})
	e.plugins.EmitStakeWithdrawn(ctx, pos, r)

	e.logger.Debug("stake withdrawn",
		"owner", caller.Hex(),
		"index", index,
		"amount", amount.String(),
		"reward", w.Reward.String(),
		"penalty", w.Penalty.String(),
		"matured", w.Matured,
	)
	return r, nil
}

// restorePosition undoes a withdrawal of amount and reward from the
// position captured in before. Caller holds mu.
func (e *Engine) restorePosition(ctx context.Context, before *staking.Position, amount, reward types.Amount) error {
	pos, err := e.store.GetPosition(ctx, before.Account, before.Index)
	if err != nil {
		return err
	}
	pos.Owner = before.Owner
	pos.Principal = pos.Principal.Add(amount)
	pos.Withdrawn = pos.Withdrawn.SubFloor(amount)
	pos.RewardPaid = pos.RewardPaid.SubFloor(reward)
	pos.Touch()
	return e.store.UpdatePosition(ctx, pos)
}

// activePosition loads a position that has not been tombstoned. Caller holds mu.
func (e *Engine) activePosition(ctx context.Context, owner common.Address, index uint64) (*staking.Position, error) {
	pos, err := e.store.GetPosition(ctx, owner, index)
	if err != nil {
		if IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s #%d", ErrPositionNotFound, owner.Hex(), index)
		}
		return nil, err
	}
	if pos.Tombstoned() {
		return nil, fmt.Errorf("%w: %s #%d was withdrawn", ErrPositionNotFound, owner.Hex(), index)
	}
	return pos, nil
}

// HasStake summarizes an account's positions, withdrawn slots included, with
// the reward each active position has accrued so far.
func (e *Engine) HasStake(ctx context.Context, owner common.Address) (*staking.Summary, error) {
	e.mu.Lock()
	positions, err := e.store.ListPositions(ctx, owner)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	now := e.clock.Now()
	summary := &staking.Summary{
		TotalAmount: types.Zero,
		Positions:   make([]staking.PositionSummary, 0, len(positions)),
	}
	for _, p := range positions {
		ps := staking.PositionSummary{Position: *p, Claimable: types.Zero}
		if !p.Tombstoned() {
			ps.Claimable = e.rewards.Reward(p, now)
			summary.TotalAmount = summary.TotalAmount.Add(p.Principal)
		}
		summary.Positions = append(summary.Positions, ps)
	}
	return summary, nil
}

// QuoteWithdrawal previews WithdrawStake without changing anything.
func (e *Engine) QuoteWithdrawal(ctx context.Context, owner common.Address, amount types.Amount, index uint64) (staking.Withdrawal, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pos, err := e.activePosition(ctx, owner, index)
	if err != nil {
		return staking.Withdrawal{}, err
	}
	if amount.IsZero() || pos.Principal.Lt(amount) {
		return staking.Withdrawal{}, fmt.Errorf("%w: withdrawing %s of %s", ErrInvalidAmount, amount, pos.Principal)
	}
	return staking.Quote(e.rewards, staking.PenaltyPolicy{Rate: e.fees.Load().PenaltyRate}, pos, amount, e.clock.Now()), nil
}

// RewardPolicy returns the staking reward tiers in use.
func (e *Engine) RewardPolicy() *staking.RewardPolicy { return e.rewards }

// activePrincipal sums the principal of an owner's active positions. Caller holds mu.
func (e *Engine) activePrincipal(ctx context.Context, owner common.Address) (types.Amount, error) {
	positions, err := e.store.ListPositions(ctx, owner)
	if err != nil {
		return types.Zero, err
	}
	total := types.Zero
	for _, p := range positions {
		if !p.Tombstoned() {
			total = total.Add(p.Principal)
		}
	}
	return total, nil
}
