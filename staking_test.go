package lockup_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/clock"
	"github.com/xraph/lockup/receipt"
	tokenmem "github.com/xraph/lockup/token/memory"
	"github.com/xraph/lockup/types"
)

func (h *harness) stake(owner common.Address, amount uint64, tier int64) uint64 {
	h.t.Helper()
	pos, err := h.engine.Stake(h.ctx, owner, amt(amount), tier)
	require.NoError(h.t, err)
	return pos.Index
}

func TestEarlyWithdrawalPenalty(t *testing.T) {
	h := newHarness(t)
	h.mint(bob, amt(100_000))
	idx := h.stake(bob, 100_000, clock.Days(90))
	assert.Equal(t, "0", h.balance(bob))

	h.clock.Advance(clock.Days(30))
	rc, err := h.engine.WithdrawAllStake(h.ctx, bob, idx)
	require.NoError(t, err)
	assert.Equal(t, "100000", rc.Gross.String())
	assert.Equal(t, "493", rc.Reward.String())
	assert.Equal(t, "1507", rc.Penalty.String())
	assert.Equal(t, "98986", rc.Net.String())
	assert.Equal(t, "98986", h.balance(bob))

	summary, err := h.engine.HasStake(h.ctx, bob)
	require.NoError(t, err)
	assert.True(t, summary.TotalAmount.IsZero())
	require.Len(t, summary.Positions, 1)
	assert.Equal(t, common.Address{}, summary.Positions[0].Owner)
	assert.True(t, summary.Positions[0].Principal.IsZero())
	assert.True(t, summary.Positions[0].Claimable.IsZero())
}

func TestStakeValidation(t *testing.T) {
	h := newHarness(t)
	h.mint(bob, amt(1_000))

	_, err := h.engine.Stake(h.ctx, bob, types.Zero, clock.Days(30))
	require.ErrorIs(t, err, lockup.ErrInvalidAmount)

	_, err = h.engine.Stake(h.ctx, bob, amt(1_001), clock.Days(30))
	require.ErrorIs(t, err, lockup.ErrExceedsBalance)

	_, err = h.engine.Stake(h.ctx, bob, amt(1_000), clock.Days(29))
	require.ErrorIs(t, err, lockup.ErrInvalidTier)

	assert.Equal(t, "1000", h.balance(bob))
}

func TestPenaltyStopsAtMaturity(t *testing.T) {
	h := newHarness(t)
	h.mint(bob, amt(10_000))
	idx := h.stake(bob, 10_000, clock.Days(30))

	h.clock.Set(t0 + clock.Days(30) - 1)
	q, err := h.engine.QuoteWithdrawal(h.ctx, bob, amt(10_000), idx)
	require.NoError(t, err)
	assert.False(t, q.Matured)
	assert.False(t, q.Penalty.IsZero())

	h.clock.Set(t0 + clock.Days(30))
	q, err = h.engine.QuoteWithdrawal(h.ctx, bob, amt(10_000), idx)
	require.NoError(t, err)
	assert.True(t, q.Matured)
	assert.True(t, q.Penalty.IsZero())
	assert.Equal(t, "41", q.Reward.String())
	assert.Equal(t, "10041", q.Payout.String())
}

func TestRewardIsLinear(t *testing.T) {
	h := newHarness(t)
	h.mint(bob, amt(2_000_000))
	h.stake(bob, 1_000_000, clock.Days(90))

	h.clock.Set(t0 + clock.Days(73))
	one, err := h.engine.HasStake(h.ctx, bob)
	require.NoError(t, err)
	h.clock.Set(t0 + clock.Days(146))
	two, err := h.engine.HasStake(h.ctx, bob)
	require.NoError(t, err)

	// 1,000,000 at 6% over 73 days is exactly 12,000.
	assert.Equal(t, "12000", one.Positions[0].Claimable.String())
	assert.Equal(t, "24000", two.Positions[0].Claimable.String())
}

func TestPartialWithdrawal(t *testing.T) {
	h := newHarness(t)
	h.mint(bob, amt(100_000))
	idx := h.stake(bob, 100_000, clock.Days(90))

	h.clock.Set(t0 + clock.Days(45))
	rc, err := h.engine.WithdrawStake(h.ctx, bob, amt(40_000), idx)
	require.NoError(t, err)
	assert.Equal(t, "295", rc.Reward.String())
	assert.Equal(t, "604", rc.Penalty.String())
	assert.Equal(t, "39691", rc.Net.String())

	summary, err := h.engine.HasStake(h.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "60000", summary.TotalAmount.String())
	assert.Equal(t, "443", summary.Positions[0].Claimable.String())
	assert.Equal(t, bob, summary.Positions[0].Owner)

	_, err = h.engine.WithdrawStake(h.ctx, bob, amt(60_001), idx)
	require.ErrorIs(t, err, lockup.ErrInvalidAmount)

	h.clock.Set(t0 + clock.Days(90))
	rc, err = h.engine.WithdrawAllStake(h.ctx, bob, idx)
	require.NoError(t, err)
	assert.Equal(t, "887", rc.Reward.String())
	assert.True(t, rc.Penalty.IsZero())
	assert.Equal(t, "60887", rc.Net.String())
}

func TestPositionIndicesAreStable(t *testing.T) {
	h := newHarness(t)
	h.mint(bob, amt(3_000))
	first := h.stake(bob, 1_000, clock.Days(30))
	second := h.stake(bob, 1_000, clock.Days(90))
	assert.Equal(t, uint64(0), first)
	assert.Equal(t, uint64(1), second)

	_, err := h.engine.WithdrawAllStake(h.ctx, bob, first)
	require.NoError(t, err)
	_, err = h.engine.WithdrawAllStake(h.ctx, bob, first)
	require.ErrorIs(t, err, lockup.ErrPositionNotFound)

	third := h.stake(bob, 1_000, clock.Days(30))
	assert.Equal(t, uint64(2), third)

	_, err = h.engine.WithdrawAllStake(h.ctx, bob, 7)
	require.ErrorIs(t, err, lockup.ErrPositionNotFound)
	_, err = h.engine.WithdrawAllStake(h.ctx, alice, second)
	require.ErrorIs(t, err, lockup.ErrPositionNotFound)

	summary, err := h.engine.HasStake(h.ctx, bob)
	require.NoError(t, err)
	require.Len(t, summary.Positions, 3)
	assert.Equal(t, "2000", summary.TotalAmount.String())
}

func TestMaxPositions(t *testing.T) {
	h := newHarness(t, lockup.WithMaxPositions(1))
	h.mint(bob, amt(2_000))
	idx := h.stake(bob, 1_000, clock.Days(30))

	_, err := h.engine.Stake(h.ctx, bob, amt(1_000), clock.Days(30))
	require.ErrorIs(t, err, lockup.ErrMaxPositions)
	assert.Equal(t, "1000", h.balance(bob), "rejected stake must not move tokens")

	_, err = h.engine.WithdrawAllStake(h.ctx, bob, idx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), h.stake(bob, 1_000, clock.Days(30)))
}

func TestStakeCreditsNetOfTransferFee(t *testing.T) {
	h := newHarness(t)
	h.tokens.SetFees(h.engine, sink)
	h.mint(bob, amt(10_000))

	pos, err := h.engine.Stake(h.ctx, bob, amt(10_000), clock.Days(30))
	require.NoError(t, err)
	assert.Equal(t, "9900", pos.Principal.String())
	assert.Equal(t, "100", h.balance(sink))
}

func TestWithdrawRestoresPositionWhenTransferFails(t *testing.T) {
	h := newHarness(t)
	h.mint(bob, amt(10_000))
	idx := h.stake(bob, 10_000, clock.Days(30))
	h.clock.Advance(clock.Days(30))

	paused := errors.New("token paused")
	h.tokens.FailNextTransfer(paused)
	_, err := h.engine.WithdrawAllStake(h.ctx, bob, idx)
	require.ErrorIs(t, err, paused)

	summary, err := h.engine.HasStake(h.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "10000", summary.TotalAmount.String())
	assert.Equal(t, bob, summary.Positions[0].Owner)
	assert.True(t, summary.Positions[0].RewardPaid.IsZero())

	rc, err := h.engine.WithdrawAllStake(h.ctx, bob, idx)
	require.NoError(t, err)
	assert.Equal(t, "10041", rc.Net.String())
}

func TestRefundedStakeFees(t *testing.T) {
	tests := []struct {
		name      string
		tokens    *tokenmem.Ledger
		refund    string
		final     string
		collected string
	}{
		// Deposit 10000 nets 9900; the 9900 refund pays 99 more.
		{"taxed engine account", tokenmem.New(), "9801", "9801", "299"},
		{"exempt engine account", tokenmem.New(tokenmem.WithExempt(engineAddr)), "10000", "10000", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarnessOn(t, tt.tokens, lockup.WithMaxPositions(1))
			h.tokens.SetFees(h.engine, sink)
			h.mint(bob, amt(20_000))

			// A stake opened while the outer deposit is in flight takes
			// the only slot, so the outer position cannot be recorded.
			var inner error
			calls := 0
			h.tokens.OnTransfer(func(ctx context.Context, from, to common.Address, _ types.Amount) {
				if from != bob || to != engineAddr || calls > 0 {
					return
				}
				calls++
				_, inner = h.engine.Stake(ctx, bob, amt(10_000), clock.Days(30))
			})

			_, err := h.engine.Stake(h.ctx, bob, amt(10_000), clock.Days(30))
			require.ErrorIs(t, err, lockup.ErrMaxPositions)
			require.NoError(t, inner)

			assert.Equal(t, tt.final, h.balance(bob))
			assert.Equal(t, tt.collected, h.balance(sink))

			refunds, err := h.engine.ListReceipts(h.ctx, bob, receipt.ListOpts{Kind: receipt.KindRefund})
			require.NoError(t, err)
			require.Len(t, refunds, 1)
			assert.Equal(t, tt.refund, refunds[0].Net.String())
		})
	}
}

func TestReentrantWithdrawSeesCommittedState(t *testing.T) {
	h := newHarness(t)
	h.mint(bob, amt(10_000))
	idx := h.stake(bob, 10_000, clock.Days(30))
	h.clock.Advance(clock.Days(30))

	var inner error
	calls := 0
	h.tokens.OnTransfer(func(ctx context.Context, from, to common.Address, _ types.Amount) {
		if from != engineAddr || to != bob || calls > 0 {
			return
		}
		calls++
		_, inner = h.engine.WithdrawAllStake(ctx, bob, idx)
	})

	rc, err := h.engine.WithdrawAllStake(h.ctx, bob, idx)
	require.NoError(t, err)
	assert.Equal(t, "10041", rc.Net.String())
	require.Equal(t, 1, calls)
	require.ErrorIs(t, inner, lockup.ErrPositionNotFound)
	assert.Equal(t, "10041", h.balance(bob))
}
