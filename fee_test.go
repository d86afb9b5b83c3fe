package lockup_test

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/access"
	"github.com/xraph/lockup/clock"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/timelock"
)

func TestApplyFee(t *testing.T) {
	h := newHarness(t)

	net, charged := h.engine.ApplyFee(amt(10_000))
	assert.Equal(t, "9900", net.String())
	assert.Equal(t, "100", charged.String())
	assert.Equal(t, fee.DefaultPenaltyRate, h.engine.FeeSchedule().PenaltyRate)
}

func TestChangeTaxFeeInterval(t *testing.T) {
	h := newHarness(t)

	s, err := h.engine.ChangeTaxFee(h.ctx, admin, 200)
	require.NoError(t, err, "first change is always allowed")
	assert.Equal(t, t0, s.LastChange)

	_, err = h.engine.ChangeTaxFee(h.ctx, admin, 300)
	require.ErrorIs(t, err, lockup.ErrTimelockNotElapsed)

	h.clock.Set(t0 + fee.DefaultMinChangeInterval - 1)
	_, err = h.engine.ChangeTaxFee(h.ctx, admin, 300)
	require.ErrorIs(t, err, lockup.ErrTimelockNotElapsed)

	h.clock.Set(t0 + fee.DefaultMinChangeInterval)
	_, err = h.engine.ChangeTaxFee(h.ctx, admin, 10_001)
	require.ErrorIs(t, err, lockup.ErrInvalidFee)

	_, err = h.engine.ChangeTaxFee(h.ctx, bob, 300)
	require.ErrorIs(t, err, lockup.ErrUnauthorized)

	_, err = h.engine.ChangeTaxFee(h.ctx, admin, 300)
	require.NoError(t, err)

	_, charged := h.engine.ApplyFee(amt(10_000))
	assert.Equal(t, "300", charged.String())

	stored, err := h.store.GetFeeSchedule(h.ctx)
	require.NoError(t, err)
	assert.Equal(t, h.engine.FeeSchedule().TaxFee, stored.TaxFee)
}

func TestChangePenaltyRate(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.ChangePenaltyRate(h.ctx, admin, 10_001)
	require.ErrorIs(t, err, lockup.ErrInvalidFee)

	_, err = h.engine.ChangePenaltyRate(h.ctx, admin, 0)
	require.NoError(t, err)

	h.mint(bob, amt(10_000))
	idx := h.stake(bob, 10_000, clock.Days(90))
	rc, err := h.engine.WithdrawAllStake(h.ctx, bob, idx)
	require.NoError(t, err)
	assert.True(t, rc.Penalty.IsZero())
	assert.Equal(t, "10000", rc.Net.String())
}

func TestFeeScheduleSurvivesRestart(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.ChangeTaxFee(h.ctx, admin, 250)
	require.NoError(t, err)

	e := lockup.New(h.store, h.tokens.Account(engineAddr), lockup.WithClock(h.clock))
	require.NoError(t, e.Start(h.ctx))
	assert.Equal(t, uint32(250), uint32(e.FeeSchedule().TaxFee))
}

func TestRateChangesThroughTimelock(t *testing.T) {
	tlAddr := common.HexToAddress("0x7100")
	h := newHarness(t, lockup.WithAccessControl(access.NewOwner(tlAddr)))
	tl := timelock.New(tlAddr, h.clock, timelock.WithGuard(access.NewOwner(admin)))
	h.engine.RegisterTimelock(tl)

	_, err := h.engine.ChangeTaxFee(h.ctx, admin, 300)
	require.ErrorIs(t, err, lockup.ErrUnauthorized, "only the timelock may change fees")

	payload, err := lockup.EncodeRate(300)
	require.NoError(t, err)
	eta := t0 + timelock.DefaultDelay
	_, err = tl.Queue(h.ctx, admin, lockup.TargetChangeTaxFee, payload, eta)
	require.NoError(t, err)

	h.clock.Set(eta)
	require.NoError(t, tl.Execute(h.ctx, admin, lockup.TargetChangeTaxFee, payload, eta))
	assert.Equal(t, uint32(300), uint32(h.engine.FeeSchedule().TaxFee))

	bad, err := lockup.EncodeRate(20_000)
	require.NoError(t, err)
	_, err = tl.Queue(h.ctx, admin, lockup.TargetChangePenaltyRate, bad, eta+timelock.DefaultDelay)
	require.NoError(t, err)
	h.clock.Set(eta + timelock.DefaultDelay)
	require.ErrorIs(t, tl.Execute(h.ctx, admin, lockup.TargetChangePenaltyRate, bad, eta+timelock.DefaultDelay), lockup.ErrInvalidFee)
}

func TestConsensusGuard(t *testing.T) {
	guard, err := access.NewConsensus(2, admin, alice, bob)
	require.NoError(t, err)
	h := newHarness(t, lockup.WithAccessControl(guard))

	_, err = h.engine.ChangePenaltyRate(h.ctx, admin, 500)
	require.ErrorIs(t, err, lockup.ErrUnauthorized)
	assert.Equal(t, 1, guard.Pending(access.ActionChangePenaltyRate))

	s, err := h.engine.ChangePenaltyRate(h.ctx, alice, 500)
	require.NoError(t, err)
	assert.Equal(t, uint32(500), uint32(s.PenaltyRate))
}
