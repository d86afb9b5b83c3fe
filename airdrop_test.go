package lockup_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/clock"
)

func TestAirdropCooldown(t *testing.T) {
	h := newHarness(t, lockup.WithAirdropRate(100))
	_, err := h.engine.StartAirdrop(h.ctx, admin)
	require.NoError(t, err)

	h.mint(bob, amt(100_000))
	h.stake(bob, 100_000, clock.Days(90))

	rc, err := h.engine.ClaimAirdrop(h.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "1000", rc.Net.String())

	h.clock.Set(t0 + clock.Days(20))
	_, err = h.engine.ClaimAirdrop(h.ctx, bob)
	require.ErrorIs(t, err, lockup.ErrCooldownActive)
	assert.True(t, lockup.IsRetryable(err))

	h.clock.Set(t0 + clock.Days(30) - 1)
	_, err = h.engine.ClaimAirdrop(h.ctx, bob)
	require.ErrorIs(t, err, lockup.ErrCooldownActive)

	h.clock.Set(t0 + clock.Days(31))
	_, err = h.engine.ClaimAirdrop(h.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "2000", h.balance(bob))
}

func TestAirdropPreconditions(t *testing.T) {
	h := newHarness(t, lockup.WithAirdropRate(100))
	h.mint(bob, amt(1_000))
	h.stake(bob, 1_000, clock.Days(30))

	_, err := h.engine.ClaimAirdrop(h.ctx, bob)
	require.ErrorIs(t, err, lockup.ErrNotInitialized)

	_, err = h.engine.StartAirdrop(h.ctx, bob)
	require.ErrorIs(t, err, lockup.ErrUnauthorized)

	first, err := h.engine.StartAirdrop(h.ctx, admin)
	require.NoError(t, err)
	h.clock.Advance(clock.Day)
	again, err := h.engine.StartAirdrop(h.ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, first.StartedAt, again.StartedAt, "starting twice is a no-op")

	// No active stake, nothing to pay.
	_, err = h.engine.ClaimAirdrop(h.ctx, alice)
	require.ErrorIs(t, err, lockup.ErrInvalidAmount)
}

func TestChangeAirdropRate(t *testing.T) {
	h := newHarness(t)

	_, err := h.engine.ChangeAirdropRate(h.ctx, admin, 10_001)
	require.ErrorIs(t, err, lockup.ErrInvalidFee)
	_, err = h.engine.ChangeAirdropRate(h.ctx, bob, 50)
	require.ErrorIs(t, err, lockup.ErrUnauthorized)

	state, err := h.engine.ChangeAirdropRate(h.ctx, admin, 250)
	require.NoError(t, err)
	assert.False(t, state.Enabled)

	_, err = h.engine.StartAirdrop(h.ctx, admin)
	require.NoError(t, err)
	h.mint(bob, amt(10_000))
	h.stake(bob, 10_000, clock.Days(30))

	rc, err := h.engine.ClaimAirdrop(h.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "250", rc.Gross.String())
}

func TestAirdropClaimRevertsWhenTransferFails(t *testing.T) {
	h := newHarness(t, lockup.WithAirdropRate(100))
	_, err := h.engine.StartAirdrop(h.ctx, admin)
	require.NoError(t, err)
	h.mint(bob, amt(10_000))
	h.stake(bob, 10_000, clock.Days(30))

	paused := errors.New("token paused")
	h.tokens.FailNextTransfer(paused)
	_, err = h.engine.ClaimAirdrop(h.ctx, bob)
	require.ErrorIs(t, err, paused)

	// The failed claim does not start a cooldown.
	rc, err := h.engine.ClaimAirdrop(h.ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, "100", rc.Net.String())
}
