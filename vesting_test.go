package lockup_test

import (
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/clock"
	"github.com/xraph/lockup/curve"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

func (h *harness) pool(params lockup.PoolParams) *vesting.Pool {
	h.t.Helper()
	p, err := h.engine.InitPool(h.ctx, admin, params)
	require.NoError(h.t, err)
	return p
}

func linearPool(capacity uint64, cliff, duration int64, grants ...vesting.Grant) lockup.PoolParams {
	return lockup.PoolParams{
		Name:       "team",
		Allocation: vesting.AllocationTeam,
		Cap:        amt(capacity),
		Start:      t0,
		Cliff:      cliff,
		Duration:   duration,
		Grants:     grants,
	}
}

func TestReleaseAfterCliff(t *testing.T) {
	h := newHarness(t)
	p := h.pool(linearPool(1_000_000, clock.Months(2), clock.Months(12),
		vesting.Grant{Beneficiary: alice, Amount: amt(1_000_000)}))

	h.clock.Set(t0 + clock.Months(1))
	vested, err := h.engine.VestedAmount(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.True(t, vested.IsZero())
	_, err = h.engine.Release(h.ctx, p.ID, alice)
	require.ErrorIs(t, err, lockup.ErrNotYetClaimable)
	assert.True(t, lockup.IsRetryable(err))

	h.clock.Set(t0 + clock.Months(7))
	vested, err = h.engine.VestedAmount(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "500000", vested.String())

	rc, err := h.engine.Release(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "500000", rc.Gross.String())
	assert.Equal(t, "500000", rc.Net.String())
	assert.Equal(t, "500000", h.balance(alice))

	// Same instant: nothing left.
	_, err = h.engine.Release(h.ctx, p.ID, alice)
	require.ErrorIs(t, err, lockup.ErrNotYetClaimable)

	h.clock.Set(t0 + clock.Months(12))
	_, err = h.engine.Release(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "1000000", h.balance(alice))

	sched, err := h.engine.GetSchedule(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.True(t, sched.FullyReleased())

	pool, err := h.engine.GetPool(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "1000000", pool.Released.String())
}

func TestCliffAndDurationBoundaries(t *testing.T) {
	h := newHarness(t)
	p := h.pool(linearPool(1_000, clock.Days(10), clock.Days(110),
		vesting.Grant{Beneficiary: alice, Amount: amt(1_000)}))

	cases := []struct {
		at   int64
		want string
	}{
		{t0 - 1, "0"},
		{t0 + clock.Days(10) - 1, "0"},
		{t0 + clock.Days(10), "0"},
		{t0 + clock.Days(60), "500"},
		{t0 + clock.Days(110) - 1, "999"},
		{t0 + clock.Days(110), "1000"},
		{t0 + clock.Days(500), "1000"},
	}
	for _, c := range cases {
		h.clock.Set(c.at)
		got, err := h.engine.VestedAmount(h.ctx, p.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, c.want, got.String(), "at %d", c.at-t0)
	}
}

func TestVestedAmountMonotonic(t *testing.T) {
	h := newHarness(t)
	p := h.pool(linearPool(7_777_777, clock.Days(13), clock.Days(377),
		vesting.Grant{Beneficiary: alice, Amount: amt(7_777_777), InitialUnlock: amt(777)}))

	prev := types.Zero
	for at := t0 - clock.Day; at <= t0+clock.Days(400); at += 36_001 {
		h.clock.Set(at)
		got, err := h.engine.VestedAmount(h.ctx, p.ID, alice)
		require.NoError(t, err)
		require.False(t, got.Lt(prev), "vested decreased at %d", at)
		prev = got
	}
	assert.Equal(t, "7777777", prev.String())
}

func TestInitialUnlockVestsAtStart(t *testing.T) {
	h := newHarness(t)
	p := h.pool(linearPool(1_000, clock.Months(2), clock.Months(12),
		vesting.Grant{Beneficiary: alice, Amount: amt(1_000), InitialUnlock: amt(100)}))

	h.clock.Set(t0 - 1)
	_, err := h.engine.Release(h.ctx, p.ID, alice)
	require.ErrorIs(t, err, lockup.ErrNotYetClaimable)

	h.clock.Set(t0)
	rc, err := h.engine.Release(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "100", rc.Gross.String())

	h.clock.Set(t0 + clock.Months(7))
	claimable, err := h.engine.Claimable(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "450", claimable.String())
}

func TestTableCurvePool(t *testing.T) {
	h := newHarness(t)
	p := h.pool(lockup.PoolParams{
		Allocation: vesting.AllocationPublicSale,
		Cap:        amt(1_000),
		Start:      t0,
		CurveKind:  curve.KindTable,
		RateTable: []curve.Step{
			{Month: 0, Fraction: curve.Fraction{Num: 1, Den: 10}},
			{Month: 3, Fraction: curve.Fraction{Num: 4, Den: 10}},
			{Month: 6, Fraction: curve.Full},
		},
		Grants: []vesting.Grant{{Beneficiary: alice, Amount: amt(1_000)}},
	})

	for _, c := range []struct {
		at   int64
		want string
	}{
		{t0, "100"},
		{t0 + clock.Months(3) - 1, "100"},
		{t0 + clock.Months(3), "400"},
		{t0 + clock.Months(6), "1000"},
	} {
		h.clock.Set(c.at)
		got, err := h.engine.VestedAmount(h.ctx, p.ID, alice)
		require.NoError(t, err)
		assert.Equal(t, c.want, got.String())
	}
}

func TestInitPoolValidation(t *testing.T) {
	h := newHarness(t)

	cases := []struct {
		name   string
		params lockup.PoolParams
		want   error
	}{
		{"cliff beyond duration", linearPool(100, clock.Days(20), clock.Days(10)), lockup.ErrInvalidScheduleConfig},
		{"unset start", lockup.PoolParams{Cap: amt(100)}, lockup.ErrInvalidScheduleConfig},
		{"zero cap", linearPool(0, 0, clock.Days(10)), lockup.ErrInvalidScheduleConfig},
		{"end past int64", linearPool(1_000, 0, math.MaxInt64,
			vesting.Grant{Beneficiary: alice, Amount: amt(1_000)}), lockup.ErrInvalidScheduleConfig},
		{"bad table", lockup.PoolParams{Cap: amt(1), Start: t0, CurveKind: curve.KindTable,
			RateTable: []curve.Step{{Month: 2, Fraction: curve.Full}, {Month: 1, Fraction: curve.Full}}}, lockup.ErrInvalidScheduleConfig},
		{"exceeds cap", linearPool(100, 0, clock.Days(10),
			vesting.Grant{Beneficiary: alice, Amount: amt(60)},
			vesting.Grant{Beneficiary: bob, Amount: amt(41)}), lockup.ErrExceedsAllocation},
		{"zero grant", linearPool(100, 0, clock.Days(10),
			vesting.Grant{Beneficiary: alice}), lockup.ErrInvalidAmount},
		{"duplicate grant", linearPool(100, 0, clock.Days(10),
			vesting.Grant{Beneficiary: alice, Amount: amt(1)},
			vesting.Grant{Beneficiary: alice, Amount: amt(1)}), lockup.ErrDuplicateBeneficiaries},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := h.engine.InitPool(h.ctx, admin, c.params)
			require.ErrorIs(t, err, c.want)
		})
	}

	pools, err := h.engine.ListPools(h.ctx, vesting.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, pools, "rejected pools must not be stored")

	_, err = h.engine.InitPool(h.ctx, bob, linearPool(100, 0, clock.Days(10)))
	require.ErrorIs(t, err, lockup.ErrUnauthorized)
}

func TestInitPoolTwice(t *testing.T) {
	h := newHarness(t)
	params := linearPool(100, 0, clock.Days(10))
	params.ID = id.NewPoolID()

	h.pool(params)
	_, err := h.engine.InitPool(h.ctx, admin, params)
	require.ErrorIs(t, err, lockup.ErrAlreadyInitialized)
}

func TestAddBeneficiaries(t *testing.T) {
	h := newHarness(t)
	p := h.pool(linearPool(1_000, 0, clock.Days(100)))

	_, err := h.engine.AddBeneficiaries(h.ctx, admin, p.ID, []vesting.Grant{
		{Beneficiary: alice, Amount: amt(600)},
		{Beneficiary: bob, Amount: amt(500)},
	})
	require.ErrorIs(t, err, lockup.ErrExceedsAllocation)
	_, err = h.engine.GetSchedule(h.ctx, p.ID, alice)
	require.True(t, lockup.IsNotFound(err), "all or nothing")

	added, err := h.engine.AddBeneficiaries(h.ctx, admin, p.ID, []vesting.Grant{
		{Beneficiary: alice, Amount: amt(600)},
		{Beneficiary: bob, Amount: amt(400)},
	})
	require.NoError(t, err)
	require.Len(t, added, 2)

	_, err = h.engine.AddBeneficiaries(h.ctx, admin, p.ID, []vesting.Grant{{Beneficiary: carol, Amount: amt(1)}})
	require.ErrorIs(t, err, lockup.ErrExceedsAllocation)

	_, err = h.engine.AddBeneficiaries(h.ctx, bob, p.ID, []vesting.Grant{{Beneficiary: carol, Amount: amt(1)}})
	require.ErrorIs(t, err, lockup.ErrUnauthorized)

	_, err = h.engine.AddBeneficiaries(h.ctx, admin, id.NewPoolID(), []vesting.Grant{{Beneficiary: carol, Amount: amt(1)}})
	require.ErrorIs(t, err, lockup.ErrPoolNotFound)
}

func TestAddBeneficiariesOverflowRejected(t *testing.T) {
	h := newHarness(t)
	ceiling := types.MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935")
	params := linearPool(1, 0, clock.Days(10))
	params.Cap = ceiling
	p := h.pool(params)

	_, err := h.engine.AddBeneficiaries(h.ctx, admin, p.ID, []vesting.Grant{
		{Beneficiary: alice, Amount: ceiling},
		{Beneficiary: bob, Amount: ceiling},
	})
	require.ErrorIs(t, err, lockup.ErrExceedsAllocation)

	pool, err := h.engine.GetPool(h.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, pool.Allocated.IsZero())
	_, err = h.engine.GetSchedule(h.ctx, p.ID, alice)
	require.ErrorIs(t, err, lockup.ErrBeneficiaryNotFound)
}

func TestReAddRequiresFullRelease(t *testing.T) {
	h := newHarness(t)
	p := h.pool(linearPool(2_000, 0, clock.Days(100),
		vesting.Grant{Beneficiary: alice, Amount: amt(500)}))

	_, err := h.engine.AddBeneficiaries(h.ctx, admin, p.ID, []vesting.Grant{{Beneficiary: alice, Amount: amt(100)}})
	require.ErrorIs(t, err, lockup.ErrBeneficiaryExists)

	h.clock.Set(t0 + clock.Days(100))
	_, err = h.engine.Release(h.ctx, p.ID, alice)
	require.NoError(t, err)

	before, err := h.engine.GetSchedule(h.ctx, p.ID, alice)
	require.NoError(t, err)

	added, err := h.engine.AddBeneficiaries(h.ctx, admin, p.ID, []vesting.Grant{{Beneficiary: alice, Amount: amt(300)}})
	require.NoError(t, err)
	assert.Equal(t, before.ID, added[0].ID)
	assert.True(t, added[0].Released.IsZero())

	claimable, err := h.engine.Claimable(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "300", claimable.String())

	// The paid-out 500 still counts against the cap.
	pool, err := h.engine.GetPool(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "800", pool.Allocated.String())
	assert.Equal(t, "1200", pool.Available().String())
}

func TestDeleteKeepsVestedDelta(t *testing.T) {
	h := newHarness(t)
	p := h.pool(linearPool(1_000_000, 0, clock.Months(10),
		vesting.Grant{Beneficiary: alice, Amount: amt(1_000_000)},
	))

	h.clock.Set(t0 + clock.Months(3))
	rc, err := h.engine.Release(h.ctx, p.ID, alice)
	require.NoError(t, err)
	require.Equal(t, "300000", rc.Gross.String())

	h.clock.Set(t0 + clock.Days(135))
	vested, err := h.engine.VestedAmount(h.ctx, p.ID, alice)
	require.NoError(t, err)
	require.Equal(t, "450000", vested.String())

	removed, err := h.engine.DeleteBeneficiaries(h.ctx, admin, p.ID, []common.Address{alice})
	require.NoError(t, err)
	require.Len(t, removed, 1)
	assert.True(t, removed[0].Removed)
	assert.Equal(t, "450000", removed[0].TotalAmount.String())
	assert.Equal(t, "550000", removed[0].Forfeited.String())

	pool, err := h.engine.GetPool(h.ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "450000", pool.Allocated.String())
	assert.Equal(t, "550000", pool.Forfeited.String())
	assert.Equal(t, "550000", pool.Available().String())

	// Long after removal only the already-vested delta is claimable, once.
	h.clock.Set(t0 + clock.Months(24))
	rc, err = h.engine.Release(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "150000", rc.Gross.String())
	_, err = h.engine.Release(h.ctx, p.ID, alice)
	require.ErrorIs(t, err, lockup.ErrNotYetClaimable)
	assert.Equal(t, "450000", h.balance(alice))

	_, err = h.engine.DeleteBeneficiaries(h.ctx, admin, p.ID, []common.Address{alice})
	require.ErrorIs(t, err, lockup.ErrBeneficiaryNotFound)
}

func TestDeleteForfeitAll(t *testing.T) {
	h := newHarness(t, lockup.WithDeleteMode(vesting.DeleteForfeitAll))
	p := h.pool(linearPool(1_000, 0, clock.Days(100),
		vesting.Grant{Beneficiary: alice, Amount: amt(1_000)}))

	h.clock.Set(t0 + clock.Days(30))
	_, err := h.engine.Release(h.ctx, p.ID, alice)
	require.NoError(t, err)
	h.clock.Set(t0 + clock.Days(50))

	removed, err := h.engine.DeleteBeneficiaries(h.ctx, admin, p.ID, []common.Address{alice})
	require.NoError(t, err)
	assert.Equal(t, "300", removed[0].TotalAmount.String())
	assert.Equal(t, "700", removed[0].Forfeited.String())

	_, err = h.engine.Release(h.ctx, p.ID, alice)
	require.ErrorIs(t, err, lockup.ErrNotYetClaimable)
}

func TestDeleteIsAllOrNothing(t *testing.T) {
	h := newHarness(t)
	p := h.pool(linearPool(1_000, 0, clock.Days(100),
		vesting.Grant{Beneficiary: alice, Amount: amt(1_000)}))

	_, err := h.engine.DeleteBeneficiaries(h.ctx, admin, p.ID, []common.Address{alice, carol})
	require.ErrorIs(t, err, lockup.ErrBeneficiaryNotFound)

	sched, err := h.engine.GetSchedule(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.False(t, sched.Removed)

	_, err = h.engine.DeleteBeneficiaries(h.ctx, admin, p.ID, []common.Address{alice, alice})
	require.ErrorIs(t, err, lockup.ErrDuplicateBeneficiaries)
}

func TestReleaseRevertsWhenTransferFails(t *testing.T) {
	h := newHarness(t)
	p := h.pool(linearPool(1_000, 0, clock.Days(10),
		vesting.Grant{Beneficiary: alice, Amount: amt(1_000)}))
	h.clock.Set(t0 + clock.Days(10))

	paused := errors.New("token paused")
	h.tokens.FailNextTransfer(paused)
	_, err := h.engine.Release(h.ctx, p.ID, alice)
	require.ErrorIs(t, err, paused)

	sched, err := h.engine.GetSchedule(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.True(t, sched.Released.IsZero())
	pool, err := h.engine.GetPool(h.ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, pool.Released.IsZero())

	rc, err := h.engine.Release(h.ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "1000", rc.Net.String())
}

func TestConcurrentReleasePaysOnce(t *testing.T) {
	h := newHarness(t)
	p := h.pool(linearPool(1_000, 0, clock.Days(10),
		vesting.Grant{Beneficiary: alice, Amount: amt(1_000)}))
	h.clock.Set(t0 + clock.Days(5))

	var (
		wg sync.WaitGroup
		mu sync.Mutex
		ok int
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := h.engine.Release(h.ctx, p.ID, alice); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, "500", h.balance(alice))
}

func TestPoolConservation(t *testing.T) {
	h := newHarness(t)
	beneficiaries := []common.Address{alice, bob, carol}
	p := h.pool(linearPool(9_000, clock.Days(7), clock.Days(90),
		vesting.Grant{Beneficiary: alice, Amount: amt(3_000)},
		vesting.Grant{Beneficiary: bob, Amount: amt(2_500), InitialUnlock: amt(500)},
		vesting.Grant{Beneficiary: carol, Amount: amt(1_333)},
	))

	for day := int64(0); day <= 95; day += 8 {
		h.clock.Set(t0 + clock.Days(day))
		for i, b := range beneficiaries {
			if (int(day)+i)%3 == 0 {
				_, _ = h.engine.Release(h.ctx, p.ID, b)
			}
		}
		if day == 40 {
			_, err := h.engine.DeleteBeneficiaries(h.ctx, admin, p.ID, []common.Address{carol})
			require.NoError(t, err)
		}

		pool, err := h.engine.GetPool(h.ctx, p.ID)
		require.NoError(t, err)
		schedules, err := h.engine.ListSchedules(h.ctx, p.ID, vesting.ListOpts{})
		require.NoError(t, err)

		released, total := types.Zero, types.Zero
		for _, s := range schedules {
			require.False(t, s.TotalAmount.Lt(s.Released))
			released = released.Add(s.Released)
			total = total.Add(s.TotalAmount)
		}
		assert.True(t, released.Equal(pool.Released))
		assert.True(t, total.Equal(pool.Allocated))
		assert.False(t, pool.Cap.Lt(pool.Allocated))
		assert.Equal(t, reserve.Sub(released).String(), h.balance(engineAddr))
	}
}
