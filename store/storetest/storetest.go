// Package storetest is a conformance suite shared by the store.Store
// backends.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/curve"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/store"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

// Factory returns an empty, migrated store. The suite closes it.
type Factory func(t *testing.T) store.Store

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb0")

	epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

// Run exercises every store.Store method against fresh stores from newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	cases := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Pools", testPools},
		{"ListPools", testListPools},
		{"Schedules", testSchedules},
		{"Positions", testPositions},
		{"Airdrop", testAirdrop},
		{"FeeSchedule", testFeeSchedule},
		{"Receipts", testReceipts},
		{"Isolation", testIsolation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() { _ = s.Close() })
			require.NoError(t, s.Ping(context.Background()))
			tc.fn(t, s)
		})
	}
}

func entity(offset time.Duration) types.Entity {
	at := epoch.Add(offset)
	return types.Entity{CreatedAt: at, UpdatedAt: at}
}

func newPool(name string, alloc vesting.Allocation, offset time.Duration) *vesting.Pool {
	return &vesting.Pool{
		Entity:     entity(offset),
		ID:         id.NewPoolID(),
		Name:       name,
		Allocation: alloc,
		Cap:        types.NewAmount(1_000_000),
		Allocated:  types.NewAmount(250_000),
		Start:      1_700_000_000,
		Cliff:      90 * 86400,
		Duration:   360 * 86400,
		CurveKind:  curve.KindTable,
		RateTable: []curve.Step{
			{Month: 3, Fraction: curve.Fraction{Num: 1, Den: 4}},
			{Month: 12, Fraction: curve.Full},
		},
		MonthLength: 30 * 86400,
		DeleteMode:  vesting.DeleteForfeitUnvested,
		Metadata:    map[string]string{"round": "seed"},
	}
}

func testPools(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPool("seed", vesting.AllocationSeedSale, 0)

	require.NoError(t, s.CreatePool(ctx, p))
	assert.ErrorIs(t, s.CreatePool(ctx, p), lockup.ErrAlreadyExists)

	got, err := s.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID.String(), got.ID.String())
	assert.Equal(t, "seed", got.Name)
	assert.True(t, got.Cap.Equal(types.NewAmount(1_000_000)))
	assert.True(t, got.Allocated.Equal(types.NewAmount(250_000)))
	assert.Equal(t, p.RateTable, got.RateTable)
	assert.Equal(t, p.Metadata, got.Metadata)
	assert.Equal(t, vesting.DeleteForfeitUnvested, got.DeleteMode)

	got.Released = types.NewAmount(1000)
	got.Allocated = types.NewAmount(300_000)
	require.NoError(t, s.UpdatePool(ctx, got))

	again, err := s.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, again.Released.Equal(types.NewAmount(1000)))
	assert.True(t, again.Allocated.Equal(types.NewAmount(300_000)))

	_, err = s.GetPool(ctx, id.NewPoolID())
	assert.ErrorIs(t, err, lockup.ErrPoolNotFound)
	assert.ErrorIs(t, s.UpdatePool(ctx, newPool("ghost", vesting.AllocationTeam, 0)), lockup.ErrPoolNotFound)
}

func testListPools(t *testing.T, s store.Store) {
	ctx := context.Background()
	pools := []*vesting.Pool{
		newPool("a", vesting.AllocationTeam, 0),
		newPool("b", vesting.AllocationMarketing, time.Second),
		newPool("c", vesting.AllocationTeam, 2*time.Second),
	}
	for _, p := range pools {
		require.NoError(t, s.CreatePool(ctx, p))
	}

	all, err := s.ListPools(ctx, vesting.ListOpts{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].Name, all[1].Name, all[2].Name})

	team, err := s.ListPools(ctx, vesting.ListOpts{Allocation: vesting.AllocationTeam})
	require.NoError(t, err)
	require.Len(t, team, 2)
	assert.Equal(t, "c", team[1].Name)

	paged, err := s.ListPools(ctx, vesting.ListOpts{Offset: 1, Limit: 1})
	require.NoError(t, err)
	require.Len(t, paged, 1)
	assert.Equal(t, "b", paged[0].Name)

	// Negative bounds page from the start without a limit.
	clamped, err := s.ListPools(ctx, vesting.ListOpts{Offset: -5, Limit: -1})
	require.NoError(t, err)
	assert.Len(t, clamped, 3)

	past, err := s.ListPools(ctx, vesting.ListOpts{Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, past)
}

func testSchedules(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPool("team", vesting.AllocationTeam, 0)
	require.NoError(t, s.CreatePool(ctx, p))

	first := &vesting.Schedule{
		Entity:        entity(0),
		ID:            id.NewScheduleID(),
		PoolID:        p.ID,
		Beneficiary:   alice,
		TotalAmount:   types.NewAmount(1000),
		InitialUnlock: types.NewAmount(100),
	}
	second := &vesting.Schedule{
		Entity:      entity(time.Second),
		ID:          id.NewScheduleID(),
		PoolID:      p.ID,
		Beneficiary: bob,
		TotalAmount: types.NewAmount(2000),
	}
	require.NoError(t, s.CreateSchedule(ctx, first))
	require.NoError(t, s.CreateSchedule(ctx, second))

	dup := *first
	dup.ID = id.NewScheduleID()
	assert.ErrorIs(t, s.CreateSchedule(ctx, &dup), lockup.ErrAlreadyExists)

	got, err := s.GetSchedule(ctx, p.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, first.ID.String(), got.ID.String())
	assert.Equal(t, alice, got.Beneficiary)
	assert.True(t, got.InitialUnlock.Equal(types.NewAmount(100)))

	got.Released = types.NewAmount(400)
	got.Removed = true
	got.Forfeited = types.NewAmount(200)
	require.NoError(t, s.UpdateSchedule(ctx, got))

	again, err := s.GetSchedule(ctx, p.ID, alice)
	require.NoError(t, err)
	assert.True(t, again.Removed)
	assert.True(t, again.Released.Equal(types.NewAmount(400)))
	assert.True(t, again.Forfeited.Equal(types.NewAmount(200)))

	list, err := s.ListSchedules(ctx, p.ID, vesting.ListOpts{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, alice, list[0].Beneficiary)
	assert.Equal(t, bob, list[1].Beneficiary)

	_, err = s.GetSchedule(ctx, p.ID, common.HexToAddress("0xdead"))
	assert.ErrorIs(t, err, lockup.ErrBeneficiaryNotFound)

	other, err := s.ListSchedules(ctx, id.NewPoolID(), vesting.ListOpts{})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func newPosition(account common.Address, index uint64, principal uint64) *staking.Position {
	return &staking.Position{
		Entity:    entity(time.Duration(index) * time.Second),
		ID:        id.NewPositionID(),
		Account:   account,
		Owner:     account,
		Index:     index,
		Principal: types.NewAmount(principal),
		Tier:      30 * 86400,
		Start:     1_700_000_000,
	}
}

func testPositions(t *testing.T, s store.Store) {
	ctx := context.Background()

	n, err := s.CountPositions(ctx, alice)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.CreatePosition(ctx, newPosition(alice, 0, 100)))
	require.NoError(t, s.CreatePosition(ctx, newPosition(alice, 1, 200)))
	require.NoError(t, s.CreatePosition(ctx, newPosition(bob, 0, 300)))

	assert.ErrorIs(t, s.CreatePosition(ctx, newPosition(alice, 1, 1)), lockup.ErrAlreadyExists)
	assert.ErrorIs(t, s.CreatePosition(ctx, newPosition(alice, 5, 1)), lockup.ErrAlreadyExists)

	n, err = s.CountPositions(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), n)

	got, err := s.GetPosition(ctx, alice, 1)
	require.NoError(t, err)
	assert.True(t, got.Principal.Equal(types.NewAmount(200)))

	got.Tombstone()
	got.Withdrawn = types.NewAmount(200)
	require.NoError(t, s.UpdatePosition(ctx, got))

	list, err := s.ListPositions(ctx, alice)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, uint64(0), list[0].Index)
	assert.Equal(t, uint64(1), list[1].Index)
	assert.True(t, list[1].Tombstoned())
	assert.True(t, list[1].Withdrawn.Equal(types.NewAmount(200)))
	assert.False(t, list[0].Tombstoned())

	_, err = s.GetPosition(ctx, alice, 2)
	assert.ErrorIs(t, err, lockup.ErrPositionNotFound)
	assert.ErrorIs(t, s.UpdatePosition(ctx, newPosition(alice, 7, 1)), lockup.ErrPositionNotFound)

	empty, err := s.ListPositions(ctx, common.HexToAddress("0xdead"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testAirdrop(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetAirdropState(ctx)
	assert.ErrorIs(t, err, lockup.ErrNotFound)

	st := &airdrop.State{Entity: entity(0), Rate: 100, Cooldown: airdrop.DefaultCooldown}
	require.NoError(t, s.SaveAirdropState(ctx, st))

	st.Enabled = true
	st.StartedAt = 1_700_000_000
	require.NoError(t, s.SaveAirdropState(ctx, st))

	got, err := s.GetAirdropState(ctx)
	require.NoError(t, err)
	assert.True(t, got.Enabled)
	assert.Equal(t, types.BPS(100), got.Rate)
	assert.Equal(t, airdrop.DefaultCooldown, got.Cooldown)
	assert.Equal(t, int64(1_700_000_000), got.StartedAt)

	_, err = s.GetAirdropClaim(ctx, alice)
	assert.ErrorIs(t, err, lockup.ErrNotFound)

	claim := &airdrop.Claim{Entity: entity(0), Owner: alice, LastClaim: 1_700_000_100, Claimed: types.NewAmount(50), Count: 1}
	require.NoError(t, s.SaveAirdropClaim(ctx, claim))
	claim.Count = 2
	claim.Claimed = types.NewAmount(75)
	require.NoError(t, s.SaveAirdropClaim(ctx, claim))

	gotClaim, err := s.GetAirdropClaim(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), gotClaim.Count)
	assert.True(t, gotClaim.Claimed.Equal(types.NewAmount(75)))
	assert.Equal(t, int64(1_700_000_100), gotClaim.LastClaim)
}

func testFeeSchedule(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetFeeSchedule(ctx)
	assert.ErrorIs(t, err, lockup.ErrNotFound)

	f := &fee.Schedule{
		Entity:            entity(0),
		TaxFee:            fee.DefaultTaxFee,
		PenaltyRate:       fee.DefaultPenaltyRate,
		MinChangeInterval: fee.DefaultMinChangeInterval,
	}
	require.NoError(t, s.SaveFeeSchedule(ctx, f))

	f.TaxFee = 250
	f.LastChange = 1_700_000_000
	require.NoError(t, s.SaveFeeSchedule(ctx, f))

	got, err := s.GetFeeSchedule(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.BPS(250), got.TaxFee)
	assert.Equal(t, fee.DefaultPenaltyRate, got.PenaltyRate)
	assert.Equal(t, int64(1_700_000_000), got.LastChange)
	assert.Equal(t, fee.DefaultMinChangeInterval, got.MinChangeInterval)
}

func testReceipts(t *testing.T, s store.Store) {
	ctx := context.Background()
	poolID := id.NewPoolID()

	add := func(account common.Address, kind receipt.Kind, ts int64, net uint64) {
		t.Helper()
		r := &receipt.Receipt{
			Entity:    entity(time.Duration(ts) * time.Second),
			ID:        id.NewReceiptID(),
			Kind:      kind,
			Account:   account,
			Net:       types.NewAmount(net),
			Gross:     types.NewAmount(net),
			Timestamp: ts,
		}
		if kind == receipt.KindRelease {
			r.PoolID = poolID
		}
		require.NoError(t, s.CreateReceipt(ctx, r))
	}
	add(alice, receipt.KindRelease, 1, 10)
	add(alice, receipt.KindStake, 2, 20)
	add(bob, receipt.KindStake, 3, 30)
	add(alice, receipt.KindWithdraw, 4, 40)

	list, err := s.ListReceipts(ctx, alice, receipt.ListOpts{})
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, receipt.KindWithdraw, list[0].Kind)
	assert.Equal(t, receipt.KindStake, list[1].Kind)
	assert.Equal(t, receipt.KindRelease, list[2].Kind)
	assert.Equal(t, poolID.String(), list[2].PoolID.String())
	assert.True(t, list[1].PoolID.IsNil())

	stakes, err := s.ListReceipts(ctx, alice, receipt.ListOpts{Kind: receipt.KindStake})
	require.NoError(t, err)
	require.Len(t, stakes, 1)
	assert.True(t, stakes[0].Net.Equal(types.NewAmount(20)))

	latest, err := s.ListReceipts(ctx, alice, receipt.ListOpts{Limit: 1})
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, int64(4), latest[0].Timestamp)
}

// Records handed to or returned from a store are not aliased by it.
func testIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	p := newPool("iso", vesting.AllocationCustom, 0)
	require.NoError(t, s.CreatePool(ctx, p))

	p.Name = "mutated"
	got, err := s.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "iso", got.Name)

	got.Allocated = types.NewAmount(1)
	again, err := s.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, again.Allocated.Equal(types.NewAmount(250_000)))
}
