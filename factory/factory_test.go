package factory_test

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/access"
	"github.com/xraph/lockup/clock"
	"github.com/xraph/lockup/factory"
	"github.com/xraph/lockup/store/memory"
	tokenmem "github.com/xraph/lockup/token/memory"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

const t0 int64 = 1_700_000_000

var (
	admin    = common.HexToAddress("0xad")
	treasury = common.HexToAddress("0xe0")
	alice    = common.HexToAddress("0xa1")
	bob      = common.HexToAddress("0xb0")
)

func newFactory(t *testing.T) (*factory.Factory, *lockup.Engine) {
	t.Helper()
	engine := lockup.New(memory.New(), tokenmem.New().Account(treasury),
		lockup.WithClock(clock.NewManual(t0)),
		lockup.WithAccessControl(access.NewOwner(admin)),
	)
	require.NoError(t, engine.Start(context.Background()))
	t.Cleanup(func() { _ = engine.Stop() })
	return factory.New(engine), engine
}

func TestCreateVestingPoolUsesDefaultTerms(t *testing.T) {
	ctx := context.Background()
	f, engine := newFactory(t)

	pool, err := f.CreateVestingPool(ctx, admin, factory.VestingParams{
		Allocation:  vesting.AllocationTeam,
		Beneficiary: alice,
		Amount:      types.NewAmount(36_000),
		Start:       t0,
	})
	require.NoError(t, err)

	assert.Equal(t, "team_and_project", pool.Name)
	assert.Equal(t, clock.Months(11), pool.Cliff)
	assert.Equal(t, clock.Months(36), pool.Duration)
	assert.Equal(t, "36000", pool.Cap.String())
	assert.Equal(t, "36000", pool.Allocated.String())

	sched, err := engine.GetSchedule(ctx, pool.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "36000", sched.TotalAmount.String())
}

func TestCreateVestingPoolOverride(t *testing.T) {
	f, _ := newFactory(t)

	pool, err := f.CreateVestingPool(context.Background(), admin, factory.VestingParams{
		Name:        "advisor",
		Allocation:  vesting.AllocationCustom,
		Beneficiary: bob,
		Amount:      types.NewAmount(1_000),
		Start:       t0,
		Schedule:    factory.Schedule{Duration: clock.Days(90)},
	})
	require.NoError(t, err)
	assert.Equal(t, "advisor", pool.Name)
	assert.Equal(t, clock.Days(90), pool.Duration)
}

func TestCustomAllocationNeedsTerms(t *testing.T) {
	f, _ := newFactory(t)

	_, err := f.CreateVestingPool(context.Background(), admin, factory.VestingParams{
		Allocation:  vesting.AllocationCustom,
		Beneficiary: bob,
		Amount:      types.NewAmount(1_000),
		Start:       t0,
	})
	require.ErrorIs(t, err, lockup.ErrInvalidScheduleConfig)
}

func TestCreateWhitelist(t *testing.T) {
	ctx := context.Background()
	f, engine := newFactory(t)

	pool, err := f.CreateWhitelist(ctx, admin, factory.WhitelistParams{
		Allocation: vesting.AllocationSeedSale,
		Cap:        types.NewAmount(10_000),
		Start:      t0,
		Buyers: []vesting.Grant{
			{Beneficiary: alice, Amount: types.NewAmount(4_000)},
			{Beneficiary: bob, Amount: types.NewAmount(1_000)},
		},
	})
	require.NoError(t, err)
	assert.True(t, pool.Whitelist)
	assert.Equal(t, "5000", pool.Allocated.String())

	schedules, err := engine.ListSchedules(ctx, pool.ID, vesting.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, schedules, 2)

	_, err = f.CreateWhitelist(ctx, admin, factory.WhitelistParams{
		Allocation: vesting.AllocationMarketing,
		Cap:        types.NewAmount(10_000),
		Start:      t0,
	})
	require.ErrorIs(t, err, factory.ErrNotWhitelist)
}

func TestFactoryRespectsAccessControl(t *testing.T) {
	f, _ := newFactory(t)

	_, err := f.CreateVestingPool(context.Background(), bob, factory.VestingParams{
		Allocation:  vesting.AllocationMarketing,
		Beneficiary: bob,
		Amount:      types.NewAmount(1_000),
		Start:       t0,
	})
	require.ErrorIs(t, err, lockup.ErrUnauthorized)
}
