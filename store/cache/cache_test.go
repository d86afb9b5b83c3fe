package cache_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/store"
	"github.com/xraph/lockup/store/cache"
	"github.com/xraph/lockup/store/memory"
	"github.com/xraph/lockup/store/storetest"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

var carol = common.HexToAddress("0xc0")

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := cache.New(memory.New(), 16)
		require.NoError(t, err)
		return s
	})
}

// countingStore counts reads that reach the wrapped store.
type countingStore struct {
	store.Store
	poolReads int
	failWrite error
}

func (c *countingStore) GetPool(ctx context.Context, poolID id.PoolID) (*vesting.Pool, error) {
	c.poolReads++
	return c.Store.GetPool(ctx, poolID)
}

func (c *countingStore) UpdatePool(ctx context.Context, p *vesting.Pool) error {
	if c.failWrite != nil {
		return c.failWrite
	}
	return c.Store.UpdatePool(ctx, p)
}

func newPool() *vesting.Pool {
	return &vesting.Pool{
		Entity:     types.NewEntity(),
		ID:         id.NewPoolID(),
		Name:       "team",
		Allocation: vesting.AllocationTeam,
		Cap:        types.NewAmount(1000),
	}
}

func TestReadThrough(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: memory.New()}
	s, err := cache.New(inner, 8)
	require.NoError(t, err)

	p := newPool()
	require.NoError(t, inner.Store.CreatePool(ctx, p))

	for range 3 {
		got, err := s.GetPool(ctx, p.ID)
		require.NoError(t, err)
		assert.Equal(t, "team", got.Name)
	}
	assert.Equal(t, 1, inner.poolReads)
	assert.Equal(t, 1, s.Len())
}

func TestFailedWriteEvicts(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: memory.New()}
	s, err := cache.New(inner, 8)
	require.NoError(t, err)

	p := newPool()
	require.NoError(t, s.CreatePool(ctx, p))

	boom := errors.New("disk full")
	inner.failWrite = boom
	p.Allocated = types.NewAmount(500)
	assert.ErrorIs(t, s.UpdatePool(ctx, p), boom)

	got, err := s.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Allocated.IsZero())
	assert.Equal(t, 1, inner.poolReads)
}

func TestNotFoundIsNotCached(t *testing.T) {
	ctx := context.Background()
	s, err := cache.New(memory.New(), 0)
	require.NoError(t, err)

	_, err = s.GetPosition(ctx, carol, 0)
	assert.ErrorIs(t, err, lockup.ErrPositionNotFound)
	assert.Zero(t, s.Len())

	require.NoError(t, s.CreatePosition(ctx, &staking.Position{
		Entity:    types.NewEntity(),
		ID:        id.NewPositionID(),
		Account:   carol,
		Owner:     carol,
		Principal: types.NewAmount(10),
	}))
	got, err := s.GetPosition(ctx, carol, 0)
	require.NoError(t, err)
	assert.True(t, got.Principal.Equal(types.NewAmount(10)))
}
