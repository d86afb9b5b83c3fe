package badger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/store"
	"github.com/xraph/lockup/store/badger"
	"github.com/xraph/lockup/store/storetest"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

func open(t *testing.T) *badger.Store {
	t.Helper()
	s, err := badger.Open(t.TempDir())
	require.NoError(t, err)
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store { return open(t) })
}

func TestReopenKeepsRecords(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := badger.Open(dir)
	require.NoError(t, err)
	p := &vesting.Pool{
		Entity:     types.NewEntity(),
		ID:         id.NewPoolID(),
		Name:       "reserve",
		Allocation: vesting.AllocationLiquidityReserve,
		Cap:        types.MustParseAmount("115792089237316195423570985008687907853269984665640564039457584007913129639935"),
	}
	require.NoError(t, s.CreatePool(ctx, p))
	require.NoError(t, s.Close())

	s, err = badger.Open(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetPool(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Cap.Equal(p.Cap))
}

func TestClosedStore(t *testing.T) {
	s := open(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	ctx := context.Background()
	assert.ErrorIs(t, s.Ping(ctx), lockup.ErrStoreClosed)
	_, err := s.GetPool(ctx, id.NewPoolID())
	assert.ErrorIs(t, err, lockup.ErrStoreClosed)
}
