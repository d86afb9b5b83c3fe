package plugin_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup/plugin"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/vesting"
)

type named struct{ name string }

func (n named) Name() string { return n.name }

type stakeCounter struct {
	named
	staked atomic.Int32
	err    error
}

func (s *stakeCounter) OnStaked(context.Context, *staking.Position, *receipt.Receipt) error {
	s.staked.Add(1)
	return s.err
}

type slowPool struct {
	named
	release chan struct{}
}

func (s *slowPool) OnPoolInitialized(context.Context, *vesting.Pool) error {
	<-s.release
	return nil
}

func quietRegistry() *plugin.Registry {
	return plugin.NewRegistry().WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	r := quietRegistry()
	require.NoError(t, r.Register(named{"audit"}))
	require.Error(t, r.Register(named{"audit"}))

	assert.Equal(t, 1, r.Count())
	assert.NotNil(t, r.Get("audit"))
	assert.Nil(t, r.Get("metrics"))
	assert.Len(t, r.List(), 1)
}

func TestEmitDispatchesOnlyToImplementers(t *testing.T) {
	r := quietRegistry()
	counter := &stakeCounter{named: named{"counter"}}
	require.NoError(t, r.Register(named{"passive"}))
	require.NoError(t, r.Register(counter))

	ctx := context.Background()
	r.EmitStaked(ctx, &staking.Position{}, &receipt.Receipt{})
	r.EmitStaked(ctx, &staking.Position{}, &receipt.Receipt{})
	r.EmitStakeWithdrawn(ctx, &staking.Position{}, &receipt.Receipt{})

	assert.Equal(t, int32(2), counter.staked.Load())
}

func TestHookErrorsAreSwallowed(t *testing.T) {
	r := quietRegistry()
	failing := &stakeCounter{named: named{"failing"}, err: errors.New("sink down")}
	after := &stakeCounter{named: named{"after"}}
	require.NoError(t, r.Register(failing))
	require.NoError(t, r.Register(after))

	r.EmitStaked(context.Background(), &staking.Position{}, &receipt.Receipt{})

	assert.Equal(t, int32(1), failing.staked.Load())
	assert.Equal(t, int32(1), after.staked.Load(), "a failing hook does not stop the next one")
}

func TestSlowHookTimesOut(t *testing.T) {
	r := quietRegistry().WithTimeout(10 * time.Millisecond)
	slow := &slowPool{named: named{"slow"}, release: make(chan struct{})}
	defer close(slow.release)
	require.NoError(t, r.Register(slow))

	start := time.Now()
	r.EmitPoolInitialized(context.Background(), &vesting.Pool{})
	assert.Less(t, time.Since(start), time.Second)
}
