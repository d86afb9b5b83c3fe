package memory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/token"
	"github.com/xraph/lockup/token/memory"
	"github.com/xraph/lockup/types"
)

var (
	alice = common.HexToAddress("0xa1")
	bob   = common.HexToAddress("0xb0")
	sink  = common.HexToAddress("0xfee")
)

func TestTransferAndBurn(t *testing.T) {
	ctx := context.Background()
	l := memory.New()
	a := l.Account(alice)

	require.NoError(t, a.Mint(ctx, alice, types.NewAmount(1000)))
	assert.Equal(t, alice, a.Address())

	net, err := a.Transfer(ctx, bob, types.NewAmount(400))
	require.NoError(t, err)
	assert.Equal(t, "400", net.String())
	assert.Equal(t, "600", l.Balance(alice).String())
	assert.Equal(t, "400", l.Balance(bob).String())

	_, err = a.Transfer(ctx, bob, types.NewAmount(601))
	require.ErrorIs(t, err, token.ErrInsufficientBalance)

	require.NoError(t, a.Burn(ctx, bob, types.NewAmount(100)))
	assert.Equal(t, "900", l.TotalSupply().String())
	require.ErrorIs(t, a.Burn(ctx, bob, types.NewAmount(301)), token.ErrInsufficientBalance)
}

func TestFeeOnTransfer(t *testing.T) {
	ctx := context.Background()
	sched := &fee.Schedule{TaxFee: 100}
	l := memory.New(memory.WithFees(sched, sink), memory.WithExempt(alice))
	a := l.Account(alice)
	b := l.Account(bob)
	require.NoError(t, a.Mint(ctx, alice, types.NewAmount(10_000)))

	// Exempt sender: no fee.
	net, err := a.Transfer(ctx, bob, types.NewAmount(5_000))
	require.NoError(t, err)
	assert.Equal(t, "5000", net.String())

	carol := common.HexToAddress("0xc0")
	net, err = b.Transfer(ctx, carol, types.NewAmount(1_000))
	require.NoError(t, err)
	assert.Equal(t, "990", net.String())
	assert.Equal(t, "10", l.Balance(sink).String())
	assert.Equal(t, "990", l.Balance(carol).String())
	assert.Equal(t, "10000", l.TotalSupply().String())
}

func TestHooksAndInjectedFailure(t *testing.T) {
	ctx := context.Background()
	l := memory.New()
	a := l.Account(alice)
	require.NoError(t, a.Mint(ctx, alice, types.NewAmount(100)))

	var seen []string
	l.OnTransfer(func(ctx context.Context, from, to common.Address, net types.Amount) {
		// Reentrant use of the ledger must not deadlock.
		_, _ = l.Account(to).BalanceOf(ctx, to)
		seen = append(seen, net.String())
	})

	boom := errors.New("paused")
	l.FailNextTransfer(boom)
	_, err := a.Transfer(ctx, bob, types.NewAmount(10))
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "100", l.Balance(alice).String())

	_, err = a.TransferFrom(ctx, alice, bob, types.NewAmount(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"10"}, seen)
}
