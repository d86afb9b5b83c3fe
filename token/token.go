// Package token declares the fungible-token ledger the lockup engine moves
// value through. The engine never touches balances directly; it asks the
// ledger to transfer and trusts the net amount the ledger reports, which may
// be less than requested when the ledger charges a transfer fee.
package token

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/types"
)

// ErrInsufficientBalance is returned when the source cannot cover a transfer or burn.
var ErrInsufficientBalance = errors.New("token: insufficient balance")

// Ledger is a handle on a token ledger bound to the caller's own account:
// Transfer moves tokens out of that account.
type Ledger interface {
	BalanceOf(ctx context.Context, addr common.Address) (types.Amount, error)
	Transfer(ctx context.Context, to common.Address, amount types.Amount) (net types.Amount, err error)
	TransferFrom(ctx context.Context, from, to common.Address, amount types.Amount) (net types.Amount, err error)
	Mint(ctx context.Context, to common.Address, amount types.Amount) error
	Burn(ctx context.Context, from common.Address, amount types.Amount) error
}

// Addressed is implemented by ledger handles that know their own account.
type Addressed interface {
	Address() common.Address
}

// FeeApplier splits a transfer into the net delivered and the fee withheld.
type FeeApplier interface {
	ApplyFee(amount types.Amount) (net, fee types.Amount)
}
