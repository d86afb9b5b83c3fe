package receipt

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Store interface {
	CreateReceipt(ctx context.Context, r *Receipt) error
	ListReceipts(ctx context.Context, account common.Address, opts ListOpts) ([]*Receipt, error)
}

type ListOpts struct {
	Kind   Kind
	Limit  int
	Offset int
}
