package staking

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
)

type Store interface {
	CreatePosition(ctx context.Context, p *Position) error
	GetPosition(ctx context.Context, account common.Address, index uint64) (*Position, error)
	ListPositions(ctx context.Context, account common.Address) ([]*Position, error)
	CountPositions(ctx context.Context, account common.Address) (uint64, error)
	UpdatePosition(ctx context.Context, p *Position) error
}
