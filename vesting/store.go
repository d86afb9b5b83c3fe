package vesting

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/id"
)

type Store interface {
	CreatePool(ctx context.Context, p *Pool) error
	GetPool(ctx context.Context, poolID id.PoolID) (*Pool, error)
	ListPools(ctx context.Context, opts ListOpts) ([]*Pool, error)
	UpdatePool(ctx context.Context, p *Pool) error

	CreateSchedule(ctx context.Context, s *Schedule) error
	GetSchedule(ctx context.Context, poolID id.PoolID, beneficiary common.Address) (*Schedule, error)
	ListSchedules(ctx context.Context, poolID id.PoolID, opts ListOpts) ([]*Schedule, error)
	UpdateSchedule(ctx context.Context, s *Schedule) error
}

type ListOpts struct {
	Allocation Allocation
	Limit      int
	Offset     int
}
