// Package store defines the composite persistence interface of the lockup
// engine. Backends live in subpackages: memory, postgres, sqlite, mongo and
// badger, plus the cache decorator.
package store

import (
	"context"

	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/vesting"
)

// Store persists every lockup record. Method names are unique across the
// embedded domain stores.
type Store interface {
	vesting.Store
	staking.Store
	airdrop.Store
	fee.Store
	receipt.Store

	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
