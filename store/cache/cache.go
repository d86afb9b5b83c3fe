// Package cache wraps a store.Store with an LRU read-through cache for the
// records the engine reads on every operation: pools, schedules, stake
// positions and the fee and airdrop singletons.
//
// Writes go to the wrapped store first and refresh the cached copy only
// when they succeed, so a failed write never leaves a stale entry behind.
// The cache assumes it is the only writer of the wrapped store.
package cache

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru"

	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/store"
	"github.com/xraph/lockup/vesting"
)

// DefaultSize is the entry budget used when New is given a size below 1.
const DefaultSize = 4096

var _ store.Store = (*Store)(nil)

type (
	poolKey     string
	scheduleKey struct {
		pool        string
		beneficiary common.Address
	}
	positionKey struct {
		account common.Address
		index   uint64
	}
	singletonKey string
)

const (
	keyFeeSchedule  singletonKey = "fee"
	keyAirdropState singletonKey = "airdrop"
)

// Store is a caching store.Store. Methods it does not override pass
// straight through to the wrapped store.
type Store struct {
	store.Store

	lru *lru.Cache
}

// New wraps inner with an LRU cache holding up to size records.
func New(inner store.Store, size int) (*Store, error) {
	if size < 1 {
		size = DefaultSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &Store{Store: inner, lru: c}, nil
}

// Len returns the number of cached records.
func (s *Store) Len() int { return s.lru.Len() }

// Purge drops every cached record.
func (s *Store) Purge() { s.lru.Purge() }

// ==================== Vesting Store ====================

func (s *Store) GetPool(ctx context.Context, poolID id.PoolID) (*vesting.Pool, error) {
	key := poolKey(poolID.String())
	if v, ok := s.lru.Get(key); ok {
		cp := v.(vesting.Pool)
		return &cp, nil
	}
	p, err := s.Store.GetPool(ctx, poolID)
	if err != nil {
		return nil, err
	}
	s.lru.Add(key, *p)
	return p, nil
}

func (s *Store) CreatePool(ctx context.Context, p *vesting.Pool) error {
	err := s.Store.CreatePool(ctx, p)
	return s.write(poolKey(p.ID.String()), *p, err)
}

func (s *Store) UpdatePool(ctx context.Context, p *vesting.Pool) error {
	err := s.Store.UpdatePool(ctx, p)
	return s.write(poolKey(p.ID.String()), *p, err)
}

func (s *Store) GetSchedule(ctx context.Context, poolID id.PoolID, beneficiary common.Address) (*vesting.Schedule, error) {
	key := scheduleKey{poolID.String(), beneficiary}
	if v, ok := s.lru.Get(key); ok {
		cp := v.(vesting.Schedule)
		return &cp, nil
	}
	sc, err := s.Store.GetSchedule(ctx, poolID, beneficiary)
	if err != nil {
		return nil, err
	}
	s.lru.Add(key, *sc)
	return sc, nil
}

func (s *Store) CreateSchedule(ctx context.Context, sc *vesting.Schedule) error {
	key := scheduleKey{sc.PoolID.String(), sc.Beneficiary}
	err := s.Store.CreateSchedule(ctx, sc)
	return s.write(key, *sc, err)
}

func (s *Store) UpdateSchedule(ctx context.Context, sc *vesting.Schedule) error {
	key := scheduleKey{sc.PoolID.String(), sc.Beneficiary}
	err := s.Store.UpdateSchedule(ctx, sc)
	return s.write(key, *sc, err)
}

// ==================== Staking Store ====================

func (s *Store) GetPosition(ctx context.Context, account common.Address, index uint64) (*staking.Position, error) {
	key := positionKey{account, index}
	if v, ok := s.lru.Get(key); ok {
		cp := v.(staking.Position)
		return &cp, nil
	}
	p, err := s.Store.GetPosition(ctx, account, index)
	if err != nil {
		return nil, err
	}
	s.lru.Add(key, *p)
	return p, nil
}

func (s *Store) CreatePosition(ctx context.Context, p *staking.Position) error {
	err := s.Store.CreatePosition(ctx, p)
	return s.write(positionKey{p.Account, p.Index}, *p, err)
}

func (s *Store) UpdatePosition(ctx context.Context, p *staking.Position) error {
	err := s.Store.UpdatePosition(ctx, p)
	return s.write(positionKey{p.Account, p.Index}, *p, err)
}

// ==================== Singletons ====================

func (s *Store) GetFeeSchedule(ctx context.Context) (*fee.Schedule, error) {
	if v, ok := s.lru.Get(keyFeeSchedule); ok {
		cp := v.(fee.Schedule)
		return &cp, nil
	}
	f, err := s.Store.GetFeeSchedule(ctx)
	if err != nil {
		return nil, err
	}
	s.lru.Add(keyFeeSchedule, *f)
	return f, nil
}

func (s *Store) SaveFeeSchedule(ctx context.Context, f *fee.Schedule) error {
	err := s.Store.SaveFeeSchedule(ctx, f)
	return s.write(keyFeeSchedule, *f, err)
}

func (s *Store) GetAirdropState(ctx context.Context) (*airdrop.State, error) {
	if v, ok := s.lru.Get(keyAirdropState); ok {
		cp := v.(airdrop.State)
		return &cp, nil
	}
	st, err := s.Store.GetAirdropState(ctx)
	if err != nil {
		return nil, err
	}
	s.lru.Add(keyAirdropState, *st)
	return st, nil
}

func (s *Store) SaveAirdropState(ctx context.Context, st *airdrop.State) error {
	err := s.Store.SaveAirdropState(ctx, st)
	return s.write(keyAirdropState, *st, err)
}

// Close purges the cache and closes the wrapped store.
func (s *Store) Close() error {
	s.lru.Purge()
	return s.Store.Close()
}

// write caches value after a successful write and evicts key otherwise.
func (s *Store) write(key, value any, err error) error {
	if err != nil {
		s.lru.Remove(key)
		return err
	}
	s.lru.Add(key, value)
	return nil
}
