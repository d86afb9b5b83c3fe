// Package memory is an in-process store.Store. Records are copied on the
// way in and out so callers never share state with the store.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/store"
	"github.com/xraph/lockup/vesting"
)

var _ store.Store = (*Store)(nil)

type scheduleKey struct {
	pool        string
	beneficiary common.Address
}

type Store struct {
	mu     sync.RWMutex
	closed bool

	// Vesting storage
	pools         map[string]*vesting.Pool
	poolOrder     []string
	schedules     map[scheduleKey]*vesting.Schedule
	scheduleOrder map[string][]common.Address

	// Stake positions per account, indexed by position index
	positions map[common.Address][]*staking.Position

	// Airdrop storage
	airdropState  *airdrop.State
	airdropClaims map[common.Address]*airdrop.Claim

	// Fee storage
	feeSchedule *fee.Schedule

	// Receipt journal
	receipts []*receipt.Receipt
}

func New() *Store {
	return &Store{
		pools:         make(map[string]*vesting.Pool),
		schedules:     make(map[scheduleKey]*vesting.Schedule),
		scheduleOrder: make(map[string][]common.Address),
		positions:     make(map[common.Address][]*staking.Position),
		airdropClaims: make(map[common.Address]*airdrop.Claim),
	}
}

// Vesting Store implementation
func (s *Store) CreatePool(_ context.Context, p *vesting.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.ID.String()
	if _, exists := s.pools[key]; exists {
		return lockup.ErrAlreadyExists
	}
	cp := *p
	s.pools[key] = &cp
	s.poolOrder = append(s.poolOrder, key)
	return nil
}

func (s *Store) GetPool(_ context.Context, poolID id.PoolID) (*vesting.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.pools[poolID.String()]; ok {
		cp := *p
		return &cp, nil
	}
	return nil, lockup.ErrPoolNotFound
}

func (s *Store) ListPools(_ context.Context, opts vesting.ListOpts) ([]*vesting.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*vesting.Pool, 0, len(s.poolOrder))
	for _, key := range s.poolOrder {
		p := s.pools[key]
		if opts.Allocation == "" || p.Allocation == opts.Allocation {
			cp := *p
			result = append(result, &cp)
		}
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdatePool(_ context.Context, p *vesting.Pool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.ID.String()
	if _, exists := s.pools[key]; !exists {
		return lockup.ErrPoolNotFound
	}
	cp := *p
	s.pools[key] = &cp
	return nil
}

func (s *Store) CreateSchedule(_ context.Context, sc *vesting.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scheduleKey{sc.PoolID.String(), sc.Beneficiary}
	if _, exists := s.schedules[key]; exists {
		return lockup.ErrAlreadyExists
	}
	cp := *sc
	s.schedules[key] = &cp
	s.scheduleOrder[key.pool] = append(s.scheduleOrder[key.pool], sc.Beneficiary)
	return nil
}

func (s *Store) GetSchedule(_ context.Context, poolID id.PoolID, beneficiary common.Address) (*vesting.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sc, ok := s.schedules[scheduleKey{poolID.String(), beneficiary}]; ok {
		cp := *sc
		return &cp, nil
	}
	return nil, lockup.ErrBeneficiaryNotFound
}

func (s *Store) ListSchedules(_ context.Context, poolID id.PoolID, opts vesting.ListOpts) ([]*vesting.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	order := s.scheduleOrder[poolID.String()]
	result := make([]*vesting.Schedule, 0, len(order))
	for _, b := range order {
		cp := *s.schedules[scheduleKey{poolID.String(), b}]
		result = append(result, &cp)
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateSchedule(_ context.Context, sc *vesting.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := scheduleKey{sc.PoolID.String(), sc.Beneficiary}
	if _, exists := s.schedules[key]; !exists {
		return lockup.ErrBeneficiaryNotFound
	}
	cp := *sc
	s.schedules[key] = &cp
	return nil
}

// Staking Store implementation
func (s *Store) CreatePosition(_ context.Context, p *staking.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.positions[p.Account]
	if p.Index != uint64(len(list)) {
		return fmt.Errorf("%w: position %s #%d (next index %d)", lockup.ErrAlreadyExists, p.Account.Hex(), p.Index, len(list))
	}
	cp := *p
	s.positions[p.Account] = append(list, &cp)
	return nil
}

func (s *Store) GetPosition(_ context.Context, account common.Address, index uint64) (*staking.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.positions[account]
	if index >= uint64(len(list)) {
		return nil, lockup.ErrPositionNotFound
	}
	cp := *list[index]
	return &cp, nil
}

func (s *Store) ListPositions(_ context.Context, account common.Address) ([]*staking.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	list := s.positions[account]
	result := make([]*staking.Position, 0, len(list))
	for _, p := range list {
		cp := *p
		result = append(result, &cp)
	}
	return result, nil
}

func (s *Store) CountPositions(_ context.Context, account common.Address) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.positions[account])), nil
}

func (s *Store) UpdatePosition(_ context.Context, p *staking.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.positions[p.Account]
	if p.Index >= uint64(len(list)) {
		return lockup.ErrPositionNotFound
	}
	cp := *p
	list[p.Index] = &cp
	return nil
}

// Airdrop Store implementation
func (s *Store) GetAirdropState(_ context.Context) (*airdrop.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.airdropState == nil {
		return nil, lockup.ErrNotFound
	}
	cp := *s.airdropState
	return &cp, nil
}

func (s *Store) SaveAirdropState(_ context.Context, st *airdrop.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *st
	s.airdropState = &cp
	return nil
}

func (s *Store) GetAirdropClaim(_ context.Context, owner common.Address) (*airdrop.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.airdropClaims[owner]; ok {
		cp := *c
		return &cp, nil
	}
	return nil, lockup.ErrNotFound
}

func (s *Store) SaveAirdropClaim(_ context.Context, c *airdrop.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.airdropClaims[c.Owner] = &cp
	return nil
}

// Fee Store implementation
func (s *Store) GetFeeSchedule(_ context.Context) (*fee.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.feeSchedule == nil {
		return nil, lockup.ErrNotFound
	}
	cp := *s.feeSchedule
	return &cp, nil
}

func (s *Store) SaveFeeSchedule(_ context.Context, f *fee.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *f
	s.feeSchedule = &cp
	return nil
}

// Receipt Store implementation
func (s *Store) CreateReceipt(_ context.Context, r *receipt.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *r
	s.receipts = append(s.receipts, &cp)
	return nil
}

// ListReceipts returns an account's receipts, newest first.
func (s *Store) ListReceipts(_ context.Context, account common.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*receipt.Receipt, 0)
	for i := len(s.receipts) - 1; i >= 0; i-- {
		r := s.receipts[i]
		if r.Account != account {
			continue
		}
		if opts.Kind != "" && r.Kind != opts.Kind {
			continue
		}
		cp := *r
		result = append(result, &cp)
	}
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return lockup.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// page applies offset and limit; a zero limit means no limit.
func page[T any](items []T, offset, limit int) []T {
	start := min(max(offset, 0), len(items))
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
