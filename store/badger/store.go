// Package badger is an embedded store.Store on BadgerDB. Records are JSON
// documents under prefixed keys; multi-record invariants are enforced
// inside a single read-write transaction.
package badger

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dgraph-io/badger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"

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

// Key layout.
var (
	prefixPool     = []byte("pool/")
	prefixSchedule = []byte("sched/")
	prefixPosition = []byte("pos/")
	prefixClaim    = []byte("airdrop/claim/")
	prefixReceipt  = []byte("rcpt/")

	keyAirdropState = []byte("airdrop/state")
	keyFeeSchedule  = []byte("fee/schedule")
)

func poolKey(poolID id.PoolID) []byte {
	return append(append([]byte{}, prefixPool...), poolID.String()...)
}

func schedulePrefix(poolID id.PoolID) []byte {
	return []byte(fmt.Sprintf("%s%s/", prefixSchedule, poolID))
}

func scheduleKey(poolID id.PoolID, beneficiary common.Address) []byte {
	return append(schedulePrefix(poolID), beneficiary.Hex()...)
}

func positionPrefix(account common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s/", prefixPosition, account.Hex()))
}

// Indexes are zero padded so keys sort numerically.
func positionKey(account common.Address, index uint64) []byte {
	return append(positionPrefix(account), fmt.Sprintf("%020d", index)...)
}

func claimKey(owner common.Address) []byte {
	return append(append([]byte{}, prefixClaim...), owner.Hex()...)
}

func receiptPrefix(account common.Address) []byte {
	return []byte(fmt.Sprintf("%s%s/", prefixReceipt, account.Hex()))
}

func receiptKey(r *receipt.Receipt) []byte {
	return append(receiptPrefix(r.Account), fmt.Sprintf("%020d/%s", r.Timestamp, r.ID)...)
}

// Store persists lockup records in a BadgerDB directory.
type Store struct {
	db *badger.DB

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database in dir.
func Open(dir string) (*Store, error) {
	db, err := badger.Open(badger.DefaultOptions(dir).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrapf(err, "lockup/badger: open %s", dir)
	}
	return &Store{db: db}, nil
}

// DB returns the underlying badger database.
func (s *Store) DB() *badger.DB { return s.db }

// ==================== Vesting Store ====================

func (s *Store) CreatePool(_ context.Context, p *vesting.Pool) error {
	return s.update(func(txn *badger.Txn) error {
		return insert(txn, poolKey(p.ID), p)
	})
}

func (s *Store) GetPool(_ context.Context, poolID id.PoolID) (*vesting.Pool, error) {
	p := new(vesting.Pool)
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, poolKey(poolID), p, lockup.ErrPoolNotFound)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPools(_ context.Context, opts vesting.ListOpts) ([]*vesting.Pool, error) {
	var result []*vesting.Pool
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, prefixPool, func(val []byte) error {
			p := new(vesting.Pool)
			if err := json.Unmarshal(val, p); err != nil {
				return err
			}
			if opts.Allocation == "" || p.Allocation == opts.Allocation {
				result = append(result, p)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "lockup/badger: list pools")
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdatePool(_ context.Context, p *vesting.Pool) error {
	return s.update(func(txn *badger.Txn) error {
		return replace(txn, poolKey(p.ID), p, lockup.ErrPoolNotFound)
	})
}

func (s *Store) CreateSchedule(_ context.Context, sc *vesting.Schedule) error {
	return s.update(func(txn *badger.Txn) error {
		return insert(txn, scheduleKey(sc.PoolID, sc.Beneficiary), sc)
	})
}

func (s *Store) GetSchedule(_ context.Context, poolID id.PoolID, beneficiary common.Address) (*vesting.Schedule, error) {
	sc := new(vesting.Schedule)
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, scheduleKey(poolID, beneficiary), sc, lockup.ErrBeneficiaryNotFound)
	})
	if err != nil {
		return nil, err
	}
	return sc, nil
}

func (s *Store) ListSchedules(_ context.Context, poolID id.PoolID, opts vesting.ListOpts) ([]*vesting.Schedule, error) {
	var result []*vesting.Schedule
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, schedulePrefix(poolID), func(val []byte) error {
			sc := new(vesting.Schedule)
			if err := json.Unmarshal(val, sc); err != nil {
				return err
			}
			result = append(result, sc)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "lockup/badger: list schedules")
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdateSchedule(_ context.Context, sc *vesting.Schedule) error {
	return s.update(func(txn *badger.Txn) error {
		return replace(txn, scheduleKey(sc.PoolID, sc.Beneficiary), sc, lockup.ErrBeneficiaryNotFound)
	})
}

// ==================== Staking Store ====================

func (s *Store) CreatePosition(_ context.Context, p *staking.Position) error {
	return s.update(func(txn *badger.Txn) error {
		next, err := count(txn, positionPrefix(p.Account))
		if err != nil {
			return err
		}
		if p.Index != next {
			return fmt.Errorf("%w: position %s #%d (next index %d)", lockup.ErrAlreadyExists, p.Account.Hex(), p.Index, next)
		}
		return insert(txn, positionKey(p.Account, p.Index), p)
	})
}

func (s *Store) GetPosition(_ context.Context, account common.Address, index uint64) (*staking.Position, error) {
	p := new(staking.Position)
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, positionKey(account, index), p, lockup.ErrPositionNotFound)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) ListPositions(_ context.Context, account common.Address) ([]*staking.Position, error) {
	result := make([]*staking.Position, 0)
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, positionPrefix(account), func(val []byte) error {
			p := new(staking.Position)
			if err := json.Unmarshal(val, p); err != nil {
				return err
			}
			result = append(result, p)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "lockup/badger: list positions")
	}
	return result, nil
}

func (s *Store) CountPositions(_ context.Context, account common.Address) (uint64, error) {
	var n uint64
	err := s.view(func(txn *badger.Txn) (err error) {
		n, err = count(txn, positionPrefix(account))
		return err
	})
	return n, err
}

func (s *Store) UpdatePosition(_ context.Context, p *staking.Position) error {
	return s.update(func(txn *badger.Txn) error {
		return replace(txn, positionKey(p.Account, p.Index), p, lockup.ErrPositionNotFound)
	})
}

// ==================== Airdrop Store ====================

func (s *Store) GetAirdropState(_ context.Context) (*airdrop.State, error) {
	st := new(airdrop.State)
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, keyAirdropState, st, lockup.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return st, nil
}

func (s *Store) SaveAirdropState(_ context.Context, st *airdrop.State) error {
	return s.update(func(txn *badger.Txn) error {
		return put(txn, keyAirdropState, st)
	})
}

func (s *Store) GetAirdropClaim(_ context.Context, owner common.Address) (*airdrop.Claim, error) {
	c := new(airdrop.Claim)
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, claimKey(owner), c, lockup.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Store) SaveAirdropClaim(_ context.Context, c *airdrop.Claim) error {
	return s.update(func(txn *badger.Txn) error {
		return put(txn, claimKey(c.Owner), c)
	})
}

// ==================== Fee Store ====================

func (s *Store) GetFeeSchedule(_ context.Context) (*fee.Schedule, error) {
	f := new(fee.Schedule)
	err := s.view(func(txn *badger.Txn) error {
		return get(txn, keyFeeSchedule, f, lockup.ErrNotFound)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Store) SaveFeeSchedule(_ context.Context, f *fee.Schedule) error {
	return s.update(func(txn *badger.Txn) error {
		return put(txn, keyFeeSchedule, f)
	})
}

// ==================== Receipt Store ====================

func (s *Store) CreateReceipt(_ context.Context, r *receipt.Receipt) error {
	return s.update(func(txn *badger.Txn) error {
		return insert(txn, receiptKey(r), r)
	})
}

// ListReceipts returns an account's receipts, newest first.
func (s *Store) ListReceipts(_ context.Context, account common.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	var all []*receipt.Receipt
	err := s.view(func(txn *badger.Txn) error {
		return scan(txn, receiptPrefix(account), func(val []byte) error {
			r := new(receipt.Receipt)
			if err := json.Unmarshal(val, r); err != nil {
				return err
			}
			if opts.Kind == "" || r.Kind == opts.Kind {
				all = append(all, r)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "lockup/badger: list receipts")
	}

	result := make([]*receipt.Receipt, 0, len(all))
	for i := len(all) - 1; i >= 0; i-- {
		result = append(result, all[i])
	}
	return page(result, opts.Offset, opts.Limit), nil
}

// ==================== Lifecycle ====================

// Migrate is a no-op; the key layout needs no schema.
func (s *Store) Migrate(_ context.Context) error { return nil }

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
	if s.closed {
		return nil
	}
	s.closed = true
	return errors.Wrap(s.db.Close(), "lockup/badger: close")
}

// ==================== helpers ====================

func (s *Store) view(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return lockup.ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(txn *badger.Txn) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return lockup.ErrStoreClosed
	}
	return s.db.Update(fn)
}

func get(txn *badger.Txn, key []byte, v any, notFound error) error {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return notFound
	}
	if err != nil {
		return errors.Wrapf(err, "lockup/badger: get %s", key)
	}
	return item.Value(func(val []byte) error {
		return errors.Wrapf(json.Unmarshal(val, v), "lockup/badger: decode %s", key)
	})
}

func exists(txn *badger.Txn, key []byte) (bool, error) {
	_, err := txn.Get(key)
	switch {
	case err == badger.ErrKeyNotFound:
		return false, nil
	case err != nil:
		return false, errors.Wrapf(err, "lockup/badger: get %s", key)
	}
	return true, nil
}

func put(txn *badger.Txn, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "lockup/badger: encode %s", key)
	}
	return errors.Wrapf(txn.Set(key, data), "lockup/badger: set %s", key)
}

func insert(txn *badger.Txn, key []byte, v any) error {
	ok, err := exists(txn, key)
	if err != nil {
		return err
	}
	if ok {
		return lockup.ErrAlreadyExists
	}
	return put(txn, key, v)
}

func replace(txn *badger.Txn, key []byte, v any, notFound error) error {
	ok, err := exists(txn, key)
	if err != nil {
		return err
	}
	if !ok {
		return notFound
	}
	return put(txn, key, v)
}

// scan visits every value under prefix in key order.
func scan(txn *badger.Txn, prefix []byte, fn func(val []byte) error) error {
	it := txn.NewIterator(badger.DefaultIteratorOptions)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := it.Item().Value(fn); err != nil {
			return err
		}
	}
	return nil
}

func count(txn *badger.Txn, prefix []byte) (uint64, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = false
	it := txn.NewIterator(opts)
	defer it.Close()

	var n uint64
	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		n++
	}
	return n, nil
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
