package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	lockupstore "github.com/xraph/lockup/store"
	"github.com/xraph/lockup/vesting"
)

// compile-time interface check
var _ lockupstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("lockup/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("lockup/sqlite: %w: %w", lockup.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Vesting Store ====================

func (s *Store) CreatePool(ctx context.Context, p *vesting.Pool) error {
	res, err := s.sdb.NewInsert(toPoolModel(p)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	return insertResult(res, err)
}

func (s *Store) GetPool(ctx context.Context, poolID id.PoolID) (*vesting.Pool, error) {
	m := new(poolModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", poolID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, lockup.ErrPoolNotFound
		}
		return nil, err
	}
	return fromPoolModel(m)
}

func (s *Store) ListPools(ctx context.Context, opts vesting.ListOpts) ([]*vesting.Pool, error) {
	var models []poolModel
	q := s.sdb.NewSelect(&models)

	if opts.Allocation != "" {
		q = q.Where("allocation = ?", string(opts.Allocation))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*vesting.Pool, len(models))
	for i := range models {
		p, err := fromPoolModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePool(ctx context.Context, p *vesting.Pool) error {
	m := toPoolModel(p)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	return updateResult(res, err, lockup.ErrPoolNotFound)
}

func (s *Store) CreateSchedule(ctx context.Context, sc *vesting.Schedule) error {
	res, err := s.sdb.NewInsert(toScheduleModel(sc)).
		OnConflict("(pool_id, beneficiary) DO NOTHING").
		Exec(ctx)
	return insertResult(res, err)
}

func (s *Store) GetSchedule(ctx context.Context, poolID id.PoolID, beneficiary common.Address) (*vesting.Schedule, error) {
	m := new(scheduleModel)
	err := s.sdb.NewSelect(m).
		Where("pool_id = ?", poolID.String()).
		Where("beneficiary = ?", beneficiary.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, lockup.ErrBeneficiaryNotFound
		}
		return nil, err
	}
	return fromScheduleModel(m)
}

func (s *Store) ListSchedules(ctx context.Context, poolID id.PoolID, opts vesting.ListOpts) ([]*vesting.Schedule, error) {
	var models []scheduleModel
	q := s.sdb.NewSelect(&models).Where("pool_id = ?", poolID.String())

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("created_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*vesting.Schedule, len(models))
	for i := range models {
		sc, err := fromScheduleModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sc
	}
	return result, nil
}

func (s *Store) UpdateSchedule(ctx context.Context, sc *vesting.Schedule) error {
	m := toScheduleModel(sc)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	return updateResult(res, err, lockup.ErrBeneficiaryNotFound)
}

// ==================== Staking Store ====================

// CreatePosition appends a position. The (account, idx) unique key rejects
// an index that is already taken.
func (s *Store) CreatePosition(ctx context.Context, p *staking.Position) error {
	count, err := s.CountPositions(ctx, p.Account)
	if err != nil {
		return err
	}
	if p.Index != count {
		return fmt.Errorf("%w: position %s #%d (next index %d)", lockup.ErrAlreadyExists, p.Account.Hex(), p.Index, count)
	}
	res, err := s.sdb.NewInsert(toPositionModel(p)).
		OnConflict("(account, idx) DO NOTHING").
		Exec(ctx)
	return insertResult(res, err)
}

func (s *Store) GetPosition(ctx context.Context, account common.Address, index uint64) (*staking.Position, error) {
	m := new(positionModel)
	err := s.sdb.NewSelect(m).
		Where("account = ?", account.Hex()).
		Where("idx = ?", int64(index)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, lockup.ErrPositionNotFound
		}
		return nil, err
	}
	return fromPositionModel(m)
}

func (s *Store) ListPositions(ctx context.Context, account common.Address) ([]*staking.Position, error) {
	var models []positionModel
	err := s.sdb.NewSelect(&models).
		Where("account = ?", account.Hex()).
		OrderExpr("idx ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*staking.Position, len(models))
	for i := range models {
		p, err := fromPositionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) CountPositions(ctx context.Context, account common.Address) (uint64, error) {
	var count int64
	err := s.sdb.NewRaw(`
		SELECT COUNT(*) FROM lockup_positions WHERE account = ?
	`, account.Hex()).Scan(ctx, &count)
	if err != nil {
		return 0, err
	}
	return uint64(count), nil
}

func (s *Store) UpdatePosition(ctx context.Context, p *staking.Position) error {
	m := toPositionModel(p)
	m.UpdatedAt = now()
	res, err := s.sdb.NewUpdate(m).WherePK().Exec(ctx)
	return updateResult(res, err, lockup.ErrPositionNotFound)
}

// ==================== Airdrop Store ====================

func (s *Store) GetAirdropState(ctx context.Context) (*airdrop.State, error) {
	m := new(airdropStateModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", singletonID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, lockup.ErrNotFound
		}
		return nil, err
	}
	return fromAirdropStateModel(m), nil
}

func (s *Store) SaveAirdropState(ctx context.Context, st *airdrop.State) error {
	m := toAirdropStateModel(st)
	m.UpdatedAt = now()
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("enabled = EXCLUDED.enabled").
		Set("rate = EXCLUDED.rate").
		Set("cooldown = EXCLUDED.cooldown").
		Set("started_at = EXCLUDED.started_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetAirdropClaim(ctx context.Context, owner common.Address) (*airdrop.Claim, error) {
	m := new(airdropClaimModel)
	err := s.sdb.NewSelect(m).
		Where("owner = ?", owner.Hex()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, lockup.ErrNotFound
		}
		return nil, err
	}
	return fromAirdropClaimModel(m)
}

func (s *Store) SaveAirdropClaim(ctx context.Context, c *airdrop.Claim) error {
	m := toAirdropClaimModel(c)
	m.UpdatedAt = now()
	_, err := s.sdb.NewInsert(m).
		OnConflict("(owner) DO UPDATE").
		Set("last_claim = EXCLUDED.last_claim").
		Set("claimed = EXCLUDED.claimed").
		Set("claim_count = EXCLUDED.claim_count").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Fee Store ====================

func (s *Store) GetFeeSchedule(ctx context.Context) (*fee.Schedule, error) {
	m := new(feeScheduleModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", singletonID).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, lockup.ErrNotFound
		}
		return nil, err
	}
	return fromFeeScheduleModel(m), nil
}

func (s *Store) SaveFeeSchedule(ctx context.Context, f *fee.Schedule) error {
	m := toFeeScheduleModel(f)
	m.UpdatedAt = now()
	_, err := s.sdb.NewInsert(m).
		OnConflict("(id) DO UPDATE").
		Set("tax_fee = EXCLUDED.tax_fee").
		Set("penalty_rate = EXCLUDED.penalty_rate").
		Set("last_change = EXCLUDED.last_change").
		Set("min_change_interval = EXCLUDED.min_change_interval").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Receipt Store ====================

func (s *Store) CreateReceipt(ctx context.Context, r *receipt.Receipt) error {
	_, err := s.sdb.NewInsert(toReceiptModel(r)).Exec(ctx)
	return err
}

func (s *Store) ListReceipts(ctx context.Context, account common.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	var models []receiptModel
	q := s.sdb.NewSelect(&models).Where("account = ?", account.Hex())

	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("ts DESC, id DESC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*receipt.Receipt, len(models))
	for i := range models {
		r, err := fromReceiptModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func now() time.Time {
	return time.Now().UTC()
}

// insertResult maps an insert that hit its conflict target to ErrAlreadyExists.
func insertResult(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return lockup.ErrAlreadyExists
	}
	return nil
}

// updateResult maps an update that matched no row to notFound.
func updateResult(res sql.Result, err, notFound error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
