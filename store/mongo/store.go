package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	lockupstore "github.com/xraph/lockup/store"
	"github.com/xraph/lockup/vesting"
)

// Collection name constants.
const (
	colPools         = "lockup_pools"
	colSchedules     = "lockup_schedules"
	colPositions     = "lockup_positions"
	colAirdropState  = "lockup_airdrop_state"
	colAirdropClaims = "lockup_airdrop_claims"
	colFeeSchedule   = "lockup_fee_schedule"
	colReceipts      = "lockup_receipts"
)

// compile-time interface check
var _ lockupstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all lockup collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("lockup/mongo: migrate %s indexes: %w: %w", col, lockup.ErrMigrationFailed, err)
		}
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
	_, err := s.mdb.NewInsert(toPoolModel(p)).Exec(ctx)
	return insertErr("create pool", err)
}

func (s *Store) GetPool(ctx context.Context, poolID id.PoolID) (*vesting.Pool, error) {
	var m poolModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": poolID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, lockup.ErrPoolNotFound
		}
		return nil, fmt.Errorf("lockup/mongo: get pool: %w", err)
	}
	return fromPoolModel(&m)
}

func (s *Store) ListPools(ctx context.Context, opts vesting.ListOpts) ([]*vesting.Pool, error) {
	var models []poolModel

	filter := bson.M{}
	if opts.Allocation != "" {
		filter["allocation"] = string(opts.Allocation)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("lockup/mongo: list pools: %w", err)
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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("lockup/mongo: update pool: %w", err)
	}
	if res.MatchedCount() == 0 {
		return lockup.ErrPoolNotFound
	}
	return nil
}

func (s *Store) CreateSchedule(ctx context.Context, sc *vesting.Schedule) error {
	_, err := s.mdb.NewInsert(toScheduleModel(sc)).Exec(ctx)
	return insertErr("create schedule", err)
}

func (s *Store) GetSchedule(ctx context.Context, poolID id.PoolID, beneficiary common.Address) (*vesting.Schedule, error) {
	var m scheduleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"pool_id": poolID.String(), "beneficiary": beneficiary.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, lockup.ErrBeneficiaryNotFound
		}
		return nil, fmt.Errorf("lockup/mongo: get schedule: %w", err)
	}
	return fromScheduleModel(&m)
}

func (s *Store) ListSchedules(ctx context.Context, poolID id.PoolID, opts vesting.ListOpts) ([]*vesting.Schedule, error) {
	var models []scheduleModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{"pool_id": poolID.String()}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("lockup/mongo: list schedules: %w", err)
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

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("lockup/mongo: update schedule: %w", err)
	}
	if res.MatchedCount() == 0 {
		return lockup.ErrBeneficiaryNotFound
	}
	return nil
}

// ==================== Staking Store ====================

func (s *Store) CreatePosition(ctx context.Context, p *staking.Position) error {
	count, err := s.CountPositions(ctx, p.Account)
	if err != nil {
		return err
	}
	if p.Index != count {
		return fmt.Errorf("%w: position %s #%d (next index %d)", lockup.ErrAlreadyExists, p.Account.Hex(), p.Index, count)
	}
	_, err = s.mdb.NewInsert(toPositionModel(p)).Exec(ctx)
	return insertErr("create position", err)
}

func (s *Store) GetPosition(ctx context.Context, account common.Address, index uint64) (*staking.Position, error) {
	var m positionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"account": account.Hex(), "idx": int64(index)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, lockup.ErrPositionNotFound
		}
		return nil, fmt.Errorf("lockup/mongo: get position: %w", err)
	}
	return fromPositionModel(&m)
}

func (s *Store) ListPositions(ctx context.Context, account common.Address) ([]*staking.Position, error) {
	var models []positionModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"account": account.Hex()}).
		Sort(bson.D{{Key: "idx", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("lockup/mongo: list positions: %w", err)
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
	n, err := s.mdb.Collection(colPositions).CountDocuments(ctx, bson.M{"account": account.Hex()})
	if err != nil {
		return 0, fmt.Errorf("lockup/mongo: count positions: %w", err)
	}
	return uint64(n), nil
}

func (s *Store) UpdatePosition(ctx context.Context, p *staking.Position) error {
	m := toPositionModel(p)
	m.UpdatedAt = now()

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("lockup/mongo: update position: %w", err)
	}
	if res.MatchedCount() == 0 {
		return lockup.ErrPositionNotFound
	}
	return nil
}

// ==================== Airdrop Store ====================

func (s *Store) GetAirdropState(ctx context.Context) (*airdrop.State, error) {
	var m airdropStateModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": singletonID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, lockup.ErrNotFound
		}
		return nil, fmt.Errorf("lockup/mongo: get airdrop state: %w", err)
	}
	return fromAirdropStateModel(&m), nil
}

func (s *Store) SaveAirdropState(ctx context.Context, st *airdrop.State) error {
	m := toAirdropStateModel(st)

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": singletonID}).
		SetUpdate(bson.M{"$set": bson.M{
			"enabled":    m.Enabled,
			"rate":       m.Rate,
			"cooldown":   m.Cooldown,
			"started_at": m.StartedAt,
			"created_at": m.CreatedAt,
			"updated_at": now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("lockup/mongo: save airdrop state: %w", err)
	}
	return nil
}

func (s *Store) GetAirdropClaim(ctx context.Context, owner common.Address) (*airdrop.Claim, error) {
	var m airdropClaimModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": owner.Hex()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, lockup.ErrNotFound
		}
		return nil, fmt.Errorf("lockup/mongo: get airdrop claim: %w", err)
	}
	return fromAirdropClaimModel(&m)
}

func (s *Store) SaveAirdropClaim(ctx context.Context, c *airdrop.Claim) error {
	m := toAirdropClaimModel(c)

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.Owner}).
		SetUpdate(bson.M{"$set": bson.M{
			"last_claim":  m.LastClaim,
			"claimed":     m.Claimed,
			"claim_count": m.ClaimCount,
			"created_at":  m.CreatedAt,
			"updated_at":  now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("lockup/mongo: save airdrop claim: %w", err)
	}
	return nil
}

// ==================== Fee Store ====================

func (s *Store) GetFeeSchedule(ctx context.Context) (*fee.Schedule, error) {
	var m feeScheduleModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": singletonID}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, lockup.ErrNotFound
		}
		return nil, fmt.Errorf("lockup/mongo: get fee schedule: %w", err)
	}
	return fromFeeScheduleModel(&m), nil
}

func (s *Store) SaveFeeSchedule(ctx context.Context, f *fee.Schedule) error {
	m := toFeeScheduleModel(f)

	_, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": singletonID}).
		SetUpdate(bson.M{"$set": bson.M{
			"tax_fee":             m.TaxFee,
			"penalty_rate":        m.PenaltyRate,
			"last_change":         m.LastChange,
			"min_change_interval": m.MinChangeInterval,
			"created_at":          m.CreatedAt,
			"updated_at":          now(),
		}}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("lockup/mongo: save fee schedule: %w", err)
	}
	return nil
}

// ==================== Receipt Store ====================

func (s *Store) CreateReceipt(ctx context.Context, r *receipt.Receipt) error {
	_, err := s.mdb.NewInsert(toReceiptModel(r)).Exec(ctx)
	return insertErr("create receipt", err)
}

func (s *Store) ListReceipts(ctx context.Context, account common.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	var models []receiptModel

	filter := bson.M{"account": account.Hex()}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "ts", Value: -1}, {Key: "_id", Value: -1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("lockup/mongo: list receipts: %w", err)
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

// insertErr maps a unique index violation to ErrAlreadyExists.
func insertErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return lockup.ErrAlreadyExists
	}
	return fmt.Errorf("lockup/mongo: %s: %w", op, err)
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all lockup collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPools: {
			{Keys: bson.D{{Key: "allocation", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colSchedules: {
			{
				Keys:    bson.D{{Key: "pool_id", Value: 1}, {Key: "beneficiary", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "pool_id", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		colPositions: {
			{
				Keys:    bson.D{{Key: "account", Value: 1}, {Key: "idx", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colAirdropState:  {},
		colAirdropClaims: {},
		colFeeSchedule:   {},
		colReceipts: {
			{Keys: bson.D{{Key: "account", Value: 1}, {Key: "ts", Value: -1}}},
			{Keys: bson.D{{Key: "account", Value: 1}, {Key: "kind", Value: 1}}},
		},
	}
}
