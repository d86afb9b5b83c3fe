package lockup

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/access"
	"github.com/xraph/lockup/curve"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

// PoolParams describes a vesting pool to initialize.
type PoolParams struct {
	// ID is optional; a fresh one is generated when nil. Initializing an
	// existing ID fails with ErrAlreadyInitialized.
	ID          id.PoolID
	Name        string
	Allocation  vesting.Allocation
	Cap         types.Amount
	Start       int64
	Cliff       int64
	Duration    int64
	CurveKind   curve.Kind
	RateTable   []curve.Step
	MonthLength int64
	// DeleteMode defaults to the engine's configured mode.
	DeleteMode vesting.DeleteMode
	Grants     []vesting.Grant
	Metadata   map[string]string
}

// ──────────────────────────────────────────────────
// Pool management
// ──────────────────────────────────────────────────

// InitPool creates a vesting pool and its initial schedules atomically.
func (e *Engine) InitPool(ctx context.Context, caller common.Address, params PoolParams) (*vesting.Pool, error) {
	if err := e.authorize(ctx, caller, access.ActionInitPool); err != nil {
		return nil, err
	}

	pool := &vesting.Pool{
		ID:          params.ID,
		Name:        params.Name,
		Allocation:  params.Allocation,
		Whitelist:   params.Allocation.IsWhitelist(),
		Cap:         params.Cap,
		Start:       params.Start,
		Cliff:       params.Cliff,
		Duration:    params.Duration,
		CurveKind:   params.CurveKind,
		RateTable:   params.RateTable,
		MonthLength: params.MonthLength,
		DeleteMode:  params.DeleteMode,
		Metadata:    params.Metadata,
	}
	if pool.CurveKind == "" {
		pool.CurveKind = curve.KindLinear
	}
	if pool.DeleteMode == "" {
		pool.DeleteMode = e.deleteMode
	}
	if err := validatePool(pool); err != nil {
		return nil, err
	}

	e.mu.Lock()
	if !pool.ID.IsNil() {
		if _, err := e.store.GetPool(ctx, pool.ID); err == nil {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: pool %s", ErrAlreadyInitialized, pool.ID)
		} else if !IsNotFound(err) {
			e.mu.Unlock()
			return nil, err
		}
	} else {
		pool.ID = id.NewPoolID()
	}

	planned, total, err := e.planGrants(ctx, pool, params.Grants)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	pool.Entity = types.NewEntity()
	pool.Allocated = total
	if err := e.store.CreatePool(ctx, pool); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	schedules, err := e.commitGrants(ctx, planned)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.plugins.EmitPoolInitialized(ctx, pool)
	if len(schedules) > 0 {
		e.plugins.EmitBeneficiariesAdded(ctx, pool, schedules)
	}

	e.logger.Info("vesting pool initialized",
		"pool", pool.ID.String(),
		"allocation", pool.Allocation,
		"cap", pool.Cap.String(),
		"beneficiaries", len(schedules),
	)
	return pool, nil
}

func validatePool(p *vesting.Pool) error {
	if err := p.Params().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScheduleConfig, err)
	}
	if p.Cap.IsZero() {
		return invalid(ErrInvalidScheduleConfig, "cap", "pool cap must be positive")
	}
	if _, err := p.Curve(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidScheduleConfig, err)
	}
	switch p.DeleteMode {
	case vesting.DeleteForfeitUnvested, vesting.DeleteForfeitAll:
	default:
		return invalid(ErrInvalidScheduleConfig, "delete_mode", "unknown mode %q", p.DeleteMode)
	}
	return nil
}

// GetPool returns a pool.
func (e *Engine) GetPool(ctx context.Context, poolID id.PoolID) (*vesting.Pool, error) {
	return e.store.GetPool(ctx, poolID)
}

// ListPools lists pools.
func (e *Engine) ListPools(ctx context.Context, opts vesting.ListOpts) ([]*vesting.Pool, error) {
	return e.store.ListPools(ctx, opts)
}

// GetSchedule returns a beneficiary's schedule in a pool.
func (e *Engine) GetSchedule(ctx context.Context, poolID id.PoolID, beneficiary common.Address) (*vesting.Schedule, error) {
	return e.store.GetSchedule(ctx, poolID, beneficiary)
}

// ListSchedules lists the schedules of a pool, removed ones included.
func (e *Engine) ListSchedules(ctx context.Context, poolID id.PoolID, opts vesting.ListOpts) ([]*vesting.Schedule, error) {
	return e.store.ListSchedules(ctx, poolID, opts)
}

// ──────────────────────────────────────────────────
// Beneficiaries
// ──────────────────────────────────────────────────

// plannedGrant is a validated grant and the schedule it will create or
// overwrite.
type plannedGrant struct {
	schedule *vesting.Schedule
	existing bool
}

// planGrants validates grants against pool without writing anything.
// Caller holds mu.
func (e *Engine) planGrants(ctx context.Context, pool *vesting.Pool, grants []vesting.Grant) ([]plannedGrant, types.Amount, error) {
	seen := make(map[common.Address]bool, len(grants))
	total := types.Zero
	planned := make([]plannedGrant, 0, len(grants))

	for i, g := range grants {
		field := fmt.Sprintf("grants[%d]", i)
		switch {
		case g.Beneficiary == (common.Address{}):
			return nil, types.Zero, invalid(ErrInvalidAmount, field, "zero beneficiary address")
		case g.Amount.IsZero():
			return nil, types.Zero, invalid(ErrInvalidAmount, field, "zero amount for %s", g.Beneficiary.Hex())
		case g.Amount.Lt(g.InitialUnlock):
			return nil, types.Zero, invalid(ErrInvalidAmount, field, "initial unlock exceeds amount for %s", g.Beneficiary.Hex())
		case seen[g.Beneficiary]:
			return nil, types.Zero, fmt.Errorf("%w: %s", ErrDuplicateBeneficiaries, g.Beneficiary.Hex())
		}
		seen[g.Beneficiary] = true

		p := plannedGrant{schedule: &vesting.Schedule{
			PoolID:        pool.ID,
			Beneficiary:   g.Beneficiary,
			TotalAmount:   g.Amount,
			InitialUnlock: g.InitialUnlock,
		}}
		old, err := e.store.GetSchedule(ctx, pool.ID, g.Beneficiary)
		switch {
		case err == nil:
			if !old.FullyReleased() {
				return nil, types.Zero, fmt.Errorf("%w: %s in pool %s", ErrBeneficiaryExists, g.Beneficiary.Hex(), pool.ID)
			}
			p.existing = true
			p.schedule.ID = old.ID
			p.schedule.Entity = old.Entity
		case IsNotFound(err):
			p.schedule.ID = id.NewScheduleID()
			p.schedule.Entity = types.NewEntity()
		default:
			return nil, types.Zero, err
		}
		planned = append(planned, p)

		sum, overflow := total.AddOverflow(g.Amount)
		if overflow {
			return nil, types.Zero, fmt.Errorf("%w: requested amounts overflow at %s",
				ErrExceedsAllocation, g.Beneficiary.Hex())
		}
		total = sum
	}

	if pool.Available().Lt(total) {
		return nil, types.Zero, fmt.Errorf("%w: requested %s, available %s of %s",
			ErrExceedsAllocation, total, pool.Available(), pool.Cap)
	}
	return planned, total, nil
}

// commitGrants writes planned schedules. Caller holds mu.
func (e *Engine) commitGrants(ctx context.Context, planned []plannedGrant) ([]*vesting.Schedule, error) {
	out := make([]*vesting.Schedule, 0, len(planned))
	for _, p := range planned {
		var err error
		if p.existing {
			p.schedule.Touch()
			err = e.store.UpdateSchedule(ctx, p.schedule)
		} else {
			err = e.store.CreateSchedule(ctx, p.schedule)
		}
		if err != nil {
			return out, fmt.Errorf("lockup: store schedule for %s: %w", p.schedule.Beneficiary.Hex(), err)
		}
		out = append(out, p.schedule)
	}
	return out, nil
}

// AddBeneficiaries adds schedules to a pool. The request is all or nothing:
// any invalid grant rejects the whole list. An address may be re-added
// only once its previous schedule is fully released.
func (e *Engine) AddBeneficiaries(ctx context.Context, caller common.Address, poolID id.PoolID, grants []vesting.Grant) ([]*vesting.Schedule, error) {
	if err := e.authorize(ctx, caller, access.ActionManageBeneficiaries); err != nil {
		return nil, err
	}
	if len(grants) == 0 {
		return nil, invalid(ErrInvalidAmount, "grants", "no beneficiaries given")
	}

	e.mu.Lock()
	pool, err := e.store.GetPool(ctx, poolID)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	planned, total, err := e.planGrants(ctx, pool, grants)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}

	pool.Allocated = pool.Allocated.Add(total)
	pool.Touch()
	if err := e.store.UpdatePool(ctx, pool); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	schedules, err := e.commitGrants(ctx, planned)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	e.plugins.EmitBeneficiariesAdded(ctx, pool, schedules)
	e.logger.Info("beneficiaries added",
		"pool", poolID.String(),
		"count", len(schedules),
		"amount", total.String(),
	)
	return schedules, nil
}

// DeleteBeneficiaries removes schedules from a pool. Under the default mode
// the vested-but-unreleased amount stays claimable and only the unvested
// remainder is forfeited; DeleteForfeitAll forfeits everything unreleased.
// Forfeited tokens return to the pool's unallocated cap.
func (e *Engine) DeleteBeneficiaries(ctx context.Context, caller common.Address, poolID id.PoolID, beneficiaries []common.Address) ([]*vesting.Schedule, error) {
	if err := e.authorize(ctx, caller, access.ActionManageBeneficiaries); err != nil {
		return nil, err
	}
	if len(beneficiaries) == 0 {
		return nil, invalid(ErrBeneficiaryNotFound, "beneficiaries", "no beneficiaries given")
	}

	e.mu.Lock()
	pool, err := e.store.GetPool(ctx, poolID)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	crv, err := pool.Curve()
	if err != nil {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %w", ErrInvalidScheduleConfig, err)
	}

	now := e.clock.Now()
	seen := make(map[common.Address]bool, len(beneficiaries))
	removed := make([]*vesting.Schedule, 0, len(beneficiaries))
	forfeited := types.Zero
	for _, b := range beneficiaries {
		if seen[b] {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBeneficiaries, b.Hex())
		}
		seen[b] = true

		s, err := e.store.GetSchedule(ctx, poolID, b)
		if err != nil {
			e.mu.Unlock()
			if IsNotFound(err) {
				return nil, fmt.Errorf("%w: %s in pool %s", ErrBeneficiaryNotFound, b.Hex(), poolID)
			}
			return nil, err
		}
		if s.Removed {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: %s already removed from pool %s", ErrBeneficiaryNotFound, b.Hex(), poolID)
		}

		keep := s.VestedAmount(crv, pool.Params(), now)
		if pool.DeleteMode == vesting.DeleteForfeitAll {
			keep = s.Released
		}
		lost := s.TotalAmount.SubFloor(keep)
		s.TotalAmount = keep
		s.InitialUnlock = s.InitialUnlock.Min(keep)
		s.Forfeited = s.Forfeited.Add(lost)
		s.Removed = true
		s.Touch()

		forfeited = forfeited.Add(lost)
		removed = append(removed, s)
	}

	pool.Allocated = pool.Allocated.SubFloor(forfeited)
	pool.Forfeited = pool.Forfeited.Add(forfeited)
	pool.Touch()
	for _, s := range removed {
		if err := e.store.UpdateSchedule(ctx, s); err != nil {
			e.mu.Unlock()
			return nil, err
		}
	}
	err = e.store.UpdatePool(ctx, pool)
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for _, s := range removed {
		e.plugins.EmitBeneficiaryRemoved(ctx, pool, s)
	}
	e.logger.Info("beneficiaries removed",
		"pool", poolID.String(),
		"count", len(removed),
		"forfeited", forfeited.String(),
		"mode", pool.DeleteMode,
	)
	return removed, nil
}

// ──────────────────────────────────────────────────
// Vesting queries and release
// ──────────────────────────────────────────────────

// VestedAmount returns the cumulative vested amount of a beneficiary now.
func (e *Engine) VestedAmount(ctx context.Context, poolID id.PoolID, beneficiary common.Address) (types.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, s, crv, err := e.loadSchedule(ctx, poolID, beneficiary)
	if err != nil {
		return types.Zero, err
	}
	return s.VestedAmount(crv, pool.Params(), e.clock.Now()), nil
}

// Claimable returns vested minus released for a beneficiary now.
func (e *Engine) Claimable(ctx context.Context, poolID id.PoolID, beneficiary common.Address) (types.Amount, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	pool, s, crv, err := e.loadSchedule(ctx, poolID, beneficiary)
	if err != nil {
		return types.Zero, err
	}
	return s.Claimable(crv, pool.Params(), e.clock.Now()), nil
}

// Release pays a beneficiary everything vested and not yet released.
// Calling it again at the same instant fails with ErrNotYetClaimable.
func (e *Engine) Release(ctx context.Context, poolID id.PoolID, beneficiary common.Address) (*receipt.Receipt, error) {
	e.mu.Lock()
	pool, s, crv, err := e.loadSchedule(ctx, poolID, beneficiary)
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	now := e.clock.Now()
	amount := s.Claimable(crv, pool.Params(), now)
	if amount.IsZero() {
		e.mu.Unlock()
		return nil, fmt.Errorf("%w: %s in pool %s", ErrNotYetClaimable, beneficiary.Hex(), poolID)
	}

	if err := e.adjustReleased(ctx, poolID, beneficiary, amount, true); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	s.Released = s.Released.Add(amount)
	e.mu.Unlock()

	net, err := e.payout(ctx, beneficiary, amount, func(ctx context.Context) error {
		return e.adjustReleased(ctx, poolID, beneficiary, amount, false)
	})
	if err != nil {
		return nil, err
	}

	r := e.record(ctx, &receipt.Receipt{
		Kind:      receipt.KindRelease,
		Account:   beneficiary,
		PoolID:    poolID,
		Gross:     amount,
		Net:       net,
		Timestamp: now,
	})
	e.plugins.EmitVestingReleased(ctx, s, r)

	e.logger.Debug("vesting released",
		"pool", poolID.String(),
		"beneficiary", beneficiary.Hex(),
		"amount", amount.String(),
		"net", net.String(),
	)
	return r, nil
}

// adjustReleased adds (or, when reverting, subtracts) amount to the
// released totals of a schedule and its pool. It rereads both records so
// a revert composes with anything committed in between. Caller holds mu.
func (e *Engine) adjustReleased(ctx context.Context, poolID id.PoolID, beneficiary common.Address, amount types.Amount, add bool) error {
	pool, err := e.store.GetPool(ctx, poolID)
	if err != nil {
		return err
	}
	s, err := e.store.GetSchedule(ctx, poolID, beneficiary)
	if err != nil {
		return err
	}

	prev := s.Released
	if add {
		s.Released = s.Released.Add(amount)
		pool.Released = pool.Released.Add(amount)
	} else {
		s.Released = s.Released.SubFloor(amount)
		pool.Released = pool.Released.SubFloor(amount)
	}
	s.Touch()
	pool.Touch()

	if err := e.store.UpdateSchedule(ctx, s); err != nil {
		return err
	}
	if err := e.store.UpdatePool(ctx, pool); err != nil {
		s.Released = prev
		if rerr := e.store.UpdateSchedule(ctx, s); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}
	return nil
}

// loadSchedule loads a pool, one of its schedules and the pool curve.
// Caller holds mu.
func (e *Engine) loadSchedule(ctx context.Context, poolID id.PoolID, beneficiary common.Address) (*vesting.Pool, *vesting.Schedule, curve.Curve, error) {
	pool, err := e.store.GetPool(ctx, poolID)
	if err != nil {
		return nil, nil, nil, err
	}
	s, err := e.store.GetSchedule(ctx, poolID, beneficiary)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil, nil, fmt.Errorf("%w: %s in pool %s", ErrBeneficiaryNotFound, beneficiary.Hex(), poolID)
		}
		return nil, nil, nil, err
	}
	crv, err := pool.Curve()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: %w", ErrInvalidScheduleConfig, err)
	}
	return pool, s, crv, nil
}
