// Package audithook bridges lockup engine events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/plugin"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin               = (*Extension)(nil)
	_ plugin.OnPoolInitialized    = (*Extension)(nil)
	_ plugin.OnBeneficiariesAdded = (*Extension)(nil)
	_ plugin.OnBeneficiaryRemoved = (*Extension)(nil)
	_ plugin.OnVestingReleased    = (*Extension)(nil)
	_ plugin.OnStaked             = (*Extension)(nil)
	_ plugin.OnStakeWithdrawn     = (*Extension)(nil)
	_ plugin.OnAirdropStarted     = (*Extension)(nil)
	_ plugin.OnAirdropClaimed     = (*Extension)(nil)
	_ plugin.OnFeeChanged         = (*Extension)(nil)
	_ plugin.OnTransferFailed     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audit_hook package does not import Chronicle directly.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges lockup events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Vesting hooks
// ──────────────────────────────────────────────────

// OnPoolInitialized implements plugin.OnPoolInitialized.
func (e *Extension) OnPoolInitialized(ctx context.Context, pool *vesting.Pool) error {
	return e.record(ctx, ActionPoolInitialized, SeverityInfo, OutcomeSuccess,
		ResourcePool, pool.ID.String(), CategoryVesting, nil,
		"name", pool.Name,
		"allocation", string(pool.Allocation),
		"cap", pool.Cap.String(),
		"start", pool.Start,
		"cliff", pool.Cliff,
		"duration", pool.Duration,
	)
}

// OnBeneficiariesAdded implements plugin.OnBeneficiariesAdded.
func (e *Extension) OnBeneficiariesAdded(ctx context.Context, pool *vesting.Pool, schedules []*vesting.Schedule) error {
	beneficiaries := make([]string, len(schedules))
	total := types.Zero
	for i, s := range schedules {
		beneficiaries[i] = s.Beneficiary.Hex()
		total = total.Add(s.TotalAmount)
	}
	return e.record(ctx, ActionBeneficiariesAdded, SeverityInfo, OutcomeSuccess,
		ResourcePool, pool.ID.String(), CategoryVesting, nil,
		"beneficiaries", beneficiaries,
		"amount", total.String(),
		"allocated", pool.Allocated.String(),
	)
}

// OnBeneficiaryRemoved implements plugin.OnBeneficiaryRemoved. Removal
// forfeits tokens, so it is recorded as a warning.
func (e *Extension) OnBeneficiaryRemoved(ctx context.Context, pool *vesting.Pool, schedule *vesting.Schedule) error {
	return e.record(ctx, ActionBeneficiaryRemoved, SeverityWarning, OutcomeSuccess,
		ResourceSchedule, schedule.ID.String(), CategoryVesting, nil,
		"pool_id", pool.ID.String(),
		"beneficiary", schedule.Beneficiary.Hex(),
		"forfeited", schedule.Forfeited.String(),
		"delete_mode", string(pool.DeleteMode),
	)
}

// OnVestingReleased implements plugin.OnVestingReleased.
func (e *Extension) OnVestingReleased(ctx context.Context, schedule *vesting.Schedule, r *receipt.Receipt) error {
	return e.record(ctx, ActionVestingReleased, SeverityInfo, OutcomeSuccess,
		ResourceSchedule, schedule.ID.String(), CategoryVesting, nil,
		"pool_id", schedule.PoolID.String(),
		"beneficiary", schedule.Beneficiary.Hex(),
		"amount", r.Gross.String(),
		"released", schedule.Released.String(),
		"receipt_id", r.ID.String(),
	)
}

// ──────────────────────────────────────────────────
// Staking hooks
// ──────────────────────────────────────────────────

// OnStaked implements plugin.OnStaked.
func (e *Extension) OnStaked(ctx context.Context, pos *staking.Position, r *receipt.Receipt) error {
	return e.record(ctx, ActionStaked, SeverityInfo, OutcomeSuccess,
		ResourcePosition, pos.ID.String(), CategoryStaking, nil,
		"account", pos.Account.Hex(),
		"index", pos.Index,
		"principal", pos.Principal.String(),
		"tier", pos.Tier,
		"receipt_id", r.ID.String(),
	)
}

// OnStakeWithdrawn implements plugin.OnStakeWithdrawn. Early withdrawals
// that paid a penalty are recorded as partial outcomes.
func (e *Extension) OnStakeWithdrawn(ctx context.Context, pos *staking.Position, r *receipt.Receipt) error {
	outcome := OutcomeSuccess
	if !r.Penalty.IsZero() {
		outcome = OutcomePartial
	}
	return e.record(ctx, ActionStakeWithdrawn, SeverityInfo, outcome,
		ResourcePosition, pos.ID.String(), CategoryStaking, nil,
		"account", pos.Account.Hex(),
		"index", pos.Index,
		"amount", r.Gross.String(),
		"reward", r.Reward.String(),
		"penalty", r.Penalty.String(),
		"net", r.Net.String(),
		"receipt_id", r.ID.String(),
	)
}

// ──────────────────────────────────────────────────
// Airdrop hooks
// ──────────────────────────────────────────────────

// OnAirdropStarted implements plugin.OnAirdropStarted.
func (e *Extension) OnAirdropStarted(ctx context.Context, state *airdrop.State) error {
	return e.record(ctx, ActionAirdropStarted, SeverityInfo, OutcomeSuccess,
		ResourceAirdrop, "", CategoryAirdrop, nil,
		"rate_bps", uint32(state.Rate),
		"cooldown", state.Cooldown,
		"started_at", state.StartedAt,
	)
}

// OnAirdropClaimed implements plugin.OnAirdropClaimed.
func (e *Extension) OnAirdropClaimed(ctx context.Context, r *receipt.Receipt) error {
	return e.record(ctx, ActionAirdropClaimed, SeverityInfo, OutcomeSuccess,
		ResourceAirdrop, r.ID.String(), CategoryAirdrop, nil,
		"account", r.Account.Hex(),
		"amount", r.Net.String(),
	)
}

// ──────────────────────────────────────────────────
// Fee hooks
// ──────────────────────────────────────────────────

// OnFeeChanged implements plugin.OnFeeChanged.
func (e *Extension) OnFeeChanged(ctx context.Context, previous, current *fee.Schedule) error {
	return e.record(ctx, ActionFeeChanged, SeverityWarning, OutcomeSuccess,
		ResourceFee, "", CategoryGovernance, nil,
		"tax_fee_from", uint32(previous.TaxFee),
		"tax_fee_to", uint32(current.TaxFee),
		"penalty_rate_from", uint32(previous.PenaltyRate),
		"penalty_rate_to", uint32(current.PenaltyRate),
	)
}

// ──────────────────────────────────────────────────
// Token hooks
// ──────────────────────────────────────────────────

// OnTransferFailed implements plugin.OnTransferFailed.
func (e *Extension) OnTransferFailed(ctx context.Context, to common.Address, amount types.Amount, err error) error {
	return e.record(ctx, ActionTransferFailed, SeverityError, OutcomeFailure,
		ResourceTransfer, to.Hex(), CategoryToken, err,
		"to", to.Hex(),
		"amount", amount.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
