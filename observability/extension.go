// Package observability provides a metrics extension for the lockup engine
// that records event counts and value distributions through a MetricFactory.
package observability

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/plugin"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin               = (*MetricsExtension)(nil)
	_ plugin.OnInit               = (*MetricsExtension)(nil)
	_ plugin.OnPoolInitialized    = (*MetricsExtension)(nil)
	_ plugin.OnBeneficiariesAdded = (*MetricsExtension)(nil)
	_ plugin.OnBeneficiaryRemoved = (*MetricsExtension)(nil)
	_ plugin.OnVestingReleased    = (*MetricsExtension)(nil)
	_ plugin.OnStaked             = (*MetricsExtension)(nil)
	_ plugin.OnStakeWithdrawn     = (*MetricsExtension)(nil)
	_ plugin.OnAirdropStarted     = (*MetricsExtension)(nil)
	_ plugin.OnAirdropClaimed     = (*MetricsExtension)(nil)
	_ plugin.OnFeeChanged         = (*MetricsExtension)(nil)
	_ plugin.OnTransferFailed     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records engine-wide metrics.
// Register it as a lockup plugin to track vesting and staking activity.
type MetricsExtension struct {
	factory MetricFactory

	// Vesting metrics
	PoolsInitialized     Counter
	BeneficiariesAdded   Counter
	BeneficiariesRemoved Counter
	VestingReleases      Counter
	VestingReleased      Histogram
	VestingForfeited     Histogram

	// Staking metrics
	StakesOpened     Counter
	StakeWithdrawals Counter
	EarlyWithdrawals Counter
	StakedAmount     Histogram
	RewardPaid       Histogram
	PenaltyCharged   Histogram

	// Airdrop metrics
	AirdropStarted Counter
	AirdropClaims  Counter
	AirdropPaid    Histogram

	// Fee metrics
	FeeChanges Counter

	// Error metrics
	TransferFailures Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions, or NewPrometheusFactory standalone.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		PoolsInitialized:     factory.Counter("lockup.pool.initialized"),
		BeneficiariesAdded:   factory.Counter("lockup.beneficiary.added"),
		BeneficiariesRemoved: factory.Counter("lockup.beneficiary.removed"),
		VestingReleases:      factory.Counter("lockup.vesting.releases"),
		VestingReleased:      factory.Histogram("lockup.vesting.released_amount"),
		VestingForfeited:     factory.Histogram("lockup.vesting.forfeited_amount"),

		StakesOpened:     factory.Counter("lockup.stake.opened"),
		StakeWithdrawals: factory.Counter("lockup.stake.withdrawals"),
		EarlyWithdrawals: factory.Counter("lockup.stake.early_withdrawals"),
		StakedAmount:     factory.Histogram("lockup.stake.principal_amount"),
		RewardPaid:       factory.Histogram("lockup.stake.reward_amount"),
		PenaltyCharged:   factory.Histogram("lockup.stake.penalty_amount"),

		AirdropStarted: factory.Counter("lockup.airdrop.started"),
		AirdropClaims:  factory.Counter("lockup.airdrop.claims"),
		AirdropPaid:    factory.Histogram("lockup.airdrop.paid_amount"),

		FeeChanges: factory.Counter("lockup.fee.changes"),

		TransferFailures: factory.Counter("lockup.transfer.failures"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// ──────────────────────────────────────────────────
// Vesting hooks
// ──────────────────────────────────────────────────

// OnPoolInitialized implements plugin.OnPoolInitialized.
func (m *MetricsExtension) OnPoolInitialized(_ context.Context, _ *vesting.Pool) error {
	m.PoolsInitialized.Inc()
	return nil
}

// OnBeneficiariesAdded implements plugin.OnBeneficiariesAdded.
func (m *MetricsExtension) OnBeneficiariesAdded(_ context.Context, _ *vesting.Pool, schedules []*vesting.Schedule) error {
	m.BeneficiariesAdded.Add(float64(len(schedules)))
	return nil
}

// OnBeneficiaryRemoved implements plugin.OnBeneficiaryRemoved.
func (m *MetricsExtension) OnBeneficiaryRemoved(_ context.Context, _ *vesting.Pool, s *vesting.Schedule) error {
	m.BeneficiariesRemoved.Inc()
	m.VestingForfeited.Observe(amountFloat(s.Forfeited))
	return nil
}

// OnVestingReleased implements plugin.OnVestingReleased.
func (m *MetricsExtension) OnVestingReleased(_ context.Context, _ *vesting.Schedule, r *receipt.Receipt) error {
	m.VestingReleases.Inc()
	m.VestingReleased.Observe(amountFloat(r.Gross))
	return nil
}

// ──────────────────────────────────────────────────
// Staking hooks
// ──────────────────────────────────────────────────

// OnStaked implements plugin.OnStaked.
func (m *MetricsExtension) OnStaked(_ context.Context, pos *staking.Position, _ *receipt.Receipt) error {
	m.StakesOpened.Inc()
	m.StakedAmount.Observe(amountFloat(pos.Principal))
	return nil
}

// OnStakeWithdrawn implements plugin.OnStakeWithdrawn.
func (m *MetricsExtension) OnStakeWithdrawn(_ context.Context, _ *staking.Position, r *receipt.Receipt) error {
	m.StakeWithdrawals.Inc()
	m.RewardPaid.Observe(amountFloat(r.Reward))
	if !r.Penalty.IsZero() {
		m.EarlyWithdrawals.Inc()
		m.PenaltyCharged.Observe(amountFloat(r.Penalty))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Airdrop hooks
// ──────────────────────────────────────────────────

// OnAirdropStarted implements plugin.OnAirdropStarted.
func (m *MetricsExtension) OnAirdropStarted(_ context.Context, _ *airdrop.State) error {
	m.AirdropStarted.Inc()
	return nil
}

// OnAirdropClaimed implements plugin.OnAirdropClaimed.
func (m *MetricsExtension) OnAirdropClaimed(_ context.Context, r *receipt.Receipt) error {
	m.AirdropClaims.Inc()
	m.AirdropPaid.Observe(amountFloat(r.Net))
	return nil
}

// ──────────────────────────────────────────────────
// Fee and token hooks
// ──────────────────────────────────────────────────

// OnFeeChanged implements plugin.OnFeeChanged.
func (m *MetricsExtension) OnFeeChanged(_ context.Context, _, _ *fee.Schedule) error {
	m.FeeChanges.Inc()
	return nil
}

// OnTransferFailed implements plugin.OnTransferFailed.
func (m *MetricsExtension) OnTransferFailed(_ context.Context, _ common.Address, _ types.Amount, _ error) error {
	m.TransferFailures.Inc()
	return nil
}

// amountFloat converts base units to the nearest float64.
func amountFloat(a types.Amount) float64 {
	f, _ := new(big.Float).SetInt(a.Big()).Float64()
	return f
}
