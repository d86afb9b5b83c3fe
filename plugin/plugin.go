// Package plugin lets extensions observe the lockup engine. A plugin
// implements Plugin plus any of the hook interfaces below; the registry
// discovers the hooks at registration time.
//
// Hooks run after the operation has committed and its transfer has
// succeeded. A failing or slow hook is logged and never affects the
// operation.
package plugin

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *lockup.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Vesting hooks
// ──────────────────────────────────────────────────

// OnPoolInitialized is called after a vesting pool is created.
type OnPoolInitialized interface {
	Plugin
	OnPoolInitialized(ctx context.Context, pool *vesting.Pool) error
}

// OnBeneficiariesAdded is called after schedules are added to a pool.
type OnBeneficiariesAdded interface {
	Plugin
	OnBeneficiariesAdded(ctx context.Context, pool *vesting.Pool, schedules []*vesting.Schedule) error
}

// OnBeneficiaryRemoved is called once per removed schedule.
type OnBeneficiaryRemoved interface {
	Plugin
	OnBeneficiaryRemoved(ctx context.Context, pool *vesting.Pool, schedule *vesting.Schedule) error
}

// OnVestingReleased is called after vested tokens reach a beneficiary.
type OnVestingReleased interface {
	Plugin
	OnVestingReleased(ctx context.Context, schedule *vesting.Schedule, r *receipt.Receipt) error
}

// ──────────────────────────────────────────────────
// Staking hooks
// ──────────────────────────────────────────────────

// OnStaked is called after a position is opened.
type OnStaked interface {
	Plugin
	OnStaked(ctx context.Context, pos *staking.Position, r *receipt.Receipt) error
}

// OnStakeWithdrawn is called after a (partial) withdrawal is paid.
type OnStakeWithdrawn interface {
	Plugin
	OnStakeWithdrawn(ctx context.Context, pos *staking.Position, r *receipt.Receipt) error
}

// ──────────────────────────────────────────────────
// Airdrop hooks
// ──────────────────────────────────────────────────

// OnAirdropStarted is called when the airdrop is enabled.
type OnAirdropStarted interface {
	Plugin
	OnAirdropStarted(ctx context.Context, state *airdrop.State) error
}

// OnAirdropClaimed is called after an airdrop payout.
type OnAirdropClaimed interface {
	Plugin
	OnAirdropClaimed(ctx context.Context, r *receipt.Receipt) error
}

// ──────────────────────────────────────────────────
// Fee hooks
// ──────────────────────────────────────────────────

// OnFeeChanged is called after the tax fee or penalty rate changes.
type OnFeeChanged interface {
	Plugin
	OnFeeChanged(ctx context.Context, previous, current *fee.Schedule) error
}

// ──────────────────────────────────────────────────
// Ledger hooks
// ──────────────────────────────────────────────────

// OnTransferFailed is called when the token ledger rejects a payout and
// the engine has rolled its state back.
type OnTransferFailed interface {
	Plugin
	OnTransferFailed(ctx context.Context, to common.Address, amount types.Amount, err error) error
}
