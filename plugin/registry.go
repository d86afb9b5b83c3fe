package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

// DefaultHookTimeout bounds a single hook call.
const DefaultHookTimeout = 5 * time.Second

// Registry manages all registered plugins and dispatches hooks to the
// plugins that implement them.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit               []OnInit
	onShutdown           []OnShutdown
	onPoolInitialized    []OnPoolInitialized
	onBeneficiariesAdded []OnBeneficiariesAdded
	onBeneficiaryRemoved []OnBeneficiaryRemoved
	onVestingReleased    []OnVestingReleased
	onStaked             []OnStaked
	onStakeWithdrawn     []OnStakeWithdrawn
	onAirdropStarted     []OnAirdropStarted
	onAirdropClaimed     []OnAirdropClaimed
	onFeeChanged         []OnFeeChanged
	onTransferFailed     []OnTransferFailed
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultHookTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its hooks.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}
	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnPoolInitialized); ok {
		r.onPoolInitialized = append(r.onPoolInitialized, v)
		hooks = append(hooks, "OnPoolInitialized")
	}
	if v, ok := p.(OnBeneficiariesAdded); ok {
		r.onBeneficiariesAdded = append(r.onBeneficiariesAdded, v)
		hooks = append(hooks, "OnBeneficiariesAdded")
	}
	if v, ok := p.(OnBeneficiaryRemoved); ok {
		r.onBeneficiaryRemoved = append(r.onBeneficiaryRemoved, v)
		hooks = append(hooks, "OnBeneficiaryRemoved")
	}
	if v, ok := p.(OnVestingReleased); ok {
		r.onVestingReleased = append(r.onVestingReleased, v)
		hooks = append(hooks, "OnVestingReleased")
	}
	if v, ok := p.(OnStaked); ok {
		r.onStaked = append(r.onStaked, v)
		hooks = append(hooks, "OnStaked")
	}
	if v, ok := p.(OnStakeWithdrawn); ok {
		r.onStakeWithdrawn = append(r.onStakeWithdrawn, v)
		hooks = append(hooks, "OnStakeWithdrawn")
	}
	if v, ok := p.(OnAirdropStarted); ok {
		r.onAirdropStarted = append(r.onAirdropStarted, v)
		hooks = append(hooks, "OnAirdropStarted")
	}
	if v, ok := p.(OnAirdropClaimed); ok {
		r.onAirdropClaimed = append(r.onAirdropClaimed, v)
		hooks = append(hooks, "OnAirdropClaimed")
	}
	if v, ok := p.(OnFeeChanged); ok {
		r.onFeeChanged = append(r.onFeeChanged, v)
		hooks = append(hooks, "OnFeeChanged")
	}
	if v, ok := p.(OnTransferFailed); ok {
		r.onTransferFailed = append(r.onTransferFailed, v)
		hooks = append(hooks, "OnTransferFailed")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"hooks", hooks,
	)
	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// snapshot copies a hook list under the read lock.
func snapshot[T Plugin](r *Registry, list *[]T) []T {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return *list
}

func emit[T Plugin](ctx context.Context, r *Registry, hooks []T, hook string, call func(T) error) {
	for _, p := range hooks {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return call(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine any) {
	emit(ctx, r, snapshot(r, &r.onInit), "OnInit", func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, snapshot(r, &r.onShutdown), "OnShutdown", func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitPoolInitialized emits a pool initialized event.
func (r *Registry) EmitPoolInitialized(ctx context.Context, pool *vesting.Pool) {
	emit(ctx, r, snapshot(r, &r.onPoolInitialized), "OnPoolInitialized", func(p OnPoolInitialized) error {
		return p.OnPoolInitialized(ctx, pool)
	})
}

// EmitBeneficiariesAdded emits a beneficiaries added event.
func (r *Registry) EmitBeneficiariesAdded(ctx context.Context, pool *vesting.Pool, schedules []*vesting.Schedule) {
	emit(ctx, r, snapshot(r, &r.onBeneficiariesAdded), "OnBeneficiariesAdded", func(p OnBeneficiariesAdded) error {
		return p.OnBeneficiariesAdded(ctx, pool, schedules)
	})
}

// EmitBeneficiaryRemoved emits a beneficiary removed event.
func (r *Registry) EmitBeneficiaryRemoved(ctx context.Context, pool *vesting.Pool, schedule *vesting.Schedule) {
	emit(ctx, r, snapshot(r, &r.onBeneficiaryRemoved), "OnBeneficiaryRemoved", func(p OnBeneficiaryRemoved) error {
		return p.OnBeneficiaryRemoved(ctx, pool, schedule)
	})
}

// EmitVestingReleased emits a vesting released event.
func (r *Registry) EmitVestingReleased(ctx context.Context, schedule *vesting.Schedule, rc *receipt.Receipt) {
	emit(ctx, r, snapshot(r, &r.onVestingReleased), "OnVestingReleased", func(p OnVestingReleased) error {
		return p.OnVestingReleased(ctx, schedule, rc)
	})
}

// EmitStaked emits a staked event.
func (r *Registry) EmitStaked(ctx context.Context, pos *staking.Position, rc *receipt.Receipt) {
	emit(ctx, r, snapshot(r, &r.onStaked), "OnStaked", func(p OnStaked) error {
		return p.OnStaked(ctx, pos, rc)
	})
}

// EmitStakeWithdrawn emits a stake withdrawn event.
func (r *Registry) EmitStakeWithdrawn(ctx context.Context, pos *staking.Position, rc *receipt.Receipt) {
	emit(ctx, r, snapshot(r, &r.onStakeWithdrawn), "OnStakeWithdrawn", func(p OnStakeWithdrawn) error {
		return p.OnStakeWithdrawn(ctx, pos, rc)
	})
}

// EmitAirdropStarted emits an airdrop started event.
func (r *Registry) EmitAirdropStarted(ctx context.Context, state *airdrop.State) {
	emit(ctx, r, snapshot(r, &r.onAirdropStarted), "OnAirdropStarted", func(p OnAirdropStarted) error {
		return p.OnAirdropStarted(ctx, state)
	})
}

// EmitAirdropClaimed emits an airdrop claimed event.
func (r *Registry) EmitAirdropClaimed(ctx context.Context, rc *receipt.Receipt) {
	emit(ctx, r, snapshot(r, &r.onAirdropClaimed), "OnAirdropClaimed", func(p OnAirdropClaimed) error {
		return p.OnAirdropClaimed(ctx, rc)
	})
}

// EmitFeeChanged emits a fee changed event.
func (r *Registry) EmitFeeChanged(ctx context.Context, previous, current *fee.Schedule) {
	emit(ctx, r, snapshot(r, &r.onFeeChanged), "OnFeeChanged", func(p OnFeeChanged) error {
		return p.OnFeeChanged(ctx, previous, current)
	})
}

// EmitTransferFailed emits a transfer failed event.
func (r *Registry) EmitTransferFailed(ctx context.Context, to common.Address, amount types.Amount, cause error) {
	emit(ctx, r, snapshot(r, &r.onTransferFailed), "OnTransferFailed", func(p OnTransferFailed) error {
		return p.OnTransferFailed(ctx, to, amount, cause)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the engine.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
