package lockup

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"

	"github.com/xraph/lockup/access"
	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/clock"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/id"
	"github.com/xraph/lockup/plugin"
	"github.com/xraph/lockup/receipt"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/store"
	"github.com/xraph/lockup/token"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

// Engine is the vesting and staking engine.
//
// Every mutating operation validates and commits its own state under mu and
// releases mu before it calls the token ledger, so a ledger that calls back
// into the engine sees the committed post-state. If the ledger then fails,
// the engine reverts its commit under mu and returns the ledger error.
type Engine struct {
	store   store.Store
	ledger  token.Ledger
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   clock.Clock
	access  access.Controller
	account common.Address

	mu   sync.Mutex
	fees atomic.Pointer[fee.Schedule]

	// Configuration
	rewards           *staking.RewardPolicy
	taxFee            types.BPS
	penaltyRate       types.BPS
	minChangeInterval int64
	airdropRate       types.BPS
	airdropCooldown   int64
	deleteMode        vesting.DeleteMode
	maxPositions      int
}

// New creates an engine that persists to s and moves tokens through l.
// l must be bound to the engine's own account; when it implements
// token.Addressed that address is used unless WithAccount overrides it.
func New(s store.Store, l token.Ledger, opts ...Option) *Engine {
	e := &Engine{
		store:             s,
		ledger:            l,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		clock:             clock.System{},
		access:            access.DenyAll,
		rewards:           staking.DefaultRewardPolicy(),
		taxFee:            fee.DefaultTaxFee,
		penaltyRate:       fee.DefaultPenaltyRate,
		minChangeInterval: fee.DefaultMinChangeInterval,
		airdropCooldown:   airdrop.DefaultCooldown,
		deleteMode:        vesting.DeleteForfeitUnvested,
	}
	if a, ok := l.(token.Addressed); ok {
		e.account = a.Address()
	}

	for _, opt := range opts {
		opt(e)
	}

	e.fees.Store(e.defaultFeeSchedule())
	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		_ = e.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the time source.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithAccessControl sets the guard for administrative operations.
// Without it every administrative call is rejected.
func WithAccessControl(c access.Controller) Option {
	return func(e *Engine) { e.access = c }
}

// WithAccount sets the engine's own token account.
func WithAccount(addr common.Address) Option {
	return func(e *Engine) { e.account = addr }
}

// WithRewardPolicy replaces the staking reward tiers.
func WithRewardPolicy(p *staking.RewardPolicy) Option {
	return func(e *Engine) { e.rewards = p }
}

// WithTaxFee sets the initial tax fee. It applies until a stored schedule exists.
func WithTaxFee(bps types.BPS) Option {
	return func(e *Engine) { e.taxFee = bps }
}

// WithPenaltyRate sets the initial early-withdrawal penalty.
func WithPenaltyRate(bps types.BPS) Option {
	return func(e *Engine) { e.penaltyRate = bps }
}

// WithMinChangeInterval sets the minimum spacing of tax fee changes in seconds.
func WithMinChangeInterval(d int64) Option {
	return func(e *Engine) { e.minChangeInterval = d }
}

// WithAirdropRate sets the initial airdrop rate.
func WithAirdropRate(bps types.BPS) Option {
	return func(e *Engine) { e.airdropRate = bps }
}

// WithAirdropCooldown sets the minimum spacing of airdrop claims in seconds.
func WithAirdropCooldown(d int64) Option {
	return func(e *Engine) { e.airdropCooldown = d }
}

// WithDeleteMode sets the default removal mode of new pools.
func WithDeleteMode(m vesting.DeleteMode) Option {
	return func(e *Engine) { e.deleteMode = m }
}

// WithMaxPositions caps the active positions per account. Zero means no
// limit; one allows a single stake per account at a time.
func WithMaxPositions(n int) Option {
	return func(e *Engine) { e.maxPositions = n }
}

// Start migrates the store and loads persisted fee and airdrop settings,
// seeding them from the configured defaults on first run.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.validateConfig(); err != nil {
		return err
	}
	if err := e.store.Migrate(ctx); err != nil {
		return err
	}

	e.mu.Lock()
	sched, err := e.loadFeeSchedule(ctx)
	if err == nil {
		_, err = e.loadAirdropState(ctx)
	}
	e.mu.Unlock()
	if err != nil {
		return err
	}
	e.fees.Store(sched)

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("lockup started",
		"account", e.account.Hex(),
		"tax_fee", sched.TaxFee,
		"penalty_rate", sched.PenaltyRate,
		"tiers", len(e.rewards.Tiers()),
		"max_positions", e.maxPositions,
	)
	return nil
}

// Stop shuts down the engine and closes the store.
func (e *Engine) Stop() error {
	ctx := context.Background()
	e.plugins.EmitShutdown(ctx)

	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Account returns the engine's token account.
func (e *Engine) Account() common.Address { return e.account }

// Now returns the engine's logical time.
func (e *Engine) Now() int64 { return e.clock.Now() }

func (e *Engine) validateConfig() error {
	var errs MultiError
	if e.account == (common.Address{}) {
		errs.Add(invalid(ErrNotInitialized, "account", "engine token account is unset"))
	}
	if e.rewards == nil {
		errs.Add(invalid(ErrInvalidScheduleConfig, "rewards", "reward policy is unset"))
	}
	if !e.taxFee.Valid() {
		errs.Add(invalid(ErrInvalidFee, "tax_fee", "%d bps exceeds %d", e.taxFee, types.MaxBPS))
	}
	if !e.penaltyRate.Valid() {
		errs.Add(invalid(ErrInvalidFee, "penalty_rate", "%d bps exceeds %d", e.penaltyRate, types.MaxBPS))
	}
	if !e.airdropRate.Valid() {
		errs.Add(invalid(ErrInvalidFee, "airdrop_rate", "%d bps exceeds %d", e.airdropRate, types.MaxBPS))
	}
	if e.minChangeInterval < 0 || e.airdropCooldown < 0 || e.maxPositions < 0 {
		errs.Add(invalid(ErrInvalidAmount, "intervals", "negative interval or limit"))
	}
	switch e.deleteMode {
	case vesting.DeleteForfeitUnvested, vesting.DeleteForfeitAll:
	default:
		errs.Add(invalid(ErrInvalidScheduleConfig, "delete_mode", "unknown mode %q", e.deleteMode))
	}
	return errs.ErrorOrNil()
}

// ──────────────────────────────────────────────────
// Shared plumbing
// ──────────────────────────────────────────────────

func (e *Engine) authorize(ctx context.Context, caller common.Address, action access.Action) error {
	if e.access.IsAuthorized(ctx, caller, action) {
		return nil
	}
	e.logger.Warn("unauthorized call rejected",
		"caller", caller.Hex(),
		"action", action,
	)
	return fmt.Errorf("%w: %s may not %s", ErrUnauthorized, caller.Hex(), action)
}

// payout sends amount from the engine account to `to`. It must be called
// without mu held, after the caller's state is committed. On failure it
// reacquires mu, runs revert and reports the ledger error.
func (e *Engine) payout(ctx context.Context, to common.Address, amount types.Amount, revert func(context.Context) error) (types.Amount, error) {
	net, err := e.ledger.Transfer(ctx, to, amount)
	if err == nil {
		return net, nil
	}

	e.mu.Lock()
	rerr := revert(ctx)
	e.mu.Unlock()

	e.plugins.EmitTransferFailed(ctx, to, amount, err)
	if rerr != nil {
		e.logger.Error("state revert after failed transfer did not complete",
			"to", to.Hex(),
			"amount", amount.String(),
			"transfer_error", err,
			"revert_error", rerr,
		)
		return types.Zero, errors.Join(fmt.Errorf("lockup: transfer to %s: %w", to.Hex(), err), rerr)
	}
	e.logger.Warn("transfer failed, state reverted",
		"to", to.Hex(),
		"amount", amount.String(),
		"error", err,
	)
	return types.Zero, fmt.Errorf("lockup: transfer to %s: %w", to.Hex(), err)
}

// record appends a receipt. The value has already moved, so a store
// failure is logged rather than returned.
func (e *Engine) record(ctx context.Context, r *receipt.Receipt) *receipt.Receipt {
	r.ID = id.NewReceiptID()
	r.Entity = types.NewEntity()
	if r.Timestamp == 0 {
		r.Timestamp = e.clock.Now()
	}
	if err := e.store.CreateReceipt(ctx, r); err != nil {
		e.logger.Error("failed to record receipt",
			"kind", r.Kind,
			"account", r.Account.Hex(),
			"net", r.Net.String(),
			"error", err,
		)
	}
	return r
}

// ListReceipts returns the receipts of an account, newest first.
func (e *Engine) ListReceipts(ctx context.Context, account common.Address, opts receipt.ListOpts) ([]*receipt.Receipt, error) {
	return e.store.ListReceipts(ctx, account, opts)
}
