package extension

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/plugin"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/store"
	"github.com/xraph/lockup/token"
)

// Option configures the Lockup Forge extension.
type Option func(*Extension)

// WithStore sets the store for the lockup engine. It takes precedence over
// the configured driver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithGroveDB backs the postgres, sqlite and mongo drivers with db.
func WithGroveDB(driver string, db *grove.DB) Option {
	return func(e *Extension) {
		e.config.StoreDriver = driver
		e.groveDB = db
	}
}

// WithTokenLedger sets the token ledger the engine moves funds through.
// Without it the extension runs an in-process ledger.
func WithTokenLedger(l token.Ledger) Option {
	return func(e *Extension) { e.ledger = l }
}

// WithEngineOption passes a lockup.Option through to the underlying engine.
// Pass-through options apply after the config-derived ones.
func WithEngineOption(opt lockup.Option) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, opt)
	}
}

// WithPlugin registers a lockup plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.engineOpts = append(e.engineOpts, lockup.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithBadgerDir selects the badger driver rooted at dir.
func WithBadgerDir(dir string) Option {
	return func(e *Extension) {
		e.config.StoreDriver = DriverBadger
		e.config.BadgerDir = dir
	}
}

// WithCacheSize wraps the store in an LRU read cache of size entries.
func WithCacheSize(size int) Option {
	return func(e *Extension) { e.config.CacheSize = size }
}

// WithAccount sets the hex address of the engine's token account.
func WithAccount(hex string) Option {
	return func(e *Extension) { e.config.Account = hex }
}

// WithOwners sets the administrative owners and their approval threshold.
func WithOwners(threshold int, owners ...string) Option {
	return func(e *Extension) {
		e.config.Owners = owners
		e.config.Threshold = threshold
	}
}

// WithEnvFile reads LOCKUP_* overrides from a dotenv file.
func WithEnvFile(path string) Option {
	return func(e *Extension) { e.config.EnvFile = path }
}

// WithTaxFee sets the initial tax fee in basis points.
func WithTaxFee(bps uint32) Option {
	return func(e *Extension) { e.config.TaxFeeBPS = bps }
}

// WithPenaltyRate sets the early-withdrawal penalty in basis points.
func WithPenaltyRate(bps uint32) Option {
	return func(e *Extension) { e.config.PenaltyRateBPS = bps }
}

// WithAirdropCooldown sets the minimum spacing of airdrop claims.
func WithAirdropCooldown(d time.Duration) Option {
	return func(e *Extension) { e.config.AirdropCooldown = d }
}

// WithRewardTiers replaces the default staking tiers.
func WithRewardTiers(tiers ...staking.Tier) Option {
	return func(e *Extension) { e.config.RewardTiers = tiers }
}
