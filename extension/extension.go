// Package extension provides the Forge extension adapter for Lockup.
//
// It implements the forge.Extension interface to integrate the vesting and
// staking engine into a Forge application with DI registration and
// lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.lockup" or "lockup" keys.
// A dotenv file named by EnvFile overrides individual LOCKUP_* keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/lockup"
	"github.com/xraph/lockup/access"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/store"
	"github.com/xraph/lockup/store/badger"
	"github.com/xraph/lockup/store/cache"
	"github.com/xraph/lockup/store/memory"
	"github.com/xraph/lockup/store/mongo"
	"github.com/xraph/lockup/store/postgres"
	"github.com/xraph/lockup/store/sqlite"
	"github.com/xraph/lockup/token"
	tokenmem "github.com/xraph/lockup/token/memory"
	"github.com/xraph/lockup/types"
	"github.com/xraph/lockup/vesting"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "lockup"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Token vesting, staking and airdrop engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Lockup as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *lockup.Engine
	store      store.Store
	groveDB    *grove.DB
	ledger     token.Ledger
	tokens     *tokenmem.Ledger
	engineOpts []lockup.Option
}

// New creates a new Lockup Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying engine.
// This is nil until Register is called.
func (e *Extension) Engine() *lockup.Engine { return e.engine }

// Tokens returns the in-process token ledger, or nil when WithTokenLedger
// supplied an external one.
func (e *Extension) Tokens() *tokenmem.Ledger { return e.tokens }

// Register implements [forge.Extension]. It loads configuration,
// initializes the engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if err := e.build(); err != nil {
		return err
	}

	return vessel.Provide(fapp.Container(), func() (*lockup.Engine, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("lockup: extension not initialized")
	}

	if !e.config.DisableMigrate {
		if err := e.engine.Start(ctx); err != nil {
			return err
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("lockup: store not initialized")
	}
	return e.store.Ping(ctx)
}

// build resolves the store and token ledger and constructs the engine
// from the resolved config.
func (e *Extension) build() error {
	if e.store == nil {
		s, err := e.openStore()
		if err != nil {
			return err
		}
		e.store = s
	}
	if e.config.CacheSize > 0 {
		cached, err := cache.New(e.store, e.config.CacheSize)
		if err != nil {
			return err
		}
		e.store = cached
	}

	opts, err := e.buildEngineOpts()
	if err != nil {
		return err
	}

	if e.ledger == nil {
		if e.config.Account == "" {
			return errors.New("lockup: account is required when no token ledger is supplied")
		}
		acct := common.HexToAddress(e.config.Account)
		e.tokens = tokenmem.New(tokenmem.WithExempt(acct))
		e.ledger = e.tokens.Account(acct)
	}

	e.engine = lockup.New(e.store, e.ledger, opts...)

	if e.tokens != nil {
		e.tokens.SetFees(e.engine, common.HexToAddress(e.config.FeeSink))
	}
	return nil
}

// openStore constructs the store named by the configured driver.
func (e *Extension) openStore() (store.Store, error) {
	switch e.config.StoreDriver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverBadger:
		if e.config.BadgerDir == "" {
			return nil, errors.New("lockup: badger driver requires badger_dir")
		}
		return badger.Open(e.config.BadgerDir)
	case DriverPostgres, DriverSqlite, DriverMongo:
		if e.groveDB == nil {
			return nil, fmt.Errorf("lockup: %s driver requires a grove database", e.config.StoreDriver)
		}
		switch e.config.StoreDriver {
		case DriverPostgres:
			return postgres.New(e.groveDB), nil
		case DriverSqlite:
			return sqlite.New(e.groveDB), nil
		default:
			return mongo.New(e.groveDB), nil
		}
	default:
		return nil, fmt.Errorf("lockup: unknown store driver %q", e.config.StoreDriver)
	}
}

// buildEngineOpts constructs lockup.Option values from the resolved config.
func (e *Extension) buildEngineOpts() ([]lockup.Option, error) {
	cfg := e.config
	opts := make([]lockup.Option, 0, len(e.engineOpts)+10)

	opts = append(opts,
		lockup.WithTaxFee(types.BPS(cfg.TaxFeeBPS)),
		lockup.WithPenaltyRate(types.BPS(cfg.PenaltyRateBPS)),
		lockup.WithAirdropRate(types.BPS(cfg.AirdropRateBPS)),
		lockup.WithAirdropCooldown(seconds(cfg.AirdropCooldown)),
		lockup.WithMinChangeInterval(seconds(cfg.MinChangeInterval)),
		lockup.WithDeleteMode(vesting.DeleteMode(cfg.DeleteMode)),
		lockup.WithMaxPositions(cfg.MaxPositions),
	)

	if cfg.Account != "" {
		opts = append(opts, lockup.WithAccount(common.HexToAddress(cfg.Account)))
	}

	if len(cfg.RewardTiers) > 0 {
		policy, err := staking.NewRewardPolicy(cfg.RewardTiers...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lockup.WithRewardPolicy(policy))
	}

	switch len(cfg.Owners) {
	case 0:
	case 1:
		opts = append(opts, lockup.WithAccessControl(access.NewOwner(common.HexToAddress(cfg.Owners[0]))))
	default:
		owners := make([]common.Address, 0, len(cfg.Owners))
		for _, o := range cfg.Owners {
			owners = append(owners, common.HexToAddress(o))
		}
		threshold := cfg.Threshold
		if threshold == 0 {
			threshold = len(owners)
		}
		consensus, err := access.NewConsensus(threshold, owners...)
		if err != nil {
			return nil, err
		}
		opts = append(opts, lockup.WithAccessControl(consensus))
	}

	// Append any pass-through engine options.
	opts = append(opts, e.engineOpts...)

	return opts, nil
}

func seconds(d time.Duration) int64 { return int64(d / time.Second) }

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources,
// then applies the env file overrides.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("lockup: configuration is required but not found in config files; " +
				"ensure 'extensions.lockup' or 'lockup' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	if e.config.EnvFile != "" {
		cfg, err := loadEnvFile(e.config, e.config.EnvFile)
		if err != nil {
			return err
		}
		e.config = mergeWithDefaults(cfg)
	}

	e.Logger().Debug("lockup: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("store_driver", e.config.StoreDriver),
		forge.F("cache_size", e.config.CacheSize),
		forge.F("account", e.config.Account),
		forge.F("owners", len(e.config.Owners)),
		forge.F("tax_fee_bps", e.config.TaxFeeBPS),
		forge.F("penalty_rate_bps", e.config.PenaltyRateBPS),
		forge.F("airdrop_cooldown", e.config.AirdropCooldown),
		forge.F("max_positions", e.config.MaxPositions),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	// Try "extensions.lockup" first (namespaced pattern).
	if cm.IsSet("extensions.lockup") {
		if err := cm.Bind("extensions.lockup", &cfg); err == nil {
			e.Logger().Debug("lockup: loaded config from file",
				forge.F("key", "extensions.lockup"),
			)
			return cfg, true
		}
		e.Logger().Warn("lockup: failed to bind extensions.lockup config",
			forge.F("error", "bind failed"),
		)
	}

	// Try legacy "lockup" key.
	if cm.IsSet("lockup") {
		if err := cm.Bind("lockup", &cfg); err == nil {
			e.Logger().Debug("lockup: loaded config from file",
				forge.F("key", "lockup"),
			)
			return cfg, true
		}
		e.Logger().Warn("lockup: failed to bind lockup config",
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}
