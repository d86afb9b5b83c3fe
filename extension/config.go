package extension

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/xraph/lockup/airdrop"
	"github.com/xraph/lockup/fee"
	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/vesting"
)

// Store drivers understood by the extension.
const (
	DriverMemory   = "memory"
	DriverBadger   = "badger"
	DriverPostgres = "postgres"
	DriverSqlite   = "sqlite"
	DriverMongo    = "mongo"
)

// Config holds the Lockup extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.lockup" or "lockup" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// StoreDriver selects the persistence backend (default: "memory").
	// The grove drivers (postgres, sqlite, mongo) need WithGroveDB.
	StoreDriver string `json:"store_driver" mapstructure:"store_driver" yaml:"store_driver"`

	// BadgerDir is the data directory of the badger driver.
	BadgerDir string `json:"badger_dir" mapstructure:"badger_dir" yaml:"badger_dir"`

	// CacheSize wraps the store in an LRU read cache when positive.
	CacheSize int `json:"cache_size" mapstructure:"cache_size" yaml:"cache_size"`

	// Account is the hex address of the engine's own token account.
	Account string `json:"account" mapstructure:"account" yaml:"account"`

	// Owners are the hex addresses allowed to run administrative operations.
	// With more than one owner, Threshold approvals are required per action.
	Owners    []string `json:"owners" mapstructure:"owners" yaml:"owners"`
	Threshold int      `json:"threshold" mapstructure:"threshold" yaml:"threshold"`

	// FeeSink receives transfer taxes collected by the built-in token
	// ledger (default: Account).
	FeeSink string `json:"fee_sink" mapstructure:"fee_sink" yaml:"fee_sink"`

	TaxFeeBPS      uint32 `json:"tax_fee_bps" mapstructure:"tax_fee_bps" yaml:"tax_fee_bps"`
	PenaltyRateBPS uint32 `json:"penalty_rate_bps" mapstructure:"penalty_rate_bps" yaml:"penalty_rate_bps"`
	AirdropRateBPS uint32 `json:"airdrop_rate_bps" mapstructure:"airdrop_rate_bps" yaml:"airdrop_rate_bps"`

	// AirdropCooldown is the minimum spacing of airdrop claims (default: 30 days).
	AirdropCooldown time.Duration `json:"airdrop_cooldown" mapstructure:"airdrop_cooldown" yaml:"airdrop_cooldown"`

	// MinChangeInterval is the minimum spacing of tax fee changes (default: 48h).
	MinChangeInterval time.Duration `json:"min_change_interval" mapstructure:"min_change_interval" yaml:"min_change_interval"`

	// DeleteMode is the default removal mode of new pools (default: "forfeit_unvested").
	DeleteMode string `json:"delete_mode" mapstructure:"delete_mode" yaml:"delete_mode"`

	// MaxPositions caps active stake positions per account; zero is unlimited.
	MaxPositions int `json:"max_positions" mapstructure:"max_positions" yaml:"max_positions"`

	// RewardTiers replaces the default staking tiers when non-empty.
	RewardTiers []staking.Tier `json:"reward_tiers" mapstructure:"reward_tiers" yaml:"reward_tiers"`

	// EnvFile is a dotenv file whose LOCKUP_* keys override the loaded values.
	EnvFile string `json:"env_file" mapstructure:"env_file" yaml:"env_file"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		StoreDriver:       DriverMemory,
		TaxFeeBPS:         uint32(fee.DefaultTaxFee),
		PenaltyRateBPS:    uint32(fee.DefaultPenaltyRate),
		AirdropCooldown:   time.Duration(airdrop.DefaultCooldown) * time.Second,
		MinChangeInterval: time.Duration(fee.DefaultMinChangeInterval) * time.Second,
		DeleteMode:        string(vesting.DeleteForfeitUnvested),
	}
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.StoreDriver == "" {
		cfg.StoreDriver = defaults.StoreDriver
	}
	if cfg.TaxFeeBPS == 0 {
		cfg.TaxFeeBPS = defaults.TaxFeeBPS
	}
	if cfg.PenaltyRateBPS == 0 {
		cfg.PenaltyRateBPS = defaults.PenaltyRateBPS
	}
	if cfg.AirdropCooldown == 0 {
		cfg.AirdropCooldown = defaults.AirdropCooldown
	}
	if cfg.MinChangeInterval == 0 {
		cfg.MinChangeInterval = defaults.MinChangeInterval
	}
	if cfg.DeleteMode == "" {
		cfg.DeleteMode = defaults.DeleteMode
	}
	if cfg.FeeSink == "" {
		cfg.FeeSink = cfg.Account
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	if yamlConfig.StoreDriver == "" {
		yamlConfig.StoreDriver = programmaticConfig.StoreDriver
	}
	if yamlConfig.BadgerDir == "" {
		yamlConfig.BadgerDir = programmaticConfig.BadgerDir
	}
	if yamlConfig.Account == "" {
		yamlConfig.Account = programmaticConfig.Account
	}
	if yamlConfig.FeeSink == "" {
		yamlConfig.FeeSink = programmaticConfig.FeeSink
	}
	if yamlConfig.DeleteMode == "" {
		yamlConfig.DeleteMode = programmaticConfig.DeleteMode
	}
	if yamlConfig.EnvFile == "" {
		yamlConfig.EnvFile = programmaticConfig.EnvFile
	}
	if len(yamlConfig.Owners) == 0 {
		yamlConfig.Owners = programmaticConfig.Owners
		if yamlConfig.Threshold == 0 {
			yamlConfig.Threshold = programmaticConfig.Threshold
		}
	}
	if len(yamlConfig.RewardTiers) == 0 {
		yamlConfig.RewardTiers = programmaticConfig.RewardTiers
	}

	// Numeric fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.CacheSize == 0 {
		yamlConfig.CacheSize = programmaticConfig.CacheSize
	}
	if yamlConfig.TaxFeeBPS == 0 {
		yamlConfig.TaxFeeBPS = programmaticConfig.TaxFeeBPS
	}
	if yamlConfig.PenaltyRateBPS == 0 {
		yamlConfig.PenaltyRateBPS = programmaticConfig.PenaltyRateBPS
	}
	if yamlConfig.AirdropRateBPS == 0 {
		yamlConfig.AirdropRateBPS = programmaticConfig.AirdropRateBPS
	}
	if yamlConfig.AirdropCooldown == 0 {
		yamlConfig.AirdropCooldown = programmaticConfig.AirdropCooldown
	}
	if yamlConfig.MinChangeInterval == 0 {
		yamlConfig.MinChangeInterval = programmaticConfig.MinChangeInterval
	}
	if yamlConfig.MaxPositions == 0 {
		yamlConfig.MaxPositions = programmaticConfig.MaxPositions
	}

	return mergeWithDefaults(yamlConfig)
}

// Environment keys read from Config.EnvFile.
const (
	EnvStoreDriver       = "LOCKUP_STORE_DRIVER"
	EnvBadgerDir         = "LOCKUP_BADGER_DIR"
	EnvAccount           = "LOCKUP_ACCOUNT"
	EnvFeeSink           = "LOCKUP_FEE_SINK"
	EnvTaxFeeBPS         = "LOCKUP_TAX_FEE_BPS"
	EnvPenaltyRateBPS    = "LOCKUP_PENALTY_RATE_BPS"
	EnvAirdropRateBPS    = "LOCKUP_AIRDROP_RATE_BPS"
	EnvAirdropCooldown   = "LOCKUP_AIRDROP_COOLDOWN"
	EnvMinChangeInterval = "LOCKUP_MIN_CHANGE_INTERVAL"
	EnvDeleteMode        = "LOCKUP_DELETE_MODE"
	EnvMaxPositions      = "LOCKUP_MAX_POSITIONS"
	EnvOwners            = "LOCKUP_OWNERS"
)

// loadEnvFile applies the LOCKUP_* keys of the dotenv file at path.
func loadEnvFile(cfg Config, path string) (Config, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return cfg, fmt.Errorf("lockup: read env file %s: %w", path, err)
	}
	return applyEnv(cfg, env)
}

// applyEnv overrides cfg with the recognized keys present in env.
func applyEnv(cfg Config, env map[string]string) (Config, error) {
	str := func(key string, dst *string) {
		if v, ok := env[key]; ok && v != "" {
			*dst = v
		}
	}
	prevAccount := cfg.Account
	str(EnvStoreDriver, &cfg.StoreDriver)
	str(EnvBadgerDir, &cfg.BadgerDir)
	str(EnvAccount, &cfg.Account)
	str(EnvFeeSink, &cfg.FeeSink)
	str(EnvDeleteMode, &cfg.DeleteMode)
	if cfg.FeeSink == prevAccount && env[EnvFeeSink] == "" {
		cfg.FeeSink = cfg.Account
	}

	if v, ok := env[EnvOwners]; ok && v != "" {
		cfg.Owners = cfg.Owners[:0:0]
		for _, owner := range strings.Split(v, ",") {
			if owner = strings.TrimSpace(owner); owner != "" {
				cfg.Owners = append(cfg.Owners, owner)
			}
		}
	}

	bps := []struct {
		key string
		dst *uint32
	}{
		{EnvTaxFeeBPS, &cfg.TaxFeeBPS},
		{EnvPenaltyRateBPS, &cfg.PenaltyRateBPS},
		{EnvAirdropRateBPS, &cfg.AirdropRateBPS},
	}
	for _, b := range bps {
		v, ok := env[b.key]
		if !ok || v == "" {
			continue
		}
		n, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return cfg, fmt.Errorf("lockup: %s: %w", b.key, err)
		}
		*b.dst = uint32(n)
	}

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{EnvAirdropCooldown, &cfg.AirdropCooldown},
		{EnvMinChangeInterval, &cfg.MinChangeInterval},
	}
	for _, d := range durations {
		v, ok := env[d.key]
		if !ok || v == "" {
			continue
		}
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("lockup: %s: %w", d.key, err)
		}
		*d.dst = parsed
	}

	if v, ok := env[EnvMaxPositions]; ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("lockup: %s: %w", EnvMaxPositions, err)
		}
		cfg.MaxPositions = n
	}
	return cfg, nil
}
