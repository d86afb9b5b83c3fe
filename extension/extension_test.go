package extension

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/lockup/staking"
	"github.com/xraph/lockup/store/cache"
	"github.com/xraph/lockup/types"
)

const (
	treasury = "0x00000000000000000000000000000000000000aa"
	owner    = "0x00000000000000000000000000000000000000bb"
	sink     = "0x00000000000000000000000000000000000000cc"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{Account: treasury, TaxFeeBPS: 250})

	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, uint32(250), cfg.TaxFeeBPS)
	assert.Equal(t, DefaultConfig().PenaltyRateBPS, cfg.PenaltyRateBPS)
	assert.Equal(t, 30*24*time.Hour, cfg.AirdropCooldown)
	assert.Equal(t, "forfeit_unvested", cfg.DeleteMode)
	assert.Equal(t, treasury, cfg.FeeSink, "fee sink defaults to the account")
}

func TestMergeConfigurationsPrefersFile(t *testing.T) {
	file := Config{StoreDriver: DriverBadger, TaxFeeBPS: 300}
	programmatic := Config{
		StoreDriver:    DriverMemory,
		BadgerDir:      "/var/lib/lockup",
		TaxFeeBPS:      100,
		PenaltyRateBPS: 500,
		DisableMigrate: true,
		Owners:         []string{owner},
	}

	cfg := mergeConfigurations(file, programmatic)
	assert.Equal(t, DriverBadger, cfg.StoreDriver)
	assert.Equal(t, "/var/lib/lockup", cfg.BadgerDir)
	assert.Equal(t, uint32(300), cfg.TaxFeeBPS)
	assert.Equal(t, uint32(500), cfg.PenaltyRateBPS)
	assert.True(t, cfg.DisableMigrate)
	assert.Equal(t, []string{owner}, cfg.Owners)
}

func TestApplyEnv(t *testing.T) {
	cfg, err := applyEnv(DefaultConfig(), map[string]string{
		EnvTaxFeeBPS:       "420",
		EnvAirdropCooldown: "2h",
		EnvMaxPositions:    "1",
		EnvOwners:          owner + ", " + sink,
		EnvStoreDriver:     "",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(420), cfg.TaxFeeBPS)
	assert.Equal(t, 2*time.Hour, cfg.AirdropCooldown)
	assert.Equal(t, 1, cfg.MaxPositions)
	assert.Equal(t, []string{owner, sink}, cfg.Owners)
	assert.Equal(t, DriverMemory, cfg.StoreDriver, "empty values are ignored")

	_, err = applyEnv(DefaultConfig(), map[string]string{EnvPenaltyRateBPS: "lots"})
	assert.ErrorContains(t, err, EnvPenaltyRateBPS)
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "LOCKUP_TAX_FEE_BPS=75\nLOCKUP_DELETE_MODE=forfeit_all\nUNRELATED=1\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := loadEnvFile(DefaultConfig(), path)
	require.NoError(t, err)
	assert.Equal(t, uint32(75), cfg.TaxFeeBPS)
	assert.Equal(t, "forfeit_all", cfg.DeleteMode)

	_, err = loadEnvFile(DefaultConfig(), filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestBuildMemory(t *testing.T) {
	ctx := context.Background()
	e := New(
		WithAccount(treasury),
		WithOwners(1, owner),
		WithCacheSize(64),
		WithRewardTiers(staking.Tier{MinDuration: 86400, APY: 1000}),
	)
	e.config = mergeWithDefaults(e.config)
	require.NoError(t, e.build())

	require.NotNil(t, e.Engine())
	require.NotNil(t, e.Tokens())
	assert.IsType(t, &cache.Store{}, e.store)
	assert.Equal(t, common.HexToAddress(treasury), e.Engine().Account())

	require.NoError(t, e.Engine().Start(ctx))
	require.NoError(t, e.Health(ctx))

	// The built-in ledger charges the engine's tax fee on ordinary transfers.
	alice := common.HexToAddress("0x0000000000000000000000000000000000000a11")
	bob := common.HexToAddress("0x0000000000000000000000000000000000000b0b")
	require.NoError(t, e.Tokens().Account(common.HexToAddress(treasury)).Mint(ctx, alice, types.NewAmount(10_000)))
	net, err := e.Tokens().Account(alice).Transfer(ctx, bob, types.NewAmount(10_000))
	require.NoError(t, err)
	assert.Equal(t, types.NewAmount(9_900), net)
	assert.Equal(t, types.NewAmount(100), e.Tokens().Balance(common.HexToAddress(treasury)))

	require.NoError(t, e.Engine().Stop())
}

func TestBuildBadger(t *testing.T) {
	e := New(WithAccount(treasury), WithBadgerDir(t.TempDir()))
	e.config = mergeWithDefaults(e.config)
	require.NoError(t, e.build())
	require.NoError(t, e.Health(context.Background()))
	require.NoError(t, e.Engine().Stop())
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"no account", nil},
		{"grove driver without db", []Option{WithConfig(Config{Account: treasury, StoreDriver: DriverPostgres})}},
		{"unknown driver", []Option{WithConfig(Config{Account: treasury, StoreDriver: "etcd"})}},
		{"badger without dir", []Option{WithConfig(Config{Account: treasury, StoreDriver: DriverBadger})}},
		{"bad threshold", []Option{WithAccount(treasury), WithOwners(3, owner, sink)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.opts...)
			e.config = mergeWithDefaults(e.config)
			assert.Error(t, e.build())
		})
	}
}
