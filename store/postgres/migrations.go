package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the lockup store.
var Migrations = migrate.NewGroup("lockup")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_lockup_pools",
			Version: "20240601000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lockup_pools (
    id           TEXT PRIMARY KEY,
    name         TEXT NOT NULL DEFAULT '',
    allocation   TEXT NOT NULL DEFAULT '',
    whitelist    BOOLEAN NOT NULL DEFAULT FALSE,
    cap          TEXT NOT NULL DEFAULT '0',
    allocated    TEXT NOT NULL DEFAULT '0',
    released     TEXT NOT NULL DEFAULT '0',
    forfeited    TEXT NOT NULL DEFAULT '0',
    start_at     BIGINT NOT NULL DEFAULT 0,
    cliff        BIGINT NOT NULL DEFAULT 0,
    duration     BIGINT NOT NULL DEFAULT 0,
    curve_kind   TEXT NOT NULL DEFAULT 'linear',
    rate_table   JSONB,
    month_length BIGINT NOT NULL DEFAULT 0,
    delete_mode  TEXT NOT NULL DEFAULT 'forfeit_unvested',
    metadata     JSONB,
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_lockup_pools_allocation ON lockup_pools (allocation);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS lockup_pools`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_lockup_schedules",
			Version: "20240601000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lockup_schedules (
    id             TEXT PRIMARY KEY,
    pool_id        TEXT NOT NULL REFERENCES lockup_pools(id),
    beneficiary    TEXT NOT NULL,
    total_amount   TEXT NOT NULL DEFAULT '0',
    initial_unlock TEXT NOT NULL DEFAULT '0',
    released       TEXT NOT NULL DEFAULT '0',
    removed        BOOLEAN NOT NULL DEFAULT FALSE,
    forfeited      TEXT NOT NULL DEFAULT '0',
    created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_lockup_schedules_pool_beneficiary ON lockup_schedules (pool_id, beneficiary);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS lockup_schedules`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_lockup_positions",
			Version: "20240601000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lockup_positions (
    id          TEXT PRIMARY KEY,
    account     TEXT NOT NULL,
    owner       TEXT NOT NULL,
    idx         BIGINT NOT NULL,
    principal   TEXT NOT NULL DEFAULT '0',
    tier        BIGINT NOT NULL DEFAULT 0,
    start_at    BIGINT NOT NULL DEFAULT 0,
    withdrawn   TEXT NOT NULL DEFAULT '0',
    reward_paid TEXT NOT NULL DEFAULT '0',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_lockup_positions_account_idx ON lockup_positions (account, idx);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS lockup_positions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_lockup_airdrop",
			Version: "20240601000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lockup_airdrop_state (
    id         TEXT PRIMARY KEY,
    enabled    BOOLEAN NOT NULL DEFAULT FALSE,
    rate       INT NOT NULL DEFAULT 0,
    cooldown   BIGINT NOT NULL DEFAULT 0,
    started_at BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS lockup_airdrop_claims (
    owner       TEXT PRIMARY KEY,
    last_claim  BIGINT NOT NULL DEFAULT 0,
    claimed     TEXT NOT NULL DEFAULT '0',
    claim_count BIGINT NOT NULL DEFAULT 0,
    created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP TABLE IF EXISTS lockup_airdrop_claims;
DROP TABLE IF EXISTS lockup_airdrop_state;
`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_lockup_fee_schedule",
			Version: "20240601000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lockup_fee_schedule (
    id                  TEXT PRIMARY KEY,
    tax_fee             INT NOT NULL DEFAULT 0,
    penalty_rate        INT NOT NULL DEFAULT 0,
    last_change         BIGINT NOT NULL DEFAULT 0,
    min_change_interval BIGINT NOT NULL DEFAULT 0,
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS lockup_fee_schedule`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_lockup_receipts",
			Version: "20240601000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS lockup_receipts (
    id         TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    account    TEXT NOT NULL,
    pool_id    TEXT NOT NULL DEFAULT '',
    idx        BIGINT NOT NULL DEFAULT 0,
    gross      TEXT NOT NULL DEFAULT '0',
    reward     TEXT NOT NULL DEFAULT '0',
    penalty    TEXT NOT NULL DEFAULT '0',
    net        TEXT NOT NULL DEFAULT '0',
    ts         BIGINT NOT NULL DEFAULT 0,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_lockup_receipts_account ON lockup_receipts (account, ts DESC);
CREATE INDEX IF NOT EXISTS idx_lockup_receipts_kind ON lockup_receipts (account, kind);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS lockup_receipts`)
				return err
			},
		},
	)
}
