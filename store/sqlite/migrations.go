package sqlite

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the lockup store (SQLite).
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
    whitelist    INTEGER NOT NULL DEFAULT 0,
    cap          TEXT NOT NULL DEFAULT '0',
    allocated    TEXT NOT NULL DEFAULT '0',
    released     TEXT NOT NULL DEFAULT '0',
    forfeited    TEXT NOT NULL DEFAULT '0',
    start_at     INTEGER NOT NULL DEFAULT 0,
    cliff        INTEGER NOT NULL DEFAULT 0,
    duration     INTEGER NOT NULL DEFAULT 0,
    curve_kind   TEXT NOT NULL DEFAULT 'linear',
    rate_table   TEXT,
    month_length INTEGER NOT NULL DEFAULT 0,
    delete_mode  TEXT NOT NULL DEFAULT 'forfeit_unvested',
    metadata     TEXT,
    created_at   TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at   TEXT NOT NULL DEFAULT (datetime('now'))
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
    pool_id        TEXT NOT NULL,
    beneficiary    TEXT NOT NULL,
    total_amount   TEXT NOT NULL DEFAULT '0',
    initial_unlock TEXT NOT NULL DEFAULT '0',
    released       TEXT NOT NULL DEFAULT '0',
    removed        INTEGER NOT NULL DEFAULT 0,
    forfeited      TEXT NOT NULL DEFAULT '0',
    created_at     TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at     TEXT NOT NULL DEFAULT (datetime('now'))
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
    idx         INTEGER NOT NULL,
    principal   TEXT NOT NULL DEFAULT '0',
    tier        INTEGER NOT NULL DEFAULT 0,
    start_at    INTEGER NOT NULL DEFAULT 0,
    withdrawn   TEXT NOT NULL DEFAULT '0',
    reward_paid TEXT NOT NULL DEFAULT '0',
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
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
    enabled    INTEGER NOT NULL DEFAULT 0,
    rate       INTEGER NOT NULL DEFAULT 0,
    cooldown   INTEGER NOT NULL DEFAULT 0,
    started_at INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS lockup_airdrop_claims (
    owner       TEXT PRIMARY KEY,
    last_claim  INTEGER NOT NULL DEFAULT 0,
    claimed     TEXT NOT NULL DEFAULT '0',
    claim_count INTEGER NOT NULL DEFAULT 0,
    created_at  TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at  TEXT NOT NULL DEFAULT (datetime('now'))
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
    tax_fee             INTEGER NOT NULL DEFAULT 0,
    penalty_rate        INTEGER NOT NULL DEFAULT 0,
    last_change         INTEGER NOT NULL DEFAULT 0,
    min_change_interval INTEGER NOT NULL DEFAULT 0,
    created_at          TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at          TEXT NOT NULL DEFAULT (datetime('now'))
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
    idx        INTEGER NOT NULL DEFAULT 0,
    gross      TEXT NOT NULL DEFAULT '0',
    reward     TEXT NOT NULL DEFAULT '0',
    penalty    TEXT NOT NULL DEFAULT '0',
    net        TEXT NOT NULL DEFAULT '0',
    ts         INTEGER NOT NULL DEFAULT 0,
    created_at TEXT NOT NULL DEFAULT (datetime('now')),
    updated_at TEXT NOT NULL DEFAULT (datetime('now'))
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
