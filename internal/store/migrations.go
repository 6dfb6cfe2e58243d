/**
 * @description
 * Embedded schema migrations for the sharepod database. Statements are idempotent
 * (IF NOT EXISTS) and run in order at startup when APP_MIGRATE is enabled.
 */

package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS pods (
		id UUID PRIMARY KEY,
		business_name TEXT NOT NULL,
		total_amount DOUBLE PRECISION NOT NULL CHECK (total_amount > 0),
		participant_target INTEGER NOT NULL CHECK (participant_target >= 1),
		split_type TEXT NOT NULL CHECK (split_type IN ('equal', 'random', 'custom')),
		split_amounts DOUBLE PRECISION[] NOT NULL,
		join_code TEXT NOT NULL,
		created_by TEXT NOT NULL,
		active BOOLEAN NOT NULL DEFAULT true,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	// Join codes only need to be unique among pods still open for joining.
	`CREATE UNIQUE INDEX IF NOT EXISTS idx_pods_active_join_code
		ON pods (join_code) WHERE active = true`,

	`CREATE TABLE IF NOT EXISTS pod_items (
		id UUID PRIMARY KEY,
		pod_id UUID NOT NULL REFERENCES pods (id),
		position INTEGER NOT NULL,
		name TEXT NOT NULL,
		unit_price DOUBLE PRECISION NOT NULL CHECK (unit_price >= 0.01),
		quantity INTEGER NOT NULL CHECK (quantity >= 1),
		subtotal DOUBLE PRECISION NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS participant_joins (
		pod_id UUID NOT NULL REFERENCES pods (id),
		user_id TEXT NOT NULL,
		joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		has_paid BOOLEAN NOT NULL DEFAULT false,
		custom_amount DOUBLE PRECISION,
		PRIMARY KEY (pod_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS transactions (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		pod_id UUID NOT NULL REFERENCES pods (id),
		amount DOUBLE PRECISION NOT NULL CHECK (amount > 0),
		status TEXT NOT NULL CHECK (status IN ('pending', 'completed', 'failed', 'refunded')),
		session_id TEXT UNIQUE,
		payment_reference TEXT,
		failure_reason TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_transactions_user ON transactions (user_id, created_at DESC)`,
}

// RunMigrations applies the schema statements in order.
func RunMigrations(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i, err)
		}
	}
	return nil
}
