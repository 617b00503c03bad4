// Package postgres implements the PostgreSQL persistence layer of the
// achievement progress engine.
package postgres

import (
	"context"
	"fmt"
	"log/slog"
)

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: ACHIEVEMENT CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
-- Migration: Create achievements catalog
-- Version: 001

CREATE TABLE IF NOT EXISTS achievements (
    id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    title VARCHAR(100) NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    required_points INTEGER NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    CONSTRAINT positive_required_points CHECK (required_points > 0)
);

CREATE INDEX IF NOT EXISTS idx_achievements_title ON achievements(title);
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: USER ACHIEVEMENT PROGRESS
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
-- Migration: Create per-user achievement progress
-- Version: 002

CREATE TABLE IF NOT EXISTS user_achievement_progress (
    user_id VARCHAR(64) NOT NULL,
    achievement_id UUID NOT NULL REFERENCES achievements(id) ON DELETE CASCADE,
    progress INTEGER NOT NULL DEFAULT 0,
    achieved BOOLEAN NOT NULL DEFAULT FALSE,
    date_achieved TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW(),

    -- Exactly one row per (user, achievement) pair.
    PRIMARY KEY (user_id, achievement_id),

    CONSTRAINT non_negative_progress CHECK (progress >= 0),
    CONSTRAINT achieved_has_date CHECK (NOT achieved OR date_achieved IS NOT NULL)
);

CREATE INDEX IF NOT EXISTS idx_progress_user_id ON user_achievement_progress(user_id);
CREATE INDEX IF NOT EXISTS idx_progress_achieved ON user_achievement_progress(achievement_id) WHERE achieved;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: SEED CATALOG
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
-- Migration: Seed the default achievement catalog
-- Version: 003
-- The catalog is administered data; the seed only fills a fresh database.

INSERT INTO achievements (title, description, required_points) VALUES
    ('FirstRoute',        'Publish your first route',                 1),
    ('RouteRegular',      'Publish ten routes',                      10),
    ('RouteVeteran',      'Publish fifty routes',                    50),
    ('FirstJoin',         'Join your first route',                    1),
    ('FrequentPassenger', 'Join ten routes',                         10),
    ('RoadCompanion',     'Join fifty routes',                       50),
    ('RouteCompleted',    'Complete ten routes as a driver',         10),
    ('Critic',            'Submit five valuations of fellow riders',  5),
    ('Chameleon',         'Change your profile picture three times',  3)
ON CONFLICT (title) DO NOTHING;
`

// migrations lists all migrations in order.
var migrations = []struct {
	version int
	name    string
	up      string
}{
	{1, "create_achievements", migration001Up},
	{2, "create_user_achievement_progress", migration002Up},
	{3, "seed_achievement_catalog", migration003Up},
}

const migrationTable = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`

// Migrate applies all pending migrations.
func Migrate(ctx context.Context, conn *Connection, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	if _, err := conn.Exec(ctx, migrationTable); err != nil {
		return fmt.Errorf("%w: create schema_migrations: %v", ErrMigrationFailed, err)
	}

	for _, m := range migrations {
		var applied bool
		err := conn.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE version = $1)", m.version,
		).Scan(&applied)
		if err != nil {
			return fmt.Errorf("%w: check version %d: %v", ErrMigrationFailed, m.version, err)
		}
		if applied {
			continue
		}

		if _, err := conn.Exec(ctx, m.up); err != nil {
			return fmt.Errorf("%w: apply %s: %v", ErrMigrationFailed, m.name, err)
		}
		if _, err := conn.Exec(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)", m.version, m.name,
		); err != nil {
			return fmt.Errorf("%w: record %s: %v", ErrMigrationFailed, m.name, err)
		}

		logger.Info("applied migration", "version", m.version, "name", m.name)
	}

	return nil
}
