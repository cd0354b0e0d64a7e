package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Connect opens and pings a database. driver is "postgres" or "sqlite".
func Connect(driver, connString string) (*sql.DB, error) {
	db, err := sql.Open(driverName(driver), connString)
	if err != nil {
		return nil, fmt.Errorf("db: open %s: %w", driver, err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db: ping %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// one writer; keeps the observation log append order stable
		db.SetMaxOpenConns(1)
	}

	return db, nil
}

func driverName(driver string) string {
	if driver == "sqlite" {
		return "sqlite"
	}
	return "postgres"
}

// both dialects accept this DDL; timestamps are unix millis
var schema = []string{
	`CREATE TABLE IF NOT EXISTS task_observations (
		seq               BIGINT NOT NULL,
		id                TEXT NOT NULL,
		user_id           TEXT NOT NULL,
		task_id           TEXT NOT NULL,
		goal_id           TEXT,
		observed_at       BIGINT NOT NULL,
		kind              TEXT NOT NULL,
		day_of_week       INTEGER NOT NULL,
		hour_of_day       INTEGER NOT NULL,
		time_block        TEXT,
		estimated_minutes INTEGER,
		actual_minutes    INTEGER,
		on_time           BOOLEAN,
		title_before      TEXT,
		title_after       TEXT,
		date_before       TEXT,
		date_after        TEXT,
		PRIMARY KEY (user_id, id),
		UNIQUE (user_id, seq)
	)`,
	`CREATE TABLE IF NOT EXISTS user_preferences (
		user_id    TEXT PRIMARY KEY,
		prefs_json TEXT NOT NULL,
		updated_at BIGINT NOT NULL
	)`,
}

// Migrate creates the tables used by the observation log and preferences store.
func Migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("db: migrate: %w", err)
		}
	}
	return nil
}
