package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"juhd/internal/domain"

	"github.com/lib/pq"
)

// DB wraps a *sql.DB and implements domain repository interfaces.
type DB struct {
	sql *sql.DB
}

var (
	_ domain.GoalRepository        = (*DB)(nil)
	_ domain.TacticRepository      = (*DB)(nil)
	_ domain.MeasurementRepository = (*DB)(nil)
	_ domain.VisionRepository      = (*DB)(nil)
	_ domain.CycleRepository       = (*DB)(nil)
	_ domain.UserRepository        = (*DB)(nil)
	_ domain.SessionRepository     = (*SessionRepo)(nil)
)

// errNoRow is returned by updates that matched nothing.
var errNoRow = errors.New("no matching row")

// Open connects to PostgreSQL, pings, and runs migrations.
func Open(connStr string) (*DB, error) {
	s, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	s.SetMaxOpenConns(10)
	s.SetMaxIdleConns(5)
	s.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.PingContext(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}

	d := &DB{sql: s}
	if err := d.migrate(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.sql.Close()
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.sql.PingContext(ctx)
}

func (d *DB) migrate(ctx context.Context) error {
	stmts := []string{
		"CREATE TABLE IF NOT EXISTS users (id TEXT PRIMARY KEY, email TEXT UNIQUE NOT NULL, name TEXT NOT NULL DEFAULT '', password_hash TEXT NOT NULL DEFAULT '', email_confirmed_at TIMESTAMPTZ, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE TABLE IF NOT EXISTS sessions (token TEXT PRIMARY KEY, user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE, expires_at TIMESTAMPTZ NOT NULL, created_at TIMESTAMPTZ NOT NULL);",
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at);",

		"CREATE TABLE IF NOT EXISTS goals (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, name TEXT NOT NULL DEFAULT '', description TEXT NOT NULL DEFAULT '', measurement_configs JSONB NOT NULL DEFAULT '[]', position INTEGER NOT NULL DEFAULT 0, created_at TIMESTAMPTZ NOT NULL DEFAULT now());",
		"CREATE INDEX IF NOT EXISTS idx_goals_user_id ON goals(user_id);",
		"CREATE TABLE IF NOT EXISTS tactics (id TEXT PRIMARY KEY, user_id TEXT NOT NULL, goal_id TEXT NOT NULL, name TEXT NOT NULL DEFAULT '', type TEXT NOT NULL CHECK(type IN ('daily','weekly')), assigned_weeks INTEGER[] NOT NULL DEFAULT '{}', completions JSONB NOT NULL DEFAULT '{}', position INTEGER NOT NULL DEFAULT 0, created_at TIMESTAMPTZ NOT NULL DEFAULT now());",
		"CREATE INDEX IF NOT EXISTS idx_tactics_user_id ON tactics(user_id);",
		"CREATE INDEX IF NOT EXISTS idx_tactics_goal_id ON tactics(goal_id);",
		"CREATE TABLE IF NOT EXISTS measurements (id BIGSERIAL PRIMARY KEY, user_id TEXT NOT NULL, goal_id TEXT NOT NULL, config_id TEXT NOT NULL, week_num INTEGER NOT NULL CHECK(week_num BETWEEN 1 AND 12), value DOUBLE PRECISION NOT NULL, updated_at TIMESTAMPTZ NOT NULL DEFAULT now(), UNIQUE(user_id, config_id, week_num));",
		"CREATE INDEX IF NOT EXISTS idx_measurements_goal_id ON measurements(goal_id);",
		"CREATE TABLE IF NOT EXISTS vision (user_id TEXT PRIMARY KEY, long_term TEXT NOT NULL DEFAULT '', short_term TEXT NOT NULL DEFAULT '', updated_at TIMESTAMPTZ NOT NULL DEFAULT now());",
		"CREATE TABLE IF NOT EXISTS cycles (id TEXT PRIMARY KEY, user_id TEXT UNIQUE NOT NULL, start_date DATE NOT NULL, current_week INTEGER NOT NULL DEFAULT 1, updated_at TIMESTAMPTZ NOT NULL DEFAULT now());",
	}

	for _, stmt := range stmts {
		if _, err := d.sql.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

// updatePositions sets position = index for every id of the user's rows in
// table, in a single statement.
func (d *DB) updatePositions(ctx context.Context, table, userID string, ids []string) error {
	q := fmt.Sprintf(
		"UPDATE %s t SET position = o.ord - 1 FROM unnest($2::text[]) WITH ORDINALITY AS o(id, ord) WHERE t.user_id = $1 AND t.id = o.id;",
		pq.QuoteIdentifier(table))
	_, err := d.sql.ExecContext(ctx, q, userID, pq.Array(ids))
	return err
}

func expectRow(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return errNoRow
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
