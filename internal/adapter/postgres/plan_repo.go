package postgres

import (
	"context"
	"database/sql"

	"juhd/internal/domain"

	"github.com/google/uuid"
)

// ListMeasurements returns every measurement value of the user.
func (d *DB) ListMeasurements(ctx context.Context, userID string) ([]domain.MeasurementValue, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT goal_id, config_id, week_num, value FROM measurements WHERE user_id=$1 ORDER BY config_id, week_num;", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.MeasurementValue{}
	for rows.Next() {
		var m domain.MeasurementValue
		if err := rows.Scan(&m.GoalID, &m.ConfigID, &m.WeekNum, &m.Value); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// UpsertMeasurement inserts or replaces the value for (user, config, week).
func (d *DB) UpsertMeasurement(ctx context.Context, userID string, m domain.MeasurementValue) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO measurements(user_id, goal_id, config_id, week_num, value, updated_at) VALUES($1, $2, $3, $4, $5, now())
		ON CONFLICT (user_id, config_id, week_num) DO UPDATE SET value = EXCLUDED.value, goal_id = EXCLUDED.goal_id, updated_at = now();`,
		userID, m.GoalID, m.ConfigID, m.WeekNum, m.Value)
	return err
}

// DeleteMeasurementsByGoal deletes every measurement value of a goal.
func (d *DB) DeleteMeasurementsByGoal(ctx context.Context, userID, goalID string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM measurements WHERE user_id=$1 AND goal_id=$2;", userID, goalID)
	return err
}

// GetVision returns the user's vision, or nil when none was saved.
func (d *DB) GetVision(ctx context.Context, userID string) (*domain.Vision, error) {
	var v domain.Vision
	err := d.sql.QueryRowContext(ctx,
		"SELECT long_term, short_term FROM vision WHERE user_id=$1;", userID,
	).Scan(&v.LongTerm, &v.ShortTerm)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// UpsertVision stores the user's vision.
func (d *DB) UpsertVision(ctx context.Context, userID string, v domain.Vision) error {
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO vision(user_id, long_term, short_term, updated_at) VALUES($1, $2, $3, now())
		ON CONFLICT (user_id) DO UPDATE SET long_term = EXCLUDED.long_term, short_term = EXCLUDED.short_term, updated_at = now();`,
		userID, v.LongTerm, v.ShortTerm)
	return err
}

// GetCycle returns the user's cycle, or nil when none exists. StartDate comes
// back as midnight UTC of the stored calendar date.
func (d *DB) GetCycle(ctx context.Context, userID string) (*domain.Cycle, error) {
	var c domain.Cycle
	err := d.sql.QueryRowContext(ctx,
		"SELECT id, start_date, current_week FROM cycles WHERE user_id=$1;", userID,
	).Scan(&c.ID, &c.StartDate, &c.CurrentWeek)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// InsertCycle creates the user's cycle.
func (d *DB) InsertCycle(ctx context.Context, userID string, c domain.Cycle) error {
	_, err := d.sql.ExecContext(ctx,
		"INSERT INTO cycles(id, user_id, start_date, current_week) VALUES($1, $2, $3, $4);",
		c.ID, userID, c.StartDate.Format(dateLayout), c.CurrentWeek)
	return err
}

// UpdateCycle replaces the start date and current week of the user's cycle,
// creating the row when an earlier insert never landed.
func (d *DB) UpdateCycle(ctx context.Context, userID string, c domain.Cycle) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := d.sql.ExecContext(ctx, `
		INSERT INTO cycles(id, user_id, start_date, current_week) VALUES($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET start_date=EXCLUDED.start_date, current_week=EXCLUDED.current_week, updated_at=now();`,
		c.ID, userID, c.StartDate.Format(dateLayout), c.CurrentWeek)
	return err
}

const dateLayout = "2006-01-02"
