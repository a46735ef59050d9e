package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"juhd/internal/domain"
)

// ListGoals returns the user's goals ordered by position.
func (d *DB) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, name, description, measurement_configs, position FROM goals WHERE user_id=$1 ORDER BY position, created_at;", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.Goal{}
	for rows.Next() {
		var g domain.Goal
		var configs []byte
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &configs, &g.Position); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(configs, &g.MeasurementConfigs); err != nil {
			return nil, fmt.Errorf("goal %s: decode measurement configs: %w", g.ID, err)
		}
		if g.MeasurementConfigs == nil {
			g.MeasurementConfigs = []domain.MeasurementConfig{}
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// InsertGoal stores a new goal.
func (d *DB) InsertGoal(ctx context.Context, userID string, g domain.Goal) error {
	configs, err := encodeConfigs(g.MeasurementConfigs)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx,
		"INSERT INTO goals(id, user_id, name, description, measurement_configs, position) VALUES($1, $2, $3, $4, $5, $6);",
		g.ID, userID, g.Name, g.Description, configs, g.Position)
	return err
}

// UpdateGoal replaces name, description and measurement configs. Position is
// only changed through UpdateGoalPositions.
func (d *DB) UpdateGoal(ctx context.Context, userID string, g domain.Goal) error {
	configs, err := encodeConfigs(g.MeasurementConfigs)
	if err != nil {
		return err
	}
	return expectRow(d.sql.ExecContext(ctx,
		"UPDATE goals SET name=$3, description=$4, measurement_configs=$5 WHERE user_id=$1 AND id=$2;",
		userID, g.ID, g.Name, g.Description, configs))
}

// DeleteGoal deletes a goal. Deleting a missing goal is not an error.
func (d *DB) DeleteGoal(ctx context.Context, userID, id string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM goals WHERE user_id=$1 AND id=$2;", userID, id)
	return err
}

// UpdateGoalPositions sets each goal's position to its index in ids.
func (d *DB) UpdateGoalPositions(ctx context.Context, userID string, ids []string) error {
	return d.updatePositions(ctx, "goals", userID, ids)
}

func encodeConfigs(configs []domain.MeasurementConfig) ([]byte, error) {
	if configs == nil {
		configs = []domain.MeasurementConfig{}
	}
	b, err := json.Marshal(configs)
	if err != nil {
		return nil, fmt.Errorf("encode measurement configs: %w", err)
	}
	return b, nil
}
