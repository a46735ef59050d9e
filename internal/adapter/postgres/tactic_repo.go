package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"juhd/internal/domain"

	"github.com/lib/pq"
)

// ListTactics returns the user's tactics ordered by position. Stored
// completions whose shape does not match the tactic type are dropped.
func (d *DB) ListTactics(ctx context.Context, userID string) ([]domain.Tactic, error) {
	rows, err := d.sql.QueryContext(ctx,
		"SELECT id, goal_id, name, type, assigned_weeks, completions, position FROM tactics WHERE user_id=$1 ORDER BY position, created_at;", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck

	out := []domain.Tactic{}
	for rows.Next() {
		var (
			t           domain.Tactic
			weeks       pq.Int64Array
			completions []byte
		)
		if err := rows.Scan(&t.ID, &t.GoalID, &t.Name, &t.Type, &weeks, &completions, &t.Position); err != nil {
			return nil, err
		}
		t.AssignedWeeks = make([]int, 0, len(weeks))
		for _, w := range weeks {
			t.AssignedWeeks = append(t.AssignedWeeks, int(w))
		}
		if t.Completions, err = domain.DecodeCompletions(t.Type, completions); err != nil {
			return nil, fmt.Errorf("tactic %s: %w", t.ID, err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// InsertTactic stores a new tactic.
func (d *DB) InsertTactic(ctx context.Context, userID string, t domain.Tactic) error {
	completions, err := json.Marshal(t.Completions)
	if err != nil {
		return err
	}
	_, err = d.sql.ExecContext(ctx,
		"INSERT INTO tactics(id, user_id, goal_id, name, type, assigned_weeks, completions, position) VALUES($1, $2, $3, $4, $5, $6, $7, $8);",
		t.ID, userID, t.GoalID, t.Name, string(t.Type), pq.Array(t.AssignedWeeks), completions, t.Position)
	return err
}

// UpdateTactic replaces name, type, assigned weeks and completions.
func (d *DB) UpdateTactic(ctx context.Context, userID string, t domain.Tactic) error {
	completions, err := json.Marshal(t.Completions)
	if err != nil {
		return err
	}
	return expectRow(d.sql.ExecContext(ctx,
		"UPDATE tactics SET name=$3, type=$4, assigned_weeks=$5, completions=$6 WHERE user_id=$1 AND id=$2;",
		userID, t.ID, t.Name, string(t.Type), pq.Array(t.AssignedWeeks), completions))
}

// DeleteTactic deletes one tactic.
func (d *DB) DeleteTactic(ctx context.Context, userID, id string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM tactics WHERE user_id=$1 AND id=$2;", userID, id)
	return err
}

// DeleteTacticsByGoal deletes every tactic of a goal.
func (d *DB) DeleteTacticsByGoal(ctx context.Context, userID, goalID string) error {
	_, err := d.sql.ExecContext(ctx, "DELETE FROM tactics WHERE user_id=$1 AND goal_id=$2;", userID, goalID)
	return err
}

// UpdateTacticPositions sets each tactic's position to its index in ids.
func (d *DB) UpdateTacticPositions(ctx context.Context, userID string, ids []string) error {
	return d.updatePositions(ctx, "tactics", userID, ids)
}
