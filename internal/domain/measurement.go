package domain

import (
	"context"
	"math"
)

// MeasurementValue is one weekly sample of a measurement config. There is at
// most one per (user, config, week).
type MeasurementValue struct {
	GoalID   string  `json:"goalId"`
	ConfigID string  `json:"configId"`
	WeekNum  int     `json:"weekNum"`
	Value    float64 `json:"value"`
}

// Validate checks week bounds and rejects non-finite values.
func (m MeasurementValue) Validate() error {
	if m.GoalID == "" {
		return Invalid("goalId", "goal is required")
	}
	if m.ConfigID == "" {
		return Invalid("configId", "measurement is required")
	}
	if !ValidWeek(m.WeekNum) {
		return Invalid("weekNum", "week must be between 1 and 12")
	}
	if math.IsNaN(m.Value) || math.IsInf(m.Value, 0) {
		return Invalid("value", "value must be a number")
	}
	return nil
}

// MeasurementRepository is the port for measurement persistence.
type MeasurementRepository interface {
	ListMeasurements(ctx context.Context, userID string) ([]MeasurementValue, error)
	// UpsertMeasurement inserts or replaces the value for (user, config, week).
	UpsertMeasurement(ctx context.Context, userID string, m MeasurementValue) error
	DeleteMeasurementsByGoal(ctx context.Context, userID, goalID string) error
}
