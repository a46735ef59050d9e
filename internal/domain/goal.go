package domain

import (
	"context"
	"strings"
)

// MeasurementConfig is a KPI tracked weekly for a goal. A zero Target means
// the measurement is trend only.
type MeasurementConfig struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Unit   string  `json:"unit"`
	Target float64 `json:"target,omitempty"`
}

// HasTarget reports whether a target bar should be drawn.
func (c MeasurementConfig) HasTarget() bool {
	return c.Target > 0
}

// Goal is a top-level outcome pursued during the cycle.
type Goal struct {
	ID                 string              `json:"id"`
	Name               string              `json:"name"`
	Description        string              `json:"description"`
	MeasurementConfigs []MeasurementConfig `json:"measurementConfigs"`
	Position           int                 `json:"position"`
}

// Clone returns a copy that shares no slices with g.
func (g Goal) Clone() Goal {
	out := g
	out.MeasurementConfigs = append([]MeasurementConfig(nil), g.MeasurementConfigs...)
	if out.MeasurementConfigs == nil {
		out.MeasurementConfigs = []MeasurementConfig{}
	}
	return out
}

// Config returns the measurement config with the given id.
func (g Goal) Config(id string) (MeasurementConfig, bool) {
	for _, c := range g.MeasurementConfigs {
		if c.ID == id {
			return c, true
		}
	}
	return MeasurementConfig{}, false
}

// GoalPatch carries a partial goal update. Nil fields are left unchanged.
type GoalPatch struct {
	Name               *string              `json:"name"`
	Description        *string              `json:"description"`
	MeasurementConfigs *[]MeasurementConfig `json:"measurementConfigs"`
}

// Apply returns g with the patch applied.
func (p GoalPatch) Apply(g Goal) Goal {
	if p.Name != nil {
		g.Name = *p.Name
	}
	if p.Description != nil {
		g.Description = *p.Description
	}
	if p.MeasurementConfigs != nil {
		g.MeasurementConfigs = append([]MeasurementConfig{}, (*p.MeasurementConfigs)...)
	}
	return g
}

// Validate checks the measurement configs carried by the patch.
func (p GoalPatch) Validate() error {
	if p.MeasurementConfigs == nil {
		return nil
	}
	seen := make(map[string]bool, len(*p.MeasurementConfigs))
	for _, c := range *p.MeasurementConfigs {
		if strings.TrimSpace(c.ID) == "" {
			return Invalid("measurementConfigs", "every measurement needs an id")
		}
		if seen[c.ID] {
			return Invalid("measurementConfigs", "duplicate measurement id "+c.ID)
		}
		if c.Target < 0 {
			return Invalid("measurementConfigs", "target must not be negative")
		}
		seen[c.ID] = true
	}
	return nil
}

// GoalRepository is the port for goal persistence.
type GoalRepository interface {
	ListGoals(ctx context.Context, userID string) ([]Goal, error)
	InsertGoal(ctx context.Context, userID string, g Goal) error
	UpdateGoal(ctx context.Context, userID string, g Goal) error
	DeleteGoal(ctx context.Context, userID, id string) error
	// UpdateGoalPositions sets position = index for every id.
	UpdateGoalPositions(ctx context.Context, userID string, ids []string) error
}
