package domain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// DaysPerWeek is the length of a daily completion sequence (Mon..Sun).
const DaysPerWeek = 7

// TacticType is either daily or weekly.
type TacticType string

const (
	TacticDaily  TacticType = "daily"
	TacticWeekly TacticType = "weekly"
)

// Valid reports whether t is a known tactic type.
func (t TacticType) Valid() bool {
	return t == TacticDaily || t == TacticWeekly
}

// Completion is one week's completion value. Its concrete type follows the
// owning tactic's type: DailyCompletion for daily, WeeklyCompletion for weekly.
type Completion interface {
	anyDone() bool
}

// DailyCompletion holds one flag per day, Monday first.
type DailyCompletion []bool

func (d DailyCompletion) anyDone() bool {
	for _, v := range d {
		if v {
			return true
		}
	}
	return false
}

// Done counts completed days, ignoring anything past the seventh entry.
func (d DailyCompletion) Done() int {
	n := 0
	for i := 0; i < DaysPerWeek && i < len(d); i++ {
		if d[i] {
			n++
		}
	}
	return n
}

// WeeklyCompletion is a single done flag.
type WeeklyCompletion bool

func (w WeeklyCompletion) anyDone() bool { return bool(w) }

// Completions maps a cycle week number to its completion value.
type Completions map[int]Completion

// HasProgress reports whether any week holds at least one true value.
func (c Completions) HasProgress() bool {
	for _, v := range c {
		if v != nil && v.anyDone() {
			return true
		}
	}
	return false
}

// Clone deep-copies c.
func (c Completions) Clone() Completions {
	out := make(Completions, len(c))
	for w, v := range c {
		if d, ok := v.(DailyCompletion); ok {
			v = append(DailyCompletion(nil), d...)
		}
		out[w] = v
	}
	return out
}

// MarshalJSON encodes completions as {"<week>": [bool x7] | bool}.
func (c Completions) MarshalJSON() ([]byte, error) {
	m := make(map[string]any, len(c))
	for w, v := range c {
		switch cv := v.(type) {
		case DailyCompletion:
			m[strconv.Itoa(w)] = []bool(cv)
		case WeeklyCompletion:
			m[strconv.Itoa(w)] = bool(cv)
		}
	}
	return json.Marshal(m)
}

// DecodeCompletions parses a stored completions object for a tactic of the
// given type. Values whose shape does not match the type are dropped, daily
// sequences are padded or truncated to seven days, and weeks outside the
// cycle are ignored. Only a payload that is not a JSON object is an error.
func DecodeCompletions(kind TacticType, raw []byte) (Completions, error) {
	out := Completions{}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return out, nil
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode completions: %w", err)
	}
	for k, v := range m {
		week, err := strconv.Atoi(k)
		if err != nil || !ValidWeek(week) {
			continue
		}
		c, err := ParseCompletion(kind, v)
		if err != nil {
			continue
		}
		out[week] = c
	}
	return out, nil
}

// ParseCompletion parses one week's value for a tactic of the given type and
// rejects the wrong shape.
func ParseCompletion(kind TacticType, raw json.RawMessage) (Completion, error) {
	switch kind {
	case TacticDaily:
		var days []bool
		if err := json.Unmarshal(raw, &days); err != nil || days == nil {
			return nil, Invalid("completion", "daily tactics take a list of seven booleans")
		}
		return NormalizeDaily(days), nil
	case TacticWeekly:
		var done bool
		if err := json.Unmarshal(raw, &done); err != nil {
			return nil, Invalid("completion", "weekly tactics take a single boolean")
		}
		return WeeklyCompletion(done), nil
	}
	return nil, Invalid("type", fmt.Sprintf("unknown tactic type %q", kind))
}

// NormalizeDaily pads or truncates days to exactly seven entries.
func NormalizeDaily(days []bool) DailyCompletion {
	out := make(DailyCompletion, DaysPerWeek)
	copy(out, days)
	return out
}

// Tactic is a recurring action serving a goal.
type Tactic struct {
	ID            string      `json:"id"`
	GoalID        string      `json:"goalId"`
	Name          string      `json:"name"`
	Type          TacticType  `json:"type"`
	AssignedWeeks []int       `json:"assignedWeeks"`
	Completions   Completions `json:"completions"`
	Position      int         `json:"position"`
}

// UnmarshalJSON validates completions against the tactic type.
func (t *Tactic) UnmarshalJSON(b []byte) error {
	type alias Tactic
	var raw struct {
		alias
		Completions json.RawMessage `json:"completions"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	c, err := DecodeCompletions(raw.Type, raw.Completions)
	if err != nil {
		return err
	}
	*t = Tactic(raw.alias)
	t.Completions = c
	return nil
}

// AssignedTo reports whether the tactic is scheduled for week.
func (t Tactic) AssignedTo(week int) bool {
	for _, w := range t.AssignedWeeks {
		if w == week {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of t.
func (t Tactic) Clone() Tactic {
	out := t
	out.AssignedWeeks = append([]int{}, t.AssignedWeeks...)
	out.Completions = t.Completions.Clone()
	return out
}

// NormalizeWeeks validates, de-duplicates and sorts assigned weeks.
func NormalizeWeeks(weeks []int) ([]int, error) {
	seen := make(map[int]bool, len(weeks))
	out := make([]int, 0, len(weeks))
	for _, w := range weeks {
		if !ValidWeek(w) {
			return nil, Invalid("assignedWeeks", fmt.Sprintf("week %d is outside 1-%d", w, CycleWeeks))
		}
		if !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	sort.Ints(out)
	return out, nil
}

// AllWeeks returns 1..12, the default assignment for a new tactic.
func AllWeeks() []int {
	out := make([]int, CycleWeeks)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

// TacticPatch carries a partial tactic update. Type changes go through
// ChangeType because they may erase completions.
type TacticPatch struct {
	Name          *string `json:"name"`
	AssignedWeeks *[]int  `json:"assignedWeeks"`
}

// ChangeType switches t to kind and clears its completions. When any week
// holds progress and confirmed is false it returns ErrConfirmationRequired and
// leaves t unchanged.
func ChangeType(t Tactic, kind TacticType, confirmed bool) (Tactic, error) {
	if !kind.Valid() {
		return t, Invalid("type", fmt.Sprintf("unknown tactic type %q", kind))
	}
	if t.Type == kind {
		return t, nil
	}
	if t.Completions.HasProgress() && !confirmed {
		return t, ErrConfirmationRequired
	}
	t.Type = kind
	t.Completions = Completions{}
	return t, nil
}

// TacticRepository is the port for tactic persistence.
type TacticRepository interface {
	ListTactics(ctx context.Context, userID string) ([]Tactic, error)
	InsertTactic(ctx context.Context, userID string, t Tactic) error
	UpdateTactic(ctx context.Context, userID string, t Tactic) error
	DeleteTactic(ctx context.Context, userID, id string) error
	DeleteTacticsByGoal(ctx context.Context, userID, goalID string) error
	// UpdateTacticPositions sets position = index for every id.
	UpdateTacticPositions(ctx context.Context, userID string, ids []string) error
}
