package domain

import (
	"context"
	"time"
)

// CycleWeeks is the fixed length of a planning cycle.
const CycleWeeks = 12

// Cycle anchors the 12-week planning period. StartDate is a Monday at local
// midnight.
type Cycle struct {
	ID          string    `json:"id"`
	StartDate   time.Time `json:"startDate"`
	CurrentWeek int       `json:"currentWeek"`
}

// CycleRepository is the port for the per-user cycle singleton.
type CycleRepository interface {
	// GetCycle returns nil, nil when the user has no cycle yet.
	GetCycle(ctx context.Context, userID string) (*Cycle, error)
	InsertCycle(ctx context.Context, userID string, c Cycle) error
	UpdateCycle(ctx context.Context, userID string, c Cycle) error
}

// ValidWeek reports whether w is a week of the cycle.
func ValidWeek(w int) bool {
	return w >= 1 && w <= CycleWeeks
}

// ActualWeek returns the calendar week of the cycle that now falls in,
// clamped to [1, 12]. Days are counted on the civil calendar of start's
// location, so daylight-saving shifts do not move week boundaries. start is
// assumed to be a Monday at midnight; any other value still yields a week,
// but its boundaries will not line up with calendar weeks.
func ActualWeek(start, now time.Time) int {
	week := floorDiv(civilDays(start, now.In(start.Location())), 7) + 1
	if week < 1 {
		return 1
	}
	if week > CycleWeeks {
		return CycleWeeks
	}
	return week
}

// SnapToMonday returns midnight of the Monday on or before t, in t's location.
// Sunday belongs to the week that started six days earlier.
func SnapToMonday(t time.Time) time.Time {
	offset := int(t.Weekday()) - int(time.Monday)
	if t.Weekday() == time.Sunday {
		offset = 6
	}
	y, m, d := t.Date()
	return time.Date(y, m, d-offset, 0, 0, 0, 0, t.Location())
}

// WeekRange returns the Monday and Sunday bounding a cycle week.
func WeekRange(start time.Time, week int) (time.Time, time.Time) {
	y, m, d := start.Date()
	from := time.Date(y, m, d+7*(week-1), 0, 0, 0, 0, start.Location())
	to := time.Date(y, m, d+7*(week-1)+6, 0, 0, 0, 0, start.Location())
	return from, to
}

func civilDays(from, to time.Time) int {
	fy, fm, fd := from.Date()
	ty, tm, td := to.Date()
	a := time.Date(fy, fm, fd, 0, 0, 0, 0, time.UTC)
	b := time.Date(ty, tm, td, 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
