package app

import (
	"time"

	"juhd/internal/domain"
)

const dayLayout = "2006-01-02"

// Dashboard is the scored view of one cycle week.
type Dashboard struct {
	Week            int             `json:"week"`
	ActualWeek      int             `json:"actualWeek"`
	IsCurrentWeek   bool            `json:"isCurrentWeek"`
	WeekStart       string          `json:"weekStart"`
	WeekEnd         string          `json:"weekEnd"`
	WeeklyScore     float64         `json:"weeklyScore"`
	LastWeekScore   *float64        `json:"lastWeekScore"`
	OverallProgress float64         `json:"overallProgress"`
	Goals           []GoalDashboard `json:"goals"`
	Vision          domain.Vision   `json:"vision"`
}

// GoalDashboard groups the week's tactics and measurement series of a goal.
type GoalDashboard struct {
	Goal         domain.Goal         `json:"goal"`
	Tactics      []TacticScore       `json:"tactics"`
	Measurements []MeasurementSeries `json:"measurements"`
}

// TacticScore is a tactic with its score for the dashboard week.
type TacticScore struct {
	Tactic domain.Tactic `json:"tactic"`
	Score  float64       `json:"score"`
}

// MeasurementSeries is one config's values over the whole cycle.
type MeasurementSeries struct {
	Config domain.MeasurementConfig `json:"config"`
	// Current is the value recorded for the dashboard week, if any.
	Current *float64      `json:"current"`
	Points  []SeriesPoint `json:"points"`
}

// SeriesPoint is a single week of a measurement series. Value is nil for
// weeks without a recorded value.
type SeriesPoint struct {
	Week  int      `json:"week"`
	Value *float64 `json:"value"`
}

// Dashboard scores week (the viewed week when 0). Overall progress runs
// through the actual current week at now.
func (w *Workspace) Dashboard(week int, now time.Time) (Dashboard, error) {
	if week != 0 && !domain.ValidWeek(week) {
		return Dashboard{}, domain.Invalid("week", "week must be between 1 and 12")
	}
	s := w.Snapshot()
	if week == 0 {
		week = s.ViewWeek
	}
	actual := w.ActualWeek(now)
	from, to := domain.WeekRange(s.Cycle.StartDate, week)

	d := Dashboard{
		Week:            week,
		ActualWeek:      actual,
		IsCurrentWeek:   week == actual,
		WeekStart:       from.Format(dayLayout),
		WeekEnd:         to.Format(dayLayout),
		WeeklyScore:     domain.WeeklyScore(s.Tactics, week),
		OverallProgress: domain.OverallProgress(s.Tactics, actual),
		Goals:           make([]GoalDashboard, 0, len(s.Goals)),
		Vision:          s.Vision,
	}
	if week > 1 {
		last := domain.WeeklyScore(s.Tactics, week-1)
		d.LastWeekScore = &last
	}

	values := make(map[string]map[int]float64)
	for _, m := range s.Measurements {
		if values[m.ConfigID] == nil {
			values[m.ConfigID] = make(map[int]float64)
		}
		values[m.ConfigID][m.WeekNum] = m.Value
	}

	for _, g := range s.Goals {
		gd := GoalDashboard{Goal: g, Tactics: []TacticScore{}, Measurements: []MeasurementSeries{}}
		for _, t := range s.Tactics {
			if t.GoalID != g.ID || !t.AssignedTo(week) {
				continue
			}
			gd.Tactics = append(gd.Tactics, TacticScore{Tactic: t, Score: domain.TacticScore(t, week)})
		}
		for _, c := range g.MeasurementConfigs {
			gd.Measurements = append(gd.Measurements, series(c, values[c.ID], week))
		}
		d.Goals = append(d.Goals, gd)
	}
	return d, nil
}

// BriefingInput summarizes the dashboard for the briefing generator.
func (d Dashboard) BriefingInput() BriefingInput {
	in := BriefingInput{
		Week:            d.ActualWeek,
		WeeklyScore:     d.WeeklyScore,
		OverallProgress: d.OverallProgress,
	}
	for _, g := range d.Goals {
		in.GoalNames = append(in.GoalNames, g.Goal.Name)
	}
	return in
}

func series(c domain.MeasurementConfig, byWeek map[int]float64, week int) MeasurementSeries {
	s := MeasurementSeries{Config: c, Points: make([]SeriesPoint, 0, domain.CycleWeeks)}
	for wk := 1; wk <= domain.CycleWeeks; wk++ {
		p := SeriesPoint{Week: wk}
		if v, ok := byWeek[wk]; ok {
			p.Value = &v
			if wk == week {
				s.Current = &v
			}
		}
		s.Points = append(s.Points, p)
	}
	return s
}
