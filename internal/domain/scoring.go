package domain

// TacticScore returns the completion percentage of t in week, in [0, 100].
// Missing or wrong-shaped completion values count as incomplete.
func TacticScore(t Tactic, week int) float64 {
	switch t.Type {
	case TacticDaily:
		days, _ := t.Completions[week].(DailyCompletion)
		return 100 * float64(days.Done()) / DaysPerWeek
	case TacticWeekly:
		if done, ok := t.Completions[week].(WeeklyCompletion); ok && bool(done) {
			return 100
		}
	}
	return 0
}

// WeeklyScore is the unweighted mean tactic score over tactics assigned to
// week. A week with nothing assigned scores 0.
func WeeklyScore(tactics []Tactic, week int) float64 {
	var sum float64
	n := 0
	for _, t := range tactics {
		if !t.AssignedTo(week) {
			continue
		}
		sum += TacticScore(t, week)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// OverallProgress is the cumulative completion percentage over weeks
// 1..currentWeek. Every (tactic, week) assignment is one unit of 100 possible
// points.
func OverallProgress(tactics []Tactic, currentWeek int) float64 {
	var achieved, possible float64
	for w := 1; w <= currentWeek; w++ {
		for _, t := range tactics {
			if !t.AssignedTo(w) {
				continue
			}
			achieved += TacticScore(t, w)
			possible += 100
		}
	}
	if possible == 0 {
		return 0
	}
	return 100 * achieved / possible
}
