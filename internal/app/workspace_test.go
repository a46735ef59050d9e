package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"juhd/internal/adapter/memory"
	"juhd/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// recordingDB wraps the memory store, recording write calls and failing
// the ones listed in fail.
type recordingDB struct {
	*memory.DB
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func newRecordingDB() *recordingDB {
	return &recordingDB{DB: memory.New(), fail: map[string]error{}}
}

func (r *recordingDB) stores() Stores {
	return Stores{Goals: r, Tactics: r, Measurements: r, Visions: r, Cycles: r}
}

func (r *recordingDB) record(op string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, op)
	return r.fail[op]
}

func (r *recordingDB) failOn(op string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[op] = err
}

func (r *recordingDB) count(op string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (r *recordingDB) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = nil
}

func (r *recordingDB) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	if err := r.record("ListGoals"); err != nil {
		return nil, err
	}
	return r.DB.ListGoals(ctx, userID)
}

func (r *recordingDB) InsertGoal(ctx context.Context, userID string, g domain.Goal) error {
	if err := r.record("InsertGoal"); err != nil {
		return err
	}
	return r.DB.InsertGoal(ctx, userID, g)
}

func (r *recordingDB) UpdateGoal(ctx context.Context, userID string, g domain.Goal) error {
	if err := r.record("UpdateGoal"); err != nil {
		return err
	}
	return r.DB.UpdateGoal(ctx, userID, g)
}

func (r *recordingDB) DeleteGoal(ctx context.Context, userID, id string) error {
	if err := r.record("DeleteGoal"); err != nil {
		return err
	}
	return r.DB.DeleteGoal(ctx, userID, id)
}

func (r *recordingDB) UpdateGoalPositions(ctx context.Context, userID string, ids []string) error {
	if err := r.record("UpdateGoalPositions"); err != nil {
		return err
	}
	return r.DB.UpdateGoalPositions(ctx, userID, ids)
}

func (r *recordingDB) InsertTactic(ctx context.Context, userID string, t domain.Tactic) error {
	if err := r.record("InsertTactic"); err != nil {
		return err
	}
	return r.DB.InsertTactic(ctx, userID, t)
}

func (r *recordingDB) UpdateTactic(ctx context.Context, userID string, t domain.Tactic) error {
	if err := r.record("UpdateTactic"); err != nil {
		return err
	}
	return r.DB.UpdateTactic(ctx, userID, t)
}

func (r *recordingDB) DeleteTacticsByGoal(ctx context.Context, userID, goalID string) error {
	if err := r.record("DeleteTacticsByGoal"); err != nil {
		return err
	}
	return r.DB.DeleteTacticsByGoal(ctx, userID, goalID)
}

func (r *recordingDB) UpdateTacticPositions(ctx context.Context, userID string, ids []string) error {
	if err := r.record("UpdateTacticPositions"); err != nil {
		return err
	}
	return r.DB.UpdateTacticPositions(ctx, userID, ids)
}

func (r *recordingDB) DeleteMeasurementsByGoal(ctx context.Context, userID, goalID string) error {
	if err := r.record("DeleteMeasurementsByGoal"); err != nil {
		return err
	}
	return r.DB.DeleteMeasurementsByGoal(ctx, userID, goalID)
}

func (r *recordingDB) UpsertVision(ctx context.Context, userID string, v domain.Vision) error {
	if err := r.record("UpsertVision"); err != nil {
		return err
	}
	return r.DB.UpsertVision(ctx, userID, v)
}

func (r *recordingDB) InsertCycle(ctx context.Context, userID string, c domain.Cycle) error {
	if err := r.record("InsertCycle"); err != nil {
		return err
	}
	return r.DB.InsertCycle(ctx, userID, c)
}

func (r *recordingDB) UpdateCycle(ctx context.Context, userID string, c domain.Cycle) error {
	if err := r.record("UpdateCycle"); err != nil {
		return err
	}
	return r.DB.UpdateCycle(ctx, userID, c)
}

// Wednesday of the week starting Monday 2026-01-12.
var testNow = time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)

func newTestWorkspace(t *testing.T, db *recordingDB) (*Workspace, *fakeClock) {
	t.Helper()
	clock := newFakeClock(testNow)
	ws := NewWorkspace("u1", db.stores(), WorkspaceOptions{
		Debounce: time.Hour,
		Location: time.UTC,
		Now:      clock.Now,
	})
	require.NoError(t, ws.Load(context.Background()))
	t.Cleanup(ws.Close)
	return ws, clock
}

func TestWorkspace_LoadCreatesCycle(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)

	c, err := db.DB.GetCycle(context.Background(), "u1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), c.StartDate)

	s := ws.Snapshot()
	assert.Equal(t, 1, s.ActualWeek)
	assert.Equal(t, 1, s.ViewWeek)
	assert.Empty(t, s.Goals)
	assert.NotNil(t, s.Goals)
}

func TestWorkspace_LoadExistingCycle(t *testing.T) {
	db := newRecordingDB()
	ctx := context.Background()
	require.NoError(t, db.DB.InsertCycle(ctx, "u1", domain.Cycle{ID: "c", StartDate: time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC)}))

	ws, _ := newTestWorkspace(t, db)
	assert.Equal(t, 4, ws.Snapshot().ActualWeek)
	assert.Equal(t, 4, ws.ViewWeek())
}

func TestWorkspace_LoadPartialFailure(t *testing.T) {
	db := newRecordingDB()
	ctx := context.Background()
	require.NoError(t, db.DB.InsertTactic(ctx, "u1", domain.Tactic{ID: "t1", GoalID: "g1", Type: domain.TacticWeekly}))
	db.failOn("ListGoals", errors.New("permission denied"))

	core, logs := observer.New(zap.ErrorLevel)
	ws := NewWorkspace("u1", db.stores(), WorkspaceOptions{Now: func() time.Time { return testNow }, Logger: zap.New(core)})
	defer ws.Close()

	err := ws.Load(ctx)
	var le *LoadError
	require.ErrorAs(t, err, &le)
	assert.Len(t, ws.Snapshot().Tactics, 1, "what loaded is still served")
	assert.Empty(t, ws.Snapshot().Goals)
	assert.Equal(t, 1, logs.FilterMessage("failed to load goals").Len())

	// Load runs once.
	assert.Equal(t, err, ws.Load(ctx))
	assert.Equal(t, 1, db.count("ListGoals"))
}

func TestWorkspace_CycleInsertFailureRecovers(t *testing.T) {
	db := newRecordingDB()
	ctx := context.Background()
	db.failOn("InsertCycle", errors.New("connection reset"))

	ws := NewWorkspace("u1", db.stores(), WorkspaceOptions{Debounce: time.Hour, Location: time.UTC, Now: func() time.Time { return testNow }})
	defer ws.Close()

	var le *LoadError
	require.ErrorAs(t, ws.Load(ctx), &le)
	stored, _ := db.DB.GetCycle(ctx, "u1")
	assert.Nil(t, stored)

	db.failOn("InsertCycle", nil)
	c, err := ws.ResetCycle(ctx, true, testNow)
	require.NoError(t, err)
	stored, _ = db.DB.GetCycle(ctx, "u1")
	require.NotNil(t, stored, "moving the cycle writes the missing row")
	assert.Equal(t, c.StartDate, stored.StartDate)

	c, err = ws.SetCycleStart(ctx, time.Date(2025, 12, 24, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	stored, _ = db.DB.GetCycle(ctx, "u1")
	assert.Equal(t, c.StartDate, stored.StartDate)
	assert.Equal(t, 2, db.count("UpdateCycle"))
}

func TestWorkspace_AddGoal(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()

	g, err := ws.AddGoal(ctx, GoalDraft{Name: "Ship v2", MeasurementConfigs: []domain.MeasurementConfig{{Name: "Users", Target: 100}}})
	require.NoError(t, err)
	assert.NotEmpty(t, g.ID)
	require.Len(t, g.MeasurementConfigs, 1)
	assert.NotEmpty(t, g.MeasurementConfigs[0].ID, "config ids are assigned")

	stored, _ := db.DB.ListGoals(ctx, "u1")
	require.Len(t, stored, 1)
	assert.Equal(t, "Ship v2", stored[0].Name)
	assert.Equal(t, SaveSaved, ws.SaveStatus().State)
}

func TestWorkspace_AddGoalFailureAlerts(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	db.failOn("InsertGoal", errors.New("new row violates row-level security policy"))

	_, err := ws.AddGoal(context.Background(), GoalDraft{Name: "x"})
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, LabelGoal, we.Label)
	assert.Equal(t, AlertGoalCreate, we.Alert)
	assert.Len(t, ws.Snapshot().Goals, 1, "local state keeps the goal")
	assert.Equal(t, SaveStatus{State: SaveFailed, Label: LabelGoal}, ws.SaveStatus())
}

func TestWorkspace_UpdateGoalIsDebounced(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()
	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "a"})

	for _, name := range []string{"ab", "abc", "abcd"} {
		n := name
		_, err := ws.UpdateGoal(g.ID, domain.GoalPatch{Name: &n})
		require.NoError(t, err)
	}
	assert.Equal(t, 0, db.count("UpdateGoal"))
	assert.Equal(t, SaveSaving, ws.SaveStatus().State)

	assert.Equal(t, 1, ws.Flush())
	assert.Equal(t, 1, db.count("UpdateGoal"))
	stored, _ := db.DB.ListGoals(ctx, "u1")
	assert.Equal(t, "abcd", stored[0].Name)

	missing := "x"
	_, err := ws.UpdateGoal("nope", domain.GoalPatch{Name: &missing})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWorkspace_DeleteGoalCascades(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()

	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "g", MeasurementConfigs: []domain.MeasurementConfig{{ID: "c1", Name: "kpi"}}})
	other, _ := ws.AddGoal(ctx, GoalDraft{Name: "other"})
	_, err := ws.AddTactic(ctx, TacticDraft{GoalID: g.ID, Name: "t"})
	require.NoError(t, err)
	_, err = ws.AddTactic(ctx, TacticDraft{GoalID: other.ID, Name: "keep"})
	require.NoError(t, err)
	require.NoError(t, ws.RecordMeasurement(ctx, domain.MeasurementValue{GoalID: g.ID, ConfigID: "c1", WeekNum: 1, Value: 3}))
	db.reset()

	require.NoError(t, ws.DeleteGoal(ctx, g.ID))
	assert.Equal(t, []string{"DeleteMeasurementsByGoal", "DeleteTacticsByGoal", "DeleteGoal"}, db.calls)

	s := ws.Snapshot()
	assert.Len(t, s.Goals, 1)
	assert.Len(t, s.Tactics, 1)
	assert.Empty(t, s.Measurements)
	tactics, _ := db.DB.ListTactics(ctx, "u1")
	assert.Len(t, tactics, 1)
}

func TestWorkspace_DeleteGoalStopsAtFirstFailure(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()
	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "g"})
	db.reset()
	db.failOn("DeleteTacticsByGoal", errors.New("boom"))

	err := ws.DeleteGoal(ctx, g.ID)
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, []string{"DeleteMeasurementsByGoal", "DeleteTacticsByGoal"}, db.calls)
}

func TestWorkspace_ReorderGoals(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()
	a, _ := ws.AddGoal(ctx, GoalDraft{Name: "a"})
	b, _ := ws.AddGoal(ctx, GoalDraft{Name: "b"})
	c, _ := ws.AddGoal(ctx, GoalDraft{Name: "c"})

	_, err := ws.ReorderGoals([]string{a.ID, b.ID})
	_, isValidation := domain.AsValidation(err)
	assert.True(t, isValidation)

	_, err = ws.ReorderGoals([]string{b.ID, c.ID, a.ID})
	require.NoError(t, err)
	got, err := ws.ReorderGoals([]string{c.ID, b.ID, a.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, got[2].Position)

	ws.Flush()
	assert.Equal(t, 1, db.count("UpdateGoalPositions"), "rapid reorders coalesce")
	stored, _ := db.DB.ListGoals(ctx, "u1")
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, []string{stored[0].ID, stored[1].ID, stored[2].ID})
}

func TestWorkspace_ReorderTacticsKeepsSlots(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()
	g1, _ := ws.AddGoal(ctx, GoalDraft{Name: "g1"})
	g2, _ := ws.AddGoal(ctx, GoalDraft{Name: "g2"})
	t1, _ := ws.AddTactic(ctx, TacticDraft{GoalID: g1.ID, Name: "t1"})
	x, _ := ws.AddTactic(ctx, TacticDraft{GoalID: g2.ID, Name: "x"})
	t2, _ := ws.AddTactic(ctx, TacticDraft{GoalID: g1.ID, Name: "t2"})

	got, err := ws.ReorderTactics(g1.ID, []string{t2.ID, t1.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{t2.ID, t1.ID}, []string{got[0].ID, got[1].ID})

	s := ws.Snapshot()
	assert.Equal(t, []string{t2.ID, x.ID, t1.ID}, []string{s.Tactics[0].ID, s.Tactics[1].ID, s.Tactics[2].ID})

	ws.Flush()
	stored, _ := db.DB.ListTactics(ctx, "u1")
	assert.Equal(t, []string{t2.ID, x.ID, t1.ID}, []string{stored[0].ID, stored[1].ID, stored[2].ID})

	_, err = ws.ReorderTactics("missing", nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestWorkspace_AddTacticDefaults(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()
	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "g"})

	tac, err := ws.AddTactic(ctx, TacticDraft{GoalID: g.ID, Name: "t"})
	require.NoError(t, err)
	assert.Equal(t, domain.TacticWeekly, tac.Type)
	assert.Equal(t, domain.AllWeeks(), tac.AssignedWeeks)

	_, err = ws.AddTactic(ctx, TacticDraft{GoalID: "nope"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	db.failOn("InsertTactic", errors.New("rls"))
	_, err = ws.AddTactic(ctx, TacticDraft{GoalID: g.ID})
	var we *WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, AlertTacticCreate, we.Alert)
}

func TestWorkspace_SetCompletion(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()
	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "g"})
	daily, _ := ws.AddTactic(ctx, TacticDraft{GoalID: g.ID, Name: "d", Type: domain.TacticDaily})

	_, err := ws.SetCompletion(ctx, daily.ID, 1, domain.WeeklyCompletion(true))
	_, isValidation := domain.AsValidation(err)
	assert.True(t, isValidation, "wrong shape")

	_, err = ws.SetCompletion(ctx, daily.ID, 13, domain.DailyCompletion{true})
	_, isValidation = domain.AsValidation(err)
	assert.True(t, isValidation, "week out of range")

	got, err := ws.SetCompletion(ctx, daily.ID, 2, domain.DailyCompletion{true, true})
	require.NoError(t, err)
	assert.Len(t, got.Completions[2], domain.DaysPerWeek)

	stored, _ := db.DB.ListTactics(ctx, "u1")
	assert.InDelta(t, 200.0/7, domain.TacticScore(stored[0], 2), 1e-9)
}

func TestWorkspace_ChangeTacticTypeNeedsConfirmation(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()
	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "g"})
	tac, _ := ws.AddTactic(ctx, TacticDraft{GoalID: g.ID, Name: "w"})
	_, err := ws.SetCompletion(ctx, tac.ID, 1, domain.WeeklyCompletion(true))
	require.NoError(t, err)

	_, err = ws.ChangeTacticType(ctx, tac.ID, domain.TacticDaily, false)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	kept, _ := ws.Tactic(tac.ID)
	assert.Equal(t, domain.TacticWeekly, kept.Type)

	changed, err := ws.ChangeTacticType(ctx, tac.ID, domain.TacticDaily, true)
	require.NoError(t, err)
	assert.Equal(t, domain.TacticDaily, changed.Type)
	assert.Empty(t, changed.Completions)
}

func TestWorkspace_UpdateTacticWeeks(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()
	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "g"})
	tac, _ := ws.AddTactic(ctx, TacticDraft{GoalID: g.ID, Name: "w"})

	weeks := []int{3, 1, 3}
	got, err := ws.UpdateTactic(tac.ID, domain.TacticPatch{AssignedWeeks: &weeks})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, got.AssignedWeeks)

	bad := []int{0}
	_, err = ws.UpdateTactic(tac.ID, domain.TacticPatch{AssignedWeeks: &bad})
	assert.Error(t, err)

	ws.Flush()
	assert.Equal(t, 1, db.count("UpdateTactic"))
}

func TestWorkspace_RecordMeasurementUpserts(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()
	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "g", MeasurementConfigs: []domain.MeasurementConfig{{ID: "c1", Name: "kpi"}}})

	require.NoError(t, ws.RecordMeasurement(ctx, domain.MeasurementValue{GoalID: g.ID, ConfigID: "c1", WeekNum: 2, Value: 5}))
	require.NoError(t, ws.RecordMeasurement(ctx, domain.MeasurementValue{GoalID: g.ID, ConfigID: "c1", WeekNum: 2, Value: 7}))
	assert.Len(t, ws.Snapshot().Measurements, 1)

	stored, _ := db.DB.ListMeasurements(ctx, "u1")
	require.Len(t, stored, 1)
	assert.Equal(t, 7.0, stored[0].Value)

	err := ws.RecordMeasurement(ctx, domain.MeasurementValue{GoalID: g.ID, ConfigID: "other", WeekNum: 2})
	_, isValidation := domain.AsValidation(err)
	assert.True(t, isValidation)
}

func TestWorkspace_MeasurementWaitsForGoalDelete(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	ctx := context.Background()
	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "g", MeasurementConfigs: []domain.MeasurementConfig{{ID: "c1", Name: "kpi"}}})

	unlock := ws.writes.lock("goal:" + g.ID)
	recorded := make(chan error, 1)
	go func() {
		recorded <- ws.RecordMeasurement(ctx, domain.MeasurementValue{GoalID: g.ID, ConfigID: "c1", WeekNum: 1, Value: 3})
	}()
	require.Eventually(t, func() bool { return len(ws.Snapshot().Measurements) == 1 }, time.Second, time.Millisecond)

	select {
	case <-recorded:
		t.Fatal("measurement write ran while the goal was locked")
	case <-time.After(20 * time.Millisecond):
	}

	deleted := make(chan error, 1)
	go func() { deleted <- ws.DeleteGoal(ctx, g.ID) }()
	require.Eventually(t, func() bool { return len(ws.Snapshot().Goals) == 0 }, time.Second, time.Millisecond)
	unlock()

	require.NoError(t, <-recorded)
	require.NoError(t, <-deleted)
	stored, _ := db.DB.ListMeasurements(ctx, "u1")
	assert.Empty(t, stored, "no measurement outlives its goal")
	assert.Zero(t, ws.writes.len())
}

func TestKeyedMutex(t *testing.T) {
	var k keyedMutex
	unlockA := k.lock("a")
	unlockB := k.lock("b")
	assert.Equal(t, 2, k.len())

	acquired := make(chan struct{})
	go func() {
		unlock := k.lock("a")
		close(acquired)
		unlock()
	}()
	select {
	case <-acquired:
		t.Fatal("second holder acquired a held key")
	case <-time.After(20 * time.Millisecond):
	}

	unlockB()
	assert.Equal(t, 1, k.len(), "a is still held")
	unlockA()
	<-acquired
	require.Eventually(t, func() bool { return k.len() == 0 }, time.Second, time.Millisecond)
}

func TestWorkspace_Vision(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)
	long, short := "Build a company", "Ship the product"

	ws.UpdateVision(domain.VisionPatch{LongTerm: &long})
	v := ws.UpdateVision(domain.VisionPatch{ShortTerm: &short})
	assert.Equal(t, domain.Vision{LongTerm: long, ShortTerm: short}, v)

	ws.Flush()
	assert.Equal(t, 1, db.count("UpsertVision"))
	stored, _ := db.DB.GetVision(context.Background(), "u1")
	assert.Equal(t, v, *stored)
}

func TestWorkspace_ViewWeekIsIndependent(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)

	require.NoError(t, ws.SetViewWeek(7))
	assert.Equal(t, 7, ws.ViewWeek())
	assert.Equal(t, 1, ws.Cycle().CurrentWeek)
	assert.Zero(t, db.count("UpdateCycle"))

	_, isValidation := domain.AsValidation(ws.SetViewWeek(0))
	assert.True(t, isValidation)
}

func TestWorkspace_ResetCycle(t *testing.T) {
	db := newRecordingDB()
	ctx := context.Background()
	require.NoError(t, db.DB.InsertCycle(ctx, "u1", domain.Cycle{ID: "c", StartDate: time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC)}))
	ws, _ := newTestWorkspace(t, db)
	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "g"})
	tac, _ := ws.AddTactic(ctx, TacticDraft{GoalID: g.ID})
	_, _ = ws.SetCompletion(ctx, tac.ID, 5, domain.WeeklyCompletion(true))
	require.Equal(t, 11, ws.ActualWeek(testNow))

	_, err := ws.ResetCycle(ctx, false, testNow)
	assert.ErrorIs(t, err, domain.ErrConfirmationRequired)
	assert.Equal(t, 11, ws.ActualWeek(testNow))

	c, err := ws.ResetCycle(ctx, true, testNow)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 1, 12, 0, 0, 0, 0, time.UTC), c.StartDate)
	assert.Equal(t, 1, ws.ViewWeek())
	assert.Equal(t, 1, ws.ActualWeek(testNow))

	kept, _ := ws.Tactic(tac.ID)
	assert.Equal(t, domain.WeeklyCompletion(true), kept.Completions[5], "completions survive a reset")
	stored, _ := db.DB.GetCycle(ctx, "u1")
	assert.Equal(t, c.StartDate, stored.StartDate)
}

func TestWorkspace_SetCycleStartSnapsToMonday(t *testing.T) {
	db := newRecordingDB()
	ws, _ := newTestWorkspace(t, db)

	c, err := ws.SetCycleStart(context.Background(), time.Date(2025, 12, 28, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 12, 22, 0, 0, 0, 0, time.UTC), c.StartDate, "Sunday snaps back six days")
	assert.Equal(t, 4, c.CurrentWeek)
	assert.Equal(t, 4, ws.ViewWeek())
}

func TestWorkspace_Dashboard(t *testing.T) {
	db := newRecordingDB()
	ctx := context.Background()
	require.NoError(t, db.DB.InsertCycle(ctx, "u1", domain.Cycle{ID: "c", StartDate: time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)}))
	ws, _ := newTestWorkspace(t, db)

	g, _ := ws.AddGoal(ctx, GoalDraft{Name: "Ship", MeasurementConfigs: []domain.MeasurementConfig{{ID: "c1", Name: "Users", Target: 50}}})
	w1, _ := ws.AddTactic(ctx, TacticDraft{GoalID: g.ID, Name: "weekly"})
	_, _ = ws.AddTactic(ctx, TacticDraft{GoalID: g.ID, Name: "later", AssignedWeeks: []int{9}})
	_, _ = ws.SetCompletion(ctx, w1.ID, 1, domain.WeeklyCompletion(true))
	require.NoError(t, ws.RecordMeasurement(ctx, domain.MeasurementValue{GoalID: g.ID, ConfigID: "c1", WeekNum: 2, Value: 12}))

	d, err := ws.Dashboard(0, testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Week)
	assert.True(t, d.IsCurrentWeek)
	assert.Equal(t, "2026-01-12", d.WeekStart)
	assert.Equal(t, "2026-01-18", d.WeekEnd)
	assert.Equal(t, 0.0, d.WeeklyScore)
	require.NotNil(t, d.LastWeekScore)
	assert.Equal(t, 100.0, *d.LastWeekScore)
	assert.Equal(t, 50.0, d.OverallProgress)

	require.Len(t, d.Goals, 1)
	assert.Len(t, d.Goals[0].Tactics, 1, "only tactics assigned to the week")
	require.Len(t, d.Goals[0].Measurements, 1)
	series := d.Goals[0].Measurements[0]
	assert.Len(t, series.Points, domain.CycleWeeks)
	require.NotNil(t, series.Current)
	assert.Equal(t, 12.0, *series.Current)
	assert.Nil(t, series.Points[0].Value)

	d, err = ws.Dashboard(1, testNow)
	require.NoError(t, err)
	assert.Equal(t, 100.0, d.WeeklyScore)
	assert.Nil(t, d.LastWeekScore)
	assert.False(t, d.IsCurrentWeek)
	assert.Equal(t, []string{"Ship"}, d.BriefingInput().GoalNames)

	_, err = ws.Dashboard(13, testNow)
	assert.Error(t, err)
}

func TestWorkspace_CloseFlushes(t *testing.T) {
	db := newRecordingDB()
	clock := newFakeClock(testNow)
	ws := NewWorkspace("u1", db.stores(), WorkspaceOptions{Debounce: time.Hour, Now: clock.Now})
	require.NoError(t, ws.Load(context.Background()))
	long := "x"
	ws.UpdateVision(domain.VisionPatch{LongTerm: &long})

	ws.Close()
	assert.Equal(t, 1, db.count("UpsertVision"))

	// Closed workspaces no longer schedule writes.
	ws.UpdateVision(domain.VisionPatch{LongTerm: &long})
	assert.Equal(t, 0, ws.Flush())
}

func TestWorkspaces_CloseOnSignOut(t *testing.T) {
	db := newRecordingDB()
	reg := NewWorkspaces(db.stores(), WorkspaceOptions{Debounce: time.Hour, Now: func() time.Time { return testNow }})
	hub := NewSessionHub()
	detach := reg.Attach(hub)
	defer detach()
	ctx := context.Background()

	ws, err := reg.Get(ctx, "u1")
	require.NoError(t, err)
	same, _ := reg.Get(ctx, "u1")
	assert.Same(t, ws, same)
	_, _ = reg.Get(ctx, "u2")
	assert.Equal(t, 2, reg.Open())

	short := "s"
	ws.UpdateVision(domain.VisionPatch{ShortTerm: &short})
	hub.Publish(SessionEvent{Kind: SessionSignedOut, User: domain.User{ID: "u1"}})

	assert.Equal(t, 1, reg.Open())
	assert.Equal(t, 1, db.count("UpsertVision"), "pending edits are flushed on sign-out")

	fresh, _ := reg.Get(ctx, "u1")
	assert.NotSame(t, ws, fresh)

	reg.CloseAll()
	assert.Equal(t, 0, reg.Open())
}
