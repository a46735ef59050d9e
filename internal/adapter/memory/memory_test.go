package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"juhd/internal/domain"
)

func TestGoalRepository(t *testing.T) {
	db := New()
	ctx := context.Background()

	for i, id := range []string{"a", "b", "c"} {
		if err := db.InsertGoal(ctx, "u1", domain.Goal{ID: id, Name: id, Position: i}); err != nil {
			t.Fatalf("InsertGoal: %v", err)
		}
	}
	if err := db.InsertGoal(ctx, "u1", domain.Goal{ID: "a"}); err == nil {
		t.Error("expected duplicate id to fail")
	}

	if err := db.UpdateGoalPositions(ctx, "u1", []string{"c", "a", "b"}); err != nil {
		t.Fatalf("UpdateGoalPositions: %v", err)
	}
	goals, err := db.ListGoals(ctx, "u1")
	if err != nil {
		t.Fatalf("ListGoals: %v", err)
	}
	if len(goals) != 3 || goals[0].ID != "c" || goals[2].ID != "b" {
		t.Errorf("unexpected order: %+v", goals)
	}

	// Update keeps the stored position.
	if err := db.UpdateGoal(ctx, "u1", domain.Goal{ID: "c", Name: "renamed", Position: 99}); err != nil {
		t.Fatalf("UpdateGoal: %v", err)
	}
	goals, _ = db.ListGoals(ctx, "u1")
	if goals[0].Name != "renamed" || goals[0].Position != 0 {
		t.Errorf("unexpected goal after update: %+v", goals[0])
	}

	// Other user sees nothing
	other, _ := db.ListGoals(ctx, "u2")
	if len(other) != 0 {
		t.Error("expected 0 goals for other user")
	}

	_ = db.DeleteGoal(ctx, "u1", "a")
	goals, _ = db.ListGoals(ctx, "u1")
	if len(goals) != 2 {
		t.Errorf("expected 2 goals, got %d", len(goals))
	}
}

func TestTacticRepository(t *testing.T) {
	db := New()
	ctx := context.Background()

	tac := domain.Tactic{
		ID: "t1", GoalID: "g1", Type: domain.TacticWeekly,
		AssignedWeeks: []int{1}, Completions: domain.Completions{1: domain.WeeklyCompletion(true)},
	}
	if err := db.InsertTactic(ctx, "u1", tac); err != nil {
		t.Fatalf("InsertTactic: %v", err)
	}
	_ = db.InsertTactic(ctx, "u1", domain.Tactic{ID: "t2", GoalID: "g2", Position: 1})

	// Mutating the caller's copy must not leak into the store.
	tac.Completions[1] = domain.WeeklyCompletion(false)
	got, _ := db.ListTactics(ctx, "u1")
	if got[0].Completions[1] != domain.WeeklyCompletion(true) {
		t.Error("store shares completions with caller")
	}

	if err := db.DeleteTacticsByGoal(ctx, "u1", "g1"); err != nil {
		t.Fatalf("DeleteTacticsByGoal: %v", err)
	}
	got, _ = db.ListTactics(ctx, "u1")
	if len(got) != 1 || got[0].ID != "t2" {
		t.Errorf("expected only t2, got %+v", got)
	}
}

func TestMeasurementUpsert(t *testing.T) {
	db := New()
	ctx := context.Background()

	m := domain.MeasurementValue{GoalID: "g1", ConfigID: "c1", WeekNum: 3, Value: 10}
	_ = db.UpsertMeasurement(ctx, "u1", m)
	m.Value = 12
	_ = db.UpsertMeasurement(ctx, "u1", m)
	_ = db.UpsertMeasurement(ctx, "u1", domain.MeasurementValue{GoalID: "g2", ConfigID: "c2", WeekNum: 3, Value: 1})

	got, err := db.ListMeasurements(ctx, "u1")
	if err != nil {
		t.Fatalf("ListMeasurements: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 values, got %d", len(got))
	}
	if got[0].Value != 12 {
		t.Errorf("expected 12, got %v", got[0].Value)
	}

	_ = db.DeleteMeasurementsByGoal(ctx, "u1", "g1")
	got, _ = db.ListMeasurements(ctx, "u1")
	if len(got) != 1 || got[0].GoalID != "g2" {
		t.Errorf("unexpected values: %+v", got)
	}
}

func TestVisionAndCycle(t *testing.T) {
	db := New()
	ctx := context.Background()

	v, err := db.GetVision(ctx, "u1")
	if err != nil || v != nil {
		t.Fatalf("expected nil vision, got %v %v", v, err)
	}
	_ = db.UpsertVision(ctx, "u1", domain.Vision{LongTerm: "l"})
	v, _ = db.GetVision(ctx, "u1")
	if v == nil || v.LongTerm != "l" {
		t.Errorf("unexpected vision: %+v", v)
	}

	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	if err := db.InsertCycle(ctx, "u1", domain.Cycle{ID: "c", StartDate: start, CurrentWeek: 1}); err != nil {
		t.Fatalf("InsertCycle: %v", err)
	}
	c, _ := db.GetCycle(ctx, "u1")
	if c == nil || !c.StartDate.Equal(start) {
		t.Errorf("unexpected cycle: %+v", c)
	}

	// A missing row is created, an existing one keeps its id.
	if err := db.UpdateCycle(ctx, "u2", domain.Cycle{ID: "c2", StartDate: start, CurrentWeek: 1}); err != nil {
		t.Fatalf("UpdateCycle of missing cycle: %v", err)
	}
	if err := db.UpdateCycle(ctx, "u1", domain.Cycle{StartDate: start.AddDate(0, 0, 7), CurrentWeek: 2}); err != nil {
		t.Fatalf("UpdateCycle: %v", err)
	}
	if c, _ := db.GetCycle(ctx, "u2"); c == nil || c.ID != "c2" {
		t.Errorf("expected created cycle, got %+v", c)
	}
	if c, _ := db.GetCycle(ctx, "u1"); c == nil || c.ID != "c" || c.CurrentWeek != 2 {
		t.Errorf("unexpected updated cycle: %+v", c)
	}
}

func TestUserRepository(t *testing.T) {
	db := New()
	ctx := context.Background()

	u, err := db.Create(ctx, domain.User{ID: "u1", Email: "Bob@example.com", Name: "Bob"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.Name != "Bob" {
		t.Errorf("expected Bob, got %s", u.Name)
	}

	u2, err := db.GetByEmail(ctx, "bob@example.com")
	if err != nil {
		t.Fatalf("GetByEmail: %v", err)
	}
	if u2 == nil || u2.ID != u.ID {
		t.Error("failed to retrieve user")
	}

	if _, err := db.Create(ctx, domain.User{ID: "u2", Email: "bob@example.com"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Errorf("expected ErrEmailTaken, got %v", err)
	}

	if err := db.ConfirmEmail(ctx, "u1", time.Now()); err != nil {
		t.Fatalf("ConfirmEmail: %v", err)
	}
	u3, _ := db.GetByID(ctx, "u1")
	if !u3.Confirmed() {
		t.Error("expected confirmed user")
	}
}

func TestSessionRepository(t *testing.T) {
	db := New()
	repo := db.NewSessionRepo()
	ctx := context.Background()

	err := repo.Create(ctx, "u1", "token123", time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	_ = repo.Create(ctx, "u1", "old", time.Now().Add(-time.Hour))

	sess, err := repo.GetByToken(ctx, "token123")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	if sess == nil {
		t.Error("expected session, got nil")
	}

	_ = repo.DeleteExpired(ctx)
	if s, _ := repo.GetByToken(ctx, "old"); s != nil {
		t.Error("expected expired session to be swept")
	}

	_ = repo.Delete(ctx, "token123")
	sess, _ = repo.GetByToken(ctx, "token123")
	if sess != nil {
		t.Error("expected nil (deleted)")
	}
}

func TestClientState(t *testing.T) {
	db := New()
	ctx := context.Background()

	if _, ok, _ := db.GetState(ctx, "dev", "k"); ok {
		t.Error("expected missing key")
	}
	_ = db.SetState(ctx, "dev", "k", "v")
	v, ok, _ := db.GetState(ctx, "dev", "k")
	if !ok || v != "v" {
		t.Errorf("expected v, got %q %v", v, ok)
	}
	if _, ok, _ := db.GetState(ctx, "other", "k"); ok {
		t.Error("state leaked across devices")
	}
	_ = db.ClearState(ctx, "dev", "k")
	if _, ok, _ := db.GetState(ctx, "dev", "k"); ok {
		t.Error("expected cleared key")
	}
}
