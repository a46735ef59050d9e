package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"juhd/internal/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Field group labels shown by the save indicator.
const (
	LabelGoal        = "Goal"
	LabelTactic      = "Tactic"
	LabelMeasurement = "Measurement"
	LabelVision      = "Vision"
	LabelCycle       = "Cycle"
)

// Blocking alerts for failures the user has to act on.
const (
	AlertLoad         = "Failed to load your data. Please check your connection and that row level security policies allow reads for your user."
	AlertGoalCreate   = "Failed to save goal. Please check that row level security policies allow inserts for your user."
	AlertTacticCreate = "Failed to save tactic. Please check that row level security policies allow inserts for your user."
)

// DefaultSaveDebounce is the coalescing window for text edits and reorders.
const DefaultSaveDebounce = 400 * time.Millisecond

// WriteError reports a failed persistence call. Local state keeps the
// change; Alert is set when the client should block on a message.
type WriteError struct {
	Label string
	Alert string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("save %s: %v", strings.ToLower(e.Label), e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// LoadError reports that part of the workspace could not be read. The
// collections that did load are still served.
type LoadError struct {
	Err error
}

func (e *LoadError) Error() string { return "load workspace: " + e.Err.Error() }

func (e *LoadError) Unwrap() error { return e.Err }

// Stores bundles the repository ports a workspace persists to.
type Stores struct {
	Goals        domain.GoalRepository
	Tactics      domain.TacticRepository
	Measurements domain.MeasurementRepository
	Visions      domain.VisionRepository
	Cycles       domain.CycleRepository
}

// WorkspaceOptions tunes a workspace. Zero values pick defaults.
type WorkspaceOptions struct {
	Debounce time.Duration
	// Location is the calendar used for cycle weeks. Defaults to time.Local.
	Location *time.Location
	Now      func() time.Time
	Logger   *zap.Logger
}

func (o WorkspaceOptions) withDefaults() WorkspaceOptions {
	if o.Debounce <= 0 {
		o.Debounce = DefaultSaveDebounce
	}
	if o.Location == nil {
		o.Location = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// Workspace is one user's working copy of their plan. Mutations apply to the
// in-memory state immediately and are then persisted, either right away or
// through the debouncer.
type Workspace struct {
	userID   string
	stores   Stores
	loc      *time.Location
	now      func() time.Time
	log      *zap.Logger
	debounce *Debouncer
	saves    *SaveTracker
	writes   keyedMutex

	loadOnce sync.Once
	loadErr  error

	mu           sync.Mutex
	goals        []domain.Goal
	tactics      []domain.Tactic
	measurements []domain.MeasurementValue
	vision       domain.Vision
	cycle        domain.Cycle
	viewWeek     int
}

// NewWorkspace creates an unloaded workspace for userID.
func NewWorkspace(userID string, stores Stores, opts WorkspaceOptions) *Workspace {
	opts = opts.withDefaults()
	return &Workspace{
		userID:   userID,
		stores:   stores,
		loc:      opts.Location,
		now:      opts.Now,
		log:      opts.Logger.With(zap.String("user", userID)),
		debounce: NewDebouncer(opts.Debounce),
		saves:    NewSaveTracker(opts.Now),
		viewWeek: 1,
	}
}

// UserID returns the owner of the workspace.
func (w *Workspace) UserID() string { return w.userID }

// Load reads the user's data once. Later calls return the first result.
func (w *Workspace) Load(ctx context.Context) error {
	w.loadOnce.Do(func() {
		w.loadErr = w.load(context.WithoutCancel(ctx))
	})
	return w.loadErr
}

func (w *Workspace) load(ctx context.Context) error {
	var (
		goals        []domain.Goal
		tactics      []domain.Tactic
		measurements []domain.MeasurementValue
		vision       *domain.Vision
		cycle        *domain.Cycle
		cycleErr     error
	)

	var g errgroup.Group
	g.Go(func() error {
		v, err := w.stores.Goals.ListGoals(ctx, w.userID)
		if err != nil {
			return w.readFailed("goals", err)
		}
		goals = v
		return nil
	})
	g.Go(func() error {
		v, err := w.stores.Tactics.ListTactics(ctx, w.userID)
		if err != nil {
			return w.readFailed("tactics", err)
		}
		tactics = v
		return nil
	})
	g.Go(func() error {
		v, err := w.stores.Measurements.ListMeasurements(ctx, w.userID)
		if err != nil {
			return w.readFailed("measurements", err)
		}
		measurements = v
		return nil
	})
	g.Go(func() error {
		v, err := w.stores.Visions.GetVision(ctx, w.userID)
		if err != nil {
			w.log.Warn("failed to load vision", zap.Error(err))
			return nil
		}
		vision = v
		return nil
	})
	g.Go(func() error {
		c, err := w.stores.Cycles.GetCycle(ctx, w.userID)
		if err != nil {
			w.log.Warn("failed to load cycle", zap.Error(err))
			cycleErr = err
			return nil
		}
		cycle = c
		return nil
	})
	err := g.Wait()

	now := w.now().In(w.loc)
	if cycle == nil {
		c := domain.Cycle{ID: uuid.NewString(), StartDate: domain.SnapToMonday(now), CurrentWeek: 1}
		// Only create the row when the read succeeded and found nothing.
		if cycleErr == nil {
			if ierr := w.stores.Cycles.InsertCycle(ctx, w.userID, c); ierr != nil {
				w.log.Error("failed to create cycle", zap.Error(ierr))
				err = errors.Join(err, fmt.Errorf("create cycle: %w", ierr))
			}
		}
		cycle = &c
	}

	sort.SliceStable(goals, func(i, j int) bool { return goals[i].Position < goals[j].Position })
	sort.SliceStable(tactics, func(i, j int) bool { return tactics[i].Position < tactics[j].Position })

	w.mu.Lock()
	w.goals = nonNil(goals)
	w.tactics = nonNil(tactics)
	w.measurements = nonNil(measurements)
	if vision != nil {
		w.vision = *vision
	}
	w.cycle = *cycle
	w.cycle.StartDate = civilDate(cycle.StartDate, w.loc)
	w.cycle.CurrentWeek = domain.ActualWeek(w.cycle.StartDate, now)
	w.viewWeek = w.cycle.CurrentWeek
	w.mu.Unlock()

	if err != nil {
		return &LoadError{Err: err}
	}
	return nil
}

func (w *Workspace) readFailed(what string, err error) error {
	w.log.Error("failed to load "+what, zap.Error(err))
	return fmt.Errorf("list %s: %w", what, err)
}

// Snapshot is a deep copy of the workspace state.
type Snapshot struct {
	Goals        []domain.Goal             `json:"goals"`
	Tactics      []domain.Tactic           `json:"tactics"`
	Measurements []domain.MeasurementValue `json:"measurements"`
	Vision       domain.Vision             `json:"vision"`
	Cycle        domain.Cycle              `json:"cycle"`
	ActualWeek   int                       `json:"actualWeek"`
	ViewWeek     int                       `json:"viewWeek"`
}

// Snapshot returns a copy of the current state.
func (w *Workspace) Snapshot() Snapshot {
	w.mu.Lock()
	defer w.mu.Unlock()
	actual := w.actualWeekLocked(w.now())
	s := Snapshot{
		Goals:        make([]domain.Goal, len(w.goals)),
		Tactics:      make([]domain.Tactic, len(w.tactics)),
		Measurements: append([]domain.MeasurementValue{}, w.measurements...),
		Vision:       w.vision,
		Cycle:        w.cycle,
		ActualWeek:   actual,
		ViewWeek:     w.viewWeek,
	}
	s.Cycle.CurrentWeek = actual
	for i, g := range w.goals {
		s.Goals[i] = g.Clone()
	}
	for i, t := range w.tactics {
		s.Tactics[i] = t.Clone()
	}
	return s
}

// SaveStatus reports the aggregate state of outstanding writes. Debounced
// edits that have not fired yet count as saving.
func (w *Workspace) SaveStatus() SaveStatus {
	if w.debounce.Pending() > 0 {
		return SaveStatus{State: SaveSaving}
	}
	return w.saves.Status()
}

// Flush persists every pending debounced edit now.
func (w *Workspace) Flush() int {
	return w.debounce.Flush()
}

// Close flushes pending edits and stops the debouncer. Writes already in
// flight are allowed to finish.
func (w *Workspace) Close() {
	w.debounce.Flush()
	w.debounce.Stop()
}

// persist runs fn under the write lock for key, tracking it in the save
// indicator. fn reads the latest local state itself, so the last write for
// a key always carries the newest value.
func (w *Workspace) persist(ctx context.Context, key, label string, fn func(context.Context) error) error {
	unlock := w.writes.lock(key)
	defer unlock()

	w.saves.Begin()
	err := fn(ctx)
	w.saves.End(label, err)
	if err != nil {
		w.log.Error("save failed", zap.String("key", key), zap.String("group", label), zap.Error(err))
		return &WriteError{Label: label, Err: err}
	}
	return nil
}

// persistLater debounces a write for key. It runs detached from any request.
func (w *Workspace) persistLater(key, label string, fn func(context.Context) error) {
	w.debounce.Schedule(key, func() {
		_ = w.persist(context.Background(), key, label, fn)
	})
}

// --- goals ---

// GoalDraft is the input for a new goal.
type GoalDraft struct {
	Name               string                     `json:"name"`
	Description        string                     `json:"description"`
	MeasurementConfigs []domain.MeasurementConfig `json:"measurementConfigs"`
}

// AddGoal appends a goal and inserts it immediately.
func (w *Workspace) AddGoal(ctx context.Context, d GoalDraft) (domain.Goal, error) {
	configs := withConfigIDs(d.MeasurementConfigs)
	if err := (domain.GoalPatch{MeasurementConfigs: &configs}).Validate(); err != nil {
		return domain.Goal{}, err
	}

	w.mu.Lock()
	g := domain.Goal{
		ID:                 uuid.NewString(),
		Name:               d.Name,
		Description:        d.Description,
		MeasurementConfigs: configs,
		Position:           len(w.goals),
	}
	w.goals = append(w.goals, g.Clone())
	w.mu.Unlock()

	err := w.persist(ctx, "goal:"+g.ID, LabelGoal, func(ctx context.Context) error {
		return w.stores.Goals.InsertGoal(ctx, w.userID, g)
	})
	return g, withAlert(err, AlertGoalCreate)
}

// UpdateGoal applies a partial edit. The write is debounced.
func (w *Workspace) UpdateGoal(id string, p domain.GoalPatch) (domain.Goal, error) {
	if p.MeasurementConfigs != nil {
		configs := withConfigIDs(*p.MeasurementConfigs)
		p.MeasurementConfigs = &configs
	}
	if err := p.Validate(); err != nil {
		return domain.Goal{}, err
	}

	w.mu.Lock()
	i := w.goalIndexLocked(id)
	if i < 0 {
		w.mu.Unlock()
		return domain.Goal{}, fmt.Errorf("goal %s: %w", id, domain.ErrNotFound)
	}
	w.goals[i] = p.Apply(w.goals[i])
	g := w.goals[i].Clone()
	w.mu.Unlock()

	w.persistLater("goal:"+id, LabelGoal, func(ctx context.Context) error {
		latest, ok := w.Goal(id)
		if !ok {
			return nil
		}
		return w.stores.Goals.UpdateGoal(ctx, w.userID, latest)
	})
	return g, nil
}

// Goal returns a copy of the goal with the given id.
func (w *Workspace) Goal(id string) (domain.Goal, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.goalIndexLocked(id)
	if i < 0 {
		return domain.Goal{}, false
	}
	return w.goals[i].Clone(), true
}

// DeleteGoal removes a goal with its tactics and measurements. The store
// deletes run in order: measurements, tactics, then the goal, stopping at the
// first failure.
func (w *Workspace) DeleteGoal(ctx context.Context, id string) error {
	w.mu.Lock()
	i := w.goalIndexLocked(id)
	if i < 0 {
		w.mu.Unlock()
		return fmt.Errorf("goal %s: %w", id, domain.ErrNotFound)
	}
	w.goals = append(w.goals[:i], w.goals[i+1:]...)
	w.tactics = filter(w.tactics, func(t domain.Tactic) bool { return t.GoalID != id })
	w.measurements = filter(w.measurements, func(m domain.MeasurementValue) bool { return m.GoalID != id })
	w.mu.Unlock()

	return w.persist(ctx, "goal:"+id, LabelGoal, func(ctx context.Context) error {
		if err := w.stores.Measurements.DeleteMeasurementsByGoal(ctx, w.userID, id); err != nil {
			return fmt.Errorf("delete measurements: %w", err)
		}
		if err := w.stores.Tactics.DeleteTacticsByGoal(ctx, w.userID, id); err != nil {
			return fmt.Errorf("delete tactics: %w", err)
		}
		if err := w.stores.Goals.DeleteGoal(ctx, w.userID, id); err != nil {
			return fmt.Errorf("delete goal: %w", err)
		}
		return nil
	})
}

// ReorderGoals sets the goal order to ids, which must be a permutation of
// the current goal ids. Positions are persisted in one debounced batch.
func (w *Workspace) ReorderGoals(ids []string) ([]domain.Goal, error) {
	w.mu.Lock()
	current := make([]string, len(w.goals))
	byID := make(map[string]domain.Goal, len(w.goals))
	for i, g := range w.goals {
		current[i] = g.ID
		byID[g.ID] = g
	}
	if err := domain.CheckPermutation(current, ids); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	out := make([]domain.Goal, len(ids))
	for i, id := range ids {
		g := byID[id]
		g.Position = i
		w.goals[i] = g
		out[i] = g.Clone()
	}
	w.mu.Unlock()

	w.persistLater("order:goals", LabelGoal, func(ctx context.Context) error {
		w.mu.Lock()
		order := make([]string, len(w.goals))
		for i, g := range w.goals {
			order[i] = g.ID
		}
		w.mu.Unlock()
		return w.stores.Goals.UpdateGoalPositions(ctx, w.userID, order)
	})
	return out, nil
}

func (w *Workspace) goalIndexLocked(id string) int {
	for i, g := range w.goals {
		if g.ID == id {
			return i
		}
	}
	return -1
}

// --- tactics ---

// TacticDraft is the input for a new tactic. Type defaults to weekly and
// AssignedWeeks to the whole cycle.
type TacticDraft struct {
	GoalID        string            `json:"goalId"`
	Name          string            `json:"name"`
	Type          domain.TacticType `json:"type"`
	AssignedWeeks []int             `json:"assignedWeeks"`
}

// AddTactic appends a tactic to a goal and inserts it immediately.
func (w *Workspace) AddTactic(ctx context.Context, d TacticDraft) (domain.Tactic, error) {
	kind := d.Type
	if kind == "" {
		kind = domain.TacticWeekly
	}
	if !kind.Valid() {
		return domain.Tactic{}, domain.Invalid("type", fmt.Sprintf("unknown tactic type %q", kind))
	}
	weeks := domain.AllWeeks()
	if d.AssignedWeeks != nil {
		var err error
		if weeks, err = domain.NormalizeWeeks(d.AssignedWeeks); err != nil {
			return domain.Tactic{}, err
		}
	}

	w.mu.Lock()
	if w.goalIndexLocked(d.GoalID) < 0 {
		w.mu.Unlock()
		return domain.Tactic{}, fmt.Errorf("goal %s: %w", d.GoalID, domain.ErrNotFound)
	}
	t := domain.Tactic{
		ID:            uuid.NewString(),
		GoalID:        d.GoalID,
		Name:          d.Name,
		Type:          kind,
		AssignedWeeks: weeks,
		Completions:   domain.Completions{},
		Position:      len(w.tactics),
	}
	w.tactics = append(w.tactics, t.Clone())
	w.mu.Unlock()

	err := w.persist(ctx, "tactic:"+t.ID, LabelTactic, func(ctx context.Context) error {
		return w.stores.Tactics.InsertTactic(ctx, w.userID, t)
	})
	return t, withAlert(err, AlertTacticCreate)
}

// Tactic returns a copy of the tactic with the given id.
func (w *Workspace) Tactic(id string) (domain.Tactic, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.tacticIndexLocked(id)
	if i < 0 {
		return domain.Tactic{}, false
	}
	return w.tactics[i].Clone(), true
}

// UpdateTactic applies a name or week assignment edit. The write is
// debounced.
func (w *Workspace) UpdateTactic(id string, p domain.TacticPatch) (domain.Tactic, error) {
	var weeks []int
	if p.AssignedWeeks != nil {
		var err error
		if weeks, err = domain.NormalizeWeeks(*p.AssignedWeeks); err != nil {
			return domain.Tactic{}, err
		}
	}

	t, err := w.mutateTactic(id, func(t *domain.Tactic) error {
		if p.Name != nil {
			t.Name = *p.Name
		}
		if p.AssignedWeeks != nil {
			t.AssignedWeeks = weeks
		}
		return nil
	})
	if err != nil {
		return domain.Tactic{}, err
	}
	w.persistLater("tactic:"+id, LabelTactic, w.writeTactic(id))
	return t, nil
}

// ChangeTacticType switches a tactic between daily and weekly, clearing its
// completions. Discarding recorded progress requires confirmed.
func (w *Workspace) ChangeTacticType(ctx context.Context, id string, kind domain.TacticType, confirmed bool) (domain.Tactic, error) {
	t, err := w.mutateTactic(id, func(t *domain.Tactic) error {
		changed, err := domain.ChangeType(*t, kind, confirmed)
		if err != nil {
			return err
		}
		*t = changed
		return nil
	})
	if err != nil {
		return domain.Tactic{}, err
	}
	return t, w.persist(ctx, "tactic:"+id, LabelTactic, w.writeTactic(id))
}

// SetCompletion records one week's completion value. The value's shape must
// match the tactic type.
func (w *Workspace) SetCompletion(ctx context.Context, id string, week int, c domain.Completion) (domain.Tactic, error) {
	if !domain.ValidWeek(week) {
		return domain.Tactic{}, domain.Invalid("week", "week must be between 1 and 12")
	}
	t, err := w.mutateTactic(id, func(t *domain.Tactic) error {
		switch v := c.(type) {
		case domain.DailyCompletion:
			if t.Type != domain.TacticDaily {
				return domain.Invalid("completion", "weekly tactics take a single boolean")
			}
			c = domain.NormalizeDaily(v)
		case domain.WeeklyCompletion:
			if t.Type != domain.TacticWeekly {
				return domain.Invalid("completion", "daily tactics take a list of seven booleans")
			}
		default:
			return domain.Invalid("completion", "missing completion value")
		}
		if t.Completions == nil {
			t.Completions = domain.Completions{}
		}
		t.Completions[week] = c
		return nil
	})
	if err != nil {
		return domain.Tactic{}, err
	}
	return t, w.persist(ctx, "tactic:"+id, LabelTactic, w.writeTactic(id))
}

// DeleteTactic removes a tactic.
func (w *Workspace) DeleteTactic(ctx context.Context, id string) error {
	w.mu.Lock()
	i := w.tacticIndexLocked(id)
	if i < 0 {
		w.mu.Unlock()
		return fmt.Errorf("tactic %s: %w", id, domain.ErrNotFound)
	}
	w.tactics = append(w.tactics[:i], w.tactics[i+1:]...)
	w.mu.Unlock()

	return w.persist(ctx, "tactic:"+id, LabelTactic, func(ctx context.Context) error {
		return w.stores.Tactics.DeleteTactic(ctx, w.userID, id)
	})
}

// ReorderTactics reorders the tactics of one goal. ids must be a permutation
// of that goal's tactic ids. The goal's tactics keep their slots in the
// global list, and positions of every tactic are persisted in one debounced
// batch.
func (w *Workspace) ReorderTactics(goalID string, ids []string) ([]domain.Tactic, error) {
	w.mu.Lock()
	if w.goalIndexLocked(goalID) < 0 {
		w.mu.Unlock()
		return nil, fmt.Errorf("goal %s: %w", goalID, domain.ErrNotFound)
	}
	var current []string
	byID := make(map[string]domain.Tactic)
	for _, t := range w.tactics {
		if t.GoalID == goalID {
			current = append(current, t.ID)
			byID[t.ID] = t
		}
	}
	if err := domain.CheckPermutation(current, ids); err != nil {
		w.mu.Unlock()
		return nil, err
	}
	next := 0
	var out []domain.Tactic
	for i, t := range w.tactics {
		if t.GoalID == goalID {
			t = byID[ids[next]]
			next++
		}
		t.Position = i
		w.tactics[i] = t
		if t.GoalID == goalID {
			out = append(out, t.Clone())
		}
	}
	w.mu.Unlock()

	w.persistLater("order:tactics", LabelTactic, func(ctx context.Context) error {
		w.mu.Lock()
		order := make([]string, len(w.tactics))
		for i, t := range w.tactics {
			order[i] = t.ID
		}
		w.mu.Unlock()
		return w.stores.Tactics.UpdateTacticPositions(ctx, w.userID, order)
	})
	return out, nil
}

func (w *Workspace) mutateTactic(id string, fn func(*domain.Tactic) error) (domain.Tactic, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	i := w.tacticIndexLocked(id)
	if i < 0 {
		return domain.Tactic{}, fmt.Errorf("tactic %s: %w", id, domain.ErrNotFound)
	}
	t := w.tactics[i].Clone()
	if err := fn(&t); err != nil {
		return w.tactics[i].Clone(), err
	}
	w.tactics[i] = t
	return t.Clone(), nil
}

func (w *Workspace) writeTactic(id string) func(context.Context) error {
	return func(ctx context.Context) error {
		latest, ok := w.Tactic(id)
		if !ok {
			return nil
		}
		return w.stores.Tactics.UpdateTactic(ctx, w.userID, latest)
	}
}

func (w *Workspace) tacticIndexLocked(id string) int {
	for i, t := range w.tactics {
		if t.ID == id {
			return i
		}
	}
	return -1
}

// --- measurements ---

// RecordMeasurement sets the value of a measurement for a week, replacing
// any earlier value.
func (w *Workspace) RecordMeasurement(ctx context.Context, m domain.MeasurementValue) error {
	if err := m.Validate(); err != nil {
		return err
	}

	w.mu.Lock()
	i := w.goalIndexLocked(m.GoalID)
	if i < 0 {
		w.mu.Unlock()
		return fmt.Errorf("goal %s: %w", m.GoalID, domain.ErrNotFound)
	}
	if _, ok := w.goals[i].Config(m.ConfigID); !ok {
		w.mu.Unlock()
		return domain.Invalid("configId", "unknown measurement for this goal")
	}
	replaced := false
	for j, old := range w.measurements {
		if old.ConfigID == m.ConfigID && old.WeekNum == m.WeekNum {
			w.measurements[j] = m
			replaced = true
			break
		}
	}
	if !replaced {
		w.measurements = append(w.measurements, m)
	}
	w.mu.Unlock()

	// Shares the goal's key so a cascade delete and this upsert never interleave.
	return w.persist(ctx, "goal:"+m.GoalID, LabelMeasurement, func(ctx context.Context) error {
		latest, ok := w.measurement(m.ConfigID, m.WeekNum)
		if !ok {
			return nil
		}
		return w.stores.Measurements.UpsertMeasurement(ctx, w.userID, latest)
	})
}

func (w *Workspace) measurement(configID string, week int) (domain.MeasurementValue, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, m := range w.measurements {
		if m.ConfigID == configID && m.WeekNum == week {
			return m, true
		}
	}
	return domain.MeasurementValue{}, false
}

// --- vision ---

// Vision returns the current vision text.
func (w *Workspace) Vision() domain.Vision {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.vision
}

// UpdateVision applies a partial edit. The write is debounced.
func (w *Workspace) UpdateVision(p domain.VisionPatch) domain.Vision {
	w.mu.Lock()
	w.vision = p.Apply(w.vision)
	v := w.vision
	w.mu.Unlock()

	w.persistLater("vision", LabelVision, func(ctx context.Context) error {
		return w.stores.Visions.UpsertVision(ctx, w.userID, w.Vision())
	})
	return v
}

// --- cycle ---

// Cycle returns the cycle with CurrentWeek derived from the clock.
func (w *Workspace) Cycle() domain.Cycle {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := w.cycle
	c.CurrentWeek = w.actualWeekLocked(w.now())
	return c
}

// ActualWeek returns the calendar week of the cycle at now.
func (w *Workspace) ActualWeek(now time.Time) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.actualWeekLocked(now)
}

func (w *Workspace) actualWeekLocked(now time.Time) int {
	return domain.ActualWeek(w.cycle.StartDate, now.In(w.loc))
}

// ViewWeek returns the week being viewed.
func (w *Workspace) ViewWeek() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.viewWeek
}

// SetViewWeek changes the viewed week. The cycle itself is not touched.
func (w *Workspace) SetViewWeek(week int) error {
	if !domain.ValidWeek(week) {
		return domain.Invalid("week", "week must be between 1 and 12")
	}
	w.mu.Lock()
	w.viewWeek = week
	w.mu.Unlock()
	return nil
}

// SetCycleStart moves the cycle start to the Monday of date's week and views
// the resulting current week.
func (w *Workspace) SetCycleStart(ctx context.Context, date time.Time) (domain.Cycle, error) {
	start := domain.SnapToMonday(civilDate(date, w.loc))
	return w.moveCycle(ctx, start, w.now(), 0)
}

// ResetCycle restarts the cycle at the Monday of now's week and views week 1.
// Completions and measurements are kept. The caller must confirm.
func (w *Workspace) ResetCycle(ctx context.Context, confirmed bool, now time.Time) (domain.Cycle, error) {
	if !confirmed {
		return w.Cycle(), domain.ErrConfirmationRequired
	}
	start := domain.SnapToMonday(now.In(w.loc))
	return w.moveCycle(ctx, start, now, 1)
}

// moveCycle sets a new start date. viewWeek 0 views the new actual week.
func (w *Workspace) moveCycle(ctx context.Context, start, now time.Time, viewWeek int) (domain.Cycle, error) {
	w.mu.Lock()
	w.cycle.StartDate = start
	w.cycle.CurrentWeek = w.actualWeekLocked(now)
	if viewWeek == 0 {
		viewWeek = w.cycle.CurrentWeek
	}
	w.viewWeek = viewWeek
	c := w.cycle
	w.mu.Unlock()

	err := w.persist(ctx, "cycle", LabelCycle, func(ctx context.Context) error {
		return w.stores.Cycles.UpdateCycle(ctx, w.userID, w.Cycle())
	})
	return c, err
}

// --- helpers ---

// keyedMutex serializes work per key. Entries live only while held or
// awaited.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}

func withAlert(err error, alert string) error {
	var we *WriteError
	if errors.As(err, &we) {
		we.Alert = alert
	}
	return err
}

func withConfigIDs(in []domain.MeasurementConfig) []domain.MeasurementConfig {
	out := make([]domain.MeasurementConfig, len(in))
	for i, c := range in {
		if strings.TrimSpace(c.ID) == "" {
			c.ID = uuid.NewString()
		}
		out[i] = c
	}
	return out
}

// civilDate reinterprets t's calendar date as midnight in loc.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func filter[T any](s []T, keep func(T) bool) []T {
	out := s[:0]
	for _, v := range s {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
