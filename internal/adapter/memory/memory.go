// Package memory implements an in-memory repository for development and testing.
package memory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"juhd/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu           sync.Mutex
	goals        map[string][]domain.Goal
	tactics      map[string][]domain.Tactic
	measurements map[string][]domain.MeasurementValue
	visions      map[string]domain.Vision
	cycles       map[string]domain.Cycle
	users        []*domain.User
	sessions     map[string]*domain.Session
	state        map[string]map[string]string
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		goals:        make(map[string][]domain.Goal),
		tactics:      make(map[string][]domain.Tactic),
		measurements: make(map[string][]domain.MeasurementValue),
		visions:      make(map[string]domain.Vision),
		cycles:       make(map[string]domain.Cycle),
		sessions:     make(map[string]*domain.Session),
		state:        make(map[string]map[string]string),
	}
}

// Ensure interfaces are met.
var _ domain.GoalRepository = (*DB)(nil)
var _ domain.TacticRepository = (*DB)(nil)
var _ domain.MeasurementRepository = (*DB)(nil)
var _ domain.VisionRepository = (*DB)(nil)
var _ domain.CycleRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.ClientStateStore = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- GoalRepository ---

// ListGoals returns the user's goals ordered by position.
func (db *DB) ListGoals(ctx context.Context, userID string) ([]domain.Goal, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Goal, 0, len(db.goals[userID]))
	for _, g := range db.goals[userID] {
		out = append(out, g.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// InsertGoal stores a new goal.
func (db *DB) InsertGoal(ctx context.Context, userID string, g domain.Goal) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, old := range db.goals[userID] {
		if old.ID == g.ID {
			return errors.New("duplicate goal id")
		}
	}
	db.goals[userID] = append(db.goals[userID], g.Clone())
	return nil
}

// UpdateGoal replaces name, description and measurement configs.
func (db *DB) UpdateGoal(ctx context.Context, userID string, g domain.Goal) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, old := range db.goals[userID] {
		if old.ID == g.ID {
			next := g.Clone()
			next.Position = old.Position
			db.goals[userID][i] = next
			return nil
		}
	}
	return nil
}

// DeleteGoal deletes a goal. Deleting a missing goal is not an error.
func (db *DB) DeleteGoal(ctx context.Context, userID, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.goals[userID] = removeWhere(db.goals[userID], func(g domain.Goal) bool { return g.ID == id })
	return nil
}

// UpdateGoalPositions sets each goal's position to its index in ids.
func (db *DB) UpdateGoalPositions(ctx context.Context, userID string, ids []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	pos := indexOf(ids)
	for i, g := range db.goals[userID] {
		if p, ok := pos[g.ID]; ok {
			db.goals[userID][i].Position = p
		}
	}
	return nil
}

// --- TacticRepository ---

// ListTactics returns the user's tactics ordered by position.
func (db *DB) ListTactics(ctx context.Context, userID string) ([]domain.Tactic, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	out := make([]domain.Tactic, 0, len(db.tactics[userID]))
	for _, t := range db.tactics[userID] {
		out = append(out, t.Clone())
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out, nil
}

// InsertTactic stores a new tactic.
func (db *DB) InsertTactic(ctx context.Context, userID string, t domain.Tactic) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, old := range db.tactics[userID] {
		if old.ID == t.ID {
			return errors.New("duplicate tactic id")
		}
	}
	db.tactics[userID] = append(db.tactics[userID], t.Clone())
	return nil
}

// UpdateTactic replaces every field but position.
func (db *DB) UpdateTactic(ctx context.Context, userID string, t domain.Tactic) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, old := range db.tactics[userID] {
		if old.ID == t.ID {
			next := t.Clone()
			next.Position = old.Position
			db.tactics[userID][i] = next
			return nil
		}
	}
	return nil
}

// DeleteTactic deletes a tactic.
func (db *DB) DeleteTactic(ctx context.Context, userID, id string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.tactics[userID] = removeWhere(db.tactics[userID], func(t domain.Tactic) bool { return t.ID == id })
	return nil
}

// DeleteTacticsByGoal deletes every tactic of a goal.
func (db *DB) DeleteTacticsByGoal(ctx context.Context, userID, goalID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.tactics[userID] = removeWhere(db.tactics[userID], func(t domain.Tactic) bool { return t.GoalID == goalID })
	return nil
}

// UpdateTacticPositions sets each tactic's position to its index in ids.
func (db *DB) UpdateTacticPositions(ctx context.Context, userID string, ids []string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	pos := indexOf(ids)
	for i, t := range db.tactics[userID] {
		if p, ok := pos[t.ID]; ok {
			db.tactics[userID][i].Position = p
		}
	}
	return nil
}

// --- MeasurementRepository ---

// ListMeasurements returns every measurement value of the user.
func (db *DB) ListMeasurements(ctx context.Context, userID string) ([]domain.MeasurementValue, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]domain.MeasurementValue{}, db.measurements[userID]...), nil
}

// UpsertMeasurement inserts or replaces the value for (config, week).
func (db *DB) UpsertMeasurement(ctx context.Context, userID string, m domain.MeasurementValue) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for i, old := range db.measurements[userID] {
		if old.ConfigID == m.ConfigID && old.WeekNum == m.WeekNum {
			db.measurements[userID][i] = m
			return nil
		}
	}
	db.measurements[userID] = append(db.measurements[userID], m)
	return nil
}

// DeleteMeasurementsByGoal deletes every measurement value of a goal.
func (db *DB) DeleteMeasurementsByGoal(ctx context.Context, userID, goalID string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.measurements[userID] = removeWhere(db.measurements[userID], func(m domain.MeasurementValue) bool { return m.GoalID == goalID })
	return nil
}

// --- VisionRepository ---

// GetVision returns the user's vision, or nil when none was saved.
func (db *DB) GetVision(ctx context.Context, userID string) (*domain.Vision, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	v, ok := db.visions[userID]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

// UpsertVision stores the user's vision.
func (db *DB) UpsertVision(ctx context.Context, userID string, v domain.Vision) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.visions[userID] = v
	return nil
}

// --- CycleRepository ---

// GetCycle returns the user's cycle, or nil when none exists.
func (db *DB) GetCycle(ctx context.Context, userID string) (*domain.Cycle, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	c, ok := db.cycles[userID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

// InsertCycle creates the user's cycle.
func (db *DB) InsertCycle(ctx context.Context, userID string, c domain.Cycle) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, ok := db.cycles[userID]; ok {
		return errors.New("cycle already exists")
	}
	db.cycles[userID] = c
	return nil
}

// UpdateCycle replaces the user's cycle, creating it when missing.
func (db *DB) UpdateCycle(ctx context.Context, userID string, c domain.Cycle) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if old, ok := db.cycles[userID]; ok && c.ID == "" {
		c.ID = old.ID
	}
	db.cycles[userID] = c
	return nil
}

// --- UserRepository ---

// GetByEmail retrieves a user by email, case-insensitively.
func (db *DB) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	// Return nil if not found
	return nil, nil
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, u domain.User) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, existing := range db.users {
		if strings.EqualFold(existing.Email, u.Email) {
			return nil, domain.ErrEmailTaken
		}
	}

	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	stored := u
	db.users = append(db.users, &stored)
	return &u, nil
}

// ConfirmEmail marks the user's email as verified.
func (db *DB) ConfirmEmail(ctx context.Context, id string, at time.Time) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			confirmed := at.UTC()
			u.EmailConfirmedAt = &confirmed
			return nil
		}
	}
	return domain.ErrUserNotFound
}

// --- ClientStateStore ---

// GetState returns a device-scoped value.
func (db *DB) GetState(ctx context.Context, deviceID, key string) (string, bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	v, ok := db.state[deviceID][key]
	return v, ok, nil
}

// SetState stores a device-scoped value.
func (db *DB) SetState(ctx context.Context, deviceID, key, value string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.state[deviceID] == nil {
		db.state[deviceID] = make(map[string]string)
	}
	db.state[deviceID][key] = value
	return nil
}

// ClearState removes a device-scoped value.
func (db *DB) ClearState(ctx context.Context, deviceID, key string) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	delete(db.state[deviceID], key)
	return nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID, token string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token. Expiry is checked by the caller.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if s, ok := r.db.sessions[token]; ok {
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}

func indexOf(ids []string) map[string]int {
	pos := make(map[string]int, len(ids))
	for i, id := range ids {
		pos[id] = i
	}
	return pos
}

func removeWhere[T any](s []T, drop func(T) bool) []T {
	out := s[:0]
	for _, v := range s {
		if !drop(v) {
			out = append(out, v)
		}
	}
	return out
}
