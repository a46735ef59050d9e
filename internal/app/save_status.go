package app

import (
	"sync"
	"time"
)

// SaveState is the visible state of the save indicator.
type SaveState string

const (
	SaveIdle   SaveState = "idle"
	SaveSaving SaveState = "saving"
	SaveSaved  SaveState = "saved"
	SaveFailed SaveState = "error"
)

const (
	savedVisibleFor = 3 * time.Second
	errorVisibleFor = 5 * time.Second
)

// SaveStatus is what the client renders.
type SaveStatus struct {
	State SaveState `json:"state"`
	Label string    `json:"label,omitempty"`
}

// SaveTracker aggregates outstanding writes into a single indicator.
type SaveTracker struct {
	now func() time.Time

	mu       sync.Mutex
	inFlight int
	savedAt  time.Time
	errLabel string
	errAt    time.Time
}

// NewSaveTracker creates a tracker using now as its clock.
func NewSaveTracker(now func() time.Time) *SaveTracker {
	if now == nil {
		now = time.Now
	}
	return &SaveTracker{now: now}
}

// Begin records the start of a write and clears any previous failure.
func (t *SaveTracker) Begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight++
	t.errLabel = ""
}

// End records the outcome of a write started with Begin. label names the
// field group shown next to a failure, e.g. "Goal".
func (t *SaveTracker) End(label string, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight > 0 {
		t.inFlight--
	}
	if err != nil {
		t.errLabel = label
		t.errAt = t.now()
		return
	}
	t.savedAt = t.now()
}

// Status returns the current indicator state.
func (t *SaveTracker) Status() SaveStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	switch {
	case t.inFlight > 0:
		return SaveStatus{State: SaveSaving}
	case t.errLabel != "" && now.Sub(t.errAt) < errorVisibleFor:
		return SaveStatus{State: SaveFailed, Label: t.errLabel}
	case !t.savedAt.IsZero() && now.Sub(t.savedAt) < savedVisibleFor:
		return SaveStatus{State: SaveSaved}
	}
	return SaveStatus{State: SaveIdle}
}
