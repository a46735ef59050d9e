package app

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Workspaces owns the open workspace of every signed-in user.
type Workspaces struct {
	stores Stores
	opts   WorkspaceOptions

	mu     sync.Mutex
	byUser map[string]*Workspace
}

// NewWorkspaces creates an empty registry.
func NewWorkspaces(stores Stores, opts WorkspaceOptions) *Workspaces {
	return &Workspaces{
		stores: stores,
		opts:   opts.withDefaults(),
		byUser: make(map[string]*Workspace),
	}
}

// Get returns the user's workspace, creating and loading it on first use. A
// *LoadError is returned together with the partially loaded workspace.
func (r *Workspaces) Get(ctx context.Context, userID string) (*Workspace, error) {
	r.mu.Lock()
	ws, ok := r.byUser[userID]
	if !ok {
		ws = NewWorkspace(userID, r.stores, r.opts)
		r.byUser[userID] = ws
	}
	r.mu.Unlock()

	return ws, ws.Load(ctx)
}

// Close flushes and drops the user's workspace, if open.
func (r *Workspaces) Close(userID string) {
	r.mu.Lock()
	ws, ok := r.byUser[userID]
	delete(r.byUser, userID)
	r.mu.Unlock()

	if ok {
		ws.Close()
		r.opts.Logger.Info("workspace closed", zap.String("user", userID))
	}
}

// CloseAll flushes and drops every workspace.
func (r *Workspaces) CloseAll() {
	r.mu.Lock()
	open := r.byUser
	r.byUser = make(map[string]*Workspace)
	r.mu.Unlock()

	for _, ws := range open {
		ws.Close()
	}
}

// Open returns the number of open workspaces.
func (r *Workspaces) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byUser)
}

// Attach closes a user's workspace when they sign out. The returned func
// detaches the registry from the hub.
func (r *Workspaces) Attach(hub *SessionHub) func() {
	return hub.Subscribe(func(ev SessionEvent) {
		if ev.Kind == SessionSignedOut {
			r.Close(ev.User.ID)
		}
	})
}
