package session

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"portal-session/internal/application/port/input"
	"portal-session/internal/domain/entity"
)

var _ input.SessionRegistry = (*Registry)(nil)

// Registry holds at most one live session. Starting a new one closes the
// previous session, releasing its browser, before the next launch begins.
type Registry struct {
	cfg  Config
	deps Deps

	startMu sync.Mutex

	mu      sync.Mutex
	current *Controller
	newID   func() string
}

func NewRegistry(cfg Config, deps Deps) *Registry {
	return &Registry{
		cfg:   cfg,
		deps:  deps,
		newID: uuid.NewString,
	}
}

func (r *Registry) Start(ctx context.Context) (entity.Snapshot, error) {
	r.startMu.Lock()
	defer r.startMu.Unlock()

	r.mu.Lock()
	prev := r.current
	r.current = nil
	r.mu.Unlock()

	if prev != nil {
		r.deps.Logger.Info("Closing existing session before starting new one", "session_id", prev.ID())
		prev.Close()
	}

	c := NewController(r.newID(), r.cfg, r.deps)

	r.mu.Lock()
	r.current = c
	r.mu.Unlock()

	err := c.Start(ctx)
	return c.Snapshot(), err
}

// Current returns the active session, if any.
func (r *Registry) Current() (input.SessionController, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return nil, false
	}
	return r.current, true
}

func (r *Registry) Close() {
	r.mu.Lock()
	c := r.current
	r.current = nil
	r.mu.Unlock()

	if c != nil {
		c.Close()
	}
}
