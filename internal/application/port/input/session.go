package input

import (
	"context"

	"portal-session/internal/domain/entity"
)

// SessionController is the state machine of one remote browser session.
type SessionController interface {
	Start(ctx context.Context) error
	PollForAuth(ctx context.Context) bool
	Extract(ctx context.Context) (*entity.ScheduleRecord, error)
	HandleClick(ctx context.Context, xNorm, yNorm float64)
	HandleKeyboard(ctx context.Context, in entity.KeyInput)
	Screenshot(ctx context.Context) (*entity.Screenshot, error)
	Snapshot() entity.Snapshot
	Close()
}

// SessionRegistry holds the single active session.
type SessionRegistry interface {
	Start(ctx context.Context) (entity.Snapshot, error)
	Current() (SessionController, bool)
	Close()
}
