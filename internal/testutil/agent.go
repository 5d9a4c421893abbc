package testutil

import (
	"context"
	"sync"

	"portal-session/internal/application/port/output"
)

var _ output.AutomationAgent = (*StubAgent)(nil)

// StubAgent returns a canned answer. When Block is set it waits for the
// channel to close or the context to end before answering.
type StubAgent struct {
	mu sync.Mutex

	Answer string
	Err    error
	Block  chan struct{}

	Calls    int
	Tasks    []string
	MaxSteps []int
	started  chan struct{}
}

func (a *StubAgent) Extract(ctx context.Context, task string, _ output.BrowserPort, maxSteps int) (string, error) {
	a.mu.Lock()
	a.Calls++
	a.Tasks = append(a.Tasks, task)
	a.MaxSteps = append(a.MaxSteps, maxSteps)
	block := a.Block
	if a.started != nil {
		close(a.started)
		a.started = nil
	}
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return a.Answer, a.Err
}

// Started returns a channel closed when the next Extract call begins.
func (a *StubAgent) Started() <-chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	ch := make(chan struct{})
	a.started = ch
	return ch
}

func (a *StubAgent) CallCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.Calls
}
