package output

import "context"

// AutomationAgent drives the browser from a natural-language task and
// returns its final free-form answer.
type AutomationAgent interface {
	Extract(ctx context.Context, task string, browser BrowserPort, maxSteps int) (string, error)
}
