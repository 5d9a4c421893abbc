package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/errs"
)

// Coordinator runs exactly one automation pass. It never retries and never
// returns partial output.
type Coordinator struct {
	agent  output.AutomationAgent
	logger output.LoggerPort
}

func NewCoordinator(agent output.AutomationAgent, logger output.LoggerPort) *Coordinator {
	return &Coordinator{agent: agent, logger: logger}
}

func (c *Coordinator) Run(ctx context.Context, task string, browser output.BrowserPort, maxSteps int) (string, error) {
	if browser == nil {
		return "", fmt.Errorf("%w: %v", errs.ErrExtractionFailed, errs.ErrSessionNotStarted)
	}

	start := time.Now()
	c.logger.Info("Extraction started", "max_steps", maxSteps)

	text, err := c.agent.Extract(ctx, task, browser, maxSteps)
	elapsed := time.Since(start)

	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.Canceled) {
			c.logger.Warn("Extraction cancelled", "elapsed", elapsed)
			return "", fmt.Errorf("%w: %v", errs.ErrExtractionCancelled, err)
		}
		c.logger.Error("Extraction failed", "error", err, "elapsed", elapsed)
		return "", fmt.Errorf("%w: %w", errs.ErrExtractionFailed, err)
	}

	c.logger.Info("Extraction finished", "elapsed", elapsed, "answer_len", len(text))
	return text, nil
}
