package executor

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"portal-session/internal/adapter/tool"
	"portal-session/internal/application/port/output"
	"portal-session/internal/application/service"
	"portal-session/internal/domain/entity"
	"portal-session/internal/domain/errs"
)

var _ output.AutomationAgent = (*Agent)(nil)

const maxObservationLen = 20000

// ToolsFactory builds the tool set for one browser page.
type ToolsFactory func(browser output.BrowserPort, logger output.LoggerPort) []output.ToolPort

// Agent is a ReAct loop: the model either calls browser tools or answers.
type Agent struct {
	llm          output.LLMPort
	logger       output.LoggerPort
	systemPrompt string
	tools        ToolsFactory
}

func New(llm output.LLMPort, logger output.LoggerPort, systemPrompt string) *Agent {
	return &Agent{
		llm:          llm,
		logger:       logger,
		systemPrompt: systemPrompt,
		tools:        tool.BrowserTools,
	}
}

// WithTools replaces the tool set, mostly for tests.
func (a *Agent) WithTools(f ToolsFactory) *Agent {
	a.tools = f
	return a
}

func (a *Agent) Extract(ctx context.Context, task string, browser output.BrowserPort, maxSteps int) (string, error) {
	if maxSteps <= 0 {
		return "", fmt.Errorf("%w: max steps must be positive, got %d", errs.ErrStepBudgetExceeded, maxSteps)
	}

	registry := service.NewToolRegistry()
	for _, t := range a.tools(browser, a.logger) {
		registry.Register(t)
	}
	toolDefs := registry.Definitions()

	messages := []entity.Message{
		{Role: entity.RoleSystem, Content: a.systemPrompt},
		{Role: entity.RoleUser, Content: task},
	}

	for step := 1; step <= maxSteps; step++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		a.logger.Debug("Starting step", "step", step, "max_steps", maxSteps)

		resp, err := a.llm.Chat(ctx, output.ChatRequest{
			Messages:    messages,
			Tools:       toolDefs,
			Temperature: 0.0,
		})
		if err != nil {
			return "", fmt.Errorf("llm request failed: %w", err)
		}

		messages = append(messages, resp.Message)

		if len(resp.Message.ToolCalls) == 0 {
			answer := strings.TrimSpace(resp.Message.Content)
			a.logger.Info("Agent answered", "steps", step, "answer_len", len(answer))
			return answer, nil
		}

		for _, tc := range resp.Message.ToolCalls {
			observation := a.executeTool(ctx, registry, tc)

			messages = append(messages, entity.Message{
				Role:       entity.RoleTool,
				ToolCallID: tc.ID,
				Name:       tc.Name,
				Content:    observation,
			})
		}
	}

	return "", fmt.Errorf("%w: no answer after %d steps", errs.ErrStepBudgetExceeded, maxSteps)
}

func (a *Agent) executeTool(ctx context.Context, registry output.ToolRegistry, tc entity.ToolCall) string {
	t, ok := registry.Get(entity.ToolName(tc.Name))
	if !ok {
		a.logger.Warn("Unknown tool called", "name", tc.Name)
		return fmt.Sprintf("Error: unknown tool '%s'", tc.Name)
	}

	a.logger.Info("Executing tool", "name", tc.Name, "args", tc.Arguments)

	result, err := t.Execute(ctx, tc.Arguments)
	if err != nil {
		a.logger.Error("Tool execution failed", "name", tc.Name, "error", err)
		return "Error: " + err.Error()
	}

	result = truncateObservation(result)

	a.logger.Debug("Tool completed", "name", tc.Name, "resultLen", len(result))
	return result
}

// truncateObservation caps s at maxObservationLen bytes without splitting a rune.
func truncateObservation(s string) string {
	if len(s) <= maxObservationLen {
		return s
	}
	cut := maxObservationLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "\n... (truncated)"
}
