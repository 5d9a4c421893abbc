package executor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
	"portal-session/internal/domain/errs"
	"portal-session/internal/infrastructure/logger"
	"portal-session/internal/testutil"
)

type scriptedLLM struct {
	mu        sync.Mutex
	responses []entity.Message
	err       error
	requests  []output.ChatRequest
}

func (s *scriptedLLM) Chat(_ context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	if len(s.responses) == 0 {
		return &output.ChatResponse{Message: entity.Message{
			Role:      entity.RoleAssistant,
			ToolCalls: []entity.ToolCall{{ID: "loop", Name: "browser_extract_text", Arguments: "{}"}},
		}}, nil
	}
	msg := s.responses[0]
	s.responses = s.responses[1:]
	return &output.ChatResponse{Message: msg}, nil
}

func toolCall(id, name, args string) entity.Message {
	return entity.Message{
		Role:      entity.RoleAssistant,
		ToolCalls: []entity.ToolCall{{ID: id, Name: name, Arguments: args}},
	}
}

func answer(text string) entity.Message {
	return entity.Message{Role: entity.RoleAssistant, Content: text}
}

func TestExtract_ToolThenAnswer(t *testing.T) {
	llm := &scriptedLLM{responses: []entity.Message{
		toolCall("1", "browser_navigate", `{"url":"https://buckeyelink.osu.edu/psc/schedule"}`),
		toolCall("2", "browser_extract_text", `{}`),
		answer(" {\"courses\":[]} "),
	}}
	browser := testutil.NewFakeBrowser("https://buckeyelink.osu.edu/psc/schedule")
	browser.Text = "CSE 2221 Software I"
	agent := New(llm, logger.NewNop(), "system")

	out, err := agent.Extract(context.Background(), "read my schedule", browser, 30)

	require.NoError(t, err)
	assert.Equal(t, `{"courses":[]}`, out)
	assert.Equal(t, []string{"https://buckeyelink.osu.edu/psc/schedule"}, browser.Navigated)

	require.Len(t, llm.requests, 3)
	first := llm.requests[0]
	assert.Equal(t, entity.RoleSystem, first.Messages[0].Role)
	assert.Equal(t, "read my schedule", first.Messages[1].Content)
	assert.Len(t, first.Tools, 7)

	last := llm.requests[2].Messages
	obs := last[len(last)-1]
	assert.Equal(t, entity.RoleTool, obs.Role)
	assert.Equal(t, "2", obs.ToolCallID)
	assert.Equal(t, "CSE 2221 Software I", obs.Content)
}

func TestExtract_StepBudget(t *testing.T) {
	llm := &scriptedLLM{}
	agent := New(llm, logger.NewNop(), "system")

	_, err := agent.Extract(context.Background(), "task", testutil.NewFakeBrowser(), 3)

	assert.ErrorIs(t, err, errs.ErrStepBudgetExceeded)
	assert.Len(t, llm.requests, 3)
}

func TestExtract_NonPositiveBudget(t *testing.T) {
	llm := &scriptedLLM{}
	agent := New(llm, logger.NewNop(), "system")

	_, err := agent.Extract(context.Background(), "task", testutil.NewFakeBrowser(), 0)

	assert.ErrorIs(t, err, errs.ErrStepBudgetExceeded)
	assert.Empty(t, llm.requests)
}

func TestExtract_LLMError(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("rate limited")}
	agent := New(llm, logger.NewNop(), "system")

	_, err := agent.Extract(context.Background(), "task", testutil.NewFakeBrowser(), 3)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
}

func TestExtract_UnknownToolAndToolErrorBecomeObservations(t *testing.T) {
	llm := &scriptedLLM{responses: []entity.Message{
		toolCall("1", "browser_teleport", `{}`),
		toolCall("2", "browser_click", `{"selector":"#missing"}`),
		answer("done"),
	}}
	browser := testutil.NewFakeBrowser()
	browser.ClickErr = errors.New("element not found")
	agent := New(llm, logger.NewNop(), "system")

	out, err := agent.Extract(context.Background(), "task", browser, 5)

	require.NoError(t, err)
	assert.Equal(t, "done", out)

	msgs := llm.requests[2].Messages
	assert.Contains(t, msgs[len(msgs)-3].Content, "unknown tool 'browser_teleport'")
	assert.Equal(t, "Error: element not found", msgs[len(msgs)-1].Content)
}

func TestExtract_TruncatesLongObservations(t *testing.T) {
	llm := &scriptedLLM{responses: []entity.Message{
		toolCall("1", "browser_page_html", `{}`),
		answer("ok"),
	}}
	browser := testutil.NewFakeBrowser()
	browser.HTML = strings.Repeat("a", maxObservationLen+500)
	agent := New(llm, logger.NewNop(), "system")

	_, err := agent.Extract(context.Background(), "task", browser, 5)
	require.NoError(t, err)

	msgs := llm.requests[1].Messages
	obs := msgs[len(msgs)-1].Content
	assert.True(t, strings.HasSuffix(obs, "... (truncated)"))
	assert.Less(t, len(obs), maxObservationLen+100)
}

func TestTruncateObservation_KeepsRunesWhole(t *testing.T) {
	// One ASCII byte shifts every two-byte rune so the byte cap lands mid-rune.
	text := "a" + strings.Repeat("é", maxObservationLen)

	out := truncateObservation(text)

	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasSuffix(out, "\n... (truncated)"))
	body := strings.TrimSuffix(out, "\n... (truncated)")
	assert.Equal(t, maxObservationLen-1, len(body))
	assert.Equal(t, "short", truncateObservation("short"))
}

func TestExtract_StopsOnCancelledContext(t *testing.T) {
	llm := &scriptedLLM{}
	agent := New(llm, logger.NewNop(), "system")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := agent.Extract(ctx, "task", testutil.NewFakeBrowser(), 5)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, llm.requests)
}

func TestExtract_CustomTools(t *testing.T) {
	llm := &scriptedLLM{responses: []entity.Message{answer("x")}}
	agent := New(llm, logger.NewNop(), "system").WithTools(func(output.BrowserPort, output.LoggerPort) []output.ToolPort {
		return nil
	})

	_, err := agent.Extract(context.Background(), "task", testutil.NewFakeBrowser(), 1)

	require.NoError(t, err)
	assert.Empty(t, llm.requests[0].Tools)
}
