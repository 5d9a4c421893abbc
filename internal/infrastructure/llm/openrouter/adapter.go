package openrouter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
)

var _ output.LLMPort = (*OpenRouterAdapter)(nil)

const DefaultBaseURL = "https://openrouter.ai/api/v1"

var ErrEmptyResponse = errors.New("no choices in response")

type OpenRouterAdapter struct {
	client *openai.Client
	model  string
	logger output.LoggerPort
}

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
	Logger  output.LoggerPort
}

func DefaultConfig(apiKey, model string) Config {
	return Config{
		APIKey:  apiKey,
		Model:   model,
		BaseURL: DefaultBaseURL,
		Timeout: 2 * time.Minute,
	}
}

// loggingTransport records one line per upstream call; bodies are not logged
// because prompts carry the student's schedule.
type loggingTransport struct {
	base   http.RoundTripper
	logger output.LoggerPort
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.base.RoundTrip(req)
	if err != nil {
		t.logger.Warn("LLM request failed", "url", req.URL.String(), "error", err, "elapsed", time.Since(start))
		return nil, err
	}
	t.logger.Debug("LLM request",
		"method", req.Method,
		"url", req.URL.String(),
		"status", resp.StatusCode,
		"elapsed", time.Since(start),
	)
	return resp, nil
}

func NewOpenRouterAdapter(cfg Config) *OpenRouterAdapter {
	config := openai.DefaultConfig(cfg.APIKey)
	config.BaseURL = cfg.BaseURL
	if config.BaseURL == "" {
		config.BaseURL = DefaultBaseURL
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	if cfg.Logger != nil {
		httpClient.Transport = &loggingTransport{base: http.DefaultTransport, logger: cfg.Logger}
	}
	config.HTTPClient = httpClient

	return &OpenRouterAdapter{
		client: openai.NewClientWithConfig(config),
		model:  cfg.Model,
		logger: cfg.Logger,
	}
}

func (a *OpenRouterAdapter) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	request := openai.ChatCompletionRequest{
		Model:       a.model,
		Messages:    convertMessages(req.Messages),
		Temperature: req.Temperature,
	}
	if len(req.Tools) > 0 {
		request.Tools = convertTools(req.Tools)
		request.ToolChoice = "auto"
	}

	resp, err := a.client.CreateChatCompletion(ctx, request)
	if err != nil {
		return nil, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, ErrEmptyResponse
	}

	if a.logger != nil {
		a.logger.Debug("Chat completion",
			"model", resp.Model,
			"prompt_tokens", resp.Usage.PromptTokens,
			"completion_tokens", resp.Usage.CompletionTokens,
			"finish_reason", resp.Choices[0].FinishReason,
		)
	}

	return &output.ChatResponse{
		Message: convertResponseMessage(resp.Choices[0].Message),
	}, nil
}

func convertMessages(messages []entity.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, msg := range messages {
		oaiMsg := openai.ChatCompletionMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
			Name:       msg.Name,
		}

		// Earlier reasoning is replayed as text so the model keeps its plan.
		if len(msg.ContentBlocks) > 0 {
			var sb strings.Builder
			for _, block := range msg.ContentBlocks {
				switch {
				case block.Type == entity.ContentTypeThinking && block.Thinking != "":
					sb.WriteString("<thinking>\n" + block.Thinking + "\n</thinking>\n")
				case block.Type == entity.ContentTypeText && block.Text != "":
					sb.WriteString(block.Text)
				}
			}
			if sb.Len() > 0 {
				oaiMsg.Content = sb.String()
			}
		}

		for _, tc := range msg.ToolCalls {
			oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}

		result = append(result, oaiMsg)
	}
	return result
}

func convertTools(tools []entity.ToolDefinition) []openai.Tool {
	result := make([]openai.Tool, 0, len(tools))
	for _, t := range tools {
		result = append(result, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.Parameters,
			},
		})
	}
	return result
}

func convertResponseMessage(msg openai.ChatCompletionMessage) entity.Message {
	result := entity.Message{
		Role:    entity.MessageRole(msg.Role),
		Content: msg.Content,
	}
	if result.Role == "" {
		result.Role = entity.RoleAssistant
	}

	if msg.ReasoningContent != "" {
		result.ContentBlocks = append(result.ContentBlocks, entity.ContentBlock{
			Type:     entity.ContentTypeThinking,
			Thinking: msg.ReasoningContent,
		})
	}
	if msg.Content != "" {
		result.ContentBlocks = append(result.ContentBlocks, entity.ContentBlock{
			Type: entity.ContentTypeText,
			Text: msg.Content,
		})
	}

	for _, tc := range msg.ToolCalls {
		toolCall := entity.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		}
		result.ToolCalls = append(result.ToolCalls, toolCall)
		result.ContentBlocks = append(result.ContentBlocks, entity.ContentBlock{
			Type:    entity.ContentTypeToolUse,
			ToolUse: &toolCall,
		})
	}

	return result
}
