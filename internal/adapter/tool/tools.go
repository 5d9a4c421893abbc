package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
)

var (
	_ output.ToolPort = (*NavigateTool)(nil)
	_ output.ToolPort = (*ClickTool)(nil)
	_ output.ToolPort = (*FillTool)(nil)
	_ output.ToolPort = (*ScrollTool)(nil)
	_ output.ToolPort = (*PressKeyTool)(nil)
	_ output.ToolPort = (*ExtractTextTool)(nil)
	_ output.ToolPort = (*PageHTMLTool)(nil)
)

// BrowserTools returns the full tool set bound to one browser page.
func BrowserTools(browser output.BrowserPort, logger output.LoggerPort) []output.ToolPort {
	return []output.ToolPort{
		NewNavigateTool(browser, logger),
		NewClickTool(browser, logger),
		NewFillTool(browser, logger),
		NewScrollTool(browser, logger),
		NewPressKeyTool(browser, logger),
		NewExtractTextTool(browser, logger),
		NewPageHTMLTool(browser, logger),
	}
}

func decodeArgs(args string, dst any) error {
	if strings.TrimSpace(args) == "" {
		args = "{}"
	}
	if err := json.Unmarshal([]byte(args), dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func objectSchema(properties map[string]interface{}, required ...string) map[string]interface{} {
	if required == nil {
		required = []string{}
	}
	return map[string]interface{}{
		"type":       "object",
		"properties": properties,
		"required":   required,
	}
}

func stringProp(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": description,
	}
}

type NavigateTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewNavigateTool(browser output.BrowserPort, logger output.LoggerPort) *NavigateTool {
	return &NavigateTool{browser: browser, logger: logger}
}

func (t *NavigateTool) Name() entity.ToolName { return entity.ToolBrowserNavigate }
func (t *NavigateTool) Description() string {
	return "Open a URL in the current tab. Use only for pages inside the portal."
}
func (t *NavigateTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"url": stringProp("Absolute URL to open"),
	}, "url")
}

func (t *NavigateTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		URL string `json:"url"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if strings.TrimSpace(input.URL) == "" {
		return "", fmt.Errorf("url is required")
	}
	if err := t.browser.Navigate(ctx, input.URL); err != nil {
		return "", err
	}
	current, err := t.browser.CurrentURL(ctx)
	if err != nil {
		t.logger.Warn("Failed to read URL after navigation", "error", err)
		current = input.URL
	}
	return fmt.Sprintf("Navigated to %s", current), nil
}

type ClickTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewClickTool(browser output.BrowserPort, logger output.LoggerPort) *ClickTool {
	return &ClickTool{browser: browser, logger: logger}
}

func (t *ClickTool) Name() entity.ToolName { return entity.ToolBrowserClick }
func (t *ClickTool) Description() string   { return "Click an element by CSS or XPath selector" }
func (t *ClickTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"selector": stringProp("CSS selector, or XPath starting with / or ("),
	}, "selector")
}

func (t *ClickTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Selector string `json:"selector"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if err := t.browser.Click(ctx, input.Selector); err != nil {
		return "", err
	}
	return fmt.Sprintf("Clicked %s", input.Selector), nil
}

type FillTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewFillTool(browser output.BrowserPort, logger output.LoggerPort) *FillTool {
	return &FillTool{browser: browser, logger: logger}
}

func (t *FillTool) Name() entity.ToolName { return entity.ToolBrowserFill }
func (t *FillTool) Description() string   { return "Replace the value of an input field" }
func (t *FillTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"selector": stringProp("CSS selector of the input"),
		"text":     stringProp("Text to enter"),
	}, "selector", "text")
}

func (t *FillTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Selector string `json:"selector"`
		Text     string `json:"text"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if err := t.browser.Fill(ctx, input.Selector, input.Text); err != nil {
		return "", err
	}
	return fmt.Sprintf("Filled '%s'", input.Selector), nil
}

var scrollDirections = []string{"up", "down", "top", "bottom"}

type ScrollTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewScrollTool(browser output.BrowserPort, logger output.LoggerPort) *ScrollTool {
	return &ScrollTool{browser: browser, logger: logger}
}

func (t *ScrollTool) Name() entity.ToolName { return entity.ToolBrowserScroll }
func (t *ScrollTool) Description() string   { return "Scroll the page" }
func (t *ScrollTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"direction": map[string]interface{}{
			"type":        "string",
			"enum":        scrollDirections,
			"description": "Scroll direction",
		},
	}, "direction")
}

func (t *ScrollTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Direction string `json:"direction"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	dir := strings.ToLower(strings.TrimSpace(input.Direction))
	if !contains(scrollDirections, dir) {
		return "", fmt.Errorf("unknown direction %q", input.Direction)
	}
	if err := t.browser.Scroll(ctx, dir); err != nil {
		return "", err
	}
	return fmt.Sprintf("Scrolled %s", dir), nil
}

type PressKeyTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewPressKeyTool(browser output.BrowserPort, logger output.LoggerPort) *PressKeyTool {
	return &PressKeyTool{browser: browser, logger: logger}
}

func (t *PressKeyTool) Name() entity.ToolName { return entity.ToolBrowserPressKey }
func (t *PressKeyTool) Description() string {
	return "Press a named key (Enter, Tab, Escape, ArrowDown, ...) on the focused element"
}
func (t *PressKeyTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{
		"key": stringProp("Key name"),
	}, "key")
}

func (t *PressKeyTool) Execute(ctx context.Context, args string) (string, error) {
	var input struct {
		Key string `json:"key"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return "", err
	}
	if input.Key == "" {
		input.Key = "Enter"
	}
	if err := t.browser.Press(ctx, input.Key); err != nil {
		return "", err
	}
	return fmt.Sprintf("Pressed %s", input.Key), nil
}

type ExtractTextTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewExtractTextTool(browser output.BrowserPort, logger output.LoggerPort) *ExtractTextTool {
	return &ExtractTextTool{browser: browser, logger: logger}
}

func (t *ExtractTextTool) Name() entity.ToolName { return entity.ToolBrowserExtractText }
func (t *ExtractTextTool) Description() string   { return "Return the visible text of the page" }
func (t *ExtractTextTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *ExtractTextTool) Execute(ctx context.Context, _ string) (string, error) {
	text, err := t.browser.GetPageText(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "(page has no visible text)", nil
	}
	return text, nil
}

type PageHTMLTool struct {
	browser output.BrowserPort
	logger  output.LoggerPort
}

func NewPageHTMLTool(browser output.BrowserPort, logger output.LoggerPort) *PageHTMLTool {
	return &PageHTMLTool{browser: browser, logger: logger}
}

func (t *PageHTMLTool) Name() entity.ToolName { return entity.ToolBrowserPageHTML }
func (t *PageHTMLTool) Description() string {
	return "Return a cleaned HTML outline of the page with scripts and styles removed"
}
func (t *PageHTMLTool) Parameters() map[string]interface{} {
	return objectSchema(map[string]interface{}{})
}

func (t *PageHTMLTool) Execute(ctx context.Context, _ string) (string, error) {
	return t.browser.GetPageHTML(ctx)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
