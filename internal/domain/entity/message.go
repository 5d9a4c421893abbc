package entity

type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

type ContentType string

const (
	ContentTypeText     ContentType = "text"
	ContentTypeThinking ContentType = "thinking"
	ContentTypeToolUse  ContentType = "tool_use"
)

type Message struct {
	Role          MessageRole
	Content       string
	ContentBlocks []ContentBlock
	ToolCalls     []ToolCall
	ToolCallID    string
	Name          string
}

type ContentBlock struct {
	Type     ContentType
	Text     string
	Thinking string
	ToolUse  *ToolCall
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}
