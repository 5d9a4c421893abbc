package prompts

import (
	"bytes"
	"sort"
	"text/template"

	"portal-session/internal/domain/entity"
)

type ToolInfo struct {
	Name        string
	Description string
}

type SystemPromptData struct {
	Tools    []ToolInfo
	ReadTool string
}

type TaskData struct {
	PortalURL string
	Term      string
}

// GenerateSystemPrompt renders the agent's system prompt with the tools sorted by name.
func GenerateSystemPrompt(baseTemplate string, defs []entity.ToolDefinition) (string, error) {
	tools := make([]ToolInfo, 0, len(defs))
	for _, d := range defs {
		tools = append(tools, ToolInfo{Name: d.Name, Description: d.Description})
	}

	sort.Slice(tools, func(i, j int) bool {
		return tools[i].Name < tools[j].Name
	})

	return render("system", baseTemplate, SystemPromptData{
		Tools:    tools,
		ReadTool: string(entity.ToolBrowserExtractText),
	})
}

func GenerateTaskPrompt(baseTemplate string, data TaskData) (string, error) {
	return render("task", baseTemplate, data)
}

func render(name, baseTemplate string, data any) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(baseTemplate)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}
