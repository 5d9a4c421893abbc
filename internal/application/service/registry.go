package service

import (
	"sort"

	"portal-session/internal/application/port/output"
	"portal-session/internal/domain/entity"
)

var _ output.ToolRegistry = (*ToolRegistryImpl)(nil)

type ToolRegistryImpl struct {
	tools map[entity.ToolName]output.ToolPort
}

func NewToolRegistry() *ToolRegistryImpl {
	return &ToolRegistryImpl{
		tools: make(map[entity.ToolName]output.ToolPort),
	}
}

func (r *ToolRegistryImpl) Register(tool output.ToolPort) {
	r.tools[tool.Name()] = tool
}

func (r *ToolRegistryImpl) Get(name entity.ToolName) (output.ToolPort, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// All returns the tools ordered by name so prompts are stable between runs.
func (r *ToolRegistryImpl) All() []output.ToolPort {
	result := make([]output.ToolPort, 0, len(r.tools))
	for _, tool := range r.tools {
		result = append(result, tool)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name() < result[j].Name()
	})
	return result
}

func (r *ToolRegistryImpl) Definitions() []entity.ToolDefinition {
	all := r.All()
	result := make([]entity.ToolDefinition, 0, len(all))
	for _, tool := range all {
		result = append(result, entity.ToolDefinition{
			Name:        tool.Name().String(),
			Description: tool.Description(),
			Parameters:  tool.Parameters(),
		})
	}
	return result
}
