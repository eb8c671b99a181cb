package fabric

import (
	"context"
	"encoding/json"

	"github.com/agentcore/core/internal/agent"
)

// composedTool wraps a platform agent.Tool so it presents its
// extension_key__tool_key composed name to the LLM while still dispatching
// to the tool's own raw name internally.
type composedTool struct {
	inner        agent.Tool
	composedName string
}

func (t *composedTool) Name() string        { return t.composedName }
func (t *composedTool) Description() string { return t.inner.Description() }
func (t *composedTool) Schema() json.RawMessage {
	return t.inner.Schema()
}

func (t *composedTool) Execute(ctx context.Context, params json.RawMessage) (*agent.ToolResult, error) {
	return t.inner.Execute(ctx, params)
}
