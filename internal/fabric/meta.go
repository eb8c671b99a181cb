package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/agentcore/core/internal/agent"
	"github.com/agentcore/core/internal/tools/naming"
	"github.com/agentcore/core/pkg/models"
)

// extensionManagerTool is a meta tool implemented directly by the Fabric
// rather than delegated to a platform or MCP backend; its Execute is never
// called, CallTool routes extensionmanager__ names to callMeta instead.
type extensionManagerTool struct {
	name        string
	description string
	schema      json.RawMessage
}

func (t *extensionManagerTool) Name() string            { return t.name }
func (t *extensionManagerTool) Description() string     { return t.description }
func (t *extensionManagerTool) Schema() json.RawMessage { return t.schema }
func (t *extensionManagerTool) Execute(context.Context, json.RawMessage) (*agent.ToolResult, error) {
	return &agent.ToolResult{Content: "dispatched via extensionmanager", IsError: false}, nil
}

func metaTool(toolKey, description, schema string) agent.Tool {
	return &extensionManagerTool{
		name:        naming.Compose(naming.ExtensionManagerKey, toolKey),
		description: description,
		schema:      json.RawMessage(schema),
	}
}

// metaTools returns the extensionmanager__ tool set. Caller holds f.mu.
func (f *Fabric) metaTools() []agent.Tool {
	return []agent.Tool{
		metaTool("search_available_extensions",
			"List loaded and available but unloaded extensions.",
			`{"type":"object"}`),
		metaTool("manage_extensions",
			"Load or unload an extension. action must be \"add\" or \"remove\"; key is the extension key.",
			`{"type":"object","properties":{"action":{"type":"string","enum":["add","remove"]},"key":{"type":"string"}},"required":["action","key"]}`),
		metaTool("list_resources",
			"List MCP resources exposed by a loaded extension.",
			`{"type":"object","properties":{"key":{"type":"string"}},"required":["key"]}`),
		metaTool("read_resource",
			"Read one MCP resource by URI from a loaded extension.",
			`{"type":"object","properties":{"key":{"type":"string"},"uri":{"type":"string"}},"required":["key","uri"]}`),
	}
}

// callMeta dispatches an extensionmanager__ call.
func (f *Fabric) callMeta(ctx context.Context, callID, name string, params json.RawMessage) models.ContentBlock {
	_, toolKey, _ := naming.Split(name)

	switch toolKey {
	case "search_available_extensions":
		return f.searchAvailableExtensions(callID)
	case "manage_extensions":
		return f.manageExtensions(ctx, callID, params)
	case "list_resources":
		return f.listResources(callID, params)
	case "read_resource":
		return f.readResource(ctx, callID, params)
	default:
		return unknownToolBlock(callID, name)
	}
}

type availableExtension struct {
	Key    string `json:"key"`
	Kind   string `json:"kind"`
	Loaded bool   `json:"loaded"`
}

func (f *Fabric) searchAvailableExtensions(callID string) models.ContentBlock {
	f.mu.RLock()
	defer f.mu.RUnlock()

	seen := map[string]struct{}{}
	var out []availableExtension

	for key := range f.platformFactories {
		_, loaded := f.loaded[key]
		out = append(out, availableExtension{Key: key, Kind: string(models.ExtensionPlatform), Loaded: loaded})
		seen[key] = struct{}{}
	}
	if f.mcpMgr != nil {
		for _, status := range f.mcpMgr.Status() {
			if _, ok := seen[status.ID]; ok {
				continue
			}
			out = append(out, availableExtension{Key: status.ID, Kind: string(models.ExtensionStdio), Loaded: status.Connected})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })

	payload, err := json.Marshal(out)
	if err != nil {
		return models.ToolResponseContentBlock(callID, err.Error(), true)
	}
	return models.ToolResponseContentBlock(callID, string(payload), false)
}

func (f *Fabric) manageExtensions(ctx context.Context, callID string, params json.RawMessage) models.ContentBlock {
	var input struct {
		Action string `json:"action"`
		Key    string `json:"key"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return models.ToolResponseContentBlock(callID, fmt.Sprintf("invalid arguments: %v", err), true)
	}

	switch strings.ToLower(strings.TrimSpace(input.Action)) {
	case "add":
		if err := f.AddExtension(ctx, input.Key); err != nil {
			if _, ok := err.(*AlreadyLoadedError); ok {
				return models.ToolResponseContentBlock(callID, err.Error(), false)
			}
			return models.ToolResponseContentBlock(callID, err.Error(), true)
		}
		return models.ToolResponseContentBlock(callID, fmt.Sprintf("loaded %q", input.Key), false)
	case "remove":
		if err := f.RemoveExtension(input.Key); err != nil {
			return models.ToolResponseContentBlock(callID, err.Error(), true)
		}
		return models.ToolResponseContentBlock(callID, fmt.Sprintf("removed %q", input.Key), false)
	default:
		return models.ToolResponseContentBlock(callID, `action must be "add" or "remove"`, true)
	}
}

func (f *Fabric) listResources(callID string, params json.RawMessage) models.ContentBlock {
	var input struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return models.ToolResponseContentBlock(callID, fmt.Sprintf("invalid arguments: %v", err), true)
	}

	f.mu.RLock()
	serverID, isMCP := f.mcpServerOf[input.Key]
	mgr := f.mcpMgr
	f.mu.RUnlock()

	if !isMCP || mgr == nil {
		return models.ToolResponseContentBlock(callID, fmt.Sprintf("extension %q has no MCP resources", input.Key), true)
	}
	resources := mgr.AllResources()[serverID]
	payload, err := json.Marshal(resources)
	if err != nil {
		return models.ToolResponseContentBlock(callID, err.Error(), true)
	}
	return models.ToolResponseContentBlock(callID, string(payload), false)
}

func (f *Fabric) readResource(ctx context.Context, callID string, params json.RawMessage) models.ContentBlock {
	var input struct {
		Key string `json:"key"`
		URI string `json:"uri"`
	}
	if err := json.Unmarshal(params, &input); err != nil {
		return models.ToolResponseContentBlock(callID, fmt.Sprintf("invalid arguments: %v", err), true)
	}

	f.mu.RLock()
	serverID, isMCP := f.mcpServerOf[input.Key]
	mgr := f.mcpMgr
	f.mu.RUnlock()

	if !isMCP || mgr == nil {
		return models.ToolResponseContentBlock(callID, fmt.Sprintf("extension %q has no MCP resources", input.Key), true)
	}
	contents, err := mgr.ReadResource(ctx, serverID, input.URI)
	if err != nil {
		return models.ToolResponseContentBlock(callID, err.Error(), true)
	}
	if len(contents) == 1 && contents[0].Text != "" {
		return models.ToolResponseContentBlock(callID, contents[0].Text, false)
	}
	payload, err := json.Marshal(contents)
	if err != nil {
		return models.ToolResponseContentBlock(callID, err.Error(), true)
	}
	return models.ToolResponseContentBlock(callID, string(payload), false)
}
