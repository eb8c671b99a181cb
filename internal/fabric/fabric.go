// Package fabric composes the Platform Runner, MCP Connector, and Extension
// Manager into the unified Tool Fabric (spec.md §4.3): one list_tools/
// call_tool surface, one {extension_key}__{tool_key} naming scheme, and one
// add_extension/remove_extension control path.
package fabric

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/agentcore/core/internal/agent"
	"github.com/agentcore/core/internal/mcp"
	"github.com/agentcore/core/internal/tools/naming"
	"github.com/agentcore/core/pkg/models"
)

// PlatformFactory constructs the in-process tool set for a platform
// extension the first time it is loaded. Factories are registered at setup
// time via RegisterPlatformFactory and looked up under a panic guard, since
// a misbehaving factory must not bring down a call to add_extension.
type PlatformFactory func() ([]agent.Tool, error)

// loadedExtension tracks one mounted extension's dispatch table.
type loadedExtension struct {
	entry models.ExtensionEntry
	tools map[string]agent.Tool // toolKey -> tool, platform extensions only
}

// Fabric is the unified tool surface presented to the Execution Engine.
// Reads (ListTools, CallTool's lookup phase) take the RWMutex's read side;
// add_extension/remove_extension take the write side. Per spec.md §4.3's
// concurrency discipline, the lock is never held across an LLM call or a
// cross-process tool await: CallTool resolves the target under a read lock,
// releases it, then executes; AddExtension/RemoveExtension do their
// (potentially slow) factory/connect work unlocked and only take the write
// lock to commit the result.
type Fabric struct {
	mu sync.RWMutex

	platformFactories map[string]PlatformFactory
	loaded            map[string]*loadedExtension // extensionKey -> extension
	mcpServerOf       map[string]string            // extensionKey -> MCP serverID

	// teamSkillsActive suppresses filesystem-discovered skills once the
	// "team_skills" extension is loaded (spec.md §4.3 "team_skills
	// suppresses filesystem skills").
	teamSkillsActive bool

	mcpMgr *mcp.Manager
	logger *slog.Logger
}

// New builds an empty Fabric. mcpMgr may be nil when MCP support is
// disabled; platform extensions still work.
func New(mcpMgr *mcp.Manager, logger *slog.Logger) *Fabric {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fabric{
		platformFactories: make(map[string]PlatformFactory),
		loaded:            make(map[string]*loadedExtension),
		mcpServerOf:       make(map[string]string),
		mcpMgr:            mcpMgr,
		logger:            logger.With("component", "fabric"),
	}
}

// RegisterPlatformFactory registers the constructor for a platform
// extension. Call during setup, before the Fabric is shared across
// goroutines; it is still lock-protected for safety.
func (f *Fabric) RegisterPlatformFactory(extensionKey string, factory PlatformFactory) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.platformFactories[extensionKey] = factory
}

// IsTeamSkillsActive reports whether the team_skills extension has been
// loaded, which callers use to suppress filesystem-discovered skills.
func (f *Fabric) IsTeamSkillsActive() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.teamSkillsActive
}

// ListTools returns every tool currently exposed: the extensionmanager__
// meta tools plus every tool of every loaded extension, composed under
// naming.Compose.
func (f *Fabric) ListTools() []agent.Tool {
	f.mu.RLock()
	defer f.mu.RUnlock()

	out := f.metaTools()
	for _, ext := range f.loaded {
		for _, tool := range ext.tools {
			out = append(out, tool)
		}
	}
	return out
}

// CallTool dispatches name (a composed extension_key__tool_key, or an
// extensionmanager__ meta tool) to its handler. Routing precedence is
// extensionmanager__ first, then the platform table, then MCP, and finally
// an UnknownTool content block rather than an error return — an unknown
// tool is data for the conversation, not a call failure (spec.md §4.3,
// §7 tool errors).
func (f *Fabric) CallTool(ctx context.Context, callID, name string, params json.RawMessage) models.ContentBlock {
	if naming.IsExtensionManagerTool(name) {
		return f.callMeta(ctx, callID, name, params)
	}

	extKey, toolKey, ok := naming.Split(name)
	if !ok {
		return unknownToolBlock(callID, name)
	}

	f.mu.RLock()
	ext, loaded := f.loaded[extKey]
	var platformTool agent.Tool
	if loaded {
		platformTool = ext.tools[toolKey]
	}
	serverID, isMCP := f.mcpServerOf[extKey]
	mgr := f.mcpMgr
	f.mu.RUnlock()

	if platformTool != nil {
		result, err := platformTool.Execute(ctx, params)
		return toolResultBlock(callID, result, err)
	}

	if isMCP && mgr != nil {
		var args map[string]any
		if len(params) > 0 {
			if err := json.Unmarshal(params, &args); err != nil {
				return models.ToolResponseContentBlock(callID, fmt.Sprintf("invalid arguments: %v", err), true)
			}
		}
		result, err := mgr.CallTool(ctx, serverID, toolKey, args)
		if err != nil {
			return models.ToolResponseContentBlock(callID, err.Error(), true)
		}
		content, isError := formatMCPResult(result)
		return models.ToolResponseContentBlock(callID, content, isError)
	}

	return unknownToolBlock(callID, name)
}

// AlreadyLoadedError is returned by AddExtension when the extension key is
// already mounted; it is not a failure, callers should treat it as a no-op.
type AlreadyLoadedError struct {
	Key string
}

func (e *AlreadyLoadedError) Error() string {
	return fmt.Sprintf("extension %q already loaded", e.Key)
}

// AddExtension mounts a platform or MCP extension by key, idempotently.
func (f *Fabric) AddExtension(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("extension key must not be empty")
	}

	f.mu.RLock()
	_, loaded := f.loaded[key]
	factory, hasFactory := f.platformFactories[key]
	f.mu.RUnlock()
	if loaded {
		return &AlreadyLoadedError{Key: key}
	}

	var ext *loadedExtension
	var mcpServerID string

	switch {
	case hasFactory:
		tools, err := f.callFactorySafely(key, factory)
		if err != nil {
			return fmt.Errorf("load platform extension %q: %w", key, err)
		}
		toolMap := make(map[string]agent.Tool, len(tools))
		for _, t := range tools {
			toolMap[t.Name()] = &composedTool{inner: t, composedName: naming.Compose(key, t.Name())}
		}
		ext = &loadedExtension{
			entry: models.ExtensionEntry{Name: key, Kind: models.ExtensionPlatform, Enabled: true},
			tools: toolMap,
		}

	case f.mcpMgr != nil:
		if err := f.mcpMgr.Connect(ctx, key); err != nil {
			return fmt.Errorf("connect MCP extension %q: %w", key, err)
		}
		mcpServerID = key
		ext = &loadedExtension{
			entry: models.ExtensionEntry{Name: key, Kind: models.ExtensionStdio, Enabled: true},
		}

	default:
		return fmt.Errorf("no platform factory or MCP server registered for %q", key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, already := f.loaded[key]; already {
		// Raced with a concurrent AddExtension for the same key; keep the
		// winner and discard this one's work.
		return &AlreadyLoadedError{Key: key}
	}
	f.loaded[key] = ext
	if mcpServerID != "" {
		f.mcpServerOf[key] = mcpServerID
	}
	if key == "team_skills" {
		f.teamSkillsActive = true
	}
	return nil
}

// RemoveExtension unmounts an extension by name, matched case-insensitively
// and with surrounding whitespace stripped.
func (f *Fabric) RemoveExtension(name string) error {
	normalized := strings.ToLower(strings.TrimSpace(name))

	f.mu.Lock()
	defer f.mu.Unlock()

	var match string
	for key := range f.loaded {
		if strings.ToLower(strings.TrimSpace(key)) == normalized {
			match = key
			break
		}
	}
	if match == "" {
		return fmt.Errorf("extension %q not loaded", name)
	}

	delete(f.loaded, match)
	if serverID, ok := f.mcpServerOf[match]; ok {
		delete(f.mcpServerOf, match)
		if f.mcpMgr != nil {
			if err := f.mcpMgr.Disconnect(serverID); err != nil {
				f.logger.Warn("disconnect MCP extension on removal", "extension", match, "error", err)
			}
		}
	}
	if match == "team_skills" {
		f.teamSkillsActive = false
	}
	return nil
}

// callFactorySafely invokes factory under a recover so a panicking platform
// constructor fails add_extension instead of the whole process.
func (f *Fabric) callFactorySafely(key string, factory PlatformFactory) (tools []agent.Tool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("platform factory for %q panicked: %v", key, r)
		}
	}()
	return factory()
}

func toolResultBlock(callID string, result *agent.ToolResult, err error) models.ContentBlock {
	if err != nil {
		return models.ToolResponseContentBlock(callID, err.Error(), true)
	}
	if result == nil {
		return models.ToolResponseContentBlock(callID, "", false)
	}
	return models.ToolResponseContentBlock(callID, result.Content, result.IsError)
}

func unknownToolBlock(callID, name string) models.ContentBlock {
	return models.ToolResponseContentBlock(callID, fmt.Sprintf("unknown tool: %s", name), true)
}

func formatMCPResult(result *mcp.ToolCallResult) (string, bool) {
	if result == nil {
		return "", false
	}
	var combined strings.Builder
	for _, item := range result.Content {
		if item.Text == "" {
			continue
		}
		if combined.Len() > 0 {
			combined.WriteString("\n")
		}
		combined.WriteString(item.Text)
	}
	if combined.Len() > 0 {
		return combined.String(), result.IsError
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return "", result.IsError
	}
	return string(payload), result.IsError
}
