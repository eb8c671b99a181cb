// Package models additionally implements the Capability Registry (spec.md
// §4.1, C1): glob-pattern resolution of per-model thinking/reasoning/
// temperature/header capability documents, with a JSON config file, env var
// overrides, and a fsnotify hot-reload watch.
package models

import (
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	coremodels "github.com/agentcore/core/pkg/models"
)

// MinThinkingBudget and MaxThinkingBudget bound any override-supplied budget
// (spec.md §4.1 "Guarantees": "any override that clamps a budget outside
// [1024, 100000] is logged and the value is clipped, not rejected").
const (
	MinThinkingBudget = 1024
	MaxThinkingBudget = 100000
)

// knownProviderPrefixes are stripped from a model name before glob matching
// (spec.md §4.1 "Contract").
var knownProviderPrefixes = []string{"agime-", "databricks-", "azure-", "bedrock-"}

// defaultCapabilityDefinition is returned for an empty model name (spec.md
// §4.1 "Guarantees": "Empty model names return the default document (all
// features off) and log a warning").
var defaultCapabilityDefinition = coremodels.CapabilityDefinition{
	Pattern:    "",
	Provider:   "unknown",
	ToolFormat: "none",
}

// CapabilityOverride is a user-supplied, per-model override merged on top
// of the matched glob definition (spec.md §4.1 "User overrides (stored
// config) are then merged").
type CapabilityOverride struct {
	ThinkingEnabled *bool `json:"thinking_enabled,omitempty"`
	ThinkingBudget  *int  `json:"thinking_budget,omitempty"`
}

// CapabilityRegistry resolves a model name to its ResolvedCapabilities,
// caching by lowercase model name until Reload clears the cache (spec.md
// §4.1). The zero value is not usable; use NewCapabilityRegistry.
type CapabilityRegistry struct {
	configPath string
	logger     *slog.Logger

	mu          sync.RWMutex
	definitions []coremodels.CapabilityDefinition // sorted by descending priority
	overrides   map[string]CapabilityOverride      // keyed by lowercase model name
	cache       map[string]coremodels.ResolvedCapabilities

	watcher     *fsnotify.Watcher
	watchDoneCh chan struct{}
}

// NewCapabilityRegistry loads the capability document from configPath (or
// bundled defaults if absent) and returns a ready-to-use registry. overrides
// may be nil.
func NewCapabilityRegistry(configPath string, overrides map[string]CapabilityOverride, logger *slog.Logger) (*CapabilityRegistry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	r := &CapabilityRegistry{
		configPath: configPath,
		logger:     logger.With("component", "capability_registry"),
		overrides:  overrides,
	}
	if r.overrides == nil {
		r.overrides = make(map[string]CapabilityOverride)
	}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

// load reads the capability document (bundled defaults if configPath is
// empty) and replaces the sorted definition list and cache.
func (r *CapabilityRegistry) load() error {
	var doc coremodels.CapabilityConfigFile
	var err error
	if r.configPath == "" {
		doc, err = loadBundledCapabilities()
	} else {
		doc, err = loadUserCapabilities(r.configPath, r.logger)
	}
	if err != nil {
		return err
	}

	defs := append([]coremodels.CapabilityDefinition(nil), doc.Capabilities...)
	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].Priority > defs[j].Priority
	})

	r.mu.Lock()
	r.definitions = defs
	r.cache = make(map[string]coremodels.ResolvedCapabilities)
	r.mu.Unlock()
	return nil
}

// Resolve returns the ResolvedCapabilities for modelName (spec.md §4.1
// "Contract"). Results are cached by lowercase model name until Reload.
func (r *CapabilityRegistry) Resolve(modelName string) coremodels.ResolvedCapabilities {
	if modelName == "" {
		r.logger.Warn("capability registry: empty model name, returning default document")
		return coremodels.ResolvedCapabilities{Definition: defaultCapabilityDefinition, FromDefault: true}
	}

	key := strings.ToLower(modelName)

	r.mu.RLock()
	if cached, ok := r.cache[key]; ok {
		r.mu.RUnlock()
		return cached
	}
	r.mu.RUnlock()

	resolved := r.resolveUncached(key)

	r.mu.Lock()
	r.cache[key] = resolved
	r.mu.Unlock()

	return resolved
}

func (r *CapabilityRegistry) resolveUncached(lowerModel string) coremodels.ResolvedCapabilities {
	stripped := stripProviderPrefix(lowerModel)

	r.mu.RLock()
	def, fromDefault := matchDefinition(r.definitions, stripped)
	override, hasOverride := r.overrides[lowerModel]
	r.mu.RUnlock()

	if hasOverride {
		applyOverride(&def, override, r.logger, lowerModel)
	}
	applyEnvOverrides(&def, lowerModel, r.logger)

	return coremodels.ResolvedCapabilities{
		ModelName:   lowerModel,
		Definition:  def,
		FromDefault: fromDefault,
	}
}

// stripProviderPrefix removes a single known provider prefix, if present.
func stripProviderPrefix(lowerModel string) string {
	for _, prefix := range knownProviderPrefixes {
		if strings.HasPrefix(lowerModel, prefix) {
			return strings.TrimPrefix(lowerModel, prefix)
		}
	}
	return lowerModel
}

// matchDefinition walks the priority-ordered definition list and returns the
// first glob match, or the default document if none match.
func matchDefinition(defs []coremodels.CapabilityDefinition, model string) (coremodels.CapabilityDefinition, bool) {
	for _, def := range defs {
		if def.Pattern == "" {
			continue
		}
		if ok, _ := path.Match(def.Pattern, model); ok {
			return def, false
		}
	}
	return defaultCapabilityDefinition, true
}

// applyOverride merges a stored user override into def in place, clamping
// any thinking budget to [MinThinkingBudget, MaxThinkingBudget] rather than
// rejecting it (spec.md §4.1 "Guarantees").
func applyOverride(def *coremodels.CapabilityDefinition, override CapabilityOverride, logger *slog.Logger, model string) {
	if override.ThinkingEnabled != nil {
		def.Thinking.Supported = *override.ThinkingEnabled
	}
	if override.ThinkingBudget != nil {
		def.Thinking.DefaultBudget = clampBudget(*override.ThinkingBudget, logger, model)
	}
}

// applyEnvOverrides applies the two environment variable overrides named in
// spec.md §4.1: "…_THINKING_ENABLED" and "…_THINKING_BUDGET", keyed on the
// sanitized, upper-cased model name.
func applyEnvOverrides(def *coremodels.CapabilityDefinition, model string, logger *slog.Logger) {
	prefix := envPrefix(model)

	if v, ok := os.LookupEnv(prefix + "_THINKING_ENABLED"); ok {
		if enabled, err := strconv.ParseBool(v); err == nil {
			def.Thinking.Supported = enabled
		} else {
			logger.Warn("capability registry: invalid THINKING_ENABLED override, ignoring", "model", model, "value", v)
		}
	}
	if v, ok := os.LookupEnv(prefix + "_THINKING_BUDGET"); ok {
		if budget, err := strconv.Atoi(v); err == nil {
			def.Thinking.DefaultBudget = clampBudget(budget, logger, model)
		} else {
			logger.Warn("capability registry: invalid THINKING_BUDGET override, ignoring", "model", model, "value", v)
		}
	}
}

// envPrefix sanitizes a model name into an environment-variable-safe,
// upper-cased token (e.g. "claude-opus-4.1" -> "CLAUDE_OPUS_4_1").
func envPrefix(model string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(model) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func clampBudget(budget int, logger *slog.Logger, model string) int {
	if budget < MinThinkingBudget {
		logger.Warn("capability registry: thinking budget below minimum, clipping", "model", model, "requested", budget, "clipped_to", MinThinkingBudget)
		return MinThinkingBudget
	}
	if budget > MaxThinkingBudget {
		logger.Warn("capability registry: thinking budget above maximum, clipping", "model", model, "requested", budget, "clipped_to", MaxThinkingBudget)
		return MaxThinkingBudget
	}
	return budget
}

// Reload clears the cache and reloads the config file (or bundled defaults),
// atomically for readers: definitions and cache are replaced under the
// write lock in one step, so concurrent Resolve calls see either the old or
// the new generation, never a half-updated one (spec.md §4.1 "Reload").
func (r *CapabilityRegistry) Reload() error {
	return r.load()
}

// SetOverrides replaces the user override map and clears the cache so the
// next Resolve picks up the new overrides.
func (r *CapabilityRegistry) SetOverrides(overrides map[string]CapabilityOverride) {
	r.mu.Lock()
	r.overrides = overrides
	if r.overrides == nil {
		r.overrides = make(map[string]CapabilityOverride)
	}
	r.cache = make(map[string]coremodels.ResolvedCapabilities)
	r.mu.Unlock()
}

// WatchReload starts an fsnotify watch on the registry's config file,
// calling Reload whenever it changes. It is a no-op if configPath is empty
// (bundled-only registries have nothing to watch). Close stops the watch.
func (r *CapabilityRegistry) WatchReload() error {
	if r.configPath == "" {
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("capability registry: create watcher: %w", err)
	}
	if err := watcher.Add(r.configPath); err != nil {
		watcher.Close()
		return fmt.Errorf("capability registry: watch %s: %w", r.configPath, err)
	}

	r.watcher = watcher
	r.watchDoneCh = make(chan struct{})

	go func() {
		defer close(r.watchDoneCh)
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.Reload(); err != nil {
					r.logger.Warn("capability registry: reload after file change failed", "error", err)
				} else {
					r.logger.Info("capability registry: reloaded after file change", "path", r.configPath)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				r.logger.Warn("capability registry: watcher error", "error", err)
			}
		}
	}()
	return nil
}

// Close stops the reload watch, if running. Idempotent.
func (r *CapabilityRegistry) Close() error {
	if r.watcher == nil {
		return nil
	}
	err := r.watcher.Close()
	<-r.watchDoneCh
	r.watcher = nil
	return err
}
