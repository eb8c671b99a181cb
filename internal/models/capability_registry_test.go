package models

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCapabilityRegistry_BundledDefaults_ResolvesKnownModel(t *testing.T) {
	r, err := NewCapabilityRegistry("", nil, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}

	caps := r.Resolve("claude-opus-4-20250514")
	if !caps.SupportsThinking() {
		t.Error("expected claude-opus-4* to support thinking")
	}
	if caps.Definition.Thinking.Request.ParamPath != "thinking.budget_tokens" {
		t.Errorf("param_path = %q, want thinking.budget_tokens", caps.Definition.Thinking.Request.ParamPath)
	}
}

func TestCapabilityRegistry_UnknownModel_FallsBackToDefault(t *testing.T) {
	r, err := NewCapabilityRegistry("", nil, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}

	caps := r.Resolve("some-totally-unrecognized-model")
	if caps.SupportsThinking() || caps.SupportsReasoning() {
		t.Error("expected default document to have all features off")
	}
	if !caps.FromDefault {
		t.Error("expected FromDefault to be true for an unmatched model")
	}
}

func TestCapabilityRegistry_EmptyModelName_ReturnsDefault(t *testing.T) {
	r, err := NewCapabilityRegistry("", nil, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}

	caps := r.Resolve("")
	if !caps.FromDefault {
		t.Error("expected empty model name to return the default document")
	}
	if caps.SupportsThinking() {
		t.Error("expected default document to have thinking off")
	}
}

func TestCapabilityRegistry_StripsKnownProviderPrefix(t *testing.T) {
	r, err := NewCapabilityRegistry("", nil, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}

	caps := r.Resolve("bedrock-claude-opus-4-20250514")
	if !caps.SupportsThinking() {
		t.Error("expected bedrock- prefix to be stripped before matching claude-opus-4*")
	}
}

func TestCapabilityRegistry_HigherPriorityPatternWinsOverWildcard(t *testing.T) {
	r, err := NewCapabilityRegistry("", nil, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}

	caps := r.Resolve("gpt-4o")
	if caps.Definition.Provider != "openai" {
		t.Errorf("provider = %q, want openai (gpt-* pattern, priority 10, over catch-all *)", caps.Definition.Provider)
	}
}

func TestCapabilityRegistry_OverrideClampsBudgetBelowMinimum(t *testing.T) {
	overrides := map[string]CapabilityOverride{
		"claude-opus-4-20250514": {ThinkingBudget: intPtr(10)},
	}
	r, err := NewCapabilityRegistry("", overrides, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}

	caps := r.Resolve("claude-opus-4-20250514")
	if caps.Definition.Thinking.DefaultBudget != MinThinkingBudget {
		t.Errorf("budget = %d, want clipped to %d", caps.Definition.Thinking.DefaultBudget, MinThinkingBudget)
	}
}

func TestCapabilityRegistry_OverrideClampsBudgetAboveMaximum(t *testing.T) {
	overrides := map[string]CapabilityOverride{
		"claude-opus-4-20250514": {ThinkingBudget: intPtr(999999)},
	}
	r, err := NewCapabilityRegistry("", overrides, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}

	caps := r.Resolve("claude-opus-4-20250514")
	if caps.Definition.Thinking.DefaultBudget != MaxThinkingBudget {
		t.Errorf("budget = %d, want clipped to %d", caps.Definition.Thinking.DefaultBudget, MaxThinkingBudget)
	}
}

func TestCapabilityRegistry_EnvOverrideDisablesThinking(t *testing.T) {
	r, err := NewCapabilityRegistry("", nil, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}

	envVar := envPrefix("claude-opus-4-20250514") + "_THINKING_ENABLED"
	t.Setenv(envVar, "false")

	caps := r.Resolve("claude-opus-4-20250514")
	if caps.SupportsThinking() {
		t.Error("expected env override to disable thinking")
	}
}

func TestCapabilityRegistry_ResultIsCachedByLowercaseModelName(t *testing.T) {
	r, err := NewCapabilityRegistry("", nil, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}

	first := r.Resolve("Claude-Opus-4-20250514")
	second := r.Resolve("claude-opus-4-20250514")
	if first.ModelName != second.ModelName {
		t.Errorf("expected cache lookup by lowercase name, got %q vs %q", first.ModelName, second.ModelName)
	}
}

func TestCapabilityRegistry_UserConfigFileSeededFromBundledWhenAbsent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capabilities.json")

	r, err := NewCapabilityRegistry(path, nil, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}
	if _, statErr := os.Stat(path); statErr != nil {
		t.Fatalf("expected user config file to be seeded at %s: %v", path, statErr)
	}

	caps := r.Resolve("claude-opus-4-20250514")
	if !caps.SupportsThinking() {
		t.Error("expected seeded user config to resolve the same as bundled defaults")
	}
}

func TestCapabilityRegistry_MalformedUserConfigFallsBackToBundled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capabilities.json")
	if err := os.WriteFile(path, []byte("{not valid json"), 0o644); err != nil {
		t.Fatalf("write malformed config: %v", err)
	}

	r, err := NewCapabilityRegistry(path, nil, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}

	caps := r.Resolve("claude-opus-4-20250514")
	if !caps.SupportsThinking() {
		t.Error("expected malformed user config to fall back to bundled defaults")
	}
}

func TestCapabilityRegistry_Reload_PicksUpUpdatedFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "capabilities.json")

	r, err := NewCapabilityRegistry(path, nil, nil)
	if err != nil {
		t.Fatalf("NewCapabilityRegistry error: %v", err)
	}
	r.Resolve("claude-opus-4-20250514") // populate cache

	minimal := `{"capabilities":[{"pattern":"*","priority":0,"provider":"unknown","tool_format":"none"}]}`
	if err := os.WriteFile(path, []byte(minimal), 0o644); err != nil {
		t.Fatalf("write updated config: %v", err)
	}

	if err := r.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	caps := r.Resolve("claude-opus-4-20250514")
	if caps.SupportsThinking() {
		t.Error("expected reload to replace the definition set, clearing cached thinking support")
	}
}

func intPtr(v int) *int { return &v }
