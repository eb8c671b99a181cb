// Package thinking implements the Thinking Handler (spec.md §4.2): request
// shaping for thinking/reasoning budgets, response parsing of thinking
// content, and a streaming accumulator that emits incremental deltas.
//
// Provider adapters (internal/agent/providers/*.go) delegate the generic
// dot-path/param_template mechanics here instead of hardcoding them per
// provider, the way the capability document already varies them per model.
package thinking

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentcore/core/pkg/models"
)

// DefaultTagPattern is used when a Tag-shape response config leaves
// TagPattern empty (spec.md §4.2 "Edge cases").
const DefaultTagPattern = `<think>([\s\S]*?)</think>`

// Handler applies thinking/reasoning request params and parses thinking
// content out of provider responses, driven entirely by the capability
// document resolved for the target model (C1).
type Handler struct{}

// New creates a Thinking Handler. It holds no state; all behavior is
// parameterized by the ResolvedCapabilities passed to each call.
func New() *Handler { return &Handler{} }

// ApplyRequestParams mutates payload in place to enable thinking or
// reasoning per caps, following caps.Definition.Thinking.Request or
// caps.Definition.Reasoning.Request/APIParam (spec.md §4.2 "Request
// shaping"). budget is the thinking token budget (ignored for reasoning,
// which is effort-based); effort is the reasoning effort level.
func (h *Handler) ApplyRequestParams(payload map[string]any, caps models.ResolvedCapabilities, budget int, effort string) error {
	if caps.Definition.Thinking.Supported {
		if err := h.applyThinking(payload, caps.Definition.Thinking, budget); err != nil {
			return err
		}
	}
	if caps.Definition.Reasoning.Supported {
		h.applyReasoning(payload, caps.Definition.Reasoning, effort)
	}
	return nil
}

func (h *Handler) applyThinking(payload map[string]any, cap models.ThinkingCapability, budget int) error {
	cfg := cap.Request
	if budget <= 0 {
		budget = cap.DefaultBudget
	}
	if cap.MinBudget > 0 && budget < cap.MinBudget {
		budget = cap.MinBudget
	}

	switch cfg.Method {
	case models.ThinkingMethodParameter:
		if err := h.setParam(payload, cfg, budget); err != nil {
			return err
		}
	case models.ThinkingMethodExtraBody:
		extra, _ := payload["extra_body"].(map[string]any)
		if extra == nil {
			extra = map[string]any{}
		}
		if err := h.setParam(extra, cfg, budget); err != nil {
			return err
		}
		payload["extra_body"] = extra
	}

	if cfg.MaxTokensAdjustment == models.MaxTokensAddBudget {
		current, _ := toInt(payload["max_tokens"])
		payload["max_tokens"] = current + budget
	}
	return nil
}

func (h *Handler) applyReasoning(payload map[string]any, cap models.ReasoningCapability, effort string) {
	if effort == "" || !containsStr(cap.EffortLevels, effort) {
		effort = cap.DefaultEffort
	}
	if cap.APIParam == "" {
		return
	}
	setDotPath(payload, cap.APIParam, effort)
}

// setParam applies ParamPath (dot-path set) and/or ParamTemplate (literal
// "${budget}" substituted as a JSON number, not a string — spec.md §4.2)
// onto target.
func (h *Handler) setParam(target map[string]any, cfg models.ThinkingRequestConfig, budget int) error {
	if cfg.ParamPath != "" {
		setDotPath(target, cfg.ParamPath, budget)
	}
	if cfg.ParamTemplate != "" {
		rendered, err := renderNumericTemplate(cfg.ParamTemplate, budget)
		if err != nil {
			return err
		}
		var value any
		if err := json.Unmarshal(rendered, &value); err != nil {
			return fmt.Errorf("thinking: param_template did not produce valid JSON: %w", err)
		}
		mergeInto(target, value)
	}
	return nil
}

// renderNumericTemplate replaces the literal "${budget}" token with the
// budget's decimal text so the surrounding JSON document parses budget as
// a number rather than a quoted string (spec.md §4.2).
func renderNumericTemplate(template string, budget int) ([]byte, error) {
	rendered := strings.ReplaceAll(template, "${budget}", strconv.Itoa(budget))
	return []byte(rendered), nil
}

// mergeInto shallow-merges a decoded JSON object into target. If value is
// not an object, it is ignored (a malformed param_template should not crash
// request construction).
func mergeInto(target map[string]any, value any) {
	obj, ok := value.(map[string]any)
	if !ok {
		return
	}
	for k, v := range obj {
		target[k] = v
	}
}

// setDotPath sets a value at a '.'-separated path within root, creating
// intermediate maps as needed. An empty path is a no-op (spec.md §4.2
// "Edge cases").
func setDotPath(root map[string]any, path string, value any) {
	if path == "" {
		return
	}
	segments := strings.Split(path, ".")
	cur := root
	for i, seg := range segments {
		if i == len(segments)-1 {
			cur[seg] = value
			return
		}
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
}

// getDotPath reads a value at a '.'-separated path within root.
func getDotPath(root map[string]any, path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	segments := strings.Split(path, ".")
	cur := any(root)
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		v, ok := m[seg]
		if !ok {
			return nil, false
		}
		cur = v
	}
	return cur, true
}

// ParseResponse extracts thinking content from a decoded provider response
// body, per caps.Definition.Thinking.Response (spec.md §4.2 "Response
// parsing"). fallbackText is the extracted plain-text content, used by the
// Field shape's fallback_tag_pattern and by the Tag shape.
func (h *Handler) ParseResponse(body map[string]any, caps models.ResolvedCapabilities, fallbackText string) (*models.ThinkingBlock, bool) {
	if !caps.Definition.Thinking.Supported {
		return nil, false
	}
	cfg := caps.Definition.Thinking.Response

	switch cfg.Shape {
	case models.ResponseContentBlock:
		return parseContentBlockShape(body, cfg)
	case models.ResponseField:
		return parseFieldShape(body, cfg, fallbackText)
	case models.ResponseTag:
		return parseTagShape(fallbackText, cfg)
	default:
		return nil, false
	}
}

func parseContentBlockShape(body map[string]any, cfg models.ThinkingResponseConfig) (*models.ThinkingBlock, bool) {
	blocks, _ := body["content"].([]any)
	for _, b := range blocks {
		block, ok := b.(map[string]any)
		if !ok {
			continue
		}
		if t, _ := block["type"].(string); t != cfg.BlockType {
			continue
		}
		text, _ := block["thinking"].(string)
		if text == "" {
			text, _ = block["text"].(string)
		}
		sig, _ := block["signature"].(string)
		return &models.ThinkingBlock{Text: text, Signature: sig}, true
	}
	return nil, false
}

func parseFieldShape(body map[string]any, cfg models.ThinkingResponseConfig, fallbackText string) (*models.ThinkingBlock, bool) {
	path := cfg.FieldPath
	value, ok := getDotPath(body, path)
	if !ok {
		if choices, _ := body["choices"].([]any); len(choices) > 0 {
			if first, ok := choices[0].(map[string]any); ok {
				if msg, ok := first["message"].(map[string]any); ok {
					value, ok = getDotPath(msg, path)
					_ = ok
				}
			}
		}
	}
	text, _ := value.(string)
	if text != "" {
		return &models.ThinkingBlock{Text: text}, true
	}
	if cfg.FallbackTagPattern != "" {
		return parseTagShape(fallbackText, models.ThinkingResponseConfig{TagPattern: cfg.FallbackTagPattern})
	}
	return nil, false
}

func parseTagShape(text string, cfg models.ThinkingResponseConfig) (*models.ThinkingBlock, bool) {
	pattern := cfg.TagPattern
	if pattern == "" {
		pattern = DefaultTagPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, false
	}
	m := re.FindStringSubmatch(text)
	if len(m) < 2 {
		return nil, false
	}
	return &models.ThinkingBlock{Text: m[1]}, true
}

// StripThinkingTags removes tag spans from text intended for end users
// (spec.md §4.2 "Edge cases"). pattern defaults to DefaultTagPattern.
func StripThinkingTags(text, pattern string) string {
	if pattern == "" {
		pattern = DefaultTagPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return text
	}
	return re.ReplaceAllString(text, "")
}

func containsStr(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case float64:
		return int(n), true
	case json.Number:
		i, err := n.Int64()
		return int(i), err == nil
	default:
		return 0, false
	}
}
