package models

// ThinkingRequestMethod selects how the thinking budget is injected into a
// provider request payload (spec.md §4.2 "Request shaping").
type ThinkingRequestMethod string

const (
	ThinkingMethodParameter  ThinkingRequestMethod = "parameter"
	ThinkingMethodExtraBody  ThinkingRequestMethod = "extra_body"
)

// MaxTokensAdjustment selects how max_tokens is adjusted when thinking is
// enabled (spec.md §4.2).
type MaxTokensAdjustment string

const (
	MaxTokensNone      MaxTokensAdjustment = ""
	MaxTokensAddBudget MaxTokensAdjustment = "add_budget"
)

// ResponseShape selects how thinking/reasoning content is extracted from a
// provider response (spec.md §4.2 "Response parsing").
type ResponseShape string

const (
	ResponseContentBlock ResponseShape = "content_block"
	ResponseField        ResponseShape = "field"
	ResponseTag          ResponseShape = "tag"
)

// ThinkingRequestConfig drives ThinkingHandler.ApplyRequestParams.
type ThinkingRequestConfig struct {
	Method              ThinkingRequestMethod `json:"method"`
	ParamPath           string                `json:"param_path,omitempty"`           // dot-path for Parameter method
	ParamTemplate       string                `json:"param_template,omitempty"`       // literal "${budget}" substitution
	MaxTokensAdjustment MaxTokensAdjustment   `json:"max_tokens_adjustment,omitempty"`
}

// ThinkingResponseConfig drives ThinkingHandler.ParseResponse.
type ThinkingResponseConfig struct {
	Shape              ResponseShape `json:"shape"`
	BlockType          string        `json:"block_type,omitempty"`          // ContentBlock shape
	FieldPath          string        `json:"field_path,omitempty"`          // Field shape, root or choices[0].message
	FallbackTagPattern string        `json:"fallback_tag_pattern,omitempty"` // Field shape fallback
	TagPattern         string        `json:"tag_pattern,omitempty"`         // Tag shape; default <think>...</think>
}

// ThinkingCapability is the thinking sub-document of a CapabilityDefinition.
type ThinkingCapability struct {
	Supported     bool                   `json:"supported"`
	Type          string                 `json:"type,omitempty"`
	DefaultBudget int                    `json:"default_budget,omitempty"`
	MinBudget     int                    `json:"min_budget,omitempty"`
	Request       ThinkingRequestConfig  `json:"request_config"`
	Response      ThinkingResponseConfig `json:"response_config"`
}

// ReasoningCapability is the reasoning sub-document (effort-based
// providers, e.g. OpenAI o-series) of a CapabilityDefinition.
type ReasoningCapability struct {
	Supported     bool                  `json:"supported"`
	EffortLevels  []string              `json:"effort_levels,omitempty"` // low|medium|high
	DefaultEffort string                `json:"default_effort,omitempty"`
	APIParam      string                `json:"api_param,omitempty"` // dot-path
	Request       ThinkingRequestConfig `json:"request_config"`
}

// TemperatureCapability controls whether/how temperature may be set.
type TemperatureCapability struct {
	Supported           bool     `json:"supported"`
	FixedValue          *float64 `json:"fixed_value,omitempty"`
	DisabledWithThinking bool    `json:"disabled_with_thinking,omitempty"`
}

// CapabilityDefinition is a glob pattern plus its capability document
// (spec.md §3, §6 "Capability configuration file").
type CapabilityDefinition struct {
	Pattern             string                `json:"pattern"`
	Priority            int                   `json:"priority"`
	Provider            string                `json:"provider,omitempty"`
	Thinking            ThinkingCapability    `json:"thinking"`
	Reasoning           ReasoningCapability   `json:"reasoning"`
	Temperature         TemperatureCapability `json:"temperature"`
	SystemRole          string                `json:"system_role,omitempty"`
	BetaHeaders         map[string]string     `json:"beta_headers,omitempty"`
	ToolFormat          string                `json:"tool_format,omitempty"`
	ContextLength       int                   `json:"context_length,omitempty"`
	MaxCompletionTokens int                   `json:"max_completion_tokens,omitempty"`
}

// CapabilityConfigFile is the on-disk JSON document described in spec.md §6.
type CapabilityConfigFile struct {
	Capabilities []CapabilityDefinition `json:"capabilities"`
}

// ResolvedCapabilities is the return value of CapabilityRegistry.Resolve
// (spec.md §4.1 contract).
type ResolvedCapabilities struct {
	ModelName   string
	Definition  CapabilityDefinition
	FromDefault bool
}

func (r ResolvedCapabilities) SupportsThinking() bool     { return r.Definition.Thinking.Supported }
func (r ResolvedCapabilities) SupportsReasoning() bool     { return r.Definition.Reasoning.Supported }
func (r ResolvedCapabilities) SupportsTemperature() bool   { return r.Definition.Temperature.Supported }
func (r ResolvedCapabilities) SupportsTools() bool         { return r.Definition.ToolFormat != "none" }
func (r ResolvedCapabilities) GetHeaders() map[string]string { return r.Definition.BetaHeaders }
func (r ResolvedCapabilities) GetSystemRole() string       {
	if r.Definition.SystemRole == "" {
		return "system"
	}
	return r.Definition.SystemRole
}
