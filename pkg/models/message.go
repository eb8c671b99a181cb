package models

import (
	"encoding/json"
	"time"
)

// ChannelType represents a messaging platform.
type ChannelType string

const (
	ChannelTelegram ChannelType = "telegram"
	ChannelDiscord  ChannelType = "discord"
	ChannelSlack    ChannelType = "slack"
)

// Direction indicates if a message is inbound or outbound.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Role indicates the message author type.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// Visibility controls whether a message is shown to the end user, fed only
// to the LLM, or both (spec.md §3 "Message" metadata.visibility).
type Visibility string

const (
	VisibilityAgentOnly   Visibility = "agent_only"
	VisibilityUserVisible Visibility = "user_visible"
	VisibilityBoth        Visibility = "both"
)

// BlockKind discriminates a ContentBlock's payload (spec.md §3).
type BlockKind string

const (
	BlockText               BlockKind = "text"
	BlockToolRequest         BlockKind = "tool_request"
	BlockToolResponse        BlockKind = "tool_response"
	BlockSystemNotification  BlockKind = "system_notification"
	BlockThinking            BlockKind = "thinking"
)

// ContentBlock is one entry of a Message's ordered content[] (spec.md §3).
// Exactly one of the typed payload fields is populated, selected by Kind.
type ContentBlock struct {
	Kind BlockKind `json:"kind"`

	Text *string `json:"text,omitempty"`

	ToolRequest *ToolRequestBlock  `json:"tool_request,omitempty"`
	ToolResponse *ToolResponseBlock `json:"tool_response,omitempty"`

	SystemNotification *string `json:"system_notification,omitempty"`

	Thinking *ThinkingBlock `json:"thinking,omitempty"`
}

// ToolRequestBlock is a `ToolRequest{id, tool_name, arguments, parse_result}`
// content block. ParseError captures argument-deserialization failure
// without aborting the turn (spec.md §3).
type ToolRequestBlock struct {
	ID        string          `json:"id"`
	ToolName  string          `json:"tool_name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	ParseError string         `json:"parse_error,omitempty"`
}

// ToolResponseBlock is a `ToolResponse{id, result | error}` content block.
type ToolResponseBlock struct {
	ID      string `json:"id"`
	Result  string `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

// ThinkingBlock is produced by the Thinking Handler (C2).
type ThinkingBlock struct {
	Text      string `json:"text"`
	Signature string `json:"signature,omitempty"`
}

func TextBlock(s string) ContentBlock { return ContentBlock{Kind: BlockText, Text: &s} }

// TextBlocks wraps a plain string as a single-element content slice, for
// callers building a Message from a flat string (e.g. platform adapters,
// tests) rather than a pre-structured content block list.
func TextBlocks(s string) []ContentBlock { return []ContentBlock{TextBlock(s)} }

func ToolRequestContentBlock(id, name string, args json.RawMessage, parseErr string) ContentBlock {
	return ContentBlock{Kind: BlockToolRequest, ToolRequest: &ToolRequestBlock{ID: id, ToolName: name, Arguments: args, ParseError: parseErr}}
}

func ToolResponseContentBlock(id, result string, isError bool) ContentBlock {
	return ContentBlock{Kind: BlockToolResponse, ToolResponse: &ToolResponseBlock{ID: id, Result: result, IsError: isError}}
}

func SystemNotificationBlock(s string) ContentBlock {
	return ContentBlock{Kind: BlockSystemNotification, SystemNotification: &s}
}

func ThinkingContentBlock(text, signature string) ContentBlock {
	return ContentBlock{Kind: BlockThinking, Thinking: &ThinkingBlock{Text: text, Signature: signature}}
}

// Message is an entry in a Session's conversation log (spec.md §3).
type Message struct {
	ID          string         `json:"id"`
	SessionID   string         `json:"session_id"`
	Channel     ChannelType    `json:"channel,omitempty"`
	ChannelID   string         `json:"channel_id,omitempty"`
	Direction   Direction      `json:"direction,omitempty"`
	Role        Role           `json:"role"`
	Content     []ContentBlock `json:"content"`
	Visibility  Visibility     `json:"visibility"`
	Attachments []Attachment   `json:"attachments,omitempty"`
	ToolCalls   []ToolCall     `json:"tool_calls,omitempty"`
	ToolResults []ToolResult   `json:"tool_results,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// Text concatenates all Text content blocks, used by providers/retry
// predicates that operate on the plain-text view of a message.
func (m *Message) Text() string {
	var sb []byte
	for _, b := range m.Content {
		if b.Kind == BlockText && b.Text != nil {
			if len(sb) > 0 {
				sb = append(sb, '\n')
			}
			sb = append(sb, *b.Text...)
		}
	}
	return string(sb)
}

// Attachment represents a file or media attachment.
type Attachment struct {
	ID       string `json:"id"`
	Type     string `json:"type"` // image, audio, video, document
	URL      string `json:"url"`
	Filename string `json:"filename,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

// ToolCall represents an LLM's request to execute a tool.
type ToolCall struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Input    json.RawMessage `json:"input"`
}

// ToolResult represents the output of a tool execution.
type ToolResult struct {
	ToolCallID  string       `json:"tool_call_id"`
	Content     string       `json:"content"`
	IsError     bool         `json:"is_error,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// SessionStatus is the lifecycle state of a Session.
type SessionStatus string

const (
	SessionIdle       SessionStatus = "idle"
	SessionProcessing SessionStatus = "processing"
	SessionArchived   SessionStatus = "archived"
	SessionError      SessionStatus = "error"
)

// RetryConfig declares the per-session retry policy evaluated after each
// completed turn (spec §4.6 "Retries").
type RetryConfig struct {
	MaxRetries     int             `json:"max_retries,omitempty"`
	SuccessChecks  []SuccessCheck  `json:"success_checks,omitempty"`
	OnFailureShell string          `json:"on_failure_shell,omitempty"`
}

// SuccessCheckKind selects how a SuccessCheck is evaluated.
type SuccessCheckKind string

const (
	SuccessCheckShell      SuccessCheckKind = "shell"
	SuccessCheckTextRegex  SuccessCheckKind = "text_regex"
	SuccessCheckToolResult SuccessCheckKind = "tool_result"
)

// SuccessCheck is one retry-predicate entry.
type SuccessCheck struct {
	Kind    SuccessCheckKind `json:"kind"`
	Command string           `json:"command,omitempty"`
	Pattern string           `json:"pattern,omitempty"`
}

// Session represents a conversation thread: the durable unit of a chat
// interaction (spec.md §3 "Session").
type Session struct {
	ID        string         `json:"id"`
	Owner     string         `json:"owner"`
	AgentID   string         `json:"agent_id"`
	Channel   ChannelType    `json:"channel,omitempty"`
	ChannelID string         `json:"channel_id,omitempty"`
	Key       string         `json:"key,omitempty"`
	Title     string         `json:"title,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	Status SessionStatus `json:"status"`

	// Messages is the ordered message log. message_count is derived, not
	// stored separately, to keep the invariant in spec.md §3 trivially true.
	Messages []Message `json:"messages,omitempty"`

	InputTokens      int `json:"input_tokens,omitempty"`
	OutputTokens     int `json:"output_tokens,omitempty"`
	CompactionCount  int `json:"compaction_count,omitempty"`

	AllowedExtensions []string `json:"allowed_extensions,omitempty"`
	WorkspaceDir      string   `json:"workspace_dir,omitempty"`

	Retry            RetryConfig `json:"retry,omitempty"`
	TurnBudget       int         `json:"turn_budget,omitempty"`
	ToolTimeoutSec   int         `json:"tool_timeout_seconds,omitempty"`
	PortalRestricted bool        `json:"portal_restricted,omitempty"`

	// IsProcessing is the persistence-store secondary guard described in
	// spec.md §4.5 / §5 "Cross-process guard". It is redundant with the
	// in-memory Session Manager registration under normal operation and
	// only matters across process restarts.
	IsProcessing       bool      `json:"is_processing"`
	ProcessingUpdatedAt time.Time `json:"processing_updated_at,omitempty"`
}

// MessageCount returns the number of user- or assistant-visible messages
// in the log (spec.md §3 invariant: message_count equals this count).
func (s *Session) MessageCount() int {
	n := 0
	for _, m := range s.Messages {
		if m.Visibility != VisibilityAgentOnly {
			n++
		}
	}
	return n
}

// GoalStatus is the status of a single Mission step or goal-tree node.
type GoalStatus string

const (
	GoalPending   GoalStatus = "pending"
	GoalApproved  GoalStatus = "approved"
	GoalRejected  GoalStatus = "rejected"
	GoalDone      GoalStatus = "done"
	GoalAbandoned GoalStatus = "abandoned"
)

// MissionStep is one explicit step of a Mission's plan.
type MissionStep struct {
	ID     string     `json:"id"`
	Title  string     `json:"title"`
	Status GoalStatus `json:"status"`
}

// ApprovalPolicy controls whether Mission steps require manual approval
// before execution proceeds (spec.md §9 Open Questions: approval state
// transitions during paused states are partially externally controlled;
// we implement the four named actions and leave finer sub-states to the
// caller, per the Open Question decision recorded in DESIGN.md).
type ApprovalPolicy string

const (
	ApprovalAuto   ApprovalPolicy = "auto"
	ApprovalManual ApprovalPolicy = "manual"
)

// Mission is a structured multi-step variant of Session (spec.md §3
// "Mission"). The execution engine treats it as a superset of Session via
// the shared ExecutionContext interface.
type Mission struct {
	Session

	Steps          []MissionStep  `json:"steps,omitempty"`
	GoalTree       json.RawMessage `json:"goal_tree,omitempty"`
	ApprovalPolicy ApprovalPolicy `json:"approval_policy,omitempty"`
	Priority       int            `json:"priority,omitempty"`
}

// User represents an authenticated user.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	AvatarURL string    `json:"avatar_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Agent represents a configured AI agent.
type Agent struct {
	ID           string         `json:"id"`
	UserID       string         `json:"user_id"`
	Name         string         `json:"name"`
	SystemPrompt string         `json:"system_prompt,omitempty"`
	Model        string         `json:"model"`
	Provider     string         `json:"provider"`
	Tools        []string       `json:"tools,omitempty"`
	Config       map[string]any `json:"config,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// APIKey represents an API key for programmatic access.
type APIKey struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Prefix     string    `json:"prefix"` // First 8 chars for identification
	Scopes     []string  `json:"scopes,omitempty"`
	LastUsedAt time.Time `json:"last_used_at,omitempty"`
	ExpiresAt  time.Time `json:"expires_at,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
