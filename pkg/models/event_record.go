package models

import "time"

// EventType discriminates the Event union carried by an EventRecord
// (spec.md §3 "EventRecord").
type EventType string

const (
	EventStatus      EventType = "status"
	EventTextDelta   EventType = "text_delta"
	EventToolRequest EventType = "tool_request"
	EventToolResult  EventType = "tool_result"
	EventThinking    EventType = "thinking"
	EventCompacted   EventType = "compacted"
	EventUsage       EventType = "usage"
	EventDone        EventType = "done"
)

// DoneReason is the terminal reason carried by a Done event (spec.md §4.6
// step 8, §7 "Cancellation").
type DoneReason string

const (
	DoneCompleted DoneReason = "completed"
	DoneCancelled DoneReason = "cancelled"
	DoneMaxTurns  DoneReason = "max_turns"
	DoneError     DoneReason = "error"
)

// Event is the payload union of an EventRecord. Exactly one field is
// populated, selected by Type.
type Event struct {
	Type EventType `json:"type"`

	Status *StatusEvent `json:"status,omitempty"`

	TextDelta *TextDeltaEvent `json:"text_delta,omitempty"`

	ToolRequest *ToolRequestEvent `json:"tool_request,omitempty"`
	ToolResult  *ToolResultEvent  `json:"tool_result,omitempty"`

	Thinking *ThinkingEvent `json:"thinking,omitempty"`

	Compacted *CompactedEvent `json:"compacted,omitempty"`

	Usage *UsageEvent `json:"usage,omitempty"`

	Done *DoneEvent `json:"done,omitempty"`
}

type StatusEvent struct {
	Status string `json:"status"` // e.g. "running"
}

type TextDeltaEvent struct {
	Delta string `json:"delta"`
}

type ToolRequestEvent struct {
	ID        string `json:"id"`
	ToolName  string `json:"tool_name"`
	Arguments string `json:"arguments,omitempty"`
}

type ToolResultEvent struct {
	ID      string `json:"id"`
	Result  string `json:"result,omitempty"`
	IsError bool   `json:"is_error,omitempty"`
}

type ThinkingEvent struct {
	Delta     string `json:"delta,omitempty"`
	Final     bool   `json:"final,omitempty"`
	Signature string `json:"signature,omitempty"`
}

type CompactedEvent struct {
	MessagesBefore int `json:"messages_before"`
	MessagesAfter  int `json:"messages_after"`
	TokensBefore   int `json:"tokens_before"`
	TokensAfter    int `json:"tokens_after"`
}

type UsageEvent struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type DoneEvent struct {
	Reason DoneReason `json:"reason"`
	Detail string     `json:"detail,omitempty"`
}

// EventRecord is an ordered {id, event} pair per session (spec.md §3). Id
// is assigned by the Event Bus and is monotone within a session.
type EventRecord struct {
	ID        uint64    `json:"id"`
	SessionID string    `json:"session_id"`
	Event     Event     `json:"event"`
	Time      time.Time `json:"time"`
}

// IsDone reports whether this record carries the terminal Done event
// (spec.md §3 invariant: exactly one Done per execution, terminal).
func (r EventRecord) IsDone() bool { return r.Event.Type == EventDone }
