package compaction

import (
	"strings"
	"testing"
)

func buildConversation(n int) []*Message {
	msgs := make([]*Message, 0, n)
	for i := 0; i < n; i++ {
		msgs = append(msgs, &Message{Role: "user", Content: "hello"})
	}
	return msgs
}

func TestCompactStableFactsSkipsShortAutoConversation(t *testing.T) {
	conv := buildConversation(10)
	result, err := CompactStableFacts(conv, false)
	if err != nil {
		t.Fatalf("CompactStableFacts() error = %v", err)
	}
	if result.Compacted {
		t.Fatal("expected no compaction below the 12-message threshold")
	}
}

func TestCompactStableFactsManualOverridesThreshold(t *testing.T) {
	conv := buildConversation(10)
	result, err := CompactStableFacts(conv, true)
	if err != nil {
		t.Fatalf("CompactStableFacts() error = %v", err)
	}
	if !result.Compacted {
		t.Fatal("expected manual compaction to run below the 12-message threshold")
	}
}

func TestCompactStableFactsIdempotent(t *testing.T) {
	conv := buildConversation(20)
	first, err := CompactStableFacts(conv, true)
	if err != nil {
		t.Fatalf("first CompactStableFacts() error = %v", err)
	}
	if !first.Compacted {
		t.Fatal("expected first pass to compact")
	}

	second, err := CompactStableFacts(first.Conversation, true)
	if err != nil {
		t.Fatalf("second CompactStableFacts() error = %v", err)
	}
	if second.Compacted {
		t.Fatal("expected second pass to be a no-op (idempotence)")
	}
	if len(second.Conversation) != len(first.Conversation) {
		t.Fatalf("expected unchanged conversation, got %d vs %d messages", len(second.Conversation), len(first.Conversation))
	}
}

func TestCompactStableFactsRetainsHeadAndTail(t *testing.T) {
	conv := buildConversation(20)
	conv[0].Content = "first message"
	conv[1].Content = "second message"
	for i := 12; i < 20; i++ {
		conv[i].Content = "tail message"
	}

	result, err := CompactStableFacts(conv, true)
	if err != nil {
		t.Fatalf("CompactStableFacts() error = %v", err)
	}

	if result.Conversation[0].Content != "first message" || result.Conversation[1].Content != "second message" {
		t.Fatal("expected first two messages retained verbatim")
	}

	tailStart := len(result.Conversation) - retainTailCount
	for i := tailStart; i < len(result.Conversation); i++ {
		if result.Conversation[i].Content != "tail message" {
			t.Fatalf("expected retained tail message at %d, got %q", i, result.Conversation[i].Content)
		}
	}
}

func TestCompactStableFactsScenarioS6(t *testing.T) {
	conv := buildConversation(20)
	conv[10] = &Message{
		Role:        "assistant",
		Content:     "Running the export.",
		ToolResults: "Exit code: 0, Saved to C:\\tmp\\out.txt on 2024/7/19",
	}
	conv[11] = &Message{
		Role:        "assistant",
		Content:     "Retried the export.",
		ToolResults: "Exit code: 1, File not found",
	}

	result, err := CompactStableFacts(conv, true)
	if err != nil {
		t.Fatalf("CompactStableFacts() error = %v", err)
	}
	if !result.Compacted {
		t.Fatal("expected compaction to run")
	}

	if !containsSubstring(result.Snapshot, `Saved to C:\tmp\out.txt`) {
		t.Fatalf("expected snapshot to retain the successful artifact, got:\n%s", result.Snapshot)
	}
	if containsSubstring(result.Snapshot, "File not found") {
		t.Fatalf("expected snapshot to exclude the failed tool result, got:\n%s", result.Snapshot)
	}
	if containsSubstring(result.Snapshot, "2024/7/19") {
		t.Fatalf("expected snapshot to exclude the date token from artifacts, got:\n%s", result.Snapshot)
	}
}

func containsSubstring(haystack, needle string) bool {
	return strings.Contains(haystack, needle)
}
