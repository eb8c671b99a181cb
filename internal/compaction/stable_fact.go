package compaction

import (
	"fmt"
	"regexp"
	"strings"
)

// StableFactMarker tags a synthesized memory snapshot message; its presence
// anywhere in a conversation means that conversation has already been
// compacted (spec.md §4.7's idempotence property).
const StableFactMarker = "[CFPM_MEMORY_V1]"

const (
	minMessagesForAutoCompact = 12
	maxItemsPerSection        = 8
	maxItemLength             = 220
	retainHeadCount           = 2
	retainTailCount           = 8
)

var (
	goalVerbPattern    = regexp.MustCompile(`(?i)\b(must|should|need|require|keep)\b`)
	planMarkerPattern  = regexp.MustCompile(`(?i)\b(plan|decided|decision)\b`)
	openItemPattern    = regexp.MustCompile(`(?i)\b(todo|remaining|pending|next)\b`)
	errorMarkerPattern = regexp.MustCompile(`(?i)(\berror\b|\bfailed\b|\bfailure\b|exit code:\s*[1-9])`)
	windowsPathPattern = regexp.MustCompile(`[A-Za-z]:\\[^\s"'<>:]+`)
	posixPathPattern   = regexp.MustCompile(`(?:^|[\s(])(/[^\s"'<>:)]+)`)
	urlSchemePattern   = regexp.MustCompile(`(?i)^[a-z][a-z0-9+.-]*://`)
	dateTokenPattern   = regexp.MustCompile(`^\d{4}/\d{1,2}/\d{1,2}$`)
)

// StableFactResult is the output of CompactStableFacts.
type StableFactResult struct {
	Conversation []*Message
	Compacted    bool
	Snapshot     string
}

// CompactStableFacts implements the rule-based Memory Compactor contract
// (spec.md §4.7): `compact(conversation, manual?) -> (new_conversation,
// usage)`. The first two and last eight messages are retained verbatim; the
// middle slice is replaced by those same messages marked AgentOnly, a
// synthesized user-role snapshot tagged AgentOnly, and a boilerplate
// assistant-role continuation tagged AgentOnly.
//
// Skipped (input returned unchanged) when the conversation already carries
// StableFactMarker, or has fewer than 12 messages and manual is false — this
// is what makes compact(compact(c)) = compact(c).
func CompactStableFacts(conversation []*Message, manual bool) (*StableFactResult, error) {
	if len(conversation) == 0 {
		return &StableFactResult{Conversation: conversation}, nil
	}
	if alreadyCompacted(conversation) {
		return &StableFactResult{Conversation: conversation}, nil
	}
	if !manual && len(conversation) < minMessagesForAutoCompact {
		return &StableFactResult{Conversation: conversation}, nil
	}
	if len(conversation) <= retainHeadCount+retainTailCount {
		return &StableFactResult{Conversation: conversation}, nil
	}

	head := conversation[:retainHeadCount]
	tail := conversation[len(conversation)-retainTailCount:]
	middle := conversation[retainHeadCount : len(conversation)-retainTailCount]

	snapshot := buildStableFactSnapshot(middle)

	out := make([]*Message, 0, len(conversation)+2)
	out = append(out, head...)
	for _, m := range middle {
		hidden := *m
		hidden.AgentOnly = true
		out = append(out, &hidden)
	}
	out = append(out, &Message{Role: "user", Content: snapshot, AgentOnly: true})
	out = append(out, &Message{Role: "assistant", Content: "Noted.", AgentOnly: true})
	out = append(out, tail...)

	return &StableFactResult{Conversation: out, Compacted: true, Snapshot: snapshot}, nil
}

func alreadyCompacted(conversation []*Message) bool {
	for _, m := range conversation {
		if m != nil && strings.Contains(m.Content, StableFactMarker) {
			return true
		}
	}
	return false
}

func buildStableFactSnapshot(middle []*Message) string {
	var b strings.Builder
	b.WriteString(StableFactMarker)
	b.WriteString("\n")
	writeSnapshotSection(&b, "User goals", extractUserGoals(middle))
	writeSnapshotSection(&b, "Verified actions", extractVerifiedActions(middle))
	writeSnapshotSection(&b, "Artifacts", extractArtifacts(middle))
	writeSnapshotSection(&b, "Open items", extractOpenItems(middle))
	return strings.TrimRight(b.String(), "\n")
}

func writeSnapshotSection(b *strings.Builder, title string, items []string) {
	b.WriteString(title)
	b.WriteString(":\n")
	if len(items) == 0 {
		b.WriteString("- (none)\n")
		return
	}
	for _, item := range items {
		b.WriteString("- ")
		b.WriteString(item)
		b.WriteString("\n")
	}
}

func extractUserGoals(middle []*Message) []string {
	var lines []string
	for _, m := range middle {
		if m == nil || !strings.EqualFold(m.Role, "user") {
			continue
		}
		for _, line := range splitNonEmptyLines(m.Content) {
			if goalVerbPattern.MatchString(line) {
				lines = append(lines, line)
			}
		}
	}
	return dedupCapTruncate(lines)
}

func extractVerifiedActions(middle []*Message) []string {
	var items []string
	for _, m := range middle {
		if m == nil {
			continue
		}
		if strings.EqualFold(m.Role, "assistant") {
			for _, line := range splitNonEmptyLines(m.Content) {
				if planMarkerPattern.MatchString(line) {
					items = append(items, line)
				}
			}
		}
		if result := strings.TrimSpace(m.ToolResults); result != "" && !errorMarkerPattern.MatchString(result) {
			items = append(items, fmt.Sprintf("Executed successfully: %s", truncateToolSummary(result)))
		}
	}
	return dedupCapTruncate(items)
}

func extractArtifacts(middle []*Message) []string {
	var paths []string
	for _, m := range middle {
		if m == nil {
			continue
		}
		for _, text := range []string{m.Content, m.ToolResults} {
			paths = append(paths, windowsPathPattern.FindAllString(text, -1)...)
			paths = append(paths, posixPathMatches(text)...)
		}
	}

	var filtered []string
	for _, p := range paths {
		p = strings.TrimSpace(p)
		if p == "" || urlSchemePattern.MatchString(p) || dateTokenPattern.MatchString(p) {
			continue
		}
		filtered = append(filtered, p)
	}
	return dedupCapTruncate(filtered)
}

func posixPathMatches(s string) []string {
	matches := posixPathPattern.FindAllStringSubmatch(s, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func extractOpenItems(middle []*Message) []string {
	var lines []string
	for _, m := range middle {
		if m == nil {
			continue
		}
		for _, line := range splitNonEmptyLines(m.Content) {
			if openItemPattern.MatchString(line) {
				lines = append(lines, line)
			}
		}
	}
	return dedupCapTruncate(lines)
}

func splitNonEmptyLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			out = append(out, line)
		}
	}
	return out
}

// dedupCapTruncate deduplicates by a case-insensitive, whitespace-normalized
// key, caps the result at maxItemsPerSection, and truncates each surviving
// item to maxItemLength characters (spec.md §4.7).
func dedupCapTruncate(items []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		key := strings.ToLower(strings.Join(strings.Fields(item), " "))
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, truncateToolSummary(item))
		if len(out) >= maxItemsPerSection {
			break
		}
	}
	return out
}

func truncateToolSummary(s string) string {
	if len(s) <= maxItemLength {
		return s
	}
	return s[:maxItemLength]
}
