// Package naming composes and decomposes the Tool Fabric's LLM-facing tool
// names (spec.md §4.3 "Tool naming").
//
// A tool presented to the LLM is named "{extension_key}__{tool_key}". To
// prevent ambiguity from a segment that itself contains "__", each segment
// has its own "__" replaced with "_" before composition, so splitting on the
// first "__" in a composed name is always unambiguous.
package naming

import "strings"

// Separator joins an extension key and a tool key into a composed name.
const Separator = "__"

// ExtensionManagerKey is the extension key reserved for the Tool Fabric's
// Extension Manager meta-provider (spec.md §4.3, call routing step 1).
const ExtensionManagerKey = "extensionmanager"

// sanitizeSegment collapses a segment's own "__" so it can never be mistaken
// for the composed name's separator.
func sanitizeSegment(s string) string {
	return strings.ReplaceAll(s, Separator, "_")
}

// Compose builds the LLM-facing tool name for a tool_key exposed by an
// extension registered under extensionKey.
func Compose(extensionKey, toolKey string) string {
	return sanitizeSegment(extensionKey) + Separator + sanitizeSegment(toolKey)
}

// Split reverses Compose, returning the extension key and the original tool
// key. ok is false if name does not contain the "__" separator.
func Split(name string) (extensionKey, toolKey string, ok bool) {
	idx := strings.Index(name, Separator)
	if idx < 0 {
		return "", "", false
	}
	return name[:idx], name[idx+len(Separator):], true
}

// ExtensionOf reports the extension key a composed tool name was minted
// under, or "" if name isn't a validly composed tool name.
func ExtensionOf(name string) string {
	extKey, _, ok := Split(name)
	if !ok {
		return ""
	}
	return extKey
}

// IsExtensionManagerTool reports whether name is routed to the Extension
// Manager (spec.md §4.3 call routing step 1).
func IsExtensionManagerTool(name string) bool {
	return ExtensionOf(name) == ExtensionManagerKey
}
