package thinking

import (
	"strings"

	"github.com/agentcore/core/pkg/models"
)

// StreamAccumulator incrementally builds a thinking block from streamed
// response chunks, emitting PartialThinking deltas as they arrive (spec.md
// §4.2 "Streaming").
type StreamAccumulator struct {
	shape models.ResponseShape
	cfg   models.ThinkingResponseConfig

	inBlock bool
	buf     strings.Builder
	sig     string
}

// NewStreamAccumulator creates an accumulator for the given capability's
// thinking response shape.
func NewStreamAccumulator(caps models.ResolvedCapabilities) *StreamAccumulator {
	return &StreamAccumulator{
		shape: caps.Definition.Thinking.Response.Shape,
		cfg:   caps.Definition.Thinking.Response,
	}
}

// Feed processes one streamed chunk (a decoded event body) and returns a
// delta to publish as a Thinking event, if any.
//
// For the ContentBlock shape, the accumulator tracks an in-thinking-block
// flag keyed on "type" transitions (content_block_start/stop carrying the
// configured block type). For the Field shape, every chunk is inspected at
// the configured field path; non-empty strings extend the buffer.
func (a *StreamAccumulator) Feed(chunk map[string]any) (delta string, ok bool) {
	switch a.shape {
	case models.ResponseContentBlock:
		return a.feedContentBlock(chunk)
	case models.ResponseField:
		return a.feedField(chunk)
	default:
		return "", false
	}
}

func (a *StreamAccumulator) feedContentBlock(chunk map[string]any) (string, bool) {
	eventType, _ := chunk["type"].(string)
	switch eventType {
	case "content_block_start":
		block, _ := chunk["content_block"].(map[string]any)
		if t, _ := block["type"].(string); t == a.cfg.BlockType {
			a.inBlock = true
		}
		return "", false
	case "content_block_delta":
		if !a.inBlock {
			return "", false
		}
		delta, _ := chunk["delta"].(map[string]any)
		if text, ok := delta["thinking"].(string); ok && text != "" {
			a.buf.WriteString(text)
			return text, true
		}
		if sig, ok := delta["signature"].(string); ok && sig != "" {
			a.sig = sig
		}
		return "", false
	case "content_block_stop":
		a.inBlock = false
		return "", false
	default:
		return "", false
	}
}

func (a *StreamAccumulator) feedField(chunk map[string]any) (string, bool) {
	value, ok := getDotPath(chunk, a.cfg.FieldPath)
	if !ok {
		return "", false
	}
	text, _ := value.(string)
	if text == "" {
		return "", false
	}
	a.buf.WriteString(text)
	return text, true
}

// Finalize returns the accumulated thinking block. ok is false if nothing
// was ever accumulated.
func (a *StreamAccumulator) Finalize() (*models.ThinkingBlock, bool) {
	text := a.buf.String()
	if text == "" {
		return nil, false
	}
	return &models.ThinkingBlock{Text: text, Signature: a.sig}, true
}
