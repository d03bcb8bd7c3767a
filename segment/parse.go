package segment

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ============================================================================
// PLAN PARSER — extracts a segmentation plan from generated text
// ============================================================================

// plan is the generator's JSON response: the segments plus optional
// per-segment condition text.
type plan struct {
	Segments []Segment  `json:"segments"`
	Rules    []planRule `json:"rules"`
}

type planRule struct {
	Segment    string `json:"segment"`
	Conditions string `json:"conditions"`
}

// parsePlan extracts the plan JSON from a model response. Models wrap
// JSON in markdown fences or preamble text often enough that both the
// fence strip and the outermost-braces fallback earn their keep.
func parsePlan(response string) (*plan, error) {
	cleaned := stripFences(response)

	var p plan
	if err := json.Unmarshal([]byte(cleaned), &p); err != nil {
		if inner, ok := braceSubstring(cleaned); ok {
			if err2 := json.Unmarshal([]byte(inner), &p); err2 != nil {
				return nil, fmt.Errorf("failed to parse segmentation plan: %w (response: %.200s)", err2, response)
			}
		} else {
			return nil, fmt.Errorf("failed to parse segmentation plan: %w (response: %.200s)", err, response)
		}
	}

	if len(p.Segments) == 0 {
		return nil, fmt.Errorf("segmentation plan has no segments (response: %.200s)", response)
	}
	return &p, nil
}

// stripFences removes markdown code blocks if present.
func stripFences(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

// braceSubstring returns the text between the first "{" and last "}".
func braceSubstring(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}
