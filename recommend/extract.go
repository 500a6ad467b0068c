package recommend

import (
	"fmt"
	"strings"
)

// extractJSON pulls a JSON object out of raw model output. Models wrap JSON
// in markdown fences or chatter around it even when asked not to, so two
// recovery passes run before giving up: strip a fenced block, then take the
// span from the first '{' to the last '}'.
func extractJSON(raw string) (string, error) {
	s := stripFences(raw)
	if strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}") {
		return s, nil
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		return s[start : end+1], nil
	}
	return "", fmt.Errorf("%w: no JSON object in %q", ErrParse, truncate(raw, 120))
}

// stripFences removes a surrounding markdown code fence, including an
// optional language tag on the opening line.
func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = s[3:]
	if nl := strings.Index(s, "\n"); nl >= 0 && !strings.Contains(s[:nl], "{") {
		s = s[nl+1:]
	}
	if end := strings.LastIndex(s, "```"); end >= 0 {
		s = s[:end]
	}
	return strings.TrimSpace(s)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
