package recommend

import (
	"context"
	"strings"

	"github.com/mhaberkorn/sparfuchs/textgen"
)

// Decompose extracts the individual product terms from a free-text query.
// The strategies run in order and the first that yields terms wins:
//
//  1. first line of the provider's answer, split on commas
//  2. the raw query as a single term
//
// The terminal strategy cannot fail, so decomposition always returns at
// least one term.
func (e *Engine) Decompose(ctx context.Context, query string) []string {
	raw, err := e.gen.Generate(ctx, extractionPrompt(query), textgen.Options{
		Temperature: e.cfg.DecomposeTemperature,
	})
	if err != nil {
		e.logger.Warn("term extraction failed, using raw query", "error", err)
		return []string{query}
	}
	if terms := parseTermLine(raw); len(terms) > 0 {
		return terms
	}
	e.logger.Warn("term extraction returned nothing usable, using raw query", "raw", raw)
	return []string{query}
}

// parseTermLine splits the first non-empty line of raw on commas, trimming
// whitespace and surrounding quotes. Duplicates keep their first position.
func parseTermLine(raw string) []string {
	var line string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}
	if line == "" {
		return nil
	}

	seen := make(map[string]bool)
	var terms []string
	for _, part := range strings.Split(line, ",") {
		term := strings.Trim(strings.TrimSpace(part), `"'`)
		if term == "" || seen[term] {
			continue
		}
		seen[term] = true
		terms = append(terms, term)
	}
	return terms
}
