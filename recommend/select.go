package recommend

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mhaberkorn/sparfuchs/offer"
	"github.com/mhaberkorn/sparfuchs/textgen"
)

type selection struct {
	Products       []Product `json:"products"`
	Recommendation string    `json:"recommendation"`
}

// selectBest asks the provider to pick one offer per requested item from the
// retrieved candidates.
func (e *Engine) selectBest(ctx context.Context, query string, terms []string, candidates map[string][]offer.Offer) (*selection, error) {
	raw, err := e.gen.Generate(ctx, selectionPrompt(query, terms, candidates), textgen.Options{
		Temperature: e.cfg.SelectTemperature,
		TopP:        e.cfg.SelectTopP,
		JSONMode:    true,
	})
	if err != nil {
		return nil, fmt.Errorf("selection call: %w", err)
	}

	payload, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var sel selection
	if err := json.Unmarshal([]byte(payload), &sel); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return &sel, nil
}
