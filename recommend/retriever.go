package recommend

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mhaberkorn/sparfuchs/embed"
	"github.com/mhaberkorn/sparfuchs/offer"
	"github.com/mhaberkorn/sparfuchs/vecstore"
)

// Retriever resolves one product term to its nearest offers in the catalog
// collection.
type Retriever struct {
	store      vecstore.Store
	embedder   embed.Embedder
	collection string
	logger     *slog.Logger
}

// NewRetriever creates a retriever over the given offer collection.
func NewRetriever(store vecstore.Store, embedder embed.Embedder, collection string, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{store: store, embedder: embedder, collection: collection, logger: logger}
}

// Retrieve embeds term and returns the top k offers visible from region.
// Region-scoped queries see the union of region-wide ("ALL") offers and
// offers recorded for that exact region; an "ALL" query is unfiltered.
func (r *Retriever) Retrieve(ctx context.Context, term, region string, k int) ([]offer.Offer, error) {
	vector, err := r.embedder.Embed(ctx, term)
	if err != nil {
		return nil, fmt.Errorf("embed term %q: %w", term, err)
	}

	var filter *vecstore.Filter
	if region != offer.RegionAll {
		filter = &vecstore.Filter{Must: []vecstore.Condition{
			{Key: "region_code", MatchAny: []string{offer.RegionAll, region}},
		}}
	}

	scored, err := r.store.Search(ctx, r.collection, vector, filter, k)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", term, err)
	}

	offers := make([]offer.Offer, 0, len(scored))
	for _, p := range scored {
		offers = append(offers, offerFromPayload(p.Payload))
	}
	r.logger.Debug("retrieved candidates", "term", term, "region", region, "count", len(offers))
	return offers, nil
}

func offerFromPayload(payload map[string]any) offer.Offer {
	o := offer.Offer{
		Category:    payloadString(payload, "category"),
		ProductName: payloadString(payload, "product_name"),
		ProductURL:  payloadString(payload, "product_url"),
		StoreName:   payloadString(payload, "store_name"),
		RegionCode:  payloadString(payload, "region_code"),
	}
	if price, ok := payload["price"]; ok {
		if parsed, err := offer.ParsePrice(price); err == nil {
			o.Price = parsed
		}
	}
	return o
}

func payloadString(payload map[string]any, key string) string {
	s, _ := payload[key].(string)
	return s
}
