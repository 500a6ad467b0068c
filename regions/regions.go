// Package regions tracks which geographic regions already hold a scraped
// offer snapshot. Records live in a dedicated registry collection that is
// only ever queried by payload filter, so it carries a degenerate
// one-dimension vector.
package regions

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"time"

	"github.com/mhaberkorn/sparfuchs/offer"
	"github.com/mhaberkorn/sparfuchs/vecstore"
)

// StatusCompleted marks a region whose catalog snapshot finished ingesting.
const StatusCompleted = "completed"

// Config configures the region registry.
type Config struct {
	// Collection holding region records. Default: "regions".
	Collection string `json:"collection" yaml:"collection"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Collection == "" {
		c.Collection = "regions"
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Registry reads and writes region records.
type Registry struct {
	store  vecstore.Store
	cfg    Config
	logger *slog.Logger
}

// New creates a region registry.
func New(store vecstore.Store, cfg Config) *Registry {
	cfg.defaults()
	return &Registry{store: store, cfg: cfg, logger: cfg.Logger}
}

// Record is one region's scrape state.
type Record struct {
	RegionCode   string `json:"region_code"`
	ScrapedAt    string `json:"scraped_at"`
	Status       string `json:"status"`
	ProductCount int    `json:"product_count"`
}

// Available reports whether queries for the region can be served without
// scraping first. The ALL sentinel is always available; any other region is
// available iff a completed record exists for exactly that code — a point
// lookup, no prefix or partial matching.
func (r *Registry) Available(ctx context.Context, region string) (bool, error) {
	if region == offer.RegionAll {
		return true, nil
	}
	exists, err := r.store.CollectionExists(ctx, r.cfg.Collection)
	if err != nil {
		return false, fmt.Errorf("regions: check registry: %w", err)
	}
	if !exists {
		return false, nil
	}
	filter := &vecstore.Filter{Must: []vecstore.Condition{
		{Key: "region_code", Match: region},
		{Key: "status", Match: StatusCompleted},
	}}
	found, _, err := r.store.Scroll(ctx, r.cfg.Collection, filter, 1, nil)
	if err != nil {
		return false, fmt.Errorf("regions: lookup %s: %w", region, err)
	}
	return len(found) > 0, nil
}

// MarkCompleted writes or overwrites the region's record with a completed
// status, the current timestamp, and the count of offers processed. Called
// on the ingestion path only, after a successful reconciliation run.
func (r *Registry) MarkCompleted(ctx context.Context, region string, productCount int) error {
	exists, err := r.store.CollectionExists(ctx, r.cfg.Collection)
	if err != nil {
		return fmt.Errorf("regions: check registry: %w", err)
	}
	if !exists {
		if err := r.store.CreateCollection(ctx, r.cfg.Collection, 1); err != nil {
			return fmt.Errorf("regions: create registry: %w", err)
		}
	}
	point := vecstore.Point{
		ID:     recordID(region),
		Vector: []float32{0},
		Payload: map[string]any{
			"region_code":   region,
			"scraped_at":    time.Now().UTC().Format(time.RFC3339),
			"status":        StatusCompleted,
			"product_count": productCount,
		},
	}
	if err := r.store.Upsert(ctx, r.cfg.Collection, []vecstore.Point{point}); err != nil {
		return fmt.Errorf("regions: record %s: %w", region, err)
	}
	r.logger.Info("region recorded", "region", region, "product_count", productCount)
	return nil
}

// recordID derives a stable id from the region code so re-registration
// overwrites the existing record instead of accumulating rows.
func recordID(region string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(region))
	return h.Sum64() & (1<<63 - 1)
}
