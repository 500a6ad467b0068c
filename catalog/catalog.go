// Package catalog merges freshly scraped offer batches into the persisted,
// embedded offer catalog without duplicating previously seen offers.
//
// Reconciliation is idempotent over the dedup key: re-running the same batch
// never creates a second entry, and an offer observed from a second region is
// broadened to the ALL sentinel instead of being re-ingested.
package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mhaberkorn/sparfuchs/embed"
	"github.com/mhaberkorn/sparfuchs/offer"
	"github.com/mhaberkorn/sparfuchs/vecstore"
)

// Config configures the reconciliation engine.
type Config struct {
	// Collection is the target collection. One collection per embedding
	// backend — mixing vector spaces in one collection is never valid.
	Collection string `json:"collection" yaml:"collection"`

	// Salt is mixed into deterministic point ids so distinct backends never
	// collide on the same dedup key. Conventionally the backend suffix
	// ("_bert", "_qwen"); empty for the default backend.
	Salt string `json:"salt" yaml:"salt"`

	// ScrollPageSize is the page size for the exhaustive existing-entries
	// scan. Default: 200.
	ScrollPageSize int `json:"scroll_page_size" yaml:"scroll_page_size"`

	// ChunkSize is the initial upsert batch size. Default: 100.
	ChunkSize int `json:"chunk_size" yaml:"chunk_size"`

	// ChunkFloor is the minimum chunk size reached by timeout backoff.
	// Default: 20.
	ChunkFloor int `json:"chunk_floor" yaml:"chunk_floor"`

	// Logger for progress and error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Collection == "" {
		c.Collection = "offers"
	}
	if c.ScrollPageSize <= 0 {
		c.ScrollPageSize = 200
	}
	if c.ChunkSize <= 0 {
		c.ChunkSize = 100
	}
	if c.ChunkFloor <= 0 {
		c.ChunkFloor = 20
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine reconciles offer batches against one collection.
type Engine struct {
	store    vecstore.Store
	embedder embed.Embedder
	cfg      Config
	logger   *slog.Logger
}

// New creates a reconciliation engine.
func New(store vecstore.Store, embedder embed.Embedder, cfg Config) *Engine {
	cfg.defaults()
	return &Engine{store: store, embedder: embedder, cfg: cfg, logger: cfg.Logger}
}

// Collection returns the configured target collection.
func (e *Engine) Collection() string { return e.cfg.Collection }

// Summary reports what one reconciliation run did.
type Summary struct {
	Received  int `json:"received"`  // raw rows in
	Rejected  int `json:"rejected"`  // dropped by validation
	Duplicate int `json:"duplicate"` // dropped as in-batch dedup key repeats
	Known     int `json:"known"`     // already indexed, no new entry
	Broadened int `json:"broadened"` // known entries promoted to region ALL
	Inserted  int `json:"inserted"`  // new entries upserted
}

// Reconcile merges a batch of raw rows scraped for one region into the
// catalog. On error the collection may be partially updated; there is no
// rollback.
func (e *Engine) Reconcile(ctx context.Context, region string, rows []offer.RawRow) (*Summary, error) {
	sum := &Summary{Received: len(rows)}

	// Normalize and drop invalid rows; dedup within the batch, first wins.
	seen := make(map[string]bool, len(rows))
	var batch []offer.Offer
	for _, raw := range rows {
		o, err := offer.Normalize(raw)
		if err != nil {
			sum.Rejected++
			e.logger.Debug("row rejected", "error", err)
			continue
		}
		key := o.DedupKey()
		if seen[key] {
			sum.Duplicate++
			continue
		}
		seen[key] = true
		batch = append(batch, o)
	}

	if err := e.ensureCollection(ctx); err != nil {
		return sum, fmt.Errorf("catalog: reconcile: %w", err)
	}

	existing, err := e.loadExisting(ctx)
	if err != nil {
		return sum, fmt.Errorf("catalog: reconcile: %w", err)
	}

	// Partition into known and new; collect ids needing region broadening.
	var broaden []uint64
	var fresh []offer.Offer
	for _, o := range batch {
		entry, ok := existing[o.DedupKey()]
		if !ok {
			fresh = append(fresh, o)
			continue
		}
		sum.Known++
		if entry.region != offer.RegionAll {
			broaden = append(broaden, entry.id)
		}
	}

	if len(broaden) > 0 {
		patch := map[string]any{"region_code": offer.RegionAll}
		if err := e.store.SetPayload(ctx, e.cfg.Collection, patch, broaden); err != nil {
			return sum, fmt.Errorf("catalog: reconcile: broaden regions: %w", err)
		}
		sum.Broadened = len(broaden)
	}

	if len(fresh) > 0 {
		points, err := e.buildPoints(ctx, region, fresh)
		if err != nil {
			return sum, fmt.Errorf("catalog: reconcile: %w", err)
		}
		inserted, err := e.upsertChunks(ctx, points)
		sum.Inserted = inserted
		if err != nil {
			return sum, fmt.Errorf("catalog: reconcile: %w", err)
		}
	}

	e.logger.Info("reconcile complete",
		"collection", e.cfg.Collection,
		"region", region,
		"received", sum.Received,
		"rejected", sum.Rejected,
		"inserted", sum.Inserted,
		"broadened", sum.Broadened)
	return sum, nil
}

// ensureCollection creates the collection lazily, sizing it by probing a
// one-text embedding call.
func (e *Engine) ensureCollection(ctx context.Context) error {
	exists, err := e.store.CollectionExists(ctx, e.cfg.Collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	probe, err := e.embedder.Embed(ctx, "dimension probe")
	if err != nil {
		return fmt.Errorf("probe embedding dimension: %w", err)
	}
	if len(probe) == 0 {
		return fmt.Errorf("embedding backend returned an empty probe vector")
	}
	return e.store.CreateCollection(ctx, e.cfg.Collection, len(probe))
}

type existingEntry struct {
	id     uint64
	region string
}

// loadExisting scans the entire collection. The scan is exhaustive on
// purpose: dedup correctness requires seeing every prior entry, so there is
// no early termination.
func (e *Engine) loadExisting(ctx context.Context) (map[string]existingEntry, error) {
	out := make(map[string]existingEntry)
	var offset any
	for {
		page, next, err := e.store.Scroll(ctx, e.cfg.Collection, nil, e.cfg.ScrollPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("scroll existing entries: %w", err)
		}
		for _, p := range page {
			key, region, ok := keyFromPayload(p.Payload)
			if !ok {
				continue
			}
			out[key] = existingEntry{id: p.ID, region: region}
		}
		if len(page) == 0 || next == nil {
			return out, nil
		}
		offset = next
	}
}

func keyFromPayload(payload map[string]any) (key, region string, ok bool) {
	name, _ := payload["product_name"].(string)
	store, _ := payload["store_name"].(string)
	price, isNum := payload["price"].(float64)
	if name == "" || store == "" || !isNum {
		return "", "", false
	}
	region, _ = payload["region_code"].(string)
	o := offer.Offer{ProductName: name, StoreName: store, Price: price}
	return o.DedupKey(), region, true
}

// buildPoints embeds the descriptive texts of all new offers in one batch
// request and assembles indexable points with deterministic ids.
func (e *Engine) buildPoints(ctx context.Context, region string, fresh []offer.Offer) ([]vecstore.Point, error) {
	texts := make([]string, len(fresh))
	for i, o := range fresh {
		texts[i] = pageContent(o, region)
	}
	e.logger.Info("embedding new offers", "count", len(texts), "model", e.embedder.Model())
	vectors, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d offers: %w", len(texts), err)
	}

	points := make([]vecstore.Point, len(fresh))
	for i, o := range fresh {
		points[i] = vecstore.Point{
			ID:     PointID(o.DedupKey(), e.cfg.Salt),
			Vector: vectors[i],
			Payload: map[string]any{
				"category":     o.Category,
				"product_name": o.ProductName,
				"price":        o.Price,
				"region_code":  region,
				"store_name":   o.StoreName,
				"product_url":  o.ProductURL,
				"etl_version":  1,
			},
		}
	}
	return points, nil
}

// pageContent is the descriptive text embedded per offer.
func pageContent(o offer.Offer, region string) string {
	return fmt.Sprintf("%s at %s for %s EUR | category: %s | region: %s",
		o.ProductName, o.StoreName, offer.FormatPrice(o.Price), o.Category, region)
}
