// Package recommend turns one free-text user query into a set of
// best-matching offers, one per requested product. The pipeline is a small
// state machine over a single query: DECOMPOSE → RETRIEVE_ALL → SELECT →
// DONE. Decomposition is best-effort and falls back to the raw query;
// selection is a language-model tie-break over retrieved candidates and can
// fail the query with a parse error, never a crash.
package recommend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/mhaberkorn/sparfuchs/offer"
	"github.com/mhaberkorn/sparfuchs/textgen"
)

// ErrParse is returned when the provider's selection output cannot be
// decoded as the expected structure.
var ErrParse = errors.New("recommend: unparseable model output")

// Config configures the recommendation engine.
type Config struct {
	// TopK candidates retrieved per decomposed term. Default: 4.
	TopK int `json:"top_k" yaml:"top_k"`

	// DecomposeTemperature for the term-extraction call. Default: 0.2.
	DecomposeTemperature float32 `json:"decompose_temperature" yaml:"decompose_temperature"`

	// SelectTemperature for the selection call. Default: 0.15.
	SelectTemperature float32 `json:"select_temperature" yaml:"select_temperature"`

	// SelectTopP nucleus cutoff for the selection call. Default: 0.9.
	SelectTopP float32 `json:"select_top_p" yaml:"select_top_p"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.TopK <= 0 {
		c.TopK = 4
	}
	if c.DecomposeTemperature <= 0 {
		c.DecomposeTemperature = 0.2
	}
	if c.SelectTemperature <= 0 {
		c.SelectTemperature = 0.15
	}
	if c.SelectTopP <= 0 {
		c.SelectTopP = 0.9
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Engine answers product queries.
type Engine struct {
	retriever *Retriever
	gen       textgen.Generator
	cfg       Config
	logger    *slog.Logger
}

// New creates a recommendation engine.
func New(retriever *Retriever, gen textgen.Generator, cfg Config) *Engine {
	cfg.defaults()
	return &Engine{retriever: retriever, gen: gen, cfg: cfg, logger: cfg.Logger}
}

// Product is one chosen offer in a query result.
type Product struct {
	ProductName string  `json:"product_name"`
	Price       float64 `json:"price"`
	Store       string  `json:"store"`
	ProductURL  string  `json:"product_url,omitempty"`
	RegionCode  string  `json:"region_code,omitempty"`
}

// Response is the result of one query. Exactly one of Products/Recommendation
// or Error is meaningful: failures surface as a well-formed response with an
// error message, never a panic or a nil result.
type Response struct {
	Products       []Product `json:"products,omitempty"`
	Recommendation string    `json:"recommendation,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Answer runs the full pipeline for one query against one region.
func (e *Engine) Answer(ctx context.Context, query, region string) Response {
	if strings.TrimSpace(query) == "" {
		return Response{Error: "please enter a product-related query"}
	}

	terms := e.Decompose(ctx, query)
	candidates := e.retrieveAll(ctx, terms, region)

	sel, err := e.selectBest(ctx, query, terms, candidates)
	if err != nil {
		e.logger.Error("selection failed", "query", query, "error", err)
		return Response{Error: fmt.Sprintf("error during product search: %v", err)}
	}
	return Response{Products: sel.Products, Recommendation: sel.Recommendation}
}

// retrieveAll fans out one retrieval per term. Terms are independent and
// side-effect-free, so they run concurrently; results merge by term key. A
// failed term degrades to an empty candidate list and never aborts siblings.
func (e *Engine) retrieveAll(ctx context.Context, terms []string, region string) map[string][]offer.Offer {
	candidates := make(map[string][]offer.Offer, len(terms))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, term := range terms {
		wg.Add(1)
		go func() {
			defer wg.Done()
			found, err := e.retriever.Retrieve(ctx, term, region, e.cfg.TopK)
			if err != nil {
				e.logger.Warn("retrieval failed for term", "term", term, "error", err)
				found = nil
			}
			mu.Lock()
			candidates[term] = found
			mu.Unlock()
		}()
	}
	wg.Wait()
	return candidates
}
