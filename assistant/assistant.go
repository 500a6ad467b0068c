// Package assistant wires the offer pipeline end to end: region registry,
// store scrapers, catalog reconciliation, and the recommendation engine,
// exposed over HTTP and MCP.
package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mhaberkorn/sparfuchs/catalog"
	"github.com/mhaberkorn/sparfuchs/offer"
	"github.com/mhaberkorn/sparfuchs/querylog"
	"github.com/mhaberkorn/sparfuchs/recommend"
	"github.com/mhaberkorn/sparfuchs/regions"
	"github.com/mhaberkorn/sparfuchs/scrape"
)

// ErrInvalidRegion is returned when a region input contains digits but not a
// complete 5-digit code.
var ErrInvalidRegion = errors.New("assistant: region code must be 5 digits")

// ErrAllScrapersFailed is returned by ingestion when no store produced rows.
var ErrAllScrapersFailed = errors.New("assistant: all store scrapers failed")

// Service is the top-level offer assistant.
type Service struct {
	regions  *regions.Registry
	catalog  *catalog.Engine
	rec      *recommend.Engine
	scrapers []scrape.Scraper
	log      *querylog.Store
	logger   *slog.Logger
}

// New wires a Service. The query log may be nil; queries then go unlogged.
func New(reg *regions.Registry, cat *catalog.Engine, rec *recommend.Engine, scrapers []scrape.Scraper, qlog *querylog.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		regions:  reg,
		catalog:  cat,
		rec:      rec,
		scrapers: scrapers,
		log:      qlog,
		logger:   logger,
	}
}

// NormalizeRegion canonicalizes user region input: everything but digits is
// stripped, an input without digits means "everywhere", and a digit input
// must form a complete 5-digit code.
func NormalizeRegion(raw string) (string, error) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	code := digits.String()
	if code == "" {
		return offer.RegionAll, nil
	}
	if len(code) != 5 {
		return "", fmt.Errorf("%w: got %q", ErrInvalidRegion, raw)
	}
	return code, nil
}

// Ask answers one user query. When the region has never been ingested the
// call scrapes and reconciles it first, synchronously. All failures come
// back inside the response's error field.
func (s *Service) Ask(ctx context.Context, query, region string) recommend.Response {
	code, err := NormalizeRegion(region)
	if err != nil {
		return s.logged(ctx, query, region,
			recommend.Response{Error: "please enter a valid 5-digit region code"})
	}

	available, err := s.regions.Available(ctx, code)
	if err != nil {
		s.logger.Error("region availability check failed", "region", code, "error", err)
		return s.logged(ctx, query, code,
			recommend.Response{Error: fmt.Sprintf("error during product search: %v", err)})
	}
	if !available {
		s.logger.Info("region not ingested yet, scraping now", "region", code)
		if _, err := s.IngestRegion(ctx, code); err != nil {
			s.logger.Error("on-demand ingestion failed", "region", code, "error", err)
			return s.logged(ctx, query, code,
				recommend.Response{Error: fmt.Sprintf("could not load offers for region %s: %v", code, err)})
		}
	}

	return s.logged(ctx, query, code, s.rec.Answer(ctx, query, code))
}

// Available reports whether a region's offers are already in the catalog.
func (s *Service) Available(ctx context.Context, region string) (string, bool, error) {
	code, err := NormalizeRegion(region)
	if err != nil {
		return "", false, err
	}
	ok, err := s.regions.Available(ctx, code)
	return code, ok, err
}

// IngestResult reports one ingestion run.
type IngestResult struct {
	RegionCode  string            `json:"region_code"`
	StoreRows   map[string]int    `json:"store_rows"`
	StoreErrors map[string]string `json:"store_errors,omitempty"`
	Catalog     *catalog.Summary  `json:"catalog"`
}

// IngestRegion scrapes all stores for a region and reconciles the rows into
// the catalog. A store failing is isolated; only all stores failing aborts.
// The region is registered as completed only after a clean reconcile, so a
// partial ingestion is retried on the next query.
func (s *Service) IngestRegion(ctx context.Context, region string) (*IngestResult, error) {
	code, err := NormalizeRegion(region)
	if err != nil {
		return nil, err
	}

	result := &IngestResult{
		RegionCode:  code,
		StoreRows:   make(map[string]int),
		StoreErrors: make(map[string]string),
	}
	var rows []offer.RawRow
	for _, sc := range s.scrapers {
		found, err := sc.Scrape(ctx, code)
		if err != nil {
			s.logger.Warn("store scrape failed", "store", sc.Store(), "region", code, "error", err)
			result.StoreErrors[sc.Store()] = err.Error()
			continue
		}
		result.StoreRows[sc.Store()] = len(found)
		rows = append(rows, found...)
	}
	if len(result.StoreRows) == 0 && len(s.scrapers) > 0 {
		return nil, ErrAllScrapersFailed
	}

	summary, err := s.catalog.Reconcile(ctx, code, rows)
	if err != nil {
		return nil, fmt.Errorf("reconcile region %s: %w", code, err)
	}
	result.Catalog = summary

	unique := summary.Received - summary.Rejected - summary.Duplicate
	if err := s.regions.MarkCompleted(ctx, code, unique); err != nil {
		return nil, fmt.Errorf("register region %s: %w", code, err)
	}

	s.logger.Info("region ingested", "region", code,
		"received", summary.Received, "inserted", summary.Inserted,
		"broadened", summary.Broadened, "known", summary.Known)
	return result, nil
}

// RecentQueries returns the newest query log entries.
func (s *Service) RecentQueries(ctx context.Context, limit int) ([]querylog.Entry, error) {
	if s.log == nil {
		return nil, nil
	}
	return s.log.Recent(ctx, limit)
}

// logged persists the query outcome and passes the response through.
func (s *Service) logged(ctx context.Context, query, region string, resp recommend.Response) recommend.Response {
	if s.log == nil {
		return resp
	}
	answer := resp.Recommendation
	if answer == "" && len(resp.Products) > 0 {
		if data, err := json.Marshal(resp.Products); err == nil {
			answer = string(data)
		}
	}
	if _, err := s.log.Insert(ctx, query, region, answer, resp.Error); err != nil {
		s.logger.Warn("query log insert failed", "error", err)
	}
	return resp
}
