package vecstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config configures the Qdrant REST client.
type Config struct {
	// URL is the base URL of the Qdrant instance (e.g. "http://localhost:6333").
	URL string `json:"url" yaml:"url"`

	// APIKey is sent in the api-key header when set.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Timeout per HTTP request. Default: 60s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Logger for debug/error messages. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Qdrant talks to a Qdrant instance over its REST API.
type Qdrant struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

var _ Store = (*Qdrant)(nil)

// NewQdrant creates a Qdrant REST client.
func NewQdrant(cfg Config) *Qdrant {
	cfg.defaults()
	return &Qdrant{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  cfg.Logger,
	}
}

func (q *Qdrant) CollectionExists(ctx context.Context, collection string) (bool, error) {
	status, _, err := q.do(ctx, http.MethodGet, "/collections/"+collection, nil)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("vecstore: get collection %s: HTTP %d", collection, status)
	}
}

func (q *Qdrant) CreateCollection(ctx context.Context, collection string, vectorSize int) error {
	body := map[string]any{
		"vectors": map[string]any{"size": vectorSize, "distance": "Cosine"},
	}
	status, respBody, err := q.do(ctx, http.MethodPut, "/collections/"+collection, body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("vecstore: create collection %s: HTTP %d: %s", collection, status, respBody)
	}
	q.logger.Info("collection created", "collection", collection, "vector_size", vectorSize)
	return nil
}

// scrollPoint decodes ids as json.Number so numeric ids survive the round trip.
type scrollPoint struct {
	ID      json.Number    `json:"id"`
	Score   float32        `json:"score"`
	Payload map[string]any `json:"payload"`
}

func (p scrollPoint) toPoint() Point {
	id, _ := p.ID.Int64()
	return Point{ID: uint64(id), Payload: p.Payload}
}

func (q *Qdrant) Scroll(ctx context.Context, collection string, filter *Filter, limit int, offset any) ([]Point, any, error) {
	body := map[string]any{
		"limit":        limit,
		"with_payload": true,
		"with_vector":  false,
	}
	if offset != nil {
		body["offset"] = offset
	}
	if f := encodeFilter(filter); f != nil {
		body["filter"] = f
	}
	status, respBody, err := q.do(ctx, http.MethodPost, "/collections/"+collection+"/points/scroll", body)
	if err != nil {
		return nil, nil, err
	}
	if status != http.StatusOK {
		return nil, nil, fmt.Errorf("vecstore: scroll %s: HTTP %d: %s", collection, status, respBody)
	}
	var out struct {
		Result struct {
			Points         []scrollPoint `json:"points"`
			NextPageOffset any           `json:"next_page_offset"`
		} `json:"result"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, nil, fmt.Errorf("vecstore: decode scroll response: %w", err)
	}
	points := make([]Point, 0, len(out.Result.Points))
	for _, p := range out.Result.Points {
		points = append(points, p.toPoint())
	}
	return points, out.Result.NextPageOffset, nil
}

func (q *Qdrant) Search(ctx context.Context, collection string, vector []float32, filter *Filter, limit int) ([]ScoredPoint, error) {
	body := map[string]any{
		"vector":       vector,
		"limit":        limit,
		"with_payload": true,
	}
	if f := encodeFilter(filter); f != nil {
		body["filter"] = f
	}
	status, respBody, err := q.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("vecstore: search %s: HTTP %d: %s", collection, status, respBody)
	}
	var out struct {
		Result []scrollPoint `json:"result"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("vecstore: decode search response: %w", err)
	}
	hits := make([]ScoredPoint, 0, len(out.Result))
	for _, p := range out.Result {
		hits = append(hits, ScoredPoint{Point: p.toPoint(), Score: p.Score})
	}
	return hits, nil
}

func (q *Qdrant) Upsert(ctx context.Context, collection string, points []Point) error {
	body := map[string]any{"points": points}
	status, respBody, err := q.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("vecstore: upsert %s: HTTP %d: %s", collection, status, respBody)
	}
	return nil
}

func (q *Qdrant) SetPayload(ctx context.Context, collection string, patch map[string]any, ids []uint64) error {
	body := map[string]any{"payload": patch, "points": ids}
	status, respBody, err := q.do(ctx, http.MethodPost, "/collections/"+collection+"/points/payload?wait=true", body)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("vecstore: set payload %s: HTTP %d: %s", collection, status, respBody)
	}
	return nil
}

// do executes one REST call and returns the status code plus the raw body.
// Transport errors are returned as-is so IsTimeout can classify them.
func (q *Qdrant) do(ctx context.Context, method, path string, body any) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("vecstore: marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, q.baseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if q.apiKey != "" {
		req.Header.Set("api-key", q.apiKey)
	}
	resp, err := q.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("vecstore: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("vecstore: read response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// encodeFilter renders a Filter as the store's JSON filter syntax.
func encodeFilter(f *Filter) map[string]any {
	if f == nil || len(f.Must) == 0 {
		return nil
	}
	must := make([]map[string]any, 0, len(f.Must))
	for _, c := range f.Must {
		var match map[string]any
		if len(c.MatchAny) > 0 {
			match = map[string]any{"any": c.MatchAny}
		} else {
			match = map[string]any{"value": c.Match}
		}
		must = append(must, map[string]any{"key": c.Key, "match": match})
	}
	return map[string]any{"must": must}
}
