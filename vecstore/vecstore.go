// Package vecstore is a thin adapter over a vector point store. The rest of
// the system depends only on the Store interface: exhaustive scroll,
// similarity search, upsert, and payload patching over named collections.
//
// Two implementations ship: a Qdrant REST client for production and an
// in-memory store for tests and offline development.
package vecstore

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Point is one indexed entry: numeric identifier, embedding vector, and a
// JSON payload.
type Point struct {
	ID      uint64         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload map[string]any `json:"payload"`
}

// ScoredPoint is a search hit with its similarity score.
type ScoredPoint struct {
	Point
	Score float32 `json:"score"`
}

// Condition matches a payload field against one value or any of several.
type Condition struct {
	Key      string
	Match    string
	MatchAny []string
}

// Filter restricts search or scroll results to payloads matching every
// condition.
type Filter struct {
	Must []Condition
}

// Store is the capability interface over the vector index.
type Store interface {
	// CollectionExists reports whether the named collection exists.
	CollectionExists(ctx context.Context, collection string) (bool, error)

	// CreateCollection creates a collection with the given vector size and
	// cosine distance.
	CreateCollection(ctx context.Context, collection string, vectorSize int) error

	// Scroll returns one page of points (payload only, no vectors) and the
	// offset for the next page. Pagination terminates when the returned page
	// is empty or the next offset is nil.
	Scroll(ctx context.Context, collection string, filter *Filter, limit int, offset any) ([]Point, any, error)

	// Search returns up to limit points ranked by similarity to vector,
	// highest first. Ties follow the store's native order.
	Search(ctx context.Context, collection string, vector []float32, filter *Filter, limit int) ([]ScoredPoint, error)

	// Upsert writes points, replacing any with the same ID.
	Upsert(ctx context.Context, collection string, points []Point) error

	// SetPayload merges patch into the payload of the given points.
	SetPayload(ctx context.Context, collection string, patch map[string]any, ids []uint64) error
}

// IsTimeout classifies an error as a retryable timeout. Deadline expiry and
// net timeouts count; so does a "timeout" substring, since remote stores
// report timeouts as plain messages in their error bodies.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "timeout")
}
