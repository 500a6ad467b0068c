package vecstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-process Store. It backs tests and offline development the
// same way a disabled embedding endpoint falls back to a noop client: the
// pipeline stays runnable without external services.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]*memCollection
}

type memCollection struct {
	vectorSize int
	order      []uint64
	points     map[uint64]Point
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]*memCollection)}
}

func (m *Memory) CollectionExists(_ context.Context, collection string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.collections[collection]
	return ok, nil
}

func (m *Memory) CreateCollection(_ context.Context, collection string, vectorSize int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.collections[collection]; ok {
		return fmt.Errorf("vecstore: collection %s already exists", collection)
	}
	m.collections[collection] = &memCollection{
		vectorSize: vectorSize,
		points:     make(map[uint64]Point),
	}
	return nil
}

func (m *Memory) Scroll(_ context.Context, collection string, filter *Filter, limit int, offset any) ([]Point, any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil, nil, fmt.Errorf("vecstore: collection %s not found", collection)
	}
	start := 0
	if offset != nil {
		start, ok = offset.(int)
		if !ok {
			return nil, nil, fmt.Errorf("vecstore: bad scroll offset %v", offset)
		}
	}
	var page []Point
	i := start
	for ; i < len(col.order) && len(page) < limit; i++ {
		p := col.points[col.order[i]]
		if matches(filter, p.Payload) {
			page = append(page, clonePayloadOnly(p))
		}
	}
	if i >= len(col.order) {
		return page, nil, nil
	}
	return page, i, nil
}

func (m *Memory) Search(_ context.Context, collection string, vector []float32, filter *Filter, limit int) ([]ScoredPoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return nil, fmt.Errorf("vecstore: collection %s not found", collection)
	}
	var hits []ScoredPoint
	for _, id := range col.order {
		p := col.points[id]
		if !matches(filter, p.Payload) {
			continue
		}
		hits = append(hits, ScoredPoint{Point: clonePayloadOnly(p), Score: cosine(vector, p.Vector)})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *Memory) Upsert(_ context.Context, collection string, points []Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("vecstore: collection %s not found", collection)
	}
	for _, p := range points {
		if _, seen := col.points[p.ID]; !seen {
			col.order = append(col.order, p.ID)
		}
		col.points[p.ID] = p
	}
	return nil
}

func (m *Memory) SetPayload(_ context.Context, collection string, patch map[string]any, ids []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	col, ok := m.collections[collection]
	if !ok {
		return fmt.Errorf("vecstore: collection %s not found", collection)
	}
	for _, id := range ids {
		p, seen := col.points[id]
		if !seen {
			continue
		}
		if p.Payload == nil {
			p.Payload = make(map[string]any)
		}
		for k, v := range patch {
			p.Payload[k] = v
		}
		col.points[id] = p
	}
	return nil
}

// Count returns the number of points in a collection. Test helper.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return 0
	}
	return len(col.points)
}

// Get returns a stored point by id. Test helper.
func (m *Memory) Get(collection string, id uint64) (Point, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	col, ok := m.collections[collection]
	if !ok {
		return Point{}, false
	}
	p, ok := col.points[id]
	return p, ok
}

func matches(f *Filter, payload map[string]any) bool {
	if f == nil {
		return true
	}
	for _, c := range f.Must {
		val, _ := payload[c.Key].(string)
		if len(c.MatchAny) > 0 {
			found := false
			for _, want := range c.MatchAny {
				if val == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
			continue
		}
		if val != c.Match {
			return false
		}
	}
	return true
}

// clonePayloadOnly mirrors the remote store: scroll and search return
// payloads without vectors, and mutating a result must not touch the index.
func clonePayloadOnly(p Point) Point {
	payload := make(map[string]any, len(p.Payload))
	for k, v := range p.Payload {
		payload[k] = v
	}
	return Point{ID: p.ID, Payload: payload}
}

func cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}
