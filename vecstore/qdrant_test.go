package vecstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestQdrant_CollectionExists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("api-key") != "secret" {
			t.Errorf("missing api-key header")
		}
		switch r.URL.Path {
		case "/collections/offers":
			w.WriteHeader(200)
			w.Write([]byte(`{"result":{"status":"green"}}`))
		default:
			w.WriteHeader(404)
		}
	}))
	defer srv.Close()

	q := NewQdrant(Config{URL: srv.URL, APIKey: "secret"})
	ctx := context.Background()

	ok, err := q.CollectionExists(ctx, "offers")
	if err != nil || !ok {
		t.Fatalf("expected offers to exist, got ok=%v err=%v", ok, err)
	}
	ok, err = q.CollectionExists(ctx, "missing")
	if err != nil || ok {
		t.Fatalf("expected missing to not exist, got ok=%v err=%v", ok, err)
	}
}

func TestQdrant_ScrollPagination(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/collections/offers/points/scroll" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req map[string]any
		json.NewDecoder(r.Body).Decode(&req)
		calls++
		if calls == 1 {
			if req["offset"] != nil {
				t.Errorf("first page must not carry an offset, got %v", req["offset"])
			}
			w.Write([]byte(`{"result":{"points":[{"id":7,"payload":{"product_name":"Banane"}}],"next_page_offset":7}}`))
			return
		}
		if req["offset"] != float64(7) {
			t.Errorf("second page offset = %v, want 7", req["offset"])
		}
		w.Write([]byte(`{"result":{"points":[],"next_page_offset":null}}`))
	}))
	defer srv.Close()

	q := NewQdrant(Config{URL: srv.URL})
	ctx := context.Background()

	points, next, err := q.Scroll(ctx, "offers", nil, 200, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 || points[0].ID != 7 {
		t.Fatalf("unexpected first page: %+v", points)
	}
	if points[0].Payload["product_name"] != "Banane" {
		t.Fatalf("payload not decoded: %+v", points[0].Payload)
	}

	points, next, err = q.Scroll(ctx, "offers", nil, 200, next)
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 0 || next != nil {
		t.Fatalf("expected empty terminal page, got %d points next=%v", len(points), next)
	}
}

func TestQdrant_SearchSendsFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filter struct {
				Must []struct {
					Key   string `json:"key"`
					Match struct {
						Any []string `json:"any"`
					} `json:"match"`
				} `json:"must"`
			} `json:"filter"`
			Limit int `json:"limit"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if len(req.Filter.Must) != 1 || req.Filter.Must[0].Key != "region_code" {
			t.Errorf("filter not encoded: %+v", req.Filter)
		}
		if got := req.Filter.Must[0].Match.Any; len(got) != 2 || got[0] != "ALL" || got[1] != "80331" {
			t.Errorf("match any = %v", got)
		}
		if req.Limit != 4 {
			t.Errorf("limit = %d, want 4", req.Limit)
		}
		w.Write([]byte(`{"result":[{"id":3,"score":0.91,"payload":{"product_name":"Milch"}}]}`))
	}))
	defer srv.Close()

	q := NewQdrant(Config{URL: srv.URL})
	filter := &Filter{Must: []Condition{{Key: "region_code", MatchAny: []string{"ALL", "80331"}}}}
	hits, err := q.Search(context.Background(), "offers", []float32{0.1, 0.2}, filter, 4)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != 3 || hits[0].Score != 0.91 {
		t.Fatalf("unexpected hits: %+v", hits)
	}
}

func TestQdrant_UpsertErrorSurfacesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"status":{"error":"wrong vector size"}}`, 400)
	}))
	defer srv.Close()

	q := NewQdrant(Config{URL: srv.URL})
	err := q.Upsert(context.Background(), "offers", []Point{{ID: 1, Vector: []float32{1}}})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("deadline exceeded must classify as timeout")
	}
	if !IsTimeout(errors.New("vecstore: upsert offers: HTTP 500: operation timeout")) {
		t.Error("timeout substring must classify as timeout")
	}
	if IsTimeout(errors.New("connection refused")) {
		t.Error("connection refused must not classify as timeout")
	}
	if IsTimeout(nil) {
		t.Error("nil is not a timeout")
	}
}
