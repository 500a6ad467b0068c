package assistant

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mhaberkorn/sparfuchs/offer"
)

var errTest = errors.New("store unreachable")

func TestAPIQuery(t *testing.T) {
	sc := &fakeScraper{name: "REWE", rows: []offer.RawRow{
		{ProductName: "Bananen", Price: 1.29, StoreName: "REWE"},
	}}
	srv := httptest.NewServer(Routes(newTestService(t, sc)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/query", "application/json",
		strings.NewReader(`{"query": "bananas", "region": "80331"}`))
	if err != nil {
		t.Fatalf("POST /api/query: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Recommendation string `json:"recommendation"`
		Error          string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error != "" || body.Recommendation == "" {
		t.Fatalf("body = %+v", body)
	}
}

func TestAPIQueryPipelineErrorStill200(t *testing.T) {
	// Result objects carry their own error field; transport stays 200.
	sc := &fakeScraper{name: "REWE", err: errTest}
	srv := httptest.NewServer(Routes(newTestService(t, sc)))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/query", "application/json",
		strings.NewReader(`{"query": "bananas", "region": "80331"}`))
	if err != nil {
		t.Fatalf("POST /api/query: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var body struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Error == "" {
		t.Fatal("want error field in body")
	}
}

func TestAPIRegionAvailability(t *testing.T) {
	sc := &fakeScraper{name: "REWE", rows: []offer.RawRow{
		{ProductName: "Bananen", Price: 1.29, StoreName: "REWE"},
	}}
	srv := httptest.NewServer(Routes(newTestService(t, sc)))
	defer srv.Close()

	get := func(code string) (int, map[string]any) {
		resp, err := http.Get(srv.URL + "/api/regions/" + code)
		if err != nil {
			t.Fatalf("GET region: %v", err)
		}
		defer resp.Body.Close()
		var body map[string]any
		json.NewDecoder(resp.Body).Decode(&body)
		return resp.StatusCode, body
	}

	status, body := get("80331")
	if status != 200 || body["available"] != false {
		t.Fatalf("before ingest: status=%d body=%v", status, body)
	}

	resp, err := http.Post(srv.URL+"/api/regions/80331/ingest", "application/json", nil)
	if err != nil {
		t.Fatalf("POST ingest: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 200 {
		t.Fatalf("ingest status = %d", resp.StatusCode)
	}

	status, body = get("80331")
	if status != 200 || body["available"] != true {
		t.Fatalf("after ingest: status=%d body=%v", status, body)
	}

	status, _ = get("999")
	if status != 400 {
		t.Fatalf("invalid region status = %d", status)
	}
}

func TestAPIRecentLog(t *testing.T) {
	sc := &fakeScraper{name: "REWE", rows: []offer.RawRow{
		{ProductName: "Bananen", Price: 1.29, StoreName: "REWE"},
	}}
	svc := newTestService(t, sc)
	srv := httptest.NewServer(Routes(svc))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/query", "application/json",
		strings.NewReader(`{"query": "bananas", "region": "80331"}`))
	if err != nil {
		t.Fatalf("POST query: %v", err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/api/log?limit=5")
	if err != nil {
		t.Fatalf("GET log: %v", err)
	}
	defer resp.Body.Close()
	var entries []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want 1 entry, got %d", len(entries))
	}
	if entries[0]["query"] != "bananas" {
		t.Fatalf("entry = %v", entries[0])
	}
}
