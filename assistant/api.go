package assistant

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mhaberkorn/sparfuchs/kit"
	"github.com/mhaberkorn/sparfuchs/querylog"
	"github.com/mhaberkorn/sparfuchs/shield"
)

// Routes returns the HTTP API for a Service.
func Routes(svc *Service) http.Handler {
	r := chi.NewRouter()
	for _, mw := range shield.DefaultAPIStack() {
		r.Use(mw)
	}
	r.Use(requestID)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, 200, map[string]string{"status": "ok"})
	})

	// Query failures are part of the result contract: the response is always
	// a well-formed object, with the error inside, so this endpoint answers
	// 200 even when the pipeline failed.
	r.Post("/api/query", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query  string `json:"query"`
			Region string `json:"region"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, 400, err)
			return
		}
		writeJSON(w, 200, svc.Ask(r.Context(), req.Query, req.Region))
	})

	r.Get("/api/regions/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, available, err := svc.Available(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			if errors.Is(err, ErrInvalidRegion) {
				writeError(w, 400, err)
			} else {
				writeError(w, 500, err)
			}
			return
		}
		writeJSON(w, 200, map[string]any{"region_code": code, "available": available})
	})

	r.Post("/api/regions/{code}/ingest", func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.IngestRegion(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			switch {
			case errors.Is(err, ErrInvalidRegion):
				writeError(w, 400, err)
			case errors.Is(err, ErrAllScrapersFailed):
				writeError(w, 502, err)
			default:
				writeError(w, 500, err)
			}
			return
		}
		writeJSON(w, 200, result)
	})

	r.Get("/api/log", func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.RecentQueries(r.Context(), queryInt(r, "limit", 50))
		if err != nil {
			writeError(w, 500, err)
			return
		}
		if entries == nil {
			entries = []querylog.Entry{}
		}
		writeJSON(w, 200, entries)
	})

	return r
}

// requestID tags every request with an id for log correlation.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithRequestID(r.Context(), uuid.NewString())
		ctx = kit.WithTransport(ctx, "http")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func queryInt(r *http.Request, key string, def int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
