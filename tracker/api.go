package tracker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hazyhaar/pagetrack/kit"
	"github.com/hazyhaar/pagetrack/shield"
)

// maxRequestBody caps API request bodies.
const maxRequestBody = 1 << 20

type trackRequest struct {
	URL       string `json:"url"`
	NoRefresh *bool  `json:"no_refresh,omitempty"`
	Scope     string `json:"scope,omitempty"`
}

type trackBatchRequest struct {
	URLs      []string `json:"urls"`
	NoRefresh *bool    `json:"no_refresh,omitempty"`
	Scope     string   `json:"scope,omitempty"`
}

// Handler returns the HTTP API:
//
//	POST /track        {"url": "...", "no_refresh": false}
//	POST /track/batch  {"urls": ["..."], "no_refresh": false}
//	GET  /healthz
func (t *Tracker) Handler(defaults Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(shield.SecurityHeaders(shield.APIHeaders()))
	r.Use(shield.MaxBody(maxRequestBody))
	r.Use(kitContext)

	trackOne := t.endpoint("track_page", func(ctx context.Context, req any) (any, error) {
		in := req.(*trackRequest)
		return t.TrackPage(ctx, in.URL, optionArgs{NoRefresh: in.NoRefresh, Scope: in.Scope}.apply(defaults))
	})
	trackMany := t.endpoint("track_pages", func(ctx context.Context, req any) (any, error) {
		in := req.(*trackBatchRequest)
		return t.TrackPages(ctx, in.URLs, optionArgs{NoRefresh: in.NoRefresh, Scope: in.Scope}.apply(defaults))
	})

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/track", func(w http.ResponseWriter, req *http.Request) {
		var in trackRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		serve(w, req, trackOne, &in)
	})
	r.Post("/track/batch", func(w http.ResponseWriter, req *http.Request) {
		var in trackBatchRequest
		if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		serve(w, req, trackMany, &in)
	})
	return r
}

func serve(w http.ResponseWriter, r *http.Request, ep kit.Endpoint, in any) {
	resp, err := ep(r.Context(), in)
	switch {
	case errors.Is(err, ErrValidation):
		writeError(w, http.StatusBadRequest, err)
	case err != nil:
		writeError(w, http.StatusBadGateway, err)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

// kitContext copies the chi request ID into the kit context.
func kitContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := kit.WithTransport(r.Context(), "http")
		if id := middleware.GetReqID(ctx); id != "" {
			ctx = kit.WithRequestID(ctx, id)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
