package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/httpserver/deps"
)

type readyzResponse struct {
	Ready   bool   `json:"ready"`
	Catalog bool   `json:"catalog"`
	Redis   bool   `json:"redis"`
	Error   string `json:"error,omitempty"`
}

// Readyz is ready once the catalog is loaded and Redis answers.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := readyzResponse{
			Catalog: d.Catalog != nil && d.Catalog.Count() > 0,
		}
		if err := ping(r.Context(), d); err != nil {
			resp.Error = err.Error()
		} else {
			resp.Redis = true
		}
		resp.Ready = resp.Catalog && resp.Redis

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-store")
		if !resp.Ready {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func ping(ctx context.Context, d deps.Deps) error {
	if d.Store == nil {
		return errNoStore
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return d.Store.Ping(ctx)
}
