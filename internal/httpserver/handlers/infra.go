package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/studybot/internal/httpserver/deps"
)

var errNoStore = errors.New("client not initialized")

type componentStatus struct {
	OK          bool   `json:"ok"`
	ItemsLoaded *int   `json:"items_loaded,omitempty"`
	LinksCached *int   `json:"links_cached,omitempty"`
	LastReload  string `json:"last_reload,omitempty"`
	Mode        string `json:"mode,omitempty"`
	Impact      string `json:"impact,omitempty"`
	Error       string `json:"error,omitempty"`
}

type infraResponse struct {
	ServiceMode string                     `json:"service_mode"`
	Components  map[string]componentStatus `json:"components"`
}

func Infra(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")

		components := map[string]componentStatus{
			"catalog":  catalogStatus(d),
			"redis":    redisStatus(r, d),
			"payments": paymentsStatus(d),
		}

		response := infraResponse{
			ServiceMode: determineServiceMode(components),
			Components:  components,
		}

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

func catalogStatus(d deps.Deps) componentStatus {
	if d.Catalog == nil {
		return componentStatus{OK: false, Error: "catalog not initialized"}
	}
	items := d.Catalog.Count()
	links := d.Catalog.ShortLinkCount()
	lastReload := "never"
	if t := d.Catalog.LastReload(); !t.IsZero() {
		lastReload = t.Format("2006-01-02 15:04:05")
	}
	return componentStatus{
		OK:          items > 0,
		ItemsLoaded: &items,
		LinksCached: &links,
		LastReload:  lastReload,
	}
}

func redisStatus(r *http.Request, d deps.Deps) componentStatus {
	if err := ping(r.Context(), d); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "payments-and-logs-unavailable",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: "optimal"}
}

func paymentsStatus(d deps.Deps) componentStatus {
	if d.Payments == nil || !d.Payments.Enabled() {
		return componentStatus{OK: true, Mode: "disabled", Impact: "cashstudy-unavailable"}
	}
	return componentStatus{OK: true, Mode: d.CashfreeMode}
}

func determineServiceMode(components map[string]componentStatus) string {
	if c, ok := components["catalog"]; ok && !c.OK {
		return "critical" // nothing to search
	}
	if c, ok := components["redis"]; ok && !c.OK {
		return "degraded"
	}
	return "operational"
}
