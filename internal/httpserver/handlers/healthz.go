package handlers

import (
	"net/http"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/httpserver/deps"
)

// healthzResponse is liveness only: it never touches Redis or Telegram.
type healthzResponse struct {
	Status        string  `json:"status"`
	Bot           string  `json:"bot,omitempty"`
	UpdateMode    string  `json:"update_mode"`
	CatalogItems  int     `json:"catalog_items"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Version       string  `json:"version,omitempty"`
	Commit        string  `json:"commit,omitempty"`
	BuildDate     string  `json:"build_date,omitempty"`
	GoVersion     string  `json:"go_version,omitempty"`
}

func Healthz(d deps.Deps) http.HandlerFunc {
	now := d.TimeNow
	if now == nil {
		now = time.Now
	}
	mode := "polling"
	if d.Telegram != nil {
		mode = "webhook"
	}
	return func(w http.ResponseWriter, r *http.Request) {
		resp := healthzResponse{
			Status:        "ok",
			Bot:           d.BotUsername,
			UpdateMode:    mode,
			UptimeSeconds: now().Sub(d.StartTime).Seconds(),
			Version:       d.Version,
			Commit:        d.Commit,
			BuildDate:     d.BuildDate,
			GoVersion:     d.GoVersion,
		}
		if d.Catalog != nil {
			resp.CatalogItems = d.Catalog.Count()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
