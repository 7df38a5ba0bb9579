package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/studybot/internal/httpserver/routes"
	"github.com/MrSnakeDoc/studybot/internal/logger"
)

func TestRouterRegistersRoutes(t *testing.T) {
	log := logger.New("error", false)
	d := deps.Deps{
		Logger:        log,
		StartTime:     time.Now(),
		AllowedCIDRS:  []string{"10.0.0.0/8"},
		WebhookSecret: "s3cret",
		ReloadTrigger: make(chan struct{}, 1),
		Telegram: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	}
	r := NewRouter(log, d)

	tests := []struct {
		name   string
		method string
		path   string
		remote string
		status int
	}{
		{name: "healthz is public", method: http.MethodGet, path: "/healthz", remote: "203.0.113.9:1234", status: http.StatusOK},
		{name: "metrics from allowed ip", method: http.MethodGet, path: "/metrics", remote: "10.1.2.3:1234", status: http.StatusOK},
		{name: "metrics from outside", method: http.MethodGet, path: "/metrics", remote: "203.0.113.9:1234", status: http.StatusForbidden},
		{name: "readyz from outside", method: http.MethodGet, path: "/readyz", remote: "203.0.113.9:1234", status: http.StatusForbidden},
		{name: "reload from allowed ip", method: http.MethodPost, path: "/reload", remote: "10.1.2.3:1234", status: http.StatusAccepted},
		{name: "telegram webhook", method: http.MethodPost, path: "/telegram/s3cret", remote: "203.0.113.9:1234", status: http.StatusOK},
		{name: "payments disabled", method: http.MethodGet, path: "/pay?key=a&user=1", remote: "203.0.113.9:1234", status: http.StatusServiceUnavailable},
		{name: "unknown route", method: http.MethodGet, path: "/search", remote: "203.0.113.9:1234", status: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			req.RemoteAddr = tt.remote
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.status)
			}
		})
	}
}

func TestRouteGroupsRegistered(t *testing.T) {
	got := strings.Join(routes.Names(), ",")
	if got != "ops,payment,telegram" {
		t.Errorf("routes.Names() = %s", got)
	}
}
