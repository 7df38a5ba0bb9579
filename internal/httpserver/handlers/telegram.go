package handlers

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/studybot/internal/httpserver/deps"
)

// Telegram forwards webhook updates to the bot when the path secret matches.
func Telegram(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		secret := chi.URLParam(r, "secret")
		if d.Telegram == nil || d.WebhookSecret == "" ||
			subtle.ConstantTimeCompare([]byte(secret), []byte(d.WebhookSecret)) != 1 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		d.Telegram.ServeHTTP(w, r)
	}
}
