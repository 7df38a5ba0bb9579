package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/studybot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/studybot/internal/httpserver/handlers"
)

func init() { Register("telegram", registerTelegram) }

func registerTelegram(r chi.Router, d deps.Deps) {
	if d.Telegram == nil {
		return
	}
	r.Post("/telegram/{secret}", handlers.Telegram(d))
}
