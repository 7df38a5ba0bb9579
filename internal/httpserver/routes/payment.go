package routes

import (
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/studybot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/studybot/internal/httpserver/handlers"
	"github.com/MrSnakeDoc/studybot/internal/httpserver/mw"
)

func init() { Register("payment", registerPayment) }

func registerPayment(r chi.Router, d deps.Deps) {
	// user-facing pages are rate limited per client IP
	pages := r.With(
		mw.EnforceHost(d.AllowedHosts, d.Logger),
		mw.RateLimit(mw.RateLimitConfig{
			Burst:             10,
			RefillPerIPPerMin: 30,
			MaxEntries:        50_000,
			SweepInterval:     time.Minute,
			IdleTTL:           15 * time.Minute,
			TrustProxy:        d.TrustProxy,
		}),
	)
	pages.Get("/pay", handlers.Pay(d))
	pages.Get("/payment/return", handlers.PaymentReturn(d))
	pages.Post("/api/verify-payment", handlers.VerifyPayment(d))

	r.Post("/api/webhook/cashfree", handlers.CashfreeWebhook(d))
}
