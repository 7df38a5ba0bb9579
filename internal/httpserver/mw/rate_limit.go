package mw

import (
	"net/http"
	"strconv"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/ratelimit"
	"github.com/MrSnakeDoc/studybot/internal/utils"
)

type RateLimitConfig struct {
	Burst             int
	RefillPerIPPerMin int
	MaxEntries        int
	SweepInterval     time.Duration
	IdleTTL           time.Duration
	TrustProxy        bool // resolve IP from proxy headers when true
}

// RateLimit limits requests per client IP.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	l := ratelimit.New(ratelimit.Config{
		Burst:         cfg.Burst,
		RefillPerMin:  cfg.RefillPerIPPerMin,
		MaxEntries:    cfg.MaxEntries,
		SweepInterval: cfg.SweepInterval,
		IdleTTL:       cfg.IdleTTL,
	})
	limitStr := strconv.Itoa(l.Burst())

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := utils.ClientIP(r, cfg.TrustProxy)

			d := l.Allow(key, time.Now())
			if !d.OK {
				w.Header().Set("Retry-After", strconv.Itoa(int(d.RetryAfter.Seconds())))
				w.Header().Set("X-RateLimit-Limit", limitStr)
				w.Header().Set("X-RateLimit-Remaining", "0")
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Limit", limitStr)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(d.Remaining, 0)))

			next.ServeHTTP(w, r)
		})
	}
}
