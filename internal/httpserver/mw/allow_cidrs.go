package mw

import (
	"net/http"

	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/utils"
)

// AllowOnlyCIDRS restricts a route group to the given IPs and CIDRs. An empty
// list disables filtering. trustProxy reads the client address from proxy
// headers (cloudflared, reverse proxy).
func AllowOnlyCIDRS(allowed []string, trustProxy bool, log logger.Logger) func(http.Handler) http.Handler {
	m, invalid := utils.NewAddrMatcher(allowed)
	if len(invalid) > 0 {
		log.Warn("ignoring invalid allowlist entries", logger.Strings("entries", invalid))
	}
	if m.Len() == 0 {
		log.Debug("cidr allowlist empty, passthrough")
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ClientIP(r, trustProxy)
			if !m.Allow(ip) {
				log.Debug("request rejected by cidr allowlist",
					logger.String("remote_ip", ip),
					logger.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
