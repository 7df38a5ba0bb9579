package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Search modes accepted by STUDYBOT_SEARCH_MODE.
const (
	ModeFree = "free" // plain text runs the ranked search
	ModePaid = "paid" // plain text runs the payment-gated search
)

// Update delivery modes.
const (
	UpdatesPolling = "polling"
	UpdatesWebhook = "webhook"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Telegram
	TelegramToken   string // bot API token
	BotUsername     string // used for deep links and group mentions; resolved via getMe when empty
	AdminID         int64  // the only user allowed to run admin commands
	UpdatesMode     string // "polling" | "webhook"
	WebhookSecret   string // path segment for /telegram/{secret}
	PollTimeout     int    // long-polling timeout in seconds
	DefaultMode     string // "free" | "paid", applies to plain text messages
	UpdateWorkers   int    // ants pool size for update handling
	BroadcastPool   int    // ants pool size for broadcast fan-out
	SearchBurst     int    // per-user token bucket burst
	SearchPerMinute int    // per-user token bucket refill

	// Catalog & search
	CatalogFile    string        // path to the catalog yaml
	ReloadInterval time.Duration // catalog reload interval
	MinScore       float64       // items below this score are dropped
	MaxResults     int           // cap on listed results (0 = no cap)
	LinkTTL        time.Duration // shortened link cache TTL
	LinkFanout     int           // concurrent shortener calls per request

	// External services
	ShortenerURL    string
	ShortenerAPIKey string // empty disables shortening
	TelegraphURL    string
	TelegraphToken  string // optional preset token, skips createAccount
	TelegraphAuthor string
	TranslateURL    string
	OCRURL          string
	OCRAPIKey       string
	HTTPTimeout     time.Duration
	RetryAttempts   int
	RetryInitial    time.Duration
	RetryMax        time.Duration

	// Payments
	CashfreeEnv          string // "sandbox" | "production"
	CashfreeBaseURL      string
	CashfreeClientID     string
	CashfreeClientSecret string
	CashfreeAPIVersion   string
	PublicBaseURL        string // ex: https://study.example.com, used for checkout links
	OrderTTL             time.Duration

	// Housekeeping
	LogRetention   time.Duration // chat log retention in redis
	JanitorEvery   time.Duration
	WarmLinkCaches bool

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict the public payment pages to these Host headers
	AllowedCIDRS []string // optional, restrict metrics/infra endpoints to these IPs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("STUDYBOT_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("STUDYBOT_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("STUDYBOT_LOG_LEVEL", "info"),
		PrettyLog: mustBool("STUDYBOT_PRETTY_LOG", false),

		// Telegram
		TelegramToken:   requireEnv("STUDYBOT_TELEGRAM_TOKEN"),
		BotUsername:     strings.TrimPrefix(getenv("STUDYBOT_BOT_USERNAME", ""), "@"),
		AdminID:         requireEnvInt64("STUDYBOT_ADMIN_ID"),
		UpdatesMode:     oneOf("STUDYBOT_UPDATES_MODE", UpdatesPolling, UpdatesPolling, UpdatesWebhook),
		WebhookSecret:   getenv("STUDYBOT_WEBHOOK_SECRET", ""),
		PollTimeout:     getenvInt("STUDYBOT_POLL_TIMEOUT", 30),
		DefaultMode:     oneOf("STUDYBOT_SEARCH_MODE", ModeFree, ModeFree, ModePaid),
		UpdateWorkers:   getenvInt("STUDYBOT_UPDATE_WORKERS", 64),
		BroadcastPool:   getenvInt("STUDYBOT_BROADCAST_WORKERS", 8),
		SearchBurst:     getenvInt("STUDYBOT_SEARCH_BURST", 5),
		SearchPerMinute: getenvInt("STUDYBOT_SEARCH_PER_MINUTE", 10),

		// Catalog & search
		CatalogFile:    getenv("STUDYBOT_CATALOG_FILE", "/app/catalog.yaml"),
		ReloadInterval: mustDuration("STUDYBOT_RELOAD_INTERVAL", 6*time.Hour),
		MinScore:       getenvFloat("STUDYBOT_MIN_SCORE", 0.3),
		MaxResults:     getenvInt("STUDYBOT_MAX_RESULTS", 50),
		LinkTTL:        mustDuration("STUDYBOT_LINK_TTL", 24*time.Hour),
		LinkFanout:     getenvInt("STUDYBOT_LINK_FANOUT", 8),

		// External services
		ShortenerURL:    getenv("STUDYBOT_SHORTENER_URL", "https://adrinolinks.in/api"),
		ShortenerAPIKey: getenv("STUDYBOT_SHORTENER_API_KEY", ""),
		TelegraphURL:    getenv("STUDYBOT_TELEGRAPH_URL", "https://api.telegra.ph"),
		TelegraphToken:  getenv("STUDYBOT_TELEGRAPH_TOKEN", ""),
		TelegraphAuthor: getenv("STUDYBOT_TELEGRAPH_AUTHOR", "Study Bot"),
		TranslateURL:    getenv("STUDYBOT_TRANSLATE_URL", "https://ftapi.pythonanywhere.com/translate"),
		OCRURL:          getenv("STUDYBOT_OCR_URL", "https://api.ocr.space/parse/image"),
		OCRAPIKey:       getenv("STUDYBOT_OCR_API_KEY", ""),
		HTTPTimeout:     mustDuration("STUDYBOT_HTTP_TIMEOUT", 10*time.Second),
		RetryAttempts:   getenvInt("STUDYBOT_RETRY_ATTEMPTS", 3),
		RetryInitial:    mustDuration("STUDYBOT_RETRY_INITIAL", 200*time.Millisecond),
		RetryMax:        mustDuration("STUDYBOT_RETRY_MAX", 2*time.Second),

		// Payments
		CashfreeEnv:          oneOf("STUDYBOT_CASHFREE_ENV", "sandbox", "sandbox", "production"),
		CashfreeClientID:     getenv("STUDYBOT_CASHFREE_CLIENT_ID", ""),
		CashfreeClientSecret: getenv("STUDYBOT_CASHFREE_CLIENT_SECRET", ""),
		CashfreeAPIVersion:   getenv("STUDYBOT_CASHFREE_API_VERSION", "2023-08-01"),
		PublicBaseURL:        strings.TrimRight(getenv("STUDYBOT_PUBLIC_BASE_URL", ""), "/"),
		OrderTTL:             mustDuration("STUDYBOT_ORDER_TTL", 72*time.Hour),

		// Housekeeping
		LogRetention:   mustDuration("STUDYBOT_LOG_RETENTION", 30*24*time.Hour),
		JanitorEvery:   mustDuration("STUDYBOT_JANITOR_INTERVAL", 24*time.Hour),
		WarmLinkCaches: mustBool("STUDYBOT_WARM_LINK_CACHE", true),

		// Redis settings
		RedisAddr:             requireEnv("STUDYBOT_REDIS_ADDR"),
		RedisUser:             getenv("STUDYBOT_REDIS_USERNAME", "default"),
		RedisPasswordRequired: mustBool("STUDYBOT_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("STUDYBOT_REDIS_PASSWORD", ""),
		RedisDB:               requireEnvInt("STUDYBOT_REDIS_DB"),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("STUDYBOT_ALLOWED_HOSTS", "")),
		AllowedCIDRS: parseAllowedIPs(getenv("STUDYBOT_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("STUDYBOT_TRUST_PROXY", true),
	}

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: STUDYBOT_REDIS_PASSWORD is required when STUDYBOT_REDIS_PASSWORD_REQUIRED=true")
	}
	if cfg.UpdatesMode == UpdatesWebhook && (cfg.WebhookSecret == "" || cfg.PublicBaseURL == "") {
		panic("❌ FATAL: webhook mode needs STUDYBOT_WEBHOOK_SECRET and STUDYBOT_PUBLIC_BASE_URL")
	}
	cfg.CashfreeBaseURL = cashfreeBaseURL(cfg.CashfreeEnv)

	if cfg.MinScore < 0 || cfg.MinScore > 1 {
		panic(fmt.Sprintf("❌ FATAL: STUDYBOT_MIN_SCORE must be within [0,1], got %v", cfg.MinScore))
	}

	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// PaymentsEnabled reports whether Cashfree credentials and a public URL are set.
func (c *Config) PaymentsEnabled() bool {
	return c.CashfreeClientID != "" && c.CashfreeClientSecret != "" && c.PublicBaseURL != ""
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	for _, s := range []*string{
		&cp.TelegramToken, &cp.RedisPassword, &cp.ShortenerAPIKey, &cp.TelegraphToken,
		&cp.OCRAPIKey, &cp.CashfreeClientSecret, &cp.WebhookSecret,
	} {
		if *s != "" {
			*s = "***REDACTED***"
		}
	}
	return cp
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := requireEnv(key)
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func requireEnvInt64(key string) int64 {
	v := requireEnv(key)
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// oneOf returns the lowercased value of key when it is one of allowed, def otherwise.
func oneOf(key, def string, allowed ...string) string {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	return def
}

func cashfreeBaseURL(env string) string {
	if strings.EqualFold(env, "production") {
		return "https://api.cashfree.com"
	}
	return "https://sandbox.cashfree.com"
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
