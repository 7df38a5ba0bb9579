package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/payment"
	redisstore "github.com/MrSnakeDoc/studybot/internal/store/redis"
)

// Pinger reports whether the store answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// CatalogStatus exposes what the infra endpoints show about the catalog.
type CatalogStatus interface {
	Count() int
	LastReload() time.Time
	ShortLinkCount() int
}

// Payments is the part of the payment gate served over HTTP.
type Payments interface {
	Enabled() bool
	VerifyCheckout(userID int64, itemKey, sig string) bool
	CreateCheckout(ctx context.Context, userID int64, itemKey string) (payment.Checkout, error)
	Confirm(ctx context.Context, orderID string) (redisstore.Order, error)
	HandleWebhook(ctx context.Context, signature, timestamp string, body []byte) error
}

type Deps struct {
	Logger        logger.Logger
	StartTime     time.Time
	Version       string
	Commit        string
	BuildDate     string
	GoVersion     string
	TimeNow       func() time.Time // for testing, defaults to time.Now
	AllowedHosts  []string         // Host headers allowed on the public payment pages
	AllowedCIDRS  []string         // IPs allowed to access metrics/infra/reload endpoints
	TrustProxy    bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	Store         Pinger           // Redis store
	Catalog       CatalogStatus    // In-memory catalog
	Payments      Payments         // nil when payments are not configured
	CashfreeMode  string           // "sandbox" | "production", passed to the checkout SDK
	Telegram      http.Handler     // webhook update handler, nil in polling mode
	WebhookSecret string           // path secret for /telegram/{secret}
	Metrics       http.Handler     // prometheus exposition handler
	ReloadTrigger chan struct{}    // Channel to trigger manual catalog reload
	BotUsername   string           // used to link back to the bot from payment pages
}
