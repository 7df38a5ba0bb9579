package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/retry"
	"github.com/MrSnakeDoc/studybot/internal/utils"
	"github.com/MrSnakeDoc/studybot/internal/version"
)

const serviceName = "cashfree"

// Cashfree order statuses.
const (
	OrderActive  = "ACTIVE"
	OrderPaid    = "PAID"
	OrderExpired = "EXPIRED"
)

// CashfreeOptions configures the Cashfree PG client.
type CashfreeOptions struct {
	BaseURL      string // https://sandbox.cashfree.com | https://api.cashfree.com
	ClientID     string
	ClientSecret string
	APIVersion   string // x-api-version header, ex: 2023-08-01
}

// Cashfree is a minimal client for the Cashfree PG orders API.
type Cashfree struct {
	http   *http.Client
	opts   CashfreeOptions
	policy retry.Policy
}

// NewCashfree creates a client. httpClient may be nil.
func NewCashfree(httpClient *http.Client, opts CashfreeOptions, policy retry.Policy) *Cashfree {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Cashfree{http: httpClient, opts: opts, policy: policy}
}

// CustomerDetails identifies the payer.
type CustomerDetails struct {
	CustomerID    string `json:"customer_id"`
	CustomerPhone string `json:"customer_phone"`
	CustomerEmail string `json:"customer_email,omitempty"`
	CustomerName  string `json:"customer_name,omitempty"`
}

// OrderMeta carries redirect and webhook URLs.
type OrderMeta struct {
	ReturnURL string `json:"return_url,omitempty"`
	NotifyURL string `json:"notify_url,omitempty"`
}

// CreateOrderRequest is the body of POST /pg/orders.
type CreateOrderRequest struct {
	OrderID         string            `json:"order_id"`
	OrderAmount     float64           `json:"order_amount"`
	OrderCurrency   string            `json:"order_currency"`
	CustomerDetails CustomerDetails   `json:"customer_details"`
	OrderMeta       OrderMeta         `json:"order_meta"`
	OrderNote       string            `json:"order_note,omitempty"`
	OrderTags       map[string]string `json:"order_tags,omitempty"`
	OrderExpiryTime string            `json:"order_expiry_time,omitempty"` // RFC 3339
}

// OrderEntity is the order as returned by Cashfree.
type OrderEntity struct {
	CFOrderID        string            `json:"cf_order_id"`
	OrderID          string            `json:"order_id"`
	OrderAmount      float64           `json:"order_amount"`
	OrderStatus      string            `json:"order_status"`
	PaymentSessionID string            `json:"payment_session_id"`
	CustomerDetails  CustomerDetails   `json:"customer_details"`
	OrderTags        map[string]string `json:"order_tags"`
}

// CreateOrder creates a checkout order.
func (c *Cashfree) CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderEntity, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return OrderEntity{}, fmt.Errorf("encode order: %w", err)
	}
	var out OrderEntity
	if err := c.do(ctx, http.MethodPost, "/pg/orders", body, &out); err != nil {
		return OrderEntity{}, err
	}
	return out, nil
}

// GetOrder fetches the current state of an order.
func (c *Cashfree) GetOrder(ctx context.Context, orderID string) (OrderEntity, error) {
	var out OrderEntity
	if err := c.do(ctx, http.MethodGet, "/pg/orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return OrderEntity{}, err
	}
	return out, nil
}

func (c *Cashfree) do(ctx context.Context, method, path string, body []byte, result any) error {
	return retry.Do(ctx, c.policy, func(ctx context.Context) error {
		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.opts.BaseURL+path, rd)
		if err != nil {
			return retry.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("x-client-id", c.opts.ClientID)
		req.Header.Set("x-client-secret", c.opts.ClientSecret)
		req.Header.Set("x-api-version", c.opts.APIVersion)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", version.UserAgent())
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s request: %w", serviceName, err)
		}
		defer utils.Close(resp.Body)

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%s read body: %w", serviceName, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &retry.StatusError{Service: serviceName, Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}
		if err := json.Unmarshal(raw, result); err != nil {
			return retry.Permanent(fmt.Errorf("%s decode: %w", serviceName, err))
		}
		return nil
	})
}

// ─────────────────────────────────────────────────────────────────
// Webhooks
// ─────────────────────────────────────────────────────────────────

// WebhookEvent is the subset of a payment webhook the gate reads.
type WebhookEvent struct {
	Type string `json:"type"`
	Data struct {
		Order struct {
			OrderID   string            `json:"order_id"`
			OrderTags map[string]string `json:"order_tags"`
		} `json:"order"`
		Payment struct {
			PaymentStatus string `json:"payment_status"`
		} `json:"payment"`
	} `json:"data"`
}

// Succeeded reports whether the event confirms a payment.
func (e WebhookEvent) Succeeded() bool {
	return e.Data.Payment.PaymentStatus == "SUCCESS"
}

// Sign computes the webhook signature: base64(HMAC-SHA256(secret, timestamp+body)).
func Sign(secret, timestamp string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks the x-webhook-signature of body and decodes it.
func (c *Cashfree) VerifyWebhook(signature, timestamp string, body []byte) (WebhookEvent, error) {
	if signature == "" || timestamp == "" {
		return WebhookEvent{}, ErrInvalidSignature
	}
	want := Sign(c.opts.ClientSecret, timestamp, body)
	if !hmac.Equal([]byte(want), []byte(signature)) {
		return WebhookEvent{}, ErrInvalidSignature
	}

	var ev WebhookEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return WebhookEvent{}, fmt.Errorf("decode webhook: %w", err)
	}
	return ev, nil
}
