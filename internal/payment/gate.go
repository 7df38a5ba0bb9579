// Package payment gates paid catalog items behind Cashfree checkouts.
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/metrics"
	"github.com/MrSnakeDoc/studybot/internal/retry"
	redisstore "github.com/MrSnakeDoc/studybot/internal/store/redis"
)

var (
	ErrOrderNotPaid     = errors.New("order not paid")
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrContactMissing   = errors.New("contact details missing")
	ErrUnknownItem      = errors.New("unknown catalog item")
	ErrFreeItem         = errors.New("item is free")
	ErrDisabled         = errors.New("payments disabled")
)

// StatusStore holds the paid flag of every (user, item key) pair.
type StatusStore interface {
	IsPaid(ctx context.Context, userID int64, itemKey string) (bool, error)
	SetPaid(ctx context.Context, userID int64, itemKey string) error
}

// Store is everything the gate persists.
type Store interface {
	StatusStore
	Contact(ctx context.Context, userID int64) (string, string, error)
	SaveOrder(ctx context.Context, order redisstore.Order, ttl time.Duration) error
	GetOrder(ctx context.Context, orderID string) (redisstore.Order, error)
}

// Provider is the payment service. *Cashfree implements it.
type Provider interface {
	CreateOrder(ctx context.Context, req CreateOrderRequest) (OrderEntity, error)
	GetOrder(ctx context.Context, orderID string) (OrderEntity, error)
	VerifyWebhook(signature, timestamp string, body []byte) (WebhookEvent, error)
}

// Catalog resolves item keys.
type Catalog interface {
	Get(key string) (domain.CatalogItem, bool)
}

// Notifier tells a user that an item was unlocked.
type Notifier interface {
	NotifyUnlocked(ctx context.Context, userID int64, item domain.CatalogItem) error
}

// Options configures a Gate.
type Options struct {
	Store    Store
	Provider Provider // nil disables checkouts
	Catalog  Catalog
	BaseURL    string // public base URL of the pay pages
	OrderTTL   time.Duration
	LinkSecret string // signs checkout links
}

// Gate decides whether a user may see a catalog link. Paid is terminal and
// the store is read on every request.
type Gate struct {
	store    Store
	provider Provider
	catalog  Catalog
	baseURL  string
	orderTTL time.Duration
	secret   []byte
	log      logger.Logger

	notifier Notifier
	newID    func() string
	now      func() time.Time
}

// NewGate creates a gate.
func NewGate(opts Options, log logger.Logger) *Gate {
	return &Gate{
		store:    opts.Store,
		provider: opts.Provider,
		catalog:  opts.Catalog,
		baseURL:  opts.BaseURL,
		orderTTL: opts.OrderTTL,
		secret:   []byte(opts.LinkSecret),
		log:      log,
		newID:    func() string { return "sb_" + uuid.NewString() },
		now:      time.Now,
	}
}

// SetNotifier installs the unlock notifier. The bot is built after the gate.
func (g *Gate) SetNotifier(n Notifier) {
	g.notifier = n
}

// Enabled reports whether checkouts can be created.
func (g *Gate) Enabled() bool {
	return g.provider != nil && g.baseURL != ""
}

// Unlocked reports whether userID may see item. Free items are always unlocked.
func (g *Gate) Unlocked(ctx context.Context, userID int64, item domain.CatalogItem) (bool, error) {
	if !item.Gated() {
		return true, nil
	}
	ok, err := g.store.IsPaid(ctx, userID, item.Key)
	if err != nil {
		return false, fmt.Errorf("read payment status of %s: %w", item.Key, err)
	}
	return ok, nil
}

// HasContact reports whether userID stored a phone number.
func (g *Gate) HasContact(ctx context.Context, userID int64) (bool, error) {
	phone, _, err := g.store.Contact(ctx, userID)
	if err != nil {
		return false, err
	}
	return phone != "", nil
}

// CheckoutURL is the link a locked item points at. It is signed so a link
// handed to one user cannot be edited into a checkout for another.
func (g *Gate) CheckoutURL(userID int64, itemKey string) string {
	q := url.Values{}
	q.Set("key", itemKey)
	q.Set("user", strconv.FormatInt(userID, 10))
	q.Set("sig", g.linkSignature(userID, itemKey))
	return g.baseURL + "/pay?" + q.Encode()
}

// VerifyCheckout reports whether sig was issued by CheckoutURL for userID and itemKey.
func (g *Gate) VerifyCheckout(userID int64, itemKey, sig string) bool {
	if sig == "" {
		return false
	}
	return hmac.Equal([]byte(g.linkSignature(userID, itemKey)), []byte(sig))
}

func (g *Gate) linkSignature(userID int64, itemKey string) string {
	mac := hmac.New(sha256.New, g.secret)
	mac.Write([]byte(strconv.FormatInt(userID, 10) + ":" + itemKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// Checkout is a created order ready for the hosted checkout.
type Checkout struct {
	Order     redisstore.Order
	Item      domain.CatalogItem
	SessionID string
}

// CreateCheckout creates an order for userID and itemKey.
func (g *Gate) CreateCheckout(ctx context.Context, userID int64, itemKey string) (Checkout, error) {
	if !g.Enabled() {
		return Checkout{}, ErrDisabled
	}

	item, ok := g.catalog.Get(itemKey)
	if !ok {
		return Checkout{}, fmt.Errorf("%w: %s", ErrUnknownItem, itemKey)
	}
	if !item.Gated() {
		return Checkout{}, fmt.Errorf("%w: %s", ErrFreeItem, itemKey)
	}

	phone, email, err := g.store.Contact(ctx, userID)
	if err != nil {
		return Checkout{}, err
	}
	if phone == "" {
		return Checkout{}, ErrContactMissing
	}

	orderID := g.newID()
	req := CreateOrderRequest{
		OrderID:       orderID,
		OrderAmount:   float64(item.Price),
		OrderCurrency: "INR",
		CustomerDetails: CustomerDetails{
			CustomerID:    strconv.FormatInt(userID, 10),
			CustomerPhone: phone,
			CustomerEmail: email,
		},
		OrderMeta: OrderMeta{
			ReturnURL: g.baseURL + "/payment/return?order_id={order_id}",
			NotifyURL: g.baseURL + "/api/webhook/cashfree",
		},
		OrderNote: item.Label,
		OrderTags: map[string]string{
			"user_id":  strconv.FormatInt(userID, 10),
			"item_key": item.Key,
		},
	}
	// the order must not stay payable after its local record is gone
	if g.orderTTL > 0 {
		req.OrderExpiryTime = g.now().Add(g.orderTTL).Format(time.RFC3339)
	}

	entity, err := g.provider.CreateOrder(ctx, req)
	if err != nil {
		g.log.Error("failed to create order",
			logger.String("service", serviceName),
			logger.String("key", item.Key),
			logger.UserID(userID),
			logger.Error(err))
		metrics.RecordExternal(serviceName, metrics.OutcomeError)
		return Checkout{}, fmt.Errorf("create order: %w", err)
	}
	metrics.RecordExternal(serviceName, metrics.OutcomeOK)

	order := redisstore.Order{
		ID:        orderID,
		UserID:    userID,
		ItemKey:   item.Key,
		Amount:    item.Price,
		Status:    OrderActive,
		SessionID: entity.PaymentSessionID,
		CreatedAt: g.now(),
	}
	if err := g.store.SaveOrder(ctx, order, g.orderTTL); err != nil {
		return Checkout{}, err
	}
	metrics.RecordPayment("order_created")

	return Checkout{Order: order, Item: item, SessionID: entity.PaymentSessionID}, nil
}

// Confirm asks the provider for the status of orderID and unlocks the item
// when it is paid. Confirming twice is harmless.
func (g *Gate) Confirm(ctx context.Context, orderID string) (redisstore.Order, error) {
	order, err := g.store.GetOrder(ctx, orderID)
	if err != nil {
		return redisstore.Order{}, err
	}
	if order.Status == OrderPaid {
		return order, nil
	}
	if g.provider == nil {
		return order, ErrDisabled
	}

	entity, err := g.provider.GetOrder(ctx, orderID)
	if err != nil {
		metrics.RecordExternal(serviceName, metrics.OutcomeError)
		return order, fmt.Errorf("fetch order %s: %w", orderID, err)
	}
	if entity.OrderStatus != OrderPaid {
		return order, fmt.Errorf("%w: %s is %s", ErrOrderNotPaid, orderID, entity.OrderStatus)
	}

	return g.unlock(ctx, order)
}

// HandleWebhook verifies and applies a provider webhook. Events that are not
// successful payments are ignored.
func (g *Gate) HandleWebhook(ctx context.Context, signature, timestamp string, body []byte) error {
	if g.provider == nil {
		return ErrDisabled
	}
	ev, err := g.provider.VerifyWebhook(signature, timestamp, body)
	if err != nil {
		metrics.RecordPayment("webhook_rejected")
		return err
	}
	if !ev.Succeeded() {
		g.log.Debug("ignoring payment webhook",
			logger.String("type", ev.Type),
			logger.String("order_id", ev.Data.Order.OrderID))
		return nil
	}

	order, err := g.store.GetOrder(ctx, ev.Data.Order.OrderID)
	switch {
	case errors.Is(err, redisstore.ErrOrderNotFound):
		order, err = g.recoverOrder(ctx, ev)
		if err != nil {
			return err
		}
		g.log.Warn("order record missing, rebuilt from provider tags",
			logger.String("order_id", order.ID),
			logger.String("key", order.ItemKey),
			logger.UserID(order.UserID))
	case err != nil:
		return err
	}
	if order.Status == OrderPaid {
		return nil
	}
	_, err = g.unlock(ctx, order)
	return err
}

// recoverOrder rebuilds an order whose local record expired. The user and item
// come from the order tags, read from the event or fetched from the provider.
// ErrOrderNotFound is returned when the order was not created by this gate.
func (g *Gate) recoverOrder(ctx context.Context, ev WebhookEvent) (redisstore.Order, error) {
	orderID := ev.Data.Order.OrderID
	tags := ev.Data.Order.OrderTags
	var amount float64

	if tags["user_id"] == "" || tags["item_key"] == "" {
		entity, err := g.provider.GetOrder(ctx, orderID)
		var se *retry.StatusError
		switch {
		case errors.As(err, &se) && se.Code == http.StatusNotFound:
			return redisstore.Order{}, fmt.Errorf("%w: %s", redisstore.ErrOrderNotFound, orderID)
		case err != nil:
			metrics.RecordExternal(serviceName, metrics.OutcomeError)
			return redisstore.Order{}, fmt.Errorf("fetch order %s: %w", orderID, err)
		}
		tags, amount = entity.OrderTags, entity.OrderAmount
	}

	userID, err := strconv.ParseInt(tags["user_id"], 10, 64)
	if err != nil || userID <= 0 || tags["item_key"] == "" {
		return redisstore.Order{}, fmt.Errorf("%w: %s has no user tags", redisstore.ErrOrderNotFound, orderID)
	}

	order := redisstore.Order{
		ID:      orderID,
		UserID:  userID,
		ItemKey: tags["item_key"],
		Amount:  int(amount),
		Status:  OrderActive,
	}
	if item, ok := g.catalog.Get(order.ItemKey); ok && order.Amount == 0 {
		order.Amount = item.Price
	}
	return order, nil
}

func (g *Gate) unlock(ctx context.Context, order redisstore.Order) (redisstore.Order, error) {
	if err := g.store.SetPaid(ctx, order.UserID, order.ItemKey); err != nil {
		return order, err
	}

	order.Status = OrderPaid
	if err := g.store.SaveOrder(ctx, order, g.orderTTL); err != nil {
		// the paid flag is what matters
		g.log.Warn("failed to update order status",
			logger.String("order_id", order.ID),
			logger.Error(err))
	}
	metrics.RecordPayment("confirmed")
	g.log.Info("payment confirmed",
		logger.String("order_id", order.ID),
		logger.String("key", order.ItemKey),
		logger.UserID(order.UserID))

	if g.notifier != nil {
		item, ok := g.catalog.Get(order.ItemKey)
		if !ok {
			item = domain.CatalogItem{Key: order.ItemKey, Label: order.ItemKey}
		}
		if err := g.notifier.NotifyUnlocked(ctx, order.UserID, item); err != nil {
			g.log.Warn("failed to notify unlocked item",
				logger.UserID(order.UserID),
				logger.String("key", order.ItemKey),
				logger.Error(err))
		}
	}
	return order, nil
}
