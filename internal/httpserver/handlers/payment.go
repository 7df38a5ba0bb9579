package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/MrSnakeDoc/studybot/internal/httpserver/deps"
	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/payment"
	redisstore "github.com/MrSnakeDoc/studybot/internal/store/redis"
)

const maxWebhookBody = 1 << 20

func botURL(d deps.Deps) string {
	if d.BotUsername == "" {
		return ""
	}
	return "https://t.me/" + d.BotUsername
}

func paymentsOff(d deps.Deps) bool {
	return d.Payments == nil || !d.Payments.Enabled()
}

// Pay creates an order for a signed ?key=&user=&sig= link and renders the
// hosted checkout.
func Pay(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if paymentsOff(d) {
			render(w, d.Logger, http.StatusServiceUnavailable, messagePage, messageView{
				Title: "Payments unavailable", Body: "Please try again later.", BotURL: botURL(d),
			})
			return
		}

		key := strings.TrimSpace(r.URL.Query().Get("key"))
		userID, err := strconv.ParseInt(r.URL.Query().Get("user"), 10, 64)
		if key == "" || err != nil || userID <= 0 {
			render(w, d.Logger, http.StatusBadRequest, messagePage, messageView{
				Title: "Invalid link", Body: "This payment link is incomplete.", BotURL: botURL(d),
			})
			return
		}

		if !d.Payments.VerifyCheckout(userID, key, r.URL.Query().Get("sig")) {
			d.Logger.Warn("rejected checkout link",
				logger.String("key", key),
				logger.UserID(userID),
				logger.String("remote_ip", r.RemoteAddr))
			render(w, d.Logger, http.StatusForbidden, messagePage, messageView{
				Title: "Invalid link", Body: "This payment link is not valid. Search again in the bot for a fresh one.", BotURL: botURL(d),
			})
			return
		}

		co, err := d.Payments.CreateCheckout(r.Context(), userID, key)
		switch {
		case err == nil:
		case errors.Is(err, payment.ErrContactMissing):
			render(w, d.Logger, http.StatusBadRequest, messagePage, messageView{
				Title:  "Contact details needed",
				Body:   "Send /setcontact <phone> <email> to the bot, then open this link again.",
				BotURL: botURL(d),
			})
			return
		case errors.Is(err, payment.ErrUnknownItem), errors.Is(err, payment.ErrFreeItem):
			render(w, d.Logger, http.StatusNotFound, messagePage, messageView{
				Title: "Not found", Body: "This material cannot be purchased.", BotURL: botURL(d),
			})
			return
		default:
			d.Logger.Error("checkout failed",
				logger.String("key", key),
				logger.UserID(userID),
				logger.Error(err))
			render(w, d.Logger, http.StatusBadGateway, messagePage, messageView{
				Title: "Checkout failed", Body: "Please try again in a moment.", BotURL: botURL(d),
			})
			return
		}

		render(w, d.Logger, http.StatusOK, checkoutPage, checkoutView{
			Label:     co.Item.Label,
			Category:  co.Item.Category,
			Amount:    co.Order.Amount,
			OrderID:   co.Order.ID,
			SessionID: co.SessionID,
			Mode:      d.CashfreeMode,
		})
	}
}

// PaymentReturn is where the checkout redirects. It verifies the order.
func PaymentReturn(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID := strings.TrimSpace(r.URL.Query().Get("order_id"))
		if orderID == "" || paymentsOff(d) {
			render(w, d.Logger, http.StatusBadRequest, messagePage, messageView{
				Title: "Unknown order", Body: "No order to verify.", BotURL: botURL(d),
			})
			return
		}

		_, err := d.Payments.Confirm(r.Context(), orderID)
		switch {
		case err == nil:
			render(w, d.Logger, http.StatusOK, messagePage, messageView{
				Title:  "Payment successful",
				Body:   "Your material is unlocked. The link was sent to you on Telegram.",
				BotURL: botURL(d),
			})
		case errors.Is(err, payment.ErrOrderNotPaid):
			render(w, d.Logger, http.StatusOK, messagePage, messageView{
				Title:  "Payment pending",
				Body:   "We have not received the payment yet. You will be notified on Telegram once it is confirmed.",
				BotURL: botURL(d),
			})
		case errors.Is(err, redisstore.ErrOrderNotFound):
			render(w, d.Logger, http.StatusNotFound, messagePage, messageView{
				Title: "Unknown order", Body: "This order does not exist or has expired.", BotURL: botURL(d),
			})
		default:
			d.Logger.Error("payment verification failed", logger.String("order_id", orderID), logger.Error(err))
			render(w, d.Logger, http.StatusBadGateway, messagePage, messageView{
				Title: "Verification failed", Body: "Please refresh this page in a moment.", BotURL: botURL(d),
			})
		}
	}
}

type verifyRequest struct {
	OrderID string `json:"order_id"`
}

type verifyResponse struct {
	OrderID string `json:"order_id"`
	Paid    bool   `json:"paid"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// VerifyPayment is the JSON variant of PaymentReturn.
func VerifyPayment(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req verifyRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil || req.OrderID == "" {
			writeJSON(w, http.StatusBadRequest, verifyResponse{Error: "order_id is required"})
			return
		}
		if paymentsOff(d) {
			writeJSON(w, http.StatusServiceUnavailable, verifyResponse{OrderID: req.OrderID, Error: "payments disabled"})
			return
		}

		order, err := d.Payments.Confirm(r.Context(), req.OrderID)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, verifyResponse{OrderID: order.ID, Paid: true, Status: order.Status})
		case errors.Is(err, payment.ErrOrderNotPaid):
			writeJSON(w, http.StatusOK, verifyResponse{OrderID: req.OrderID, Status: order.Status})
		case errors.Is(err, redisstore.ErrOrderNotFound):
			writeJSON(w, http.StatusNotFound, verifyResponse{OrderID: req.OrderID, Error: "order not found"})
		default:
			d.Logger.Error("payment verification failed", logger.String("order_id", req.OrderID), logger.Error(err))
			writeJSON(w, http.StatusBadGateway, verifyResponse{OrderID: req.OrderID, Error: "verification failed"})
		}
	}
}

// CashfreeWebhook applies signed payment notifications.
func CashfreeWebhook(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if paymentsOff(d) {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
		if err != nil {
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}

		err = d.Payments.HandleWebhook(r.Context(),
			r.Header.Get("x-webhook-signature"),
			r.Header.Get("x-webhook-timestamp"),
			body)
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		case errors.Is(err, payment.ErrInvalidSignature):
			d.Logger.Warn("rejected payment webhook", logger.String("remote_ip", r.RemoteAddr))
			w.WriteHeader(http.StatusUnauthorized)
		case errors.Is(err, redisstore.ErrOrderNotFound):
			// not created by this bot, retrying will not help
			writeJSON(w, http.StatusOK, map[string]string{"status": "ignored"})
		default:
			d.Logger.Error("payment webhook failed", logger.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
