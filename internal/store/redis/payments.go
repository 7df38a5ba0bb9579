package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrOrderNotFound is returned for unknown or expired orders.
var ErrOrderNotFound = errors.New("order not found")

// IsPaid reports whether userID paid for itemKey. Always read from Redis.
func (s *Store) IsPaid(ctx context.Context, userID int64, itemKey string) (bool, error) {
	ok, err := s.client.HExists(ctx, PaidKey(userID), itemKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read payment status: %w", err)
	}
	return ok, nil
}

// SetPaid marks itemKey as paid for userID. Paid is terminal.
func (s *Store) SetPaid(ctx context.Context, userID int64, itemKey string) error {
	if err := s.client.HSet(ctx, PaidKey(userID), itemKey, s.now().Unix()).Err(); err != nil {
		return fmt.Errorf("failed to save payment status: %w", err)
	}
	return nil
}

// PaidItems lists every item key userID paid for.
func (s *Store) PaidItems(ctx context.Context, userID int64) ([]string, error) {
	keys, err := s.client.HKeys(ctx, PaidKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list paid items: %w", err)
	}
	return keys, nil
}

// Order is a checkout created for one (user, item) pair.
type Order struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	ItemKey   string    `json:"item_key"`
	Amount    int       `json:"amount"`
	Status    string    `json:"status"`
	SessionID string    `json:"session_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// SaveOrder stores an order. ttl <= 0 uses DefaultOrderTTL.
func (s *Store) SaveOrder(ctx context.Context, order Order, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultOrderTTL
	}
	data, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("failed to marshal order: %w", err)
	}
	if err := s.client.Set(ctx, OrderKey(order.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save order: %w", err)
	}
	return nil
}

// GetOrder retrieves an order by ID.
func (s *Store) GetOrder(ctx context.Context, orderID string) (Order, error) {
	data, err := s.client.Get(ctx, OrderKey(orderID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
		}
		return Order{}, fmt.Errorf("failed to get order: %w", err)
	}

	var order Order
	if err := json.Unmarshal(data, &order); err != nil {
		return Order{}, fmt.Errorf("failed to unmarshal order: %w", err)
	}
	return order, nil
}
