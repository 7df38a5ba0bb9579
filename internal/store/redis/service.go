package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultLinkTTL is the default TTL for shortened links (24 hours)
	DefaultLinkTTL = 24 * time.Hour
	// DefaultOrderTTL keeps unpaid orders around long enough for slow payers
	DefaultOrderTTL = 72 * time.Hour
)

// Store handles Redis operations for chats, logs, payments and link caches
type Store struct {
	client *redis.Client
	now    func() time.Time
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
		now:    time.Now,
	}
}

// Ping checks the connection, used by readiness probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Chat is the profile stored for every chat the bot has seen.
type Chat struct {
	ID        int64
	Type      string // private | group | supergroup | channel
	Title     string
	Username  string
	FirstName string
}

// SaveChat records the chat and reports whether it was already known.
func (s *Store) SaveChat(ctx context.Context, chat Chat) (bool, error) {
	pipe := s.client.TxPipeline()
	added := pipe.SAdd(ctx, KeyAllChats, chat.ID)
	pipe.HSet(ctx, ChatKey(chat.ID), map[string]any{
		"type":       chat.Type,
		"title":      chat.Title,
		"username":   chat.Username,
		"first_name": chat.FirstName,
		"last_seen":  s.now().Unix(),
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("failed to save chat: %w", err)
	}
	return added.Val() == 0, nil
}

// ChatIDs returns every known chat, in no particular order.
func (s *Store) ChatIDs(ctx context.Context) ([]int64, error) {
	raw, err := s.client.SMembers(ctx, KeyAllChats).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get chat IDs: %w", err)
	}

	ids := make([]int64, 0, len(raw))
	for _, r := range raw {
		id, err := strconv.ParseInt(r, 10, 64)
		if err != nil {
			// Skip entries that are not chat IDs
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// CountChats returns the number of known chats.
func (s *Store) CountChats(ctx context.Context) (int64, error) {
	n, err := s.client.SCard(ctx, KeyAllChats).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count chats: %w", err)
	}
	return n, nil
}

// SetContact stores the phone and email a user gave for checkout.
func (s *Store) SetContact(ctx context.Context, userID int64, phone, email string) error {
	if err := s.client.HSet(ctx, ChatKey(userID), "phone", phone, "email", email).Err(); err != nil {
		return fmt.Errorf("failed to save contact: %w", err)
	}
	return nil
}

// Contact returns the stored phone and email. Both are empty when unknown.
func (s *Store) Contact(ctx context.Context, userID int64) (string, string, error) {
	vals, err := s.client.HMGet(ctx, ChatKey(userID), "phone", "email").Result()
	if err != nil {
		return "", "", fmt.Errorf("failed to get contact: %w", err)
	}
	return asString(vals[0]), asString(vals[1]), nil
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}
