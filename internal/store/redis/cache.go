package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CacheShortLink stores the shortened link of a catalog item
func (s *Store) CacheShortLink(ctx context.Context, itemKey, url string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultLinkTTL
	}
	if err := s.client.Set(ctx, ShortLinkKey(itemKey), url, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache short link: %w", err)
	}
	return nil
}

// GetShortLink retrieves a cached short link. A miss returns "" and no error.
func (s *Store) GetShortLink(ctx context.Context, itemKey string) (string, error) {
	url, err := s.client.Get(ctx, ShortLinkKey(itemKey)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil // Cache miss
		}
		return "", fmt.Errorf("failed to get cached short link: %w", err)
	}
	return url, nil
}

// AllShortLinks returns every cached short link keyed by item key.
func (s *Store) AllShortLinks(ctx context.Context) (map[string]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, KeyPrefixShortLink+"*", 0).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan short links: %w", err)
	}
	if len(keys) == 0 {
		return map[string]string{}, nil
	}

	vals, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read short links: %w", err)
	}

	out := make(map[string]string, len(keys))
	for i, k := range keys {
		itemKey, err := ExtractItemKey(k)
		if err != nil {
			continue
		}
		if url := asString(vals[i]); url != "" {
			out[itemKey] = url
		}
	}
	return out, nil
}

// FlushShortLinks removes all cached short links
func (s *Store) FlushShortLinks(ctx context.Context) error {
	iter := s.client.Scan(ctx, 0, KeyPrefixShortLink+"*", 0).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("failed to delete short link key: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to flush short links: %w", err)
	}
	return nil
}
