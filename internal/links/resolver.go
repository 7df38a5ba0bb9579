// Package links turns catalog items into the URLs shown to users.
package links

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/metrics"
	"github.com/MrSnakeDoc/studybot/internal/shortener"
)

const defaultFanout = 8

// MemoryCache is the in-process link cache next to the catalog.
type MemoryCache interface {
	ShortLink(key string) (string, bool)
	SetShortLink(key, url string)
}

// SharedCache survives restarts and is shared between replicas.
type SharedCache interface {
	GetShortLink(ctx context.Context, itemKey string) (string, error)
	CacheShortLink(ctx context.Context, itemKey, url string, ttl time.Duration) error
}

// Resolver returns the shortened link of an item, falling back to its deep
// link when shortening fails. Lookup order: memory, shared cache, shortener.
type Resolver struct {
	bot       string
	memory    MemoryCache
	shared    SharedCache
	shortener shortener.Shortener
	ttl       time.Duration
	fanout    int
	log       logger.Logger

	group singleflight.Group
}

// Options configures a Resolver. Shared and Shortener may be nil.
type Options struct {
	Bot       string
	Memory    MemoryCache
	Shared    SharedCache
	Shortener shortener.Shortener
	TTL       time.Duration
	Fanout    int
}

// NewResolver creates a resolver.
func NewResolver(opts Options, log logger.Logger) *Resolver {
	if opts.Fanout <= 0 {
		opts.Fanout = defaultFanout
	}
	return &Resolver{
		bot:       opts.Bot,
		memory:    opts.Memory,
		shared:    opts.Shared,
		shortener: opts.Shortener,
		ttl:       opts.TTL,
		fanout:    opts.Fanout,
		log:       log,
	}
}

// DeepLink returns the unshortened link of item.
func (r *Resolver) DeepLink(item domain.CatalogItem) string {
	if item.DeepLink != "" {
		return item.DeepLink
	}
	return domain.DeepLink(r.bot, item.Key)
}

// Resolve returns the link of item. It never fails: any error degrades to the
// deep link.
func (r *Resolver) Resolve(ctx context.Context, item domain.CatalogItem) string {
	deep := r.DeepLink(item)

	if r.memory != nil {
		if url, ok := r.memory.ShortLink(item.Key); ok {
			metrics.RecordExternal("shortener", metrics.OutcomeCached)
			return url
		}
	}

	v, _, _ := r.group.Do(item.Key, func() (any, error) {
		return r.fill(ctx, item, deep), nil
	})
	return v.(string)
}

func (r *Resolver) fill(ctx context.Context, item domain.CatalogItem, deep string) string {
	// a previous flight may have finished between the memory check and Do
	if r.memory != nil {
		if url, ok := r.memory.ShortLink(item.Key); ok {
			return url
		}
	}

	if r.shared != nil {
		url, err := r.shared.GetShortLink(ctx, item.Key)
		if err != nil {
			r.log.Warn("short link cache read failed",
				logger.String("service", "redis"),
				logger.String("key", item.Key),
				logger.Error(err))
		} else if url != "" {
			r.remember(item.Key, url)
			metrics.RecordExternal("shortener", metrics.OutcomeCached)
			return url
		}
	}

	if r.shortener == nil {
		return deep
	}

	url, err := r.shortener.Shorten(ctx, deep, item.ShortAlias())
	if err != nil {
		if !errors.Is(err, shortener.ErrDisabled) {
			r.log.Warn("link shortening failed, using deep link",
				logger.String("service", "shortener"),
				logger.String("key", item.Key),
				logger.Error(err))
			metrics.RecordExternal("shortener", metrics.OutcomeFallback)
		}
		return deep
	}
	metrics.RecordExternal("shortener", metrics.OutcomeOK)

	r.remember(item.Key, url)
	if r.shared != nil {
		if err := r.shared.CacheShortLink(ctx, item.Key, url, r.ttl); err != nil {
			r.log.Warn("short link cache write failed",
				logger.String("service", "redis"),
				logger.String("key", item.Key),
				logger.Error(err))
		}
	}
	return url
}

func (r *Resolver) remember(key, url string) {
	if r.memory != nil {
		r.memory.SetShortLink(key, url)
	}
}

// ResolveAll resolves every item concurrently and returns links keyed by item
// key. It returns once every lookup finished.
func (r *Resolver) ResolveAll(ctx context.Context, items []domain.CatalogItem) map[string]string {
	results := make([]string, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fanout)
	for i, item := range items {
		g.Go(func() error {
			results[i] = r.Resolve(gctx, item)
			return nil
		})
	}
	_ = g.Wait() // Resolve never fails

	out := make(map[string]string, len(items))
	for i, item := range items {
		out[item.Key] = results[i]
	}
	return out
}
