package index

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/domain"
)

// Snapshot is everything a source yields in one load.
type Snapshot struct {
	Items     []domain.CatalogItem
	Resources domain.Resources
}

// Source produces the catalog. The material YAML loader is the production one.
type Source interface {
	Load(ctx context.Context) (Snapshot, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (Snapshot, error)

func (f SourceFunc) Load(ctx context.Context) (Snapshot, error) { return f(ctx) }

type shortLink struct {
	url      string
	storedAt time.Time
}

// Catalog is the process-wide, lazily loaded list of study materials plus
// the shortened link cache that sits next to it.
//
// A failed load is not memoized: the next Items call tries again.
type Catalog struct {
	source Source

	loadMu sync.Mutex // serializes loads

	mu         sync.RWMutex
	loaded     bool
	items      []domain.CatalogItem
	byKey      map[string]domain.CatalogItem
	resources  domain.Resources
	lastReload time.Time

	linkTTL time.Duration
	links   map[string]shortLink // item key -> shortened link
	now     func() time.Time
}

// NewCatalog creates an empty catalog backed by source.
// linkTTL <= 0 keeps shortened links for the process lifetime.
func NewCatalog(source Source, linkTTL time.Duration) *Catalog {
	return &Catalog{
		source:  source,
		byKey:   make(map[string]domain.CatalogItem),
		links:   make(map[string]shortLink),
		linkTTL: linkTTL,
		now:     time.Now,
	}
}

// Items returns the catalog, loading it on first use.
func (c *Catalog) Items(ctx context.Context) ([]domain.CatalogItem, error) {
	c.mu.RLock()
	if c.loaded {
		items := c.items
		c.mu.RUnlock()
		return items, nil
	}
	c.mu.RUnlock()

	c.loadMu.Lock()
	defer c.loadMu.Unlock()

	// another caller may have loaded while we waited
	c.mu.RLock()
	if c.loaded {
		items := c.items
		c.mu.RUnlock()
		return items, nil
	}
	c.mu.RUnlock()

	if c.source == nil {
		return nil, fmt.Errorf("catalog has no source")
	}
	snap, err := c.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}
	c.Replace(snap)
	return snap.Items, nil
}

// Replace swaps the whole catalog, used by reloads. Shortened links of keys
// that disappeared are dropped.
func (c *Catalog) Replace(snap Snapshot) {
	byKey := make(map[string]domain.CatalogItem, len(snap.Items))
	for _, it := range snap.Items {
		byKey[it.Key] = it
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = snap.Items
	c.byKey = byKey
	c.resources = snap.Resources
	c.loaded = true
	c.lastReload = c.now()
	for key := range c.links {
		if _, ok := byKey[key]; !ok {
			delete(c.links, key)
		}
	}
}

// Resources returns the static page content.
func (c *Catalog) Resources() domain.Resources {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resources
}

// Get retrieves an item by key. It never triggers a load.
func (c *Catalog) Get(key string) (domain.CatalogItem, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	item, ok := c.byKey[key]
	return item, ok
}

// Count returns the number of loaded items.
func (c *Catalog) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.items)
}

// LastReload returns when the catalog was last replaced.
func (c *Catalog) LastReload() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.lastReload
}

// ─────────────────────────────────────────────────────────────────
// Shortened links
// ─────────────────────────────────────────────────────────────────

// ShortLink returns the cached shortened link for key, if fresh.
func (c *Catalog) ShortLink(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	l, ok := c.links[key]
	if !ok {
		return "", false
	}
	if c.linkTTL > 0 && c.now().Sub(l.storedAt) > c.linkTTL {
		return "", false
	}
	return l.url, true
}

// SetShortLink caches url for key. Concurrent writers for the same key store
// the same value, so the last one wins harmlessly.
func (c *Catalog) SetShortLink(key, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.links[key] = shortLink{url: url, storedAt: c.now()}
}

// ShortLinkCount returns the number of cached shortened links.
func (c *Catalog) ShortLinkCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.links)
}
