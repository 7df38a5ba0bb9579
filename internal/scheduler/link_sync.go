package scheduler

import (
	"context"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/logger"
)

// SharedLinks lists the shortened links persisted in Redis.
type SharedLinks interface {
	AllShortLinks(ctx context.Context) (map[string]string, error)
}

// MemoryLinks is the in-process link cache next to the catalog.
type MemoryLinks interface {
	Get(key string) (domain.CatalogItem, bool)
	SetShortLink(key, url string)
}

// LinkSyncer warms the in-memory link cache from Redis on startup
type LinkSyncer struct {
	store  SharedLinks
	memory MemoryLinks
	logger logger.Logger
}

// NewLinkSyncer creates a new syncer
func NewLinkSyncer(store SharedLinks, memory MemoryLinks, log logger.Logger) *LinkSyncer {
	return &LinkSyncer{
		store:  store,
		memory: memory,
		logger: log,
	}
}

// Sync copies the links of keys still in the catalog into memory and
// returns how many were copied.
func (ls *LinkSyncer) Sync(ctx context.Context) (int, error) {
	ls.logger.Info("syncing short links from redis to memory")

	links, err := ls.store.AllShortLinks(ctx)
	if err != nil {
		return 0, err
	}

	if len(links) == 0 {
		ls.logger.Info("no short links found in redis")
		return 0, nil
	}

	synced := 0
	for key, url := range links {
		if _, ok := ls.memory.Get(key); !ok || url == "" {
			continue
		}
		ls.memory.SetShortLink(key, url)
		synced++
	}

	ls.logger.Info("synced short links from redis",
		logger.Int("found", len(links)),
		logger.Int("synced", synced))
	return synced, nil
}
