package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/index"
	"github.com/MrSnakeDoc/studybot/internal/logger"
)

// CatalogReloader periodically reloads the catalog file into the in-memory catalog.
type CatalogReloader struct {
	source        index.Source
	catalog       *index.Catalog
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	stopOnce      sync.Once
	manualTrigger chan struct{}
	mu            sync.Mutex // one reload at a time
}

// NewCatalogReloader creates a reloader. interval <= 0 disables the ticker,
// manual triggers still work.
func NewCatalogReloader(
	source index.Source,
	catalog *index.Catalog,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *CatalogReloader {
	return &CatalogReloader{
		source:        source,
		catalog:       catalog,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start loads the catalog once, then keeps reloading in the background.
// A failed initial load is returned but the loop still runs.
func (cr *CatalogReloader) Start(ctx context.Context) error {
	_, err := cr.ReloadNow(ctx)

	var (
		ticker *time.Ticker
		tick   <-chan time.Time
	)
	if cr.interval > 0 {
		ticker = time.NewTicker(cr.interval)
		tick = ticker.C
	}
	go cr.loop(ctx, ticker, tick)

	if err != nil {
		return fmt.Errorf("initial reload failed: %w", err)
	}
	return nil
}

func (cr *CatalogReloader) loop(ctx context.Context, ticker *time.Ticker, tick <-chan time.Time) {
	if ticker != nil {
		defer ticker.Stop()
	}
	for {
		select {
		case <-tick:
			if _, err := cr.ReloadNow(ctx); err != nil {
				cr.logger.Error("failed to reload catalog", logger.Error(err))
			}
		case <-cr.manualTrigger:
			cr.logger.Info("manual reload triggered")
			if _, err := cr.ReloadNow(ctx); err != nil {
				cr.logger.Error("failed to reload catalog", logger.Error(err))
			}
		case <-cr.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the background loop. It is safe to call more than once.
func (cr *CatalogReloader) Stop() {
	cr.stopOnce.Do(func() { close(cr.stopCh) })
}

// ReloadNow loads the source and swaps the catalog. On error the previous
// catalog stays in place.
func (cr *CatalogReloader) ReloadNow(ctx context.Context) (int, error) {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	start := time.Now()
	snap, err := cr.source.Load(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load catalog: %w", err)
	}

	before := cr.catalog.Count()
	cr.catalog.Replace(snap)

	cr.logger.Info("catalog reloaded",
		logger.Int("items", len(snap.Items)),
		logger.Int("previous", before),
		logger.Duration("took", time.Since(start)))
	return len(snap.Items), nil
}
