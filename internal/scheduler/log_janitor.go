package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/logger"
)

// DefaultLogRetention is how long daily chat logs are kept.
const DefaultLogRetention = 30 * 24 * time.Hour

// LogPruner deletes the daily chat logs older than cutoff.
type LogPruner interface {
	DeleteLogsBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// LogJanitor handles cleanup of old chat logs
type LogJanitor struct {
	store     LogPruner
	logger    logger.Logger
	interval  time.Duration
	retention time.Duration
	stopCh    chan struct{}
	stopOnce  sync.Once
	now       func() time.Time
}

// NewLogJanitor creates a janitor. retention <= 0 uses DefaultLogRetention.
func NewLogJanitor(
	store LogPruner,
	log logger.Logger,
	interval time.Duration,
	retention time.Duration,
) *LogJanitor {
	if retention <= 0 {
		retention = DefaultLogRetention
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}

	return &LogJanitor{
		store:     store,
		logger:    log,
		interval:  interval,
		retention: retention,
		stopCh:    make(chan struct{}),
		now:       time.Now,
	}
}

// Start runs a collection now and then on every tick.
func (lj *LogJanitor) Start(ctx context.Context) {
	if _, err := lj.Collect(ctx); err != nil {
		lj.logger.Warn("initial log cleanup failed", logger.Error(err))
	}

	ticker := time.NewTicker(lj.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := lj.Collect(ctx); err != nil {
					lj.logger.Error("log cleanup failed", logger.Error(err))
				}
			case <-lj.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the janitor
func (lj *LogJanitor) Stop() {
	lj.stopOnce.Do(func() { close(lj.stopCh) })
}

// Collect removes the days that fell out of the retention window.
func (lj *LogJanitor) Collect(ctx context.Context) (int, error) {
	cutoff := lj.now().Add(-lj.retention)

	deleted, err := lj.store.DeleteLogsBefore(ctx, cutoff)
	if err != nil {
		return deleted, err
	}

	if deleted > 0 {
		lj.logger.Info("old chat logs deleted",
			logger.Int("days_deleted", deleted),
			logger.String("cutoff", cutoff.Format(time.DateOnly)))
	} else {
		lj.logger.Debug("no chat logs to delete")
	}
	return deleted, nil
}
