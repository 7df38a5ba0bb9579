package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/index"
	"github.com/MrSnakeDoc/studybot/internal/logger"
)

type countingSource struct {
	mu    sync.Mutex
	calls int
	fail  bool
	items []domain.CatalogItem
}

func (s *countingSource) Load(context.Context) (index.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail {
		return index.Snapshot{}, errors.New("file missing")
	}
	return index.Snapshot{Items: s.items}, nil
}

func (s *countingSource) setFail(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail = v
}

func (s *countingSource) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestCatalogReloader_ReloadNow(t *testing.T) {
	log := logger.New("error", false)
	src := &countingSource{items: []domain.CatalogItem{
		{Key: "mtg_bio", Category: "Biology", Label: "MTG"},
		{Key: "hcv", Category: "Physics", Label: "HC Verma"},
	}}
	catalog := index.NewCatalog(src, 0)
	cr := NewCatalogReloader(src, catalog, log, 0, nil)

	n, err := cr.ReloadNow(context.Background())
	if err != nil {
		t.Fatalf("ReloadNow() error = %v", err)
	}
	if n != 2 || catalog.Count() != 2 {
		t.Errorf("reloaded %d, catalog has %d, want 2", n, catalog.Count())
	}

	// a failing reload keeps the previous catalog
	src.setFail(true)
	if _, err := cr.ReloadNow(context.Background()); err == nil {
		t.Fatal("ReloadNow() expected error")
	}
	if _, ok := catalog.Get("hcv"); !ok {
		t.Error("previous catalog was dropped after a failed reload")
	}
}

func TestCatalogReloader_ManualTrigger(t *testing.T) {
	log := logger.New("error", false)
	src := &countingSource{items: []domain.CatalogItem{{Key: "a", Label: "A"}}}
	trigger := make(chan struct{}, 1)
	cr := NewCatalogReloader(src, index.NewCatalog(src, 0), log, time.Hour, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := cr.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer cr.Stop()

	trigger <- struct{}{}
	deadline := time.Now().Add(2 * time.Second)
	for src.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatalf("manual trigger not handled, calls = %d", src.count())
		}
		time.Sleep(5 * time.Millisecond)
	}
	cr.Stop() // idempotent
}

func TestCatalogReloader_StartFailureStillRuns(t *testing.T) {
	log := logger.New("error", false)
	src := &countingSource{fail: true}
	trigger := make(chan struct{}, 1)
	catalog := index.NewCatalog(src, 0)
	cr := NewCatalogReloader(src, catalog, log, 0, trigger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := cr.Start(ctx); err == nil {
		t.Fatal("Start() expected error")
	}
	defer cr.Stop()

	src.setFail(false)
	trigger <- struct{}{}
	deadline := time.Now().Add(2 * time.Second)
	for src.count() < 2 {
		if time.Now().After(deadline) {
			t.Fatal("loop did not start after a failed initial load")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type fakePruner struct {
	cutoff time.Time
	n      int
	err    error
}

func (f *fakePruner) DeleteLogsBefore(_ context.Context, cutoff time.Time) (int, error) {
	f.cutoff = cutoff
	return f.n, f.err
}

func TestLogJanitor_Collect(t *testing.T) {
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		retention  time.Duration
		pruner     *fakePruner
		wantCutoff time.Time
		wantErr    bool
	}{
		{
			name:       "default retention",
			pruner:     &fakePruner{n: 3},
			wantCutoff: now.Add(-DefaultLogRetention),
		},
		{
			name:       "custom retention",
			retention:  7 * 24 * time.Hour,
			pruner:     &fakePruner{},
			wantCutoff: time.Date(2024, 6, 23, 12, 0, 0, 0, time.UTC),
		},
		{
			name:       "store error",
			retention:  time.Hour,
			pruner:     &fakePruner{err: errors.New("redis down")},
			wantCutoff: now.Add(-time.Hour),
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lj := NewLogJanitor(tt.pruner, logger.New("error", false), time.Hour, tt.retention)
			lj.now = func() time.Time { return now }

			n, err := lj.Collect(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Collect() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.pruner.cutoff.Equal(tt.wantCutoff) {
				t.Errorf("cutoff = %v, want %v", tt.pruner.cutoff, tt.wantCutoff)
			}
			if n != tt.pruner.n {
				t.Errorf("deleted = %d, want %d", n, tt.pruner.n)
			}
		})
	}
}

type fakeShared map[string]string

func (f fakeShared) AllShortLinks(context.Context) (map[string]string, error) { return f, nil }

func TestLinkSyncer_Sync(t *testing.T) {
	src := index.SourceFunc(func(context.Context) (index.Snapshot, error) {
		return index.Snapshot{Items: []domain.CatalogItem{{Key: "mtg_bio"}, {Key: "hcv"}}}, nil
	})
	catalog := index.NewCatalog(src, 0)
	if _, err := catalog.Items(context.Background()); err != nil {
		t.Fatal(err)
	}

	shared := fakeShared{
		"mtg_bio": "https://s.example/a",
		"gone":    "https://s.example/b",
		"hcv":     "",
	}
	ls := NewLinkSyncer(shared, catalog, logger.New("error", false))

	n, err := ls.Sync(context.Background())
	if err != nil {
		t.Fatalf("Sync() error = %v", err)
	}
	if n != 1 {
		t.Errorf("synced = %d, want 1", n)
	}
	if url, ok := catalog.ShortLink("mtg_bio"); !ok || url != "https://s.example/a" {
		t.Errorf("ShortLink(mtg_bio) = %q, %v", url, ok)
	}
	if _, ok := catalog.ShortLink("gone"); ok {
		t.Error("link of a removed key was synced")
	}
}
