package links

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/index"
	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/shortener"
)

type fakeShortener struct {
	calls atomic.Int32
	err   error
	delay time.Duration
}

func (f *fakeShortener) Shorten(_ context.Context, longURL, alias string) (string, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	return "https://short.example/" + alias, nil
}

type fakeShared struct {
	mu    sync.Mutex
	links map[string]string
	err   error
}

func newFakeShared() *fakeShared { return &fakeShared{links: map[string]string{}} }

func (f *fakeShared) GetShortLink(_ context.Context, key string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.links[key], nil
}

func (f *fakeShared) CacheShortLink(_ context.Context, key, url string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links[key] = url
	return nil
}

var item = domain.CatalogItem{Key: "mtg_bio", Category: "Biology", Label: "MTG Biology"}

func newResolver(short shortener.Shortener, shared SharedCache) (*Resolver, *index.Catalog) {
	mem := index.NewCatalog(nil, time.Hour)
	r := NewResolver(Options{
		Bot:       "studybot",
		Memory:    mem,
		Shared:    shared,
		Shortener: short,
		TTL:       time.Hour,
	}, logger.New("error", false))
	return r, mem
}

func TestResolveRoundTripFromCache(t *testing.T) {
	short := &fakeShortener{}
	r, mem := newResolver(short, newFakeShared())

	first := r.Resolve(context.Background(), item)
	second := r.Resolve(context.Background(), item)

	if first != "https://short.example/mtg_bio" || second != first {
		t.Errorf("Resolve() = %q then %q", first, second)
	}
	if got := short.calls.Load(); got != 1 {
		t.Errorf("shortener calls = %d, want 1", got)
	}
	if url, ok := mem.ShortLink("mtg_bio"); !ok || url != first {
		t.Errorf("memory cache = %q, %v", url, ok)
	}
}

func TestResolveFallbacks(t *testing.T) {
	deep := "https://t.me/studybot?start=mtg_bio"

	tests := []struct {
		name   string
		short  shortener.Shortener
		shared SharedCache
		want   string
	}{
		{name: "shortener failure", short: &fakeShortener{err: errors.New("boom")}, want: deep},
		{name: "shortener disabled", short: &fakeShortener{err: shortener.ErrDisabled}, want: deep},
		{name: "no shortener", short: nil, want: deep},
		{
			name:   "shared cache failure still shortens",
			short:  &fakeShortener{},
			shared: &fakeShared{links: map[string]string{}, err: errors.New("redis down")},
			want:   "https://short.example/mtg_bio",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newResolver(tt.short, tt.shared)
			if got := r.Resolve(context.Background(), item); got != tt.want {
				t.Errorf("Resolve() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestResolveFromSharedCache(t *testing.T) {
	shared := newFakeShared()
	shared.links["mtg_bio"] = "https://short.example/warm"
	short := &fakeShortener{}
	r, mem := newResolver(short, shared)

	if got := r.Resolve(context.Background(), item); got != "https://short.example/warm" {
		t.Errorf("Resolve() = %q", got)
	}
	if short.calls.Load() != 0 {
		t.Error("shortener should not be called on a shared cache hit")
	}
	if _, ok := mem.ShortLink("mtg_bio"); !ok {
		t.Error("shared cache hit should populate memory")
	}
}

func TestResolveDeduplicatesConcurrentFills(t *testing.T) {
	short := &fakeShortener{delay: 20 * time.Millisecond}
	r, _ := newResolver(short, nil)

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if got := r.Resolve(context.Background(), item); got != "https://short.example/mtg_bio" {
				t.Errorf("Resolve() = %q", got)
			}
		}()
	}
	wg.Wait()

	// singleflight collapses the burst, later callers hit memory
	if got := short.calls.Load(); got != 1 {
		t.Errorf("shortener calls = %d, want 1", got)
	}
}

func TestResolveAll(t *testing.T) {
	items := []domain.CatalogItem{
		{Key: "a"}, {Key: "b"}, {Key: "c"},
	}
	r, _ := newResolver(&fakeShortener{}, nil)

	got := r.ResolveAll(context.Background(), items)
	if len(got) != len(items) {
		t.Fatalf("ResolveAll() returned %d links", len(got))
	}
	for _, it := range items {
		if got[it.Key] != "https://short.example/"+it.Key {
			t.Errorf("link[%s] = %q", it.Key, got[it.Key])
		}
	}
}

func TestDeepLinkPrefersItemValue(t *testing.T) {
	r, _ := newResolver(nil, nil)
	custom := domain.CatalogItem{Key: "x", DeepLink: "https://t.me/other?start=x"}
	if got := r.DeepLink(custom); got != custom.DeepLink {
		t.Errorf("DeepLink() = %q", got)
	}
	if got := r.DeepLink(domain.CatalogItem{Key: "x"}); got != "https://t.me/studybot?start=x" {
		t.Errorf("DeepLink() = %q", got)
	}
}
