package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/telegraph"
)

type fakeCatalog struct {
	items []domain.CatalogItem
	err   error
}

func (f fakeCatalog) Items(context.Context) ([]domain.CatalogItem, error) { return f.items, f.err }
func (f fakeCatalog) Resources() domain.Resources                         { return domain.Resources{} }

type fakeLinks struct{}

func (fakeLinks) ResolveAll(_ context.Context, items []domain.CatalogItem) map[string]string {
	out := make(map[string]string, len(items))
	for _, it := range items {
		out[it.Key] = "https://short.example/" + it.Key
	}
	return out
}

type fakePublisher struct {
	mu    sync.Mutex
	err   error
	pages [][]telegraph.Node
}

func (f *fakePublisher) Publish(_ context.Context, _ string, content []telegraph.Node) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.pages = append(f.pages, content)
	return fmt.Sprintf("https://telegra.ph/page-%d", len(f.pages)), nil
}

type fakeGate struct {
	paid       map[string]bool
	hasContact bool
	disabled   bool
}

func (f *fakeGate) Enabled() bool { return !f.disabled }

func (f *fakeGate) Unlocked(_ context.Context, _ int64, item domain.CatalogItem) (bool, error) {
	return !item.Gated() || f.paid[item.Key], nil
}

func (f *fakeGate) HasContact(context.Context, int64) (bool, error) { return f.hasContact, nil }

func (f *fakeGate) CheckoutURL(user int64, key string) string {
	return fmt.Sprintf("https://study.example.com/pay?key=%s&user=%d", key, user)
}

func catalogItems() []domain.CatalogItem {
	return []domain.CatalogItem{
		{Category: "Biology", Label: "MTG Biology Objective NCERT", Key: "mtg_bio", Price: 49},
		{Category: "Botany", Label: "MTG Bio Botany Notes", Key: "mtg_bot", Price: 29},
		{Category: "Physics", Label: "HC Verma Solutions", Key: "hcv"},
	}
}

func newTestService(cat Catalog, pub Publisher, gate Gate) *Service {
	return NewService(Options{
		Catalog:   cat,
		Links:     fakeLinks{},
		Publisher: pub,
		Gate:      gate,
	}, logger.New("error", false))
}

var asha = UserContext{UserID: 7, Mention: "Asha", ChatType: "private"}

func pageJSON(t *testing.T, nodes []telegraph.Node) string {
	t.Helper()
	var b strings.Builder
	for _, n := range nodes {
		data, err := n.MarshalJSON()
		if err != nil {
			t.Fatal(err)
		}
		b.Write(data)
	}
	return b.String()
}

func TestSearch(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		catalog   fakeCatalog
		pubErr    error
		wantText  string
		wantErr   error
		wantMode  string
		wantPages int
	}{
		{
			name:      "found",
			query:     "MTG bio",
			catalog:   fakeCatalog{items: catalogItems()},
			wantText:  "🔍 Asha, found <b>3</b> matches for <b>mtg bio</b>:\n<a href=\"https://telegra.ph/page-1\">View materials</a>",
			wantMode:  ParseModeHTML,
			wantPages: 1,
		},
		{
			name:     "empty query",
			query:    "   ",
			catalog:  fakeCatalog{items: catalogItems()},
			wantText: MsgEmptyQuery,
			wantErr:  ErrEmptyQuery,
		},
		{
			name:     "no matches",
			query:    "xqz",
			catalog:  fakeCatalog{items: []domain.CatalogItem{{Category: "abc", Label: "def", Key: "k"}}},
			wantText: `❌ Asha, no materials found for "xqz".`,
		},
		{
			name:     "empty catalog",
			query:    "mtg",
			catalog:  fakeCatalog{},
			wantText: `❌ Asha, no materials found for "mtg".`,
		},
		{
			name:     "catalog failure",
			query:    "mtg",
			catalog:  fakeCatalog{err: errors.New("file gone")},
			wantText: MsgGenericFailure,
			wantErr:  errors.New("any"),
		},
		{
			name:     "publisher failure",
			query:    "mtg",
			catalog:  fakeCatalog{items: catalogItems()},
			pubErr:   &telegraph.PageError{Op: "createPage", Err: errors.New("flood")},
			wantText: MsgGenericFailure,
			wantErr:  telegraph.ErrPageCreationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{err: tt.pubErr}
			svc := newTestService(tt.catalog, pub, nil)

			reply, err := svc.Search(context.Background(), tt.query, asha)
			if reply.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", reply.Text, tt.wantText)
			}
			if reply.ParseMode != tt.wantMode {
				t.Errorf("ParseMode = %q, want %q", reply.ParseMode, tt.wantMode)
			}
			if !reply.DisableLinkPreview {
				t.Error("link previews should be disabled")
			}
			switch {
			case tt.wantErr == nil && err != nil:
				t.Errorf("error = %v, want nil", err)
			case tt.wantErr != nil && err == nil:
				t.Errorf("error = nil, want %v", tt.wantErr)
			case errors.Is(tt.wantErr, ErrEmptyQuery) || errors.Is(tt.wantErr, telegraph.ErrPageCreationFailed):
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("error = %v, want %v", err, tt.wantErr)
				}
			}
			if len(pub.pages) != tt.wantPages {
				t.Errorf("pages published = %d, want %d", len(pub.pages), tt.wantPages)
			}
		})
	}
}

func TestSearchPageUsesResolvedLinks(t *testing.T) {
	pub := &fakePublisher{}
	svc := newTestService(fakeCatalog{items: catalogItems()}, pub, nil)

	if _, err := svc.Search(context.Background(), "mtg bio", asha); err != nil {
		t.Fatal(err)
	}
	page := pageJSON(t, pub.pages[0])
	if !strings.Contains(page, "https://short.example/mtg_bio") || !strings.Contains(page, "https://short.example/mtg_bot") {
		t.Errorf("page = %s", page)
	}
}

func TestPaidSearchGate(t *testing.T) {
	ctx := context.Background()
	gate := &fakeGate{paid: map[string]bool{}, hasContact: true}
	pub := &fakePublisher{}
	// gated items only, a free match would unlock the page
	svc := newTestService(fakeCatalog{items: catalogItems()[:2]}, pub, gate)

	// unpaid: only checkout links, no page, no catalog link
	reply, err := svc.PaidSearch(ctx, "mtg biology objective", asha)
	if err != nil {
		t.Fatalf("PaidSearch() error = %v", err)
	}
	if !strings.Contains(reply.Text, `<a href="https://study.example.com/pay?key=mtg_bio&amp;user=7">pay ₹49 to unlock</a>`) {
		t.Errorf("locked reply = %q", reply.Text)
	}
	if strings.Contains(reply.Text, "short.example") || strings.Contains(reply.Text, "t.me") {
		t.Errorf("locked reply leaks a catalog link: %q", reply.Text)
	}
	if len(pub.pages) != 0 {
		t.Error("no page should be published while everything is locked")
	}
}

func TestPaidSearchAfterPayment(t *testing.T) {
	ctx := context.Background()
	gate := &fakeGate{paid: map[string]bool{"mtg_bio": true}, hasContact: true}
	pub := &fakePublisher{}
	svc := newTestService(fakeCatalog{items: catalogItems()}, pub, gate)

	reply, err := svc.PaidSearch(ctx, "mtg bio", asha)
	if err != nil {
		t.Fatalf("PaidSearch() error = %v", err)
	}
	if !strings.Contains(reply.Text, `<a href="https://telegra.ph/page-1">View materials</a>`) {
		t.Errorf("reply = %q", reply.Text)
	}

	page := pageJSON(t, pub.pages[0])
	if !strings.Contains(page, "https://short.example/mtg_bio") {
		t.Error("paid item should carry its link")
	}
	if strings.Contains(page, "https://short.example/mtg_bot") {
		t.Error("unpaid item must not carry its link")
	}
	if !strings.Contains(page, "pay?key=mtg_bot") {
		t.Error("unpaid item should carry a checkout link")
	}
	// free item is never gated
	if !strings.Contains(page, "https://short.example/hcv") {
		t.Error("free item should carry its link")
	}
}

func TestPaidSearchPreconditions(t *testing.T) {
	tests := []struct {
		name     string
		user     UserContext
		query    string
		gate     Gate
		wantText string
	}{
		{name: "group chat", user: UserContext{UserID: 7, ChatType: "group"}, query: "mtg", gate: &fakeGate{hasContact: true}, wantText: MsgPrivateOnly},
		{name: "empty query", user: asha, query: " ", gate: &fakeGate{hasContact: true}, wantText: MsgEmptyQuery},
		{name: "no contact", user: asha, query: "mtg", gate: &fakeGate{}, wantText: MsgContactRequired},
		{name: "payments off", user: asha, query: "mtg", gate: &fakeGate{disabled: true}, wantText: MsgPaymentsOff},
		{name: "no gate", user: asha, query: "mtg", gate: nil, wantText: MsgPaymentsOff},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pub := &fakePublisher{}
			svc := newTestService(fakeCatalog{items: catalogItems()}, pub, tt.gate)
			reply, _ := svc.PaidSearch(context.Background(), tt.query, tt.user)
			if reply.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", reply.Text, tt.wantText)
			}
			if len(pub.pages) != 0 {
				t.Error("no page should be published")
			}
		})
	}
}

func TestLockedTextCapsCheckoutLinks(t *testing.T) {
	items := make([]domain.CatalogItem, 5)
	for i := range items {
		items[i] = domain.CatalogItem{Category: "Biology", Label: fmt.Sprintf("Notes %d", i), Key: fmt.Sprintf("n%d", i), Price: 10}
	}
	gate := &fakeGate{paid: map[string]bool{}, hasContact: true}
	svc := newTestService(fakeCatalog{items: items}, &fakePublisher{}, gate)

	reply, err := svc.PaidSearch(context.Background(), "biology notes", asha)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(reply.Text, "/pay?"); got != MaxCheckoutLinks {
		t.Errorf("checkout links = %d, want %d\n%s", got, MaxCheckoutLinks, reply.Text)
	}
	if !strings.Contains(reply.Text, "…and 2 more") {
		t.Errorf("reply = %q", reply.Text)
	}
}

func TestSearchEscapesUserText(t *testing.T) {
	items := []domain.CatalogItem{
		{Category: "Biology", Label: "Bio* <Notes> mtg_bio", Key: "starred", Price: 49},
	}
	user := UserContext{UserID: 7, Mention: "A_<b>", ChatType: "private"}

	tests := []struct {
		name  string
		paid  bool
		query string
		want  string
	}{
		{
			name:  "asterisk and underscore",
			query: "bio* mtg_bio",
			want:  "🔍 A_&lt;b&gt;, found <b>1</b> matches for <b>bio* mtg_bio</b>:\n<a href=\"https://telegra.ph/page-1\">View materials</a>",
		},
		{
			name:  "markup in query",
			query: "<notes>",
			want:  "🔍 A_&lt;b&gt;, found <b>1</b> matches for <b>&lt;notes&gt;</b>:\n<a href=\"https://telegra.ph/page-1\">View materials</a>",
		},
		{
			name:  "locked reply",
			paid:  true,
			query: "bio*",
			want: "🔒 A_&lt;b&gt;, found <b>1</b> matches for <b>bio*</b>. Pay to unlock:\n" +
				`• Bio* &lt;Notes&gt; mtg_bio: <a href="https://study.example.com/pay?key=starred&amp;user=7">pay ₹49 to unlock</a>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(fakeCatalog{items: items}, &fakePublisher{}, &fakeGate{paid: map[string]bool{}, hasContact: true})

			search := svc.Search
			if tt.paid {
				search = svc.PaidSearch
			}
			reply, err := search(context.Background(), tt.query, user)
			if err != nil {
				t.Fatalf("search error = %v", err)
			}
			if reply.Text != tt.want {
				t.Errorf("Text = %q, want %q", reply.Text, tt.want)
			}
			if reply.ParseMode != ParseModeHTML {
				t.Errorf("ParseMode = %q", reply.ParseMode)
			}
		})
	}
}
