// Package search turns a user query into the reply the bot sends back.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/metrics"
	"github.com/MrSnakeDoc/studybot/internal/telegraph"
)

// Search modes, also used as metric labels.
const (
	ModeFree = "free"
	ModePaid = "paid"
)

var (
	// ErrEmptyQuery is returned with the prompt reply. It is not a failure.
	ErrEmptyQuery = errors.New("empty query")
	// ErrPrivateOnly is returned when a paid search runs outside a private chat.
	ErrPrivateOnly = errors.New("paid search outside private chat")
)

// Catalog provides the items to search.
type Catalog interface {
	Items(ctx context.Context) ([]domain.CatalogItem, error)
	Resources() domain.Resources
}

// LinkResolver shortens item links. It never fails.
type LinkResolver interface {
	ResolveAll(ctx context.Context, items []domain.CatalogItem) map[string]string
}

// Publisher publishes result pages.
type Publisher interface {
	Publish(ctx context.Context, title string, content []telegraph.Node) (string, error)
}

// Gate answers payment questions for the paid search.
type Gate interface {
	Enabled() bool
	Unlocked(ctx context.Context, userID int64, item domain.CatalogItem) (bool, error)
	HasContact(ctx context.Context, userID int64) (bool, error)
	CheckoutURL(userID int64, itemKey string) string
}

// UserContext identifies who searched and where.
type UserContext struct {
	UserID   int64
	Mention  string // display name used in replies
	ChatType string // private | group | supergroup | channel
}

// ReplyPayload is the message to send back.
type ReplyPayload struct {
	Text               string
	ParseMode          string
	DisableLinkPreview bool
}

// Options configures a Service. Gate may be nil when payments are off.
type Options struct {
	Catalog    Catalog
	Links      LinkResolver
	Publisher  Publisher
	Gate       Gate
	MinScore   float64
	MaxResults int
}

// Service runs searches. It holds no per-request state.
type Service struct {
	catalog    Catalog
	links      LinkResolver
	publisher  Publisher
	gate       Gate
	minScore   float64
	maxResults int
	log        logger.Logger
}

// NewService creates a search service.
func NewService(opts Options, log logger.Logger) *Service {
	if opts.MinScore <= 0 {
		opts.MinScore = domain.DefaultMinScore
	}
	return &Service{
		catalog:    opts.Catalog,
		links:      opts.Links,
		publisher:  opts.Publisher,
		gate:       opts.Gate,
		minScore:   opts.MinScore,
		maxResults: opts.MaxResults,
		log:        log,
	}
}

// Rank loads the catalog and ranks it against raw.
func (s *Service) Rank(ctx context.Context, raw string) (domain.SearchQuery, domain.Ranked, error) {
	q := domain.ParseQuery(raw)
	if q.IsEmpty() {
		return q, domain.Ranked{}, ErrEmptyQuery
	}
	items, err := s.catalog.Items(ctx)
	if err != nil {
		return q, domain.Ranked{}, err
	}
	return q, domain.Rank(q, items, s.minScore).Limit(s.maxResults), nil
}

// Search runs the free search. The payload is always set; the error is only
// for logging, ErrEmptyQuery included.
func (s *Service) Search(ctx context.Context, raw string, user UserContext) (ReplyPayload, error) {
	start := time.Now()
	reply, outcome, err := s.search(ctx, raw, user)
	metrics.RecordSearch(ModeFree, outcome, time.Since(start))
	return reply, err
}

func (s *Service) search(ctx context.Context, raw string, user UserContext) (ReplyPayload, string, error) {
	q, ranked, err := s.Rank(ctx, raw)
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return plain(MsgEmptyQuery), metrics.OutcomeEmpty, err
	case err != nil:
		s.log.Error("catalog unavailable", logger.String("query", raw), logger.Error(err))
		return plain(MsgGenericFailure), metrics.OutcomeError, err
	case ranked.Empty():
		return plain(noMatchText(user.Mention, raw)), metrics.OutcomeNoMatch, nil
	}

	items := itemsOf(ranked)
	links := s.links.ResolveAll(ctx, items)

	url, err := s.publisher.Publish(ctx, PageTitle(q), BuildPage(q, ranked, links, PageExtras{
		Resources: s.catalog.Resources(),
	}))
	if err != nil {
		s.log.Error("failed to publish result page",
			logger.String("service", "telegraph"),
			logger.String("query", raw),
			logger.Error(err))
		return plain(MsgGenericFailure), metrics.OutcomeError, err
	}

	return formatted(foundText(user.Mention, ranked.Total(), q.Short(3), url)), metrics.OutcomeOK, nil
}

// PaidSearch runs the payment-gated search: unlocked items get their link,
// locked ones a checkout link.
func (s *Service) PaidSearch(ctx context.Context, raw string, user UserContext) (ReplyPayload, error) {
	start := time.Now()
	reply, outcome, err := s.paidSearch(ctx, raw, user)
	metrics.RecordSearch(ModePaid, outcome, time.Since(start))
	return reply, err
}

func (s *Service) paidSearch(ctx context.Context, raw string, user UserContext) (ReplyPayload, string, error) {
	if user.ChatType != "" && user.ChatType != "private" {
		return plain(MsgPrivateOnly), metrics.OutcomeError, ErrPrivateOnly
	}
	if strings.TrimSpace(raw) == "" {
		return plain(MsgEmptyQuery), metrics.OutcomeEmpty, ErrEmptyQuery
	}
	if s.gate == nil || !s.gate.Enabled() {
		return plain(MsgPaymentsOff), metrics.OutcomeError, errors.New("payments disabled")
	}

	hasContact, err := s.gate.HasContact(ctx, user.UserID)
	if err != nil {
		s.log.Error("failed to read contact", logger.UserID(user.UserID), logger.Error(err))
		return plain(MsgGenericFailure), metrics.OutcomeError, err
	}
	if !hasContact {
		return plain(MsgContactRequired), metrics.OutcomeLocked, nil
	}

	q, ranked, err := s.Rank(ctx, raw)
	switch {
	case errors.Is(err, ErrEmptyQuery):
		return plain(MsgEmptyQuery), metrics.OutcomeEmpty, err
	case err != nil:
		s.log.Error("catalog unavailable", logger.String("query", raw), logger.Error(err))
		return plain(MsgGenericFailure), metrics.OutcomeError, err
	case ranked.Empty():
		return plain(noMatchText(user.Mention, raw)), metrics.OutcomeNoMatch, nil
	}

	locked := make(map[string]bool)
	var unlocked []domain.CatalogItem
	for _, it := range ranked.Flat() {
		ok, err := s.gate.Unlocked(ctx, user.UserID, it.Item)
		if err != nil {
			// fail closed, the user can still pay
			s.log.Warn("payment status unavailable",
				logger.String("service", "redis"),
				logger.String("key", it.Item.Key),
				logger.Error(err))
		}
		if ok {
			unlocked = append(unlocked, it.Item)
		} else {
			locked[it.Item.Key] = true
		}
	}

	if len(unlocked) == 0 {
		return formatted(s.lockedText(user, q, ranked)), metrics.OutcomeLocked, nil
	}

	links := s.links.ResolveAll(ctx, unlocked)
	for key := range locked {
		links[key] = s.gate.CheckoutURL(user.UserID, key)
	}

	url, err := s.publisher.Publish(ctx, PageTitle(q), BuildPage(q, ranked, links, PageExtras{
		Resources: s.catalog.Resources(),
		Locked:    locked,
	}))
	if err != nil {
		s.log.Error("failed to publish result page",
			logger.String("service", "telegraph"),
			logger.String("query", raw),
			logger.Error(err))
		return plain(MsgGenericFailure), metrics.OutcomeError, err
	}

	return formatted(foundText(user.Mention, ranked.Total(), q.Short(3), url)), metrics.OutcomeOK, nil
}

// lockedText lists up to MaxCheckoutLinks checkout links and never a catalog link.
func (s *Service) lockedText(user UserContext, q domain.SearchQuery, ranked domain.Ranked) string {
	flat := ranked.Flat()

	var b strings.Builder
	fmt.Fprintf(&b, "🔒 %s, found <b>%d</b> matches for <b>%s</b>. Pay to unlock:\n",
		EscapeHTML(user.Mention), len(flat), EscapeHTML(q.Short(3)))
	for i, it := range flat {
		if i == MaxCheckoutLinks {
			fmt.Fprintf(&b, "…and %d more", len(flat)-MaxCheckoutLinks)
			break
		}
		fmt.Fprintf(&b, "• %s: <a href=\"%s\">pay ₹%d to unlock</a>\n",
			EscapeHTML(it.Item.Label), EscapeHTML(s.gate.CheckoutURL(user.UserID, it.Item.Key)), it.Item.Price)
	}
	return strings.TrimRight(b.String(), "\n")
}

func itemsOf(ranked domain.Ranked) []domain.CatalogItem {
	flat := ranked.Flat()
	out := make([]domain.CatalogItem, len(flat))
	for i, it := range flat {
		out[i] = it.Item
	}
	return out
}

func plain(text string) ReplyPayload {
	return ReplyPayload{Text: text, DisableLinkPreview: true}
}

func formatted(text string) ReplyPayload {
	return ReplyPayload{Text: text, ParseMode: ParseModeHTML, DisableLinkPreview: true}
}
