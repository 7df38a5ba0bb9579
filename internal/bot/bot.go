// Package bot adapts Telegram updates to the search, payment and admin
// features. It is the only package that knows about the Bot API.
package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/panjf2000/ants/v2"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/ocr"
	"github.com/MrSnakeDoc/studybot/internal/ratelimit"
	"github.com/MrSnakeDoc/studybot/internal/search"
	redisstore "github.com/MrSnakeDoc/studybot/internal/store/redis"
	"github.com/MrSnakeDoc/studybot/internal/translate"
)

// Sender is the subset of *tgbotapi.BotAPI the handlers use.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Store persists chats, contacts and the chat log.
type Store interface {
	SaveChat(ctx context.Context, chat redisstore.Chat) (bool, error)
	ChatIDs(ctx context.Context) ([]int64, error)
	CountChats(ctx context.Context) (int64, error)
	SetContact(ctx context.Context, userID int64, phone, email string) error
	AppendLog(ctx context.Context, entry redisstore.LogEntry) error
	LogsByDate(ctx context.Context, day time.Time) ([]redisstore.LogEntry, error)
}

// Searcher runs free and paid searches.
type Searcher interface {
	Search(ctx context.Context, raw string, user search.UserContext) (search.ReplyPayload, error)
	PaidSearch(ctx context.Context, raw string, user search.UserContext) (search.ReplyPayload, error)
}

// Translator backs /translate.
type Translator interface {
	Translate(ctx context.Context, req translate.Request) (translate.Result, error)
}

// Reloader reloads the catalog on /reload and returns the new item count.
type Reloader interface {
	ReloadNow(ctx context.Context) (int, error)
}

// LinkResolver returns the link sent after a payment.
type LinkResolver interface {
	Resolve(ctx context.Context, item domain.CatalogItem) string
}

// Options configures a Bot. Optional collaborators may be nil.
type Options struct {
	Username         string
	AdminID          int64
	DefaultMode      string // search.ModeFree | search.ModePaid
	Workers          int
	BroadcastWorkers int
	SearchBurst      int
	SearchPerMinute  int
	HandleTimeout    time.Duration

	Store      Store
	Search     Searcher
	Translator Translator
	OCR        ocr.Extractor
	Reloader   Reloader
	Links      LinkResolver
	HTTPClient *http.Client // downloads photos for /ocr
}

// Bot dispatches updates to a bounded worker pool.
type Bot struct {
	api     Sender
	opts    Options
	pool    *ants.Pool
	limiter *ratelimit.Limiter
	log     logger.Logger
	ctx     context.Context // base context for handlers, cancelled by Close
	cancel  context.CancelFunc
}

// New creates a bot.
func New(api Sender, opts Options, log logger.Logger) (*Bot, error) {
	if opts.Workers < 1 {
		opts.Workers = 16
	}
	if opts.BroadcastWorkers < 1 {
		opts.BroadcastWorkers = 4
	}
	if opts.SearchBurst < 1 {
		opts.SearchBurst = 5
	}
	if opts.SearchPerMinute < 1 {
		opts.SearchPerMinute = 20
	}
	if opts.HandleTimeout <= 0 {
		opts.HandleTimeout = 60 * time.Second
	}
	if opts.DefaultMode == "" {
		opts.DefaultMode = search.ModeFree
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}

	pool, err := ants.NewPool(opts.Workers, ants.WithPanicHandler(func(r any) {
		log.Error("panic in update worker",
			logger.Any("panic", r),
			logger.String("stack", string(debug.Stack())))
	}))
	if err != nil {
		return nil, fmt.Errorf("create update pool: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bot{
		api:  api,
		opts: opts,
		pool: pool,
		limiter: ratelimit.New(ratelimit.Config{
			Burst:        opts.SearchBurst,
			RefillPerMin: opts.SearchPerMinute,
			MaxEntries:   100_000,
		}),
		log:    log.With(logger.String("component", "bot")),
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Username returns the bot username without "@".
func (b *Bot) Username() string {
	return b.opts.Username
}

// Dispatch hands update to the worker pool. It blocks while the pool is full.
func (b *Bot) Dispatch(update tgbotapi.Update) {
	err := b.pool.Submit(func() {
		ctx, cancel := context.WithTimeout(b.ctx, b.opts.HandleTimeout)
		defer cancel()
		b.HandleUpdate(ctx, update)
	})
	if err != nil {
		b.log.Warn("dropping update", logger.Int("update_id", update.UpdateID), logger.Error(err))
	}
}

// Run dispatches updates until ctx is done or the channel closes.
func (b *Bot) Run(ctx context.Context, updates <-chan tgbotapi.Update) error {
	b.log.Info("bot started", logger.String("username", b.opts.Username))
	for {
		select {
		case <-ctx.Done():
			return nil
		case u, ok := <-updates:
			if !ok {
				return errors.New("updates channel closed")
			}
			b.Dispatch(u)
		}
	}
}

// WebhookHandler accepts updates pushed by Telegram.
func (b *Bot) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var u tgbotapi.Update
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&u); err != nil {
			http.Error(w, "bad update", http.StatusBadRequest)
			return
		}
		b.Dispatch(u)
		w.WriteHeader(http.StatusOK)
	})
}

// Close waits up to timeout for running handlers, then cancels them.
func (b *Bot) Close(timeout time.Duration) error {
	err := b.pool.ReleaseTimeout(timeout)
	b.cancel()
	return err
}
