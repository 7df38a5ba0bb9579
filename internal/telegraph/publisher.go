package telegraph

import (
	"context"
	"sync"
	"unicode/utf8"

	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/metrics"
)

// MaxTitleRunes bounds page titles.
const MaxTitleRunes = 256

// API is the subset of the Telegraph API the publisher needs.
type API interface {
	CreateAccount(ctx context.Context, shortName, author string) (string, error)
	CreatePage(ctx context.Context, token, title, author string, content []Node) (string, error)
}

// Publisher owns the account token. The token is cached only after a
// successful createAccount; a failed attempt leaves nothing behind.
type Publisher struct {
	api    API
	author string
	log    logger.Logger

	mu    sync.Mutex
	token string
}

// NewPublisher creates a publisher. A non-empty token skips account creation.
func NewPublisher(api API, author, token string, log logger.Logger) *Publisher {
	return &Publisher{api: api, author: author, token: token, log: log}
}

// Publish creates a page and returns its URL. Every failure is a *PageError.
func (p *Publisher) Publish(ctx context.Context, title string, content []Node) (string, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		metrics.RecordExternal("telegraph", metrics.OutcomeError)
		return "", &PageError{Op: "createAccount", Err: err}
	}

	url, err := p.api.CreatePage(ctx, token, truncate(title, MaxTitleRunes), p.author, content)
	if err != nil {
		metrics.RecordExternal("telegraph", metrics.OutcomeError)
		return "", &PageError{Op: "createPage", Err: err}
	}
	metrics.RecordExternal("telegraph", metrics.OutcomeOK)
	return url, nil
}

// HasToken reports whether a token is cached.
func (p *Publisher) HasToken() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.token != ""
}

func (p *Publisher) accessToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" {
		return p.token, nil
	}

	token, err := p.api.CreateAccount(ctx, ShortName, p.author)
	if err != nil {
		return "", err
	}
	p.log.Info("telegraph account created", logger.String("short_name", ShortName))
	p.token = token
	return token, nil
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
