package telegraph

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/MrSnakeDoc/studybot/internal/logger"
)

type fakeAPI struct {
	mu          sync.Mutex
	accountErrs []error // consumed in order, nil = success
	pageErr     error
	accounts    int
	pages       int
	lastTitle   string
}

func (f *fakeAPI) CreateAccount(context.Context, string, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts++
	if len(f.accountErrs) > 0 {
		err := f.accountErrs[0]
		f.accountErrs = f.accountErrs[1:]
		if err != nil {
			return "", err
		}
	}
	return "tok", nil
}

func (f *fakeAPI) CreatePage(_ context.Context, token, title, _ string, _ []Node) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages++
	f.lastTitle = title
	if f.pageErr != nil {
		return "", f.pageErr
	}
	return "https://telegra.ph/page-" + token, nil
}

func TestPublisherCachesTokenOnSuccess(t *testing.T) {
	api := &fakeAPI{}
	p := NewPublisher(api, "Study Bot", "", logger.New("error", false))

	for range 3 {
		url, err := p.Publish(context.Background(), "t", nil)
		if err != nil || url != "https://telegra.ph/page-tok" {
			t.Fatalf("Publish() = %q, %v", url, err)
		}
	}
	if api.accounts != 1 {
		t.Errorf("accounts created = %d, want 1", api.accounts)
	}
}

func TestPublisherRetriesAccountAfterFailure(t *testing.T) {
	api := &fakeAPI{accountErrs: []error{errors.New("flood")}}
	p := NewPublisher(api, "Study Bot", "", logger.New("error", false))

	_, err := p.Publish(context.Background(), "t", nil)
	if !errors.Is(err, ErrPageCreationFailed) {
		t.Fatalf("Publish() error = %v, want ErrPageCreationFailed", err)
	}
	var pe *PageError
	if !errors.As(err, &pe) || pe.Op != "createAccount" {
		t.Errorf("error = %#v, want createAccount PageError", err)
	}
	if p.HasToken() {
		t.Fatal("failed createAccount must not cache a token")
	}

	if _, err := p.Publish(context.Background(), "t", nil); err != nil {
		t.Fatalf("second Publish() error = %v", err)
	}
	if api.accounts != 2 || !p.HasToken() {
		t.Errorf("accounts = %d, token cached = %v", api.accounts, p.HasToken())
	}
}

func TestPublisherPageFailure(t *testing.T) {
	api := &fakeAPI{pageErr: errors.New("CONTENT_TOO_BIG")}
	p := NewPublisher(api, "Study Bot", "preset", logger.New("error", false))

	_, err := p.Publish(context.Background(), "t", nil)
	var pe *PageError
	if !errors.As(err, &pe) || pe.Op != "createPage" || !errors.Is(err, ErrPageCreationFailed) {
		t.Errorf("Publish() error = %v", err)
	}
	if api.accounts != 0 {
		t.Error("preset token should skip createAccount")
	}
}

func TestPublisherTruncatesTitle(t *testing.T) {
	api := &fakeAPI{}
	p := NewPublisher(api, "Study Bot", "preset", logger.New("error", false))

	if _, err := p.Publish(context.Background(), strings.Repeat("é", MaxTitleRunes+10), nil); err != nil {
		t.Fatal(err)
	}
	if got := len([]rune(api.lastTitle)); got != MaxTitleRunes {
		t.Errorf("title runes = %d, want %d", got, MaxTitleRunes)
	}
}
