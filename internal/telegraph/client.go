// Package telegraph publishes result pages on telegra.ph.
package telegraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrSnakeDoc/studybot/internal/retry"
	"github.com/MrSnakeDoc/studybot/internal/utils"
	"github.com/MrSnakeDoc/studybot/internal/version"
)

const (
	serviceName = "telegraph"
	// PageBaseURL prefixes page paths returned by createPage.
	PageBaseURL = "https://telegra.ph/"
	// ShortName identifies the account created by the bot.
	ShortName = "studybot"
)

// ErrPageCreationFailed wraps every failure to publish a page.
var ErrPageCreationFailed = errors.New("page creation failed")

// PageError carries the step that failed. errors.Is(err, ErrPageCreationFailed) holds.
type PageError struct {
	Op  string // "createAccount" | "createPage"
	Err error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("telegraph %s: %v", e.Op, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }

func (e *PageError) Is(target error) bool { return target == ErrPageCreationFailed }

// Client is a minimal api.telegra.ph client.
type Client struct {
	http    *http.Client
	baseURL string
	policy  retry.Policy
}

// NewClient creates a client. httpClient may be nil.
func NewClient(httpClient *http.Client, baseURL string, policy retry.Policy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		policy:  policy,
	}
}

type envelope struct {
	OK     bool            `json:"ok"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
}

// CreateAccount returns the access token of a new account.
func (c *Client) CreateAccount(ctx context.Context, shortName, author string) (string, error) {
	form := url.Values{}
	form.Set("short_name", shortName)
	form.Set("author_name", author)

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.post(ctx, "createAccount", form, &out); err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", errors.New("empty access token")
	}
	return out.AccessToken, nil
}

// CreatePage publishes content and returns the page URL.
func (c *Client) CreatePage(ctx context.Context, token, title, author string, content []Node) (string, error) {
	body, err := json.Marshal(content)
	if err != nil {
		return "", fmt.Errorf("encode content: %w", err)
	}

	form := url.Values{}
	form.Set("access_token", token)
	form.Set("title", title)
	form.Set("author_name", author)
	form.Set("content", string(body))
	form.Set("return_content", "false")

	var out struct {
		Path string `json:"path"`
		URL  string `json:"url"`
	}
	if err := c.post(ctx, "createPage", form, &out); err != nil {
		return "", err
	}
	if out.URL != "" {
		return out.URL, nil
	}
	if out.Path == "" {
		return "", errors.New("empty page path")
	}
	return PageBaseURL + out.Path, nil
}

func (c *Client) post(ctx context.Context, method string, form url.Values, result any) error {
	return retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, strings.NewReader(form.Encode()))
		if err != nil {
			return retry.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s request: %w", method, err)
		}
		defer utils.Close(resp.Body)

		raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%s read body: %w", method, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &retry.StatusError{Service: serviceName, Code: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return retry.Permanent(fmt.Errorf("%s decode: %w", method, err))
		}
		if !env.OK {
			// FLOOD_WAIT and friends are reported with ok=false and a 200
			return retry.Permanent(fmt.Errorf("%s: %s", method, env.Error))
		}
		if err := json.Unmarshal(env.Result, result); err != nil {
			return retry.Permanent(fmt.Errorf("%s decode result: %w", method, err))
		}
		return nil
	})
}
