// Package shortener talks to an adrinolinks-style URL shortening API.
package shortener

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

const serviceName = "shortener"

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("shortener disabled")

// Shortener turns a long URL into a short one under alias.
type Shortener interface {
	Shorten(ctx context.Context, longURL, alias string) (string, error)
}

// Client calls GET {baseURL}?api=KEY&url=LONG&alias=ALIAS.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	policy  retry.Policy
}

// New creates a client. httpClient may be nil.
func New(httpClient *http.Client, baseURL, apiKey string, policy retry.Policy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		http:    httpClient,
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		policy:  policy,
	}
}

type response struct {
	Status       string `json:"status"`
	ShortenedURL string `json:"shortenedUrl"`
	Message      any    `json:"message,omitempty"`
}

// Shorten implements Shortener.
func (c *Client) Shorten(ctx context.Context, longURL, alias string) (string, error) {
	if c.apiKey == "" {
		return "", ErrDisabled
	}

	q := url.Values{}
	q.Set("api", c.apiKey)
	q.Set("url", longURL)
	if alias != "" {
		q.Set("alias", alias)
	}
	endpoint := c.baseURL + "?" + q.Encode()

	var short string
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		s, err := c.call(ctx, endpoint)
		if err != nil {
			return err
		}
		short = s
		return nil
	})
	if err != nil {
		return "", err
	}
	return short, nil
}

func (c *Client) call(ctx context.Context, endpoint string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", version.UserAgent())
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s request: %w", serviceName, err)
	}
	defer utils.Close(resp.Body)

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("%s read body: %w", serviceName, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", &retry.StatusError{Service: serviceName, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out response
	if err := json.Unmarshal(body, &out); err != nil {
		return "", retry.Permanent(fmt.Errorf("%s decode: %w", serviceName, err))
	}
	if out.Status != "success" || out.ShortenedURL == "" {
		return "", retry.Permanent(fmt.Errorf("%s rejected request: status=%q message=%v", serviceName, out.Status, out.Message))
	}
	return out.ShortenedURL, nil
}
