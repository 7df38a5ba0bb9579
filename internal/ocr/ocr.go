// Package ocr extracts text from images for /ocr.
package ocr

import (
	"context"
	"encoding/base64"
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

const serviceName = "ocr"

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("ocr disabled")

// Extractor returns the text found in an image.
type Extractor interface {
	Extract(ctx context.Context, image []byte, mime string) (string, error)
}

// Client is an OCR.space client. Images are uploaded inline so the Telegram
// file URL, which embeds the bot token, never leaves the process.
type Client struct {
	http     *http.Client
	endpoint string
	apiKey   string
	language string
	policy   retry.Policy
}

// New creates a client. httpClient may be nil.
func New(httpClient *http.Client, endpoint, apiKey string, policy retry.Policy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		http:     httpClient,
		endpoint: endpoint,
		apiKey:   apiKey,
		language: "eng",
		policy:   policy,
	}
}

type response struct {
	ParsedResults []struct {
		ParsedText string `json:"ParsedText"`
	} `json:"ParsedResults"`
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`
	ErrorMessage          any  `json:"ErrorMessage"`
}

// Extract implements Extractor.
func (c *Client) Extract(ctx context.Context, image []byte, mime string) (string, error) {
	if c.apiKey == "" {
		return "", ErrDisabled
	}
	if mime == "" {
		mime = "image/jpeg"
	}

	form := url.Values{}
	form.Set("language", c.language)
	form.Set("base64Image", "data:"+mime+";base64,"+base64.StdEncoding.EncodeToString(image))
	payload := form.Encode()

	var out response
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(payload))
		if err != nil {
			return retry.Permanent(err)
		}
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("User-Agent", version.UserAgent())

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("%s request: %w", serviceName, err)
		}
		defer utils.Close(resp.Body)

		body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("%s read body: %w", serviceName, err)
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return &retry.StatusError{Service: serviceName, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		}
		if err := json.Unmarshal(body, &out); err != nil {
			return retry.Permanent(fmt.Errorf("%s decode: %w", serviceName, err))
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if out.IsErroredOnProcessing {
		return "", fmt.Errorf("%s: %v", serviceName, out.ErrorMessage)
	}

	parts := make([]string, 0, len(out.ParsedResults))
	for _, r := range out.ParsedResults {
		if t := strings.TrimSpace(r.ParsedText); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n"), nil
}
