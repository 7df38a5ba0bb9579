// Package translate wraps the ftapi translation endpoint used by /translate.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MrSnakeDoc/studybot/internal/retry"
	"github.com/MrSnakeDoc/studybot/internal/utils"
	"github.com/MrSnakeDoc/studybot/internal/version"
)

const serviceName = "translate"

// DefaultTarget is used when the command names no language pair.
const DefaultTarget = "en"

// Usage is the reply for a /translate without text.
const Usage = "Usage:\n/translate <text>\n/translate <source>:<target> <text>\nYou can also reply to a message."

var pairRe = regexp.MustCompile(`(?is)^([a-z]{2}):([a-z]{2})\s+(.+)$`)

// Request is one translation. An empty Source lets the API detect it.
type Request struct {
	Source string
	Target string
	Text   string
}

// ParseArgs reads "sl:dl text" or plain text. ok is false when there is no text.
func ParseArgs(input string) (Request, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Request{}, false
	}
	if m := pairRe.FindStringSubmatch(input); m != nil {
		return Request{
			Source: strings.ToLower(m[1]),
			Target: strings.ToLower(m[2]),
			Text:   strings.TrimSpace(m[3]),
		}, true
	}
	return Request{Target: DefaultTarget, Text: input}, true
}

// Result is the subset of the API answer shown to users.
type Result struct {
	SourceLanguage      string `json:"source-language"`
	SourceText          string `json:"source-text"`
	DestinationLanguage string `json:"destination-language"`
	DestinationText     string `json:"destination-text"`
	Pronunciation       struct {
		DestinationAudio string `json:"destination-text-audio"`
	} `json:"pronunciation"`
	Translations struct {
		Possible []string `json:"possible-translations"`
	} `json:"translations"`
	Definitions []Definition `json:"definitions"`
}

// Definition is one dictionary sense of the translated text.
type Definition struct {
	PartOfSpeech string `json:"part-of-speech"`
	Definition   string `json:"definition"`
	Example      string `json:"example"`
}

// Client calls GET {endpoint}?sl=&dl=&text=.
type Client struct {
	http     *http.Client
	endpoint string
	policy   retry.Policy
}

// New creates a client. httpClient may be nil.
func New(httpClient *http.Client, endpoint string, policy retry.Policy) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{http: httpClient, endpoint: endpoint, policy: policy}
}

// Translate runs req.
func (c *Client) Translate(ctx context.Context, req Request) (Result, error) {
	q := url.Values{}
	if req.Source != "" {
		q.Set("sl", req.Source)
	}
	q.Set("dl", req.Target)
	q.Set("text", req.Text)
	endpoint := c.endpoint + "?" + q.Encode()

	var out Result
	err := retry.Do(ctx, c.policy, func(ctx context.Context) error {
		r, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return retry.Permanent(err)
		}
		r.Header.Set("User-Agent", version.UserAgent())

		resp, err := c.http.Do(r)
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
		return Result{}, err
	}
	return out, nil
}

// Format renders res as a legacy Markdown reply. Markdown cannot be escaped
// inside an entity, so text placed in one is stripped of its delimiter instead.
func Format(res Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*From* (%s): `%s`\n", escape(res.SourceLanguage), code(res.SourceText))
	fmt.Fprintf(&b, "*To* (%s): `%s`", escape(res.DestinationLanguage), code(res.DestinationText))

	if res.Pronunciation.DestinationAudio != "" {
		fmt.Fprintf(&b, "\n[Audio](%s)", res.Pronunciation.DestinationAudio)
	}
	if len(res.Translations.Possible) > 0 {
		b.WriteString("\n\n*Possible Translations:* " + escape(strings.Join(res.Translations.Possible, ", ")))
	}
	if len(res.Definitions) > 0 {
		b.WriteString("\n\n*Definitions:*")
		for _, d := range res.Definitions {
			fmt.Fprintf(&b, "\n_%s_: %s", strings.ReplaceAll(d.PartOfSpeech, "_", " "), escape(d.Definition))
			if d.Example != "" {
				fmt.Fprintf(&b, "\n→ _Example_: %s", escape(d.Example))
			}
		}
	}
	return b.String()
}

func escape(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func code(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "`", "'")
}
