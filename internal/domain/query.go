package domain

import (
	"strings"
)

// SearchQuery represents a parsed user input
type SearchQuery struct {
	Raw        string   // Original input, untouched
	Normalized string   // Trimmed and lowercased
	Tokens     []string // Whitespace separated, empty tokens removed
}

// ParseQuery parses user input into a structured query
// Examples:
//   - "MTG  Bio" -> normalized "mtg  bio", tokens ["mtg", "bio"]
//   - "   "      -> empty query, no tokens
func ParseQuery(input string) SearchQuery {
	normalized := strings.ToLower(strings.TrimSpace(input))
	return SearchQuery{
		Raw:        input,
		Normalized: normalized,
		Tokens:     strings.Fields(normalized),
	}
}

// IsEmpty reports whether the query carries no searchable token.
func (q SearchQuery) IsEmpty() bool {
	return len(q.Tokens) == 0
}

// Short returns the first n tokens joined by spaces, for reply summaries.
func (q SearchQuery) Short(n int) string {
	if len(q.Tokens) <= n {
		return strings.Join(q.Tokens, " ")
	}
	return strings.Join(q.Tokens[:n], " ")
}

// StripMention removes every "@bot" mention (case-insensitive) from text.
// Used for group messages addressed to the bot.
func StripMention(text, bot string) string {
	bot = strings.TrimPrefix(bot, "@")
	if bot == "" {
		return strings.TrimSpace(text)
	}
	mention := "@" + strings.ToLower(bot)
	fields := strings.Fields(text)
	kept := fields[:0]
	for _, f := range fields {
		if strings.ToLower(f) == mention {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// Mentions reports whether text contains an "@bot" mention.
func Mentions(text, bot string) bool {
	bot = strings.TrimPrefix(bot, "@")
	if bot == "" {
		return false
	}
	mention := "@" + strings.ToLower(bot)
	for _, f := range strings.Fields(text) {
		if strings.ToLower(f) == mention {
			return true
		}
	}
	return false
}
