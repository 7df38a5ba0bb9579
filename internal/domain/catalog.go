package domain

import (
	"fmt"
	"strings"
)

// DeepLinkFormat opens the delivery bot with the item key as start parameter.
const DeepLinkFormat = "https://t.me/%s?start=%s"

// CatalogItem is one searchable study material.
//
// It is NOT tied to the YAML file or Redis. The material source maps its
// own structures into CatalogItem and the rest of the bot only sees this.
//
// A CatalogItem is uniquely identified by its Key and never mutated once loaded.
type CatalogItem struct {
	// ─────────────────────────────
	// Identity (immutable)
	// ─────────────────────────────

	// Key is the stable identifier passed as the bot start parameter.
	// Example: mtg_bio_obj
	Key string

	// DeepLink is derived from Key, see DeepLink().
	// Example: https://t.me/Material_eduhubkmrbot?start=mtg_bio_obj
	DeepLink string

	// ─────────────────────────────
	// Searchable description
	// ─────────────────────────────

	// Category groups items by subject.
	// Example: Biology
	Category string

	// Label is the human readable title.
	// Example: MTG Biology Objective NCERT
	Label string

	// ─────────────────────────────
	// Commerce
	// ─────────────────────────────

	// Price in INR. Zero means the item is free in paid mode too.
	Price int
}

// DeepLink builds the bot deep link for key. Pure function of its inputs.
func DeepLink(bot, key string) string {
	return fmt.Sprintf(DeepLinkFormat, strings.TrimPrefix(bot, "@"), key)
}

// Text is the lowercased haystack every query is scored against.
func (c CatalogItem) Text() string {
	return strings.ToLower(c.Category + " " + c.Label)
}

// Gated reports whether the item must be paid for in paid mode.
func (c CatalogItem) Gated() bool {
	return c.Price > 0
}

// ShortAlias is the alias requested from the link shortener for this item.
// Shorteners reject long aliases, so it is capped at MaxAliasLength.
func (c CatalogItem) ShortAlias() string {
	alias := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
			return r
		default:
			return -1
		}
	}, c.Key)
	if len(alias) > MaxAliasLength {
		alias = alias[:MaxAliasLength]
	}
	return alias
}

// MaxAliasLength is the longest alias the shortener accepts.
const MaxAliasLength = 30

// Link is a single entry of the static resources block on result pages.
type Link struct {
	Title string
	URL   string
	Note  string
}

// Resources is the instructional content appended to every result page.
type Resources struct {
	Guide  Link
	Links  []Link
	Footer string
}
