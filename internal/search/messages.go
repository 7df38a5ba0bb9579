package search

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram parse modes. Search replies are HTML so user text can sit inside
// bold entities, legacy Markdown cannot escape within an entity.
const (
	ParseModeHTML     = tgbotapi.ModeHTML
	ParseModeMarkdown = tgbotapi.ModeMarkdown
)

// Fixed replies.
const (
	MsgEmptyQuery      = "❌ Please enter a search term."
	MsgGenericFailure  = "❌ Something went wrong. Please try again later."
	MsgPrivateOnly     = "❌ This command is only available in private chats."
	MsgContactRequired = "📋 Please provide your phone number and email to proceed with payments. Reply with: /setcontact <phone> <email>"
	MsgPaymentsOff     = "❌ Payments are not available right now. Please try again later."
	MsgRateLimited     = "⏳ Too many searches, please wait a moment."
)

// MaxCheckoutLinks bounds the checkout links listed in a locked reply.
const MaxCheckoutLinks = 3

// EscapeMarkdown escapes s for legacy Markdown. The result is only valid
// outside entities.
func EscapeMarkdown(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

// EscapeHTML escapes s for the HTML parse mode, in text and attributes.
func EscapeHTML(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeHTML, s)
}

func foundText(mention string, total int, short, url string) string {
	return fmt.Sprintf("🔍 %s, found <b>%d</b> matches for <b>%s</b>:\n<a href=\"%s\">View materials</a>",
		EscapeHTML(mention), total, EscapeHTML(short), EscapeHTML(url))
}

func noMatchText(mention, query string) string {
	return fmt.Sprintf("❌ %s, no materials found for %q.", mention, strings.TrimSpace(query))
}
