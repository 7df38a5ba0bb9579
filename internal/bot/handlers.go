package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MrSnakeDoc/studybot/internal/domain"
	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/metrics"
	"github.com/MrSnakeDoc/studybot/internal/search"
	redisstore "github.com/MrSnakeDoc/studybot/internal/store/redis"
)

var ist = time.FixedZone("IST", 5*3600+30*60)

// HandleUpdate processes one update. Panics are recovered and logged.
func (b *Bot) HandleUpdate(ctx context.Context, u tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("panic while handling update",
				logger.Int("update_id", u.UpdateID),
				logger.Any("panic", r))
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		metrics.RecordUpdate("callback")
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	default:
		metrics.RecordUpdate("other")
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.Chat == nil {
		return
	}

	if len(msg.NewChatMembers) > 0 {
		metrics.RecordUpdate("new_members")
		b.remember(ctx, msg, "interacted")
		b.welcome(msg)
		return
	}

	if msg.IsCommand() {
		metrics.RecordUpdate("command")
		b.handleCommand(ctx, msg)
		return
	}

	metrics.RecordUpdate("message")
	b.remember(ctx, msg, "interacted")

	private := msg.Chat.IsPrivate()
	if private {
		b.logMessage(ctx, msg, logText(msg))
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		if private {
			b.forwardToAdmin(msg)
		}
		return
	}

	switch {
	case private && isGreeting(text):
		b.sendGreeting(msg)
	case private:
		b.runSearch(ctx, msg, text, b.opts.DefaultMode)
	case (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) && domain.Mentions(text, b.opts.Username):
		b.runSearch(ctx, msg, domain.StripMention(text, b.opts.Username), search.ModeFree)
	}
}

// runSearch applies the per-user rate limit then runs the search in mode.
func (b *Bot) runSearch(ctx context.Context, msg *tgbotapi.Message, query, mode string) {
	user := userContext(msg)

	if d := b.limiter.Allow(fmt.Sprint(user.UserID), time.Now()); !d.OK {
		metrics.RecordSearch(mode, metrics.OutcomeLimited, 0)
		b.reply(msg, search.ReplyPayload{Text: search.MsgRateLimited})
		return
	}

	var (
		payload search.ReplyPayload
		err     error
	)
	if mode == search.ModePaid {
		payload, err = b.opts.Search.PaidSearch(ctx, query, user)
	} else {
		payload, err = b.opts.Search.Search(ctx, query, user)
	}
	if err != nil && !errors.Is(err, search.ErrEmptyQuery) {
		b.log.Debug("search finished with error",
			logger.String("mode", mode),
			logger.String("query", query),
			logger.Error(err))
	}
	b.reply(msg, payload)
}

// remember saves the chat and tells the admin about first contacts.
func (b *Bot) remember(ctx context.Context, msg *tgbotapi.Message, verb string) {
	chat := redisstore.Chat{
		ID:    msg.Chat.ID,
		Type:  msg.Chat.Type,
		Title: msg.Chat.Title,
	}
	if msg.From != nil {
		chat.Username = msg.From.UserName
		chat.FirstName = msg.From.FirstName
	}

	known, err := b.opts.Store.SaveChat(ctx, chat)
	if err != nil {
		b.log.Warn("failed to save chat", logger.ChatID(chat.ID), logger.Error(err))
		return
	}
	if known || chat.ID == b.opts.AdminID {
		return
	}

	name := chat.FirstName
	if name == "" {
		name = msg.Chat.Title
	}
	if name == "" {
		name = "Unknown"
	}
	username := "N/A"
	switch {
	case chat.Username != "":
		username = "@" + chat.Username
	case msg.Chat.UserName != "":
		username = "@" + msg.Chat.UserName
	}

	text := fmt.Sprintf("*New %s %s!*\n\n*Name:* %s\n*Username:* %s\n*Chat ID:* %d\n*Type:* %s",
		capitalize(msg.Chat.Type), verb,
		search.EscapeMarkdown(name), search.EscapeMarkdown(username), chat.ID, msg.Chat.Type)
	b.sendMarkdown(b.opts.AdminID, text)
}

func (b *Bot) logMessage(ctx context.Context, msg *tgbotapi.Message, text string) {
	entry := redisstore.LogEntry{
		ChatID:    msg.Chat.ID,
		Message:   text,
		Timestamp: msg.Time().UTC(),
	}
	if msg.From != nil {
		entry.UserID = msg.From.ID
		entry.Username = msg.From.UserName
		entry.FirstName = msg.From.FirstName
	}
	if msg.Date == 0 {
		entry.Timestamp = time.Now().UTC()
	}
	if err := b.opts.Store.AppendLog(ctx, entry); err != nil {
		b.log.Warn("failed to append chat log", logger.ChatID(msg.Chat.ID), logger.Error(err))
	}
}

func (b *Bot) forwardToAdmin(msg *tgbotapi.Message) {
	if msg.Chat.ID == b.opts.AdminID {
		return
	}
	name, username := "Unknown", "N/A"
	if msg.From != nil {
		if msg.From.FirstName != "" {
			name = msg.From.FirstName
		}
		if msg.From.UserName != "" {
			username = "@" + msg.From.UserName
		}
	}
	header := fmt.Sprintf("*Non-text message received!*\n\n*Name:* %s\n*Username:* %s\n*Chat ID:* %d\n*Time:* %s\n",
		search.EscapeMarkdown(name), search.EscapeMarkdown(username), msg.Chat.ID,
		time.Now().In(ist).Format("02/01/2006, 15:04:05"))

	b.sendMarkdown(b.opts.AdminID, header)
	if _, err := b.api.Send(tgbotapi.NewForward(b.opts.AdminID, msg.Chat.ID, msg.MessageID)); err != nil {
		b.log.Warn("failed to forward message", logger.ChatID(msg.Chat.ID), logger.Error(err))
	}
}

func (b *Bot) sendGreeting(msg *tgbotapi.Message) {
	out := tgbotapi.NewMessage(msg.Chat.ID, greetingText(search.EscapeMarkdown(displayName(msg.From))))
	out.ParseMode = tgbotapi.ModeMarkdown
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL("Add me to your group", fmt.Sprintf("https://t.me/%s?startgroup=true", b.opts.Username)),
	))
	b.send(out)
}

func (b *Bot) welcome(msg *tgbotapi.Message) {
	for _, m := range msg.NewChatMembers {
		self := strings.EqualFold(m.UserName, b.opts.Username)
		name := m.FirstName
		if name == "" {
			name = "there"
		}
		b.sendMarkdown(msg.Chat.ID, welcomeText(search.EscapeMarkdown(name), search.EscapeMarkdown(b.opts.Username), self))
	}
}

// NotifyUnlocked tells userID that item was paid for and sends its link.
func (b *Bot) NotifyUnlocked(ctx context.Context, userID int64, item domain.CatalogItem) error {
	link := domain.DeepLink(b.opts.Username, item.Key)
	if b.opts.Links != nil {
		link = b.opts.Links.Resolve(ctx, item)
	}
	out := tgbotapi.NewMessage(userID, fmt.Sprintf("✅ Payment successful for %q! Access it here: %s", item.Label, link))
	out.DisableWebPagePreview = true
	_, err := b.api.Send(out)
	return err
}

// ─────────────────────────────────────────────────────────────────
// Send helpers
// ─────────────────────────────────────────────────────────────────

func (b *Bot) reply(msg *tgbotapi.Message, p search.ReplyPayload) {
	out := tgbotapi.NewMessage(msg.Chat.ID, p.Text)
	out.ParseMode = p.ParseMode
	out.DisableWebPagePreview = p.DisableLinkPreview
	out.ReplyToMessageID = msg.MessageID
	b.send(out)
}

func (b *Bot) replyText(msg *tgbotapi.Message, text string) {
	b.reply(msg, search.ReplyPayload{Text: text})
}

func (b *Bot) sendMarkdown(chatID int64, text string) {
	out := tgbotapi.NewMessage(chatID, text)
	out.ParseMode = tgbotapi.ModeMarkdown
	b.send(out)
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Warn("failed to send message", logger.String("service", "telegram"), logger.Error(err))
	}
}

// ─────────────────────────────────────────────────────────────────
// Message helpers
// ─────────────────────────────────────────────────────────────────

func userContext(msg *tgbotapi.Message) search.UserContext {
	uc := search.UserContext{
		Mention:  displayName(msg.From),
		ChatType: msg.Chat.Type,
	}
	// groups address the user by handle so the reply notifies them
	if (msg.Chat.IsGroup() || msg.Chat.IsSuperGroup()) && msg.From != nil && msg.From.UserName != "" {
		uc.Mention = "@" + msg.From.UserName
	}
	if msg.From != nil {
		uc.UserID = msg.From.ID
	} else {
		uc.UserID = msg.Chat.ID
	}
	return uc
}

func displayName(u *tgbotapi.User) string {
	switch {
	case u == nil:
		return "there"
	case u.FirstName != "":
		return u.FirstName
	case u.UserName != "":
		return "@" + u.UserName
	default:
		return "there"
	}
}

func logText(msg *tgbotapi.Message) string {
	switch {
	case msg.Text != "":
		return msg.Text
	case msg.MediaGroupID != "":
		return "[Media Group message]"
	case len(msg.Photo) > 0:
		return "[Photo message]"
	case msg.Document != nil:
		return "[Document message]"
	case msg.Video != nil:
		return "[Video message]"
	default:
		return "[Non-text message]"
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
