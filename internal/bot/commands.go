package bot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/MrSnakeDoc/studybot/internal/logger"
	"github.com/MrSnakeDoc/studybot/internal/ocr"
	"github.com/MrSnakeDoc/studybot/internal/search"
	"github.com/MrSnakeDoc/studybot/internal/translate"
	"github.com/MrSnakeDoc/studybot/internal/utils"
	"github.com/MrSnakeDoc/studybot/internal/version"
)

// maxPhotoBytes caps what /ocr downloads from Telegram.
const maxPhotoBytes = 10 << 20

var (
	phoneRe = regexp.MustCompile(`^\+?[1-9]\d{1,14}$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	// "/study@otherbot" is addressed to someone else
	if at := msg.CommandWithAt(); strings.Contains(at, "@") &&
		!strings.EqualFold(strings.SplitN(at, "@", 2)[1], b.opts.Username) {
		return
	}

	switch msg.Command() {
	case "start":
		b.cmdStart(ctx, msg)
	case "about":
		b.cmdAbout(msg)
	case "add":
		b.cmdAdd(msg)
	case "study":
		b.remember(ctx, msg, "interacted")
		b.runSearch(ctx, msg, msg.CommandArguments(), search.ModeFree)
	case "cashstudy":
		b.remember(ctx, msg, "interacted")
		b.runSearch(ctx, msg, msg.CommandArguments(), search.ModePaid)
	case "setcontact":
		b.cmdSetContact(ctx, msg)
	case "translate":
		b.cmdTranslate(ctx, msg)
	case "ocr":
		b.cmdOCR(ctx, msg)
	case "users", "logs", "broadcast", "reload":
		b.handleAdminCommand(ctx, msg)
	default:
		if msg.Chat.IsPrivate() {
			b.logMessage(ctx, msg, msg.Text)
		}
	}
}

func (b *Bot) cmdStart(ctx context.Context, msg *tgbotapi.Message) {
	b.remember(ctx, msg, "started")
	if !msg.Chat.IsPrivate() {
		b.sendMarkdown(msg.Chat.ID, welcomeText("", search.EscapeMarkdown(b.opts.Username), true))
		return
	}
	b.logMessage(ctx, msg, msg.Text)
	b.sendGreeting(msg)
}

func (b *Bot) cmdAbout(msg *tgbotapi.Message) {
	if !msg.Chat.IsPrivate() {
		b.replyText(msg, search.MsgPrivateOnly)
		return
	}
	text := aboutText(search.EscapeMarkdown(b.opts.Username)) + "\n\n_version " + version.Version + "_"
	b.sendMarkdown(msg.Chat.ID, text)
}

func (b *Bot) cmdAdd(msg *tgbotapi.Message) {
	if !msg.Chat.IsPrivate() {
		b.replyText(msg, search.MsgPrivateOnly)
		return
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, "Add me to your study group and mention me to search materials together.")
	out.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonURL("Add me to your group", fmt.Sprintf("https://t.me/%s?startgroup=true", b.opts.Username)),
		tgbotapi.NewInlineKeyboardButtonURL("Share", fmt.Sprintf("https://t.me/share/url?url=https://t.me/%s", b.opts.Username)),
	))
	b.send(out)
}

func (b *Bot) cmdSetContact(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.Chat.IsPrivate() {
		b.replyText(msg, search.MsgPrivateOnly)
		return
	}
	args := strings.Fields(msg.CommandArguments())
	if len(args) != 2 {
		b.replyText(msg, msgContactUsage)
		return
	}
	phone, email := args[0], args[1]
	if !phoneRe.MatchString(phone) || !emailRe.MatchString(email) {
		b.replyText(msg, msgContactInvalid)
		return
	}

	if err := b.opts.Store.SetContact(ctx, userContext(msg).UserID, phone, email); err != nil {
		b.log.Error("failed to save contact", logger.UserID(userContext(msg).UserID), logger.Error(err))
		b.replyText(msg, msgContactFailed)
		return
	}
	b.replyText(msg, msgContactSaved)
}

func (b *Bot) cmdTranslate(ctx context.Context, msg *tgbotapi.Message) {
	if b.opts.Translator == nil {
		b.replyText(msg, msgFeatureDisabled)
		return
	}

	input := msg.CommandArguments()
	if strings.TrimSpace(input) == "" && msg.ReplyToMessage != nil {
		input = msg.ReplyToMessage.Text
		if input == "" {
			input = msg.ReplyToMessage.Caption
		}
	}
	req, ok := translate.ParseArgs(input)
	if !ok {
		b.replyText(msg, translate.Usage)
		return
	}

	res, err := b.opts.Translator.Translate(ctx, req)
	if err != nil {
		b.log.Warn("translation failed",
			logger.String("service", "translate"),
			logger.String("target", req.Target),
			logger.Error(err))
		b.replyText(msg, msgTranslateFailed)
		return
	}
	b.reply(msg, search.ReplyPayload{
		Text:               translate.Format(res),
		ParseMode:          search.ParseModeMarkdown,
		DisableLinkPreview: true,
	})
}

func (b *Bot) cmdOCR(ctx context.Context, msg *tgbotapi.Message) {
	if msg.ReplyToMessage == nil || len(msg.ReplyToMessage.Photo) == 0 {
		b.replyText(msg, msgOCRUsage)
		return
	}
	if b.opts.OCR == nil {
		b.replyText(msg, msgFeatureDisabled)
		return
	}

	photos := msg.ReplyToMessage.Photo
	largest := photos[0]
	for _, p := range photos[1:] {
		if p.Width*p.Height > largest.Width*largest.Height {
			largest = p
		}
	}

	img, err := b.download(ctx, largest.FileID)
	if err != nil {
		b.log.Warn("failed to download photo", logger.String("service", "telegram"), logger.Error(err))
		b.replyText(msg, msgOCRFailed)
		return
	}

	text, err := b.opts.OCR.Extract(ctx, img, "image/jpeg")
	switch {
	case errors.Is(err, ocr.ErrDisabled):
		b.replyText(msg, msgFeatureDisabled)
	case err != nil:
		b.log.Warn("ocr failed", logger.String("service", "ocr"), logger.Error(err))
		b.replyText(msg, msgOCRFailed)
	case strings.TrimSpace(text) == "":
		b.replyText(msg, msgOCREmpty)
	default:
		b.reply(msg, search.ReplyPayload{
			Text:      "*Extracted Text:*\n```\n" + strings.ReplaceAll(text, "```", "'''") + "\n```",
			ParseMode: search.ParseModeMarkdown,
		})
	}
}

func (b *Bot) download(ctx context.Context, fileID string) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("get file url: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := b.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download file: %w", err)
	}
	defer utils.Close(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("download file: status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes))
}
