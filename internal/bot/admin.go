package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/panjf2000/ants/v2"

	"github.com/MrSnakeDoc/studybot/internal/logger"
	redisstore "github.com/MrSnakeDoc/studybot/internal/store/redis"
)

func (b *Bot) isAdmin(msg *tgbotapi.Message) bool {
	return msg.From != nil && msg.From.ID == b.opts.AdminID
}

func (b *Bot) handleAdminCommand(ctx context.Context, msg *tgbotapi.Message) {
	if !b.isAdmin(msg) {
		b.replyText(msg, msgUnauthorized)
		return
	}

	switch msg.Command() {
	case "users":
		b.cmdUsers(ctx, msg)
	case "logs":
		b.cmdLogs(ctx, msg)
	case "broadcast":
		b.cmdBroadcast(ctx, msg)
	case "reload":
		b.cmdReload(ctx, msg)
	}
}

func usersKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(usersRefreshedLabel, usersCallbackData),
	))
}

func (b *Bot) cmdUsers(ctx context.Context, msg *tgbotapi.Message) {
	n, err := b.opts.Store.CountChats(ctx)
	if err != nil {
		b.log.Error("failed to count chats", logger.Error(err))
		b.replyText(msg, msgUsersFailed)
		return
	}
	out := tgbotapi.NewMessage(msg.Chat.ID, fmt.Sprintf("📊 Total interacting entities: %d", n))
	out.ReplyMarkup = usersKeyboard()
	b.send(out)
}

func (b *Bot) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	if q.Data != usersCallbackData || q.Message == nil {
		b.answer(q, "")
		return
	}
	if q.From == nil || q.From.ID != b.opts.AdminID {
		b.answer(q, msgUnauthorized)
		return
	}

	n, err := b.opts.Store.CountChats(ctx)
	if err != nil {
		b.log.Error("failed to count chats", logger.Error(err))
		b.answer(q, msgUsersFailed)
		return
	}
	edit := tgbotapi.NewEditMessageTextAndMarkup(q.Message.Chat.ID, q.Message.MessageID,
		fmt.Sprintf("📊 Total interacting entities: %d (refreshed)", n), usersKeyboard())
	b.send(edit)
	b.answer(q, "Refreshed!")
}

func (b *Bot) answer(q *tgbotapi.CallbackQuery, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(q.ID, text)); err != nil {
		b.log.Warn("failed to answer callback", logger.Error(err))
	}
}

func (b *Bot) cmdLogs(ctx context.Context, msg *tgbotapi.Message) {
	arg := strings.TrimSpace(msg.CommandArguments())
	day, err := time.Parse(redisstore.LogDateLayout, arg)
	if err != nil {
		b.replyText(msg, msgLogsUsage)
		return
	}

	entries, err := b.opts.Store.LogsByDate(ctx, day)
	if err != nil {
		b.log.Error("failed to fetch logs", logger.String("day", arg), logger.Error(err))
		b.replyText(msg, msgLogsFailed)
		return
	}
	if len(entries) == 0 {
		b.replyText(msg, msgNoLogs)
		return
	}

	var sb strings.Builder
	for _, e := range entries {
		sb.WriteString(e.Line())
		sb.WriteByte('\n')
	}
	doc := tgbotapi.NewDocument(msg.Chat.ID, tgbotapi.FileBytes{
		Name:  "logs-" + arg + ".txt",
		Bytes: []byte(sb.String()),
	})
	doc.Caption = fmt.Sprintf("%d messages on %s", len(entries), arg)
	b.send(doc)
}

func (b *Bot) cmdReload(ctx context.Context, msg *tgbotapi.Message) {
	if b.opts.Reloader == nil {
		b.replyText(msg, msgFeatureDisabled)
		return
	}
	n, err := b.opts.Reloader.ReloadNow(ctx)
	if err != nil {
		b.log.Error("manual catalog reload failed", logger.Error(err))
		b.replyText(msg, msgReloadFailed)
		return
	}
	b.replyText(msg, fmt.Sprintf("✅ Catalog reloaded: %d items.", n))
}

// broadcastMessage builds the copy of src sent to chatID, or nil when src
// carries nothing that can be broadcast.
func broadcastMessage(chatID int64, src *tgbotapi.Message) tgbotapi.Chattable {
	switch {
	case len(src.Photo) > 0:
		p := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(src.Photo[len(src.Photo)-1].FileID))
		p.Caption = src.Caption
		return p
	case src.Document != nil:
		d := tgbotapi.NewDocument(chatID, tgbotapi.FileID(src.Document.FileID))
		d.Caption = src.Caption
		return d
	case src.Video != nil:
		v := tgbotapi.NewVideo(chatID, tgbotapi.FileID(src.Video.FileID))
		v.Caption = src.Caption
		return v
	case src.Text != "":
		return tgbotapi.NewMessage(chatID, src.Text)
	}
	return nil
}

func (b *Bot) cmdBroadcast(ctx context.Context, msg *tgbotapi.Message) {
	src := msg.ReplyToMessage
	if src == nil || broadcastMessage(0, src) == nil {
		b.replyText(msg, msgBroadcastUsage)
		return
	}

	ids, err := b.opts.Store.ChatIDs(ctx)
	if err != nil {
		b.log.Error("failed to list chats", logger.Error(err))
		b.replyText(msg, msgBroadcastFailed)
		return
	}

	sent := b.broadcast(ctx, ids, src)
	b.log.Info("broadcast finished", logger.Int64("sent", sent), logger.Int("total", len(ids)))
	b.replyText(msg, fmt.Sprintf("✅ Broadcast sent to %d/%d users.", sent, len(ids)))
}

// broadcast copies src to every chat through a dedicated pool and returns
// how many sends succeeded.
func (b *Bot) broadcast(ctx context.Context, ids []int64, src *tgbotapi.Message) int64 {
	var (
		sent atomic.Int64
		wg   sync.WaitGroup
	)

	pool, err := ants.NewPoolWithFunc(b.opts.BroadcastWorkers, func(arg any) {
		defer wg.Done()
		chatID := arg.(int64)
		if ctx.Err() != nil {
			return
		}
		if _, err := b.api.Send(broadcastMessage(chatID, src)); err != nil {
			b.log.Debug("broadcast send failed", logger.ChatID(chatID), logger.Error(err))
			return
		}
		sent.Add(1)
	})
	if err != nil {
		b.log.Error("failed to create broadcast pool", logger.Error(err))
		return 0
	}
	defer pool.Release()

	for _, id := range ids {
		wg.Add(1)
		if err := pool.Invoke(id); err != nil {
			wg.Done()
			b.log.Warn("broadcast invoke failed", logger.ChatID(id), logger.Error(err))
		}
	}
	wg.Wait()
	return sent.Load()
}
