package handlers

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	"offersbot/core/logger"
	"offersbot/internal/offers"

	"log/slog"

	tele "gopkg.in/telebot.v4"
)

// ErrBotNotReady is returned for announcement calls made before the bot
// instance has been bound.
var ErrBotNotReady = errors.New("announcer: bot not ready")

// Announcer posts and removes announcement messages through the bot API.
// The bot instance only exists once the runtime is up, so it is bound late
// via Bind. Calls are synchronous: callers need the message id to attach it
// to the offer, and transient API errors are retried at the HTTP transport
// level.
type Announcer struct {
	bot atomic.Pointer[tele.Bot]
}

// NewAnnouncer creates an unbound announcement transport.
func NewAnnouncer() *Announcer {
	return &Announcer{}
}

// Bind attaches the running bot instance.
func (a *Announcer) Bind(bot *tele.Bot) {
	a.bot.Store(bot)
}

var _ offers.Transport = (*Announcer)(nil)

// Send posts text to the chat and returns the new message id.
func (a *Announcer) Send(ctx context.Context, chatID int64, text string) (int, error) {
	bot := a.bot.Load()
	if bot == nil {
		return 0, ErrBotNotReady
	}
	msg, err := bot.Send(tele.ChatID(chatID), text)
	if err != nil {
		logger.Warn(ctx, "service.offers", "announce.send_failed",
			slog.Int64("chat_id", chatID),
			slog.String("err", err.Error()),
		)
		return 0, err
	}
	return msg.ID, nil
}

// Delete removes a previously posted announcement message.
func (a *Announcer) Delete(ctx context.Context, chatID int64, messageID int) error {
	bot := a.bot.Load()
	if bot == nil {
		return ErrBotNotReady
	}
	ref := tele.StoredMessage{ChatID: chatID, MessageID: strconv.Itoa(messageID)}
	if err := bot.Delete(ref); err != nil {
		logger.Warn(ctx, "service.offers", "announce.delete_failed",
			slog.Int64("chat_id", chatID),
			slog.Int("message_id", messageID),
			slog.String("err", err.Error()),
		)
		return err
	}
	return nil
}
