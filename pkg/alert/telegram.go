// Package alert relays operational failures (webhook dispatch errors from
// the agent router, archive-forward and delivery failures from the
// anti-recall engine) to an admin's Telegram chat.
// It is a write-only sink: nothing in this package ever reads updates.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Config holds the credentials needed to relay alerts. ChatID is the admin
// chat to notify; Token is empty when alerting is disabled.
type Config struct {
	Token  string `json:"token"`
	ChatID int64  `json:"chat_id"`
}

// Telegram sends Alert messages to a single admin chat. A zero-value
// Telegram (no bot configured) is a safe no-op, so callers never need to
// nil-check before wiring it into antirecall.AlertSink/agent.AlertSink.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// New constructs a Telegram sink. If cfg.Token is empty, it returns a
// disabled sink whose Alert calls are no-ops, rather than an error — an
// unconfigured alert relay is not a startup failure.
func New(cfg Config) (*Telegram, error) {
	if cfg.Token == "" {
		return &Telegram{}, nil
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("alert: telegram bot init: %w", err)
	}

	return &Telegram{bot: bot, chatID: cfg.ChatID}, nil
}

// Alert posts message to the configured admin chat. Failures are logged,
// never returned — an alert sink that itself needs alerting is a dead end.
func (t *Telegram) Alert(ctx context.Context, message string) {
	if t == nil || t.bot == nil {
		return
	}

	msg := tgbotapi.NewMessage(t.chatID, message)
	if _, err := t.bot.Send(msg); err != nil {
		slog.Warn("alert: telegram send failed", "chat_id", t.chatID, "error", err)
	}
}

// ParseChatID is a small helper for config layers that store the admin chat
// id as a string (as session.ChatID does throughout the channel package
// this was adapted from).
func ParseChatID(s string) (int64, error) {
	return strconv.ParseInt(s, 10, 64)
}
