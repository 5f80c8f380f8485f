// Package alert delivers operator notifications. Delivery is best-effort:
// a failed send is logged locally and never escalated.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sethvargo/go-retry"
)

// Telegram caps messages at 4096 characters.
const maxMessageLength = 4096

// Sink receives human-readable failure and summary messages.
type Sink interface {
	Send(ctx context.Context, message string) error
}

// Telegram sends alerts to a Telegram chat.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

// NewTelegram creates a Telegram sink for the given bot token and chat.
func NewTelegram(token string, chatID int64, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{api: api, chatID: chatID, log: log}, nil
}

// Send delivers the message, retrying transient delivery failures with a
// bounded fibonacci backoff. The final error is logged and returned; callers
// are expected to ignore it.
func (t *Telegram) Send(ctx context.Context, message string) error {
	msg := tgbotapi.NewMessage(t.chatID, truncate(message))

	b := retry.WithMaxRetries(3, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		if _, err := t.api.Send(msg); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		t.log.Error("send alert", "error", err)
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}

// LogSink writes alerts to the local log only. It is used when Telegram
// credentials are not configured.
type LogSink struct {
	log *slog.Logger
}

// NewLogSink creates a log-only sink.
func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log}
}

// Send logs the alert message.
func (s *LogSink) Send(_ context.Context, message string) error {
	s.log.Warn("alert", "message", truncate(message))
	return nil
}

// truncate enforces the Telegram message length cap without splitting a
// multi-byte rune.
func truncate(message string) string {
	if len(message) <= maxMessageLength {
		return message
	}
	cut := maxMessageLength
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}
	return message[:cut]
}
