package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"signal_trader/internal/monitor"
)

const (
	MaxMessageLen   = 4096
	truncatedMarker = "…[truncated]"
)

var ErrDestinationNotFound = errors.New("notification destination not found")

// Truncate режет текст до max рун и ставит видимый маркер.
func Truncate(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	m := []rune(truncatedMarker)
	keep := max - len(m)
	if keep < 0 {
		return string(m[:max])
	}
	return string(r[:keep]) + truncatedMarker
}

// HasDestination: известен ли канал с таким именем.
func (t *Telegram) HasDestination(name string) bool {
	_, ok := t.dest[strings.ToLower(name)]
	return ok || t.bot == nil
}

// Send: отправка в именованный канал (scalping, swing, trade, ...).
func (t *Telegram) Send(ctx context.Context, destination, text string) error {
	if t.bot == nil {
		return t.SendChat(ctx, 0, "["+destination+"] "+text)
	}
	name := strings.ToLower(destination)
	chatID, ok := t.dest[name]
	if !ok || chatID == 0 {
		monitor.Notifications.WithLabelValues("not_found").Inc()
		return fmt.Errorf("%w: %q", ErrDestinationNotFound, destination)
	}
	mode := t.parseModes[name]
	err := t.send(ctx, chatID, text, mode)
	if mode != "" && badMarkup(err) {
		// разметка алерта сломана: лучше доставить как есть
		t.log.Warn("telegram markup rejected, resending as plain text",
			zap.String("destination", name), zap.String("parse_mode", mode), zap.Error(err))
		return t.send(ctx, chatID, text, "")
	}
	return err
}

// SendAdmin: в админский чат, если он задан.
func (t *Telegram) SendAdmin(ctx context.Context, text string) error {
	if t.bot != nil && t.adminChatID == 0 {
		return nil
	}
	return t.SendChat(ctx, t.adminChatID, text)
}

// SendChat шлёт обычный текст с ретраями транзиентных ошибок.
// chat not found / 403: фатально, без ретраев.
func (t *Telegram) SendChat(ctx context.Context, chatID int64, text string) error {
	return t.send(ctx, chatID, text, "")
}

func (t *Telegram) send(ctx context.Context, chatID int64, text, parseMode string) error {
	text = Truncate(text, t.maxLen)
	if t.bot == nil {
		t.log.Info("notification", zap.Int64("chat_id", chatID), zap.String("text", text))
		monitor.Notifications.WithLabelValues("stdout").Inc()
		return nil
	}

	bo := &backoff.Backoff{Min: t.backoffMin, Max: t.backoffMax, Factor: 2}
	var lastErr error
	for attempt := 0; attempt < t.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg := tgbot.NewMessage(chatID, text)
		msg.ParseMode = parseMode
		_, err := t.bot.Send(msg)
		if err == nil {
			monitor.Notifications.WithLabelValues("ok").Inc()
			return nil
		}
		lastErr = err

		wait, retry, notFound := classify(err)
		if notFound {
			monitor.Notifications.WithLabelValues("not_found").Inc()
			return fmt.Errorf("%w: chat %d: %v", ErrDestinationNotFound, chatID, err)
		}
		if !retry {
			break
		}
		if attempt == t.maxAttempts-1 {
			break
		}
		if wait == 0 {
			wait = bo.ForAttempt(float64(attempt))
		}
		t.log.Warn("telegram send retry", zap.Int64("chat_id", chatID), zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait), zap.Error(err))
		if err := t.sleep(ctx, wait); err != nil {
			return err
		}
	}
	monitor.Notifications.WithLabelValues("error").Inc()
	return fmt.Errorf("telegram send to %d: %w", chatID, lastErr)
}

// badMarkup: Telegram не смог разобрать Markdown/HTML.
func badMarkup(err error) bool {
	var te *tgbot.Error
	return errors.As(err, &te) && te.Code == 400 && strings.Contains(strings.ToLower(te.Message), "can't parse entities")
}

// classify: пауза от retry_after, можно ли повторять, не найден ли чат.
func classify(err error) (wait time.Duration, retry bool, notFound bool) {
	var te *tgbot.Error
	if !errors.As(err, &te) {
		// сеть, таймаут, не-JSON ответ
		return 0, true, false
	}
	switch {
	case te.Code == 429:
		return time.Duration(te.RetryAfter) * time.Second, true, false
	case te.Code >= 500:
		return 0, true, false
	case te.Code == 403:
		return 0, false, true
	case te.Code == 400 && strings.Contains(strings.ToLower(te.Message), "chat not found"):
		return 0, false, true
	}
	return 0, false, false
}
