package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"signal_trader/internal/modules/config"
)

type fakeBot struct {
	errs []error // по одной на попытку, дальше успех
	sent []tgbot.MessageConfig
	upd  chan tgbot.Update
}

func (f *fakeBot) Send(c tgbot.Chattable) (tgbot.Message, error) {
	msg := c.(tgbot.MessageConfig)
	f.sent = append(f.sent, msg)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return tgbot.Message{}, err
		}
	}
	return tgbot.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeBot) GetUpdatesChan(tgbot.UpdateConfig) tgbot.UpdatesChannel { return f.upd }
func (f *fakeBot) StopReceivingUpdates()                                  {}

func newTestTelegram(t *testing.T, bot botAPI, store SettingsStore) (*Telegram, *[]time.Duration) {
	t.Helper()
	tg := newTelegram(bot, config.TelegramConfig{
		Destinations: map[string]int64{"Scalping": -1001, "trade": -1005},
		ParseModes:   map[string]string{"scalping": "Markdown"},
		AdminChatID:  42,
		MaxAttempts:  3,
	}, store, zaptest.NewLogger(t))
	var sleeps []time.Duration
	tg.sleep = func(_ context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return tg, &sleeps
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "short", Truncate("short", 4096))

	long := strings.Repeat("ж", 5000)
	out := Truncate(long, 4096)
	require.Equal(t, 4096, utf8.RuneCountInString(out))
	require.True(t, strings.HasSuffix(out, truncatedMarker))

	require.Equal(t, "…[t", Truncate("0123456789", 3))
}

func TestSend_ResolvesDestination(t *testing.T) {
	bot := &fakeBot{}
	tg, _ := newTestTelegram(t, bot, nil)

	require.NoError(t, tg.Send(context.Background(), "scalping", "hello"))
	require.Len(t, bot.sent, 1)
	require.Equal(t, int64(-1001), bot.sent[0].ChatID)

	err := tg.Send(context.Background(), "unknown", "hello")
	require.ErrorIs(t, err, ErrDestinationNotFound)
	require.Len(t, bot.sent, 1)
}

func TestSend_ParseModePerDestination(t *testing.T) {
	bot := &fakeBot{}
	tg, _ := newTestTelegram(t, bot, nil)
	ctx := context.Background()

	require.NoError(t, tg.Send(ctx, "Scalping", "*BTCUSDT* breakout"))
	require.NoError(t, tg.Send(ctx, "trade", "OPEN_LONG BTCUSDT"))
	require.NoError(t, tg.SendAdmin(ctx, "admin_note"))

	require.Len(t, bot.sent, 3)
	require.Equal(t, "Markdown", bot.sent[0].ParseMode)
	require.Empty(t, bot.sent[1].ParseMode)
	require.Empty(t, bot.sent[2].ParseMode)
}

func TestSend_BadMarkupFallsBackToPlain(t *testing.T) {
	bot := &fakeBot{errs: []error{
		&tgbot.Error{Code: 400, Message: "Bad Request: can't parse entities: Can't find end of the entity starting at byte offset 5"},
	}}
	tg, sleeps := newTestTelegram(t, bot, nil)

	require.NoError(t, tg.Send(context.Background(), "scalping", "OPEN_LONG *oops"))
	require.Len(t, bot.sent, 2)
	require.Equal(t, "Markdown", bot.sent[0].ParseMode)
	require.Empty(t, bot.sent[1].ParseMode)
	require.Equal(t, "OPEN_LONG *oops", bot.sent[1].Text)
	require.Empty(t, *sleeps)
}

func TestSend_TruncatesLongText(t *testing.T) {
	bot := &fakeBot{}
	tg, _ := newTestTelegram(t, bot, nil)

	require.NoError(t, tg.Send(context.Background(), "trade", strings.Repeat("x", 5000)))
	require.Equal(t, MaxMessageLen, utf8.RuneCountInString(bot.sent[0].Text))
}

func TestSend_RetriesTransient(t *testing.T) {
	bot := &fakeBot{errs: []error{
		errors.New("connection reset"),
		&tgbot.Error{Code: 429, Message: "Too Many Requests", ResponseParameters: tgbot.ResponseParameters{RetryAfter: 3}},
	}}
	tg, sleeps := newTestTelegram(t, bot, nil)

	require.NoError(t, tg.Send(context.Background(), "trade", "hi"))
	require.Len(t, bot.sent, 3)
	require.Equal(t, []time.Duration{time.Second, 3 * time.Second}, *sleeps)
}

func TestSend_GivesUpAfterMaxAttempts(t *testing.T) {
	boom := &tgbot.Error{Code: 502, Message: "Bad Gateway"}
	bot := &fakeBot{errs: []error{boom, boom, boom, boom}}
	tg, sleeps := newTestTelegram(t, bot, nil)

	err := tg.Send(context.Background(), "trade", "hi")
	require.Error(t, err)
	require.Len(t, bot.sent, 3)
	require.Len(t, *sleeps, 2)
}

func TestSend_ChatNotFoundIsFatal(t *testing.T) {
	for _, e := range []error{
		&tgbot.Error{Code: 400, Message: "Bad Request: chat not found"},
		&tgbot.Error{Code: 403, Message: "Forbidden: bot was kicked from the group chat"},
	} {
		bot := &fakeBot{errs: []error{e}}
		tg, sleeps := newTestTelegram(t, bot, nil)

		err := tg.Send(context.Background(), "trade", "hi")
		require.ErrorIs(t, err, ErrDestinationNotFound)
		require.Len(t, bot.sent, 1)
		require.Empty(t, *sleeps)
	}
}

func TestSend_OtherClientErrorNotRetried(t *testing.T) {
	bot := &fakeBot{errs: []error{&tgbot.Error{Code: 400, Message: "Bad Request: message text is empty"}}}
	tg, _ := newTestTelegram(t, bot, nil)

	err := tg.Send(context.Background(), "trade", "")
	require.Error(t, err)
	require.False(t, errors.Is(err, ErrDestinationNotFound))
	require.Len(t, bot.sent, 1)
}

func TestSend_StdoutWithoutBot(t *testing.T) {
	tg, _ := newTestTelegram(t, nil, nil)
	require.NoError(t, tg.Send(context.Background(), "anything", "hello"))
	require.True(t, tg.HasDestination("anything"))
	require.NoError(t, tg.SendAdmin(context.Background(), "hello"))
}
