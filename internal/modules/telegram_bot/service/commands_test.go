package service

import (
	"context"
	"testing"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"signal_trader/internal/models"
	settings "signal_trader/internal/modules/settings/service"
)

func newStore(t *testing.T) *settings.Store {
	return settings.NewStore(settings.Defaults{Preset: models.PresetNormal, Leverage: 10, SplitEntry: true}, nil, zaptest.NewLogger(t))
}

func TestHandleCommand_SetAndShow(t *testing.T) {
	store := newStore(t)
	tg, _ := newTestTelegram(t, &fakeBot{}, store)
	ctx := context.Background()

	reply := tg.HandleCommand(ctx, "set", "btcusdt.p lev 25")
	require.Contains(t, reply, "✅")
	require.Contains(t, reply, "25x")

	tg.HandleCommand(ctx, "set", "BTCUSDT sl 0,8%")
	tg.HandleCommand(ctx, "set", "BTCUSDT dir long")
	tg.HandleCommand(ctx, "set", "BTCUSDT split off")
	tg.HandleCommand(ctx, "set", "BTCUSDT preset aggressive")

	cfg, err := store.Get("BTCUSDT")
	require.NoError(t, err)
	require.Equal(t, 25, cfg.Leverage)
	require.Equal(t, 0.8, cfg.StopLossPct)
	require.Equal(t, models.DirectionLong, cfg.Direction)
	require.False(t, cfg.SplitEntry)
	require.Equal(t, models.PresetAggressive, cfg.RiskPreset)

	show := tg.HandleCommand(ctx, "show", "BTCUSDT")
	require.Contains(t, show, "BTCUSDT")
	require.Contains(t, show, "0.80% *")

	tg.HandleCommand(ctx, "set", "BTCUSDT clear")
	cfg, _ = store.Get("BTCUSDT")
	require.Equal(t, 2.5, cfg.StopLossPct)
}

func TestHandleCommand_RejectsBadInput(t *testing.T) {
	store := newStore(t)
	tg, _ := newTestTelegram(t, &fakeBot{}, store)
	ctx := context.Background()

	for _, args := range []string{"BTCUSDT lev 500", "BTCUSDT lev x", "BTCUSDT preset yolo", "BTCUSDT dir up", "BTCUSDT foo 1", "BTCUSDT"} {
		require.Contains(t, tg.HandleCommand(ctx, "set", args), "❗️", args)
	}
	require.Contains(t, tg.HandleCommand(ctx, "mode", "UP"), "❗️")
	require.Contains(t, tg.HandleCommand(ctx, "nope", ""), "Неизвестная команда")

	cfg, _ := store.Get("BTCUSDT")
	require.Equal(t, 10, cfg.Leverage)
}

func TestHandleCommand_ModeResetSymbols(t *testing.T) {
	store := newStore(t)
	tg, _ := newTestTelegram(t, &fakeBot{}, store)
	ctx := context.Background()

	require.Contains(t, tg.HandleCommand(ctx, "mode", "short_only"), "SHORT_ONLY")
	require.Equal(t, models.GlobalShortOnly, store.GlobalMode())

	store.AdvanceLeg("ETHUSDT")
	store.AdvanceLeg("ETHUSDT")
	require.Contains(t, tg.HandleCommand(ctx, "reset", "ethusdt"), "ETHUSDT")
	cfg, _ := store.Get("ETHUSDT")
	require.Zero(t, cfg.Legs)

	require.Contains(t, tg.HandleCommand(ctx, "symbols", ""), "ETHUSDT")
}

func TestStart_OnlyAdminCommandsAnswered(t *testing.T) {
	store := newStore(t)
	bot := &fakeBot{upd: make(chan tgbot.Update, 2)}
	tg, _ := newTestTelegram(t, bot, store)

	cmd := func(chatID int64, text string) tgbot.Update {
		return tgbot.Update{Message: &tgbot.Message{
			Chat:     &tgbot.Chat{ID: chatID},
			Text:     text,
			Entities: []tgbot.MessageEntity{{Type: "bot_command", Offset: 0, Length: len("/symbols")}},
		}}
	}
	bot.upd <- cmd(7, "/symbols")
	bot.upd <- cmd(42, "/symbols")
	close(bot.upd)

	done := make(chan struct{})
	go func() {
		defer close(done)
		tg.Start(context.Background())
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("update loop did not stop")
	}

	require.Len(t, bot.sent, 1)
	require.Equal(t, int64(42), bot.sent[0].ChatID)
}
