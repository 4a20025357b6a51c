package service

import (
	"context"
	"net/http"
	"strings"
	"time"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"signal_trader/internal/models"
	"signal_trader/internal/modules/config"
)

// botAPI: то, что нам нужно от *tgbot.BotAPI.
type botAPI interface {
	Send(c tgbot.Chattable) (tgbot.Message, error)
	GetUpdatesChan(config tgbot.UpdateConfig) tgbot.UpdatesChannel
	StopReceivingUpdates()
}

// SettingsStore: хранилище настроек символов, им управляют команды админа.
type SettingsStore interface {
	Get(symbol string) (models.SymbolConfig, error)
	Save(ctx context.Context, symbol string, u models.SymbolUpdate) (models.SymbolConfig, error)
	ResetLegs(symbol string)
	SetGlobalMode(m models.GlobalMode) error
	GlobalMode() models.GlobalMode
	Symbols() []string
}

// Telegram: отправка уведомлений и приём команд из админского чата.
// Без токена работает как stdout-заглушка.
type Telegram struct {
	bot   botAPI
	log   *zap.Logger
	store SettingsStore

	dest        map[string]int64
	parseModes  map[string]string
	adminChatID int64
	maxLen      int
	maxAttempts int
	pollTimeout int // секунды, меньше таймаута http-клиента
	backoffMin  time.Duration
	backoffMax  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func NewTelegram(cfg *config.Config, store SettingsStore, log *zap.Logger) (*Telegram, error) {
	t := newTelegram(nil, cfg.Telegram, store, log)
	if cfg.Telegram.Token == "" {
		t.log.Warn("telegram token not set, notifications go to stdout")
		return t, nil
	}

	endpoint := cfg.Telegram.APIEndpoint
	if endpoint == "" {
		endpoint = tgbot.APIEndpoint
	}
	b, err := tgbot.NewBotAPIWithClient(cfg.Telegram.Token, endpoint, &http.Client{Timeout: cfg.Telegram.Timeout})
	if err != nil {
		return nil, err
	}
	t.bot = b
	t.log.Info("telegram bot authorized", zap.String("username", b.Self.UserName))
	return t, nil
}

func newTelegram(bot botAPI, cfg config.TelegramConfig, store SettingsStore, log *zap.Logger) *Telegram {
	dest := make(map[string]int64, len(cfg.Destinations))
	for k, v := range cfg.Destinations {
		dest[strings.ToLower(k)] = v
	}
	modes := make(map[string]string, len(cfg.ParseModes))
	for k, v := range cfg.ParseModes {
		modes[strings.ToLower(k)] = v
	}
	maxLen := cfg.MaxMessageLen
	if maxLen <= 0 || maxLen > MaxMessageLen {
		maxLen = MaxMessageLen
	}
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	poll := 30
	if cfg.Timeout > 0 {
		poll = max(int(cfg.Timeout.Seconds())-2, 1)
	}
	return &Telegram{
		bot:         bot,
		log:         log.Named("telegram"),
		store:       store,
		dest:        dest,
		parseModes:  modes,
		adminChatID: cfg.AdminChatID,
		maxLen:      maxLen,
		maxAttempts: attempts,
		pollTimeout: poll,
		backoffMin:  time.Second,
		backoffMax:  10 * time.Second,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Start: long-polling команд админа. Без бота или админского чата ничего не делает.
func (t *Telegram) Start(ctx context.Context) {
	if t.bot == nil || t.adminChatID == 0 {
		return
	}
	u := tgbot.NewUpdate(0)
	u.Timeout = t.pollTimeout
	u.AllowedUpdates = []string{"message"}
	updates := t.bot.GetUpdatesChan(u)

	for {
		select {
		case <-ctx.Done():
			return
		case upd, ok := <-updates:
			if !ok {
				return
			}
			t.handleUpdate(ctx, upd)
		}
	}
}

func (t *Telegram) Stop() {
	if t.bot != nil && t.adminChatID != 0 {
		t.bot.StopReceivingUpdates()
	}
}

func (t *Telegram) handleUpdate(ctx context.Context, update tgbot.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil || !msg.IsCommand() {
		return
	}
	if msg.Chat.ID != t.adminChatID {
		t.log.Warn("command from foreign chat ignored", zap.Int64("chat_id", msg.Chat.ID), zap.String("command", msg.Command()))
		return
	}

	reply := t.HandleCommand(ctx, msg.Command(), msg.CommandArguments())
	if err := t.SendChat(ctx, msg.Chat.ID, reply); err != nil {
		t.log.Error("command reply failed", zap.Error(err))
	}
}
