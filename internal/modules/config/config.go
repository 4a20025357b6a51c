package config

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"signal_trader/internal/helper"
	"signal_trader/internal/models"
)

const (
	configFilePathENV = "CONFIG_FILE"
	defaultConfigFile = "values_local.yaml"
)

// назначения алертов, как их называет TradingView-шаблон
const (
	DestScalping = "scalping"
	DestDaytrade = "daytrade"
	DestSwing    = "swing"
	DestLongterm = "longterm"
	DestTrade    = "trade"
)

type ExchangeConfig struct {
	BaseURL        string        `yaml:"base_url"`
	StreamURL      string        `yaml:"stream_url"`
	StreamEnabled  bool          `yaml:"stream_enabled"`
	APIKey         string        `yaml:"api_key"`
	APISecret      string        `yaml:"api_secret"`
	RecvWindow     int64         `yaml:"recv_window_ms"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxAttempts    int           `yaml:"max_attempts"`
	BackoffMin     time.Duration `yaml:"backoff_min"`
	BackoffMax     time.Duration `yaml:"backoff_max"`
	MarginAsset    string        `yaml:"margin_asset"`
	HedgeMode      bool          `yaml:"hedge_mode"`
	FilterTTL      time.Duration `yaml:"filter_ttl"`
	RatePerSec     float64       `yaml:"rate_per_sec"`
	RateBurst      int           `yaml:"rate_burst"`
}

type TelegramConfig struct {
	Token         string            `yaml:"token"`
	AdminChatID   int64             `yaml:"admin_chat_id"`
	Destinations  map[string]int64  `yaml:"destinations"`
	// parse_mode Telegram по каналу: Markdown, MarkdownV2, HTML. Пусто: обычный текст.
	ParseModes    map[string]string `yaml:"parse_modes"`
	TradeDest     string            `yaml:"trade_destination"`
	MaxMessageLen int               `yaml:"max_message_len"`
	MaxAttempts   int               `yaml:"max_attempts"`
	Timeout       time.Duration     `yaml:"timeout"`
	APIEndpoint   string            `yaml:"api_endpoint"`
}

type TradingConfig struct {
	Whitelist         []string `yaml:"whitelist"`
	DefaultPreset     string   `yaml:"default_preset"`
	DefaultLeverage   int      `yaml:"default_leverage"`
	SplitEntry        bool     `yaml:"split_entry"`
	MinStopGapPct     float64  `yaml:"min_stop_gap_pct"`
	MinTrailingGapPct float64  `yaml:"min_trailing_gap_pct"`
	GlobalMode        string   `yaml:"global_mode"`
	DisabledActions   []string `yaml:"disabled_actions"`
}

type AntiSpamConfig struct {
	Cooldown      time.Duration `yaml:"cooldown"`
	DedupWindow   time.Duration `yaml:"dedup_window"`
	GCEvery       int           `yaml:"gc_every"`
	SweepInterval time.Duration `yaml:"sweep_interval"`
}

// Config ...
type Config struct {
	Service struct {
		Name     string `yaml:"name"`
		Version  string `yaml:"version"`
		HTTPAddr string `yaml:"http_addr"`
	} `yaml:"service"`

	Webhook struct {
		Secret       string `yaml:"secret"`
		MaxBodyBytes int64  `yaml:"max_body_bytes"`
	} `yaml:"webhook"`

	Exchange ExchangeConfig `yaml:"exchange"`
	Telegram TelegramConfig `yaml:"telegram"`
	Trading  TradingConfig  `yaml:"trading"`
	AntiSpam AntiSpamConfig `yaml:"antispam"`

	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`

	Tracing struct {
		Host       string  `yaml:"host"`
		Port       int     `yaml:"port"`
		SampleRate float64 `yaml:"sample_rate"`
	} `yaml:"tracing"`

	DB string `yaml:"db_dsn"`
}

func defaults() Config {
	var c Config
	c.Service.Name = "signal_trader"
	c.Service.Version = "dev"
	c.Service.HTTPAddr = ":8080"
	c.Webhook.MaxBodyBytes = 64 << 10

	c.Exchange = ExchangeConfig{
		BaseURL:        "https://fapi.binance.com",
		StreamURL:      "wss://fstream.binance.com",
		StreamEnabled:  true,
		RecvWindow:     5000,
		RequestTimeout: 10 * time.Second,
		MaxAttempts:    5,
		BackoffMin:     500 * time.Millisecond,
		BackoffMax:     8 * time.Second,
		MarginAsset:    "USDT",
		FilterTTL:      time.Hour,
		RatePerSec:     10,
		RateBurst:      5,
	}
	c.Telegram = TelegramConfig{
		Destinations:  map[string]int64{},
		TradeDest:     DestTrade,
		MaxMessageLen: 4096,
		MaxAttempts:   3,
		Timeout:       10 * time.Second,
	}
	// алерты TradingView приходят с Markdown-разметкой
	c.Telegram.ParseModes = map[string]string{
		DestScalping: "Markdown",
		DestDaytrade: "Markdown",
		DestSwing:    "Markdown",
		DestLongterm: "Markdown",
	}
	c.Trading = TradingConfig{
		DefaultPreset:     models.PresetNormal,
		DefaultLeverage:   10,
		SplitEntry:        true,
		MinStopGapPct:     1.0,
		MinTrailingGapPct: 1.0,
		GlobalMode:        string(models.GlobalBoth),
	}
	c.AntiSpam = AntiSpamConfig{
		Cooldown:      60 * time.Second,
		DedupWindow:   60 * time.Second,
		GCEvery:       200,
		SweepInterval: 5 * time.Minute,
	}
	c.Log.Level = "info"
	c.Tracing.Port = 6831
	return c
}

func NewConfig() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	config := defaults()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = defaultConfigFile
	}
	if !filepath.IsAbs(configFileName) {
		configFileName = filepath.Join("configs", configFileName)
	}
	if err := decodeFile(configFileName, &config); err != nil {
		return nil, err
	}

	if err := applyEnv(viper.New(), &config); err != nil {
		return nil, err
	}
	config.normalize()

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &config, nil
}

func decodeFile(path string, config *Config) error {
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "open config file")
	}
	defer func() {
		_ = file.Close()
	}()

	if err := yaml.NewDecoder(file).Decode(config); err != nil && err != io.EOF {
		return errors.Wrapf(err, "decode config file %s", path)
	}
	return nil
}

// applyEnv: переменные окружения сильнее файла.
func applyEnv(v *viper.Viper, c *Config) error {
	v.AutomaticEnv()

	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = strings.TrimSpace(v.GetString(key))
		}
	}
	chatID := func(key string, set func(int64)) error {
		if !v.IsSet(key) {
			return nil
		}
		n, err := strconv.ParseInt(strings.TrimSpace(v.GetString(key)), 10, 64)
		if err != nil {
			return errors.Wrapf(err, "env %s", key)
		}
		set(n)
		return nil
	}
	float := func(key string, dst *float64) error {
		if !v.IsSet(key) {
			return nil
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v.GetString(key)), 64)
		if err != nil {
			return errors.Wrapf(err, "env %s", key)
		}
		*dst = f
		return nil
	}
	boolean := func(key string, dst *bool) error {
		if !v.IsSet(key) {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
		if err != nil {
			return errors.Wrapf(err, "env %s", key)
		}
		*dst = b
		return nil
	}

	str("BINANCE_API_KEY", &c.Exchange.APIKey)
	str("BINANCE_API_SECRET", &c.Exchange.APISecret)
	str("BINANCE_BASE_URL", &c.Exchange.BaseURL)
	str("BINANCE_STREAM_URL", &c.Exchange.StreamURL)
	str("TELEGRAM_TOKEN", &c.Telegram.Token)
	str("TOKEN", &c.Telegram.Token)
	str("WEBHOOK_SECRET", &c.Webhook.Secret)
	str("GLOBAL_MODE", &c.Trading.GlobalMode)
	str("DATABASE_DSN", &c.DB)
	str("LOG_LEVEL", &c.Log.Level)
	str("LOG_FILE", &c.Log.File)
	str("JAEGER_HOST", &c.Tracing.Host)
	str("HTTP_ADDR", &c.Service.HTTPAddr)

	if v.IsSet("SYMBOL_WHITELIST") {
		c.Trading.Whitelist = splitList(v.GetString("SYMBOL_WHITELIST"))
	}

	if c.Telegram.Destinations == nil {
		c.Telegram.Destinations = map[string]int64{}
	}
	dest := func(name string) func(int64) {
		return func(id int64) { c.Telegram.Destinations[name] = id }
	}
	for key, name := range map[string]string{
		"SCALP_CHAT_ID":    DestScalping,
		"DAYTRADE_CHAT_ID": DestDaytrade,
		"SWING_CHAT_ID":    DestSwing,
		"LONG_CHAT_ID":     DestLongterm,
		"TRADE_CHAT_ID":    DestTrade,
	} {
		if err := chatID(key, dest(name)); err != nil {
			return err
		}
	}
	if err := chatID("TELEGRAM_ADMIN_CHAT_ID", func(id int64) { c.Telegram.AdminChatID = id }); err != nil {
		return err
	}
	if v.IsSet("JAEGER_PORT") {
		p, err := strconv.Atoi(strings.TrimSpace(v.GetString("JAEGER_PORT")))
		if err != nil {
			return errors.Wrap(err, "env JAEGER_PORT")
		}
		c.Tracing.Port = p
	}
	if err := float("MIN_STOP_GAP_PCT", &c.Trading.MinStopGapPct); err != nil {
		return err
	}
	if err := float("MIN_TRAIL_GAP_PCT", &c.Trading.MinTrailingGapPct); err != nil {
		return err
	}
	return boolean("HEDGE_MODE", &c.Exchange.HedgeMode)
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) normalize() {
	wl := make([]string, 0, len(c.Trading.Whitelist))
	for _, s := range c.Trading.Whitelist {
		if n := helper.NormalizeSymbol(s); n != "" {
			wl = append(wl, n)
		}
	}
	c.Trading.Whitelist = wl
	c.Trading.DefaultPreset = strings.ToLower(strings.TrimSpace(c.Trading.DefaultPreset))
	c.Trading.GlobalMode = strings.ToUpper(strings.TrimSpace(c.Trading.GlobalMode))
}

// Validate отсекает значения, с которыми сервис не может работать.
func (c *Config) Validate() error {
	if c.Trading.DefaultLeverage < models.MinLeverage || c.Trading.DefaultLeverage > models.MaxLeverage {
		return errors.Errorf("default_leverage %d out of [%d,%d]", c.Trading.DefaultLeverage, models.MinLeverage, models.MaxLeverage)
	}
	if _, ok := models.LookupPreset(c.Trading.DefaultPreset); !ok {
		return errors.Errorf("unknown default_preset %q", c.Trading.DefaultPreset)
	}
	if _, err := models.ParseGlobalMode(c.Trading.GlobalMode); err != nil {
		return errors.Wrap(err, "global_mode")
	}
	if _, err := c.DisabledActions(); err != nil {
		return err
	}
	if c.Trading.MinStopGapPct < 0 || c.Trading.MinTrailingGapPct < 0 {
		return errors.New("min gap percents must be >= 0")
	}
	if c.Exchange.MaxAttempts < 1 {
		return errors.New("exchange.max_attempts must be >= 1")
	}
	if c.Exchange.BackoffMin <= 0 || c.Exchange.BackoffMax < c.Exchange.BackoffMin {
		return errors.New("exchange backoff range invalid")
	}
	if c.Telegram.MaxMessageLen <= 0 || c.Telegram.MaxMessageLen > 4096 {
		return errors.Errorf("telegram.max_message_len %d out of (0,4096]", c.Telegram.MaxMessageLen)
	}
	for dest, mode := range c.Telegram.ParseModes {
		switch mode {
		case "", "Markdown", "MarkdownV2", "HTML":
		default:
			return errors.Errorf("telegram.parse_modes[%s]: unknown mode %q", dest, mode)
		}
	}
	if c.AntiSpam.Cooldown < 0 || c.AntiSpam.DedupWindow < 0 {
		return errors.New("antispam windows must be >= 0")
	}
	return nil
}

// DisabledActions разбирает список выключенных действий.
func (c *Config) DisabledActions() (map[models.Action]bool, error) {
	out := make(map[models.Action]bool, len(c.Trading.DisabledActions))
	for _, raw := range c.Trading.DisabledActions {
		a, err := models.ParseAction(raw)
		if err != nil {
			return nil, errors.Wrap(err, "disabled_actions")
		}
		out[a] = true
	}
	return out, nil
}
