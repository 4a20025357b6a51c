package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/jpillora/backoff"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Config: доступ к Binance USDT-M.
type Config struct {
	BaseURL        string
	StreamURL      string
	APIKey         string
	APISecret      string
	RecvWindow     int64 // ms
	RequestTimeout time.Duration
	MaxAttempts    int
	BackoffMin     time.Duration
	BackoffMax     time.Duration
	MarginAsset    string
	HedgeMode      bool
	FilterTTL      time.Duration
	RatePerSec     float64
	RateBurst      int
}

func (c *Config) setDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = "https://fapi.binance.com"
	}
	if c.RecvWindow == 0 {
		c.RecvWindow = 5000
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 5
	}
	if c.BackoffMin <= 0 {
		c.BackoffMin = 500 * time.Millisecond
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 8 * time.Second
	}
	if c.MarginAsset == "" {
		c.MarginAsset = "USDT"
	}
	if c.FilterTTL <= 0 {
		c.FilterTTL = time.Hour
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 10
	}
	if c.RateBurst <= 0 {
		c.RateBurst = 5
	}
}

// Client: подписанный REST-клиент фьючерсов.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
	marks   *MarkStream

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu        sync.RWMutex
	filters   map[string]symbolFilters
	filtersAt time.Time
}

func NewClient(cfg Config, log *zap.Logger, marks *MarkStream) *Client {
	cfg.setDefaults()
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.RequestTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RateBurst),
		log:     log.Named("exchange"),
		marks:   marks,
		now:     time.Now,
		sleep:   sleepCtx,
		filters: make(map[string]symbolFilters),
	}
}

func (c *Client) HedgeMode() bool { return c.cfg.HedgeMode }

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

// Sign: HMAC-SHA256 от query string, hex.
func Sign(payload, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(payload))
	return hex.EncodeToString(h.Sum(nil))
}

// Call выполняет запрос с ретраями транзиентных ошибок.
// Пауза между попытками удваивается до BackoffMax; 429 с Retry-After ждёт ровно столько, сколько сказала биржа.
func (c *Client) Call(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "exchange.call")
	defer span.Finish()
	span.SetTag("http.method", method)
	span.SetTag("exchange.path", path)

	if signed && (c.cfg.APIKey == "" || c.cfg.APISecret == "") {
		return nil, ErrNoCredentials
	}

	bo := &backoff.Backoff{Min: c.cfg.BackoffMin, Max: c.cfg.BackoffMax, Factor: 2}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxAttempts; attempt++ {
		body, err := c.do(ctx, method, path, params, signed)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !IsTransient(err) {
			ext.Error.Set(span, true)
			return nil, err
		}
		if attempt == c.cfg.MaxAttempts-1 {
			break
		}

		wait := bo.ForAttempt(float64(attempt))
		var te *TransientError
		if errors.As(err, &te) && te.RetryAfter > 0 {
			wait = te.RetryAfter
		}
		c.log.Warn("exchange call retry",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
	ext.Error.Set(span, true)
	return nil, fmt.Errorf("%s %s: %d attempts failed: %w", method, path, c.cfg.MaxAttempts, lastErr)
}

func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	for k, v := range params {
		q[k] = append([]string(nil), v...)
	}
	if signed {
		q.Set("timestamp", strconv.FormatInt(c.now().UnixMilli(), 10))
		q.Set("recvWindow", strconv.FormatInt(c.cfg.RecvWindow, 10))
	}
	payload := q.Encode()
	if signed {
		sig := Sign(payload, c.cfg.APISecret)
		if payload != "" {
			payload += "&"
		}
		payload += "signature=" + sig
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout)
	defer cancel()

	var (
		req *http.Request
		err error
	)
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + path
	switch method {
	case http.MethodGet, http.MethodDelete:
		if payload != "" {
			endpoint += "?" + payload
		}
		req, err = http.NewRequestWithContext(reqCtx, method, endpoint, nil)
	default:
		req, err = http.NewRequestWithContext(reqCtx, method, endpoint, strings.NewReader(payload))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("X-MBX-APIKEY", c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			// отмена сверху не ретраится
			return nil, ctx.Err()
		}
		return nil, &TransientError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransientError{Status: resp.StatusCode, Err: fmt.Errorf("read body: %w", err)}
	}

	switch {
	case resp.StatusCode/100 == 2:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusTeapot:
		return nil, &TransientError{
			Status:     resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
			Err:        parseAPIError(resp.StatusCode, body),
		}
	case resp.StatusCode >= 500:
		return nil, &TransientError{Status: resp.StatusCode, Err: parseAPIError(resp.StatusCode, body)}
	default:
		return nil, parseAPIError(resp.StatusCode, body)
	}
}

func parseAPIError(status int, body []byte) *APIError {
	var wrap struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	}
	if err := sonic.Unmarshal(body, &wrap); err != nil || (wrap.Code == 0 && wrap.Msg == "") {
		return &APIError{Status: status, Message: strings.TrimSpace(string(body))}
	}
	return &APIError{Status: status, Code: wrap.Code, Message: wrap.Msg}
}

// Retry-After у Binance в секундах.
func parseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0
	}
	return time.Duration(n) * time.Second
}
