package service

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoCredentials = errors.New("binance futures: API key/secret required")
	ErrUnknownSymbol = errors.New("binance futures: symbol not listed")
	ErrOrderNotFound = errors.New("binance futures: order does not exist")
)

// коды Binance, после которых судьба ордера неизвестна
const (
	codeUnknownStatus   = -1007 // биржа не дождалась движка, статус неизвестен
	codeDuplicateID     = -4116 // clientOrderId уже занят
	codeOrderNotExisted = -2013
)

// APIError: фатальный ответ биржи (4xx кроме rate limit). Код и текст отдаём как есть.
type APIError struct {
	Status  int
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance futures error: status=%d code=%d msg=%s", e.Status, e.Code, e.Message)
}

// TransientError: сеть, таймаут, 5xx, 429. Такие ошибки можно повторять.
type TransientError struct {
	Status     int
	RetryAfter time.Duration // явное указание биржи, 0 если не было
	Err        error
}

func (e *TransientError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("transient (http %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("transient: %v", e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// OutcomeUnknown: ордер мог дойти до биржи, хотя вызов вернул ошибку.
// Ретраи исчерпаны, таймаут, -1007 или дубль clientOrderId после нашего же ретрая.
func OutcomeUnknown(err error) bool {
	if err == nil {
		return false
	}
	if ae, ok := AsAPIError(err); ok && (ae.Code == codeUnknownStatus || ae.Code == codeDuplicateID) {
		return true
	}
	return IsTransient(err) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)
}

// AsAPIError достаёт фатальную ошибку биржи из цепочки.
func AsAPIError(err error) (*APIError, bool) {
	var ae *APIError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
