package models

import "github.com/shopspring/decimal"

type OrderType string

const (
	OrderTypeMarket       OrderType = "MARKET"
	OrderTypeStopMarket   OrderType = "STOP_MARKET"
	OrderTypeTrailingStop OrderType = "TRAILING_STOP_MARKET"
)

// OrderIntent описывает одно действие на бирже. Нигде не сохраняется.
type OrderIntent struct {
	Symbol        string
	Side          OrderSide
	Type          OrderType
	Quantity      decimal.Decimal
	ReduceOnly    bool
	PositionSide  PositionSide
	ClientOrderID string

	StopPrice       string // STOP_MARKET
	ActivationPrice string // TRAILING_STOP_MARKET
	CallbackRate    decimal.Decimal
}

// OrderAck: ответ биржи на размещение.
type OrderAck struct {
	OrderID       string
	ClientOrderID string
	Status        string
	AvgPrice      float64
	ExecutedQty   float64
}

// Filled: по ордеру есть хоть какое-то исполнение.
func (a OrderAck) Filled() bool { return a.ExecutedQty > 0 }

// SymbolFilters: ограничения биржи по тику и лоту.
type SymbolFilters struct {
	Symbol   string
	TickSize decimal.Decimal
	StepSize decimal.Decimal
	MinQty   decimal.Decimal
}

// FallbackFilters консервативные значения на случай, если exchangeInfo недоступен.
func FallbackFilters(symbol string) SymbolFilters {
	return SymbolFilters{
		Symbol:   symbol,
		TickSize: decimal.RequireFromString("0.01"),
		StepSize: decimal.RequireFromString("0.001"),
		MinQty:   decimal.RequireFromString("0.001"),
	}
}
