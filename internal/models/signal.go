package models

// Signal: входящий торговый сигнал после разбора на границе.
type Signal struct {
	Symbol    string // как пришёл
	Action    Action
	Note      string
	Route     string
	RequestID string
}

type ResultStatus string

const (
	StatusOK       ResultStatus = "ok"
	StatusSkipped  ResultStatus = "skipped"
	StatusRejected ResultStatus = "rejected"
	StatusFailed   ResultStatus = "failed"
	StatusPartial  ResultStatus = "partial"
)

// Result отдаётся вызывающему webhook в теле ответа.
type Result struct {
	Status    ResultStatus `json:"status"`
	Reason    string       `json:"reason,omitempty"`
	Symbol    string       `json:"symbol,omitempty"`
	Action    Action       `json:"action,omitempty"`
	Quantity  string       `json:"quantity,omitempty"`
	OrderID   string       `json:"order_id,omitempty"`
	Entry     float64      `json:"entry,omitempty"`
	StopPrice string       `json:"stop_price,omitempty"`
	TrailAct  string       `json:"trailing_activation,omitempty"`
	Leg       int          `json:"leg,omitempty"`
	Legs      int          `json:"legs_total,omitempty"`
	RequestID string       `json:"request_id,omitempty"`
}
