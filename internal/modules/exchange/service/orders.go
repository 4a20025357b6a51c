package service

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"signal_trader/internal/models"
	"signal_trader/internal/monitor"
)

type orderResp struct {
	OrderID       int64  `json:"orderId"`
	ClientOrderID string `json:"clientOrderId"`
	Status        string `json:"status"`
	AvgPrice      string `json:"avgPrice"`
	ExecutedQty   string `json:"executedQty"`
}

// OrderParams: параметры /fapi/v1/order для интента.
// В hedge-режиме идёт positionSide, reduceOnly биржа там не принимает.
func OrderParams(in models.OrderIntent, hedge bool) url.Values {
	p := url.Values{}
	p.Set("symbol", in.Symbol)
	p.Set("side", string(in.Side))
	p.Set("type", string(in.Type))
	p.Set("quantity", in.Quantity.String())
	if in.ClientOrderID != "" {
		p.Set("newClientOrderId", in.ClientOrderID)
	}

	switch in.Type {
	case models.OrderTypeMarket:
		p.Set("newOrderRespType", "RESULT")
	case models.OrderTypeStopMarket:
		p.Set("stopPrice", in.StopPrice)
		p.Set("workingType", "MARK_PRICE")
	case models.OrderTypeTrailingStop:
		if in.ActivationPrice != "" {
			p.Set("activationPrice", in.ActivationPrice)
		}
		p.Set("callbackRate", in.CallbackRate.String())
		p.Set("workingType", "MARK_PRICE")
	}

	if hedge {
		if in.PositionSide != "" && in.PositionSide != models.PositionBoth {
			p.Set("positionSide", string(in.PositionSide))
		}
	} else if in.ReduceOnly {
		p.Set("reduceOnly", "true")
	}
	return p
}

// PlaceOrder отправляет ордер. ClientOrderID один на все ретраи, дубль биржа отклонит.
func (c *Client) PlaceOrder(ctx context.Context, in models.OrderIntent) (models.OrderAck, error) {
	body, err := c.Call(ctx, http.MethodPost, "/fapi/v1/order", OrderParams(in, c.cfg.HedgeMode), true)
	monitor.Orders.WithLabelValues(string(in.Type), monitor.OrderResult(err)).Inc()
	if err != nil {
		return models.OrderAck{}, fmt.Errorf("place %s %s %s: %w", in.Type, in.Side, in.Symbol, err)
	}
	ack, err := decodeAck(body)
	if err != nil {
		return models.OrderAck{}, err
	}

	c.log.Info("order placed",
		zap.String("symbol", in.Symbol),
		zap.String("type", string(in.Type)),
		zap.String("side", string(in.Side)),
		zap.String("client_order_id", in.ClientOrderID),
		zap.String("order_id", ack.OrderID),
		zap.String("status", ack.Status),
	)
	return ack, nil
}

// QueryOrder: GET /fapi/v1/order по нашему clientOrderId.
// Нужен, когда вход мог исполниться, а ответ потерялся.
func (c *Client) QueryOrder(ctx context.Context, symbol, clientOrderID string) (models.OrderAck, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("origClientOrderId", clientOrderID)

	body, err := c.Call(ctx, http.MethodGet, "/fapi/v1/order", q, true)
	if err != nil {
		if ae, ok := AsAPIError(err); ok && ae.Code == codeOrderNotExisted {
			return models.OrderAck{}, fmt.Errorf("query %s %s: %w", symbol, clientOrderID, ErrOrderNotFound)
		}
		return models.OrderAck{}, fmt.Errorf("query %s %s: %w", symbol, clientOrderID, err)
	}
	ack, err := decodeAck(body)
	if err != nil {
		return models.OrderAck{}, err
	}
	c.log.Info("order queried",
		zap.String("symbol", symbol),
		zap.String("client_order_id", clientOrderID),
		zap.String("order_id", ack.OrderID),
		zap.String("status", ack.Status),
		zap.Float64("executed_qty", ack.ExecutedQty),
	)
	return ack, nil
}

func decodeAck(body []byte) (models.OrderAck, error) {
	var r orderResp
	if err := sonic.Unmarshal(body, &r); err != nil {
		return models.OrderAck{}, fmt.Errorf("order decode: %w", err)
	}
	ack := models.OrderAck{
		OrderID:       strconv.FormatInt(r.OrderID, 10),
		ClientOrderID: r.ClientOrderID,
		Status:        r.Status,
	}
	ack.AvgPrice, _ = strconv.ParseFloat(r.AvgPrice, 64)
	ack.ExecutedQty, _ = strconv.ParseFloat(r.ExecutedQty, 64)
	return ack, nil
}
