package models

import (
	"fmt"
	"strings"
)

// Action: закрытый набор действий, которые приходят во входящем сигнале.
type Action string

const (
	ActionOpenLong   Action = "OPEN_LONG"
	ActionOpenShort  Action = "OPEN_SHORT"
	ActionCloseLong  Action = "CLOSE_LONG"
	ActionCloseShort Action = "CLOSE_SHORT"
)

// ParseAction принимает значение из webhook и отбрасывает всё неизвестное.
func ParseAction(raw string) (Action, error) {
	a := Action(strings.ToUpper(strings.TrimSpace(raw)))
	switch a {
	case ActionOpenLong, ActionOpenShort, ActionCloseLong, ActionCloseShort:
		return a, nil
	}
	return "", fmt.Errorf("unknown action %q", raw)
}

func (a Action) IsOpen() bool  { return a == ActionOpenLong || a == ActionOpenShort }
func (a Action) IsClose() bool { return a == ActionCloseLong || a == ActionCloseShort }

// PositionSide сторона позиции, к которой относится действие.
func (a Action) PositionSide() PositionSide {
	if a == ActionOpenShort || a == ActionCloseShort {
		return PositionShort
	}
	return PositionLong
}

// OrderSide сторона рыночного ордера: открытие long и закрытие short покупают.
func (a Action) OrderSide() OrderSide {
	switch a {
	case ActionOpenLong, ActionCloseShort:
		return SideBuy
	default:
		return SideSell
	}
}

// Short код для client order id.
func (a Action) Short() string {
	switch a {
	case ActionOpenLong:
		return "OL"
	case ActionOpenShort:
		return "OS"
	case ActionCloseLong:
		return "CL"
	case ActionCloseShort:
		return "CS"
	}
	return "XX"
}

type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// PositionSide как у Binance: LONG/SHORT в hedge-режиме, BOTH в one-way.
type PositionSide string

const (
	PositionLong  PositionSide = "LONG"
	PositionShort PositionSide = "SHORT"
	PositionBoth  PositionSide = "BOTH"
)

// Direction: локальный режим символа.
type Direction string

const (
	DirectionBoth  Direction = "BOTH"
	DirectionLong  Direction = "LONG"
	DirectionShort Direction = "SHORT"
)

func ParseDirection(raw string) (Direction, error) {
	d := Direction(strings.ToUpper(strings.TrimSpace(raw)))
	switch d {
	case DirectionBoth, DirectionLong, DirectionShort:
		return d, nil
	}
	return "", fmt.Errorf("unknown direction %q", raw)
}

// GlobalMode ограничивает направление для всех символов сразу.
type GlobalMode string

const (
	GlobalBoth      GlobalMode = "BOTH"
	GlobalLongOnly  GlobalMode = "LONG_ONLY"
	GlobalShortOnly GlobalMode = "SHORT_ONLY"
)

func ParseGlobalMode(raw string) (GlobalMode, error) {
	m := GlobalMode(strings.ToUpper(strings.TrimSpace(raw)))
	switch m {
	case GlobalBoth, GlobalLongOnly, GlobalShortOnly:
		return m, nil
	}
	return "", fmt.Errorf("unknown global mode %q", raw)
}

// Direction сводит LONG_ONLY/SHORT_ONLY к LONG/SHORT.
func (m GlobalMode) Direction() Direction {
	switch m {
	case GlobalLongOnly:
		return DirectionLong
	case GlobalShortOnly:
		return DirectionShort
	}
	return DirectionBoth
}
