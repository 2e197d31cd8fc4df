package models

import (
	"fmt"
	"time"
)

type PositionStatus string

const (
	StatusPendingActivation PositionStatus = "pending_activation"
	StatusActive            PositionStatus = "active"
	StatusTriggered         PositionStatus = "triggered"
	StatusClosed            PositionStatus = "closed"
	StatusError             PositionStatus = "error"
)

// Terminal — после этих статусов позиция больше не мутируется.
func (s PositionStatus) Terminal() bool {
	return s == StatusTriggered || s == StatusClosed || s == StatusError
}

type ExitReason string

const (
	ExitTrailingStop ExitReason = "trailing_stop"
	ExitStopLoss     ExitReason = "stop_loss"
	ExitTakeProfit   ExitReason = "take_profit"
	ExitManual       ExitReason = "manual"
	ExitServiceStop  ExitReason = "service_stopped"
)

// TrackedPosition — одна отслеживаемая позиция (авто или ручная).
// SL/TP фиксируются при создании и не пересчитываются.
type TrackedPosition struct {
	ID     string
	Symbol string

	EntryPrice  float64
	Quantity    float64
	TrailingPct float64
	StopLoss    float64 // абсолютная цена
	TakeProfit  float64 // абсолютная цена

	// ActivationPrice > 0 — трейлинг включается только после достижения
	ActivationPrice float64

	Confidence float64 // скор на момент входа, 0 для ручных

	Status       PositionStatus
	HighestPrice float64 // пик с момента активации, не убывает

	CreatedAt   time.Time
	TriggeredAt time.Time // zero, пока не сработал выход
	ErrMsg      string    // заполнен при Status == error
}

// StopPrice — текущий уровень трейлинг-стопа. До активации стоп не считается.
func (p *TrackedPosition) StopPrice() float64 {
	if p.Status != StatusActive || p.HighestPrice <= 0 {
		return 0
	}
	return p.HighestPrice * (1 - p.TrailingPct/100)
}

// PnL — реализованный результат по цене исполнения.
func (p *TrackedPosition) PnL(fillPrice float64) float64 {
	return (fillPrice - p.EntryPrice) * p.Quantity
}

func PositionID(symbol string, createdAt time.Time) string {
	return fmt.Sprintf("%s-%d", symbol, createdAt.UnixNano())
}
