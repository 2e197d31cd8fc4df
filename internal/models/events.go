package models

import "time"

type EventType string

const (
	EventServiceStarted    EventType = "service_started"
	EventServiceStopped    EventType = "service_stopped"
	EventAnalysisCompleted EventType = "analysis_completed"
	EventAnalysisError     EventType = "analysis_error"
	EventPositionCreated   EventType = "position_created"
	EventPositionClosed    EventType = "position_closed"
	EventSettingsUpdated   EventType = "settings_updated"
)

// Event — одно событие жизненного цикла движка. Поля-указатели заполняются
// в зависимости от типа; Position всегда копия, подписчики не видят живой стейт.
type Event struct {
	Type EventType
	At   time.Time

	Position  *TrackedPosition // position_created / position_closed
	Reason    ExitReason       // position_closed
	FillPrice float64          // position_closed, 0 если ордера не было
	PnL       float64          // position_closed

	Analyses []CoinAnalysis // analysis_completed
	Settings *Settings      // settings_updated / service_started

	Symbol string // analysis_error
	Err    string // analysis_error, position_closed со статусом error
}
