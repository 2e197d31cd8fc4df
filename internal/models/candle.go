package models

import "time"

// Candle — закрытая свеча, oldest first в сериях.
type Candle struct {
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Start  time.Time
}

// Ticker — срез 24ч статистики по символу.
type Ticker struct {
	Symbol         string
	LastPrice      float64
	ChangePct24h   float64 // в процентах, не долях
	QuoteVolume24h float64
}
