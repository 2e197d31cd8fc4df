package models

// MomentumClass — классификация импульса по последним закрытиям.
type MomentumClass string

const (
	MomentumStrongUp   MomentumClass = "strong_up"
	MomentumUp         MomentumClass = "up"
	MomentumSideways   MomentumClass = "sideways"
	MomentumDown       MomentumClass = "down"
	MomentumStrongDown MomentumClass = "strong_down"
)

// CoinAnalysis — результат одного прохода сканера по символу.
// Живёт один тик сканера, после создания не мутируется.
type CoinAnalysis struct {
	Symbol       string
	CurrentPrice float64
	ChangePct24h float64
	Momentum     MomentumClass
	RSI          float64

	IsGoodForTrailing bool
	Confidence        float64  // 0..100
	Reasons           []string // человекочитаемые причины скора, по порядку
}
