package models

import "fmt"

// Settings — процесс-wide настройки движка. Меняются на лету через UpdateSettings.
type Settings struct {
	Enabled bool `yaml:"enabled" mapstructure:"enabled"`

	// Фильтры отбора
	MinPriceChangePct float64 `yaml:"min_price_change_pct" mapstructure:"min_price_change_pct"` // минимальный рост за 24ч, %
	MinQuoteVolume    float64 `yaml:"min_quote_volume" mapstructure:"min_quote_volume"`         // минимальный объём за 24ч в quote
	RSIThreshold      float64 `yaml:"rsi_threshold" mapstructure:"rsi_threshold"`               // выше — перекуплен, не входим

	// Риск / размер
	MaxPositions     int     `yaml:"max_positions" mapstructure:"max_positions"`         // лимит одновременно открытых
	TrailingPct      float64 `yaml:"trailing_pct" mapstructure:"trailing_pct"`           // отступ трейлинг-стопа от пика, %
	InvestmentAmount float64 `yaml:"investment_amount" mapstructure:"investment_amount"` // размер входа в quote
	StopLossPct      float64 `yaml:"stop_loss_pct" mapstructure:"stop_loss_pct"`         // фиксированный SL от входа, %
	TakeProfitPct    float64 `yaml:"take_profit_pct" mapstructure:"take_profit_pct"`     // фиксированный TP от входа, %

	// Вселенная символов, порядок важен
	Symbols []string `yaml:"symbols" mapstructure:"symbols"`
}

// SettingsPatch — частичное обновление: nil-поле не трогаем.
type SettingsPatch struct {
	Enabled           *bool
	MinPriceChangePct *float64
	MinQuoteVolume    *float64
	RSIThreshold      *float64
	MaxPositions      *int
	TrailingPct       *float64
	InvestmentAmount  *float64
	StopLossPct       *float64
	TakeProfitPct     *float64
	Symbols           []string
}

func (s *Settings) Apply(p SettingsPatch) {
	if p.Enabled != nil {
		s.Enabled = *p.Enabled
	}
	if p.MinPriceChangePct != nil {
		s.MinPriceChangePct = *p.MinPriceChangePct
	}
	if p.MinQuoteVolume != nil {
		s.MinQuoteVolume = *p.MinQuoteVolume
	}
	if p.RSIThreshold != nil {
		s.RSIThreshold = *p.RSIThreshold
	}
	if p.MaxPositions != nil {
		s.MaxPositions = *p.MaxPositions
	}
	if p.TrailingPct != nil {
		s.TrailingPct = *p.TrailingPct
	}
	if p.InvestmentAmount != nil {
		s.InvestmentAmount = *p.InvestmentAmount
	}
	if p.StopLossPct != nil {
		s.StopLossPct = *p.StopLossPct
	}
	if p.TakeProfitPct != nil {
		s.TakeProfitPct = *p.TakeProfitPct
	}
	if p.Symbols != nil {
		s.Symbols = dedupSymbols(p.Symbols)
	}
}

// Normalize приводит вселенную к каноничному виду: без дублей, порядок
// первых вхождений сохраняется. Patch-путь дедуплицирует сам, Normalize
// закрывает загрузку из конфига.
func (s *Settings) Normalize() {
	s.Symbols = dedupSymbols(s.Symbols)
}

func (s *Settings) Validate() error {
	if s.MaxPositions < 1 {
		return fmt.Errorf("max_positions must be >= 1, got %d", s.MaxPositions)
	}
	for name, v := range map[string]float64{
		"min_price_change_pct": s.MinPriceChangePct,
		"min_quote_volume":     s.MinQuoteVolume,
		"rsi_threshold":        s.RSIThreshold,
		"trailing_pct":         s.TrailingPct,
		"investment_amount":    s.InvestmentAmount,
		"stop_loss_pct":        s.StopLossPct,
		"take_profit_pct":      s.TakeProfitPct,
	} {
		if v < 0 {
			return fmt.Errorf("%s must be non-negative, got %v", name, v)
		}
	}
	return nil
}

func dedupSymbols(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
