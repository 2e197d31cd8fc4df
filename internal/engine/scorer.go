package engine

import (
	"fmt"

	"trailing_bot/internal/helper"
	"trailing_bot/internal/models"
)

// Веса скоринга и порог входа. Policy-константы: вынесены наверх,
// но менять их — значит менять поведение отбора целиком.
const (
	scorePriceChange = 30
	scoreVolume      = 20
	scoreRSI         = 30
	scoreMomentum    = 20

	goodConfidenceMin = 70
)

// ScoreResult — вердикт скорера по одному символу.
type ScoreResult struct {
	IsGoodForTrailing bool
	Confidence        float64
	Reasons           []string
}

// Score — аддитивный скоринг кандидата: каждая метрика либо даёт свой
// фиксированный вес, либо ничего. Сумма зажимается в [0,100].
func Score(ticker models.Ticker, rsi float64, momentum models.MomentumClass, s models.Settings) ScoreResult {
	var res ScoreResult

	if ticker.ChangePct24h > s.MinPriceChangePct {
		res.Confidence += scorePriceChange
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("рост за 24ч %.2f%% > %.2f%%", ticker.ChangePct24h, s.MinPriceChangePct))
	}
	if ticker.QuoteVolume24h > s.MinQuoteVolume {
		res.Confidence += scoreVolume
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("объём за 24ч %.0f > %.0f", ticker.QuoteVolume24h, s.MinQuoteVolume))
	}
	if rsi < s.RSIThreshold {
		res.Confidence += scoreRSI
		res.Reasons = append(res.Reasons,
			fmt.Sprintf("RSI %.1f < %.1f, не перекуплен", rsi, s.RSIThreshold))
	}
	if momentum == models.MomentumStrongUp || momentum == models.MomentumUp {
		res.Confidence += scoreMomentum
		res.Reasons = append(res.Reasons, fmt.Sprintf("импульс %s", momentum))
	}

	res.Confidence = helper.Clamp(res.Confidence, 0, 100)
	res.IsGoodForTrailing = res.Confidence >= goodConfidenceMin
	return res
}
