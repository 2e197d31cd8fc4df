package indicators

import "trailing_bot/internal/models"

const (
	DefaultRSIPeriod      = 14
	DefaultMomentumWindow = 10
)

// RSI — Relative Strength Index по Уайлдеру.
// Меньше period+1 свечей — нейтральные 50. Нет падений за окно — 100.
func RSI(candles []models.Candle, period int) float64 {
	if period <= 0 {
		period = DefaultRSIPeriod
	}
	if len(candles) < period+1 {
		return 50
	}

	// сид: среднее по первым period дельтам
	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		change := candles[i].Close - candles[i-1].Close
		if change > 0 {
			avgGain += change
		} else {
			avgLoss += -change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	// сглаживание остатка серии
	for i := period + 1; i < len(candles); i++ {
		change := candles[i].Close - candles[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = (avgGain*float64(period-1) + gain) / float64(period)
		avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
	}

	if avgLoss == 0 {
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// Momentum — класс импульса по процентному изменению внутри последних window закрытий.
// База — closes[n-window], так что результат зависит только от хвоста серии.
func Momentum(candles []models.Candle, window int) models.MomentumClass {
	if window <= 0 {
		window = DefaultMomentumWindow
	}
	n := len(candles)
	if n < window {
		return models.MomentumSideways
	}

	base := candles[n-window].Close
	last := candles[n-1].Close
	if base <= 0 {
		return models.MomentumSideways
	}

	changePct := (last - base) / base * 100
	switch {
	case changePct > 3:
		return models.MomentumStrongUp
	case changePct > 0.5:
		return models.MomentumUp
	case changePct < -3:
		return models.MomentumStrongDown
	case changePct < -0.5:
		return models.MomentumDown
	default:
		return models.MomentumSideways
	}
}
