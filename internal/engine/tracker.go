package engine

import "trailing_bot/internal/models"

// tickDecision — что делать по позиции после очередной цены.
// Чистая функция отдельно от сайд-эффектов, мутирует только вызывающий.
type tickDecision struct {
	Activate   bool    // pending_activation -> active
	NewHighest float64 // > 0 — обновить пик
	Exit       bool
	Reason     models.ExitReason
}

// decideTick — один шаг машины состояний трейлинг-стопа по снапшоту позиции.
//
// pending_activation: ждём цену >= активации, стоп до этого не считается.
// active: подтягиваем пик, затем проверки в фиксированном порядке —
// трейлинг-стоп, фиксированный SL, затем TP. Порядок и есть tie-break:
// если трейлинг и SL сработали одной ценой, причиной пишется трейлинг.
func decideTick(p *models.TrackedPosition, price float64) tickDecision {
	if price <= 0 || p.Status.Terminal() {
		return tickDecision{}
	}

	if p.Status == models.StatusPendingActivation {
		if price >= p.ActivationPrice {
			return tickDecision{Activate: true, NewHighest: price}
		}
		return tickDecision{}
	}

	var d tickDecision
	highest := p.HighestPrice
	if price > highest {
		highest = price
		d.NewHighest = price
	}

	stopPrice := highest * (1 - p.TrailingPct/100)
	switch {
	case price <= stopPrice:
		d.Exit = true
		d.Reason = models.ExitTrailingStop
	case p.StopLoss > 0 && price <= p.StopLoss:
		d.Exit = true
		d.Reason = models.ExitStopLoss
	case p.TakeProfit > 0 && price >= p.TakeProfit:
		d.Exit = true
		d.Reason = models.ExitTakeProfit
	}
	return d
}

// applyTick накатывает решение на позицию. Возвращает true, если нужен выход.
// Вызывается только монитором позиции под её локом.
func applyTick(p *models.TrackedPosition, price float64) (exit bool, reason models.ExitReason) {
	d := decideTick(p, price)
	if d.Activate {
		p.Status = models.StatusActive
		p.HighestPrice = d.NewHighest
		return false, ""
	}
	if d.NewHighest > p.HighestPrice {
		p.HighestPrice = d.NewHighest
	}
	return d.Exit, d.Reason
}
