package engine

import (
	"context"
	"log"
	"sort"
	"time"

	"github.com/opentracing/opentracing-go"

	"trailing_bot/internal/indicators"
	"trailing_bot/internal/models"
)

// scanLoop — периодический обход вселенной символов. Работает независимо
// от мониторов позиций: медленный fetch тут не задерживает проверки выхода.
func (e *Engine) scanLoop(ctx context.Context) {
	ticker := time.NewTicker(e.opts.ScanInterval)
	defer ticker.Stop()

	e.scanOnce(ctx) // сразу при старте, не ждём первый тик

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.scanOnce(ctx)
		}
	}
}

func (e *Engine) scanOnce(ctx context.Context) {
	e.mu.Lock()
	enabled := e.settings.Enabled
	symbols := append([]string(nil), e.settings.Symbols...)
	settings := e.settings
	e.mu.Unlock()
	if !enabled || len(symbols) == 0 {
		return
	}

	span := opentracing.StartSpan("scan_cycle")
	span.SetTag("symbols", len(symbols))
	defer span.Finish()

	analyses := make([]models.CoinAnalysis, 0, len(symbols))
	for _, sym := range symbols {
		a, err := e.analyzeSymbol(ctx, sym, settings)
		if err != nil {
			// один символ не валит весь цикл
			log.Printf("[SCAN] %s: %v", sym, err)
			e.bus.Publish(models.Event{Type: models.EventAnalysisError, Symbol: sym, Err: err.Error()})
			continue
		}
		analyses = append(analyses, a)
	}

	e.mu.Lock()
	e.lastScan = time.Now()
	e.mu.Unlock()

	e.bus.Publish(models.Event{Type: models.EventAnalysisCompleted, Analyses: analyses})
	e.openFromAnalyses(ctx, analyses)
}

func (e *Engine) analyzeSymbol(ctx context.Context, symbol string, s models.Settings) (models.CoinAnalysis, error) {
	tctx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	defer cancel()

	ticker, err := e.md.Ticker(tctx, symbol)
	if err != nil {
		return models.CoinAnalysis{}, err
	}
	candles, err := e.md.Candles(tctx, symbol, e.opts.CandleInterval, e.opts.CandleLimit)
	if err != nil {
		return models.CoinAnalysis{}, err
	}

	rsi := indicators.RSI(candles, indicators.DefaultRSIPeriod)
	momentum := indicators.Momentum(candles, indicators.DefaultMomentumWindow)
	score := Score(ticker, rsi, momentum, s)

	return models.CoinAnalysis{
		Symbol:            symbol,
		CurrentPrice:      ticker.LastPrice,
		ChangePct24h:      ticker.ChangePct24h,
		Momentum:          momentum,
		RSI:               rsi,
		IsGoodForTrailing: score.IsGoodForTrailing,
		Confidence:        score.Confidence,
		Reasons:           score.Reasons,
	}, nil
}

// openFromAnalyses — решение по результатам цикла: годные кандидаты по
// убыванию скора, пока есть свободные слоты.
func (e *Engine) openFromAnalyses(ctx context.Context, analyses []models.CoinAnalysis) {
	good := make([]models.CoinAnalysis, 0, len(analyses))
	for _, a := range analyses {
		if a.IsGoodForTrailing && a.CurrentPrice > 0 {
			good = append(good, a)
		}
	}
	sort.SliceStable(good, func(i, j int) bool { return good[i].Confidence > good[j].Confidence })

	for _, a := range good {
		e.mu.Lock()
		ok := e.hasCapacityLocked(a.Symbol)
		e.mu.Unlock()
		if !ok {
			continue // лимит или символ уже в работе — молча пропускаем
		}
		if err := e.createFromAnalysis(ctx, a); err != nil {
			log.Printf("[SCAN] open %s failed: %v", a.Symbol, err)
			e.bus.Publish(models.Event{Type: models.EventAnalysisError, Symbol: a.Symbol, Err: err.Error()})
		}
	}
}
