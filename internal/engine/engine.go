package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trailing_bot/internal/helper"
	"trailing_bot/internal/models"
)

// MarketData — внешний поставщик рыночных данных.
// LastPrice — быстрый путь из WS-кеша, 0 если цены ещё нет.
type MarketData interface {
	Ticker(ctx context.Context, symbol string) (models.Ticker, error)
	Candles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)
	LastPrice(symbol string) float64
}

// OrderExecutor — внешнее исполнение ордеров, возвращает цену исполнения.
type OrderExecutor interface {
	MarketSell(ctx context.Context, symbol string, qty float64) (float64, error)
	MarketBuy(ctx context.Context, symbol string, qty float64) (float64, error)
}

// ValidationError — отказ ручного создания, позиция не попадает в активный сет.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s — %s", e.Field, e.Msg)
}

// ManualRequest — явный запрос на отслеживание позиции.
type ManualRequest struct {
	Symbol          string
	Quantity        float64
	TrailingPct     float64
	ReferencePrice  float64
	ActivationPrice float64 // 0 — трейлинг активен сразу
	StopLossPct     float64 // 0 — взять из настроек
	TakeProfitPct   float64 // 0 — взять из настроек
}

// posRuntime — позиция плюс её рантайм: лок и ручка отмены монитора.
// Cancel хранится отдельно от самой позиции, наружу не отдаётся.
type posRuntime struct {
	mu      sync.Mutex
	pos     *models.TrackedPosition
	cancel  context.CancelFunc
	closing bool // выход уже в полёте, второй продажи не будет
}

// claimExit атомарно забирает право на выход. false — позиция терминальна
// или выход уже забрал кто-то другой (монитор, ручное закрытие, Stop).
func (rt *posRuntime) claimExit() bool {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	if rt.closing || rt.pos.Status.Terminal() {
		return false
	}
	rt.closing = true
	return true
}

type Options struct {
	ScanInterval    time.Duration
	MonitorInterval time.Duration
	RequestTimeout  time.Duration
	CandleInterval  string
	CandleLimit     int
}

func (o *Options) withDefaults() {
	if o.ScanInterval <= 0 {
		o.ScanInterval = 30 * time.Second
	}
	if o.MonitorInterval <= 0 {
		o.MonitorInterval = 5 * time.Second
	}
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = 10 * time.Second
	}
	if o.CandleInterval == "" {
		o.CandleInterval = "1h"
	}
	if o.CandleLimit <= 0 {
		o.CandleLimit = 50
	}
}

// Engine владеет сетом отслеживаемых позиций. Все создания и удаления идут
// через него: check-and-create атомарен под mu, лимит и уникальность символа
// не ломаются при гонке сканера с ручным созданием.
type Engine struct {
	mu        sync.Mutex
	settings  models.Settings
	positions map[string]*posRuntime // key = symbol
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastScan  time.Time

	opts Options
	md   MarketData
	exec OrderExecutor
	bus  *Bus
}

func New(settings models.Settings, opts Options, md MarketData, exec OrderExecutor, bus *Bus) *Engine {
	opts.withDefaults()
	return &Engine{
		settings:  settings,
		positions: make(map[string]*posRuntime),
		opts:      opts,
		md:        md,
		exec:      exec,
		bus:       bus,
	}
}

// Start запускает цикл сканера. Повторный вызов — no-op.
// override применяется к настройкам до старта.
func (e *Engine) Start(override *models.SettingsPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if override != nil {
		next := e.settings
		next.Apply(*override)
		if err := next.Validate(); err != nil {
			return err
		}
		e.settings = next
	}
	if e.running {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.running = true
	e.settings.Enabled = true

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.scanLoop(ctx)
	}()

	snap := e.settings
	e.bus.Publish(models.Event{Type: models.EventServiceStarted, Settings: &snap})
	log.Printf("[ENGINE] started, %d symbols, max=%d", len(snap.Symbols), snap.MaxPositions)
	return nil
}

// Stop гасит сканер и мониторы всех позиций, сами позиции помечаются closed
// и выкидываются из сета. Идемпотентен. Позиции, созданные руками без
// запущенного сканера, тоже освобождаются.
func (e *Engine) Stop() {
	e.mu.Lock()
	wasRunning := e.running
	e.running = false
	e.settings.Enabled = false
	cancel := e.cancel
	e.cancel = nil

	closed := make([]models.TrackedPosition, 0, len(e.positions))
	for sym, rt := range e.positions {
		rt.cancel()
		rt.mu.Lock()
		if rt.closing || rt.pos.Status.Terminal() {
			// выход уже в полёте: exitPosition допродаст и сам опубликует
			// закрытие, второй раз позицию не трогаем
			rt.mu.Unlock()
			delete(e.positions, sym)
			continue
		}
		rt.closing = true
		rt.pos.Status = models.StatusClosed
		closed = append(closed, *rt.pos)
		rt.mu.Unlock()
		delete(e.positions, sym)
	}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()

	for i := range closed {
		e.bus.Publish(models.Event{
			Type:     models.EventPositionClosed,
			Position: &closed[i],
			Reason:   models.ExitServiceStop,
		})
	}
	if !wasRunning && len(closed) == 0 {
		return
	}
	if wasRunning {
		e.bus.Publish(models.Event{Type: models.EventServiceStopped})
	}
	log.Printf("[ENGINE] stopped, %d positions released", len(closed))
}

func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) GetSettings() models.Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

func (e *Engine) UpdateSettings(patch models.SettingsPatch) error {
	e.mu.Lock()
	next := e.settings
	next.Apply(patch)
	if err := next.Validate(); err != nil {
		e.mu.Unlock()
		return err
	}
	e.settings = next
	snap := next
	e.mu.Unlock()

	e.bus.Publish(models.Event{Type: models.EventSettingsUpdated, Settings: &snap})
	return nil
}

func (e *Engine) LastScan() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastScan
}

// Positions — копии всех отслеживаемых позиций.
func (e *Engine) Positions() []models.TrackedPosition {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.TrackedPosition, 0, len(e.positions))
	for _, rt := range e.positions {
		rt.mu.Lock()
		out = append(out, *rt.pos)
		rt.mu.Unlock()
	}
	return out
}

func (e *Engine) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.positions)
}

// CreateManual — ручной путь создания. Валидация синхронная,
// невалидный запрос в активный сет не попадает.
func (e *Engine) CreateManual(req ManualRequest) (models.TrackedPosition, error) {
	if req.Symbol == "" {
		return models.TrackedPosition{}, &ValidationError{Field: "symbol", Msg: "required"}
	}
	if req.Quantity <= 0 {
		return models.TrackedPosition{}, &ValidationError{Field: "quantity", Msg: "must be > 0"}
	}
	if req.TrailingPct <= 0 || req.TrailingPct > 100 {
		return models.TrackedPosition{}, &ValidationError{Field: "trailingPct", Msg: "must be in (0, 100]"}
	}
	if req.ReferencePrice <= 0 {
		return models.TrackedPosition{}, &ValidationError{Field: "referencePrice", Msg: "must be > 0"}
	}
	if req.ActivationPrice < 0 {
		return models.TrackedPosition{}, &ValidationError{Field: "activationPrice", Msg: "must be > 0 when present"}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	slPct := req.StopLossPct
	if slPct <= 0 {
		slPct = e.settings.StopLossPct
	}
	tpPct := req.TakeProfitPct
	if tpPct <= 0 {
		tpPct = e.settings.TakeProfitPct
	}

	pos := &models.TrackedPosition{
		Symbol:          req.Symbol,
		EntryPrice:      req.ReferencePrice,
		Quantity:        req.Quantity,
		TrailingPct:     req.TrailingPct,
		StopLoss:        req.ReferencePrice * (1 - slPct/100),
		TakeProfit:      req.ReferencePrice * (1 + tpPct/100),
		ActivationPrice: req.ActivationPrice,
	}
	rt, err := e.trackLocked(pos)
	if err != nil {
		return models.TrackedPosition{}, err
	}
	return *rt.pos, nil
}

// createFromAnalysis — автоматический путь: рыночная покупка по сигналу
// сканера, вход по фактическому филлу. Вызывается без e.mu.
func (e *Engine) createFromAnalysis(ctx context.Context, a models.CoinAnalysis) error {
	e.mu.Lock()
	if !e.hasCapacityLocked(a.Symbol) {
		e.mu.Unlock()
		return nil // не ошибка: лимит или символ уже отслеживается
	}
	settings := e.settings
	e.mu.Unlock()

	// вниз до шага лота, иначе биржа отобьёт ордер на хвосте точности
	qty := helper.RoundDownToStep(settings.InvestmentAmount/a.CurrentPrice, 1e-6)
	if qty <= 0 {
		return fmt.Errorf("investment %.2f too small for %s at %.6f",
			settings.InvestmentAmount, a.Symbol, a.CurrentPrice)
	}

	buyCtx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
	fill, err := e.exec.MarketBuy(buyCtx, a.Symbol, qty)
	cancel()
	if err != nil {
		return fmt.Errorf("market buy %s: %w", a.Symbol, err)
	}
	if fill <= 0 {
		fill = a.CurrentPrice
	}

	pos := &models.TrackedPosition{
		Symbol:      a.Symbol,
		EntryPrice:  fill,
		Quantity:    qty,
		TrailingPct: settings.TrailingPct,
		StopLoss:    fill * (1 - settings.StopLossPct/100),
		TakeProfit:  fill * (1 + settings.TakeProfitPct/100),
		Confidence:  a.Confidence,
	}

	e.mu.Lock()
	_, err = e.trackLocked(pos)
	e.mu.Unlock()
	if err != nil {
		// гонка: пока покупали, слот заняли — позицию всё равно ведём? нет,
		// лимит жёсткий, сразу продаём обратно
		sellCtx, cancelSell := context.WithTimeout(context.Background(), e.opts.RequestTimeout)
		_, _ = e.exec.MarketSell(sellCtx, a.Symbol, qty)
		cancelSell()
		return err
	}
	return nil
}

func (e *Engine) hasCapacityLocked(symbol string) bool {
	if len(e.positions) >= e.settings.MaxPositions {
		return false
	}
	_, exists := e.positions[symbol]
	return !exists
}

// trackLocked регистрирует позицию и поднимает её монитор. Держит e.mu.
func (e *Engine) trackLocked(pos *models.TrackedPosition) (*posRuntime, error) {
	if len(e.positions) >= e.settings.MaxPositions {
		return nil, fmt.Errorf("capacity: %d positions already open", len(e.positions))
	}
	if _, exists := e.positions[pos.Symbol]; exists {
		return nil, fmt.Errorf("capacity: %s already tracked", pos.Symbol)
	}

	now := time.Now()
	pos.CreatedAt = now
	pos.ID = models.PositionID(pos.Symbol, now)
	if pos.ActivationPrice > 0 && pos.ActivationPrice > pos.EntryPrice {
		pos.Status = models.StatusPendingActivation
	} else {
		pos.Status = models.StatusActive
		pos.HighestPrice = pos.EntryPrice
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt := &posRuntime{pos: pos, cancel: cancel}
	e.positions[pos.Symbol] = rt

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.monitorLoop(ctx, rt)
	}()

	snap := *pos
	e.bus.Publish(models.Event{Type: models.EventPositionCreated, Position: &snap})
	log.Printf("[POS] created %s entry=%.6f qty=%.6f trail=%.2f%% status=%s",
		pos.Symbol, pos.EntryPrice, pos.Quantity, pos.TrailingPct, pos.Status)
	return rt, nil
}

// monitorLoop — независимый цикл одной позиции. Терминальный статус или
// отмена контекста его останавливают, дальше тиков не будет.
func (e *Engine) monitorLoop(ctx context.Context, rt *posRuntime) {
	ticker := time.NewTicker(e.opts.MonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if e.monitorTick(ctx, rt) {
				return
			}
		}
	}
}

// monitorTick возвращает true, когда позиция дошла до терминального состояния.
func (e *Engine) monitorTick(ctx context.Context, rt *posRuntime) bool {
	symbol := rt.pos.Symbol

	price := e.md.LastPrice(symbol)
	if price <= 0 {
		tctx, cancel := context.WithTimeout(ctx, e.opts.RequestTimeout)
		t, err := e.md.Ticker(tctx, symbol)
		cancel()
		if err != nil {
			log.Printf("[POS] %s price fetch failed: %v", symbol, err)
			return false // переживём тик, позиция не трогается
		}
		price = t.LastPrice
	}

	rt.mu.Lock()
	if rt.closing || rt.pos.Status.Terminal() {
		rt.mu.Unlock()
		return true
	}
	exit, reason := applyTick(rt.pos, price)
	if exit {
		// выход забираем под тем же локом, что и решение: между решением
		// и ордером никто не втиснет вторую продажу
		rt.closing = true
	}
	rt.mu.Unlock()
	if !exit {
		return false
	}

	e.exitPosition(ctx, rt, reason)
	return true
}

// exitPosition продаёт по рынку и закрывает позицию. Вызывается ровно один
// раз на позицию, только тем, кто забрал выход через claimExit. Ошибка
// исполнения — статус error, без ретраев: разбор руками, движок дальше не трогает.
// Ордер уходит на фоне Background: раз решение о выходе принято, отмена
// монитора не должна его оборвать.
func (e *Engine) exitPosition(_ context.Context, rt *posRuntime, reason models.ExitReason) {
	symbol := rt.pos.Symbol

	sellCtx, cancel := context.WithTimeout(context.Background(), e.opts.RequestTimeout)
	fill, err := e.exec.MarketSell(sellCtx, symbol, rt.pos.Quantity)
	cancel()

	rt.mu.Lock()
	now := time.Now()
	if err != nil {
		rt.pos.Status = models.StatusError
		rt.pos.ErrMsg = err.Error()
	} else {
		rt.pos.Status = models.StatusTriggered
		rt.pos.TriggeredAt = now
	}
	snap := *rt.pos
	rt.mu.Unlock()

	e.removePosition(symbol, rt)

	ev := models.Event{
		Type:     models.EventPositionClosed,
		Position: &snap,
		Reason:   reason,
	}
	if err != nil {
		ev.Err = err.Error()
		log.Printf("[POS] %s exit order failed (%s): %v", symbol, reason, err)
	} else {
		ev.FillPrice = fill
		ev.PnL = snap.PnL(fill)
		log.Printf("[POS] %s closed (%s) fill=%.6f pnl=%.4f", symbol, reason, fill, ev.PnL)
	}
	e.bus.Publish(ev)
}

// ClosePosition — ручное закрытие по символу.
func (e *Engine) ClosePosition(ctx context.Context, symbol string) error {
	e.mu.Lock()
	rt, ok := e.positions[symbol]
	e.mu.Unlock()
	if !ok {
		return fmt.Errorf("position %s not found", symbol)
	}

	if !rt.claimExit() {
		return nil // терминальна или выход уже идёт — второй продажи не делаем
	}
	e.exitPosition(ctx, rt, models.ExitManual)
	return nil
}

func (e *Engine) removePosition(symbol string, rt *posRuntime) {
	rt.cancel()
	e.mu.Lock()
	if cur, ok := e.positions[symbol]; ok && cur == rt {
		delete(e.positions, symbol)
	}
	e.mu.Unlock()
}
