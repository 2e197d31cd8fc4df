package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"trailing_bot/internal/models"
)

type fakeMarket struct {
	mu      sync.Mutex
	prices  map[string]float64
	tickers map[string]models.Ticker
	candles map[string][]models.Candle
	err     error
}

func (f *fakeMarket) setPrice(sym string, px float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.prices == nil {
		f.prices = make(map[string]float64)
	}
	f.prices[sym] = px
}

func (f *fakeMarket) LastPrice(sym string) float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.prices[sym]
}

func (f *fakeMarket) Ticker(_ context.Context, sym string) (models.Ticker, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.Ticker{}, f.err
	}
	t, ok := f.tickers[sym]
	if !ok {
		return models.Ticker{}, fmt.Errorf("no ticker for %s", sym)
	}
	return t, nil
}

func (f *fakeMarket) Candles(_ context.Context, sym, _ string, _ int) ([]models.Candle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.candles[sym], nil
}

type fakeExec struct {
	mu        sync.Mutex
	buys      []string
	sells     []string
	fill      float64
	sellErr   error
	sellDelay time.Duration // имитация медленной биржи
}

func (f *fakeExec) MarketBuy(_ context.Context, sym string, _ float64) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buys = append(f.buys, sym)
	return f.fill, nil
}

func (f *fakeExec) MarketSell(_ context.Context, sym string, _ float64) (float64, error) {
	f.mu.Lock()
	delay := f.sellDelay
	f.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sellErr != nil {
		return 0, f.sellErr
	}
	f.sells = append(f.sells, sym)
	return f.fill, nil
}

func (f *fakeExec) sellCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sells)
}

func testSettings() models.Settings {
	return models.Settings{
		Enabled:           true,
		MinPriceChangePct: 5,
		MinQuoteVolume:    1_000_000,
		RSIThreshold:      70,
		MaxPositions:      3,
		TrailingPct:       2,
		InvestmentAmount:  100,
		StopLossPct:       5,
		TakeProfitPct:     10,
	}
}

func testEngine(md MarketData, ex OrderExecutor) *Engine {
	if md == nil {
		md = &fakeMarket{}
	}
	if ex == nil {
		ex = &fakeExec{fill: 1}
	}
	return New(testSettings(), Options{
		MonitorInterval: 10 * time.Millisecond,
		RequestTimeout:  time.Second,
	}, md, ex, NewBus())
}

func waitEvent(t *testing.T, ch <-chan models.Event, typ models.EventType) models.Event {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ch:
			if ev.Type == typ {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", typ)
		}
	}
}

func TestCreateManualValidation(t *testing.T) {
	e := testEngine(nil, nil)

	cases := []ManualRequest{
		{Symbol: "", Quantity: 1, TrailingPct: 2, ReferencePrice: 100},
		{Symbol: "BTCUSDT", Quantity: 0, TrailingPct: 2, ReferencePrice: 100},
		{Symbol: "BTCUSDT", Quantity: 1, TrailingPct: 0, ReferencePrice: 100},
		{Symbol: "BTCUSDT", Quantity: 1, TrailingPct: 101, ReferencePrice: 100},
		{Symbol: "BTCUSDT", Quantity: 1, TrailingPct: 2, ReferencePrice: 0},
		{Symbol: "BTCUSDT", Quantity: 1, TrailingPct: 2, ReferencePrice: 100, ActivationPrice: -1},
	}
	for i, req := range cases {
		_, err := e.CreateManual(req)
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Errorf("case %d: expected ValidationError, got %v", i, err)
		}
	}
	if e.OpenCount() != 0 {
		t.Fatalf("rejected requests must not enter the set, got %d", e.OpenCount())
	}
}

func TestCreateManualDefaultsFromSettings(t *testing.T) {
	e := testEngine(nil, nil)

	pos, err := e.CreateManual(ManualRequest{
		Symbol: "BTCUSDT", Quantity: 0.5, TrailingPct: 2, ReferencePrice: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	if pos.Status != models.StatusActive || pos.HighestPrice != 1000 {
		t.Fatalf("expected active/1000, got %s/%.2f", pos.Status, pos.HighestPrice)
	}
	// SL/TP из настроек: 5% и 10%
	if pos.StopLoss != 950 || pos.TakeProfit != 1100 {
		t.Fatalf("expected SL=950 TP=1100, got %.2f/%.2f", pos.StopLoss, pos.TakeProfit)
	}
	e.Stop()
}

func TestCapacityAndDuplicatesUnderConcurrency(t *testing.T) {
	e := testEngine(nil, nil)
	defer e.Stop()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// половина запросов дерётся за один и тот же символ
			sym := fmt.Sprintf("SYM%dUSDT", i%10)
			_, _ = e.CreateManual(ManualRequest{
				Symbol: sym, Quantity: 1, TrailingPct: 2, ReferencePrice: 100,
			})
		}(i)
	}
	wg.Wait()

	if got := e.OpenCount(); got != 3 {
		t.Fatalf("maxPositions=3, got %d open", got)
	}
	seen := make(map[string]bool)
	for _, p := range e.Positions() {
		if seen[p.Symbol] {
			t.Fatalf("duplicate symbol tracked: %s", p.Symbol)
		}
		seen[p.Symbol] = true
	}
}

func TestTopByConfidenceFillsCapacity(t *testing.T) {
	md := &fakeMarket{err: errors.New("no data")} // мониторы вхолостую
	ex := &fakeExec{fill: 10}
	e := testEngine(md, ex)
	defer e.Stop()

	analyses := []models.CoinAnalysis{
		{Symbol: "AUSDT", CurrentPrice: 10, IsGoodForTrailing: true, Confidence: 70},
		{Symbol: "BUSDT", CurrentPrice: 10, IsGoodForTrailing: true, Confidence: 95},
		{Symbol: "CUSDT", CurrentPrice: 10, IsGoodForTrailing: true, Confidence: 80},
		{Symbol: "DUSDT", CurrentPrice: 10, IsGoodForTrailing: true, Confidence: 90},
		{Symbol: "EUSDT", CurrentPrice: 10, IsGoodForTrailing: true, Confidence: 85},
	}
	e.openFromAnalyses(context.Background(), analyses)

	if got := e.OpenCount(); got != 3 {
		t.Fatalf("expected 3 positions, got %d", got)
	}
	want := map[string]bool{"BUSDT": true, "DUSDT": true, "EUSDT": true}
	for _, p := range e.Positions() {
		if !want[p.Symbol] {
			t.Errorf("unexpected symbol opened: %s", p.Symbol)
		}
	}
}

func TestMonitorExitsAndPublishes(t *testing.T) {
	md := &fakeMarket{}
	ex := &fakeExec{fill: 95}
	e := testEngine(md, ex)
	events := e.bus.Subscribe(16)

	if _, err := e.CreateManual(ManualRequest{
		Symbol: "BTCUSDT", Quantity: 2, TrailingPct: 2, ReferencePrice: 100,
	}); err != nil {
		t.Fatal(err)
	}

	md.setPrice("BTCUSDT", 97) // ниже стопа 98

	ev := waitEvent(t, events, models.EventPositionClosed)
	if ev.Reason != models.ExitTrailingStop {
		t.Fatalf("expected trailing_stop, got %s", ev.Reason)
	}
	if ev.Position.Status != models.StatusTriggered {
		t.Fatalf("expected triggered, got %s", ev.Position.Status)
	}
	wantPnL := (95.0 - 100.0) * 2
	if ev.PnL != wantPnL {
		t.Fatalf("expected pnl %.2f, got %.2f", wantPnL, ev.PnL)
	}
	if e.OpenCount() != 0 {
		t.Fatal("closed position must leave the active set")
	}
}

func TestExitOrderFailureMarksError(t *testing.T) {
	md := &fakeMarket{}
	ex := &fakeExec{sellErr: errors.New("api timeout")}
	e := testEngine(md, ex)
	events := e.bus.Subscribe(16)

	_, err := e.CreateManual(ManualRequest{
		Symbol: "BTCUSDT", Quantity: 1, TrailingPct: 2, ReferencePrice: 100,
	})
	if err != nil {
		t.Fatal(err)
	}
	md.setPrice("BTCUSDT", 50)

	ev := waitEvent(t, events, models.EventPositionClosed)
	if ev.Position.Status != models.StatusError {
		t.Fatalf("expected error status, got %s", ev.Position.Status)
	}
	if ev.Err == "" || ev.Position.ErrMsg == "" {
		t.Fatal("error message must be attached")
	}
	if e.OpenCount() != 0 {
		t.Fatal("errored position must be removed from monitoring")
	}
}

func TestStartStopIdempotent(t *testing.T) {
	md := &fakeMarket{err: errors.New("offline")}
	e := testEngine(md, nil)

	if err := e.Start(nil); err != nil {
		t.Fatal(err)
	}
	if err := e.Start(nil); err != nil {
		t.Fatal(err)
	}
	if !e.Running() {
		t.Fatal("expected running")
	}

	e.Stop()
	e.Stop() // второй раз — no-op
	if e.Running() {
		t.Fatal("expected stopped")
	}
}

func TestStopReleasesPositions(t *testing.T) {
	e := testEngine(nil, nil)
	if err := e.Start(nil); err != nil {
		t.Fatal(err)
	}
	events := e.bus.Subscribe(16)

	_, err := e.CreateManual(ManualRequest{
		Symbol: "BTCUSDT", Quantity: 1, TrailingPct: 2, ReferencePrice: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	e.Stop()

	ev := waitEvent(t, events, models.EventPositionClosed)
	if ev.Reason != models.ExitServiceStop {
		t.Fatalf("expected service_stopped, got %s", ev.Reason)
	}
	if e.OpenCount() != 0 {
		t.Fatal("stop must empty the active set")
	}
}

func TestUpdateSettingsValidates(t *testing.T) {
	e := testEngine(nil, nil)

	bad := 0
	if err := e.UpdateSettings(models.SettingsPatch{MaxPositions: &bad}); err == nil {
		t.Fatal("max_positions=0 must be rejected")
	}

	five := 5
	if err := e.UpdateSettings(models.SettingsPatch{MaxPositions: &five}); err != nil {
		t.Fatal(err)
	}
	if got := e.GetSettings().MaxPositions; got != 5 {
		t.Fatalf("expected 5, got %d", got)
	}
}

func TestExitClaimedOnce(t *testing.T) {
	md := &fakeMarket{}
	ex := &fakeExec{fill: 90, sellDelay: 100 * time.Millisecond}
	e := testEngine(md, ex)
	defer e.Stop()

	events := e.bus.Subscribe(16)
	_, err := e.CreateManual(ManualRequest{
		Symbol: "BTCUSDT", Quantity: 1, TrailingPct: 2, ReferencePrice: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	md.setPrice("BTCUSDT", 90) // глубоко под стопом, монитор пойдёт на выход

	// ордер монитора ещё висит на бирже — ручное закрытие не должно
	// продать ту же позицию второй раз
	time.Sleep(30 * time.Millisecond)
	if err := e.ClosePosition(context.Background(), "BTCUSDT"); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, events, models.EventPositionClosed)
	if ev.Reason != models.ExitTrailingStop {
		t.Fatalf("reason = %s, want trailing_stop", ev.Reason)
	}

	select {
	case dup := <-events:
		if dup.Type == models.EventPositionClosed {
			t.Fatalf("position closed twice: %+v", dup)
		}
	case <-time.After(150 * time.Millisecond):
	}

	if n := ex.sellCount(); n != 1 {
		t.Fatalf("position sold %d times, want 1", n)
	}
}

func TestStopKeepsInFlightExitIntact(t *testing.T) {
	md := &fakeMarket{}
	ex := &fakeExec{fill: 90, sellDelay: 100 * time.Millisecond}
	e := testEngine(md, ex)

	events := e.bus.Subscribe(16)
	_, err := e.CreateManual(ManualRequest{
		Symbol: "BTCUSDT", Quantity: 1, TrailingPct: 2, ReferencePrice: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	md.setPrice("BTCUSDT", 90)
	time.Sleep(30 * time.Millisecond)
	e.Stop() // ждёт мониторы, выход в полёте обязан дойти до triggered

	ev := waitEvent(t, events, models.EventPositionClosed)
	if ev.Reason != models.ExitTrailingStop {
		t.Fatalf("reason = %s, want trailing_stop", ev.Reason)
	}
	if ev.Position.Status != models.StatusTriggered {
		t.Fatalf("status = %s, want triggered: stop must not overwrite a claimed exit", ev.Position.Status)
	}

	select {
	case dup := <-events:
		if dup.Type == models.EventPositionClosed {
			t.Fatalf("position closed twice: %+v", dup)
		}
	case <-time.After(150 * time.Millisecond):
	}

	if n := ex.sellCount(); n != 1 {
		t.Fatalf("position sold %d times, want 1", n)
	}
}

func TestClosePositionManual(t *testing.T) {
	ex := &fakeExec{fill: 105}
	e := testEngine(&fakeMarket{}, ex)
	defer e.Stop()

	events := e.bus.Subscribe(16)
	_, err := e.CreateManual(ManualRequest{
		Symbol: "ETHUSDT", Quantity: 2, TrailingPct: 2, ReferencePrice: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	if err := e.ClosePosition(context.Background(), "ETHUSDT"); err != nil {
		t.Fatal(err)
	}

	ev := waitEvent(t, events, models.EventPositionClosed)
	if ev.Reason != models.ExitManual {
		t.Fatalf("reason = %s, want manual", ev.Reason)
	}
	if ev.PnL != 10 { // (105-100)*2
		t.Fatalf("pnl = %.4f, want 10", ev.PnL)
	}
	if e.OpenCount() != 0 {
		t.Fatal("closed position must leave the active set")
	}

	if err := e.ClosePosition(context.Background(), "ETHUSDT"); err == nil {
		t.Fatal("closing an unknown symbol must error")
	}
}
