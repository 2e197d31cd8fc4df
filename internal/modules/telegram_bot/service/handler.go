package service

import (
	"context"
	"fmt"
	"strings"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"gopkg.in/yaml.v2"

	"trailing_bot/internal/models"
)

// WatchEvents — цикл подписчика шины: каждое событие движка в чат.
func (t *Telegram) WatchEvents(ctx context.Context, events <-chan models.Event) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				t.renderEvent(ev)
			}
		}
	}()
}

func (t *Telegram) renderEvent(ev models.Event) {
	switch ev.Type {
	case models.EventServiceStarted:
		t.Sendf("🚀 Трейлинг запущен | символов=%d | лимит=%d",
			len(ev.Settings.Symbols), ev.Settings.MaxPositions)
	case models.EventServiceStopped:
		t.Send("🛑 Трейлинг остановлен")
	case models.EventPositionCreated:
		p := ev.Position
		if p.Status == models.StatusPendingActivation {
			t.Sendf("👀 [%s] Позиция создана, ждём активацию %.6f | вход=%.6f qty=%.6f trail=%.2f%%",
				p.Symbol, p.ActivationPrice, p.EntryPrice, p.Quantity, p.TrailingPct)
			return
		}
		t.Sendf("✅ [%s] Позиция открыта | вход=%.6f qty=%.6f trail=%.2f%% SL=%.6f TP=%.6f conf=%.0f",
			p.Symbol, p.EntryPrice, p.Quantity, p.TrailingPct, p.StopLoss, p.TakeProfit, p.Confidence)
	case models.EventPositionClosed:
		p := ev.Position
		if p.Status == models.StatusError {
			t.Sendf("❗️ [%s] Ошибка выхода (%s): %s", p.Symbol, ev.Reason, ev.Err)
			return
		}
		emoji := "💰"
		if ev.PnL < 0 {
			emoji = "🔻"
		}
		t.Sendf("%s [%s] Закрыто (%s) | fill=%.6f pnl=%.4f", emoji, p.Symbol, ev.Reason, ev.FillPrice, ev.PnL)
	case models.EventSettingsUpdated:
		t.Send("⚙️ Настройки обновлены")
	}
}

// Start: long-polling команд управления.
func (t *Telegram) Start(ctx context.Context) {
	if t == nil || t.bot == nil {
		return
	}

	u := tgbot.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"message"}

	updates := t.bot.GetUpdatesChan(u)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case upd := <-updates:
				if upd.Message == nil || upd.Message.Chat == nil ||
					upd.Message.Chat.ID != t.chatID || !upd.Message.IsCommand() {
					continue
				}
				switch upd.Message.Command() {
				case "on":
					if err := t.engine.Start(nil); err != nil {
						t.Sendf("❗️ Не запустился: %v", err)
					}
				case "off":
					t.engine.Stop()
				case "status":
					t.handleStatus()
				case "positions":
					t.handlePositions()
				case "close":
					t.handleClose(ctx, upd.Message.CommandArguments())
				case "settings":
					t.handleSettings()
				}
			}
		}
	}()
}

func (t *Telegram) handleStatus() {
	running := "⏸ остановлен"
	if t.engine.Running() {
		running = "▶️ работает"
	}
	last := "ещё не было"
	if ts := t.engine.LastScan(); !ts.IsZero() {
		last = ts.Format("15:04:05")
	}
	t.Sendf("🩺 %s | позиций=%d | последний скан: %s", running, t.engine.OpenCount(), last)
}

func (t *Telegram) handlePositions() {
	positions := t.engine.Positions()
	if len(positions) == 0 {
		t.Send("📭 Отслеживаемых позиций нет")
		return
	}

	var b strings.Builder
	b.WriteString("📊 Позиции:\n")
	for _, p := range positions {
		fmt.Fprintf(&b, "- %s [%s] вход=%.6f qty=%.6f пик=%.6f стоп=%.6f\n",
			p.Symbol, p.Status, p.EntryPrice, p.Quantity, p.HighestPrice, p.StopPrice())
	}
	t.Send(b.String())
}

func (t *Telegram) handleClose(ctx context.Context, args string) {
	symbol := strings.ToUpper(strings.TrimSpace(args))
	if symbol == "" {
		t.Send("Использование: /close SYMBOL")
		return
	}
	if err := t.engine.ClosePosition(ctx, symbol); err != nil {
		t.Sendf("❗️ %v", err)
		return
	}
	t.Sendf("📤 [%s] Позиция закрыта вручную", symbol)
}

func (t *Telegram) handleSettings() {
	s := t.engine.GetSettings()
	out, err := yaml.Marshal(s)
	if err != nil {
		t.Sendf("❗️ %v", err)
		return
	}
	t.Send("⚙️ Настройки:\n" + string(out))
}
