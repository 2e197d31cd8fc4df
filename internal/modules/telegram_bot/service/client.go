package service

import (
	"fmt"

	tgbot "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"trailing_bot/internal/engine"
	"trailing_bot/internal/modules/config"
)

// Telegram — наблюдатель событий движка плюс пара команд управления.
// Без токена превращается в no-op, движку телеграм не обязателен.
type Telegram struct {
	bot    *tgbot.BotAPI
	chatID int64
	engine *engine.Engine
}

func NewTelegram(cfg *config.Config, eng *engine.Engine) (*Telegram, error) {
	t := &Telegram{chatID: cfg.Telegram.ChatID, engine: eng}
	if cfg.Telegram.Token == "" {
		return t, nil
	}
	b, err := tgbot.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, err
	}
	t.bot = b
	return t, nil
}

func (t *Telegram) Send(msg string) {
	if t == nil || t.bot == nil || t.chatID == 0 {
		return
	}
	_, _ = t.bot.Send(tgbot.NewMessage(t.chatID, msg))
}

func (t *Telegram) Sendf(format string, args ...any) { t.Send(fmt.Sprintf(format, args...)) }

func (t *Telegram) Stop() {
	if t == nil || t.bot == nil {
		return
	}
	t.bot.StopReceivingUpdates()
}
