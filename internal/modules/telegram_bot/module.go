package telegram

import (
	"context"

	"go.uber.org/fx"

	"trailing_bot/internal/engine"
	"trailing_bot/internal/modules/telegram_bot/service"
)

func Module() fx.Option {
	return fx.Module("telegram",
		fx.Provide(
			service.NewTelegram, // func(*config.Config, *engine.Engine) (*service.Telegram, error)
		),
		// подписка на шину + long-polling команд через Lifecycle
		fx.Invoke(
			func(lc fx.Lifecycle, ctx context.Context, t *service.Telegram, bus *engine.Bus) {
				lc.Append(fx.Hook{
					OnStart: func(context.Context) error {
						t.WatchEvents(ctx, bus.Subscribe(128))
						t.Start(ctx)
						return nil
					},
					OnStop: func(context.Context) error {
						t.Stop()
						return nil
					},
				})
			},
		),
	)
}
