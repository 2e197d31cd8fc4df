package binance

import (
	"context"

	"go.uber.org/fx"

	"trailing_bot/internal/engine"
	"trailing_bot/internal/modules/binance/service"
	"trailing_bot/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("binance",
		fx.Provide(
			service.NewClient,
			func(c *service.Client) engine.MarketData { return c },
			func(c *service.Client) engine.OrderExecutor { return c },
		),
		// стрим цен по вселенной из конфига; пополнение вселенной на лету
		// обслуживается REST-фолбэком монитора
		fx.Invoke(func(lc fx.Lifecycle, ctx context.Context, cfg *config.Config, c *service.Client) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					c.StreamPrices(ctx, cfg.Trailing.Symbols)
					return nil
				},
			})
		}),
	)
}
