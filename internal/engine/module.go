package engine

import (
	"context"

	"go.uber.org/fx"

	"trailing_bot/internal/modules/config"
)

func Module() fx.Option {
	return fx.Module("engine",
		fx.Provide(
			NewBus,
			func(cfg *config.Config, md MarketData, exec OrderExecutor, bus *Bus) *Engine {
				return New(cfg.Trailing, Options{
					ScanInterval:    cfg.ScanInterval,
					MonitorInterval: cfg.MonitorInterval,
					RequestTimeout:  cfg.RequestTimeout,
					CandleInterval:  cfg.CandleInterval,
					CandleLimit:     cfg.CandleLimit,
				}, md, exec, bus)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config, e *Engine, bus *Bus) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					if cfg.Trailing.Enabled {
						return e.Start(nil)
					}
					return nil
				},
				OnStop: func(context.Context) error {
					e.Stop()
					bus.Close()
					return nil
				},
			})
		}),
	)
}
