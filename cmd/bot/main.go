package main

import (
	"context"
	"log"

	"go.uber.org/fx"

	"trailing_bot/internal/engine"
	"trailing_bot/internal/modules/binance"
	"trailing_bot/internal/modules/config"
	"trailing_bot/internal/modules/health"
	"trailing_bot/internal/modules/history"
	"trailing_bot/internal/modules/postgres"
	telegram "trailing_bot/internal/modules/telegram_bot"
	"trailing_bot/pkg/logger"
	"trailing_bot/pkg/tracing"
)

func main() {
	if err := logger.Init(); err != nil {
		log.Fatal(err)
	}
	logger.SetServiceName("trailing_bot")
	tracing.SetServiceName("trailing_bot")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		fx.Invoke(func(lc fx.Lifecycle, cfg *config.Config) error {
			_, closeTracer, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Jaeger.Host,
				Port: cfg.Jaeger.Port,
			})
			if err != nil {
				logger.Warn("jaeger init failed, tracing disabled: %v", err)
				return nil
			}
			lc.Append(fx.Hook{OnStop: func(context.Context) error {
				closeTracer()
				return nil
			}})
			return nil
		}),
		postgres.Module(),
		binance.Module(),
		engine.Module(),
		history.Module(),
		health.Module(),
		telegram.Module(),
	)
	app.Run()
}
