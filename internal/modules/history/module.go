package history

import (
	"context"
	"log"

	"go.uber.org/fx"

	"trailing_bot/internal/engine"
	"trailing_bot/internal/models"
	"trailing_bot/internal/modules/history/service"
)

// Module — аудит закрытых позиций: подписка на шину, запись в Postgres.
func Module() fx.Option {
	return fx.Module("history",
		fx.Provide(
			service.NewStore,
		),
		fx.Invoke(func(lc fx.Lifecycle, ctx context.Context, st *service.Store, bus *engine.Bus) {
			lc.Append(fx.Hook{
				OnStart: func(startCtx context.Context) error {
					if !st.Enabled() {
						return nil
					}
					if err := st.EnsureSchema(startCtx); err != nil {
						return err
					}
					events := bus.Subscribe(256)
					go func() {
						for {
							select {
							case <-ctx.Done():
								return
							case ev, ok := <-events:
								if !ok {
									return
								}
								if ev.Type != models.EventPositionClosed {
									continue
								}
								if err := st.InsertClosed(ctx, ev); err != nil {
									log.Printf("[HIST] %v", err)
								}
							}
						}
					}()
					return nil
				},
			})
		}),
	)
}
