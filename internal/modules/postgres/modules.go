package postgres

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	"trailing_bot/internal/modules/config"
	"trailing_bot/pkg/db"
)

// Module отдаёт менеджер транзакций. Без DSN — nil, история просто не пишется.
func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				if cfg.DB == "" {
					return nil, nil
				}
				pool, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, fmt.Errorf("failed to create pool: %w", err)
				}

				if err = pool.Ping(ctx); err != nil {
					return nil, err
				}

				return db.NewPgTxManager(pool), nil
			},
		),
	)
}
