package service

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"trailing_bot/internal/models"
	"trailing_bot/pkg/db"
)

// Store пишет закрытые позиции в Postgres. Только запись: движок назад
// ничего не читает, состояние после рестарта не восстанавливается.
type Store struct {
	db *db.PgTxManager
}

func NewStore(tm *db.PgTxManager) *Store {
	return &Store{db: tm}
}

func (s *Store) Enabled() bool { return s != nil && s.db != nil }

func (s *Store) EnsureSchema(ctx context.Context) error {
	if !s.Enabled() {
		return nil
	}
	const q = `
CREATE TABLE IF NOT EXISTS closed_positions (
	id            text PRIMARY KEY,
	symbol        text NOT NULL,
	status        text NOT NULL,
	reason        text NOT NULL,
	entry_price   double precision NOT NULL,
	quantity      double precision NOT NULL,
	trailing_pct  double precision NOT NULL,
	highest_price double precision NOT NULL,
	fill_price    double precision NOT NULL,
	pnl           double precision NOT NULL,
	confidence    double precision NOT NULL,
	err_msg       text NOT NULL DEFAULT '',
	created_at    timestamptz NOT NULL,
	closed_at     timestamptz NOT NULL DEFAULT now()
)`
	return s.db.Run(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, q)
		return err
	})
}

// InsertClosed — одна строка на событие position_closed.
func (s *Store) InsertClosed(ctx context.Context, ev models.Event) (err error) {
	if !s.Enabled() || ev.Position == nil {
		return nil
	}
	defer func() {
		if err != nil {
			err = fmt.Errorf("history.InsertClosed: %w", err)
		}
	}()

	const q = `
INSERT INTO closed_positions
	(id, symbol, status, reason, entry_price, quantity, trailing_pct,
	 highest_price, fill_price, pnl, confidence, err_msg, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO NOTHING`

	p := ev.Position
	return s.db.Run(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, q,
			p.ID, p.Symbol, string(p.Status), string(ev.Reason),
			p.EntryPrice, p.Quantity, p.TrailingPct,
			p.HighestPrice, ev.FillPrice, ev.PnL, p.Confidence,
			p.ErrMsg, p.CreatedAt,
		)
		return err
	})
}
