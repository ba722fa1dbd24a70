package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/haythamforever/PolymarketBTC15mAssistant/internal/domain"
)

// TradeLog implements domain.TradeLog on an append-only settled_trades table.
// A few columns are broken out for indexing; the full record is stored as
// JSONB and is the source of truth when reading back.
type TradeLog struct {
	pool *pgxpool.Pool
}

// NewTradeLog creates a new TradeLog backed by the given connection pool.
func NewTradeLog(pool *pgxpool.Pool) *TradeLog {
	return &TradeLog{pool: pool}
}

// Append inserts a settled trade. The position id doubles as the row id, so a
// replayed settlement of the same position is a no-op rather than a duplicate.
func (l *TradeLog) Append(ctx context.Context, mode domain.Mode, trade domain.SettledTrade) error {
	record, err := json.Marshal(trade)
	if err != nil {
		return fmt.Errorf("postgres: marshal trade %s: %w", trade.Position.ID, err)
	}

	const query = `
		INSERT INTO settled_trades
			(id, mode, window_id, side, outcome, entry_price, stake, pnl,
			 balance_after, delta, opened_at, settled_at, record)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO NOTHING`
	_, err = l.pool.Exec(ctx, query,
		trade.Position.ID, string(mode), trade.Position.WindowID,
		string(trade.Position.Side), string(trade.Outcome),
		trade.Position.Entry, trade.Position.Stake, trade.PnL,
		trade.BalanceAfter, trade.Delta,
		trade.Position.OpenedAt, trade.SettledAt, record,
	)
	if err != nil {
		return fmt.Errorf("postgres: append trade %s: %w", trade.Position.ID, err)
	}
	return nil
}

// ListRecent returns up to limit trades for mode, most recent first.
func (l *TradeLog) ListRecent(ctx context.Context, mode domain.Mode, limit int) ([]domain.SettledTrade, error) {
	const query = `
		SELECT record FROM settled_trades
		WHERE mode = $1
		ORDER BY settled_at DESC
		LIMIT $2`
	rows, err := l.pool.Query(ctx, query, string(mode), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	return scanTrades(rows)
}

// ListSince returns all trades for mode settled at or after since, oldest
// first.
func (l *TradeLog) ListSince(ctx context.Context, mode domain.Mode, since time.Time) ([]domain.SettledTrade, error) {
	const query = `
		SELECT record FROM settled_trades
		WHERE mode = $1 AND settled_at >= $2
		ORDER BY settled_at ASC`
	rows, err := l.pool.Query(ctx, query, string(mode), since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades since %s: %w", since.Format(time.RFC3339), err)
	}
	return scanTrades(rows)
}

func scanTrades(rows pgx.Rows) ([]domain.SettledTrade, error) {
	defer rows.Close()

	var trades []domain.SettledTrade
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		var t domain.SettledTrade
		if err := json.Unmarshal(raw, &t); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal trade: %w", err)
		}
		trades = append(trades, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: trade rows: %w", err)
	}
	return trades, nil
}
