package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperhands/paperhands/internal/domain"
)

// TradeStore implements domain.TradeStore using PostgreSQL. Trade rows are
// written once by the SettlementStore and never updated.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a new TradeStore backed by the given connection pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeSelectCols = `id, position_id, wallet, pair, side, size, leverage,
	entry_price, exit_price, pnl, pnl_percentage, shortfall, status,
	xp_earned, opened_at, closed_at`

func scanTradeRow(row pgx.Row) (domain.Trade, error) {
	var t domain.Trade
	var side, status string

	err := row.Scan(
		&t.ID, &t.PositionID, &t.Wallet, &t.Pair, &side, &t.Size, &t.Leverage,
		&t.EntryPrice, &t.ExitPrice, &t.PnL, &t.PnLPercentage, &t.Shortfall,
		&status, &t.XPEarned, &t.OpenedAt, &t.ClosedAt,
	)
	if err != nil {
		return domain.Trade{}, err
	}
	t.Side = domain.Side(side)
	t.Status = domain.TradeStatus(status)
	return t, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.Trade, error) {
	var trades []domain.Trade
	for rows.Next() {
		t, err := scanTradeRow(rows)
		if err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// GetByID retrieves a single trade by its ID.
func (s *TradeStore) GetByID(ctx context.Context, id string) (domain.Trade, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+tradeSelectCols+` FROM trades WHERE id = $1`, id)

	t, err := scanTradeRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Trade{}, domain.ErrNotFound
		}
		return domain.Trade{}, fmt.Errorf("postgres: get trade %s: %w", id, err)
	}
	return t, nil
}

// ListByWallet returns trades for the given wallet with pagination and
// optional time filtering, newest first.
func (s *TradeStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Trade, error) {
	query := `SELECT ` + tradeSelectCols + ` FROM trades WHERE wallet = $1`
	args := []any{wallet}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND closed_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND closed_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY closed_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades: %w", err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades: %w", err)
	}
	return trades, nil
}

// Stats aggregates the wallet's settled history in a single query.
func (s *TradeStore) Stats(ctx context.Context, wallet string) (domain.TradeStats, error) {
	const query = `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE pnl > 0),
			COUNT(*) FILTER (WHERE status = 'LIQUIDATED'),
			COALESCE(SUM(pnl), 0),
			COALESCE(MAX(pnl), 0)
		FROM trades WHERE wallet = $1`

	var st domain.TradeStats
	err := s.pool.QueryRow(ctx, query, wallet).Scan(
		&st.Total, &st.Wins, &st.Liquidations, &st.RealizedPnL, &st.BiggestWin,
	)
	if err != nil {
		return domain.TradeStats{}, fmt.Errorf("postgres: trade stats %s: %w", wallet, err)
	}
	return st, nil
}

// ListBefore returns all trades closed strictly before the cutoff, for the
// archiver.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Trade, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeSelectCols+` FROM trades
		 WHERE closed_at < $1 ORDER BY closed_at`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before %s: %w", before, err)
	}
	defer rows.Close()

	trades, err := scanTradeRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan trades before: %w", err)
	}
	return trades, nil
}

// Compile-time interface check.
var _ domain.TradeStore = (*TradeStore)(nil)
