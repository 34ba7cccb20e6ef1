package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperhands/paperhands/internal/domain"
)

// PositionStore implements domain.PositionStore using PostgreSQL. Positions
// are created and retired exclusively through the SettlementStore; this store
// only reads.
type PositionStore struct {
	pool *pgxpool.Pool
}

// NewPositionStore creates a new PositionStore backed by the given connection pool.
func NewPositionStore(pool *pgxpool.Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

const positionSelectCols = `id, wallet, pair, side, size, leverage,
	entry_price, liquidation_price, stop_loss, take_profit, opened_at`

func scanPositionRow(row pgx.Row) (domain.Position, error) {
	var p domain.Position
	var side string

	err := row.Scan(
		&p.ID, &p.Wallet, &p.Pair, &side, &p.Size, &p.Leverage,
		&p.EntryPrice, &p.LiquidationPrice, &p.StopLoss, &p.TakeProfit,
		&p.OpenedAt,
	)
	if err != nil {
		return domain.Position{}, err
	}
	p.Side = domain.Side(side)
	return p, nil
}

func scanPositionRows(rows pgx.Rows) ([]domain.Position, error) {
	var positions []domain.Position
	for rows.Next() {
		p, err := scanPositionRow(rows)
		if err != nil {
			return nil, err
		}
		positions = append(positions, p)
	}
	return positions, rows.Err()
}

// GetByID retrieves a single open position by its ID.
func (s *PositionStore) GetByID(ctx context.Context, id string) (domain.Position, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE id = $1 AND status = 'open'`, id)

	p, err := scanPositionRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Position{}, domain.ErrNotFound
		}
		return domain.Position{}, fmt.Errorf("postgres: get position %s: %w", id, err)
	}
	return p, nil
}

// ListOpen returns all open positions for the given wallet.
func (s *PositionStore) ListOpen(ctx context.Context, wallet string) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE wallet = $1 AND status = 'open'
		 ORDER BY opened_at DESC`, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan open positions: %w", err)
	}
	return positions, nil
}

// ListOpenAll returns every open position across all wallets, oldest first,
// for the trigger monitor.
func (s *PositionStore) ListOpenAll(ctx context.Context) ([]domain.Position, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+positionSelectCols+` FROM positions
		 WHERE status = 'open'
		 ORDER BY opened_at`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list all open positions: %w", err)
	}
	defer rows.Close()

	positions, err := scanPositionRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan all open positions: %w", err)
	}
	return positions, nil
}

// Compile-time interface check.
var _ domain.PositionStore = (*PositionStore)(nil)
