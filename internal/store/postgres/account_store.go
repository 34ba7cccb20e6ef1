package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperhands/paperhands/internal/domain"
)

// AccountStore implements domain.AccountStore using PostgreSQL.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a new AccountStore backed by the given connection pool.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

const accountSelectCols = `wallet, balance, total_xp, current_level,
	current_streak, longest_streak, status, created_at, updated_at`

func scanAccountRow(row pgx.Row) (domain.Account, error) {
	var a domain.Account
	var status string

	err := row.Scan(
		&a.Wallet, &a.Balance, &a.TotalXP, &a.CurrentLevel,
		&a.CurrentStreak, &a.LongestStreak, &status,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return domain.Account{}, err
	}
	a.Status = domain.AccountStatus(status)
	return a, nil
}

// Create inserts a new account. Inserting a wallet that already exists is a
// no-op, so get-or-create races are harmless.
func (s *AccountStore) Create(ctx context.Context, a domain.Account) error {
	const query = `
		INSERT INTO accounts (
			wallet, balance, total_xp, current_level,
			current_streak, longest_streak, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (wallet) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		a.Wallet, a.Balance, a.TotalXP, a.CurrentLevel,
		a.CurrentStreak, a.LongestStreak, string(a.Status), a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create account %s: %w", a.Wallet, err)
	}
	return nil
}

// GetByWallet retrieves an account by its wallet address.
func (s *AccountStore) GetByWallet(ctx context.Context, wallet string) (domain.Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountSelectCols+` FROM accounts WHERE wallet = $1`, wallet)

	a, err := scanAccountRow(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Account{}, domain.ErrNotFound
		}
		return domain.Account{}, fmt.Errorf("postgres: get account %s: %w", wallet, err)
	}
	return a, nil
}

// Archive marks an account as archived. Archived accounts are retained for
// history but can no longer trade.
func (s *AccountStore) Archive(ctx context.Context, wallet string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE accounts SET status = 'archived', updated_at = NOW()
		 WHERE wallet = $1 AND status = 'active'`, wallet)
	if err != nil {
		return fmt.Errorf("postgres: archive account %s: %w", wallet, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListTopByXP returns active accounts ordered by total XP descending.
func (s *AccountStore) ListTopByXP(ctx context.Context, limit int) ([]domain.Account, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+accountSelectCols+` FROM accounts
		 WHERE status = 'active'
		 ORDER BY total_xp DESC, wallet
		 LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list top accounts: %w", err)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		var a domain.Account
		var status string
		if err := rows.Scan(
			&a.Wallet, &a.Balance, &a.TotalXP, &a.CurrentLevel,
			&a.CurrentStreak, &a.LongestStreak, &status,
			&a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan account: %w", err)
		}
		a.Status = domain.AccountStatus(status)
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// Compile-time interface check.
var _ domain.AccountStore = (*AccountStore)(nil)
