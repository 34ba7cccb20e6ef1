package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paperhands/paperhands/internal/domain"
)

// AchievementStore reads unlocked achievements. Unlocking goes through the
// SettlementStore so the insert and its XP credit stay atomic.
type AchievementStore struct {
	pool *pgxpool.Pool
}

func NewAchievementStore(pool *pgxpool.Pool) *AchievementStore {
	return &AchievementStore{pool: pool}
}

func (s *AchievementStore) ListByWallet(ctx context.Context, wallet string) ([]domain.Achievement, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, wallet, type, name, description, xp_reward, unlocked_at
		 FROM achievements
		 WHERE wallet = $1
		 ORDER BY unlocked_at ASC`, wallet)
	if err != nil {
		return nil, fmt.Errorf("postgres: list achievements %s: %w", wallet, err)
	}
	defer rows.Close()

	var out []domain.Achievement
	for rows.Next() {
		var a domain.Achievement
		var typ string
		if err := rows.Scan(&a.ID, &a.Wallet, &typ, &a.Name, &a.Description, &a.XPReward, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan achievement: %w", err)
		}
		a.Type = domain.AchievementType(typ)
		out = append(out, a)
	}
	return out, rows.Err()
}

var _ domain.AchievementStore = (*AchievementStore)(nil)
