package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/paperhands/paperhands/internal/domain"
)

// Leaderboard implements domain.Leaderboard using Redis sorted sets, one per
// board at key "leaderboard:{board}". Scores are updated on every settlement
// and rebuilt from Postgres on startup, so the sorted set is a cache, not the
// source of truth.
type Leaderboard struct {
	rdb *redis.Client
}

// NewLeaderboard creates a Leaderboard backed by the given Client.
func NewLeaderboard(c *Client) *Leaderboard {
	return &Leaderboard{rdb: c.Underlying()}
}

func boardKey(board string) string {
	return "leaderboard:" + board
}

// SetScore writes an absolute score for a wallet on a board.
func (lb *Leaderboard) SetScore(ctx context.Context, board, wallet string, score float64) error {
	if err := lb.rdb.ZAdd(ctx, boardKey(board), redis.Z{Score: score, Member: wallet}).Err(); err != nil {
		return fmt.Errorf("redis: leaderboard set %s/%s: %w", board, wallet, err)
	}
	return nil
}

// IncrScore adjusts a wallet's score on a board by delta.
func (lb *Leaderboard) IncrScore(ctx context.Context, board, wallet string, delta float64) error {
	if err := lb.rdb.ZIncrBy(ctx, boardKey(board), delta, wallet).Err(); err != nil {
		return fmt.Errorf("redis: leaderboard incr %s/%s: %w", board, wallet, err)
	}
	return nil
}

// Top returns the highest-scored wallets on a board, best first, with ranks
// starting at 1.
func (lb *Leaderboard) Top(ctx context.Context, board string, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 10
	}
	zs, err := lb.rdb.ZRevRangeWithScores(ctx, boardKey(board), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: leaderboard top %s: %w", board, err)
	}

	entries := make([]domain.LeaderboardEntry, 0, len(zs))
	for i, z := range zs {
		wallet, ok := z.Member.(string)
		if !ok {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			Rank:   i + 1,
			Wallet: wallet,
			Score:  z.Score,
		})
	}
	return entries, nil
}

// Rank returns a single wallet's rank and score on a board. It returns
// domain.ErrNotFound when the wallet has no score on that board.
func (lb *Leaderboard) Rank(ctx context.Context, board, wallet string) (domain.LeaderboardEntry, error) {
	key := boardKey(board)

	rank, err := lb.rdb.ZRevRank(ctx, key, wallet).Result()
	if errors.Is(err, redis.Nil) {
		return domain.LeaderboardEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("redis: leaderboard rank %s/%s: %w", board, wallet, err)
	}

	score, err := lb.rdb.ZScore(ctx, key, wallet).Result()
	if errors.Is(err, redis.Nil) {
		return domain.LeaderboardEntry{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("redis: leaderboard score %s/%s: %w", board, wallet, err)
	}

	return domain.LeaderboardEntry{
		Rank:   int(rank) + 1,
		Wallet: wallet,
		Score:  score,
	}, nil
}

// Compile-time interface check.
var _ domain.Leaderboard = (*Leaderboard)(nil)
