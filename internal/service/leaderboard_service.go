package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paperhands/paperhands/internal/domain"
)

// Board names understood by the leaderboard endpoints.
const (
	BoardXP  = "xp"
	BoardPnL = "pnl"
)

// rebuildLimit caps how many accounts a startup rebuild loads.
const rebuildLimit = 1000

// LeaderboardService maintains the XP and realized-PnL rankings in Redis.
// The sorted sets are a cache over Postgres: every settlement updates them
// incrementally, and Rebuild reconstructs them from the stores after a cold
// start or a flush.
type LeaderboardService struct {
	boards   domain.Leaderboard
	accounts domain.AccountStore
	trades   domain.TradeStore
	logger   *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService.
func NewLeaderboardService(
	boards domain.Leaderboard,
	accounts domain.AccountStore,
	trades domain.TradeStore,
	logger *slog.Logger,
) *LeaderboardService {
	return &LeaderboardService{
		boards:   boards,
		accounts: accounts,
		trades:   trades,
		logger:   logger,
	}
}

// RecordSettlement folds one settlement outcome into both boards. Errors are
// logged and swallowed; rankings must never fail a settlement.
func (s *LeaderboardService) RecordSettlement(ctx context.Context, wallet string, res domain.SettlementResult) {
	if res.XPAwarded > 0 {
		if err := s.boards.IncrScore(ctx, BoardXP, wallet, float64(res.XPAwarded)); err != nil {
			s.logger.WarnContext(ctx, "leaderboard_service: xp update failed",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
		}
	}
	if err := s.boards.IncrScore(ctx, BoardPnL, wallet, res.Trade.PnL); err != nil {
		s.logger.WarnContext(ctx, "leaderboard_service: pnl update failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
	}
}

// RecordXP credits XP that arrived outside a settlement (achievement awards).
func (s *LeaderboardService) RecordXP(ctx context.Context, wallet string, xp int64) {
	if xp <= 0 {
		return
	}
	if err := s.boards.IncrScore(ctx, BoardXP, wallet, float64(xp)); err != nil {
		s.logger.WarnContext(ctx, "leaderboard_service: xp update failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
	}
}

// Top returns the ranked entries for a board.
func (s *LeaderboardService) Top(ctx context.Context, board string, limit int) ([]domain.LeaderboardEntry, error) {
	if board != BoardXP && board != BoardPnL {
		return nil, domain.Validation("by", "must be xp or pnl")
	}
	entries, err := s.boards.Top(ctx, board, limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard_service: top %s: %w", board, err)
	}
	return entries, nil
}

// Rank returns one wallet's entry on a board.
func (s *LeaderboardService) Rank(ctx context.Context, board, wallet string) (domain.LeaderboardEntry, error) {
	if board != BoardXP && board != BoardPnL {
		return domain.LeaderboardEntry{}, domain.Validation("by", "must be xp or pnl")
	}
	entry, err := s.boards.Rank(ctx, board, wallet)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("leaderboard_service: rank %s/%s: %w", board, wallet, err)
	}
	return entry, nil
}

// Rebuild reconstructs both boards from Postgres: total XP straight off the
// accounts, realized PnL summed from each wallet's trade history.
func (s *LeaderboardService) Rebuild(ctx context.Context) error {
	accounts, err := s.accounts.ListTopByXP(ctx, rebuildLimit)
	if err != nil {
		return fmt.Errorf("leaderboard_service: rebuild list accounts: %w", err)
	}

	for _, acct := range accounts {
		if err := s.boards.SetScore(ctx, BoardXP, acct.Wallet, float64(acct.TotalXP)); err != nil {
			return fmt.Errorf("leaderboard_service: rebuild xp %s: %w", acct.Wallet, err)
		}

		stats, err := s.trades.Stats(ctx, acct.Wallet)
		if err != nil {
			return fmt.Errorf("leaderboard_service: rebuild stats %s: %w", acct.Wallet, err)
		}
		if err := s.boards.SetScore(ctx, BoardPnL, acct.Wallet, stats.RealizedPnL); err != nil {
			return fmt.Errorf("leaderboard_service: rebuild pnl %s: %w", acct.Wallet, err)
		}
	}

	s.logger.InfoContext(ctx, "leaderboard_service: rebuilt",
		slog.Int("accounts", len(accounts)),
	)
	return nil
}
