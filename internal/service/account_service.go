// Package service implements the application use-cases on top of the domain
// stores and caches: accounts, trading and settlement, achievements, and
// leaderboards.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/engine"
)

// AccountService manages paper-trading accounts: first-touch creation with
// the starting balance, progression reads, and archival.
type AccountService struct {
	accounts        domain.AccountStore
	trades          domain.TradeStore
	positions       domain.PositionStore
	prices          domain.PriceCache
	audit           domain.AuditStore
	startingBalance float64
	logger          *slog.Logger
}

// NewAccountService creates an AccountService with all required dependencies.
func NewAccountService(
	accounts domain.AccountStore,
	trades domain.TradeStore,
	positions domain.PositionStore,
	prices domain.PriceCache,
	audit domain.AuditStore,
	startingBalance float64,
	logger *slog.Logger,
) *AccountService {
	return &AccountService{
		accounts:        accounts,
		trades:          trades,
		positions:       positions,
		prices:          prices,
		audit:           audit,
		startingBalance: startingBalance,
		logger:          logger,
	}
}

// GetOrCreate returns the account for a wallet, creating it with the
// configured starting balance on first touch. Creation is idempotent: a
// racing duplicate insert is absorbed and the stored row returned.
func (s *AccountService) GetOrCreate(ctx context.Context, wallet string) (domain.Account, error) {
	acct, err := s.accounts.GetByWallet(ctx, wallet)
	if err == nil {
		return acct, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.Account{}, fmt.Errorf("account_service: get %s: %w", wallet, err)
	}

	now := time.Now().UTC()
	acct = domain.Account{
		Wallet:       wallet,
		Balance:      s.startingBalance,
		CurrentLevel: 1,
		Status:       domain.AccountStatusActive,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.accounts.Create(ctx, acct); err != nil {
		return domain.Account{}, fmt.Errorf("account_service: create %s: %w", wallet, err)
	}

	if auditErr := s.audit.Log(ctx, "account_created", map[string]any{
		"wallet":  wallet,
		"balance": s.startingBalance,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "account_service: audit log failed",
			slog.String("wallet", wallet),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "account_service: account created",
		slog.String("wallet", wallet),
		slog.Float64("balance", s.startingBalance),
	)

	// Re-read so a racing creator and this call agree on the stored row.
	acct, err = s.accounts.GetByWallet(ctx, wallet)
	if err != nil {
		return domain.Account{}, fmt.Errorf("account_service: reread %s: %w", wallet, err)
	}
	return acct, nil
}

// Progression derives the level progression for an account from its total XP.
func (s *AccountService) Progression(acct domain.Account) domain.ProgressionState {
	level, into, forNext := engine.LevelProgress(acct.TotalXP)
	return domain.ProgressionState{
		TotalXP:        acct.TotalXP,
		CurrentLevel:   level,
		CurrentStreak:  acct.CurrentStreak,
		LongestStreak:  acct.LongestStreak,
		XPIntoLevel:    into,
		XPForNextLevel: forNext,
	}
}

// Summary assembles the account read model: balance, reserved margin, equity
// marked to the latest cached prices, realized statistics, and progression.
func (s *AccountService) Summary(ctx context.Context, wallet string) (domain.AccountSummary, error) {
	acct, err := s.accounts.GetByWallet(ctx, wallet)
	if err != nil {
		return domain.AccountSummary{}, fmt.Errorf("account_service: get %s: %w", wallet, err)
	}

	stats, err := s.trades.Stats(ctx, wallet)
	if err != nil {
		return domain.AccountSummary{}, fmt.Errorf("account_service: stats %s: %w", wallet, err)
	}

	open, err := s.positions.ListOpen(ctx, wallet)
	if err != nil {
		return domain.AccountSummary{}, fmt.Errorf("account_service: open positions %s: %w", wallet, err)
	}

	pairs := make([]string, 0, len(open))
	for _, pos := range open {
		pairs = append(pairs, pos.Pair)
	}
	prices, err := s.prices.GetPrices(ctx, pairs)
	if err != nil {
		return domain.AccountSummary{}, fmt.Errorf("account_service: prices %s: %w", wallet, err)
	}

	var margin, unrealized float64
	for _, pos := range open {
		margin += pos.Margin()
		if price, ok := prices[pos.Pair]; ok {
			unrealized += engine.UnrealizedPnL(pos.Side, pos.EntryPrice, price, pos.Size)
		}
	}

	return domain.AccountSummary{
		Wallet:         acct.Wallet,
		Balance:        acct.Balance,
		ReservedMargin: margin,
		Equity:         acct.Balance + margin + unrealized,
		OpenPositions:  len(open),
		TotalTrades:    stats.Total,
		WinningTrades:  stats.Wins,
		RealizedPnL:    stats.RealizedPnL,
		Progression:    s.Progression(acct),
	}, nil
}

// Archive retires an account. Archived accounts keep their history but can no
// longer trade; the wallet cannot be re-registered.
func (s *AccountService) Archive(ctx context.Context, wallet string) error {
	if err := s.accounts.Archive(ctx, wallet); err != nil {
		return fmt.Errorf("account_service: archive %s: %w", wallet, err)
	}

	if auditErr := s.audit.Log(ctx, "account_archived", map[string]any{
		"wallet": wallet,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "account_service: audit log failed",
			slog.String("wallet", wallet),
			slog.String("error", auditErr.Error()),
		)
	}
	return nil
}
