package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/engine"
)

// catalog is the static achievement catalog. Unlock conditions live in
// EvaluateAfterTrade; the handler-driven unlock path accepts any type listed
// here.
var catalog = []domain.AchievementDef{
	{Type: domain.AchievementFirstTrade, Name: "First Trade", Description: "Settle your first trade", XPReward: 100},
	{Type: domain.AchievementTenTrades, Name: "Regular", Description: "Settle ten trades", XPReward: 200},
	{Type: domain.AchievementFirstWin, Name: "First Win", Description: "Close a trade in profit", XPReward: 150},
	{Type: domain.AchievementWinStreak5, Name: "On Fire", Description: "Win five trades in a row", XPReward: 500},
	{Type: domain.AchievementBigWin, Name: "Whale Move", Description: "Bank more than 1000 on a single trade", XPReward: 400},
	{Type: domain.AchievementLevel5, Name: "Grinder", Description: "Reach level 5", XPReward: 300},
	{Type: domain.AchievementFirstLiquidation, Name: "Rekt", Description: "Get liquidated for the first time", XPReward: 50},
}

var catalogByType = func() map[domain.AchievementType]domain.AchievementDef {
	m := make(map[domain.AchievementType]domain.AchievementDef, len(catalog))
	for _, def := range catalog {
		m[def.Type] = def
	}
	return m
}()

// AchievementView is a catalog entry annotated with the wallet's unlock
// state.
type AchievementView struct {
	domain.AchievementDef
	Unlocked   bool       `json:"unlocked"`
	UnlockedAt *time.Time `json:"unlocked_at,omitempty"`
}

// AchievementService evaluates and unlocks achievements. Unlocks are
// idempotent: the settlement store's unique constraint absorbs duplicates,
// so evaluation after every trade is safe.
type AchievementService struct {
	achievements domain.AchievementStore
	trades       domain.TradeStore
	settle       domain.SettlementStore
	bus          domain.SignalBus
	audit        domain.AuditStore
	leaderboard  *LeaderboardService
	logger       *slog.Logger
}

// NewAchievementService creates an AchievementService.
func NewAchievementService(
	achievements domain.AchievementStore,
	trades domain.TradeStore,
	settle domain.SettlementStore,
	bus domain.SignalBus,
	audit domain.AuditStore,
	leaderboard *LeaderboardService,
	logger *slog.Logger,
) *AchievementService {
	return &AchievementService{
		achievements: achievements,
		trades:       trades,
		settle:       settle,
		bus:          bus,
		audit:        audit,
		leaderboard:  leaderboard,
		logger:       logger,
	}
}

// Catalog returns the static achievement definitions.
func (s *AchievementService) Catalog() []domain.AchievementDef {
	return catalog
}

// List returns the full catalog annotated with the wallet's unlock state.
func (s *AchievementService) List(ctx context.Context, wallet string) ([]AchievementView, error) {
	unlocked, err := s.achievements.ListByWallet(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("achievement_service: list %s: %w", wallet, err)
	}

	byType := make(map[domain.AchievementType]domain.Achievement, len(unlocked))
	for _, a := range unlocked {
		byType[a.Type] = a
	}

	views := make([]AchievementView, 0, len(catalog))
	for _, def := range catalog {
		view := AchievementView{AchievementDef: def}
		if a, ok := byType[def.Type]; ok {
			view.Unlocked = true
			at := a.UnlockedAt
			view.UnlockedAt = &at
		}
		views = append(views, view)
	}
	return views, nil
}

// TryUnlock awards an achievement to a wallet. Already-unlocked types return
// domain.ErrAlreadyUnlocked; unknown types fail validation.
func (s *AchievementService) TryUnlock(ctx context.Context, wallet string, typ domain.AchievementType) (domain.Achievement, error) {
	def, ok := catalogByType[typ]
	if !ok {
		return domain.Achievement{}, domain.Validation("type", "unknown achievement type")
	}

	achievement := domain.Achievement{
		ID:          uuid.NewString(),
		Wallet:      wallet,
		Type:        def.Type,
		Name:        def.Name,
		Description: def.Description,
		XPReward:    def.XPReward,
		UnlockedAt:  time.Now().UTC(),
	}

	totalXP, newLevel, err := s.settle.UnlockAchievement(ctx, achievement)
	if err != nil {
		return domain.Achievement{}, fmt.Errorf("achievement_service: unlock %s/%s: %w", wallet, typ, err)
	}

	s.leaderboard.RecordXP(ctx, wallet, def.XPReward)

	payload, _ := json.Marshal(map[string]any{
		"event":     "achievement_unlocked",
		"wallet":    wallet,
		"type":      string(typ),
		"name":      def.Name,
		"xp_reward": def.XPReward,
	})
	if pubErr := s.bus.Publish(ctx, "progression", payload); pubErr != nil {
		s.logger.WarnContext(ctx, "achievement_service: publish failed",
			slog.String("wallet", wallet),
			slog.String("error", pubErr.Error()),
		)
	}

	if auditErr := s.audit.Log(ctx, "achievement_unlocked", map[string]any{
		"wallet":    wallet,
		"type":      string(typ),
		"xp_reward": def.XPReward,
		"total_xp":  totalXP,
		"level":     newLevel,
	}); auditErr != nil {
		s.logger.WarnContext(ctx, "achievement_service: audit log failed",
			slog.String("wallet", wallet),
			slog.String("error", auditErr.Error()),
		)
	}

	s.logger.InfoContext(ctx, "achievement_service: unlocked",
		slog.String("wallet", wallet),
		slog.String("type", string(typ)),
		slog.Int64("xp_reward", def.XPReward),
	)

	return achievement, nil
}

// EvaluateAfterTrade checks every trade-driven unlock condition against the
// settlement outcome and the wallet's aggregate history. Failures are logged
// and swallowed; achievements must never fail a settlement.
func (s *AchievementService) EvaluateAfterTrade(ctx context.Context, wallet string, res domain.SettlementResult) {
	stats, err := s.trades.Stats(ctx, wallet)
	if err != nil {
		s.logger.WarnContext(ctx, "achievement_service: stats failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		return
	}

	var due []domain.AchievementType
	if stats.Total >= 1 {
		due = append(due, domain.AchievementFirstTrade)
	}
	if stats.Total >= 10 {
		due = append(due, domain.AchievementTenTrades)
	}
	if res.Trade.PnL > 0 {
		due = append(due, domain.AchievementFirstWin)
	}
	if res.NewStreak >= 5 {
		due = append(due, domain.AchievementWinStreak5)
	}
	if res.Trade.PnL > engine.BigWinThreshold {
		due = append(due, domain.AchievementBigWin)
	}
	if res.NewLevel >= 5 {
		due = append(due, domain.AchievementLevel5)
	}
	if res.Trade.Status == domain.TradeStatusLiquidated {
		due = append(due, domain.AchievementFirstLiquidation)
	}

	for _, typ := range due {
		if _, err := s.TryUnlock(ctx, wallet, typ); err != nil {
			if errors.Is(err, domain.ErrAlreadyUnlocked) {
				continue
			}
			s.logger.WarnContext(ctx, "achievement_service: evaluate unlock failed",
				slog.String("wallet", wallet),
				slog.String("type", string(typ)),
				slog.String("error", err.Error()),
			)
		}
	}
}
