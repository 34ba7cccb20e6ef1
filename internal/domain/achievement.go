package domain

import "time"

// AchievementType identifies an achievement in the catalog. At most one
// achievement per type exists per wallet.
type AchievementType string

const (
	AchievementFirstTrade       AchievementType = "first_trade"
	AchievementTenTrades        AchievementType = "ten_trades"
	AchievementFirstWin         AchievementType = "first_win"
	AchievementWinStreak5       AchievementType = "win_streak_5"
	AchievementBigWin           AchievementType = "big_win"
	AchievementLevel5           AchievementType = "level_5"
	AchievementFirstLiquidation AchievementType = "first_liquidation"
)

// Achievement is a one-time, XP-bearing unlock owned by a wallet.
type Achievement struct {
	ID          string          `json:"id"`
	Wallet      string          `json:"wallet"`
	Type        AchievementType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	XPReward    int64           `json:"xp_reward"`
	UnlockedAt  time.Time       `json:"unlocked_at"`
}

// AchievementDef is a catalog entry: the static definition of an unlockable.
type AchievementDef struct {
	Type        AchievementType `json:"type"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	XPReward    int64           `json:"xp_reward"`
}
