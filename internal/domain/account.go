package domain

import "time"

// AccountStatus tracks whether an account is live or archived. Accounts are
// never deleted, only archived.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "active"
	AccountStatusArchived AccountStatus = "archived"
)

// Account is the paper-trading account for one wallet address. Balance is the
// unencumbered paper currency; margin reserved by open positions has already
// been debited from it.
type Account struct {
	Wallet        string
	Balance       float64
	TotalXP       int64
	CurrentLevel  int
	CurrentStreak int
	LongestStreak int
	Status        AccountStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// ProgressionState is the gamification slice of an account.
type ProgressionState struct {
	TotalXP       int64 `json:"total_xp"`
	CurrentLevel  int   `json:"current_level"`
	CurrentStreak int   `json:"current_streak"`
	LongestStreak int   `json:"longest_streak"`
	// XPIntoLevel and XPForNextLevel describe progress within the current
	// level for UI progress bars.
	XPIntoLevel    int64 `json:"xp_into_level"`
	XPForNextLevel int64 `json:"xp_for_next_level"`
}

// AccountSummary is the read model served to the UI: account state plus
// derived portfolio and progression figures.
type AccountSummary struct {
	Wallet         string           `json:"wallet"`
	Balance        float64          `json:"balance"`
	ReservedMargin float64          `json:"reserved_margin"`
	Equity         float64          `json:"equity"` // balance + margin + unrealized pnl
	OpenPositions  int              `json:"open_positions"`
	TotalTrades    int64            `json:"total_trades"`
	WinningTrades  int64            `json:"winning_trades"`
	RealizedPnL    float64          `json:"realized_pnl"`
	Progression    ProgressionState `json:"progression"`
}
