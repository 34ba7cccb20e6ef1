package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and time filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// AccountStore persists paper-trading accounts.
type AccountStore interface {
	Create(ctx context.Context, acct Account) error
	GetByWallet(ctx context.Context, wallet string) (Account, error)
	Archive(ctx context.Context, wallet string) error
	// ListTopByXP returns active accounts ordered by total XP descending.
	// Used to rebuild the leaderboard cache.
	ListTopByXP(ctx context.Context, limit int) ([]Account, error)
}

// PositionStore reads open positions. Creation and retirement go through the
// SettlementStore so they stay atomic with the balance mutations they imply.
type PositionStore interface {
	GetByID(ctx context.Context, id string) (Position, error)
	ListOpen(ctx context.Context, wallet string) ([]Position, error)
	// ListOpenAll returns every open position across accounts, for the
	// trigger monitor.
	ListOpenAll(ctx context.Context) ([]Position, error)
}

// TradeStore reads the immutable settled-trade history.
type TradeStore interface {
	GetByID(ctx context.Context, id string) (Trade, error)
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]Trade, error)
	Stats(ctx context.Context, wallet string) (TradeStats, error)
	// ListBefore returns trades closed strictly before the cutoff, for the
	// archiver.
	ListBefore(ctx context.Context, before time.Time) ([]Trade, error)
}

// AchievementStore reads unlocked achievements.
type AchievementStore interface {
	ListByWallet(ctx context.Context, wallet string) ([]Achievement, error)
}

// SettlementResult is what a close settlement produced, returned in one piece
// so callers never observe a partially-applied outcome.
type SettlementResult struct {
	Trade      Trade
	NewBalance float64
	XPAwarded  int64
	NewLevel   int
	LeveledUp  bool
	NewStreak  int
}

// SettlementStore applies each multi-record core operation as a single
// all-or-nothing transaction. Every statement is conditional: margin debit
// requires sufficient balance, position retirement requires the position to
// still be open, achievement insert requires the (wallet, type) slot to be
// free. Two racing calls therefore resolve to exactly one winner.
type SettlementStore interface {
	// OpenPosition debits the required margin from the account balance and
	// inserts the position. Returns ErrInsufficientFunds when the balance
	// cannot cover the margin, ErrNotFound when the account does not exist,
	// ErrAccountArchived when it is archived.
	OpenPosition(ctx context.Context, pos Position) (newBalance float64, err error)

	// ClosePosition retires the position (conditionally on it still being
	// open and owned by wallet), writes the immutable trade, credits
	// margin+pnl back to the balance, and applies the XP/streak/level
	// update derived from the outcome. Returns ErrNotFound when the
	// position does not exist or is already closed, ErrUnauthorized when it
	// belongs to another wallet.
	ClosePosition(ctx context.Context, wallet, positionID string, exitPrice float64, status TradeStatus, closedAt time.Time) (SettlementResult, error)

	// UnlockAchievement inserts the achievement and credits its XP reward in
	// the same transaction. Returns ErrAlreadyUnlocked when the wallet
	// already holds an achievement of that type.
	UnlockAchievement(ctx context.Context, a Achievement) (newTotalXP int64, newLevel int, err error)
}

// AuditEntry is a single append-only audit row.
type AuditEntry struct {
	ID        int64          `json:"id"`
	Event     string         `json:"event"`
	Detail    map[string]any `json:"detail"`
	CreatedAt time.Time      `json:"created_at"`
}

// AuditStore persists the append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]AuditEntry, error)
}
