package domain

import "time"

// TradeStatus distinguishes a voluntary close from a forced liquidation.
type TradeStatus string

const (
	TradeStatusClosed     TradeStatus = "CLOSED"
	TradeStatusLiquidated TradeStatus = "LIQUIDATED"
)

// Trade is the immutable record of a settled position. PnL is fully
// determined by (EntryPrice, ExitPrice, Size, Side); recomputing it from the
// stored fields reproduces the stored value.
//
// PnL is the credited figure, clamped at -margin. Shortfall carries the
// uncovered remainder when settlement happened past the liquidation price;
// it is zero in the normal path.
type Trade struct {
	ID            string      `json:"id"`
	PositionID    string      `json:"position_id"`
	Wallet        string      `json:"wallet"`
	Pair          string      `json:"pair"`
	Side          Side        `json:"side"`
	Size          float64     `json:"size"`
	Leverage      int         `json:"leverage"`
	EntryPrice    float64     `json:"entry_price"`
	ExitPrice     float64     `json:"exit_price"`
	PnL           float64     `json:"pnl"`
	PnLPercentage float64     `json:"pnl_percentage"`
	Shortfall     float64     `json:"shortfall,omitempty"`
	Status        TradeStatus `json:"status"`
	XPEarned      int64       `json:"xp_earned"`
	OpenedAt      time.Time   `json:"opened_at"`
	ClosedAt      time.Time   `json:"closed_at"`
}

// TradeStats aggregates a wallet's settled history. Consumed by the account
// summary read model and the achievement engine.
type TradeStats struct {
	Total        int64   `json:"total"`
	Wins         int64   `json:"wins"`
	Liquidations int64   `json:"liquidations"`
	RealizedPnL  float64 `json:"realized_pnl"`
	BiggestWin   float64 `json:"biggest_win"`
}
