package domain

import "time"

// Side is the direction of a leveraged position.
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Valid reports whether s is a known side.
func (s Side) Valid() bool {
	return s == SideLong || s == SideShort
}

// Position is an open leveraged paper position. Size is the leveraged
// notional exposure; the margin reserved for it is Size/Leverage and was
// debited from the account balance when the position opened.
//
// LiquidationPrice is derived at open time and immutable: it is the price at
// which the accumulated loss equals the posted margin exactly.
type Position struct {
	ID               string     `json:"id"`
	Wallet           string     `json:"wallet"`
	Pair             string     `json:"pair"`
	Side             Side       `json:"side"`
	Size             float64    `json:"size"`
	Leverage         int        `json:"leverage"`
	EntryPrice       float64    `json:"entry_price"`
	LiquidationPrice float64    `json:"liquidation_price"`
	StopLoss         *float64   `json:"stop_loss,omitempty"`
	TakeProfit       *float64   `json:"take_profit,omitempty"`
	OpenedAt         time.Time  `json:"opened_at"`
}

// Margin is the collateral reserved for the position.
func (p Position) Margin() float64 {
	return p.Size / float64(p.Leverage)
}

// PositionView is a position annotated with live market data for the UI.
type PositionView struct {
	Position
	CurrentPrice  float64   `json:"current_price"`
	UnrealizedPnL float64   `json:"unrealized_pnl"`
	PriceAt       time.Time `json:"price_at"`
}
