// Package engine holds the pure computation at the heart of the paper-trading
// core: margin, liquidation price, PnL, trigger evaluation, and XP/level
// progression. Nothing in this package performs I/O; every function is
// deterministic so settled values can be recomputed and verified from stored
// fields.
package engine

import "github.com/paperhands/paperhands/internal/domain"

// RequiredMargin is the collateral reserved when a position opens. Size is
// the leveraged notional, so the margin is size/leverage.
func RequiredMargin(size float64, leverage int) float64 {
	return size / float64(leverage)
}

// LiquidationPrice is the price at which the accumulated loss equals the
// posted margin exactly:
//
//	LONG:  entry * (1 - 1/leverage)
//	SHORT: entry * (1 + 1/leverage)
//
// Plugging it into UnrealizedPnL yields -margin (up to float rounding).
func LiquidationPrice(side domain.Side, entryPrice float64, leverage int) float64 {
	step := entryPrice / float64(leverage)
	if side == domain.SideShort {
		return entryPrice + step
	}
	return entryPrice - step
}

// UnrealizedPnL is the canonical PnL formula, applied identically at open,
// live-update, and close time. Size already embeds the leverage (it is the
// notional exposure), so leverage does not appear again here:
//
//	LONG:  (current - entry) / entry * size
//	SHORT: (entry - current) / entry * size
func UnrealizedPnL(side domain.Side, entryPrice, currentPrice, size float64) float64 {
	if side == domain.SideShort {
		return (entryPrice - currentPrice) / entryPrice * size
	}
	return (currentPrice - entryPrice) / entryPrice * size
}

// PnLPercentage expresses a PnL as a return on the posted margin.
func PnLPercentage(pnl, margin float64) float64 {
	if margin == 0 {
		return 0
	}
	return pnl / margin * 100
}

// ClampPnL bounds a settled loss to the posted margin. The credited figure is
// what flows back to the balance; the shortfall is the uncovered remainder
// (positive), recorded on the trade rather than silently dropped. Settlement
// at or before the liquidation price never produces a shortfall.
func ClampPnL(pnl, margin float64) (credited, shortfall float64) {
	if pnl < -margin {
		return -margin, -margin - pnl
	}
	return pnl, 0
}

// Trigger identifies which exit condition a price observation fired.
type Trigger int

const (
	TriggerNone Trigger = iota
	TriggerStopLoss
	TriggerTakeProfit
	TriggerLiquidation
)

// String returns the trigger name for logs and events.
func (t Trigger) String() string {
	switch t {
	case TriggerStopLoss:
		return "stop_loss"
	case TriggerTakeProfit:
		return "take_profit"
	case TriggerLiquidation:
		return "liquidation"
	default:
		return "none"
	}
}

// CheckTriggers evaluates a position against the current price. Liquidation
// takes priority over stop-loss and take-profit: a liquidated position is
// settled at the liquidation price, not the observed price, bounding the
// loss to the posted margin.
func CheckTriggers(pos domain.Position, currentPrice float64) Trigger {
	if pos.Side == domain.SideLong {
		if currentPrice <= pos.LiquidationPrice {
			return TriggerLiquidation
		}
		if pos.StopLoss != nil && currentPrice <= *pos.StopLoss {
			return TriggerStopLoss
		}
		if pos.TakeProfit != nil && currentPrice >= *pos.TakeProfit {
			return TriggerTakeProfit
		}
		return TriggerNone
	}

	if currentPrice >= pos.LiquidationPrice {
		return TriggerLiquidation
	}
	if pos.StopLoss != nil && currentPrice >= *pos.StopLoss {
		return TriggerStopLoss
	}
	if pos.TakeProfit != nil && currentPrice <= *pos.TakeProfit {
		return TriggerTakeProfit
	}
	return TriggerNone
}
