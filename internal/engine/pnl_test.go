package engine

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperhands/paperhands/internal/domain"
)

func TestLiquidationPriceBoundsLossToMargin(t *testing.T) {
	entries := []float64{0.5, 1.0, 42.5, 1850.0, 67123.45}
	leverages := []int{1, 2, 3, 5, 7, 10}
	sides := []domain.Side{domain.SideLong, domain.SideShort}

	for _, side := range sides {
		for _, entry := range entries {
			for _, lev := range leverages {
				size := 1000.0
				margin := RequiredMargin(size, lev)
				liq := LiquidationPrice(side, entry, lev)

				pnl := UnrealizedPnL(side, entry, liq, size)
				assert.InDeltaf(t, -margin, pnl, 1e-9,
					"side=%s entry=%v lev=%d", side, entry, lev)
			}
		}
	}
}

func TestLiquidationPriceDirection(t *testing.T) {
	longLiq := LiquidationPrice(domain.SideLong, 100, 4)
	assert.Equal(t, 75.0, longLiq)

	shortLiq := LiquidationPrice(domain.SideShort, 100, 4)
	assert.Equal(t, 125.0, shortLiq)

	// 1x long liquidates at zero: the entire notional is the margin.
	assert.Equal(t, 0.0, LiquidationPrice(domain.SideLong, 250, 1))
}

func TestUnrealizedPnL(t *testing.T) {
	tests := []struct {
		name    string
		side    domain.Side
		entry   float64
		current float64
		size    float64
		want    float64
	}{
		{"long gain", domain.SideLong, 1.0, 1.1, 1000, 100},
		{"long loss", domain.SideLong, 1.0, 0.9, 1000, -100},
		{"long flat", domain.SideLong, 1.0, 1.0, 1000, 0},
		{"short gain", domain.SideShort, 2.0, 1.5, 1000, 250},
		{"short loss", domain.SideShort, 2.0, 2.5, 1000, -250},
		{"large entry", domain.SideLong, 50000, 55000, 2000, 200},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UnrealizedPnL(tt.side, tt.entry, tt.current, tt.size)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestPnLIsRecomputable(t *testing.T) {
	// Settled values must be reproducible from stored fields alone.
	a := UnrealizedPnL(domain.SideShort, 1837.42, 1790.11, 3500)
	b := UnrealizedPnL(domain.SideShort, 1837.42, 1790.11, 3500)
	require.Equal(t, a, b)
}

func TestClampPnL(t *testing.T) {
	credited, shortfall := ClampPnL(-150, 100)
	assert.Equal(t, -100.0, credited)
	assert.Equal(t, 50.0, shortfall)

	credited, shortfall = ClampPnL(-100, 100)
	assert.Equal(t, -100.0, credited)
	assert.Zero(t, shortfall)

	credited, shortfall = ClampPnL(75, 100)
	assert.Equal(t, 75.0, credited)
	assert.Zero(t, shortfall)
}

func TestPnLPercentage(t *testing.T) {
	assert.Equal(t, 50.0, PnLPercentage(50, 100))
	assert.Equal(t, -100.0, PnLPercentage(-100, 100))
	assert.Zero(t, PnLPercentage(10, 0))
}

func ptr(v float64) *float64 { return &v }

func TestCheckTriggersLong(t *testing.T) {
	pos := domain.Position{
		Side:             domain.SideLong,
		EntryPrice:       100,
		Leverage:         5,
		LiquidationPrice: 80,
		StopLoss:         ptr(85),
		TakeProfit:       ptr(120),
	}

	assert.Equal(t, TriggerNone, CheckTriggers(pos, 100))
	assert.Equal(t, TriggerNone, CheckTriggers(pos, 86))
	assert.Equal(t, TriggerStopLoss, CheckTriggers(pos, 85))
	assert.Equal(t, TriggerStopLoss, CheckTriggers(pos, 81))
	assert.Equal(t, TriggerTakeProfit, CheckTriggers(pos, 120))
	assert.Equal(t, TriggerTakeProfit, CheckTriggers(pos, 150))

	// Liquidation wins over a stop-loss that is also breached.
	assert.Equal(t, TriggerLiquidation, CheckTriggers(pos, 80))
	assert.Equal(t, TriggerLiquidation, CheckTriggers(pos, 60))
}

func TestCheckTriggersShort(t *testing.T) {
	pos := domain.Position{
		Side:             domain.SideShort,
		EntryPrice:       100,
		Leverage:         5,
		LiquidationPrice: 120,
		StopLoss:         ptr(110),
		TakeProfit:       ptr(90),
	}

	assert.Equal(t, TriggerNone, CheckTriggers(pos, 100))
	assert.Equal(t, TriggerStopLoss, CheckTriggers(pos, 110))
	assert.Equal(t, TriggerTakeProfit, CheckTriggers(pos, 90))
	assert.Equal(t, TriggerLiquidation, CheckTriggers(pos, 120))
	assert.Equal(t, TriggerLiquidation, CheckTriggers(pos, 135))
}

func TestCheckTriggersWithoutStops(t *testing.T) {
	pos := domain.Position{
		Side:             domain.SideLong,
		EntryPrice:       100,
		Leverage:         10,
		LiquidationPrice: 90,
	}

	assert.Equal(t, TriggerNone, CheckTriggers(pos, 95))
	assert.Equal(t, TriggerLiquidation, CheckTriggers(pos, 90))
}

func TestMarginRoundTrip(t *testing.T) {
	// Opening debits size/leverage; closing credits margin+pnl; the net
	// balance change must equal the pnl.
	const balance = 10000.0
	size, lev := 1000.0, 10
	entry, exit := 1.0, 1.1

	margin := RequiredMargin(size, lev)
	require.Equal(t, 100.0, margin)

	afterOpen := balance - margin
	require.Equal(t, 9900.0, afterOpen)

	pnl := UnrealizedPnL(domain.SideLong, entry, exit, size)
	credited, shortfall := ClampPnL(pnl, margin)
	require.Zero(t, shortfall)

	afterClose := afterOpen + margin + credited
	assert.InDelta(t, balance+pnl, afterClose, 1e-9)

	// Closing exactly at the liquidation price returns a zero credit.
	liq := LiquidationPrice(domain.SideLong, entry, lev)
	require.InDelta(t, 0.9, liq, 1e-12)
	liqPnL := UnrealizedPnL(domain.SideLong, entry, liq, size)
	credited, shortfall = ClampPnL(liqPnL, margin)
	assert.InDelta(t, -margin, credited, 1e-9)
	assert.InDelta(t, 0, shortfall, 1e-9)
	assert.InDelta(t, 0, margin+credited, 1e-9)
}

func TestUnrealizedPnLFinite(t *testing.T) {
	// entryPrice > 0 is a precondition; the formula must stay finite for
	// any positive entry.
	got := UnrealizedPnL(domain.SideLong, math.SmallestNonzeroFloat64, 1, 1)
	assert.False(t, math.IsNaN(got))
}
