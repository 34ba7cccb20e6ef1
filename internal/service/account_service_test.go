package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperhands/paperhands/internal/domain"
)

func TestGetOrCreateIsIdempotent(t *testing.T) {
	env := newTestEnv(t)

	first, err := env.account.GetOrCreate(context.Background(), testWallet)
	require.NoError(t, err)
	assert.InDelta(t, 10000, first.Balance, 1e-9)
	assert.Equal(t, 1, first.CurrentLevel)
	assert.Equal(t, domain.AccountStatusActive, first.Status)

	// Second touch returns the same row, not a fresh balance.
	env.prices.set("BTC-USD", 100)
	_, _, err = env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 200, Leverage: 2,
	})
	require.NoError(t, err)

	again, err := env.account.GetOrCreate(context.Background(), testWallet)
	require.NoError(t, err)
	assert.InDelta(t, 9900, again.Balance, 1e-9)
}

func TestSummaryEquity(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 100)

	_, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 1000, Leverage: 10,
	})
	require.NoError(t, err)

	env.prices.set("BTC-USD", 110)
	sum, err := env.account.Summary(context.Background(), testWallet)
	require.NoError(t, err)

	assert.InDelta(t, 9900, sum.Balance, 1e-9)
	assert.InDelta(t, 100, sum.ReservedMargin, 1e-9)
	// balance + margin + 10% unrealized on 1000 notional
	assert.InDelta(t, 10100, sum.Equity, 1e-9)
	assert.Equal(t, 1, sum.OpenPositions)
	assert.Equal(t, int64(0), sum.TotalTrades)
}

func TestSummaryAfterTrades(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 100)

	pos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 200, Leverage: 2,
	})
	require.NoError(t, err)

	env.prices.set("BTC-USD", 110)
	_, err = env.trading.ClosePosition(context.Background(), testWallet, pos.ID)
	require.NoError(t, err)

	sum, err := env.account.Summary(context.Background(), testWallet)
	require.NoError(t, err)

	assert.Equal(t, int64(1), sum.TotalTrades)
	assert.Equal(t, int64(1), sum.WinningTrades)
	assert.InDelta(t, 20, sum.RealizedPnL, 1e-9)
	assert.Equal(t, 0, sum.OpenPositions)
	assert.Zero(t, sum.ReservedMargin)
	// Progression reflects trade XP plus achievement awards.
	assert.Positive(t, sum.Progression.TotalXP)
	assert.Equal(t, 1, sum.Progression.CurrentStreak)
}

func TestArchiveBlocksTrading(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 100)

	require.NoError(t, env.account.Archive(context.Background(), testWallet))

	_, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 100, Leverage: 2,
	})
	assert.ErrorIs(t, err, domain.ErrAccountArchived)

	// Archiving twice is not silently repeatable.
	assert.Error(t, env.account.Archive(context.Background(), testWallet))
}

func TestSummaryUnknownWallet(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.account.Summary(context.Background(), testWallet)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
