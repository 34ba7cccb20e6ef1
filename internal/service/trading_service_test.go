package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperhands/paperhands/internal/domain"
)

const testWallet = "0x1111111111111111111111111111111111111111"

type testEnv struct {
	st      *fakeState
	prices  *fakePriceSource
	bus     *fakeBus
	audit   *fakeAuditStore
	boards  *fakeLeaderboard
	trading *TradingService
	account *AccountService
	achieve *AchievementService
	leader  *LeaderboardService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	st := newFakeState()
	prices := newFakePriceSource()
	bus := &fakeBus{}
	audit := &fakeAuditStore{}
	boards := newFakeLeaderboard()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts := &fakeAccountStore{st: st}
	positions := &fakePositionStore{st: st}
	trades := &fakeTradeStore{st: st}
	achievements := &fakeAchievementStore{st: st}
	settle := &fakeSettlementStore{st: st}
	cache := &fakePriceCache{src: prices}

	leader := NewLeaderboardService(boards, accounts, trades, logger)
	achieve := NewAchievementService(achievements, trades, settle, bus, audit, leader, logger)
	trading := NewTradingService(positions, settle, prices, fakeLockManager{}, bus, audit, achieve, leader, TradingConfig{
		MaxLeverage:     10,
		MinPositionSize: 1,
		MaxPositionSize: 1_000_000,
		Pairs:           []string{"BTC-USD", "ETH-USD"},
		MaxPriceAge:     30 * time.Second,
		LockTTL:         10 * time.Second,
	}, logger)
	account := NewAccountService(accounts, trades, positions, cache, audit, 10000, logger)

	return &testEnv{
		st:      st,
		prices:  prices,
		bus:     bus,
		audit:   audit,
		boards:  boards,
		trading: trading,
		account: account,
		achieve: achieve,
		leader:  leader,
	}
}

func (e *testEnv) createAccount(t *testing.T, wallet string) domain.Account {
	t.Helper()
	acct, err := e.account.GetOrCreate(context.Background(), wallet)
	require.NoError(t, err)
	return acct
}

func TestOpenPositionDebitsMargin(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 1.0)

	pos, newBalance, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet:   testWallet,
		Pair:     "BTC-USD",
		Side:     domain.SideLong,
		Size:     1000,
		Leverage: 10,
	})
	require.NoError(t, err)

	assert.InDelta(t, 9900, newBalance, 1e-9)
	assert.InDelta(t, 100, pos.Margin(), 1e-9)
	assert.InDelta(t, 1.0, pos.EntryPrice, 1e-12)
	assert.InDelta(t, 0.9, pos.LiquidationPrice, 1e-12)
}

func TestOpenPositionValidation(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 100)

	cases := []struct {
		name string
		req  OpenRequest
	}{
		{"unknown pair", OpenRequest{Wallet: testWallet, Pair: "DOGE-USD", Side: domain.SideLong, Size: 100, Leverage: 2}},
		{"bad side", OpenRequest{Wallet: testWallet, Pair: "BTC-USD", Side: "SIDEWAYS", Size: 100, Leverage: 2}},
		{"zero size", OpenRequest{Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong, Size: 0, Leverage: 2}},
		{"leverage too high", OpenRequest{Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong, Size: 100, Leverage: 11}},
		{"leverage zero", OpenRequest{Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong, Size: 100, Leverage: 0}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := env.trading.OpenPosition(context.Background(), tc.req)
			assert.True(t, domain.IsValidation(err), "expected validation error, got %v", err)
		})
	}
}

func TestOpenPositionStopValidation(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 100)

	sl := 101.0 // above entry on a LONG
	_, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 100, Leverage: 2, StopLoss: &sl,
	})
	assert.True(t, domain.IsValidation(err))

	// Stop below the liquidation price can never fire.
	sl2 := 40.0 // liq at 50 for 2x
	_, _, err = env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 100, Leverage: 2, StopLoss: &sl2,
	})
	assert.True(t, domain.IsValidation(err))

	tp := 99.0 // below entry on a LONG
	_, _, err = env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 100, Leverage: 2, TakeProfit: &tp,
	})
	assert.True(t, domain.IsValidation(err))
}

func TestOpenPositionInsufficientFunds(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 100)

	_, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 20001, Leverage: 2, // margin 10000.5 > balance
	})
	assert.ErrorIs(t, err, domain.ErrInsufficientFunds)
}

func TestOpenPositionStalePrice(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.setStale("BTC-USD", 100, time.Minute)

	_, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 100, Leverage: 2,
	})
	assert.ErrorIs(t, err, domain.ErrStalePrice)
}

func TestClosePositionRoundTrip(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 1.0)

	pos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 1000, Leverage: 10,
	})
	require.NoError(t, err)

	env.prices.set("BTC-USD", 1.1)
	res, err := env.trading.ClosePosition(context.Background(), testWallet, pos.ID)
	require.NoError(t, err)

	// 10% move on 1000 notional.
	assert.InDelta(t, 100, res.Trade.PnL, 1e-9)
	assert.InDelta(t, 10100, res.NewBalance, 1e-9)
	assert.Equal(t, domain.TradeStatusClosed, res.Trade.Status)
	assert.Equal(t, int64(50), res.XPAwarded)
	assert.Equal(t, 1, res.NewStreak)
	assert.Zero(t, res.Trade.Shortfall)
}

func TestClosePositionSecondAttemptFails(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 1.0)

	pos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 1000, Leverage: 10,
	})
	require.NoError(t, err)

	env.prices.set("BTC-USD", 1.1)
	res, err := env.trading.ClosePosition(context.Background(), testWallet, pos.ID)
	require.NoError(t, err)
	assert.InDelta(t, 10100, res.NewBalance, 1e-9)

	// A retry after settlement must not credit the account again.
	_, err = env.trading.ClosePosition(context.Background(), testWallet, pos.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	acct, err := env.account.GetOrCreate(context.Background(), testWallet)
	require.NoError(t, err)
	assert.InDelta(t, 10100, acct.Balance, 1e-9)

	trades, err := (&fakeTradeStore{st: env.st}).ListByWallet(context.Background(), testWallet, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, trades, 1)
}

func TestClosePositionConcurrentSingleWinner(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 1.0)

	pos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 1000, Leverage: 10,
	})
	require.NoError(t, err)

	env.prices.set("BTC-USD", 1.1)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.trading.ClosePosition(context.Background(), testWallet, pos.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var settled, missed int
	for err := range errs {
		switch {
		case err == nil:
			settled++
		case errors.Is(err, domain.ErrNotFound):
			missed++
		default:
			t.Fatalf("unexpected close error: %v", err)
		}
	}
	assert.Equal(t, 1, settled)
	assert.Equal(t, 1, missed)

	acct, err := env.account.GetOrCreate(context.Background(), testWallet)
	require.NoError(t, err)
	assert.InDelta(t, 10100, acct.Balance, 1e-9)
}

func TestClosePositionWrongWallet(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 1.0)

	pos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 1000, Leverage: 10,
	})
	require.NoError(t, err)

	_, err = env.trading.ClosePosition(context.Background(), "0x2222222222222222222222222222222222222222", pos.ID)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestClosePositionPastLiquidationSettlesAtLiqPrice(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 1.0)

	pos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 1000, Leverage: 10,
	})
	require.NoError(t, err)

	// Price gapped far past the liquidation level before the close.
	env.prices.set("BTC-USD", 0.5)
	res, err := env.trading.ClosePosition(context.Background(), testWallet, pos.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.TradeStatusLiquidated, res.Trade.Status)
	assert.InDelta(t, pos.LiquidationPrice, res.Trade.ExitPrice, 1e-12)
	assert.InDelta(t, -100, res.Trade.PnL, 1e-9) // loss equals margin
	assert.InDelta(t, 9900, res.NewBalance, 1e-9)
	assert.Zero(t, res.Trade.Shortfall)
	assert.Equal(t, 0, res.NewStreak)
	assert.Zero(t, res.XPAwarded)
}

func TestTriggerSweepLiquidates(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 1.0)

	pos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideShort,
		Size: 1000, Leverage: 10,
	})
	require.NoError(t, err)
	assert.InDelta(t, 1.1, pos.LiquidationPrice, 1e-12)

	env.prices.set("BTC-USD", 1.15)
	env.trading.sweepTriggers(context.Background())

	open, err := env.trading.ListPositions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Empty(t, open)

	trades, err := (&fakeTradeStore{st: env.st}).ListByWallet(context.Background(), testWallet, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.Equal(t, domain.TradeStatusLiquidated, trades[0].Status)
	assert.InDelta(t, pos.LiquidationPrice, trades[0].ExitPrice, 1e-12)
}

func TestTriggerSweepStopLossAndTakeProfit(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 100)
	env.prices.set("ETH-USD", 100)

	sl := 95.0
	slPos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 100, Leverage: 2, StopLoss: &sl,
	})
	require.NoError(t, err)

	tp := 110.0
	tpPos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "ETH-USD", Side: domain.SideLong,
		Size: 100, Leverage: 2, TakeProfit: &tp,
	})
	require.NoError(t, err)

	env.prices.set("BTC-USD", 94) // through the stop
	env.prices.set("ETH-USD", 112)
	env.trading.sweepTriggers(context.Background())

	open, err := env.trading.ListPositions(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Empty(t, open)

	trades, err := (&fakeTradeStore{st: env.st}).ListByWallet(context.Background(), testWallet, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, trades, 2)

	byPos := map[string]domain.Trade{}
	for _, tr := range trades {
		byPos[tr.PositionID] = tr
	}
	// Stops settle at the observed price, not the stop level.
	assert.InDelta(t, 94, byPos[slPos.ID].ExitPrice, 1e-12)
	assert.Equal(t, domain.TradeStatusClosed, byPos[slPos.ID].Status)
	assert.InDelta(t, 112, byPos[tpPos.ID].ExitPrice, 1e-12)
	assert.Equal(t, domain.TradeStatusClosed, byPos[tpPos.ID].Status)
}

func TestListPositionsCarriesLivePnL(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 100)

	_, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 200, Leverage: 2,
	})
	require.NoError(t, err)

	env.prices.set("BTC-USD", 105)
	views, err := env.trading.ListPositions(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, views, 1)

	assert.InDelta(t, 105, views[0].CurrentPrice, 1e-12)
	assert.InDelta(t, 10, views[0].UnrealizedPnL, 1e-9) // 5% of 200
}

func TestWinStreakXPAccumulates(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)

	var lastRes domain.SettlementResult
	for i := 0; i < 3; i++ {
		env.prices.set("BTC-USD", 100)
		pos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
			Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
			Size: 100, Leverage: 2,
		})
		require.NoError(t, err)

		env.prices.set("BTC-USD", 101)
		lastRes, err = env.trading.ClosePosition(context.Background(), testWallet, pos.ID)
		require.NoError(t, err)
	}

	// Third consecutive win: 50 base + 25*3 streak bonus.
	assert.Equal(t, 3, lastRes.NewStreak)
	assert.Equal(t, int64(125), lastRes.XPAwarded)
}
