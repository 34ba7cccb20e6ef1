package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperhands/paperhands/internal/domain"
)

func (e *testEnv) winTrade(t *testing.T) domain.SettlementResult {
	t.Helper()
	e.prices.set("BTC-USD", 100)
	pos, _, err := e.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 100, Leverage: 2,
	})
	require.NoError(t, err)
	e.prices.set("BTC-USD", 101)
	res, err := e.trading.ClosePosition(context.Background(), testWallet, pos.ID)
	require.NoError(t, err)
	return res
}

func unlockedTypes(t *testing.T, env *testEnv) map[domain.AchievementType]bool {
	t.Helper()
	views, err := env.achieve.List(context.Background(), testWallet)
	require.NoError(t, err)
	out := map[domain.AchievementType]bool{}
	for _, v := range views {
		if v.Unlocked {
			out[v.Type] = true
		}
	}
	return out
}

func TestFirstTradeAndFirstWinUnlock(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)

	env.winTrade(t)

	got := unlockedTypes(t, env)
	assert.True(t, got[domain.AchievementFirstTrade])
	assert.True(t, got[domain.AchievementFirstWin])
	assert.False(t, got[domain.AchievementTenTrades])
	assert.False(t, got[domain.AchievementWinStreak5])
}

func TestWinStreakUnlocksAtFive(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)

	for i := 0; i < 4; i++ {
		env.winTrade(t)
	}
	assert.False(t, unlockedTypes(t, env)[domain.AchievementWinStreak5])

	env.winTrade(t)
	assert.True(t, unlockedTypes(t, env)[domain.AchievementWinStreak5])
}

func TestFirstLiquidationUnlocks(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.prices.set("BTC-USD", 100)

	pos, _, err := env.trading.OpenPosition(context.Background(), OpenRequest{
		Wallet: testWallet, Pair: "BTC-USD", Side: domain.SideLong,
		Size: 100, Leverage: 10,
	})
	require.NoError(t, err)

	env.prices.set("BTC-USD", 80)
	env.trading.sweepTriggers(context.Background())
	_ = pos

	got := unlockedTypes(t, env)
	assert.True(t, got[domain.AchievementFirstLiquidation])
	assert.False(t, got[domain.AchievementFirstWin])
}

func TestUnlockIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)

	_, err := env.achieve.TryUnlock(context.Background(), testWallet, domain.AchievementBigWin)
	require.NoError(t, err)

	_, err = env.achieve.TryUnlock(context.Background(), testWallet, domain.AchievementBigWin)
	assert.ErrorIs(t, err, domain.ErrAlreadyUnlocked)

	// XP was credited exactly once.
	acct, err := env.account.GetOrCreate(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Equal(t, int64(400), acct.TotalXP)
}

func TestUnlockUnknownType(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)

	_, err := env.achieve.TryUnlock(context.Background(), testWallet, "moon_boy")
	assert.True(t, domain.IsValidation(err))
}

func TestAchievementXPFeedsLeaderboard(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)

	_, err := env.achieve.TryUnlock(context.Background(), testWallet, domain.AchievementBigWin)
	require.NoError(t, err)

	entry, err := env.leader.Rank(context.Background(), BoardXP, testWallet)
	require.NoError(t, err)
	assert.InDelta(t, 400, entry.Score, 1e-9)
}

func TestCatalogListCoversAllTypes(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)

	views, err := env.achieve.List(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Len(t, views, len(env.achieve.Catalog()))
	for _, v := range views {
		assert.False(t, v.Unlocked)
		assert.Nil(t, v.UnlockedAt)
	}
}
