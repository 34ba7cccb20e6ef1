package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperhands/paperhands/internal/domain"
)

const otherWallet = "0x2222222222222222222222222222222222222222"

func TestSettlementUpdatesBothBoards(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)

	res := env.winTrade(t)

	xp, err := env.leader.Rank(context.Background(), BoardXP, testWallet)
	require.NoError(t, err)
	// Trade XP plus first_trade and first_win achievement awards.
	assert.InDelta(t, float64(res.XPAwarded+100+150), xp.Score, 1e-9)

	pnl, err := env.leader.Rank(context.Background(), BoardPnL, testWallet)
	require.NoError(t, err)
	assert.InDelta(t, res.Trade.PnL, pnl.Score, 1e-9)
}

func TestTopOrdersByScore(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.createAccount(t, otherWallet)

	require.NoError(t, env.boards.SetScore(context.Background(), BoardXP, testWallet, 500))
	require.NoError(t, env.boards.SetScore(context.Background(), BoardXP, otherWallet, 900))

	top, err := env.leader.Top(context.Background(), BoardXP, 10)
	require.NoError(t, err)
	require.Len(t, top, 2)
	assert.Equal(t, otherWallet, top[0].Wallet)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, testWallet, top[1].Wallet)
	assert.Equal(t, 2, top[1].Rank)
}

func TestTopRejectsUnknownBoard(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.leader.Top(context.Background(), "streak", 10)
	assert.True(t, domain.IsValidation(err))
}

func TestRebuildFromStores(t *testing.T) {
	env := newTestEnv(t)
	env.createAccount(t, testWallet)
	env.winTrade(t)

	// Wipe the boards, then reconstruct from Postgres state.
	env.boards.scores = map[string]map[string]float64{}
	require.NoError(t, env.leader.Rebuild(context.Background()))

	acct, err := env.account.GetOrCreate(context.Background(), testWallet)
	require.NoError(t, err)

	xp, err := env.leader.Rank(context.Background(), BoardXP, testWallet)
	require.NoError(t, err)
	assert.InDelta(t, float64(acct.TotalXP), xp.Score, 1e-9)

	pnl, err := env.leader.Rank(context.Background(), BoardPnL, testWallet)
	require.NoError(t, err)
	assert.InDelta(t, 1, pnl.Score, 1e-9) // 1% of 100 notional
}

func TestRankUnknownWallet(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.leader.Rank(context.Background(), BoardPnL, testWallet)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
