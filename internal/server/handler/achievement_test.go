package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/server/middleware"
	"github.com/paperhands/paperhands/internal/service"
)

const testWallet = "0x52908400098527886E0F7030069857D2E4169EE7"

// fakeAchievements unlocks each type once and reports it as held afterwards.
type fakeAchievements struct {
	unlocked map[domain.AchievementType]domain.Achievement
}

func newFakeAchievements() *fakeAchievements {
	return &fakeAchievements{unlocked: make(map[domain.AchievementType]domain.Achievement)}
}

func (f *fakeAchievements) List(ctx context.Context, wallet string) ([]service.AchievementView, error) {
	views := make([]service.AchievementView, 0, len(f.unlocked))
	for _, a := range f.unlocked {
		at := a.UnlockedAt
		views = append(views, service.AchievementView{
			AchievementDef: domain.AchievementDef{
				Type:     a.Type,
				Name:     a.Name,
				XPReward: a.XPReward,
			},
			Unlocked:   true,
			UnlockedAt: &at,
		})
	}
	return views, nil
}

func (f *fakeAchievements) TryUnlock(ctx context.Context, wallet string, typ domain.AchievementType) (domain.Achievement, error) {
	if _, ok := f.unlocked[typ]; ok {
		return domain.Achievement{}, domain.ErrAlreadyUnlocked
	}
	a := domain.Achievement{
		ID:         "a1",
		Wallet:     wallet,
		Type:       typ,
		Name:       "First Trade",
		XPReward:   100,
		UnlockedAt: time.Now().UTC(),
	}
	f.unlocked[typ] = a
	return a, nil
}

func newAchievementMux(svc AchievementService) http.Handler {
	h := NewAchievementHandler(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	mux := http.NewServeMux()
	mux.Handle("POST /api/achievements/{type}/unlock",
		middleware.WalletAuth(middleware.AuthConfig{Disabled: true})(http.HandlerFunc(h.UnlockAchievement)))
	return mux
}

func unlockRequest(typ string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/achievements/"+typ+"/unlock", nil)
	r.Header.Set(middleware.HeaderWallet, testWallet)
	return r
}

func TestUnlockAchievementFirstTimeCreates(t *testing.T) {
	mux := newAchievementMux(newFakeAchievements())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, unlockRequest("first_trade"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var got domain.Achievement
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.AchievementFirstTrade, got.Type)
	assert.EqualValues(t, 100, got.XPReward)
}

func TestUnlockAchievementRepeatIsNoOp(t *testing.T) {
	mux := newAchievementMux(newFakeAchievements())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, unlockRequest("first_trade"))
	require.Equal(t, http.StatusCreated, rec.Code)

	// A second unlock of the same type succeeds without granting anything,
	// returning the achievement the wallet already holds.
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, unlockRequest("first_trade"))

	require.Equal(t, http.StatusOK, rec.Code)
	var got service.AchievementView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, domain.AchievementFirstTrade, got.Type)
	assert.True(t, got.Unlocked)
	assert.NotContains(t, rec.Body.String(), "error")
}
