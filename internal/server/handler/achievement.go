package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/server/middleware"
	"github.com/paperhands/paperhands/internal/service"
)

// AchievementService defines the methods that the achievement handler requires.
type AchievementService interface {
	List(ctx context.Context, wallet string) ([]service.AchievementView, error)
	TryUnlock(ctx context.Context, wallet string, typ domain.AchievementType) (domain.Achievement, error)
}

// AchievementHandler serves achievement-related HTTP endpoints.
type AchievementHandler struct {
	achievements AchievementService
	logger       *slog.Logger
}

// NewAchievementHandler creates an AchievementHandler with the given service
// and logger.
func NewAchievementHandler(achievements AchievementService, logger *slog.Logger) *AchievementHandler {
	return &AchievementHandler{achievements: achievements, logger: logger}
}

// listAchievementsResponse wraps the annotated catalog.
type listAchievementsResponse struct {
	Achievements []service.AchievementView `json:"achievements"`
}

// ListAchievements returns the full catalog annotated with the caller's
// unlock state.
// GET /api/achievements
func (h *AchievementHandler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r.Context())

	views, err := h.achievements.List(r.Context(), wallet)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list achievements failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to list achievements")
		return
	}

	writeJSON(w, http.StatusOK, listAchievementsResponse{Achievements: views})
}

// UnlockAchievement attempts an explicit unlock of the named achievement.
// Unlock conditions are still enforced server-side during settlement; this
// endpoint exists so clients can retry a missed unlock.
// POST /api/achievements/{type}/unlock
func (h *AchievementHandler) UnlockAchievement(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r.Context())
	typ := pathParam(r, "type")
	if typ == "" {
		writeError(w, http.StatusBadRequest, "missing achievement type")
		return
	}

	unlocked, err := h.achievements.TryUnlock(r.Context(), wallet, domain.AchievementType(typ))
	if err != nil {
		// A repeated unlock is a no-op, not a failure: respond 200 with the
		// already-held achievement.
		if errors.Is(err, domain.ErrAlreadyUnlocked) {
			h.writeExistingUnlock(w, r, wallet, domain.AchievementType(typ))
			return
		}
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: unlock achievement failed",
				slog.String("wallet", wallet),
				slog.String("type", typ),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "failed to unlock achievement")
		return
	}

	writeJSON(w, http.StatusCreated, unlocked)
}

// writeExistingUnlock responds with the caller's already-unlocked achievement
// of the given type.
func (h *AchievementHandler) writeExistingUnlock(w http.ResponseWriter, r *http.Request, wallet string, typ domain.AchievementType) {
	views, err := h.achievements.List(r.Context(), wallet)
	if err != nil {
		writeDomainError(w, err, "failed to load achievement")
		return
	}
	for _, v := range views {
		if v.Type == typ && v.Unlocked {
			writeJSON(w, http.StatusOK, v)
			return
		}
	}
	// The unlock raced an account wipe; nothing to return.
	writeError(w, http.StatusNotFound, "not found")
}
