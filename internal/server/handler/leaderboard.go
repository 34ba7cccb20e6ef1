package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/server/middleware"
)

// LeaderboardService defines the methods that the leaderboard handler requires.
type LeaderboardService interface {
	Top(ctx context.Context, board string, limit int) ([]domain.LeaderboardEntry, error)
	Rank(ctx context.Context, board, wallet string) (domain.LeaderboardEntry, error)
}

// LeaderboardHandler serves the ranked leaderboard endpoint.
type LeaderboardHandler struct {
	boards LeaderboardService
	logger *slog.Logger
}

// NewLeaderboardHandler creates a LeaderboardHandler with the given service
// and logger.
func NewLeaderboardHandler(boards LeaderboardService, logger *slog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{boards: boards, logger: logger}
}

// leaderboardResponse carries the top entries plus the caller's own rank when
// they appear on the board.
type leaderboardResponse struct {
	Board   string                    `json:"board"`
	Entries []domain.LeaderboardEntry `json:"entries"`
	Me      *domain.LeaderboardEntry  `json:"me,omitempty"`
}

// GetLeaderboard returns the top-ranked wallets for a board.
// GET /api/leaderboard?by=xp|pnl&limit=10
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	board := r.URL.Query().Get("by")
	if board == "" {
		board = "xp"
	}

	limit := 10
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > 100 {
		limit = 100
	}

	entries, err := h.boards.Top(r.Context(), board, limit)
	if err != nil {
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: leaderboard failed",
				slog.String("board", board),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "failed to load leaderboard")
		return
	}
	if entries == nil {
		entries = []domain.LeaderboardEntry{}
	}

	resp := leaderboardResponse{Board: board, Entries: entries}

	if wallet := middleware.Wallet(r.Context()); wallet != "" {
		me, err := h.boards.Rank(r.Context(), board, wallet)
		if err == nil {
			resp.Me = &me
		} else if !errors.Is(err, domain.ErrNotFound) {
			h.logger.WarnContext(r.Context(), "handler: own rank lookup failed",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
