package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/server/middleware"
	"github.com/paperhands/paperhands/internal/service"
)

// TradingService defines the methods that the position handler requires.
type TradingService interface {
	OpenPosition(ctx context.Context, req service.OpenRequest) (domain.Position, float64, error)
	ClosePosition(ctx context.Context, wallet, positionID string) (domain.SettlementResult, error)
	ListPositions(ctx context.Context, wallet string) ([]domain.PositionView, error)
	GetPosition(ctx context.Context, wallet, positionID string) (domain.PositionView, error)
}

// PositionHandler serves position-related HTTP endpoints.
type PositionHandler struct {
	trading TradingService
	logger  *slog.Logger
}

// NewPositionHandler creates a PositionHandler with the given service and logger.
func NewPositionHandler(trading TradingService, logger *slog.Logger) *PositionHandler {
	return &PositionHandler{trading: trading, logger: logger}
}

// openPositionRequest is the JSON body for opening a position.
type openPositionRequest struct {
	Pair       string   `json:"pair"`
	Side       string   `json:"side"`
	Size       float64  `json:"size"`
	Leverage   int      `json:"leverage"`
	StopLoss   *float64 `json:"stop_loss,omitempty"`
	TakeProfit *float64 `json:"take_profit,omitempty"`
}

// openPositionResponse carries the created position and the balance after
// the margin debit.
type openPositionResponse struct {
	Position   domain.Position `json:"position"`
	NewBalance float64         `json:"new_balance"`
}

// listPositionsResponse wraps the list positions response.
type listPositionsResponse struct {
	Positions []domain.PositionView `json:"positions"`
}

// closePositionResponse is the settled outcome returned to the client.
type closePositionResponse struct {
	Trade      domain.Trade `json:"trade"`
	NewBalance float64      `json:"new_balance"`
	XPAwarded  int64        `json:"xp_awarded"`
	NewLevel   int          `json:"new_level"`
	LeveledUp  bool         `json:"leveled_up"`
	NewStreak  int          `json:"new_streak"`
}

// ListPositions returns the caller's open positions with live unrealized PnL.
// GET /api/positions
func (h *PositionHandler) ListPositions(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r.Context())

	positions, err := h.trading.ListPositions(r.Context(), wallet)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list positions failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to list positions")
		return
	}

	if positions == nil {
		positions = []domain.PositionView{}
	}
	writeJSON(w, http.StatusOK, listPositionsResponse{Positions: positions})
}

// GetPosition returns a single open position with live unrealized PnL.
// GET /api/positions/{id}
func (h *PositionHandler) GetPosition(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r.Context())
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing position id")
		return
	}

	view, err := h.trading.GetPosition(r.Context(), wallet, id)
	if err != nil {
		writeDomainError(w, err, "failed to load position")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// OpenPosition opens a leveraged position at the current cached price.
// POST /api/positions
func (h *PositionHandler) OpenPosition(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r.Context())

	var body openPositionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	pos, newBalance, err := h.trading.OpenPosition(r.Context(), service.OpenRequest{
		Wallet:     wallet,
		Pair:       body.Pair,
		Side:       domain.Side(strings.ToUpper(strings.TrimSpace(body.Side))),
		Size:       body.Size,
		Leverage:   body.Leverage,
		StopLoss:   body.StopLoss,
		TakeProfit: body.TakeProfit,
	})
	if err != nil {
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: open position failed",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "failed to open position")
		return
	}

	writeJSON(w, http.StatusCreated, openPositionResponse{
		Position:   pos,
		NewBalance: newBalance,
	})
}

// ClosePosition settles a position at the current cached price. If the price
// has crossed the liquidation threshold the close settles at the liquidation
// price instead.
// POST /api/positions/{id}/close
func (h *PositionHandler) ClosePosition(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r.Context())
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing position id")
		return
	}

	res, err := h.trading.ClosePosition(r.Context(), wallet, id)
	if err != nil {
		if !domain.IsValidation(err) {
			h.logger.ErrorContext(r.Context(), "handler: close position failed",
				slog.String("wallet", wallet),
				slog.String("position_id", id),
				slog.String("error", err.Error()),
			)
		}
		writeDomainError(w, err, "failed to close position")
		return
	}

	writeJSON(w, http.StatusOK, closePositionResponse{
		Trade:      res.Trade,
		NewBalance: res.NewBalance,
		XPAwarded:  res.XPAwarded,
		NewLevel:   res.NewLevel,
		LeveledUp:  res.LeveledUp,
		NewStreak:  res.NewStreak,
	})
}
