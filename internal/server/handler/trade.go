package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/server/middleware"
)

// TradeReader defines the trade-history reads that the handler requires.
type TradeReader interface {
	GetByID(ctx context.Context, id string) (domain.Trade, error)
	ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.Trade, error)
	Stats(ctx context.Context, wallet string) (domain.TradeStats, error)
}

// TradeHandler serves the settled-trade history endpoints.
type TradeHandler struct {
	trades TradeReader
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler with the given store and logger.
func NewTradeHandler(trades TradeReader, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// listTradesResponse wraps the list trades response.
type listTradesResponse struct {
	Trades []domain.Trade    `json:"trades"`
	Stats  domain.TradeStats `json:"stats"`
}

// ListTrades returns the caller's settled trades, newest first.
// GET /api/trades?limit=50&offset=0
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r.Context())
	opts := parseListOpts(r)

	trades, err := h.trades.ListByWallet(r.Context(), wallet, opts)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list trades failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to list trades")
		return
	}

	stats, err := h.trades.Stats(r.Context(), wallet)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: trade stats failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		writeDomainError(w, err, "failed to load trade stats")
		return
	}

	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, listTradesResponse{Trades: trades, Stats: stats})
}

// GetTrade returns a single settled trade owned by the caller.
// GET /api/trades/{id}
func (h *TradeHandler) GetTrade(w http.ResponseWriter, r *http.Request) {
	wallet := middleware.Wallet(r.Context())
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing trade id")
		return
	}

	trade, err := h.trades.GetByID(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "failed to load trade")
		return
	}
	if trade.Wallet != wallet {
		// Trades are private to their owner.
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	writeJSON(w, http.StatusOK, trade)
}
