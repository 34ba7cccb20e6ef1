package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/paperhands/paperhands/internal/domain"
)

// PriceHandler serves the public price endpoints from the price cache.
type PriceHandler struct {
	prices domain.PriceCache
	pairs  []string
	logger *slog.Logger
}

// NewPriceHandler creates a PriceHandler over the configured trading pairs.
func NewPriceHandler(prices domain.PriceCache, pairs []string, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{prices: prices, pairs: pairs, logger: logger}
}

// priceResponse is a single pair's latest cached price.
type priceResponse struct {
	Pair      string  `json:"pair"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
}

// ListPrices returns the latest cached price for every configured pair.
// Pairs without a tick yet are omitted.
// GET /api/prices
func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.prices.GetPrices(r.Context(), h.pairs)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list prices failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to load prices")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

// GetPrice returns the latest cached price for one pair.
// GET /api/prices/{pair}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	pair := pathParam(r, "pair")
	if pair == "" {
		writeError(w, http.StatusBadRequest, "missing pair")
		return
	}

	price, ts, err := h.prices.GetPrice(r.Context(), pair)
	if err != nil {
		writeDomainError(w, err, "failed to load price")
		return
	}

	writeJSON(w, http.StatusOK, priceResponse{
		Pair:      pair,
		Price:     price,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
	})
}
