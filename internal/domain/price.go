package domain

import (
	"context"
	"time"
)

// PricePoint is a single observation from the price source.
type PricePoint struct {
	Pair      string    `json:"pair"`
	Price     float64   `json:"price"`
	Timestamp time.Time `json:"timestamp"`
}

// PriceSource supplies the current price for a trading pair. Implementations
// may be a simulated random walk or a live feed adapter; consumers do not
// care which. Prices are positive and timestamps monotonic per pair.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, pair string) (PricePoint, error)
}
