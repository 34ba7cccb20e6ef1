// Package feed produces price ticks for the trading pairs. The simulated
// source runs a random walk; the live source mirrors an exchange websocket.
// Both write every tick to the price cache and publish it on the "prices"
// channel for the websocket hub and the trigger monitor.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/paperhands/paperhands/internal/domain"
)

// PriceChannel is the pub/sub channel ticks are published on.
const PriceChannel = "prices"

// TickEvent is the JSON shape published for every price tick.
type TickEvent struct {
	Event     string  `json:"event"`
	Pair      string  `json:"pair"`
	Price     float64 `json:"price"`
	Timestamp string  `json:"timestamp"`
}

// publishTick writes the tick to the cache and broadcasts it on the bus.
func publishTick(ctx context.Context, cache domain.PriceCache, bus domain.SignalBus, p domain.PricePoint) error {
	if err := cache.SetPrice(ctx, p.Pair, p.Price, p.Timestamp); err != nil {
		return err
	}

	payload, err := json.Marshal(TickEvent{
		Event:     "price_tick",
		Pair:      p.Pair,
		Price:     p.Price,
		Timestamp: p.Timestamp.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("feed: marshal tick %s: %w", p.Pair, err)
	}
	return bus.Publish(ctx, PriceChannel, payload)
}

// CacheSource implements domain.PriceSource over the price cache. The
// timestamp comes back with the price so callers can reject stale reads.
type CacheSource struct {
	cache domain.PriceCache
}

// NewCacheSource creates a CacheSource.
func NewCacheSource(cache domain.PriceCache) *CacheSource {
	return &CacheSource{cache: cache}
}

// GetCurrentPrice returns the latest cached tick for a pair. It returns
// domain.ErrNotFound when the pair has never ticked.
func (s *CacheSource) GetCurrentPrice(ctx context.Context, pair string) (domain.PricePoint, error) {
	price, ts, err := s.cache.GetPrice(ctx, pair)
	if err != nil {
		return domain.PricePoint{}, err
	}
	return domain.PricePoint{Pair: pair, Price: price, Timestamp: ts}, nil
}

// Compile-time interface check.
var _ domain.PriceSource = (*CacheSource)(nil)
