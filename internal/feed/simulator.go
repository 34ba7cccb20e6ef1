package feed

import (
	"context"
	"log/slog"
	"math/rand"
	"time"

	"github.com/paperhands/paperhands/internal/domain"
)

// Simulator produces ticks from a geometric random walk per pair. Each tick
// multiplies the price by 1 + N(0, volatility), floored well above zero so a
// pair cannot walk itself out of existence.
type Simulator struct {
	cache      domain.PriceCache
	bus        domain.SignalBus
	interval   time.Duration
	volatility float64
	prices     map[string]float64
	rng        *rand.Rand
	logger     *slog.Logger
}

// NewSimulator creates a Simulator seeded with the given starting prices.
func NewSimulator(
	cache domain.PriceCache,
	bus domain.SignalBus,
	interval time.Duration,
	volatility float64,
	initial map[string]float64,
	logger *slog.Logger,
) *Simulator {
	prices := make(map[string]float64, len(initial))
	for pair, p := range initial {
		prices[pair] = p
	}
	return &Simulator{
		cache:      cache,
		bus:        bus,
		interval:   interval,
		volatility: volatility,
		prices:     prices,
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
		logger:     logger.With(slog.String("component", "feed_sim")),
	}
}

// Run emits one tick per pair every interval until ctx is cancelled. The
// first round of ticks is emitted immediately so the cache is warm before
// the API starts taking orders.
func (s *Simulator) Run(ctx context.Context) error {
	s.logger.Info("simulated feed started",
		slog.Int("pairs", len(s.prices)),
		slog.Duration("interval", s.interval),
	)
	defer s.logger.Info("simulated feed stopped")

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Simulator) tick(ctx context.Context) {
	now := time.Now()
	for pair, price := range s.prices {
		next := price * (1 + s.rng.NormFloat64()*s.volatility)
		if min := price * 0.5; next < min {
			next = min
		}
		s.prices[pair] = next

		err := publishTick(ctx, s.cache, s.bus, domain.PricePoint{
			Pair:      pair,
			Price:     next,
			Timestamp: now,
		})
		if err != nil {
			s.logger.Warn("publish tick failed",
				slog.String("pair", pair),
				slog.String("error", err.Error()),
			)
		}
	}
}
