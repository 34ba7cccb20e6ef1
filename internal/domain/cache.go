package domain

import (
	"context"
	"time"
)

// PriceCache provides fast access to the latest feed prices.
type PriceCache interface {
	SetPrice(ctx context.Context, pair string, price float64, ts time.Time) error
	GetPrice(ctx context.Context, pair string) (float64, time.Time, error)
	GetPrices(ctx context.Context, pairs []string) (map[string]float64, error)
}

// LeaderboardEntry is one ranked row.
type LeaderboardEntry struct {
	Rank   int     `json:"rank"`
	Wallet string  `json:"wallet"`
	Score  float64 `json:"score"`
}

// Leaderboard maintains ranked account scores. Boards are identified by name
// ("xp", "pnl"); scores are set absolutely or adjusted by a delta.
type Leaderboard interface {
	SetScore(ctx context.Context, board, wallet string, score float64) error
	IncrScore(ctx context.Context, board, wallet string, delta float64) error
	Top(ctx context.Context, board string, limit int) ([]LeaderboardEntry, error)
	Rank(ctx context.Context, board, wallet string) (LeaderboardEntry, error)
}

// RateLimiter provides distributed rate limiting keyed by (wallet, action).
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// LockManager provides distributed locking. The per-wallet settlement lock
// serializes open/close/award for a single account; cross-account operations
// proceed in parallel.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// SignalBus provides pub/sub fan-out of domain events (price ticks, position
// lifecycle, achievements, level-ups) to the websocket hub and other
// listeners.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channels ...string) (<-chan BusMessage, error)
}

// BusMessage is a single message delivered by the SignalBus.
type BusMessage struct {
	Channel string
	Payload []byte
}
