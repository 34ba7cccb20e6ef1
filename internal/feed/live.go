package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/paperhands/paperhands/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// reconnectDelay is the pause before attempting to reconnect.
	reconnectDelay = 2 * time.Second
)

// subscribeCommand is the message sent after connecting to request ticker
// updates for the configured pairs (Coinbase exchange feed shape, which most
// compatible feeds accept).
type subscribeCommand struct {
	Type       string   `json:"type"`
	ProductIDs []string `json:"product_ids"`
	Channels   []string `json:"channels"`
}

// tickerMessage is the inbound ticker shape.
type tickerMessage struct {
	Type      string `json:"type"`
	ProductID string `json:"product_id"`
	Price     string `json:"price"`
	Time      string `json:"time"`
}

// LiveFeed mirrors an exchange websocket ticker stream into the price cache
// and the signal bus. It reconnects with a fixed delay on disconnect.
type LiveFeed struct {
	wsURL  string
	pairs  []string
	cache  domain.PriceCache
	bus    domain.SignalBus
	logger *slog.Logger
}

// NewLiveFeed creates a feed that subscribes to tickers for the given pairs.
func NewLiveFeed(wsURL string, pairs []string, cache domain.PriceCache, bus domain.SignalBus, logger *slog.Logger) *LiveFeed {
	return &LiveFeed{
		wsURL:  wsURL,
		pairs:  pairs,
		cache:  cache,
		bus:    bus,
		logger: logger.With(slog.String("component", "feed_live")),
	}
}

// Run connects, subscribes, and pumps ticks until ctx is cancelled,
// reconnecting on any connection failure.
func (f *LiveFeed) Run(ctx context.Context) error {
	if len(f.pairs) == 0 {
		f.logger.Info("no pairs to subscribe, exiting")
		return nil
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.logger.Warn("live feed disconnected, reconnecting",
			slog.String("error", err.Error()),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(reconnectDelay):
		}
	}
}

func (f *LiveFeed) runConnection(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return fmt.Errorf("feed: connect %s: %w", f.wsURL, err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	sub := subscribeCommand{
		Type:       "subscribe",
		ProductIDs: f.pairs,
		Channels:   []string{"ticker"},
	}
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("live feed subscribed", slog.Int("pairs", len(f.pairs)))

	// Ping loop keeps the connection alive; closing the connection unblocks
	// the read loop below.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()
		for {
			select {
			case <-pingCtx.Done():
				return
			case <-ticker.C:
				_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					_ = conn.Close()
					return
				}
			}
		}
	}()

	go func() {
		<-pingCtx.Done()
		_ = conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w", err)
		}
		f.handleMessage(ctx, data)
	}
}

func (f *LiveFeed) handleMessage(ctx context.Context, data []byte) {
	var msg tickerMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	if msg.Type != "ticker" || msg.ProductID == "" || msg.Price == "" {
		return
	}

	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 {
		return
	}

	ts := time.Now()
	if msg.Time != "" {
		if t, err := time.Parse(time.RFC3339Nano, msg.Time); err == nil {
			ts = t
		}
	}

	err = publishTick(ctx, f.cache, f.bus, domain.PricePoint{
		Pair:      msg.ProductID,
		Price:     price,
		Timestamp: ts,
	})
	if err != nil {
		f.logger.Debug("publish tick failed",
			slog.String("pair", msg.ProductID),
			slog.String("error", err.Error()),
		)
	}
}
