package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/paperhands/paperhands/internal/domain"
)

// Watcher subscribes to the position and progression channels and turns the
// interesting events into operator notifications. Which events get through
// is the Notifier's filter, so the watcher just translates payloads.
type Watcher struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewWatcher creates a Watcher.
func NewWatcher(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Watcher {
	return &Watcher{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_watcher")),
	}
}

// Run consumes bus events until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	ch, err := w.bus.Subscribe(ctx, "positions", "progression")
	if err != nil {
		return fmt.Errorf("notify: subscribe: %w", err)
	}
	w.logger.Info("notify watcher started")
	defer w.logger.Info("notify watcher stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			w.handle(ctx, msg.Payload)
		}
	}
}

func (w *Watcher) handle(ctx context.Context, payload []byte) {
	var ev map[string]any
	if err := json.Unmarshal(payload, &ev); err != nil {
		return
	}
	event, _ := ev["event"].(string)
	wallet, _ := ev["wallet"].(string)

	var title, message string
	switch event {
	case "position_liquidated":
		pair, _ := ev["pair"].(string)
		pnl, _ := ev["pnl"].(float64)
		title = "Position liquidated"
		message = fmt.Sprintf("%s lost %.2f on %s", shortWallet(wallet), -pnl, pair)
	case "level_up":
		level, _ := ev["level"].(float64)
		title = "Level up"
		message = fmt.Sprintf("%s reached level %d", shortWallet(wallet), int(level))
	case "achievement_unlocked":
		name, _ := ev["name"].(string)
		xp, _ := ev["xp_reward"].(float64)
		title = "Achievement unlocked"
		message = fmt.Sprintf("%s unlocked %q (+%d XP)", shortWallet(wallet), name, int64(xp))
	default:
		return
	}

	if err := w.notifier.Notify(ctx, event, title, message); err != nil {
		w.logger.WarnContext(ctx, "notify failed",
			slog.String("event", event),
			slog.String("error", err.Error()),
		)
	}
}

// shortWallet abbreviates an address for display: 0x1234…abcd.
func shortWallet(wallet string) string {
	if len(wallet) <= 12 {
		return wallet
	}
	return wallet[:6] + "…" + wallet[len(wallet)-4:]
}
