package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/paperhands/paperhands/internal/feed"
	"github.com/paperhands/paperhands/internal/notify"
	"github.com/paperhands/paperhands/internal/server"
	"github.com/paperhands/paperhands/internal/server/handler"
	"github.com/paperhands/paperhands/internal/server/middleware"
	"github.com/paperhands/paperhands/internal/server/ws"
	"github.com/paperhands/paperhands/internal/service"
)

// feedRunner is implemented by both the simulated and the live price feed.
type feedRunner interface {
	Run(ctx context.Context) error
}

// FeedMode runs only the price feed, publishing ticks into the cache and the
// signal bus. Useful for running the feed as its own deployment next to one
// or more server instances.
func (a *App) FeedMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting feed mode",
		slog.String("source", a.cfg.Feed.Source),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.buildFeed(deps).Run(ctx)
	})
	return g.Wait()
}

// ServerMode runs the HTTP/WebSocket API, the trigger monitor, the
// notification watcher, and the periodic archiver. The price feed is expected
// to run elsewhere (feed mode).
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startBackend(ctx, g, deps)
	return g.Wait()
}

// FullMode runs the feed and the API in one process. The default for local
// development and small deployments.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.buildFeed(deps).Run(ctx)
	})
	a.startBackend(ctx, g, deps)
	return g.Wait()
}

// buildFeed selects the configured price source.
func (a *App) buildFeed(deps *Dependencies) feedRunner {
	if a.cfg.Feed.Source == "live" {
		return feed.NewLiveFeed(
			a.cfg.Feed.LiveWSURL,
			a.cfg.Trading.Pairs,
			deps.PriceCache,
			deps.SignalBus,
			a.logger,
		)
	}
	return feed.NewSimulator(
		deps.PriceCache,
		deps.SignalBus,
		a.cfg.Feed.TickInterval.Duration,
		a.cfg.Feed.Volatility,
		a.cfg.Feed.InitialPrices,
		a.logger,
	)
}

// startBackend builds the service layer and launches the API server, the
// WebSocket hub, the trigger monitor, the notification watcher, and the
// archive loop on the given errgroup.
func (a *App) startBackend(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	leaderboardSvc := service.NewLeaderboardService(
		deps.Leaderboard, deps.AccountStore, deps.TradeStore, a.logger,
	)
	achievementSvc := service.NewAchievementService(
		deps.AchievementStore, deps.TradeStore, deps.SettlementStore,
		deps.SignalBus, deps.AuditStore, leaderboardSvc, a.logger,
	)
	accountSvc := service.NewAccountService(
		deps.AccountStore, deps.TradeStore, deps.PositionStore,
		deps.PriceCache, deps.AuditStore, a.cfg.Trading.StartingBalance, a.logger,
	)
	tradingSvc := service.NewTradingService(
		deps.PositionStore, deps.SettlementStore,
		feed.NewCacheSource(deps.PriceCache),
		deps.LockManager, deps.SignalBus, deps.AuditStore,
		achievementSvc, leaderboardSvc,
		service.TradingConfig{
			MaxLeverage:     a.cfg.Trading.MaxLeverage,
			MinPositionSize: a.cfg.Trading.MinPositionSize,
			MaxPositionSize: a.cfg.Trading.MaxPositionSize,
			Pairs:           a.cfg.Trading.Pairs,
			MaxPriceAge:     a.cfg.Trading.MaxPriceAge.Duration,
			LockTTL:         a.cfg.Trading.LockTTL.Duration,
		},
		a.logger,
	)

	// Rebuild the cached leaderboards from the primary store so a cold
	// Redis does not serve empty boards.
	if err := leaderboardSvc.Rebuild(ctx); err != nil {
		a.logger.WarnContext(ctx, "leaderboard rebuild on startup failed",
			slog.String("error", err.Error()),
		)
	}

	// WebSocket hub.
	hub := ws.NewHub(deps.SignalBus, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	// Server-side stop-loss / take-profit / liquidation monitor.
	g.Go(func() error {
		return tradingSvc.MonitorTriggers(ctx, a.cfg.Trading.TriggerInterval.Duration)
	})

	// Notification watcher, only when at least one sender is configured.
	if deps.Notifier != nil && deps.Notifier.HasSenders() {
		watcher := notify.NewWatcher(deps.SignalBus, deps.Notifier, a.logger)
		g.Go(func() error {
			return watcher.Run(ctx)
		})
	}

	// Periodic cold-storage archiver.
	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveLoop(ctx, deps)
		})
	}

	// HTTP server.
	checks := make(map[string]handler.HealthChecker, len(deps.Health))
	for name, c := range deps.Health {
		checks[name] = c
	}

	handlers := server.Handlers{
		Health:       handler.NewHealthHandler(checks, a.logger),
		Prices:       handler.NewPriceHandler(deps.PriceCache, a.cfg.Trading.Pairs, a.logger),
		Accounts:     handler.NewAccountHandler(accountSvc, a.logger),
		Positions:    handler.NewPositionHandler(tradingSvc, a.logger),
		Trades:       handler.NewTradeHandler(deps.TradeStore, a.logger),
		Achievements: handler.NewAchievementHandler(achievementSvc, a.logger),
		Leaderboard:  handler.NewLeaderboardHandler(leaderboardSvc, a.logger),
		Admin: handler.NewAdminHandler(
			deps.Archiver, deps.BlobReader, leaderboardSvc, deps.AuditStore,
			a.cfg.Archive.RetentionDays, a.logger,
		),
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		Auth: middleware.AuthConfig{
			SignatureTTL: a.cfg.Auth.SignatureTTL.Duration,
			Disabled:     a.cfg.Auth.Disabled,
		},
		AdminKey:   deps.AdminKey,
		RateLimit:  a.cfg.Server.RateLimit,
		RateWindow: a.cfg.Server.RateWindow.Duration,
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	})
}

// runArchiveLoop copies aged trades and audit rows to cold storage on the
// configured interval.
func (a *App) runArchiveLoop(ctx context.Context, deps *Dependencies) error {
	interval := a.cfg.Archive.Interval.Duration
	if interval <= 0 {
		return fmt.Errorf("app: archive interval must be positive, got %s", interval)
	}

	logger := a.logger.With(slog.String("component", "archive_loop"))
	logger.InfoContext(ctx, "archive loop started",
		slog.Duration("interval", interval),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			before := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)

			trades, err := deps.Archiver.ArchiveTrades(ctx, before)
			if err != nil {
				logger.ErrorContext(ctx, "trade archive failed",
					slog.String("error", err.Error()),
				)
				continue
			}

			auditRows, err := deps.Archiver.ArchiveAuditLog(ctx, before)
			if err != nil {
				logger.ErrorContext(ctx, "audit archive failed",
					slog.String("error", err.Error()),
				)
				continue
			}

			logger.InfoContext(ctx, "archive pass complete",
				slog.Int64("trades", trades),
				slog.Int64("audit_rows", auditRows),
				slog.Time("before", before),
			)
		}
	}
}
