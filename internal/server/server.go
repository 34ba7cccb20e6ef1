// Package server exposes the HTTP + WebSocket API.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/server/handler"
	"github.com/paperhands/paperhands/internal/server/middleware"
	"github.com/paperhands/paperhands/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	// Auth controls wallet-signature authentication on the /api routes.
	Auth middleware.AuthConfig
	// AdminKey guards the /api/admin routes. Empty disables them.
	AdminKey string
	// RateLimit / RateWindow bound authenticated requests per wallet.
	RateLimit  int
	RateWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health       *handler.HealthHandler
	Prices       *handler.PriceHandler
	Accounts     *handler.AccountHandler
	Positions    *handler.PositionHandler
	Trades       *handler.TradeHandler
	Achievements *handler.AchievementHandler
	Leaderboard  *handler.LeaderboardHandler
	Admin        *handler.AdminHandler
}

// Server is the headless HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a Server with all routes registered. Public routes carry
// no auth; wallet routes verify a personal_sign signature and rate-limit per
// wallet; admin routes check the admin API key.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	walletAuth := middleware.WalletAuth(cfg.Auth)
	adminAuth := middleware.AdminAuth(cfg.AdminKey)

	wallet := func(h http.HandlerFunc) http.Handler {
		var wrapped http.Handler = h
		if limiter != nil && cfg.RateLimit > 0 {
			wrapped = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateWindow)(wrapped)
		}
		return walletAuth(wrapped)
	}
	admin := func(h http.HandlerFunc) http.Handler {
		return adminAuth(h)
	}

	mux := http.NewServeMux()

	// Public routes.
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/prices", handlers.Prices.ListPrices)
	mux.HandleFunc("GET /api/prices/{pair}", handlers.Prices.GetPrice)

	// Wallet-authenticated routes.
	mux.Handle("GET /api/account", wallet(handlers.Accounts.GetAccount))
	mux.Handle("DELETE /api/account", wallet(handlers.Accounts.ArchiveAccount))
	mux.Handle("GET /api/positions", wallet(handlers.Positions.ListPositions))
	mux.Handle("POST /api/positions", wallet(handlers.Positions.OpenPosition))
	mux.Handle("GET /api/positions/{id}", wallet(handlers.Positions.GetPosition))
	mux.Handle("POST /api/positions/{id}/close", wallet(handlers.Positions.ClosePosition))
	mux.Handle("GET /api/trades", wallet(handlers.Trades.ListTrades))
	mux.Handle("GET /api/trades/{id}", wallet(handlers.Trades.GetTrade))
	mux.Handle("GET /api/achievements", wallet(handlers.Achievements.ListAchievements))
	mux.Handle("POST /api/achievements/{type}/unlock", wallet(handlers.Achievements.UnlockAchievement))

	// The leaderboard is public but annotates the caller's rank when wallet
	// headers are present, so it runs through wallet auth only if they are.
	mux.Handle("GET /api/leaderboard", optionalWallet(walletAuth, handlers.Leaderboard.GetLeaderboard))

	// Admin routes.
	mux.Handle("POST /api/admin/archive", admin(handlers.Admin.RunArchive))
	mux.Handle("GET /api/admin/archive", admin(handlers.Admin.ListArchive))
	mux.Handle("POST /api/admin/leaderboard/rebuild", admin(handlers.Admin.RebuildLeaderboards))
	mux.Handle("GET /api/admin/audit", admin(handlers.Admin.ListAuditLog))

	// WebSocket stream.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	var h http.Handler = mux
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{httpServer: srv, logger: logger}
}

// optionalWallet runs the handler through wallet auth only when the request
// carries wallet headers; anonymous requests pass straight through.
func optionalWallet(auth func(http.Handler) http.Handler, h http.HandlerFunc) http.Handler {
	authed := auth(h)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(middleware.HeaderWallet) != "" {
			authed.ServeHTTP(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
