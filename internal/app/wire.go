package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	s3blob "github.com/paperhands/paperhands/internal/blob/s3"
	"github.com/paperhands/paperhands/internal/cache/redis"
	"github.com/paperhands/paperhands/internal/config"
	"github.com/paperhands/paperhands/internal/crypto"
	"github.com/paperhands/paperhands/internal/domain"
	"github.com/paperhands/paperhands/internal/notify"
	"github.com/paperhands/paperhands/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	AccountStore     domain.AccountStore
	PositionStore    domain.PositionStore
	TradeStore       domain.TradeStore
	AchievementStore domain.AchievementStore
	SettlementStore  domain.SettlementStore
	AuditStore       domain.AuditStore

	// Caches
	PriceCache  domain.PriceCache
	Leaderboard domain.Leaderboard
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	SignalBus   domain.SignalBus

	// Blob storage
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// AdminKey is the resolved admin API key, empty when unconfigured.
	AdminKey string

	// Health probes for the /api/health endpoint, keyed by dependency name.
	Health map[string]HealthChecker
}

// HealthChecker probes a single backing dependency.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// needsPostgres returns true for modes that require a database connection.
func needsPostgres(mode string) bool {
	switch mode {
	case "server", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()
	mode := strings.ToLower(cfg.Mode)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{Health: make(map[string]HealthChecker)}

	// --- PostgreSQL (only for modes that serve the API) ---
	if needsPostgres(mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)
		deps.Health["postgres"] = pgClient

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.AccountStore = postgres.NewAccountStore(pool)
		deps.PositionStore = postgres.NewPositionStore(pool)
		deps.TradeStore = postgres.NewTradeStore(pool)
		deps.AchievementStore = postgres.NewAchievementStore(pool)
		deps.SettlementStore = postgres.NewSettlementStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	deps.Health["redis"] = redisClient

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.Leaderboard = redis.NewLeaderboard(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage (cold archive, only when enabled) ---
	if cfg.Archive.Enabled && needsPostgres(mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Health["s3"] = s3Client

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.BlobReader = s3blob.NewReader(s3Client)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.TradeStore, deps.AuditStore)
	}

	// --- Admin key ---
	if cfg.Auth.AdminKey != "" || cfg.Auth.EncryptedAdminKeyPath != "" {
		key, err := crypto.LoadAdminKey(crypto.SecretConfig{
			RawKey:           cfg.Auth.AdminKey,
			EncryptedKeyPath: cfg.Auth.EncryptedAdminKeyPath,
			Password:         cfg.Auth.AdminKeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: admin key: %w", err)
		}
		deps.AdminKey = key
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
