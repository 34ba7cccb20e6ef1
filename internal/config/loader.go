package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PAPERHANDS_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PAPERHANDS_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "PAPERHANDS_DATABASE_DSN")
	setStr(&cfg.Database.Host, "PAPERHANDS_DATABASE_HOST")
	setInt(&cfg.Database.Port, "PAPERHANDS_DATABASE_PORT")
	setStr(&cfg.Database.Database, "PAPERHANDS_DATABASE_NAME")
	setStr(&cfg.Database.User, "PAPERHANDS_DATABASE_USER")
	setStr(&cfg.Database.Password, "PAPERHANDS_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "PAPERHANDS_DATABASE_SSLMODE")
	setInt(&cfg.Database.PoolMaxConns, "PAPERHANDS_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "PAPERHANDS_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "PAPERHANDS_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PAPERHANDS_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PAPERHANDS_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PAPERHANDS_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PAPERHANDS_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PAPERHANDS_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PAPERHANDS_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PAPERHANDS_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PAPERHANDS_S3_REGION")
	setStr(&cfg.S3.Bucket, "PAPERHANDS_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PAPERHANDS_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PAPERHANDS_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PAPERHANDS_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PAPERHANDS_S3_FORCE_PATH_STYLE")

	// ── Trading ──
	setFloat64(&cfg.Trading.StartingBalance, "PAPERHANDS_TRADING_STARTING_BALANCE")
	setInt(&cfg.Trading.MaxLeverage, "PAPERHANDS_TRADING_MAX_LEVERAGE")
	setFloat64(&cfg.Trading.MinPositionSize, "PAPERHANDS_TRADING_MIN_POSITION_SIZE")
	setFloat64(&cfg.Trading.MaxPositionSize, "PAPERHANDS_TRADING_MAX_POSITION_SIZE")
	setStringSlice(&cfg.Trading.Pairs, "PAPERHANDS_TRADING_PAIRS")
	setDuration(&cfg.Trading.TriggerInterval, "PAPERHANDS_TRADING_TRIGGER_INTERVAL")
	setDuration(&cfg.Trading.MaxPriceAge, "PAPERHANDS_TRADING_MAX_PRICE_AGE")
	setDuration(&cfg.Trading.LockTTL, "PAPERHANDS_TRADING_LOCK_TTL")

	// ── Feed ──
	setStr(&cfg.Feed.Source, "PAPERHANDS_FEED_SOURCE")
	setDuration(&cfg.Feed.TickInterval, "PAPERHANDS_FEED_TICK_INTERVAL")
	setFloat64(&cfg.Feed.Volatility, "PAPERHANDS_FEED_VOLATILITY")
	setStr(&cfg.Feed.LiveWSURL, "PAPERHANDS_FEED_LIVE_WS_URL")

	// ── Auth ──
	setDuration(&cfg.Auth.SignatureTTL, "PAPERHANDS_AUTH_SIGNATURE_TTL")
	setStr(&cfg.Auth.AdminKey, "PAPERHANDS_AUTH_ADMIN_KEY")
	setStr(&cfg.Auth.EncryptedAdminKeyPath, "PAPERHANDS_AUTH_ENCRYPTED_ADMIN_KEY_PATH")
	setStr(&cfg.Auth.AdminKeyPassword, "PAPERHANDS_AUTH_ADMIN_KEY_PASSWORD")
	setBool(&cfg.Auth.Disabled, "PAPERHANDS_AUTH_DISABLED")

	// ── Server ──
	setInt(&cfg.Server.Port, "PAPERHANDS_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PAPERHANDS_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "PAPERHANDS_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "PAPERHANDS_SERVER_RATE_WINDOW")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PAPERHANDS_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "PAPERHANDS_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "PAPERHANDS_ARCHIVE_INTERVAL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PAPERHANDS_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PAPERHANDS_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PAPERHANDS_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PAPERHANDS_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PAPERHANDS_MODE")
	setStr(&cfg.LogLevel, "PAPERHANDS_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
