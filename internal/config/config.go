// Package config defines the top-level configuration for the paperhands
// backend and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PAPERHANDS_* environment
// variables.
type Config struct {
	Database Database `toml:"database"`
	Redis    Redis    `toml:"redis"`
	S3       S3       `toml:"s3"`
	Trading  Trading  `toml:"trading"`
	Feed     Feed     `toml:"feed"`
	Auth     Auth     `toml:"auth"`
	Server   Server   `toml:"server"`
	Archive  Archive  `toml:"archive"`
	Notify   Notify   `toml:"notify"`
	Mode     string   `toml:"mode"`
	LogLevel string   `toml:"log_level"`
}

// Database holds PostgreSQL connection parameters.
type Database struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Redis holds Redis connection parameters.
type Redis struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3 holds S3-compatible object storage parameters for the archiver.
type S3 struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Trading holds the paper-trading parameters.
type Trading struct {
	StartingBalance float64  `toml:"starting_balance"`
	MaxLeverage     int      `toml:"max_leverage"`
	MinPositionSize float64  `toml:"min_position_size"`
	MaxPositionSize float64  `toml:"max_position_size"`
	Pairs           []string `toml:"pairs"`
	// TriggerInterval is the cadence of the server-side stop-loss /
	// take-profit / liquidation monitor.
	TriggerInterval duration `toml:"trigger_interval"`
	// MaxPriceAge rejects opens/closes when the cached price is older.
	MaxPriceAge duration `toml:"max_price_age"`
	// LockTTL bounds the per-wallet settlement lock.
	LockTTL duration `toml:"lock_ttl"`
}

// Feed holds price-feed parameters. Source selects the simulated random walk
// or a live websocket adapter.
type Feed struct {
	Source        string             `toml:"source"` // "sim" or "live"
	TickInterval  duration           `toml:"tick_interval"`
	Volatility    float64            `toml:"volatility"`
	InitialPrices map[string]float64 `toml:"initial_prices"`
	LiveWSURL     string             `toml:"live_ws_url"`
}

// Auth holds wallet-signature authentication and admin key parameters.
type Auth struct {
	// SignatureTTL is how long a signed login message stays valid.
	SignatureTTL duration `toml:"signature_ttl"`
	// AdminKey authenticates admin endpoints. Leave empty and set
	// EncryptedAdminKeyPath to load it from an encrypted file instead.
	AdminKey              string `toml:"admin_key"`
	EncryptedAdminKeyPath string `toml:"encrypted_admin_key_path"`
	AdminKeyPassword      string `toml:"admin_key_password"`
	// Disabled turns wallet authentication off (local development only).
	Disabled bool `toml:"disabled"`
}

// Server holds HTTP server parameters.
type Server struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// RateLimit / RateWindow bound authenticated trading actions per wallet.
	RateLimit  int      `toml:"rate_limit"`
	RateWindow duration `toml:"rate_window"`
}

// Archive holds cold-storage archival parameters.
type Archive struct {
	Enabled       bool     `toml:"enabled"`
	RetentionDays int      `toml:"retention_days"`
	Interval      duration `toml:"interval"`
}

// Notify holds webhook notification parameters.
type Notify struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration wraps time.Duration so the TOML decoder can parse strings like
// "5s" or "2m".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Database: Database{
			Host:          "localhost",
			Port:          5432,
			Database:      "paperhands",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: Redis{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "paperhands-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Trading: Trading{
			StartingBalance: 10000,
			MaxLeverage:     10,
			MinPositionSize: 1,
			MaxPositionSize: 1_000_000,
			Pairs:           []string{"BTC-USD", "ETH-USD", "SOL-USD"},
			TriggerInterval: duration{2 * time.Second},
			MaxPriceAge:     duration{30 * time.Second},
			LockTTL:         duration{10 * time.Second},
		},
		Feed: Feed{
			Source:       "sim",
			TickInterval: duration{time.Second},
			Volatility:   0.002,
			InitialPrices: map[string]float64{
				"BTC-USD": 65000,
				"ETH-USD": 1850,
				"SOL-USD": 140,
			},
		},
		Auth: Auth{
			SignatureTTL: duration{5 * time.Minute},
		},
		Server: Server{
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:   30,
			RateWindow:  duration{time.Minute},
		},
		Archive: Archive{
			Enabled:       false,
			RetentionDays: 90,
			Interval:      duration{24 * time.Hour},
		},
		Notify: Notify{
			Events: []string{"level_up", "achievement_unlocked", "position_liquidated"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"feed":   true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var problems []string

	if !validModes[strings.ToLower(c.Mode)] {
		problems = append(problems, fmt.Sprintf("mode %q is not one of server/feed/full", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		problems = append(problems, fmt.Sprintf("log_level %q is not one of debug/info/warn/error", c.LogLevel))
	}
	if c.Trading.MaxLeverage < 1 {
		problems = append(problems, "trading.max_leverage must be >= 1")
	}
	if c.Trading.StartingBalance <= 0 {
		problems = append(problems, "trading.starting_balance must be positive")
	}
	if c.Trading.MinPositionSize <= 0 {
		problems = append(problems, "trading.min_position_size must be positive")
	}
	if c.Trading.MaxPositionSize < c.Trading.MinPositionSize {
		problems = append(problems, "trading.max_position_size must be >= trading.min_position_size")
	}
	if len(c.Trading.Pairs) == 0 {
		problems = append(problems, "trading.pairs must not be empty")
	}
	switch c.Feed.Source {
	case "sim":
		for _, pair := range c.Trading.Pairs {
			if c.Feed.InitialPrices[pair] <= 0 {
				problems = append(problems, fmt.Sprintf("feed.initial_prices missing positive price for %s", pair))
			}
		}
	case "live":
		if c.Feed.LiveWSURL == "" {
			problems = append(problems, "feed.live_ws_url required when feed.source is live")
		}
	default:
		problems = append(problems, fmt.Sprintf("feed.source %q is not one of sim/live", c.Feed.Source))
	}
	if c.Feed.TickInterval.Duration <= 0 {
		problems = append(problems, "feed.tick_interval must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Auth.EncryptedAdminKeyPath != "" && c.Auth.AdminKeyPassword == "" {
		problems = append(problems, "auth.admin_key_password required with auth.encrypted_admin_key_path")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
