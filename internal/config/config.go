// Package config defines the top-level configuration for auctiond and
// provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by AUCTIOND_* environment variables.
type Config struct {
	Auction  AuctionConfig  `toml:"auction"`
	OwnerKey OwnerKeyConfig `toml:"owner_key"`
	Bank     BankConfig     `toml:"bank"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// AuctionConfig fixes the parameters of the auction instance this process
// hosts. The commission rate, minimum increment, and anti-snipe window are
// protocol constants and deliberately not configurable.
type AuctionConfig struct {
	// Owner is the hex address of the auction creator. Optional when an owner
	// key is configured; the address is then derived from the key.
	Owner string `toml:"owner"`

	// Duration is the auction lifetime from process start, e.g. "24h".
	// Must be positive and at most one week.
	Duration duration `toml:"duration"`
}

// OwnerKeyConfig locates the owner's secp256k1 private key, used to derive
// the owner address and to sign privileged settlement calls.
type OwnerKeyConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// BankConfig seeds the in-memory escrow bank with opening balances, keyed by
// hex address with decimal wei values.
type BankConfig struct {
	Balances map[string]string `toml:"balances"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
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

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the settlement
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port              int      `toml:"port"`
	CORSOrigins       []string `toml:"cors_origins"`
	APIKey            string   `toml:"api_key"`
	RequireSignatures bool     `toml:"require_signatures"`

	// BidRateLimit caps accepted bid attempts per bidder per window.
	BidRateLimit  int      `toml:"bid_rate_limit"`
	BidRateWindow duration `toml:"bid_rate_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "24h", "30m").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// maxAuctionDuration mirrors the ledger's hard cap.
const maxAuctionDuration = 10080 * time.Minute

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Auction: AuctionConfig{
			Duration: duration{24 * time.Hour},
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "auctiond",
			User:          "auctiond",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "auctiond-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Port:          8080,
			CORSOrigins:   []string{"http://localhost:3000"},
			BidRateLimit:  10,
			BidRateWindow: duration{time.Second},
		},
		Notify: NotifyConfig{
			Events: []string{"auction_ended", "refund_failed"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"archive": true,
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
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, archive)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Auction: the owner must be resolvable from an address or a key source.
	if c.Auction.Owner == "" && c.OwnerKey.PrivateKey == "" && c.OwnerKey.EncryptedKeyPath == "" {
		errs = append(errs, "auction: owner address or an owner key source must be set")
	}
	if c.Auction.Owner != "" && !common.IsHexAddress(c.Auction.Owner) {
		errs = append(errs, fmt.Sprintf("auction: owner %q is not a valid hex address", c.Auction.Owner))
	}
	if c.Auction.Duration.Duration <= 0 {
		errs = append(errs, "auction: duration must be positive")
	} else if c.Auction.Duration.Duration > maxAuctionDuration {
		errs = append(errs, fmt.Sprintf("auction: duration %s exceeds the one-week maximum", c.Auction.Duration.Duration))
	}

	// Owner key: a password is required with an encrypted keyfile.
	if c.OwnerKey.EncryptedKeyPath != "" && c.OwnerKey.KeyPassword == "" {
		errs = append(errs, "owner_key: key_password is required when encrypted_key_path is set")
	}

	// Bank: balances must be valid addresses and decimal wei values.
	for addr, val := range c.Bank.Balances {
		if !common.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("bank: balance key %q is not a valid hex address", addr))
			continue
		}
		if _, ok := new(big.Int).SetString(val, 10); !ok {
			errs = append(errs, fmt.Sprintf("bank: balance for %s is not a decimal integer: %q", addr, val))
		}
	}

	// Postgres
	if strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMaxConns < 1 {
		errs = append(errs, "postgres: pool_max_conns must be >= 1")
	}
	if c.Postgres.PoolMinConns < 0 {
		errs = append(errs, "postgres: pool_min_conns must be >= 0")
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Server
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.BidRateLimit < 1 {
		errs = append(errs, "server: bid_rate_limit must be >= 1")
	}
	if c.Server.BidRateWindow.Duration <= 0 {
		errs = append(errs, "server: bid_rate_window must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
