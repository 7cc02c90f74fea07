package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/ledgerworks/auctiond/internal/blob/s3"
	"github.com/ledgerworks/auctiond/internal/cache/redis"
	"github.com/ledgerworks/auctiond/internal/config"
	"github.com/ledgerworks/auctiond/internal/crypto"
	"github.com/ledgerworks/auctiond/internal/domain"
	"github.com/ledgerworks/auctiond/internal/ledger"
	"github.com/ledgerworks/auctiond/internal/notify"
	"github.com/ledgerworks/auctiond/internal/service"
	"github.com/ledgerworks/auctiond/internal/store/postgres"
	"github.com/ledgerworks/auctiond/internal/transfer"
)

// Dependencies bundles everything the application modes need to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Core
	Owner   common.Address
	Bank    *transfer.Vault
	Ledger  *ledger.Ledger
	Service *service.AuctionService

	// Stores
	Bids        domain.BidStore
	Settlements domain.SettlementStore

	// Redis-backed collaborators (nil outside serve mode)
	Bus     domain.SignalBus
	Limiter domain.RateLimiter
	Locks   domain.LockManager

	// Blob storage (nil unless archival is wired)
	Archiver *s3blob.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// needsRedis returns true for modes that use the signal bus, distributed
// locks, and rate limiting.
func needsRedis(mode string) bool {
	return strings.ToLower(mode) == "serve"
}

// needsS3 returns true when object storage must be wired. Archive mode always
// requires it; serve mode wires it only when enabled in configuration.
func needsS3(cfg *config.Config) bool {
	return strings.ToLower(cfg.Mode) == "archive" || cfg.S3.Enabled
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Owner identity ---
	owner, err := resolveOwner(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: owner: %w", err)
	}
	deps.Owner = owner

	// --- Escrow bank and ledger ---
	vault := transfer.NewVault()
	for addrHex, val := range cfg.Bank.Balances {
		amount, ok := new(big.Int).SetString(val, 10)
		if !ok {
			return nil, nil, fmt.Errorf("wire: bank balance for %s is not a decimal integer", addrHex)
		}
		vault.Fund(common.HexToAddress(addrHex), amount)
	}
	deps.Bank = vault

	led, err := ledger.New(ledger.Config{
		Owner:    owner,
		Duration: cfg.Auction.Duration.Duration,
	}, vault)
	if err != nil {
		return nil, nil, fmt.Errorf("wire: ledger: %w", err)
	}
	deps.Ledger = led

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	bidStore := postgres.NewBidStore(pool)
	settlementStore := postgres.NewSettlementStore(pool)
	deps.Bids = bidStore
	deps.Settlements = settlementStore

	// --- Redis (only for modes that need it) ---
	if needsRedis(cfg.Mode) {
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

		deps.Bus = redis.NewSignalBus(redisClient)
		deps.Limiter = redis.NewRateLimiter(redisClient)
		deps.Locks = redis.NewLockManager(redisClient)
	}

	// --- S3 blob storage ---
	if needsS3(cfg) {
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
		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			s3blob.NewReader(s3Client),
			bidStore,
			settlementStore,
		)
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

	// --- Service ---
	svc, err := service.New(service.Deps{
		Ledger:      led,
		Bids:        deps.Bids,
		Settlements: deps.Settlements,
		Limiter:     deps.Limiter,
		Locks:       deps.Locks,
		Bus:         deps.Bus,
		Notifier:    deps.Notifier,
		Logger:      logger,
	}, service.Config{
		BidRateLimit:  cfg.Server.BidRateLimit,
		BidRateWindow: cfg.Server.BidRateWindow.Duration,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: service: %w", err)
	}
	deps.Service = svc

	return deps, cleanup, nil
}

// resolveOwner determines the auction owner address. A configured key source
// takes precedence; the address is then derived from the key and must agree
// with auction.owner when both are set.
func resolveOwner(cfg *config.Config) (common.Address, error) {
	if cfg.OwnerKey.PrivateKey == "" && cfg.OwnerKey.EncryptedKeyPath == "" {
		if cfg.Auction.Owner == "" {
			return common.Address{}, fmt.Errorf("no owner address or key source configured")
		}
		return common.HexToAddress(cfg.Auction.Owner), nil
	}

	keyHex, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.OwnerKey.PrivateKey,
		EncryptedKeyPath: cfg.OwnerKey.EncryptedKeyPath,
		KeyPassword:      cfg.OwnerKey.KeyPassword,
	})
	if err != nil {
		return common.Address{}, fmt.Errorf("load key: %w", err)
	}
	signer, err := crypto.NewSigner(keyHex)
	if err != nil {
		return common.Address{}, fmt.Errorf("parse key: %w", err)
	}
	derived := signer.Address()

	if cfg.Auction.Owner != "" && common.HexToAddress(cfg.Auction.Owner) != derived {
		return common.Address{}, fmt.Errorf("auction.owner %s does not match the key-derived address %s",
			cfg.Auction.Owner, derived.Hex())
	}
	return derived, nil
}
