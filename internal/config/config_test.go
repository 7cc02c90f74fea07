package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	cfg := Defaults()
	cfg.Auction.Owner = "0x00000000000000000000000000000000000000aa"
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate_OwnerRequired(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "owner address or an owner key source")
}

func TestValidate_BadOwnerAddress(t *testing.T) {
	cfg := validConfig()
	cfg.Auction.Owner = "not-an-address"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid hex address")
}

func TestValidate_DurationBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Auction.Duration = duration{0}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration must be positive")

	cfg = validConfig()
	cfg.Auction.Duration = duration{8 * 24 * time.Hour}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "one-week maximum")
}

func TestValidate_BankBalances(t *testing.T) {
	cfg := validConfig()
	cfg.Bank.Balances = map[string]string{
		"0x0000000000000000000000000000000000000001": "1000000",
	}
	require.NoError(t, cfg.Validate())

	cfg.Bank.Balances["bogus"] = "5"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid hex address")

	cfg = validConfig()
	cfg.Bank.Balances = map[string]string{
		"0x0000000000000000000000000000000000000001": "1.5",
	}
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a decimal integer")
}

func TestValidate_EncryptedKeyNeedsPassword(t *testing.T) {
	cfg := validConfig()
	cfg.OwnerKey.EncryptedKeyPath = "/etc/auctiond/owner.key"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "key_password is required")
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Redis.Addr = ""
	cfg.Server.Port = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "unknown log_level")
	assert.Contains(t, err.Error(), "redis: addr")
	assert.Contains(t, err.Error(), "server: port")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUCTIOND_AUCTION_OWNER", "0x00000000000000000000000000000000000000bb")
	t.Setenv("AUCTIOND_AUCTION_DURATION", "2h")
	t.Setenv("AUCTIOND_REDIS_ADDR", "redis:6380")
	t.Setenv("AUCTIOND_SERVER_PORT", "9090")
	t.Setenv("AUCTIOND_SERVER_REQUIRE_SIGNATURES", "true")
	t.Setenv("AUCTIOND_NOTIFY_EVENTS", "auction_ended, refund_failed")

	cfg := Defaults()
	applyEnvOverrides(&cfg)

	assert.Equal(t, "0x00000000000000000000000000000000000000bb", cfg.Auction.Owner)
	assert.Equal(t, 2*time.Hour, cfg.Auction.Duration.Duration)
	assert.Equal(t, "redis:6380", cfg.Redis.Addr)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.True(t, cfg.Server.RequireSignatures)
	assert.Equal(t, []string{"auction_ended", "refund_failed"}, cfg.Notify.Events)
}
