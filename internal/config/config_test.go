package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	calc := cfg.Market.Fees()
	assert.Equal(t, 0.1, calc.BuyerPercent)
	assert.Equal(t, 0.1, calc.SellerPercent)
	assert.Equal(t, 5*time.Second, cfg.Market.TickInterval)
	assert.Equal(t, -1.5, cfg.Market.MinChangePct)
	assert.Equal(t, 1.5, cfg.Market.MaxChangePct)
	assert.Empty(t, cfg.Redis.Addr)
	require.Len(t, cfg.Companies, 1)
	assert.Equal(t, "AAPL", cfg.Companies[0].Symbol)
	require.Len(t, cfg.Traders, 2)
	assert.Equal(t, uint64(500), cfg.Traders[1].Portfolio["AAPL"])
}

func TestLoadFromEnvOverrides(t *testing.T) {
	t.Setenv("FEE_PERCENT", "0.25")
	t.Setenv("SELLER_FEE_PERCENT", "0")
	t.Setenv("PRICE_FLUCTUATION_MIN", "-3")
	t.Setenv("PRICE_FLUCTUATION_MAX", "2")
	t.Setenv("TICK_INTERVAL", "250ms")
	t.Setenv("HTTP_ADDR", ":8080")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("LOG_PRETTY", "true")
	t.Setenv("SEED_SAMPLE_DATA", "false")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	calc := cfg.Market.Fees()
	assert.Equal(t, 0.25, calc.BuyerPercent)
	assert.Equal(t, 0.0, calc.SellerPercent)
	assert.Equal(t, -3.0, cfg.Market.MinChangePct)
	assert.Equal(t, 2.0, cfg.Market.MaxChangePct)
	assert.Equal(t, 250*time.Millisecond, cfg.Market.TickInterval)
	assert.Equal(t, ":8080", cfg.Server.HTTPAddr)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, zerolog.DebugLevel, cfg.Log.Level)
	assert.True(t, cfg.Log.Pretty)
	assert.False(t, cfg.SeedSampleData)
}

func TestTickIntervalInSeconds(t *testing.T) {
	t.Setenv("TICK_INTERVAL", "2")
	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, cfg.Market.TickInterval)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("GRPC_ADDR=:7777\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("GRPC_ADDR") })

	cfg, err := LoadFromEnv(path)
	require.NoError(t, err)
	assert.Equal(t, ":7777", cfg.Server.GRPCAddr)
}

func TestLoadFromEnvRejectsBadValues(t *testing.T) {
	t.Setenv("FEE_PERCENT", "lots")
	t.Setenv("LOG_LEVEL", "loud")

	_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FEE_PERCENT")
	assert.Contains(t, err.Error(), "LOG_LEVEL")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Market.MinChangePct, cfg.Market.MaxChangePct = 2, -2
	assert.ErrorContains(t, cfg.Validate(), "inverted")

	cfg = Default()
	cfg.Market.TickInterval = 0
	assert.ErrorContains(t, cfg.Validate(), "tick interval")

	cfg = Default()
	negative := -0.1
	cfg.Market.BuyerFeePercent = &negative
	assert.ErrorContains(t, cfg.Validate(), "buyer fee percent")

	cfg = Default()
	cfg.Market.FeePercent = 100.5
	err := cfg.Validate()
	assert.ErrorContains(t, err, "buyer fee percent")
	assert.ErrorContains(t, err, "seller fee percent")
}

func TestLoadFromEnvRejectsFeeOutOfRange(t *testing.T) {
	for _, raw := range []string{"150", "NaN", "Inf", "-1"} {
		t.Run(raw, func(t *testing.T) {
			t.Setenv("FEE_PERCENT", raw)

			_, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
			assert.ErrorContains(t, err, "fee percent must be within [0, 100]")
		})
	}
}

func TestLoadFromEnvAcceptsFullFee(t *testing.T) {
	t.Setenv("FEE_PERCENT", "100")

	cfg, err := LoadFromEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 100.0, cfg.Market.FeePercent)
}
