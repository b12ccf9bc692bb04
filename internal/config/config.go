// Package config loads process configuration from defaults, an optional .env
// file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bourse/internal/clock"
	"bourse/internal/common"
	"bourse/internal/fees"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

type Market struct {
	FeePercent float64
	// Per-side overrides of FeePercent; nil means use FeePercent.
	BuyerFeePercent  *float64
	SellerFeePercent *float64

	TickInterval time.Duration
	MinChangePct float64
	MaxChangePct float64
}

type Server struct {
	HTTPAddr string
	TCPAddr  string
	GRPCAddr string
}

// Redis is optional: an empty Addr disables the Redis event sink.
type Redis struct {
	Addr     string
	Password string
	DB       int
	Channel  string
}

type Log struct {
	Level  zerolog.Level
	Pretty bool
}

type CompanySeed struct {
	Symbol string
	Name   string
	Price  float64
	Shares uint64
}

type TraderSeed struct {
	Name      string
	Cash      float64
	Portfolio map[string]uint64
}

type Config struct {
	Market Market
	Server Server
	Redis  Redis
	Log    Log

	SeedSampleData bool
	Companies      []CompanySeed
	Traders        []TraderSeed
}

func Default() Config {
	return Config{
		Market: Market{
			FeePercent:   fees.DefaultPercent,
			TickInterval: clock.DefaultInterval,
			MinChangePct: clock.DefaultMinPct,
			MaxChangePct: clock.DefaultMaxPct,
		},
		Server: Server{
			HTTPAddr: "127.0.0.1:8000",
			TCPAddr:  "127.0.0.1:9000",
			GRPCAddr: "127.0.0.1:9001",
		},
		Redis: Redis{
			Channel: "bourse:events",
		},
		Log: Log{
			Level: zerolog.InfoLevel,
		},
		SeedSampleData: true,
		Companies: []CompanySeed{
			{Symbol: "AAPL", Name: "Apple Inc.", Price: 180.0, Shares: 1_000_000},
		},
		Traders: []TraderSeed{
			{Name: "John Doe", Cash: 100_000},
			{Name: "Jane Smith", Cash: 150_000, Portfolio: map[string]uint64{"AAPL": 500}},
		},
	}
}

// Fees builds the fee calculator described by the market settings.
func (m Market) Fees() fees.Calculator {
	calc := fees.New(m.FeePercent)
	if m.BuyerFeePercent != nil {
		calc = calc.WithBuyerPercent(*m.BuyerFeePercent)
	}
	if m.SellerFeePercent != nil {
		calc = calc.WithSellerPercent(*m.SellerFeePercent)
	}
	return calc
}

// LoadFromEnv loads configuration from a .env file (if it exists) and the
// environment. Priority: ENV > .env file > defaults.
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	collect(floatVar("FEE_PERCENT", &cfg.Market.FeePercent))
	collect(optionalFloatVar("BUYER_FEE_PERCENT", &cfg.Market.BuyerFeePercent))
	collect(optionalFloatVar("SELLER_FEE_PERCENT", &cfg.Market.SellerFeePercent))
	collect(floatVar("PRICE_FLUCTUATION_MIN", &cfg.Market.MinChangePct))
	collect(floatVar("PRICE_FLUCTUATION_MAX", &cfg.Market.MaxChangePct))
	collect(intervalVar("TICK_INTERVAL", &cfg.Market.TickInterval))

	cfg.Server.HTTPAddr = getEnv("HTTP_ADDR", cfg.Server.HTTPAddr)
	cfg.Server.TCPAddr = getEnv("TCP_ADDR", cfg.Server.TCPAddr)
	cfg.Server.GRPCAddr = getEnv("GRPC_ADDR", cfg.Server.GRPCAddr)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", cfg.Redis.Addr)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.Channel = getEnv("REDIS_CHANNEL", cfg.Redis.Channel)
	if db := os.Getenv("REDIS_DB"); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			collect(fmt.Errorf("REDIS_DB: %w", err))
		}
		cfg.Redis.DB = n
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		parsed, err := zerolog.ParseLevel(strings.ToLower(level))
		if err != nil {
			collect(fmt.Errorf("LOG_LEVEL: %w", err))
		} else {
			cfg.Log.Level = parsed
		}
	}
	collect(boolVar("LOG_PRETTY", &cfg.Log.Pretty))
	collect(boolVar("SEED_SAMPLE_DATA", &cfg.SeedSampleData))

	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the market cannot run with.
func (c Config) Validate() error {
	var errs []error
	calc := c.Market.Fees()
	for _, side := range []struct {
		name string
		pct  float64
	}{{"buyer", calc.BuyerPercent}, {"seller", calc.SellerPercent}} {
		if !common.Finite(side.pct) || side.pct < 0 || side.pct > 100 {
			errs = append(errs, fmt.Errorf("%s fee percent must be within [0, 100], got %v", side.name, side.pct))
		}
	}
	if c.Market.MinChangePct > c.Market.MaxChangePct {
		errs = append(errs, fmt.Errorf("price fluctuation range [%v, %v] is inverted",
			c.Market.MinChangePct, c.Market.MaxChangePct))
	}
	if c.Market.TickInterval <= 0 {
		errs = append(errs, fmt.Errorf("tick interval must be positive, got %v", c.Market.TickInterval))
	}
	return errors.Join(errs...)
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func floatVar(key string, dst *float64) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

func optionalFloatVar(key string, dst **float64) error {
	var v float64
	if os.Getenv(key) == "" {
		return nil
	}
	if err := floatVar(key, &v); err != nil {
		return err
	}
	*dst = &v
	return nil
}

func boolVar(key string, dst *bool) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = v
	return nil
}

// intervalVar accepts either a number of seconds ("5", "0.5") or a Go
// duration ("250ms").
func intervalVar(key string, dst *time.Duration) error {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	if secs, err := strconv.ParseFloat(raw, 64); err == nil {
		*dst = time.Duration(secs * float64(time.Second))
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
