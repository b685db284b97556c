// Package config loads and validates the environment-sourced configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Defaults applied when the corresponding variable is unset.
const (
	DefaultRPCURL     = "https://api.mainnet-beta.solana.com"
	DefaultRedisURL   = "redis://127.0.0.1:6379"
	DefaultMinSOL     = 0.5
	DefaultMaxSOL     = 3.0
	DefaultBuySOL     = 0.1
	DefaultSellDelay  = 5000 * time.Millisecond
	DefaultTipCeiling = 100_000 // lamports
	DefaultSellRetry  = 3
	DefaultMetrics    = ":9090"

	// SubmitTimeout bounds every buy/sell submission call. It also feeds
	// the dedup TTL derivation below.
	SubmitTimeout = 10 * time.Second
)

// LamportsPerSOL is the lamport denomination of one SOL.
const LamportsPerSOL = 1_000_000_000

// Config is the validated runtime configuration.
type Config struct {
	ServerURL  string // shred relay websocket endpoint
	RPCURL     string // chain JSON-RPC endpoint
	PrivateKey string // base58 signer key, never logged
	RedisURL   string

	MinSOLPrice float64 // price band lower bound, SOL
	MaxSOLPrice float64 // price band upper bound, SOL
	BuySOL      float64 // SOL committed per buy
	SellDelay   time.Duration
	TipCeiling  uint64 // lamports
	SellRetries int
	DedupTTL    time.Duration // 0 means derive from the execution envelope

	DryRun      bool // log trades instead of submitting them
	MetricsAddr string
}

// Load reads configuration from the environment. A .env file is honored
// when present. Validation failures are fatal startup errors by contract.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ServerURL:   os.Getenv("SERVER_URL"),
		RPCURL:      getEnv("RPC_URL", DefaultRPCURL),
		PrivateKey:  os.Getenv("PRIVATE_KEY"),
		RedisURL:    getEnv("REDIS_URL", DefaultRedisURL),
		MetricsAddr: getEnv("METRICS_ADDR", DefaultMetrics),
		DryRun:      getBool("DRY_RUN"),
	}

	var err error
	if cfg.MinSOLPrice, err = getFloat("MIN_SOL_PRICE", DefaultMinSOL); err != nil {
		return nil, err
	}
	if cfg.MaxSOLPrice, err = getFloat("MAX_SOL_PRICE", DefaultMaxSOL); err != nil {
		return nil, err
	}
	if cfg.BuySOL, err = getFloat("BUY_SOL_AMOUNT", DefaultBuySOL); err != nil {
		return nil, err
	}
	sellDelayMs, err := getInt("SELL_DELAY_MS", int64(DefaultSellDelay/time.Millisecond))
	if err != nil {
		return nil, err
	}
	cfg.SellDelay = time.Duration(sellDelayMs) * time.Millisecond

	ceiling, err := getInt("TIP_CEILING_LAMPORTS", DefaultTipCeiling)
	if err != nil {
		return nil, err
	}
	if ceiling < 0 {
		// The cast to uint64 would turn this into an enormous ceiling.
		return nil, fmt.Errorf("TIP_CEILING_LAMPORTS must be non-negative, got %d", ceiling)
	}
	cfg.TipCeiling = uint64(ceiling)

	retries, err := getInt("SELL_RETRY_LIMIT", DefaultSellRetry)
	if err != nil {
		return nil, err
	}
	cfg.SellRetries = int(retries)

	ttlMs, err := getInt("DEDUP_TTL_MS", 0)
	if err != nil {
		return nil, err
	}
	cfg.DedupTTL = time.Duration(ttlMs) * time.Millisecond

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration invariants.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("SERVER_URL is required")
	}
	if c.PrivateKey == "" && !c.DryRun {
		return fmt.Errorf("PRIVATE_KEY is required")
	}
	if c.MinSOLPrice >= c.MaxSOLPrice {
		return fmt.Errorf("price band invalid: MIN_SOL_PRICE (%v) must be below MAX_SOL_PRICE (%v)",
			c.MinSOLPrice, c.MaxSOLPrice)
	}
	if c.BuySOL <= 0 {
		return fmt.Errorf("BUY_SOL_AMOUNT must be positive, got %v", c.BuySOL)
	}
	if c.SellDelay < 0 {
		return fmt.Errorf("SELL_DELAY_MS must be non-negative")
	}
	if c.SellRetries < 0 {
		return fmt.Errorf("SELL_RETRY_LIMIT must be non-negative")
	}
	return nil
}

// BuyLamports returns the buy amount in lamports.
func (c *Config) BuyLamports() uint64 {
	return uint64(c.BuySOL * LamportsPerSOL)
}

// EffectiveDedupTTL returns the configured dedup TTL, or a derived one
// covering twice the worst-case end-to-end execution time (buy submit +
// hold delay + every sell retry) so a claim cannot expire while its
// position is still in flight.
func (c *Config) EffectiveDedupTTL() time.Duration {
	if c.DedupTTL > 0 {
		return c.DedupTTL
	}
	envelope := SubmitTimeout + c.SellDelay + time.Duration(c.SellRetries+1)*SubmitTimeout
	return 2 * envelope
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid number %q", key, v)
	}
	return f, nil
}

func getBool(key string) bool {
	v := os.Getenv(key)
	return v == "1" || v == "true"
}

func getInt(key string, fallback int64) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q", key, v)
	}
	return n, nil
}
