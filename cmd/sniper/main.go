package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
	"go.uber.org/zap"

	"shred-sniper/internal/config"
	"shred-sniper/internal/dedup"
	"shred-sniper/internal/detect"
	"shred-sniper/internal/domain"
	"shred-sniper/internal/executor"
	"shred-sniper/internal/feefilter"
	"shred-sniper/internal/observability"
	"shred-sniper/internal/pipeline"
	"shred-sniper/internal/policy"
	"shred-sniper/internal/shredstream"
)

// shutdownGrace bounds how long in-flight positions get to finish after
// the first termination signal.
const shutdownGrace = 90 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger, err := newLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	metrics := observability.NewMetrics("")
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gate, err := newGate(ctx, cfg.RedisURL, logger)
	if err != nil {
		logger.Fatal("dedup gate", zap.Error(err))
	}
	defer gate.Close()

	var submitter executor.Submitter
	if cfg.DryRun {
		logger.Warn("dry-run mode, trades will be logged but not submitted")
		submitter = executor.NewDryRunSubmitter(logger)
	} else {
		builder, err := executor.NewTxBuilder(cfg.PrivateKey)
		if err != nil {
			logger.Fatal("signer", zap.Error(err))
		}
		logger.Info("wallet loaded", zap.Stringer("owner", builder.Owner()))
		submitter = executor.NewRPCSubmitter(builder, rpc.New(cfg.RPCURL))
	}

	exec := executor.New(executor.Config{
		BuyLamports:   cfg.BuyLamports(),
		SellDelay:     cfg.SellDelay,
		SubmitTimeout: config.SubmitTimeout,
		SellRetries:   cfg.SellRetries,
	}, submitter, logger, executorHooks(metrics))

	client := shredstream.NewClient(cfg.ServerURL, shredstream.DefaultConfig(), metrics, logger)
	pipe := pipeline.New(
		client.Transactions(),
		feefilter.Filter{Ceiling: cfg.TipCeiling},
		detect.NewDetector(logger),
		gate,
		policy.NewPriceBand(cfg.MinSOLPrice, cfg.MaxSOLPrice, logger),
		exec,
		cfg.EffectiveDedupTTL(),
		metrics,
		logger,
	)

	// First signal starts a graceful drain; a second one, or the grace
	// window expiring, forces exit.
	done := make(chan struct{})
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("shutdown signal received", zap.Stringer("signal", sig))
		cancel()
		select {
		case <-sigCh:
			logger.Warn("second signal, forcing exit")
			os.Exit(1)
		case <-time.After(shutdownGrace):
			logger.Warn("drain timed out, forcing exit")
			os.Exit(1)
		case <-done:
		}
	}()

	feedErr := make(chan error, 1)
	go func() { feedErr <- client.Run(ctx) }()

	logger.Info("sniper running",
		zap.String("relay", cfg.ServerURL),
		zap.Float64("min_sol_price", cfg.MinSOLPrice),
		zap.Float64("max_sol_price", cfg.MaxSOLPrice),
		zap.Float64("buy_sol", cfg.BuySOL),
		zap.Duration("sell_delay", cfg.SellDelay),
		zap.Uint64("tip_ceiling_lamports", cfg.TipCeiling))

	pipeErr := pipe.Run(ctx)

	client.Close()
	if err := <-feedErr; err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("relay stream", zap.Error(err))
	}

	logger.Info("draining open positions")
	exec.Wait()
	close(done)

	if pipeErr != nil && !errors.Is(pipeErr, context.Canceled) {
		logger.Fatal("pipeline", zap.Error(pipeErr))
	}
	logger.Info("shutdown complete")
}

func newLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsed, err := zap.ParseAtomicLevel(lvl)
		if err != nil {
			return nil, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		cfg.Level = parsed
	}
	return cfg.Build()
}

// newGate selects the dedup backend. An empty or "memory" REDIS_URL runs
// the in-process gate, losing claims across restarts.
func newGate(ctx context.Context, redisURL string, logger *zap.Logger) (dedup.Gate, error) {
	if redisURL == "" || redisURL == "memory" {
		logger.Warn("using in-memory dedup gate, claims will not survive restarts")
		return dedup.NewMemoryGate(), nil
	}
	return dedup.NewRedisGate(ctx, redisURL)
}

func executorHooks(m *observability.Metrics) executor.Hooks {
	return executor.Hooks{
		Opened: func(p *domain.Position) {
			m.PositionsOpened.Inc()
			m.PositionsInFlight.Inc()
			if !p.DetectedAt.IsZero() {
				m.DetectToSubmit.Observe(time.Since(p.DetectedAt).Seconds())
			}
		},
		Closed: func(*domain.Position) {
			m.PositionsClosed.Inc()
			m.PositionsInFlight.Dec()
		},
		Failed: func(p *domain.Position) {
			m.PositionsFailed.Inc()
			if p.BuySignature != "" {
				m.PositionsInFlight.Dec()
			}
		},
	}
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", observability.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	logger.Info("metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server", zap.Error(err))
	}
}
