package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/orbitdex/dexbook/internal/config"
	"github.com/orbitdex/dexbook/internal/ledger"
	"github.com/orbitdex/dexbook/internal/orderbook"
	"github.com/orbitdex/dexbook/pkg/logger"
	"github.com/orbitdex/dexbook/pkg/models"
)

// systemClock maps wall time onto block numbers from a fixed genesis. Hosts
// embedding the engine provide their chain's real clock instead.
type systemClock struct {
	genesis       time.Time
	blockDuration time.Duration
}

func (c *systemClock) Now() time.Time { return time.Now() }

func (c *systemClock) CurrentBlock() uint64 {
	return uint64(time.Since(c.genesis) / c.blockDuration)
}

func main() {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	zapLogger, err := logger.NewLogger(logLevel)
	if err != nil {
		os.Exit(1)
	}
	defer zapLogger.Sync()

	cfg, err := config.Load(zapLogger, os.Args[1:]...)
	if err != nil {
		zapLogger.Fatal("failed to load configuration", zap.Error(err))
	}

	clock := &systemClock{genesis: time.Now(), blockDuration: cfg.Limits.BlockDuration}
	led := ledger.NewInMemoryLedger(zapLogger)
	registry := orderbook.NewRegistry(cfg.Limits, zapLogger)
	engine := orderbook.NewEngine(registry, led, clock, cfg.Limits, zapLogger)

	// Register a demo pair so the metrics endpoint has something to show.
	demoBook := models.OrderBookID{Exchange: "DEX", Base: "XOR", Quote: "DAI"}
	err = registry.CreateOrderBook(demoBook,
		models.Asset{ID: "XOR", Precision: models.DivisibleWithScale(8)},
		models.Asset{ID: "DAI", Precision: models.DivisibleWithScale(8)},
		decimal.NewFromFloat(0.01),  // tick size
		decimal.NewFromFloat(0.001), // step lot size
		decimal.NewFromFloat(0.001), // min lot size
		decimal.NewFromInt(1000000), // max lot size
	)
	if err != nil {
		zapLogger.Fatal("failed to create demo order book", zap.Error(err))
	}

	// Drive the expiration sweep off the block clock.
	go func() {
		ticker := time.NewTicker(cfg.Limits.BlockDuration)
		defer ticker.Stop()
		lastBlock := clock.CurrentBlock()
		for range ticker.C {
			for block := lastBlock + 1; block <= clock.CurrentBlock(); block++ {
				engine.OnBlock(block)
			}
			lastBlock = clock.CurrentBlock()
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	go func() {
		if err := http.ListenAndServe(":9090", mux); err != nil {
			zapLogger.Error("metrics server stopped", zap.Error(err))
		}
	}()

	zapLogger.Info("dexbook engine ready",
		zap.String("demo_book", demoBook.String()),
		zap.Duration("block_duration", cfg.Limits.BlockDuration))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("shutting down")
}
