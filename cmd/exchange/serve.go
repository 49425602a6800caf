package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"exchange-core/internal/config"
	"exchange-core/internal/gateway"
	"exchange-core/internal/metrics"
	"exchange-core/internal/product"
	"exchange-core/internal/productservice"
	"exchange-core/internal/publish"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Boot the configured symbols and serve metrics until interrupted",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return serve()
	},
}

func serve() error {
	path := resolveConfigPath()
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := newLogger(cfg.Logging)

	ticker := publish.NewTickerPublisher()
	lastSale := publish.NewLastSalePublisher(ticker)
	currentMarket := publish.NewCurrentMarketPublisher()
	message := publish.NewMessagePublisher()

	products := productservice.New(currentMarket, lastSale, message)
	gw := gateway.New(products, currentMarket, lastSale, ticker, message, logger)

	var reg *metrics.Registry
	if cfg.Metrics.Enabled {
		reg = metrics.New()
		products.SetMetrics(reg)
		currentMarket.SetMetrics(reg)
		lastSale.SetMetrics(reg)
		ticker.SetMetrics(reg)
		message.SetMetrics(reg)
	}

	for _, symbol := range cfg.Symbols {
		if err := gw.CreateProduct(symbol); err != nil {
			return fmt.Errorf("create product %s: %w", symbol, err)
		}
		logger.Info("product created", "symbol", symbol)
	}

	if err := bootMarketState(gw, cfg.Market.InitialState, logger); err != nil {
		return fmt.Errorf("boot market state: %w", err)
	}

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg.Gatherer(), promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.Metrics.Addr, Handler: mux}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server failed", "error", err)
			}
		}()
		logger.Info("metrics listening", "addr", cfg.Metrics.Addr)
	}

	logger.Info("exchange started", "symbols", cfg.Symbols, "market_state", gw.GetMarketState())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logger.Error("metrics server shutdown failed", "error", err)
		}
	}
	return nil
}

// bootMarketState walks the CLOSED->PREOPEN->OPEN chain up to target,
// since SetMarketState only accepts single-step transitions. An empty
// target leaves the market CLOSED.
func bootMarketState(gw *gateway.Service, target string, logger *slog.Logger) error {
	steps := map[string][]product.State{
		"":        nil,
		"CLOSED":  nil,
		"PREOPEN": {product.Preopen},
		"OPEN":    {product.Preopen, product.Open},
	}
	for _, next := range steps[strings.ToUpper(target)] {
		if err := gw.SetMarketState(next); err != nil {
			return err
		}
		logger.Info("market state transition", "state", next)
	}
	return nil
}

func newLogger(cfg config.LoggingConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Level)}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
