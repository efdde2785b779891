// Package main is the entry point for the NEXX GSM quote server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httpadapter "nexx-gsm/adapters/http"
	"nexx-gsm/core/pricing"
	"nexx-gsm/core/quote"
	"nexx-gsm/internal/bootstrap"
	"nexx-gsm/internal/config"
	"nexx-gsm/internal/logging"
	"nexx-gsm/internal/metrics"
)

const version = "1.0.0"

func main() {
	cfgPath := flag.String("config", "nexx.yaml", "Config file (JSON or YAML)")
	addr := flag.String("addr", "", "Server address (overrides config)")
	flag.Parse()

	if err := run(*cfgPath, *addr); err != nil {
		fmt.Fprintf(os.Stderr, "nexx-server: %v\n", err)
		os.Exit(1)
	}
}

func run(cfgPath, addr string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg.ApplyEnv()
	if addr != "" {
		cfg.Server.Address = addr
	}
	config.Set(cfg)

	if err := logging.Initialize(cfg.Logging); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	defer logging.Sync()
	logger := logging.Named("server")

	rules, err := bootstrap.Rules(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	source := bootstrap.CatalogSource(cfg, m)
	go source.Run(ctx, cfg.Catalog.LoadTimeout, cfg.Catalog.RetryInterval)

	crm := bootstrap.CRM(cfg)
	fwd := bootstrap.Forwarder(cfg, crm, m)

	api := httpadapter.New(httpadapter.Deps{
		Catalog:   source,
		Quotes:    quote.NewAggregator(pricing.NewResolver(rules), source),
		CRM:       crm,
		Notifier:  bootstrap.Notifier(cfg),
		Forwarder: fwd,
		Metrics:   m,
	}, &httpadapter.Config{
		Address:        cfg.Server.Address,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxBodySize:    cfg.Server.MaxBodySize,
		EnableCORS:     true,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		RateLimit:      cfg.Server.RateLimit,
		RateBurst:      cfg.Server.RateBurst,
		EnableMetrics:  true,
		EnableTracing:  cfg.Server.Tracing,
	})

	logger.Info("starting",
		zap.String("version", version),
		zap.String("address", cfg.Server.Address),
		zap.Bool("crm", crm.Configured()),
		zap.Bool("forwarding", fwd.Enabled()))

	errc := make(chan error, 1)
	go func() { errc <- api.Start() }()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := api.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := fwd.Close(shutdownCtx); err != nil {
		logger.Warn("lead forwarding did not drain", zap.Error(err))
	}
	return nil
}
