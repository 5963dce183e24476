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

	"github.com/prometheus/client_golang/prometheus"

	"deployledger/pkg/bus"
	"deployledger/pkg/config"
	"deployledger/pkg/deployment"
	"deployledger/pkg/networks"
	"deployledger/pkg/telemetry"
	"deployledger/services/ledger"
	ledgerapi "deployledger/services/ledger-api"
)

func main() {
	if err := run("ledger-api"); err != nil {
		fmt.Fprintf(os.Stderr, "ledger-api: %v\n", err)
		os.Exit(1)
	}
}

func run(serviceName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	tel, err := telemetry.Init(ctx, telemetry.Options{
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
		LogFormat:    cfg.LogFormat,
		LogLevel:     cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tel.Shutdown(shutdownCtx); err != nil {
			tel.Logger.Error().Err(err).Msg("telemetry shutdown")
		}
	}()
	logger := tel.Logger

	registry, err := networks.Load(cfg.NetworksFile)
	if err != nil {
		return err
	}

	metrics, err := ledger.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	resolver := ledger.NewResolver(ledger.ResolverConfig{Logger: &logger, Metrics: metrics})

	var tracker *ledgerapi.Tracker
	if cfg.NATSURL != "" {
		b, err := bus.New(cfg.NATSURL)
		if err != nil {
			return fmt.Errorf("connect nats: %w", err)
		}
		defer b.Close()

		tracker, err = ledgerapi.NewTracker(b, cfg.NATSSubject, prometheus.DefaultRegisterer, logger)
		if err != nil {
			return err
		}
		if err := tracker.Start(ctx); err != nil {
			return fmt.Errorf("start tracker: %w", err)
		}
		defer tracker.Close()
	}

	server, err := ledgerapi.New(ledgerapi.Options{
		Resolver: resolver,
		Registry: registry,
		Tracker:  tracker,
		Logger:   logger,
		Config: ledgerapi.Config{
			BroadcastDir: cfg.BroadcastDir,
			DefaultChain: deployment.ChainID(cfg.ChainID),
		},
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           tel.Middleware(serviceName)(server.Routes()),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("broadcast_dir", cfg.BroadcastDir).Msg("starting ledger-api")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	return nil
}
