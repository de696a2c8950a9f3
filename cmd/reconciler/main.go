package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/deskhive/reconciler/internal/audit"
	"github.com/deskhive/reconciler/internal/config"
	"github.com/deskhive/reconciler/internal/infra"
	"github.com/deskhive/reconciler/internal/ledger"
	"github.com/deskhive/reconciler/internal/logging"
	"github.com/deskhive/reconciler/internal/notification"
	"github.com/deskhive/reconciler/internal/payments"
	"github.com/deskhive/reconciler/internal/reconcile"
	"github.com/deskhive/reconciler/internal/server"
	"github.com/deskhive/reconciler/internal/wallet"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel)

	ctx := context.Background()

	db, err := infra.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	cache, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error("connect redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := cache.Close(); err != nil {
			logger.Warn("close redis", "error", err)
		}
	}()

	service, err := reconcile.NewService(reconcile.Deps{
		Wallets:          wallet.NewPostgresRepository(db),
		Entries:          ledger.NewPostgresStore(db),
		Payments:         payments.NewPostgresPaymentStore(db),
		Refunds:          payments.NewPostgresRefundStore(db),
		Audit:            audit.NewPostgresLog(db),
		Notifier:         notification.NewLoggerNotifier(logger),
		Locker:           reconcile.NewRedisLocker(cache, cfg.LockTTL),
		Logger:           logger,
		SweepHour:        cfg.SweepHour,
		SweepConcurrency: cfg.SweepConcurrency,
		SweepTimeout:     cfg.SweepTimeout,
		WalletTimeout:    cfg.WalletTimeout,
	})
	if err != nil {
		logger.Error("build reconciliation service", "error", err)
		os.Exit(1)
	}

	scheduler := reconcile.NewScheduler(service, logger)
	scheduler.Start()
	defer scheduler.Stop()

	srv, err := server.New(cfg, service, db, cache, logger)
	if err != nil {
		logger.Error("build server", "error", err)
		os.Exit(1)
	}

	srvErrCh := make(chan error, 1)
	go func() {
		srvErrCh <- srv.Listen()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-srvErrCh:
		if err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownPeriod)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}

	logger.Info("server exited cleanly")
}
