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

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/warp/distribution-ledger/api"
	"github.com/warp/distribution-ledger/ledger"
	"github.com/warp/distribution-ledger/lock"
	"github.com/warp/distribution-ledger/store/sqlite"
)

var auditInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().DurationVar(&auditInterval, "audit-interval", time.Hour, "projection audit interval, 0 disables")
	rootCmd.AddCommand(serveCmd)
}

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	var locker lock.Locker = lock.Noop{}
	if cfg.RedisAddress != "" {
		var rdb *redis.Client
		if rdb, err = lock.Dial(ctx, cfg.RedisAddress); err != nil {
			return err
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.LockTTL, logger)
		logger.WithField("address", cfg.RedisAddress).Info("using redis locks")
	}

	handler := api.NewHandler(store, api.Options{
		Locker: locker,
		Gate: ledger.CalendarGate{
			Holidays:     store,
			AllowWeekend: cfg.AllowWeekendDelivery,
			CutoffHour:   cfg.OrderCutoffHour,
		},
		Notifier: ledger.LogNotifier{Logger: logger},
		VATRate:  &cfg.VATRate,
	}, logger)
	router := api.NewRouter(handler, cfg.CORSAllowedOrigins)

	scheduler := handler.Audit
	scheduler.CheckInterval = auditInterval
	scheduler.Enabled = auditInterval > 0
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithField("port", cfg.Port).Info("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		logger.WithField("signal", sig.String()).Info("shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	handler.Orders.WaitNotifications()

	logger.Info("server stopped")
	return nil
}
