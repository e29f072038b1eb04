package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquidityEngine/internal/storage/postgres"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the Postgres schema",
		RunE:  runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, false)
	if err != nil {
		return err
	}
	defer a.close()

	store, ok := a.repo.(*postgres.Store)
	if !ok {
		return fmt.Errorf("pg dsn is required")
	}
	if err := store.Migrate(ctx); err != nil {
		return err
	}
	a.logger.Info("schema applied")
	return nil
}

func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().Int("sync-concurrency", 4, "pools synchronized in parallel")
	cmd.Flags().Duration("fetch-timeout", 10*time.Second, "timeout for each upstream fetch")
	cmd.Flags().Int("max-retries", 2, "retries per upstream fetch")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("snapshot-log", "", "optional JSONL file receiving every stored snapshot")
}

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize pool state once",
		RunE:  runSync,
	}
	cmd.Flags().Int64("pool", 0, "sync only this pool id")
	addSyncFlags(cmd)
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	a.registerPools(ctx)
	syncer, err := a.synchronizer()
	if err != nil {
		return err
	}

	poolID, _ := cmd.Flags().GetInt64("pool")
	if poolID != 0 {
		if err := syncer.SyncPool(ctx, poolID); err != nil {
			return err
		}
		a.logger.Info("pool synced", zap.Int64("pool_id", poolID))
		return nil
	}
	return syncer.SyncAll(ctx)
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run scheduled synchronization and expose metrics",
		RunE:  runServe,
	}
	cmd.Flags().String("sync-interval", "@every 5m", "cron schedule for synchronization")
	cmd.Flags().String("metrics-addr", ":9102", "listen address for /metrics")
	addSyncFlags(cmd)
	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cmd, true)
	if err != nil {
		return err
	}
	defer a.close()

	syncer, err := a.synchronizer()
	if err != nil {
		return err
	}
	runOnce := func() {
		a.registerPools(ctx)
		if err := syncer.SyncAll(ctx); err != nil {
			a.logger.Error("scheduled sync failed", zap.Error(err))
		}
	}

	cronLog := cronLogger{a.logger.Named("cron").Sugar()}
	scheduler := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := scheduler.AddFunc(a.cfg.SyncInterval, runOnce); err != nil {
		return fmt.Errorf("parse sync interval %q: %w", a.cfg.SyncInterval, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: a.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	a.logger.Info("engine serving",
		zap.String("metrics_addr", a.cfg.MetricsAddr),
		zap.String("sync_interval", a.cfg.SyncInterval),
		zap.Int("pools", len(a.cfg.Pools)),
	)

	runOnce()
	scheduler.Start()

	select {
	case <-ctx.Done():
	case err = <-serverErr:
		err = fmt.Errorf("metrics server: %w", err)
	}

	<-scheduler.Stop().Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Warn("metrics server shutdown", zap.Error(shutdownErr))
	}
	a.logger.Info("engine stopped")
	return err
}

// cronLogger routes scheduler messages, including skipped runs and
// recovered panics, through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Infow(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
