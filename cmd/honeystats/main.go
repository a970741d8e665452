package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"honeystats/internal/config"
	"honeystats/internal/run"
	"honeystats/internal/storage/postgres"
)

func main() {
	root := &cobra.Command{
		Use:          "honeystats",
		Short:        "Swarm network stats exporter",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the exporter loop",
		RunE:  runExporter,
	}

	runCmd.Flags().String("pushgateway", "", "Pushgateway address")
	runCmd.Flags().String("data-dir", "./data", "directory for checkpoints and record stores")
	runCmd.Flags().String("abi-dir", "./abi", "directory with contract ABI files")
	runCmd.Flags().Duration("interval", time.Minute, "delay between runs")
	runCmd.Flags().Uint64("chunk-size", 10_000, "blocks per event query")
	runCmd.Flags().Int("retention-days", 30, "record retention horizon in days")
	runCmd.Flags().Int("top-n", 10, "leaderboard size")
	runCmd.Flags().String("pg-dsn", "", "optional Postgres DSN for the leaderboard mirror")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runExporter(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if len(cfg.Chains) == 0 {
		return fmt.Errorf("at least one chain is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pg *postgres.Store
	if cfg.PGDSN != "" {
		pg, err = postgres.NewStore(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pg.Close()
	}

	logger.Info("honeystats start",
		zap.String("pushgateway", cfg.PushgatewayAddr),
		zap.String("data_dir", cfg.DataDir),
		zap.String("abi_dir", cfg.ABIDir),
		zap.Duration("interval", cfg.Interval),
		zap.Uint64("chunk_size", cfg.ChunkSize),
		zap.Int("retention_days", cfg.RetentionDays),
		zap.Int("chains", len(cfg.Chains)),
		zap.Bool("pg_mirror", pg != nil),
	)

	runner := run.NewRunner(cfg, pg, logger)
	if err := runner.Loop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
