package main

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/config"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/model"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/reconcile"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/storage/postgres"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/verify"
)

func main() {
	root := &cobra.Command{
		Use:          "auditpack",
		Short:        "On-chain treasury verification for the incentive program",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	root.AddCommand(newPayoutsCmd())
	root.AddCommand(newFundingCmd())
	root.AddCommand(newTreasuryCmd())

	if err := root.Execute(); err != nil {
		if errors.Is(err, reconcile.ErrMismatch) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}

// addCommonFlags registers the flags shared by every verifier.
func addCommonFlags(cmd *cobra.Command) {
	cmd.Flags().String("rpc", config.DefaultRPCURL, "Arbitrum One RPC URL")
	cmd.Flags().Uint64("chunk-size", 10_000, "blocks per eth_getLogs request")
	cmd.Flags().Int("max-retries", 5, "maximum retry attempts")
	cmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	cmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	cmd.Flags().String("pg-dsn", "", "optional Postgres DSN for archiving run results")
	cmd.Flags().String("snapshot", "", "committed totals JSON to reconcile against")
	cmd.Flags().String("as-of-date", "", "as-of date recorded in summaries (YYYY-MM-DD)")
	cmd.Flags().String("out-dir", "./out", "directory for output artifacts")
}

// finish archives the run when a DSN is configured and maps a
// mismatched result to the mismatch exit code.
func finish(ctx context.Context, verifier string, result *verify.Result, pgDSN string, startedAt time.Time, logger *zap.Logger) error {
	if pgDSN != "" {
		if err := archiveRun(ctx, verifier, result, pgDSN, startedAt); err != nil {
			// Archival is best-effort; the verdict stands either way.
			logger.Warn("archive run failed", zap.Error(err))
		}
	}

	mismatched := 0
	for _, s := range result.Summaries {
		if !s.Matched {
			mismatched++
		}
	}
	logger.Info("verification finished",
		zap.String("verifier", verifier),
		zap.String("status", string(result.Status)),
		zap.Int("categories", len(result.Summaries)),
		zap.Int("mismatched", mismatched),
	)

	if result.Status == verify.StatusMismatched {
		return reconcile.ErrMismatch
	}
	return nil
}

func archiveRun(ctx context.Context, verifier string, result *verify.Result, pgDSN string, startedAt time.Time) error {
	store, err := postgres.NewStore(ctx, pgDSN)
	if err != nil {
		return err
	}
	defer store.Close()

	summaries := append([]model.ReconciliationSummary(nil), result.Summaries...)
	_, err = store.InsertRun(ctx, verifier, string(result.Status), startedAt, summaries)
	return err
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
