package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/chain"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/config"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/fetch"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/verify"
)

func newTreasuryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "treasury",
		Short: "Reconcile treasury USDC flows against the current on-chain balance",
		RunE:  runTreasury,
	}

	addCommonFlags(cmd)
	cmd.Flags().String("treasury", config.DefaultTreasury, "treasury wallet address")
	cmd.Flags().String("usdc-token", config.DefaultUSDCToken, "native USDC token address")
	cmd.Flags().String("usdce-token", config.DefaultUSDCEToken, "bridged USDC.e token address")
	cmd.Flags().Uint64("from-block", 0, "first block of the transfer scan")
	cmd.Flags().String("doc-snapshot-utc", config.DefaultDocSnapshotUTC, "documented snapshot cutoff (RFC3339)")

	return cmd
}

func runTreasury(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadTreasury(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	treasury, err := parseAddress("treasury", cfg.Treasury)
	if err != nil {
		return err
	}
	usdc, err := parseAddress("usdc-token", cfg.USDCToken)
	if err != nil {
		return err
	}
	usdce, err := parseAddress("usdce-token", cfg.USDCEToken)
	if err != nil {
		return err
	}

	docSnapshot, err := time.Parse(time.RFC3339, cfg.DocSnapshotUTC)
	if err != nil {
		return fmt.Errorf("parse doc-snapshot-utc: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	retry := fetch.RetryPolicy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff}
	fetcher := fetch.NewFetcher(fetch.Config{ChunkSize: cfg.ChunkSize, Retry: retry}, chainClient, logger)

	verifier := verify.NewTreasuryVerifier(verify.TreasuryParams{
		Treasury: treasury,
		Tokens: []verify.Token{
			{Symbol: "USDC", Address: usdc, Decimals: 6},
			{Symbol: "USDC.e", Address: usdce, Decimals: 6},
		},
		FromBlock:       cfg.FromBlock,
		DocSnapshotUTC:  docSnapshot,
		SnapshotPath:    cfg.SnapshotPath,
		RPCURL:          cfg.RPCURL,
		OutTransfersCSV: filepath.Join(cfg.OutDir, "usdc_transfers.csv"),
		OutOutflowsCSV:  filepath.Join(cfg.OutDir, "usdc_outflows_by_recipient.csv"),
		OutSummaryJSON:  filepath.Join(cfg.OutDir, "usdc_verification_summary.json"),
		AsOfDate:        cfg.AsOfDate,
	}, chainClient, fetcher, logger)

	logger.Info("treasury verifier start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("treasury", cfg.Treasury),
		zap.Uint64("from_block", cfg.FromBlock),
		zap.String("doc_snapshot_utc", cfg.DocSnapshotUTC),
	)

	startedAt := time.Now()
	result, err := verifier.Run(ctx)
	if err != nil {
		return err
	}
	return finish(ctx, "treasury", result, cfg.PGDSN, startedAt, logger)
}
