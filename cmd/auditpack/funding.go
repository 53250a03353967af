package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/chain"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/config"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/fetch"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/verify"
)

func newFundingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "funding",
		Short: "Verify legacy funding transactions and LPT conversion receipts",
		RunE:  runFunding,
	}

	addCommonFlags(cmd)
	cmd.Flags().String("gateway", config.DefaultGatewaySender, "gateway wallet address")
	cmd.Flags().String("treasury", config.DefaultTreasury, "treasury wallet address")
	cmd.Flags().String("testing-wallet", config.DefaultTestingWallet, "testing wallet address")
	cmd.Flags().String("safe-wallet", config.DefaultSafeWallet, "funding Safe address")
	cmd.Flags().String("router", config.DefaultRouter, "swap router address")
	cmd.Flags().String("lpt-token", config.DefaultLPTToken, "LPT token address")
	cmd.Flags().String("usdc-token", config.DefaultUSDCToken, "USDC token address")
	cmd.Flags().String("weth-token", config.DefaultWETHToken, "WETH token address")
	cmd.Flags().String("testing-returns-csv", "", "testing wallet return tx list CSV")
	cmd.Flags().String("safe-exec-csv", "", "Safe execTransaction ETH transfer tx list CSV")
	cmd.Flags().String("safe-lpt-csv", "", "Safe LPT transfer list CSV (tx_hash, amount_lpt)")
	cmd.Flags().String("disbursements-json", "", "treasury ETH disbursement list JSON")
	cmd.Flags().String("conversions-csv", "", "dated conversion tx list CSV")
	cmd.Flags().String("conversion-date", config.DefaultConversionDate, "UTC date prefix for conversion txs")

	return cmd
}

func runFunding(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadFunding(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	params := verify.FundingParams{
		TestingReturnsCSV: cfg.TestingReturnsCSV,
		SafeExecCSV:       cfg.SafeExecCSV,
		SafeLPTCSV:        cfg.SafeLPTCSV,
		DisbursementsJSON: cfg.DisbursementsJSON,
		ConversionsCSV:    cfg.ConversionsCSV,
		ConversionDate:    cfg.ConversionDate,
		SnapshotPath:      cfg.SnapshotPath,
		RPCURL:            cfg.RPCURL,
		OutFlowsCSV:       filepath.Join(cfg.OutDir, "legacy_funding_flows.csv"),
		OutConversionsCSV: filepath.Join(cfg.OutDir, "lpt_conversions_onchain.csv"),
		OutSummaryJSON:    filepath.Join(cfg.OutDir, "legacy_funding_and_conversions_summary.json"),
		AsOfDate:          cfg.AsOfDate,
	}

	for name, target := range map[string]struct {
		value string
		dest  *common.Address
	}{
		"gateway":        {cfg.Gateway, &params.Gateway},
		"treasury":       {cfg.Treasury, &params.Treasury},
		"testing-wallet": {cfg.TestingWallet, &params.TestingWallet},
		"safe-wallet":    {cfg.SafeWallet, &params.SafeWallet},
		"router":         {cfg.Router, &params.Router},
		"lpt-token":      {cfg.LPTToken, &params.LPTToken},
		"usdc-token":     {cfg.USDCToken, &params.USDCToken},
		"weth-token":     {cfg.WETHToken, &params.WETHToken},
	} {
		addr, err := parseAddress(name, target.value)
		if err != nil {
			return err
		}
		*target.dest = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	retry := fetch.RetryPolicy{MaxAttempts: cfg.MaxRetries, BaseDelay: cfg.RetryBackoff}
	receipts := fetch.NewReceiptFetcher(retry, chainClient, logger)

	verifier := verify.NewFundingVerifier(params, receipts, logger)

	logger.Info("funding verifier start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("gateway", cfg.Gateway),
		zap.String("safe_wallet", cfg.SafeWallet),
		zap.String("conversion_date", cfg.ConversionDate),
	)

	startedAt := time.Now()
	result, err := verifier.Run(ctx)
	if err != nil {
		return err
	}
	return finish(ctx, "funding", result, cfg.PGDSN, startedAt, logger)
}
