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

func newPayoutsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "payouts",
		Short: "Recompute ETH payout totals from ticket redemptions and direct transfers",
		RunE:  runPayouts,
	}

	addCommonFlags(cmd)
	cmd.Flags().String("ticket-broker", config.DefaultTicketBroker, "TicketBroker contract address")
	cmd.Flags().String("gateway-sender", config.DefaultGatewaySender, "gateway ticket sender address")
	cmd.Flags().String("backend-wallet", config.DefaultBackendWallet, "backend payout wallet address")
	cmd.Flags().String("late-ticket-sender", config.DefaultLateTicketSender, "sender for the late redemption batches")
	cmd.Flags().Uint64("gateway-start-block", config.DefaultGatewayStartBlock, "first block of the gateway range scan")
	cmd.Flags().StringSlice("manual-ticket-txs", config.DefaultManualTicketTxs, "manual redemption tx hashes")
	cmd.Flags().StringSlice("dec31-ticket-txs", config.DefaultDec31TicketTxs, "dec 31 redemption tx hashes")
	cmd.Flags().StringSlice("jan22-ticket-txs", config.DefaultJan22TicketTxs, "jan 22 redemption tx hashes")
	cmd.Flags().String("phase3-csv", "", "phase-3 direct transfer tx list CSV")

	return cmd
}

func runPayouts(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadPayouts(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	broker, err := parseAddress("ticket-broker", cfg.TicketBroker)
	if err != nil {
		return err
	}
	gateway, err := parseAddress("gateway-sender", cfg.GatewaySender)
	if err != nil {
		return err
	}
	backend, err := parseAddress("backend-wallet", cfg.BackendWallet)
	if err != nil {
		return err
	}
	lateSender, err := parseAddress("late-ticket-sender", cfg.LateTicketSender)
	if err != nil {
		return err
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
	receipts := fetch.NewReceiptFetcher(retry, chainClient, logger)

	verifier := verify.NewPayoutsVerifier(verify.PayoutsParams{
		TicketBroker:      broker,
		GatewaySender:     gateway,
		BackendWallet:     backend,
		LateTicketSender:  lateSender,
		GatewayStartBlock: cfg.GatewayStartBlock,
		ManualTicketTxs:   cfg.ManualTicketTxs,
		Dec31TicketTxs:    cfg.Dec31TicketTxs,
		Jan22TicketTxs:    cfg.Jan22TicketTxs,
		Phase3CSVPath:     cfg.Phase3CSV,
		SnapshotPath:      cfg.SnapshotPath,
		OutPath:           filepath.Join(cfg.OutDir, "computed_totals.recomputed.json"),
		AsOfDate:          cfg.AsOfDate,
	}, chainClient, fetcher, receipts, logger)

	logger.Info("payouts verifier start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("ticket_broker", cfg.TicketBroker),
		zap.Uint64("gateway_start_block", cfg.GatewayStartBlock),
		zap.String("phase3_csv", cfg.Phase3CSV),
	)

	startedAt := time.Now()
	result, err := verifier.Run(ctx)
	if err != nil {
		return err
	}
	return finish(ctx, "payouts", result, cfg.PGDSN, startedAt, logger)
}

func parseAddress(name, value string) (common.Address, error) {
	if !common.IsHexAddress(value) {
		return common.Address{}, fmt.Errorf("invalid %s address: %q", name, value)
	}
	return common.HexToAddress(value), nil
}
