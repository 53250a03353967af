package verify

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/amount"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/chain"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/decode"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/fetch"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/inputs"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/model"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/reconcile"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/report"
)

// Payout category bucket names; these double as the snapshot JSON keys.
const (
	bucketPhase12 = "phase1+2_ticket_eth"
	bucketManual  = "manual_ticket_eth"
	bucketDec31   = "dec31_ticket_eth"
	bucketJan22   = "jan22_ticket_eth"
	bucketPhase3  = "phase3_transfer_eth"
	bucketTotal   = "total_eth"
)

var payoutCategoryKeys = []string{
	bucketPhase12,
	bucketManual,
	bucketDec31,
	bucketJan22,
	bucketPhase3,
	bucketTotal,
}

// PayoutsParams configures the payout-totals verifier.
type PayoutsParams struct {
	TicketBroker      common.Address
	GatewaySender     common.Address
	BackendWallet     common.Address
	LateTicketSender  common.Address
	GatewayStartBlock uint64

	ManualTicketTxs []string
	Dec31TicketTxs  []string
	Jan22TicketTxs  []string

	Phase3CSVPath string
	SnapshotPath  string
	OutPath       string
	AsOfDate      string
}

// PayoutsVerifier recomputes the headline ETH payout totals from
// TicketBroker redemption logs and the phase-3 native-transfer list.
type PayoutsVerifier struct {
	params   PayoutsParams
	chain    *chain.Client
	fetcher  *fetch.Fetcher
	receipts *fetch.ReceiptFetcher
	logger   *zap.Logger
}

// NewPayoutsVerifier builds a PayoutsVerifier with its dependencies.
func NewPayoutsVerifier(
	params PayoutsParams,
	chainClient *chain.Client,
	fetcher *fetch.Fetcher,
	receipts *fetch.ReceiptFetcher,
	logger *zap.Logger,
) *PayoutsVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PayoutsVerifier{
		params:   params,
		chain:    chainClient,
		fetcher:  fetcher,
		receipts: receipts,
		logger:   logger,
	}
}

type payoutsMeta struct {
	LatestBlock       uint64 `json:"latest_block"`
	Phase12Sender     string `json:"phase1+2_ticketbroker_sender"`
	Phase12EventCount int    `json:"phase1+2_ticketbroker_event_count"`
	Phase3TxCount     int    `json:"phase3_direct_transfer_tx_count"`
}

type recomputedTotals struct {
	Phase12TicketETH  string      `json:"phase1+2_ticket_eth"`
	ManualTicketETH   string      `json:"manual_ticket_eth"`
	Dec31TicketETH    string      `json:"dec31_ticket_eth"`
	Jan22TicketETH    string      `json:"jan22_ticket_eth"`
	Phase3TransferETH string      `json:"phase3_transfer_eth"`
	TotalETH          string      `json:"total_eth"`
	Meta              payoutsMeta `json:"meta"`
}

// Run executes one verification pass.
func (v *PayoutsVerifier) Run(ctx context.Context) (*Result, error) {
	// Validate all inputs before any network call.
	phase3Hashes, err := inputs.TxHashList(v.params.Phase3CSVPath, "tx_hash")
	if err != nil {
		return nil, err
	}

	expected := map[string]string{}
	if v.params.SnapshotPath != "" {
		expected, err = inputs.Snapshot(v.params.SnapshotPath)
		if err != nil {
			return nil, err
		}
	}

	v.logger.Info("payout verification start",
		zap.String("status", string(StatusFetching)),
		zap.String("ticket_broker", v.params.TicketBroker.Hex()),
		zap.Uint64("gateway_start_block", v.params.GatewayStartBlock),
		zap.Int("phase3_tx_count", len(phase3Hashes)),
	)

	latest, err := v.chain.LatestBlockNumber(ctx)
	if err != nil {
		return &Result{Status: StatusFetchError}, fmt.Errorf("get latest block: %w", err)
	}

	events, err := v.fetchEvents(ctx, latest, phase3Hashes)
	if err != nil {
		return &Result{Status: StatusFetchError}, err
	}

	v.logger.Info("payout aggregation",
		zap.String("status", string(StatusAggregating)),
		zap.Int("events", len(events)),
	)

	acc := AggregatePayouts(events)
	totalWei := new(big.Int)
	for _, bucket := range payoutCategoryKeys[:len(payoutCategoryKeys)-1] {
		totalWei.Add(totalWei, acc.Total(bucket))
	}

	recomputed := recomputedTotals{
		Phase12TicketETH:  amount.FormatUnits(acc.Total(bucketPhase12), 18),
		ManualTicketETH:   amount.FormatUnits(acc.Total(bucketManual), 18),
		Dec31TicketETH:    amount.FormatUnits(acc.Total(bucketDec31), 18),
		Jan22TicketETH:    amount.FormatUnits(acc.Total(bucketJan22), 18),
		Phase3TransferETH: amount.FormatUnits(acc.Total(bucketPhase3), 18),
		TotalETH:          amount.FormatUnits(totalWei, 18),
		Meta: payoutsMeta{
			LatestBlock:       latest,
			Phase12Sender:     lowerHex(v.params.GatewaySender),
			Phase12EventCount: acc.Count(bucketPhase12),
			Phase3TxCount:     acc.Count(bucketPhase3),
		},
	}

	if err := report.WriteJSON(v.params.OutPath, recomputed); err != nil {
		return nil, err
	}
	v.logger.Info("recomputed totals written", zap.String("out", v.params.OutPath))

	v.logger.Info("payout comparison", zap.String("status", string(StatusComparing)))
	computed := map[string]string{
		bucketPhase12: recomputed.Phase12TicketETH,
		bucketManual:  recomputed.ManualTicketETH,
		bucketDec31:   recomputed.Dec31TicketETH,
		bucketJan22:   recomputed.Jan22TicketETH,
		bucketPhase3:  recomputed.Phase3TransferETH,
		bucketTotal:   recomputed.TotalETH,
	}

	summaries, err := reconcile.CompareTotals(payoutCategoryKeys, expected, computed, v.params.AsOfDate)
	if err != nil {
		return nil, err
	}

	result := &Result{Status: StatusMatched, Summaries: summaries}
	if reconcile.Mismatched(summaries) {
		result.Status = StatusMismatched
		for _, s := range summaries {
			if !s.Matched {
				v.logger.Warn("category mismatch",
					zap.String("category", s.Category),
					zap.String("expected", s.ExpectedTotal),
					zap.String("computed", s.ComputedTotal),
					zap.String("delta", s.Delta),
				)
			}
		}
	}
	return result, nil
}

// fetchEvents pulls every payout event: the gateway-sender range scan,
// the fixed TicketBroker tx lists, and the phase-3 native transfers.
func (v *PayoutsVerifier) fetchEvents(ctx context.Context, latest uint64, phase3Hashes []string) ([]model.PayoutEvent, error) {
	events := make([]model.PayoutEvent, 0)

	// Phase 1+2: all WinningTicketRedeemed logs with the gateway as
	// the sender topic, from the first redemption-era block.
	topics := [][]common.Hash{
		{decode.WinningTicketRedeemedSig},
		{decode.TopicAddress(v.params.GatewaySender)},
	}
	logs, err := v.fetcher.Logs(ctx, v.params.GatewayStartBlock, latest, []common.Address{v.params.TicketBroker}, topics)
	if err != nil {
		return nil, err
	}
	for _, log := range logs {
		redemption, err := decode.WinningTicket(log)
		if err != nil {
			v.logger.Warn("skipping undecodable log", zap.Any("decode_error", decode.ErrorFromLog(log, err)))
			continue
		}
		events = append(events, ticketEvent(redemption, bucketPhase12))
	}
	v.logger.Info("gateway redemptions scanned", zap.Int("count", len(logs)))

	lists := []struct {
		bucket         string
		hashes         []string
		expectedSender common.Address
	}{
		{bucketManual, v.params.ManualTicketTxs, v.params.BackendWallet},
		{bucketDec31, v.params.Dec31TicketTxs, v.params.LateTicketSender},
		{bucketJan22, v.params.Jan22TicketTxs, v.params.LateTicketSender},
	}
	for _, list := range lists {
		for _, raw := range list.hashes {
			if err := inputs.ValidateTxHash(raw); err != nil {
				return nil, err
			}
			verified, err := v.receipts.Verified(ctx, common.HexToHash(raw))
			if err != nil {
				return nil, err
			}
			redemptions, err := decode.ReceiptTicketRedemptions(verified.Receipt, v.params.TicketBroker)
			if err != nil {
				return nil, fmt.Errorf("tx %s: %w", raw, err)
			}
			for _, redemption := range redemptions {
				if redemption.Sender != list.expectedSender {
					return nil, fmt.Errorf("tx %s: unexpected redemption sender %s (want %s)",
						raw, lowerHex(redemption.Sender), lowerHex(list.expectedSender))
				}
				events = append(events, ticketEvent(redemption, list.bucket))
			}
		}
	}

	// Phase 3: native ETH transfers, verified one by one. A reverted
	// or missing transaction already failed inside VerifiedAll.
	verified, err := v.receipts.VerifiedAll(ctx, hashesOf(phase3Hashes))
	if err != nil {
		return nil, err
	}
	for i, tx := range verified {
		if tx.From != v.params.BackendWallet {
			return nil, fmt.Errorf("tx %s: unexpected direct-payout sender %s (want %s)",
				phase3Hashes[i], lowerHex(tx.From), lowerHex(v.params.BackendWallet))
		}
		events = append(events, model.PayoutEvent{
			Source:      model.SourceDirectTransfer,
			Phase:       bucketPhase3,
			TxHash:      tx.Tx.Hash().Hex(),
			BlockNumber: tx.Receipt.BlockNumber.Uint64(),
			Sender:      lowerHex(tx.From),
			AmountWei:   tx.Tx.Value().String(),
		})
	}

	return events, nil
}

// AggregatePayouts sums payout events into phase buckets.
func AggregatePayouts(events []model.PayoutEvent) *Accumulator {
	acc := NewAccumulator()
	for _, event := range events {
		wei, ok := new(big.Int).SetString(event.AmountWei, 10)
		if !ok {
			continue
		}
		acc.Add(event.Phase, wei)
	}
	return acc
}

func ticketEvent(redemption decode.TicketRedemption, bucket string) model.PayoutEvent {
	return model.PayoutEvent{
		Source:      model.SourceTicketRedeemed,
		Phase:       bucket,
		TxHash:      redemption.TxHash.Hex(),
		BlockNumber: redemption.BlockNumber,
		Sender:      lowerHex(redemption.Sender),
		AmountWei:   redemption.Amount.String(),
	}
}

func hashesOf(raw []string) []common.Hash {
	out := make([]common.Hash, 0, len(raw))
	for _, h := range raw {
		out = append(out, common.HexToHash(h))
	}
	return out
}

func lowerHex(addr common.Address) string {
	return "0x" + fmt.Sprintf("%x", addr.Bytes())
}
