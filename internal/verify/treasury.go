package verify

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"strings"
	"time"

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

// Token identifies one ERC-20 tracked by the treasury verifier.
type Token struct {
	Symbol   string
	Address  common.Address
	Decimals uint8
}

// TreasuryParams configures the USDC treasury verifier.
type TreasuryParams struct {
	Treasury       common.Address
	Tokens         []Token
	FromBlock      uint64
	DocSnapshotUTC time.Time

	SnapshotPath string
	RPCURL       string

	OutTransfersCSV string
	OutOutflowsCSV  string
	OutSummaryJSON  string
	AsOfDate        string
}

// TreasuryVerifier reconciles treasury token flows against the current
// on-chain balance and the committed doc-snapshot totals.
type TreasuryVerifier struct {
	params  TreasuryParams
	chain   *chain.Client
	fetcher *fetch.Fetcher
	logger  *zap.Logger
}

// NewTreasuryVerifier builds a TreasuryVerifier with its dependencies.
func NewTreasuryVerifier(params TreasuryParams, chainClient *chain.Client, fetcher *fetch.Fetcher, logger *zap.Logger) *TreasuryVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TreasuryVerifier{params: params, chain: chainClient, fetcher: fetcher, logger: logger}
}

// TransferRow pairs the serialized transfer with its integer amount
// and parsed timestamp for aggregation.
type TransferRow struct {
	Transfer model.TreasuryTransfer
	Raw      *big.Int
	Time     time.Time
}

// TreasuryAggregate holds per-token flow totals, all-time and bounded
// by the doc-snapshot cutoff.
type TreasuryAggregate struct {
	InflowRaw   *big.Int
	OutflowRaw  *big.Int
	InCount     int
	OutCount    int
	SnapInflow  *big.Int
	SnapOutflow *big.Int
	SnapIn      int
	SnapOut     int
}

// RecipientTotal aggregates outflows for one (token, recipient) pair.
type RecipientTotal struct {
	TokenSymbol  string
	TokenAddress string
	Recipient    string
	TxCountTotal int
	AmountTotal  *big.Int
	TxCountSnap  int
	AmountSnap   *big.Int
}

type tokenSnapshotSummary struct {
	InflowCount     int    `json:"inflow_count"`
	OutflowCount    int    `json:"outflow_count"`
	InflowTotalRaw  string `json:"inflow_total_raw"`
	OutflowTotalRaw string `json:"outflow_total_raw"`
	NetRaw          string `json:"net_raw"`
	InflowTotal     string `json:"inflow_total"`
	OutflowTotal    string `json:"outflow_total"`
	Net             string `json:"net"`
}

type tokenSummary struct {
	TokenAddress      string               `json:"token_address"`
	Decimals          uint8                `json:"decimals"`
	CurrentBalanceRaw string               `json:"current_balance_raw"`
	CurrentBalance    string               `json:"current_balance"`
	InflowCountTotal  int                  `json:"inflow_count_total"`
	OutflowCountTotal int                  `json:"outflow_count_total"`
	InflowTotalRaw    string               `json:"inflow_total_raw"`
	OutflowTotalRaw   string               `json:"outflow_total_raw"`
	NetRaw            string               `json:"net_raw"`
	InflowTotal       string               `json:"inflow_total"`
	OutflowTotal      string               `json:"outflow_total"`
	Net               string               `json:"net"`
	BalanceReconciles bool                 `json:"balance_reconciles"`
	DocSnapshot       tokenSnapshotSummary `json:"doc_snapshot"`
}

type treasurySummary struct {
	AsOfBlock      uint64                  `json:"as_of_block"`
	AsOfUTC        string                  `json:"as_of_utc"`
	RPCURL         string                  `json:"rpc_url"`
	Treasury       string                  `json:"treasury"`
	DocSnapshotUTC string                  `json:"doc_snapshot_utc"`
	Tokens         map[string]tokenSummary `json:"tokens"`
}

// Run executes one verification pass.
func (v *TreasuryVerifier) Run(ctx context.Context) (*Result, error) {
	expected := map[string]string{}
	if v.params.SnapshotPath != "" {
		var err error
		expected, err = inputs.Snapshot(v.params.SnapshotPath)
		if err != nil {
			return nil, err
		}
	}

	v.logger.Info("treasury verification start",
		zap.String("status", string(StatusFetching)),
		zap.String("treasury", strings.ToLower(v.params.Treasury.Hex())),
		zap.Int("tokens", len(v.params.Tokens)),
	)

	latest, err := v.chain.LatestBlockNumber(ctx)
	if err != nil {
		return &Result{Status: StatusFetchError}, fmt.Errorf("get latest block: %w", err)
	}
	latestTS, err := v.chain.BlockTimestamp(ctx, latest)
	if err != nil {
		return &Result{Status: StatusFetchError}, fmt.Errorf("latest block timestamp: %w", err)
	}

	rows := make([]TransferRow, 0)
	for _, token := range v.params.Tokens {
		tokenRows, err := v.fetchTokenTransfers(ctx, token, latest)
		if err != nil {
			return &Result{Status: StatusFetchError}, err
		}
		rows = append(rows, tokenRows...)
	}

	SortTransferRows(rows)

	v.logger.Info("treasury aggregation",
		zap.String("status", string(StatusAggregating)),
		zap.Int("transfers", len(rows)),
	)

	summary := treasurySummary{
		AsOfBlock:      latest,
		AsOfUTC:        time.Unix(int64(latestTS), 0).UTC().Format(time.RFC3339),
		RPCURL:         v.params.RPCURL,
		Treasury:       strings.ToLower(v.params.Treasury.Hex()),
		DocSnapshotUTC: v.params.DocSnapshotUTC.UTC().Format(time.RFC3339),
		Tokens:         make(map[string]tokenSummary, len(v.params.Tokens)),
	}

	computed := make(map[string]string)
	summaries := make([]model.ReconciliationSummary, 0)
	recipients := AggregateOutflowsByRecipient(rows, v.params.DocSnapshotUTC)

	for _, token := range v.params.Tokens {
		agg := AggregateTreasuryFlows(rows, token.Symbol, v.params.DocSnapshotUTC)

		balance, err := v.chain.ERC20BalanceOf(ctx, token.Address, v.params.Treasury)
		if err != nil {
			return &Result{Status: StatusFetchError}, fmt.Errorf("%s balanceOf: %w", token.Symbol, err)
		}

		net := new(big.Int).Sub(agg.InflowRaw, agg.OutflowRaw)
		snapNet := new(big.Int).Sub(agg.SnapInflow, agg.SnapOutflow)
		reconciles := balance.Cmp(net) == 0

		summary.Tokens[token.Symbol] = tokenSummary{
			TokenAddress:      strings.ToLower(token.Address.Hex()),
			Decimals:          token.Decimals,
			CurrentBalanceRaw: balance.String(),
			CurrentBalance:    amount.FormatUnits(balance, token.Decimals),
			InflowCountTotal:  agg.InCount,
			OutflowCountTotal: agg.OutCount,
			InflowTotalRaw:    agg.InflowRaw.String(),
			OutflowTotalRaw:   agg.OutflowRaw.String(),
			NetRaw:            net.String(),
			InflowTotal:       amount.FormatUnits(agg.InflowRaw, token.Decimals),
			OutflowTotal:      amount.FormatUnits(agg.OutflowRaw, token.Decimals),
			Net:               amount.FormatUnits(net, token.Decimals),
			BalanceReconciles: reconciles,
			DocSnapshot: tokenSnapshotSummary{
				InflowCount:     agg.SnapIn,
				OutflowCount:    agg.SnapOut,
				InflowTotalRaw:  agg.SnapInflow.String(),
				OutflowTotalRaw: agg.SnapOutflow.String(),
				NetRaw:          snapNet.String(),
				InflowTotal:     amount.FormatUnits(agg.SnapInflow, token.Decimals),
				OutflowTotal:    amount.FormatUnits(agg.SnapOutflow, token.Decimals),
				Net:             amount.FormatUnits(snapNet, token.Decimals),
			},
		}

		// The balance reconcile is an independent on-chain observable:
		// net historical flow must equal the current balanceOf.
		summaries = append(summaries, model.ReconciliationSummary{
			Category:      token.Symbol + "_net_vs_balance",
			ComputedTotal: net.String(),
			ExpectedTotal: balance.String(),
			Matched:       reconciles,
			Delta:         deltaIfMismatch(net, balance),
			AsOfDate:      v.params.AsOfDate,
		})

		prefix := strings.ToLower(strings.ReplaceAll(token.Symbol, ".", "_"))
		computed[prefix+"_inflow_total"] = amount.FormatUnits(agg.SnapInflow, token.Decimals)
		computed[prefix+"_outflow_total"] = amount.FormatUnits(agg.SnapOutflow, token.Decimals)
		computed[prefix+"_net"] = amount.FormatUnits(snapNet, token.Decimals)
	}

	v.logger.Info("treasury comparison", zap.String("status", string(StatusComparing)))

	// Doc-snapshot totals are only checked for keys the committed
	// snapshot actually carries.
	snapshotKeys := make([]string, 0, len(computed))
	for key := range computed {
		if _, ok := expected[key]; ok {
			snapshotKeys = append(snapshotKeys, key)
		}
	}
	sort.Strings(snapshotKeys)
	if len(snapshotKeys) > 0 {
		snapshotSummaries, err := reconcile.CompareTotals(snapshotKeys, expected, computed, v.params.AsOfDate)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, snapshotSummaries...)
	}

	if err := v.writeArtifacts(rows, recipients, summary); err != nil {
		return nil, err
	}

	result := &Result{Status: StatusMatched, Summaries: summaries}
	if reconcile.Mismatched(summaries) {
		result.Status = StatusMismatched
	}
	return result, nil
}

func (v *TreasuryVerifier) fetchTokenTransfers(ctx context.Context, token Token, latest uint64) ([]TransferRow, error) {
	treasuryTopic := decode.TopicAddress(v.params.Treasury)
	addresses := []common.Address{token.Address}

	outLogs, err := v.fetcher.Logs(ctx, v.params.FromBlock, latest, addresses,
		[][]common.Hash{{decode.TransferSig}, {treasuryTopic}})
	if err != nil {
		return nil, err
	}
	inLogs, err := v.fetcher.Logs(ctx, v.params.FromBlock, latest, addresses,
		[][]common.Hash{{decode.TransferSig}, nil, {treasuryTopic}})
	if err != nil {
		return nil, err
	}

	// A self-transfer appears in both filters; dedupe across them.
	seen := make(map[string]struct{})
	rows := make([]TransferRow, 0, len(outLogs)+len(inLogs))
	treasury := strings.ToLower(v.params.Treasury.Hex())

	for _, log := range append(outLogs, inLogs...) {
		id := fmt.Sprintf("%s:%d", strings.ToLower(log.TxHash.Hex()), log.Index)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		leg, err := decode.Transfer(log)
		if err != nil {
			v.logger.Warn("skipping undecodable log", zap.Any("decode_error", decode.ErrorFromLog(log, err)))
			continue
		}

		ts, err := v.chain.BlockTimestamp(ctx, log.BlockNumber)
		if err != nil {
			return nil, &fetch.FetchError{From: log.BlockNumber, To: log.BlockNumber, Err: err}
		}
		when := time.Unix(int64(ts), 0).UTC()

		from := strings.ToLower(leg.From.Hex())
		to := strings.ToLower(leg.To.Hex())

		rows = append(rows, TransferRow{
			Transfer: model.TreasuryTransfer{
				TokenSymbol:  token.Symbol,
				TokenAddress: strings.ToLower(token.Address.Hex()),
				TxHash:       strings.ToLower(log.TxHash.Hex()),
				BlockNumber:  log.BlockNumber,
				TimestampUTC: when.Format(time.RFC3339),
				LogIndex:     uint64(log.Index),
				From:         from,
				To:           to,
				Direction:    model.DeriveDirection(from, to, treasury),
				AmountRaw:    leg.Value.String(),
				Amount:       amount.FormatUnits(leg.Value, token.Decimals),
			},
			Raw:  leg.Value,
			Time: when,
		})
	}

	v.logger.Info("token transfers fetched",
		zap.String("token", token.Symbol),
		zap.Int("count", len(rows)),
	)
	return rows, nil
}

// SortTransferRows orders rows for stable artifact diffs.
func SortTransferRows(rows []TransferRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i].Transfer, rows[j].Transfer
		if a.TokenSymbol != b.TokenSymbol {
			return a.TokenSymbol < b.TokenSymbol
		}
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.TxHash != b.TxHash {
			return a.TxHash < b.TxHash
		}
		return a.LogIndex < b.LogIndex
	})
}

// AggregateTreasuryFlows sums in/out totals for one token, all-time
// and bounded by the cutoff (inclusive). Self-transfers count toward
// neither direction.
func AggregateTreasuryFlows(rows []TransferRow, tokenSymbol string, cutoff time.Time) TreasuryAggregate {
	agg := TreasuryAggregate{
		InflowRaw:   new(big.Int),
		OutflowRaw:  new(big.Int),
		SnapInflow:  new(big.Int),
		SnapOutflow: new(big.Int),
	}

	for _, row := range rows {
		if row.Transfer.TokenSymbol != tokenSymbol {
			continue
		}
		inSnapshot := !row.Time.After(cutoff)

		switch row.Transfer.Direction {
		case model.DirectionIn:
			agg.InCount++
			agg.InflowRaw.Add(agg.InflowRaw, row.Raw)
			if inSnapshot {
				agg.SnapIn++
				agg.SnapInflow.Add(agg.SnapInflow, row.Raw)
			}
		case model.DirectionOut:
			agg.OutCount++
			agg.OutflowRaw.Add(agg.OutflowRaw, row.Raw)
			if inSnapshot {
				agg.SnapOut++
				agg.SnapOutflow.Add(agg.SnapOutflow, row.Raw)
			}
		}
	}
	return agg
}

// AggregateOutflowsByRecipient groups outflows per (token, recipient),
// sorted by token then descending amount then recipient.
func AggregateOutflowsByRecipient(rows []TransferRow, cutoff time.Time) []RecipientTotal {
	byKey := make(map[string]*RecipientTotal)
	for _, row := range rows {
		if row.Transfer.Direction != model.DirectionOut {
			continue
		}
		key := row.Transfer.TokenSymbol + ":" + row.Transfer.To
		entry, ok := byKey[key]
		if !ok {
			entry = &RecipientTotal{
				TokenSymbol:  row.Transfer.TokenSymbol,
				TokenAddress: row.Transfer.TokenAddress,
				Recipient:    row.Transfer.To,
				AmountTotal:  new(big.Int),
				AmountSnap:   new(big.Int),
			}
			byKey[key] = entry
		}
		entry.TxCountTotal++
		entry.AmountTotal.Add(entry.AmountTotal, row.Raw)
		if !row.Time.After(cutoff) {
			entry.TxCountSnap++
			entry.AmountSnap.Add(entry.AmountSnap, row.Raw)
		}
	}

	out := make([]RecipientTotal, 0, len(byKey))
	for _, entry := range byKey {
		out = append(out, *entry)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].TokenSymbol != out[j].TokenSymbol {
			return out[i].TokenSymbol < out[j].TokenSymbol
		}
		if cmp := out[i].AmountTotal.Cmp(out[j].AmountTotal); cmp != 0 {
			return cmp > 0
		}
		return out[i].Recipient < out[j].Recipient
	})
	return out
}

func (v *TreasuryVerifier) writeArtifacts(rows []TransferRow, recipients []RecipientTotal, summary treasurySummary) error {
	transferRecords := make([][]string, 0, len(rows))
	for _, row := range rows {
		t := row.Transfer
		transferRecords = append(transferRecords, []string{
			t.TokenSymbol, t.TokenAddress, t.TxHash,
			fmt.Sprintf("%d", t.BlockNumber), t.TimestampUTC,
			fmt.Sprintf("%d", t.LogIndex), t.From, t.To,
			string(t.Direction), t.AmountRaw, t.Amount,
		})
	}
	err := report.WriteCSV(v.params.OutTransfersCSV,
		[]string{"token_symbol", "token_address", "tx_hash", "block_number", "timestamp_utc", "log_index", "from", "to", "direction", "amount_raw", "amount"},
		transferRecords,
	)
	if err != nil {
		return err
	}

	recipientRecords := make([][]string, 0, len(recipients))
	for _, r := range recipients {
		recipientRecords = append(recipientRecords, []string{
			r.TokenSymbol, r.TokenAddress, r.Recipient,
			fmt.Sprintf("%d", r.TxCountTotal), r.AmountTotal.String(),
			fmt.Sprintf("%d", r.TxCountSnap), r.AmountSnap.String(),
		})
	}
	err = report.WriteCSV(v.params.OutOutflowsCSV,
		[]string{"token_symbol", "token_address", "recipient", "tx_count_total", "amount_total_raw", "tx_count_upto_doc_snapshot", "amount_upto_doc_snapshot_raw"},
		recipientRecords,
	)
	if err != nil {
		return err
	}

	return report.WriteJSON(v.params.OutSummaryJSON, summary)
}

func deltaIfMismatch(computed, expected *big.Int) string {
	if computed.Cmp(expected) == 0 {
		return ""
	}
	return new(big.Int).Sub(expected, computed).String()
}
