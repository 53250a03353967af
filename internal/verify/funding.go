package verify

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/amount"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/decode"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/fetch"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/inputs"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/model"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/reconcile"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/report"
)

const (
	ethDecimals  = 18
	lptDecimals  = 18
	usdcDecimals = 6
)

// FundingParams configures the legacy funding and conversion verifier.
type FundingParams struct {
	Gateway       common.Address
	Treasury      common.Address
	TestingWallet common.Address
	SafeWallet    common.Address
	Router        common.Address

	LPTToken  common.Address
	USDCToken common.Address
	WETHToken common.Address

	TestingReturnsCSV string
	SafeExecCSV       string
	SafeLPTCSV        string
	DisbursementsJSON string
	ConversionsCSV    string
	ConversionDate    string
	SnapshotPath      string
	RPCURL            string

	OutFlowsCSV       string
	OutConversionsCSV string
	OutSummaryJSON    string
	AsOfDate          string
}

// FundingVerifier re-verifies the legacy funding transaction lists and
// the on-chain LPT conversion receipts.
type FundingVerifier struct {
	params   FundingParams
	receipts *fetch.ReceiptFetcher
	logger   *zap.Logger
}

// NewFundingVerifier builds a FundingVerifier with its dependencies.
func NewFundingVerifier(params FundingParams, receipts *fetch.ReceiptFetcher, logger *zap.Logger) *FundingVerifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FundingVerifier{params: params, receipts: receipts, logger: logger}
}

type fundingFlowsSummary struct {
	RowCount                int    `json:"row_count"`
	ETHTestingWalletReturns string `json:"eth_testing_wallet_returns"`
	ETHSafeExecTransfers    string `json:"eth_safe_exec_transfers"`
	LPTSafeTransfers        string `json:"lpt_safe_transfers"`
	ETHTreasuryDisburse     string `json:"eth_treasury_disbursements"`
}

type conversionsSummary struct {
	RowCount          int    `json:"row_count"`
	LPTOutTotal       string `json:"lpt_out_total"`
	USDCInTotal       string `json:"usdc_in_total"`
	WETHGrossInTotal  string `json:"weth_gross_in_total"`
	WETHBurnTotal     string `json:"weth_burn_total"`
	WETHOtherOutTotal string `json:"weth_other_out_total"`
}

type fundingSummary struct {
	AsOfDate       string              `json:"as_of_date"`
	RPCURL         string              `json:"rpc_url"`
	FundingFlows   fundingFlowsSummary `json:"funding_flows"`
	LPTConversions conversionsSummary  `json:"lpt_conversions"`
}

// Run executes one verification pass.
func (v *FundingVerifier) Run(ctx context.Context) (*Result, error) {
	expected := map[string]string{}
	if v.params.SnapshotPath != "" {
		var err error
		expected, err = inputs.Snapshot(v.params.SnapshotPath)
		if err != nil {
			return nil, err
		}
	}

	v.logger.Info("funding verification start",
		zap.String("status", string(StatusFetching)),
		zap.String("gateway", strings.ToLower(v.params.Gateway.Hex())),
	)

	flows := make([]model.FundingFlow, 0)
	rowSummaries := make([]model.ReconciliationSummary, 0)

	if err := v.verifyTestingReturns(ctx, &flows, &rowSummaries); err != nil {
		return fetchResultOrNil(err), err
	}
	if err := v.verifySafeExecTransfers(ctx, &flows, &rowSummaries); err != nil {
		return fetchResultOrNil(err), err
	}
	if err := v.verifySafeLPTTransfers(ctx, &flows, &rowSummaries); err != nil {
		return fetchResultOrNil(err), err
	}
	if err := v.verifyDisbursements(ctx, &flows, &rowSummaries); err != nil {
		return fetchResultOrNil(err), err
	}

	conversions, err := v.fetchConversions(ctx)
	if err != nil {
		return fetchResultOrNil(err), err
	}

	v.logger.Info("funding aggregation",
		zap.String("status", string(StatusAggregating)),
		zap.Int("flows", len(flows)),
		zap.Int("conversions", len(conversions)),
	)

	sort.SliceStable(flows, func(i, j int) bool {
		if flows[i].BlockNumber != flows[j].BlockNumber {
			return flows[i].BlockNumber < flows[j].BlockNumber
		}
		if flows[i].TxHash != flows[j].TxHash {
			return flows[i].TxHash < flows[j].TxHash
		}
		return flows[i].Kind < flows[j].Kind
	})
	sort.SliceStable(conversions, func(i, j int) bool {
		if conversions[i].DateUTC != conversions[j].DateUTC {
			return conversions[i].DateUTC < conversions[j].DateUTC
		}
		return conversions[i].TxHash < conversions[j].TxHash
	})

	summary := v.buildSummary(flows, conversions)
	summaries := append([]model.ReconciliationSummary(nil), rowSummaries...)

	v.logger.Info("funding comparison", zap.String("status", string(StatusComparing)))

	// Snapshot totals, when committed, must agree with the recomputed ones.
	computed := map[string]string{
		"eth_testing_wallet_returns": summary.FundingFlows.ETHTestingWalletReturns,
		"eth_safe_exec_transfers":    summary.FundingFlows.ETHSafeExecTransfers,
		"lpt_safe_transfers":         summary.FundingFlows.LPTSafeTransfers,
		"eth_treasury_disbursements": summary.FundingFlows.ETHTreasuryDisburse,
		"lpt_out_total":              summary.LPTConversions.LPTOutTotal,
		"usdc_in_total":              summary.LPTConversions.USDCInTotal,
	}
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

	if err := v.writeArtifacts(flows, conversions, summary); err != nil {
		return nil, err
	}

	result := &Result{Status: StatusMatched, Summaries: summaries}
	for _, s := range summaries {
		if !s.Matched {
			result.Status = StatusMismatched
			v.logger.Warn("funding mismatch",
				zap.String("category", s.Category),
				zap.String("expected", s.ExpectedTotal),
				zap.String("computed", s.ComputedTotal),
			)
		}
	}
	return result, nil
}

// verifyTestingReturns checks each listed ETH return from the testing
// wallet back to the gateway against its on-chain transaction.
func (v *FundingVerifier) verifyTestingReturns(ctx context.Context, flows *[]model.FundingFlow, rowSummaries *[]model.ReconciliationSummary) error {
	rows, err := inputs.AmountRows(v.params.TestingReturnsCSV, "amount_eth")
	if err != nil {
		return err
	}

	for _, row := range rows {
		result, err := v.receipts.Verified(ctx, common.HexToHash(row.TxHash))
		if err != nil {
			return err
		}
		expectedWei, err := amount.ParseUnits(row.Amount, ethDecimals)
		if err != nil {
			return fmt.Errorf("%s: %w", row.TxHash, err)
		}

		ok := result.From == v.params.TestingWallet &&
			result.Tx.To() != nil && *result.Tx.To() == v.params.Gateway &&
			result.Tx.Value().Cmp(expectedWei) == 0
		v.recordFlow(flows, rowSummaries, model.FundingFlow{
			Chain:       "arbitrum-one",
			Kind:        model.FlowTestingWalletReturn,
			TxHash:      row.TxHash,
			BlockNumber: result.Receipt.BlockNumber.Uint64(),
			FromAddr:    strings.ToLower(result.From.Hex()),
			ToAddr:      lowerTo(result.Tx.To()),
			Asset:       "ETH",
			AmountRaw:   result.Tx.Value().String(),
			Decimals:    ethDecimals,
			Amount:      amount.FormatUnits(result.Tx.Value(), ethDecimals),
			GasFeeETH:   gasFeeETH(result),
			Status:      "success",
		}, ok, row.Amount)
	}
	return nil
}

// verifySafeExecTransfers checks Safe execTransaction ETH transfers to
// the gateway. The ETH amount lives in the execTransaction calldata,
// not in the outer transaction value.
func (v *FundingVerifier) verifySafeExecTransfers(ctx context.Context, flows *[]model.FundingFlow, rowSummaries *[]model.ReconciliationSummary) error {
	rows, err := inputs.AmountRows(v.params.SafeExecCSV, "amount_eth")
	if err != nil {
		return err
	}

	for _, row := range rows {
		result, err := v.receipts.Verified(ctx, common.HexToHash(row.TxHash))
		if err != nil {
			return err
		}
		expectedWei, err := amount.ParseUnits(row.Amount, ethDecimals)
		if err != nil {
			return fmt.Errorf("%s: %w", row.TxHash, err)
		}

		call, decodeErr := decode.SafeExecTransaction(result.Tx.Data())
		ok := decodeErr == nil &&
			result.Tx.To() != nil && *result.Tx.To() == v.params.SafeWallet &&
			call.To == v.params.Gateway &&
			call.Value.Cmp(expectedWei) == 0

		flow := model.FundingFlow{
			Chain:       "arbitrum-one",
			Kind:        model.FlowSafeExecETHTransfer,
			TxHash:      row.TxHash,
			BlockNumber: result.Receipt.BlockNumber.Uint64(),
			FromAddr:    strings.ToLower(v.params.SafeWallet.Hex()),
			ToAddr:      strings.ToLower(v.params.Gateway.Hex()),
			Asset:       "ETH",
			Decimals:    ethDecimals,
			GasFeeETH:   gasFeeETH(result),
			Status:      "success",
			Note:        "safe execTransaction inner value",
		}
		if decodeErr == nil {
			flow.AmountRaw = call.Value.String()
			flow.Amount = amount.FormatUnits(call.Value, ethDecimals)
		} else {
			flow.Note = decodeErr.Error()
		}
		v.recordFlow(flows, rowSummaries, flow, ok, row.Amount)
	}
	return nil
}

// verifySafeLPTTransfers checks each listed Safe LPT transfer: the
// Safe-to-gateway transfer legs in the receipt must sum to the row's
// listed amount.
func (v *FundingVerifier) verifySafeLPTTransfers(ctx context.Context, flows *[]model.FundingFlow, rowSummaries *[]model.ReconciliationSummary) error {
	rows, err := inputs.AmountRows(v.params.SafeLPTCSV, "amount_lpt")
	if err != nil {
		return err
	}

	for _, row := range rows {
		result, err := v.receipts.Verified(ctx, common.HexToHash(row.TxHash))
		if err != nil {
			return err
		}
		flow, ok, err := v.safeLPTFlow(row, result)
		if err != nil {
			return err
		}
		v.recordFlow(flows, rowSummaries, flow, ok, row.Amount)
	}
	return nil
}

// safeLPTFlow sums the Safe-to-gateway LPT legs of one receipt and
// compares them to the row's listed amount.
func (v *FundingVerifier) safeLPTFlow(row inputs.AmountRow, result fetch.TxWithReceipt) (model.FundingFlow, bool, error) {
	expectedRaw, err := amount.ParseUnits(row.Amount, lptDecimals)
	if err != nil {
		return model.FundingFlow{}, false, fmt.Errorf("%s: %w", row.TxHash, err)
	}

	total := new(big.Int)
	for _, leg := range decode.ReceiptTransfers(result.Receipt, v.params.LPTToken) {
		if leg.From != v.params.SafeWallet || leg.To != v.params.Gateway {
			continue
		}
		total.Add(total, leg.Value)
	}

	return model.FundingFlow{
		Chain:       "arbitrum-one",
		Kind:        model.FlowSafeLPTTransfer,
		TxHash:      row.TxHash,
		BlockNumber: result.Receipt.BlockNumber.Uint64(),
		FromAddr:    strings.ToLower(v.params.SafeWallet.Hex()),
		ToAddr:      strings.ToLower(v.params.Gateway.Hex()),
		Asset:       "LPT",
		AmountRaw:   total.String(),
		Decimals:    lptDecimals,
		Amount:      amount.FormatUnits(total, lptDecimals),
		GasFeeETH:   gasFeeETH(result),
		Status:      "success",
	}, total.Cmp(expectedRaw) == 0, nil
}

// verifyDisbursements checks treasury ETH disbursements against the
// expected recipient and amount per transaction.
func (v *FundingVerifier) verifyDisbursements(ctx context.Context, flows *[]model.FundingFlow, rowSummaries *[]model.ReconciliationSummary) error {
	disbursements, err := inputs.Disbursements(v.params.DisbursementsJSON)
	if err != nil {
		return err
	}

	for _, d := range disbursements {
		result, err := v.receipts.Verified(ctx, common.HexToHash(d.TransactionHash))
		if err != nil {
			return err
		}
		expectedWei, err := amount.ParseUnits(d.AmountETH, ethDecimals)
		if err != nil {
			return fmt.Errorf("%s: %w", d.TransactionHash, err)
		}
		recipient := common.HexToAddress(d.Recipient)

		ok := result.From == v.params.Treasury &&
			result.Tx.To() != nil && *result.Tx.To() == recipient &&
			result.Tx.Value().Cmp(expectedWei) == 0
		v.recordFlow(flows, rowSummaries, model.FundingFlow{
			Chain:       "arbitrum-one",
			Kind:        model.FlowTreasuryETHDisbursement,
			TxHash:      strings.ToLower(d.TransactionHash),
			BlockNumber: result.Receipt.BlockNumber.Uint64(),
			FromAddr:    strings.ToLower(result.From.Hex()),
			ToAddr:      lowerTo(result.Tx.To()),
			Asset:       "ETH",
			AmountRaw:   result.Tx.Value().String(),
			Decimals:    ethDecimals,
			Amount:      amount.FormatUnits(result.Tx.Value(), ethDecimals),
			GasFeeETH:   gasFeeETH(result),
			Status:      "success",
		}, ok, d.AmountETH)
	}
	return nil
}

// recordFlow appends the flow and, when the on-chain transaction does
// not match the listed one, a mismatch summary. A bad row is evidence
// to surface, not a crash.
func (v *FundingVerifier) recordFlow(flows *[]model.FundingFlow, rowSummaries *[]model.ReconciliationSummary, flow model.FundingFlow, ok bool, expectedAmount string) {
	if !ok {
		flow.Status = "mismatch"
		*rowSummaries = append(*rowSummaries, model.ReconciliationSummary{
			Category:      flow.Kind + ":" + flow.TxHash,
			ComputedTotal: flow.Amount,
			ExpectedTotal: expectedAmount,
			Matched:       false,
			AsOfDate:      v.params.AsOfDate,
		})
	}
	*flows = append(*flows, flow)
}

// fetchConversions rebuilds the LPT conversion ledger from receipts.
// Reverted transactions are kept with a "failed" status since a
// failed swap attempt is still part of the conversion history.
func (v *FundingVerifier) fetchConversions(ctx context.Context) ([]model.ConversionEvent, error) {
	rows, err := inputs.DatedTxRows(v.params.ConversionsCSV, v.params.ConversionDate)
	if err != nil {
		return nil, err
	}

	out := make([]model.ConversionEvent, 0, len(rows))
	for _, row := range rows {
		result, err := v.receipts.Fetch(ctx, common.HexToHash(row.TxHash))
		if err != nil {
			return nil, err
		}

		event := v.conversionFromReceipt(row, result)
		if event == nil {
			continue
		}
		out = append(out, *event)
	}
	return out, nil
}

func (v *FundingVerifier) conversionFromReceipt(row inputs.DatedTxRow, result fetch.TxWithReceipt) *model.ConversionEvent {
	lptOut := new(big.Int)
	usdcIn := new(big.Int)
	wethGrossIn := new(big.Int)
	wethBurn := new(big.Int)
	wethOtherOut := new(big.Int)

	for _, leg := range decode.ReceiptTransfers(result.Receipt, v.params.LPTToken) {
		if leg.From == v.params.Treasury && leg.To == v.params.Router {
			lptOut.Add(lptOut, leg.Value)
		}
	}
	for _, leg := range decode.ReceiptTransfers(result.Receipt, v.params.USDCToken) {
		if leg.To == v.params.Treasury {
			usdcIn.Add(usdcIn, leg.Value)
		}
	}
	for _, leg := range decode.ReceiptTransfers(result.Receipt, v.params.WETHToken) {
		switch {
		case leg.To == v.params.Router && leg.From != v.params.Router:
			wethGrossIn.Add(wethGrossIn, leg.Value)
		case leg.From == v.params.Router && leg.To == decode.ZeroAddress:
			wethBurn.Add(wethBurn, leg.Value)
		case leg.From == v.params.Router:
			wethOtherOut.Add(wethOtherOut, leg.Value)
		}
	}

	if lptOut.Sign() == 0 && usdcIn.Sign() == 0 && wethGrossIn.Sign() == 0 && wethBurn.Sign() == 0 {
		v.logger.Warn("skipping tx with no conversion legs", zap.String("tx_hash", row.TxHash))
		return nil
	}

	conversionType := model.ConversionUnknown
	switch {
	case lptOut.Sign() > 0 && usdcIn.Sign() > 0:
		conversionType = model.ConversionLPTToUSDC
	case lptOut.Sign() > 0 && wethGrossIn.Sign() > 0:
		conversionType = model.ConversionLPTToETHLike
	}

	status := "success"
	if result.Receipt.Status != types.ReceiptStatusSuccessful {
		status = "failed"
	}

	return &model.ConversionEvent{
		DateUTC:        row.ISOUTC,
		TxHash:         row.TxHash,
		To:             lowerTo(result.Tx.To()),
		ConversionType: conversionType,
		LPTOut:         amount.FormatUnits(lptOut, lptDecimals),
		USDCIn:         amount.FormatUnits(usdcIn, usdcDecimals),
		WETHGrossIn:    amount.FormatUnits(wethGrossIn, ethDecimals),
		WETHBurn:       amount.FormatUnits(wethBurn, ethDecimals),
		WETHOtherOut:   amount.FormatUnits(wethOtherOut, ethDecimals),
		GasFeeETH:      gasFeeETH(result),
		Status:         status,
	}
}

func (v *FundingVerifier) buildSummary(flows []model.FundingFlow, conversions []model.ConversionEvent) fundingSummary {
	flowTotals := map[string]*big.Rat{
		model.FlowTestingWalletReturn:     new(big.Rat),
		model.FlowSafeExecETHTransfer:     new(big.Rat),
		model.FlowSafeLPTTransfer:         new(big.Rat),
		model.FlowTreasuryETHDisbursement: new(big.Rat),
	}
	for _, flow := range flows {
		if flow.Amount == "" {
			continue
		}
		if value, ok := new(big.Rat).SetString(flow.Amount); ok {
			flowTotals[flow.Kind].Add(flowTotals[flow.Kind], value)
		}
	}

	lptOut := new(big.Rat)
	usdcIn := new(big.Rat)
	wethGrossIn := new(big.Rat)
	wethBurn := new(big.Rat)
	wethOtherOut := new(big.Rat)
	for _, ev := range conversions {
		addRat(lptOut, ev.LPTOut)
		addRat(usdcIn, ev.USDCIn)
		addRat(wethGrossIn, ev.WETHGrossIn)
		addRat(wethBurn, ev.WETHBurn)
		addRat(wethOtherOut, ev.WETHOtherOut)
	}

	return fundingSummary{
		AsOfDate: v.params.AsOfDate,
		RPCURL:   v.params.RPCURL,
		FundingFlows: fundingFlowsSummary{
			RowCount:                len(flows),
			ETHTestingWalletReturns: ratDecimal(flowTotals[model.FlowTestingWalletReturn]),
			ETHSafeExecTransfers:    ratDecimal(flowTotals[model.FlowSafeExecETHTransfer]),
			LPTSafeTransfers:        ratDecimal(flowTotals[model.FlowSafeLPTTransfer]),
			ETHTreasuryDisburse:     ratDecimal(flowTotals[model.FlowTreasuryETHDisbursement]),
		},
		LPTConversions: conversionsSummary{
			RowCount:          len(conversions),
			LPTOutTotal:       ratDecimal(lptOut),
			USDCInTotal:       ratDecimal(usdcIn),
			WETHGrossInTotal:  ratDecimal(wethGrossIn),
			WETHBurnTotal:     ratDecimal(wethBurn),
			WETHOtherOutTotal: ratDecimal(wethOtherOut),
		},
	}
}

func (v *FundingVerifier) writeArtifacts(flows []model.FundingFlow, conversions []model.ConversionEvent, summary fundingSummary) error {
	flowRecords := make([][]string, 0, len(flows))
	for _, f := range flows {
		flowRecords = append(flowRecords, []string{
			f.Chain, f.Kind, f.TxHash, fmt.Sprintf("%d", f.BlockNumber),
			f.FromAddr, f.ToAddr, f.Asset, f.AmountRaw,
			fmt.Sprintf("%d", f.Decimals), f.Amount, f.GasFeeETH,
			f.Status, f.Note,
		})
	}
	err := report.WriteCSV(v.params.OutFlowsCSV,
		[]string{"chain", "kind", "tx_hash", "block_number", "from_addr", "to_addr", "asset", "amount_raw", "decimals", "amount", "gas_fee_eth", "status", "note"},
		flowRecords,
	)
	if err != nil {
		return err
	}

	conversionRecords := make([][]string, 0, len(conversions))
	for _, c := range conversions {
		conversionRecords = append(conversionRecords, []string{
			c.DateUTC, c.TxHash, c.To, c.ConversionType,
			c.LPTOut, c.USDCIn, c.WETHGrossIn, c.WETHBurn, c.WETHOtherOut,
			c.GasFeeETH, c.Status,
		})
	}
	err = report.WriteCSV(v.params.OutConversionsCSV,
		[]string{"date_utc", "tx_hash", "to", "conversion_type", "lpt_out", "usdc_in", "weth_gross_in", "weth_burn", "weth_other_out", "gas_fee_eth", "status"},
		conversionRecords,
	)
	if err != nil {
		return err
	}

	return report.WriteJSON(v.params.OutSummaryJSON, summary)
}

// gasFeeETH is gasUsed * effectiveGasPrice formatted as an ETH amount.
func gasFeeETH(result fetch.TxWithReceipt) string {
	if result.Receipt.EffectiveGasPrice == nil {
		return ""
	}
	fee := new(big.Int).Mul(
		new(big.Int).SetUint64(result.Receipt.GasUsed),
		result.Receipt.EffectiveGasPrice,
	)
	return amount.FormatUnits(fee, ethDecimals)
}

func lowerTo(to *common.Address) string {
	if to == nil {
		return ""
	}
	return strings.ToLower(to.Hex())
}

func addRat(acc *big.Rat, text string) {
	if text == "" {
		return
	}
	if value, ok := new(big.Rat).SetString(text); ok {
		acc.Add(acc, value)
	}
}

// ratDecimal renders a rational total as a minimal decimal string.
// Sums of formatted token amounts always terminate in base ten.
func ratDecimal(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	text := strings.TrimRight(r.FloatString(36), "0")
	return strings.TrimSuffix(text, ".")
}

// fetchResultOrNil wraps a fetch failure in a terminal result; input
// file errors produce no result at all.
func fetchResultOrNil(err error) *Result {
	var fe *fetch.FetchError
	if errors.As(err, &fe) {
		return &Result{Status: StatusFetchError}
	}
	return nil
}
