package verify

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/decode"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/fetch"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/inputs"
	"github.com/its-DeFine/embody-financial-audit-pack/internal/model"
)

var (
	testTreasury = common.HexToAddress("0x04e334ff13c71488094e24f4fab53a8fafe2f9bb")
	testRouter   = common.HexToAddress("0x2905d7e4d048d29954f81b02171dd313f457a4a4")
	testLPT      = common.HexToAddress("0x289ba1701c2f088cf0faf8b3705246331cb8a839")
	testUSDC     = common.HexToAddress("0xaf88d065e77c8cc2239327c5edb3a432268e5831")
	testWETH     = common.HexToAddress("0x82af49447d8a07e3bd95bd0d56f35241523fbab1")
	testSafe     = common.HexToAddress("0xc34b3753c164fbc3fc066fc1a46b3eee8adb33e6")
	testGateway  = common.HexToAddress("0x8a8053c21696f27ed305a03bd1efc5d068d91d0e")
)

func testFundingVerifier() *FundingVerifier {
	return NewFundingVerifier(FundingParams{
		Gateway:    testGateway,
		Treasury:   testTreasury,
		SafeWallet: testSafe,
		Router:     testRouter,
		LPTToken:   testLPT,
		USDCToken:  testUSDC,
		WETHToken:  testWETH,
	}, nil, zap.NewNop())
}

func transferLog(token, from, to common.Address, value *big.Int) *types.Log {
	return &types.Log{
		Address: token,
		Topics:  []common.Hash{decode.TransferSig, decode.TopicAddress(from), decode.TopicAddress(to)},
		Data:    common.BigToHash(value).Bytes(),
	}
}

func swapResult(logs []*types.Log) fetch.TxWithReceipt {
	return fetch.TxWithReceipt{
		Tx: types.NewTx(&types.LegacyTx{To: &testRouter, Value: new(big.Int)}),
		Receipt: &types.Receipt{
			Status:            types.ReceiptStatusSuccessful,
			BlockNumber:       big.NewInt(337_100_000),
			GasUsed:           100_000,
			EffectiveGasPrice: big.NewInt(10_000_000), // 0.000001 ETH total
			Logs:              logs,
		},
		From: testTreasury,
	}
}

func TestConversionClassificationLPTToUSDC(t *testing.T) {
	v := testFundingVerifier()
	other := common.HexToAddress("0x000000000000000000000000000000000000beef")

	result := swapResult([]*types.Log{
		transferLog(testLPT, testTreasury, testRouter, big.NewInt(5e18)),
		transferLog(testUSDC, other, testTreasury, big.NewInt(30_000_000)),
	})

	event := v.conversionFromReceipt(inputs.DatedTxRow{TxHash: "0xabc", ISOUTC: "2025-08-29T10:00:00Z"}, result)
	if event == nil {
		t.Fatal("expected a conversion event")
	}
	if event.ConversionType != model.ConversionLPTToUSDC {
		t.Fatalf("type = %s", event.ConversionType)
	}
	if event.LPTOut != "5" || event.USDCIn != "30" {
		t.Fatalf("legs = lpt %s / usdc %s", event.LPTOut, event.USDCIn)
	}
	if event.Status != "success" {
		t.Fatalf("status = %s", event.Status)
	}
	if event.GasFeeETH != "0.000001" {
		t.Fatalf("gas fee = %s", event.GasFeeETH)
	}
}

func TestConversionClassificationLPTToETHLike(t *testing.T) {
	v := testFundingVerifier()
	pool := common.HexToAddress("0x0000000000000000000000000000000000000abc")
	other := common.HexToAddress("0x000000000000000000000000000000000000beef")

	result := swapResult([]*types.Log{
		transferLog(testLPT, testTreasury, testRouter, big.NewInt(2e18)),
		transferLog(testWETH, pool, testRouter, big.NewInt(1e18)),
		transferLog(testWETH, testRouter, decode.ZeroAddress, big.NewInt(4e17)),
		transferLog(testWETH, testRouter, other, big.NewInt(6e17)),
	})

	event := v.conversionFromReceipt(inputs.DatedTxRow{TxHash: "0xdef", ISOUTC: "2025-08-29T11:00:00Z"}, result)
	if event == nil {
		t.Fatal("expected a conversion event")
	}
	if event.ConversionType != model.ConversionLPTToETHLike {
		t.Fatalf("type = %s", event.ConversionType)
	}
	if event.WETHGrossIn != "1" || event.WETHBurn != "0.4" || event.WETHOtherOut != "0.6" {
		t.Fatalf("weth legs = %s / %s / %s", event.WETHGrossIn, event.WETHBurn, event.WETHOtherOut)
	}
}

func TestConversionSkipsTxWithoutLegs(t *testing.T) {
	v := testFundingVerifier()

	result := swapResult(nil)
	if event := v.conversionFromReceipt(inputs.DatedTxRow{TxHash: "0x123"}, result); event != nil {
		t.Fatalf("expected nil event, got %+v", event)
	}
}

func TestConversionRevertedStatus(t *testing.T) {
	v := testFundingVerifier()

	result := swapResult([]*types.Log{
		transferLog(testLPT, testTreasury, testRouter, big.NewInt(1e18)),
	})
	result.Receipt.Status = types.ReceiptStatusFailed

	event := v.conversionFromReceipt(inputs.DatedTxRow{TxHash: "0x456"}, result)
	if event == nil {
		t.Fatal("expected a conversion event")
	}
	if event.Status != "failed" {
		t.Fatalf("status = %s", event.Status)
	}
	if event.ConversionType != model.ConversionUnknown {
		t.Fatalf("type = %s", event.ConversionType)
	}
}

func TestBuildSummaryTotals(t *testing.T) {
	v := testFundingVerifier()

	flows := []model.FundingFlow{
		{Kind: model.FlowTestingWalletReturn, Amount: "1.5"},
		{Kind: model.FlowTestingWalletReturn, Amount: "0.5"},
		{Kind: model.FlowSafeExecETHTransfer, Amount: "10"},
		{Kind: model.FlowSafeLPTTransfer, Amount: "250"},
		{Kind: model.FlowTreasuryETHDisbursement, Amount: ""},
	}
	conversions := []model.ConversionEvent{
		{LPTOut: "5", USDCIn: "30.25"},
		{LPTOut: "2", USDCIn: "12.75", WETHBurn: "0.4"},
	}

	summary := v.buildSummary(flows, conversions)

	if summary.FundingFlows.RowCount != 5 {
		t.Fatalf("row count = %d", summary.FundingFlows.RowCount)
	}
	if summary.FundingFlows.ETHTestingWalletReturns != "2" {
		t.Fatalf("testing returns = %s", summary.FundingFlows.ETHTestingWalletReturns)
	}
	if summary.FundingFlows.LPTSafeTransfers != "250" {
		t.Fatalf("lpt transfers = %s", summary.FundingFlows.LPTSafeTransfers)
	}
	if summary.LPTConversions.LPTOutTotal != "7" || summary.LPTConversions.USDCInTotal != "43" {
		t.Fatalf("conversion totals = %s / %s", summary.LPTConversions.LPTOutTotal, summary.LPTConversions.USDCInTotal)
	}
	if summary.LPTConversions.WETHBurnTotal != "0.4" {
		t.Fatalf("weth burn total = %s", summary.LPTConversions.WETHBurnTotal)
	}
}

func TestRecordFlowMismatch(t *testing.T) {
	v := testFundingVerifier()

	flows := make([]model.FundingFlow, 0)
	mismatches := make([]model.ReconciliationSummary, 0)

	v.recordFlow(&flows, &mismatches, model.FundingFlow{
		Kind:   model.FlowTestingWalletReturn,
		TxHash: "0xabc",
		Amount: "1.2",
		Status: "success",
	}, false, "1.5")

	if len(flows) != 1 || flows[0].Status != "mismatch" {
		t.Fatalf("flows = %+v", flows)
	}
	if len(mismatches) != 1 || mismatches[0].Matched {
		t.Fatalf("mismatches = %+v", mismatches)
	}
	if mismatches[0].ExpectedTotal != "1.5" || mismatches[0].ComputedTotal != "1.2" {
		t.Fatalf("mismatch values = %+v", mismatches[0])
	}
}

func TestSafeLPTFlowRowAmount(t *testing.T) {
	v := testFundingVerifier()
	other := common.HexToAddress("0x000000000000000000000000000000000000beef")

	result := swapResult([]*types.Log{
		transferLog(testLPT, testSafe, testGateway, big.NewInt(15e17)),
		transferLog(testLPT, testSafe, testGateway, big.NewInt(1e18)),
		transferLog(testLPT, other, testGateway, big.NewInt(7e17)), // unrelated sender
	})

	flow, ok, err := v.safeLPTFlow(inputs.AmountRow{TxHash: "0xabc", Amount: "2.5"}, result)
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatalf("legs summing to the listed amount should match, flow = %+v", flow)
	}
	if flow.Asset != "LPT" || flow.Amount != "2.5" || flow.Status != "success" {
		t.Fatalf("flow = %+v", flow)
	}
	if flow.FromAddr != "0xc34b3753c164fbc3fc066fc1a46b3eee8adb33e6" || flow.ToAddr != "0x8a8053c21696f27ed305a03bd1efc5d068d91d0e" {
		t.Fatalf("addresses = %s -> %s", flow.FromAddr, flow.ToAddr)
	}
}

func TestSafeLPTFlowDetectsRowMismatch(t *testing.T) {
	v := testFundingVerifier()

	result := swapResult([]*types.Log{
		transferLog(testLPT, testSafe, testGateway, big.NewInt(24e17)),
	})

	// The row lists 2.5 LPT but the receipt only moved 2.4. The row must
	// fail even if another row overshoots by the same amount.
	flow, ok, err := v.safeLPTFlow(inputs.AmountRow{TxHash: "0xdef", Amount: "2.5"}, result)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatalf("short leg sum should not match the listed amount, flow = %+v", flow)
	}
	if flow.Amount != "2.4" {
		t.Fatalf("computed amount = %s", flow.Amount)
	}
}

func TestConversionKeepsBurnOnlyTx(t *testing.T) {
	v := testFundingVerifier()

	// Some swaps only show up as a router WETH burn. They still count
	// toward the conversion record instead of being dropped.
	result := swapResult([]*types.Log{
		transferLog(testWETH, testRouter, decode.ZeroAddress, big.NewInt(4e17)),
	})

	event := v.conversionFromReceipt(inputs.DatedTxRow{TxHash: "0xbeef", ISOUTC: "2025-08-29T12:00:00Z"}, result)
	if event == nil {
		t.Fatal("burn-only tx should produce a conversion event")
	}
	if event.ConversionType != model.ConversionUnknown {
		t.Fatalf("type = %s", event.ConversionType)
	}
	if event.WETHBurn != "0.4" || event.LPTOut != "0" {
		t.Fatalf("legs = burn %s / lpt %s", event.WETHBurn, event.LPTOut)
	}
}
