package model

// Conversion types recognized from treasury swap receipts.
const (
	ConversionLPTToUSDC    = "LPT_to_USDC"
	ConversionLPTToETHLike = "LPT_to_ETH_like"
	ConversionUnknown      = "unknown"
)

// ConversionEvent captures the token legs of a single treasury swap
// transaction. All legs share TxHash; amounts are normalized decimal
// strings (LPT/WETH 18 decimals, USDC 6).
type ConversionEvent struct {
	DateUTC        string `json:"date_utc"`
	TxHash         string `json:"tx_hash"`
	To             string `json:"to"`
	ConversionType string `json:"conversion_type"`
	LPTOut         string `json:"lpt_out"`
	USDCIn         string `json:"usdc_in"`
	WETHGrossIn    string `json:"weth_gross_in"`
	WETHBurn       string `json:"weth_burn"`
	WETHOtherOut   string `json:"weth_other_out"`
	GasFeeETH      string `json:"gas_fee_eth"`
	Status         string `json:"status"`
}
