package model

// Funding flow kinds.
const (
	FlowTestingWalletReturn     = "testing_wallet_return"
	FlowSafeExecETHTransfer     = "safe_exec_eth_transfer"
	FlowSafeLPTTransfer         = "safe_lpt_transfer"
	FlowTreasuryETHDisbursement = "treasury_eth_disbursement"
)

// FundingFlow is one verified legacy funding transaction.
type FundingFlow struct {
	Chain       string `json:"chain"`
	Kind        string `json:"kind"`
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	FromAddr    string `json:"from_addr"`
	ToAddr      string `json:"to_addr"`
	Asset       string `json:"asset"`
	AmountRaw   string `json:"amount_raw"`
	Decimals    uint8  `json:"decimals"`
	Amount      string `json:"amount"`
	GasFeeETH   string `json:"gas_fee_eth"`
	Status      string `json:"status"`
	Note        string `json:"note"`
}
