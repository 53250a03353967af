package model

// Direction classifies a treasury transfer relative to the treasury address.
type Direction string

const (
	DirectionIn   Direction = "in"
	DirectionOut  Direction = "out"
	DirectionSelf Direction = "self"
	// DirectionOther should not occur given the log filters, but is kept
	// explicit rather than silently bucketed.
	DirectionOther Direction = "other"
)

// TreasuryTransfer is a decoded ERC-20 Transfer log touching the treasury.
type TreasuryTransfer struct {
	TokenSymbol  string    `json:"token_symbol"`
	TokenAddress string    `json:"token_address"`
	TxHash       string    `json:"tx_hash"`
	BlockNumber  uint64    `json:"block_number"`
	TimestampUTC string    `json:"timestamp_utc"`
	LogIndex     uint64    `json:"log_index"`
	From         string    `json:"from"`
	To           string    `json:"to"`
	Direction    Direction `json:"direction"`
	AmountRaw    string    `json:"amount_raw"`
	Amount       string    `json:"amount"`
}

// DeriveDirection classifies from/to against the treasury address.
// All three addresses must already be lowercased hex.
func DeriveDirection(from, to, treasury string) Direction {
	switch {
	case from == treasury && to == treasury:
		return DirectionSelf
	case from == treasury:
		return DirectionOut
	case to == treasury:
		return DirectionIn
	default:
		return DirectionOther
	}
}
