package model

// PayoutSource identifies how a payout reached its recipient.
type PayoutSource string

const (
	// SourceTicketRedeemed is a TicketBroker WinningTicketRedeemed log.
	SourceTicketRedeemed PayoutSource = "ticket_redeemed"
	// SourceDirectTransfer is a native ETH transfer with no event log.
	SourceDirectTransfer PayoutSource = "direct_transfer"
)

// PayoutEvent is a single verified payout. The recipient is resolved
// on-chain during verification but never serialized; committed
// artifacts must not carry partner-identifying addresses.
type PayoutEvent struct {
	Source      PayoutSource `json:"source"`
	Phase       string       `json:"phase"`
	TxHash      string       `json:"tx_hash"`
	BlockNumber uint64       `json:"block_number"`
	Sender      string       `json:"sender"`
	AmountWei   string       `json:"amount_wei"`
	Timestamp   uint64       `json:"timestamp,omitempty"`
}
