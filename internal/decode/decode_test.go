package decode

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	broker    = common.HexToAddress("0xa8bb618b1520e284046f3dfc448851a1ff26e41b")
	sender    = common.HexToAddress("0x8a8053c21696f27ed305a03bd1efc5d068d91d0e")
	recipient = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func ticketLog(amount *big.Int) types.Log {
	return types.Log{
		Address: broker,
		Topics: []common.Hash{
			WinningTicketRedeemedSig,
			TopicAddress(sender),
			TopicAddress(recipient),
		},
		Data:        common.LeftPadBytes(amount.Bytes(), 32),
		BlockNumber: 337_000_123,
		TxHash:      common.HexToHash("0xdead"),
		Index:       4,
	}
}

func TestWinningTicketDecode(t *testing.T) {
	amount := big.NewInt(12_000_000_000_000_000) // 0.012 ETH
	redemption, err := WinningTicket(ticketLog(amount))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if redemption.Sender != sender {
		t.Fatalf("sender mismatch: %s", redemption.Sender.Hex())
	}
	if redemption.Recipient != recipient {
		t.Fatalf("recipient mismatch: %s", redemption.Recipient.Hex())
	}
	if redemption.Amount.Cmp(amount) != 0 {
		t.Fatalf("amount mismatch: %s", redemption.Amount)
	}
}

func TestWinningTicketRejectsShortTopics(t *testing.T) {
	log := ticketLog(big.NewInt(1))
	log.Topics = log.Topics[:2]
	if _, err := WinningTicket(log); err == nil {
		t.Fatalf("expected error for missing topics")
	}
}

func TestWinningTicketRejectsForeignTopic0(t *testing.T) {
	log := ticketLog(big.NewInt(1))
	log.Topics[0] = TransferSig
	if _, err := WinningTicket(log); err == nil {
		t.Fatalf("expected error for foreign topic0")
	}
}

func TestTransferDecode(t *testing.T) {
	token := common.HexToAddress("0xaf88d065e77c8cc2239327c5edb3a432268e5831")
	from := common.HexToAddress("0x4444444444444444444444444444444444444444")
	to := common.HexToAddress("0x5555555555555555555555555555555555555555")
	value := big.NewInt(1_250_000) // 1.25 USDC

	leg, err := Transfer(types.Log{
		Address: token,
		Topics:  []common.Hash{TransferSig, TopicAddress(from), TopicAddress(to)},
		Data:    common.LeftPadBytes(value.Bytes(), 32),
	})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if leg.Token != token || leg.From != from || leg.To != to {
		t.Fatalf("address mismatch: %+v", leg)
	}
	if leg.Value.Cmp(value) != 0 {
		t.Fatalf("value mismatch: %s", leg.Value)
	}
}

func TestReceiptTicketRedemptionsFiltersByContract(t *testing.T) {
	good := ticketLog(big.NewInt(100))
	foreign := ticketLog(big.NewInt(999))
	foreign.Address = common.HexToAddress("0x6666666666666666666666666666666666666666")

	receipt := &types.Receipt{Logs: []*types.Log{&good, &foreign}}
	redemptions, err := ReceiptTicketRedemptions(receipt, broker)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(redemptions) != 1 {
		t.Fatalf("expected 1 redemption, got %d", len(redemptions))
	}
	if redemptions[0].Amount.Int64() != 100 {
		t.Fatalf("amount mismatch: %s", redemptions[0].Amount)
	}
}

func TestSafeExecTransactionDecode(t *testing.T) {
	inner := common.HexToAddress("0x8a8053c21696f27ed305a03bd1efc5d068d91d0e")
	value := new(big.Int)
	value.SetString("2500000000000000000", 10) // 2.5 ETH

	input := make([]byte, 0, 4+32+32+64)
	input = append(input, 0x6a, 0x76, 0x12, 0x02) // execTransaction selector
	input = append(input, common.LeftPadBytes(inner.Bytes(), 32)...)
	input = append(input, common.LeftPadBytes(value.Bytes(), 32)...)
	input = append(input, bytes.Repeat([]byte{0}, 64)...) // trailing params, ignored

	call, err := SafeExecTransaction(input)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if call.To != inner {
		t.Fatalf("to mismatch: %s", call.To.Hex())
	}
	if call.Value.Cmp(value) != 0 {
		t.Fatalf("value mismatch: %s", call.Value)
	}
}

func TestSafeExecTransactionRejectsShortInput(t *testing.T) {
	if _, err := SafeExecTransaction(make([]byte, 40)); err == nil {
		t.Fatalf("expected error for short calldata")
	}
}
