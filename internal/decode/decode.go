// Package decode converts raw chain logs and calldata into the typed
// events the verifiers aggregate. The set of known shapes is closed:
// TicketBroker WinningTicketRedeemed, ERC-20 Transfer, and Safe
// execTransaction calldata. Unknown shapes are reported, never summed.
package decode

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/model"
)

// TicketRedemption is a decoded WinningTicketRedeemed log.
type TicketRedemption struct {
	Sender    common.Address
	Recipient common.Address
	Amount    *big.Int

	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint64
}

// TransferLeg is a decoded ERC-20 Transfer log.
type TransferLeg struct {
	Token common.Address
	From  common.Address
	To    common.Address
	Value *big.Int

	TxHash      common.Hash
	BlockNumber uint64
	LogIndex    uint64
}

// WinningTicket decodes a WinningTicketRedeemed log.
func WinningTicket(log types.Log) (TicketRedemption, error) {
	if len(log.Topics) < 3 {
		return TicketRedemption{}, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != WinningTicketRedeemedSig {
		return TicketRedemption{}, fmt.Errorf("unexpected topic0: %s", log.Topics[0].Hex())
	}

	return TicketRedemption{
		Sender:      AddressFromTopic(log.Topics[1]),
		Recipient:   AddressFromTopic(log.Topics[2]),
		Amount:      new(big.Int).SetBytes(log.Data),
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		LogIndex:    uint64(log.Index),
	}, nil
}

// Transfer decodes an ERC-20 Transfer log.
func Transfer(log types.Log) (TransferLeg, error) {
	if len(log.Topics) < 3 {
		return TransferLeg{}, fmt.Errorf("expected 3 topics, got %d", len(log.Topics))
	}
	if log.Topics[0] != TransferSig {
		return TransferLeg{}, fmt.Errorf("unexpected topic0: %s", log.Topics[0].Hex())
	}

	return TransferLeg{
		Token:       log.Address,
		From:        AddressFromTopic(log.Topics[1]),
		To:          AddressFromTopic(log.Topics[2]),
		Value:       new(big.Int).SetBytes(log.Data),
		TxHash:      log.TxHash,
		BlockNumber: log.BlockNumber,
		LogIndex:    uint64(log.Index),
	}, nil
}

// ReceiptTicketRedemptions extracts WinningTicketRedeemed logs emitted
// by the broker contract from a receipt. Other logs are ignored.
func ReceiptTicketRedemptions(receipt *types.Receipt, broker common.Address) ([]TicketRedemption, error) {
	out := make([]TicketRedemption, 0)
	for _, log := range receipt.Logs {
		if log.Address != broker {
			continue
		}
		if len(log.Topics) == 0 || log.Topics[0] != WinningTicketRedeemedSig {
			continue
		}
		redemption, err := WinningTicket(*log)
		if err != nil {
			return nil, fmt.Errorf("log %d: %w", log.Index, err)
		}
		out = append(out, redemption)
	}
	return out, nil
}

// ReceiptTransfers extracts ERC-20 Transfer logs for token from a receipt.
func ReceiptTransfers(receipt *types.Receipt, token common.Address) []TransferLeg {
	out := make([]TransferLeg, 0)
	for _, log := range receipt.Logs {
		if log.Address != token {
			continue
		}
		if len(log.Topics) < 3 || log.Topics[0] != TransferSig {
			continue
		}
		leg, err := Transfer(*log)
		if err != nil {
			continue
		}
		out = append(out, leg)
	}
	return out
}

// ErrorFromLog builds a DecodeError record for a skipped log.
func ErrorFromLog(log types.Log, err error) model.DecodeError {
	topic0 := ""
	if len(log.Topics) > 0 {
		topic0 = log.Topics[0].Hex()
	}
	return model.DecodeError{
		BlockNumber: log.BlockNumber,
		TxHash:      log.TxHash.Hex(),
		LogIndex:    uint64(log.Index),
		Address:     log.Address.Hex(),
		Topic0:      topic0,
		Error:       err.Error(),
	}
}
