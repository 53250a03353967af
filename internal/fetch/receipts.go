package fetch

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/chain"
)

// TxWithReceipt pairs a transaction with its successful receipt and
// recovered sender.
type TxWithReceipt struct {
	Tx      *types.Transaction
	Receipt *types.Receipt
	From    common.Address
}

// ReceiptFetcher resolves explicit transaction-hash lists. A missing
// transaction or a reverted receipt is a hard error: a hash that
// cannot be verified must never contribute zero silently.
type ReceiptFetcher struct {
	retry  RetryPolicy
	chain  *chain.Client
	logger *zap.Logger
}

// NewReceiptFetcher builds a ReceiptFetcher.
func NewReceiptFetcher(retry RetryPolicy, chainClient *chain.Client, logger *zap.Logger) *ReceiptFetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReceiptFetcher{retry: retry, chain: chainClient, logger: logger}
}

// Verified fetches the transaction and receipt for hash and requires a
// success status.
func (f *ReceiptFetcher) Verified(ctx context.Context, hash common.Hash) (TxWithReceipt, error) {
	result, err := f.Fetch(ctx, hash)
	if err != nil {
		f.logger.Warn("tx fetch failed", zap.Error(err), zap.String("tx_hash", hash.Hex()))
		return TxWithReceipt{}, err
	}

	if result.Receipt.Status != types.ReceiptStatusSuccessful {
		return TxWithReceipt{}, &FetchError{
			TxHash: hash.Hex(),
			Err:    fmt.Errorf("transaction reverted (status=%d)", result.Receipt.Status),
		}
	}

	return result, nil
}

// Fetch resolves the transaction and receipt without gating on the
// receipt status. Used where a reverted transaction is itself a
// reportable fact rather than a fetch failure.
func (f *ReceiptFetcher) Fetch(ctx context.Context, hash common.Hash) (TxWithReceipt, error) {
	var result TxWithReceipt

	err := withRetry(ctx, f.retry, func(ctx context.Context) error {
		tx, pending, err := f.chain.TransactionByHash(ctx, hash)
		if err != nil {
			return err
		}
		if pending {
			return fmt.Errorf("transaction is pending")
		}
		result.Tx = tx
		return nil
	})
	if err != nil {
		return TxWithReceipt{}, &FetchError{TxHash: hash.Hex(), Err: err}
	}

	err = withRetry(ctx, f.retry, func(ctx context.Context) error {
		receipt, err := f.chain.TransactionReceipt(ctx, hash)
		if err != nil {
			return err
		}
		result.Receipt = receipt
		return nil
	})
	if err != nil {
		return TxWithReceipt{}, &FetchError{TxHash: hash.Hex(), Err: err}
	}

	from, err := f.chain.TransactionSender(ctx, result.Tx)
	if err != nil {
		return TxWithReceipt{}, &FetchError{TxHash: hash.Hex(), Err: fmt.Errorf("recover sender: %w", err)}
	}
	result.From = from

	return result, nil
}

// VerifiedAll resolves every hash in order, failing fast on the first
// unverifiable transaction.
func (f *ReceiptFetcher) VerifiedAll(ctx context.Context, hashes []common.Hash) ([]TxWithReceipt, error) {
	out := make([]TxWithReceipt, 0, len(hashes))
	for i, hash := range hashes {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		result, err := f.Verified(ctx, hash)
		if err != nil {
			return nil, err
		}
		out = append(out, result)

		if (i+1)%300 == 0 || i+1 == len(hashes) {
			f.logger.Info("verified transactions", zap.Int("done", i+1), zap.Int("total", len(hashes)))
		}
	}
	return out, nil
}
