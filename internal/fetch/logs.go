package fetch

import (
	"context"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/chain"
)

// Config holds chunking and retry settings shared by a run's fetchers.
type Config struct {
	ChunkSize uint64
	Retry     RetryPolicy
}

// Fetcher pulls event logs over a block range in chunks, deduplicates
// by txHash+logIndex, and returns a lossless merge in ascending order.
type Fetcher struct {
	cfg    Config
	chain  *chain.Client
	logger *zap.Logger
}

// NewFetcher builds a Fetcher with its dependencies.
func NewFetcher(cfg Config, chainClient *chain.Client, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, chain: chainClient, logger: logger}
}

// Logs fetches all logs matching addresses and topics in [from, to].
// A failed chunk aborts the whole fetch with a FetchError naming the
// chunk's range.
func (f *Fetcher) Logs(
	ctx context.Context,
	from, to uint64,
	addresses []common.Address,
	topics [][]common.Hash,
) ([]types.Log, error) {
	if f.chain == nil {
		return nil, fmt.Errorf("chain client is nil")
	}
	if f.cfg.ChunkSize == 0 {
		return nil, fmt.Errorf("chunk size must be greater than zero")
	}

	ranges, err := SplitRange(from, to, f.cfg.ChunkSize)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{})
	merged := make([]types.Log, 0)

	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		var logs []types.Log
		err := withRetry(ctx, f.cfg.Retry, func(ctx context.Context) error {
			var err error
			logs, err = f.chain.FilterLogs(ctx, blockRange.From, blockRange.To, addresses, topics)
			if err != nil {
				f.logger.Warn("filter logs failed",
					zap.Error(err),
					zap.Uint64("from", blockRange.From),
					zap.Uint64("to", blockRange.To),
				)
			}
			return err
		})
		if err != nil {
			return nil, &FetchError{From: blockRange.From, To: blockRange.To, Err: err}
		}

		for _, log := range logs {
			id := fmt.Sprintf("%s:%d", log.TxHash.Hex(), log.Index)
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			merged = append(merged, log)
		}

		f.logger.Debug("chunk complete",
			zap.Uint64("from", blockRange.From),
			zap.Uint64("to", blockRange.To),
			zap.Int("logs", len(logs)),
		)
	}

	SortLogs(merged)
	return merged, nil
}

// SortLogs orders logs by (block number, tx index, log index) ascending.
func SortLogs(logs []types.Log) {
	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].BlockNumber != logs[j].BlockNumber {
			return logs[i].BlockNumber < logs[j].BlockNumber
		}
		if logs[i].TxIndex != logs[j].TxIndex {
			return logs[i].TxIndex < logs[j].TxIndex
		}
		return logs[i].Index < logs[j].Index
	})
}
