// Package verify implements the three batch verifiers: payout totals,
// legacy funding and conversions, and the USDC treasury. Each run is a
// single pass: FETCHING, AGGREGATING, COMPARING, then a terminal
// MATCHED, MISMATCHED, or FETCH_ERROR. There is no retry loop inside a
// run; the operator re-runs the whole verifier on failure.
package verify

import "github.com/its-DeFine/embody-financial-audit-pack/internal/model"

// Status is the verifier run state.
type Status string

const (
	StatusFetching    Status = "FETCHING"
	StatusAggregating Status = "AGGREGATING"
	StatusComparing   Status = "COMPARING"
	StatusMatched     Status = "MATCHED"
	StatusMismatched  Status = "MISMATCHED"
	StatusFetchError  Status = "FETCH_ERROR"
)

// Result is the terminal outcome of one verifier invocation.
type Result struct {
	Status    Status
	Summaries []model.ReconciliationSummary
}
