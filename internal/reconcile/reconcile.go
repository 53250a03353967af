// Package reconcile compares freshly computed totals against committed
// snapshot values. Matching is exact: any non-zero delta is a reported
// mismatch, never averaged or rounded away. The comparison is
// read-only and idempotent.
package reconcile

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/model"
)

// ErrMismatch marks a run whose totals disagree with the snapshot.
// It is not a crash; the exit-code boundary maps it separately from
// fetch failures.
var ErrMismatch = errors.New("reconciliation mismatch")

// CompareTotals checks computed against expected for each key present
// in both maps, in key order. Values are decimal strings; equality is
// exact numeric equality.
func CompareTotals(keys []string, expected, computed map[string]string, asOfDate string) ([]model.ReconciliationSummary, error) {
	summaries := make([]model.ReconciliationSummary, 0, len(keys))

	for _, key := range keys {
		computedValue, ok := computed[key]
		if !ok {
			return nil, fmt.Errorf("computed totals missing key %q", key)
		}

		expectedValue, ok := expected[key]
		if !ok {
			// Nothing committed for this category yet; report the
			// computed value without a verdict on it.
			summaries = append(summaries, model.ReconciliationSummary{
				Category:      key,
				ComputedTotal: computedValue,
				Matched:       true,
				AsOfDate:      asOfDate,
			})
			continue
		}

		matched, delta, err := exactEqual(expectedValue, computedValue)
		if err != nil {
			return nil, fmt.Errorf("compare %q: %w", key, err)
		}

		summary := model.ReconciliationSummary{
			Category:      key,
			ComputedTotal: computedValue,
			ExpectedTotal: expectedValue,
			Matched:       matched,
			AsOfDate:      asOfDate,
		}
		if !matched {
			summary.Delta = delta
		}
		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// Mismatched reports whether any summary failed.
func Mismatched(summaries []model.ReconciliationSummary) bool {
	for _, s := range summaries {
		if !s.Matched {
			return true
		}
	}
	return false
}

// exactEqual compares two decimal strings numerically and returns the
// delta (expected - computed) when they differ.
func exactEqual(expected, computed string) (bool, string, error) {
	e, ok := new(big.Rat).SetString(strings.TrimSpace(expected))
	if !ok {
		return false, "", fmt.Errorf("invalid expected value: %q", expected)
	}
	c, ok := new(big.Rat).SetString(strings.TrimSpace(computed))
	if !ok {
		return false, "", fmt.Errorf("invalid computed value: %q", computed)
	}

	if e.Cmp(c) == 0 {
		return true, "", nil
	}

	delta := new(big.Rat).Sub(e, c)
	return false, ratString(delta), nil
}

// ratString renders a rational as a minimal decimal string. Deltas of
// on-chain integer totals always terminate (denominators are powers
// of ten).
func ratString(r *big.Rat) string {
	if r.IsInt() {
		return r.Num().String()
	}
	text := r.FloatString(36)
	text = strings.TrimRight(text, "0")
	return strings.TrimSuffix(text, ".")
}
