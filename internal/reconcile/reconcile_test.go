package reconcile

import (
	"testing"
)

func TestCompareTotalsMatched(t *testing.T) {
	expected := map[string]string{"phase1_2_eth_wei": "1000000000000000000"}
	computed := map[string]string{"phase1_2_eth_wei": "1000000000000000000"}

	summaries, err := CompareTotals([]string{"phase1_2_eth_wei"}, expected, computed, "2026-02-07")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	if !summaries[0].Matched {
		t.Fatalf("expected match: %+v", summaries[0])
	}
	if summaries[0].Delta != "" {
		t.Fatalf("matched summary should carry no delta: %+v", summaries[0])
	}
	if Mismatched(summaries) {
		t.Fatalf("Mismatched should be false")
	}
}

func TestCompareTotalsMismatchedWithDelta(t *testing.T) {
	expected := map[string]string{"phase1_2_eth_wei": "1000000000000000000"}
	computed := map[string]string{"phase1_2_eth_wei": "999999999999999999"}

	summaries, err := CompareTotals([]string{"phase1_2_eth_wei"}, expected, computed, "2026-02-07")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if summaries[0].Matched {
		t.Fatalf("expected mismatch: %+v", summaries[0])
	}
	if summaries[0].Delta != "1" {
		t.Fatalf("delta mismatch: %q", summaries[0].Delta)
	}
	if !Mismatched(summaries) {
		t.Fatalf("Mismatched should be true")
	}
}

func TestCompareTotalsDecimalStrings(t *testing.T) {
	expected := map[string]string{"total_eth": "12.5"}
	computed := map[string]string{"total_eth": "12.500"}

	summaries, err := CompareTotals([]string{"total_eth"}, expected, computed, "2026-02-07")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !summaries[0].Matched {
		t.Fatalf("numerically equal decimals must match: %+v", summaries[0])
	}
}

func TestCompareTotalsFractionalDelta(t *testing.T) {
	expected := map[string]string{"total_eth": "12.512"}
	computed := map[string]string{"total_eth": "12.5"}

	summaries, err := CompareTotals([]string{"total_eth"}, expected, computed, "2026-02-07")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if summaries[0].Delta != "0.012" {
		t.Fatalf("delta mismatch: %q", summaries[0].Delta)
	}

	// Overshooting computed totals carry a negative delta.
	summaries, err = CompareTotals([]string{"total_eth"}, computed, expected, "2026-02-07")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if summaries[0].Delta != "-0.012" {
		t.Fatalf("delta mismatch: %q", summaries[0].Delta)
	}
}

func TestCompareTotalsSkipsVerdictForUncommittedKey(t *testing.T) {
	computed := map[string]string{"new_category": "42"}

	summaries, err := CompareTotals([]string{"new_category"}, map[string]string{}, computed, "2026-02-07")
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if !summaries[0].Matched || summaries[0].ExpectedTotal != "" {
		t.Fatalf("uncommitted key should pass without expected value: %+v", summaries[0])
	}
}

func TestCompareTotalsMissingComputedKey(t *testing.T) {
	if _, err := CompareTotals([]string{"gone"}, map[string]string{}, map[string]string{}, ""); err == nil {
		t.Fatalf("expected error for missing computed key")
	}
}
