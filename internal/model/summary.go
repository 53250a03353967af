package model

// ReconciliationSummary records one category comparison. It is derived
// output, recomputed each run, never persisted as source of truth.
type ReconciliationSummary struct {
	Category      string `json:"category"`
	ComputedTotal string `json:"computed_total"`
	ExpectedTotal string `json:"expected_total,omitempty"`
	Matched       bool   `json:"matched"`
	Delta         string `json:"delta,omitempty"`
	AsOfDate      string `json:"as_of_date"`
}
