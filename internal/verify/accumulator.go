package verify

import (
	"math/big"
	"sort"
)

// Accumulator sums smallest-unit amounts into named category buckets.
// Integer addition is commutative, so bucket totals are independent of
// input order.
type Accumulator struct {
	totals map[string]*big.Int
	counts map[string]int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{
		totals: make(map[string]*big.Int),
		counts: make(map[string]int),
	}
}

// Add accumulates amount into bucket.
func (a *Accumulator) Add(bucket string, amount *big.Int) {
	if amount == nil {
		return
	}
	total, ok := a.totals[bucket]
	if !ok {
		total = new(big.Int)
		a.totals[bucket] = total
	}
	total.Add(total, amount)
	a.counts[bucket]++
}

// Total returns the bucket sum, zero if the bucket is empty.
func (a *Accumulator) Total(bucket string) *big.Int {
	if total, ok := a.totals[bucket]; ok {
		return new(big.Int).Set(total)
	}
	return new(big.Int)
}

// Count returns the number of entries added to bucket.
func (a *Accumulator) Count(bucket string) int {
	return a.counts[bucket]
}

// Buckets returns the bucket names in sorted order.
func (a *Accumulator) Buckets() []string {
	names := make([]string, 0, len(a.totals))
	for name := range a.totals {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
