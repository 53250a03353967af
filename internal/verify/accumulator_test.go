package verify

import (
	"math/big"
	"math/rand"
	"testing"

	"github.com/its-DeFine/embody-financial-audit-pack/internal/model"
)

func TestAccumulatorTotals(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("a", big.NewInt(1))
	acc.Add("a", big.NewInt(2))
	acc.Add("b", big.NewInt(10))
	acc.Add("c", nil)

	if got := acc.Total("a"); got.Cmp(big.NewInt(3)) != 0 {
		t.Fatalf("bucket a = %s, want 3", got)
	}
	if got := acc.Count("a"); got != 2 {
		t.Fatalf("bucket a count = %d, want 2", got)
	}
	if got := acc.Total("missing"); got.Sign() != 0 {
		t.Fatalf("missing bucket = %s, want 0", got)
	}
	if got := acc.Count("c"); got != 0 {
		t.Fatalf("nil amount counted: %d", got)
	}

	buckets := acc.Buckets()
	if len(buckets) != 2 || buckets[0] != "a" || buckets[1] != "b" {
		t.Fatalf("buckets = %v", buckets)
	}
}

func TestAccumulatorTotalIsCopy(t *testing.T) {
	acc := NewAccumulator()
	acc.Add("a", big.NewInt(5))

	acc.Total("a").SetInt64(999)
	if got := acc.Total("a"); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("internal total mutated: %s", got)
	}
}

func TestAggregatePayoutsOrderIndependent(t *testing.T) {
	events := []model.PayoutEvent{
		{Phase: bucketPhase12, AmountWei: "1000000000000000000"},
		{Phase: bucketPhase12, AmountWei: "250000000000000000"},
		{Phase: bucketPhase3, AmountWei: "42"},
		{Phase: bucketManual, AmountWei: "7"},
		{Phase: bucketPhase12, AmountWei: "not-a-number"},
	}

	want := AggregatePayouts(events)

	rng := rand.New(rand.NewSource(1))
	for trial := 0; trial < 10; trial++ {
		shuffled := append([]model.PayoutEvent(nil), events...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		got := AggregatePayouts(shuffled)
		for _, bucket := range want.Buckets() {
			if got.Total(bucket).Cmp(want.Total(bucket)) != 0 {
				t.Fatalf("trial %d bucket %s = %s, want %s", trial, bucket, got.Total(bucket), want.Total(bucket))
			}
			if got.Count(bucket) != want.Count(bucket) {
				t.Fatalf("trial %d bucket %s count = %d, want %d", trial, bucket, got.Count(bucket), want.Count(bucket))
			}
		}
	}

	if got := want.Total(bucketPhase12); got.Cmp(big.NewInt(0).SetUint64(1250000000000000000)) != 0 {
		t.Fatalf("phase1+2 total = %s", got)
	}
	if got := want.Count(bucketPhase12); got != 2 {
		t.Fatalf("unparseable amount counted: %d", got)
	}
}
