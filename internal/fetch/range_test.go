package fetch

import (
	"reflect"
	"testing"
)

func TestSplitRange(t *testing.T) {
	got, err := SplitRange(100, 105, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{
		{From: 100, To: 101},
		{From: 102, To: 103},
		{From: 104, To: 105},
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeSingle(t *testing.T) {
	got, err := SplitRange(5, 5, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []BlockRange{{From: 5, To: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("ranges mismatch: %+v != %+v", got, want)
	}
}

func TestSplitRangeCoversEveryBlockOnce(t *testing.T) {
	ranges, err := SplitRange(1000, 1777, 250)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	covered := make(map[uint64]int)
	var last uint64
	for i, r := range ranges {
		if r.To < r.From {
			t.Fatalf("inverted range %+v", r)
		}
		if i > 0 && r.From != last+1 {
			t.Fatalf("gap or overlap at %+v", r)
		}
		for b := r.From; b <= r.To; b++ {
			covered[b]++
		}
		last = r.To
	}

	for b := uint64(1000); b <= 1777; b++ {
		if covered[b] != 1 {
			t.Fatalf("block %d covered %d times", b, covered[b])
		}
	}
}

func TestSplitRangeInvalid(t *testing.T) {
	if _, err := SplitRange(10, 9, 1); err == nil {
		t.Fatalf("expected error for invalid range")
	}
	if _, err := SplitRange(1, 10, 0); err == nil {
		t.Fatalf("expected error for zero chunk size")
	}
}
