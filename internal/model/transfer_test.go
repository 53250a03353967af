package model

import "testing"

func TestDeriveDirection(t *testing.T) {
	treasury := "0x04e334ff13c71488094e24f4fab53a8fafe2f9bb"
	other := "0x1111111111111111111111111111111111111111"
	third := "0x2222222222222222222222222222222222222222"

	if got := DeriveDirection(other, treasury, treasury); got != DirectionIn {
		t.Fatalf("expected in, got %s", got)
	}
	if got := DeriveDirection(treasury, other, treasury); got != DirectionOut {
		t.Fatalf("expected out, got %s", got)
	}
	if got := DeriveDirection(treasury, treasury, treasury); got != DirectionSelf {
		t.Fatalf("expected self, got %s", got)
	}
	if got := DeriveDirection(other, third, treasury); got != DirectionOther {
		t.Fatalf("expected other, got %s", got)
	}
}
