package models

import "testing"

func TestPaymentStateTransitions(t *testing.T) {
	cases := []struct {
		from, to PaymentState
		want     bool
	}{
		{PaymentStateNone, PaymentStateCaptured, true},
		{PaymentStateNone, PaymentStateCanceled, true},
		{"", PaymentStateCaptured, true},
		{PaymentStateCaptured, PaymentStateRefunded, true},
		{PaymentStateCaptured, PaymentStateCanceled, false},
		{PaymentStateCanceled, PaymentStateCaptured, false},
		{PaymentStateNone, PaymentStateRefunded, false},
		{PaymentStateRefunded, PaymentStateNone, false},
		{PaymentStateCaptured, PaymentStateNone, false},
	}

	for _, tc := range cases {
		if got := CanTransition(tc.from, tc.to); got != tc.want {
			t.Fatalf("%q -> %q: expected %v, got %v", tc.from, tc.to, tc.want, got)
		}
	}
}

func TestRefundedCountsAsCaptured(t *testing.T) {
	if !PaymentStateRefunded.IsCaptured() || PaymentStateCanceled.IsCaptured() {
		t.Fatalf("unexpected captured semantics")
	}
}
