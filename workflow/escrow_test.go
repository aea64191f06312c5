package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestSplitEscrowConsumption(t *testing.T) {
	cases := []struct {
		name          string
		granted       string
		qty           string
		wantEscrow    string
		wantWarehouse string
	}{
		{"quota covers sale", "10", "6", "6", "0"},
		{"quota exhausted exactly", "6", "6", "6", "0"},
		{"quota partially covers", "4", "10", "4", "6"},
		{"no quota", "0", "10", "0", "10"},
		{"negative quota treated as zero", "-3", "5", "0", "5"},
		{"fractional quantities", "2.5", "4", "2.5", "1.5"},
		{"zero qty", "10", "0", "0", "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			granted := decimal.RequireFromString(tc.granted)
			qty := decimal.RequireFromString(tc.qty)

			fromEscrow, fromWarehouse := splitEscrowConsumption(granted, qty)

			if fromEscrow.String() != decimal.RequireFromString(tc.wantEscrow).String() {
				t.Fatalf("fromEscrow: expected %s, got %s", tc.wantEscrow, fromEscrow.String())
			}
			if fromWarehouse.String() != decimal.RequireFromString(tc.wantWarehouse).String() {
				t.Fatalf("fromWarehouse: expected %s, got %s", tc.wantWarehouse, fromWarehouse.String())
			}
			if !fromEscrow.Add(fromWarehouse).Equal(qty) {
				t.Fatalf("parts do not sum to qty: %s + %s != %s", fromEscrow, fromWarehouse, qty)
			}
		})
	}
}

func TestSplitEscrowConsumption_NeverExceedsGrant(t *testing.T) {
	granted := decimal.RequireFromString("3")
	for _, q := range []string{"1", "3", "5", "100"} {
		qty := decimal.RequireFromString(q)
		fromEscrow, _ := splitEscrowConsumption(granted, qty)
		if fromEscrow.GreaterThan(granted) {
			t.Fatalf("qty=%s: escrow consumption %s exceeds grant %s", q, fromEscrow, granted)
		}
	}
}
