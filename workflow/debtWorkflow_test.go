package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/yoeldevsoft25/LA-CAJA-sub003/models"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestDebtStatusFor(t *testing.T) {
	cases := []struct {
		name      string
		amountUsd string
		amountBs  string
		paidUsd   string
		paidBs    string
		want      models.DebtStatus
	}{
		{"nothing paid", "100", "0", "0", "0", models.DebtStatusOpen},
		{"partial usd payment", "100", "0", "40", "0", models.DebtStatusPartial},
		{"full usd payment", "100", "0", "100", "0", models.DebtStatusPaid},
		{"overpayment stays paid", "100", "0", "120", "0", models.DebtStatusPaid},
		{"ves-only payment counts as partial on usd debt", "100", "3600", "0", "500", models.DebtStatusPartial},
		{"pure ves debt unpaid", "0", "3600", "0", "0", models.DebtStatusOpen},
		{"pure ves debt partial", "0", "3600", "0", "1800", models.DebtStatusPartial},
		{"pure ves debt paid", "0", "3600", "0", "3600", models.DebtStatusPaid},
		{"zero amount debt is settled", "0", "0", "0", "0", models.DebtStatusPaid},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := debtStatusFor(d(tc.amountUsd), d(tc.amountBs), d(tc.paidUsd), d(tc.paidBs))
			if got != tc.want {
				t.Fatalf("expected %s, got %s", tc.want, got)
			}
		})
	}
}

// Status must be a pure function of the payment sums: computing it from the
// same payments in any order, any number of times, yields the same answer.
func TestDebtStatusFor_ReplayStable(t *testing.T) {
	amountUsd := d("100")
	payments := []string{"40", "25", "35"}

	sumForward := decimal.Zero
	for _, p := range payments {
		sumForward = sumForward.Add(d(p))
	}
	sumBackward := decimal.Zero
	for i := len(payments) - 1; i >= 0; i-- {
		sumBackward = sumBackward.Add(d(payments[i]))
	}

	forward := debtStatusFor(amountUsd, decimal.Zero, sumForward, decimal.Zero)
	backward := debtStatusFor(amountUsd, decimal.Zero, sumBackward, decimal.Zero)
	if forward != backward {
		t.Fatalf("order-dependent status: forward=%s backward=%s", forward, backward)
	}
	if forward != models.DebtStatusPaid {
		t.Fatalf("expected paid after full payment set, got %s", forward)
	}

	// A duplicated recompute from the same set changes nothing.
	again := debtStatusFor(amountUsd, decimal.Zero, sumForward, decimal.Zero)
	if again != forward {
		t.Fatalf("recompute diverged: %s then %s", forward, again)
	}
}

func TestDebtStatusFor_PartialThenFull(t *testing.T) {
	amountUsd := d("100")

	after40 := debtStatusFor(amountUsd, decimal.Zero, d("40"), decimal.Zero)
	if after40 != models.DebtStatusPartial {
		t.Fatalf("after $40 of $100: expected partial, got %s", after40)
	}

	after100 := debtStatusFor(amountUsd, decimal.Zero, d("100"), decimal.Zero)
	if after100 != models.DebtStatusPaid {
		t.Fatalf("after $100 of $100: expected paid, got %s", after100)
	}
}
