package deposit

import (
	"errors"
	"testing"
)

func TestComputeApplyToOrder(t *testing.T) {
	s := NewSession("O9", "C1", []DepositLine{crateLine("O1", "I1", "0.25", 4, day1)})
	_ = s.Select(LineKey{OrderID: "O1", ItemID: "I1"}, 4)

	res, err := Compute(s, testCatalog(), decPtr("10.00"))
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !res.Credit.Equal(dec("1.00")) || !res.NetCredit.Equal(dec("1.00")) {
		t.Fatalf("expected credit=1.00 net=1.00, got credit=%s net=%s", res.Credit, res.NetCredit)
	}
	if res.FinalAmount == nil || !res.FinalAmount.Equal(dec("9.00")) {
		t.Fatalf("expected final_amount=9.00, got %v", res.FinalAmount)
	}
	if !res.Payable().Equal(dec("9.00")) {
		t.Fatalf("expected payable 9.00, got %s", res.Payable())
	}
}

func TestComputeDeductionFloorsNetCredit(t *testing.T) {
	s := NewSession("O9", "C1", []DepositLine{crateLine("O1", "I1", "0.25", 4, day1)})
	_ = s.Select(LineKey{OrderID: "O1", ItemID: "I1"}, 4)
	s.SetMissing("crate", 2)

	res, err := Compute(s, testCatalog(), decPtr("10.00"))
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !res.Deduction.Equal(dec("1.00")) {
		t.Fatalf("expected deduction 1.00, got %s", res.Deduction)
	}
	if !res.NetCredit.IsZero() {
		t.Fatalf("expected net_credit 0.00, got %s", res.NetCredit)
	}

	s.SetMissing("crate", 5)
	res, _ = Compute(s, testCatalog(), decPtr("10.00"))
	if !res.NetCredit.IsZero() {
		t.Fatalf("expected net_credit floored at 0, got %s", res.NetCredit)
	}
	if !res.FinalAmount.Equal(dec("10.00")) {
		t.Fatalf("expected order total untouched, got %s", res.FinalAmount)
	}
}

func TestComputeFinalAmountNeverNegative(t *testing.T) {
	s := NewSession("O9", "C1", []DepositLine{crateLine("O1", "I1", "3.10", 2, day1)})
	_ = s.Select(LineKey{OrderID: "O1", ItemID: "I1"}, 2)

	res, err := Compute(s, testCatalog(), decPtr("5.00"))
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !res.FinalAmount.IsZero() {
		t.Fatalf("expected final_amount 0, got %s", res.FinalAmount)
	}
}

func TestComputeExcludesPendingCorrections(t *testing.T) {
	refunded := crateLine("O1", "I1", "0.25", 4, day1)
	refunded.AlreadyRefunded = true
	refunded.RefundedQuantity = 4

	s := NewSession("O9", "C1", []DepositLine{refunded})
	_ = s.Select(refunded.Key(), 2)

	res, err := Compute(s, testCatalog(), decPtr("10.00"))
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !res.Credit.IsZero() {
		t.Fatalf("expected pending correction to earn no credit, got %s", res.Credit)
	}

	if _, err := s.ConfirmCorrection(refunded.Key()); err != nil {
		t.Fatalf("confirm failed: %v", err)
	}
	res, _ = Compute(s, testCatalog(), decPtr("10.00"))
	if !res.Credit.Equal(dec("0.50")) {
		t.Fatalf("expected confirmed correction credit 0.50, got %s", res.Credit)
	}
}

func TestComputeOrderTotalRequired(t *testing.T) {
	s := NewSession("O9", "C1", []DepositLine{crateLine("O1", "I1", "0.25", 4, day1)})
	_ = s.Select(LineKey{OrderID: "O1", ItemID: "I1"}, 1)

	_, err := Compute(s, testCatalog(), nil)
	var verr *ValidationError
	if !errors.As(err, &verr) || verr.Reason != ReasonOrderTotalRequired {
		t.Fatalf("expected order_total_required, got %v", err)
	}

	_ = s.SetMode(ModePayoutOnly)
	res, err := Compute(s, testCatalog(), nil)
	if err != nil {
		t.Fatalf("payout_only compute failed: %v", err)
	}
	if res.FinalAmount != nil || res.OrderTotal != nil {
		t.Fatal("expected payout_only to carry no order figures")
	}
	if !res.Payable().Equal(dec("0.25")) {
		t.Fatalf("expected payable 0.25, got %s", res.Payable())
	}
}

func TestComputeModeSwitchKeepsSelections(t *testing.T) {
	s := NewSession("O9", "C1", []DepositLine{crateLine("O1", "I1", "0.25", 4, day1)})
	_ = s.Select(LineKey{OrderID: "O1", ItemID: "I1"}, 4)
	s.SetMissing("bottle", 3)

	apply, _ := Compute(s, testCatalog(), decPtr("10.00"))
	_ = s.SetMode(ModePayoutOnly)
	payout, _ := Compute(s, testCatalog(), nil)

	if !apply.NetCredit.Equal(payout.NetCredit) {
		t.Fatalf("expected the same net credit in both modes, got %s and %s", apply.NetCredit, payout.NetCredit)
	}
	if !payout.NetCredit.Equal(dec("0.76")) {
		t.Fatalf("expected net 0.76, got %s", payout.NetCredit)
	}
}

func TestComputeRoundsToCents(t *testing.T) {
	s := NewSession("O9", "C1", []DepositLine{
		crateLine("O1", "I1", "0.155", 3, day1),
		crateLine("O2", "I1", "0.08", 7, day2),
	})
	_ = s.Select(LineKey{OrderID: "O1", ItemID: "I1"}, 3)
	_ = s.Select(LineKey{OrderID: "O2", ItemID: "I1"}, 7)

	res, err := Compute(s, testCatalog(), decPtr("20.005"))
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	// 0.465 rounds half away from zero to 0.47, plus 0.56
	if !res.Credit.Equal(dec("1.03")) {
		t.Fatalf("expected credit 1.03, got %s", res.Credit)
	}
	if res.Credit.Exponent() < -2 || res.FinalAmount.Exponent() < -2 {
		t.Fatalf("expected amounts at cent precision, got %s and %s", res.Credit, res.FinalAmount)
	}
}

func TestComputeDeductionIgnoresUnknownTypes(t *testing.T) {
	got := ComputeDeduction(map[string]int{"crate": 1, "pallet": 4}, testCatalog())
	if !got.Equal(dec("0.50")) {
		t.Fatalf("expected 0.50, got %s", got)
	}
}
