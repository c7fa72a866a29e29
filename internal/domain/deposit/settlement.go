package deposit

import (
	"github.com/shopspring/decimal"
)

// SettlementResult is derived from a session and never persisted on its own.
type SettlementResult struct {
	Mode        SettlementMode   `json:"mode"`
	Credit      decimal.Decimal  `json:"credit"`
	Deduction   decimal.Decimal  `json:"deduction"`
	NetCredit   decimal.Decimal  `json:"net_credit"`
	OrderTotal  *decimal.Decimal `json:"order_total,omitempty"`
	FinalAmount *decimal.Decimal `json:"final_amount,omitempty"`
}

// Payable is the figure the operator settles: the reduced order total in
// apply_to_order mode, the net credit itself in payout_only mode.
func (r SettlementResult) Payable() decimal.Decimal {
	if r.Mode == ModeApplyToOrder && r.FinalAmount != nil {
		return *r.FinalAmount
	}
	return r.NetCredit
}

// Compute turns a session into settlement figures. It has no side effects and is
// meant to run after every session mutation.
//
// orderTotal is required in apply_to_order mode and ignored in payout_only mode.
func Compute(s *Session, catalog Catalog, orderTotal *decimal.Decimal) (SettlementResult, error) {
	if !s.Mode.Valid() {
		return SettlementResult{}, &ValidationError{Reason: ReasonInvalidMode}
	}

	credit := decimal.Zero
	for _, l := range s.eligibleLines() {
		credit = credit.Add(l.Amount)
	}
	credit = credit.Round(2)

	deduction := ComputeDeduction(s.missing, catalog)

	res := SettlementResult{
		Mode:      s.Mode,
		Credit:    credit,
		Deduction: deduction,
		NetCredit: maxZero(credit.Sub(deduction)),
	}

	if s.Mode == ModeApplyToOrder {
		if orderTotal == nil {
			return SettlementResult{}, &ValidationError{Reason: ReasonOrderTotalRequired}
		}
		total := orderTotal.Round(2)
		final := maxZero(total.Sub(res.NetCredit))
		res.OrderTotal = &total
		res.FinalAmount = &final
	}

	return res, nil
}
