package deposit

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SettlementMode decides where the net deposit credit goes.
type SettlementMode string

const (
	ModeApplyToOrder SettlementMode = "apply_to_order"
	ModePayoutOnly   SettlementMode = "payout_only"
)

// Valid reports whether m is a known settlement mode.
func (m SettlementMode) Valid() bool {
	return m == ModeApplyToOrder || m == ModePayoutOnly
}

// LineKey identifies a deposit-bearing line item across orders.
// Its text form is "order_id:item_id".
type LineKey struct {
	OrderID string `json:"order_id"`
	ItemID  string `json:"item_id"`
}

func (k LineKey) String() string {
	return k.OrderID + ":" + k.ItemID
}

// MarshalText lets LineKey be used as a JSON object key.
func (k LineKey) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *LineKey) UnmarshalText(b []byte) error {
	parsed, err := ParseLineKey(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseLineKey parses the "order_id:item_id" form. Order ids never contain a colon.
func ParseLineKey(s string) (LineKey, error) {
	orderID, itemID, ok := strings.Cut(s, ":")
	if !ok || orderID == "" || itemID == "" {
		return LineKey{}, fmt.Errorf("invalid line key %q", s)
	}
	return LineKey{OrderID: orderID, ItemID: itemID}, nil
}

func lessKey(a, b LineKey) bool {
	if a.OrderID != b.OrderID {
		return a.OrderID < b.OrderID
	}
	return a.ItemID < b.ItemID
}

// DepositLine is one deposit-bearing line item from a past order.
// Refund fields are derived from the refund ledger and only change through a commit.
type DepositLine struct {
	OrderID          string          `db:"order_id" json:"order_id"`
	ItemID           string          `db:"item_id" json:"item_id"`
	ItemName         string          `db:"item_name" json:"item_name"`
	UnitAmount       decimal.Decimal `db:"unit_amount" json:"unit_amount"`
	OriginalQuantity int             `db:"original_quantity" json:"original_quantity"`
	RefundedQuantity int             `db:"refunded_quantity" json:"refunded_quantity"`
	AlreadyRefunded  bool            `db:"already_refunded" json:"already_refunded"`
	RefundDriver     *string         `db:"refund_driver" json:"refund_driver,omitempty"`
	RefundDate       *time.Time      `db:"refund_date" json:"refund_date,omitempty"`
	OrderedAt        time.Time       `db:"ordered_at" json:"ordered_at"`
}

func (l DepositLine) Key() LineKey {
	return LineKey{OrderID: l.OrderID, ItemID: l.ItemID}
}

// Remaining is the quantity that has never been refunded.
func (l DepositLine) Remaining() int {
	if r := l.OriginalQuantity - l.RefundedQuantity; r > 0 {
		return r
	}
	return 0
}

// PriorRefund describes an earlier settlement of a line. It is what the operator
// has to be shown before a correction is confirmed.
type PriorRefund struct {
	Driver   *string    `json:"refund_driver,omitempty"`
	Date     *time.Time `json:"refund_date,omitempty"`
	Quantity int        `json:"refunded_quantity"`
}

func (l DepositLine) PriorRefund() PriorRefund {
	return PriorRefund{Driver: l.RefundDriver, Date: l.RefundDate, Quantity: l.RefundedQuantity}
}

// DeductionItemType is a catalog entry for a returnable item that can be reported missing.
type DeductionItemType struct {
	TypeID      string          `db:"type_id" json:"type_id"`
	DisplayName string          `db:"display_name" json:"display_name"`
	UnitAmount  decimal.Decimal `db:"unit_amount" json:"unit_amount"`
}

// CommitLine is a single refunded line inside a commit.
type CommitLine struct {
	OrderID    string          `json:"order_id"`
	ItemID     string          `json:"item_id"`
	Quantity   int             `json:"quantity"`
	Amount     decimal.Decimal `json:"amount"`
	Correction bool            `json:"correction"`
}

func (c CommitLine) Key() LineKey {
	return LineKey{OrderID: c.OrderID, ItemID: c.ItemID}
}

// CommitRecord is the append-only ledger entry of a finished reconciliation.
type CommitRecord struct {
	Fingerprint    string           `json:"fingerprint"`
	CurrentOrderID string           `json:"current_order_id"`
	CustomerID     string           `json:"customer_id"`
	Lines          []CommitLine     `json:"lines"`
	Mode           SettlementMode   `json:"mode"`
	MissingCounts  map[string]int   `json:"missing_counts,omitempty"`
	Credit         decimal.Decimal  `json:"credit"`
	Deduction      decimal.Decimal  `json:"deduction"`
	NetCredit      decimal.Decimal  `json:"net_credit"`
	OrderTotal     *decimal.Decimal `json:"order_total,omitempty"`
	FinalAmount    *decimal.Decimal `json:"final_amount,omitempty"`
	Note           string           `json:"note,omitempty"`
	CommittedBy    string           `json:"committed_by"`
	CommittedAt    time.Time        `json:"committed_at"`
}

// Settlement rebuilds the settlement figures that were committed.
func (r *CommitRecord) Settlement() SettlementResult {
	return SettlementResult{
		Mode:        r.Mode,
		Credit:      r.Credit,
		Deduction:   r.Deduction,
		NetCredit:   r.NetCredit,
		OrderTotal:  r.OrderTotal,
		FinalAmount: r.FinalAmount,
	}
}

// CommitMetadata carries who commits and when.
type CommitMetadata struct {
	OperatorID string
	At         time.Time
}

// CommitResult is what a commit reports back to the caller.
type CommitResult struct {
	Success        bool              `json:"success"`
	Partial        bool              `json:"partial"`
	Replayed       bool              `json:"replayed"`
	RolledBack     bool              `json:"rolled_back,omitempty"`
	Fingerprint    string            `json:"fingerprint"`
	Settlement     *SettlementResult `json:"settlement,omitempty"`
	Record         *CommitRecord     `json:"record,omitempty"`
	FailedLines    []LineKey         `json:"failed_lines,omitempty"`
	SucceededLines []LineKey         `json:"succeeded_lines,omitempty"`
}
