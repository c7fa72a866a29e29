package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Order is the slice of an order this service reads and settles against.
type Order struct {
	ID            string          `db:"id" json:"id"`
	CustomerID    string          `db:"customer_id" json:"customer_id"`
	PayableTotal  decimal.Decimal `db:"payable_total" json:"payable_total"`
	DepositCredit decimal.Decimal `db:"deposit_credit" json:"deposit_credit"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
}

// Outstanding is what is still payable after deposit credits.
func (o Order) Outstanding() decimal.Decimal {
	out := o.PayableTotal.Sub(o.DepositCredit)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Item is a line of an order. DepositAmount is per unit.
type Item struct {
	OrderID       string          `db:"order_id" json:"order_id"`
	ItemID        string          `db:"item_id" json:"item_id"`
	ItemName      string          `db:"item_name" json:"item_name"`
	Quantity      int             `db:"quantity" json:"quantity"`
	DepositAmount decimal.Decimal `db:"deposit_amount" json:"deposit_amount"`
}

// Credit is a deposit credit applied to an order under a reference.
type Credit struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	OrderID     string          `db:"order_id" json:"order_id"`
	ReferenceID string          `db:"reference_id" json:"reference_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	FinalAmount decimal.Decimal `db:"final_amount" json:"final_amount"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// Payout is a deposit refund paid out without an order to net against.
type Payout struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	CustomerID  string          `db:"customer_id" json:"customer_id"`
	ReferenceID string          `db:"reference_id" json:"reference_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Note        string          `db:"note" json:"note"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// finalAmount is what the customer still pays once credit is netted.
func finalAmount(outstanding, credit decimal.Decimal) decimal.Decimal {
	final := outstanding.Sub(credit)
	if final.IsNegative() {
		return decimal.Zero
	}
	return final.Round(2)
}
