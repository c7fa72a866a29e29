package order

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dispatchly/dispatch-api/internal/pkg/logger"
)

// Repository is implemented by the Postgres, Bolt and in-memory backends.
// Credits and payouts are idempotent per reference: replaying a reference with
// the same amount returns the first outcome, a different amount is a conflict.
type Repository interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	ApplyCredit(ctx context.Context, orderID string, amount decimal.Decimal, referenceID string) (decimal.Decimal, error)
	RecordPayout(ctx context.Context, p Payout) error
}

// Service is the order collaborator of the deposit engine.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetOrderTotal returns the order's outstanding amount.
func (s *Service) GetOrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error) {
	o, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		return decimal.Zero, err
	}
	return o.Outstanding(), nil
}

// ApplyDepositCredit nets a deposit credit against the order and returns the
// final amount payable.
func (s *Service) ApplyDepositCredit(ctx context.Context, orderID string, netCredit decimal.Decimal, reference string) (decimal.Decimal, error) {
	if netCredit.IsNegative() || reference == "" {
		return decimal.Zero, ErrInvalidAmount
	}

	final, err := s.repo.ApplyCredit(ctx, orderID, netCredit.Round(2), reference)
	if err != nil {
		return decimal.Zero, err
	}
	logger.LogInfo(ctx, "deposit credit applied",
		"order_id", orderID,
		"credit", netCredit.StringFixed(2),
		"final_amount", final.StringFixed(2),
		"reference_id", reference)
	return final, nil
}

// RecordStandalonePayout books a payout that is not netted against an order.
func (s *Service) RecordStandalonePayout(ctx context.Context, customerID string, netCredit decimal.Decimal, note, reference string) error {
	if !netCredit.IsPositive() || reference == "" {
		return ErrInvalidAmount
	}

	err := s.repo.RecordPayout(ctx, Payout{
		CustomerID:  customerID,
		ReferenceID: reference,
		Amount:      netCredit.Round(2),
		Note:        note,
	})
	if err != nil {
		return err
	}
	logger.LogInfo(ctx, "deposit payout recorded",
		"customer_id", customerID,
		"amount", netCredit.StringFixed(2),
		"reference_id", reference)
	return nil
}
