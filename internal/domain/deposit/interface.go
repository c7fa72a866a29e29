package deposit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// LineState is the store's current view of a line, used to re-validate a commit.
// Refunds recorded under the commit's own fingerprint are excluded, which keeps
// a retry of a half-written commit from conflicting with itself.
type LineState struct {
	Key              LineKey
	OriginalQuantity int
	RefundedQuantity int
	AlreadyRefunded  bool
}

func (s LineState) Remaining() int {
	if r := s.OriginalQuantity - s.RefundedQuantity; r > 0 {
		return r
	}
	return 0
}

// LineRefund is one ledger entry marking a line (partly) refunded.
type LineRefund struct {
	Fingerprint string
	Key         LineKey
	Quantity    int
	Amount      decimal.Decimal
	Correction  bool
	Driver      string
	At          time.Time
}

//go:generate mockgen -destination=mocks/mock_interface.go -package=mock_deposit github.com/dispatchly/dispatch-api/internal/domain/deposit OrderService,Store,HistoryCache,CommitNotifier

// Store is the persistence boundary of the reconciliation engine.
type Store interface {
	// ListDepositLines returns every deposit-bearing line of the customer's orders.
	ListDepositLines(ctx context.Context, customerID string) ([]DepositLine, error)

	// LineStates re-reads the given lines, ignoring refunds written under fingerprint.
	LineStates(ctx context.Context, keys []LineKey, fingerprint string) (map[LineKey]LineState, error)

	// FindCommit returns ErrCommitNotFound when no record carries the fingerprint.
	FindCommit(ctx context.Context, fingerprint string) (*CommitRecord, error)

	// RecordLineRefund is idempotent per (fingerprint, line).
	RecordLineRefund(ctx context.Context, r LineRefund) error

	// SaveCommit returns ErrDuplicateFingerprint when the fingerprint exists.
	SaveCommit(ctx context.Context, rec *CommitRecord) error

	// RevokeLineRefunds deletes the refunds written under fingerprint for keys.
	// Refunds of a recorded commit are never revoked.
	RevokeLineRefunds(ctx context.Context, fingerprint string, keys []LineKey) error
}

// TxStore is a Store that can apply a whole commit atomically.
type TxStore interface {
	Store
	WithinTx(ctx context.Context, fn func(tx Store) error) error
}

// OrderService is the order collaborator. Credit and payout calls carry the
// commit fingerprint as reference and must be idempotent on it.
type OrderService interface {
	GetOrderTotal(ctx context.Context, orderID string) (decimal.Decimal, error)
	ApplyDepositCredit(ctx context.Context, orderID string, netCredit decimal.Decimal, reference string) (decimal.Decimal, error)
	RecordStandalonePayout(ctx context.Context, customerID string, netCredit decimal.Decimal, note, reference string) error
}

// CatalogSource provides the deduction catalog.
type CatalogSource interface {
	Catalog(ctx context.Context) (Catalog, error)
}

// HistoryCache keeps a customer's loaded lines between keystrokes.
type HistoryCache interface {
	Get(ctx context.Context, customerID string) ([]DepositLine, bool)
	Set(ctx context.Context, customerID string, lines []DepositLine)
	Invalidate(ctx context.Context, customerID string)
}

// CommitNotifier is told about every successful commit.
type CommitNotifier interface {
	CommitRecorded(ctx context.Context, rec *CommitRecord)
}

// Clock is the time source used to stamp commits.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
