package deposit

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

var (
	day1 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 3, 8, 8, 0, 0, 0, time.UTC)
	day3 = time.Date(2026, 3, 15, 8, 0, 0, 0, time.UTC)
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func crateLine(orderID, itemID, unit string, qty int, at time.Time) DepositLine {
	return DepositLine{
		OrderID:          orderID,
		ItemID:           itemID,
		ItemName:         "Crate " + itemID,
		UnitAmount:       dec(unit),
		OriginalQuantity: qty,
		OrderedAt:        at,
	}
}

func testCatalog() Catalog {
	return NewCatalog([]DeductionItemType{
		{TypeID: "crate", DisplayName: "Crate", UnitAmount: dec("0.50")},
		{TypeID: "bottle", DisplayName: "Bottle", UnitAmount: dec("0.08")},
	})
}

type staticCatalog Catalog

func (c staticCatalog) Catalog(ctx context.Context) (Catalog, error) {
	return Catalog(c), nil
}

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

// failingStore fails RecordLineRefund for the listed lines until healed.
// A non-nil revokeErr makes RevokeLineRefunds fail as well.
type failingStore struct {
	*MemoryStore
	failOn    map[LineKey]bool
	err       error
	revokeErr error
}

func (s *failingStore) RecordLineRefund(ctx context.Context, r LineRefund) error {
	if s.failOn[r.Key] {
		return s.err
	}
	return s.MemoryStore.RecordLineRefund(ctx, r)
}

func (s *failingStore) RevokeLineRefunds(ctx context.Context, fingerprint string, keys []LineKey) error {
	if s.revokeErr != nil {
		return s.revokeErr
	}
	return s.MemoryStore.RevokeLineRefunds(ctx, fingerprint, keys)
}

func (s *failingStore) heal() {
	s.failOn = nil
	s.revokeErr = nil
}

// racingStore runs fn once, right before the refund for key is written.
type racingStore struct {
	*MemoryStore
	before LineKey
	run    func()
	done   bool
}

func (s *racingStore) RecordLineRefund(ctx context.Context, r LineRefund) error {
	if r.Key == s.before && !s.done {
		s.done = true
		s.run()
	}
	return s.MemoryStore.RecordLineRefund(ctx, r)
}

// flakyStore fails ListDepositLines a fixed number of times.
type flakyStore struct {
	*MemoryStore
	failures int
	calls    int
}

func (s *flakyStore) ListDepositLines(ctx context.Context, customerID string) ([]DepositLine, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errConnReset
	}
	return s.MemoryStore.ListDepositLines(ctx, customerID)
}

type connError string

func (e connError) Error() string { return string(e) }

const errConnReset = connError("read tcp: connection reset by peer")
