package deposit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dispatchly/dispatch-api/internal/domain/order"
)

type recordingNotifier struct {
	records []*CommitRecord
}

func (n *recordingNotifier) CommitRecorded(ctx context.Context, rec *CommitRecord) {
	n.records = append(n.records, rec)
}

type countingCache struct {
	lines       map[string][]DepositLine
	invalidated []string
}

func (c *countingCache) Get(ctx context.Context, customerID string) ([]DepositLine, bool) {
	l, ok := c.lines[customerID]
	return l, ok
}

func (c *countingCache) Set(ctx context.Context, customerID string, lines []DepositLine) {
	c.lines[customerID] = lines
}

func (c *countingCache) Invalidate(ctx context.Context, customerID string) {
	delete(c.lines, customerID)
	c.invalidated = append(c.invalidated, customerID)
}

func newTestService(store Store, cache HistoryCache, notifier CommitNotifier) (*Service, *order.MemoryRepository) {
	orders := order.NewMemoryRepository()
	orders.AddOrder(order.Order{ID: "O9", CustomerID: "C1", PayableTotal: dec("10.00"), CreatedAt: day3})
	orders.AddOrder(order.Order{ID: "O10", CustomerID: "C1", PayableTotal: dec("8.00"), CreatedAt: day3})

	svc := NewService(store, cache, order.NewService(orders), staticCatalog(testCatalog()), notifier, ServiceConfig{
		HistoryAttempts: 3,
	}).WithClock(fixedClock(day3))
	return svc, orders
}

func seededStore() *MemoryStore {
	store := NewMemoryStore()
	store.AddLine("C1", crateLine("O1", "I1", "0.25", 4, day1))
	store.AddLine("C1", crateLine("O2", "I1", "1.50", 2, day2))
	store.AddLine("C1", crateLine("O9", "I1", "0.25", 6, day3))
	return store
}

func TestServiceLoadHistoryOrderingAndExclusion(t *testing.T) {
	svc, _ := newTestService(seededStore(), nil, nil)

	lines, err := svc.LoadHistory(context.Background(), "C1", "O9", false)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(lines) != 2 || lines[0].OrderID != "O2" || lines[1].OrderID != "O1" {
		t.Fatalf("expected O2 then O1 with O9 excluded, got %+v", lines)
	}

	lines, _ = svc.LoadHistory(context.Background(), "C1", "O9", true)
	if len(lines) != 3 || lines[0].OrderID != "O9" {
		t.Fatalf("expected current order included first, got %+v", lines)
	}

	empty, err := svc.LoadHistory(context.Background(), "C404", "", false)
	if err != nil || len(empty) != 0 {
		t.Fatalf("expected empty history without error, got %v (%v)", empty, err)
	}
}

func TestServiceLoadHistoryRetries(t *testing.T) {
	flaky := &flakyStore{MemoryStore: seededStore(), failures: 2}
	svc, _ := newTestService(flaky, nil, nil)

	lines, err := svc.LoadHistory(context.Background(), "C1", "O9", false)
	if err != nil {
		t.Fatalf("expected success on the third attempt, got %v", err)
	}
	if flaky.calls != 3 || len(lines) != 2 {
		t.Fatalf("expected 3 calls and 2 lines, got %d and %d", flaky.calls, len(lines))
	}
}

func TestServiceLoadHistoryUnavailable(t *testing.T) {
	flaky := &flakyStore{MemoryStore: seededStore(), failures: 10}
	svc, _ := newTestService(flaky, nil, nil)

	_, err := svc.LoadHistory(context.Background(), "C1", "O9", false)
	if !errors.Is(err, ErrHistoryUnavailable) {
		t.Fatalf("expected ErrHistoryUnavailable, got %v", err)
	}
	if flaky.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", flaky.calls)
	}
}

func TestServiceLoadHistoryStopsOnCancel(t *testing.T) {
	flaky := &flakyStore{MemoryStore: seededStore(), failures: 10}
	orders := order.NewMemoryRepository()
	svc := NewService(flaky, nil, order.NewService(orders), staticCatalog(testCatalog()), nil, ServiceConfig{
		HistoryAttempts: 5,
		RetryBackoff:    time.Hour,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.LoadHistory(ctx, "C1", "", false)
	if !errors.Is(err, ErrHistoryUnavailable) {
		t.Fatalf("expected ErrHistoryUnavailable, got %v", err)
	}
	if flaky.calls != 1 {
		t.Fatalf("expected to give up after the first attempt, got %d calls", flaky.calls)
	}
}

func TestServiceComputeFetchesOrderTotal(t *testing.T) {
	svc, _ := newTestService(seededStore(), nil, nil)

	res, err := svc.Compute(context.Background(), SessionSnapshot{
		CurrentOrderID: "O9",
		CustomerID:     "C1",
		Mode:           ModeApplyToOrder,
		Selections:     []SelectionInput{{OrderID: "O1", ItemID: "I1", Quantity: 4}},
	})
	if err != nil {
		t.Fatalf("compute failed: %v", err)
	}
	if !res.FinalAmount.Equal(dec("9.00")) {
		t.Fatalf("expected final 9.00, got %s", res.FinalAmount)
	}

	res, err = svc.Compute(context.Background(), SessionSnapshot{
		CurrentOrderID: "O9",
		CustomerID:     "C1",
		Mode:           ModeApplyToOrder,
		Selections:     []SelectionInput{{OrderID: "O1", ItemID: "I1", Quantity: 4}},
		OrderTotal:     decPtr("25.00"),
	})
	if err != nil || !res.FinalAmount.Equal(dec("24.00")) {
		t.Fatalf("expected supplied total to win, got %v (%v)", res.FinalAmount, err)
	}
}

func TestServiceComputeRejectsBadSnapshot(t *testing.T) {
	svc, _ := newTestService(seededStore(), nil, nil)

	tests := []struct {
		name   string
		snap   SessionSnapshot
		reason string
	}{
		{
			name:   "unknown mode",
			snap:   SessionSnapshot{CurrentOrderID: "O9", CustomerID: "C1", Mode: "barter"},
			reason: ReasonInvalidMode,
		},
		{
			name: "unknown line",
			snap: SessionSnapshot{CurrentOrderID: "O9", CustomerID: "C1", Mode: ModePayoutOnly,
				Selections: []SelectionInput{{OrderID: "O7", ItemID: "I1", Quantity: 1}}},
			reason: ReasonUnknownLine,
		},
		{
			name: "current order line hidden",
			snap: SessionSnapshot{CurrentOrderID: "O9", CustomerID: "C1", Mode: ModePayoutOnly,
				Selections: []SelectionInput{{OrderID: "O9", ItemID: "I1", Quantity: 1}}},
			reason: ReasonUnknownLine,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Compute(context.Background(), tt.snap)
			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Reason != tt.reason {
				t.Fatalf("expected %s, got %v", tt.reason, err)
			}
		})
	}
}

func TestServiceCommitInvalidatesAndNotifies(t *testing.T) {
	cache := &countingCache{lines: map[string][]DepositLine{}}
	notifier := &recordingNotifier{}
	svc, _ := newTestService(seededStore(), cache, notifier)

	snap := SessionSnapshot{
		CurrentOrderID: "O9",
		CustomerID:     "C1",
		Mode:           ModeApplyToOrder,
		Selections:     []SelectionInput{{OrderID: "O2", ItemID: "I1", Quantity: 2}},
		MissingCounts:  map[string]int{"bottle": 5},
		Note:           "two crates back",
	}

	res, err := svc.Commit(context.Background(), snap, CommitMetadata{OperatorID: "driver-1"})
	if err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if !res.Settlement.NetCredit.Equal(dec("2.60")) {
		t.Fatalf("expected net 2.60, got %s", res.Settlement.NetCredit)
	}
	if len(cache.invalidated) != 1 || cache.invalidated[0] != "C1" {
		t.Fatalf("expected history cache invalidated for C1, got %v", cache.invalidated)
	}
	if len(notifier.records) != 1 || notifier.records[0].Note != "two crates back" {
		t.Fatalf("expected one notification with the note, got %+v", notifier.records)
	}

	// the replay neither notifies nor invalidates again
	if _, err := svc.Commit(context.Background(), snap, CommitMetadata{OperatorID: "driver-1"}); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if len(notifier.records) != 1 || len(cache.invalidated) != 1 {
		t.Fatal("expected replay to stay silent")
	}

	rec, err := svc.FindCommit(context.Background(), res.Fingerprint)
	if err != nil || rec.MissingCounts["bottle"] != 5 {
		t.Fatalf("expected stored missing counts, got %+v (%v)", rec, err)
	}
}

func TestServiceCommitConfirmedCorrectionFromSnapshot(t *testing.T) {
	svc, _ := newTestService(seededStore(), nil, nil)

	first := SessionSnapshot{
		CurrentOrderID: "O9", CustomerID: "C1", Mode: ModePayoutOnly,
		Selections: []SelectionInput{{OrderID: "O1", ItemID: "I1", Quantity: 1}},
	}
	if _, err := svc.Commit(context.Background(), first, CommitMetadata{OperatorID: "driver-1"}); err != nil {
		t.Fatalf("first commit failed: %v", err)
	}

	// reloaded history shows the line refunded once
	correction := SessionSnapshot{
		CurrentOrderID: "O9", CustomerID: "C1", Mode: ModePayoutOnly,
		Selections: []SelectionInput{{OrderID: "O1", ItemID: "I1", Quantity: 3, AlreadyRefunded: true, RefundedQuantity: 1}},
	}
	_, err := svc.Commit(context.Background(), correction, CommitMetadata{OperatorID: "driver-2"})
	var cerr *ConfirmationRequiredError
	if !errors.As(err, &cerr) {
		t.Fatalf("expected ConfirmationRequiredError, got %v", err)
	}
	if cerr.Prior.Driver == nil || *cerr.Prior.Driver != "driver-1" {
		t.Fatalf("expected prior refund by driver-1, got %+v", cerr.Prior)
	}

	correction.ConfirmedCorrections = []LineKey{keyO1}
	res, err := svc.Commit(context.Background(), correction, CommitMetadata{OperatorID: "driver-2"})
	if err != nil {
		t.Fatalf("confirmed correction failed: %v", err)
	}
	if !res.Settlement.NetCredit.Equal(dec("0.75")) || !res.Record.Lines[0].Correction {
		t.Fatalf("expected a 0.75 correction, got %+v", res.Record)
	}
}

func TestServiceCommitStaleSnapshotConflicts(t *testing.T) {
	tests := []struct {
		name      string
		prior     int
		first     SelectionInput
		stale     SelectionInput
		remaining int
	}{
		{
			name:      "line fully taken",
			first:     SelectionInput{OrderID: "O1", ItemID: "I1", Quantity: 4},
			stale:     SelectionInput{OrderID: "O1", ItemID: "I1", Quantity: 4},
			remaining: 0,
		},
		{
			name:      "line partly taken",
			first:     SelectionInput{OrderID: "O1", ItemID: "I1", Quantity: 3},
			stale:     SelectionInput{OrderID: "O1", ItemID: "I1", Quantity: 1},
			remaining: 1,
		},
		{
			name:      "correction raced by another correction",
			prior:     1,
			first:     SelectionInput{OrderID: "O1", ItemID: "I1", Quantity: 2, AlreadyRefunded: true, RefundedQuantity: 1},
			stale:     SelectionInput{OrderID: "O1", ItemID: "I1", Quantity: 1, AlreadyRefunded: true, RefundedQuantity: 1},
			remaining: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, orders := newTestService(seededStore(), nil, nil)

			if tt.prior > 0 {
				earlier := SessionSnapshot{CurrentOrderID: "O9", CustomerID: "C1", Mode: ModePayoutOnly,
					Selections: []SelectionInput{{OrderID: "O1", ItemID: "I1", Quantity: tt.prior}}}
				if _, err := svc.Commit(context.Background(), earlier, CommitMetadata{OperatorID: "driver-0"}); err != nil {
					t.Fatalf("earlier commit failed: %v", err)
				}
			}

			// both snapshots come from the same history load, before either commit
			firstSnap := SessionSnapshot{CurrentOrderID: "O9", CustomerID: "C1", Mode: ModeApplyToOrder, Selections: []SelectionInput{tt.first}}
			staleSnap := SessionSnapshot{CurrentOrderID: "O10", CustomerID: "C1", Mode: ModeApplyToOrder, Selections: []SelectionInput{tt.stale}}
			if tt.prior > 0 {
				firstSnap.ConfirmedCorrections = []LineKey{keyO1}
				staleSnap.ConfirmedCorrections = []LineKey{keyO1}
			}

			if _, err := svc.Commit(context.Background(), firstSnap, CommitMetadata{OperatorID: "driver-1"}); err != nil {
				t.Fatalf("first commit failed: %v", err)
			}

			_, err := svc.Commit(context.Background(), staleSnap, CommitMetadata{OperatorID: "driver-2"})
			var conflict *ConflictError
			if !errors.As(err, &conflict) {
				t.Fatalf("expected ConflictError, got %T %v", err, err)
			}
			if conflict.Line != keyO1 || conflict.Remaining != tt.remaining {
				t.Fatalf("unexpected conflict %+v", conflict)
			}
			if orders.Credits() != 1 {
				t.Fatalf("expected only the first credit, got %d", orders.Credits())
			}
		})
	}
}

func TestServiceCatalogSorted(t *testing.T) {
	svc, _ := newTestService(seededStore(), nil, nil)

	items, err := svc.Catalog(context.Background())
	if err != nil {
		t.Fatalf("catalog failed: %v", err)
	}
	if len(items) != 2 || items[0].TypeID != "bottle" || items[1].TypeID != "crate" {
		t.Fatalf("expected bottle then crate, got %+v", items)
	}
}
