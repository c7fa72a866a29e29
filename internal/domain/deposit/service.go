package deposit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dispatchly/dispatch-api/internal/pkg/logger"
)

// SelectionInput is one selected line in a session snapshot. AlreadyRefunded
// and RefundedQuantity echo the line as it was loaded from /history, which is
// the state the operator decided on.
type SelectionInput struct {
	OrderID          string `json:"order_id" validate:"required"`
	ItemID           string `json:"item_id" validate:"required"`
	Quantity         int    `json:"quantity"`
	AlreadyRefunded  bool   `json:"already_refunded"`
	RefundedQuantity int    `json:"refunded_quantity" validate:"min=0"`
}

// SessionSnapshot is the transport form of a refund session. The server rebuilds
// the session from stored history, so amounts and refund flags are never taken
// from the client.
type SessionSnapshot struct {
	CurrentOrderID       string           `json:"current_order_id" validate:"required"`
	CustomerID           string           `json:"customer_id" validate:"required"`
	IncludeCurrent       bool             `json:"include_current"`
	Selections           []SelectionInput `json:"selections" validate:"dive"`
	ConfirmedCorrections []LineKey        `json:"confirmed_corrections"`
	MissingCounts        map[string]int   `json:"missing_counts"`
	Mode                 SettlementMode   `json:"mode" validate:"required,settlement_mode"`
	Note                 string           `json:"note" validate:"max=500"`
	OrderTotal           *decimal.Decimal `json:"order_total,omitempty"`
}

// ServiceConfig tunes the service.
type ServiceConfig struct {
	HistoryAttempts int
	RetryBackoff    time.Duration
}

// Service is the entry point used by the transport layer.
type Service struct {
	history   *HistoryAggregator
	committer *Committer
	store     Store
	orders    OrderService
	catalogs  CatalogSource
	notifier  CommitNotifier
	cfg       ServiceConfig
}

// NewService wires the engine. cache and notifier may be nil.
func NewService(store Store, cache HistoryCache, orders OrderService, catalogs CatalogSource, notifier CommitNotifier, cfg ServiceConfig) *Service {
	if cfg.HistoryAttempts <= 0 {
		cfg.HistoryAttempts = 1
	}
	return &Service{
		history:   NewHistoryAggregator(store, cache),
		committer: NewCommitter(store, orders),
		store:     store,
		orders:    orders,
		catalogs:  catalogs,
		notifier:  notifier,
		cfg:       cfg,
	}
}

// WithClock sets the commit time source.
func (s *Service) WithClock(clock Clock) *Service {
	s.committer.WithClock(clock)
	return s
}

// LoadHistory reads the customer's history with a bounded retry. Only
// ErrHistoryUnavailable is retried.
func (s *Service) LoadHistory(ctx context.Context, customerID, excludeOrderID string, includeCurrent bool) ([]DepositLine, error) {
	var lastErr error
	for attempt := 1; attempt <= s.cfg.HistoryAttempts; attempt++ {
		lines, err := s.history.LoadHistory(ctx, customerID, excludeOrderID, includeCurrent)
		if err == nil {
			return lines, nil
		}
		lastErr = err
		if !errors.Is(err, ErrHistoryUnavailable) || attempt == s.cfg.HistoryAttempts {
			break
		}

		logger.LogWarn(ctx, "retrying deposit history load", "attempt", attempt, "customer_id", customerID, "error", err.Error())
		if s.cfg.RetryBackoff > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrHistoryUnavailable, ctx.Err())
			case <-time.After(s.cfg.RetryBackoff):
			}
		}
	}
	return nil, lastErr
}

// OpenSession loads history and replays the snapshot onto a fresh session.
// Selected lines keep the refund state the snapshot was taken against, so a
// commit made by someone else in between surfaces as a ConflictError when the
// session is committed.
func (s *Service) OpenSession(ctx context.Context, snap SessionSnapshot) (*Session, error) {
	lines, err := s.LoadHistory(ctx, snap.CustomerID, snap.CurrentOrderID, snap.IncludeCurrent)
	if err != nil {
		return nil, err
	}

	sess := NewSession(snap.CurrentOrderID, snap.CustomerID, asLoaded(lines, snap.Selections))
	sess.Note = snap.Note
	if err := sess.SetMode(snap.Mode); err != nil {
		return nil, &ValidationError{Reason: ReasonInvalidMode}
	}

	for _, sel := range snap.Selections {
		key := LineKey{OrderID: sel.OrderID, ItemID: sel.ItemID}
		if err := sess.Select(key, sel.Quantity); err != nil {
			return nil, &ValidationError{Reason: ReasonUnknownLine, Line: &key}
		}
	}

	for _, key := range snap.ConfirmedCorrections {
		if _, err := sess.ConfirmCorrection(key); err != nil {
			if errors.Is(err, ErrNoPendingCorrection) {
				continue
			}
			key := key
			return nil, &ValidationError{Reason: ReasonUnknownLine, Line: &key}
		}
	}

	for typeID, count := range snap.MissingCounts {
		sess.SetMissing(typeID, count)
	}

	return sess, nil
}

// asLoaded overwrites the refund state of selected lines with the state the
// snapshot carries. Amounts and quantities always come from the store.
func asLoaded(lines []DepositLine, selections []SelectionInput) []DepositLine {
	loaded := make(map[LineKey]SelectionInput, len(selections))
	for _, sel := range selections {
		loaded[LineKey{OrderID: sel.OrderID, ItemID: sel.ItemID}] = sel
	}

	out := make([]DepositLine, len(lines))
	for i, l := range lines {
		if sel, ok := loaded[l.Key()]; ok {
			l.AlreadyRefunded = sel.AlreadyRefunded
			l.RefundedQuantity = sel.RefundedQuantity
		}
		out[i] = l
	}
	return out
}

// Compute returns the settlement for the snapshot. In apply_to_order mode a
// missing order total is fetched from the order collaborator.
func (s *Service) Compute(ctx context.Context, snap SessionSnapshot) (SettlementResult, error) {
	sess, err := s.OpenSession(ctx, snap)
	if err != nil {
		return SettlementResult{}, err
	}

	catalog, err := s.catalogs.Catalog(ctx)
	if err != nil {
		return SettlementResult{}, err
	}

	total := snap.OrderTotal
	if total == nil && sess.Mode == ModeApplyToOrder {
		t, err := s.orders.GetOrderTotal(ctx, sess.CurrentOrderID)
		if err != nil {
			return SettlementResult{}, fmt.Errorf("%w: %v", ErrOrderUnavailable, err)
		}
		total = &t
	}

	return Compute(sess, catalog, total)
}

// Commit rebuilds the session and commits it. See Committer.Commit.
func (s *Service) Commit(ctx context.Context, snap SessionSnapshot, meta CommitMetadata) (*CommitResult, error) {
	sess, err := s.OpenSession(ctx, snap)
	if err != nil {
		return nil, err
	}

	catalog, err := s.catalogs.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	res, err := s.committer.Commit(ctx, sess, catalog, meta)
	if err != nil {
		return res, err
	}

	if !res.Replayed {
		s.history.Invalidate(ctx, sess.CustomerID)
		if s.notifier != nil {
			s.notifier.CommitRecorded(ctx, res.Record)
		}
	}
	return res, nil
}

// Catalog returns the deduction catalog ordered by type id.
func (s *Service) Catalog(ctx context.Context) ([]DeductionItemType, error) {
	catalog, err := s.catalogs.Catalog(ctx)
	if err != nil {
		return nil, err
	}
	return catalog.Items(), nil
}

// FindCommit looks up a stored commit record.
func (s *Service) FindCommit(ctx context.Context, fingerprint string) (*CommitRecord, error) {
	return s.store.FindCommit(ctx, fingerprint)
}
