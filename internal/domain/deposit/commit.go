package deposit

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/dispatchly/dispatch-api/internal/pkg/logger"
)

// Committer validates, persists and audits finished sessions.
type Committer struct {
	store  Store
	orders OrderService
	clock  Clock
}

func NewCommitter(store Store, orders OrderService) *Committer {
	return &Committer{store: store, orders: orders, clock: systemClock{}}
}

// WithClock replaces the time source used when metadata carries no timestamp.
func (c *Committer) WithClock(clock Clock) *Committer {
	c.clock = clock
	return c
}

// Commit settles the session's eligible selections.
//
// A commit whose fingerprint is already recorded returns the stored result with
// Replayed set and applies nothing. On a *PersistenceError the returned
// CommitResult is non-nil and lists failed and succeeded lines; no CommitRecord
// is written in that case and retrying the same selection is safe.
func (c *Committer) Commit(ctx context.Context, s *Session, catalog Catalog, meta CommitMetadata) (*CommitResult, error) {
	// A resent commit finds its own lines refunded; match it before asking for confirmation.
	if selected := s.selectedLines(); len(selected) > 0 {
		if res, ok, err := c.replay(ctx, c.store, Fingerprint(s.CurrentOrderID, s.Mode, selected)); err != nil || ok {
			return res, err
		}
	}

	if key, ok := s.unconfirmedCorrection(); ok {
		return nil, &ConfirmationRequiredError{Line: key, Prior: s.lines[key].PriorRefund()}
	}
	if !s.Mode.Valid() {
		return nil, &ValidationError{Reason: ReasonInvalidMode}
	}

	lines := s.eligibleLines()
	if len(lines) == 0 {
		return nil, &ValidationError{Reason: ReasonNoItemsSelected}
	}

	fingerprint := Fingerprint(s.CurrentOrderID, s.Mode, lines)

	var orderTotal *decimal.Decimal
	if s.Mode == ModeApplyToOrder {
		total, err := c.orders.GetOrderTotal(ctx, s.CurrentOrderID)
		if err != nil {
			return nil, fmt.Errorf("%w: get order total: %v", ErrOrderUnavailable, err)
		}
		orderTotal = &total
	}

	settlement, err := Compute(s, catalog, orderTotal)
	if err != nil {
		return nil, err
	}

	if meta.At.IsZero() {
		meta.At = c.clock.Now()
	}

	rec := &CommitRecord{
		Fingerprint:    fingerprint,
		CurrentOrderID: s.CurrentOrderID,
		CustomerID:     s.CustomerID,
		Lines:          lines,
		Mode:           s.Mode,
		MissingCounts:  s.MissingCounts(),
		Credit:         settlement.Credit,
		Deduction:      settlement.Deduction,
		NetCredit:      settlement.NetCredit,
		OrderTotal:     settlement.OrderTotal,
		FinalAmount:    settlement.FinalAmount,
		Note:           s.Note,
		CommittedBy:    meta.OperatorID,
		CommittedAt:    meta.At,
	}

	var res *CommitResult
	if txs, ok := c.store.(TxStore); ok {
		res, err = c.commitAtomic(ctx, txs, s, rec)
	} else {
		res, err = c.commitSequential(ctx, s, rec)
	}

	logCommit(rec, res, err)
	return res, err
}

func (c *Committer) commitAtomic(ctx context.Context, txs TxStore, s *Session, rec *CommitRecord) (*CommitResult, error) {
	var replayed *CommitRecord

	err := txs.WithinTx(ctx, func(tx Store) error {
		existing, err := tx.FindCommit(ctx, rec.Fingerprint)
		if err == nil {
			replayed = existing
			return nil
		}
		if !errors.Is(err, ErrCommitNotFound) {
			return err
		}

		states, err := tx.LineStates(ctx, lineKeys(rec.Lines), rec.Fingerprint)
		if err != nil {
			return err
		}
		if err := validateLineStates(s, rec.Lines, states); err != nil {
			return err
		}

		for _, l := range rec.Lines {
			if err := tx.RecordLineRefund(ctx, lineRefund(rec, l)); err != nil {
				return err
			}
		}

		if err := c.settleOrder(ctx, rec); err != nil {
			return err
		}

		return tx.SaveCommit(ctx, rec)
	})

	if replayed != nil {
		return replayedResult(replayed), nil
	}
	if err == nil {
		return committedResult(rec), nil
	}

	if errors.Is(err, ErrDuplicateFingerprint) {
		if res, ok, ferr := c.replay(ctx, txs, rec.Fingerprint); ferr != nil || ok {
			return res, ferr
		}
	}
	if isRejection(err) {
		return nil, err
	}

	keys := lineKeys(rec.Lines)
	return &CommitResult{Fingerprint: rec.Fingerprint, FailedLines: keys},
		&PersistenceError{Failed: keys, Err: err}
}

// commitSequential serves stores without transactions. Line refunds go first,
// then the order collaborator, and the CommitRecord last, so a crash in between
// leaves no record and the same selection can be retried. When only some line
// refunds are written, the written ones are revoked before returning. Once the order
// collaborator has been called the refunds stay, since the credit may have
// gone through; retrying the same selection finishes the commit.
func (c *Committer) commitSequential(ctx context.Context, s *Session, rec *CommitRecord) (*CommitResult, error) {
	states, err := c.store.LineStates(ctx, lineKeys(rec.Lines), rec.Fingerprint)
	if err != nil {
		return &CommitResult{Fingerprint: rec.Fingerprint, FailedLines: lineKeys(rec.Lines)},
			&PersistenceError{Failed: lineKeys(rec.Lines), Err: err}
	}
	if err := validateLineStates(s, rec.Lines, states); err != nil {
		return nil, err
	}

	var (
		succeeded []LineKey
		failed    []LineKey
		firstErr  error
	)
	for _, l := range rec.Lines {
		if err := c.store.RecordLineRefund(ctx, lineRefund(rec, l)); err != nil {
			failed = append(failed, l.Key())
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		succeeded = append(succeeded, l.Key())
	}

	if len(failed) > 0 {
		rolledBack := c.revoke(ctx, rec.Fingerprint, succeeded)
		if rolledBack && isRejection(firstErr) {
			return nil, firstErr
		}
		return &CommitResult{
				Fingerprint:    rec.Fingerprint,
				Partial:        len(succeeded) > 0,
				RolledBack:     rolledBack,
				FailedLines:    failed,
				SucceededLines: succeeded,
			}, &PersistenceError{
				Failed:    failed,
				Succeeded: succeeded,
				Err:       firstErr,
			}
	}

	if err := c.settleOrder(ctx, rec); err != nil {
		return &CommitResult{Fingerprint: rec.Fingerprint, SucceededLines: succeeded},
			&PersistenceError{Succeeded: succeeded, Err: err}
	}

	if err := c.store.SaveCommit(ctx, rec); err != nil {
		if errors.Is(err, ErrDuplicateFingerprint) {
			if res, ok, ferr := c.replay(ctx, c.store, rec.Fingerprint); ferr != nil || ok {
				return res, ferr
			}
		}
		return &CommitResult{Fingerprint: rec.Fingerprint, SucceededLines: succeeded},
			&PersistenceError{Succeeded: succeeded, Err: err}
	}

	return committedResult(rec), nil
}

// revoke undoes the refunds of a commit whose lines were only partly written.
// Nothing has been credited at that point, so the written lines return to
// history as refundable. It reports whether the store is clean again.
func (c *Committer) revoke(ctx context.Context, fingerprint string, keys []LineKey) bool {
	if len(keys) == 0 {
		return true
	}
	if err := c.store.RevokeLineRefunds(ctx, fingerprint, keys); err != nil {
		logger.FromContext(ctx).Error().Err(err).
			Str("fingerprint", fingerprint).
			Int("lines", len(keys)).
			Msg("failed to revoke partial deposit refunds")
		return false
	}
	return true
}

func (c *Committer) settleOrder(ctx context.Context, rec *CommitRecord) error {
	switch rec.Mode {
	case ModeApplyToOrder:
		final, err := c.orders.ApplyDepositCredit(ctx, rec.CurrentOrderID, rec.NetCredit, rec.Fingerprint)
		if err != nil {
			return fmt.Errorf("%w: apply deposit credit: %v", ErrOrderUnavailable, err)
		}
		final = final.Round(2)
		rec.FinalAmount = &final
	case ModePayoutOnly:
		if !rec.NetCredit.IsPositive() {
			return nil
		}
		if err := c.orders.RecordStandalonePayout(ctx, rec.CustomerID, rec.NetCredit, rec.Note, rec.Fingerprint); err != nil {
			return fmt.Errorf("%w: record payout: %v", ErrOrderUnavailable, err)
		}
	}
	return nil
}

func (c *Committer) replay(ctx context.Context, store Store, fingerprint string) (*CommitResult, bool, error) {
	rec, err := store.FindCommit(ctx, fingerprint)
	if errors.Is(err, ErrCommitNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, &PersistenceError{Err: err}
	}
	logger.FromContext(ctx).Info().
		Str("fingerprint", fingerprint).
		Str("current_order_id", rec.CurrentOrderID).
		Msg("deposit commit replayed")
	return replayedResult(rec), true, nil
}

// validateLineStates re-checks every selected line against the store. A normal
// refund needs the line untouched with enough remaining quantity; a confirmed
// correction needs the line unchanged since load and must stay within the
// original quantity.
func validateLineStates(s *Session, lines []CommitLine, states map[LineKey]LineState) error {
	for _, l := range lines {
		key := l.Key()
		st, ok := states[key]
		if !ok {
			return &ConflictError{Line: key, Selected: l.Quantity}
		}

		if l.Correction {
			loaded := s.lines[key]
			if st.AlreadyRefunded != loaded.AlreadyRefunded || st.RefundedQuantity != loaded.RefundedQuantity {
				return &ConflictError{Line: key, Selected: l.Quantity, Remaining: st.Remaining()}
			}
			if st.RefundedQuantity+l.Quantity > st.OriginalQuantity {
				return &ValidationError{Reason: ReasonCorrectionExceedsOriginal, Line: &key}
			}
			continue
		}

		if st.AlreadyRefunded || l.Quantity > st.Remaining() {
			return &ConflictError{Line: key, Selected: l.Quantity, Remaining: st.Remaining()}
		}
	}
	return nil
}

func isRejection(err error) bool {
	var conflict *ConflictError
	var invalid *ValidationError
	return errors.As(err, &conflict) || errors.As(err, &invalid)
}

func lineRefund(rec *CommitRecord, l CommitLine) LineRefund {
	return LineRefund{
		Fingerprint: rec.Fingerprint,
		Key:         l.Key(),
		Quantity:    l.Quantity,
		Amount:      l.Amount,
		Correction:  l.Correction,
		Driver:      rec.CommittedBy,
		At:          rec.CommittedAt,
	}
}

func lineKeys(lines []CommitLine) []LineKey {
	out := make([]LineKey, 0, len(lines))
	for _, l := range lines {
		out = append(out, l.Key())
	}
	return out
}

func committedResult(rec *CommitRecord) *CommitResult {
	st := rec.Settlement()
	return &CommitResult{
		Success:        true,
		Fingerprint:    rec.Fingerprint,
		Settlement:     &st,
		Record:         rec,
		SucceededLines: lineKeys(rec.Lines),
	}
}

func replayedResult(rec *CommitRecord) *CommitResult {
	res := committedResult(rec)
	res.Replayed = true
	return res
}

func logCommit(rec *CommitRecord, res *CommitResult, err error) {
	if err == nil {
		if res != nil && res.Replayed {
			return
		}
		log.Info().
			Str("fingerprint", rec.Fingerprint).
			Str("customer_id", rec.CustomerID).
			Str("current_order_id", rec.CurrentOrderID).
			Str("operator_id", rec.CommittedBy).
			Str("mode", string(rec.Mode)).
			Str("net_credit", rec.NetCredit.StringFixed(2)).
			Int("lines", len(rec.Lines)).
			Msg("deposit commit recorded")
		return
	}

	event := log.Warn()
	var perr *PersistenceError
	if errors.As(err, &perr) {
		event = log.Error().
			Int("failed_lines", len(perr.Failed)).
			Int("succeeded_lines", len(perr.Succeeded)).
			Bool("partial", perr.Partial())
	}
	event.Err(err).
		Str("fingerprint", rec.Fingerprint).
		Str("customer_id", rec.CustomerID).
		Str("current_order_id", rec.CurrentOrderID).
		Str("operator_id", rec.CommittedBy).
		Msg("deposit commit rejected")
}
