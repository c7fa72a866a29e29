package deposit

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps lines, refunds and commits in process memory. Every call is
// atomic on its own but there is no transaction across calls, so commits against
// it take the sequential path.
type MemoryStore struct {
	mu        sync.RWMutex
	lines     map[LineKey]DepositLine
	customers map[string][]LineKey
	refunds   map[LineKey][]LineRefund
	commits   map[string]*CommitRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lines:     make(map[LineKey]DepositLine),
		customers: make(map[string][]LineKey),
		refunds:   make(map[LineKey][]LineRefund),
		commits:   make(map[string]*CommitRecord),
	}
}

// AddLine registers an order line for a customer. Refund fields on line are ignored.
func (s *MemoryStore) AddLine(customerID string, line DepositLine) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := line.Key()
	if _, ok := s.lines[key]; !ok {
		s.customers[customerID] = append(s.customers[customerID], key)
	}
	s.lines[key] = baseLine(line)
}

func (s *MemoryStore) ListDepositLines(ctx context.Context, customerID string) ([]DepositLine, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := s.customers[customerID]
	out := make([]DepositLine, 0, len(keys))
	for _, k := range keys {
		line := s.lines[k]
		if !line.UnitAmount.IsPositive() {
			continue
		}
		out = append(out, deriveLine(line, s.refunds[k]))
	}
	return out, nil
}

func (s *MemoryStore) LineStates(ctx context.Context, keys []LineKey, fingerprint string) (map[LineKey]LineState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[LineKey]LineState, len(keys))
	for _, k := range keys {
		line, ok := s.lines[k]
		if !ok {
			continue
		}
		out[k] = stateOf(line, s.refunds[k], fingerprint)
	}
	return out, nil
}

func (s *MemoryStore) FindCommit(ctx context.Context, fingerprint string) (*CommitRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.commits[fingerprint]
	if !ok {
		return nil, ErrCommitNotFound
	}
	return copyRecord(rec), nil
}

// RecordLineRefund re-checks capacity under the store lock so two different
// commits cannot both consume the same quantity.
func (s *MemoryStore) RecordLineRefund(ctx context.Context, r LineRefund) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line, ok := s.lines[r.Key]
	if !ok {
		return &ConflictError{Line: r.Key, Selected: r.Quantity}
	}
	for _, existing := range s.refunds[r.Key] {
		if existing.Fingerprint == r.Fingerprint {
			return nil
		}
	}
	if err := checkCapacity(stateOf(line, s.refunds[r.Key], r.Fingerprint), r); err != nil {
		return err
	}

	s.refunds[r.Key] = append(s.refunds[r.Key], r)
	return nil
}

func (s *MemoryStore) SaveCommit(ctx context.Context, rec *CommitRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.commits[rec.Fingerprint]; ok {
		return ErrDuplicateFingerprint
	}
	s.commits[rec.Fingerprint] = copyRecord(rec)
	return nil
}

func (s *MemoryStore) RevokeLineRefunds(ctx context.Context, fingerprint string, keys []LineKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.commits[fingerprint]; ok {
		return ErrDuplicateFingerprint
	}
	for _, k := range keys {
		kept := s.refunds[k][:0]
		for _, r := range s.refunds[k] {
			if r.Fingerprint != fingerprint {
				kept = append(kept, r)
			}
		}
		s.refunds[k] = kept
	}
	return nil
}

// ListCommits returns every stored record ordered by commit time.
func (s *MemoryStore) ListCommits() []*CommitRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*CommitRecord, 0, len(s.commits))
	for _, rec := range s.commits {
		out = append(out, copyRecord(rec))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CommittedAt.Before(out[j].CommittedAt) })
	return out
}

func baseLine(line DepositLine) DepositLine {
	line.RefundedQuantity = 0
	line.AlreadyRefunded = false
	line.RefundDriver = nil
	line.RefundDate = nil
	return line
}

// deriveLine folds every ledger entry into the line's refund fields. It counts
// the same entries as stateOf, so history and commit-time checks agree.
func deriveLine(line DepositLine, refunds []LineRefund) DepositLine {
	line = baseLine(line)
	for _, r := range refunds {
		line.RefundedQuantity += r.Quantity
		line.AlreadyRefunded = true
		if line.RefundDate == nil || r.At.After(*line.RefundDate) {
			driver := r.Driver
			at := r.At
			line.RefundDriver = &driver
			line.RefundDate = &at
		}
	}
	return line
}

func stateOf(line DepositLine, refunds []LineRefund, excludeFingerprint string) LineState {
	st := LineState{Key: line.Key(), OriginalQuantity: line.OriginalQuantity}
	for _, r := range refunds {
		if r.Fingerprint == excludeFingerprint {
			continue
		}
		st.RefundedQuantity += r.Quantity
		st.AlreadyRefunded = true
	}
	return st
}

func checkCapacity(st LineState, r LineRefund) error {
	if r.Correction {
		if st.RefundedQuantity+r.Quantity > st.OriginalQuantity {
			key := r.Key
			return &ValidationError{Reason: ReasonCorrectionExceedsOriginal, Line: &key}
		}
		return nil
	}
	if st.AlreadyRefunded || r.Quantity > st.Remaining() {
		return &ConflictError{Line: r.Key, Selected: r.Quantity, Remaining: st.Remaining()}
	}
	return nil
}

func copyRecord(rec *CommitRecord) *CommitRecord {
	cp := *rec
	cp.Lines = append([]CommitLine(nil), rec.Lines...)
	if rec.MissingCounts != nil {
		cp.MissingCounts = make(map[string]int, len(rec.MissingCounts))
		for k, v := range rec.MissingCounts {
			cp.MissingCounts[k] = v
		}
	}
	return &cp
}
