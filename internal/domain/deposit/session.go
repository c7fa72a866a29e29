package deposit

import (
	"sort"
)

// MaxMissingCount caps the reported count per missing item type.
const MaxMissingCount = 99

// Session holds one operator's refund selection for one order.
// It is not safe for concurrent use and must not be shared across requests.
type Session struct {
	CurrentOrderID string
	CustomerID     string
	Mode           SettlementMode
	Note           string

	lines      map[LineKey]DepositLine
	selections map[LineKey]int
	pending    map[LineKey]struct{}
	confirmed  map[LineKey]struct{}
	missing    map[string]int
}

// NewSession opens a session over the loaded history. Mode defaults to apply_to_order.
func NewSession(currentOrderID, customerID string, lines []DepositLine) *Session {
	s := &Session{
		CurrentOrderID: currentOrderID,
		CustomerID:     customerID,
		Mode:           ModeApplyToOrder,
		lines:          make(map[LineKey]DepositLine, len(lines)),
		selections:     make(map[LineKey]int),
		pending:        make(map[LineKey]struct{}),
		confirmed:      make(map[LineKey]struct{}),
		missing:        make(map[string]int),
	}
	for _, l := range lines {
		s.lines[l.Key()] = l
	}
	return s
}

// Line returns the loaded line for key.
func (s *Session) Line(key LineKey) (DepositLine, bool) {
	l, ok := s.lines[key]
	return l, ok
}

// Lines returns the loaded lines ordered by key.
func (s *Session) Lines() []DepositLine {
	out := make([]DepositLine, 0, len(s.lines))
	for _, l := range s.lines {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return lessKey(out[i].Key(), out[j].Key()) })
	return out
}

// Select sets the returned quantity for a line, clamped to [0, original_quantity].
// Selecting an already refunded line puts it into pending corrections unless the
// correction was confirmed before. Deselecting clears any correction flag.
func (s *Session) Select(key LineKey, quantity int) error {
	line, ok := s.lines[key]
	if !ok {
		return ErrUnknownLine
	}

	if quantity < 0 {
		quantity = 0
	}
	if quantity > line.OriginalQuantity {
		quantity = line.OriginalQuantity
	}

	if quantity == 0 {
		delete(s.selections, key)
		delete(s.pending, key)
		delete(s.confirmed, key)
		return nil
	}

	s.selections[key] = quantity
	if line.AlreadyRefunded {
		if _, ok := s.confirmed[key]; !ok {
			s.pending[key] = struct{}{}
		}
	}
	return nil
}

// ConfirmCorrection moves a pending correction to confirmed and returns the prior
// refund the caller must have shown the operator. Confirming twice is a no-op.
func (s *Session) ConfirmCorrection(key LineKey) (PriorRefund, error) {
	line, ok := s.lines[key]
	if !ok {
		return PriorRefund{}, ErrUnknownLine
	}
	if _, ok := s.confirmed[key]; ok {
		return line.PriorRefund(), nil
	}
	if _, ok := s.pending[key]; !ok {
		return PriorRefund{}, ErrNoPendingCorrection
	}
	delete(s.pending, key)
	s.confirmed[key] = struct{}{}
	return line.PriorRefund(), nil
}

// CancelCorrection drops the selection and both correction flags for key.
func (s *Session) CancelCorrection(key LineKey) error {
	if _, ok := s.lines[key]; !ok {
		return ErrUnknownLine
	}
	delete(s.selections, key)
	delete(s.pending, key)
	delete(s.confirmed, key)
	return nil
}

// SetMissing records how many items of a catalog type were not returned, clamped to [0, 99].
func (s *Session) SetMissing(typeID string, count int) {
	if count < 0 {
		count = 0
	}
	if count > MaxMissingCount {
		count = MaxMissingCount
	}
	if count == 0 {
		delete(s.missing, typeID)
		return
	}
	s.missing[typeID] = count
}

// SetMode switches the settlement mode. Selections and missing counts are untouched.
func (s *Session) SetMode(mode SettlementMode) error {
	if !mode.Valid() {
		return ErrInvalidMode
	}
	s.Mode = mode
	return nil
}

func (s *Session) Selected(key LineKey) int {
	return s.selections[key]
}

func (s *Session) IsPending(key LineKey) bool {
	_, ok := s.pending[key]
	return ok
}

func (s *Session) IsConfirmed(key LineKey) bool {
	_, ok := s.confirmed[key]
	return ok
}

// Selections returns a copy of the selected quantities.
func (s *Session) Selections() map[LineKey]int {
	out := make(map[LineKey]int, len(s.selections))
	for k, v := range s.selections {
		out[k] = v
	}
	return out
}

func (s *Session) PendingCorrections() []LineKey {
	return sortedKeys(s.pending)
}

func (s *Session) ConfirmedCorrections() []LineKey {
	return sortedKeys(s.confirmed)
}

// MissingCounts returns a copy of the missing item counts.
func (s *Session) MissingCounts() map[string]int {
	out := make(map[string]int, len(s.missing))
	for k, v := range s.missing {
		out[k] = v
	}
	return out
}

// eligibleLines returns the selections that count towards credit, ordered by key.
func (s *Session) eligibleLines() []CommitLine {
	return s.commitLines(false)
}

// selectedLines is eligibleLines plus pending corrections.
func (s *Session) selectedLines() []CommitLine {
	return s.commitLines(true)
}

func (s *Session) commitLines(includePending bool) []CommitLine {
	keys := make([]LineKey, 0, len(s.selections))
	for k, qty := range s.selections {
		if qty <= 0 {
			continue
		}
		if _, pending := s.pending[k]; pending && !includePending {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return lessKey(keys[i], keys[j]) })

	out := make([]CommitLine, 0, len(keys))
	for _, k := range keys {
		line := s.lines[k]
		qty := s.selections[k]
		out = append(out, CommitLine{
			OrderID:    k.OrderID,
			ItemID:     k.ItemID,
			Quantity:   qty,
			Amount:     line.UnitAmount.Mul(decimalFromInt(qty)).Round(2),
			Correction: line.AlreadyRefunded,
		})
	}
	return out
}

// unconfirmedCorrection returns the first pending correction that still has a quantity.
func (s *Session) unconfirmedCorrection() (LineKey, bool) {
	for _, k := range sortedKeys(s.pending) {
		if s.selections[k] > 0 {
			return k, true
		}
	}
	return LineKey{}, false
}

func sortedKeys(set map[LineKey]struct{}) []LineKey {
	out := make([]LineKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return lessKey(out[i], out[j]) })
	return out
}
