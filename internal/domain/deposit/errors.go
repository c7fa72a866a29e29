package deposit

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrHistoryUnavailable is returned when deposit history cannot be read.
	// It is distinct from an empty history.
	ErrHistoryUnavailable = errors.New("deposit history unavailable")

	ErrUnknownLine          = errors.New("unknown deposit line")
	ErrNoPendingCorrection  = errors.New("no pending correction for line")
	ErrInvalidMode          = errors.New("invalid settlement mode")
	ErrCommitNotFound       = errors.New("commit record not found")
	ErrDuplicateFingerprint = errors.New("commit fingerprint already recorded")
	ErrOrderUnavailable     = errors.New("order service unavailable")

	ErrInternal = errors.New("internal error")
)

// Validation reasons.
const (
	ReasonNoItemsSelected           = "no_items_selected"
	ReasonOrderTotalRequired        = "order_total_required"
	ReasonCorrectionExceedsOriginal = "correction_exceeds_original_quantity"
	ReasonUnknownLine               = "unknown_line"
	ReasonInvalidMode               = "invalid_mode"
)

// ValidationError is a caller error that is shown inline and never treated as a fault.
type ValidationError struct {
	Reason string
	Line   *LineKey
}

func (e *ValidationError) Error() string {
	if e.Line != nil {
		return fmt.Sprintf("validation failed: %s (line %s)", e.Reason, e.Line)
	}
	return "validation failed: " + e.Reason
}

// ConfirmationRequiredError means an already refunded line is selected but the
// correction was never confirmed. Prior holds what must be shown to the operator.
type ConfirmationRequiredError struct {
	Line  LineKey
	Prior PriorRefund
}

func (e *ConfirmationRequiredError) Error() string {
	return fmt.Sprintf("correction of line %s requires confirmation", e.Line)
}

// ConflictError means another commit consumed the line since the session was opened.
type ConflictError struct {
	Line      LineKey
	Selected  int
	Remaining int
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("line %s already settled elsewhere: selected %d, remaining %d", e.Line, e.Selected, e.Remaining)
}

// PersistenceError reports a commit that could not be fully written.
type PersistenceError struct {
	Failed    []LineKey
	Succeeded []LineKey
	Err       error
}

func (e *PersistenceError) Error() string {
	if len(e.Failed) == 0 {
		return fmt.Sprintf("persist commit: %v", e.Err)
	}
	failed := make([]string, 0, len(e.Failed))
	for _, k := range e.Failed {
		failed = append(failed, k.String())
	}
	return fmt.Sprintf("persist commit: lines [%s] failed: %v", strings.Join(failed, ", "), e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// Partial reports whether some line updates went through before the failure.
func (e *PersistenceError) Partial() bool {
	return len(e.Succeeded) > 0 && len(e.Failed) > 0
}
