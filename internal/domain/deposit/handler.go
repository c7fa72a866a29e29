package deposit

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dispatchly/dispatch-api/internal/middleware"
	"github.com/dispatchly/dispatch-api/internal/pkg/errorhandler"
	"github.com/dispatchly/dispatch-api/internal/pkg/response"
	"github.com/dispatchly/dispatch-api/internal/pkg/validator"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// History handles GET /history
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	customerID := q.Get("customer_id")
	if customerID == "" {
		response.ValidationError(w, map[string]string{"customer_id": "This field is required"})
		return
	}

	includeCurrent := false
	if v := q.Get("include_current"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			response.ValidationError(w, map[string]string{"include_current": "Must be true or false"})
			return
		}
		includeCurrent = b
	}

	lines, err := h.svc.LoadHistory(r.Context(), customerID, q.Get("exclude_order_id"), includeCurrent)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	response.OK(w, lines)
}

// Compute handles POST /compute
func (h *Handler) Compute(w http.ResponseWriter, r *http.Request) {
	snap, ok := decodeSnapshot(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Compute(r.Context(), snap)
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}

	response.OK(w, result)
}

// Commit handles POST /commit
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	operatorID := middleware.GetOperatorID(r.Context())
	if operatorID == uuid.Nil {
		response.Unauthorized(w, "unauthorized")
		return
	}

	snap, ok := decodeSnapshot(w, r)
	if !ok {
		return
	}

	result, err := h.svc.Commit(r.Context(), snap, CommitMetadata{OperatorID: operatorID.String()})
	if err != nil {
		h.writeError(w, r, err, result)
		return
	}

	response.OK(w, result)
}

// Catalog handles GET /catalog
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Catalog(r.Context())
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	response.OK(w, items)
}

// GetCommit handles GET /commits/{fingerprint}
func (h *Handler) GetCommit(w http.ResponseWriter, r *http.Request) {
	rec, err := h.svc.FindCommit(r.Context(), chi.URLParam(r, "fingerprint"))
	if err != nil {
		h.writeError(w, r, err, nil)
		return
	}
	response.OK(w, rec)
}

func decodeSnapshot(w http.ResponseWriter, r *http.Request) (SessionSnapshot, bool) {
	var snap SessionSnapshot
	if err := response.DecodeJSON(r.Body, &snap); err != nil {
		response.BadRequest(w, "invalid JSON body")
		return snap, false
	}
	if errs := validator.Validate(&snap); errs != nil {
		response.ValidationError(w, errs)
		return snap, false
	}
	return snap, true
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error, result *CommitResult) {
	ctx := r.Context()

	var (
		invalid  *ValidationError
		confirm  *ConfirmationRequiredError
		conflict *ConflictError
		persist  *PersistenceError
	)

	switch {
	case errors.As(err, &invalid):
		details := map[string]string{"reason": invalid.Reason}
		if invalid.Line != nil {
			details["line_id"] = invalid.Line.String()
		}
		response.ValidationError(w, details)

	case errors.As(err, &confirm):
		details := map[string]string{
			"line_id":           confirm.Line.String(),
			"refunded_quantity": strconv.Itoa(confirm.Prior.Quantity),
		}
		if confirm.Prior.Driver != nil {
			details["refund_driver"] = *confirm.Prior.Driver
		}
		if confirm.Prior.Date != nil {
			details["refund_date"] = confirm.Prior.Date.Format(time.RFC3339)
		}
		response.ErrorWithDetails(w, http.StatusUnprocessableEntity, "CONFIRMATION_REQUIRED",
			"Line was already refunded; confirm the correction first", details)

	case errors.As(err, &conflict):
		response.Conflict(w, "Line was settled by another commit; reload history", map[string]string{
			"line_id":   conflict.Line.String(),
			"selected":  strconv.Itoa(conflict.Selected),
			"remaining": strconv.Itoa(conflict.Remaining),
		})

	case errors.As(err, &persist):
		code, message := "PERSISTENCE_ERROR", "Commit could not be saved; retry the same selection"
		if persist.Partial() {
			code, message = "PARTIAL_COMMIT", "Commit was only partly saved; retry the same selection"
			if result != nil && result.RolledBack {
				message = "Commit failed part-way and was undone; no line was refunded"
			}
		}
		errorhandler.HandleErrorWithData(ctx, w, http.StatusInternalServerError, code, message, result, err)

	case errors.Is(err, ErrHistoryUnavailable):
		errorhandler.HandleError(ctx, w, http.StatusServiceUnavailable, "HISTORY_UNAVAILABLE",
			"Deposit history could not be loaded", err)

	case errors.Is(err, ErrOrderUnavailable):
		errorhandler.HandleError(ctx, w, http.StatusServiceUnavailable, "ORDER_UNAVAILABLE",
			"Order total could not be loaded", err)

	case errors.Is(err, ErrCommitNotFound):
		response.NotFound(w, "commit not found")

	default:
		errorhandler.HandleError(ctx, w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", err)
	}
}

func (h *Handler) Routes(authMiddleware func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(authMiddleware)
	r.Use(middleware.RequireSettler())
	r.Get("/history", h.History)
	r.Get("/catalog", h.Catalog)
	r.Get("/commits/{fingerprint}", h.GetCommit)
	r.Post("/compute", h.Compute)
	r.Post("/commit", h.Commit)
	return r
}
