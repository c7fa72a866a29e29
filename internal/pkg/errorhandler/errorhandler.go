package errorhandler

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/dispatchly/dispatch-api/internal/pkg/logger"
	"github.com/dispatchly/dispatch-api/internal/pkg/response"
)

// HandleError logs the failure with the request id and writes the error envelope.
// Client errors (4xx) are logged at warn level, everything else at error.
func HandleError(ctx context.Context, w http.ResponseWriter, status int, code, message string, err error) {
	HandleErrorWithDetails(ctx, w, status, code, message, nil, err)
}

// HandleErrorWithDetails is HandleError with a details map in the envelope
func HandleErrorWithDetails(ctx context.Context, w http.ResponseWriter, status int, code, message string, details map[string]string, err error) {
	logEvent(ctx, status, code, err).
		Interface("error_details", details).
		Msg("Request error")

	response.ErrorWithDetails(w, status, code, message, details)
}

// HandleErrorWithData writes an error envelope that still carries a payload.
func HandleErrorWithData(ctx context.Context, w http.ResponseWriter, status int, code, message string, data interface{}, err error) {
	logEvent(ctx, status, code, err).Msg("Request error")

	response.ErrorWithData(w, status, code, message, data)
}

// HandlePanicError logs a recovered panic and answers with a plain 500.
// The stack trace stays in the log.
func HandlePanicError(ctx context.Context, w http.ResponseWriter, panicErr interface{}, stackTrace string) {
	logger.FromContext(ctx).Error().
		Str("request_id", logger.RequestID(ctx)).
		Interface("panic_error", panicErr).
		Str("panic_stack", stackTrace).
		Msg("Request panic error")

	response.InternalError(w)
}

func logEvent(ctx context.Context, status int, code string, err error) *zerolog.Event {
	l := logger.FromContext(ctx)
	event := l.Error()
	if status < http.StatusInternalServerError {
		event = l.Warn()
	}
	event = event.
		Str("request_id", logger.RequestID(ctx)).
		Str("error_code", code).
		Int("status_code", status)
	if err != nil {
		event = event.Err(err)
	}
	return event
}
