package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/edonhq/gateway/internal/apperror"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// ErrorResponse is the standard JSON error envelope. Detail is
// the only field populated for KindInternal, so an internal failure never
// carries more than the fixed generic message.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Field string `json:"field,omitempty"`
	RetryAfterSeconds int `json:"retry_after_seconds,omitempty"`
}

// RespondError writes a plain string error, for handler-local failures that
// never reach a typed *apperror.HTTPError (e.g. chi URL param parsing).
func RespondError(w http.ResponseWriter, status int, detail string) {
	Respond(w, status, ErrorResponse{Detail: detail})
}

// RespondTypedError writes the response for a typed *apperror.HTTPError,
// the one place status codes are derived from Kind.
func RespondTypedError(w http.ResponseWriter, err *apperror.HTTPError) {
	if err.Kind == apperror.KindRateLimited && err.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(err.RetryAfterSeconds))
	}
	Respond(w, err.Status(), ErrorResponse{
		Detail: err.Message,
		Field: err.Field,
		RetryAfterSeconds: err.RetryAfterSeconds,
	})
}

// RespondInternalError logs the real error server-side and writes the
// fixed generic body Step 6 and require: no traceback, file
// path, or library name may ever reach the client.
func RespondInternalError(w http.ResponseWriter, logger *slog.Logger, context string, err error) {
	logger.Error(context, "error", err)
	Respond(w, http.StatusInternalServerError, ErrorResponse{Detail: "Internal server error"})
}

// WriteError inspects err and writes the right response: typed HTTP errors
// pass through with their own status, anything else becomes a generic 500.
func WriteError(w http.ResponseWriter, logger *slog.Logger, context string, err error) {
	if he, ok := apperror.As(err); ok {
		RespondTypedError(w, he)
		return
	}
	RespondInternalError(w, logger, context, err)
}
