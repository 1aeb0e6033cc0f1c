// Package httpx carries the canonical JSON error envelope for the API.
package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/atelier-goods/api/internal/platform/requestctx"
)

// Error is the JSON error envelope returned by every failing endpoint.
// Request and trace identifiers are filled in from the context at write
// time.
type Error struct {
	Code    string
	Message string
	Status  int
}

// NewError constructs an Error with the provided code, message and status.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    sanitize(code, 80),
		Message: sanitize(message, 512),
		Status:  status,
	}
}

// The statuses the storefront API actually returns, as named constructors.

// BadRequest flags malformed or missing input.
func BadRequest(code, message string) Error {
	return NewError(code, message, http.StatusBadRequest)
}

// NotFound flags a missing order, return or catalog record.
func NotFound(code, message string) Error {
	return NewError(code, message, http.StatusNotFound)
}

// Conflict flags an operation the targeted state does not permit.
func Conflict(code, message string) Error {
	return NewError(code, message, http.StatusConflict)
}

// Unprocessable flags a well-formed request the domain cannot satisfy,
// such as insufficient stock or an unservable ship address.
func Unprocessable(code, message string) Error {
	return NewError(code, message, http.StatusUnprocessableEntity)
}

// PaymentRequired flags a gateway decline.
func PaymentRequired(code, message string) Error {
	return NewError(code, message, http.StatusPaymentRequired)
}

// TooManyRequests flags a throttled caller.
func TooManyRequests(code, message string) Error {
	return NewError(code, message, http.StatusTooManyRequests)
}

// Unavailable flags a collaborator that is not wired or not reachable.
func Unavailable(code, message string) Error {
	return NewError(code, message, http.StatusServiceUnavailable)
}

// Internal is the catch-all envelope; the message is fixed so internal
// detail never leaks to the client.
func Internal() Error {
	return NewError("internal_error", "internal server error", http.StatusInternalServerError)
}

// WriteError writes the structured error as JSON, attaching the request
// and trace identifiers found on the context.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}

	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if requestID := sanitize(middleware.GetReqID(ctx), 80); requestID != "" {
		payload["request_id"] = requestID
	}
	if traceID := sanitize(requestctx.TraceID(ctx), 64); traceID != "" {
		payload["trace_id"] = traceID
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func sanitize(value string, limit int) string {
	if limit <= 0 {
		limit = 256
	}
	value = strings.ReplaceAll(value, "\n", " ")
	value = strings.ReplaceAll(value, "\r", " ")
	value = strings.TrimSpace(value)
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
