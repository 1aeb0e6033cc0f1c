package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/atelier-goods/api/internal/platform/httpx"
	"github.com/atelier-goods/api/internal/services"
)

const maxRequestBodySize = 64 * 1024

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// decodeJSONBody parses the request body into dst, rejecting unknown fields
// and oversized payloads.
func decodeJSONBody(r *http.Request, dst any) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	body := http.MaxBytesReader(nil, r.Body, maxRequestBodySize)
	defer func() { _ = r.Body.Close() }()

	decoder := json.NewDecoder(body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

// writeServiceError maps service sentinel errors onto the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrOrderNotFound),
		errors.Is(err, services.ErrReturnNotFound),
		errors.Is(err, services.ErrReturnOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("not_found", err.Error()))
	case errors.Is(err, services.ErrOrderVariantNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("variant_not_found", err.Error()))
	case errors.Is(err, services.ErrOrderLineItemNotFound):
		httpx.WriteError(ctx, w, httpx.NotFound("line_item_not_found", err.Error()))
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrReturnInvalidInput):
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
	case errors.Is(err, services.ErrOrderStateTransition),
		errors.Is(err, services.ErrOrderShipped),
		errors.Is(err, services.ErrReturnNotAuthorized),
		errors.Is(err, services.ErrReturnNoShippedUnits):
		httpx.WriteError(ctx, w, httpx.Conflict("invalid_state", err.Error()))
	case errors.Is(err, services.ErrOrderInsufficientStock):
		httpx.WriteError(ctx, w, httpx.Unprocessable("insufficient_stock", err.Error()))
	case errors.Is(err, services.ErrOrderNoShippingRates):
		httpx.WriteError(ctx, w, httpx.Unprocessable("no_shipping_rates", err.Error()))
	case errors.Is(err, services.ErrOrderPaymentFailed):
		httpx.WriteError(ctx, w, httpx.PaymentRequired("payment_declined", err.Error()))
	default:
		httpx.WriteError(ctx, w, httpx.Internal())
	}
}
