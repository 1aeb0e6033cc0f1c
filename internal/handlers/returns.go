package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-goods/api/internal/platform/httpx"
	"github.com/atelier-goods/api/internal/services"
)

type createReturnRequest struct {
	OrderID         string `json:"order_id"`
	StockLocationID string `json:"stock_location_id"`
	Amount          int64  `json:"amount"`
	Reason          string `json:"reason"`
}

type returnVariantRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

// ReturnHandlers exposes return authorization management over HTTP.
type ReturnHandlers struct {
	returns services.ReturnService
}

// NewReturnHandlers constructs a new ReturnHandlers instance.
func NewReturnHandlers(returns services.ReturnService) *ReturnHandlers {
	return &ReturnHandlers{returns: returns}
}

// Routes registers the /returns endpoints.
func (h *ReturnHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createReturn)
	r.Put("/{rmaID}/variants", h.setVariant)
	r.Post("/{rmaID}:receive", h.receiveReturn)
	r.Post("/{rmaID}:cancel", h.cancelReturn)
}

func (h *ReturnHandlers) createReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.returns == nil {
		httpx.WriteError(ctx, w, httpx.Unavailable("return_service_unavailable", "return service unavailable"))
		return
	}

	var req createReturnRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	rma, err := h.returns.CreateReturnAuthorization(ctx, services.CreateReturnAuthorizationCommand{
		OrderID:         strings.TrimSpace(req.OrderID),
		StockLocationID: strings.TrimSpace(req.StockLocationID),
		Amount:          req.Amount,
		Reason:          strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildReturnAuthorizationPayload(rma))
}

func (h *ReturnHandlers) setVariant(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	rmaID, ok := h.requireRMAID(w, r)
	if !ok {
		return
	}

	var req returnVariantRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	rma, err := h.returns.AddVariant(ctx, services.AddReturnVariantCommand{
		ReturnAuthorizationID: rmaID,
		VariantID:             strings.TrimSpace(req.VariantID),
		Quantity:              req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildReturnAuthorizationPayload(rma))
}

func (h *ReturnHandlers) receiveReturn(w http.ResponseWriter, r *http.Request) {
	h.mutateReturn(w, r, h.returns.Receive)
}

func (h *ReturnHandlers) cancelReturn(w http.ResponseWriter, r *http.Request) {
	h.mutateReturn(w, r, h.returns.CancelReturn)
}

func (h *ReturnHandlers) mutateReturn(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, rmaID string) (services.ReturnAuthorization, error)) {
	ctx := r.Context()
	rmaID, ok := h.requireRMAID(w, r)
	if !ok {
		return
	}

	rma, err := fn(ctx, rmaID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildReturnAuthorizationPayload(rma))
}

func (h *ReturnHandlers) requireRMAID(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.returns == nil {
		httpx.WriteError(ctx, w, httpx.Unavailable("return_service_unavailable", "return service unavailable"))
		return "", false
	}
	rmaID := strings.TrimSpace(chi.URLParam(r, "rmaID"))
	if rmaID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "return authorization id is required"))
		return "", false
	}
	return rmaID, true
}
