package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/atelier-goods/api/internal/platform/httpx"
	"github.com/atelier-goods/api/internal/services"
)

type createOrderRequest struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Currency string `json:"currency"`
}

type lineItemRequest struct {
	VariantID string `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type setAddressesRequest struct {
	Email       string          `json:"email"`
	BillAddress *addressPayload `json:"bill_address"`
	ShipAddress *addressPayload `json:"ship_address"`
}

type selectShippingRateRequest struct {
	ShipmentID     string `json:"shipment_id"`
	ShippingRateID string `json:"shipping_rate_id"`
}

type addPaymentRequest struct {
	Amount int64 `json:"amount"`
}

// OrderHandlers exposes the order lifecycle over HTTP.
type OrderHandlers struct {
	orders  services.OrderService
	limiter rateLimiter
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{orders: orders}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// OrderHandlerOption customises handler construction.
type OrderHandlerOption func(*OrderHandlers)

// WithCreateRateLimiter throttles order creation per client IP.
func WithCreateRateLimiter(limiter rateLimiter) OrderHandlerOption {
	return func(h *OrderHandlers) { h.limiter = limiter }
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.createOrder)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}/line_items", h.addLineItem)
	r.Delete("/{orderID}/line_items", h.removeLineItem)
	r.Post("/{orderID}:empty", h.emptyOrder)
	r.Put("/{orderID}/addresses", h.setAddresses)
	r.Post("/{orderID}/selected_rate", h.selectShippingRate)
	r.Post("/{orderID}/payments", h.addPayment)
	r.Post("/{orderID}/payments:process", h.processPayments)
	r.Post("/{orderID}/shipments/{shipmentID}:ship", h.shipShipment)
	r.Post("/{orderID}:next", h.nextStep)
	r.Post("/{orderID}:advance", h.advance)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.Post("/{orderID}:resume", h.resumeOrder)
	r.Post("/{orderID}:approve", h.approveOrder)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.Unavailable("order_service_unavailable", "order service unavailable"))
		return
	}
	if h.limiter != nil && !h.limiter.Allow(r.RemoteAddr) {
		httpx.WriteError(ctx, w, httpx.TooManyRequests("rate_limited", "too many orders created, slow down"))
		return
	}

	var req createOrderRequest
	if r.ContentLength > 0 {
		if err := decodeJSONBody(r, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
			return
		}
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID:   strings.TrimSpace(req.UserID),
		Email:    strings.TrimSpace(req.Email),
		Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) addLineItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	var req lineItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	order, err := h.orders.AddLineItem(ctx, services.AddLineItemCommand{
		OrderID:   orderID,
		VariantID: strings.TrimSpace(req.VariantID),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) removeLineItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	var req lineItemRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	order, err := h.orders.RemoveLineItem(ctx, services.RemoveLineItemCommand{
		OrderID:   orderID,
		VariantID: strings.TrimSpace(req.VariantID),
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) emptyOrder(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, h.orders.Empty)
}

func (h *OrderHandlers) setAddresses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	var req setAddressesRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	order, err := h.orders.SetAddresses(ctx, services.SetAddressesCommand{
		OrderID:     orderID,
		Email:       strings.TrimSpace(req.Email),
		BillAddress: addressFromPayload(req.BillAddress),
		ShipAddress: addressFromPayload(req.ShipAddress),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) selectShippingRate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	var req selectShippingRateRequest
	if err := decodeJSONBody(r, &req); err != nil {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
		return
	}

	order, err := h.orders.SelectShippingRate(ctx, services.SelectShippingRateCommand{
		OrderID:        orderID,
		ShipmentID:     strings.TrimSpace(req.ShipmentID),
		ShippingRateID: strings.TrimSpace(req.ShippingRateID),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) addPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	var req addPaymentRequest
	if r.ContentLength > 0 {
		if err := decodeJSONBody(r, &req); err != nil {
			httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", err.Error()))
			return
		}
	}

	order, err := h.orders.AddPayment(ctx, services.AddPaymentCommand{
		OrderID: orderID,
		Amount:  req.Amount,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) processPayments(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, h.orders.ProcessPayments)
}

func (h *OrderHandlers) shipShipment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}
	shipmentID := strings.TrimSpace(chi.URLParam(r, "shipmentID"))
	if shipmentID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "shipment id is required"))
		return
	}

	order, err := h.orders.Ship(ctx, services.ShipShipmentCommand{
		OrderID:    orderID,
		ShipmentID: shipmentID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) nextStep(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, h.orders.Next)
}

func (h *OrderHandlers) advance(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, h.orders.Advance)
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, h.orders.Cancel)
}

func (h *OrderHandlers) resumeOrder(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, h.orders.Resume)
}

func (h *OrderHandlers) approveOrder(w http.ResponseWriter, r *http.Request) {
	h.mutateOrder(w, r, h.orders.Approve)
}

func (h *OrderHandlers) mutateOrder(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, orderID string) (services.Order, error)) {
	ctx := r.Context()
	orderID, ok := h.requireOrderID(w, r)
	if !ok {
		return
	}

	order, err := fn(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) requireOrderID(w http.ResponseWriter, r *http.Request) (string, bool) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.Unavailable("order_service_unavailable", "order service unavailable"))
		return "", false
	}
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.BadRequest("invalid_request", "order id is required"))
		return "", false
	}
	return orderID, true
}
