package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/atelier-goods/api/internal/domain"
	"github.com/atelier-goods/api/internal/services"
)

type stubOrderService struct {
	createFn     func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error)
	getFn        func(ctx context.Context, orderID string) (services.Order, error)
	addLineFn    func(ctx context.Context, cmd services.AddLineItemCommand) (services.Order, error)
	removeLineFn func(ctx context.Context, cmd services.RemoveLineItemCommand) (services.Order, error)
	emptyFn      func(ctx context.Context, orderID string) (services.Order, error)
	addressesFn  func(ctx context.Context, cmd services.SetAddressesCommand) (services.Order, error)
	selectRateFn func(ctx context.Context, cmd services.SelectShippingRateCommand) (services.Order, error)
	addPaymentFn func(ctx context.Context, cmd services.AddPaymentCommand) (services.Order, error)
	processFn    func(ctx context.Context, orderID string) (services.Order, error)
	shipFn       func(ctx context.Context, cmd services.ShipShipmentCommand) (services.Order, error)
	nextFn       func(ctx context.Context, orderID string) (services.Order, error)
	advanceFn    func(ctx context.Context, orderID string) (services.Order, error)
	cancelFn     func(ctx context.Context, orderID string) (services.Order, error)
	resumeFn     func(ctx context.Context, orderID string) (services.Order, error)
	approveFn    func(ctx context.Context, orderID string) (services.Order, error)
}

var errStubNotWired = errors.New("stub method not wired")

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
	if s.createFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.createFn(ctx, cmd)
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.Order, error) {
	if s.getFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.getFn(ctx, orderID)
}

func (s *stubOrderService) AddLineItem(ctx context.Context, cmd services.AddLineItemCommand) (services.Order, error) {
	if s.addLineFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.addLineFn(ctx, cmd)
}

func (s *stubOrderService) RemoveLineItem(ctx context.Context, cmd services.RemoveLineItemCommand) (services.Order, error) {
	if s.removeLineFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.removeLineFn(ctx, cmd)
}

func (s *stubOrderService) Empty(ctx context.Context, orderID string) (services.Order, error) {
	if s.emptyFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.emptyFn(ctx, orderID)
}

func (s *stubOrderService) SetAddresses(ctx context.Context, cmd services.SetAddressesCommand) (services.Order, error) {
	if s.addressesFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.addressesFn(ctx, cmd)
}

func (s *stubOrderService) SelectShippingRate(ctx context.Context, cmd services.SelectShippingRateCommand) (services.Order, error) {
	if s.selectRateFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.selectRateFn(ctx, cmd)
}

func (s *stubOrderService) AddPayment(ctx context.Context, cmd services.AddPaymentCommand) (services.Order, error) {
	if s.addPaymentFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.addPaymentFn(ctx, cmd)
}

func (s *stubOrderService) ProcessPayments(ctx context.Context, orderID string) (services.Order, error) {
	if s.processFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.processFn(ctx, orderID)
}

func (s *stubOrderService) Ship(ctx context.Context, cmd services.ShipShipmentCommand) (services.Order, error) {
	if s.shipFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.shipFn(ctx, cmd)
}

func (s *stubOrderService) Next(ctx context.Context, orderID string) (services.Order, error) {
	if s.nextFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.nextFn(ctx, orderID)
}

func (s *stubOrderService) Advance(ctx context.Context, orderID string) (services.Order, error) {
	if s.advanceFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.advanceFn(ctx, orderID)
}

func (s *stubOrderService) Cancel(ctx context.Context, orderID string) (services.Order, error) {
	if s.cancelFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.cancelFn(ctx, orderID)
}

func (s *stubOrderService) Resume(ctx context.Context, orderID string) (services.Order, error) {
	if s.resumeFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.resumeFn(ctx, orderID)
}

func (s *stubOrderService) Approve(ctx context.Context, orderID string) (services.Order, error) {
	if s.approveFn == nil {
		return services.Order{}, errStubNotWired
	}
	return s.approveFn(ctx, orderID)
}

type stubReturnService struct {
	createFn     func(ctx context.Context, cmd services.CreateReturnAuthorizationCommand) (services.ReturnAuthorization, error)
	addVariantFn func(ctx context.Context, cmd services.AddReturnVariantCommand) (services.ReturnAuthorization, error)
	receiveFn    func(ctx context.Context, rmaID string) (services.ReturnAuthorization, error)
	cancelFn     func(ctx context.Context, rmaID string) (services.ReturnAuthorization, error)
}

func (s *stubReturnService) CreateReturnAuthorization(ctx context.Context, cmd services.CreateReturnAuthorizationCommand) (services.ReturnAuthorization, error) {
	if s.createFn == nil {
		return services.ReturnAuthorization{}, errStubNotWired
	}
	return s.createFn(ctx, cmd)
}

func (s *stubReturnService) AddVariant(ctx context.Context, cmd services.AddReturnVariantCommand) (services.ReturnAuthorization, error) {
	if s.addVariantFn == nil {
		return services.ReturnAuthorization{}, errStubNotWired
	}
	return s.addVariantFn(ctx, cmd)
}

func (s *stubReturnService) Receive(ctx context.Context, rmaID string) (services.ReturnAuthorization, error) {
	if s.receiveFn == nil {
		return services.ReturnAuthorization{}, errStubNotWired
	}
	return s.receiveFn(ctx, rmaID)
}

func (s *stubReturnService) CancelReturn(ctx context.Context, rmaID string) (services.ReturnAuthorization, error) {
	if s.cancelFn == nil {
		return services.ReturnAuthorization{}, errStubNotWired
	}
	return s.cancelFn(ctx, rmaID)
}

func newTestServer(orders services.OrderService, returns services.ReturnService, orderOpts ...OrderHandlerOption) *httptest.Server {
	router := NewRouter(
		WithOrderRoutes(NewOrderHandlers(orders, orderOpts...).Routes),
		WithReturnRoutes(NewReturnHandlers(returns).Routes),
	)
	return httptest.NewServer(router)
}

func doRequest(t *testing.T, server *httptest.Server, method, path, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, server.URL+path, reader)
	if err != nil {
		t.Fatalf("failed building request: %v", err)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := server.Client().Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("failed decoding response body: %v", err)
	}
	return resp, payload
}

func TestCreateOrderEndpoint(t *testing.T) {
	var captured services.CreateOrderCommand
	orders := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID:       "ord-1",
				Number:   "R000000001",
				State:    domain.OrderStateCart,
				Currency: "USD",
				Email:    cmd.Email,
			}, nil
		},
	}
	server := newTestServer(orders, &stubReturnService{})
	defer server.Close()

	resp, payload := doRequest(t, server, http.MethodPost, "/api/v1/orders", `{"email":"shopper@example.com","currency":"usd"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if captured.Email != "shopper@example.com" || captured.Currency != "USD" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if payload["id"] != "ord-1" || payload["number"] != "R000000001" || payload["state"] != "cart" {
		t.Fatalf("unexpected payload: %v", payload)
	}
}

func TestCreateOrderAcceptsEmptyBody(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			return services.Order{ID: "ord-1", State: domain.OrderStateCart}, nil
		},
	}
	server := newTestServer(orders, &stubReturnService{})
	defer server.Close()

	resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/orders", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 for empty body, got %d", resp.StatusCode)
	}
}

func TestCreateOrderRejectsMalformedBody(t *testing.T) {
	server := newTestServer(&stubOrderService{}, &stubReturnService{})
	defer server.Close()

	resp, payload := doRequest(t, server, http.MethodPost, "/api/v1/orders", `{"email":`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	if payload["error"] != "invalid_request" {
		t.Fatalf("unexpected error code: %v", payload["error"])
	}
}

func TestCreateOrderRateLimited(t *testing.T) {
	orders := &stubOrderService{
		createFn: func(ctx context.Context, cmd services.CreateOrderCommand) (services.Order, error) {
			return services.Order{ID: "ord-1"}, nil
		},
	}
	server := newTestServer(orders, &stubReturnService{}, WithCreateThrottle(1, time.Minute))
	defer server.Close()

	resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/orders", "")
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected first request to pass, got %d", resp.StatusCode)
	}
	resp, payload := doRequest(t, server, http.MethodPost, "/api/v1/orders", "")
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 on second request, got %d", resp.StatusCode)
	}
	if payload["error"] != "rate_limited" {
		t.Fatalf("unexpected error code: %v", payload["error"])
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	orders := &stubOrderService{
		getFn: func(ctx context.Context, orderID string) (services.Order, error) {
			if orderID != "ord-1" {
				return services.Order{}, services.ErrOrderNotFound
			}
			return services.Order{
				ID:        "ord-1",
				Number:    "R000000001",
				State:     domain.OrderStateDelivery,
				ItemTotal: 2000,
				Total:     2700,
				LineItems: []domain.LineItem{
					{ID: "li-1", VariantID: "v-1", Quantity: 2, Price: 1000},
				},
				Shipments: []domain.Shipment{
					{
						ID:    "sh-1",
						State: domain.ShipmentPending,
						Cost:  700,
						ShippingRates: []domain.ShippingRate{
							{ID: "sr-1", ShippingMethodID: "m-1", Cost: 700, Selected: true},
						},
					},
				},
			}, nil
		},
	}
	server := newTestServer(orders, &stubReturnService{})
	defer server.Close()

	resp, payload := doRequest(t, server, http.MethodGet, "/api/v1/orders/ord-1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	lineItems, ok := payload["line_items"].([]any)
	if !ok || len(lineItems) != 1 {
		t.Fatalf("unexpected line items: %v", payload["line_items"])
	}
	li := lineItems[0].(map[string]any)
	if li["amount"] != float64(2000) {
		t.Fatalf("expected line amount 2000, got %v", li["amount"])
	}
	shipments := payload["shipments"].([]any)
	sh := shipments[0].(map[string]any)
	rates := sh["shipping_rates"].([]any)
	if rates[0].(map[string]any)["selected"] != true {
		t.Fatalf("expected selected rate in payload: %v", rates)
	}

	resp, payload = doRequest(t, server, http.MethodGet, "/api/v1/orders/ord-404", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown order, got %d", resp.StatusCode)
	}
	if payload["error"] != "not_found" {
		t.Fatalf("unexpected error code: %v", payload["error"])
	}
}

func TestAddLineItemEndpoint(t *testing.T) {
	var captured services.AddLineItemCommand
	orders := &stubOrderService{
		addLineFn: func(ctx context.Context, cmd services.AddLineItemCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID}, nil
		},
	}
	server := newTestServer(orders, &stubReturnService{})
	defer server.Close()

	resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/orders/ord-1/line_items", `{"variant_id":" v-1 ","quantity":3}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if captured.OrderID != "ord-1" || captured.VariantID != "v-1" || captured.Quantity != 3 {
		t.Fatalf("unexpected command: %+v", captured)
	}

	resp, payload := doRequest(t, server, http.MethodPost, "/api/v1/orders/ord-1/line_items", `{"variant_id":"v-1","bogus":true}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", resp.StatusCode)
	}
	if payload["error"] != "invalid_request" {
		t.Fatalf("unexpected error code: %v", payload["error"])
	}
}

func TestOrderVerbEndpoints(t *testing.T) {
	var gotVerb, gotID string
	record := func(verb string) func(ctx context.Context, orderID string) (services.Order, error) {
		return func(ctx context.Context, orderID string) (services.Order, error) {
			gotVerb = verb
			gotID = orderID
			return services.Order{ID: orderID}, nil
		}
	}
	orders := &stubOrderService{
		emptyFn:   record("empty"),
		nextFn:    record("next"),
		advanceFn: record("advance"),
		cancelFn:  record("cancel"),
		resumeFn:  record("resume"),
		approveFn: record("approve"),
	}
	server := newTestServer(orders, &stubReturnService{})
	defer server.Close()

	verbs := []string{"empty", "next", "advance", "cancel", "resume", "approve"}
	for _, verb := range verbs {
		resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/orders/ord-7:"+verb, "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("verb %s: expected 200, got %d", verb, resp.StatusCode)
		}
		if gotVerb != verb || gotID != "ord-7" {
			t.Fatalf("verb %s routed to %s with id %s", verb, gotVerb, gotID)
		}
	}
}

func TestProcessPaymentsEndpoint(t *testing.T) {
	var gotID string
	orders := &stubOrderService{
		processFn: func(ctx context.Context, orderID string) (services.Order, error) {
			gotID = orderID
			return services.Order{ID: orderID}, nil
		},
	}
	server := newTestServer(orders, &stubReturnService{})
	defer server.Close()

	resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/orders/ord-1/payments:process", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if gotID != "ord-1" {
		t.Fatalf("expected ord-1 routed, got %s", gotID)
	}
}

func TestShipShipmentEndpoint(t *testing.T) {
	var captured services.ShipShipmentCommand
	orders := &stubOrderService{
		shipFn: func(ctx context.Context, cmd services.ShipShipmentCommand) (services.Order, error) {
			captured = cmd
			return services.Order{
				ID: cmd.OrderID,
				Shipments: []domain.Shipment{
					{ID: cmd.ShipmentID, State: domain.ShipmentShipped},
				},
			}, nil
		},
	}
	server := newTestServer(orders, &stubReturnService{})
	defer server.Close()

	resp, payload := doRequest(t, server, http.MethodPost, "/api/v1/orders/ord-1/shipments/sh-1:ship", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if captured.OrderID != "ord-1" || captured.ShipmentID != "sh-1" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	shipments := payload["shipments"].([]any)
	if shipments[0].(map[string]any)["state"] != "shipped" {
		t.Fatalf("expected shipped state in payload, got %v", shipments)
	}
}

func TestSetAddressesEndpoint(t *testing.T) {
	var captured services.SetAddressesCommand
	orders := &stubOrderService{
		addressesFn: func(ctx context.Context, cmd services.SetAddressesCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID, State: domain.OrderStateAddress}, nil
		},
	}
	server := newTestServer(orders, &stubReturnService{})
	defer server.Close()

	body := `{"email":"shopper@example.com","ship_address":{"line1":"1 Main St","city":"Portland","country":"US"}}`
	resp, _ := doRequest(t, server, http.MethodPut, "/api/v1/orders/ord-1/addresses", body)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if captured.ShipAddress == nil || captured.ShipAddress.City != "Portland" {
		t.Fatalf("unexpected ship address: %+v", captured.ShipAddress)
	}
	if captured.BillAddress != nil {
		t.Fatalf("expected nil bill address, got %+v", captured.BillAddress)
	}
}

func TestAddPaymentEndpoint(t *testing.T) {
	var captured services.AddPaymentCommand
	orders := &stubOrderService{
		addPaymentFn: func(ctx context.Context, cmd services.AddPaymentCommand) (services.Order, error) {
			captured = cmd
			return services.Order{ID: cmd.OrderID}, nil
		},
	}
	server := newTestServer(orders, &stubReturnService{})
	defer server.Close()

	resp, _ := doRequest(t, server, http.MethodPost, "/api/v1/orders/ord-1/payments", `{"amount":2700}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if captured.Amount != 2700 {
		t.Fatalf("expected amount 2700, got %d", captured.Amount)
	}

	resp, _ = doRequest(t, server, http.MethodPost, "/api/v1/orders/ord-1/payments", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 for empty body, got %d", resp.StatusCode)
	}
	if captured.Amount != 0 {
		t.Fatalf("expected zero amount default, got %d", captured.Amount)
	}
}

func TestServiceErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", services.ErrOrderNotFound, http.StatusNotFound, "not_found"},
		{"variant not found", services.ErrOrderVariantNotFound, http.StatusNotFound, "variant_not_found"},
		{"invalid input", services.ErrOrderInvalidInput, http.StatusBadRequest, "invalid_request"},
		{"state transition", services.ErrOrderStateTransition, http.StatusConflict, "invalid_state"},
		{"shipped", services.ErrOrderShipped, http.StatusConflict, "invalid_state"},
		{"insufficient stock", services.ErrOrderInsufficientStock, http.StatusUnprocessableEntity, "insufficient_stock"},
		{"no shipping rates", services.ErrOrderNoShippingRates, http.StatusUnprocessableEntity, "no_shipping_rates"},
		{"payment declined", services.ErrOrderPaymentFailed, http.StatusPaymentRequired, "payment_declined"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			orders := &stubOrderService{
				nextFn: func(ctx context.Context, orderID string) (services.Order, error) {
					return services.Order{}, tc.err
				},
			}
			server := newTestServer(orders, &stubReturnService{})
			defer server.Close()

			resp, payload := doRequest(t, server, http.MethodPost, "/api/v1/orders/ord-1:next", "")
			if resp.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, resp.StatusCode)
			}
			if payload["error"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, payload["error"])
			}
		})
	}
}

func TestCreateReturnEndpoint(t *testing.T) {
	var captured services.CreateReturnAuthorizationCommand
	returns := &stubReturnService{
		createFn: func(ctx context.Context, cmd services.CreateReturnAuthorizationCommand) (services.ReturnAuthorization, error) {
			captured = cmd
			return services.ReturnAuthorization{
				ID:      "rma-1",
				Number:  "RMA000000001",
				OrderID: cmd.OrderID,
				Amount:  cmd.Amount,
				State:   domain.RMAAuthorized,
			}, nil
		},
	}
	server := newTestServer(&stubOrderService{}, returns)
	defer server.Close()

	body := `{"order_id":"ord-1","stock_location_id":"loc-1","amount":1500,"reason":"damaged"}`
	resp, payload := doRequest(t, server, http.MethodPost, "/api/v1/returns", body)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	if captured.OrderID != "ord-1" || captured.Amount != 1500 || captured.Reason != "damaged" {
		t.Fatalf("unexpected command: %+v", captured)
	}
	if payload["number"] != "RMA000000001" || payload["state"] != "authorized" {
		t.Fatalf("unexpected payload: %v", payload)
	}

	resp, _ = doRequest(t, server, http.MethodPost, "/api/v1/returns", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing body, got %d", resp.StatusCode)
	}
}

func TestReturnVariantAndVerbEndpoints(t *testing.T) {
	var capturedCmd services.AddReturnVariantCommand
	var receivedID, canceledID string
	returns := &stubReturnService{
		addVariantFn: func(ctx context.Context, cmd services.AddReturnVariantCommand) (services.ReturnAuthorization, error) {
			capturedCmd = cmd
			return services.ReturnAuthorization{ID: cmd.ReturnAuthorizationID}, nil
		},
		receiveFn: func(ctx context.Context, rmaID string) (services.ReturnAuthorization, error) {
			receivedID = rmaID
			return services.ReturnAuthorization{ID: rmaID, State: domain.RMAReceived}, nil
		},
		cancelFn: func(ctx context.Context, rmaID string) (services.ReturnAuthorization, error) {
			canceledID = rmaID
			return services.ReturnAuthorization{ID: rmaID, State: domain.RMACanceled}, nil
		},
	}
	server := newTestServer(&stubOrderService{}, returns)
	defer server.Close()

	resp, _ := doRequest(t, server, http.MethodPut, "/api/v1/returns/rma-1/variants", `{"variant_id":"v-1","quantity":2}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	if capturedCmd.ReturnAuthorizationID != "rma-1" || capturedCmd.VariantID != "v-1" || capturedCmd.Quantity != 2 {
		t.Fatalf("unexpected command: %+v", capturedCmd)
	}

	resp, payload := doRequest(t, server, http.MethodPost, "/api/v1/returns/rma-1:receive", "")
	if resp.StatusCode != http.StatusOK || receivedID != "rma-1" {
		t.Fatalf("receive verb failed: status %d id %s", resp.StatusCode, receivedID)
	}
	if payload["state"] != "received" {
		t.Fatalf("unexpected state: %v", payload["state"])
	}

	resp, _ = doRequest(t, server, http.MethodPost, "/api/v1/returns/rma-2:cancel", "")
	if resp.StatusCode != http.StatusOK || canceledID != "rma-2" {
		t.Fatalf("cancel verb failed: status %d id %s", resp.StatusCode, canceledID)
	}
}

func TestRouterFallbacks(t *testing.T) {
	server := newTestServer(&stubOrderService{}, &stubReturnService{})
	defer server.Close()

	resp, payload := doRequest(t, server, http.MethodGet, "/api/v1/unknown", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if payload["error"] != "route_not_found" {
		t.Fatalf("unexpected error code: %v", payload["error"])
	}
}

func TestRouterNotImplementedGroup(t *testing.T) {
	router := NewRouter(WithOrderRoutes(NewOrderHandlers(&stubOrderService{}).Routes))
	server := httptest.NewServer(router)
	defer server.Close()

	resp, payload := doRequest(t, server, http.MethodPost, "/api/v1/returns", `{}`)
	if resp.StatusCode != http.StatusNotImplemented {
		t.Fatalf("expected 501, got %d", resp.StatusCode)
	}
	if payload["error"] != "not_implemented" {
		t.Fatalf("unexpected error code: %v", payload["error"])
	}
}

func TestHealthEndpoints(t *testing.T) {
	failing := map[string]ReadinessCheck{
		"registry": func(ctx context.Context) error { return nil },
		"redis":    func(ctx context.Context) error { return errors.New("connection refused") },
	}
	router := NewRouter(WithHealthHandlers(NewHealthHandlers(failing)))
	server := httptest.NewServer(router)
	defer server.Close()

	resp, payload := doRequest(t, server, http.MethodGet, "/healthz", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from healthz, got %d", resp.StatusCode)
	}
	if payload["status"] != "ok" {
		t.Fatalf("unexpected healthz status: %v", payload["status"])
	}

	resp, payload = doRequest(t, server, http.MethodGet, "/readyz", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from readyz, got %d", resp.StatusCode)
	}
	checks := payload["checks"].(map[string]any)
	if checks["registry"] != "ok" {
		t.Fatalf("expected registry check ok, got %v", checks["registry"])
	}
	if checks["redis"] != "connection refused" {
		t.Fatalf("expected redis failure reported, got %v", checks["redis"])
	}
}

func TestCreateThrottleWindow(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	limiter := newCreateThrottle(2, time.Minute, func() time.Time { return now })

	if !limiter.Allow("1.2.3.4") || !limiter.Allow("1.2.3.4") {
		t.Fatal("expected first two requests allowed")
	}
	if limiter.Allow("1.2.3.4") {
		t.Fatal("expected third request within window rejected")
	}
	if !limiter.Allow("5.6.7.8") {
		t.Fatal("expected different key unaffected")
	}

	now = now.Add(2 * time.Minute)
	if !limiter.Allow("1.2.3.4") {
		t.Fatal("expected request allowed after window reset")
	}

	if limiter := newCreateThrottle(0, time.Minute, nil); limiter != nil {
		t.Fatal("expected nil limiter for non-positive limit")
	}
}
