package payments

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Status enumerates the normalised payment states shared across gateways.
type Status string

const (
	// StatusPending indicates the payment is awaiting PSP confirmation.
	StatusPending Status = "pending"
	// StatusSucceeded indicates the PSP reports the charge as captured.
	StatusSucceeded Status = "succeeded"
	// StatusFailed indicates the PSP reports a failure and no further action is possible.
	StatusFailed Status = "failed"
	// StatusRefunded indicates the charge has been fully refunded.
	StatusRefunded Status = "refunded"
)

// ErrUnsupportedGateway is returned when the manager cannot locate a gateway.
var ErrUnsupportedGateway = errors.New("payments: unsupported gateway")

// PurchaseRequest captures the payload for a charge-and-capture attempt.
type PurchaseRequest struct {
	PaymentID      string
	OrderNumber    string
	Amount         int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// RefundRequest defines a gateway refund attempt, optionally partial.
type RefundRequest struct {
	IntentID       string
	Amount         *int64
	Reason         string
	IdempotencyKey string
	Metadata       map[string]string
}

// LookupRequest returns gateway specific payment details for reconciliation.
type LookupRequest struct {
	IntentID string
}

// PaymentDetails normalises gateway specific fields for storage.
type PaymentDetails struct {
	Gateway  string
	IntentID string
	Status   Status
	Amount   int64
	Currency string
	Message  string
}

// Gateway defines the contract for PSP adapters to implement.
type Gateway interface {
	Purchase(ctx context.Context, req PurchaseRequest) (PaymentDetails, error)
	Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error)
	Lookup(ctx context.Context, req LookupRequest) (PaymentDetails, error)
}

// Manager routes payment operations to the gateway registered for the
// order's currency, falling back to a default gateway.
type Manager struct {
	gateways       map[string]Gateway
	defaultGateway string
	currencyRoutes map[string]string
}

// ManagerOption configures optional behaviour when building a Manager.
type ManagerOption func(*Manager)

// WithDefaultGateway overrides the default gateway for currencies without explicit routing.
func WithDefaultGateway(gateway string) ManagerOption {
	return func(m *Manager) {
		m.defaultGateway = gateway
	}
}

// WithCurrencyRoutes configures static currency to gateway mappings.
func WithCurrencyRoutes(routes map[string]string) ManagerOption {
	return func(m *Manager) {
		if len(routes) == 0 {
			return
		}
		if m.currencyRoutes == nil {
			m.currencyRoutes = make(map[string]string, len(routes))
		}
		for k, v := range routes {
			m.currencyRoutes[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
		}
	}
}

// NewManager constructs a Manager over the supplied gateways.
func NewManager(gateways map[string]Gateway, opts ...ManagerOption) (*Manager, error) {
	if len(gateways) == 0 {
		return nil, errors.New("payments: at least one gateway is required")
	}
	copyMap := make(map[string]Gateway, len(gateways))
	for k, v := range gateways {
		key := strings.TrimSpace(strings.ToLower(k))
		if key == "" || v == nil {
			return nil, fmt.Errorf("payments: invalid gateway registration for key %q", k)
		}
		copyMap[key] = v
	}
	m := &Manager{
		gateways: copyMap,
	}
	if _, ok := copyMap["stripe"]; ok {
		m.defaultGateway = "stripe"
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

func (m *Manager) resolveGateway(currency string) (string, Gateway, error) {
	if m == nil || len(m.gateways) == 0 {
		return "", nil, errors.New("payments: no gateways registered")
	}
	upper := strings.ToUpper(strings.TrimSpace(currency))
	if upper != "" && m.currencyRoutes != nil {
		if key, ok := m.currencyRoutes[upper]; ok {
			key = strings.TrimSpace(strings.ToLower(key))
			if g, ok := m.gateways[key]; ok {
				return key, g, nil
			}
		}
	}
	if def := strings.TrimSpace(strings.ToLower(m.defaultGateway)); def != "" {
		if g, ok := m.gateways[def]; ok {
			return def, g, nil
		}
	}
	if len(m.gateways) == 1 {
		for key, g := range m.gateways {
			return key, g, nil
		}
	}
	return "", nil, ErrUnsupportedGateway
}

// Purchase delegates to the gateway resolved for the request currency.
func (m *Manager) Purchase(ctx context.Context, req PurchaseRequest) (PaymentDetails, error) {
	key, gateway, err := m.resolveGateway(req.Currency)
	if err != nil {
		return PaymentDetails{}, err
	}
	details, err := gateway.Purchase(ctx, req)
	if err != nil {
		return PaymentDetails{}, err
	}
	details.Gateway = key
	return details, nil
}

// Refund delegates to the gateway resolved for the request currency.
func (m *Manager) Refund(ctx context.Context, currency string, req RefundRequest) (PaymentDetails, error) {
	key, gateway, err := m.resolveGateway(currency)
	if err != nil {
		return PaymentDetails{}, err
	}
	details, err := gateway.Refund(ctx, req)
	if err != nil {
		return PaymentDetails{}, err
	}
	details.Gateway = key
	return details, nil
}

// Lookup delegates to the gateway resolved for the request currency.
func (m *Manager) Lookup(ctx context.Context, currency string, req LookupRequest) (PaymentDetails, error) {
	key, gateway, err := m.resolveGateway(currency)
	if err != nil {
		return PaymentDetails{}, err
	}
	details, err := gateway.Lookup(ctx, req)
	if err != nil {
		return PaymentDetails{}, err
	}
	details.Gateway = key
	return details, nil
}
