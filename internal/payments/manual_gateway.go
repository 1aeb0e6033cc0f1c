package payments

import (
	"context"
	"fmt"
	"sync"
)

// ManualGateway approves every purchase without contacting a processor. It
// backs local development and stores that settle payment out of band; refunds
// and lookups work against its in-memory record of past purchases.
type ManualGateway struct {
	mu      sync.Mutex
	serial  int
	intents map[string]PaymentDetails
}

// NewManualGateway constructs an empty manual gateway.
func NewManualGateway() *ManualGateway {
	return &ManualGateway{intents: make(map[string]PaymentDetails)}
}

func (g *ManualGateway) Purchase(ctx context.Context, req PurchaseRequest) (PaymentDetails, error) {
	if req.Amount <= 0 {
		return PaymentDetails{}, fmt.Errorf("payments: purchase amount must be positive, got %d", req.Amount)
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	// Idempotency: a repeated purchase for the same key returns the
	// original result instead of settling twice.
	if req.IdempotencyKey != "" {
		if details, ok := g.intents[req.IdempotencyKey]; ok {
			return details, nil
		}
	}

	g.serial++
	details := PaymentDetails{
		IntentID: fmt.Sprintf("manual_%06d", g.serial),
		Status:   StatusSucceeded,
		Amount:   req.Amount,
		Currency: req.Currency,
	}
	key := req.IdempotencyKey
	if key == "" {
		key = details.IntentID
	}
	g.intents[key] = details
	g.intents[details.IntentID] = details
	return details, nil
}

func (g *ManualGateway) Refund(ctx context.Context, req RefundRequest) (PaymentDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	details, ok := g.intents[req.IntentID]
	if !ok {
		return PaymentDetails{}, fmt.Errorf("payments: unknown intent %q", req.IntentID)
	}
	details.Status = StatusRefunded
	g.intents[req.IntentID] = details
	return details, nil
}

func (g *ManualGateway) Lookup(ctx context.Context, req LookupRequest) (PaymentDetails, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	details, ok := g.intents[req.IntentID]
	if !ok {
		return PaymentDetails{}, fmt.Errorf("payments: unknown intent %q", req.IntentID)
	}
	return details, nil
}
