// Package notifications publishes customer-facing order events. The order
// service fires them at most once per order; delivery beyond the broker is
// out of scope here.
package notifications

import (
	"context"
	"time"

	domain "github.com/atelier-goods/api/internal/domain"
)

// OrderConfirmation is the payload published when an order completes.
type OrderConfirmation struct {
	OrderID     string    `json:"orderId"`
	Number      string    `json:"number"`
	Email       string    `json:"email"`
	Currency    string    `json:"currency"`
	Total       int64     `json:"total"`
	CompletedAt time.Time `json:"completedAt"`
}

// ShipmentNotice is the payload published when a shipment ships.
type ShipmentNotice struct {
	OrderID    string `json:"orderId"`
	Number     string `json:"number"`
	ShipmentID string `json:"shipmentId"`
	Email      string `json:"email"`
}

// Notifier abstracts the outbound event channel.
type Notifier interface {
	OrderConfirmation(ctx context.Context, msg OrderConfirmation) error
	ShipmentNotice(ctx context.Context, msg ShipmentNotice) error
}

// ConfirmationFromOrder builds the confirmation payload for an order.
func ConfirmationFromOrder(order domain.Order) OrderConfirmation {
	msg := OrderConfirmation{
		OrderID:  order.ID,
		Number:   order.Number,
		Email:    order.Email,
		Currency: order.Currency,
		Total:    order.Total,
	}
	if order.CompletedAt != nil {
		msg.CompletedAt = *order.CompletedAt
	}
	return msg
}

// LogNotifier records events through a structured logger instead of a
// broker. It backs tests and broker-less deployments.
type LogNotifier struct {
	Logger func(ctx context.Context, event string, fields map[string]any)
}

func (n LogNotifier) log(ctx context.Context, event string, fields map[string]any) {
	if n.Logger != nil {
		n.Logger(ctx, event, fields)
	}
}

func (n LogNotifier) OrderConfirmation(ctx context.Context, msg OrderConfirmation) error {
	n.log(ctx, "notifications.order_confirmation", map[string]any{
		"orderId": msg.OrderID,
		"number":  msg.Number,
		"email":   msg.Email,
	})
	return nil
}

func (n LogNotifier) ShipmentNotice(ctx context.Context, msg ShipmentNotice) error {
	n.log(ctx, "notifications.shipment_notice", map[string]any{
		"orderId":    msg.OrderID,
		"shipmentId": msg.ShipmentID,
		"email":      msg.Email,
	})
	return nil
}
