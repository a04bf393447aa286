// Package events publishes order-placed notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/safar/go-storefront/internal/models"
)

const (
	EventOrderPlaced = "OrderPlaced"
	EventVersion     = 1
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderPlacedPayload struct {
	OrderID        string    `json:"order_id"`
	Items          []ItemQty `json:"items"`
	Total          string    `json:"total"`
	TrackingNumber string    `json:"tracking_number"`
}

// Publisher delivers envelopes. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, env Envelope) error
}

// NewOrderPlaced builds the envelope announcing order. The order id is the
// correlation id and the partition key.
func NewOrderPlaced(order *models.Order, producer string, now time.Time) (Envelope, error) {
	items := make([]ItemQty, 0, len(order.Items))
	for _, it := range order.Items {
		items = append(items, ItemQty{ProductID: it.Product.ID, Qty: it.Quantity})
	}

	payload, err := json.Marshal(OrderPlacedPayload{
		OrderID:        order.ID,
		Items:          items,
		Total:          order.Total.StringFixed(2),
		TrackingNumber: order.TrackingNumber,
	})
	if err != nil {
		return Envelope{}, fmt.Errorf("encode payload: %w", err)
	}

	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     EventOrderPlaced,
		EventVersion:  EventVersion,
		OccurredAt:    now.UTC(),
		Producer:      producer,
		CorrelationID: order.ID,
		Payload:       payload,
	}, nil
}

// UnwrapPayload decodes the payload of env into T.
func UnwrapPayload[T any](env Envelope) (T, error) {
	var t T
	if err := json.Unmarshal(env.Payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
