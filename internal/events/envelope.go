package events

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event names published by the shop.
const (
	OrderPlaced      = "order.placed"
	OrderCancelled   = "order.cancelled"
	PaymentSucceeded = "payment.succeeded"
	PaymentFailed    = "payment.failed"
	PaymentRefunded  = "payment.refunded"
	StockLow         = "inventory.low_stock"
)

// SchemaVersion is bumped when a payload changes incompatibly.
const SchemaVersion = 1

// EventEnvelope wraps every payload put on the wire.
type EventEnvelope[T any] struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Producer      string    `json:"producer"`
	PartitionKey  string    `json:"partitionKey"`
	OccurredAt    time.Time `json:"occurredAt"`
	Payload       T         `json:"payload"`
}

// NewEnvelope stamps a fresh event id and timestamp.
func NewEnvelope[T any](name, key, producer string, payload T) EventEnvelope[T] {
	return EventEnvelope[T]{
		EventName:    name,
		EventVersion: SchemaVersion,
		EventID:      uuid.NewString(),
		Producer:     producer,
		PartitionKey: key,
		OccurredAt:   time.Now().UTC(),
		Payload:      payload,
	}
}

// Validate ensures the envelope carries the expected identity.
func (e EventEnvelope[T]) Validate(expectedName string) error {
	if e.EventName != expectedName {
		return fmt.Errorf("unexpected eventName: %s", e.EventName)
	}
	if e.EventVersion != SchemaVersion {
		return fmt.Errorf("unexpected eventVersion: %d", e.EventVersion)
	}
	if e.PartitionKey == "" {
		return fmt.Errorf("missing partitionKey")
	}
	return nil
}

// OrderPayload is carried by order.* events.
type OrderPayload struct {
	OrderID       int64  `json:"orderId"`
	UserID        int64  `json:"userId"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	TotalAmount   string `json:"totalAmount"`
	ItemCount     int    `json:"itemCount,omitempty"`
}

// PaymentPayload is carried by payment.* events.
type PaymentPayload struct {
	OrderID         int64  `json:"orderId"`
	PaymentIntentID string `json:"paymentIntentId,omitempty"`
	Amount          string `json:"amount,omitempty"`
	Reason          string `json:"reason,omitempty"`
}

// StockPayload is carried by inventory.low_stock.
type StockPayload struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
	Threshold int   `json:"threshold"`
}
