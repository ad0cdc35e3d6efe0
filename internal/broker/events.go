package broker

import (
	"context"
	"fmt"
	"time"

	"fulfillment-service/internal/models"

	"github.com/google/uuid"
)

// EventPublisher publishes shipment lifecycle events.
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

func baseEvent(eventType string) models.BaseEvent {
	return models.BaseEvent{
		EventID:   uuid.New().String(),
		EventType: eventType,
		Timestamp: time.Now(),
	}
}

func shipmentKey(shipmentID string) string {
	return fmt.Sprintf("shipment-%s", shipmentID)
}

// PublishShipmentResolved publishes a ShipmentResolved event after a
// resolution pass lands in the cache.
func (ep *EventPublisher) PublishShipmentResolved(ctx context.Context, detail *models.ShipmentDetail) error {
	event := &models.ShipmentResolvedEvent{
		BaseEvent:      baseEvent(models.EventTypeShipmentResolved),
		ShipmentID:     detail.ShipmentID,
		PrimaryOrderID: detail.PrimaryOrderID,
		Customer:       detail.Customer,
		ItemCount:      len(detail.Items),
		StatusRaw:      detail.StatusRaw,
	}
	return ep.producer.PublishEvent(ctx, shipmentKey(detail.ShipmentID), event)
}

// PublishShipmentPacked publishes a ShipmentPacked event.
func (ep *EventPublisher) PublishShipmentPacked(ctx context.Context, shipmentID, operator string) error {
	event := &models.ShipmentPackedEvent{
		BaseEvent:  baseEvent(models.EventTypeShipmentPacked),
		ShipmentID: shipmentID,
		Operator:   operator,
	}
	return ep.producer.PublishEvent(ctx, shipmentKey(shipmentID), event)
}

// PublishShipmentDispatched publishes a ShipmentDispatched event.
func (ep *EventPublisher) PublishShipmentDispatched(ctx context.Context, shipmentID, operator, carrier, dispatchType string) error {
	event := &models.ShipmentDispatchedEvent{
		BaseEvent:    baseEvent(models.EventTypeShipmentDispatched),
		ShipmentID:   shipmentID,
		Operator:     operator,
		Carrier:      carrier,
		DispatchType: dispatchType,
	}
	return ep.producer.PublishEvent(ctx, shipmentKey(shipmentID), event)
}

// PublishShipmentCancelled publishes a ShipmentCancelled event.
func (ep *EventPublisher) PublishShipmentCancelled(ctx context.Context, shipmentID, reason string) error {
	event := &models.ShipmentCancelledEvent{
		BaseEvent:  baseEvent(models.EventTypeShipmentCancelled),
		ShipmentID: shipmentID,
		Reason:     reason,
	}
	return ep.producer.PublishEvent(ctx, shipmentKey(shipmentID), event)
}
