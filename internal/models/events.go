package models

import "time"

// Event types published on the shipment lifecycle topic.
const (
	EventTypeShipmentResolved   = "SHIPMENT_RESOLVED"
	EventTypeShipmentPacked     = "SHIPMENT_PACKED"
	EventTypeShipmentDispatched = "SHIPMENT_DISPATCHED"
	EventTypeShipmentCancelled  = "SHIPMENT_CANCELLED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// ShipmentResolvedEvent published after a full resolution + enrichment
// pass lands in the cache.
type ShipmentResolvedEvent struct {
	BaseEvent
	ShipmentID     string `json:"shipment_id"`
	PrimaryOrderID string `json:"primary_order_id"`
	Customer       string `json:"customer"`
	ItemCount      int    `json:"item_count"`
	StatusRaw      string `json:"status_raw"`
}

// ShipmentPackedEvent published when all ledger rows reach packed.
type ShipmentPackedEvent struct {
	BaseEvent
	ShipmentID string `json:"shipment_id"`
	Operator   string `json:"operator"`
}

// ShipmentDispatchedEvent published when all ledger rows reach
// dispatched.
type ShipmentDispatchedEvent struct {
	BaseEvent
	ShipmentID   string `json:"shipment_id"`
	Operator     string `json:"operator"`
	Carrier      string `json:"carrier"`
	DispatchType string `json:"dispatch_type"`
}

// ShipmentCancelledEvent published when a marketplace cancellation is
// applied to the ledger.
type ShipmentCancelledEvent struct {
	BaseEvent
	ShipmentID string `json:"shipment_id"`
	Reason     string `json:"reason"`
}

// MarketplaceNotification is the inbound push payload: a topic plus a
// resource path such as /orders/123 or /shipments/456.
type MarketplaceNotification struct {
	Topic    string `json:"topic"`
	Resource string `json:"resource"`
}
