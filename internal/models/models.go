package models

import "time"

// Sentinels used when the marketplace payload omits a field.
const (
	UnknownTitle    = "Untitled"
	UnknownSKU      = "unknown"
	UnknownCustomer = "Unknown customer"
	NoVariant       = "—"
	UnknownStatus   = "unknown"
)

// LogisticTypeFulfillment marks shipments handled by the marketplace's
// own warehouse; the dashboard excludes this partition.
const LogisticTypeFulfillment = "fulfillment"

// Image is a full/thumbnail URL pair for one product picture.
type Image struct {
	URL       string `json:"url"`
	Thumbnail string `json:"thumbnail"`
}

// OrderItem is one canonical pick-list line resolved from a
// marketplace order.
type OrderItem struct {
	ItemID            string  `json:"item_id"`
	VariationID       int64   `json:"variation_id,omitempty"`
	Title             string  `json:"title"`
	SKU               string  `json:"sku"`
	VariantDescriptor string  `json:"variant_descriptor"`
	Quantity          int     `json:"quantity"`
	Images            []Image `json:"images"`
	VendorCode        string  `json:"vendor_code,omitempty"`
	Permalink         string  `json:"permalink,omitempty"`
	LogisticType      string  `json:"logistic_type,omitempty"`
}

// ShipmentDetail is the aggregated result of resolving one shipment
// across all marketplace orders it spans.
type ShipmentDetail struct {
	ShipmentID     string      `json:"shipment_id"`
	OrderIDs       []string    `json:"order_ids"`
	PrimaryOrderID string      `json:"primary_order_id"`
	Customer       string      `json:"customer"`
	StatusRaw      string      `json:"status_raw"`
	StatusLabel    string      `json:"status_label"`
	Items          []OrderItem `json:"items"`
	FetchedAt      time.Time   `json:"fetched_at"`
	LogisticType   string      `json:"logistic_type,omitempty"`
}

// IsFresh reports whether the cached detail is still inside the TTL
// window at the given instant. A stale entry is a cache miss, not an
// error.
func (d *ShipmentDetail) IsFresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(d.FetchedAt) < ttl
}

// Pick states. Transitions are monotonic: pending → packed →
// dispatched. cancelled is reachable from pending or packed only;
// dispatched is terminal.
const (
	PickStatePending    = "pending"
	PickStatePacked     = "packed"
	PickStateDispatched = "dispatched"
	PickStateCancelled  = "cancelled"
)

// PickRecord is one ledger row per shipment line item.
type PickRecord struct {
	ID           int64      `db:"id" json:"id"`
	ShipmentID   string     `db:"shipment_id" json:"shipment_id"`
	OrderID      string     `db:"order_id" json:"order_id"`
	ItemID       string     `db:"item_id" json:"item_id"`
	Title        string     `db:"title" json:"title"`
	Quantity     int        `db:"quantity" json:"quantity"`
	State        string     `db:"state" json:"state"`
	PackedAt     *time.Time `db:"packed_at" json:"packed_at,omitempty"`
	PackedBy     *string    `db:"packed_by" json:"packed_by,omitempty"`
	DispatchedAt *time.Time `db:"dispatched_at" json:"dispatched_at,omitempty"`
	DispatchedBy *string    `db:"dispatched_by" json:"dispatched_by,omitempty"`
	Carrier      *string    `db:"carrier" json:"carrier,omitempty"`
	DispatchType *string    `db:"dispatch_type" json:"dispatch_type,omitempty"`
	CancelledAt  *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
}

// VendorCatalogEntry maps a seller SKU to the external vendor catalog.
type VendorCatalogEntry struct {
	SKU            string    `db:"sku" json:"sku"`
	VendorCode     string    `db:"vendor_code" json:"vendor_code"`
	ExternalItemID string    `db:"external_item_id" json:"external_item_id"`
	LastSynced     time.Time `db:"last_synced" json:"last_synced"`
}

// AccessToken is the persisted marketplace OAuth token record.
type AccessToken struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// DashboardPartition holds windowed counts for one logistic type.
type DashboardPartition struct {
	LogisticType string `db:"logistic_type" json:"logistic_type"`
	Seen         int    `db:"seen" json:"seen"`
	Packed       int    `db:"packed" json:"packed"`
}

// DashboardSnapshot is the read-only dashboard aggregate over one
// rolling business-day window.
type DashboardSnapshot struct {
	WindowStart time.Time            `json:"window_start"`
	WindowEnd   time.Time            `json:"window_end"`
	Partitions  []DashboardPartition `json:"partitions"`
	Cancelled   []string             `json:"cancelled_shipments"`
}
