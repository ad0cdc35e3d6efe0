package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"fulfillment-service/internal/models"
)

// shipmentRow is the shipment_cache table representation; the item
// payload is stored as JSON.
type shipmentRow struct {
	ShipmentID     string    `db:"shipment_id"`
	OrderID        string    `db:"order_id"`
	PrimaryOrderID string    `db:"primary_order_id"`
	OrderIDs       []byte    `db:"order_ids"`
	Customer       string    `db:"customer"`
	StatusRaw      string    `db:"status_raw"`
	StatusLabel    string    `db:"status_label"`
	Items          []byte    `db:"items"`
	LogisticType   string    `db:"logistic_type"`
	FetchedAt      time.Time `db:"fetched_at"`
}

func (r *shipmentRow) toDetail() (*models.ShipmentDetail, error) {
	detail := &models.ShipmentDetail{
		ShipmentID:     r.ShipmentID,
		PrimaryOrderID: r.PrimaryOrderID,
		Customer:       r.Customer,
		StatusRaw:      r.StatusRaw,
		StatusLabel:    r.StatusLabel,
		FetchedAt:      r.FetchedAt,
		LogisticType:   r.LogisticType,
	}
	if err := json.Unmarshal(r.OrderIDs, &detail.OrderIDs); err != nil {
		return nil, fmt.Errorf("corrupt order_ids payload for shipment %s: %w", r.ShipmentID, err)
	}
	if err := json.Unmarshal(r.Items, &detail.Items); err != nil {
		return nil, fmt.Errorf("corrupt item payload for shipment %s: %w", r.ShipmentID, err)
	}
	return detail, nil
}

// GetShipment retrieves a cached shipment detail regardless of age;
// freshness is the caller's decision. Returns nil when absent.
func (s *Store) GetShipment(ctx context.Context, shipmentID string) (*models.ShipmentDetail, error) {
	var row shipmentRow
	err := s.db.GetContext(ctx, &row,
		`SELECT shipment_id, COALESCE(order_id, '') AS order_id,
		        COALESCE(primary_order_id, '') AS primary_order_id,
		        order_ids, COALESCE(customer, '') AS customer,
		        COALESCE(status_raw, '') AS status_raw,
		        COALESCE(status_label, '') AS status_label,
		        items, COALESCE(logistic_type, '') AS logistic_type, fetched_at
		 FROM shipment_cache WHERE shipment_id = $1`, shipmentID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDetail()
}

// UpsertShipment inserts or replaces the cached detail for one
// shipment in a single statement. The stored order_id attribute is
// last-write-wins across re-resolutions; logistic_type is derived
// from the first item at upsert time.
func (s *Store) UpsertShipment(ctx context.Context, detail *models.ShipmentDetail) error {
	logisticType := detail.LogisticType
	if logisticType == "" && len(detail.Items) > 0 {
		logisticType = detail.Items[0].LogisticType
	}

	orderIDs, err := json.Marshal(detail.OrderIDs)
	if err != nil {
		return fmt.Errorf("failed to encode order ids: %w", err)
	}
	items, err := json.Marshal(detail.Items)
	if err != nil {
		return fmt.Errorf("failed to encode items: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO shipment_cache
		    (shipment_id, order_id, primary_order_id, order_ids, customer,
		     status_raw, status_label, items, logistic_type, fetched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (shipment_id) DO UPDATE SET
		    order_id = EXCLUDED.order_id,
		    primary_order_id = EXCLUDED.primary_order_id,
		    order_ids = EXCLUDED.order_ids,
		    customer = EXCLUDED.customer,
		    status_raw = EXCLUDED.status_raw,
		    status_label = EXCLUDED.status_label,
		    items = EXCLUDED.items,
		    logistic_type = EXCLUDED.logistic_type,
		    fetched_at = EXCLUDED.fetched_at`,
		detail.ShipmentID, detail.PrimaryOrderID, detail.PrimaryOrderID, orderIDs,
		detail.Customer, detail.StatusRaw, detail.StatusLabel, items,
		logisticType, detail.FetchedAt)
	return err
}

// TouchShipment records the lightweight notification upsert: ids and
// fetch timestamp only, never overwriting resolved fields with blanks.
func (s *Store) TouchShipment(ctx context.Context, shipmentID, orderID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO shipment_cache (shipment_id, order_id, order_ids, items, fetched_at)
		 VALUES ($1, NULLIF($2, ''), '[]', '[]', $3)
		 ON CONFLICT (shipment_id) DO UPDATE SET
		    order_id = COALESCE(NULLIF(EXCLUDED.order_id, ''), shipment_cache.order_id)`,
		shipmentID, orderID, at)
	return err
}

// PurgeOlderThan deletes cache entries whose fetched_at predates the
// retention window. Age-based only, unbounded by count.
func (s *Store) PurgeOlderThan(ctx context.Context, retention time.Duration) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM shipment_cache WHERE fetched_at < $1`,
		time.Now().Add(-retention))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
