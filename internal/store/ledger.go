package store

import (
	"context"
	"time"

	"fulfillment-service/internal/models"
)

// PickRecords retrieves all ledger rows for one shipment.
func (s *Store) PickRecords(ctx context.Context, shipmentID string) ([]models.PickRecord, error) {
	var records []models.PickRecord
	err := s.db.SelectContext(ctx, &records,
		`SELECT * FROM pick_ledger WHERE shipment_id = $1 ORDER BY id`, shipmentID)
	return records, err
}

// SeedPickRecords lazily creates ledger rows, one per line item, on
// the first pack action for a shipment. The unique constraint keeps a
// concurrent double-seed harmless.
func (s *Store) SeedPickRecords(ctx context.Context, records []models.PickRecord) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, r := range records {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO pick_ledger (shipment_id, order_id, item_id, title, quantity, state)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (shipment_id, order_id, item_id) DO NOTHING`,
			r.ShipmentID, r.OrderID, r.ItemID, r.Title, r.Quantity, models.PickStatePending)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// MarkShipmentPacked advances every pending row of the shipment to
// packed. The state filter keeps the transition monotonic; the
// returned count tells the caller whether anything moved.
func (s *Store) MarkShipmentPacked(ctx context.Context, shipmentID, operator string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pick_ledger
		 SET state = $1, packed_at = $2, packed_by = $3
		 WHERE shipment_id = $4 AND state = $5`,
		models.PickStatePacked, at, operator, shipmentID, models.PickStatePending)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkShipmentDispatched advances every packed row of the shipment to
// dispatched with carrier and shipment type, atomically.
func (s *Store) MarkShipmentDispatched(ctx context.Context, shipmentID, carrier, dispatchType, operator string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pick_ledger
		 SET state = $1, dispatched_at = $2, dispatched_by = $3, carrier = $4, dispatch_type = $5
		 WHERE shipment_id = $6 AND state = $7`,
		models.PickStateDispatched, at, operator, carrier, dispatchType,
		shipmentID, models.PickStatePacked)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// MarkShipmentCancelled cancels rows still in pending or packed.
// Dispatched rows are terminal and never touched by a later
// cancellation signal.
func (s *Store) MarkShipmentCancelled(ctx context.Context, shipmentID string, at time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE pick_ledger
		 SET state = $1, cancelled_at = $2
		 WHERE shipment_id = $3 AND state IN ($4, $5)`,
		models.PickStateCancelled, at, shipmentID,
		models.PickStatePending, models.PickStatePacked)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
