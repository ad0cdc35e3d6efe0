package store

import (
	"context"
	"time"

	"fulfillment-service/internal/models"
)

// DashboardPartitions counts distinct shipments per logistic-type
// partition inside the window, split into seen vs packed. The
// marketplace-fulfilled partition is excluded: those shipments never
// pass through this warehouse.
func (s *Store) DashboardPartitions(ctx context.Context, from, to time.Time) ([]models.DashboardPartition, error) {
	var partitions []models.DashboardPartition
	err := s.db.SelectContext(ctx, &partitions,
		`SELECT COALESCE(NULLIF(sc.logistic_type, ''), 'unknown') AS logistic_type,
		        COUNT(DISTINCT sc.shipment_id) AS seen,
		        COUNT(DISTINCT pl.shipment_id) AS packed
		 FROM shipment_cache sc
		 LEFT JOIN pick_ledger pl
		        ON pl.shipment_id = sc.shipment_id
		       AND pl.packed_at >= $1 AND pl.packed_at < $2
		 WHERE sc.fetched_at >= $1 AND sc.fetched_at < $2
		   AND COALESCE(sc.logistic_type, '') <> $3
		 GROUP BY 1
		 ORDER BY 1`,
		from, to, models.LogisticTypeFulfillment)
	return partitions, err
}

// CancelledShipmentsInWindow lists distinct shipment ids cancelled
// inside the window.
func (s *Store) CancelledShipmentsInWindow(ctx context.Context, from, to time.Time) ([]string, error) {
	var ids []string
	err := s.db.SelectContext(ctx, &ids,
		`SELECT DISTINCT shipment_id FROM pick_ledger
		 WHERE state = $1 AND cancelled_at >= $2 AND cancelled_at < $3
		 ORDER BY shipment_id`,
		models.PickStateCancelled, from, to)
	return ids, err
}
