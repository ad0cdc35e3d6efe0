package service

import (
	"context"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"
)

// dashboardStore provides the windowed aggregates.
type dashboardStore interface {
	DashboardPartitions(ctx context.Context, from, to time.Time) ([]models.DashboardPartition, error)
	CancelledShipmentsInWindow(ctx context.Context, from, to time.Time) ([]string, error)
}

// DashboardService builds the rolling-window progress snapshot. It is
// read-only over the cache and ledger.
type DashboardService struct {
	store  dashboardStore
	window time.Duration
}

// NewDashboardService creates the dashboard aggregator.
func NewDashboardService(store dashboardStore, window time.Duration) *DashboardService {
	return &DashboardService{store: store, window: window}
}

// Snapshot aggregates seen and packed counts per logistic type over
// the window ending at the given instant, plus the shipments
// cancelled inside it. Marketplace-warehouse shipments are excluded;
// the seller never handles them.
func (d *DashboardService) Snapshot(ctx context.Context, at time.Time) (*models.DashboardSnapshot, error) {
	ctx, span := util.StartSpan(ctx, "DashboardService.Snapshot")
	defer span.End()

	from := at.Add(-d.window)

	partitions, err := d.store.DashboardPartitions(ctx, from, at)
	if err != nil {
		return nil, err
	}
	cancelled, err := d.store.CancelledShipmentsInWindow(ctx, from, at)
	if err != nil {
		return nil, err
	}

	return &models.DashboardSnapshot{
		WindowStart: from,
		WindowEnd:   at,
		Partitions:  partitions,
		Cancelled:   cancelled,
	}, nil
}
