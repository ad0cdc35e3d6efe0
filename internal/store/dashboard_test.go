package store

import (
	"context"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardPartitionsExcludesMarketplaceWarehouse(t *testing.T) {
	store, mock := newMockStore(t)

	from := time.Date(2025, 3, 13, 15, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	rows := sqlmock.NewRows([]string{"logistic_type", "seen", "packed"}).
		AddRow("drop_off", 4, 4).
		AddRow("self_service", 10, 7).
		AddRow("unknown", 1, 0)
	mock.ExpectQuery(`FROM shipment_cache`).
		WithArgs(from, to, models.LogisticTypeFulfillment).
		WillReturnRows(rows)

	partitions, err := store.DashboardPartitions(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, partitions, 3)
	assert.Equal(t, "self_service", partitions[1].LogisticType)
	assert.Equal(t, 10, partitions[1].Seen)
	assert.Equal(t, 7, partitions[1].Packed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCancelledShipmentsInWindow(t *testing.T) {
	store, mock := newMockStore(t)

	from := time.Now().Add(-24 * time.Hour)
	to := time.Now()

	rows := sqlmock.NewRows([]string{"shipment_id"}).AddRow("S3").AddRow("S9")
	mock.ExpectQuery(`FROM pick_ledger`).
		WithArgs(models.PickStateCancelled, from, to).
		WillReturnRows(rows)

	ids, err := store.CancelledShipmentsInWindow(context.Background(), from, to)
	require.NoError(t, err)
	assert.Equal(t, []string{"S3", "S9"}, ids)
}
