package store

import (
	"context"

	"fulfillment-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// CatalogEntriesBySKU retrieves cached vendor catalog entries for the
// given SKUs, keyed by SKU.
func (s *Store) CatalogEntriesBySKU(ctx context.Context, skus []string) (map[string]models.VendorCatalogEntry, error) {
	entries := make(map[string]models.VendorCatalogEntry, len(skus))
	if len(skus) == 0 {
		return entries, nil
	}

	query, args, err := sqlx.In(`SELECT * FROM vendor_catalog WHERE sku IN (?)`, skus)
	if err != nil {
		return nil, err
	}
	query = s.db.Rebind(query)

	var rows []models.VendorCatalogEntry
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}

	for _, row := range rows {
		entries[row.SKU] = row
	}
	return entries, nil
}

// UpsertCatalogEntries bulk-persists synced catalog entries in one
// transaction, insert-or-update keyed by SKU.
func (s *Store) UpsertCatalogEntries(ctx context.Context, entries []models.VendorCatalogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range entries {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO vendor_catalog (sku, vendor_code, external_item_id, last_synced)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (sku) DO UPDATE SET
			    vendor_code = EXCLUDED.vendor_code,
			    external_item_id = EXCLUDED.external_item_id,
			    last_synced = EXCLUDED.last_synced`,
			e.SKU, e.VendorCode, e.ExternalItemID, e.LastSynced)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}
