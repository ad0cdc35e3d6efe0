package service

import (
	"context"
	"sync"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// permalinkSource fetches item permalinks from the marketplace.
type permalinkSource interface {
	FetchItemPermalink(ctx context.Context, itemID string) (string, error)
}

// permalinkCache is the write-through permalink store.
type permalinkCache interface {
	SetPermalink(ctx context.Context, itemID, permalink string) error
}

// catalogSource performs the full vendor catalog sync.
type catalogSource interface {
	FetchAllItems(ctx context.Context) ([]models.VendorCatalogEntry, error)
}

// catalogStore is the local vendor catalog cache.
type catalogStore interface {
	CatalogEntriesBySKU(ctx context.Context, skus []string) (map[string]models.VendorCatalogEntry, error)
	UpsertCatalogEntries(ctx context.Context, entries []models.VendorCatalogEntry) error
}

// Enricher attaches permalink and vendor-code metadata to resolved
// items. Fan-out runs over distinct keys, not per item instance:
// repeated SKUs and item ids inside one shipment must not duplicate
// network work.
type Enricher struct {
	market       permalinkSource
	permalinks   permalinkCache
	catalog      catalogSource
	catalogCache catalogStore
	concurrency  int
	logger       *zap.Logger
}

// NewEnricher creates an enricher with the given fan-out bound.
func NewEnricher(market permalinkSource, permalinks permalinkCache, catalog catalogSource, catalogCache catalogStore, concurrency int) *Enricher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Enricher{
		market:       market,
		permalinks:   permalinks,
		catalog:      catalog,
		catalogCache: catalogCache,
		concurrency:  concurrency,
		logger:       util.GetLogger(),
	}
}

// Enrich runs both enrichment stages over the items in place.
func (e *Enricher) Enrich(ctx context.Context, items []models.OrderItem) {
	ctx, span := util.StartSpan(ctx, "Enricher.Enrich")
	defer span.End()

	start := time.Now()
	defer func() {
		util.EnrichmentLatency.Observe(time.Since(start).Seconds())
	}()

	e.EnrichPermalinks(ctx, items)
	e.EnrichVendorCodes(ctx, items)
}

// EnrichPermalinks fetches permalinks for the distinct item ids among
// the items, one concurrent request per id, bounded and joined before
// returning. Results are written through to the permalink cache and
// assigned back by item id. Individual failures are logged and leave
// that item's permalink unset.
func (e *Enricher) EnrichPermalinks(ctx context.Context, items []models.OrderItem) {
	itemIDs := distinctItemIDs(items)
	if len(itemIDs) == 0 {
		return
	}

	var (
		mu         sync.Mutex
		wg         sync.WaitGroup
		permalinks = make(map[string]string, len(itemIDs))
		sem        = make(chan struct{}, e.concurrency)
	)

	for _, itemID := range itemIDs {
		wg.Add(1)
		sem <- struct{}{}
		go func(itemID string) {
			defer wg.Done()
			defer func() { <-sem }()

			permalink, err := e.market.FetchItemPermalink(ctx, itemID)
			if err != nil {
				util.EnrichmentFailedTotal.WithLabelValues("permalink").Inc()
				e.logger.Warn("Permalink fetch failed",
					zap.String("item_id", itemID),
					zap.Error(err))
				return
			}

			if err := e.permalinks.SetPermalink(ctx, itemID, permalink); err != nil {
				e.logger.Warn("Permalink cache write failed",
					zap.String("item_id", itemID),
					zap.Error(err))
			}

			mu.Lock()
			permalinks[itemID] = permalink
			mu.Unlock()
		}(itemID)
	}
	wg.Wait()

	for i := range items {
		if permalink, ok := permalinks[items[i].ItemID]; ok {
			items[i].Permalink = permalink
		}
	}
}

// EnrichVendorCodes assigns vendor codes to items by SKU, cache-first.
// All cache misses are collected into one set; a single full catalog
// sync covers them, never one sync per SKU. SKUs absent from the
// catalog stay unenriched.
func (e *Enricher) EnrichVendorCodes(ctx context.Context, items []models.OrderItem) {
	skus := distinctSKUs(items)
	if len(skus) == 0 {
		return
	}

	known, err := e.catalogCache.CatalogEntriesBySKU(ctx, skus)
	if err != nil {
		util.EnrichmentFailedTotal.WithLabelValues("vendor_code").Inc()
		e.logger.Warn("Vendor catalog cache lookup failed", zap.Error(err))
		known = map[string]models.VendorCatalogEntry{}
	}

	var missing []string
	for _, sku := range skus {
		if _, ok := known[sku]; !ok {
			missing = append(missing, sku)
		}
	}

	if len(missing) > 0 {
		synced := e.syncCatalog(ctx, missing)
		for sku, entry := range synced {
			known[sku] = entry
		}
	}

	for i := range items {
		if entry, ok := known[items[i].SKU]; ok {
			items[i].VendorCode = entry.VendorCode
		}
	}
}

// SyncAll refreshes the whole vendor catalog cache and returns the
// number of entries synced.
func (e *Enricher) SyncAll(ctx context.Context) (int, error) {
	ctx, span := util.StartSpan(ctx, "Enricher.SyncAll")
	defer span.End()

	util.CatalogSyncsTotal.Inc()
	all, err := e.catalog.FetchAllItems(ctx)
	if err != nil {
		return 0, err
	}
	if err := e.catalogCache.UpsertCatalogEntries(ctx, all); err != nil {
		return 0, err
	}
	return len(all), nil
}

// syncCatalog performs exactly one full catalog sync and persists the
// entries matching the missing SKUs.
func (e *Enricher) syncCatalog(ctx context.Context, missing []string) map[string]models.VendorCatalogEntry {
	util.CatalogSyncsTotal.Inc()

	all, err := e.catalog.FetchAllItems(ctx)
	if err != nil {
		util.EnrichmentFailedTotal.WithLabelValues("catalog_sync").Inc()
		e.logger.Warn("Vendor catalog sync failed", zap.Error(err))
		return nil
	}

	wanted := make(map[string]bool, len(missing))
	for _, sku := range missing {
		wanted[sku] = true
	}

	matched := make(map[string]models.VendorCatalogEntry, len(missing))
	var fresh []models.VendorCatalogEntry
	for _, entry := range all {
		if wanted[entry.SKU] {
			matched[entry.SKU] = entry
			fresh = append(fresh, entry)
		}
	}

	if err := e.catalogCache.UpsertCatalogEntries(ctx, fresh); err != nil {
		e.logger.Warn("Vendor catalog persist failed", zap.Error(err))
	}
	return matched
}

func distinctItemIDs(items []models.OrderItem) []string {
	seen := make(map[string]bool, len(items))
	var ids []string
	for _, item := range items {
		if item.ItemID == "" || seen[item.ItemID] {
			continue
		}
		seen[item.ItemID] = true
		ids = append(ids, item.ItemID)
	}
	return ids
}

func distinctSKUs(items []models.OrderItem) []string {
	seen := make(map[string]bool, len(items))
	var skus []string
	for _, item := range items {
		if item.SKU == "" || item.SKU == models.UnknownSKU || seen[item.SKU] {
			continue
		}
		seen[item.SKU] = true
		skus = append(skus, item.SKU)
	}
	return skus
}
