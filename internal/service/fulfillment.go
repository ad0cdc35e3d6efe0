package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"fulfillment-service/internal/marketplace"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// lockRetryDelay is how long a scan waits before re-checking the
// cache when another instance holds the resolution lock.
const lockRetryDelay = 500 * time.Millisecond

// shipmentCacheStore is the persisted shipment cache.
type shipmentCacheStore interface {
	GetShipment(ctx context.Context, shipmentID string) (*models.ShipmentDetail, error)
	UpsertShipment(ctx context.Context, detail *models.ShipmentDetail) error
}

// advisoryLocker serializes concurrent resolution of one shipment
// across instances. Locking is best-effort: losing the lock degrades
// to duplicate upstream work, never to a wrong result.
type advisoryLocker interface {
	AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, lockKey string) error
}

// shipmentResolver produces the canonical detail for one shipment.
type shipmentResolver interface {
	ResolveShipment(ctx context.Context, shipmentID string) (*models.ShipmentDetail, error)
}

// itemEnricher attaches permalink and vendor-code metadata.
type itemEnricher interface {
	Enrich(ctx context.Context, items []models.OrderItem)
}

// resolvedPublisher emits the lifecycle event for a fresh resolution.
type resolvedPublisher interface {
	PublishShipmentResolved(ctx context.Context, detail *models.ShipmentDetail) error
}

// orderAPI is the slice of the marketplace client the direct order
// scan path consumes.
type orderAPI interface {
	FetchOrder(ctx context.Context, orderID string) (*marketplace.Order, error)
	SearchOrderFallback(ctx context.Context, orderID string) (*marketplace.Order, error)
	ResolveImages(ctx context.Context, itemID string, variationID int64) []models.Image
}

// FulfillmentService is the scan entry point: cache-first lookup,
// resolution under an advisory lock on miss, enrichment, and
// write-back.
type FulfillmentService struct {
	store     shipmentCacheStore
	locks     advisoryLocker
	resolver  shipmentResolver
	enricher  itemEnricher
	publisher resolvedPublisher
	market    orderAPI
	cacheTTL  time.Duration
	lockTTL   time.Duration
	logger    *zap.Logger
}

// NewFulfillmentService creates the scan service.
func NewFulfillmentService(store shipmentCacheStore, locks advisoryLocker, resolver shipmentResolver, enricher itemEnricher, publisher resolvedPublisher, market orderAPI, cacheTTL, lockTTL time.Duration) *FulfillmentService {
	return &FulfillmentService{
		store:     store,
		locks:     locks,
		resolver:  resolver,
		enricher:  enricher,
		publisher: publisher,
		market:    market,
		cacheTTL:  cacheTTL,
		lockTTL:   lockTTL,
		logger:    util.GetLogger(),
	}
}

// ScanShipment returns the shipment's pick-list detail, serving from
// the cache when a fresh, non-empty entry exists and resolving
// upstream otherwise. The returned bool reports a cache hit.
func (f *FulfillmentService) ScanShipment(ctx context.Context, shipmentID string) (*models.ShipmentDetail, bool, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.ScanShipment")
	defer span.End()

	if cached := f.cachedDetail(ctx, shipmentID); cached != nil {
		util.CacheHitsTotal.Inc()
		return cached, true, nil
	}
	util.CacheMissesTotal.Inc()

	lockKey := fmt.Sprintf("resolve:%s", shipmentID)
	acquired, err := f.locks.AcquireLock(ctx, lockKey, f.lockTTL)
	if err != nil {
		f.logger.Warn("Resolution lock unavailable, proceeding without it",
			zap.String("shipment_id", shipmentID),
			zap.Error(err))
		acquired = false
	}
	if acquired {
		defer func() {
			if err := f.locks.ReleaseLock(ctx, lockKey); err != nil {
				f.logger.Warn("Resolution lock release failed",
					zap.String("shipment_id", shipmentID),
					zap.Error(err))
			}
		}()
	} else if err == nil {
		// Another instance is resolving this shipment. Give it a
		// moment and take its result if it landed.
		time.Sleep(lockRetryDelay)
		if cached := f.cachedDetail(ctx, shipmentID); cached != nil {
			util.CacheHitsTotal.Inc()
			return cached, true, nil
		}
	}

	detail, err := f.resolveAndStore(ctx, shipmentID)
	if err != nil {
		return detail, false, err
	}
	return detail, false, nil
}

// cachedDetail returns the cached entry when it is fresh and carries
// items. Stale or empty entries are misses; they stay in place until
// overwritten or purged.
func (f *FulfillmentService) cachedDetail(ctx context.Context, shipmentID string) *models.ShipmentDetail {
	cached, err := f.store.GetShipment(ctx, shipmentID)
	if err != nil {
		f.logger.Warn("Shipment cache read failed",
			zap.String("shipment_id", shipmentID),
			zap.Error(err))
		return nil
	}
	if cached == nil || !cached.IsFresh(time.Now(), f.cacheTTL) || len(cached.Items) == 0 {
		return nil
	}
	return cached
}

// resolveAndStore runs the full resolution pipeline and writes the
// result back. Error details from an unsuccessful resolution are
// cached too; an empty Items slice keeps them from ever serving a hit.
func (f *FulfillmentService) resolveAndStore(ctx context.Context, shipmentID string) (*models.ShipmentDetail, error) {
	start := time.Now()
	detail, resolveErr := f.resolver.ResolveShipment(ctx, shipmentID)
	util.ResolutionLatency.Observe(time.Since(start).Seconds())

	if detail == nil {
		return nil, resolveErr
	}

	if resolveErr == nil {
		f.enricher.Enrich(ctx, detail.Items)
		util.ShipmentsResolvedTotal.Inc()
	}

	if err := f.store.UpsertShipment(ctx, detail); err != nil {
		f.logger.Error("Shipment cache write failed",
			zap.String("shipment_id", shipmentID),
			zap.Error(err))
	}

	if resolveErr == nil && f.publisher != nil {
		if err := f.publisher.PublishShipmentResolved(ctx, detail); err != nil {
			f.logger.Warn("Resolved event publish failed",
				zap.String("shipment_id", shipmentID),
				zap.Error(err))
		}
	}

	return detail, resolveErr
}

// ScanOrder handles a scan of an order id instead of a shipment id.
// When the order carries a shipment the full shipment pipeline runs;
// a shipmentless order is parsed and enriched directly without
// touching the cache.
func (f *FulfillmentService) ScanOrder(ctx context.Context, orderID string) (*models.ShipmentDetail, bool, error) {
	ctx, span := util.StartSpan(ctx, "FulfillmentService.ScanOrder")
	defer span.End()

	order, err := f.fetchOrderWithFallback(ctx, orderID)
	if err != nil {
		return nil, false, err
	}

	if order.Shipping.ID != 0 {
		return f.ScanShipment(ctx, strconv.FormatInt(order.Shipping.ID, 10))
	}

	parsed := marketplace.ParseOrder(order)
	for i := range parsed.Items {
		parsed.Items[i].Images = f.market.ResolveImages(ctx, parsed.Items[i].ItemID, parsed.Items[i].VariationID)
	}
	f.enricher.Enrich(ctx, parsed.Items)

	return &models.ShipmentDetail{
		OrderIDs:       []string{orderID},
		PrimaryOrderID: orderID,
		Customer:       parsed.Customer,
		StatusLabel:    marketplace.StatusLabel(""),
		Items:          parsed.Items,
		FetchedAt:      time.Now(),
	}, false, nil
}

// fetchOrderWithFallback tries the direct order endpoint, then the
// seller-scoped search. Scanned barcodes sometimes carry an id the
// direct endpoint rejects but search still finds.
func (f *FulfillmentService) fetchOrderWithFallback(ctx context.Context, orderID string) (*marketplace.Order, error) {
	order, err := f.market.FetchOrder(ctx, orderID)
	if err == nil && order != nil {
		return order, nil
	}
	if err != nil {
		f.logger.Info("Direct order fetch failed, trying search",
			zap.String("order_id", orderID),
			zap.Error(err))
	}

	order, searchErr := f.market.SearchOrderFallback(ctx, orderID)
	if searchErr != nil {
		return nil, searchErr
	}
	if order == nil {
		return nil, &models.NotFoundError{Kind: "order", ID: orderID}
	}
	return order, nil
}
