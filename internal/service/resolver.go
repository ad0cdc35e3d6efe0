package service

import (
	"context"
	"time"

	"fulfillment-service/internal/marketplace"
	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// marketplaceAPI is the slice of the marketplace client the resolver
// consumes.
type marketplaceAPI interface {
	FetchShipment(ctx context.Context, shipmentID string) (*marketplace.Shipment, error)
	FetchShipmentItems(ctx context.Context, shipmentID string) ([]marketplace.ShipmentItemEntry, error)
	FetchOrder(ctx context.Context, orderID string) (*marketplace.Order, error)
	SearchOrderFallback(ctx context.Context, orderID string) (*marketplace.Order, error)
	ResolveImages(ctx context.Context, itemID string, variationID int64) []models.Image
}

// Resolver aggregates the pick list for one shipment across all the
// marketplace orders it spans.
type Resolver struct {
	market marketplaceAPI
	logger *zap.Logger
}

// NewResolver creates a shipment resolver.
func NewResolver(market marketplaceAPI) *Resolver {
	return &Resolver{
		market: market,
		logger: util.GetLogger(),
	}
}

// ResolveShipment fetches the shipment's item-entry listing and walks
// it sequentially, in input order. Ordering is a correctness
// requirement: primary_order_id and customer are determined by first
// entry / first success, so entries must not be processed
// concurrently. Order fetches are memoized per pass, bounding fetch
// count to the number of distinct order ids.
func (r *Resolver) ResolveShipment(ctx context.Context, shipmentID string) (*models.ShipmentDetail, error) {
	ctx, span := util.StartSpan(ctx, "Resolver.ResolveShipment")
	defer span.End()

	entries, err := r.market.FetchShipmentItems(ctx, shipmentID)
	if err != nil {
		// The one required call; everything else is skip-and-log.
		util.ResolutionFailedTotal.WithLabelValues("items_listing").Inc()
		return nil, err
	}
	if len(entries) == 0 {
		util.ResolutionFailedTotal.WithLabelValues("empty_listing").Inc()
		return errorDetail(shipmentID), &models.NotFoundError{Kind: "shipment items", ID: shipmentID}
	}

	statusRaw, logisticType := r.fetchStatus(ctx, shipmentID)

	detail := &models.ShipmentDetail{
		ShipmentID:  shipmentID,
		StatusRaw:   statusRaw,
		StatusLabel: marketplace.StatusLabel(statusRaw),
	}

	orders := make(map[string]*marketplace.Order, len(entries))

	for _, entry := range entries {
		if entry.OrderID == "" {
			continue
		}
		if detail.PrimaryOrderID == "" {
			detail.PrimaryOrderID = entry.OrderID
		}

		order, fetched := orders[entry.OrderID]
		if !fetched {
			order = r.fetchOrder(ctx, entry.OrderID)
			orders[entry.OrderID] = order
			if order != nil {
				detail.OrderIDs = append(detail.OrderIDs, entry.OrderID)
			}
		}
		if order == nil {
			util.ResolutionEntriesSkipped.Inc()
			continue
		}

		if detail.Customer == "" && order.Buyer.Nickname != "" {
			detail.Customer = order.Buyer.Nickname
		}

		line := matchLine(order, entry)
		if line == nil {
			r.logger.Warn("No order line matched shipment entry",
				zap.String("shipment_id", shipmentID),
				zap.String("order_id", entry.OrderID),
				zap.String("item_id", entry.ItemID))
			util.ResolutionEntriesSkipped.Inc()
			continue
		}

		// Parse the matched line wrapped as a one-line order, then
		// run the explicit image resolution step on the result.
		single := &marketplace.Order{Buyer: order.Buyer, OrderItems: []marketplace.OrderLine{*line}}
		parsed := marketplace.ParseOrder(single)
		for i := range parsed.Items {
			item := &parsed.Items[i]
			item.Images = r.market.ResolveImages(ctx, item.ItemID, item.VariationID)
			item.LogisticType = logisticType
		}
		detail.Items = append(detail.Items, parsed.Items...)
	}

	if len(detail.Items) == 0 {
		util.ResolutionFailedTotal.WithLabelValues("no_items").Inc()
		return errorDetail(shipmentID), &models.NotFoundError{Kind: "shipment items", ID: shipmentID}
	}

	if detail.Customer == "" {
		detail.Customer = models.UnknownCustomer
	}
	detail.LogisticType = logisticType
	detail.FetchedAt = time.Now()

	return detail, nil
}

// fetchStatus retrieves shipment status and logistic type; an
// unresolvable fetch defaults the status to the unknown sentinel.
func (r *Resolver) fetchStatus(ctx context.Context, shipmentID string) (statusRaw, logisticType string) {
	shipment, err := r.market.FetchShipment(ctx, shipmentID)
	if err != nil {
		r.logger.Warn("Failed to fetch shipment status",
			zap.String("shipment_id", shipmentID),
			zap.Error(err))
		return models.UnknownStatus, ""
	}
	return shipment.Status, shipment.LogisticType
}

// fetchOrder retrieves one order, falling back to the seller-scoped
// search when the direct fetch fails. A nil return means the entry is
// skipped; resolution continues with the remaining entries.
func (r *Resolver) fetchOrder(ctx context.Context, orderID string) *marketplace.Order {
	order, err := r.market.FetchOrder(ctx, orderID)
	if err == nil {
		return order
	}
	r.logger.Warn("Direct order fetch failed, trying search fallback",
		zap.String("order_id", orderID),
		zap.Error(err))

	order, err = r.market.SearchOrderFallback(ctx, orderID)
	if err != nil || order == nil {
		r.logger.Warn("Order unavailable, skipping its entries",
			zap.String("order_id", orderID),
			zap.Error(err))
		return nil
	}
	return order
}

// matchLine locates the exact order line whose (item_id, variation_id)
// matches the shipment entry.
func matchLine(order *marketplace.Order, entry marketplace.ShipmentItemEntry) *marketplace.OrderLine {
	lines := order.Lines()
	for i := range lines {
		prod := lines[i].Product()
		if prod.ID == entry.ItemID && prod.VariationID == entry.VariationID {
			return &lines[i]
		}
	}
	return nil
}

// errorDetail is the canonical empty result shape.
func errorDetail(shipmentID string) *models.ShipmentDetail {
	return &models.ShipmentDetail{
		ShipmentID: shipmentID,
		Customer:   "Error",
		Items:      []models.OrderItem{},
	}
}
