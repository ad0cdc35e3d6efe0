package service

import (
	"context"
	"errors"
	"testing"

	"fulfillment-service/internal/marketplace"
	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMarket is an in-memory marketplace for resolver tests.
type fakeMarket struct {
	shipment      *marketplace.Shipment
	shipmentErr   error
	entries       []marketplace.ShipmentItemEntry
	entriesErr    error
	orders        map[string]*marketplace.Order
	failOrders    map[string]bool
	searchResults map[string]*marketplace.Order

	orderFetches  []string
	searchFetches []string
}

func (f *fakeMarket) FetchShipment(ctx context.Context, shipmentID string) (*marketplace.Shipment, error) {
	if f.shipmentErr != nil {
		return nil, f.shipmentErr
	}
	if f.shipment == nil {
		return &marketplace.Shipment{Status: "ready_to_ship", LogisticType: "self_service"}, nil
	}
	return f.shipment, nil
}

func (f *fakeMarket) FetchShipmentItems(ctx context.Context, shipmentID string) ([]marketplace.ShipmentItemEntry, error) {
	return f.entries, f.entriesErr
}

func (f *fakeMarket) FetchOrder(ctx context.Context, orderID string) (*marketplace.Order, error) {
	f.orderFetches = append(f.orderFetches, orderID)
	if f.failOrders[orderID] {
		return nil, &models.UpstreamError{Endpoint: "/orders/" + orderID, StatusCode: 500}
	}
	order, ok := f.orders[orderID]
	if !ok {
		return nil, &models.UpstreamError{Endpoint: "/orders/" + orderID, StatusCode: 404}
	}
	return order, nil
}

func (f *fakeMarket) SearchOrderFallback(ctx context.Context, orderID string) (*marketplace.Order, error) {
	f.searchFetches = append(f.searchFetches, orderID)
	return f.searchResults[orderID], nil
}

func (f *fakeMarket) ResolveImages(ctx context.Context, itemID string, variationID int64) []models.Image {
	return []models.Image{{URL: "http://img/" + itemID, Thumbnail: "http://thumb/" + itemID}}
}

func orderWithLines(buyer string, lines ...marketplace.OrderLine) *marketplace.Order {
	return &marketplace.Order{
		Buyer:      marketplace.Buyer{Nickname: buyer},
		OrderItems: lines,
	}
}

func line(itemID string, variationID int64, sku string, qty int) marketplace.OrderLine {
	return marketplace.OrderLine{
		Item: &marketplace.LineProduct{
			ID:          itemID,
			Title:       "Item " + itemID,
			VariationID: variationID,
			SellerSKU:   sku,
		},
		Quantity: qty,
	}
}

func TestResolveShipmentMultiOrder(t *testing.T) {
	market := &fakeMarket{
		entries: []marketplace.ShipmentItemEntry{
			{ItemID: "MLA1", Quantity: 2, OrderID: "O1"},
			{ItemID: "MLA2", VariationID: 9, Quantity: 1, OrderID: "O2"},
			{ItemID: "MLA3", Quantity: 1, OrderID: "O1"},
		},
		orders: map[string]*marketplace.Order{
			"O1": orderWithLines("buyer_one",
				line("MLA1", 0, "SKU-1", 2),
				line("MLA3", 0, "SKU-3", 1),
			),
			"O2": orderWithLines("buyer_two",
				line("MLA2", 9, "SKU-2", 1),
			),
		},
	}

	resolver := NewResolver(market)
	detail, err := resolver.ResolveShipment(context.Background(), "S1")
	require.NoError(t, err)

	assert.Equal(t, "S1", detail.ShipmentID)
	assert.Equal(t, "O1", detail.PrimaryOrderID)
	assert.ElementsMatch(t, []string{"O1", "O2"}, detail.OrderIDs)
	// Customer comes from the first successfully fetched order.
	assert.Equal(t, "buyer_one", detail.Customer)
	assert.Equal(t, "ready_to_ship", detail.StatusRaw)
	assert.Equal(t, "Ready to ship", detail.StatusLabel)
	assert.Equal(t, "self_service", detail.LogisticType)
	assert.False(t, detail.FetchedAt.IsZero())

	// Items preserve listing order, with images attached.
	require.Len(t, detail.Items, 3)
	assert.Equal(t, "MLA1", detail.Items[0].ItemID)
	assert.Equal(t, 2, detail.Items[0].Quantity)
	assert.Equal(t, "MLA2", detail.Items[1].ItemID)
	assert.Equal(t, "MLA3", detail.Items[2].ItemID)
	require.Len(t, detail.Items[0].Images, 1)
	assert.Equal(t, "http://img/MLA1", detail.Items[0].Images[0].URL)
}

func TestResolveShipmentMemoizesOrderFetches(t *testing.T) {
	market := &fakeMarket{
		entries: []marketplace.ShipmentItemEntry{
			{ItemID: "MLA1", Quantity: 1, OrderID: "O1"},
			{ItemID: "MLA2", Quantity: 1, OrderID: "O1"},
			{ItemID: "MLA3", Quantity: 1, OrderID: "O1"},
			{ItemID: "MLA4", Quantity: 1, OrderID: "O2"},
		},
		orders: map[string]*marketplace.Order{
			"O1": orderWithLines("b",
				line("MLA1", 0, "", 1), line("MLA2", 0, "", 1), line("MLA3", 0, "", 1)),
			"O2": orderWithLines("b", line("MLA4", 0, "", 1)),
		},
	}

	resolver := NewResolver(market)
	_, err := resolver.ResolveShipment(context.Background(), "S1")
	require.NoError(t, err)

	// Four entries, two distinct orders, two fetches.
	assert.Equal(t, []string{"O1", "O2"}, market.orderFetches)
}

func TestResolveShipmentSkipsUnfetchableOrders(t *testing.T) {
	market := &fakeMarket{
		entries: []marketplace.ShipmentItemEntry{
			{ItemID: "MLA1", Quantity: 1, OrderID: "O1"},
			{ItemID: "MLA2", Quantity: 1, OrderID: "O2"},
		},
		orders: map[string]*marketplace.Order{
			"O2": orderWithLines("buyer_two", line("MLA2", 0, "SKU-2", 1)),
		},
		failOrders: map[string]bool{"O1": true},
	}

	resolver := NewResolver(market)
	detail, err := resolver.ResolveShipment(context.Background(), "S1")
	require.NoError(t, err)

	// O1 still anchors primary_order_id even though its fetch failed.
	assert.Equal(t, "O1", detail.PrimaryOrderID)
	assert.Equal(t, []string{"O2"}, detail.OrderIDs)
	assert.Equal(t, "buyer_two", detail.Customer)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, "MLA2", detail.Items[0].ItemID)

	// The failed direct fetch fell through to search once.
	assert.Equal(t, []string{"O1"}, market.searchFetches)
}

func TestResolveShipmentSearchFallbackRecovers(t *testing.T) {
	market := &fakeMarket{
		entries: []marketplace.ShipmentItemEntry{
			{ItemID: "MLA1", Quantity: 1, OrderID: "O1"},
		},
		failOrders: map[string]bool{"O1": true},
		searchResults: map[string]*marketplace.Order{
			"O1": orderWithLines("found_by_search", line("MLA1", 0, "SKU-1", 1)),
		},
	}

	resolver := NewResolver(market)
	detail, err := resolver.ResolveShipment(context.Background(), "S1")
	require.NoError(t, err)

	assert.Equal(t, "found_by_search", detail.Customer)
	require.Len(t, detail.Items, 1)
}

func TestResolveShipmentItemsListingFailureIsFatal(t *testing.T) {
	market := &fakeMarket{
		entriesErr: &models.UpstreamError{Endpoint: "/shipments/S1/items", StatusCode: 500},
	}

	resolver := NewResolver(market)
	detail, err := resolver.ResolveShipment(context.Background(), "S1")

	assert.Nil(t, detail)
	var upstreamErr *models.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
}

func TestResolveShipmentEmptyListing(t *testing.T) {
	market := &fakeMarket{entries: nil}

	resolver := NewResolver(market)
	detail, err := resolver.ResolveShipment(context.Background(), "S1")

	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.NotNil(t, detail)
	assert.Equal(t, "Error", detail.Customer)
	assert.Empty(t, detail.Items)
}

func TestResolveShipmentNoResolvableItems(t *testing.T) {
	market := &fakeMarket{
		entries: []marketplace.ShipmentItemEntry{
			{ItemID: "MLA1", Quantity: 1, OrderID: "O1"},
		},
		failOrders: map[string]bool{"O1": true},
	}

	resolver := NewResolver(market)
	detail, err := resolver.ResolveShipment(context.Background(), "S1")

	var notFound *models.NotFoundError
	require.ErrorAs(t, err, &notFound)
	require.NotNil(t, detail)
	assert.Empty(t, detail.Items)
}

func TestResolveShipmentStatusFetchFailureUsesSentinel(t *testing.T) {
	market := &fakeMarket{
		shipmentErr: errors.New("timeout"),
		entries: []marketplace.ShipmentItemEntry{
			{ItemID: "MLA1", Quantity: 1, OrderID: "O1"},
		},
		orders: map[string]*marketplace.Order{
			"O1": orderWithLines("b", line("MLA1", 0, "SKU-1", 1)),
		},
	}

	resolver := NewResolver(market)
	detail, err := resolver.ResolveShipment(context.Background(), "S1")
	require.NoError(t, err)

	assert.Equal(t, models.UnknownStatus, detail.StatusRaw)
}

func TestResolveShipmentMatchesVariationExactly(t *testing.T) {
	market := &fakeMarket{
		entries: []marketplace.ShipmentItemEntry{
			{ItemID: "MLA1", VariationID: 7, Quantity: 1, OrderID: "O1"},
		},
		orders: map[string]*marketplace.Order{
			"O1": orderWithLines("b",
				line("MLA1", 5, "SKU-VAR5", 1),
				line("MLA1", 7, "SKU-VAR7", 1),
			),
		},
	}

	resolver := NewResolver(market)
	detail, err := resolver.ResolveShipment(context.Background(), "S1")
	require.NoError(t, err)

	require.Len(t, detail.Items, 1)
	assert.Equal(t, "SKU-VAR7", detail.Items[0].SKU)
}
