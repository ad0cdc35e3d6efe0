package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePermalinkSource struct {
	mu         sync.Mutex
	permalinks map[string]string
	failItems  map[string]bool
	fetches    []string
}

func (f *fakePermalinkSource) FetchItemPermalink(ctx context.Context, itemID string) (string, error) {
	f.mu.Lock()
	f.fetches = append(f.fetches, itemID)
	f.mu.Unlock()
	if f.failItems[itemID] {
		return "", errors.New("permalink unavailable")
	}
	return f.permalinks[itemID], nil
}

type fakePermalinkCache struct {
	mu     sync.Mutex
	stored map[string]string
	err    error
}

func (f *fakePermalinkCache) SetPermalink(ctx context.Context, itemID, permalink string) error {
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stored == nil {
		f.stored = map[string]string{}
	}
	f.stored[itemID] = permalink
	return nil
}

type fakeCatalogSource struct {
	entries []models.VendorCatalogEntry
	err     error
	calls   int
}

func (f *fakeCatalogSource) FetchAllItems(ctx context.Context) ([]models.VendorCatalogEntry, error) {
	f.calls++
	return f.entries, f.err
}

type fakeCatalogStore struct {
	known     map[string]models.VendorCatalogEntry
	lookupErr error
	upserted  []models.VendorCatalogEntry
}

func (f *fakeCatalogStore) CatalogEntriesBySKU(ctx context.Context, skus []string) (map[string]models.VendorCatalogEntry, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	out := map[string]models.VendorCatalogEntry{}
	for _, sku := range skus {
		if entry, ok := f.known[sku]; ok {
			out[sku] = entry
		}
	}
	return out, nil
}

func (f *fakeCatalogStore) UpsertCatalogEntries(ctx context.Context, entries []models.VendorCatalogEntry) error {
	f.upserted = append(f.upserted, entries...)
	return nil
}

func newTestEnricher(src *fakePermalinkSource, cache *fakePermalinkCache, cat *fakeCatalogSource, store *fakeCatalogStore) *Enricher {
	return NewEnricher(src, cache, cat, store, 4)
}

func catalogEntry(sku, vendorCode string) models.VendorCatalogEntry {
	return models.VendorCatalogEntry{SKU: sku, VendorCode: vendorCode, LastSynced: time.Now()}
}

func TestEnrichPermalinksDistinctItemsOnly(t *testing.T) {
	src := &fakePermalinkSource{permalinks: map[string]string{
		"MLA1": "http://ml/mla1",
		"MLA2": "http://ml/mla2",
	}}
	cache := &fakePermalinkCache{}
	enricher := newTestEnricher(src, cache, &fakeCatalogSource{}, &fakeCatalogStore{})

	items := []models.OrderItem{
		{ItemID: "MLA1", SKU: "A"},
		{ItemID: "MLA1", SKU: "A"},
		{ItemID: "MLA2", SKU: "B"},
	}
	enricher.EnrichPermalinks(context.Background(), items)

	// One fetch per distinct item id.
	assert.Len(t, src.fetches, 2)

	assert.Equal(t, "http://ml/mla1", items[0].Permalink)
	assert.Equal(t, "http://ml/mla1", items[1].Permalink)
	assert.Equal(t, "http://ml/mla2", items[2].Permalink)

	// Write-through cache got both.
	assert.Equal(t, "http://ml/mla1", cache.stored["MLA1"])
	assert.Equal(t, "http://ml/mla2", cache.stored["MLA2"])
}

func TestEnrichPermalinksFailuresAreNonFatal(t *testing.T) {
	src := &fakePermalinkSource{
		permalinks: map[string]string{"MLA2": "http://ml/mla2"},
		failItems:  map[string]bool{"MLA1": true},
	}
	enricher := newTestEnricher(src, &fakePermalinkCache{}, &fakeCatalogSource{}, &fakeCatalogStore{})

	items := []models.OrderItem{
		{ItemID: "MLA1"},
		{ItemID: "MLA2"},
	}
	enricher.EnrichPermalinks(context.Background(), items)

	assert.Empty(t, items[0].Permalink)
	assert.Equal(t, "http://ml/mla2", items[1].Permalink)
}

func TestEnrichVendorCodesCacheFirstSingleSync(t *testing.T) {
	catalog := &fakeCatalogSource{entries: []models.VendorCatalogEntry{
		catalogEntry("SKU-MISS-1", "V-100"),
		catalogEntry("SKU-MISS-2", "V-200"),
		catalogEntry("SKU-UNRELATED", "V-999"),
	}}
	store := &fakeCatalogStore{known: map[string]models.VendorCatalogEntry{
		"SKU-HIT": catalogEntry("SKU-HIT", "V-1"),
	}}
	enricher := newTestEnricher(&fakePermalinkSource{}, &fakePermalinkCache{}, catalog, store)

	items := []models.OrderItem{
		{SKU: "SKU-HIT"},
		{SKU: "SKU-MISS-1"},
		{SKU: "SKU-MISS-2"},
		{SKU: "SKU-MISS-1"},
	}
	enricher.EnrichVendorCodes(context.Background(), items)

	// Two misses, exactly one full sync.
	assert.Equal(t, 1, catalog.calls)

	assert.Equal(t, "V-1", items[0].VendorCode)
	assert.Equal(t, "V-100", items[1].VendorCode)
	assert.Equal(t, "V-200", items[2].VendorCode)
	assert.Equal(t, "V-100", items[3].VendorCode)

	// Only the missing SKUs were persisted, not the whole catalog.
	require.Len(t, store.upserted, 2)
}

func TestEnrichVendorCodesAllHitsSkipSync(t *testing.T) {
	catalog := &fakeCatalogSource{}
	store := &fakeCatalogStore{known: map[string]models.VendorCatalogEntry{
		"SKU-1": catalogEntry("SKU-1", "V-1"),
	}}
	enricher := newTestEnricher(&fakePermalinkSource{}, &fakePermalinkCache{}, catalog, store)

	items := []models.OrderItem{{SKU: "SKU-1"}}
	enricher.EnrichVendorCodes(context.Background(), items)

	assert.Equal(t, 0, catalog.calls)
	assert.Equal(t, "V-1", items[0].VendorCode)
}

func TestEnrichVendorCodesSkipsUnknownSKUSentinel(t *testing.T) {
	catalog := &fakeCatalogSource{}
	store := &fakeCatalogStore{}
	enricher := newTestEnricher(&fakePermalinkSource{}, &fakePermalinkCache{}, catalog, store)

	items := []models.OrderItem{{SKU: models.UnknownSKU}, {SKU: ""}}
	enricher.EnrichVendorCodes(context.Background(), items)

	// Nothing to look up, no sync.
	assert.Equal(t, 0, catalog.calls)
}

func TestEnrichVendorCodesSyncFailureIsNonFatal(t *testing.T) {
	catalog := &fakeCatalogSource{err: errors.New("catalog down")}
	store := &fakeCatalogStore{}
	enricher := newTestEnricher(&fakePermalinkSource{}, &fakePermalinkCache{}, catalog, store)

	items := []models.OrderItem{{SKU: "SKU-1"}}
	enricher.EnrichVendorCodes(context.Background(), items)

	assert.Empty(t, items[0].VendorCode)
}

func TestSyncAllRefreshesWholeCatalog(t *testing.T) {
	catalog := &fakeCatalogSource{entries: []models.VendorCatalogEntry{
		catalogEntry("SKU-1", "V-1"),
		catalogEntry("SKU-2", "V-2"),
	}}
	store := &fakeCatalogStore{}
	enricher := newTestEnricher(&fakePermalinkSource{}, &fakePermalinkCache{}, catalog, store)

	count, err := enricher.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, store.upserted, 2)
}
