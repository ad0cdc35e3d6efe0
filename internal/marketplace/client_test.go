package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fulfillment-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	path := writeTokenRecord(t, t.TempDir(), models.AccessToken{
		AccessToken:  "test-token",
		RefreshToken: "test-refresh",
		ExpiresAt:    time.Now().Add(time.Hour),
	})
	tokens := NewTokenProvider(srv.URL, "client", "secret", path)
	return NewClient(srv.URL, "https://cdn.example", "https://placeholder.example/150", "123456", tokens), srv
}

func TestFetchShipmentItemsSendsExtendedFormatHeader(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/shipments/42/items", r.URL.Path)
		assert.Equal(t, "true", r.Header.Get("x-format-new"))
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		json.NewEncoder(w).Encode([]ShipmentItemEntry{
			{ItemID: "MLA1", VariationID: 7, Quantity: 2, OrderID: "900"},
		})
	}))

	entries, err := client.FetchShipmentItems(context.Background(), "42")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "MLA1", entries[0].ItemID)
	assert.Equal(t, "900", entries[0].OrderID)
}

func TestUpstreamErrorOnNon2xx(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"not found"}`, http.StatusNotFound)
	}))

	_, err := client.FetchOrder(context.Background(), "nope")
	var upstreamErr *models.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, http.StatusNotFound, upstreamErr.StatusCode)
}

func TestSearchOrderFallbackEmptyResult(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/search", r.URL.Path)
		assert.Equal(t, "123456", r.URL.Query().Get("seller"))
		assert.Equal(t, "777", r.URL.Query().Get("q"))
		json.NewEncoder(w).Encode(orderSearchResult{})
	}))

	order, err := client.SearchOrderFallback(context.Background(), "777")
	require.NoError(t, err)
	assert.Nil(t, order)
}

func TestResolveImagesVariationUsesCDNConvention(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/MLA1/variations/7", r.URL.Path)
		json.NewEncoder(w).Encode(Variation{ID: 7, PictureIDs: []string{"111222", "333444"}})
	}))

	images := client.ResolveImages(context.Background(), "MLA1", 7)

	require.Len(t, images, 2)
	assert.Equal(t, "https://cdn.example/D_111222-O.jpg", images[0].URL)
	assert.Equal(t, "https://cdn.example/D_111222-I.jpg", images[0].Thumbnail)
	assert.Equal(t, "https://cdn.example/D_333444-O.jpg", images[1].URL)
}

func TestResolveImagesItemPictures(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/items/MLA2", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "MLA2",
			"pictures": []map[string]string{
				{"url": "http://img/full.jpg", "secure_url": "https://img/full.jpg"},
				{"url": "", "secure_url": ""},
			},
		})
	}))

	images := client.ResolveImages(context.Background(), "MLA2", 0)

	require.Len(t, images, 2)
	assert.Equal(t, "http://img/full.jpg", images[0].URL)
	assert.Equal(t, "https://img/full.jpg", images[0].Thumbnail)
	// Blank URLs fall back to the placeholder.
	assert.Equal(t, "https://placeholder.example/150", images[1].URL)
	assert.Equal(t, "https://placeholder.example/150", images[1].Thumbnail)
}

func TestResolveImagesPlaceholderOnFailure(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	images := client.ResolveImages(context.Background(), "MLA3", 0)

	require.Len(t, images, 1)
	assert.Equal(t, "https://placeholder.example/150", images[0].URL)
}
