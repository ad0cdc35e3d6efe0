package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fulfillment-service/internal/models"
	"fulfillment-service/internal/util"

	"go.uber.org/zap"
)

// Client is the authenticated marketplace REST client. It owns no
// retry policy; callers decide their own fallback per endpoint.
type Client struct {
	apiBase        string
	cdnBase        string
	placeholderImg string
	sellerID       string
	tokens         *TokenProvider
	httpClient     *http.Client
	logger         *zap.Logger
}

// NewClient creates a marketplace client.
func NewClient(apiBase, cdnBase, placeholderImg, sellerID string, tokens *TokenProvider) *Client {
	return &Client{
		apiBase:        apiBase,
		cdnBase:        cdnBase,
		placeholderImg: placeholderImg,
		sellerID:       sellerID,
		tokens:         tokens,
		httpClient:     &http.Client{Timeout: 30 * time.Second},
		logger:         util.GetLogger(),
	}
}

// get performs an authenticated GET and decodes the JSON body into
// out. Non-2xx responses become UpstreamError.
func (c *Client) get(ctx context.Context, path string, params url.Values, headers map[string]string, out interface{}) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	u := c.apiBase + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &models.UpstreamError{
			Endpoint:   path,
			StatusCode: resp.StatusCode,
			Body:       string(body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

// FetchOrder retrieves one order payload.
func (c *Client) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	var order Order
	if err := c.get(ctx, "/orders/"+orderID, nil, nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// SearchOrderFallback looks an order up through the seller-scoped
// search endpoint and returns the first match, or nil when nothing
// matches. Used when a direct order fetch fails transiently due to
// permission or propagation delays.
func (c *Client) SearchOrderFallback(ctx context.Context, orderID string) (*Order, error) {
	params := url.Values{
		"seller": {c.sellerID},
		"q":      {orderID},
	}
	var result orderSearchResult
	if err := c.get(ctx, "/orders/search", params, nil, &result); err != nil {
		return nil, err
	}
	if len(result.Results) == 0 {
		return nil, nil
	}
	return &result.Results[0], nil
}

// FetchShipment retrieves shipment status and logistic type.
func (c *Client) FetchShipment(ctx context.Context, shipmentID string) (*Shipment, error) {
	var shipment Shipment
	if err := c.get(ctx, "/shipments/"+shipmentID, nil, nil, &shipment); err != nil {
		return nil, err
	}
	return &shipment, nil
}

// FetchShipmentItems retrieves the shipment's item-entry listing in
// the extended response format.
func (c *Client) FetchShipmentItems(ctx context.Context, shipmentID string) ([]ShipmentItemEntry, error) {
	headers := map[string]string{"x-format-new": "true"}
	var entries []ShipmentItemEntry
	if err := c.get(ctx, "/shipments/"+shipmentID+"/items", nil, headers, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// FetchItem retrieves one item payload.
func (c *Client) FetchItem(ctx context.Context, itemID string) (*Item, error) {
	var item Item
	if err := c.get(ctx, "/items/"+itemID, nil, nil, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// FetchItemVariation retrieves one variation of an item.
func (c *Client) FetchItemVariation(ctx context.Context, itemID string, variationID int64) (*Variation, error) {
	path := "/items/" + itemID + "/variations/" + strconv.FormatInt(variationID, 10)
	var variation Variation
	if err := c.get(ctx, path, nil, nil, &variation); err != nil {
		return nil, err
	}
	return &variation, nil
}

// FetchItemPermalink retrieves the public permalink of an item.
func (c *Client) FetchItemPermalink(ctx context.Context, itemID string) (string, error) {
	item, err := c.FetchItem(ctx, itemID)
	if err != nil {
		return "", err
	}
	return item.Permalink, nil
}

// ResolveImages resolves the picture list for one item line. This is
// the explicit side-effecting step the parser deliberately leaves out:
// variation pictures when a variation id is present, the item's own
// pictures otherwise, and a single placeholder pair when nothing
// resolves.
func (c *Client) ResolveImages(ctx context.Context, itemID string, variationID int64) []models.Image {
	var images []models.Image

	if variationID != 0 {
		variation, err := c.FetchItemVariation(ctx, itemID, variationID)
		if err != nil {
			c.logger.Warn("Failed to fetch variation pictures",
				zap.String("item_id", itemID),
				zap.Int64("variation_id", variationID),
				zap.Error(err))
		} else {
			for _, pid := range variation.PictureIDs {
				images = append(images, models.Image{
					URL:       fmt.Sprintf("%s/D_%s-O.jpg", c.cdnBase, pid),
					Thumbnail: fmt.Sprintf("%s/D_%s-I.jpg", c.cdnBase, pid),
				})
			}
		}
	} else {
		item, err := c.FetchItem(ctx, itemID)
		if err != nil {
			c.logger.Warn("Failed to fetch item pictures",
				zap.String("item_id", itemID),
				zap.Error(err))
		} else {
			for _, pic := range item.Pictures {
				img := models.Image{URL: pic.URL, Thumbnail: pic.SecureURL}
				if img.URL == "" {
					img.URL = c.placeholderImg
				}
				if img.Thumbnail == "" {
					img.Thumbnail = c.placeholderImg
				}
				images = append(images, img)
			}
		}
	}

	if len(images) == 0 {
		images = []models.Image{{URL: c.placeholderImg, Thumbnail: c.placeholderImg}}
	}
	return images
}
