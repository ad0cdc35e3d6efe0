package marketplace

// Wire payloads for the marketplace REST API. Raw payloads are
// validated and converted at this boundary; nothing past the parser
// sees them.

// Buyer identifies the purchasing account on an order.
type Buyer struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

// VariationAttribute is one name/value pair describing a variation.
type VariationAttribute struct {
	Name      string `json:"name"`
	ValueName string `json:"value_name"`
}

// LineProduct is the product block of an order line. In the current
// payload shape it nests under "item"; the legacy shape inlines the
// same fields on the line itself.
type LineProduct struct {
	ID                  string               `json:"id"`
	Title               string               `json:"title"`
	VariationID         int64                `json:"variation_id"`
	VariationAttributes []VariationAttribute `json:"variation_attributes"`
	SellerSKU           string               `json:"seller_sku"`
	SellerCustomField   string               `json:"seller_custom_field"`
}

// OrderLine is one line of an order payload, in either legacy shape.
type OrderLine struct {
	Item              *LineProduct `json:"item"`
	Quantity          int          `json:"quantity"`
	SellerSKU         string       `json:"seller_sku"`
	SellerCustomField string       `json:"seller_custom_field"`

	// Flat-shape product fields, used when Item is absent.
	LineProduct
}

// Product returns the product block regardless of payload shape.
func (l *OrderLine) Product() *LineProduct {
	if l.Item != nil {
		return l.Item
	}
	return &l.LineProduct
}

// Order is the GET /orders/{id} payload.
type Order struct {
	ID         int64       `json:"id"`
	Buyer      Buyer       `json:"buyer"`
	OrderItems []OrderLine `json:"order_items"`
	// Legacy payloads carry lines under "items" instead.
	Items    []OrderLine `json:"items"`
	Shipping struct {
		ID int64 `json:"id"`
	} `json:"shipping"`
}

// Lines returns the order's line items regardless of payload shape.
func (o *Order) Lines() []OrderLine {
	if len(o.OrderItems) > 0 {
		return o.OrderItems
	}
	return o.Items
}

// Shipment is the GET /shipments/{id} payload, reduced to the fields
// the pipeline consumes.
type Shipment struct {
	ID           int64  `json:"id"`
	Status       string `json:"status"`
	LogisticType string `json:"logistic_type"`
}

// ShipmentItemEntry is one entry of the GET /shipments/{id}/items
// listing (extended format).
type ShipmentItemEntry struct {
	ItemID      string `json:"item_id"`
	VariationID int64  `json:"variation_id"`
	Quantity    int    `json:"quantity"`
	OrderID     string `json:"order_id"`
}

// Item is the GET /items/{id} payload.
type Item struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Permalink string `json:"permalink"`
	Pictures  []struct {
		URL       string `json:"url"`
		SecureURL string `json:"secure_url"`
	} `json:"pictures"`
}

// Variation is the GET /items/{id}/variations/{variation_id} payload.
type Variation struct {
	ID         int64    `json:"id"`
	PictureIDs []string `json:"picture_ids"`
}

// orderSearchResult is the seller-scoped GET /orders/search payload.
type orderSearchResult struct {
	Results []Order `json:"results"`
}
