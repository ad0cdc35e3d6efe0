package marketplace

import (
	"strings"

	"fulfillment-service/internal/models"
)

// ParsedOrder is the canonical output of parsing one order payload.
type ParsedOrder struct {
	Customer string
	Items    []models.OrderItem
}

// ParseOrder normalizes one order payload into canonical line items.
// It is pure: image resolution is a separate step on the client,
// invoked by the resolver, so parsing stays testable without network
// access. Both legacy line shapes (nested "item" object and flat item
// fields) are accepted transparently.
func ParseOrder(order *Order) *ParsedOrder {
	customer := order.Buyer.Nickname
	if customer == "" {
		customer = models.UnknownCustomer
	}

	lines := order.Lines()
	items := make([]models.OrderItem, 0, len(lines))
	for i := range lines {
		line := &lines[i]
		prod := line.Product()

		title := prod.Title
		if title == "" {
			title = models.UnknownTitle
		}

		items = append(items, models.OrderItem{
			ItemID:            prod.ID,
			VariationID:       prod.VariationID,
			Title:             title,
			SKU:               resolveSKU(line, prod),
			VariantDescriptor: variantDescriptor(prod.VariationAttributes),
			Quantity:          line.Quantity,
		})
	}

	return &ParsedOrder{Customer: customer, Items: items}
}

// resolveSKU follows the fixed priority chain: variant-level seller
// sku, variant-level custom field, item-level seller sku, item-level
// custom field, then the unknown sentinel.
func resolveSKU(line *OrderLine, prod *LineProduct) string {
	switch {
	case prod.SellerSKU != "":
		return prod.SellerSKU
	case prod.SellerCustomField != "":
		return prod.SellerCustomField
	case line.SellerSKU != "":
		return line.SellerSKU
	case line.SellerCustomField != "":
		return line.SellerCustomField
	default:
		return models.UnknownSKU
	}
}

// variantDescriptor joins "name: value" pairs of the variation
// attributes, or returns the no-variant sentinel.
func variantDescriptor(attrs []VariationAttribute) string {
	parts := make([]string, 0, len(attrs))
	for _, a := range attrs {
		if a.ValueName == "" {
			continue
		}
		parts = append(parts, a.Name+": "+a.ValueName)
	}
	if len(parts) == 0 {
		return models.NoVariant
	}
	return strings.Join(parts, " | ")
}

// statusLabels is the fixed shipment status table. Unrecognized codes
// pass through title-cased.
var statusLabels = map[string]string{
	"pending":       "Pending",
	"ready_to_ship": "Ready to ship",
	"shipped":       "Shipped",
	"delivered":     "Delivered",
	"not_delivered": "Not delivered",
	"cancelled":     "Cancelled",
	"returned":      "Returned",
}

// StatusLabel maps a raw shipment status code to its display label.
func StatusLabel(raw string) string {
	if label, ok := statusLabels[raw]; ok {
		return label
	}
	if raw == "" {
		return "Unknown"
	}
	label := strings.ReplaceAll(raw, "_", " ")
	return strings.ToUpper(label[:1]) + label[1:]
}
