package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellersync/backend/internal/domain/shared"
)

// ChannelMercadoLibre is the sales channel tag for lines ingested from
// MercadoLibre.
const ChannelMercadoLibre = "MELI"

// LineKey identifies a sale line within a channel. One marketplace order can
// carry several items, so the order id alone is not unique.
type LineKey struct {
	OrderID string
	ItemID  string
}

// SaleLine represents one ledger entry: a single item of a marketplace order.
// Lines are append-only; re-ingesting the same order leaves existing lines
// untouched.
type SaleLine struct {
	ID      uuid.UUID
	Channel string
	OrderID string
	ItemID  string
	// SKU is the normalized seller SKU, empty when resolution failed.
	SKU string
	// ProductID links to the local catalog; nil for unlinked lines.
	ProductID   *uuid.UUID
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	// Total is quantity * unit price, computed once at construction.
	Total decimal.Decimal
	// ShippingCost is the order-level shipping charge, recorded on the
	// order's first line only to avoid double counting.
	ShippingCost decimal.Decimal
	// Commission is the marketplace sale fee for the line.
	Commission decimal.Decimal
	// ProductCost is the catalog cost of the sold quantity (unit cost times
	// quantity), frozen at ingestion so later cost changes do not rewrite
	// history. Zero for unlinked lines.
	ProductCost decimal.Decimal
	SaleDate    time.Time
	CreatedAt   time.Time
}

// NewSaleLine builds a ledger entry for one order line.
func NewSaleLine(orderID, itemID, sku, productName string, quantity int, unitPrice decimal.Decimal, saleDate time.Time) (*SaleLine, error) {
	if orderID == "" {
		return nil, shared.NewDomainError("INVALID_ORDER_ID", "Order ID cannot be empty")
	}
	if itemID == "" {
		return nil, shared.NewDomainError("INVALID_ITEM_ID", "Item ID cannot be empty")
	}
	if quantity <= 0 {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, shared.NewDomainError("INVALID_PRICE", "Unit price cannot be negative")
	}

	return &SaleLine{
		ID:          uuid.New(),
		Channel:     ChannelMercadoLibre,
		OrderID:     orderID,
		ItemID:      itemID,
		SKU:         sku,
		ProductName: productName,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Total:       unitPrice.Mul(decimal.NewFromInt(int64(quantity))),
		SaleDate:    saleDate,
		CreatedAt:   time.Now(),
	}, nil
}

// Key returns the dedup key of the line.
func (l *SaleLine) Key() LineKey {
	return LineKey{OrderID: l.OrderID, ItemID: l.ItemID}
}

// Link attaches the line to a catalog product, freezing the cost of the sold
// quantity at the product's current unit cost.
func (l *SaleLine) Link(productID uuid.UUID, unitCost decimal.Decimal) {
	id := productID
	l.ProductID = &id
	l.ProductCost = unitCost.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// IsLinked returns true if the line references a catalog product.
func (l *SaleLine) IsLinked() bool {
	return l.ProductID != nil
}
