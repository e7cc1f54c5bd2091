package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order is an order as reported by the marketplace. Orders are immutable
// within a sync run and re-fetched on every run; nothing here is cached
// locally between runs.
type Order struct {
	// ID is the marketplace order identifier, unique per marketplace.
	ID string
	// Status is the raw marketplace order status (e.g. "paid").
	Status string
	// BuyerNickname labels the buyer for display purposes.
	BuyerNickname string
	// TotalAmount is the total the buyer paid.
	TotalAmount decimal.Decimal
	// ShippingCost is the order-level shipping charge.
	ShippingCost decimal.Decimal
	// CreatedAt is when the order was created on the marketplace.
	CreatedAt time.Time
	// Lines holds the order line items in marketplace order.
	Lines []OrderLine
}

// OrderLine is a single line item of a marketplace order.
type OrderLine struct {
	// ItemID is the marketplace catalog item identifier.
	ItemID string
	// Title is the item display title, used as a fallback product name.
	Title string
	// SellerSKU is the seller-assigned SKU if the order payload carried one;
	// empty when resolution against the item record is required.
	SellerSKU string
	// Quantity is the ordered quantity (positive).
	Quantity int
	// UnitPrice is the per-unit sale price (non-negative).
	UnitPrice decimal.Decimal
	// SaleFee is the marketplace commission charged for this line.
	SaleFee decimal.Decimal
}

// Total returns quantity * unit price for the line.
func (l OrderLine) Total() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// OrderPage is one page of the marketplace order search.
type OrderPage struct {
	// Orders are the page results, newest first.
	Orders []Order
	// Total is the upstream-reported total number of matching orders.
	Total int
}

// Item is a marketplace catalog item record, fetched to recover a missing
// seller SKU.
type Item struct {
	// ID is the marketplace item identifier.
	ID string
	// Title is the item display title.
	Title string
	// SellerSKU is the direct seller SKU field, if set.
	SellerSKU string
	// Attributes holds the item attribute list; some sellers store the SKU
	// here instead of the dedicated field.
	Attributes []ItemAttribute
}

// ItemAttribute is a single attribute of a marketplace item.
type ItemAttribute struct {
	ID    string
	Name  string
	Value string
}

// SellerIdentity is the seller account the credential belongs to.
type SellerIdentity struct {
	ID       int64
	Nickname string
}
