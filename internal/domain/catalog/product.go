package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sellersync/backend/internal/domain/shared"
)

// Product represents an item in the local catalog. SKU is the join key with
// the marketplace: comparisons are always done on the normalized form.
type Product struct {
	ID        uuid.UUID
	SKU       string
	Name      string
	Cost      decimal.Decimal
	Stock     int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewProduct creates a product with a normalized SKU.
func NewProduct(sku, name string, cost decimal.Decimal, stock int) (*Product, error) {
	normalized := NormalizeSKU(sku)
	if normalized == "" {
		return nil, shared.NewDomainError("INVALID_SKU", "Product SKU cannot be empty")
	}
	if name == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if cost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Product cost cannot be negative")
	}
	if stock < 0 {
		return nil, shared.NewDomainError("INVALID_STOCK", "Product stock cannot be negative")
	}

	now := time.Now()
	return &Product{
		ID:        uuid.New(),
		SKU:       normalized,
		Name:      name,
		Cost:      cost,
		Stock:     stock,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// DecrementStock reduces stock by quantity, clamping at zero. Selling past
// zero is an expected condition (marketplace and local stock drift), so it is
// not an error; the caller decides whether to log it.
func (p *Product) DecrementStock(quantity int) int {
	if quantity <= 0 {
		return p.Stock
	}
	if quantity >= p.Stock {
		p.Stock = 0
	} else {
		p.Stock -= quantity
	}
	p.UpdatedAt = time.Now()
	return p.Stock
}

// NormalizeSKU trims whitespace and lowercases a SKU for comparison and
// storage. Marketplace sellers are inconsistent about case and padding.
func NormalizeSKU(sku string) string {
	return strings.ToLower(strings.TrimSpace(sku))
}
