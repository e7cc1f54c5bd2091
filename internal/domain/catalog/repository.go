package catalog

import "context"

// ProductRepository defines the persistence interface for catalog products.
type ProductRepository interface {
	// FindBySKU returns the product with the given normalized SKU, or
	// shared.ErrNotFound if no product carries it.
	FindBySKU(ctx context.Context, sku string) (*Product, error)

	// FindByID returns the product with the given ID.
	FindByID(ctx context.Context, id string) (*Product, error)

	// Create persists a new product.
	Create(ctx context.Context, product *Product) error

	// DecrementStock atomically reduces the product's stock by quantity,
	// clamping at zero, and returns the resulting stock level.
	DecrementStock(ctx context.Context, productID string, quantity int) (int, error)
}
