package marketplace

import (
	"context"
	"errors"
)

var (
	// ErrUpstreamTransient indicates a network, timeout, or malformed-body
	// failure talking to the marketplace. Retryable at the caller's
	// discretion; never fatal by itself.
	ErrUpstreamTransient = errors.New("marketplace: transient upstream failure")
	// ErrUpstreamAuth indicates the marketplace rejected the access
	// credential (HTTP 401/403). Callers may refresh and retry once.
	ErrUpstreamAuth = errors.New("marketplace: upstream authentication failure")
	// ErrItemNotFound indicates the item lookup found no such item.
	ErrItemNotFound = errors.New("marketplace: item not found")
)

// MaxPageSize is the upstream maximum page size for the order search.
const MaxPageSize = 50

// OrderSource is the port for the marketplace order feed. Implementations are
// pure I/O adapters: they translate wire payloads and classify failures, but
// carry no business logic. Every call enforces a timeout and returns
// ErrUpstreamTransient (wrapped, with diagnostics) instead of hanging.
//
// This interface follows the Ports & Adapters pattern - it's defined in the
// domain layer, and the concrete MercadoLibre implementation lives in the
// infrastructure layer.
type OrderSource interface {
	// ResolveSeller resolves the seller identity the access token belongs to.
	// Returns ErrUpstreamAuth if the token is rejected.
	ResolveSeller(ctx context.Context, accessToken string) (*SellerIdentity, error)

	// SearchOrders returns one page of the seller's orders, newest first.
	// limit is capped at MaxPageSize by the implementation.
	SearchOrders(ctx context.Context, accessToken string, sellerID int64, offset, limit int) (*OrderPage, error)

	// GetItem fetches a single catalog item. Failures here degrade to an
	// unresolved SKU for the affected line; they never abort a run.
	GetItem(ctx context.Context, accessToken, itemID string) (*Item, error)
}
