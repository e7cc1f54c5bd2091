package sync

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sellersync/backend/internal/domain/catalog"
	"github.com/sellersync/backend/internal/domain/marketplace"
)

// Attribute identifiers the marketplace uses for the seller SKU. Some sellers
// fill the dedicated field, others stash the SKU in one of these attributes.
var skuAttributeIDs = map[string]struct{}{
	"SELLER_SKU":          {},
	"SELLER_CUSTOM_FIELD": {},
}

// ItemSKUCache is an optional cross-run cache of item id to seller SKU.
// Item SKUs change rarely, so a cache hit skips the upstream lookup entirely.
type ItemSKUCache interface {
	Get(ctx context.Context, itemID string) (sku string, ok bool)
	Set(ctx context.Context, itemID, sku string)
}

// SKUResolver recovers seller SKUs for order lines that arrived without one.
// A resolver instance is scoped to a single run: each distinct item id is
// looked up at most once and the result memoized, including the unresolved
// case. Lookup failures degrade to unresolved and never abort the run.
type SKUResolver struct {
	source marketplace.OrderSource
	cache  ItemSKUCache
	logger *zap.Logger

	mu   sync.Mutex
	memo map[string]string
}

// NewSKUResolver creates a resolver for one run. cache may be nil.
func NewSKUResolver(source marketplace.OrderSource, cache ItemSKUCache, logger *zap.Logger) *SKUResolver {
	return &SKUResolver{
		source: source,
		cache:  cache,
		logger: logger,
		memo:   make(map[string]string),
	}
}

// Resolve returns the normalized SKU for the line, or "" when unresolved.
// The SKU carried on the line itself always wins over the item record.
func (r *SKUResolver) Resolve(ctx context.Context, accessToken string, line marketplace.OrderLine) string {
	if sku := catalog.NormalizeSKU(line.SellerSKU); sku != "" {
		return sku
	}
	if line.ItemID == "" {
		return ""
	}

	r.mu.Lock()
	sku, done := r.memo[line.ItemID]
	r.mu.Unlock()
	if done {
		return sku
	}
	return r.Prefetch(ctx, accessToken, line.ItemID)
}

// Prefetch resolves and memoizes the SKU for an item id. The engine fans
// these out over distinct item ids before the reconcile phase so that the
// per-line Resolve calls are memo hits.
func (r *SKUResolver) Prefetch(ctx context.Context, accessToken, itemID string) string {
	r.mu.Lock()
	if sku, done := r.memo[itemID]; done {
		r.mu.Unlock()
		return sku
	}
	r.mu.Unlock()

	sku := r.lookup(ctx, accessToken, itemID)

	r.mu.Lock()
	r.memo[itemID] = sku
	r.mu.Unlock()
	return sku
}

func (r *SKUResolver) lookup(ctx context.Context, accessToken, itemID string) string {
	if r.cache != nil {
		if sku, ok := r.cache.Get(ctx, itemID); ok {
			return catalog.NormalizeSKU(sku)
		}
	}

	item, err := r.source.GetItem(ctx, accessToken, itemID)
	if err != nil {
		r.logger.Debug("Item lookup failed, SKU left unresolved",
			zap.String("item_id", itemID),
			zap.Error(err),
		)
		return ""
	}

	sku := ExtractSKU(item)
	if r.cache != nil && sku != "" {
		r.cache.Set(ctx, itemID, sku)
	}
	return sku
}

// ExtractSKU pulls the seller SKU out of an item record. Priority order: the
// dedicated seller SKU field, then an attribute whose id matches one of the
// known SKU aliases exactly, then an attribute whose name contains "sku"
// case-insensitively. Returns "" when nothing matches.
func ExtractSKU(item *marketplace.Item) string {
	if sku := catalog.NormalizeSKU(item.SellerSKU); sku != "" {
		return sku
	}
	for _, attr := range item.Attributes {
		if _, ok := skuAttributeIDs[attr.ID]; ok {
			if sku := catalog.NormalizeSKU(attr.Value); sku != "" {
				return sku
			}
		}
	}
	for _, attr := range item.Attributes {
		if strings.Contains(strings.ToLower(attr.Name), "sku") {
			if sku := catalog.NormalizeSKU(attr.Value); sku != "" {
				return sku
			}
		}
	}
	return ""
}
