package sync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sellersync/backend/internal/domain/catalog"
	"github.com/sellersync/backend/internal/domain/ledger"
	"github.com/sellersync/backend/internal/domain/marketplace"
	"github.com/sellersync/backend/internal/domain/shared"
	"github.com/sellersync/backend/internal/infrastructure/telemetry"
)

// ---------------------------------------------------------------------------
// Options & Config
// ---------------------------------------------------------------------------

// Options control a single reconciliation run.
type Options struct {
	// Dedupe enables the order-level existence pre-check. The ledger upsert
	// is always keyed on (order id, item id), so dedupe=false is still
	// idempotent; the pre-check just saves work on large backlogs.
	Dedupe bool `json:"dedupe"`
	// EnrichSKUs enables item lookups for lines that arrived without a SKU.
	EnrichSKUs bool `json:"enrich_skus"`
	// MaxOrders caps how many orders one run accumulates. Zero means the
	// configured default.
	MaxOrders int `json:"max_orders"`
}

// Config is the engine configuration, injected at construction.
type Config struct {
	// PageSize is the order search page size, capped at the upstream maximum.
	PageSize int
	// MaxItemLookups bounds concurrent item lookups during SKU enrichment.
	MaxItemLookups int
	// InsertUnlinked keeps ledger lines whose SKU matches no catalog product,
	// recorded with a null product link for manual reconciliation.
	InsertUnlinked bool
	// DefaultMaxOrders applies when Options.MaxOrders is zero.
	DefaultMaxOrders int
}

func (c *Config) applyDefaults() {
	if c.PageSize <= 0 || c.PageSize > marketplace.MaxPageSize {
		c.PageSize = marketplace.MaxPageSize
	}
	if c.MaxItemLookups <= 0 {
		c.MaxItemLookups = 10
	}
	if c.DefaultMaxOrders <= 0 {
		c.DefaultMaxOrders = 500
	}
}

// ---------------------------------------------------------------------------
// Service
// ---------------------------------------------------------------------------

// Service is the reconciliation engine: it pages orders out of the
// marketplace, resolves each line to a catalog product via SKU, deduplicates
// against the sales ledger, and applies ledger writes and stock decrements.
type Service struct {
	config   Config
	retry    RetryPolicy
	sessions marketplace.SessionStore
	creds    marketplace.CredentialProvider
	source   marketplace.OrderSource
	products catalog.ProductRepository
	sales    ledger.SaleLineRepository
	cache    ItemSKUCache
	logger   *zap.Logger
}

// NewService creates the reconciliation engine. cache may be nil.
func NewService(
	config Config,
	sessions marketplace.SessionStore,
	creds marketplace.CredentialProvider,
	source marketplace.OrderSource,
	products catalog.ProductRepository,
	sales ledger.SaleLineRepository,
	cache ItemSKUCache,
	logger *zap.Logger,
) *Service {
	config.applyDefaults()
	return &Service{
		config:   config,
		retry:    DefaultRetryPolicy(),
		sessions: sessions,
		creds:    creds,
		source:   source,
		products: products,
		sales:    sales,
		cache:    cache,
		logger:   logger,
	}
}

// runState carries the mutable per-run credential state. The refreshed flag
// enforces the at-most-one-refresh-per-run rule; runs never share it.
type runState struct {
	session   *marketplace.Session
	token     string
	refreshed bool
}

// Sync executes one reconciliation run. On a mid-paging failure the orders
// accumulated so far are still reconciled and the outcome is returned marked
// partial alongside the error; the error comes alone only when nothing was
// accumulated.
func (s *Service) Sync(ctx context.Context, opts Options) (*SyncOutcome, error) {
	ctx, span := telemetry.StartSpan(ctx, "sync.run",
		telemetry.WithAttribute(telemetry.SpanAttrDedupe, opts.Dedupe),
		telemetry.WithAttribute(telemetry.SpanAttrEnrichSKUs, opts.EnrichSKUs),
	)
	defer span.End()

	outcome := &SyncOutcome{StartedAt: time.Now()}

	maxOrders := opts.MaxOrders
	if maxOrders <= 0 {
		maxOrders = s.config.DefaultMaxOrders
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrMaxOrders, maxOrders)

	session, err := s.sessions.Load(ctx)
	if err != nil {
		err = fmt.Errorf("loading marketplace session: %w", err)
		telemetry.RecordError(span, err)
		return nil, err
	}
	run := &runState{session: session, token: session.Credential.AccessToken}

	seller, err := s.resolveSeller(ctx, run)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrSellerID, seller.ID)
	s.logger.Info("Starting order sync",
		zap.Int64("seller_id", seller.ID),
		zap.String("nickname", seller.Nickname),
		zap.Int("max_orders", maxOrders),
		zap.Bool("dedupe", opts.Dedupe),
		zap.Bool("enrich_skus", opts.EnrichSKUs),
	)

	orders, pageErr := s.fetchOrders(ctx, run, seller.ID, maxOrders)
	if pageErr != nil && len(orders) == 0 {
		telemetry.RecordError(span, pageErr)
		return nil, pageErr
	}

	if opts.Dedupe {
		orders = s.skipRecordedOrders(ctx, orders, outcome)
	}

	resolver := NewSKUResolver(s.source, s.cache, s.logger)
	if opts.EnrichSKUs {
		s.prefetchSKUs(ctx, run, resolver, orders)
	}

	lines := s.reconcile(ctx, run, resolver, orders, opts, outcome)

	if err := s.commit(ctx, lines, outcome); err != nil {
		telemetry.RecordError(span, err)
		outcome.Partial = true
		outcome.FailureReason = err.Error()
		outcome.FinishedAt = time.Now()
		return outcome, err
	}

	if pageErr != nil {
		telemetry.RecordError(span, pageErr)
		outcome.Partial = true
		outcome.FailureReason = pageErr.Error()
	}
	outcome.FinishedAt = time.Now()

	telemetry.AddEvent(span, "sync.reconciled",
		"orders_processed", outcome.OrdersProcessed,
		"lines_inserted", outcome.LinesInserted,
		"duplicates_skipped", outcome.DuplicatesSkipped,
		"stock_decrements", outcome.StockDecrements,
	)

	s.logger.Info("Order sync finished",
		zap.Int("orders_processed", outcome.OrdersProcessed),
		zap.Int("lines_inserted", outcome.LinesInserted),
		zap.Int("duplicates_skipped", outcome.DuplicatesSkipped),
		zap.Int("unresolved_skus", outcome.UnresolvedSKUs),
		zap.Int("stock_decrements", outcome.StockDecrements),
		zap.Bool("partial", outcome.Partial),
	)
	return outcome, pageErr
}

// ---------------------------------------------------------------------------
// Identity & paging
// ---------------------------------------------------------------------------

func (s *Service) resolveSeller(ctx context.Context, run *runState) (*marketplace.SellerIdentity, error) {
	var seller *marketplace.SellerIdentity
	err := s.withAuthRetry(ctx, run, func(token string) error {
		var err error
		seller, err = s.source.ResolveSeller(ctx, token)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolving seller identity: %w", err)
	}
	return seller, nil
}

// fetchOrders pages sequentially through the order search. It stops on a
// short page, on reaching the upstream-reported total, or on reaching
// maxOrders. A page failure that survives the auth retry ends the loop and
// is returned together with whatever was accumulated.
func (s *Service) fetchOrders(ctx context.Context, run *runState, sellerID int64, maxOrders int) ([]marketplace.Order, error) {
	limit := s.config.PageSize
	var orders []marketplace.Order

	for offset := 0; ; {
		var page *marketplace.OrderPage
		err := s.withAuthRetry(ctx, run, func(token string) error {
			var err error
			page, err = s.source.SearchOrders(ctx, token, sellerID, offset, limit)
			return err
		})
		if err != nil {
			return orders, fmt.Errorf("fetching orders at offset %d: %w", offset, err)
		}

		orders = append(orders, page.Orders...)
		offset += len(page.Orders)

		if len(orders) >= maxOrders {
			orders = orders[:maxOrders]
			break
		}
		if len(page.Orders) < limit {
			break
		}
		if page.Total > 0 && len(orders) >= page.Total {
			break
		}
	}
	return orders, nil
}

// withAuthRetry runs fn with the current access token, refreshing the
// credential and retrying once when the upstream reports an auth failure.
func (s *Service) withAuthRetry(ctx context.Context, run *runState, fn func(token string) error) error {
	var err error
	for attempt := 1; ; attempt++ {
		err = fn(run.token)
		if err == nil || !s.retry.ShouldRetry(attempt, err) {
			return err
		}
		if refreshErr := s.refreshCredential(ctx, run); refreshErr != nil {
			return refreshErr
		}
	}
}

// refreshCredential refreshes at most once per run. Later auth failures in
// the same run reuse the already-refreshed token; if that token fails too,
// the retry policy gives up and the run fails.
func (s *Service) refreshCredential(ctx context.Context, run *runState) error {
	if run.refreshed {
		return nil
	}
	run.refreshed = true

	credential, err := s.creds.Refresh(ctx, run.session.Credential.RefreshToken)
	if err != nil {
		return fmt.Errorf("refreshing credential: %w", err)
	}
	if !credential.HasAccess() {
		return marketplace.ErrSessionExpired
	}

	run.session.Credential = *credential
	run.session.UpdatedAt = time.Now()
	run.token = credential.AccessToken

	// The refresh token rotates; losing the new one strands the session at
	// the next run. A save failure is loud but does not abort this run.
	if err := s.sessions.Save(ctx, run.session); err != nil {
		s.logger.Error("Failed to persist refreshed credential", zap.Error(err))
	}
	s.logger.Info("Marketplace credential refreshed")
	return nil
}

// ---------------------------------------------------------------------------
// Reconciliation
// ---------------------------------------------------------------------------

// skipRecordedOrders drops orders the ledger already holds lines for. This is
// an optimization only; the upsert key remains the authoritative dedup.
func (s *Service) skipRecordedOrders(ctx context.Context, orders []marketplace.Order, outcome *SyncOutcome) []marketplace.Order {
	kept := orders[:0]
	for _, order := range orders {
		exists, err := s.sales.ExistsOrder(ctx, ledger.ChannelMercadoLibre, order.ID)
		if err != nil {
			s.logger.Warn("Order existence pre-check failed, deferring to upsert",
				zap.String("order_id", order.ID),
				zap.Error(err),
			)
			kept = append(kept, order)
			continue
		}
		if exists {
			outcome.OrdersProcessed++
			outcome.DuplicatesSkipped += len(order.Lines)
			continue
		}
		kept = append(kept, order)
	}
	return kept
}

// prefetchSKUs fans item lookups out over the distinct item ids that need
// resolution, bounded by MaxItemLookups workers. All lookups join here,
// before any stock mutation.
func (s *Service) prefetchSKUs(ctx context.Context, run *runState, resolver *SKUResolver, orders []marketplace.Order) {
	seen := make(map[string]struct{})
	var ids []string
	for _, order := range orders {
		for _, line := range order.Lines {
			if line.ItemID == "" || catalog.NormalizeSKU(line.SellerSKU) != "" {
				continue
			}
			if _, ok := seen[line.ItemID]; ok {
				continue
			}
			seen[line.ItemID] = struct{}{}
			ids = append(ids, line.ItemID)
		}
	}
	if len(ids) == 0 {
		return
	}

	workers := s.config.MaxItemLookups
	if workers > len(ids) {
		workers = len(ids)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for itemID := range jobs {
				resolver.Prefetch(ctx, run.token, itemID)
			}
		}()
	}
	for _, id := range ids {
		jobs <- id
	}
	close(jobs)
	wg.Wait()
}

// reconcile turns accumulated orders into ledger lines, recording per-line
// issues. Per-line problems never abort the run.
func (s *Service) reconcile(ctx context.Context, run *runState, resolver *SKUResolver, orders []marketplace.Order, opts Options, outcome *SyncOutcome) []*ledger.SaleLine {
	var lines []*ledger.SaleLine
	seen := make(map[ledger.LineKey]struct{})
	productMemo := make(map[string]*catalog.Product)
	productMiss := make(map[string]struct{})

	for _, order := range orders {
		outcome.OrdersProcessed++
		firstOfOrder := true

		for _, orderLine := range order.Lines {
			if orderLine.ItemID == "" {
				outcome.UnresolvedSKUs++
				outcome.addIssue(order.ID, "", IssueMissingItemOrSKU, "order line carries no item reference")
				continue
			}

			key := ledger.LineKey{OrderID: order.ID, ItemID: orderLine.ItemID}
			if _, dup := seen[key]; dup {
				outcome.DuplicatesSkipped++
				continue
			}
			seen[key] = struct{}{}

			sku := orderLine.SellerSKU
			if opts.EnrichSKUs {
				sku = resolver.Resolve(ctx, run.token, orderLine)
			} else {
				sku = catalog.NormalizeSKU(sku)
			}
			if sku == "" {
				outcome.UnresolvedSKUs++
				outcome.addIssue(order.ID, orderLine.ItemID, IssueMissingItemOrSKU, "no SKU on line or item record")
				continue
			}

			name := orderLine.Title
			line, err := ledger.NewSaleLine(order.ID, orderLine.ItemID, sku, name, orderLine.Quantity, orderLine.UnitPrice, order.CreatedAt)
			if err != nil {
				outcome.addIssue(order.ID, orderLine.ItemID, IssueMissingItemOrSKU, err.Error())
				continue
			}
			line.Commission = orderLine.SaleFee
			if firstOfOrder {
				line.ShippingCost = order.ShippingCost
			}

			product := s.lookupProduct(ctx, sku, productMemo, productMiss)
			if product == nil {
				outcome.addIssue(order.ID, orderLine.ItemID, IssueSKUNotFound, fmt.Sprintf("no catalog product for SKU %q", sku))
				if !s.config.InsertUnlinked {
					continue
				}
			} else {
				line.ProductName = product.Name
				line.Link(product.ID, product.Cost)
			}

			lines = append(lines, line)
			firstOfOrder = false
		}
	}
	return lines
}

func (s *Service) lookupProduct(ctx context.Context, sku string, memo map[string]*catalog.Product, miss map[string]struct{}) *catalog.Product {
	if product, ok := memo[sku]; ok {
		return product
	}
	if _, ok := miss[sku]; ok {
		return nil
	}
	product, err := s.products.FindBySKU(ctx, sku)
	if err != nil || product == nil {
		if err != nil && !errors.Is(err, shared.ErrNotFound) {
			s.logger.Warn("Product lookup failed", zap.String("sku", sku), zap.Error(err))
		}
		miss[sku] = struct{}{}
		return nil
	}
	memo[sku] = product
	return product
}

// commit upserts the batch and decrements stock only for keys the upsert
// newly inserted. Duplicate lines therefore never move stock, and a
// decrement failure after a successful insert is surfaced as stock drift
// rather than rolled back.
func (s *Service) commit(ctx context.Context, lines []*ledger.SaleLine, outcome *SyncOutcome) error {
	if len(lines) == 0 {
		return nil
	}
	ctx, span := telemetry.StartSpan(ctx, "sync.commit")
	defer span.End()

	inserted, err := s.sales.UpsertBatch(ctx, lines)
	if err != nil {
		err = fmt.Errorf("writing sales ledger batch: %w", err)
		telemetry.RecordError(span, err)
		return err
	}
	outcome.LinesInserted = len(inserted)
	outcome.DuplicatesSkipped += len(lines) - len(inserted)

	byKey := make(map[ledger.LineKey]*ledger.SaleLine, len(lines))
	for _, line := range lines {
		byKey[line.Key()] = line
	}

	for _, key := range inserted {
		line := byKey[key]
		if line == nil || !line.IsLinked() {
			continue
		}
		newStock, err := s.products.DecrementStock(ctx, line.ProductID.String(), line.Quantity)
		if err != nil {
			telemetry.AddEvent(span, "stock.drift",
				telemetry.SpanAttrOrderID, key.OrderID,
				telemetry.SpanAttrItemID, key.ItemID,
				telemetry.SpanAttrSKU, line.SKU,
				telemetry.SpanAttrQuantity, line.Quantity,
			)
			s.logger.Error("Stock decrement failed after ledger insert, stock has drifted",
				zap.String("order_id", key.OrderID),
				zap.String("item_id", key.ItemID),
				zap.String("product_id", line.ProductID.String()),
				zap.Int("quantity", line.Quantity),
				zap.Error(err),
			)
			continue
		}
		outcome.StockDecrements++
		if newStock == 0 && line.Quantity > 0 {
			s.logger.Warn("Product stock exhausted",
				zap.String("product_id", line.ProductID.String()),
				zap.String("sku", line.SKU),
			)
		}
	}
	return nil
}
