package sync

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sellersync/backend/internal/domain/catalog"
	"github.com/sellersync/backend/internal/domain/ledger"
	"github.com/sellersync/backend/internal/domain/marketplace"
	"github.com/sellersync/backend/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Port fakes
// ---------------------------------------------------------------------------

type fakeSessionStore struct {
	session *marketplace.Session
	saves   int
	loadErr error
	saveErr error
}

func (f *fakeSessionStore) Load(_ context.Context) (*marketplace.Session, error) {
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	return f.session, nil
}

func (f *fakeSessionStore) Save(_ context.Context, session *marketplace.Session) error {
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.session = session
	return nil
}

type fakeCredentialProvider struct {
	refreshCalls int
	credential   *marketplace.Credential
	refreshErr   error
}

func (f *fakeCredentialProvider) Refresh(_ context.Context, _ string) (*marketplace.Credential, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	return f.credential, nil
}

func (f *fakeCredentialProvider) Exchange(_ context.Context, _ string) (*marketplace.Credential, error) {
	return f.credential, f.refreshErr
}

func (f *fakeCredentialProvider) AuthorizeURL(state string) string {
	return "https://auth.example/authorize?state=" + state
}

type fakeOrderSource struct {
	mu sync.Mutex

	token  string
	seller marketplace.SellerIdentity
	orders []marketplace.Order
	items  map[string]*marketplace.Item

	searchErrAt map[int]error
	itemErr     map[string]error

	sellerCalls int
	searchCalls int
	itemCalls   int
	lastToken   string
}

func (f *fakeOrderSource) checkToken(token string) error {
	f.lastToken = token
	if token != f.token {
		return marketplace.ErrUpstreamAuth
	}
	return nil
}

func (f *fakeOrderSource) ResolveSeller(_ context.Context, token string) (*marketplace.SellerIdentity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sellerCalls++
	if err := f.checkToken(token); err != nil {
		return nil, err
	}
	seller := f.seller
	return &seller, nil
}

func (f *fakeOrderSource) SearchOrders(_ context.Context, token string, _ int64, offset, limit int) (*marketplace.OrderPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls++
	if err := f.checkToken(token); err != nil {
		return nil, err
	}
	if err, ok := f.searchErrAt[offset]; ok {
		return nil, err
	}
	end := offset + limit
	if end > len(f.orders) {
		end = len(f.orders)
	}
	if offset > len(f.orders) {
		offset = len(f.orders)
	}
	return &marketplace.OrderPage{
		Orders: f.orders[offset:end],
		Total:  len(f.orders),
	}, nil
}

func (f *fakeOrderSource) GetItem(_ context.Context, token, itemID string) (*marketplace.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.itemCalls++
	if err := f.checkToken(token); err != nil {
		return nil, err
	}
	if err, ok := f.itemErr[itemID]; ok {
		return nil, err
	}
	item, ok := f.items[itemID]
	if !ok {
		return nil, marketplace.ErrItemNotFound
	}
	return item, nil
}

type fakeProductRepo struct {
	mu    sync.Mutex
	bySKU map[string]*catalog.Product
}

func (f *fakeProductRepo) FindBySKU(_ context.Context, sku string) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	product, ok := f.bySKU[sku]
	if !ok {
		return nil, shared.ErrNotFound
	}
	copied := *product
	return &copied, nil
}

func (f *fakeProductRepo) FindByID(_ context.Context, id string) (*catalog.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, product := range f.bySKU {
		if product.ID.String() == id {
			copied := *product
			return &copied, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (f *fakeProductRepo) Create(_ context.Context, product *catalog.Product) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bySKU[product.SKU] = product
	return nil
}

func (f *fakeProductRepo) DecrementStock(_ context.Context, productID string, quantity int) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, product := range f.bySKU {
		if product.ID.String() == productID {
			return product.DecrementStock(quantity), nil
		}
	}
	return 0, shared.ErrNotFound
}

func (f *fakeProductRepo) stock(sku string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bySKU[sku].Stock
}

type fakeLedgerRepo struct {
	mu        sync.Mutex
	lines     map[ledger.LineKey]*ledger.SaleLine
	upsertErr error
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{lines: make(map[ledger.LineKey]*ledger.SaleLine)}
}

func (f *fakeLedgerRepo) ExistsOrder(_ context.Context, _, orderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for key := range f.lines {
		if key.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeLedgerRepo) UpsertBatch(_ context.Context, lines []*ledger.SaleLine) ([]ledger.LineKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertErr != nil {
		return nil, f.upsertErr
	}
	var inserted []ledger.LineKey
	for _, line := range lines {
		key := line.Key()
		if _, ok := f.lines[key]; ok {
			continue
		}
		f.lines[key] = line
		inserted = append(inserted, key)
	}
	return inserted, nil
}

func (f *fakeLedgerRepo) CountByOrder(_ context.Context, _, orderID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for key := range f.lines {
		if key.OrderID == orderID {
			count++
		}
	}
	return count, nil
}

// ---------------------------------------------------------------------------
// Test fixture
// ---------------------------------------------------------------------------

type fixture struct {
	service  *Service
	sessions *fakeSessionStore
	creds    *fakeCredentialProvider
	source   *fakeOrderSource
	products *fakeProductRepo
	sales    *fakeLedgerRepo
}

func newFixture(t *testing.T, config Config) *fixture {
	t.Helper()

	sessions := &fakeSessionStore{
		session: &marketplace.Session{
			SellerID: 123,
			Nickname: "TESTSELLER",
			Credential: marketplace.Credential{
				AccessToken:  "valid-token",
				RefreshToken: "refresh-token",
				ExpiresAt:    time.Now().Add(time.Hour),
			},
		},
	}
	source := &fakeOrderSource{
		token:  "valid-token",
		seller: marketplace.SellerIdentity{ID: 123, Nickname: "TESTSELLER"},
		items:  make(map[string]*marketplace.Item),
	}
	creds := &fakeCredentialProvider{
		credential: &marketplace.Credential{
			AccessToken:  "fresh-token",
			RefreshToken: "fresh-refresh",
			ExpiresAt:    time.Now().Add(6 * time.Hour),
		},
	}
	products := &fakeProductRepo{bySKU: make(map[string]*catalog.Product)}
	sales := newFakeLedgerRepo()

	service := NewService(config, sessions, creds, source, products, sales, nil, zap.NewNop())
	return &fixture{
		service:  service,
		sessions: sessions,
		creds:    creds,
		source:   source,
		products: products,
		sales:    sales,
	}
}

func (f *fixture) addProduct(t *testing.T, sku string, cost int64, stock int) *catalog.Product {
	t.Helper()
	product, err := catalog.NewProduct(sku, "Product "+sku, decimal.NewFromInt(cost), stock)
	require.NoError(t, err)
	f.products.bySKU[product.SKU] = product
	return product
}

func testOrder(id string, lines ...marketplace.OrderLine) marketplace.Order {
	return marketplace.Order{
		ID:        id,
		Status:    "paid",
		CreatedAt: time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC),
		Lines:     lines,
	}
}

func testLine(itemID, sku string, quantity int, unitPrice int64) marketplace.OrderLine {
	return marketplace.OrderLine{
		ItemID:    itemID,
		Title:     "Item " + itemID,
		SellerSKU: sku,
		Quantity:  quantity,
		UnitPrice: decimal.NewFromInt(unitPrice),
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestSyncRecordsOrderLine(t *testing.T) {
	f := newFixture(t, Config{})
	f.addProduct(t, "ABC-1", 400, 10)
	f.source.orders = []marketplace.Order{
		testOrder("2000001", testLine("MLA111", "ABC-1", 2, 1000)),
	}

	outcome, err := f.service.Sync(context.Background(), Options{Dedupe: true})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.OrdersProcessed)
	assert.Equal(t, 1, outcome.LinesInserted)
	assert.Equal(t, 1, outcome.StockDecrements)
	assert.Empty(t, outcome.Issues)
	assert.False(t, outcome.Partial)

	line := f.sales.lines[ledger.LineKey{OrderID: "2000001", ItemID: "MLA111"}]
	require.NotNil(t, line)
	assert.True(t, line.Total.Equal(decimal.NewFromInt(2000)), "total %s", line.Total)
	assert.True(t, line.ProductCost.Equal(decimal.NewFromInt(800)), "cost %s", line.ProductCost)
	assert.True(t, line.IsLinked())

	assert.Equal(t, 8, f.products.stock("abc-1"))
}

func TestSyncIsIdempotent(t *testing.T) {
	for _, dedupe := range []bool{true, false} {
		t.Run(fmt.Sprintf("dedupe=%v", dedupe), func(t *testing.T) {
			f := newFixture(t, Config{})
			f.addProduct(t, "ABC-1", 400, 10)
			f.source.orders = []marketplace.Order{
				testOrder("2000001", testLine("MLA111", "ABC-1", 2, 1000)),
			}

			first, err := f.service.Sync(context.Background(), Options{Dedupe: dedupe})
			require.NoError(t, err)
			require.Equal(t, 1, first.LinesInserted)

			second, err := f.service.Sync(context.Background(), Options{Dedupe: dedupe})
			require.NoError(t, err)

			assert.Equal(t, 0, second.LinesInserted)
			assert.Equal(t, 1, second.DuplicatesSkipped)
			assert.Equal(t, 0, second.StockDecrements)
			assert.Len(t, f.sales.lines, 1)
			assert.Equal(t, 8, f.products.stock("abc-1"), "duplicate run must not move stock")
		})
	}
}

func TestSyncRefreshesCredentialExactlyOnce(t *testing.T) {
	f := newFixture(t, Config{})
	f.addProduct(t, "ABC-1", 400, 10)
	f.source.orders = []marketplace.Order{
		testOrder("2000001", testLine("MLA111", "ABC-1", 1, 500)),
	}

	// Stored access token is stale; the upstream only accepts the fresh one.
	f.sessions.session.Credential.AccessToken = "stale-token"
	f.source.token = "fresh-token"

	outcome, err := f.service.Sync(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, f.creds.refreshCalls)
	assert.Equal(t, 1, outcome.LinesInserted)
	assert.Equal(t, "fresh-token", f.source.lastToken)
	assert.Equal(t, "fresh-refresh", f.sessions.session.Credential.RefreshToken,
		"rotated refresh token must be persisted")
	assert.GreaterOrEqual(t, f.sessions.saves, 1)
}

func TestSyncFailsWhenRefreshRejected(t *testing.T) {
	f := newFixture(t, Config{})
	f.sessions.session.Credential.AccessToken = "stale-token"
	f.creds.refreshErr = marketplace.ErrSessionExpired

	outcome, err := f.service.Sync(context.Background(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, marketplace.ErrSessionExpired)
	assert.Nil(t, outcome)
	assert.Equal(t, 1, f.creds.refreshCalls)
}

func TestSyncFailsWhenRefreshReturnsNoAccessToken(t *testing.T) {
	f := newFixture(t, Config{})
	f.sessions.session.Credential.AccessToken = "stale-token"
	f.creds.credential = &marketplace.Credential{RefreshToken: "fresh-refresh"}

	_, err := f.service.Sync(context.Background(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, marketplace.ErrSessionExpired)
}

func TestSyncMaxOrdersStopsPaging(t *testing.T) {
	f := newFixture(t, Config{})
	for i := 0; i < 120; i++ {
		f.source.orders = append(f.source.orders,
			testOrder(fmt.Sprintf("order-%03d", i), testLine(fmt.Sprintf("item-%03d", i), "nope", 1, 100)))
	}

	outcome, err := f.service.Sync(context.Background(), Options{MaxOrders: 100})
	require.NoError(t, err)

	assert.Equal(t, 100, outcome.OrdersProcessed)
	assert.Equal(t, 2, f.source.searchCalls, "third page must not be fetched")
}

func TestSyncMissingSKULine(t *testing.T) {
	f := newFixture(t, Config{})
	f.addProduct(t, "ABC-1", 400, 10)
	f.source.orders = []marketplace.Order{
		testOrder("2000001", testLine("MLA111", "", 1, 500)),
	}

	outcome, err := f.service.Sync(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.LinesInserted)
	assert.Equal(t, 1, outcome.UnresolvedSKUs)
	require.Len(t, outcome.Issues, 1)
	assert.Equal(t, IssueMissingItemOrSKU, outcome.Issues[0].Reason)
	assert.Empty(t, f.sales.lines)
	assert.Equal(t, 10, f.products.stock("abc-1"))
}

func TestSyncLineWithoutItemReference(t *testing.T) {
	f := newFixture(t, Config{})
	f.source.orders = []marketplace.Order{
		testOrder("2000001", marketplace.OrderLine{Title: "mystery", Quantity: 1, UnitPrice: decimal.NewFromInt(10)}),
	}

	outcome, err := f.service.Sync(context.Background(), Options{EnrichSKUs: true})
	require.NoError(t, err)

	require.Len(t, outcome.Issues, 1)
	assert.Equal(t, IssueMissingItemOrSKU, outcome.Issues[0].Reason)
	assert.Empty(t, f.sales.lines)
}

func TestSyncUnlinkedLinePolicy(t *testing.T) {
	t.Run("inserted unlinked when policy allows", func(t *testing.T) {
		f := newFixture(t, Config{InsertUnlinked: true})
		f.source.orders = []marketplace.Order{
			testOrder("2000001", testLine("MLA111", "GHOST-SKU", 1, 500)),
		}

		outcome, err := f.service.Sync(context.Background(), Options{})
		require.NoError(t, err)

		assert.Equal(t, 1, outcome.LinesInserted)
		assert.Equal(t, 0, outcome.StockDecrements)
		require.Len(t, outcome.Issues, 1)
		assert.Equal(t, IssueSKUNotFound, outcome.Issues[0].Reason)

		line := f.sales.lines[ledger.LineKey{OrderID: "2000001", ItemID: "MLA111"}]
		require.NotNil(t, line)
		assert.False(t, line.IsLinked())
	})

	t.Run("skipped when policy forbids", func(t *testing.T) {
		f := newFixture(t, Config{InsertUnlinked: false})
		f.source.orders = []marketplace.Order{
			testOrder("2000001", testLine("MLA111", "GHOST-SKU", 1, 500)),
		}

		outcome, err := f.service.Sync(context.Background(), Options{})
		require.NoError(t, err)

		assert.Equal(t, 0, outcome.LinesInserted)
		require.Len(t, outcome.Issues, 1)
		assert.Equal(t, IssueSKUNotFound, outcome.Issues[0].Reason)
		assert.Empty(t, f.sales.lines)
	})
}

func TestSyncEnrichResolvesSKUFromItem(t *testing.T) {
	f := newFixture(t, Config{})
	f.addProduct(t, "ABC-1", 400, 10)
	f.source.orders = []marketplace.Order{
		testOrder("2000001", testLine("MLA111", "", 1, 500)),
	}
	f.source.items["MLA111"] = &marketplace.Item{
		ID:    "MLA111",
		Title: "Mate Cup",
		Attributes: []marketplace.ItemAttribute{
			{ID: "SELLER_SKU", Name: "SKU", Value: "ABC-1"},
		},
	}

	outcome, err := f.service.Sync(context.Background(), Options{EnrichSKUs: true})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.LinesInserted)
	assert.Equal(t, 0, outcome.UnresolvedSKUs)
	assert.Equal(t, 1, f.source.itemCalls)
	assert.Equal(t, 9, f.products.stock("abc-1"))
}

func TestSyncItemLookupFailureDegrades(t *testing.T) {
	f := newFixture(t, Config{})
	f.source.orders = []marketplace.Order{
		testOrder("2000001", testLine("MLA111", "", 1, 500)),
	}
	f.source.itemErr = map[string]error{"MLA111": marketplace.ErrUpstreamTransient}

	outcome, err := f.service.Sync(context.Background(), Options{EnrichSKUs: true})
	require.NoError(t, err, "item lookup failure must not abort the run")

	assert.Equal(t, 1, outcome.UnresolvedSKUs)
	require.Len(t, outcome.Issues, 1)
	assert.Equal(t, IssueMissingItemOrSKU, outcome.Issues[0].Reason)
}

func TestSyncPartialOutcomeOnPageFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.addProduct(t, "ABC-1", 400, 100)
	for i := 0; i < 60; i++ {
		f.source.orders = append(f.source.orders,
			testOrder(fmt.Sprintf("order-%03d", i), testLine(fmt.Sprintf("item-%03d", i), "ABC-1", 1, 100)))
	}
	f.source.searchErrAt = map[int]error{50: marketplace.ErrUpstreamTransient}

	outcome, err := f.service.Sync(context.Background(), Options{})
	require.Error(t, err)
	require.NotNil(t, outcome, "partial results must be reported, not discarded")

	assert.True(t, outcome.Partial)
	assert.NotEmpty(t, outcome.FailureReason)
	assert.Equal(t, 50, outcome.OrdersProcessed)
	assert.Equal(t, 50, outcome.LinesInserted)
}

func TestSyncAbortsWithNoPartialData(t *testing.T) {
	f := newFixture(t, Config{})
	f.source.searchErrAt = map[int]error{0: marketplace.ErrUpstreamTransient}

	outcome, err := f.service.Sync(context.Background(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, marketplace.ErrUpstreamTransient)
	assert.Nil(t, outcome)
}

func TestSyncInRunUniqueness(t *testing.T) {
	f := newFixture(t, Config{})
	f.addProduct(t, "ABC-1", 400, 10)
	// The upstream feed repeats the same (order, item) pair.
	f.source.orders = []marketplace.Order{
		testOrder("2000001",
			testLine("MLA111", "ABC-1", 1, 500),
			testLine("MLA111", "ABC-1", 1, 500),
		),
	}

	outcome, err := f.service.Sync(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.LinesInserted)
	assert.Equal(t, 1, outcome.DuplicatesSkipped)
	assert.Equal(t, 1, outcome.StockDecrements)
	assert.Equal(t, 9, f.products.stock("abc-1"))
}

func TestSyncLedgerWriteFailure(t *testing.T) {
	f := newFixture(t, Config{})
	f.addProduct(t, "ABC-1", 400, 10)
	f.source.orders = []marketplace.Order{
		testOrder("2000001", testLine("MLA111", "ABC-1", 2, 1000)),
	}
	f.sales.upsertErr = fmt.Errorf("connection reset")

	outcome, err := f.service.Sync(context.Background(), Options{})
	require.Error(t, err)
	require.NotNil(t, outcome)

	assert.True(t, outcome.Partial)
	assert.Equal(t, 0, outcome.LinesInserted)
	assert.Equal(t, 10, f.products.stock("abc-1"), "no insert means no decrement")
}

func TestSyncStockClampedAtZero(t *testing.T) {
	f := newFixture(t, Config{})
	f.addProduct(t, "ABC-1", 400, 3)
	f.source.orders = []marketplace.Order{
		testOrder("2000001", testLine("MLA111", "ABC-1", 5, 1000)),
	}

	outcome, err := f.service.Sync(context.Background(), Options{})
	require.NoError(t, err)

	assert.Equal(t, 1, outcome.LinesInserted)
	assert.Equal(t, 0, f.products.stock("abc-1"), "stock floors at zero")
}

func TestSyncNoSession(t *testing.T) {
	f := newFixture(t, Config{})
	f.sessions.session = nil
	f.sessions.loadErr = marketplace.ErrNoSession

	outcome, err := f.service.Sync(context.Background(), Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, marketplace.ErrNoSession)
	assert.Nil(t, outcome)
}

func TestSyncDedupeSkipsWholeOrder(t *testing.T) {
	f := newFixture(t, Config{})
	f.addProduct(t, "ABC-1", 400, 10)
	f.source.orders = []marketplace.Order{
		testOrder("2000001", testLine("MLA111", "ABC-1", 1, 500)),
		testOrder("2000002", testLine("MLA222", "ABC-1", 1, 500)),
	}

	_, err := f.service.Sync(context.Background(), Options{Dedupe: true})
	require.NoError(t, err)
	searchesAfterFirst := f.source.searchCalls

	outcome, err := f.service.Sync(context.Background(), Options{Dedupe: true})
	require.NoError(t, err)

	assert.Equal(t, 2, outcome.OrdersProcessed)
	assert.Equal(t, 2, outcome.DuplicatesSkipped)
	assert.Equal(t, 0, outcome.LinesInserted)
	assert.Greater(t, f.source.searchCalls, searchesAfterFirst)
}
