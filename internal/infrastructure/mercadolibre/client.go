package mercadolibre

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"time"

	"github.com/sellersync/backend/internal/domain/marketplace"
)

// maxResponseSize caps response bodies read from the API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Client is the MercadoLibre API adapter. It implements both the order
// source and the credential provider ports and carries no business logic:
// it translates wire payloads and classifies failures.
type Client struct {
	config     *Config
	httpClient *http.Client
}

var (
	_ marketplace.OrderSource        = (*Client)(nil)
	_ marketplace.CredentialProvider = (*Client)(nil)
)

// NewClient creates a new MercadoLibre client with the given configuration
func NewClient(config *Config) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}, nil
}

// ---------------------------------------------------------------------------
// OrderSource
// ---------------------------------------------------------------------------

// ResolveSeller resolves the seller identity the access token belongs to
func (c *Client) ResolveSeller(ctx context.Context, accessToken string) (*marketplace.SellerIdentity, error) {
	body, err := c.doGet(ctx, "/users/me", nil, accessToken)
	if err != nil {
		return nil, err
	}

	var user userResponse
	if err := json.Unmarshal(body, &user); err != nil {
		return nil, fmt.Errorf("%w: parsing user response: %v", marketplace.ErrUpstreamTransient, err)
	}
	if user.ID == 0 {
		return nil, fmt.Errorf("%w: user response carries no id", marketplace.ErrUpstreamTransient)
	}

	return &marketplace.SellerIdentity{ID: user.ID, Nickname: user.Nickname}, nil
}

// SearchOrders returns one page of the seller's orders, newest first
func (c *Client) SearchOrders(ctx context.Context, accessToken string, sellerID int64, offset, limit int) (*marketplace.OrderPage, error) {
	if limit <= 0 || limit > marketplace.MaxPageSize {
		limit = marketplace.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	query := url.Values{}
	query.Set("seller", strconv.FormatInt(sellerID, 10))
	query.Set("sort", "date_desc")
	query.Set("limit", strconv.Itoa(limit))
	query.Set("offset", strconv.Itoa(offset))

	body, err := c.doGet(ctx, "/orders/search", query, accessToken)
	if err != nil {
		return nil, err
	}

	var resp orderSearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing order search response: %v", marketplace.ErrUpstreamTransient, err)
	}

	page := &marketplace.OrderPage{
		Orders: make([]marketplace.Order, 0, len(resp.Results)),
		Total:  resp.Paging.Total,
	}
	for _, result := range resp.Results {
		page.Orders = append(page.Orders, convertOrder(result))
	}
	return page, nil
}

// GetItem fetches a single catalog item
func (c *Client) GetItem(ctx context.Context, accessToken, itemID string) (*marketplace.Item, error) {
	if itemID == "" {
		return nil, marketplace.ErrItemNotFound
	}

	body, err := c.doGet(ctx, "/items/"+url.PathEscape(itemID), nil, accessToken)
	if err != nil {
		return nil, err
	}

	var resp itemResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: parsing item response: %v", marketplace.ErrUpstreamTransient, err)
	}

	item := &marketplace.Item{
		ID:        resp.ID,
		Title:     resp.Title,
		SellerSKU: resp.SellerSKU,
	}
	for _, attr := range resp.Attributes {
		item.Attributes = append(item.Attributes, marketplace.ItemAttribute{
			ID:    attr.ID,
			Name:  attr.Name,
			Value: attr.ValueName,
		})
	}
	return item, nil
}

// ---------------------------------------------------------------------------
// CredentialProvider
// ---------------------------------------------------------------------------

// Refresh exchanges the refresh token for a new credential pair
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*marketplace.Credential, error) {
	if refreshToken == "" {
		return nil, marketplace.ErrSessionExpired
	}
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("refresh_token", refreshToken)

	return c.requestToken(ctx, form)
}

// Exchange trades a one-time authorization code for a credential pair
func (c *Client) Exchange(ctx context.Context, code string) (*marketplace.Credential, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("code", code)
	form.Set("redirect_uri", c.config.RedirectURI)

	return c.requestToken(ctx, form)
}

// AuthorizeURL returns the marketplace authorization URL carrying the given
// anti-forgery state value
func (c *Client) AuthorizeURL(state string) string {
	query := url.Values{}
	query.Set("response_type", "code")
	query.Set("client_id", c.config.ClientID)
	query.Set("redirect_uri", c.config.RedirectURI)
	query.Set("state", state)
	return c.config.AuthBaseURL + "/authorization?" + query.Encode()
}

func (c *Client) requestToken(ctx context.Context, form url.Values) (*marketplace.Credential, error) {
	endpoint := c.config.APIBaseURL + "/oauth/token"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: building token request: %v", marketplace.ErrUpstreamTransient, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: token request: %v", marketplace.ErrUpstreamTransient, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading token response: %v", marketplace.ErrUpstreamTransient, err)
	}

	// The token endpoint rejects a stale or revoked refresh token with a
	// 4xx; that means the seller has to re-authorize.
	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, fmt.Errorf("%w: token endpoint returned %d: %s",
			marketplace.ErrSessionExpired, resp.StatusCode, summarizeError(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint returned %d", marketplace.ErrUpstreamTransient, resp.StatusCode)
	}

	var token tokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, fmt.Errorf("%w: parsing token response: %v", marketplace.ErrUpstreamTransient, err)
	}
	if token.AccessToken == "" {
		return nil, marketplace.ErrSessionExpired
	}

	return &marketplace.Credential{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(token.ExpiresIn) * time.Second),
	}, nil
}

// ---------------------------------------------------------------------------
// Transport
// ---------------------------------------------------------------------------

// doGet performs an authenticated GET and classifies failures: 401/403 map
// to an auth failure, everything else unexpected to a transient failure.
func (c *Client) doGet(ctx context.Context, path string, query url.Values, accessToken string) ([]byte, error) {
	endpoint := c.config.APIBaseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", marketplace.ErrUpstreamTransient, path, err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", marketplace.ErrUpstreamTransient, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %v", marketplace.ErrUpstreamTransient, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s returned %d", marketplace.ErrUpstreamAuth, path, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", marketplace.ErrItemNotFound, path)
	default:
		return nil, fmt.Errorf("%w: %s returned %d: %s",
			marketplace.ErrUpstreamTransient, path, resp.StatusCode, summarizeError(body))
	}
}

// summarizeError extracts a short diagnostic from an API error body
func summarizeError(body []byte) string {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

func convertOrder(result orderResult) marketplace.Order {
	order := marketplace.Order{
		ID:            strconv.FormatInt(result.ID, 10),
		Status:        result.Status,
		BuyerNickname: result.Buyer.Nickname,
		TotalAmount:   result.TotalAmount,
		ShippingCost:  result.Shipping.Cost,
		CreatedAt:     result.DateCreated,
		Lines:         make([]marketplace.OrderLine, 0, len(result.OrderItems)),
	}
	for _, item := range result.OrderItems {
		order.Lines = append(order.Lines, marketplace.OrderLine{
			ItemID:    item.Item.ID,
			Title:     item.Item.Title,
			SellerSKU: item.Item.SellerSKU,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			SaleFee:   item.SaleFee,
		})
	}
	return order
}
