package mercadolibre

import (
	"time"

	"github.com/shopspring/decimal"
)

// Wire types for the MercadoLibre REST API. Field sets are trimmed to what
// the pipeline consumes.

// userResponse is the GET /users/me payload
type userResponse struct {
	ID       int64  `json:"id"`
	Nickname string `json:"nickname"`
}

// orderSearchResponse is the GET /orders/search payload
type orderSearchResponse struct {
	Results []orderResult `json:"results"`
	Paging  paging        `json:"paging"`
}

type paging struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

type orderResult struct {
	ID          int64           `json:"id"`
	Status      string          `json:"status"`
	DateCreated time.Time       `json:"date_created"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Buyer       struct {
		Nickname string `json:"nickname"`
	} `json:"buyer"`
	Shipping struct {
		Cost decimal.Decimal `json:"cost"`
	} `json:"shipping"`
	OrderItems []orderItem `json:"order_items"`
}

type orderItem struct {
	Item struct {
		ID        string `json:"id"`
		Title     string `json:"title"`
		SellerSKU string `json:"seller_sku"`
	} `json:"item"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	SaleFee   decimal.Decimal `json:"sale_fee"`
}

// itemResponse is the GET /items/:id payload
type itemResponse struct {
	ID         string          `json:"id"`
	Title      string          `json:"title"`
	SellerSKU  string          `json:"seller_sku"`
	Attributes []itemAttribute `json:"attributes"`
}

type itemAttribute struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ValueName string `json:"value_name"`
}

// tokenResponse is the POST /oauth/token payload
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	UserID       int64  `json:"user_id"`
}

// apiError is the error body the API returns on non-2xx responses
type apiError struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}
