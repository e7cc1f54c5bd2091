package dto

import "time"

// SyncRequest is the body of a manual sync trigger. Dedupe and enrichment
// default to on; max_orders zero means the server default.
type SyncRequest struct {
	Dedupe     *bool `json:"dedupe"`
	EnrichSKUs *bool `json:"enrich_skus"`
	MaxOrders  int   `json:"max_orders" binding:"omitempty,min=1,max=10000"`
}

// RunsRequest selects how many run records to return
type RunsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=100"`
}

// AuthStartResponse carries the marketplace authorization URL
type AuthStartResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

// AuthStatusResponse describes the current marketplace connection
type AuthStatusResponse struct {
	Connected bool      `json:"connected"`
	SellerID  int64     `json:"seller_id,omitempty"`
	Nickname  string    `json:"nickname,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// CallbackRequest is the query string of the OAuth callback
type CallbackRequest struct {
	Code  string `form:"code" binding:"required"`
	State string `form:"state" binding:"required"`
}
