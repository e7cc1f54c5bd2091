package sync

import "time"

// Issue reason codes reported in SyncOutcome. These are machine-readable and
// part of the API contract.
const (
	// IssueMissingItemOrSKU marks a line that could not be keyed or whose SKU
	// could not be resolved at all. The line is skipped.
	IssueMissingItemOrSKU = "MISSING_ITEM_OR_SKU"
	// IssueSKUNotFound marks a line whose SKU resolved but matches no catalog
	// product. The line may still be recorded unlinked for manual review.
	IssueSKUNotFound = "SKU_NOT_FOUND"
)

// LineIssue describes a non-fatal problem with a single order line.
type LineIssue struct {
	OrderID string `json:"order_id"`
	ItemID  string `json:"item_id,omitempty"`
	Reason  string `json:"reason"`
	Detail  string `json:"detail,omitempty"`
}

// SyncOutcome summarizes one reconciliation run. It is built fresh per run
// and never persisted.
type SyncOutcome struct {
	OrdersProcessed   int         `json:"orders_processed"`
	LinesInserted     int         `json:"lines_inserted"`
	DuplicatesSkipped int         `json:"duplicates_skipped"`
	UnresolvedSKUs    int         `json:"unresolved_skus"`
	StockDecrements   int         `json:"stock_decrements"`
	Issues            []LineIssue `json:"issues,omitempty"`

	// Partial is set when the run aborted mid-paging and the counts above
	// cover only the orders accumulated before the failure.
	Partial       bool   `json:"partial"`
	FailureReason string `json:"failure_reason,omitempty"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

func (o *SyncOutcome) addIssue(orderID, itemID, reason, detail string) {
	o.Issues = append(o.Issues, LineIssue{
		OrderID: orderID,
		ItemID:  itemID,
		Reason:  reason,
		Detail:  detail,
	})
}
