package ledger

import "context"

// SaleLineRepository defines the persistence interface for the sales ledger.
type SaleLineRepository interface {
	// ExistsOrder reports whether any line of the given marketplace order is
	// already recorded for the channel.
	ExistsOrder(ctx context.Context, channel, orderID string) (bool, error)

	// UpsertBatch writes the lines in a single transaction, skipping any
	// whose (channel, order id, item id) key is already present, and returns
	// the keys that were newly inserted.
	UpsertBatch(ctx context.Context, lines []*SaleLine) ([]LineKey, error)

	// CountByOrder returns the number of recorded lines for an order.
	CountByOrder(ctx context.Context, channel, orderID string) (int64, error)
}
