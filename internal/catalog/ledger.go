package catalog

import "context"

// Ledger is the authoritative stock source. All methods are reads
// except Restock, the administrative/compensating path; the checkout
// decrement lives in the order store's transaction instead, expressed
// as a conditional update so a losing concurrent request aborts
// cleanly.
type Ledger interface {
	// Product returns one product or fault.NotFoundError.
	Product(ctx context.Context, id string) (Product, error)
	// Products bulk-loads the given ids; absent ids are simply missing
	// from the map, callers decide whether that is an error.
	Products(ctx context.Context, ids []string) (map[string]Product, error)
	ListProducts(ctx context.Context) ([]Product, error)
	// Stock reports the current count for one product.
	Stock(ctx context.Context, id string) (int, error)
	// Restock raises stock unconditionally (administrative restock or
	// cancellation compensation outside an order transaction).
	Restock(ctx context.Context, id string, qty int) error
}
