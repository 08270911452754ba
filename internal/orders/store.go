package orders

import (
	"context"
	"errors"
	"time"
)

// ErrDuplicateExternalID is returned by CreateOrder when another order
// already holds the same idempotency key; the checkout coordinator
// replays the original order instead.
var ErrDuplicateExternalID = errors.New("orders: external id already used")

// Filter narrows ListOrders. Zero times mean an open bound.
type Filter struct {
	CustomerID       string
	From, To         time.Time
	ExcludeCancelled bool
}

// Store is the durable order record. Orders are append-only except
// the status field; lines are immutable; nothing is deleted.
type Store interface {
	// CreateOrder persists the order with all its lines and decrements
	// stock for every line as one atomic unit. On any failure nothing is
	// persisted: a lost stock race surfaces as fault.ConflictError
	// naming the losing product, a vanished product as
	// fault.NotFoundError, a reused idempotency key as
	// ErrDuplicateExternalID.
	CreateOrder(ctx context.Context, o *Order) error

	// Order loads one order with lines, or fault.NotFoundError.
	Order(ctx context.Context, id string) (*Order, error)

	// OrderByExternalID loads the order holding the given idempotency
	// key, or fault.NotFoundError.
	OrderByExternalID(ctx context.Context, externalID string) (*Order, error)

	ListOrders(ctx context.Context, f Filter) ([]*Order, error)

	// UpdateStatus sets the order's status and settles stock inside the
	// same transaction, keyed off the order's StockRestored flag:
	// entering CANCELLED from a non-terminal status returns every line's
	// quantity exactly once; leaving CANCELLED takes the quantities back
	// (fault.ConflictError, nothing changed, when stock no longer
	// covers them). The flag makes the accounting idempotent under
	// concurrent or repeated requests.
	UpdateStatus(ctx context.Context, id string, next Status) (*Order, error)
}
