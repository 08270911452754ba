package orders

import "time"

// Channel is the sales-origin dimension persisted on every order and
// used to segment revenue in reporting.
type Channel string

const (
	ChannelStorefront  Channel = "storefront"
	ChannelInPerson    Channel = "in_person"
	ChannelMarketplace Channel = "marketplace"
)

func ParseChannel(s string) (Channel, bool) {
	switch Channel(s) {
	case ChannelStorefront, ChannelInPerson, ChannelMarketplace:
		return Channel(s), true
	}
	return "", false
}

// Order is created once by the checkout coordinator; afterwards only
// Status and UpdatedAt change, and the line set is fixed.
type Order struct {
	ID string `json:"id"`
	// ExternalID is the client-supplied idempotency key; empty when the
	// client did not send one. Unique across orders when present.
	ExternalID string  `json:"external_id,omitempty"`
	CustomerID string  `json:"customer_id"`
	Channel    Channel `json:"channel"`
	Status     Status  `json:"status"`
	// TotalCents is the gross sum of line subtotals; DiscountCents is a
	// flat order-level reduction, never above the total.
	TotalCents    int64 `json:"total_cents"`
	DiscountCents int64 `json:"discount_cents,omitempty"`
	// StockRestored records whether a cancellation has returned this
	// order's quantities to the ledger. It flips back when a cancelled
	// order is reinstated and the goods are taken again, so repeated
	// cancel/reinstate cycles never create stock out of thin air.
	StockRestored bool      `json:"stock_restored,omitempty"`
	Lines         []Line    `json:"lines"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// PayableCents is what the customer is charged.
func (o *Order) PayableCents() int64 { return o.TotalCents - o.DiscountCents }

// Line carries the unit price snapshotted at acceptance time; later
// catalog price changes never reach it.
type Line struct {
	ID             string `json:"id"`
	OrderID        string `json:"order_id"`
	ProductID      string `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

func (l Line) SubtotalCents() int64 { return int64(l.Qty) * l.UnitPriceCents }

type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}
