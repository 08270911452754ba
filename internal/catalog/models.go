// Package catalog holds the product read model and the Ledger, the
// only component allowed to observe and restore stock. Checkout-time
// decrements happen inside the order store's transaction so the check
// and the decrement stay linearizable per product.
package catalog

import "time"

type Category struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type Product struct {
	ID         string `json:"id"`
	SKU        string `json:"sku"`
	Name       string `json:"name"`
	CategoryID string `json:"category_id,omitempty"`
	PriceCents int64  `json:"price_cents"`
	Stock      int    `json:"stock"`
	// MinStock is the per-product stock-health threshold; zero means
	// the global default applies.
	MinStock  int       `json:"min_stock,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
