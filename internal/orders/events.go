package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderPlaced        = "OrderPlaced"
	EventOrderStatusChanged = "OrderStatusChanged"
	EventStockLow           = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // usually order_id
	Payload       json.RawMessage `json:"payload"`
}

type LineItem struct {
	ProductID      string `json:"product_id"`
	Qty            int    `json:"qty"`
	UnitPriceCents int64  `json:"unit_price_cents"`
}

type OrderPlacedPayload struct {
	OrderID       string     `json:"order_id"`
	ExternalID    string     `json:"external_id,omitempty"`
	CustomerID    string     `json:"customer_id"`
	Channel       Channel    `json:"channel"`
	Items         []LineItem `json:"items"`
	TotalCents    int64      `json:"total_cents"`
	DiscountCents int64      `json:"discount_cents,omitempty"`
}

type OrderStatusChangedPayload struct {
	OrderID   string `json:"order_id"`
	From      Status `json:"from"`
	To        Status `json:"to"`
	Restocked bool   `json:"restocked"`
}

type StockLowPayload struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
	Level     string `json:"level"`
}
