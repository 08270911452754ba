// Package reports is the read-only aggregation engine. Every report
// replays order history (and the ledger for stock health) into a
// deterministic view: identical inputs always produce identical
// output, and nothing here mutates anything.
package reports

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/catalog"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/orders"
)

// OrderSource is the slice of the order store the engine reads.
type OrderSource interface {
	ListOrders(ctx context.Context, f orders.Filter) ([]*orders.Order, error)
}

// StockSource is the slice of the ledger the engine reads.
type StockSource interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
}

type Engine struct {
	Orders OrderSource
	Ledger StockSource
	// MinStockDefault is the stock-health threshold for products
	// without a per-product minimum.
	MinStockDefault int
}

// Filter narrows the customer/channel reports. Zero times are open
// bounds; Limit 0 means the default cap.
type Filter struct {
	From, To   time.Time
	Limit      int
	CategoryID string
}

const defaultTopCustomers = 10

// ---- monthly sales ----

type MonthBucket struct {
	Month         time.Month `json:"month"`
	Orders        int        `json:"orders"`
	Items         int        `json:"items"`
	RevenueCents  int64      `json:"revenue_cents"`
	AvgOrderCents int64      `json:"avg_order_cents"`
}

type MonthlySalesReport struct {
	Year   int           `json:"year"`
	Months []MonthBucket `json:"months"`
}

// MonthlySales buckets non-cancelled orders by calendar month (UTC) of
// the requested year. All twelve buckets are always present; months
// without orders report zeroes.
func (e *Engine) MonthlySales(ctx context.Context, year int) (*MonthlySalesReport, error) {
	from := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	to := from.AddDate(1, 0, 0)
	os, err := e.Orders.ListOrders(ctx, orders.Filter{From: from, To: to, ExcludeCancelled: true})
	if err != nil {
		return nil, err
	}

	rep := &MonthlySalesReport{Year: year, Months: make([]MonthBucket, 12)}
	for i := range rep.Months {
		rep.Months[i].Month = time.Month(i + 1)
	}
	for _, o := range os {
		b := &rep.Months[int(o.CreatedAt.UTC().Month())-1]
		b.Orders++
		b.RevenueCents += o.PayableCents()
		for _, l := range o.Lines {
			b.Items += l.Qty
		}
	}
	for i := range rep.Months {
		if n := rep.Months[i].Orders; n > 0 {
			rep.Months[i].AvgOrderCents = rep.Months[i].RevenueCents / int64(n)
		}
	}
	return rep, nil
}

// ---- top customers ----

type CustomerStat struct {
	CustomerID    string    `json:"customer_id"`
	Orders        int       `json:"orders"`
	SpendCents    int64     `json:"spend_cents"`
	AvgOrderCents int64     `json:"avg_order_cents"`
	LastOrderAt   time.Time `json:"last_order_at"`
}

// TopCustomers ranks customers by total spend over non-cancelled
// orders in the filter window, descending, ties broken by customer id
// so the ranking is stable.
func (e *Engine) TopCustomers(ctx context.Context, f Filter) ([]CustomerStat, error) {
	os, err := e.Orders.ListOrders(ctx, orders.Filter{From: f.From, To: f.To, ExcludeCancelled: true})
	if err != nil {
		return nil, err
	}

	byCustomer := map[string]*CustomerStat{}
	for _, o := range os {
		st, ok := byCustomer[o.CustomerID]
		if !ok {
			st = &CustomerStat{CustomerID: o.CustomerID}
			byCustomer[o.CustomerID] = st
		}
		st.Orders++
		st.SpendCents += o.PayableCents()
		if o.CreatedAt.After(st.LastOrderAt) {
			st.LastOrderAt = o.CreatedAt
		}
	}

	out := make([]CustomerStat, 0, len(byCustomer))
	for _, st := range byCustomer {
		st.AvgOrderCents = st.SpendCents / int64(st.Orders)
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SpendCents != out[j].SpendCents {
			return out[i].SpendCents > out[j].SpendCents
		}
		return out[i].CustomerID < out[j].CustomerID
	})

	limit := f.Limit
	if limit <= 0 {
		limit = defaultTopCustomers
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- channel sales ----

type ChannelStat struct {
	Channel      orders.Channel `json:"channel"`
	Orders       int            `json:"orders"`
	Items        int            `json:"items"`
	RevenueCents int64          `json:"revenue_cents"`
	// ShareBasisPoints is the channel's revenue share in 1/100 of a
	// percent; shares across all channels sum to exactly 10000 when any
	// revenue exists.
	ShareBasisPoints int `json:"share_basis_points"`
}

// ChannelSales groups non-cancelled orders by their persisted sales
// channel. Shares are computed in basis points with the rounding
// remainder assigned to the largest bucket, so they always add up.
func (e *Engine) ChannelSales(ctx context.Context, f Filter) ([]ChannelStat, error) {
	os, err := e.Orders.ListOrders(ctx, orders.Filter{From: f.From, To: f.To, ExcludeCancelled: true})
	if err != nil {
		return nil, err
	}

	byChannel := map[orders.Channel]*ChannelStat{}
	var total int64
	for _, o := range os {
		st, ok := byChannel[o.Channel]
		if !ok {
			st = &ChannelStat{Channel: o.Channel}
			byChannel[o.Channel] = st
		}
		st.Orders++
		st.RevenueCents += o.PayableCents()
		for _, l := range o.Lines {
			st.Items += l.Qty
		}
		total += o.PayableCents()
	}

	out := make([]ChannelStat, 0, len(byChannel))
	for _, st := range byChannel {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RevenueCents != out[j].RevenueCents {
			return out[i].RevenueCents > out[j].RevenueCents
		}
		return out[i].Channel < out[j].Channel
	})

	if total > 0 {
		assigned := 0
		for i := range out {
			out[i].ShareBasisPoints = int(out[i].RevenueCents * 10000 / total)
			assigned += out[i].ShareBasisPoints
		}
		// largest bucket absorbs the truncation remainder
		out[0].ShareBasisPoints += 10000 - assigned
	}
	return out, nil
}

// ---- stock health ----

type StockLevel string

const (
	LevelNormal     StockLevel = "normal"
	LevelLow        StockLevel = "low"
	LevelCritical   StockLevel = "critical"
	LevelOutOfStock StockLevel = "out_of_stock"
)

// Classify compares stock against a minimum-stock threshold:
// zero stock is out_of_stock, at or below the threshold is critical,
// at or below twice the threshold is low, anything above is normal.
func Classify(stock, threshold int) StockLevel {
	switch {
	case stock <= 0:
		return LevelOutOfStock
	case stock <= threshold:
		return LevelCritical
	case stock <= 2*threshold:
		return LevelLow
	default:
		return LevelNormal
	}
}

type ProductStock struct {
	ProductID  string     `json:"product_id"`
	SKU        string     `json:"sku"`
	Name       string     `json:"name"`
	CategoryID string     `json:"category_id"`
	Stock      int        `json:"stock"`
	Threshold  int        `json:"threshold"`
	Level      StockLevel `json:"level"`
	ValueCents int64      `json:"value_cents"`
}

type StockHealthReport struct {
	Products        []ProductStock     `json:"products"`
	TotalValueCents int64              `json:"total_value_cents"`
	Counts          map[StockLevel]int `json:"counts"`
}

// StockHealth classifies every product (optionally one category) and
// values the inventory at current prices.
func (e *Engine) StockHealth(ctx context.Context, f Filter) (*StockHealthReport, error) {
	ps, err := e.Ledger.ListProducts(ctx)
	if err != nil {
		return nil, err
	}

	rep := &StockHealthReport{Counts: map[StockLevel]int{
		LevelNormal: 0, LevelLow: 0, LevelCritical: 0, LevelOutOfStock: 0,
	}}
	for _, p := range ps {
		if f.CategoryID != "" && p.CategoryID != f.CategoryID {
			continue
		}
		threshold := p.MinStock
		if threshold <= 0 {
			threshold = e.MinStockDefault
		}
		st := ProductStock{
			ProductID:  p.ID,
			SKU:        p.SKU,
			Name:       p.Name,
			CategoryID: p.CategoryID,
			Stock:      p.Stock,
			Threshold:  threshold,
			Level:      Classify(p.Stock, threshold),
			ValueCents: int64(p.Stock) * p.PriceCents,
		}
		rep.Products = append(rep.Products, st)
		rep.TotalValueCents += st.ValueCents
		rep.Counts[st.Level]++
	}
	return rep, nil
}

// ---- combined snapshot ----

type Snapshot struct {
	MonthlySales *MonthlySalesReport `json:"monthly_sales"`
	TopCustomers []CustomerStat      `json:"top_customers"`
	ChannelSales []ChannelStat       `json:"channel_sales"`
	StockHealth  *StockHealthReport  `json:"stock_health"`
}

// BuildSnapshot runs the four reports concurrently. Reads tolerate a
// milliseconds-stale view, so no locking against checkouts is needed.
func (e *Engine) BuildSnapshot(ctx context.Context, year int) (*Snapshot, error) {
	var snap Snapshot
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		snap.MonthlySales, err = e.MonthlySales(ctx, year)
		return
	})
	g.Go(func() (err error) {
		snap.TopCustomers, err = e.TopCustomers(ctx, Filter{})
		return
	})
	g.Go(func() (err error) {
		snap.ChannelSales, err = e.ChannelSales(ctx, Filter{})
		return
	})
	g.Go(func() (err error) {
		snap.StockHealth, err = e.StockHealth(ctx, Filter{})
		return
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &snap, nil
}
