package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/catalog"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/fault"
)

// MemoryStore backs tests and local runs. It implements both Store and
// catalog.Ledger behind one mutex, so an order insert and its stock
// decrements are atomic exactly like the SQL transaction: no caller
// ever observes one without the other.
type MemoryStore struct {
	mu         sync.Mutex
	products   map[string]*catalog.Product
	categories map[string]catalog.Category
	orders     map[string]*Order
	byExternal map[string]string // external_id -> order_id
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products:   make(map[string]*catalog.Product),
		categories: make(map[string]catalog.Category),
		orders:     make(map[string]*Order),
		byExternal: make(map[string]string),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetClock pins time for deterministic tests.
func (s *MemoryStore) SetClock(now func() time.Time) { s.now = now }

func (s *MemoryStore) SeedCategory(c catalog.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.categories[c.ID] = c
}

func (s *MemoryStore) SeedProduct(p catalog.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	p.UpdatedAt = p.CreatedAt
	cp := p
	s.products[p.ID] = &cp
}

// SetPrice simulates a later catalog price change; persisted line
// snapshots must not move with it.
func (s *MemoryStore) SetPrice(productID string, priceCents int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p, ok := s.products[productID]; ok {
		p.PriceCents = priceCents
		p.UpdatedAt = s.now()
	}
}

// ---- catalog.Ledger ----

func (s *MemoryStore) Product(ctx context.Context, id string) (catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return catalog.Product{}, fault.NotFound("product", id)
	}
	return *p, nil
}

func (s *MemoryStore) Products(ctx context.Context, ids []string) (map[string]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]catalog.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = *p
		}
	}
	return out, nil
}

func (s *MemoryStore) ListProducts(ctx context.Context) ([]catalog.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]catalog.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *MemoryStore) Stock(ctx context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return 0, fault.NotFound("product", id)
	}
	return p.Stock, nil
}

func (s *MemoryStore) Restock(ctx context.Context, id string, qty int) error {
	if qty <= 0 {
		return fault.Validationf("restock quantity must be positive, got %d", qty)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return fault.NotFound("product", id)
	}
	p.Stock += qty
	p.UpdatedAt = s.now()
	return nil
}

// ---- Store ----

func (s *MemoryStore) CreateOrder(ctx context.Context, o *Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.ExternalID != "" {
		if _, exists := s.byExternal[o.ExternalID]; exists {
			return ErrDuplicateExternalID
		}
	}

	// Validate every decrement before touching anything, so a failure
	// leaves stock and orders exactly as they were.
	for _, l := range o.Lines {
		p, ok := s.products[l.ProductID]
		if !ok {
			return fault.NotFound("product", l.ProductID)
		}
		if p.Stock < l.Qty {
			return &fault.ConflictError{
				ProductID: l.ProductID,
				Requested: l.Qty,
				Available: p.Stock,
			}
		}
	}

	now := s.now()
	for _, l := range o.Lines {
		p := s.products[l.ProductID]
		p.Stock -= l.Qty
		p.UpdatedAt = now
	}
	o.CreatedAt = now
	o.UpdatedAt = now
	for i := range o.Lines {
		o.Lines[i].OrderID = o.ID
	}
	s.orders[o.ID] = cloneOrder(o)
	if o.ExternalID != "" {
		s.byExternal[o.ExternalID] = o.ID
	}
	return nil
}

func (s *MemoryStore) Order(ctx context.Context, id string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fault.NotFound("order", id)
	}
	return cloneOrder(o), nil
}

func (s *MemoryStore) OrderByExternalID(ctx context.Context, externalID string) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExternal[externalID]
	if !ok {
		return nil, fault.NotFound("order", externalID)
	}
	return cloneOrder(s.orders[id]), nil
}

func (s *MemoryStore) ListOrders(ctx context.Context, f Filter) ([]*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Order
	for _, o := range s.orders {
		if f.CustomerID != "" && o.CustomerID != f.CustomerID {
			continue
		}
		if !f.From.IsZero() && o.CreatedAt.Before(f.From) {
			continue
		}
		if !f.To.IsZero() && !o.CreatedAt.Before(f.To) {
			continue
		}
		if f.ExcludeCancelled && o.Status == StatusCancelled {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, next Status) (*Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, fault.NotFound("order", id)
	}
	now := s.now()
	switch {
	case next == StatusCancelled && !o.Status.Terminal() && !o.StockRestored:
		for _, l := range o.Lines {
			if p, ok := s.products[l.ProductID]; ok {
				p.Stock += l.Qty
				p.UpdatedAt = now
			}
		}
		o.StockRestored = true
	case o.Status == StatusCancelled && next != StatusCancelled && o.StockRestored:
		// reinstating takes the goods back, all-or-nothing like checkout
		for _, l := range o.Lines {
			p, ok := s.products[l.ProductID]
			if !ok {
				return nil, fault.NotFound("product", l.ProductID)
			}
			if p.Stock < l.Qty {
				return nil, &fault.ConflictError{
					ProductID: l.ProductID,
					Requested: l.Qty,
					Available: p.Stock,
				}
			}
		}
		for _, l := range o.Lines {
			p := s.products[l.ProductID]
			p.Stock -= l.Qty
			p.UpdatedAt = now
		}
		o.StockRestored = false
	}
	o.Status = next
	o.UpdatedAt = now
	return cloneOrder(o), nil
}

// OrderCount is a test hook for atomicity assertions.
func (s *MemoryStore) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.Lines = make([]Line, len(o.Lines))
	copy(cp.Lines, o.Lines)
	return &cp
}
