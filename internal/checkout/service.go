// Package checkout implements the order transaction coordinator: it
// validates a cart, prices it against the ledger, and commits the
// order plus its stock decrements as one all-or-nothing unit.
package checkout

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/catalog"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/fault"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/identity"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/orders"
)

type CartItem struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type CartInput struct {
	// ExternalID is an optional client-supplied idempotency key. A
	// retried checkout with the same key returns the original order
	// instead of charging inventory twice.
	ExternalID string `json:"external_id,omitempty"`
	Channel    string `json:"channel,omitempty"`
	// DiscountCents is a flat order-level discount; promotional pricing
	// beyond this stays outside the core.
	DiscountCents int64      `json:"discount_cents,omitempty"`
	Items         []CartItem `json:"items"`
}

type Result struct {
	Order *orders.Order
	// Replayed is true when the idempotency key matched an existing
	// order and no new order was created.
	Replayed bool
}

type Service struct {
	Ledger         catalog.Ledger
	Store          orders.Store
	DefaultChannel orders.Channel
	Log            *zap.Logger
}

// PlaceOrder is the self-service path: the acting customer owns the
// order. Administrators go through PlaceOrderFor so an order's owner
// is always a customer.
func (s *Service) PlaceOrder(ctx context.Context, actor identity.Identity, in CartInput) (*Result, error) {
	if actor.Role != identity.RoleCustomer {
		return nil, fault.Unauthorized("self-checkout requires a customer identity")
	}
	return s.place(ctx, actor.UserID, in)
}

// PlaceOrderFor is the administrator path: the named customer owns the
// order, the admin is only the actor. Same validation, same commit.
func (s *Service) PlaceOrderFor(ctx context.Context, admin identity.Identity, customerID string, in CartInput) (*Result, error) {
	if !admin.IsAdmin() {
		return nil, fault.Unauthorized("checkout on behalf of a customer requires an administrator")
	}
	if customerID == "" {
		return nil, fault.Validationf("target customer id is required")
	}
	return s.place(ctx, customerID, in)
}

func (s *Service) place(ctx context.Context, customerID string, in CartInput) (*Result, error) {
	if len(in.Items) == 0 {
		return nil, fault.Validationf("cart is empty")
	}

	merged, err := mergeItems(in.Items)
	if err != nil {
		return nil, err
	}

	channel := s.DefaultChannel
	if channel == "" {
		channel = orders.ChannelStorefront
	}
	if in.Channel != "" {
		c, ok := orders.ParseChannel(in.Channel)
		if !ok {
			return nil, fault.Validationf("unknown sales channel %q", in.Channel)
		}
		channel = c
	}

	if in.ExternalID != "" {
		existing, err := s.Store.OrderByExternalID(ctx, in.ExternalID)
		if err == nil {
			return &Result{Order: existing, Replayed: true}, nil
		}
		if !fault.IsNotFound(err) {
			return nil, err
		}
	}

	ids := make([]string, 0, len(merged))
	for _, it := range merged {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Ledger.Products(ctx, ids)
	if err != nil {
		return nil, err
	}

	// Validation runs fully before any transaction opens: unknown
	// products and insufficient stock are rejected here; only the lost
	// race inside the commit can still fail the cart afterwards.
	order := &orders.Order{
		ID:         uuid.NewString(),
		ExternalID: in.ExternalID,
		CustomerID: customerID,
		Channel:    channel,
		Status:     orders.StatusPending,
	}
	for _, it := range merged {
		p, ok := products[it.ProductID]
		if !ok {
			return nil, fault.NotFound("product", it.ProductID)
		}
		if p.Stock < it.Qty {
			return nil, &fault.InsufficientStockError{
				ProductID: it.ProductID,
				Requested: it.Qty,
				Available: p.Stock,
			}
		}
		line := orders.Line{
			ID:             uuid.NewString(),
			ProductID:      it.ProductID,
			Qty:            it.Qty,
			UnitPriceCents: p.PriceCents, // snapshot, frozen from here on
		}
		order.Lines = append(order.Lines, line)
		order.TotalCents += line.SubtotalCents()
	}

	if in.DiscountCents < 0 || in.DiscountCents > order.TotalCents {
		return nil, fault.Validationf("discount %d outside [0, %d]", in.DiscountCents, order.TotalCents)
	}
	order.DiscountCents = in.DiscountCents

	if err := s.Store.CreateOrder(ctx, order); err != nil {
		if errors.Is(err, orders.ErrDuplicateExternalID) && in.ExternalID != "" {
			// Concurrent retry won the insert; hand back its order.
			existing, lerr := s.Store.OrderByExternalID(ctx, in.ExternalID)
			if lerr != nil {
				return nil, lerr
			}
			return &Result{Order: existing, Replayed: true}, nil
		}
		return nil, err
	}

	if s.Log != nil {
		s.Log.Info("order placed",
			zap.String("order_id", order.ID),
			zap.String("customer_id", customerID),
			zap.String("channel", string(channel)),
			zap.Int64("total_cents", order.TotalCents),
			zap.Int("lines", len(order.Lines)),
		)
	}
	return &Result{Order: order}, nil
}

// mergeItems folds duplicate product ids into one line (quantities
// summed) and rejects non-positive quantities. The order of first
// appearance is kept so pricing and errors are deterministic.
func mergeItems(items []CartItem) ([]CartItem, error) {
	idx := make(map[string]int, len(items))
	out := make([]CartItem, 0, len(items))
	for _, it := range items {
		if it.ProductID == "" {
			return nil, fault.Validationf("cart item missing product id")
		}
		if it.Qty <= 0 {
			return nil, fault.Validationf("quantity for product %s must be positive, got %d", it.ProductID, it.Qty)
		}
		if i, ok := idx[it.ProductID]; ok {
			out[i].Qty += it.Qty
			continue
		}
		idx[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out, nil
}
