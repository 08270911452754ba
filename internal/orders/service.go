package orders

import (
	"context"

	"go.uber.org/zap"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/fault"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/identity"
)

// Service enforces the ownership and role rules over the Store:
// customers see only their own orders, admins see everything and are
// the only actors allowed to drive the status machine.
type Service struct {
	Store  Store
	Strict bool // enforce the transition table instead of the permissive baseline
	Log    *zap.Logger
}

func (s *Service) List(ctx context.Context, actor identity.Identity) ([]*Order, error) {
	if actor.IsAdmin() {
		return s.Store.ListOrders(ctx, Filter{})
	}
	return s.Store.ListOrders(ctx, Filter{CustomerID: actor.UserID})
}

// Get returns fault.AuthorizationError when a customer asks for a
// foreign order. The order exists; access is denied, which must stay
// distinguishable from an unknown id.
func (s *Service) Get(ctx context.Context, actor identity.Identity, orderID string) (*Order, error) {
	o, err := s.Store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin() && o.CustomerID != actor.UserID {
		return nil, fault.Unauthorized("order belongs to another customer")
	}
	return o, nil
}

// UpdateStatus moves an order to the requested status. Cancelling a
// not-yet-terminal order restores its reserved stock exactly once;
// reinstating a cancelled order takes the quantities back, failing
// with fault.ConflictError when stock no longer covers them.
func (s *Service) UpdateStatus(ctx context.Context, actor identity.Identity, orderID string, next Status) (*Order, error) {
	if !actor.IsAdmin() {
		return nil, fault.Unauthorized("only administrators may update order status")
	}
	if _, ok := ParseStatus(string(next)); !ok {
		return nil, fault.Validationf("unknown order status %q", next)
	}

	o, err := s.Store.Order(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, next, s.Strict) {
		return nil, fault.Validationf("illegal status transition %s -> %s", o.Status, next)
	}

	updated, err := s.Store.UpdateStatus(ctx, orderID, next)
	if err != nil {
		return nil, err
	}
	if s.Log != nil {
		s.Log.Info("order status updated",
			zap.String("order_id", orderID),
			zap.String("from", string(o.Status)),
			zap.String("to", string(next)),
			zap.Bool("stock_restored", updated.StockRestored),
		)
	}
	return updated, nil
}
