package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/fault"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/identity"
)

var (
	alice = identity.Identity{UserID: "alice", Role: identity.RoleCustomer}
	bob   = identity.Identity{UserID: "bob", Role: identity.RoleCustomer}
	admin = identity.Identity{UserID: "root", Role: identity.RoleAdmin}
)

func serviceFixture(t *testing.T) (*Service, *MemoryStore, *Order) {
	t.Helper()
	store := seedStore(t)
	o := draftOrder("alice", Line{ProductID: "p1", Qty: 2, UnitPriceCents: 4500})
	require.NoError(t, store.CreateOrder(context.Background(), o))
	return &Service{Store: store}, store, o
}

func TestGet_OwnerAndAdmin(t *testing.T) {
	svc, _, o := serviceFixture(t)
	ctx := context.Background()

	got, err := svc.Get(ctx, alice, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)

	got, err = svc.Get(ctx, admin, o.ID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
}

func TestGet_ForeignOrderIsAuthorizationError(t *testing.T) {
	svc, _, o := serviceFixture(t)
	ctx := context.Background()

	// existing order, wrong customer: authorization, not not-found
	_, err := svc.Get(ctx, bob, o.ID)
	var authz *fault.AuthorizationError
	assert.ErrorAs(t, err, &authz)

	// unknown order id stays a not-found
	_, err = svc.Get(ctx, bob, uuid.NewString())
	assert.True(t, fault.IsNotFound(err))
}

func TestList_ScopedByRole(t *testing.T) {
	svc, store, _ := serviceFixture(t)
	ctx := context.Background()
	require.NoError(t, store.CreateOrder(ctx,
		draftOrder("bob", Line{ProductID: "p2", Qty: 1, UnitPriceCents: 1900})))

	mine, err := svc.List(ctx, alice)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "alice", mine[0].CustomerID)

	all, err := svc.List(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUpdateStatus_AdminOnly(t *testing.T) {
	svc, _, o := serviceFixture(t)
	_, err := svc.UpdateStatus(context.Background(), alice, o.ID, StatusPaid)
	var authz *fault.AuthorizationError
	assert.ErrorAs(t, err, &authz)
}

func TestUpdateStatus_UnknownStatus(t *testing.T) {
	svc, _, o := serviceFixture(t)
	_, err := svc.UpdateStatus(context.Background(), admin, o.ID, "REFUNDED")
	var ve *fault.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestUpdateStatus_PermissiveAllowsBackwards(t *testing.T) {
	svc, _, o := serviceFixture(t)
	ctx := context.Background()

	updated, err := svc.UpdateStatus(ctx, admin, o.ID, StatusShipped)
	require.NoError(t, err)
	assert.Equal(t, StatusShipped, updated.Status)

	updated, err = svc.UpdateStatus(ctx, admin, o.ID, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, updated.Status)
}

func TestUpdateStatus_StrictRejectsIllegal(t *testing.T) {
	svc, _, o := serviceFixture(t)
	svc.Strict = true
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, admin, o.ID, StatusDelivered)
	var ve *fault.ValidationError
	require.ErrorAs(t, err, &ve)

	updated, err := svc.UpdateStatus(ctx, admin, o.ID, StatusPaid)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, updated.Status)
}

func TestUpdateStatus_CancelRestocks(t *testing.T) {
	svc, store, o := serviceFixture(t)
	ctx := context.Background()

	stock, _ := store.Stock(ctx, "p1")
	require.Equal(t, 8, stock)

	updated, err := svc.UpdateStatus(ctx, admin, o.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)

	stock, _ = store.Stock(ctx, "p1")
	assert.Equal(t, 10, stock)
}

func TestUpdateStatus_CancelReinstateCycleKeepsStockExact(t *testing.T) {
	svc, store, o := serviceFixture(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.UpdateStatus(ctx, admin, o.ID, StatusCancelled)
		require.NoError(t, err)
		stock, _ := store.Stock(ctx, "p1")
		assert.Equal(t, 10, stock)

		_, err = svc.UpdateStatus(ctx, admin, o.ID, StatusPending)
		require.NoError(t, err)
		stock, _ = store.Stock(ctx, "p1")
		assert.Equal(t, 8, stock)
	}
}

func TestUpdateStatus_ReinstateFailsWhenStockGone(t *testing.T) {
	svc, store, o := serviceFixture(t)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, admin, o.ID, StatusCancelled)
	require.NoError(t, err)

	// someone else buys the returned units before the order comes back
	require.NoError(t, store.CreateOrder(ctx,
		draftOrder("bob", Line{ProductID: "p1", Qty: 9, UnitPriceCents: 4500})))

	_, err = svc.UpdateStatus(ctx, admin, o.ID, StatusPending)
	var conflict *fault.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "p1", conflict.ProductID)

	got, err := store.Order(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	stock, _ := store.Stock(ctx, "p1")
	assert.Equal(t, 1, stock)
}

func TestUpdateStatus_CancelFromTerminalDoesNotRestock(t *testing.T) {
	svc, store, o := serviceFixture(t)
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, admin, o.ID, StatusDelivered)
	require.NoError(t, err)

	// permissive baseline lets an admin cancel even a delivered order,
	// but the goods already left: no restock
	_, err = svc.UpdateStatus(ctx, admin, o.ID, StatusCancelled)
	require.NoError(t, err)

	stock, _ := store.Stock(ctx, "p1")
	assert.Equal(t, 8, stock)
}
