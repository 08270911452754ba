package orders

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/catalog"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/fault"
)

func seedStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	s.SeedCategory(catalog.Category{ID: "cat-1", Name: "peripherals"})
	s.SeedProduct(catalog.Product{
		ID: "p1", SKU: "KB-01", Name: "keyboard", CategoryID: "cat-1",
		PriceCents: 4500, Stock: 10,
	})
	s.SeedProduct(catalog.Product{
		ID: "p2", SKU: "MS-01", Name: "mouse", CategoryID: "cat-1",
		PriceCents: 1900, Stock: 3,
	})
	return s
}

func draftOrder(customer string, lines ...Line) *Order {
	o := &Order{
		ID:         uuid.NewString(),
		CustomerID: customer,
		Channel:    ChannelStorefront,
		Status:     StatusPending,
		Lines:      lines,
	}
	for i := range o.Lines {
		o.Lines[i].ID = uuid.NewString()
		o.TotalCents += o.Lines[i].SubtotalCents()
	}
	return o
}

func TestCreateOrder_DecrementsStock(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	o := draftOrder("cust-1", Line{ProductID: "p1", Qty: 2, UnitPriceCents: 4500})
	require.NoError(t, s.CreateOrder(ctx, o))

	stock, err := s.Stock(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 8, stock)

	got, err := s.Order(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), got.TotalCents)
	assert.Equal(t, StatusPending, got.Status)
	require.Len(t, got.Lines, 1)
	assert.Equal(t, o.ID, got.Lines[0].OrderID)
}

func TestCreateOrder_ConflictLeavesNothingBehind(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	// second line exceeds stock; the first line's decrement must not
	// survive the failure
	o := draftOrder("cust-1",
		Line{ProductID: "p1", Qty: 2, UnitPriceCents: 4500},
		Line{ProductID: "p2", Qty: 5, UnitPriceCents: 1900},
	)
	err := s.CreateOrder(ctx, o)
	var conflict *fault.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "p2", conflict.ProductID)
	assert.Equal(t, 5, conflict.Requested)
	assert.Equal(t, 3, conflict.Available)

	stock, _ := s.Stock(ctx, "p1")
	assert.Equal(t, 10, stock)
	stock, _ = s.Stock(ctx, "p2")
	assert.Equal(t, 3, stock)
	assert.Equal(t, 0, s.OrderCount())
}

func TestCreateOrder_UnknownProduct(t *testing.T) {
	s := seedStore(t)
	err := s.CreateOrder(context.Background(),
		draftOrder("cust-1", Line{ProductID: "ghost", Qty: 1, UnitPriceCents: 100}))
	assert.True(t, fault.IsNotFound(err))
	assert.Equal(t, 0, s.OrderCount())
}

func TestCreateOrder_DuplicateExternalID(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	first := draftOrder("cust-1", Line{ProductID: "p1", Qty: 1, UnitPriceCents: 4500})
	first.ExternalID = "client-key-1"
	require.NoError(t, s.CreateOrder(ctx, first))

	second := draftOrder("cust-1", Line{ProductID: "p1", Qty: 1, UnitPriceCents: 4500})
	second.ExternalID = "client-key-1"
	err := s.CreateOrder(ctx, second)
	assert.ErrorIs(t, err, ErrDuplicateExternalID)

	stock, _ := s.Stock(ctx, "p1")
	assert.Equal(t, 9, stock)

	got, err := s.OrderByExternalID(ctx, "client-key-1")
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestCreateOrder_ConcurrentLastUnit(t *testing.T) {
	s := NewMemoryStore()
	s.SeedProduct(catalog.Product{ID: "p1", SKU: "X", Name: "x", PriceCents: 100, Stock: 1})
	ctx := context.Background()

	const attempts = 8
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.CreateOrder(ctx,
				draftOrder("cust", Line{ProductID: "p1", Qty: 1, UnitPriceCents: 100}))
		}(i)
	}
	wg.Wait()

	committed := 0
	for _, err := range errs {
		if err == nil {
			committed++
			continue
		}
		var conflict *fault.ConflictError
		assert.ErrorAs(t, err, &conflict)
	}
	assert.Equal(t, 1, committed)

	stock, _ := s.Stock(ctx, "p1")
	assert.Equal(t, 0, stock)
	assert.Equal(t, 1, s.OrderCount())
}

func TestUpdateStatus_RestockReturnsQuantities(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	o := draftOrder("cust-1",
		Line{ProductID: "p1", Qty: 4, UnitPriceCents: 4500},
		Line{ProductID: "p2", Qty: 1, UnitPriceCents: 1900},
	)
	require.NoError(t, s.CreateOrder(ctx, o))

	updated, err := s.UpdateStatus(ctx, o.ID, StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, updated.Status)
	assert.True(t, updated.StockRestored)

	stock, _ := s.Stock(ctx, "p1")
	assert.Equal(t, 10, stock)
	stock, _ = s.Stock(ctx, "p2")
	assert.Equal(t, 3, stock)
}

func TestUpdateStatus_RepeatedCancelRestocksOnce(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	o := draftOrder("cust-1", Line{ProductID: "p1", Qty: 4, UnitPriceCents: 4500})
	require.NoError(t, s.CreateOrder(ctx, o))

	for i := 0; i < 2; i++ {
		_, err := s.UpdateStatus(ctx, o.ID, StatusCancelled)
		require.NoError(t, err)

		stock, _ := s.Stock(ctx, "p1")
		assert.Equal(t, 10, stock)
	}
}

func TestListOrders_Filters(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return now })

	a := draftOrder("alice", Line{ProductID: "p1", Qty: 1, UnitPriceCents: 4500})
	require.NoError(t, s.CreateOrder(ctx, a))

	now = now.Add(48 * time.Hour)
	b := draftOrder("bob", Line{ProductID: "p2", Qty: 1, UnitPriceCents: 1900})
	require.NoError(t, s.CreateOrder(ctx, b))
	_, err := s.UpdateStatus(ctx, b.ID, StatusCancelled)
	require.NoError(t, err)

	all, err := s.ListOrders(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	mine, err := s.ListOrders(ctx, Filter{CustomerID: "alice"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, a.ID, mine[0].ID)

	active, err := s.ListOrders(ctx, Filter{ExcludeCancelled: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)

	windowed, err := s.ListOrders(ctx, Filter{
		From: time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		To:   time.Date(2025, 6, 4, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Len(t, windowed, 1)
	assert.Equal(t, b.ID, windowed[0].ID)
}

func TestOrder_CloneIsolation(t *testing.T) {
	s := seedStore(t)
	ctx := context.Background()

	o := draftOrder("cust-1", Line{ProductID: "p1", Qty: 1, UnitPriceCents: 4500})
	require.NoError(t, s.CreateOrder(ctx, o))

	got, err := s.Order(ctx, o.ID)
	require.NoError(t, err)
	got.Lines[0].Qty = 999
	got.TotalCents = 0

	again, err := s.Order(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Lines[0].Qty)
	assert.Equal(t, int64(4500), again.TotalCents)
}
