package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/catalog"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/checkout"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/fault"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/identity"
	kafkax "github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/kafka"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/orders"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/redisx"
	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/reports"
)

// EventPublisher is the slice of the Kafka producer the handler needs;
// nil disables publishing (tests, local runs without a broker).
type EventPublisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Cache is the slice of the Redis client the handler uses;
// *redis.Client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

type Handler struct {
	Checkout *checkout.Service
	Orders   *orders.Service
	Reports  *reports.Engine
	Ledger   catalog.Ledger

	// Optional collaborators; nil-safe.
	Redis        Cache
	PlacedEvents EventPublisher // order.placed
	StatusEvents EventPublisher // order.status_changed
	Metrics      *Metrics
	Service      string
}

func (h *Handler) Register(r *chi.Mux) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.Get("/orders/{id}/status", h.getOrderStatus)
	r.Post("/admin/orders", h.createOrderForCustomer)
	r.Patch("/admin/orders/{id}/status", h.updateOrderStatus)
	r.Get("/products", h.listProducts)
	r.Get("/reports/monthly-sales", h.monthlySales)
	r.Get("/reports/top-customers", h.topCustomers)
	r.Get("/reports/channel-sales", h.channelSales)
	r.Get("/reports/stock-health", h.stockHealth)
	r.Get("/reports/snapshot", h.snapshot)
}

// actor reads the identity the external auth layer injected as
// trusted headers.
func actor(r *http.Request) (identity.Identity, error) {
	userID := r.Header.Get("X-User-Id")
	role, ok := identity.ParseRole(r.Header.Get("X-User-Role"))
	if userID == "" || !ok {
		return identity.Identity{}, fault.Unauthorized("missing or invalid identity headers")
	}
	return identity.Identity{UserID: userID, Role: role}, nil
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, err error) {
	writeJSON(w, fault.HTTPStatus(err), map[string]string{"error": err.Error()})
}

// ---- checkout ----

type createOrderResp struct {
	Order    *orders.Order `json:"order"`
	Replayed bool          `json:"replayed"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var in checkout.CartInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, fault.Validationf("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if res := h.replayFromCache(ctx, in.ExternalID); res != nil {
		h.finishCheckout(ctx, w, r, res, nil)
		return
	}
	res, err := h.Checkout.PlaceOrder(ctx, id, in)
	h.finishCheckout(ctx, w, r, res, err)
}

type adminOrderReq struct {
	CustomerID string `json:"customer_id"`
	checkout.CartInput
}

func (h *Handler) createOrderForCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var in adminOrderReq
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeErr(w, fault.Validationf("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if res := h.replayFromCache(ctx, in.ExternalID); res != nil {
		h.finishCheckout(ctx, w, r, res, nil)
		return
	}
	res, err := h.Checkout.PlaceOrderFor(ctx, id, in.CustomerID, in.CartInput)
	h.finishCheckout(ctx, w, r, res, err)
}

// replayFromCache is the idempotency fast path: a hit on the checkout
// key replays the stored order without touching the coordinator. A
// miss, a stale entry, or no Redis at all falls through to the store,
// which stays the source of truth.
func (h *Handler) replayFromCache(ctx context.Context, externalID string) *checkout.Result {
	if h.Redis == nil || externalID == "" {
		return nil
	}
	orderID, err := h.Redis.Get(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, externalID)).Result()
	if err != nil || orderID == "" {
		return nil
	}
	o, err := h.Checkout.Store.Order(ctx, orderID)
	if err != nil {
		return nil
	}
	return &checkout.Result{Order: o, Replayed: true}
}

func (h *Handler) finishCheckout(ctx context.Context, w http.ResponseWriter, r *http.Request, res *checkout.Result, err error) {
	if err != nil {
		if h.Metrics != nil {
			h.Metrics.CheckoutFailures.WithLabelValues(failureClass(err)).Inc()
		}
		writeErr(w, err)
		return
	}
	o := res.Order

	if !res.Replayed {
		if h.Metrics != nil {
			h.Metrics.OrdersPlaced.WithLabelValues(string(o.Channel)).Inc()
		}
		h.cacheStatus(ctx, o)
		if h.Redis != nil && o.ExternalID != "" {
			key := fmt.Sprintf(redisx.KeyIdemCheckout, o.ExternalID)
			_ = h.Redis.Set(ctx, key, o.ID, redisx.TTLIdempotency).Err()
		}
		h.publishPlaced(o, r.Header.Get("X-Request-Id"))
	}

	code := http.StatusCreated
	if res.Replayed {
		code = http.StatusOK
	}
	writeJSON(w, code, createOrderResp{Order: o, Replayed: res.Replayed})
}

func (h *Handler) publishPlaced(o *orders.Order, trace string) {
	if h.PlacedEvents == nil {
		return
	}
	items := make([]orders.LineItem, 0, len(o.Lines))
	for _, l := range o.Lines {
		items = append(items, orders.LineItem{
			ProductID:      l.ProductID,
			Qty:            l.Qty,
			UnitPriceCents: l.UnitPriceCents,
		})
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderPlaced,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderPlacedPayload{
			OrderID:       o.ID,
			ExternalID:    o.ExternalID,
			CustomerID:    o.CustomerID,
			Channel:       o.Channel,
			Items:         items,
			TotalCents:    o.TotalCents,
			DiscountCents: o.DiscountCents,
		}),
	}
	h.PlacedEvents.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderPlaced)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

func (h *Handler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body, _ := json.Marshal(map[string]string{"status": string(o.Status)})
	_ = h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err()
}

// ---- order access ----

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	os, err := h.Orders.List(ctx, id)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, os)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Orders.Get(ctx, id, chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

// getOrderStatus serves the cached status for dashboards; admin only,
// since the cache cannot carry ownership.
func (h *Handler) getOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !id.IsAdmin() {
		writeErr(w, fault.Unauthorized("admin only"))
		return
	}
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if h.Redis != nil {
		key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
		if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
			writeJSON(w, http.StatusOK, json.RawMessage(s))
			return
		}
	}

	o, err := h.Orders.Get(ctx, id, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(o.Status)})
}

type updateStatusReq struct {
	Status string `json:"status"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := actor(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, fault.Validationf("invalid json"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	orderID := chi.URLParam(r, "id")
	before, err := h.Orders.Get(ctx, id, orderID)
	if err != nil {
		writeErr(w, err)
		return
	}
	o, err := h.Orders.UpdateStatus(ctx, id, orderID, orders.Status(req.Status))
	if err != nil {
		writeErr(w, err)
		return
	}
	h.cacheStatus(ctx, o)
	h.publishStatusChanged(before.Status, o, r.Header.Get("X-Request-Id"))
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) publishStatusChanged(from orders.Status, o *orders.Order, trace string) {
	if h.StatusEvents == nil {
		return
	}
	ev := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     orders.EventOrderStatusChanged,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       trace,
		CorrelationID: o.ID,
		Payload: kafkax.MustMarshal(orders.OrderStatusChangedPayload{
			OrderID:   o.ID,
			From:      from,
			To:        o.Status,
			Restocked: o.Status == orders.StatusCancelled && o.StockRestored,
		}),
	}
	h.StatusEvents.Publish(orders.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(orders.EventOrderStatusChanged)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

// ---- catalog ----

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Ledger.ListProducts(ctx)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

// ---- reports (admin only) ----

func (h *Handler) requireAdmin(w http.ResponseWriter, r *http.Request, report string) (identity.Identity, bool) {
	id, err := actor(r)
	if err != nil {
		writeErr(w, err)
		return identity.Identity{}, false
	}
	if !id.IsAdmin() {
		writeErr(w, fault.Unauthorized("reports require an administrator"))
		return identity.Identity{}, false
	}
	if h.Metrics != nil {
		h.Metrics.ReportRequests.WithLabelValues(report).Inc()
	}
	return id, true
}

func reportFilter(r *http.Request) (reports.Filter, error) {
	var f reports.Filter
	q := r.URL.Query()
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fault.Validationf("invalid from time %q", v)
		}
		f.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fault.Validationf("invalid to time %q", v)
		}
		f.To = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fault.Validationf("invalid limit %q", v)
		}
		f.Limit = n
	}
	f.CategoryID = q.Get("category_id")
	return f, nil
}

func (h *Handler) monthlySales(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r, "monthly_sales"); !ok {
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year <= 0 {
		writeErr(w, fault.Validationf("year query parameter is required"))
		return
	}
	rep, err := h.Reports.MonthlySales(r.Context(), year)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) topCustomers(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r, "top_customers"); !ok {
		return
	}
	f, err := reportFilter(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	rep, err := h.Reports.TopCustomers(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) channelSales(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r, "channel_sales"); !ok {
		return
	}
	f, err := reportFilter(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	rep, err := h.Reports.ChannelSales(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) stockHealth(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r, "stock_health"); !ok {
		return
	}
	f, err := reportFilter(r)
	if err != nil {
		writeErr(w, err)
		return
	}
	rep, err := h.Reports.StockHealth(r.Context(), f)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireAdmin(w, r, "snapshot"); !ok {
		return
	}
	year, err := strconv.Atoi(r.URL.Query().Get("year"))
	if err != nil || year <= 0 {
		year = time.Now().UTC().Year()
	}
	rep, err := h.Reports.BuildSnapshot(r.Context(), year)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
