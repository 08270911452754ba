package httpx

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/EnzoBerlesi/Kachau-Loja-sub000/internal/fault"
)

type Metrics struct {
	OrdersPlaced     *prometheus.CounterVec
	CheckoutFailures *prometheus.CounterVec
	ReportRequests   *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		OrdersPlaced: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_placed_total",
			Help:      "Orders committed by the checkout coordinator.",
		}, []string{"channel"}),
		CheckoutFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkout_failures_total",
			Help:      "Checkout attempts rejected or rolled back, by failure class.",
		}, []string{"reason"}),
		ReportRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "report_requests_total",
			Help:      "Analytics report requests served.",
		}, []string{"report"}),
	}
}

func failureClass(err error) string {
	var (
		ve *fault.ValidationError
		nf *fault.NotFoundError
		is *fault.InsufficientStockError
		ae *fault.AuthorizationError
		ce *fault.ConflictError
	)
	switch {
	case errors.As(err, &ve):
		return "validation"
	case errors.As(err, &nf):
		return "not_found"
	case errors.As(err, &is):
		return "insufficient_stock"
	case errors.As(err, &ae):
		return "authorization"
	case errors.As(err, &ce):
		return "conflict"
	default:
		return "internal"
	}
}
