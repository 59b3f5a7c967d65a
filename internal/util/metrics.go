package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_orders_placed_total",
		Help: "Total number of orders created from a cart",
	})

	CheckoutFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_checkout_failures_total",
		Help: "Total number of rejected or failed checkouts",
	}, []string{"reason"})

	OrdersUnassignedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "store_orders_unassigned_total",
		Help: "Orders left without an operator after checkout",
	})

	AssignmentLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_assignment_latency_seconds",
		Help:    "Latency of operator selection and assignment",
		Buckets: prometheus.DefBuckets,
	})

	AssignedPendingLoad = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "store_assigned_pending_load",
		Help:    "Pending load of the operator picked for a new order",
		Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
	})

	OrderUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_order_updates_total",
		Help: "Total number of applied order updates",
	}, []string{"role"})

	ForbiddenAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_forbidden_attempts_total",
		Help: "Order reads or updates rejected by the permission table",
	}, []string{"role", "operation"})

	StockDecrementFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_stock_decrement_failures_total",
		Help: "Stock decrements that failed after the order was persisted",
	}, []string{"reason"})

	ProductCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_product_cache_requests_total",
		Help: "Product cache lookups by result",
	}, []string{"result"})

	OrderEventsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "store_order_events_recorded_total",
		Help: "Order history events consumed by result",
	}, []string{"type", "result"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
