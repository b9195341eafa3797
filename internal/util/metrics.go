package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutsCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "checkouts_completed_total",
		Help: "Total number of checkouts turned into confirmed reservation batches",
	})

	CheckoutsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "checkouts_failed_total",
		Help: "Total number of failed checkouts",
	}, []string{"reason"})

	ReservationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_created_total",
		Help: "Total number of reservations created",
	})

	ReservationsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_cancelled_total",
		Help: "Total number of reservations cancelled with stock restored",
	})

	ReservationsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservations_expired_total",
		Help: "Total number of reservations expired by the sweeper",
	})

	StockConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_conflicts_total",
		Help: "Total number of reservation attempts that lost a stock race",
	})

	OrdersConvertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_converted_total",
		Help: "Total number of reservations converted to orders",
	})

	CheckoutLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "checkout_latency_seconds",
		Help:    "Latency of the reservation batch creation",
		Buckets: prometheus.DefBuckets,
	})

	WebhookNotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payment_webhook_notifications_total",
		Help: "Total number of gateway webhook notifications by outcome",
	}, []string{"outcome"})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of notification emails sent",
	}, []string{"kind"})

	EmailFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "email_failures_total",
		Help: "Total number of notification emails that failed to send",
	})

	VisitsRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visits_recorded_total",
		Help: "Total number of page visits recorded",
	})

	VisitRecordFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "visit_record_failures_total",
		Help: "Total number of visit records dropped due to errors",
	})

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
