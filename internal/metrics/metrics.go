package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetbook",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by booking type.",
		},
		[]string{"booking_type"},
	)

	bookingUpdated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetbook",
			Name:      "booking_updated_total",
			Help:      "Count of booking updates applied.",
		},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetbook",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings moved to cancelled.",
		},
	)

	bookingDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetbook",
			Name:      "booking_deleted_total",
			Help:      "Count of bookings deleted.",
		},
	)

	bookingRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetbook",
			Name:      "booking_rejected_total",
			Help:      "Count of booking requests rejected by reason.",
		},
		[]string{"reason"},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "assetbook",
			Name:      "http_requests_total",
			Help:      "Count of API requests by handler.",
		},
		[]string{"handler"},
	)

	txRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "assetbook",
			Name:      "booking_tx_retries_total",
			Help:      "Count of transactional write retries after transient failures.",
		},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			bookingCreated, bookingUpdated, bookingCancelled, bookingDeleted,
			bookingRejected, httpRequests, txRetries,
		)
	})
}

func IncBookingCreated(bookingType string) {
	bookingCreated.WithLabelValues(bookingType).Inc()
}

func IncBookingUpdated() {
	bookingUpdated.Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func IncBookingDeleted() {
	bookingDeleted.Inc()
}

func IncBookingRejected(reason string) {
	bookingRejected.WithLabelValues(reason).Inc()
}

func IncHTTP(handler string) {
	httpRequests.WithLabelValues(handler).Inc()
}

func IncTxRetry() {
	txRetries.Inc()
}
