package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotline",
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	bookingCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotline",
			Name:      "booking_created_total",
			Help:      "Count of bookings created by origin.",
		},
		[]string{"via"},
	)

	bookingCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotline",
			Name:      "booking_cancelled_total",
			Help:      "Count of bookings cancelled.",
		},
	)

	bookingCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "slotline",
			Name:      "booking_completed_total",
			Help:      "Count of bookings auto-completed by the sweep.",
		},
	)

	slotRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "slotline",
			Name:      "slot_rejected_total",
			Help:      "Count of slot validation rejections by error code.",
		},
		[]string{"code"},
	)
)

// Register registers metrics (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, bookingCreated, bookingCancelled, bookingCompleted, slotRejected)
	})
}

func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

func IncBookingCreated(via string) {
	bookingCreated.WithLabelValues(via).Inc()
}

func IncBookingCancelled() {
	bookingCancelled.Inc()
}

func AddBookingsCompleted(n int) {
	bookingCompleted.Add(float64(n))
}

func IncSlotRejected(code string) {
	slotRejected.WithLabelValues(code).Inc()
}
