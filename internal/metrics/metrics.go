// Package metrics exports Prometheus series for the reservation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reservationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_reservation_requests_total",
			Help: "Reservation requests by intake outcome (queued, blocked, failed)",
		},
		[]string{"status"},
	)

	reservationJobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "seat_reservation_jobs_total",
			Help: "Processed reservation jobs by outcome",
		},
		[]string{"outcome"},
	)

	availableSeats = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seat_available",
			Help: "Seats currently available in the pool",
		},
	)

	gateClosed = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "seat_reservation_gate_closed",
			Help: "1 once intake has been closed because the pool is exhausted",
		},
	)
)

// Request outcomes.
const (
	RequestQueued  = "queued"
	RequestBlocked = "blocked"
	RequestFailed  = "failed"
)

// Job outcomes.
const (
	JobCompleted    = "completed"
	JobInsufficient = "insufficient_seats"
	JobError        = "error"
)

func TrackRequest(status string) { reservationRequests.WithLabelValues(status).Inc() }

func TrackJob(outcome string) { reservationJobs.WithLabelValues(outcome).Inc() }

func SetAvailableSeats(n int) { availableSeats.Set(float64(n)) }

func SetGateClosed(closed bool) {
	if closed {
		gateClosed.Set(1)
		return
	}
	gateClosed.Set(0)
}
