package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "admission_queue_depth",
			Help: "Current number of waiting sessions per slot",
		},
		[]string{"show"},
	)

	Promotions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_promotions_total",
			Help: "Sessions promoted from the waiting room into booking",
		},
		[]string{"show"},
	)

	Evictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "admission_evictions_total",
			Help: "Sessions evicted for heartbeat silence",
		},
		[]string{"show"},
	)

	HoldsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_holds_created_total",
			Help: "Inventory holds created",
		},
		[]string{"show"},
	)

	HoldsReleased = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reservation_holds_released_total",
			Help: "Holds whose capacity returned to the ledger",
		},
		[]string{"show", "reason"},
	)

	TicketsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tickets_issued_total",
			Help: "Tickets issued by finalized reservations",
		},
		[]string{"show"},
	)

	PaymentRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_retry_attempts_total",
			Help: "Retry attempts per payment rail",
		},
		[]string{"rail"},
	)

	PaymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_outcomes_total",
			Help: "Terminal payment outcomes per rail",
		},
		[]string{"rail", "outcome"},
	)

	TransferOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "transfer_outcomes_total",
			Help: "Terminal transfer handshake outcomes",
		},
		[]string{"status"},
	)
)
