package worker

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeDelivered  = "delivered"
	outcomeRequeued   = "requeued"
	outcomeDeadLetter = "dead_lettered"
)

var (
	deliveriesOnce sync.Once
	deliveries     *prometheus.CounterVec
)

func deliveryCounter() *prometheus.CounterVec {
	deliveriesOnce.Do(func() {
		deliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wardline",
			Subsystem: "worker",
			Name:      "notifications_total",
			Help:      "Notification tasks by kind and outcome",
		}, []string{"kind", "outcome"})

		if err := prometheus.Register(deliveries); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
					deliveries = existing
				}
			}
		}
	})
	return deliveries
}

func recordOutcome(kind, outcome string) {
	deliveryCounter().With(prometheus.Labels{"kind": kind, "outcome": outcome}).Inc()
}
