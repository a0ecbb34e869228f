package admission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	issuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "academia",
		Subsystem: "admission",
		Name:      "numbers_issued_total",
		Help:      "Admission sequence numbers issued.",
	})
	retriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "academia",
		Subsystem: "admission",
		Name:      "sequence_retries_total",
		Help:      "Transparent retries of the atomic sequence increment after a conflict.",
	})
	repairsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "academia",
		Subsystem: "admission",
		Name:      "counter_repairs_total",
		Help:      "Drifted counters raised by the repair operation.",
	})
)
