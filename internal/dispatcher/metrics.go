package dispatcher

import "github.com/prometheus/client_golang/prometheus"

// Metrics groups the dispatcher's counters (spec §4.3 step 5), mirroring
// the teacher's package-level prometheus collector style but instantiated
// per-dispatcher so tests can use an isolated registry.
type Metrics struct {
	TotalSent      prometheus.Counter
	TotalDelivered prometheus.Counter
	TotalFailed    prometheus.Counter
	TotalSkipped   prometheus.Counter
	ByVariant      *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TotalSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifyhub_dispatcher_sent_total",
			Help: "Total dispatch attempts across all targets",
		}),
		TotalDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifyhub_dispatcher_delivered_total",
			Help: "Total notifications delivered to a local connection",
		}),
		TotalFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifyhub_dispatcher_failed_total",
			Help: "Total per-connection send failures (queue full or closed)",
		}),
		TotalSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "notifyhub_dispatcher_skipped_total",
			Help: "Total events skipped for having already expired",
		}),
		ByVariant: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifyhub_dispatcher_dispatch_total",
			Help: "Total dispatch calls by target variant",
		}, []string{"variant"}),
	}
	if reg != nil {
		reg.MustRegister(m.TotalSent, m.TotalDelivered, m.TotalFailed, m.TotalSkipped, m.ByVariant)
	}
	return m
}
