package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"

	"github.com/hylla/sitebook/internal/domain"
)

// Metrics holds the engine's prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	mutations       *prometheus.CounterVec
	derivations     prometheus.Counter
	budgetRecalcs   *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	staleRefreshes  prometheus.Counter
	budgetUsed      prometheus.Gauge
	budgetRemaining prometheus.Gauge
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		// Labels: collection, action (activity action type)
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitebook",
			Subsystem: "facts",
			Name:      "mutations_total",
			Help:      "Total fact and ledger mutations by collection and action",
		}, []string{"collection", "action"}),
		derivations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sitebook",
			Subsystem: "payroll",
			Name:      "derivations_total",
			Help:      "Total payroll computations derived",
		}),
		// Labels: status (ok, degraded, error)
		budgetRecalcs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitebook",
			Subsystem: "budget",
			Name:      "recalculations_total",
			Help:      "Total budget recalculations by outcome",
		}, []string{"status"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sitebook",
			Subsystem: "notifier",
			Name:      "deliveries_total",
			Help:      "Total change notifications delivered to subscribers",
		}, []string{"collection"}),
		staleRefreshes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "sitebook",
			Subsystem: "board",
			Name:      "stale_refreshes_total",
			Help:      "Live board refreshes discarded because a newer refresh started",
		}),
		budgetUsed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sitebook",
			Subsystem: "budget",
			Name:      "used",
			Help:      "Last recalculated used budget",
		}),
		budgetRemaining: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "sitebook",
			Subsystem: "budget",
			Name:      "remaining",
			Help:      "Last recalculated remaining budget, negative when over budget",
		}),
	}
}

func (m *Metrics) mutation(c domain.Collection, action domain.ActivityAction) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(string(c), string(action)).Inc()
}

func (m *Metrics) derived(n int) {
	if m == nil {
		return
	}
	m.derivations.Add(float64(n))
}

func (m *Metrics) budgetRecalc(status string, b domain.Budget) {
	if m == nil {
		return
	}
	m.budgetRecalcs.WithLabelValues(status).Inc()
	if status == "error" {
		return
	}
	s := b.Summary()
	m.budgetUsed.Set(asFloat(s.Used))
	m.budgetRemaining.Set(asFloat(s.Remaining))
}

func (m *Metrics) delivered(c domain.Collection) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(string(c)).Inc()
}

func (m *Metrics) stale() {
	if m == nil {
		return
	}
	m.staleRefreshes.Inc()
}

func asFloat(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
