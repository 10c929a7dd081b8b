package metrics

import "github.com/prometheus/client_golang/prometheus"

// MachineMetrics exposes counters/histograms for the state machine runtime.
type MachineMetrics struct {
	eventsTotal    *prometheus.CounterVec
	effectDuration *prometheus.HistogramVec
	effectFailures *prometheus.CounterVec
	staleResults   *prometheus.CounterVec
}

func NewMachineMetrics(reg prometheus.Registerer) *MachineMetrics {
	m := &MachineMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnos",
			Subsystem: "machine",
			Name:      "events_total",
			Help:      "Total events handled per machine",
		}, []string{"machine", "event"}),
		effectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "turnos",
			Subsystem: "machine",
			Name:      "effect_duration_seconds",
			Help:      "Duration of invoked effects",
			Buckets:   prometheus.DefBuckets,
		}, []string{"machine", "effect"}),
		effectFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnos",
			Subsystem: "machine",
			Name:      "effect_failures_total",
			Help:      "Total invoked effects that resolved with an error",
		}, []string{"machine", "effect"}),
		staleResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "turnos",
			Subsystem: "machine",
			Name:      "stale_results_total",
			Help:      "Effect completions discarded because their epoch expired",
		}, []string{"machine", "effect"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.eventsTotal, m.effectDuration, m.effectFailures, m.staleResults)
	return m
}

func (m *MachineMetrics) ObserveEvent(machine, event string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(machine, event).Inc()
}

func (m *MachineMetrics) ObserveEffect(machine, effect string, seconds float64) {
	if m == nil {
		return
	}
	m.effectDuration.WithLabelValues(machine, effect).Observe(seconds)
}

func (m *MachineMetrics) ObserveEffectFailure(machine, effect string) {
	if m == nil {
		return
	}
	m.effectFailures.WithLabelValues(machine, effect).Inc()
}

func (m *MachineMetrics) ObserveStaleResult(machine, effect string) {
	if m == nil {
		return
	}
	m.staleResults.WithLabelValues(machine, effect).Inc()
}
