// Package metrics exposes the Prometheus counters of the period analyzer.
package metrics

import (
	"Go2NetPeriod/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters updated while loading logs and analyzing periods.
type Metrics struct {
	RecordsLoaded    prometheus.Counter
	PeriodsAnalyzed  prometheus.Counter
	GroupsReported   *prometheus.CounterVec
	GroupsNegligible *prometheus.CounterVec
	PortPairMisses   prometheus.Counter
}

// New creates the counters and registers them on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		RecordsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "records_loaded_total",
			Help: "Total number of packet records loaded from capture logs",
		}),
		PeriodsAnalyzed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "periods_analyzed_total",
			Help: "Total number of labeled periods analyzed",
		}),
		GroupsReported: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groups_reported_total",
			Help: "Total number of peer groups written to a report",
		}, []string{"direction"}),
		GroupsNegligible: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "groups_negligible_total",
			Help: "Total number of peer groups dropped as negligible",
		}, []string{"direction"}),
		PortPairMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "port_pair_misses_total",
			Help: "Total number of grouped records whose info text carried no port pair",
		}),
	}
	if reg == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{m.RecordsLoaded, m.PeriodsAnalyzed, m.GroupsReported, m.GroupsNegligible, m.PortPairMisses} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Reported counts n groups written for dir.
func (m *Metrics) Reported(dir model.Direction, n int) {
	if m == nil {
		return
	}
	m.GroupsReported.WithLabelValues(dir.String()).Add(float64(n))
}

// Negligible counts n groups dropped for dir.
func (m *Metrics) Negligible(dir model.Direction, n int) {
	if m == nil {
		return
	}
	m.GroupsNegligible.WithLabelValues(dir.String()).Add(float64(n))
}

// Loaded counts n loaded records.
func (m *Metrics) Loaded(n int) {
	if m == nil {
		return
	}
	m.RecordsLoaded.Add(float64(n))
}

// Period counts one analyzed period.
func (m *Metrics) Period() {
	if m == nil {
		return
	}
	m.PeriodsAnalyzed.Inc()
}

// Misses counts n records without a port pair.
func (m *Metrics) Misses(n int) {
	if m == nil {
		return
	}
	m.PortPairMisses.Add(float64(n))
}
