// Package metrics holds the Prometheus collectors exported while the
// enrichment workers run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "genome_browser"

// Metrics groups the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Improvements     *prometheus.CounterVec
	WikiPages        *prometheus.CounterVec
	OracleCalls      *prometheus.CounterVec
	DiscoveryCycles  prometheus.Counter
	DiscoveryQueued  prometheus.Counter
	DiscoveryDropped prometheus.Counter
	DiscoveryMatched prometheus.Counter
	QueueSize        prometheus.Gauge
	ExploredSize     prometheus.Gauge
}

// New creates the collectors and registers them with reg. reg may be nil,
// in which case the collectors are created but not exported.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Improvements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "improvements_total",
			Help:      "SNP improvement attempts by outcome.",
		}, []string{"outcome"}),
		WikiPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wiki_pages_fetched_total",
			Help:      "Wiki pages fetched over the network by kind.",
		}, []string{"kind"}),
		OracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "oracle_calls_total",
			Help:      "Oracle requests by purpose and result.",
		}, []string{"purpose", "result"}),
		DiscoveryCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "cycles_total",
			Help:      "Discovery loop cycles run.",
		}),
		DiscoveryQueued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "discovered_total",
			Help:      "SNPs added to the discovery queue.",
		}),
		DiscoveryDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "dropped_total",
			Help:      "SNPs not queued because the queue was full.",
		}),
		DiscoveryMatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "matched_total",
			Help:      "Related SNPs found in the user's genome.",
		}),
		QueueSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "queue_size",
			Help:      "Current discovery queue length.",
		}),
		ExploredSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "explored_size",
			Help:      "Number of SNPs explored in this session.",
		}),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{
		m.Improvements, m.WikiPages, m.OracleCalls,
		m.DiscoveryCycles, m.DiscoveryQueued, m.DiscoveryDropped, m.DiscoveryMatched,
		m.QueueSize, m.ExploredSize,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Improvement counts one improvement outcome.
func (m *Metrics) Improvement(outcome string) {
	if m == nil {
		return
	}
	m.Improvements.WithLabelValues(outcome).Inc()
}

// WikiPage counts one page fetched over the network.
func (m *Metrics) WikiPage(kind string) {
	if m == nil {
		return
	}
	m.WikiPages.WithLabelValues(kind).Inc()
}

// OracleCall counts one oracle request.
func (m *Metrics) OracleCall(purpose string, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.OracleCalls.WithLabelValues(purpose, result).Inc()
}

// Cycle counts one discovery cycle.
func (m *Metrics) Cycle() {
	if m == nil {
		return
	}
	m.DiscoveryCycles.Inc()
}

// Queued counts SNPs added to and dropped from the discovery queue.
func (m *Metrics) Queued(added, dropped int) {
	if m == nil {
		return
	}
	m.DiscoveryQueued.Add(float64(added))
	m.DiscoveryDropped.Add(float64(dropped))
}

// Matched counts one related SNP found in the genome.
func (m *Metrics) Matched() {
	if m == nil {
		return
	}
	m.DiscoveryMatched.Inc()
}

// Sizes records the queue and explored-set sizes.
func (m *Metrics) Sizes(queue, explored int) {
	if m == nil {
		return
	}
	m.QueueSize.Set(float64(queue))
	m.ExploredSize.Set(float64(explored))
}
