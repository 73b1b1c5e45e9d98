// Package metrics exports replay measurements as Prometheus metrics.
//
// Metrics (all namespaced with "conform_"):
//
//	traces_total{outcome}            replayed distinct traces
//	trace_instances_total{outcome}   replayed traces weighted by multiplicity
//	trace_duration_seconds           wall time per distinct trace
//	cache_lookups_total{result}      replay cache hits and misses
//	search_nodes_total               candidate and join attempts spent
//	search_depth                     deepest frame stack per trace
//
// A Prometheus value is safe for concurrent use.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/conform/internal/replay"
)

const namespace = "conform"

// Prometheus implements replay.Recorder.
type Prometheus struct {
	traces       *prometheus.CounterVec
	instances    *prometheus.CounterVec
	duration     prometheus.Histogram
	cacheLookups *prometheus.CounterVec
	searchNodes  prometheus.Counter
	searchDepth  prometheus.Histogram
}

var _ replay.Recorder = (*Prometheus)(nil)

// NewPrometheus registers the replay metrics with reg.
// A nil reg registers with prometheus.DefaultRegisterer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Prometheus{
		traces: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "traces_total",
			Help:      "Distinct traces replayed, by outcome",
		}, []string{"outcome"}),
		instances: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trace_instances_total",
			Help:      "Trace instances replayed (weighted by multiplicity), by outcome",
		}, []string{"outcome"}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "trace_duration_seconds",
			Help:      "Wall time spent replaying one distinct trace",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}),
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Replay cache lookups, by result (hit or miss)",
		}, []string{"result"}),
		searchNodes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_nodes_total",
			Help:      "Candidate path and join attempts spent by the search",
		}),
		searchDepth: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_depth",
			Help:      "Deepest frame stack reached per trace",
			Buckets:   []float64{1, 2, 5, 10, 20, 50, 100, 200, 500},
		}),
	}
}

func (p *Prometheus) TraceReplayed(outcome replay.Outcome, instances int64, elapsed time.Duration) {
	p.traces.WithLabelValues(string(outcome)).Inc()
	p.instances.WithLabelValues(string(outcome)).Add(float64(instances))
	p.duration.Observe(elapsed.Seconds())
}

func (p *Prometheus) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}

func (p *Prometheus) SearchFinished(nodes, depth int) {
	p.searchNodes.Add(float64(nodes))
	p.searchDepth.Observe(float64(depth))
}

// WriteTextfile writes every metric gathered from g to path in the text
// exposition format, for the node exporter textfile collector.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics to %s: %w", path, err)
	}
	return nil
}
