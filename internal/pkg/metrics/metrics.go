// Package metrics exposes workflow counters to Prometheus. A nil *Recorder
// records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "exchange"

// Recorder groups the workflow collectors
type Recorder struct {
	registry *prometheus.Registry

	postTransitions  *prometheus.CounterVec
	matchTransitions *prometheus.CounterVec
	cascadeFailures  *prometheus.CounterVec
	cascadeDuration  *prometheus.HistogramVec
	messages         *prometheus.CounterVec
	moderation       *prometheus.CounterVec
}

// NewRecorder registers the collectors on a private registry
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		postTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_transitions_total",
			Help:      "Post status changes by variant and target status.",
		}, []string{"variant", "from", "to"}),
		matchTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_transitions_total",
			Help:      "Match status changes by variant and target status.",
		}, []string{"variant", "from", "to"}),
		cascadeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_failures_total",
			Help:      "Transactional cascades rolled back because of a store error.",
		}, []string{"operation"}),
		cascadeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cascade_duration_seconds",
			Help:      "Duration of transactional cascades.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "Thread messages appended by kind.",
		}, []string{"kind"}),
		moderation: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_actions_total",
			Help:      "Moderation actions applied by type.",
		}, []string{"action"}),
	}
	r.registry.MustRegister(
		r.postTransitions,
		r.matchTransitions,
		r.cascadeFailures,
		r.cascadeDuration,
		r.messages,
		r.moderation,
		collectors.NewGoCollector(),
	)
	return r
}

// Registry is the gatherer backing Handler
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// PostTransition counts a post status change
func (r *Recorder) PostTransition(variant, from, to string) {
	if r == nil {
		return
	}
	r.postTransitions.WithLabelValues(variant, from, to).Inc()
}

// MatchTransition counts a match status change
func (r *Recorder) MatchTransition(variant, from, to string) {
	if r == nil {
		return
	}
	r.matchTransitions.WithLabelValues(variant, from, to).Inc()
}

// Cascade observes a finished cascade; failed marks a rolled-back store error
func (r *Recorder) Cascade(operation string, started time.Time, failed bool) {
	if r == nil {
		return
	}
	r.cascadeDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if failed {
		r.cascadeFailures.WithLabelValues(operation).Inc()
	}
}

// Message counts an appended thread message
func (r *Recorder) Message(kind string) {
	if r == nil {
		return
	}
	r.messages.WithLabelValues(kind).Inc()
}

// Moderation counts an applied moderation action
func (r *Recorder) Moderation(action string) {
	if r == nil {
		return
	}
	r.moderation.WithLabelValues(action).Inc()
}
