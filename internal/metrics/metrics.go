// Package metrics exports predictor activity as Prometheus series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/danielpatrickdp/robo-predictor/internal/predictor"
)

// #region recorder
// Recorder receives predictor events.
type Recorder interface {
	Prediction(rule predictor.Rule)
	Observation(actual predictor.Outcome, hit *bool)
	Eviction(table predictor.Table)
	SessionOpened()
	SessionClosed()
}

// Nop discards every event.
type Nop struct{}

func (Nop) Prediction(predictor.Rule) {}
func (Nop) Observation(predictor.Outcome, *bool) {}
func (Nop) Eviction(predictor.Table) {}
func (Nop) SessionOpened() {}
func (Nop) SessionClosed() {}

// #endregion recorder

// #region prometheus
// Prometheus records events into a registry.
type Prometheus struct {
	registry *prometheus.Registry

	predictions  *prometheus.CounterVec
	observations *prometheus.CounterVec
	hits         prometheus.Counter
	misses       prometheus.Counter
	evictions    *prometheus.CounterVec
	sessions     prometheus.Gauge
}

// NewPrometheus registers the robo series on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Prometheus{
		registry: reg,
		predictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "robo_predictions_total",
			Help: "Predictions made, by deciding rule",
		}, []string{"rule"}),
		observations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "robo_observations_total",
			Help: "Observed outcomes, by time of day",
		}, []string{"outcome"}),
		hits: f.NewCounter(prometheus.CounterOpts{
			Name: "robo_prediction_hits_total",
			Help: "Observations that matched the pending prediction",
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Name: "robo_prediction_misses_total",
			Help: "Observations that contradicted the pending prediction",
		}),
		evictions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "robo_evictions_total",
			Help: "Entries dropped by the capacity policy, by table",
		}, []string{"table"}),
		sessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "robo_sessions_active",
			Help: "Open predictor sessions",
		}),
	}
}

func (p *Prometheus) Prediction(rule predictor.Rule) {
	p.predictions.WithLabelValues(string(rule)).Inc()
}

// Observation counts the outcome; hit is nil when no prediction was pending.
func (p *Prometheus) Observation(actual predictor.Outcome, hit *bool) {
	p.observations.WithLabelValues(actual.String()).Inc()
	if hit == nil {
		return
	}
	if *hit {
		p.hits.Inc()
	} else {
		p.misses.Inc()
	}
}

func (p *Prometheus) Eviction(table predictor.Table) {
	p.evictions.WithLabelValues(string(table)).Inc()
}

func (p *Prometheus) SessionOpened() { p.sessions.Inc() }
func (p *Prometheus) SessionClosed() { p.sessions.Dec() }

// Registry exposes the underlying registry.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// #endregion prometheus
