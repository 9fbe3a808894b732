package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/san-kum/mindstone/internal/loop"
)

// Prometheus exports tick reports as Prometheus series. It is meant to be
// attached to a session as an observer.
type Prometheus struct {
	ticks        prometheus.Counter
	faults       *prometheus.CounterVec
	adaptations  prometheus.Counter
	fallbacks    prometheus.Counter
	tickDuration prometheus.Histogram
	absError     prometheus.Gauge
	params       *prometheus.GaugeVec
}

// NewPrometheus registers the session collectors with reg. A nil reg uses
// the default registerer.
func NewPrometheus(reg prometheus.Registerer, sessionID string) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	labels := prometheus.Labels{"session": sessionID}

	return &Prometheus{
		ticks: f.NewCounter(prometheus.CounterOpts{
			Name:        "mindstone_ticks_total",
			Help:        "Ticks that emitted an output",
			ConstLabels: labels,
		}),
		faults: f.NewCounterVec(prometheus.CounterOpts{
			Name:        "mindstone_faults_total",
			Help:        "Recorded faults by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		adaptations: f.NewCounter(prometheus.CounterOpts{
			Name:        "mindstone_adaptations_total",
			Help:        "Committed parameter updates",
			ConstLabels: labels,
		}),
		fallbacks: f.NewCounter(prometheus.CounterOpts{
			Name:        "mindstone_fallbacks_total",
			Help:        "Outputs produced by the fallback policy",
			ConstLabels: labels,
		}),
		tickDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:        "mindstone_tick_duration_seconds",
			Help:        "Wall time spent inside a tick",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.00001, 2, 16),
		}),
		absError: f.NewGauge(prometheus.GaugeOpts{
			Name:        "mindstone_abs_error",
			Help:        "Norm of the latest attributed residual",
			ConstLabels: labels,
		}),
		params: f.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "mindstone_param",
			Help:        "Current model parameter values",
			ConstLabels: labels,
		}, []string{"name"}),
	}
}

func (p *Prometheus) OnTick(r loop.TickReport) {
	p.tickDuration.Observe(r.Duration.Seconds())
	if r.HasOutput {
		p.ticks.Inc()
	}
	for _, f := range r.Faults {
		p.faults.WithLabelValues(string(f.Kind)).Inc()
	}
	if r.Adaptation != nil {
		p.adaptations.Inc()
	}
	if r.Fallback {
		p.fallbacks.Inc()
	}
	if r.Residual != nil {
		p.absError.Set(r.Residual.Norm())
	}
	for name, v := range r.Params {
		p.params.WithLabelValues(name).Set(v)
	}
}
