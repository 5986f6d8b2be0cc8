// Package prom reports formstate controller metrics to Prometheus.
package prom

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/zoobzio/formstate"
)

// Provider implements formstate.MetricsProvider with Prometheus collectors.
type Provider struct {
	changes     prometheus.Counter
	fields      prometheus.Counter
	saves       *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	eligibility *prometheus.CounterVec
	busy        prometheus.Gauge
}

// Option configures a Provider.
type Option func(*options)

type options struct {
	namespace   string
	constLabels prometheus.Labels
	buckets     []float64
}

// WithNamespace sets the metric namespace. Defaults to "formstate".
func WithNamespace(ns string) Option {
	return func(o *options) {
		o.namespace = ns
	}
}

// WithConstLabels attaches constant labels, typically the form name.
func WithConstLabels(labels prometheus.Labels) Option {
	return func(o *options) {
		o.constLabels = labels
	}
}

// WithBuckets sets the save duration histogram buckets in seconds.
func WithBuckets(buckets []float64) Option {
	return func(o *options) {
		o.buckets = buckets
	}
}

// New creates a Provider and registers its collectors with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func New(reg prometheus.Registerer, opts ...Option) (*Provider, error) {
	o := options{
		namespace: "formstate",
		buckets:   prometheus.DefBuckets,
	}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Provider{
		changes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "change_batches_total",
			Help:        "Number of change batches applied to the record.",
			ConstLabels: o.constLabels,
		}),
		fields: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "fields_changed_total",
			Help:        "Number of distinct fields touched across change batches.",
			ConstLabels: o.constLabels,
		}),
		saves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "saves_total",
			Help:        "Number of save invocations by outcome.",
			ConstLabels: o.constLabels,
		}, []string{"outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   o.namespace,
			Name:        "save_duration_seconds",
			Help:        "Duration of save invocations by outcome.",
			ConstLabels: o.constLabels,
			Buckets:     o.buckets,
		}, []string{"outcome"}),
		eligibility: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   o.namespace,
			Name:        "eligibility_transitions_total",
			Help:        "Number of save eligibility transitions.",
			ConstLabels: o.constLabels,
		}, []string{"from", "to"}),
		busy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   o.namespace,
			Name:        "saving",
			Help:        "1 while a save invocation is in flight.",
			ConstLabels: o.constLabels,
		}),
	}

	for _, c := range []prometheus.Collector{p.changes, p.fields, p.saves, p.duration, p.eligibility, p.busy} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// OnStateChange tracks the in-flight gauge.
func (p *Provider) OnStateChange(_, to formstate.State) {
	if to == formstate.StateSaving {
		p.busy.Set(1)
		return
	}
	p.busy.Set(0)
}

func (p *Provider) OnEligibilityChange(from, to formstate.Eligibility) {
	p.eligibility.WithLabelValues(from.String(), to.String()).Inc()
}

func (p *Provider) OnChangeApplied(fields int) {
	p.changes.Inc()
	p.fields.Add(float64(fields))
}

func (p *Provider) OnSaveSuccess(d time.Duration) {
	p.saves.WithLabelValues("success").Inc()
	p.duration.WithLabelValues("success").Observe(d.Seconds())
}

func (p *Provider) OnSaveFailure(d time.Duration) {
	p.saves.WithLabelValues("failure").Inc()
	p.duration.WithLabelValues("failure").Observe(d.Seconds())
}

var _ formstate.MetricsProvider = (*Provider)(nil)
