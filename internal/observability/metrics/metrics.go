// Package metrics exposes editor and router activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"editbot/internal/editor"
	"editbot/internal/eventbus"
	"editbot/internal/transport"
)

const namespace = "editbot"

// Metrics owns a private registry so tests and multiple instances do not
// collide on the global one.
type Metrics struct {
	reg *prometheus.Registry

	updates    *prometheus.CounterVec
	responds   *prometheus.CounterVec
	respondDur prometheus.Histogram
	affordance *prometheus.CounterVec
	waited     prometheus.Histogram
	evicted    prometheus.Counter
}

// Sources are polled at scrape time. Nil fields are skipped.
type Sources struct {
	Editor *editor.Service
	Bus    eventbus.Bus
	// Dropped reports updates the transport could not deliver.
	Dropped func() uint64
}

func New(src Sources) *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "updates_total",
			Help: "Updates received from the transport, by kind.",
		}, []string{"kind"}),
		responds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "editor", Name: "responses_total",
			Help: "Respond calls by outcome (sent, edited, resent, unsaved, denied, failed).",
		}, []string{"outcome"}),
		respondDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "editor", Name: "respond_seconds",
			Help:    "Time spent in Respond, transport calls included.",
			Buckets: prometheus.ExponentialBuckets(0.025, 2, 9),
		}),
		affordance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "editor", Name: "affordances_total",
			Help: "Finished delete affordances by kind and final state.",
		}, []string{"kind", "state"}),
		waited: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "editor", Name: "affordance_wait_seconds",
			Help:    "How long delete affordances stayed attached.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}),
		evicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "editor", Name: "cache_evictions_total",
			Help: "Response cache entries trimmed by the size bound.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.updates, m.responds, m.respondDur, m.affordance, m.waited, m.evicted,
	)

	if svc := src.Editor; svc != nil {
		m.reg.MustRegister(
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "editor", Name: "cache_entries",
				Help: "Responses currently cached.",
			}, func() float64 { return float64(svc.Cache().Len()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "editor", Name: "cache_capacity",
				Help: "Configured response cache bound.",
			}, func() float64 { return float64(svc.Cache().Capacity()) }),
			prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: namespace, Subsystem: "editor", Name: "affordance_watches",
				Help: "Delete affordances waiting for a trigger.",
			}, func() float64 { return float64(svc.Watching()) }),
		)
	}
	if bus := src.Bus; bus != nil {
		m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "eventbus", Name: "dropped_total",
			Help: "Event deliveries skipped because a subscriber was full.",
		}, func() float64 { return float64(bus.Dropped()) }))
	}
	if fn := src.Dropped; fn != nil {
		m.reg.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "transport", Name: "dropped_updates_total",
			Help: "Updates dropped because the dispatcher was not keeping up.",
		}, func() float64 { return float64(fn()) }))
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

// ObserveUpdate counts an incoming update. It never consumes the update and
// can be installed as a router interceptor.
func (m *Metrics) ObserveUpdate(_ context.Context, u transport.Update) bool {
	m.updates.WithLabelValues(string(u.Kind)).Inc()
	return false
}

// Run folds editor events from bus into the metrics until ctx ends.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) {
	ch, unsub := bus.Subscribe(256, editor.EventResponded, editor.EventAffordance, editor.EventEvicted)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			m.observe(ev)
		}
	}
}

func (m *Metrics) observe(ev eventbus.Event) {
	switch d := ev.Data.(type) {
	case editor.RespondEvent:
		m.responds.WithLabelValues(d.Outcome).Inc()
		m.respondDur.Observe(d.Took.Seconds())
	case editor.AffordanceEvent:
		m.affordance.WithLabelValues(d.Kind.String(), d.State.String()).Inc()
		m.waited.Observe(d.Waited.Seconds())
	case int:
		if ev.Type == editor.EventEvicted && d > 0 {
			m.evicted.Add(float64(d))
		}
	}
}
