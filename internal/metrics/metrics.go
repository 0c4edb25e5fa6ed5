package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"remindbot/internal/eventbus"
	"remindbot/internal/reminder"
)

const namespace = "remindbot"

// Metrics holds the collectors for one process. Each instance owns its
// registry so tests can build as many as they like.
type Metrics struct {
	reg *prometheus.Registry

	sent          *prometheus.CounterVec
	failed        *prometheus.CounterVec
	trialsExpired prometheus.Counter
	ticks         prometheus.Counter
	tickDuration  prometheus.Histogram
	dedupEntries  prometheus.Gauge

	mu       sync.Mutex
	started  time.Time
	lastTick time.Time
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		sent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_sent_total",
			Help:      "Reminders delivered, by trigger kind.",
		}, []string{"kind"}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_failed_total",
			Help:      "Reminder sends that failed, by trigger kind.",
		}, []string{"kind"}),
		trialsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trials_expired_total",
			Help:      "Trials flagged expired by the sweep.",
		}),
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ticks_total",
			Help:      "Completed scheduler ticks.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tick_duration_seconds",
			Help:      "Wall time of one scheduler tick.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		dedupEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dedup_entries",
			Help:      "Entries in the in-memory dedup set after the last tick.",
		}),
		started: time.Now(),
	}
	m.reg.MustRegister(
		m.sent, m.failed, m.trialsExpired, m.ticks, m.tickDuration, m.dedupEntries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Observe updates collectors from one bus event. Unknown events are ignored.
func (m *Metrics) Observe(e eventbus.Event) {
	switch e.Type {
	case reminder.EventSent:
		if d, ok := e.Data.(reminder.Delivery); ok {
			m.sent.WithLabelValues(string(d.Kind)).Inc()
		}
	case reminder.EventFailed:
		if d, ok := e.Data.(reminder.Delivery); ok {
			m.failed.WithLabelValues(string(d.Kind)).Inc()
		}
	case reminder.EventTickDone:
		rep, ok := e.Data.(reminder.TickReport)
		if !ok {
			return
		}
		m.ticks.Inc()
		m.trialsExpired.Add(float64(rep.Expired))
		m.tickDuration.Observe(rep.Duration.Seconds())
		m.dedupEntries.Set(float64(rep.DedupEntries))
		m.mu.Lock()
		m.lastTick = e.Time
		m.mu.Unlock()
	}
}

// Run feeds bus events into the collectors until ctx ends.
func (m *Metrics) Run(ctx context.Context, bus eventbus.Bus) {
	events, unsub := bus.Subscribe(256, reminder.EventSent, reminder.EventFailed, reminder.EventTickDone)
	defer unsub()
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-events:
			if !ok {
				return
			}
			m.Observe(e)
		}
	}
}

// Healthy reports whether a tick completed within maxAge, and when the last
// one did. Before the first tick the process start time is used.
func (m *Metrics) Healthy(now time.Time, maxAge time.Duration) (bool, time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ref := m.lastTick
	if ref.IsZero() {
		ref = m.started
	}
	return now.Sub(ref) <= maxAge, m.lastTick
}
