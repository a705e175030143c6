package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "starlane"

// Multiplier reports the active time multiplier.
type Multiplier interface {
	Multiplier() float64
}

// Metrics holds the process collectors. A nil *Metrics records nothing.
type Metrics struct {
	cacheMisses   *prometheus.CounterVec
	cached        *prometheus.GaugeVec
	flushed       *prometheus.CounterVec
	flushDuration *prometheus.HistogramVec

	battlesStarted prometheus.Counter
	battlesEnded   prometheus.Counter
	shots          *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer, mult Multiplier) *Metrics {
	m := &Metrics{
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Entities loaded from the store on a cache miss.",
		}, []string{"family"}),
		cached: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entities",
			Help:      "Entities currently held in memory.",
		}, []string{"family"}),
		flushed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "flushed_total",
			Help:      "Entity writes and deletes attempted by flushes.",
		}, []string{"family", "result"}),
		flushDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "flush_duration_seconds",
			Help:      "Time spent flushing one cache.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"family"}),
		battlesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "combat",
			Name:      "battles_started_total",
			Help:      "Battles started.",
		}),
		battlesEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "combat",
			Name:      "battles_ended_total",
			Help:      "Battles resolved.",
		}),
		shots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "combat",
			Name:      "shots_total",
			Help:      "Weapon shots fired.",
		}, []string{"result"}),
	}

	reg.MustRegister(m.cacheMisses, m.cached, m.flushed, m.flushDuration,
		m.battlesStarted, m.battlesEnded, m.shots)

	if mult != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "time_multiplier",
			Help:      "The active time multiplier.",
		}, mult.Multiplier))
	}

	return m
}

func (m *Metrics) CacheMiss(family string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(family).Inc()
}

func (m *Metrics) Cached(family string, n int) {
	if m == nil {
		return
	}
	m.cached.WithLabelValues(family).Set(float64(n))
}

func (m *Metrics) Flushed(family string, written, failed int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.flushed.WithLabelValues(family, "ok").Add(float64(written))
	m.flushed.WithLabelValues(family, "failed").Add(float64(failed))
	m.flushDuration.WithLabelValues(family).Observe(elapsed.Seconds())
}

func (m *Metrics) BattleStarted() {
	if m == nil {
		return
	}
	m.battlesStarted.Inc()
}

func (m *Metrics) BattleEnded() {
	if m == nil {
		return
	}
	m.battlesEnded.Inc()
}

func (m *Metrics) ShotsFired(shots, hits int) {
	if m == nil {
		return
	}
	m.shots.WithLabelValues("hit").Add(float64(hits))
	m.shots.WithLabelValues("miss").Add(float64(shots - hits))
}
