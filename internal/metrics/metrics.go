// Package metrics exposes session health, assembly and compaction as
// Prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/lazypower/memorylayer/internal/health"
)

const namespace = "memorylayer"

var levels = []health.Level{health.LevelGood, health.LevelWarning, health.LevelCritical}

// Metrics holds every collector. A nil *Metrics is valid and records nothing.
type Metrics struct {
	tokensUsed    prometheus.Gauge
	tokenLimit    prometheus.Gauge
	utilization   prometheus.Gauge
	driftScore    prometheus.Gauge
	criticalItems prometheus.Gauge
	healthLevel   *prometheus.GaugeVec

	assemblies       prometheus.Counter
	assemblyTokens   prometheus.Histogram
	assemblyDuration prometheus.Histogram

	compactions *prometheus.CounterVec
	tokensSaved prometheus.Counter
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tokensUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "session_tokens_used",
			Help: "Tokens currently tracked in the session.",
		}),
		tokenLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "session_token_limit",
			Help: "Session token ceiling used for health scoring.",
		}),
		utilization: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "session_utilization_percent",
			Help: "Session token utilization, 0-100.",
		}),
		driftScore: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "session_drift_score",
			Help: "Last drift score, 0-1.",
		}),
		criticalItems: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "critical_context_items",
			Help: "Number of critical context items.",
		}),
		healthLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "session_health",
			Help: "1 for the current health level, 0 otherwise.",
		}, []string{"level"}),
		assemblies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "assemblies_total",
			Help: "Context documents assembled.",
		}),
		assemblyTokens: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "assembly_tokens",
			Help:    "Token count of assembled context documents.",
			Buckets: prometheus.ExponentialBuckets(250, 2, 8),
		}),
		assemblyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "assembly_duration_seconds",
			Help:    "Time spent assembling context.",
			Buckets: prometheus.DefBuckets,
		}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "compactions_total",
			Help: "Compaction runs by strategy and outcome.",
		}, []string{"strategy", "success"}),
		tokensSaved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "compaction_tokens_saved_total",
			Help: "Tokens freed by compaction.",
		}),
	}
	reg.MustRegister(
		m.tokensUsed, m.tokenLimit, m.utilization, m.driftScore, m.criticalItems, m.healthLevel,
		m.assemblies, m.assemblyTokens, m.assemblyDuration,
		m.compactions, m.tokensSaved,
	)
	return m
}

// ObserveHealth publishes a health snapshot.
func (m *Metrics) ObserveHealth(h health.ContextHealth) {
	if m == nil {
		return
	}
	m.tokensUsed.Set(float64(h.TokensUsed))
	m.tokenLimit.Set(float64(h.TokensLimit))
	m.utilization.Set(h.UtilizationPercent)
	m.driftScore.Set(h.DriftScore)
	m.criticalItems.Set(float64(h.CriticalContextCount))
	for _, l := range levels {
		v := 0.0
		if l == h.Health {
			v = 1
		}
		m.healthLevel.WithLabelValues(string(l)).Set(v)
	}
}

func (m *Metrics) ObserveAssembly(tokens int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.assemblies.Inc()
	m.assemblyTokens.Observe(float64(tokens))
	m.assemblyDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveCompaction(r health.CompactionResult) {
	if m == nil {
		return
	}
	strategy := string(r.Strategy)
	if strategy == "" {
		strategy = "none"
	}
	m.compactions.WithLabelValues(strategy, strconv.FormatBool(r.Success)).Inc()
	if r.TokensSaved > 0 {
		m.tokensSaved.Add(float64(r.TokensSaved))
	}
}
