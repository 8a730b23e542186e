package observability

import (
	"fmt"
	"math"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type moduleMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	moduleMetricsOnce sync.Once
	moduleRegistry    *moduleMetrics

	routerMetricsOnce sync.Once
	routerRegistry    *RouterMetrics

	rewardsMetricsOnce sync.Once
	rewardsRegistry    *RewardsMetrics
)

// ModuleMetrics returns the lazily-initialised module metrics registry used to
// record RPC module activity.
func ModuleMetrics() *moduleMetrics {
	moduleMetricsOnce.Do(func() {
		moduleRegistry = &moduleMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "prism",
				Subsystem: "module",
				Name:      "requests_total",
				Help:      "Total JSON-RPC module requests segmented by module and method.",
			}, []string{"module", "method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "prism",
				Subsystem: "module",
				Name:      "errors_total",
				Help:      "Total JSON-RPC module errors segmented by module, method, and status code.",
			}, []string{"module", "method", "status"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "prism",
				Subsystem: "module",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC module handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"module", "method"}),
		}
		prometheus.MustRegister(
			moduleRegistry.requests,
			moduleRegistry.errors,
			moduleRegistry.latency,
		)
	})
	return moduleRegistry
}

// Observe records the outcome of a module request. The status code should be
// the HTTP status that was ultimately written to the response writer.
func (m *moduleMetrics) Observe(module, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	if module == "" {
		module = "unknown"
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if status >= 400 {
		outcome = "error"
	}
	m.requests.WithLabelValues(module, method, outcome).Inc()
	if status >= 400 {
		m.errors.WithLabelValues(module, method, fmt.Sprintf("%d", status)).Inc()
	}
	m.latency.WithLabelValues(module, method).Observe(duration.Seconds())
}

// RouterMetrics bundles collectors tracking routed operation traffic.
type RouterMetrics struct {
	operations *prometheus.CounterVec
	rejections *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	paused     prometheus.Gauge
	nonce      prometheus.Gauge
}

// Router exposes the metrics registry for the operation router.
func Router() *RouterMetrics {
	routerMetricsOnce.Do(func() {
		routerRegistry = &RouterMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "prism",
				Subsystem: "router",
				Name:      "operations_total",
				Help:      "Count of routed operations segmented by role and outcome.",
			}, []string{"role", "outcome"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "prism",
				Subsystem: "router",
				Name:      "rejections_total",
				Help:      "Count of operations rejected before reaching a logic actor, segmented by reason.",
			}, []string{"role", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "prism",
				Subsystem: "router",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution for routed operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"role"}),
			paused: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "prism",
				Subsystem: "router",
				Name:      "pause_engaged",
				Help:      "Indicates whether the router pause guard is active (1) or not (0).",
			}),
			nonce: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "prism",
				Subsystem: "router",
				Name:      "context_nonce",
				Help:      "Highest operation nonce minted by the router.",
			}),
		}
		prometheus.MustRegister(
			routerRegistry.operations,
			routerRegistry.rejections,
			routerRegistry.latency,
			routerRegistry.paused,
			routerRegistry.nonce,
		)
	})
	return routerRegistry
}

// ObserveOperation records a routed operation and its execution latency.
func (m *RouterMetrics) ObserveOperation(role string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.operations.WithLabelValues(labelRole(role), outcome).Inc()
	m.latency.WithLabelValues(labelRole(role)).Observe(d.Seconds())
}

// RecordRejection increments the rejection counter for the supplied reason.
// Reasons should be stable strings such as "paused" or "inactive_route" so
// dashboards and alerts remain consistent.
func (m *RouterMetrics) RecordRejection(role, reason string) {
	if m == nil {
		return
	}
	if reason = strings.TrimSpace(reason); reason == "" {
		reason = "unspecified"
	}
	m.rejections.WithLabelValues(labelRole(role), reason).Inc()
}

// SetPause toggles the pause_engaged gauge.
func (m *RouterMetrics) SetPause(engaged bool) {
	if m == nil {
		return
	}
	if engaged {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

// SetNonce publishes the latest minted context nonce.
func (m *RouterMetrics) SetNonce(nonce uint64) {
	if m == nil {
		return
	}
	m.nonce.Set(float64(nonce))
}

// RewardsMetrics wraps collectors tracking storage core aggregates.
type RewardsMetrics struct {
	merchantVolume prometheus.Gauge
	rewardPool     prometheus.Gauge
	sessionVolume  *prometheus.GaugeVec
}

// Rewards exposes the metrics registry for the rewards storage core.
func Rewards() *RewardsMetrics {
	rewardsMetricsOnce.Do(func() {
		rewardsRegistry = &RewardsMetrics{
			merchantVolume: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "prism",
				Subsystem: "rewards",
				Name:      "merchant_volume",
				Help:      "Cumulative merchant payment volume in base units.",
			}),
			rewardPool: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "prism",
				Subsystem: "rewards",
				Name:      "reward_pool",
				Help:      "Current accumulative reward pool balance in base units.",
			}),
			sessionVolume: prometheus.NewGaugeVec(prometheus.GaugeOpts{
				Namespace: "prism",
				Subsystem: "rewards",
				Name:      "session_volume",
				Help:      "Recorded volume for a processed session.",
			}, []string{"session"}),
		}
		prometheus.MustRegister(
			rewardsRegistry.merchantVolume,
			rewardsRegistry.rewardPool,
			rewardsRegistry.sessionVolume,
		)
	})
	return rewardsRegistry
}

// RecordAggregates publishes the latest storage core totals.
func (m *RewardsMetrics) RecordAggregates(merchantVolume, rewardPool *big.Int) {
	if m == nil {
		return
	}
	m.merchantVolume.Set(bigToFloat(merchantVolume))
	m.rewardPool.Set(bigToFloat(rewardPool))
}

// RecordSessionVolume publishes the volume recorded for a session.
func (m *RewardsMetrics) RecordSessionVolume(session uint64, volume *big.Int) {
	if m == nil {
		return
	}
	m.sessionVolume.WithLabelValues(fmt.Sprintf("%d", session)).Set(bigToFloat(volume))
}

func labelRole(role string) string {
	trimmed := strings.TrimSpace(role)
	if trimmed == "" {
		return "unknown"
	}
	return strings.ToLower(trimmed)
}

func bigToFloat(value *big.Int) float64 {
	if value == nil {
		return 0
	}
	floatVal, acc := new(big.Float).SetInt(value).Float64()
	if acc != big.Exact {
		// Guard against NaN/Inf when conversion fails.
		if math.IsNaN(floatVal) || math.IsInf(floatVal, 0) {
			return 0
		}
	}
	return floatVal
}
