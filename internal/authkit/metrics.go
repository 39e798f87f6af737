package authkit

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

const (
	metricSignupSuccess  = "auth.signup.success"
	metricSignupFailure  = "auth.signup.failure"
	metricLoginSuccess   = "auth.login.success"
	metricLoginFailure   = "auth.login.failure"
	metricRefreshSuccess = "auth.refresh.success"
	metricRefreshFailure = "auth.refresh.failure"
	metricLogout         = "auth.logout"
	metricBearerRejected = "auth.bearer.rejected"
)

// MetricsRecorder increments counters for auth events.
type MetricsRecorder interface {
	Increment(event string)
}

type noopMetrics struct{}

func (noopMetrics) Increment(string) {}

// CounterMetrics implements MetricsRecorder with in-memory counts.
type CounterMetrics struct {
	mutex  sync.Mutex
	counts map[string]int64
}

// NewCounterMetrics constructs an in-memory metrics recorder.
func NewCounterMetrics() *CounterMetrics {
	return &CounterMetrics{counts: make(map[string]int64)}
}

// Increment increases the counter for the given event.
func (recorder *CounterMetrics) Increment(event string) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.counts[event]++
}

// Count returns the current value for the given event.
func (recorder *CounterMetrics) Count(event string) int64 {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return recorder.counts[event]
}

// PrometheusMetrics exports auth events as a labelled counter.
type PrometheusMetrics struct {
	events *prometheus.CounterVec
}

// NewPrometheusMetrics registers the auth_events_total counter with registerer.
func NewPrometheusMetrics(registerer prometheus.Registerer) (*PrometheusMetrics, error) {
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "devapi",
		Name:      "auth_events_total",
		Help:      "Authentication events by outcome.",
	}, []string{"event"})
	if err := registerer.Register(events); err != nil {
		return nil, fmt.Errorf("authkit.metrics.register: %w", err)
	}
	return &PrometheusMetrics{events: events}, nil
}

// Increment increases the counter for the given event.
func (recorder *PrometheusMetrics) Increment(event string) {
	recorder.events.WithLabelValues(event).Inc()
}

// Dependencies carries the collaborators shared by auth handlers.
type Dependencies struct {
	Logger  *zap.Logger
	Metrics MetricsRecorder
	Clock   Clock
}

func (dependencies Dependencies) withDefaults() Dependencies {
	if dependencies.Logger == nil {
		dependencies.Logger = zap.NewNop()
	}
	if dependencies.Metrics == nil {
		dependencies.Metrics = noopMetrics{}
	}
	if dependencies.Clock == nil {
		dependencies.Clock = NewSystemClock()
	}
	return dependencies
}
