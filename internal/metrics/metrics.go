package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Config struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

// Metrics holds the Prometheus collectors for one process. A disabled or nil
// Metrics accepts every call and records nothing.
type Metrics struct {
	instructions        *prometheus.CounterVec
	instructionDuration *prometheus.HistogramVec
	ackFailures         *prometheus.CounterVec

	functionCalls    *prometheus.CounterVec
	functionDuration *prometheus.HistogramVec

	stateDepth  prometheus.Gauge
	temperature *prometheus.GaugeVec

	registry *prometheus.Registry
}

func New(cfg Config) *Metrics {
	if !cfg.Enabled {
		return &Metrics{}
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "ogc"
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		instructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "instructions_total",
				Help:      "Instructions written to the device",
			},
			[]string{"code", "status"},
		),
		instructionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "instruction_duration_seconds",
				Help:      "Time from write to acknowledgement",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"code"},
		),
		ackFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "ack_failures_total",
				Help:      "Responses that did not satisfy the expected acknowledgement",
			},
			[]string{"code"},
		),
		functionCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: ns,
				Name:      "function_invocations_total",
				Help:      "Composite function operations invoked",
			},
			[]string{"function", "operation", "status"},
		),
		functionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: ns,
				Name:      "function_duration_seconds",
				Help:      "Duration of composite function operations",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"function", "operation"},
		),
		stateDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "state_stack_depth",
			Help:      "Saved state snapshots",
		}),
		temperature: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: ns,
				Name:      "temperature_celsius",
				Help:      "Last sampled heater temperature",
			},
			[]string{"heater", "kind"},
		),
	}

	registry.MustRegister(
		m.instructions,
		m.instructionDuration,
		m.ackFailures,
		m.functionCalls,
		m.functionDuration,
		m.stateDepth,
		m.temperature,
	)
	return m
}

func (m *Metrics) RecordInstruction(code, status string, d time.Duration) {
	if m == nil || m.instructions == nil {
		return
	}
	m.instructions.WithLabelValues(code, status).Inc()
	m.instructionDuration.WithLabelValues(code).Observe(d.Seconds())
}

func (m *Metrics) RecordAckFailure(code string) {
	if m == nil || m.ackFailures == nil {
		return
	}
	m.ackFailures.WithLabelValues(code).Inc()
}

func (m *Metrics) RecordFunction(function, operation, status string, d time.Duration) {
	if m == nil || m.functionCalls == nil {
		return
	}
	m.functionCalls.WithLabelValues(function, operation, status).Inc()
	m.functionDuration.WithLabelValues(function, operation).Observe(d.Seconds())
}

func (m *Metrics) SetStateDepth(depth int) {
	if m == nil || m.stateDepth == nil {
		return
	}
	m.stateDepth.Set(float64(depth))
}

// SetTemperature records one heater reading; heater is "tool0", "bed", ...
func (m *Metrics) SetTemperature(heater string, current, target float64) {
	if m == nil || m.temperature == nil {
		return
	}
	m.temperature.WithLabelValues(heater, "current").Set(current)
	m.temperature.WithLabelValues(heater, "target").Set(target)
}

// Registry exposes the collectors for tests. Nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
