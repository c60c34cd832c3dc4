package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SimulatorCollector bundles Prometheus metrics for the network
// simulator and provides helpers to wire them into the HTTP facade and
// the scenario engine.
type SimulatorCollector struct {
	gatherer prometheus.Gatherer

	HTTPRequests  *prometheus.CounterVec
	HTTPDurations *prometheus.HistogramVec

	ProfileApplies *prometheus.CounterVec
	ScenarioRuns   *prometheus.CounterVec
	ScenarioSteps  prometheus.Counter

	ScenarioActive    prometheus.Gauge
	ScenarioStepIndex prometheus.Gauge
}

// NewSimulatorCollector registers simulator Prometheus metrics against
// the provided registerer, defaulting to the global Prometheus registry
// when nil.
func NewSimulatorCollector(reg prometheus.Registerer) (*SimulatorCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netsim_http_requests_total",
		Help: "Total number of handled HTTP requests, labeled by method, route, and status code.",
	}, []string{"method", "route", "code"})
	httpRequests, err := registerCounterVec(reg, httpRequests, "netsim_http_requests_total")
	if err != nil {
		return nil, err
	}

	httpDurations := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "netsim_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"method", "route"})
	httpDurations, err = registerHistogramVec(reg, httpDurations, "netsim_http_request_duration_seconds")
	if err != nil {
		return nil, err
	}

	profileApplies := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netsim_profile_applies_total",
		Help: "Profile apply attempts, labeled by outcome (ok, rejected, unknown, shaping_failed).",
	}, []string{"outcome"})
	profileApplies, err = registerCounterVec(reg, profileApplies, "netsim_profile_applies_total")
	if err != nil {
		return nil, err
	}

	scenarioRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "netsim_scenario_runs_total",
		Help: "Finished scenario executions, labeled by outcome (completed, canceled, failed).",
	}, []string{"outcome"})
	scenarioRuns, err = registerCounterVec(reg, scenarioRuns, "netsim_scenario_runs_total")
	if err != nil {
		return nil, err
	}

	scenarioSteps, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "netsim_scenario_steps_total",
		Help: "Scenario step advances, counting every profile switch after step 0.",
	}), "netsim_scenario_steps_total")
	if err != nil {
		return nil, err
	}

	active, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netsim_scenario_active",
		Help: "1 while a transition scenario is executing, 0 otherwise.",
	}), "netsim_scenario_active")
	if err != nil {
		return nil, err
	}
	stepIndex, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "netsim_scenario_step_index",
		Help: "Zero-based index of the current scenario step; 0 when idle.",
	}), "netsim_scenario_step_index")
	if err != nil {
		return nil, err
	}

	return &SimulatorCollector{
		gatherer:          gatherer,
		HTTPRequests:      httpRequests,
		HTTPDurations:     httpDurations,
		ProfileApplies:    profileApplies,
		ScenarioRuns:      scenarioRuns,
		ScenarioSteps:     scenarioSteps,
		ScenarioActive:    active,
		ScenarioStepIndex: stepIndex,
	}, nil
}

// ObserveHTTP records one handled request for the facade middleware.
func (c *SimulatorCollector) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	if c == nil {
		return
	}
	if c.HTTPRequests != nil {
		c.HTTPRequests.WithLabelValues(method, route, fmt.Sprintf("%d", code)).Inc()
	}
	if c.HTTPDurations != nil {
		c.HTTPDurations.WithLabelValues(method, route).Observe(elapsed.Seconds())
	}
}

// RecordProfileApply satisfies core.EngineMetricsRecorder.
func (c *SimulatorCollector) RecordProfileApply(outcome string) {
	if c != nil && c.ProfileApplies != nil {
		c.ProfileApplies.WithLabelValues(outcome).Inc()
	}
}

// RecordScenarioOutcome satisfies core.EngineMetricsRecorder.
func (c *SimulatorCollector) RecordScenarioOutcome(outcome string) {
	if c != nil && c.ScenarioRuns != nil {
		c.ScenarioRuns.WithLabelValues(outcome).Inc()
	}
}

// RecordStepAdvance satisfies core.EngineMetricsRecorder.
func (c *SimulatorCollector) RecordStepAdvance() {
	if c != nil && c.ScenarioSteps != nil {
		c.ScenarioSteps.Inc()
	}
}

// SetActiveScenario satisfies core.EngineMetricsRecorder.
func (c *SimulatorCollector) SetActiveScenario(running bool, stepIndex int) {
	if c == nil {
		return
	}
	if c.ScenarioActive != nil {
		if running {
			c.ScenarioActive.Set(1)
		} else {
			c.ScenarioActive.Set(0)
		}
	}
	if c.ScenarioStepIndex != nil {
		c.ScenarioStepIndex.Set(float64(stepIndex))
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *SimulatorCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
