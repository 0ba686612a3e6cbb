// Package metrics exports flow run metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/0xVanfer/tg-flow/flow"
)

const namespace = "tgflow"

// Collector is a flow.Observer recording Prometheus metrics.
type Collector struct {
	runsStarted  *prometheus.CounterVec
	runsFinished *prometheus.CounterVec
	activeRuns   *prometheus.GaugeVec
	runDuration  *prometheus.HistogramVec
	stateEntries *prometheus.CounterVec
	renders      *prometheus.CounterVec
	inputs       *prometheus.CounterVec

	reg prometheus.Registerer
}

var _ flow.Observer = (*Collector)(nil)

// NewCollector creates the collectors and registers them with reg.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		runsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_started_total",
			Help:      "Number of flow runs started.",
		}, []string{"flow"}),
		runsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Number of flow runs finished, by outcome.",
		}, []string{"flow", "outcome"}),
		activeRuns: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Number of flow runs in progress.",
		}, []string{"flow"}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of flow runs.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"flow", "outcome"}),
		stateEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_entries_total",
			Help:      "Number of times a state was entered.",
		}, []string{"flow", "state"}),
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "renders_total",
			Help:      "Number of messages rendered, by action.",
		}, []string{"flow", "state", "action"}),
		inputs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inputs_total",
			Help:      "Number of user inputs consumed, by kind.",
		}, []string{"flow", "state", "kind"}),
		reg: reg,
	}

	for _, col := range []prometheus.Collector{
		c.runsStarted, c.runsFinished, c.activeRuns, c.runDuration,
		c.stateEntries, c.renders, c.inputs,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// TrackConversations exports the number of active conversations reported by count.
func (c *Collector) TrackConversations(count func() int) error {
	return c.reg.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "conversations_active",
		Help:      "Number of users with an active conversation.",
	}, func() float64 { return float64(count()) }))
}

// RunStarted implements flow.Observer.
func (c *Collector) RunStarted(flowName string, _ *flow.State) {
	c.runsStarted.WithLabelValues(flowName).Inc()
	c.activeRuns.WithLabelValues(flowName).Inc()
}

// StateEntered implements flow.Observer.
func (c *Collector) StateEntered(flowName, stateID string) {
	c.stateEntries.WithLabelValues(flowName, stateID).Inc()
}

// Rendered implements flow.Observer.
func (c *Collector) Rendered(flowName, stateID string, action flow.MessageAction) {
	c.renders.WithLabelValues(flowName, stateID, string(action)).Inc()
}

// InputReceived implements flow.Observer.
func (c *Collector) InputReceived(flowName, stateID string, kind flow.InputKind) {
	c.inputs.WithLabelValues(flowName, stateID, string(kind)).Inc()
}

// RunFinished implements flow.Observer.
func (c *Collector) RunFinished(flowName string, outcome flow.Outcome, elapsed time.Duration) {
	c.activeRuns.WithLabelValues(flowName).Dec()
	c.runsFinished.WithLabelValues(flowName, string(outcome)).Inc()
	c.runDuration.WithLabelValues(flowName, string(outcome)).Observe(elapsed.Seconds())
}
