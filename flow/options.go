package flow

import (
	"log/slog"
	"time"
)

// Outcome is how a run ended.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeTimeout   Outcome = "timeout"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

// Observer receives lifecycle events of flow runs. Implementations must be safe for
// concurrent use since runs of different users execute in parallel.
type Observer interface {
	RunStarted(flow string, s *State)
	StateEntered(flow, stateID string)
	Rendered(flow, stateID string, action MessageAction)
	InputReceived(flow, stateID string, kind InputKind)
	RunFinished(flow string, outcome Outcome, elapsed time.Duration)
}

// NopObserver ignores all events.
type NopObserver struct{}

func (NopObserver) RunStarted(string, *State) {}
func (NopObserver) StateEntered(string, string) {}
func (NopObserver) Rendered(string, string, MessageAction) {}
func (NopObserver) InputReceived(string, string, InputKind) {}
func (NopObserver) RunFinished(string, Outcome, time.Duration) {}

// DefaultFailureMessage is sent to the user when a handler fails.
const DefaultFailureMessage = "⚠️ Something went wrong. Please try again later."

// Option configures a Flow.
type Option func(*Flow)

// WithLogger sets the logger used for run events.
func WithLogger(log *slog.Logger) Option {
	return func(f *Flow) {
		if log != nil {
			f.log = log
		}
	}
}

// WithObserver sets the lifecycle observer.
func WithObserver(o Observer) Option {
	return func(f *Flow) {
		if o != nil {
			f.observer = o
		}
	}
}

// WithFailureMessage sets the notice sent when a handler fails. "" disables it.
func WithFailureMessage(text string) Option {
	return func(f *Flow) { f.failureMessage = text }
}

// WithInputCleanup deletes accepted user replies after delay. Zero keeps them.
func WithInputCleanup(delay time.Duration) Option {
	return func(f *Flow) { f.inputCleanup = delay }
}

type runConfig struct {
	runID string
	data  map[string]any
}

// RunOption configures a single run.
type RunOption func(*runConfig)

// WithInitialData seeds the flow data of the run.
func WithInitialData(data map[string]any) RunOption {
	return func(c *runConfig) { c.data = data }
}

// WithRunID overrides the generated run id.
func WithRunID(id string) RunOption {
	return func(c *runConfig) {
		if id != "" {
			c.runID = id
		}
	}
}
