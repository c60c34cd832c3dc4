package core

import (
	"time"

	"github.com/prism-p2p/network-simulator/catalog"
)

// ScenarioStatus describes the scenario execution in flight, if any.
type ScenarioStatus struct {
	Name          string
	StepIndex     int
	StepCount     int
	StepProfile   string
	StepStartedAt time.Time
	// StepRemaining is how long the current step has left, computed
	// against the engine clock at snapshot time. Never negative.
	StepRemaining time.Duration
}

// Status is a read-only projection of the engine state at some real
// instant. It never mixes fields from two different transitions.
type Status struct {
	CurrentProfile catalog.NetworkProfile
	// Scenario is nil exactly when the engine is idle.
	Scenario *ScenarioStatus
	// LastError holds the most recent scenario abort or apply failure,
	// cleared by the next successful transition. Empty when healthy.
	LastError string
}

// ScenarioActive reports whether a scenario execution is in progress.
func (s Status) ScenarioActive() bool { return s.Scenario != nil }

// Status returns a consistent snapshot of the engine. It only takes the
// state lock, so it never waits on a shaping backend call and is safe
// to call concurrently with any transition.
func (e *Engine) Status() Status {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()

	st := Status{
		CurrentProfile: e.currentProfile,
		LastError:      e.lastError,
	}
	if e.run != nil {
		step := e.run.scenario.Steps[e.run.stepIndex]
		remaining := step.Duration - e.clock.Now().Sub(e.run.stepStartedAt)
		if remaining < 0 {
			remaining = 0
		}
		st.Scenario = &ScenarioStatus{
			Name:          e.run.scenario.Name,
			StepIndex:     e.run.stepIndex,
			StepCount:     len(e.run.scenario.Steps),
			StepProfile:   step.Profile,
			StepStartedAt: e.run.stepStartedAt,
			StepRemaining: remaining,
		}
	}
	return st
}
