// Package core implements the network condition simulation engine: a
// small state machine that applies named impairment profiles to the
// path under test and executes timed transition scenarios, with
// at-most-one-active-scenario and bounded-latency cancellation.
package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prism-p2p/network-simulator/catalog"
	"github.com/prism-p2p/network-simulator/internal/logging"
)

var (
	// ErrScenarioInProgress rejects a transition that would overlap an
	// active scenario. Overlapping impairment has no well-defined
	// composition rule, so the engine refuses rather than guesses.
	ErrScenarioInProgress = errors.New("a scenario is already running")
	// ErrNoActiveScenario indicates a cancel request while idle.
	ErrNoActiveScenario = errors.New("no scenario is running")
)

// Outcome labels used for metrics and logs.
const (
	OutcomeCompleted = "completed"
	OutcomeCanceled  = "canceled"
	OutcomeFailed    = "failed"
)

// EngineMetricsRecorder receives engine transition counts. All methods
// must be safe for concurrent use; the engine treats the recorder as
// optional.
type EngineMetricsRecorder interface {
	RecordProfileApply(outcome string)
	RecordScenarioOutcome(outcome string)
	RecordStepAdvance()
	SetActiveScenario(running bool, stepIndex int)
}

// scenarioRun is the one background execution the engine may own.
// stepIndex and stepStartedAt are guarded by Engine.stateMu; the rest
// is immutable after construction.
type scenarioRun struct {
	scenario      catalog.TransitionScenario
	stepIndex     int
	stepStartedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Engine is the single point of truth for "what network condition is
// active right now". One instance owns the path controlled by its
// ShapingBackend.
//
// Locking: opMu serializes every mutating transition (profile apply,
// scenario start/cancel, internal step advance) and is held across
// backend calls, so there is exactly one writer at any instant.
// stateMu guards only the published snapshot fields; Status() takes it
// alone and therefore never waits on the backend.
// Lock order is opMu before stateMu, never the reverse.
type Engine struct {
	catalog *catalog.Catalog
	backend ShapingBackend
	clock   Clock
	log     logging.Logger
	metrics EngineMetricsRecorder

	opMu sync.Mutex

	stateMu        sync.RWMutex
	currentProfile catalog.NetworkProfile
	run            *scenarioRun
	lastError      string

	// baselineName is only consulted during construction.
	baselineName string
}

// Option customises Engine construction.
type Option func(*Engine)

// WithClock substitutes the engine clock; tests use this to avoid
// sleeping through full scenario durations.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		if c != nil {
			e.clock = c
		}
	}
}

// WithLogger attaches a structured logger for transition events.
func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithMetricsRecorder attaches an optional recorder for transition counts.
func WithMetricsRecorder(m EngineMetricsRecorder) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithBaselineProfile overrides the profile the engine starts on.
func WithBaselineProfile(name string) Option {
	return func(e *Engine) {
		e.baselineName = name
	}
}

// NewEngine builds an idle engine on the given catalog and backend.
// The baseline profile (default "wifi") must exist in the catalog; the
// engine records it as current without touching the backend, matching
// an unimpaired path at start-up.
func NewEngine(cat *catalog.Catalog, backend ShapingBackend, opts ...Option) (*Engine, error) {
	if cat == nil {
		return nil, errors.New("core: nil catalog")
	}
	if backend == nil {
		return nil, errors.New("core: nil shaping backend")
	}

	e := &Engine{
		catalog:      cat,
		backend:      backend,
		clock:        SystemClock(),
		log:          logging.Noop(),
		baselineName: catalog.BaselineProfile,
	}
	for _, opt := range opts {
		opt(e)
	}

	baseline, err := cat.Profile(e.baselineName)
	if err != nil {
		return nil, fmt.Errorf("baseline profile: %w", err)
	}
	e.currentProfile = baseline
	return e, nil
}

// ApplyProfile looks up name and asks the backend to impose it. It is
// rejected with ErrScenarioInProgress while a scenario runs; a manual
// change mid-scenario would overlap the scenario's own impairment.
// Re-applying the current profile is a valid no-op-like re-assertion.
func (e *Engine) ApplyProfile(ctx context.Context, name string) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.running() {
		e.recordApply("rejected")
		return ErrScenarioInProgress
	}

	profile, err := e.catalog.Profile(name)
	if err != nil {
		e.recordApply("unknown")
		return err
	}

	if err := e.backend.Apply(ctx, profile); err != nil {
		err = wrapShaping("apply", name, err)
		e.setError(err)
		e.recordApply("shaping_failed")
		e.log.Warn(ctx, "profile apply failed",
			logging.String("profile", name),
			logging.String("error", err.Error()))
		return err
	}

	e.stateMu.Lock()
	e.currentProfile = profile
	e.lastError = ""
	e.stateMu.Unlock()

	e.recordApply("ok")
	e.log.Info(ctx, "applied network profile", logging.String("profile", name))
	return nil
}

// StartScenario begins executing the named scenario. On success the
// first step's profile has already been applied when the call returns;
// callers never observe "running" with the previous profile active.
// The remaining steps are paced by one background goroutine.
func (e *Engine) StartScenario(ctx context.Context, name string) error {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if e.running() {
		return ErrScenarioInProgress
	}

	scn, err := e.catalog.Scenario(name)
	if err != nil {
		return err
	}

	// Step profiles were validated at catalog load; a miss here is a bug.
	first, err := e.catalog.Profile(scn.Steps[0].Profile)
	if err != nil {
		return err
	}

	if err := e.backend.Apply(ctx, first); err != nil {
		err = wrapShaping("apply", first.Name, err)
		e.setError(err)
		e.log.Warn(ctx, "scenario start failed on first step",
			logging.String("scenario", name),
			logging.String("error", err.Error()))
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	run := &scenarioRun{
		scenario:      scn,
		stepStartedAt: e.clock.Now(),
		ctx:           runCtx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}

	e.stateMu.Lock()
	e.currentProfile = first
	e.run = run
	e.lastError = ""
	e.stateMu.Unlock()

	if e.metrics != nil {
		e.metrics.SetActiveScenario(true, 0)
	}
	e.log.Info(ctx, "scenario started",
		logging.String("scenario", name),
		logging.Int("steps", len(scn.Steps)),
		logging.String("first_profile", first.Name))

	go e.runScenario(run)
	return nil
}

// CancelScenario stops the active scenario. If a step's side effect is
// being applied when the call arrives, it completes first; there is no
// partial-step rollback. The profile last applied stays in force.
// Returns ErrNoActiveScenario when the engine is idle.
func (e *Engine) CancelScenario() error {
	e.opMu.Lock()
	run := e.run
	if run == nil {
		e.opMu.Unlock()
		return ErrNoActiveScenario
	}
	run.cancel()
	e.opMu.Unlock()

	// The runner observes the cancellation at its next suspension
	// point, which is at most one backend call away.
	<-run.done
	return nil
}

// Close cancels any active scenario and clears all impairment from the
// path, so simulated conditions do not outlive the process.
func (e *Engine) Close(ctx context.Context) error {
	if err := e.CancelScenario(); err != nil && !errors.Is(err, ErrNoActiveScenario) {
		return err
	}

	e.opMu.Lock()
	defer e.opMu.Unlock()
	if err := e.backend.Clear(ctx); err != nil {
		return wrapShaping("clear", "", err)
	}
	e.log.Info(ctx, "cleared network impairment on shutdown")
	return nil
}

// runScenario paces the remaining steps of run. Step 0's profile was
// applied by StartScenario; this goroutine waits out each step's
// duration, applies the next profile, and retires the run on
// completion, cancellation, or shaping failure.
func (e *Engine) runScenario(run *scenarioRun) {
	defer close(run.done)

	steps := run.scenario.Steps
	for i := 0; i < len(steps); i++ {
		select {
		case <-e.clock.After(steps[i].Duration):
		case <-run.ctx.Done():
			e.finish(run, OutcomeCanceled, nil)
			return
		}

		if i+1 == len(steps) {
			e.finish(run, OutcomeCompleted, nil)
			return
		}
		if !e.advance(run, i+1) {
			return
		}
	}
}

// advance applies steps[next]'s profile and publishes the new step. It
// returns false when the run ended instead (cancellation raced the
// timer, or the backend failed).
func (e *Engine) advance(run *scenarioRun, next int) bool {
	e.opMu.Lock()
	defer e.opMu.Unlock()

	if run.ctx.Err() != nil {
		e.finishLocked(run, OutcomeCanceled, nil)
		return false
	}

	step := run.scenario.Steps[next]
	profile, err := e.catalog.Profile(step.Profile)
	if err == nil {
		err = e.backend.Apply(run.ctx, profile)
	}
	if err != nil {
		// Abort in place: the last successfully applied profile stays,
		// because partially configured impairment cannot be unwound
		// without another explicit request.
		e.finishLocked(run, OutcomeFailed, wrapShaping("apply", step.Profile, err))
		return false
	}

	e.stateMu.Lock()
	e.currentProfile = profile
	run.stepIndex = next
	run.stepStartedAt = e.clock.Now()
	e.stateMu.Unlock()

	if e.metrics != nil {
		e.metrics.RecordStepAdvance()
		e.metrics.SetActiveScenario(true, next)
	}
	e.log.Info(run.ctx, "scenario step advanced",
		logging.String("scenario", run.scenario.Name),
		logging.Int("step", next),
		logging.String("profile", profile.Name))
	return true
}

// finish retires the run, taking opMu first so the transition is
// serialized with every other mutation.
func (e *Engine) finish(run *scenarioRun, outcome string, err error) {
	e.opMu.Lock()
	defer e.opMu.Unlock()
	e.finishLocked(run, outcome, err)
}

// finishLocked requires opMu to be held.
func (e *Engine) finishLocked(run *scenarioRun, outcome string, err error) {
	e.stateMu.Lock()
	if e.run == run {
		e.run = nil
	}
	if err != nil {
		e.lastError = err.Error()
	}
	e.stateMu.Unlock()

	if e.metrics != nil {
		e.metrics.SetActiveScenario(false, 0)
		e.metrics.RecordScenarioOutcome(outcome)
	}

	ctx := context.Background()
	switch {
	case err != nil:
		e.log.Warn(ctx, "scenario aborted",
			logging.String("scenario", run.scenario.Name),
			logging.String("error", err.Error()))
	default:
		e.log.Info(ctx, "scenario finished",
			logging.String("scenario", run.scenario.Name),
			logging.String("outcome", outcome))
	}
}

// running reports whether a scenario run exists. Callers hold opMu.
func (e *Engine) running() bool {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.run != nil
}

func (e *Engine) setError(err error) {
	e.stateMu.Lock()
	e.lastError = err.Error()
	e.stateMu.Unlock()
}

func (e *Engine) recordApply(outcome string) {
	if e.metrics != nil {
		e.metrics.RecordProfileApply(outcome)
	}
}
