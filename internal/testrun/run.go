// Package testrun implements the Test Manager & Orchestrator (spec.md
// §4.7): a single-active-slot FIFO run queue with retry backoff,
// attempt-stamped event ingestion, dispatch/execution timeouts, and
// artifact/report persistence. Grounded on the teacher's
// worker-pool pattern (claim → heartbeat → terminal status → cleanup),
// adapted from a DB-backed multi-worker pool to a single in-memory
// active slot, since spec.md requires "exactly one run dispatching or
// running at any time".
package testrun

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is one state in the run state machine.
type Status string

// Run states (spec.md §4.7 state machine diagram).
const (
	StatusQueued      Status = "queued"
	StatusDispatching Status = "dispatching"
	StatusRunning     Status = "running"
	StatusPassed      Status = "passed"
	StatusFailed      Status = "failed"
	StatusAborted     Status = "aborted"
	StatusError       Status = "error"
)

func (s Status) terminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusAborted, StatusError:
		return true
	}
	return false
}

// Summary is the derived report written alongside each run.
type Summary struct {
	RunID             string    `json:"runId"`
	Status            Status    `json:"status"`
	Attempt           int       `json:"attempt"`
	AttemptsUsed      int       `json:"attemptsUsed"`
	DurationMs        int64     `json:"durationMs"`
	AssertionsPassed  int       `json:"assertionsPassed"`
	AssertionsFailed  int       `json:"assertionsFailed"`
	FailureStep       string    `json:"failureStep,omitempty"`
	Reason            string    `json:"reason,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	FinishedAt        time.Time `json:"finishedAt,omitempty"`
}

// Run is one scenario submission and its lifecycle state.
type Run struct {
	ID       string
	Scenario Scenario
	Status   Status

	Attempt        int
	NextDispatchAt time.Time

	CreatedAt     time.Time
	DispatchedAt  time.Time
	StartedAt     time.Time
	FinishedAt    time.Time

	AssertionsPassed int
	AssertionsFailed int
	FailureStep      string
	Reason           string
}

func (r *Run) summary() Summary {
	var dur int64
	if !r.StartedAt.IsZero() {
		end := r.FinishedAt
		if end.IsZero() {
			end = time.Now()
		}
		dur = end.Sub(r.StartedAt).Milliseconds()
	}
	return Summary{
		RunID:            r.ID,
		Status:           r.Status,
		Attempt:          r.Attempt,
		AttemptsUsed:     r.Attempt,
		DurationMs:       dur,
		AssertionsPassed: r.AssertionsPassed,
		AssertionsFailed: r.AssertionsFailed,
		FailureStep:      r.FailureStep,
		Reason:           r.Reason,
		CreatedAt:        r.CreatedAt,
		FinishedAt:       r.FinishedAt,
	}
}

// Dispatcher sends a run to the editor extension. Implemented by the
// live-stream layer in this codebase (a "test.dispatch" frame); the
// orchestrator only needs to know whether the send itself failed —
// the editor's actual acceptance is observed later as a "started" event.
type Dispatcher interface {
	Dispatch(run *Run) error
	Abort(runID string) error
}

// Manager owns the run queue and state machine. Exactly one mutex
// guards all run state (spec.md §5: "the test manager maintains its
// own internal mutex").
type Manager struct {
	mu   sync.Mutex
	runs map[string]*Run
	fifo []string // queued run ids, insertion order

	activeID string // id of the run currently dispatching/running, "" if idle

	dispatcher      Dispatcher
	store           *Store
	baselineCompare BaselineCompareFunc

	dispatchTimer  *time.Timer
	executionTimer *time.Timer
	retryTimer     *time.Timer

	onStarted  func(run *Run)
	onTerminal func(run *Run)
}

// BaselineResult is the outcome of one visual baseline compare,
// implemented by internal/baseline.Result (kept as an interface here
// to avoid a package cycle).
type BaselineResult interface {
	Passed() bool
}

// BaselineCompareFunc runs a visual baseline compare for an artifact
// event (spec.md §4.8).
type BaselineCompareFunc func(key, imageBase64Data, mode string, allowMissing bool) (BaselineResult, error)

// SetBaselineCompare wires the visual baseline store into artifact
// event handling.
func (m *Manager) SetBaselineCompare(fn BaselineCompareFunc) { m.baselineCompare = fn }

// NewManager creates an idle test manager backed by store for
// persistence and dispatcher for sending runs to the editor.
func NewManager(dispatcher Dispatcher, store *Store) *Manager {
	return &Manager{
		runs:       make(map[string]*Run),
		dispatcher: dispatcher,
		store:      store,
	}
}

// OnStarted registers a callback invoked when a run transitions to running.
func (m *Manager) OnStarted(fn func(run *Run)) { m.onStarted = fn }

// OnTerminal registers a callback invoked when a run reaches a terminal state.
func (m *Manager) OnTerminal(fn func(run *Run)) { m.onTerminal = fn }

// Enqueue normalizes, validates, and appends a scenario to the FIFO
// queue, returning the new run's id.
func (m *Manager) Enqueue(raw RawScenario) (string, error) {
	scenario, err := Normalize(raw)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	run := &Run{
		ID:             id,
		Scenario:       *scenario,
		Status:         StatusQueued,
		CreatedAt:      time.Now(),
		NextDispatchAt: time.Now(),
	}
	m.runs[id] = run
	m.fifo = append(m.fifo, id)

	m.kickLocked()
	return id, nil
}

// Get returns a run by id.
func (m *Manager) Get(id string) (*Run, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, false
	}
	cp := *r
	return &cp, true
}

// List returns up to limit runs, most recently created first.
func (m *Manager) List(limit int) []*Run {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Run, 0, len(m.runs))
	for _, r := range m.runs {
		cp := *r
		out = append(out, &cp)
	}
	sortRunsByCreatedDesc(out)
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out
}

func sortRunsByCreatedDesc(runs []*Run) {
	for i := 1; i < len(runs); i++ {
		for j := i; j > 0 && runs[j].CreatedAt.After(runs[j-1].CreatedAt); j-- {
			runs[j], runs[j-1] = runs[j-1], runs[j]
		}
	}
}

// Abort cancels a queued or running run.
func (m *Manager) Abort(id string) error {
	m.mu.Lock()
	run, ok := m.runs[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("run %s not found", id)
	}
	if run.Status.terminal() {
		m.mu.Unlock()
		return nil
	}

	wasActive := m.activeID == id
	run.Status = StatusAborted
	run.FinishedAt = time.Now()
	m.removeFromFIFOLocked(id)
	if wasActive {
		m.activeID = ""
		m.stopTimersLocked()
	}
	m.persistLocked(run)
	m.kickLocked()
	m.mu.Unlock()

	if wasActive && m.dispatcher != nil {
		_ = m.dispatcher.Abort(id)
	}
	if m.onTerminal != nil {
		m.onTerminal(run)
	}
	return nil
}

func (m *Manager) removeFromFIFOLocked(id string) {
	for i, qid := range m.fifo {
		if qid == id {
			m.fifo = append(m.fifo[:i], m.fifo[i+1:]...)
			return
		}
	}
}

func (m *Manager) stopTimersLocked() {
	if m.dispatchTimer != nil {
		m.dispatchTimer.Stop()
		m.dispatchTimer = nil
	}
	if m.executionTimer != nil {
		m.executionTimer.Stop()
		m.executionTimer = nil
	}
}

func (m *Manager) persistLocked(run *Run) {
	if m.store == nil {
		return
	}
	s := run.summary()
	_ = m.store.WriteReport(run.ID, s)
}

// Metrics summarizes queue depth, active-slot occupancy and
// terminal-state counts (spec.md §6 "GET /agent/tests/metrics"). It
// carries no retry or latency figures.
type Metrics struct {
	QueueDepth  int `json:"queueDepth"`
	Active      int `json:"active"`
	Passed      int `json:"passed"`
	Failed      int `json:"failed"`
	Aborted     int `json:"aborted"`
	Errored     int `json:"errored"`
	TotalRuns   int `json:"totalRuns"`
}

// Metrics returns a snapshot of the queue and terminal-state counts.
func (m *Manager) Metrics() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	var met Metrics
	met.QueueDepth = len(m.fifo)
	met.TotalRuns = len(m.runs)
	if m.activeID != "" {
		met.Active = 1
	}
	for _, r := range m.runs {
		switch r.Status {
		case StatusPassed:
			met.Passed++
		case StatusFailed:
			met.Failed++
		case StatusAborted:
			met.Aborted++
		case StatusError:
			met.Errored++
		}
	}
	return met
}
