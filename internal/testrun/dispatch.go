package testrun

import (
	"math"
	"time"
)

// DispatchTimeout bounds how long the editor has to ack a dispatched
// run by transitioning it to running (spec.md §4.7).
const DispatchTimeout = 30 * time.Second

// kickLocked selects and dispatches the next eligible run if the
// manager is idle. Caller holds m.mu.
func (m *Manager) kickLocked() {
	if m.activeID != "" {
		return
	}

	now := time.Now()
	idx := -1
	for i, id := range m.fifo {
		run := m.runs[id]
		if !run.NextDispatchAt.After(now) {
			idx = i
			break
		}
	}
	if idx == -1 {
		m.scheduleWakeupLocked()
		return
	}

	id := m.fifo[idx]
	m.fifo = append(m.fifo[:idx], m.fifo[idx+1:]...)
	run := m.runs[id]

	run.Attempt++
	run.Status = StatusDispatching
	run.DispatchedAt = now
	m.activeID = id

	m.dispatchTimer = time.AfterFunc(DispatchTimeout, func() {
		m.onDispatchTimeout(id, run.Attempt)
	})

	if m.dispatcher != nil {
		if err := m.dispatcher.Dispatch(run); err != nil {
			m.finalizeLocked(run, StatusError, "dispatch_failed", err.Error())
			m.activeID = ""
			m.kickLocked()
			return
		}
	}
}

// scheduleWakeupLocked arms a timer for the earliest pending
// nextDispatchAt so a delayed retry is picked up without polling.
func (m *Manager) scheduleWakeupLocked() {
	var earliest time.Time
	for _, id := range m.fifo {
		t := m.runs[id].NextDispatchAt
		if earliest.IsZero() || t.Before(earliest) {
			earliest = t
		}
	}
	if earliest.IsZero() {
		return
	}
	if m.retryTimer != nil {
		m.retryTimer.Stop()
	}
	d := time.Until(earliest)
	if d < 0 {
		d = 0
	}
	m.retryTimer = time.AfterFunc(d, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.kickLocked()
	})
}

func (m *Manager) onDispatchTimeout(runID string, attempt int) {
	m.mu.Lock()
	run, ok := m.runs[runID]
	if !ok || m.activeID != runID || run.Attempt != attempt || run.Status.terminal() {
		m.mu.Unlock()
		return
	}
	m.finalizeLocked(run, StatusError, "dispatch_timeout", "editor did not transition run to running in time")
	m.activeID = ""
	m.kickLocked()
	m.mu.Unlock()

	if m.onTerminal != nil {
		m.onTerminal(run)
	}
}

// armExecutionTimeoutLocked starts the execution-timeout timer once a run
// reaches running (spec.md §4.7). Caller holds m.mu.
func (m *Manager) armExecutionTimeoutLocked(run *Run) {
	if m.dispatchTimer != nil {
		m.dispatchTimer.Stop()
		m.dispatchTimer = nil
	}
	timeout := time.Duration(run.Scenario.Safety.ExecutionTimeoutMs) * time.Millisecond
	attempt := run.Attempt
	m.executionTimer = time.AfterFunc(timeout, func() {
		m.onExecutionTimeout(run.ID, attempt)
	})
}

func (m *Manager) onExecutionTimeout(runID string, attempt int) {
	m.mu.Lock()
	run, ok := m.runs[runID]
	if !ok || m.activeID != runID || run.Attempt != attempt || run.Status.terminal() {
		m.mu.Unlock()
		return
	}
	dispatcher := m.dispatcher
	finalized := m.finalizeOrRetryLocked(run, StatusError, "timeout", "execution exceeded the scenario timeout")
	m.mu.Unlock()

	if dispatcher != nil {
		_ = dispatcher.Abort(runID)
	}
	if finalized && m.onTerminal != nil {
		m.onTerminal(run)
	}
}

// finalizeOrRetryLocked applies spec.md's retry rule: a failed/error
// outcome on {dispatching, running} retries via backoff while
// attempt <= maxRetries, otherwise finalizes with terminalOnExhaust.
// Caller holds m.mu. Returns true if the run reached a terminal state.
func (m *Manager) finalizeOrRetryLocked(run *Run, terminalOnExhaust Status, reason, message string) bool {
	if run.Attempt <= run.Scenario.Safety.MaxRetries {
		m.retryLocked(run, reason)
		return false
	}
	m.finalizeLocked(run, terminalOnExhaust, reason, message)
	m.activeID = ""
	m.kickLocked()
	return true
}

// retryLocked re-queues run with a backoff delay (spec.md §4.7 retry
// backoff formula). Caller holds m.mu.
func (m *Manager) retryLocked(run *Run, reason string) {
	s := run.Scenario.Safety
	delayMs := float64(s.RetryDelayMs) * math.Pow(s.RetryBackoffFactor, float64(run.Attempt-1))
	if delayMs > float64(s.MaxRetryDelayMs) {
		delayMs = float64(s.MaxRetryDelayMs)
	}
	delay := time.Duration(delayMs) * time.Millisecond
	if delay < 0 {
		delay = 0
	}
	if delay > time.Hour {
		delay = time.Hour
	}

	run.Status = StatusQueued
	run.Reason = reason
	run.NextDispatchAt = time.Now().Add(delay)
	m.fifo = append(m.fifo, run.ID)
	m.activeID = ""
	m.stopTimersLocked()
	m.kickLocked()
}

// finalizeLocked moves run to a terminal state and persists its
// report. Caller holds m.mu.
func (m *Manager) finalizeLocked(run *Run, status Status, reason, failureStep string) {
	run.Status = status
	run.Reason = reason
	if failureStep != "" {
		run.FailureStep = failureStep
	}
	run.FinishedAt = time.Now()
	m.stopTimersLocked()
	m.persistLocked(run)
}
