package testrun

import (
	"fmt"
	"time"
)

// EventKind enumerates the accepted editor-origin events (spec.md §4.7
// "Event ingestion").
type EventKind string

// Event kinds.
const (
	EventStarted  EventKind = "started"
	EventLog      EventKind = "log"
	EventArtifact EventKind = "artifact"
	EventPassed   EventKind = "passed"
	EventFailed   EventKind = "failed"
	EventAborted  EventKind = "aborted"
	EventError    EventKind = "error"
)

func (k EventKind) terminal() bool {
	switch k {
	case EventPassed, EventFailed, EventAborted, EventError:
		return true
	}
	return false
}

// Event is one editor-origin message for a run.
type Event struct {
	RunID   string                 `json:"runId"`
	Attempt int                    `json:"attempt"`
	Kind    EventKind              `json:"kind"`
	Message string                 `json:"message,omitempty"`
	Step    string                 `json:"step,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// IngestResult reports how an ingested event was handled.
type IngestResult struct {
	Status string `json:"status"` // "accepted" | "stale" | "rejected" | "unchanged"
	Run    Summary `json:"run"`
}

// IngestEvent applies the attempt-stamping and state-machine rules
// from spec.md §4.7. The returned IngestResult.Status says how the
// event was handled ("accepted", "stale", "rejected" or "unchanged") —
// callers use it to decide the HTTP status (202 stale, 409
// attempt-ahead, 200 otherwise).
func (m *Manager) IngestEvent(ev Event) (IngestResult, error) {
	m.mu.Lock()

	run, ok := m.runs[ev.RunID]
	if !ok {
		m.mu.Unlock()
		return IngestResult{}, fmt.Errorf("run %s not found", ev.RunID)
	}

	if ev.Attempt < run.Attempt {
		m.appendEventLocked(run, ev)
		m.mu.Unlock()
		return IngestResult{Status: "stale", Run: run.summary()}, nil
	}
	if ev.Attempt > run.Attempt {
		m.mu.Unlock()
		return IngestResult{Status: "rejected", Run: run.summary()}, nil
	}

	if run.Status.terminal() {
		m.mu.Unlock()
		return IngestResult{Status: "unchanged", Run: run.summary()}, nil
	}

	m.appendEventLocked(run, ev)

	var (
		justStarted  bool
		justFinished bool
	)

	switch ev.Kind {
	case EventStarted:
		if run.Status == StatusDispatching {
			run.Status = StatusRunning
			run.StartedAt = time.Now()
			m.armExecutionTimeoutLocked(run)
			justStarted = true
		}

	case EventLog:
		// no state transition; already appended to the event log above.

	case EventArtifact:
		m.recordArtifactLocked(run, ev)

	case EventPassed:
		m.finalizeLocked(run, StatusPassed, "", "")
		m.activeID = ""
		m.kickLocked()
		justFinished = true

	case EventAborted:
		m.finalizeLocked(run, StatusAborted, "", "")
		m.activeID = ""
		m.kickLocked()
		justFinished = true

	case EventFailed, EventError:
		terminalStatus := StatusFailed
		if ev.Kind == EventError {
			terminalStatus = StatusError
		}
		if m.finalizeOrRetryLocked(run, terminalStatus, ev.Message, ev.Step) {
			justFinished = true
		}
	}

	summary := run.summary()
	m.mu.Unlock()

	if justStarted && m.onStarted != nil {
		m.onStarted(run)
	}
	if justFinished && m.onTerminal != nil {
		m.onTerminal(run)
	}

	return IngestResult{Status: "accepted", Run: summary}, nil
}

// recordArtifactLocked persists an artifact and, when it carries an
// image payload, runs the visual baseline compare (spec.md §4.8).
// Caller holds m.mu.
func (m *Manager) recordArtifactLocked(run *Run, ev Event) {
	if m.store == nil {
		return
	}
	label, _ := ev.Payload["label"].(string)
	_ = m.store.WriteArtifact(run.ID, label, ev.Payload)

	if m.baselineCompare == nil {
		return
	}
	key, hasKey := ev.Payload["baselineKey"].(string)
	data, hasData := ev.Payload["imageBase64"].(string)
	if !hasKey || !hasData {
		return
	}
	mode, _ := ev.Payload["mode"].(string)
	allowMissing, _ := ev.Payload["allowMissingBaseline"].(bool)
	result, err := m.baselineCompare(key, data, mode, allowMissing)
	if err != nil {
		run.AssertionsFailed++
		run.FailureStep = ev.Step
		return
	}
	if result.Passed() {
		run.AssertionsPassed++
	} else {
		run.AssertionsFailed++
		if run.FailureStep == "" {
			run.FailureStep = ev.Step
		}
	}
}
