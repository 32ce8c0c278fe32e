package testrun

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDispatcher struct {
	mu        sync.Mutex
	dispatched []string
	aborted    []string
	failNext   bool
}

func (d *fakeDispatcher) Dispatch(run *Run) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failNext {
		d.failNext = false
		return assert.AnError
	}
	d.dispatched = append(d.dispatched, run.ID)
	return nil
}

func (d *fakeDispatcher) Abort(runID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aborted = append(d.aborted, runID)
	return nil
}

func (d *fakeDispatcher) dispatchCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.dispatched)
}

func simpleScenario() RawScenario {
	return RawScenario{Steps: []Step{{Type: "update"}}}
}

func TestEnqueueDispatchesImmediatelyWhenIdle(t *testing.T) {
	d := &fakeDispatcher{}
	m := NewManager(d, nil)

	id, err := m.Enqueue(simpleScenario())
	require.NoError(t, err)

	run, ok := m.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusDispatching, run.Status)
	assert.Equal(t, 1, d.dispatchCount())
}

func TestSecondEnqueueWaitsForActiveSlot(t *testing.T) {
	d := &fakeDispatcher{}
	m := NewManager(d, nil)

	first, _ := m.Enqueue(simpleScenario())
	second, _ := m.Enqueue(simpleScenario())

	firstRun, _ := m.Get(first)
	secondRun, _ := m.Get(second)
	assert.Equal(t, StatusDispatching, firstRun.Status)
	assert.Equal(t, StatusQueued, secondRun.Status)
	assert.Equal(t, 1, d.dispatchCount())

	met := m.Metrics()
	assert.Equal(t, 1, met.Active)
	assert.Equal(t, 1, met.QueueDepth)
}

func TestIngestEventStartedTransitionsToRunning(t *testing.T) {
	d := &fakeDispatcher{}
	m := NewManager(d, nil)
	id, _ := m.Enqueue(simpleScenario())

	res, err := m.IngestEvent(Event{RunID: id, Attempt: 1, Kind: EventStarted})
	require.NoError(t, err)
	assert.Equal(t, "accepted", res.Status)

	run, _ := m.Get(id)
	assert.Equal(t, StatusRunning, run.Status)
}

func TestIngestEventPassedFinalizesAndDispatchesNext(t *testing.T) {
	d := &fakeDispatcher{}
	m := NewManager(d, nil)
	first, _ := m.Enqueue(simpleScenario())
	second, _ := m.Enqueue(simpleScenario())

	_, err := m.IngestEvent(Event{RunID: first, Attempt: 1, Kind: EventStarted})
	require.NoError(t, err)
	_, err = m.IngestEvent(Event{RunID: first, Attempt: 1, Kind: EventPassed})
	require.NoError(t, err)

	firstRun, _ := m.Get(first)
	assert.Equal(t, StatusPassed, firstRun.Status)

	secondRun, _ := m.Get(second)
	assert.Equal(t, StatusDispatching, secondRun.Status, "freed slot should immediately dispatch the next queued run")
	assert.Equal(t, 2, d.dispatchCount())
}

func TestIngestEventStaleAttemptDoesNotTransition(t *testing.T) {
	d := &fakeDispatcher{}
	m := NewManager(d, nil)
	id, _ := m.Enqueue(simpleScenario())

	res, err := m.IngestEvent(Event{RunID: id, Attempt: 0, Kind: EventStarted})
	require.NoError(t, err)
	assert.Equal(t, "stale", res.Status)

	run, _ := m.Get(id)
	assert.Equal(t, StatusDispatching, run.Status)
}

func TestIngestEventAheadAttemptRejected(t *testing.T) {
	d := &fakeDispatcher{}
	m := NewManager(d, nil)
	id, _ := m.Enqueue(simpleScenario())

	res, err := m.IngestEvent(Event{RunID: id, Attempt: 5, Kind: EventStarted})
	require.NoError(t, err)
	assert.Equal(t, "rejected", res.Status)
}

func TestIngestEventOnTerminalRunIsUnchanged(t *testing.T) {
	d := &fakeDispatcher{}
	m := NewManager(d, nil)
	id, _ := m.Enqueue(simpleScenario())
	m.IngestEvent(Event{RunID: id, Attempt: 1, Kind: EventStarted})
	m.IngestEvent(Event{RunID: id, Attempt: 1, Kind: EventPassed})

	res, err := m.IngestEvent(Event{RunID: id, Attempt: 1, Kind: EventLog, Message: "late log"})
	require.NoError(t, err)
	assert.Equal(t, "unchanged", res.Status)
}

func TestIngestEventUnknownRunErrors(t *testing.T) {
	m := NewManager(&fakeDispatcher{}, nil)
	_, err := m.IngestEvent(Event{RunID: "missing", Attempt: 1, Kind: EventStarted})
	assert.Error(t, err)
}

func TestAbortQueuedRun(t *testing.T) {
	d := &fakeDispatcher{}
	m := NewManager(d, nil)
	m.Enqueue(simpleScenario())
	second, _ := m.Enqueue(simpleScenario())

	err := m.Abort(second)
	require.NoError(t, err)

	run, _ := m.Get(second)
	assert.Equal(t, StatusAborted, run.Status)
	assert.Empty(t, d.aborted, "dispatcher.Abort only fires for the active run")
}

func TestAbortActiveRunCallsDispatcherAbort(t *testing.T) {
	d := &fakeDispatcher{}
	m := NewManager(d, nil)
	id, _ := m.Enqueue(simpleScenario())

	err := m.Abort(id)
	require.NoError(t, err)

	run, _ := m.Get(id)
	assert.Equal(t, StatusAborted, run.Status)

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Equal(t, []string{id}, d.aborted)
}

func TestMetricsCountsTerminalStates(t *testing.T) {
	d := &fakeDispatcher{}
	m := NewManager(d, nil)
	id, _ := m.Enqueue(simpleScenario())
	m.IngestEvent(Event{RunID: id, Attempt: 1, Kind: EventStarted})
	m.IngestEvent(Event{RunID: id, Attempt: 1, Kind: EventFailed, Message: "boom"})

	met := m.Metrics()
	assert.Equal(t, 1, met.TotalRuns)
	assert.Equal(t, 0, met.Active)
	assert.Equal(t, 1, met.Failed)
}
