package commandexec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uxplima/uxragent/internal/derivedcache"
	"github.com/uxplima/uxragent/internal/idempotency"
	"github.com/uxplima/uxragent/internal/lockmgr"
	"github.com/uxplima/uxragent/internal/model"
	"github.com/uxplima/uxragent/internal/scenegraph"
)

func newExecutor(t *testing.T) (*Executor, *scenegraph.Graph, string) {
	t.Helper()
	g := scenegraph.New()
	res, _, err := g.ApplyCommand(scenegraph.Op{Kind: scenegraph.OpCreate, ParentID: "", ClassName: "Workspace", Name: "Workspace"})
	require.NoError(t, err)

	exec := &Executor{
		Graph: g,
		Locks: lockmgr.New(),
		Idemp: idempotency.New(time.Minute, 100),
		Cache: derivedcache.New(),
	}
	return exec, g, res.ID
}

func TestExecuteCreateSucceeds(t *testing.T) {
	exec, _, wsID := newExecutor(t)

	out := exec.Execute(Request{
		Command: Command{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "Baseplate"},
		Owner:   "agent-1",
	})
	assert.True(t, out.OK)
	assert.Equal(t, uint64(2), out.Revision)
	assert.Equal(t, 200, out.HTTPStatus())
}

func TestExecuteRevisionMismatch(t *testing.T) {
	exec, _, _ := newExecutor(t)
	stale := uint64(999)

	out := exec.Execute(Request{
		Command: Command{Op: CmdDelete, TargetRef: Ref{ID: "whatever"}},
		BaseRev: &stale,
	})
	assert.False(t, out.OK)
	require.NotNil(t, out.Conflict)
	assert.Equal(t, ReasonRevisionMismatch, out.Conflict.Reason)
	assert.Equal(t, 409, out.HTTPStatus())
}

func TestExecuteValidationFailedMissingField(t *testing.T) {
	exec, _, _ := newExecutor(t)

	out := exec.Execute(Request{Command: Command{Op: CmdCreate}})
	assert.False(t, out.OK)
	require.NotNil(t, out.Conflict)
	assert.Equal(t, ReasonValidationFailed, out.Conflict.Reason)
	assert.Equal(t, 422, out.HTTPStatus())
}

func TestExecuteNotFoundTarget(t *testing.T) {
	exec, _, _ := newExecutor(t)

	out := exec.Execute(Request{Command: Command{Op: CmdDelete, TargetRef: Ref{ID: "missing"}}})
	assert.False(t, out.OK)
	require.NotNil(t, out.Conflict)
	assert.Equal(t, ReasonNotFound, out.Conflict.Reason)
	assert.Equal(t, 404, out.HTTPStatus())
}

func TestExecuteSchemaValidationFailure(t *testing.T) {
	exec, _, wsID := newExecutor(t)

	out := exec.Execute(Request{
		Command: Command{
			Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "Baseplate",
			Properties: map[string]model.Value{"Transparency": model.Number(5)},
		},
	})
	assert.False(t, out.OK)
	require.NotNil(t, out.Conflict)
	assert.Equal(t, ReasonValidationFailed, out.Conflict.Reason)
	assert.Equal(t, 422, out.HTTPStatus())
}

func TestExecuteLockConflict(t *testing.T) {
	exec, _, wsID := newExecutor(t)

	ok, _ := exec.Locks.Acquire([]string{"Workspace.Baseplate"}, "other-agent", time.Minute)
	require.True(t, ok)

	out := exec.Execute(Request{
		Command: Command{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "Baseplate"},
		Owner:   "agent-1",
	})
	assert.False(t, out.OK)
	require.NotNil(t, out.Conflict)
	assert.Equal(t, ReasonLocked, out.Conflict.Reason)
	assert.Equal(t, 423, out.HTTPStatus())
}

func TestExecuteIdempotentReplayReturnsCachedOutcome(t *testing.T) {
	exec, _, wsID := newExecutor(t)

	req := Request{
		Command:     Command{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "Baseplate"},
		Idempotency: "key-1",
		Owner:       "agent-1",
	}
	first := exec.Execute(req)
	require.True(t, first.OK)

	second := exec.Execute(req)
	assert.Equal(t, first, second)
}

func TestExecuteIdempotentReplayReturnsCachedFailure(t *testing.T) {
	exec, _, _ := newExecutor(t)

	req := Request{
		Command:     Command{Op: CmdDelete, TargetRef: Ref{ID: "missing"}},
		Idempotency: "key-fail",
		Owner:       "agent-1",
	}
	first := exec.Execute(req)
	require.False(t, first.OK)
	require.NotNil(t, first.Conflict)
	assert.Equal(t, ReasonNotFound, first.Conflict.Reason)

	second := exec.Execute(req)
	assert.Equal(t, first, second)
}

func TestExecuteFiresOnCommittedOutsideLock(t *testing.T) {
	exec, _, wsID := newExecutor(t)

	var firedRevision uint64
	var fired bool
	exec.OnCommitted = func(changes []model.Change, revision uint64) {
		fired = true
		firedRevision = revision
		_, conflict := exec.Locks.Acquire([]string{"Workspace.Baseplate"}, "probe", time.Second)
		assert.Nil(t, conflict, "lock should already be released by the time OnCommitted fires")
	}

	out := exec.Execute(Request{
		Command: Command{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "Baseplate"},
		Owner:   "agent-1",
	})
	require.True(t, out.OK)
	assert.True(t, fired)
	assert.Equal(t, out.Revision, firedRevision)
}

func TestExecuteBatchTransactionalRollsBackOnFirstFailure(t *testing.T) {
	exec, g, wsID := newExecutor(t)

	batch := exec.ExecuteBatch(BatchRequest{
		Mode:  BatchTransactional,
		Owner: "agent-1",
		Commands: []Command{
			{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "Good"},
			{Op: CmdDelete, TargetRef: Ref{ID: "missing"}},
		},
	})

	assert.False(t, batch.OK)
	assert.True(t, batch.RolledBack)
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, uint64(1), batch.Revision)
	assert.Equal(t, uint64(1), g.GetRevision())
	assert.Equal(t, 404, batch.HTTPStatus())
}

func TestExecuteBatchContinueOnErrorAppliesRest(t *testing.T) {
	exec, g, wsID := newExecutor(t)

	batch := exec.ExecuteBatch(BatchRequest{
		Mode:  BatchContinueOnError,
		Owner: "agent-1",
		Commands: []Command{
			{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "Good"},
			{Op: CmdDelete, TargetRef: Ref{ID: "missing"}},
		},
	})

	assert.False(t, batch.OK)
	assert.False(t, batch.RolledBack)
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, uint64(2), g.GetRevision())
	assert.Equal(t, 207, batch.HTTPStatus())
}

func TestExecuteBatchAllSucceed(t *testing.T) {
	exec, _, wsID := newExecutor(t)

	batch := exec.ExecuteBatch(BatchRequest{
		Mode:  BatchContinueOnError,
		Owner: "agent-1",
		Commands: []Command{
			{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "A"},
			{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "B"},
		},
	})
	assert.True(t, batch.OK)
	assert.Equal(t, 200, batch.HTTPStatus())
}

func TestExecuteBatchStopOnErrorStopsWithoutRollback(t *testing.T) {
	exec, g, wsID := newExecutor(t)

	batch := exec.ExecuteBatch(BatchRequest{
		Mode:  BatchStopOnError,
		Owner: "agent-1",
		Commands: []Command{
			{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "Good"},
			{Op: CmdDelete, TargetRef: Ref{ID: "missing"}},
			{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "NeverRuns"},
		},
	})

	assert.False(t, batch.OK)
	assert.False(t, batch.RolledBack)
	assert.Equal(t, 1, batch.Succeeded)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Results, 2, "the third command must not run after the second fails")
	assert.Equal(t, uint64(2), g.GetRevision(), "the first command's effect stays committed")
}

func TestExecuteBatchTransactionalSuppressesPerCommandBroadcastUntilCommitted(t *testing.T) {
	exec, _, wsID := newExecutor(t)

	var batchFired bool
	var batchChanges int
	exec.OnCommitted = func(changes []model.Change, revision uint64) {
		t.Fatal("OnCommitted must not fire per sub-command inside a transactional batch")
	}
	exec.OnBatchCommitted = func(changes []model.Change, revision uint64) {
		batchFired = true
		batchChanges = len(changes)
	}

	batch := exec.ExecuteBatch(BatchRequest{
		Mode:  BatchTransactional,
		Owner: "agent-1",
		Commands: []Command{
			{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "A"},
			{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "B"},
		},
	})

	require.True(t, batch.OK)
	assert.True(t, batchFired)
	assert.Equal(t, 2, batchChanges)
}

func TestExecuteBatchTransactionalRollbackNeverFiresOnBatchCommitted(t *testing.T) {
	exec, _, wsID := newExecutor(t)

	exec.OnCommitted = func(changes []model.Change, revision uint64) {
		t.Fatal("OnCommitted must not fire per sub-command inside a transactional batch")
	}
	exec.OnBatchCommitted = func(changes []model.Change, revision uint64) {
		t.Fatal("OnBatchCommitted must not fire when the batch rolled back")
	}

	batch := exec.ExecuteBatch(BatchRequest{
		Mode:  BatchTransactional,
		Owner: "agent-1",
		Commands: []Command{
			{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "Good"},
			{Op: CmdDelete, TargetRef: Ref{ID: "missing"}},
		},
	})

	assert.True(t, batch.RolledBack)
}

func TestExecuteBatchRevisionMismatch(t *testing.T) {
	exec, _, _ := newExecutor(t)
	stale := uint64(999)

	batch := exec.ExecuteBatch(BatchRequest{BaseRev: &stale})
	assert.False(t, batch.OK)
	assert.Equal(t, 1, batch.Failed)
	require.Len(t, batch.Results, 1)
	assert.Equal(t, ReasonRevisionMismatch, batch.Results[0].Conflict.Reason)
}

func TestBatchSoleFailureReasonLockedMapsTo423(t *testing.T) {
	exec, _, wsID := newExecutor(t)
	exec.Locks.Acquire([]string{"Workspace.Taken"}, "other-agent", time.Minute)

	batch := exec.ExecuteBatch(BatchRequest{
		Mode:  BatchTransactional,
		Owner: "agent-1",
		Commands: []Command{
			{Op: CmdCreate, ParentRef: Ref{ID: wsID}, ClassName: "Part", Name: "Taken"},
		},
	})
	assert.True(t, batch.RolledBack)
	assert.Equal(t, 423, batch.HTTPStatus())
}
