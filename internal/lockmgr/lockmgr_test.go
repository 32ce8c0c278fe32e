package lockmgr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireAllOrNothing(t *testing.T) {
	m := New()
	ok, conflict := m.Acquire([]string{"Workspace.A", "Workspace.B"}, "agent-1", time.Second)
	require.True(t, ok)
	require.Nil(t, conflict)

	ok, conflict = m.Acquire([]string{"Workspace.B", "Workspace.C"}, "agent-2", time.Second)
	assert.False(t, ok)
	require.NotNil(t, conflict)
	assert.Equal(t, "Workspace.B", conflict.RequestedPath)
	assert.Equal(t, "agent-1", conflict.BlockingOwner)

	locked := m.ActiveLocks(0)
	assert.Len(t, locked, 2)
}

func TestAcquireSameOwnerReacquires(t *testing.T) {
	m := New()
	ok, _ := m.Acquire([]string{"Workspace.A"}, "agent-1", time.Second)
	require.True(t, ok)

	ok, conflict := m.Acquire([]string{"Workspace.A"}, "agent-1", time.Second)
	assert.True(t, ok)
	assert.Nil(t, conflict)
}

func TestPrefixOverlapConflicts(t *testing.T) {
	m := New()
	ok, _ := m.Acquire([]string{"Workspace.Model"}, "agent-1", time.Second)
	require.True(t, ok)

	ok, conflict := m.Acquire([]string{"Workspace.Model.Part"}, "agent-2", time.Second)
	assert.False(t, ok)
	require.NotNil(t, conflict)
}

func TestReleaseDropsOwnerLocks(t *testing.T) {
	m := New()
	m.Acquire([]string{"Workspace.A"}, "agent-1", time.Second)
	m.Release("agent-1")
	assert.Empty(t, m.ActiveLocks(0))
}

func TestExpiredLocksArePruned(t *testing.T) {
	m := New()
	ok, _ := m.Acquire([]string{"Workspace.A"}, "agent-1", time.Millisecond)
	require.True(t, ok)

	time.Sleep(5 * time.Millisecond)

	ok, conflict := m.Acquire([]string{"Workspace.A"}, "agent-2", time.Second)
	assert.True(t, ok)
	assert.Nil(t, conflict)
}

func TestContentionLogRecordsRejections(t *testing.T) {
	m := New()
	m.Acquire([]string{"Workspace.A"}, "agent-1", time.Second)
	m.Acquire([]string{"Workspace.A"}, "agent-2", time.Second)

	log := m.ContentionLog(0)
	require.Len(t, log, 1)
	assert.Equal(t, "Workspace.A", log[0].RequestedPath)
	assert.Equal(t, "agent-1", log[0].BlockingOwner)
}
