package testrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreRejectsInvalidRunID(t *testing.T) {
	s := NewStore(t.TempDir())
	err := s.AppendEvent("../escape", Event{})
	require.Error(t, err)
}

func TestStoreWriteAndReadReport(t *testing.T) {
	s := NewStore(t.TempDir())
	summary := Summary{RunID: "run-1", Status: StatusPassed, AssertionsPassed: 3}

	require.NoError(t, s.WriteReport("run-1", summary))

	got, err := s.ReadReport("run-1")
	require.NoError(t, err)
	assert.Equal(t, summary.RunID, got.RunID)
	assert.Equal(t, summary.Status, got.Status)
	assert.Equal(t, summary.AssertionsPassed, got.AssertionsPassed)
}

func TestStoreAppendEventCreatesLog(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.AppendEvent("run-1", Event{RunID: "run-1", Kind: EventLog, Message: "hello"}))
	require.NoError(t, s.AppendEvent("run-1", Event{RunID: "run-1", Kind: EventLog, Message: "world"}))

	artifacts, err := s.ListArtifacts("run-1")
	require.NoError(t, err)
	assert.Empty(t, artifacts, "events.jsonl is excluded from artifact listing")
}

func TestStoreWriteArtifactDefaultsExtensionAndLabel(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.WriteArtifact("run-1", "", map[string]interface{}{"foo": "bar"}))

	artifacts, err := s.ListArtifacts("run-1")
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Contains(t, artifacts[0], "artifact")
	assert.Contains(t, artifacts[0], ".json")
}

func TestStoreWriteArtifactHonorsExtPayload(t *testing.T) {
	s := NewStore(t.TempDir())
	require.NoError(t, s.WriteArtifact("run-1", "screenshot", map[string]interface{}{"ext": "png"}))

	artifacts, err := s.ListArtifacts("run-1")
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Contains(t, artifacts[0], "screenshot.png")
}

func TestListArtifactsOnMissingRunReturnsEmpty(t *testing.T) {
	s := NewStore(t.TempDir())
	artifacts, err := s.ListArtifacts("never-created")
	require.NoError(t, err)
	assert.Empty(t, artifacts)
}
