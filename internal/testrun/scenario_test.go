package testrun

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeRejectsEmptySteps(t *testing.T) {
	_, err := Normalize(RawScenario{})
	require.Error(t, err)
	var nerr *NormalizeError
	require.ErrorAs(t, err, &nerr)
	assert.Equal(t, "steps", nerr.Field)
}

func TestNormalizeAppliesDefaults(t *testing.T) {
	s, err := Normalize(RawScenario{Steps: []Step{{Type: "update"}}})
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxSteps, s.Safety.MaxSteps)
	assert.Equal(t, DefaultExecutionTimeoutMs, s.Safety.ExecutionTimeoutMs)
	assert.Equal(t, RuntimePlay, s.Runtime.Mode)
	assert.True(t, s.Isolation)
}

func TestNormalizeClampsMaxStepsToHardCeiling(t *testing.T) {
	safety := &Safety{MaxSteps: 5000}
	s, err := Normalize(RawScenario{Steps: []Step{{Type: "update"}}, Safety: safety})
	require.NoError(t, err)
	assert.Equal(t, HardMaxSteps, s.Safety.MaxSteps)
}

func TestNormalizeRejectsStepsOverMaxSteps(t *testing.T) {
	safety := &Safety{MaxSteps: 1}
	_, err := Normalize(RawScenario{
		Steps:  []Step{{Type: "update"}, {Type: "update"}},
		Safety: safety,
	})
	require.Error(t, err)
}

func TestNormalizeClampsExecutionTimeout(t *testing.T) {
	s, err := Normalize(RawScenario{
		Steps:  []Step{{Type: "update"}},
		Safety: &Safety{ExecutionTimeoutMs: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, MinExecutionTimeoutMs, s.Safety.ExecutionTimeoutMs)

	s, err = Normalize(RawScenario{
		Steps:  []Step{{Type: "update"}},
		Safety: &Safety{ExecutionTimeoutMs: MaxExecutionTimeoutMs * 10},
	})
	require.NoError(t, err)
	assert.Equal(t, MaxExecutionTimeoutMs, s.Safety.ExecutionTimeoutMs)
}

func TestNormalizeLegacyServerRuntimeAliasesToRun(t *testing.T) {
	s, err := Normalize(RawScenario{
		Steps:   []Step{{Type: "update"}},
		Runtime: &Runtime{Mode: "server"},
	})
	require.NoError(t, err)
	assert.Equal(t, RuntimeRun, s.Runtime.Mode)
}

func TestNormalizeRejectsUnknownRuntimeMode(t *testing.T) {
	_, err := Normalize(RawScenario{
		Steps:   []Step{{Type: "update"}},
		Runtime: &Runtime{Mode: "bogus"},
	})
	require.Error(t, err)
}

func TestNormalizeRejectsDestructiveStepsByDefault(t *testing.T) {
	_, err := Normalize(RawScenario{Steps: []Step{{Type: "delete"}}})
	require.Error(t, err)
	var nerr *NormalizeError
	require.ErrorAs(t, err, &nerr)
	assert.Contains(t, nerr.Field, "steps[0]")
}

func TestNormalizeAllowsDestructiveStepsWhenFlagged(t *testing.T) {
	s, err := Normalize(RawScenario{
		Steps:  []Step{{Type: "delete"}, {Type: "reparent"}},
		Safety: &Safety{AllowDestructiveActions: true},
	})
	require.NoError(t, err)
	assert.True(t, s.Safety.AllowDestructiveActions)
}

func TestNormalizeIsolationDefaultsTrueButRespectsExplicitFalse(t *testing.T) {
	off := false
	s, err := Normalize(RawScenario{Steps: []Step{{Type: "update"}}, Isolation: &off})
	require.NoError(t, err)
	assert.False(t, s.Isolation)
}
