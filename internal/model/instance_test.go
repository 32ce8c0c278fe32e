package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInstanceClone(t *testing.T) {
	inst := &Instance{
		ID:        "id-1",
		ClassName: "Part",
		Name:      "Baseplate",
		ParentID:  "id-0",
		Properties: map[string]Value{
			"Transparency": Number(0),
		},
		ChildIDs: []string{"id-2"},
		Path:     []string{"Workspace", "Baseplate"},
	}

	clone := inst.Clone()
	assert.Equal(t, inst.ID, clone.ID)
	assert.Equal(t, inst.Properties, clone.Properties)

	clone.Properties["Transparency"] = Number(1)
	clone.ChildIDs[0] = "mutated"
	clone.Path[0] = "mutated"

	assert.Equal(t, Number(0), inst.Properties["Transparency"])
	assert.Equal(t, "id-2", inst.ChildIDs[0])
	assert.Equal(t, "Workspace", inst.Path[0])
}

func TestInstanceCloneNil(t *testing.T) {
	var inst *Instance
	assert.Nil(t, inst.Clone())
}

func TestPathString(t *testing.T) {
	assert.Equal(t, "", PathString(nil))
	assert.Equal(t, "Workspace", PathString([]string{"Workspace"}))
	assert.Equal(t, "Workspace.Baseplate", PathString([]string{"Workspace", "Baseplate"}))
}

func TestReadonlyProperties(t *testing.T) {
	assert.True(t, ReadonlyProperties["ClassName"])
	assert.False(t, ReadonlyProperties["Transparency"])
}
