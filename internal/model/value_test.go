package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValueEqual(t *testing.T) {
	assert.True(t, String("a").Equal(String("a")))
	assert.False(t, String("a").Equal(String("b")))
	assert.True(t, Number(1.5).Equal(Number(1.5)))
	assert.True(t, Null().Equal(Null()))
	assert.False(t, Null().Equal(String("")))

	v1 := Struct(StructVector3, map[string]float64{"X": 1, "Y": 2, "Z": 3})
	v2 := Struct(StructVector3, map[string]float64{"X": 1, "Y": 2, "Z": 3})
	v3 := Struct(StructVector3, map[string]float64{"X": 1, "Y": 2, "Z": 4})
	assert.True(t, v1.Equal(v2))
	assert.False(t, v1.Equal(v3))

	e1 := Enum("Material", 1, "Plastic")
	e2 := Enum("Material", 1, "Plastic")
	e3 := Enum("Material", 2, "Wood")
	assert.True(t, e1.Equal(e2))
	assert.False(t, e1.Equal(e3))

	r1 := Reference([]string{"Workspace", "Part"}, "id-1")
	r2 := Reference([]string{"Workspace", "Part"}, "id-1")
	assert.True(t, r1.Equal(r2))
}

func TestValueIsFinite(t *testing.T) {
	assert.True(t, Number(1).IsFinite())
	assert.False(t, String("x").IsFinite())
}

func TestValueTagString(t *testing.T) {
	assert.Equal(t, "number", Number(1).TagString())
	assert.Equal(t, "Vector3", Struct(StructVector3, nil).TagString())
	assert.Equal(t, "Enum", Enum("Material", 0, "Plastic").TagString())
}
