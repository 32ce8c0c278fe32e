// Package model defines the data types shared by every scene-graph
// component: instances, property values, snapshots, and pending changes.
package model

import (
	"fmt"
	"math"
)

// ValueKind tags the variant carried by a Value.
type ValueKind string

// Value kinds. Schema inference ranks them (highest first):
// enum > reference > struct > primitive > readonly > unknown.
const (
	KindString    ValueKind = "string"
	KindNumber    ValueKind = "number"
	KindBool      ValueKind = "bool"
	KindNull      ValueKind = "null"
	KindStruct    ValueKind = "struct"
	KindEnum      ValueKind = "Enum"
	KindReference ValueKind = "reference"
	KindReadonly  ValueKind = "readonly" // opaque-unsupported marker
)

// StructShape names the fixed set of supported struct variants.
type StructShape string

// Supported struct shapes.
const (
	StructVector2      StructShape = "Vector2"
	StructVector3      StructShape = "Vector3"
	StructCFrame       StructShape = "CFrame"
	StructColor3       StructShape = "Color3"
	StructUDim         StructShape = "UDim"
	StructUDim2        StructShape = "UDim2"
	StructBrickColor   StructShape = "BrickColor"
	StructNumberRange  StructShape = "NumberRange"
	StructRect         StructShape = "Rect"
)

// Value is the tagged union described in spec.md §3.
//
// Exactly one of the typed fields is meaningful for a given Kind; the
// others are zero. A Value is compared with Equal, never with ==,
// because Struct/Enum/Fields carry maps/slices.
type Value struct {
	Kind ValueKind

	// KindString
	Str string
	// KindNumber
	Num float64
	// KindBool
	Bool bool

	// KindStruct
	Shape  StructShape
	Fields map[string]float64 // numeric components, e.g. {"X":1,"Y":2,"Z":3}
	Name   string             // for BrickColor: the color name component

	// KindEnum
	EnumType   string
	EnumValue  int
	EnumName   string

	// KindReference
	RefPath []string
	RefID   string

	// KindReadonly carries no payload; presence of Kind==KindReadonly is enough.
}

// Null returns the canonical null value.
func Null() Value { return Value{Kind: KindNull} }

// String constructs a string value.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number constructs a number value. It does not check finiteness
// itself; schema validation (ValidatePropertyUpdate) rejects NaN/Inf.
func Number(n float64) Value { return Value{Kind: KindNumber, Num: n} }

// Bool constructs a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Struct constructs a struct value of the given shape.
func Struct(shape StructShape, fields map[string]float64) Value {
	return Value{Kind: KindStruct, Shape: shape, Fields: fields}
}

// Enum constructs an enum value.
func Enum(enumType string, value int, name string) Value {
	return Value{Kind: KindEnum, EnumType: enumType, EnumValue: value, EnumName: name}
}

// Reference constructs a reference value by path, id, or both.
func Reference(path []string, id string) Value {
	return Value{Kind: KindReference, RefPath: path, RefID: id}
}

// Readonly constructs the opaque-unsupported marker.
func Readonly() Value { return Value{Kind: KindReadonly} }

// IsFinite reports whether a number Value holds a finite value.
func (v Value) IsFinite() bool {
	return v.Kind == KindNumber && !math.IsNaN(v.Num) && !math.IsInf(v.Num, 0)
}

// Equal reports deep structural equality over the tagged union, used
// by delta detection (spec.md §4.1) to decide whether a property
// changed.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindNull, KindReadonly:
		return true
	case KindString:
		return v.Str == o.Str
	case KindNumber:
		return v.Num == o.Num
	case KindBool:
		return v.Bool == o.Bool
	case KindStruct:
		if v.Shape != o.Shape || v.Name != o.Name {
			return false
		}
		return equalFloatMaps(v.Fields, o.Fields)
	case KindEnum:
		return v.EnumType == o.EnumType && v.EnumValue == o.EnumValue && v.EnumName == o.EnumName
	case KindReference:
		return v.RefID == o.RefID && equalStringSlices(v.RefPath, o.RefPath)
	default:
		return false
	}
}

func equalFloatMaps(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || av != bv {
			return false
		}
	}
	return true
}

func equalStringSlices(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// TagString returns the observed "type tag" used by the schema inferer
// for its value-types set (e.g. "number", "Vector3", "Enum").
func (v Value) TagString() string {
	switch v.Kind {
	case KindStruct:
		return string(v.Shape)
	case KindEnum:
		return string(KindEnum)
	default:
		return string(v.Kind)
	}
}

// String implements fmt.Stringer for diagnostics.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindString:
		return fmt.Sprintf("%q", v.Str)
	case KindNumber:
		return fmt.Sprintf("%g", v.Num)
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindStruct:
		return fmt.Sprintf("%s%v", v.Shape, v.Fields)
	case KindEnum:
		return fmt.Sprintf("%s.%s(%d)", v.EnumType, v.EnumName, v.EnumValue)
	case KindReference:
		if v.RefID != "" {
			return fmt.Sprintf("ref(id=%s)", v.RefID)
		}
		return fmt.Sprintf("ref(path=%v)", v.RefPath)
	case KindReadonly:
		return "<unsupported>"
	default:
		return "<unknown>"
	}
}
