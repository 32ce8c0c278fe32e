// Package schema infers per-class property shapes from observed scene
// graph instances and validates proposed property updates against
// them (spec.md §4.3).
package schema

import (
	"sort"

	"github.com/uxplima/uxragent/internal/model"
)

// Kind precedence for the "canonical" kind when a property is
// observed with mixed variants across instances: enum > reference >
// struct > primitive > readonly > unknown.
var kindRank = map[model.ValueKind]int{
	model.KindEnum:      5,
	model.KindReference: 4,
	model.KindStruct:    3,
	model.KindString:    2,
	model.KindNumber:    2,
	model.KindBool:      2,
	model.KindNull:      2,
	model.KindReadonly:  1,
}

// PropertySchema is the inferred shape of one property on one class.
type PropertySchema struct {
	Name       string   `json:"name"`
	Kind       string   `json:"kind"`
	ValueTypes []string `json:"valueTypes"`
	Writable   bool     `json:"writable"`
	Nullable   bool     `json:"nullable"`

	Numeric *NumericConstraint `json:"numeric,omitempty"`
	String  *StringConstraint  `json:"string,omitempty"`
	Enum    *EnumConstraint    `json:"enum,omitempty"`
}

// NumericConstraint bounds a numeric property.
type NumericConstraint struct {
	Min     *float64 `json:"min,omitempty"`
	Max     *float64 `json:"max,omitempty"`
	Integer bool     `json:"integer"`
}

// StringConstraint bounds string length.
type StringConstraint struct {
	MinLength *int `json:"minLength,omitempty"`
	MaxLength *int `json:"maxLength,omitempty"`
}

// EnumConstraint names the allowed enum names/values.
type EnumConstraint struct {
	AllowedNames  []string `json:"allowedNames,omitempty"`
	AllowedValues []int    `json:"allowedValues,omitempty"`
}

// ClassSchema is the full inferred shape for one class.
type ClassSchema struct {
	ClassName  string                     `json:"className"`
	Properties map[string]*PropertySchema `json:"properties"`
}

// Schema is the inferred shape across every observed class, or a
// single-class filter (spec.md §4.2 className query flag).
type Schema struct {
	Classes map[string]*ClassSchema `json:"classes"`
}

// aggregator accumulates observations for one (class, property) pair.
type aggregator struct {
	kinds      map[model.ValueKind]bool
	tags       map[string]bool
	nullable   bool
	readonlySeen bool

	numMin, numMax *float64
	allInteger     bool
	anyNumeric     bool

	strMin, strMax *int
	anyString      bool

	enumNames  map[string]bool
	enumValues map[int]bool
}

func newAggregator() *aggregator {
	return &aggregator{
		kinds:      make(map[model.ValueKind]bool),
		tags:       make(map[string]bool),
		allInteger: true,
		enumNames:  make(map[string]bool),
		enumValues: make(map[int]bool),
	}
}

// Infer builds the schema for every class observed in instances,
// optionally filtered to a single class name.
func Infer(instances []*model.Instance, classFilter string) *Schema {
	classProps := make(map[string]map[string]*aggregator)

	for _, inst := range instances {
		if classFilter != "" && inst.ClassName != classFilter {
			continue
		}
		props, ok := classProps[inst.ClassName]
		if !ok {
			props = make(map[string]*aggregator)
			classProps[inst.ClassName] = props
		}
		for name, val := range inst.Properties {
			agg, ok := props[name]
			if !ok {
				agg = newAggregator()
				props[name] = agg
			}
			observe(agg, name, val)
		}
	}

	out := &Schema{Classes: make(map[string]*ClassSchema, len(classProps))}
	for className, props := range classProps {
		cs := &ClassSchema{ClassName: className, Properties: make(map[string]*PropertySchema, len(props))}
		for name, agg := range props {
			cs.Properties[name] = agg.finalize(name)
		}
		out.Classes[className] = cs
	}
	return out
}

func observe(agg *aggregator, name string, val model.Value) {
	agg.kinds[val.Kind] = true
	agg.tags[val.TagString()] = true

	if val.Kind == model.KindNull {
		agg.nullable = true
	}
	if val.Kind == model.KindReadonly {
		agg.readonlySeen = true
	}
	if model.ReadonlyProperties[name] {
		agg.readonlySeen = true
	}

	if val.Kind == model.KindNumber {
		agg.anyNumeric = true
		n := val.Num
		if agg.numMin == nil || n < *agg.numMin {
			agg.numMin = ptrF(n)
		}
		if agg.numMax == nil || n > *agg.numMax {
			agg.numMax = ptrF(n)
		}
		if n != float64(int64(n)) {
			agg.allInteger = false
		}
	}

	if val.Kind == model.KindString {
		agg.anyString = true
		l := len(val.Str)
		if agg.strMin == nil || l < *agg.strMin {
			agg.strMin = ptrI(l)
		}
		if agg.strMax == nil || l > *agg.strMax {
			agg.strMax = ptrI(l)
		}
	}

	if val.Kind == model.KindEnum {
		agg.enumNames[val.EnumName] = true
		agg.enumValues[val.EnumValue] = true
	}
}

func (agg *aggregator) canonicalKind() model.ValueKind {
	best := model.ValueKind("unknown")
	bestRank := -1
	for k := range agg.kinds {
		if r := kindRank[k]; r > bestRank {
			bestRank = r
			best = k
		}
	}
	return best
}

func (agg *aggregator) finalize(name string) *PropertySchema {
	kind := agg.canonicalKind()

	tags := make([]string, 0, len(agg.tags))
	for t := range agg.tags {
		tags = append(tags, t)
	}
	sort.Strings(tags)

	writable := !agg.readonlySeen && !model.ReadonlyProperties[name]

	ps := &PropertySchema{
		Name:       name,
		Kind:       string(kind),
		ValueTypes: tags,
		Writable:   writable,
		Nullable:   agg.nullable,
	}

	if builtin, ok := builtinNumeric[name]; ok {
		ps.Numeric = &builtin
	} else if agg.anyNumeric {
		ps.Numeric = &NumericConstraint{Min: agg.numMin, Max: agg.numMax, Integer: agg.allInteger}
	}

	if builtin, ok := builtinString[name]; ok {
		ps.String = &builtin
	} else if agg.anyString {
		ps.String = &StringConstraint{MinLength: agg.strMin, MaxLength: agg.strMax}
	}

	if builtin, ok := builtinEnum[name]; ok {
		ps.Enum = &builtin
	} else if kind == model.KindEnum {
		names := make([]string, 0, len(agg.enumNames))
		for n := range agg.enumNames {
			names = append(names, n)
		}
		sort.Strings(names)
		values := make([]int, 0, len(agg.enumValues))
		for v := range agg.enumValues {
			values = append(values, v)
		}
		sort.Ints(values)
		ps.Enum = &EnumConstraint{AllowedNames: names, AllowedValues: values}
	}

	return ps
}

func ptrF(v float64) *float64 { return &v }
func ptrI(v int) *int         { return &v }
