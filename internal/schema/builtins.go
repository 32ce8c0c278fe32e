package schema

// Built-in strict constraint tables (spec.md §4.3): these override
// whatever the observed values alone would imply, because a handful of
// well-known scene-graph properties have fixed, documented ranges
// regardless of what's been seen in this particular tree.

var builtinNumeric = map[string]NumericConstraint{
	"Transparency": {Min: ptrF(0), Max: ptrF(1)},
	"Reflectance":  {Min: ptrF(0), Max: ptrF(1)},
}

var builtinString = map[string]StringConstraint{
	"Name": {MinLength: ptrI(1)},
}

var builtinEnum = map[string]EnumConstraint{
	"Material": {AllowedNames: []string{"Plastic", "Wood", "Metal", "Glass", "Concrete", "Neon", "Ice"}},
}
