package schema

import (
	"fmt"
	"strings"

	"github.com/uxplima/uxragent/internal/model"
)

// ValidationError names the offending property and the constraint it
// violated (spec.md §4.3 validatePropertyUpdate).
type ValidationError struct {
	Property string
	Expected string
	Actual   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("property %q: expected %s, got %s", e.Property, e.Expected, e.Actual)
}

// ValidatePropertyUpdate runs before any mutation, checking name,
// writability, and the built-in/observed constraints for the named
// property on className. schema may be nil (no prior observations);
// in that case only the property-name-dot, writability, finiteness and
// built-in checks apply.
func ValidatePropertyUpdate(className, name string, value model.Value, full *Schema) error {
	if strings.Contains(name, ".") {
		return &ValidationError{Property: name, Expected: "no dots in property name", Actual: name}
	}

	if model.ReadonlyProperties[name] {
		return &ValidationError{Property: name, Expected: "writable property", Actual: "readonly"}
	}
	if value.Kind == model.KindReadonly {
		return &ValidationError{Property: name, Expected: "writable property", Actual: "opaque-unsupported value"}
	}
	if value.Kind == model.KindNumber && !value.IsFinite() {
		return &ValidationError{Property: name, Expected: "finite number", Actual: fmt.Sprint(value.Num)}
	}

	if nc, ok := builtinNumeric[name]; ok {
		if err := checkNumeric(name, value, nc); err != nil {
			return err
		}
	}
	if sc, ok := builtinString[name]; ok {
		if err := checkString(name, value, sc); err != nil {
			return err
		}
	}
	if ec, ok := builtinEnum[name]; ok {
		if err := checkEnum(name, value, ec); err != nil {
			return err
		}
	}

	if full == nil {
		return nil
	}
	cs, ok := full.Classes[className]
	if !ok {
		return nil
	}
	ps, ok := cs.Properties[name]
	if !ok {
		return nil
	}
	if !ps.Writable {
		return &ValidationError{Property: name, Expected: "writable property", Actual: "read-only per observed schema"}
	}
	if ps.Numeric != nil {
		if err := checkNumeric(name, value, *ps.Numeric); err != nil {
			return err
		}
	}
	if ps.String != nil {
		if err := checkString(name, value, *ps.String); err != nil {
			return err
		}
	}
	if ps.Enum != nil {
		if err := checkEnum(name, value, *ps.Enum); err != nil {
			return err
		}
	}
	return nil
}

func checkNumeric(name string, value model.Value, nc NumericConstraint) error {
	if value.Kind != model.KindNumber {
		return nil
	}
	if nc.Min != nil && value.Num < *nc.Min {
		return &ValidationError{Property: name, Expected: fmt.Sprintf(">= %g", *nc.Min), Actual: fmt.Sprintf("%g", value.Num)}
	}
	if nc.Max != nil && value.Num > *nc.Max {
		return &ValidationError{Property: name, Expected: fmt.Sprintf("<= %g", *nc.Max), Actual: fmt.Sprintf("%g", value.Num)}
	}
	if nc.Integer && value.Num != float64(int64(value.Num)) {
		return &ValidationError{Property: name, Expected: "integer", Actual: fmt.Sprintf("%g", value.Num)}
	}
	return nil
}

func checkString(name string, value model.Value, sc StringConstraint) error {
	if value.Kind != model.KindString {
		return nil
	}
	l := len(value.Str)
	if sc.MinLength != nil && l < *sc.MinLength {
		return &ValidationError{Property: name, Expected: fmt.Sprintf("length >= %d", *sc.MinLength), Actual: fmt.Sprintf("length %d", l)}
	}
	if sc.MaxLength != nil && l > *sc.MaxLength {
		return &ValidationError{Property: name, Expected: fmt.Sprintf("length <= %d", *sc.MaxLength), Actual: fmt.Sprintf("length %d", l)}
	}
	return nil
}

func checkEnum(name string, value model.Value, ec EnumConstraint) error {
	if value.Kind != model.KindEnum {
		return nil
	}
	if len(ec.AllowedNames) > 0 {
		ok := false
		for _, n := range ec.AllowedNames {
			if n == value.EnumName {
				ok = true
				break
			}
		}
		if !ok {
			return &ValidationError{Property: name, Expected: fmt.Sprintf("one of %v", ec.AllowedNames), Actual: value.EnumName}
		}
	}
	if len(ec.AllowedValues) > 0 {
		ok := false
		for _, v := range ec.AllowedValues {
			if v == value.EnumValue {
				ok = true
				break
			}
		}
		if !ok {
			return &ValidationError{Property: name, Expected: fmt.Sprintf("one of %v", ec.AllowedValues), Actual: fmt.Sprintf("%d", value.EnumValue)}
		}
	}
	return nil
}
