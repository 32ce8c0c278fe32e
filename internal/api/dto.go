package api

import "github.com/uxplima/uxragent/internal/model"

// InstanceDTO is the wire shape of one scene-graph node, shared by
// sync, snapshot, and bootstrap responses (spec.md §4.2).
type InstanceDTO struct {
	ID         string                 `json:"id"`
	ClassName  string                 `json:"className"`
	Name       string                 `json:"name"`
	Path       []string               `json:"path"`
	PathString string                 `json:"pathString"`
	ParentID   string                 `json:"parentId,omitempty"`
	ChildIDs   []string               `json:"childIds"`
	Properties map[string]interface{} `json:"properties"`
}

func toInstanceDTO(id, className, name string, path []string, parentID string, childIDs []string, props map[string]model.Value) InstanceDTO {
	return InstanceDTO{
		ID:         id,
		ClassName:  className,
		Name:       name,
		Path:       path,
		PathString: model.PathString(path),
		ParentID:   parentID,
		ChildIDs:   childIDs,
		Properties: valuesToWire(props),
	}
}

func valuesToWire(props map[string]model.Value) map[string]interface{} {
	out := make(map[string]interface{}, len(props))
	for k, v := range props {
		out[k] = valueToWire(v)
	}
	return out
}

// valueToWire renders a tagged model.Value as a plain JSON value,
// preserving enough structure for an agent client to round-trip a
// command back (kind + payload, not a bare scalar).
func valueToWire(v model.Value) map[string]interface{} {
	switch v.Kind {
	case model.KindString:
		return map[string]interface{}{"kind": "string", "value": v.Str}
	case model.KindNumber:
		return map[string]interface{}{"kind": "number", "value": v.Num}
	case model.KindBool:
		return map[string]interface{}{"kind": "bool", "value": v.Bool}
	case model.KindNull:
		return map[string]interface{}{"kind": "null"}
	case model.KindStruct:
		return map[string]interface{}{"kind": string(v.Shape), "fields": v.Fields, "name": v.Name}
	case model.KindEnum:
		return map[string]interface{}{"kind": "Enum", "enumType": v.EnumType, "value": v.EnumValue, "name": v.EnumName}
	case model.KindReference:
		return map[string]interface{}{"kind": "reference", "id": v.RefID, "path": v.RefPath}
	case model.KindReadonly:
		return map[string]interface{}{"kind": "readonly"}
	default:
		return map[string]interface{}{"kind": "unknown"}
	}
}

// wireToValue parses the {kind, ...} wire shape back into a model.Value.
func wireToValue(raw map[string]interface{}) model.Value {
	kind, _ := raw["kind"].(string)
	switch kind {
	case "string":
		s, _ := raw["value"].(string)
		return model.String(s)
	case "number":
		n, _ := raw["value"].(float64)
		return model.Number(n)
	case "bool":
		b, _ := raw["value"].(bool)
		return model.Bool(b)
	case "null", "":
		return model.Null()
	case "Enum":
		et, _ := raw["enumType"].(string)
		name, _ := raw["name"].(string)
		val, _ := raw["value"].(float64)
		return model.Enum(et, int(val), name)
	case "reference":
		id, _ := raw["id"].(string)
		var path []string
		if p, ok := raw["path"].([]interface{}); ok {
			for _, seg := range p {
				if s, ok := seg.(string); ok {
					path = append(path, s)
				}
			}
		}
		return model.Reference(path, id)
	case "readonly":
		return model.Readonly()
	default: // struct shapes: Vector2, Vector3, CFrame, Color3, UDim, UDim2, BrickColor, NumberRange, Rect
		fields := make(map[string]float64)
		if f, ok := raw["fields"].(map[string]interface{}); ok {
			for k, v := range f {
				if n, ok := v.(float64); ok {
					fields[k] = n
				}
			}
		}
		name, _ := raw["name"].(string)
		v := model.Struct(model.StructShape(kind), fields)
		v.Name = name
		return v
	}
}

func wirePropertiesToValues(raw map[string]interface{}) map[string]model.Value {
	out := make(map[string]model.Value, len(raw))
	for k, v := range raw {
		if m, ok := v.(map[string]interface{}); ok {
			out[k] = wireToValue(m)
		}
	}
	return out
}

// ErrorResponse is the envelope for every non-2xx JSON body (spec.md
// §7: "every failure carries an error string and, where applicable, a
// conflict object").
type ErrorResponse struct {
	Error    string      `json:"error"`
	Conflict interface{} `json:"conflict,omitempty"`
}
