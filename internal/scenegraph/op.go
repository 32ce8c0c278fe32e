package scenegraph

import "github.com/uxplima/uxragent/internal/model"

// OpKind enumerates the command union from spec.md §4.6.
type OpKind string

// Op kinds.
const (
	OpCreate   OpKind = "create"
	OpUpdate   OpKind = "update"
	OpRename   OpKind = "rename"
	OpDelete   OpKind = "delete"
	OpReparent OpKind = "reparent"
)

// Op is a single mutation accepted by the shared write path, used by
// both ApplyDelta (editor) and ApplyCommand (agent).
type Op struct {
	Kind OpKind

	// Target resolution: targets are always given by id. commandexec
	// resolves id-or-path refs before building the Op; ApplyDelta
	// callers already know ids.
	TargetID string

	// OpCreate
	NewID      string // optional; synthesized if empty
	ParentID   string
	ClassName  string
	Name       string
	Properties map[string]model.Value

	// OpUpdate
	UpdateProperties map[string]model.Value

	// OpRename
	NewName string

	// OpReparent
	NewParentID string
}

// Result is the outcome of applying a single Op.
type Result struct {
	ID          string
	ResolvedPath []string
	Changes     []model.Change
}

// apply dispatches a single Op to the matching low-level primitive.
// Caller holds g.mu.
func (g *Graph) apply(op Op) (Result, error) {
	switch op.Kind {
	case OpCreate:
		inst, ch, err := g.create(op.NewID, op.ParentID, op.ClassName, op.Name, op.Properties)
		if err != nil {
			return Result{}, err
		}
		return Result{ID: inst.ID, ResolvedPath: inst.Path, Changes: []model.Change{ch}}, nil

	case OpUpdate:
		var changes []model.Change
		for prop, val := range op.UpdateProperties {
			ch, err := g.update(op.TargetID, prop, val)
			if err != nil {
				return Result{}, err
			}
			changes = append(changes, ch)
		}
		inst, ok := g.instances[op.TargetID]
		if !ok {
			return Result{}, ErrNotFound
		}
		return Result{ID: inst.ID, ResolvedPath: inst.Path, Changes: changes}, nil

	case OpRename:
		ch, err := g.rename(op.TargetID, op.NewName)
		if err != nil {
			return Result{}, err
		}
		inst := g.instances[op.TargetID]
		return Result{ID: inst.ID, ResolvedPath: inst.Path, Changes: []model.Change{ch}}, nil

	case OpReparent:
		ch, err := g.reparent(op.TargetID, op.NewParentID)
		if err != nil {
			return Result{}, err
		}
		inst := g.instances[op.TargetID]
		return Result{ID: inst.ID, ResolvedPath: inst.Path, Changes: []model.Change{ch}}, nil

	case OpDelete:
		changes, err := g.delete(op.TargetID)
		if err != nil {
			return Result{}, err
		}
		return Result{ID: op.TargetID, Changes: changes}, nil

	default:
		return Result{}, ErrNotFound
	}
}
