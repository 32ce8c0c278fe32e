package scenegraph

import "github.com/uxplima/uxragent/internal/model"

// The functions in this file are the low-level tree primitives shared
// by every write path (editor full/delta sync, agent command executor
// — spec.md §4.1: "deltas from editor and agent share one write path").
// Callers must hold g.mu for writing and are responsible for revision
// accounting and pending-change bookkeeping.

// create inserts a new instance under parentID with a (possibly
// suffixed) unique name, recomputes paths, and returns the final
// Change record.
func (g *Graph) create(id, parentID, className, wantedName string, properties map[string]model.Value) (*model.Instance, model.Change, error) {
	if parentID != "" {
		if _, ok := g.instances[parentID]; !ok {
			return nil, model.Change{}, ErrParentNotFound
		}
	}
	if id == "" {
		id = g.nextSyntheticID()
	}
	name := g.resolveUniqueName(g.siblingIDsOf(parentID), "", wantedName)

	props := make(map[string]model.Value, len(properties))
	for k, v := range properties {
		props[k] = v
	}

	inst := &model.Instance{
		ID:         id,
		ClassName:  className,
		Name:       name,
		ParentID:   parentID,
		Properties: props,
	}
	g.instances[id] = inst

	if parentID == "" {
		g.rootIDs = append(g.rootIDs, id)
	} else {
		parent := g.instances[parentID]
		parent.ChildIDs = append(parent.ChildIDs, id)
	}

	g.recomputePaths(id)

	ch := model.Change{
		Kind:       model.ChangeCreate,
		ID:         id,
		ClassName:  className,
		Name:       name,
		ParentID:   parentID,
		NewPath:    append([]string(nil), inst.Path...),
		Properties: props,
	}
	return inst, ch, nil
}

// update sets a single property on id, returning the Change record.
// The value is stored as given; ReplaceFull's diff passes model.Null()
// for a property that disappeared (update-to-null, spec.md §4.1).
func (g *Graph) update(id, property string, value model.Value) (model.Change, error) {
	inst, ok := g.instances[id]
	if !ok {
		return model.Change{}, ErrNotFound
	}
	if inst.Properties == nil {
		inst.Properties = make(map[string]model.Value)
	}
	inst.Properties[property] = value
	return model.Change{
		Kind:     model.ChangeUpdate,
		ID:       id,
		Property: property,
		Value:    value,
		NewPath:  append([]string(nil), inst.Path...),
	}, nil
}

// rename gives id a new (possibly suffixed) name within its current parent.
func (g *Graph) rename(id, wantedName string) (model.Change, error) {
	inst, ok := g.instances[id]
	if !ok {
		return model.Change{}, ErrNotFound
	}
	oldPath := append([]string(nil), inst.Path...)
	name := g.resolveUniqueName(g.siblingIDsOf(inst.ParentID), id, wantedName)
	inst.Name = name
	g.recomputePaths(id)
	return model.Change{
		Kind:    model.ChangeReparent,
		ID:      id,
		Name:    name,
		OldPath: oldPath,
		NewPath: append([]string(nil), inst.Path...),
	}, nil
}

// reparent moves id to be a child of newParentID (possibly renaming it
// to resolve a name conflict in the destination), preserving id
// continuity (spec.md §4.1).
func (g *Graph) reparent(id, newParentID string) (model.Change, error) {
	inst, ok := g.instances[id]
	if !ok {
		return model.Change{}, ErrNotFound
	}
	if newParentID != "" {
		if _, ok := g.instances[newParentID]; !ok {
			return model.Change{}, ErrParentNotFound
		}
		if g.isDescendant(newParentID, id) || newParentID == id {
			return model.Change{}, ErrCyclicReparent
		}
	}

	oldPath := append([]string(nil), inst.Path...)

	// Detach from current parent's child list / rootIDs.
	g.removeFromParentList(inst.ID, inst.ParentID)

	name := g.resolveUniqueName(g.siblingIDsOf(newParentID), "", inst.Name)
	inst.Name = name
	inst.ParentID = newParentID

	if newParentID == "" {
		g.rootIDs = append(g.rootIDs, id)
	} else {
		parent := g.instances[newParentID]
		parent.ChildIDs = append(parent.ChildIDs, id)
	}

	g.recomputePaths(id)

	return model.Change{
		Kind:     model.ChangeReparent,
		ID:       id,
		Name:     name,
		ParentID: newParentID,
		OldPath:  oldPath,
		NewPath:  append([]string(nil), inst.Path...),
	}, nil
}

// isDescendant reports whether candidateID is id or a descendant of id.
func (g *Graph) isDescendant(candidateID, id string) bool {
	if candidateID == id {
		return true
	}
	inst, ok := g.instances[candidateID]
	if !ok {
		return false
	}
	for inst.ParentID != "" {
		if inst.ParentID == id {
			return true
		}
		next, ok := g.instances[inst.ParentID]
		if !ok {
			return false
		}
		inst = next
	}
	return false
}

func (g *Graph) removeFromParentList(id, parentID string) {
	if parentID == "" {
		g.rootIDs = removeString(g.rootIDs, id)
		return
	}
	if parent, ok := g.instances[parentID]; ok {
		parent.ChildIDs = removeString(parent.ChildIDs, id)
	}
}

func removeString(s []string, target string) []string {
	out := s[:0:0]
	for _, v := range s {
		if v != target {
			out = append(out, v)
		}
	}
	return out
}

// delete removes id and every descendant (cascade, spec.md §3
// lifecycles), returning one Change per removed instance (deepest-last
// order doesn't matter for the Change list, only for index cleanup).
func (g *Graph) delete(id string) ([]model.Change, error) {
	inst, ok := g.instances[id]
	if !ok {
		return nil, ErrNotFound
	}

	var toRemove []*model.Instance
	var collect func(i *model.Instance)
	collect = func(i *model.Instance) {
		toRemove = append(toRemove, i)
		for _, cid := range i.ChildIDs {
			if c, ok := g.instances[cid]; ok {
				collect(c)
			}
		}
	}
	collect(inst)

	g.removeFromParentList(inst.ID, inst.ParentID)

	changes := make([]model.Change, 0, len(toRemove))
	for _, i := range toRemove {
		delete(g.instances, i.ID)
		delete(g.pathToID, pathKey(i.Path))
		changes = append(changes, model.Change{
			Kind:    model.ChangeDelete,
			ID:      i.ID,
			OldPath: append([]string(nil), i.Path...),
		})
	}
	return changes, nil
}
