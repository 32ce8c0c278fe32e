package scenegraph

import "github.com/uxplima/uxragent/internal/model"

// recomputePaths recalculates Path for id and every descendant,
// reinserting each into pathToID. Called after any structural change
// (create, delete, rename, reparent) — spec.md §4.1: "Cascading paths
// of all descendants are recomputed in one pass."
func (g *Graph) recomputePaths(id string) {
	inst, ok := g.instances[id]
	if !ok {
		return
	}
	var parentPath []string
	if inst.ParentID != "" {
		if parent, ok := g.instances[inst.ParentID]; ok {
			parentPath = parent.Path
		}
	}
	g.setPath(inst, append(append([]string(nil), parentPath...), inst.Name))
}

// setPath assigns path to inst, updates the index, and recurses into children.
func (g *Graph) setPath(inst *model.Instance, path []string) {
	if len(inst.Path) > 0 {
		delete(g.pathToID, pathKey(inst.Path))
	}
	inst.Path = path
	g.pathToID[pathKey(path)] = inst.ID

	for _, childID := range inst.ChildIDs {
		if child, ok := g.instances[childID]; ok {
			g.setPath(child, append(append([]string(nil), path...), child.Name))
		}
	}
}

// GetInstanceByPath returns a clone of the instance at path, or false.
func (g *Graph) GetInstanceByPath(path []string) (*model.Instance, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.pathToID[pathKey(path)]
	if !ok {
		return nil, false
	}
	inst, ok := g.instances[id]
	if !ok {
		return nil, false
	}
	return inst.Clone(), true
}

// GetInstanceByID returns a clone of the instance with the given id, or false.
func (g *Graph) GetInstanceByID(id string) (*model.Instance, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	inst, ok := g.instances[id]
	if !ok {
		return nil, false
	}
	return inst.Clone(), true
}

// GetPathByID returns the current path for id, or false if unknown.
func (g *Graph) GetPathByID(id string) ([]string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	inst, ok := g.instances[id]
	if !ok {
		return nil, false
	}
	return append([]string(nil), inst.Path...), true
}

// GetIndexedInstances returns the ordered flat listing: parent before
// child, siblings in child-list order (spec.md §4.1).
func (g *Graph) GetIndexedInstances() []*model.Instance {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*model.Instance, 0, len(g.instances))
	var walk func(ids []string)
	walk = func(ids []string) {
		for _, id := range ids {
			inst, ok := g.instances[id]
			if !ok {
				continue
			}
			out = append(out, inst.Clone())
			walk(inst.ChildIDs)
		}
	}
	walk(g.rootIDs)
	return out
}
