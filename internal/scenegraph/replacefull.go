package scenegraph

import "github.com/uxplima/uxragent/internal/model"

// IncomingInstance is the wire shape of a single node in a full-tree
// push from the editor (spec.md §4.1 replaceFull).
type IncomingInstance struct {
	ID         string
	ClassName  string
	Name       string
	ParentID   string // "" for root
	Properties map[string]model.Value
}

// ReplaceFull accepts a complete tree from the editor, diffs it
// against current state, applies the diff as a single batch (one
// revision bump), and returns the observed changes (spec.md §4.1).
//
// Delta detection rules:
//   - create for every new path absent from the old index
//   - delete for every old path absent from the new
//   - update(property) for every property whose value differs
//     (deep-compare); a property present before but missing now is a
//     surfaced update-to-null
//
// Delta detection is total: any well-formed tree is accepted.
func (g *Graph) ReplaceFull(tree []IncomingInstance) ([]model.Change, uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	byID := make(map[string]IncomingInstance, len(tree))
	for _, inst := range tree {
		byID[inst.ID] = inst
	}

	var changes []model.Change

	// Deletes: present in old, absent from new.
	var toDelete []string
	for id := range g.instances {
		if _, ok := byID[id]; !ok {
			toDelete = append(toDelete, id)
		}
	}
	for _, id := range toDelete {
		if _, ok := g.instances[id]; !ok {
			continue // already removed by a parent's cascade
		}
		delChanges, err := g.delete(id)
		if err == nil {
			changes = append(changes, delChanges...)
		}
	}

	// Creates + updates, parent-before-child order so create() can
	// resolve ParentID. tree is assumed pre-ordered parent-before-child
	// by the editor; a node whose parent hasn't been materialized yet
	// is deferred to a later pass.
	remaining := make([]IncomingInstance, len(tree))
	copy(remaining, tree)
	for len(remaining) > 0 {
		progressed := false
		next := remaining[:0]
		for _, inst := range remaining {
			if inst.ParentID != "" {
				if _, ok := g.instances[inst.ParentID]; !ok {
					next = append(next, inst)
					continue
				}
			}
			if existing, ok := g.instances[inst.ID]; ok {
				changes = append(changes, g.diffUpdate(existing, inst)...)
			} else {
				_, ch, err := g.createWithID(inst.ID, inst.ParentID, inst.ClassName, inst.Name, inst.Properties)
				if err == nil {
					changes = append(changes, ch)
				}
			}
			progressed = true
		}
		remaining = next
		if !progressed {
			break // orphaned nodes (missing parent never arrives); skip silently
		}
	}

	g.revision++
	g.recordPending(changes)
	return changes, g.revision
}

// createWithID is create() but preserves the supplied id verbatim
// (never synthesizing), used by ReplaceFull where the editor always
// supplies ids.
func (g *Graph) createWithID(id, parentID, className, name string, properties map[string]model.Value) (*model.Instance, model.Change, error) {
	return g.create(id, parentID, className, name, properties)
}

// diffUpdate compares existing against incoming and returns one
// update Change per differing property (including removed properties,
// surfaced as update-to-null).
func (g *Graph) diffUpdate(existing *model.Instance, incoming IncomingInstance) []model.Change {
	var changes []model.Change

	seen := make(map[string]bool, len(incoming.Properties))
	for prop, newVal := range incoming.Properties {
		seen[prop] = true
		oldVal, had := existing.Properties[prop]
		if !had || !oldVal.Equal(newVal) {
			ch, err := g.update(existing.ID, prop, newVal)
			if err == nil {
				changes = append(changes, ch)
			}
		}
	}
	for prop := range existing.Properties {
		if !seen[prop] {
			ch, err := g.update(existing.ID, prop, model.Null())
			if err == nil {
				changes = append(changes, ch)
			}
		}
	}

	// Rename/reparent surfaced as delete+create with the same id in
	// the general case (spec.md §4.1); for replaceFull we instead
	// apply it as an in-place rename/reparent so id continuity and
	// the index stay consistent without a spurious delete.
	if existing.Name != incoming.Name {
		if ch, err := g.rename(existing.ID, incoming.Name); err == nil {
			changes = append(changes, ch)
		}
	}
	if existing.ParentID != incoming.ParentID {
		if ch, err := g.reparent(existing.ID, incoming.ParentID); err == nil {
			changes = append(changes, ch)
		}
	}

	return changes
}
