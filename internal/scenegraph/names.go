package scenegraph

import "strconv"

// resolveUniqueName returns a name guaranteed unique among siblingIDs,
// applying the deterministic `_N` suffix policy from spec.md §3:
// "Foo, Foo_2, Foo_3, chosen deterministically as the smallest
// available integer >= 2." excludeID allows a rename to keep its own
// current name without colliding with itself.
func (g *Graph) resolveUniqueName(siblingIDs []string, excludeID, wanted string) string {
	taken := make(map[string]bool, len(siblingIDs))
	for _, id := range siblingIDs {
		if id == excludeID {
			continue
		}
		if inst, ok := g.instances[id]; ok {
			taken[inst.Name] = true
		}
	}
	if !taken[wanted] {
		return wanted
	}
	for n := 2; ; n++ {
		candidate := wanted + "_" + strconv.Itoa(n)
		if !taken[candidate] {
			return candidate
		}
	}
}

// siblingIDsOf returns the child list of parentID (rootIDs if empty).
func (g *Graph) siblingIDsOf(parentID string) []string {
	if parentID == "" {
		return g.rootIDs
	}
	if parent, ok := g.instances[parentID]; ok {
		return parent.ChildIDs
	}
	return nil
}
