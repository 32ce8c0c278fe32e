package model

// Instance is a single node of the scene graph (spec.md §3).
//
// Parent is stored as an id, never a pointer — this keeps the arena
// cycle-free and snapshots cheap (spec.md §9: "store parent as an id,
// not a pointer; paths are derived lazily" — here "lazily" means
// recomputed on structural mutation, not on every read, since
// getInstanceByPath/getPathById must be O(1)).
type Instance struct {
	ID         string
	ClassName  string
	Name       string
	ParentID   string // empty for root services
	Properties map[string]Value
	ChildIDs   []string // ordered

	// Path is a cached derived field, recomputed whenever this node or
	// an ancestor's name/parent changes. Never mutate in place; callers
	// always receive a fresh copy from the arena (see Instance.Clone).
	Path []string
}

// Clone returns a deep copy of the instance, safe for snapshot storage.
func (i *Instance) Clone() *Instance {
	if i == nil {
		return nil
	}
	out := &Instance{
		ID:        i.ID,
		ClassName: i.ClassName,
		Name:      i.Name,
		ParentID:  i.ParentID,
	}
	if i.Properties != nil {
		out.Properties = make(map[string]Value, len(i.Properties))
		for k, v := range i.Properties {
			out.Properties[k] = v
		}
	}
	if i.ChildIDs != nil {
		out.ChildIDs = append([]string(nil), i.ChildIDs...)
	}
	if i.Path != nil {
		out.Path = append([]string(nil), i.Path...)
	}
	return out
}

// PathString dot-joins Path with literal dot segments (spec.md §4.2:
// "no escaping — dots in names are forbidden by invariant").
func PathString(path []string) string {
	out := ""
	for i, seg := range path {
		if i > 0 {
			out += "."
		}
		out += seg
	}
	return out
}

// ReadonlyProperties are never writable regardless of observed values
// (spec.md §4.3).
var ReadonlyProperties = map[string]bool{
	"ClassName": true,
	"Parent":    true,
	"Children":  true,
}
