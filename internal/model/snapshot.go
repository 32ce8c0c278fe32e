package model

import "time"

// Snapshot is an immutable capture of (revision, tree, id<->path maps)
// per spec.md §3. Used for derived-cache keys, transactional rollback,
// and agent-visible state.
type Snapshot struct {
	Revision  uint64
	Instances map[string]*Instance // id -> instance, deep-cloned
	PathToID  map[string]string    // dot-joined path key -> id
	RootIDs   []string             // ordered top-level instances
}

// Clone deep-copies a snapshot so callers can never mutate stored state.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{
		Revision:  s.Revision,
		Instances: make(map[string]*Instance, len(s.Instances)),
		PathToID:  make(map[string]string, len(s.PathToID)),
		RootIDs:   append([]string(nil), s.RootIDs...),
	}
	for id, inst := range s.Instances {
		out.Instances[id] = inst.Clone()
	}
	for k, v := range s.PathToID {
		out.PathToID[k] = v
	}
	return out
}

// ChangeKind is the mutation variety recorded in a delta or pending change.
type ChangeKind string

// Change kinds.
const (
	ChangeCreate   ChangeKind = "create"
	ChangeUpdate   ChangeKind = "update"
	ChangeDelete   ChangeKind = "delete"
	ChangeReparent ChangeKind = "reparent"
)

// Change is a single create/update/delete/reparent mutation record,
// the unit both applyDelta and replaceFull's diff emit (spec.md §4.1).
type Change struct {
	Kind      ChangeKind
	ID        string
	ClassName string            // create
	Name      string            // create / rename-as-reparent
	ParentID  string            // create / reparent (new parent)
	OldPath   []string          // reparent/delete diagnostics
	NewPath   []string          // create/reparent result
	Property  string            // update
	Value     Value             // update (new value; missing => Null())
	Properties map[string]Value // create: initial properties
}

// PendingChange is a committed mutation not yet acknowledged by the
// editor (spec.md §3). GC'd 60s after ConfirmChanges.
type PendingChange struct {
	ID         string
	Change     Change
	Confirmed  bool
	CommitTime time.Time
	ConfirmTime time.Time
}
