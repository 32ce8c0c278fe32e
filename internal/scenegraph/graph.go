// Package scenegraph implements the canonical, in-memory, revision-tracked
// instance tree described in spec.md §4.1: dual path+id indexing, delta
// detection, snapshot/restore, and the single write path shared by the
// editor's full/delta sync and the agent's command executor.
package scenegraph

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/uxplima/uxragent/internal/model"
)

// Sentinel errors returned by the write path (spec.md §4.1 "Failure semantics").
var (
	ErrNotFound       = errors.New("instance not found")
	ErrParentNotFound = errors.New("parent not found")
	ErrNameConflict   = errors.New("name conflict could not be resolved")
	ErrCyclicReparent = errors.New("reparent would create a cycle")
)

// PendingGrace is how long a confirmed pending change is retained
// before garbage collection (spec.md §3).
const PendingGrace = 60 * time.Second

// Graph is the single shared mutable resource (spec.md §5). All
// mutation is ordered under mu's write lock; reads take mu's read lock
// for a consistent view of the most recently committed revision.
type Graph struct {
	mu sync.RWMutex

	instances map[string]*model.Instance // id -> instance (arena)
	pathToID  map[string]string          // dot-joined path key -> id
	rootIDs   []string                   // ordered top-level instances (ParentID == "")
	revision  uint64

	pending map[string]*model.PendingChange // id -> pending change
}

// New creates an empty scene graph.
func New() *Graph {
	return &Graph{
		instances: make(map[string]*model.Instance),
		pathToID:  make(map[string]string),
		pending:   make(map[string]*model.PendingChange),
	}
}

// GetRevision returns the current committed revision.
func (g *Graph) GetRevision() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.revision
}

// pathKey joins a path the same way PathString does, used as the
// internal index key (dots forbidden in names, so this is injective).
func pathKey(path []string) string {
	return model.PathString(path)
}

// nextSyntheticID synthesizes a stable id for instances the caller
// didn't supply one for (e.g. editor pushes that omit ids for brand
// new nodes), the same way connection and test-run ids are minted
// elsewhere in this codebase.
func (g *Graph) nextSyntheticID() string {
	return "sg_" + uuid.New().String()
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
