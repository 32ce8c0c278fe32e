package scenegraph

import (
	"time"

	"github.com/uxplima/uxragent/internal/model"
)

// ApplyCommand applies a single mutation from the agent path, bumping
// the revision exactly once (spec.md §4.1, §8 round-trip law). It is
// the single-command counterpart of ApplyDelta — same primitives,
// same revision accounting.
func (g *Graph) ApplyCommand(op Op) (Result, uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	res, err := g.apply(op)
	if err != nil {
		return Result{}, g.revision, err
	}
	g.revision++
	g.recordPending(res.Changes)
	return res, g.revision, nil
}

// ApplyDelta applies an ordered sequence of editor-sourced mutations.
// Each element bumps the revision by one, exactly as a standalone
// ApplyCommand would (spec.md §4.1: "deltas from editor and agent
// share one write path so invariants and revision accounting are
// uniform"). Delta detection itself is total (spec.md "Failure
// semantics"); an op that fails here is skipped rather than aborting
// the rest of the sequence, since the editor is authoritative and a
// malformed single op must not block the others.
func (g *Graph) ApplyDelta(ops []Op) ([]Result, []error, uint64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	results := make([]Result, 0, len(ops))
	errs := make([]error, 0, len(ops))
	for _, op := range ops {
		res, err := g.apply(op)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.revision++
		g.recordPending(res.Changes)
		results = append(results, res)
		errs = append(errs, nil)
	}
	return results, errs, g.revision
}

// recordPending appends committed-but-unconfirmed mutations to the
// pending-change buffer (spec.md §3). Must be called with g.mu held.
func (g *Graph) recordPending(changes []model.Change) {
	now := time.Now()
	for i, ch := range changes {
		id := ch.ID + "#" + itoa(g.revision) + "." + itoa(uint64(i))
		g.pending[id] = &model.PendingChange{
			ID:         id,
			Change:     ch,
			CommitTime: now,
		}
	}
}

// GetPendingChangesForPlugin returns every committed mutation not yet
// confirmed by the editor. Per the resolved Open Question in
// SPEC_FULL.md §5: these are retained across transport failures — a
// failed POST /sync/delta round-trip on the editor side never clears
// this buffer, because confirmation only happens through
// ConfirmChanges, never implicitly.
func (g *Graph) GetPendingChangesForPlugin() []*model.PendingChange {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]*model.PendingChange, 0, len(g.pending))
	for _, pc := range g.pending {
		if !pc.Confirmed {
			cp := *pc
			out = append(out, &cp)
		}
	}
	return out
}

// ConfirmChanges marks the given pending-change ids confirmed. They
// are garbage-collected PendingGrace after confirmation (spec.md §3).
func (g *Graph) ConfirmChanges(ids []string) {
	g.mu.Lock()
	now := time.Now()
	toGC := make([]string, 0, len(ids))
	for _, id := range ids {
		if pc, ok := g.pending[id]; ok {
			pc.Confirmed = true
			pc.ConfirmTime = now
			toGC = append(toGC, id)
		}
	}
	g.mu.Unlock()

	for _, id := range toGC {
		id := id
		time.AfterFunc(PendingGrace, func() {
			g.mu.Lock()
			if pc, ok := g.pending[id]; ok && pc.Confirmed {
				delete(g.pending, id)
			}
			g.mu.Unlock()
		})
	}
}
