package commandexec

import (
	"encoding/json"
	"time"

	"github.com/uxplima/uxragent/internal/derivedcache"
	"github.com/uxplima/uxragent/internal/idempotency"
	"github.com/uxplima/uxragent/internal/lockmgr"
	"github.com/uxplima/uxragent/internal/model"
	"github.com/uxplima/uxragent/internal/schema"
	"github.com/uxplima/uxragent/internal/scenegraph"
)

// Graph is the subset of *scenegraph.Graph the executor drives. Kept
// as an interface so tests can substitute a fake.
type Graph interface {
	sceneReader
	GetIndexedInstances() []*model.Instance
	ApplyCommand(op scenegraph.Op) (scenegraph.Result, uint64, error)
	CreateSnapshot() *model.Snapshot
	RestoreSnapshot(s *model.Snapshot)
}

// Executor runs the single-command and batch pipelines from spec.md
// §4.6 on top of the scene graph, lock manager, idempotency cache, and
// schema inferer.
type Executor struct {
	Graph   Graph
	Locks   *lockmgr.Manager
	Idemp   *idempotency.Cache
	Cache   *derivedcache.Cache
	LockTTL time.Duration

	// OnCommitted is invoked after every successfully committed
	// command, outside any lock, so callers (the live-stream
	// broadcaster and the filesystem projection callback) can react to
	// the committed changes in commit order (spec.md §5: "broadcast /
	// projection happen after the lock is released, never under it").
	// ExecuteBatch does not call this for BatchTransactional batches —
	// see OnBatchCommitted.
	OnCommitted func(changes []model.Change, revision uint64)

	// OnBatchCommitted is invoked once, after a BatchTransactional
	// batch finishes without rolling back, instead of per-command
	// OnCommitted calls (spec.md:143 "full_sync for transactional
	// batches; per-mutation events otherwise" — broadcasting each
	// sub-command as it happens would leak pre-rollback state to
	// connected clients). changes is the concatenation of every
	// sub-command's changes in commit order.
	OnBatchCommitted func(changes []model.Change, revision uint64)
}

// Request is one single-command invocation.
type Request struct {
	Command     Command
	BaseRev     *uint64 // optional optimistic-concurrency check
	Idempotency string  // optional idempotency key
	Owner       string  // lock owner identity (the calling agent/session)
}

// Outcome is the response to one command, success or conflict.
type Outcome struct {
	OK       bool            `json:"ok"`
	ID       string          `json:"id,omitempty"`
	Path     []string        `json:"path,omitempty"`
	Revision uint64          `json:"revision"`
	Conflict *Conflict       `json:"conflict,omitempty"`
	Changes  []model.Change  `json:"changes,omitempty"`
}

// Execute runs the seven-step single-command pipeline from spec.md
// §4.6: baseRevision check, idempotency replay, parse, lock, execute,
// release, cache, then fires OnCommitted for a successful mutation. A
// replay served from the idempotency cache does not fire OnCommitted.
func (e *Executor) Execute(req Request) Outcome {
	replayed := false
	if req.Idempotency != "" {
		_, _, replayed = e.Idemp.Get(req.Idempotency)
	}
	outcome := e.runPipeline(req)
	if !replayed && outcome.OK && len(outcome.Changes) > 0 && e.OnCommitted != nil {
		e.OnCommitted(outcome.Changes, outcome.Revision)
	}
	return outcome
}

// runPipeline is Execute minus the OnCommitted callback. ExecuteBatch
// calls this directly for BatchTransactional commands so no per-command
// broadcast escapes before the batch is known not to roll back.
func (e *Executor) runPipeline(req Request) Outcome {
	current := e.Graph.GetRevision()
	if req.BaseRev != nil && *req.BaseRev != current {
		return Outcome{OK: false, Revision: current, Conflict: revisionMismatch(*req.BaseRev, current)}
	}

	if req.Idempotency != "" {
		if status, body, ok := e.Idemp.Get(req.Idempotency); ok && status == 200 {
			var cached Outcome
			if unmarshalOutcome(body, &cached) {
				return cached
			}
		}
	}

	if conflict := Parse(req.Command); conflict != nil {
		return Outcome{OK: false, Revision: current, Conflict: conflict}
	}

	paths, conflict := e.lockPaths(req.Command)
	if conflict != nil {
		return Outcome{OK: false, Revision: current, Conflict: conflict}
	}

	owner := req.Owner
	if owner == "" {
		owner = "anonymous"
	}
	ok, lockConflict := e.Locks.Acquire(paths, owner, e.lockTTL())
	if !ok {
		return Outcome{OK: false, Revision: current, Conflict: e.toLockedConflict(lockConflict)}
	}
	defer e.Locks.Release(owner)

	outcome := e.execute(req.Command)

	// Cached unconditionally, success or failure (spec.md:137, :299):
	// a replayed conflict must reproduce the same response as the
	// original attempt, not re-run the command against new state.
	if req.Idempotency != "" {
		if body, err := idempotency.MarshalJSON(outcome); err == nil {
			e.Idemp.Set(req.Idempotency, 200, body)
		}
	}

	return outcome
}

// execute resolves refs, validates, and mutates. Locks are already held.
func (e *Executor) execute(cmd Command) Outcome {
	rev := e.Graph.GetRevision()

	switch cmd.Op {
	case CmdCreate:
		parent, c := resolveRef(e.Graph, cmd.ParentRef, "parentRef")
		if c != nil {
			return Outcome{OK: false, Revision: rev, Conflict: c}
		}
		for prop, val := range cmd.Properties {
			if err := schema.ValidatePropertyUpdate(cmd.ClassName, prop, val, e.currentSchema(cmd.ClassName)); err != nil {
				return Outcome{OK: false, Revision: rev, Conflict: validationFailed(prop, "schema-valid value", err.Error())}
			}
		}
		res, newRev, err := e.Graph.ApplyCommand(scenegraph.Op{
			Kind:       scenegraph.OpCreate,
			ParentID:   parent.ID,
			ClassName:  cmd.ClassName,
			Name:       cmd.Name,
			Properties: cmd.Properties,
		})
		return e.toOutcome(res, newRev, err)

	case CmdUpdate:
		target, c := resolveRef(e.Graph, cmd.TargetRef, "targetRef")
		if c != nil {
			return Outcome{OK: false, Revision: rev, Conflict: c}
		}
		for prop, val := range cmd.Properties {
			if err := schema.ValidatePropertyUpdate(target.ClassName, prop, val, e.currentSchema(target.ClassName)); err != nil {
				return Outcome{OK: false, Revision: rev, Conflict: validationFailed(prop, "schema-valid value", err.Error())}
			}
		}
		res, newRev, err := e.Graph.ApplyCommand(scenegraph.Op{
			Kind:             scenegraph.OpUpdate,
			TargetID:         target.ID,
			UpdateProperties: cmd.Properties,
		})
		return e.toOutcome(res, newRev, err)

	case CmdRename:
		target, c := resolveRef(e.Graph, cmd.TargetRef, "targetRef")
		if c != nil {
			return Outcome{OK: false, Revision: rev, Conflict: c}
		}
		res, newRev, err := e.Graph.ApplyCommand(scenegraph.Op{
			Kind:     scenegraph.OpRename,
			TargetID: target.ID,
			NewName:  cmd.Name,
		})
		return e.toOutcome(res, newRev, err)

	case CmdDelete:
		target, c := resolveRef(e.Graph, cmd.TargetRef, "targetRef")
		if c != nil {
			return Outcome{OK: false, Revision: rev, Conflict: c}
		}
		res, newRev, err := e.Graph.ApplyCommand(scenegraph.Op{
			Kind:     scenegraph.OpDelete,
			TargetID: target.ID,
		})
		return e.toOutcome(res, newRev, err)

	case CmdReparent:
		target, c := resolveRef(e.Graph, cmd.TargetRef, "targetRef")
		if c != nil {
			return Outcome{OK: false, Revision: rev, Conflict: c}
		}
		newParent, c := resolveRef(e.Graph, cmd.NewParentRef, "newParentRef")
		if c != nil {
			return Outcome{OK: false, Revision: rev, Conflict: c}
		}
		res, newRev, err := e.Graph.ApplyCommand(scenegraph.Op{
			Kind:        scenegraph.OpReparent,
			TargetID:    target.ID,
			NewParentID: newParent.ID,
		})
		return e.toOutcome(res, newRev, err)
	}

	return Outcome{OK: false, Revision: rev, Conflict: validationFailed("op", "known op", string(cmd.Op))}
}

func (e *Executor) toOutcome(res scenegraph.Result, rev uint64, err error) Outcome {
	if err != nil {
		return Outcome{OK: false, Revision: rev, Conflict: graphErrToConflict(err, rev)}
	}
	return Outcome{OK: true, ID: res.ID, Path: res.ResolvedPath, Revision: rev, Changes: res.Changes}
}

func graphErrToConflict(err error, rev uint64) *Conflict {
	switch err {
	case scenegraph.ErrNotFound, scenegraph.ErrParentNotFound:
		return notFound(map[string]interface{}{"ref": "target or parent"}, map[string]interface{}{"error": err.Error(), "currentRevision": rev})
	default:
		return validationFailed("op", "succeeds", err.Error())
	}
}

// currentSchema returns the memoized inferred schema for className
// (empty = all classes), used to validate property updates against
// previously-observed constraints.
func (e *Executor) currentSchema(className string) *schema.Schema {
	v := e.Cache.Schema(e.Graph, className, func(instances []*model.Instance, classFilter string) interface{} {
		return schema.Infer(instances, classFilter)
	})
	s, _ := v.(*schema.Schema)
	return s
}

// lockPaths computes the lock set for a command (spec.md §4.6 step 4):
// the target's own path for mutation-in-place ops, plus the
// prospective child path under the parent for ops that introduce or
// move a name.
func (e *Executor) lockPaths(cmd Command) ([]string, *Conflict) {
	switch cmd.Op {
	case CmdCreate:
		parent, c := resolveRef(e.Graph, cmd.ParentRef, "parentRef")
		if c != nil {
			return nil, c
		}
		return []string{model.PathString(append(append([]string(nil), parent.Path...), cmd.Name))}, nil
	case CmdUpdate:
		target, c := resolveRef(e.Graph, cmd.TargetRef, "targetRef")
		if c != nil {
			return nil, c
		}
		return []string{model.PathString(target.Path)}, nil
	case CmdRename:
		target, c := resolveRef(e.Graph, cmd.TargetRef, "targetRef")
		if c != nil {
			return nil, c
		}
		parentPath := target.Path[:len(target.Path)-1]
		return []string{
			model.PathString(target.Path),
			model.PathString(append(append([]string(nil), parentPath...), cmd.Name)),
		}, nil
	case CmdDelete:
		target, c := resolveRef(e.Graph, cmd.TargetRef, "targetRef")
		if c != nil {
			return nil, c
		}
		return []string{model.PathString(target.Path)}, nil
	case CmdReparent:
		target, c := resolveRef(e.Graph, cmd.TargetRef, "targetRef")
		if c != nil {
			return nil, c
		}
		newParent, c := resolveRef(e.Graph, cmd.NewParentRef, "newParentRef")
		if c != nil {
			return nil, c
		}
		return []string{
			model.PathString(target.Path),
			model.PathString(append(append([]string(nil), newParent.Path...), target.Name)),
		}, nil
	}
	return nil, validationFailed("op", "known op", string(cmd.Op))
}

func (e *Executor) toLockedConflict(c *lockmgr.Conflict) *Conflict {
	if c == nil {
		return locked(nil, "", "", "")
	}
	return locked(
		map[string]interface{}{"path": c.RequestedPath},
		c.BlockingOwner,
		c.ExpiresAt.UTC().Format(time.RFC3339),
		c.BlockingPath,
	)
}

func (e *Executor) lockTTL() time.Duration {
	if e.LockTTL > 0 {
		return e.LockTTL
	}
	return lockmgr.DefaultTTL
}

func unmarshalOutcome(body []byte, out *Outcome) bool {
	if len(body) == 0 {
		return false
	}
	return json.Unmarshal(body, out) == nil
}
