// Package projection defines the contract between the sync hub and the
// external filesystem-projection collaborator (spec.md §1 "the rules
// that turn a scene graph into files on disk are out of scope — this
// module only owns the contract the projection side is driven
// through"). No projection logic lives here.
package projection

import "github.com/uxplima/uxragent/internal/model"

// Callback is implemented by the filesystem projection side. It is
// invoked after every committed mutation batch, outside any lock and
// after the live-stream broadcast for the same batch (spec.md §5:
// ordering between broadcast and projection is unspecified beyond
// "both happen after the lock is released"; this hub calls broadcast
// first since it is cheaper and failure there is not terminal).
type Callback interface {
	// OnCommit receives the ordered changes from one committed
	// mutation (a single command, a whole POST /sync/delta batch, one
	// ReplaceFull diff, or a whole transactional command batch) along
	// with the resulting revision. Returning an
	// error only logs — the scene graph is already the durable state;
	// the projection is a derived view and resyncs on its own schedule.
	OnCommit(changes []model.Change, revision uint64) error
}

// NopCallback is used when no projection collaborator is configured.
type NopCallback struct{}

// OnCommit implements Callback as a no-op.
func (NopCallback) OnCommit(changes []model.Change, revision uint64) error { return nil }
