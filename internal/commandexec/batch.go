package commandexec

import "github.com/uxplima/uxragent/internal/model"

// BatchMode selects how a batch reacts to a failing sub-command
// (spec.md §4.6 "Batch semantics").
type BatchMode string

// Batch modes.
const (
	// BatchTransactional rolls back every change in the batch the
	// moment one sub-command conflicts — the batch has a single net
	// effect on the graph, and a single revision bump, or none at all.
	BatchTransactional BatchMode = "transactional"
	// BatchContinueOnError applies every sub-command independently;
	// a conflict only stops that one sub-command.
	BatchContinueOnError BatchMode = "continue_on_error"
	// BatchStopOnError is the default (transactional=false,
	// continueOnError=false, spec.md:139): commands already applied
	// before the first failure stay applied, no rollback happens, and
	// no later command in the batch runs.
	BatchStopOnError BatchMode = "stop_on_error"
)

// BatchRequest is a sequence of commands sharing one lock owner.
type BatchRequest struct {
	Mode     BatchMode
	Owner    string
	Commands []Command
	BaseRev  *uint64
}

// BatchOutcome is the aggregate result (spec.md §4.6: "response
// includes per-command results plus counts").
type BatchOutcome struct {
	OK         bool      `json:"ok"`
	Results    []Outcome `json:"results"`
	Succeeded  int       `json:"succeeded"`
	Failed     int       `json:"failed"`
	Revision   uint64    `json:"revision"`
	RolledBack bool      `json:"rolledBack,omitempty"`
}

// ExecuteBatch runs every command in order under one lock owner. In
// BatchTransactional mode the graph is snapshotted first, per-command
// broadcast is suppressed, the first conflict rolls the whole batch
// back (restoring the pre-batch revision, per spec.md "all-or-nothing,
// single net effect"), and a single full_sync fires afterward instead
// (spec.md:143) — no further commands run. In BatchContinueOnError
// mode every command runs regardless of earlier failures, broadcasting
// per mutation as usual. In BatchStopOnError mode (the default) the
// first failure stops the batch without rolling back what already
// committed and without running later commands.
func (e *Executor) ExecuteBatch(req BatchRequest) BatchOutcome {
	current := e.Graph.GetRevision()
	if req.BaseRev != nil && *req.BaseRev != current {
		return BatchOutcome{
			OK:       false,
			Revision: current,
			Results:  []Outcome{{OK: false, Revision: current, Conflict: revisionMismatch(*req.BaseRev, current)}},
			Failed:   1,
		}
	}

	var snapshot = e.Graph.CreateSnapshot()
	results := make([]Outcome, 0, len(req.Commands))
	succeeded, failed := 0, 0
	rolledBack := false

	for _, cmd := range req.Commands {
		var out Outcome
		if req.Mode == BatchTransactional {
			out = e.runPipeline(Request{Command: cmd, Owner: req.Owner})
		} else {
			out = e.Execute(Request{Command: cmd, Owner: req.Owner})
		}
		results = append(results, out)
		if out.OK {
			succeeded++
			continue
		}
		failed++
		if req.Mode == BatchTransactional {
			e.Graph.RestoreSnapshot(snapshot)
			rolledBack = true
		}
		if req.Mode != BatchContinueOnError {
			break
		}
	}

	finalRev := e.Graph.GetRevision()

	if req.Mode == BatchTransactional && !rolledBack && succeeded > 0 && e.OnBatchCommitted != nil {
		var changes []model.Change
		for _, r := range results {
			changes = append(changes, r.Changes...)
		}
		e.OnBatchCommitted(changes, finalRev)
	}

	return BatchOutcome{
		OK:         failed == 0,
		Results:    results,
		Succeeded:  succeeded,
		Failed:     failed,
		Revision:   finalRev,
		RolledBack: rolledBack,
	}
}

// HTTPStatus maps a BatchOutcome to a status code: 200 all succeeded;
// for a rolled-back batch, 423 when the only failure reason present is
// a lock conflict, 404 when it is not_found, 409 otherwise; 207 for any
// batch with failures that was not rolled back.
func (bo BatchOutcome) HTTPStatus() int {
	if bo.Failed == 0 {
		return 200
	}
	if bo.RolledBack {
		if reason, ok := bo.soleFailureReason(); ok {
			switch reason {
			case ReasonLocked:
				return 423
			case ReasonNotFound:
				return 404
			}
		}
		return 409
	}
	return 207
}

func (bo BatchOutcome) soleFailureReason() (Reason, bool) {
	var reason Reason
	set := false
	for _, r := range bo.Results {
		if r.Conflict == nil {
			continue
		}
		if !set {
			reason = r.Conflict.Reason
			set = true
			continue
		}
		if r.Conflict.Reason != reason {
			return "", false
		}
	}
	return reason, set
}

// HTTPStatus maps a single Outcome to a status code (spec.md §4.6,
// §7): 200 success, 409 revision_mismatch, 423 locked, 404 not_found,
// 422 validation_failed.
func (o Outcome) HTTPStatus() int {
	if o.OK {
		return 200
	}
	if o.Conflict == nil {
		return 500
	}
	switch o.Conflict.Reason {
	case ReasonRevisionMismatch:
		return 409
	case ReasonLocked:
		return 423
	case ReasonNotFound:
		return 404
	case ReasonValidationFailed:
		return 422
	default:
		return 500
	}
}
