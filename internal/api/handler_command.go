package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/uxplima/uxragent/internal/commandexec"
)

// commandRequest is the body of POST /agent/command (spec.md §4.6).
type commandRequest struct {
	Op           string                 `json:"op"`
	ParentRef    *refDTO                `json:"parentRef,omitempty"`
	ClassName    string                 `json:"className,omitempty"`
	Name         string                 `json:"name,omitempty"`
	Properties   map[string]interface{} `json:"properties,omitempty"`
	TargetRef    *refDTO                `json:"targetRef,omitempty"`
	NewParentRef *refDTO                `json:"newParentRef,omitempty"`
	BaseRevision *uint64                `json:"baseRevision,omitempty"`
	Owner        string                 `json:"owner,omitempty"`
}

type refDTO struct {
	ID   string   `json:"id,omitempty"`
	Path []string `json:"path,omitempty"`
}

func toRef(r *refDTO) commandexec.Ref {
	if r == nil {
		return commandexec.Ref{}
	}
	return commandexec.Ref{ID: r.ID, Path: r.Path}
}

func (s *Server) commandHandler(c *echo.Context) error {
	var req commandRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}

	cmd := commandexec.Command{
		Op:           commandexec.CommandKind(req.Op),
		ParentRef:    toRef(req.ParentRef),
		ClassName:    req.ClassName,
		Name:         req.Name,
		Properties:   wirePropertiesToValues(req.Properties),
		TargetRef:    toRef(req.TargetRef),
		NewParentRef: toRef(req.NewParentRef),
	}

	owner := req.Owner
	if owner == "" {
		owner = c.Request().Header.Get("x-agent-owner")
	}

	outcome := s.executor.Execute(commandexec.Request{
		Command:     cmd,
		BaseRev:     req.BaseRevision,
		Idempotency: c.Request().Header.Get("x-idempotency-key"),
		Owner:       owner,
	})

	return c.JSON(outcome.HTTPStatus(), outcome)
}

type batchCommandRequest struct {
	Commands        []commandRequest `json:"commands"`
	Transactional   bool             `json:"transactional,omitempty"`
	ContinueOnError bool             `json:"continueOnError,omitempty"`
	BaseRevision    *uint64          `json:"baseRevision,omitempty"`
	Owner           string           `json:"owner,omitempty"`
}

// batchMode resolves the wire flags to a BatchMode. transactional
// defaults to false (spec.md:139): an all-false request stops at the
// first failure without rolling back and without running later
// commands, rather than silently behaving as transactional.
func (req batchCommandRequest) batchMode() commandexec.BatchMode {
	switch {
	case req.Transactional:
		return commandexec.BatchTransactional
	case req.ContinueOnError:
		return commandexec.BatchContinueOnError
	default:
		return commandexec.BatchStopOnError
	}
}

func (s *Server) batchCommandHandler(c *echo.Context) error {
	var req batchCommandRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}

	mode := req.batchMode()

	cmds := make([]commandexec.Command, 0, len(req.Commands))
	for _, cr := range req.Commands {
		cmds = append(cmds, commandexec.Command{
			Op:           commandexec.CommandKind(cr.Op),
			ParentRef:    toRef(cr.ParentRef),
			ClassName:    cr.ClassName,
			Name:         cr.Name,
			Properties:   wirePropertiesToValues(cr.Properties),
			TargetRef:    toRef(cr.TargetRef),
			NewParentRef: toRef(cr.NewParentRef),
		})
	}

	owner := req.Owner
	if owner == "" {
		owner = c.Request().Header.Get("x-agent-owner")
	}

	outcome := s.executor.ExecuteBatch(commandexec.BatchRequest{
		Mode:     mode,
		Owner:    owner,
		Commands: cmds,
		BaseRev:  req.BaseRevision,
	})

	return c.JSON(outcome.HTTPStatus(), outcome)
}

func (s *Server) locksHandler(c *echo.Context) error {
	limit := queryInt(c, "limit", 0)
	includeLog, _ := echoQueryBool(c, "includeLocks")

	resp := map[string]interface{}{
		"locks": s.locks.ActiveLocks(limit),
	}
	if includeLog {
		resp["contention"] = s.locks.ContentionLog(limit)
	}
	return c.JSON(http.StatusOK, resp)
}
