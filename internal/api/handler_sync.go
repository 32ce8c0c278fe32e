package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/uxplima/uxragent/internal/model"
	"github.com/uxplima/uxragent/internal/scenegraph"
)

// syncFullRequest is the body of POST /sync (spec.md §6: "Full tree
// push from editor; body {instances, isInitial?}").
type syncFullRequest struct {
	Instances []wireInstance `json:"instances"`
	IsInitial bool           `json:"isInitial,omitempty"`
}

type wireInstance struct {
	ID         string                 `json:"id"`
	ClassName  string                 `json:"className"`
	Name       string                 `json:"name"`
	ParentID   string                 `json:"parentId,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`
}

type syncFullResponse struct {
	Success        bool   `json:"success"`
	ChangesApplied int    `json:"changesApplied"`
	Revision       uint64 `json:"revision"`
}

func (s *Server) syncFullHandler(c *echo.Context) error {
	var req syncFullRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}

	tree := make([]scenegraph.IncomingInstance, 0, len(req.Instances))
	for _, wi := range req.Instances {
		tree = append(tree, scenegraph.IncomingInstance{
			ID:         wi.ID,
			ClassName:  wi.ClassName,
			Name:       wi.Name,
			ParentID:   wi.ParentID,
			Properties: wirePropertiesToValues(wi.Properties),
		})
	}

	changes, revision := s.graph.ReplaceFull(tree)
	s.cache.Invalidate(revision)
	if s.executor != nil && s.executor.OnCommitted != nil && len(changes) > 0 {
		s.executor.OnCommitted(changes, revision)
	}

	return c.JSON(http.StatusOK, syncFullResponse{
		Success:        true,
		ChangesApplied: len(changes),
		Revision:       revision,
	})
}

// deltaChange is one change in a POST /sync/delta batch.
type deltaChange struct {
	Kind        string                 `json:"kind"`
	ID          string                 `json:"id"`
	ClassName   string                 `json:"className,omitempty"`
	Name        string                 `json:"name,omitempty"`
	ParentID    string                 `json:"parentId,omitempty"`
	Property    string                 `json:"property,omitempty"`
	Value       map[string]interface{} `json:"value,omitempty"`
	Properties  map[string]interface{} `json:"properties,omitempty"`
	NewParentID string                 `json:"newParentId,omitempty"`
}

type syncDeltaRequest struct {
	Changes []deltaChange `json:"changes"`
}

type syncDeltaResponse struct {
	Success        bool     `json:"success"`
	ChangesApplied int      `json:"changesApplied"`
	Errors         []string `json:"errors,omitempty"`
	Revision       uint64   `json:"revision"`
}

func (s *Server) syncDeltaHandler(c *echo.Context) error {
	var req syncDeltaRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}

	ops := make([]scenegraph.Op, 0, len(req.Changes))
	for _, ch := range req.Changes {
		ops = append(ops, deltaChangeToOp(ch))
	}

	results, errs, revision := s.graph.ApplyDelta(ops)
	s.cache.Invalidate(revision)

	var allChanges []model.Change
	for _, r := range results {
		allChanges = append(allChanges, r.Changes...)
	}
	if s.executor != nil && s.executor.OnCommitted != nil && len(allChanges) > 0 {
		s.executor.OnCommitted(allChanges, revision)
	}

	var errMsgs []string
	for _, err := range errs {
		if err != nil {
			errMsgs = append(errMsgs, err.Error())
		}
	}

	return c.JSON(http.StatusOK, syncDeltaResponse{
		Success:        true,
		ChangesApplied: len(results),
		Errors:         errMsgs,
		Revision:       revision,
	})
}

func deltaChangeToOp(ch deltaChange) scenegraph.Op {
	switch ch.Kind {
	case "create":
		return scenegraph.Op{
			Kind:       scenegraph.OpCreate,
			NewID:      ch.ID,
			ParentID:   ch.ParentID,
			ClassName:  ch.ClassName,
			Name:       ch.Name,
			Properties: wirePropertiesToValues(ch.Properties),
		}
	case "update":
		props := wirePropertiesToValues(ch.Properties)
		if ch.Property != "" {
			if props == nil {
				props = make(map[string]model.Value)
			}
			props[ch.Property] = wireToValue(ch.Value)
		}
		return scenegraph.Op{Kind: scenegraph.OpUpdate, TargetID: ch.ID, UpdateProperties: props}
	case "rename":
		return scenegraph.Op{Kind: scenegraph.OpRename, TargetID: ch.ID, NewName: ch.Name}
	case "reparent":
		return scenegraph.Op{Kind: scenegraph.OpReparent, TargetID: ch.ID, NewParentID: ch.NewParentID}
	case "delete":
		return scenegraph.Op{Kind: scenegraph.OpDelete, TargetID: ch.ID}
	default:
		return scenegraph.Op{Kind: scenegraph.OpKind(ch.Kind), TargetID: ch.ID}
	}
}

// pendingChangeDTO is the wire shape of one unconfirmed committed change.
type pendingChangeDTO struct {
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	InstanceID string `json:"instanceId"`
	CommitTime string `json:"commitTime"`
}

func (s *Server) pendingChangesHandler(c *echo.Context) error {
	pending := s.graph.GetPendingChangesForPlugin()
	out := make([]pendingChangeDTO, 0, len(pending))
	for _, pc := range pending {
		out = append(out, pendingChangeDTO{
			ID:         pc.ID,
			Kind:       string(pc.Change.Kind),
			InstanceID: pc.Change.ID,
			CommitTime: pc.CommitTime.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"changes": out})
}

type confirmChangesRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) confirmChangesHandler(c *echo.Context) error {
	var req confirmChangesRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(err)
	}
	s.graph.ConfirmChanges(req.IDs)
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true, "confirmed": len(req.IDs)})
}
