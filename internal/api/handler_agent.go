package api

import (
	"net/http"
	"strconv"

	echo "github.com/labstack/echo/v5"

	"github.com/uxplima/uxragent/internal/model"
	"github.com/uxplima/uxragent/internal/schema"
)

// capabilitiesResponse is the compact capability manifest (spec.md §6).
type capabilitiesResponse struct {
	Commands    []string `json:"commands"`
	BatchModes  []string `json:"batchModes"`
	TestRuntime []string `json:"testRuntimeModes"`
	Revision    uint64   `json:"revision"`
}

func (s *Server) capabilities() capabilitiesResponse {
	return capabilitiesResponse{
		Commands:    []string{"create", "update", "rename", "delete", "reparent"},
		BatchModes:  []string{"transactional", "continue_on_error"},
		TestRuntime: []string{"none", "run", "play"},
		Revision:    s.graph.GetRevision(),
	}
}

func (s *Server) capabilitiesHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.capabilities())
}

func (s *Server) snapshotViews() []InstanceDTO {
	views := s.cache.SnapshotPayload(s.graph)
	out := make([]InstanceDTO, 0, len(views))
	for _, v := range views {
		out = append(out, toInstanceDTO(v.ID, v.ClassName, v.Name, v.Path, v.ParentID, v.ChildIDs, v.Properties))
	}
	return out
}

func (s *Server) snapshotHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"revision":  s.graph.GetRevision(),
		"instances": s.snapshotViews(),
	})
}

func (s *Server) inferSchema(classFilter string) *schema.Schema {
	v := s.cache.Schema(s.graph, classFilter, func(instances []*model.Instance, filter string) interface{} {
		return schema.Infer(instances, filter)
	})
	result, _ := v.(*schema.Schema)
	return result
}

func (s *Server) schemaPropertiesHandler(c *echo.Context) error {
	className := c.QueryParam("className")
	result := s.inferSchema(className)
	return c.JSON(http.StatusOK, result)
}

// schemaCommandsResponse is the canonical command payload schema
// (spec.md §6 "GET /agent/schema/commands").
type schemaCommandsResponse struct {
	Commands map[string]commandShape `json:"commands"`
}

type commandShape struct {
	Fields      []string `json:"fields"`
	Description string   `json:"description"`
}

func (s *Server) schemaCommandsHandler(c *echo.Context) error {
	resp := schemaCommandsResponse{
		Commands: map[string]commandShape{
			"create":   {Fields: []string{"parentRef", "className", "name", "properties?"}, Description: "create a new instance under parentRef"},
			"update":   {Fields: []string{"targetRef", "properties"}, Description: "update one or more properties on targetRef"},
			"rename":   {Fields: []string{"targetRef", "name"}, Description: "rename targetRef within its current parent"},
			"delete":   {Fields: []string{"targetRef"}, Description: "delete targetRef and its descendants"},
			"reparent": {Fields: []string{"targetRef", "newParentRef"}, Description: "move targetRef under newParentRef"},
		},
	}
	return c.JSON(http.StatusOK, resp)
}

// bootstrapResponse is the one-shot discovery response (spec.md §6:
// "health + capabilities + optional snapshot + schema").
type bootstrapResponse struct {
	Health       HealthResponse        `json:"health"`
	Capabilities capabilitiesResponse  `json:"capabilities"`
	Snapshot     []InstanceDTO         `json:"snapshot,omitempty"`
	Schema       interface{}           `json:"schema,omitempty"`
}

func (s *Server) bootstrapHandler(c *echo.Context) error {
	includeSnapshot, _ := strconv.ParseBool(c.QueryParam("includeSnapshot"))
	includeSchema, _ := strconv.ParseBool(c.QueryParam("includeSchema"))
	className := c.QueryParam("className")

	resp := bootstrapResponse{
		Health:       s.healthPayload(),
		Capabilities: s.capabilities(),
	}
	if includeSnapshot {
		resp.Snapshot = s.snapshotViews()
	}
	if includeSchema {
		resp.Schema = s.inferSchema(className)
	}
	return c.JSON(http.StatusOK, resp)
}
