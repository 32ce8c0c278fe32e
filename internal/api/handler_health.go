package api

import (
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
)

// HealthResponse is returned by GET /health (spec.md §6: "status,
// version, instance count, discovery pointers for agent endpoints").
type HealthResponse struct {
	Status          string   `json:"status"`
	Version         string   `json:"version"`
	UptimeSeconds   int64    `json:"uptimeSeconds"`
	Revision        uint64   `json:"revision"`
	InstanceCount   int      `json:"instanceCount"`
	ActiveLiveConns int      `json:"activeLiveConnections"`
	AgentEndpoints  []string `json:"agentEndpoints"`
}

func (s *Server) healthPayload() HealthResponse {
	instances := s.graph.GetIndexedInstances()

	conns := 0
	if s.live != nil {
		conns = s.live.ActiveConnections()
	}

	return HealthResponse{
		Status:          "healthy",
		Version:         Version,
		UptimeSeconds:   int64(time.Since(s.startedAt).Seconds()),
		Revision:        s.graph.GetRevision(),
		InstanceCount:   len(instances),
		ActiveLiveConns: conns,
		AgentEndpoints: []string{
			"/agent/bootstrap", "/agent/capabilities", "/agent/snapshot",
			"/agent/schema/properties", "/agent/schema/commands",
			"/agent/command", "/agent/commands",
			"/agent/tests/run", "/agent/tests", "/agent/locks",
		},
	}
}

func (s *Server) healthHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.healthPayload())
}
