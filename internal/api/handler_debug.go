package api

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"time"

	echo "github.com/labstack/echo/v5"
)

// debugBundle is the reproducible snapshot written by POST
// /agent/debug/export (spec.md §6, SPEC_FULL.md §13).
type debugBundle struct {
	Timestamp  string        `json:"timestamp"`
	Revision   uint64        `json:"revision"`
	Instances  []InstanceDTO `json:"instances"`
	Locks      interface{}   `json:"locks"`
	Contention interface{}   `json:"contention"`
}

type debugExportRequest struct {
	Label string `json:"label,omitempty"`
}

func (s *Server) debugExportHandler(c *echo.Context) error {
	var req debugExportRequest
	_ = c.Bind(&req)

	bundle := debugBundle{
		Timestamp:  time.Now().UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		Revision:   s.graph.GetRevision(),
		Instances:  s.snapshotViews(),
		Locks:      s.locks.ActiveLocks(0),
		Contention: s.locks.ContentionLog(0),
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return internalErr(err)
	}

	dir := filepath.Join(s.workspacePath, ".uxr-debug")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return internalErr(err)
	}

	name := "agent-state-" + time.Now().UTC().Format("20060102T150405.000Z")
	if req.Label != "" {
		name += "-" + req.Label
	}
	name += ".json"

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return internalErr(err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{"path": path, "bundle": bundle})
}

// debugProfile reports synthetic hot-path counters already tracked
// elsewhere — not a real CPU profile (spec.md §6 names it "synthetic"
// deliberately).
type debugProfile struct {
	Revision         uint64 `json:"revision"`
	InstanceCount    int    `json:"instanceCount"`
	ActiveLocks      int    `json:"activeLocks"`
	ContentionEvents int    `json:"contentionEvents"`
	ActiveLiveConns  int    `json:"activeLiveConnections"`
	QueueDepth       int    `json:"testQueueDepth"`
}

func (s *Server) debugProfileHandler(c *echo.Context) error {
	metrics := s.tests.Metrics()
	conns := 0
	if s.live != nil {
		conns = s.live.ActiveConnections()
	}
	profile := debugProfile{
		Revision:         s.graph.GetRevision(),
		InstanceCount:    len(s.graph.GetIndexedInstances()),
		ActiveLocks:      len(s.locks.ActiveLocks(0)),
		ContentionEvents: len(s.locks.ContentionLog(0)),
		ActiveLiveConns:  conns,
		QueueDepth:       metrics.QueueDepth,
	}
	return c.JSON(http.StatusOK, profile)
}
