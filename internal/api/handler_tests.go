package api

import (
	"net/http"

	echo "github.com/labstack/echo/v5"

	"github.com/uxplima/uxragent/internal/testrun"
)

func (s *Server) testsRunHandler(c *echo.Context) error {
	var raw testrun.RawScenario
	if err := c.Bind(&raw); err != nil {
		return badRequest(err)
	}

	id, err := s.tests.Enqueue(raw)
	if err != nil {
		return badRequest(err)
	}
	return c.JSON(http.StatusAccepted, map[string]interface{}{"id": id, "status": testrun.StatusQueued})
}

func (s *Server) testsListHandler(c *echo.Context) error {
	limit := queryInt(c, "limit", 0)
	runs := s.tests.List(limit)

	summaries := make([]map[string]interface{}, 0, len(runs))
	for _, r := range runs {
		summaries = append(summaries, map[string]interface{}{
			"id":     r.ID,
			"status": r.Status,
			"name":   r.Scenario.Name,
		})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"runs": summaries, "items": summaries})
}

func (s *Server) testsGetHandler(c *echo.Context) error {
	id := c.Param("id")
	run, ok := s.tests.Get(id)
	if !ok {
		return notFoundErr("run not found")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":     run.ID,
		"status": run.Status,
		"run":    run,
	})
}

func (s *Server) testsAbortHandler(c *echo.Context) error {
	id := c.Param("id")
	if err := s.tests.Abort(id); err != nil {
		return notFoundErr(err.Error())
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"success": true})
}

func (s *Server) testsReportHandler(c *echo.Context) error {
	id := c.Param("id")
	if s.testStore == nil {
		return notFoundErr("report store not configured")
	}
	report, err := s.testStore.ReadReport(id)
	if err != nil {
		return notFoundErr("report not found for run " + id)
	}
	return c.JSON(http.StatusOK, report)
}

func (s *Server) testsArtifactsHandler(c *echo.Context) error {
	id := c.Param("id")
	if s.testStore == nil {
		return c.JSON(http.StatusOK, map[string]interface{}{"artifacts": []string{}})
	}
	artifacts, err := s.testStore.ListArtifacts(id)
	if err != nil {
		return internalErr(err)
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"artifacts": artifacts})
}

func (s *Server) testsEventsHandler(c *echo.Context) error {
	var ev testrun.Event
	if err := c.Bind(&ev); err != nil {
		return badRequest(err)
	}

	result, err := s.tests.IngestEvent(ev)
	if err != nil {
		return notFoundErr(err.Error())
	}

	status := http.StatusOK
	switch result.Status {
	case "stale":
		status = http.StatusAccepted
	case "rejected":
		status = http.StatusConflict
	}
	return c.JSON(status, result)
}

func (s *Server) testsMetricsHandler(c *echo.Context) error {
	return c.JSON(http.StatusOK, s.tests.Metrics())
}
