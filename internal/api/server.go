// Package api provides the HTTP surface for the synchronization hub:
// editor-facing sync endpoints, the agent control-plane, the test
// orchestrator, and the live-stream WebSocket upgrade (spec.md §6).
package api

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	echo "github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/uxplima/uxragent/internal/baseline"
	"github.com/uxplima/uxragent/internal/commandexec"
	"github.com/uxplima/uxragent/internal/derivedcache"
	"github.com/uxplima/uxragent/internal/livestream"
	"github.com/uxplima/uxragent/internal/lockmgr"
	"github.com/uxplima/uxragent/internal/scenegraph"
	"github.com/uxplima/uxragent/internal/testrun"
)

// Version is the reported build version; overridable at link time the
// way the teacher's pkg/version package does.
var Version = "dev"

// Server is the HTTP API server.
type Server struct {
	echo       *echo.Echo
	httpServer *http.Server

	graph     *scenegraph.Graph
	cache     *derivedcache.Cache
	locks     *lockmgr.Manager
	executor  *commandexec.Executor
	tests     *testrun.Manager
	testStore *testrun.Store
	baselines *baseline.Store
	live      *livestream.Manager

	workspacePath string
	startedAt     time.Time
}

// NewServer wires every package into a routed echo.Echo instance.
func NewServer(
	graph *scenegraph.Graph,
	cache *derivedcache.Cache,
	locks *lockmgr.Manager,
	executor *commandexec.Executor,
	tests *testrun.Manager,
	testStore *testrun.Store,
	baselines *baseline.Store,
	live *livestream.Manager,
	workspacePath string,
) *Server {
	e := echo.New()

	s := &Server{
		echo:          e,
		graph:         graph,
		cache:         cache,
		locks:         locks,
		executor:      executor,
		tests:         tests,
		testStore:     testStore,
		baselines:     baselines,
		live:          live,
		workspacePath: workspacePath,
		startedAt:     time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes registers every endpoint in spec.md §6.
func (s *Server) setupRoutes() {
	s.echo.Use(middleware.BodyLimit(8 * 1024 * 1024))
	s.echo.Use(securityHeaders())
	s.echo.Use(requestLogger())

	s.echo.GET("/health", s.healthHandler)

	// Editor-facing sync endpoints.
	s.echo.POST("/sync", s.syncFullHandler)
	s.echo.POST("/sync/delta", s.syncDeltaHandler)
	s.echo.GET("/changes", s.pendingChangesHandler)
	s.echo.POST("/changes/confirm", s.confirmChangesHandler)

	// Agent control-plane.
	agent := s.echo.Group("/agent")
	agent.GET("/bootstrap", s.bootstrapHandler)
	agent.GET("/capabilities", s.capabilitiesHandler)
	agent.GET("/snapshot", s.snapshotHandler)
	agent.GET("/schema/properties", s.schemaPropertiesHandler)
	agent.GET("/schema/commands", s.schemaCommandsHandler)
	agent.POST("/command", s.commandHandler)
	agent.POST("/commands", s.batchCommandHandler)
	agent.GET("/locks", s.locksHandler)
	agent.POST("/debug/export", s.debugExportHandler)
	agent.GET("/debug/profile", s.debugProfileHandler)

	// Test orchestrator (static paths before :id param, teacher convention).
	agent.POST("/tests/run", s.testsRunHandler)
	agent.GET("/tests/metrics", s.testsMetricsHandler)
	agent.POST("/tests/events", s.testsEventsHandler)
	agent.GET("/tests", s.testsListHandler)
	agent.GET("/tests/:id", s.testsGetHandler)
	agent.POST("/tests/:id/abort", s.testsAbortHandler)
	agent.GET("/tests/:id/report", s.testsReportHandler)
	agent.GET("/tests/:id/artifacts", s.testsArtifactsHandler)

	// Live-stream WebSocket upgrade.
	s.echo.GET("/live", s.liveHandler)
}

// Start serves HTTP on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{Addr: addr, Handler: s.echo}
	return s.httpServer.ListenAndServe()
}

// StartWithListener starts the HTTP server on a pre-created listener,
// used by tests that need a random OS-assigned port.
func (s *Server) StartWithListener(ln net.Listener) error {
	s.httpServer = &http.Server{Handler: s.echo}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// requestLogger logs one structured line per request, matching the
// teacher's slog.With(...) field style.
func requestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c *echo.Context) error {
			start := time.Now()
			err := next(c)
			slog.Info("http request",
				"method", c.Request().Method,
				"path", c.Request().URL.Path,
				"status", c.Response().Status,
				"duration_ms", time.Since(start).Milliseconds(),
			)
			return err
		}
	}
}
