// uxragent runs the bidirectional synchronization hub server: the
// editor-facing sync endpoints, the agent control-plane, the test
// orchestrator, and the live-stream channel, all behind one HTTP
// listener (spec.md §1, §6).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/uxplima/uxragent/internal/api"
	"github.com/uxplima/uxragent/internal/baseline"
	"github.com/uxplima/uxragent/internal/commandexec"
	"github.com/uxplima/uxragent/internal/config"
	"github.com/uxplima/uxragent/internal/derivedcache"
	"github.com/uxplima/uxragent/internal/idempotency"
	"github.com/uxplima/uxragent/internal/livestream"
	"github.com/uxplima/uxragent/internal/lockmgr"
	"github.com/uxplima/uxragent/internal/model"
	"github.com/uxplima/uxragent/internal/notify"
	"github.com/uxplima/uxragent/internal/projection"
	"github.com/uxplima/uxragent/internal/scenegraph"
	"github.com/uxplima/uxragent/internal/testrun"
)

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "."),
		"Path to the directory holding .env and uxragent.yaml")
	flag.Parse()

	cfg, err := config.Load(*configDir)
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	graph := scenegraph.New()
	cache := derivedcache.New()
	locks := lockmgr.New()
	idemp := idempotency.New(cfg.IdempotencyTTL, cfg.IdempotencyMaxEntries)
	baselines := baseline.NewStore(cfg.WorkspacePath)
	testStore := testrun.NewStore(cfg.WorkspacePath)
	slack := notify.New(cfg.SlackToken, cfg.SlackChannel)

	live := livestream.New(func() (uint64, []interface{}) {
		views := cache.SnapshotPayload(graph)
		out := make([]interface{}, 0, len(views))
		for _, v := range views {
			out = append(out, v)
		}
		return graph.GetRevision(), out
	}, 0)

	executor := &commandexec.Executor{
		Graph:   graph,
		Locks:   locks,
		Idemp:   idemp,
		Cache:   cache,
		LockTTL: cfg.LockTTL,
	}

	var projector projection.Callback = projection.NopCallback{}
	executor.OnCommitted = func(changes []model.Change, revision uint64) {
		live.Broadcast(changes, revision)
		if err := projector.OnCommit(changes, revision); err != nil {
			slog.Warn("filesystem projection callback failed", "error", err, "revision", revision)
		}
	}
	executor.OnBatchCommitted = func(changes []model.Change, revision uint64) {
		live.FullSync()
		if err := projector.OnCommit(changes, revision); err != nil {
			slog.Warn("filesystem projection callback failed", "error", err, "revision", revision)
		}
	}

	tests := testrun.NewManager(liveDispatcher{live}, testStore)
	tests.SetBaselineCompare(func(key, data, mode string, allowMissing bool) (testrun.BaselineResult, error) {
		return baselines.Compare(key, data, baseline.Mode(mode), allowMissing)
	})
	tests.OnStarted(func(run *testrun.Run) {
		slack.NotifyTestStarted(context.Background(), run.ID, run.Scenario.Name)
	})
	tests.OnTerminal(func(run *testrun.Run) {
		slack.NotifyTestTerminal(context.Background(), run.ID, run.Scenario.Name, string(run.Status))
	})

	server := api.NewServer(graph, cache, locks, executor, tests, testStore, baselines, live, cfg.WorkspacePath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := cfg.Host + ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		slog.Info("uxragent listening", "addr", addr, "workspace", cfg.WorkspacePath)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		slog.Error("server error", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// liveDispatcher adapts the live-stream manager's generic broadcast
// channel to the test orchestrator's Dispatcher contract, so run
// dispatch/abort commands reach the editor extension over the same
// connection used for mutation frames (spec.md §4.7).
type liveDispatcher struct {
	live *livestream.Manager
}

func (d liveDispatcher) Dispatch(run *testrun.Run) error {
	return d.live.Dispatch("test.dispatch", map[string]interface{}{
		"runId":    run.ID,
		"attempt":  run.Attempt,
		"scenario": run.Scenario,
	})
}

func (d liveDispatcher) Abort(runID string) error {
	return d.live.Dispatch("test.abort", map[string]interface{}{"runId": runID})
}
