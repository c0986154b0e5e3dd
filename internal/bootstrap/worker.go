package bootstrap

import (
	"context"

	"github.com/vinodvk00/one-box-sub001/config"
	"github.com/vinodvk00/one-box-sub001/pkg/logger"
)

// Worker is the ingestion daemon: the sync scheduler plus everything
// it needs. It owns no transport; callers drive Stop for shutdown.
type Worker struct {
	deps    *Dependencies
	cleanup func()
}

// NewWorker wires dependencies and returns a ready-to-start worker.
func NewWorker(cfg *config.Config) (*Worker, error) {
	deps, cleanup, err := NewDependencies(cfg)
	if err != nil {
		return nil, err
	}
	return &Worker{deps: deps, cleanup: cleanup}, nil
}

// Deps exposes the wired dependency graph.
func (w *Worker) Deps() *Dependencies {
	return w.deps
}

// Start launches the background sync loop when enabled.
func (w *Worker) Start(ctx context.Context) {
	if !w.deps.Config.SyncEnabled {
		logger.Info("[Worker] Sync scheduler disabled by config")
		return
	}
	w.deps.SyncScheduler.Start(ctx)
}

// Stop drains the sync loop and closes every connection.
func (w *Worker) Stop() {
	w.deps.SyncScheduler.Stop()
	w.cleanup()
	logger.Info("[Worker] Shutdown complete")
}
