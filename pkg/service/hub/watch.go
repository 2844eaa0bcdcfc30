package hub

import (
	"context"
	"path/filepath"
	"time"

	"github.com/foodlink/foodlink/pkg/repository"
	"github.com/foodlink/foodlink/pkg/utils/logging"
	"github.com/fsnotify/fsnotify"
	"github.com/m-mizutani/goerr/v2"
)

const reloadDelay = 200 * time.Millisecond

// WatchSeed reloads the location database from path whenever the file changes and
// pushes it to every dashboard. It blocks until ctx is cancelled.
func (h *Hub) WatchSeed(ctx context.Context, path string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return goerr.Wrap(err, "failed to resolve seed path", goerr.V("path", path))
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return goerr.Wrap(err, "failed to create file watcher")
	}
	defer watcher.Close()

	// Editors often replace the file, so watch its directory and filter by name.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return goerr.Wrap(err, "failed to watch seed directory", goerr.V("path", path))
	}

	logger := logging.From(ctx).With("path", path)
	logger.Info("watching seed file")

	// Bursts of events from one save are folded into a single reload.
	timer := time.NewTimer(reloadDelay)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
				continue
			}
			timer.Reset(reloadDelay)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("file watcher error", "error", err)

		case <-timer.C:
			if err := h.reload(ctx, path); err != nil {
				logger.Error("failed to reload seed file", "error", err)
			}
		}
	}
}

func (h *Hub) reload(ctx context.Context, path string) error {
	db, err := repository.LoadFile(path)
	if err != nil {
		return err
	}
	if err := h.repo.PutDatabase(ctx, db); err != nil {
		return goerr.Wrap(err, "failed to store reloaded database")
	}
	logging.From(ctx).Info("seed file reloaded", "locations", db.Locations.Len())
	return h.PublishDatabase(ctx)
}
