package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher feeds region files dropped into a directory through Refresh.
type Watcher struct {
	dir     string
	catalog *Catalog
	watcher *fsnotify.Watcher
	logger  *zap.Logger
	// Refreshed, when set, receives the outcome of each applied file.
	Refreshed chan<- MergeStats
}

func NewWatcher(dir string, c *Catalog, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create catalog watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &Watcher{dir: dir, catalog: c, watcher: fw, logger: logger}, nil
}

// Run blocks until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	defer w.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Write) {
				continue
			}
			if !strings.EqualFold(filepath.Ext(ev.Name), ".json") {
				continue
			}
			w.apply(ctx, ev.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("catalog watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) apply(ctx context.Context, name string) {
	data, err := os.ReadFile(name)
	if err != nil {
		w.logger.Warn("read catalog file", zap.String("file", name), zap.Error(err))
		return
	}
	stats, issues, err := w.catalog.Refresh(ctx, data)
	if err != nil {
		// partial writes surface as parse errors; the follow-up write event retries
		w.logger.Debug("catalog file not applied", zap.String("file", name), zap.Error(err))
		return
	}
	w.logger.Info("catalog refreshed",
		zap.String("file", name), zap.Int("new_sites", stats.NewSites),
		zap.Int("new_routes", stats.NewRoutes), zap.Int("issues", len(issues)))
	if w.Refreshed != nil {
		select {
		case w.Refreshed <- stats:
		case <-ctx.Done():
		}
	}
}
