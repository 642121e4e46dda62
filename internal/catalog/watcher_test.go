package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"backend-cragmap/internal/cache"
)

func TestWatcherAppliesNewFiles(t *testing.T) {
	dir := t.TempDir()
	c := New(cache.NewMemory(), nil)
	if _, err := c.Load(context.Background(), Bundled()); err != nil {
		t.Fatalf("load: %v", err)
	}

	w, err := NewWatcher(dir, c, nil)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	refreshed := make(chan MergeStats, 4)
	w.Refreshed = refreshed

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	data := []byte(`{"Co. Down": {"county_info": {"name": "Co. Down"}, "climbing_sites": [
		{"name": "Bloody Bridge", "coordinates": {"latitude": 54.17, "longitude": -5.88}}]}}`)
	tmp := filepath.Join(dir, "down.tmp")
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Rename(tmp, filepath.Join(dir, "down.json")); err != nil {
		t.Fatalf("rename: %v", err)
	}

	select {
	case stats := <-refreshed:
		if stats.NewSites != 1 {
			t.Fatalf("unexpected stats %+v", stats)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for refresh")
	}
	if _, ok := c.Site("Co__Down_Unknown_Bloody_Bridge"); !ok {
		t.Fatalf("expected new site in catalog")
	}
}

func TestNewWatcherMissingDir(t *testing.T) {
	if _, err := NewWatcher(filepath.Join(t.TempDir(), "missing"), New(nil, nil), nil); err == nil {
		t.Fatalf("expected error for missing dir")
	}
}
