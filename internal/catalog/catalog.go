package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"sync"

	"backend-cragmap/internal/cache"
	"backend-cragmap/internal/metrics"

	"go.uber.org/zap"
)

// Catalog holds the session's site list. Sites are immutable once loaded;
// Refresh may only append new sites or new routes.
type Catalog struct {
	mu      sync.RWMutex
	sites   []Site
	byID    map[string]int
	options Options
	loaded  bool

	cache   cache.Store
	logger  *zap.Logger
	metrics *metrics.Collector
}

func New(store cache.Store, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{cache: store, logger: logger, byID: map[string]int{}}
}

// SetMetrics reports the site count to m from now on.
func (c *Catalog) SetMetrics(m *metrics.Collector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
	if c.loaded {
		m.SetCatalogSites(len(c.sites))
	}
}

// Load reads the static datasets, then folds in any sites a previous
// refresh cached locally.
func (c *Catalog) Load(ctx context.Context, fsys fs.FS) (Report, error) {
	sites, report, err := Load(ctx, fsys)
	if err != nil {
		return report, err
	}
	for _, issue := range report.Issues {
		c.logger.Warn("catalog entry excluded",
			zap.String("file", issue.File), zap.String("region", issue.Region),
			zap.Int("index", issue.Index), zap.String("site", issue.Site), zap.String("reason", issue.Reason))
	}

	if cached := c.readCache(ctx); len(cached) > 0 {
		var stats MergeStats
		sites, stats = Merge(sites, cached)
		c.logger.Debug("catalog cache folded in", zap.Int("new_sites", stats.NewSites), zap.Int("new_routes", stats.NewRoutes))
	}

	c.set(sites)
	return report, nil
}

// Refresh merges one region document into the catalog and persists the
// merged list locally.
func (c *Catalog) Refresh(ctx context.Context, data []byte) (MergeStats, []Issue, error) {
	incoming, issues, err := ParseDataset(data)
	if err != nil {
		return MergeStats{}, nil, err
	}

	c.mu.Lock()
	merged, stats := Merge(c.sites, incoming)
	if stats.NewSites > 0 || stats.NewRoutes > 0 {
		c.setLocked(merged)
	}
	c.mu.Unlock()

	if stats.NewSites > 0 || stats.NewRoutes > 0 {
		c.writeCache(ctx, merged)
	}
	return stats, issues, nil
}

func (c *Catalog) Sites() []Site {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sites
}

func (c *Catalog) Site(id string) (Site, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return Site{}, false
	}
	return c.sites[i], true
}

func (c *Catalog) Options() Options {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.options
}

// Loading is true until the first Load completes.
func (c *Catalog) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.loaded
}

func (c *Catalog) set(sites []Site) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(sites)
}

func (c *Catalog) setLocked(sites []Site) {
	byID := make(map[string]int, len(sites))
	for i, s := range sites {
		byID[s.ID] = i
	}
	c.sites = sites
	c.byID = byID
	c.options = BuildOptions(sites)
	c.loaded = true
	c.metrics.SetCatalogSites(len(sites))
}

func (c *Catalog) readCache(ctx context.Context) []Site {
	if c.cache == nil {
		return nil
	}
	raw, err := c.cache.Get(ctx, cache.KeySites)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		c.logger.Warn("read catalog cache", zap.Error(err))
		return nil
	}
	var sites []Site
	if err := json.Unmarshal(raw, &sites); err != nil {
		c.logger.Warn("corrupt catalog cache ignored", zap.Error(err))
		return nil
	}
	valid := sites[:0]
	for _, s := range sites {
		if s.HasCoordinates() && s.ID != "" {
			valid = append(valid, s)
		}
	}
	return valid
}

func (c *Catalog) writeCache(ctx context.Context, sites []Site) {
	if c.cache == nil {
		return
	}
	raw, err := json.Marshal(sites)
	if err != nil {
		c.logger.Warn("encode catalog cache", zap.Error(err))
		return
	}
	if err := c.cache.Set(ctx, cache.KeySites, raw); err != nil {
		c.logger.Warn("write catalog cache", zap.Error(err))
	}
}
