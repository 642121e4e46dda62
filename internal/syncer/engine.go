// Package syncer keeps favorites and logs offline-first: every mutation lands
// in the local cache before it is mirrored to the remote document store, and
// pulls from the remote only ever add records.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"backend-cragmap/internal/auth"
	"backend-cragmap/internal/cache"
	"backend-cragmap/internal/feed"
	"backend-cragmap/internal/metrics"
	"backend-cragmap/internal/remote"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultMinInterval   = 2 * time.Second
	DefaultRemoteTimeout = 10 * time.Second
)

var ErrInvalidRecord = errors.New("syncer: invalid record")

// Record is anything the engine can store: it only needs a stable id.
type Record interface {
	RecordID() string
}

// Publisher receives an event for every addition made while a user is signed in.
type Publisher interface {
	Publish(ctx context.Context, ev feed.Event) (feed.Activity, error)
}

// Collection describes one synced record type.
type Collection[T Record] struct {
	Name     string
	CacheKey string
	Remote   string
	// Less orders the collection after loads and pulls. Nil keeps insertion order.
	Less func(a, b T) bool
	// SetID fills the id of a pulled record whose fields lack one.
	SetID func(rec *T, id string)
	// Event describes an addition for the activity feed. Nil publishes nothing.
	Event func(rec T) feed.Event
}

type settings struct {
	logger      *zap.Logger
	metrics     *metrics.Collector
	publisher   Publisher
	timeout     time.Duration
	minInterval time.Duration
	now         func() time.Time
}

type Option func(*settings)

func WithLogger(l *zap.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *settings) { s.metrics = m }
}

func WithPublisher(p Publisher) Option {
	return func(s *settings) { s.publisher = p }
}

func WithRemoteTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithMinInterval sets how far apart OnActivate refreshes must be.
func WithMinInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.minInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *settings) { s.now = now }
}

// Engine syncs one collection between the local cache and the remote store.
type Engine[T Record] struct {
	col      Collection[T]
	local    cache.Store
	store    remote.DocumentStore
	identity auth.Provider
	settings

	// mu keeps records and their cached serialization in step.
	mu      sync.Mutex
	records []T
	loading bool
	// unsaved is set while records hold changes the cache write rejected.
	unsaved bool

	userMu sync.RWMutex
	userID string

	limiter *rate.Limiter
	wg      sync.WaitGroup
	unsub   func()
}

func NewEngine[T Record](col Collection[T], local cache.Store, store remote.DocumentStore, identity auth.Provider, opts ...Option) *Engine[T] {
	s := settings{
		logger:      zap.NewNop(),
		timeout:     DefaultRemoteTimeout,
		minInterval: DefaultMinInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return &Engine[T]{
		col:      col,
		local:    local,
		store:    store,
		identity: identity,
		settings: s,
		limiter:  rate.NewLimiter(rate.Every(s.minInterval), 1),
	}
}

// Records returns the in-memory collection.
func (e *Engine[T]) Records() []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	return clone(e.records)
}

func (e *Engine[T]) Loading() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.loading
}

// UserID is the signed-in user the engine last saw, or "".
func (e *Engine[T]) UserID() string {
	e.userMu.RLock()
	defer e.userMu.RUnlock()
	return e.userID
}

// LoadLocal replaces the in-memory collection with the cached one. Missing
// or unreadable data loads as empty. When an earlier cache write failed the
// in-memory collection is newer, so it is written again instead of replaced.
func (e *Engine[T]) LoadLocal(ctx context.Context) []T {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.unsaved {
		e.persistLocked(ctx, "retry")
		return clone(e.records)
	}
	e.records = e.readLocked(ctx)
	e.sortLocked()
	return clone(e.records)
}

func (e *Engine[T]) readLocked(ctx context.Context) []T {
	raw, err := e.local.Get(ctx, e.col.CacheKey)
	if errors.Is(err, cache.ErrNotFound) {
		return []T{}
	}
	if err != nil {
		e.metrics.LocalFailure(e.col.Name, "read")
		e.logger.Warn("local read failed", zap.String("collection", e.col.Name), zap.Error(err))
		return []T{}
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		e.metrics.LocalFailure(e.col.Name, "parse")
		e.logger.Warn("local data corrupt, treating as empty", zap.String("collection", e.col.Name), zap.Error(err))
		return []T{}
	}
	if out == nil {
		out = []T{}
	}
	return out
}

func (e *Engine[T]) persistLocked(ctx context.Context, op string) {
	raw, err := json.Marshal(e.records)
	if err == nil {
		err = e.local.Set(ctx, e.col.CacheKey, raw)
	}
	if err != nil {
		e.unsaved = true
		e.metrics.LocalFailure(e.col.Name, op)
		e.logger.Warn("local write failed", zap.String("collection", e.col.Name), zap.String("op", op), zap.Error(err))
		return
	}
	e.unsaved = false
	e.metrics.LocalWrite(e.col.Name, op)
}

func (e *Engine[T]) sortLocked() {
	if e.col.Less != nil {
		sort.SliceStable(e.records, func(i, j int) bool { return e.col.Less(e.records[i], e.records[j]) })
	}
}

// PullRemote merges the user's remote records into the local collection.
// Only ids not already present locally are added; nothing local is removed.
// Remote failures leave the collection untouched.
func (e *Engine[T]) PullRemote(ctx context.Context, userID string) []T {
	if userID == "" {
		return e.Records()
	}
	e.setLoading(true)
	defer e.setLoading(false)

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	docs, err := e.store.Query(ctx, e.col.Remote, remote.Query{Field: "userId", Equals: userID})
	e.metrics.Mirror(e.col.Name, "pull", err)
	if err != nil {
		e.logger.Warn("remote pull failed", zap.String("collection", e.col.Name), zap.String("user_id", userID), zap.Error(err))
		return e.Records()
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	seen := make(map[string]struct{}, len(e.records))
	for _, rec := range e.records {
		seen[rec.RecordID()] = struct{}{}
	}
	added := 0
	for _, doc := range docs {
		var rec T
		if err := remote.Decode(doc, &rec); err != nil {
			e.logger.Warn("skipping malformed remote record", zap.String("collection", e.col.Name), zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		if rec.RecordID() == "" && e.col.SetID != nil {
			e.col.SetID(&rec, doc.ID)
		}
		id := rec.RecordID()
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		e.records = append(e.records, rec)
		added++
	}
	if added > 0 {
		e.sortLocked()
		e.persistLocked(ctx, "pull")
	}
	e.metrics.Pulled(e.col.Name, added)
	e.logger.Debug("remote pull merged", zap.String("collection", e.col.Name), zap.Int("added", added), zap.Int("total", len(e.records)))
	return clone(e.records)
}

func (e *Engine[T]) setLoading(v bool) {
	e.mu.Lock()
	e.loading = v
	e.mu.Unlock()
}

// Add prepends rec to the local collection and persists it, then mirrors it
// in the background when a user is signed in. If a record with the same id
// exists it is returned unchanged and added is false.
func (e *Engine[T]) Add(ctx context.Context, rec T) (stored T, added bool) {
	id := rec.RecordID()

	e.mu.Lock()
	for _, existing := range e.records {
		if existing.RecordID() == id {
			e.mu.Unlock()
			return existing, false
		}
	}
	e.records = append([]T{rec}, e.records...)
	e.persistLocked(ctx, "add")
	e.mu.Unlock()

	if userID := e.resolveUser(ctx); userID != "" {
		e.mirror(func(ctx context.Context) {
			e.mirrorAdd(ctx, userID, rec)
		})
	}
	return rec, true
}

func (e *Engine[T]) mirrorAdd(ctx context.Context, userID string, rec T) {
	data, err := remote.Encode(rec)
	if err == nil {
		data["userId"] = userID
		err = e.store.Put(ctx, e.col.Remote, rec.RecordID(), data)
	}
	e.metrics.Mirror(e.col.Name, "put", err)
	if err != nil {
		e.logger.Warn("remote mirror failed", zap.String("collection", e.col.Name), zap.String("id", rec.RecordID()), zap.Error(err))
	}
	if e.publisher == nil || e.col.Event == nil {
		return
	}
	if _, err := e.publisher.Publish(ctx, e.col.Event(rec)); err != nil && !errors.Is(err, auth.ErrNoIdentity) {
		e.logger.Debug("activity not published", zap.String("collection", e.col.Name), zap.Error(err))
	}
}

// Remove drops id locally and, when a user is signed in, remotely in the
// background. It reports whether a local record was removed.
func (e *Engine[T]) Remove(ctx context.Context, id string) bool {
	id = strings.Clone(id)
	e.mu.Lock()
	kept := make([]T, 0, len(e.records))
	for _, rec := range e.records {
		if rec.RecordID() != id {
			kept = append(kept, rec)
		}
	}
	removed := len(kept) != len(e.records)
	e.records = kept
	e.persistLocked(ctx, "remove")
	e.mu.Unlock()

	if userID := e.resolveUser(ctx); userID != "" {
		e.mirror(func(ctx context.Context) {
			err := e.store.Delete(ctx, e.col.Remote, id)
			e.metrics.Mirror(e.col.Name, "delete", err)
			if err != nil {
				e.logger.Warn("remote delete failed", zap.String("collection", e.col.Name), zap.String("id", id), zap.Error(err))
			}
		})
	}
	return removed
}

// resolveUser prefers the bound user and falls back to a fresh lookup.
func (e *Engine[T]) resolveUser(ctx context.Context) string {
	if id := e.UserID(); id != "" {
		return id
	}
	if e.identity == nil {
		return ""
	}
	id, err := e.identity.CurrentUser(ctx)
	if err != nil {
		e.logger.Warn("identity lookup failed", zap.Error(err))
		return ""
	}
	if id == nil {
		return ""
	}
	return id.ID
}

// mirror runs fn detached from the caller's context.
func (e *Engine[T]) mirror(fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		defer cancel()
		fn(ctx)
	}()
}

// Bind follows auth-state changes. Whenever a signed-in user appears who
// differs from the previous one, their remote records are pulled once.
func (e *Engine[T]) Bind() {
	if e.identity == nil || e.unsub != nil {
		return
	}
	e.unsub = e.identity.Subscribe(func(id *auth.Identity) {
		next := ""
		if id != nil {
			next = id.ID
		}
		e.userMu.Lock()
		prev := e.userID
		e.userID = next
		e.userMu.Unlock()

		if next != "" && next != prev {
			e.mirror(func(ctx context.Context) {
				e.PullRemote(ctx, next)
			})
		}
	})
}

// Refresh reloads the local collection and pulls for the bound user.
func (e *Engine[T]) Refresh(ctx context.Context) []T {
	e.limiter.AllowN(e.now(), 1)
	return e.refresh(ctx)
}

func (e *Engine[T]) refresh(ctx context.Context) []T {
	e.setLoading(true)
	records := e.LoadLocal(ctx)
	e.setLoading(false)
	if userID := e.UserID(); userID != "" {
		records = e.PullRemote(ctx, userID)
	}
	return records
}

// OnActivate is called when a consumer of the collection becomes active.
// Activations closer together than the minimum interval are skipped.
func (e *Engine[T]) OnActivate(ctx context.Context) ([]T, bool) {
	if !e.limiter.AllowN(e.now(), 1) {
		e.logger.Debug("activation refresh skipped", zap.String("collection", e.col.Name))
		return e.Records(), false
	}
	return e.refresh(ctx), true
}

// Wait blocks until background mirroring has finished.
func (e *Engine[T]) Wait() {
	e.wg.Wait()
}

// Close stops following auth changes and waits for background work.
func (e *Engine[T]) Close() {
	if e.unsub != nil {
		e.unsub()
		e.unsub = nil
	}
	e.wg.Wait()
}

func clone[T any](in []T) []T {
	out := make([]T, len(in))
	copy(out, in)
	return out
}
