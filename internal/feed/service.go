package feed

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"backend-cragmap/internal/auth"
	"backend-cragmap/internal/metrics"
	"backend-cragmap/internal/remote"
	"backend-cragmap/internal/stream"

	"go.uber.org/zap"
)

const (
	DefaultLimit = 50
	NotesLimit   = 100
)

// Broadcaster pushes a payload to live subscribers of a topic.
type Broadcaster interface {
	Broadcast(topic string, payload []byte)
}

type Option func(*Service)

func WithLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.limit = n
		}
	}
}

func WithBroadcaster(b Broadcaster) Option {
	return func(s *Service) { s.hub = b }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service publishes activities to the shared collection and keeps the most
// recent page of them in memory.
type Service struct {
	store    remote.DocumentStore
	identity auth.Provider
	hub      Broadcaster
	metrics  *metrics.Collector
	logger   *zap.Logger
	limit    int
	now      func() time.Time

	mu         sync.RWMutex
	activities []Activity
	loaded     bool
	user       *auth.Identity
	unsub      func()
}

func NewService(store remote.DocumentStore, identity auth.Provider, opts ...Option) *Service {
	s := &Service{
		store:    store,
		identity: identity,
		logger:   zap.NewNop(),
		limit:    DefaultLimit,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind caches the signed-in user from auth-state changes.
func (s *Service) Bind() {
	if s.identity == nil || s.unsub != nil {
		return
	}
	s.unsub = s.identity.Subscribe(func(id *auth.Identity) {
		s.mu.Lock()
		s.user = id
		s.mu.Unlock()
	})
}

func (s *Service) Close() {
	if s.unsub != nil {
		s.unsub()
		s.unsub = nil
	}
}

func (s *Service) resolveUser(ctx context.Context) *auth.Identity {
	s.mu.RLock()
	cached := s.user
	s.mu.RUnlock()
	if cached != nil {
		return cached
	}
	if s.identity == nil {
		return nil
	}
	id, err := s.identity.CurrentUser(ctx)
	if err != nil {
		s.logger.Warn("identity lookup failed", zap.Error(err))
		return nil
	}
	return id
}

// Publish appends ev to the activity collection as the current user and
// refreshes the feed. It returns auth.ErrNoIdentity when nobody is signed in.
func (s *Service) Publish(ctx context.Context, ev Event) (Activity, error) {
	user := s.resolveUser(ctx)
	if user == nil || user.ID == "" {
		return Activity{}, auth.ErrNoIdentity
	}

	label := user.DisplayLabel
	if label == "" {
		label = auth.AnonymousLabel
	}
	act := Activity{
		UserID:     user.ID,
		UserLabel:  label,
		Kind:       ev.Kind,
		SiteName:   ev.SiteName,
		RouteName:  ev.RouteName,
		Difficulty: ev.Difficulty,
		Timestamp:  remote.NewTime(s.now()),
	}
	if strings.TrimSpace(ev.Notes) != "" {
		act.Notes = truncate(ev.Notes, NotesLimit)
	}

	data, err := remote.Encode(act)
	if err != nil {
		return Activity{}, err
	}
	act.ID, err = s.store.Add(ctx, remote.CollectionActivities, data)
	s.metrics.Published(string(ev.Kind), err)
	if err != nil {
		s.logger.Warn("publish activity failed",
			zap.String("type", string(ev.Kind)),
			zap.String("route", ev.RouteName),
			zap.Error(err))
		return Activity{}, err
	}

	if s.hub != nil {
		if payload, err := json.Marshal(act); err == nil {
			s.hub.Broadcast(stream.TopicFeed, payload)
		}
	}
	s.logger.Debug("activity published", zap.String("id", act.ID), zap.String("type", string(act.Kind)))

	s.Refresh(ctx)
	return act, nil
}

// Refresh reloads the newest activities. On failure the previous list is
// kept and returned with the error.
func (s *Service) Refresh(ctx context.Context) ([]Activity, error) {
	docs, err := s.store.Query(ctx, remote.CollectionActivities, remote.Query{
		OrderBy:    "timestamp",
		Descending: true,
		Limit:      s.limit,
	})
	s.metrics.Refreshed(err)
	if err != nil {
		s.logger.Warn("feed refresh failed", zap.Error(err))
		return s.Activities(), err
	}

	items := make([]Activity, 0, len(docs))
	for _, doc := range docs {
		var act Activity
		if err := remote.Decode(doc, &act); err != nil {
			s.logger.Warn("skipping malformed activity", zap.String("id", doc.ID), zap.Error(err))
			continue
		}
		act.ID = doc.ID
		items = append(items, act)
	}

	s.mu.Lock()
	s.activities = items
	s.loaded = true
	s.mu.Unlock()
	return cloneActivities(items), nil
}

// Activities returns the in-memory feed, newest first.
func (s *Service) Activities() []Activity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneActivities(s.activities)
}

// Loaded reports whether a refresh has ever succeeded.
func (s *Service) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func cloneActivities(in []Activity) []Activity {
	out := make([]Activity, len(in))
	copy(out, in)
	return out
}
