package feed

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"backend-cragmap/internal/auth"
	"backend-cragmap/internal/metrics"
	"backend-cragmap/internal/remote"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingHub struct {
	mu       sync.Mutex
	topics   []string
	payloads [][]byte
}

func (h *recordingHub) Broadcast(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.topics = append(h.topics, topic)
	h.payloads = append(h.payloads, payload)
}

// flakyStore fails Add and/or Query on demand.
type flakyStore struct {
	*remote.Memory
	failAdd   bool
	failQuery bool
}

func (f *flakyStore) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	if f.failAdd {
		return "", errors.New("offline")
	}
	return f.Memory.Add(ctx, collection, data)
}

func (f *flakyStore) Query(ctx context.Context, collection string, q remote.Query) ([]remote.Document, error) {
	if f.failQuery {
		return nil, errors.New("offline")
	}
	return f.Memory.Query(ctx, collection, q)
}

func signedIn(label string) *auth.Session {
	s := auth.NewSession()
	s.SignIn(auth.Identity{ID: "user-1", DisplayLabel: label})
	return s
}

func TestPublishRequiresIdentity(t *testing.T) {
	store := remote.NewMemory()
	svc := NewService(store, auth.NewSession())

	if _, err := svc.Publish(context.Background(), Event{Kind: KindFavorite, SiteName: "A", RouteName: "R1"}); !errors.Is(err, auth.ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity, got %v", err)
	}
	if store.Len(remote.CollectionActivities) != 0 {
		t.Fatalf("nothing should be written without a user")
	}
}

func TestPublishShapesActivity(t *testing.T) {
	store := remote.NewMemory()
	hub := &recordingHub{}
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(store, signedIn(""), WithBroadcaster(hub), WithClock(func() time.Time { return now }))

	act, err := svc.Publish(context.Background(), Event{
		Kind:      KindLog,
		SiteName:  "Fair Head",
		RouteName: "Hurricane",
		Notes:     strings.Repeat("é", 150),
	})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if act.ID == "" || act.UserLabel != auth.AnonymousLabel {
		t.Fatalf("unexpected activity %+v", act)
	}
	if n := len([]rune(act.Notes)); n != NotesLimit {
		t.Fatalf("notes not truncated: %d runes", n)
	}

	doc, err := store.Get(context.Background(), remote.CollectionActivities, act.ID)
	if err != nil {
		t.Fatalf("stored activity: %v", err)
	}
	if _, ok := doc.Data["difficulty"]; ok {
		t.Fatalf("empty difficulty must be omitted")
	}
	if _, ok := doc.Data["id"]; ok {
		t.Fatalf("id must not be stored as a field")
	}
	if doc.Data["timestamp"] != "2024-06-01T12:00:00.000Z" {
		t.Fatalf("unexpected timestamp %v", doc.Data["timestamp"])
	}

	if len(hub.topics) != 1 || hub.topics[0] != "feed" {
		t.Fatalf("expected one feed broadcast, got %v", hub.topics)
	}
	var pushed Activity
	if err := json.Unmarshal(hub.payloads[0], &pushed); err != nil || pushed.ID != act.ID {
		t.Fatalf("unexpected broadcast payload %s", hub.payloads[0])
	}

	if got := svc.Activities(); len(got) != 1 || got[0].ID != act.ID {
		t.Fatalf("publish should refresh the feed, got %+v", got)
	}
}

func TestPublishOmitsBlankNotes(t *testing.T) {
	store := remote.NewMemory()
	svc := NewService(store, signedIn("Sam"))

	act, err := svc.Publish(context.Background(), Event{Kind: KindFavorite, SiteName: "A", RouteName: "R1", Difficulty: "VS", Notes: "   "})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	doc, _ := store.Get(context.Background(), remote.CollectionActivities, act.ID)
	if _, ok := doc.Data["notes"]; ok {
		t.Fatalf("blank notes must be omitted")
	}
	if doc.Data["difficulty"] != "VS" || doc.Data["userLabel"] != "Sam" {
		t.Fatalf("unexpected fields %v", doc.Data)
	}
}

func TestRefreshOrdersAndLimits(t *testing.T) {
	store := remote.NewMemory()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := base
	svc := NewService(store, signedIn("Sam"), WithLimit(3), WithClock(func() time.Time { return clock }))

	for i := 0; i < 5; i++ {
		clock = base.Add(time.Duration(i) * time.Minute)
		if _, err := svc.Publish(context.Background(), Event{Kind: KindLog, SiteName: "A", RouteName: string(rune('a' + i))}); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	items, err := svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected limit 3, got %d", len(items))
	}
	if items[0].RouteName != "e" || items[2].RouteName != "c" {
		t.Fatalf("expected newest first, got %+v", items)
	}
}

func TestRefreshFailureKeepsPreviousList(t *testing.T) {
	store := &flakyStore{Memory: remote.NewMemory()}
	m := metrics.New()
	svc := NewService(store, signedIn("Sam"), WithMetrics(m))

	if _, err := svc.Publish(context.Background(), Event{Kind: KindFavorite, SiteName: "A", RouteName: "R1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	store.failQuery = true

	items, err := svc.Refresh(context.Background())
	if err == nil {
		t.Fatalf("expected refresh error")
	}
	if len(items) != 1 || len(svc.Activities()) != 1 {
		t.Fatalf("previous list should be kept")
	}
	if got := testutil.ToFloat64(m.FeedRefresh.WithLabelValues("error")); got != 1 {
		t.Fatalf("refresh error metric = %v", got)
	}
}

func TestPublishFailureReported(t *testing.T) {
	store := &flakyStore{Memory: remote.NewMemory(), failAdd: true}
	hub := &recordingHub{}
	m := metrics.New()
	svc := NewService(store, signedIn("Sam"), WithBroadcaster(hub), WithMetrics(m))

	if _, err := svc.Publish(context.Background(), Event{Kind: KindLog, SiteName: "A", RouteName: "R1"}); err == nil {
		t.Fatalf("expected publish error")
	}
	if len(hub.topics) != 0 {
		t.Fatalf("failed publish must not broadcast")
	}
	if got := testutil.ToFloat64(m.FeedPublished.WithLabelValues("log", "error")); got != 1 {
		t.Fatalf("publish error metric = %v", got)
	}
}

func TestBindCachesIdentity(t *testing.T) {
	session := auth.NewSession()
	svc := NewService(remote.NewMemory(), session)
	svc.Bind()
	defer svc.Close()

	session.SignIn(auth.Identity{ID: "user-2", DisplayLabel: "Two"})
	act, err := svc.Publish(context.Background(), Event{Kind: KindFavorite, SiteName: "A", RouteName: "R"})
	if err != nil || act.UserID != "user-2" {
		t.Fatalf("expected bound identity, got %+v %v", act, err)
	}

	session.SignOut()
	if _, err := svc.Publish(context.Background(), Event{Kind: KindFavorite, SiteName: "A", RouteName: "R"}); !errors.Is(err, auth.ErrNoIdentity) {
		t.Fatalf("expected ErrNoIdentity after sign out, got %v", err)
	}
}
