package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/sony/gobreaker"
)

var errRemote = errors.New("remote unavailable")

type failingStore struct{ err error }

func (f failingStore) Get(context.Context, string, string) (Document, error) { return Document{}, f.err }
func (f failingStore) Put(context.Context, string, string, map[string]any) error {
	return f.err
}
func (f failingStore) Delete(context.Context, string, string) error { return f.err }
func (f failingStore) Query(context.Context, string, Query) ([]Document, error) {
	return nil, f.err
}
func (f failingStore) Add(context.Context, string, map[string]any) (string, error) {
	return "", f.err
}

func TestMemoryPutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	if err := m.Put(ctx, CollectionFavorites, "fav-1", map[string]any{"userId": "u1", "siteName": "Fair Head"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	doc, err := m.Get(ctx, CollectionFavorites, "fav-1")
	if err != nil || doc.Data["siteName"] != "Fair Head" {
		t.Fatalf("unexpected doc %+v: %v", doc, err)
	}
	if err := m.Delete(ctx, CollectionFavorites, "fav-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, CollectionFavorites, "fav-1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found")
	}
}

func TestMemoryQuery(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Put(ctx, CollectionLogs, "a", map[string]any{"userId": "u1", "date": "2024-01-01"})
	_ = m.Put(ctx, CollectionLogs, "b", map[string]any{"userId": "u2", "date": "2024-02-01"})
	_ = m.Put(ctx, CollectionLogs, "c", map[string]any{"userId": "u1", "date": "2024-03-01"})

	docs, err := m.Query(ctx, CollectionLogs, Query{Field: "userId", Equals: "u1"})
	if err != nil || len(docs) != 2 {
		t.Fatalf("expected 2 docs for u1, got %d: %v", len(docs), err)
	}

	docs, _ = m.Query(ctx, CollectionLogs, Query{OrderBy: "date", Descending: true, Limit: 2})
	if len(docs) != 2 || docs[0].ID != "c" || docs[1].ID != "b" {
		t.Fatalf("unexpected ordering: %+v", docs)
	}
}

func TestMemoryAddAssignsID(t *testing.T) {
	m := NewMemory()
	id, err := m.Add(context.Background(), CollectionActivities, map[string]any{"type": "log"})
	if err != nil || id == "" {
		t.Fatalf("add: %q %v", id, err)
	}
	if m.Len(CollectionActivities) != 1 {
		t.Fatalf("expected one activity")
	}
}

func TestEncodeDropsNulls(t *testing.T) {
	type rec struct {
		ID         string  `json:"id"`
		Difficulty string  `json:"difficulty,omitempty"`
		Height     *int    `json:"height"`
		Grade      *string `json:"grade,omitempty"`
	}
	fields, err := Encode(rec{ID: "x"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(fields) != 1 || fields["id"] != "x" {
		t.Fatalf("expected only id field, got %v", fields)
	}

	var back rec
	if err := Decode(Document{ID: "x", Data: fields}, &back); err != nil || back.ID != "x" {
		t.Fatalf("decode: %+v %v", back, err)
	}
}

func TestPostgresPutGet(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(CollectionFavorites, "fav-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`SELECT data FROM documents`).
		WithArgs(CollectionFavorites, "fav-1").
		WillReturnRows(pgxmock.NewRows([]string{"data"}).AddRow([]byte(`{"userId":"u1","routeName":"The Thing"}`)))
	mock.ExpectQuery(`SELECT data FROM documents`).
		WithArgs(CollectionFavorites, "missing").
		WillReturnError(errNoRows())

	p := NewPostgres(mock)
	ctx := context.Background()
	if err := p.Put(ctx, CollectionFavorites, "fav-1", map[string]any{"userId": "u1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	doc, err := p.Get(ctx, CollectionFavorites, "fav-1")
	if err != nil || doc.Data["routeName"] != "The Thing" {
		t.Fatalf("get: %+v %v", doc, err)
	}
	if _, err := p.Get(ctx, CollectionFavorites, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresQueryAndDelete(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT id, data FROM documents WHERE collection=\$1 AND data->>\$2 = \$3 ORDER BY id`).
		WithArgs(CollectionLogs, "userId", "u1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}).
			AddRow("log-1", []byte(`{"userId":"u1"}`)).
			AddRow("log-2", []byte(`{"userId":"u1"}`)))
	mock.ExpectQuery(`ORDER BY data->>\$2 DESC LIMIT \$3`).
		WithArgs(CollectionActivities, "timestamp", 50).
		WillReturnRows(pgxmock.NewRows([]string{"id", "data"}))
	mock.ExpectExec(`DELETE FROM documents`).
		WithArgs(CollectionLogs, "log-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	p := NewPostgres(mock)
	ctx := context.Background()
	docs, err := p.Query(ctx, CollectionLogs, Query{Field: "userId", Equals: "u1"})
	if err != nil || len(docs) != 2 {
		t.Fatalf("query: %d %v", len(docs), err)
	}
	docs, err = p.Query(ctx, CollectionActivities, Query{OrderBy: "timestamp", Descending: true, Limit: 50})
	if err != nil || len(docs) != 0 {
		t.Fatalf("activity query: %v", err)
	}
	if err := p.Delete(ctx, CollectionLogs, "log-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresAddAndMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS documents`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(CollectionActivities, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO documents`).
		WithArgs(CollectionActivities, pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(errRemote)

	p := NewPostgres(mock)
	ctx := context.Background()
	if err := p.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	id, err := p.Add(ctx, CollectionActivities, map[string]any{"type": "favorite"})
	if err != nil || id == "" {
		t.Fatalf("add: %q %v", id, err)
	}
	if _, err := p.Add(ctx, CollectionActivities, map[string]any{"type": "favorite"}); err == nil {
		t.Fatalf("expected add error")
	}
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	cfg := DefaultBreakerConfig("test")
	cfg.MinRequests = 2
	cfg.FailureThreshold = 0.5
	cfg.Timeout = time.Minute
	b := NewBreaker(failingStore{err: errRemote}, cfg, nil)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := b.Put(ctx, CollectionFavorites, "x", nil); !errors.Is(err, errRemote) {
			t.Fatalf("expected remote error, got %v", err)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("expected open breaker, got %v", b.State())
	}
	if _, err := b.Query(ctx, CollectionFavorites, Query{}); !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected fail-fast, got %v", err)
	}
}

func TestBreakerPassesThrough(t *testing.T) {
	b := NewBreaker(NewMemory(), DefaultBreakerConfig("mem"), nil)
	ctx := context.Background()

	id, err := b.Add(ctx, CollectionActivities, map[string]any{"type": "log"})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := b.Get(ctx, CollectionActivities, id); err != nil {
		t.Fatalf("get: %v", err)
	}
	for i := 0; i < 10; i++ {
		if _, err := b.Get(ctx, CollectionActivities, "missing"); !errors.Is(err, ErrNotFound) {
			t.Fatalf("expected not found, got %v", err)
		}
	}
	if b.State() != gobreaker.StateClosed {
		t.Fatalf("not-found must not trip the breaker")
	}
	if err := b.Delete(ctx, CollectionActivities, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	docs, err := b.Query(ctx, CollectionActivities, Query{})
	if err != nil || len(docs) != 0 {
		t.Fatalf("expected empty collection: %v", err)
	}
}

func errNoRows() error { return pgx.ErrNoRows }

func TestTimeOrdersAsText(t *testing.T) {
	utc := NewTime(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	shifted := NewTime(time.Date(2024, 5, 1, 10, 0, 0, 500_000_000, time.FixedZone("IST", 3600)))

	m := NewMemory()
	ctx := context.Background()
	for id, ts := range map[string]Time{"a": utc, "b": shifted} {
		data, err := Encode(struct {
			At Time `json:"timestamp"`
		}{ts})
		if err != nil {
			t.Fatalf("encode: %v", err)
		}
		if err := m.Put(ctx, CollectionActivities, id, data); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	docs, _ := m.Query(ctx, CollectionActivities, Query{OrderBy: "timestamp", Descending: true})
	// shifted is 09:00:00.500Z once normalized, so utc is newer.
	if len(docs) != 2 || docs[0].ID != "a" {
		t.Fatalf("unexpected order %+v", docs)
	}

	var back struct {
		At Time `json:"timestamp"`
	}
	if err := Decode(docs[1], &back); err != nil || !back.At.Equal(shifted.Time) {
		t.Fatalf("round trip: %v %v", back.At, err)
	}
}

func TestMemoryQueryOrdersNumbers(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.Put(ctx, "c", "small", map[string]any{"n": float64(9)})
	_ = m.Put(ctx, "c", "big", map[string]any{"n": float64(10)})
	docs, _ := m.Query(ctx, "c", Query{OrderBy: "n", Descending: true})
	if docs[0].ID != "big" {
		t.Fatalf("expected numeric ordering, got %+v", docs)
	}
}

func TestTimeAcceptsDateOnly(t *testing.T) {
	var v Time
	if err := v.UnmarshalJSON([]byte(`"2024-05-01"`)); err != nil {
		t.Fatalf("date only: %v", err)
	}
	if v.Year() != 2024 || v.Month() != time.May || v.Day() != 1 {
		t.Fatalf("unexpected date %v", v)
	}
	if err := v.UnmarshalJSON([]byte(`"yesterday"`)); err == nil {
		t.Fatalf("expected parse error")
	}
}
