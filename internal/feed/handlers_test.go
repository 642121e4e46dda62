package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"backend-cragmap/internal/remote"

	"github.com/gofiber/fiber/v2"
)

func TestFeedHandlers(t *testing.T) {
	store := &flakyStore{Memory: remote.NewMemory()}
	svc := NewService(store, signedIn("Sam"))
	if _, err := svc.Publish(context.Background(), Event{Kind: KindLog, SiteName: "A", RouteName: "R1"}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	app := fiber.New()
	RegisterRoutes(app.Group("/feed"), svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/feed", nil))
	if err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("get feed: %v", err)
	}
	var out struct {
		Activities []Activity `json:"activities"`
	}
	raw, _ := io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &out); err != nil || len(out.Activities) != 1 {
		t.Fatalf("unexpected body %s", raw)
	}

	store.failQuery = true
	resp, _ = app.Test(httptest.NewRequest(http.MethodPost, "/feed/refresh", nil))
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when the feed cannot refresh, got %d", resp.StatusCode)
	}
	raw, _ = io.ReadAll(resp.Body)
	if err := json.Unmarshal(raw, &out); err != nil || len(out.Activities) != 1 {
		t.Fatalf("cached activities should still be returned: %s", raw)
	}
}
