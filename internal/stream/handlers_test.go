package stream

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
)

func serveHub(t *testing.T, hub *Hub) string {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "ws://" + ln.Addr().String()
}

func waitForSubscribers(t *testing.T, hub *Hub, topic string, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.Subscribers(topic) != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d subscribers on %s, have %d", n, topic, hub.Subscribers(topic))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil, nil))

	req := httptest.NewRequest(http.MethodGet, "/stream/ws/feed", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426, got %d", resp.StatusCode)
	}
}

func TestStreamHandlersWebsocketBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	base := serveHub(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/stream/ws/feed", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	waitForSubscribers(t, hub, TopicFeed, 1)

	hub.Broadcast(TopicFeed, []byte("hello"))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(msg) != "hello" {
		t.Fatalf("unexpected message")
	}

	if err := conn.WriteMessage(websocket.TextMessage, []byte("client")); err != nil {
		t.Fatalf("write error: %v", err)
	}
}

func TestStreamHandlersCloseUnregisters(t *testing.T) {
	hub := NewHub(nil, nil)
	base := serveHub(t, hub)

	conn, _, err := websocket.DefaultDialer.Dial(base+"/stream/ws/feed", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	waitForSubscribers(t, hub, TopicFeed, 1)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	waitForSubscribers(t, hub, TopicFeed, 0)
	hub.Broadcast(TopicFeed, []byte("ping"))
}
