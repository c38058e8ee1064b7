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

func startApp(t *testing.T, hub *Hub, authorize Authorizer) string {
	t.Helper()
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), hub, authorize)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen error: %v", err)
	}
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() { _ = app.Shutdown() })
	return ln.Addr().String()
}

func waitForSubscriber(t *testing.T, hub *Hub, topic string) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for hub.Subscribers(topic) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered on %s", topic)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestStreamHandlersUpgradeRequired(t *testing.T) {
	app := fiber.New()
	RegisterRoutes(app.Group("/stream"), NewHub(nil, nil), nil)

	req := httptest.NewRequest(http.MethodGet, "/stream/ws/reports", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request error: %v", err)
	}
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("expected 426 for non-websocket request, got %d", resp.StatusCode)
	}
}

func TestStreamHandlersWebsocketBroadcast(t *testing.T) {
	hub := NewHub(nil, nil)
	addr := startApp(t, hub, nil)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream/ws/reports", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	waitForSubscriber(t, hub, TopicReports)

	hub.Broadcast(TopicReports, []byte(`{"type":"report.approved"}`))
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(msg) != `{"type":"report.approved"}` {
		t.Fatalf("unexpected message %s", msg)
	}
}

func TestStreamHandlersUnregisterOnClose(t *testing.T) {
	hub := NewHub(nil, nil)
	addr := startApp(t, hub, nil)

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream/ws/navigation:n-1", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	waitForSubscriber(t, hub, "navigation:n-1")

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers("navigation:n-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client not unregistered after close")
		}
		time.Sleep(5 * time.Millisecond)
	}
	hub.Broadcast("navigation:n-1", []byte("ping"))
}

func TestStreamHandlersAuthorizeTopic(t *testing.T) {
	hub := NewHub(nil, nil)
	seen := make(chan string, 4)
	addr := startApp(t, hub, func(c *fiber.Ctx, topic string) error {
		seen <- topic
		if c.Query("token") != "let-me-in" {
			return fiber.NewError(fiber.StatusUnauthorized, "access token required")
		}
		return nil
	})

	_, resp, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream/ws/navigation:n-2", nil)
	if err == nil {
		t.Fatalf("expected handshake to be refused")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 on handshake, got %v", resp)
	}
	if hub.Subscribers("navigation:n-2") != 0 {
		t.Fatalf("refused client must not be registered")
	}

	conn, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/stream/ws/navigation:n-2?token=let-me-in", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer conn.Close()
	waitForSubscriber(t, hub, "navigation:n-2")
	if len(seen) != 2 || <-seen != "navigation:n-2" {
		t.Fatalf("expected both handshakes to reach the authorizer")
	}
}
