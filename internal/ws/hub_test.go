package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/cellgate/cellgate/internal/monitor"
	"github.com/cellgate/cellgate/internal/server"
)

func testLogger() *zap.Logger {
	return zap.NewNop()
}

func newTestClient(id string) *Client {
	return &Client{
		conn:   nil, // Not needed for hub tests
		id:     id,
		send:   make(chan Message, 16),
		logger: testLogger(),
	}
}

func TestNewHub(t *testing.T) {
	hub := NewHub(testLogger())

	if hub == nil {
		t.Fatal("NewHub() returned nil")
	}
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestRegisterUnregister(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("client-1")

	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("ClientCount() = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}

	// Verify channel is closed by attempting to receive.
	if _, ok := <-client.send; ok {
		t.Error("client.send channel is not closed")
	}
}

func TestUnregisterNotRegistered(t *testing.T) {
	hub := NewHub(testLogger())
	client := newTestClient("client-1")

	// Unregister without registering first should not panic.
	defer func() {
		if r := recover(); r != nil {
			t.Errorf("Unregister() panicked: %v", r)
		}
	}()
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("ClientCount() = %d, want 0", hub.ClientCount())
	}
}

func TestBroadcast(t *testing.T) {
	hub := NewHub(testLogger())
	first := newTestClient("client-1")
	second := newTestClient("client-2")
	hub.Register(first)
	hub.Register(second)

	msg := Message{Type: MessageHealthChanged, Timestamp: time.Now()}
	hub.Broadcast(msg)

	for _, c := range []*Client{first, second} {
		select {
		case got := <-c.send:
			if got.Type != MessageHealthChanged {
				t.Errorf("client %s got type %q, want %q", c.id, got.Type, MessageHealthChanged)
			}
		default:
			t.Errorf("client %s received nothing", c.id)
		}
	}
}

func TestBroadcastFullBufferDropsMessage(t *testing.T) {
	hub := NewHub(testLogger())
	client := &Client{
		id:     "slow",
		send:   make(chan Message), // no buffer, nobody reading
		logger: testLogger(),
	}
	hub.Register(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Broadcast(Message{Type: MessageHealthChanged})
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a slow client")
	}
}

// fixedSource serves a constant status.
type fixedSource struct {
	st monitor.Status
}

func (f fixedSource) Status() monitor.Status { return f.st }

func TestHandler_SnapshotAndBroadcast(t *testing.T) {
	source := fixedSource{st: monitor.Status{Status: "online", IP: "192.168.12.1"}}
	h := NewHandler(source, testLogger())

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/router/ws/health"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// Connect delivers the current status as a snapshot.
	var snapshot Message
	if err := wsjson.Read(ctx, conn, &snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Type != MessageHealthSnapshot {
		t.Errorf("first message type = %q, want %q", snapshot.Type, MessageHealthSnapshot)
	}

	// Wait for the hub to register the client before broadcasting.
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	h.BroadcastStatus(monitor.Status{Status: "offline", IP: "192.168.12.1", Message: "Connection timeout"})

	var change Message
	if err := wsjson.Read(ctx, conn, &change); err != nil {
		t.Fatalf("read change: %v", err)
	}
	if change.Type != MessageHealthChanged {
		t.Errorf("change type = %q, want %q", change.Type, MessageHealthChanged)
	}

	data, ok := change.Data.(map[string]any)
	if !ok {
		t.Fatalf("change data is %T, want an object", change.Data)
	}
	status, _ := data["status"].(map[string]any)
	if status["status"] != "offline" {
		t.Errorf("pushed status = %v, want offline", status["status"])
	}
}

// The upgrade must survive the server's full middleware chain. A logging
// wrapper that hides the underlying Hijacker turns every dial into a 501.
func TestHandler_UpgradeThroughMiddlewareChain(t *testing.T) {
	source := fixedSource{st: monitor.Status{Status: "online", IP: "192.168.12.1"}}
	h := NewHandler(source, testLogger())

	s := server.New("127.0.0.1:0", testLogger(), nil, nil, false, h)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/router/ws/health"
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial through middleware chain: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var snapshot Message
	if err := wsjson.Read(ctx, conn, &snapshot); err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if snapshot.Type != MessageHealthSnapshot {
		t.Errorf("first message type = %q, want %q", snapshot.Type, MessageHealthSnapshot)
	}
}
