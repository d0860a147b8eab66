package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/fitcompany/console/internal/auth"
)

// mockClient creates a client for testing without a real WebSocket connection
func mockClient(hub *Hub, topic string) *Client {
	return &Client{
		hub:    hub,
		topic:  topic,
		send:   make(chan []byte, 16),
		logger: zap.NewNop(),
	}
}

func TestHubRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := mockClient(hub, TopicAlerts)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	if hub.Subscribers(TopicAlerts) != 1 {
		t.Fatalf("subscribers: got %d, want 1", hub.Subscribers(TopicAlerts))
	}
}

func TestHubUnregistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := mockClient(hub, TopicAlerts)
	hub.register <- client
	time.Sleep(10 * time.Millisecond)

	hub.unregister <- client
	time.Sleep(10 * time.Millisecond)

	hub.mu.RLock()
	defer hub.mu.RUnlock()
	if hub.rooms[TopicAlerts] != nil {
		t.Fatal("room not cleaned up after last client unregistered")
	}
	if _, open := <-client.send; open {
		t.Fatal("send channel should be closed")
	}
}

func TestBroadcastToAllSubscribers(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	clients := []*Client{mockClient(hub, TopicAlerts), mockClient(hub, TopicAlerts), mockClient(hub, "other")}
	for _, c := range clients {
		hub.register <- c
	}
	time.Sleep(10 * time.Millisecond)

	payload := json.RawMessage(`[{"key":"MIN:1"}]`)
	hub.Broadcast(TopicAlerts, Event{Type: "alerts", Payload: payload})

	for i, c := range clients[:2] {
		select {
		case msg := <-c.send:
			var received Event
			if err := json.Unmarshal(msg, &received); err != nil {
				t.Fatalf("client%d: unmarshal: %v", i+1, err)
			}
			if received.Type != "alerts" {
				t.Errorf("client%d: type %q", i+1, received.Type)
			}
			if string(received.Payload) != string(payload) {
				t.Errorf("client%d: payload %s", i+1, received.Payload)
			}
		case <-time.After(100 * time.Millisecond):
			t.Fatalf("client%d did not receive message", i+1)
		}
	}

	select {
	case <-clients[2].send:
		t.Fatal("client on another topic should not receive the message")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubReplaysLastEvent(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	if err := hub.Publish(TopicAlerts, "alerts", []string{"MIN:3"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(10 * time.Millisecond)

	late := mockClient(hub, TopicAlerts)
	hub.register <- late

	select {
	case msg := <-late.send:
		if !strings.Contains(string(msg), "MIN:3") {
			t.Errorf("replayed message: %s", msg)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("late subscriber did not get the last event")
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	slow := &Client{hub: hub, topic: TopicAlerts, send: make(chan []byte), logger: zap.NewNop()}
	hub.register <- slow
	time.Sleep(10 * time.Millisecond)

	hub.Broadcast(TopicAlerts, Event{Type: "alerts", Payload: json.RawMessage(`[]`)})
	time.Sleep(10 * time.Millisecond)

	if hub.Subscribers(TopicAlerts) != 0 {
		t.Fatal("client with a full buffer should be dropped")
	}
}

func TestServeWS(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWS(hub, TopicAlerts, "", zap.NewNop(), w, r)
	}))
	defer srv.Close()

	base := "ws" + strings.TrimPrefix(srv.URL, "http")

	if _, resp, err := websocket.DefaultDialer.Dial(base, nil); err == nil {
		t.Fatal("dial without token should fail")
	} else if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status: got %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}

	token, err := auth.GenerateToken("x", auth.Claims{Identificacion: "1"}, time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+token, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(time.Second)
	for hub.Subscribers(TopicAlerts) == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	hub.Broadcast(TopicAlerts, Event{Type: "alerts", Payload: json.RawMessage(`[]`)})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	var got Event
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got.Type != "alerts" {
		t.Errorf("type: got %q, want alerts", got.Type)
	}
}
