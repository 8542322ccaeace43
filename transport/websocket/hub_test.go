package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wricardo/readme-2048/game/engine"
	"github.com/wricardo/readme-2048/game/service"
)

func newClient(hub *Hub, sessionID string) *Client {
	return &Client{hub: hub, sessionID: sessionID, send: make(chan []byte, 256)}
}

func TestHubRegisterUnregister(t *testing.T) {
	hub := NewHub(nil)
	client1 := newClient(hub, "board")
	client2 := newClient(hub, "board")

	hub.registerClient(client1)
	hub.registerClient(client2)
	if len(hub.sessions["board"]) != 2 {
		t.Fatalf("Expected 2 clients, got %d", len(hub.sessions["board"]))
	}

	hub.unregisterClient(client1)
	if !hub.sessions["board"][client2] || len(hub.sessions["board"]) != 1 {
		t.Error("Expected only client2 to remain")
	}
	if _, ok := <-client1.send; ok {
		t.Error("Expected client1 send channel to be closed")
	}

	hub.unregisterClient(client2)
	if _, exists := hub.sessions["board"]; exists {
		t.Error("Session should be cleaned up after the last client leaves")
	}

	// Unregistering twice is harmless
	hub.unregisterClient(client2)
}

func TestHubBroadcastMessage(t *testing.T) {
	hub := NewHub(nil)
	watcher := newClient(hub, "board")
	other := newClient(hub, "elsewhere")
	hub.registerClient(watcher)
	hub.registerClient(other)

	state := &service.GameState{SessionID: "board", Grid: engine.Grid{{2, 0}, {0, 4}}, GridSize: 2, Score: 8}
	hub.broadcastMessage(&Message{SessionID: "board", Event: EventStateUpdate, GameState: state})

	select {
	case data := <-watcher.send:
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("Failed to decode message: %v", err)
		}
		if msg.Event != EventStateUpdate || msg.GameState.Score != 8 {
			t.Errorf("Unexpected message: %+v", msg)
		}
		if !strings.Contains(string(data), `"grid":[[2,null],[null,4]]`) {
			t.Errorf("Expected grid with null empties, got %s", data)
		}
	default:
		t.Fatal("Expected a message for the watcher")
	}

	select {
	case data := <-other.send:
		t.Errorf("Other session should not receive updates, got %s", data)
	default:
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub(nil)
	slow := &Client{hub: hub, sessionID: "board", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "board", Event: EventStateUpdate})

	if _, exists := hub.sessions["board"]; exists {
		t.Error("Expected slow client to be unregistered")
	}
}

func TestHubEnqueueNeverBlocks(t *testing.T) {
	hub := NewHub(nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.BroadcastEvent("board", "tick", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked without a running hub")
	}
	if len(hub.broadcast) != broadcastBuffer {
		t.Errorf("Expected a full queue of %d, got %d", broadcastBuffer, len(hub.broadcast))
	}
}

func TestHubServeWS(t *testing.T) {
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=README"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount("readme") != 1 {
		if time.Now().After(deadline) {
			t.Fatal("Client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	hub.BroadcastToSession("Readme", &service.GameState{SessionID: "readme", Score: 32})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	if msg.SessionID != "readme" || msg.GameState == nil || msg.GameState.Score != 32 {
		t.Errorf("Unexpected message: %+v", msg)
	}

	// Stopping the hub closes subscribers
	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("Expected the connection to close when the hub stops")
	}
	if hub.ClientCount("readme") != 0 {
		t.Error("Expected no clients after the hub stopped")
	}
}
