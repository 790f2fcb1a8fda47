package http

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialWS(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(s.httpServer.Handler)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("ws dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSummary(t *testing.T, conn *websocket.Conn) fleetSummary {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("ws read: %v", err)
	}
	var summary fleetSummary
	if err := json.Unmarshal(msg, &summary); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return summary
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		h.mu.Lock()
		count := len(h.clients)
		h.mu.Unlock()
		if count == n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("hub never reached %d clients", n)
}

func TestWebSocketSeedsThenBroadcasts(t *testing.T) {
	s := testServer(t, fleetFetcher(), nil)
	s.refreshFleet(context.Background(), s.cfg.VehicleIDs, true)

	conn := dialWS(t, s)

	// The seed arrives first, carrying the warmed fleet state.
	seed := readSummary(t, conn)
	if len(seed.Vehicles) != 2 {
		t.Fatalf("seed carried %d vehicles, want 2", len(seed.Vehicles))
	}
	if seed.CycleID == "" {
		t.Fatal("seed missing cycle id")
	}

	// The seed is written before the client is registered for broadcasts,
	// so registration must still happen afterwards.
	waitForClients(t, s.hub, 1)

	s.refreshFleet(context.Background(), s.cfg.VehicleIDs, true)
	next := readSummary(t, conn)
	if next.CycleID == seed.CycleID {
		t.Error("broadcast did not carry the new cycle")
	}
}
