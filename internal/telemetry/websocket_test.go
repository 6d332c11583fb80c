package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestServeWebSocket(t *testing.T) {
	a, _ := newTestAggregator()
	a.latest.Store(a.collect(context.Background(), nil, &fakeMetrics{}))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = a.ServeWebSocket(w, r)
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var initial Packet
	if err := conn.ReadJSON(&initial); err != nil {
		t.Fatalf("read initial snapshot: %v", err)
	}
	if initial.Timestamp != "2024-03-01T10:00:00Z" {
		t.Errorf("initial timestamp = %q", initial.Timestamp)
	}

	waitUntil(t, "registration", func() bool { return a.SubscriberCount() == 1 })
	a.broadcast(context.Background())

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	var p Packet
	if err := json.Unmarshal(data, &p); err != nil {
		t.Fatalf("decode broadcast: %v", err)
	}
	if p.Vehicle == nil || p.Vehicle.Mode != "UNKNOWN" {
		t.Errorf("broadcast vehicle = %+v", p.Vehicle)
	}

	_ = conn.Close()
	waitUntil(t, "unregistration", func() bool { return a.SubscriberCount() == 0 })
}
