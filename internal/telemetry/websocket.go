package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsSubscriber writes packets as text frames.
type wsSubscriber struct {
	id   string
	conn *websocket.Conn

	mu   sync.Mutex
	once sync.Once
}

func (s *wsSubscriber) ID() string { return s.id }

// Send writes one text frame, bounded by the ctx deadline.
func (s *wsSubscriber) Send(ctx context.Context, payload []byte) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(time.Second)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.conn.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, payload)
}

func (s *wsSubscriber) Close() error {
	var err error
	s.once.Do(func() { err = s.conn.Close() })
	return err
}

// ServeWebSocket upgrades the request and streams packets until the client
// closes the socket or a send fails. Client messages are read and discarded.
func (a *Aggregator) ServeWebSocket(w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}

	sub := &wsSubscriber{id: uuid.NewString(), conn: conn}
	defer func() { _ = sub.Close() }()

	if packet, ok := a.Snapshot(); ok {
		data, err := json.Marshal(packet)
		if err == nil {
			ctx, cancel := context.WithTimeout(r.Context(), a.opts.SendTimeout)
			err = sub.Send(ctx, data)
			cancel()
		}
		if err != nil {
			return fmt.Errorf("send initial snapshot: %w", err)
		}
	}

	a.Register(sub)
	defer a.Unregister(sub.ID())

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}
