package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrSubscriberClosed is returned by Send after the client went away.
	ErrSubscriberClosed = errors.New("subscriber closed")

	// ErrStreamingUnsupported is returned when the response cannot be flushed.
	ErrStreamingUnsupported = errors.New("streaming unsupported")
)

// queueSubscriber buffers payloads for a writer goroutine owned by an HTTP handler.
type queueSubscriber struct {
	id    string
	queue chan []byte
	done  chan struct{}
	once  sync.Once
}

func newQueueSubscriber(buffer int) *queueSubscriber {
	return &queueSubscriber{
		id:    uuid.NewString(),
		queue: make(chan []byte, buffer),
		done:  make(chan struct{}),
	}
}

func (s *queueSubscriber) ID() string { return s.id }

// Send enqueues payload, waiting at most until ctx expires for buffer space.
func (s *queueSubscriber) Send(ctx context.Context, payload []byte) error {
	select {
	case <-s.done:
		return ErrSubscriberClosed
	default:
	}
	select {
	case s.queue <- payload:
		return nil
	case <-s.done:
		return ErrSubscriberClosed
	case <-ctx.Done():
		return fmt.Errorf("subscriber %s too slow: %w", s.id, ctx.Err())
	}
}

func (s *queueSubscriber) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

// ServeSSE streams packets to w as server-sent events until the client
// disconnects or the aggregator drops the subscriber. The first event is
// "ready" carrying the current snapshot; later events are "telemetry".
func (a *Aggregator) ServeSSE(w http.ResponseWriter, r *http.Request) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return ErrStreamingUnsupported
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "Cache-Control")

	sub := newQueueSubscriber(a.opts.SubscriberBuffer)
	defer func() { _ = sub.Close() }()

	var ready any = struct{}{}
	if packet, ok := a.Snapshot(); ok {
		ready = packet
	}
	data, err := json.Marshal(ready)
	if err != nil {
		return fmt.Errorf("failed to marshal ready event: %w", err)
	}
	if err := writeSSE(w, 0, "ready", data); err != nil {
		return err
	}
	flusher.Flush()

	a.Register(sub)
	defer a.Unregister(sub.ID())

	var eventID int64
	for {
		select {
		case <-r.Context().Done():
			return nil
		case <-sub.done:
			return nil
		case payload := <-sub.queue:
			eventID++
			if err := writeSSE(w, eventID, "telemetry", payload); err != nil {
				return err
			}
			flusher.Flush()
		}
	}
}

func writeSSE(w http.ResponseWriter, id int64, event string, data []byte) error {
	if id > 0 {
		if _, err := fmt.Fprintf(w, "id: %d\n", id); err != nil {
			return fmt.Errorf("failed to write event ID: %w", err)
		}
	}
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return fmt.Errorf("failed to write event type: %w", err)
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return fmt.Errorf("failed to write event data: %w", err)
	}
	return nil
}
