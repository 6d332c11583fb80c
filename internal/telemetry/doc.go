// Package telemetry aggregates vehicle state and companion metrics into
// telemetry packets and fans them out to live subscribers.
//
// Two loops run independently: collection builds a packet every 100ms and
// swaps it in atomically; broadcast serializes the latest packet every 200ms
// and sends it to each subscriber. A subscriber whose send fails is removed
// after the round. SSE and WebSocket sinks adapt HTTP clients to the
// Subscriber contract.
package telemetry
