// Package audit writes the append-only trail of vehicle control actions.
//
// Each action becomes one JSON line in audit.jsonl carrying the actor, the
// action, its parameters, the outcome code and the latency. The file is
// rotated by size through lumberjack.
package audit
