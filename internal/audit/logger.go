package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the audit file inside the log directory.
const FileName = "audit.jsonl"

// Entry is one audit record.
type Entry struct {
	Timestamp time.Time      `json:"ts"`
	Actor     string         `json:"actor"`
	VehicleID string         `json:"vehicleId"`
	Action    string         `json:"action"`
	Params    map[string]any `json:"params"`
	Outcome   string         `json:"outcome"`
	LatencyMS int64          `json:"latencyMs"`
}

// Rotation bounds the audit file.
type Rotation struct {
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Logger appends entries to a rotating JSON-lines file.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      *lumberjack.Logger
	logger   *slog.Logger
}

// NewLogger creates the log directory if needed and opens the audit file.
func NewLogger(logDir string, rotation Rotation, logger *slog.Logger) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	filePath := filepath.Join(logDir, FileName)
	return &Logger{
		filePath: filePath,
		out: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    rotation.MaxSizeMB,
			MaxBackups: rotation.MaxBackups,
			MaxAge:     rotation.MaxAgeDays,
		},
		logger: logger.With("component", "audit"),
	}, nil
}

type contextKey int

const (
	actorKey contextKey = iota
	paramsKey
)

// WithActor attaches the authenticated subject to ctx.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// WithParams attaches action parameters to ctx.
func WithParams(ctx context.Context, params map[string]any) context.Context {
	return context.WithValue(ctx, paramsKey, params)
}

func actorFrom(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey).(string); ok && actor != "" {
		return actor
	}
	return "unknown"
}

func paramsFrom(ctx context.Context) map[string]any {
	if params, ok := ctx.Value(paramsKey).(map[string]any); ok {
		return params
	}
	return map[string]any{}
}

// LogAction records one action with its outcome code and latency.
func (l *Logger) LogAction(ctx context.Context, action, vehicleID, outcome string, latency time.Duration) {
	l.writeEntry(Entry{
		Timestamp: time.Now().UTC(),
		Actor:     actorFrom(ctx),
		VehicleID: vehicleID,
		Action:    action,
		Params:    paramsFrom(ctx),
		Outcome:   outcome,
		LatencyMS: latency.Milliseconds(),
	})
}

// writeEntry serializes entry as one line. Failures are logged, never returned.
func (l *Logger) writeEntry(entry Entry) {
	data, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("failed to marshal audit entry", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, err := l.out.Write(append(data, '\n')); err != nil {
		l.logger.Error("failed to write audit entry", "error", err)
	}
}

// Rotate closes the current file and starts a new one.
func (l *Logger) Rotate() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Rotate()
}

// Close flushes and closes the audit file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

// FilePath returns the active audit file.
func (l *Logger) FilePath() string {
	return l.filePath
}
