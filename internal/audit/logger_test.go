package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open audit file: %v", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			t.Fatalf("invalid audit line %q: %v", scanner.Text(), err)
		}
		entries = append(entries, e)
	}
	return entries
}

func TestNewLoggerCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")
	logger, err := NewLogger(dir, Rotation{MaxSizeMB: 1}, nil)
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	defer logger.Close()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("log directory not created: %v", err)
	}
	if logger.FilePath() != filepath.Join(dir, FileName) {
		t.Errorf("FilePath() = %q", logger.FilePath())
	}
}

func TestLogAction(t *testing.T) {
	logger, err := NewLogger(t.TempDir(), Rotation{MaxSizeMB: 1}, nil)
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	defer logger.Close()

	ctx := WithActor(context.Background(), "pilot-1")
	ctx = WithParams(ctx, map[string]any{"mode": "ALT_HOLD"})
	logger.LogAction(ctx, "setMode", "rov-1", "SUCCESS", 42*time.Millisecond)
	logger.LogAction(context.Background(), "arm", "rov-1", "TIMEOUT", 3*time.Second)

	entries := readEntries(t, logger.FilePath())
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}

	first := entries[0]
	if first.Actor != "pilot-1" || first.Action != "setMode" || first.Outcome != "SUCCESS" {
		t.Errorf("first entry = %+v", first)
	}
	if first.Params["mode"] != "ALT_HOLD" || first.LatencyMS != 42 {
		t.Errorf("first entry params/latency = %v/%d", first.Params, first.LatencyMS)
	}
	if first.Timestamp.IsZero() || first.VehicleID != "rov-1" {
		t.Errorf("first entry = %+v", first)
	}

	second := entries[1]
	if second.Actor != "unknown" || second.Outcome != "TIMEOUT" || second.LatencyMS != 3000 {
		t.Errorf("second entry = %+v", second)
	}
	if second.Params == nil {
		t.Error("params should default to an empty object")
	}
}

func TestRotateStartsNewFile(t *testing.T) {
	dir := t.TempDir()
	logger, err := NewLogger(dir, Rotation{MaxSizeMB: 1, MaxBackups: 2}, nil)
	if err != nil {
		t.Fatalf("NewLogger() failed: %v", err)
	}
	defer logger.Close()

	logger.LogAction(context.Background(), "arm", "rov-1", "SUCCESS", 0)
	if err := logger.Rotate(); err != nil {
		t.Fatalf("Rotate() failed: %v", err)
	}
	logger.LogAction(context.Background(), "disarm", "rov-1", "SUCCESS", 0)

	entries := readEntries(t, logger.FilePath())
	if len(entries) != 1 || entries[0].Action != "disarm" {
		t.Errorf("active file entries = %+v, want only disarm", entries)
	}

	files, _ := filepath.Glob(filepath.Join(dir, "audit-*.jsonl"))
	if len(files) != 1 {
		t.Errorf("found %d rotated files, want 1", len(files))
	}
}
