package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/vibe-control/vcc/internal/auth"
	"github.com/vibe-control/vcc/internal/config"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	logger, err := NewLogger(config.AuditConfig{
		Dir:        t.TempDir(),
		MaxSizeMB:  1,
		MaxBackups: 1,
		MaxAgeDays: 1,
	})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	t.Cleanup(func() { logger.Close() })
	return logger
}

func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("failed to open audit log: %v", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry Entry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			t.Fatalf("audit line is not valid JSON: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogActionWritesJSONLine(t *testing.T) {
	logger := newTestLogger(t)

	logger.LogAction(context.Background(), "submit", "5-1000ms", "SUCCESS", 3*time.Millisecond)
	logger.LogAction(context.Background(), "stop", "http", "DEGRADED", 0)

	entries := readEntries(t, logger.FilePath())
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	first := entries[0]
	if first.Action != "submit" || first.Detail != "5-1000ms" || first.Outcome != "SUCCESS" {
		t.Errorf("first entry = %+v", first)
	}
	if first.LatencyMs != 3 {
		t.Errorf("LatencyMs = %d, want 3", first.LatencyMs)
	}
	if first.User != "unknown" {
		t.Errorf("User = %q, want unknown without claims", first.User)
	}
	if first.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
}

func TestLogActionUsesClaimsSubject(t *testing.T) {
	logger := newTestLogger(t)

	ctx := context.WithValue(context.Background(), auth.ClaimsKey, &auth.Claims{
		Subject: "operator-1",
		Scopes:  []string{auth.ScopeControl},
	})
	logger.LogAction(ctx, "play", "Wave by eve", "SUCCESS", time.Millisecond)

	entries := readEntries(t, logger.FilePath())
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if entries[0].User != "operator-1" {
		t.Errorf("User = %q, want operator-1", entries[0].User)
	}
}

func TestNewLoggerCreatesDirectory(t *testing.T) {
	dir := t.TempDir() + "/nested/audit"
	logger, err := NewLogger(config.AuditConfig{Dir: dir, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	defer logger.Close()

	logger.LogAction(context.Background(), "submit", "1-1s", "SUCCESS", 0)
	if _, err := os.Stat(logger.FilePath()); err != nil {
		t.Errorf("audit file missing: %v", err)
	}
}
