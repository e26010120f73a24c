package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vibe-control/vcc/internal/auth"
	"github.com/vibe-control/vcc/internal/config"
	"github.com/vibe-control/vcc/internal/dispatch"
)

// Entry represents a single audit log entry.
type Entry struct {
	Timestamp time.Time `json:"ts"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	Outcome   string    `json:"outcome"`
	LatencyMs int64     `json:"latencyMs"`
}

// Logger appends one JSON line per engine action.
type Logger struct {
	mu       sync.Mutex
	filePath string
	out      io.WriteCloser
}

var _ dispatch.AuditLogger = (*Logger)(nil)

// NewLogger creates an audit logger writing to <dir>/audit.jsonl with
// rotation per the given settings.
func NewLogger(cfg config.AuditConfig) (*Logger, error) {
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create audit log directory: %w", err)
	}

	filePath := filepath.Join(cfg.Dir, "audit.jsonl")
	return &Logger{
		filePath: filePath,
		out: &lumberjack.Logger{
			Filename:   filePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		},
	}, nil
}

// LogAction records one engine action. The user is taken from the
// request's verified claims when present.
func (l *Logger) LogAction(ctx context.Context, action, detail, result string, latency time.Duration) {
	entry := Entry{
		Timestamp: time.Now().UTC(),
		User:      userFromContext(ctx),
		Action:    action,
		Detail:    detail,
		Outcome:   result,
		LatencyMs: latency.Milliseconds(),
	}
	l.writeEntry(entry)
}

func (l *Logger) writeEntry(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	jsonData, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to marshal audit entry: %v\n", err)
		return
	}
	if _, err := l.out.Write(append(jsonData, '\n')); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write audit entry: %v\n", err)
	}
}

// FilePath returns the path of the active audit log file.
func (l *Logger) FilePath() string {
	return l.filePath
}

// Close closes the underlying log file.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.out.Close()
}

func userFromContext(ctx context.Context) string {
	if claims := auth.SubjectClaims(ctx); claims != nil && claims.Subject != "" {
		return claims.Subject
	}
	return "unknown"
}
