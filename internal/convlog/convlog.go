// Package convlog provides asynchronous NDJSON logging of discovery
// conversations, one file per user and session.
package convlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

// Event is one logged conversation event.
type Event struct {
	Timestamp  string         `json:"ts"`
	UserID     string         `json:"user_id"`
	SessionID  string         `json:"session_id"`
	Channel    string         `json:"channel"`
	Direction  string         `json:"direction"`
	EventType  string         `json:"event_type"`
	Phase      string         `json:"phase,omitempty"`
	ContentRaw string         `json:"content_raw"`
	Content    string         `json:"content"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// Logger records conversation events. Implementations must be safe for
// concurrent use and must never block the caller on disk I/O.
type Logger interface {
	Log(event Event)
	Close() error
}

// Config controls conversation logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Noop is a Logger that discards everything.
type Noop struct{}

// Log implements Logger.
func (Noop) Log(Event) {}

// Close implements Logger.
func (Noop) Close() error { return nil }

// fileLogger writes events from a bounded queue to per-session NDJSON files.
type fileLogger struct {
	dir    string
	queue  chan Event
	done   chan struct{}
	logger *slog.Logger

	closeOnce sync.Once
}

// New creates a Logger per config. A disabled config returns Noop.
func New(cfg Config, logger *slog.Logger) (Logger, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if err := os.MkdirAll(cfg.Dir, 0755); err != nil {
		return nil, fmt.Errorf("create conversation log directory: %w", err)
	}

	l := &fileLogger{
		dir:    cfg.Dir,
		queue:  make(chan Event, cfg.QueueSize),
		done:   make(chan struct{}),
		logger: logger,
	}
	go l.writeLoop()
	return l, nil
}

// Log enqueues the event, dropping it if the queue is full. Conversation
// logging must never stall a chat turn.
func (l *fileLogger) Log(event Event) {
	if event.Timestamp == "" {
		event.Timestamp = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if event.Content == "" {
		event.Content = CleanForReadability(event.ContentRaw)
	}

	select {
	case l.queue <- event:
	default:
		l.logger.Warn("conversation log queue full, dropping event",
			"user_id", event.UserID, "session_id", event.SessionID, "event_type", event.EventType)
	}
}

// Close drains the queue and stops the writer.
func (l *fileLogger) Close() error {
	l.closeOnce.Do(func() {
		close(l.queue)
		<-l.done
	})
	return nil
}

func (l *fileLogger) writeLoop() {
	defer close(l.done)
	for event := range l.queue {
		if err := l.write(event); err != nil {
			l.logger.Warn("failed to write conversation log event",
				"user_id", event.UserID, "session_id", event.SessionID, "error", err)
		}
	}
}

func (l *fileLogger) write(event Event) error {
	user := sanitizePathComponent(event.UserID)
	session := sanitizePathComponent(event.SessionID)

	dir := filepath.Join(l.dir, user)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create user log directory: %w", err)
	}

	line, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	path := filepath.Join(dir, session+".ndjson")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append event: %w", err)
	}
	return nil
}

var (
	ansiPattern     = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)
	unsafePathChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)
)

// CleanForReadability strips ANSI escapes and control characters so the
// logged content is greppable plain text.
func CleanForReadability(raw string) string {
	clean := ansiPattern.ReplaceAllString(raw, "")
	clean = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, clean)
	return strings.TrimSpace(clean)
}

func sanitizePathComponent(s string) string {
	s = unsafePathChars.ReplaceAllString(s, "_")
	if s == "" {
		return "unknown"
	}
	return s
}
