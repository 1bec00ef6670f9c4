// Package audit appends received messages and executed commands to flat,
// size-rotated log files.
package audit

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/m3rciful/orbitbot/core/config"
	"github.com/m3rciful/orbitbot/core/logger"
)

const (
	messagesFile = "message_logs.txt"
	commandsFile = "command_logs.txt"
)

// Log writes the two audit streams. A zero Log (or one opened without a
// directory) discards everything.
type Log struct {
	mu       sync.Mutex
	messages io.WriteCloser
	commands io.WriteCloser
	now      func() time.Time
}

// Open prepares rotating writers under cfg.Dir. An empty Dir disables auditing.
func Open(cfg config.AuditConfig) (*Log, error) {
	l := &Log{now: time.Now}
	dir := strings.TrimSpace(cfg.Dir)
	if dir == "" {
		return l, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("audit: create dir: %w", err)
	}
	rotating := func(name string) *lumberjack.Logger {
		return &lumberjack.Logger{
			Filename:   filepath.Join(dir, name),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
	}
	l.messages = rotating(messagesFile)
	l.commands = rotating(commandsFile)
	logger.L.Info("audit log opened",
		slog.String("component", "audit"),
		slog.String("event", "audit.open"),
		slog.String("path", dir),
		slog.Int("max_size_mb", cfg.MaxSizeMB),
	)
	return l, nil
}

// Enabled reports whether lines are persisted.
func (l *Log) Enabled() bool {
	return l != nil && l.messages != nil
}

// Message records an inbound text.
func (l *Log) Message(sender, text string) {
	l.write(l.messagesWriter(), fmt.Sprintf("from=%s text=%s", oneLine(sender), oneLine(text)))
}

// Command records an executed command.
func (l *Log) Command(name, requester string) {
	l.write(l.commandsWriter(), fmt.Sprintf("command=%s requester=%s", oneLine(name), oneLine(requester)))
}

func (l *Log) messagesWriter() io.Writer {
	if l == nil || l.messages == nil {
		return nil
	}
	return l.messages
}

func (l *Log) commandsWriter() io.Writer {
	if l == nil || l.commands == nil {
		return nil
	}
	return l.commands
}

func (l *Log) write(w io.Writer, body string) {
	if w == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	line := "[" + l.now().UTC().Format(time.RFC3339Nano) + "] " + body + "\n"
	if _, err := io.WriteString(w, line); err != nil {
		logger.L.Warn("audit write failed",
			slog.String("component", "audit"),
			slog.String("event", "audit.write"),
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
}

// Close flushes and closes both files.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	var errs []error
	for _, c := range []io.Closer{l.messages, l.commands} {
		if c != nil {
			errs = append(errs, c.Close())
		}
	}
	return errors.Join(errs...)
}

var lineBreaks = strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\n`)

func oneLine(s string) string {
	return lineBreaks.Replace(s)
}
