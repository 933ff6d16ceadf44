package logger

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Level orders log severities.
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
}

// ParseLevel maps a LOG_LEVEL value to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG
	case "warn", "warning":
		return WARN
	case "error":
		return ERROR
	}
	return INFO
}

// Logger is a leveled wrapper over log.Logger.
type Logger struct {
	mu    sync.RWMutex
	level Level
	out   *log.Logger
	file  io.Closer
}

// New logs to stdout, and to a rotating app.log in dir when dir is not empty.
func New(level Level, dir string) (*Logger, error) {
	var w io.Writer = os.Stdout
	l := &Logger{level: level}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log directory: %w", err)
		}
		file := &lumberjack.Logger{
			Filename:   filepath.Join(dir, "app.log"),
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     28,
			Compress:   true,
		}
		l.file = file
		w = io.MultiWriter(os.Stdout, file)
	}
	l.out = log.New(w, "", log.LstdFlags|log.LUTC)
	return l, nil
}

// NewWriter logs to w only; handy in tests.
func NewWriter(level Level, w io.Writer) *Logger {
	return &Logger{level: level, out: log.New(w, "", 0)}
}

// Writer exposes the destination, e.g. for gin's access log.
func (l *Logger) Writer() io.Writer { return l.out.Writer() }

// SetLevel changes the minimum level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.level = level
	l.mu.Unlock()
}

func (l *Logger) logf(level Level, format string, args ...any) {
	l.mu.RLock()
	min := l.level
	l.mu.RUnlock()
	if level < min {
		return
	}
	l.out.Printf("["+levelNames[level]+"] "+format, args...)
}

func (l *Logger) Debugf(format string, args ...any) { l.logf(DEBUG, format, args...) }
func (l *Logger) Infof(format string, args ...any)  { l.logf(INFO, format, args...) }
func (l *Logger) Warnf(format string, args ...any)  { l.logf(WARN, format, args...) }
func (l *Logger) Errorf(format string, args ...any) { l.logf(ERROR, format, args...) }

// Fatalf logs at ERROR and exits.
func (l *Logger) Fatalf(format string, args ...any) {
	l.logf(ERROR, format, args...)
	_ = l.Close()
	os.Exit(1)
}

// Close releases the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
