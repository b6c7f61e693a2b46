// Package logger is the component-scoped structured logger used across the
// connector. Every call names the component that produced it ("client",
// "eventbus", "scheduler", ...) and may carry a field map.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogLevel orders log severities.
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var levelNames = map[LogLevel]string{
	DEBUG: "debug",
	INFO:  "info",
	WARN:  "warn",
	ERROR: "error",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("level(%d)", int(l))
}

func (l LogLevel) slog() slog.Level {
	switch l {
	case DEBUG:
		return slog.LevelDebug
	case WARN:
		return slog.LevelWarn
	case ERROR:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ParseLevel maps "debug", "info", "warn"/"warning" and "error" to a LogLevel.
func ParseLevel(s string) (LogLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return DEBUG, nil
	case "", "info":
		return INFO, nil
	case "warn", "warning":
		return WARN, nil
	case "error":
		return ERROR, nil
	}
	return INFO, fmt.Errorf("unknown log level %q", s)
}

var (
	mu      sync.RWMutex
	level   = new(slog.LevelVar)
	current = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
)

// Configure replaces the output sink. format is "text" or "json".
func Configure(w io.Writer, format string, lvl LogLevel) {
	mu.Lock()
	defer mu.Unlock()

	level.Set(lvl.slog())
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(format, "json") {
		current = slog.New(slog.NewJSONHandler(w, opts))
	} else {
		current = slog.New(slog.NewTextHandler(w, opts))
	}
}

// SetLevel changes the minimum level without touching the sink.
func SetLevel(lvl LogLevel) {
	level.Set(lvl.slog())
}

// Slog exposes the underlying logger for libraries that take a *slog.Logger.
func Slog() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

func logMessage(lvl LogLevel, component, message string, fields map[string]interface{}) {
	l := Slog()
	attrs := make([]any, 0, len(fields)*2+2)
	if component != "" {
		attrs = append(attrs, "component", component)
	}
	for k, v := range fields {
		attrs = append(attrs, k, v)
	}
	l.Log(context.Background(), lvl.slog(), message, attrs...)
}

func Debug(message string) {
	logMessage(DEBUG, "", message, nil)
}

func DebugC(component, message string) {
	logMessage(DEBUG, component, message, nil)
}

func DebugCF(component, message string, fields map[string]interface{}) {
	logMessage(DEBUG, component, message, fields)
}

func Info(message string) {
	logMessage(INFO, "", message, nil)
}

func InfoC(component, message string) {
	logMessage(INFO, component, message, nil)
}

func InfoCF(component, message string, fields map[string]interface{}) {
	logMessage(INFO, component, message, fields)
}

func Warn(message string) {
	logMessage(WARN, "", message, nil)
}

func WarnC(component, message string) {
	logMessage(WARN, component, message, nil)
}

func WarnCF(component, message string, fields map[string]interface{}) {
	logMessage(WARN, component, message, fields)
}

func Error(message string) {
	logMessage(ERROR, "", message, nil)
}

func ErrorC(component, message string) {
	logMessage(ERROR, component, message, nil)
}

func ErrorCF(component, message string, fields map[string]interface{}) {
	logMessage(ERROR, component, message, fields)
}
