// Package logger provides component-scoped leveled logging.
//
// Every call names a component ("shell", "git", "bridge", ...) and optionally
// carries a map of structured fields. Console output is human readable; when
// file logging is enabled each entry is also appended as one JSON line.
package logger

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[LogLevel]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

func (l LogLevel) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return fmt.Sprintf("LEVEL(%d)", int(l))
}

// ParseLevel maps a level name (case-insensitive) to a LogLevel.
func ParseLevel(s string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return DEBUG, true
	case "INFO":
		return INFO, true
	case "WARN", "WARNING":
		return WARN, true
	case "ERROR":
		return ERROR, true
	case "FATAL":
		return FATAL, true
	}
	return INFO, false
}

type LogEntry struct {
	Level     string                 `json:"level"`
	Timestamp string                 `json:"timestamp"`
	Component string                 `json:"component,omitempty"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

type state struct {
	mu       sync.Mutex
	level    LogLevel
	console  io.Writer
	file     *os.File
	exitFunc func(int)
}

var std = &state{
	level:    INFO,
	console:  os.Stderr,
	exitFunc: os.Exit,
}

func SetLevel(level LogLevel) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.level = level
}

func GetLevel() LogLevel {
	std.mu.Lock()
	defer std.mu.Unlock()
	return std.level
}

// SetOutput redirects console output. Passing nil silences the console.
func SetOutput(w io.Writer) {
	std.mu.Lock()
	defer std.mu.Unlock()
	std.console = w
}

// EnableFileLogging appends JSON entries to path in addition to the console.
func EnableFileLogging(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file != nil {
		_ = std.file.Close()
	}
	std.file = f
	return nil
}

func DisableFileLogging() {
	std.mu.Lock()
	defer std.mu.Unlock()
	if std.file != nil {
		_ = std.file.Close()
		std.file = nil
	}
}

func logMessage(level LogLevel, component string, message string, fields map[string]interface{}) {
	std.mu.Lock()
	defer std.mu.Unlock()

	if level < std.level {
		return
	}

	entry := LogEntry{
		Level:     level.String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Component: component,
		Message:   message,
		Fields:    fields,
	}

	if std.file != nil {
		if data, err := json.Marshal(entry); err == nil {
			_, _ = std.file.Write(append(data, '\n'))
		}
	}

	if std.console != nil {
		_, _ = io.WriteString(std.console, formatConsole(entry))
	}

	if level == FATAL {
		std.exitFunc(1)
	}
}

func formatConsole(entry LogEntry) string {
	var b strings.Builder
	b.WriteString("[")
	b.WriteString(entry.Timestamp)
	b.WriteString("] [")
	b.WriteString(entry.Level)
	b.WriteString("] ")
	if entry.Component != "" {
		b.WriteString(entry.Component)
		b.WriteString(": ")
	}
	b.WriteString(entry.Message)
	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "%s=%v", k, entry.Fields[k])
		}
		b.WriteString("}")
	}
	b.WriteString("\n")
	return b.String()
}

func Debug(message string) {
	logMessage(DEBUG, "", message, nil)
}

func DebugC(component string, message string) {
	logMessage(DEBUG, component, message, nil)
}

func DebugCF(component string, message string, fields map[string]interface{}) {
	logMessage(DEBUG, component, message, fields)
}

func Info(message string) {
	logMessage(INFO, "", message, nil)
}

func InfoC(component string, message string) {
	logMessage(INFO, component, message, nil)
}

func InfoCF(component string, message string, fields map[string]interface{}) {
	logMessage(INFO, component, message, fields)
}

func Warn(message string) {
	logMessage(WARN, "", message, nil)
}

func WarnC(component string, message string) {
	logMessage(WARN, component, message, nil)
}

func WarnCF(component string, message string, fields map[string]interface{}) {
	logMessage(WARN, component, message, fields)
}

func Error(message string) {
	logMessage(ERROR, "", message, nil)
}

func ErrorC(component string, message string) {
	logMessage(ERROR, component, message, nil)
}

func ErrorCF(component string, message string, fields map[string]interface{}) {
	logMessage(ERROR, component, message, fields)
}

func Fatal(message string) {
	logMessage(FATAL, "", message, nil)
}

func FatalCF(component string, message string, fields map[string]interface{}) {
	logMessage(FATAL, component, message, fields)
}
