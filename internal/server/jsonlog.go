// jsonlog.go - structured logging, JSON in production and key=value text in dev
package server

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"
)

// LogLevel represents the severity of a log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevelRank = map[LogLevel]int{
	LogLevelDebug: 0,
	LogLevelInfo:  1,
	LogLevelWarn:  2,
	LogLevelError: 3,
}

// Logger writes leveled, structured log entries.
type Logger struct {
	output     io.Writer
	minLevel   LogLevel
	enableJSON bool
}

// LogEntry is the serialized form of one log line.
type LogEntry struct {
	Level     LogLevel               `json:"level"`
	Time      string                 `json:"time"`
	Message   string                 `json:"msg"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Error     string                 `json:"error,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// DefaultLogger is the process-wide logger instance.
var DefaultLogger *Logger

func init() {
	enableJSON := os.Getenv("FG_LOG_FORMAT") == "json"
	if os.Getenv("FG_ENV") == "production" {
		enableJSON = true
	}

	DefaultLogger = &Logger{
		output:     os.Stdout,
		minLevel:   logLevelFromEnv(),
		enableJSON: enableJSON,
	}
}

func logLevelFromEnv() LogLevel {
	switch LogLevel(os.Getenv("FG_LOG_LEVEL")) {
	case LogLevelDebug:
		return LogLevelDebug
	case LogLevelWarn:
		return LogLevelWarn
	case LogLevelError:
		return LogLevelError
	default:
		return LogLevelInfo
	}
}

func (l *Logger) shouldLog(level LogLevel) bool {
	return logLevelRank[level] >= logLevelRank[l.minLevel]
}

// callerLocation returns the short file:line of the logging call site.
func callerLocation(skip int) string {
	_, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	for i := len(file) - 1; i > 0; i-- {
		if file[i] == '/' {
			file = file[i+1:]
			break
		}
	}
	return fmt.Sprintf("%s:%d", file, line)
}

func (l *Logger) log(level LogLevel, msg string, fields map[string]interface{}, err error) {
	if !l.shouldLog(level) {
		return
	}

	entry := LogEntry{
		Level:   level,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Message: msg,
		Fields:  fields,
		Caller:  callerLocation(3),
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if rid, ok := fields["request_id"].(string); ok {
		entry.RequestID = rid
	}

	if l.enableJSON {
		data, _ := json.Marshal(entry)
		fmt.Fprintln(l.output, string(data))
		return
	}

	fmt.Fprintf(l.output, "[%s] %s %s", entry.Level, entry.Time, entry.Message)
	for k, v := range entry.Fields {
		fmt.Fprintf(l.output, " %s=%v", k, v)
	}
	if entry.Error != "" {
		fmt.Fprintf(l.output, " error=%s", entry.Error)
	}
	fmt.Fprintln(l.output)
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields map[string]interface{}) {
	l.log(LogLevelDebug, msg, fields, nil)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields map[string]interface{}) {
	l.log(LogLevelInfo, msg, fields, nil)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields map[string]interface{}) {
	l.log(LogLevelWarn, msg, fields, nil)
}

// Error logs an error message with its cause.
func (l *Logger) Error(msg string, fields map[string]interface{}, err error) {
	l.log(LogLevelError, msg, fields, err)
}

// Package-level helpers writing through DefaultLogger.

func Debug(msg string, fields map[string]interface{}) {
	DefaultLogger.Debug(msg, fields)
}

func Info(msg string, fields map[string]interface{}) {
	DefaultLogger.Info(msg, fields)
}

func Warn(msg string, fields map[string]interface{}) {
	DefaultLogger.Warn(msg, fields)
}

func Error(msg string, fields map[string]interface{}, err error) {
	DefaultLogger.Error(msg, fields, err)
}
