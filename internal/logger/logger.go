package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	apperrors "github.com/openblog/backend/internal/errors"
)

// Level represents the log level
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

// ParseLevel maps a level name to a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Fields carries structured key/value pairs for a log entry.
type Fields map[string]any

// Entry is a single structured log line.
type Entry struct {
	Timestamp string        `json:"timestamp"`
	Level     string        `json:"level"`
	Message   string        `json:"message"`
	RequestID string        `json:"request_id,omitempty"`
	Component string        `json:"component,omitempty"`
	Error     *ErrorDetails `json:"error,omitempty"`
	Fields    Fields        `json:"fields,omitempty"`
	Caller    string        `json:"caller,omitempty"`
}

// ErrorDetails contains structured error information
type ErrorDetails struct {
	Code       string `json:"code,omitempty"`
	Message    string `json:"message"`
	Category   string `json:"category,omitempty"`
	StackTrace string `json:"stack_trace,omitempty"`
}

type Config struct {
	Output    io.Writer
	Level     Level
	Component string
}

// Logger provides structured logging
type Logger struct {
	mu        *sync.Mutex
	output    io.Writer
	level     Level
	component string
	redactor  *Redactor
}

var defaultLogger = New(&Config{Output: os.Stdout, Level: LevelInfo})

func New(cfg *Config) *Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}
	return &Logger{
		mu:        &sync.Mutex{},
		output:    out,
		level:     cfg.Level,
		component: cfg.Component,
		redactor:  DefaultRedactor(),
	}
}

func SetDefault(l *Logger) {
	defaultLogger = l
}

func Default() *Logger {
	return defaultLogger
}

// WithComponent returns a logger sharing the same output tagged with component.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		mu:        l.mu,
		output:    l.output,
		level:     l.level,
		component: component,
		redactor:  l.redactor,
	}
}

func (l *Logger) log(ctx context.Context, level Level, msg string, fields Fields, err error) {
	if level < l.level {
		return
	}

	entry := Entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level.String(),
		Message:   l.redactor.Redact(msg),
		Component: l.component,
		Fields:    l.redactor.RedactFields(fields),
	}
	if ctx != nil {
		entry.RequestID = apperrors.GetRequestID(ctx)
	}

	if level >= LevelError {
		_, file, line, ok := runtime.Caller(2)
		if ok {
			parts := strings.Split(file, "/")
			if len(parts) > 2 {
				file = strings.Join(parts[len(parts)-2:], "/")
			}
			entry.Caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	if err != nil {
		entry.Error = &ErrorDetails{
			Message: l.redactor.Redact(err.Error()),
		}

		if appErr, ok := err.(*apperrors.AppError); ok {
			entry.Error.Code = appErr.Code
			entry.Error.Category = string(appErr.Category)
		}

		if level >= LevelError {
			entry.Error.StackTrace = getStackTrace()
		}
	}

	data, mErr := json.Marshal(entry)
	if mErr != nil {
		data = []byte(fmt.Sprintf(`{"level":"error","message":"unencodable log entry: %s"}`, mErr))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write(append(data, '\n'))
}

func first(fields []Fields) Fields {
	if len(fields) > 0 {
		return fields[0]
	}
	return nil
}

func (l *Logger) Debug(ctx context.Context, msg string, fields ...Fields) {
	l.log(ctx, LevelDebug, msg, first(fields), nil)
}

func (l *Logger) Info(ctx context.Context, msg string, fields ...Fields) {
	l.log(ctx, LevelInfo, msg, first(fields), nil)
}

func (l *Logger) Warn(ctx context.Context, msg string, fields ...Fields) {
	l.log(ctx, LevelWarn, msg, first(fields), nil)
}

func (l *Logger) Error(ctx context.Context, msg string, err error, fields ...Fields) {
	l.log(ctx, LevelError, msg, first(fields), err)
}

// Package-level convenience functions

func Info(ctx context.Context, msg string, fields ...Fields) {
	defaultLogger.Info(ctx, msg, fields...)
}

func Warn(ctx context.Context, msg string, fields ...Fields) {
	defaultLogger.Warn(ctx, msg, fields...)
}

func Error(ctx context.Context, msg string, err error, fields ...Fields) {
	defaultLogger.Error(ctx, msg, err, fields...)
}

func getStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
