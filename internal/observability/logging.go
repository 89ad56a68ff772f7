// Package observability provides structured logging for the engine.
package observability

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
)

// Logger provides structured logging with built-in request correlation and
// sensitive data redaction.
//
// The logging system is built on Go's slog package and provides:
//   - Configurable log levels (DEBUG, INFO, WARN, ERROR)
//   - JSON output format for production environments
//   - Human-readable text format for development
//   - Automatic request ID / collection / node correlation from context
//   - Redaction of sensitive data (API keys, tokens, credentials)
//
// Usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	logger.Info(ctx, "segment committed", "collection", "articles", "segment_id", 42)
type Logger struct {
	logger  *slog.Logger
	config  LogConfig
	redacts []*regexp.Regexp
}

// LogConfig configures the logging behavior.
type LogConfig struct {
	// Level sets the minimum log level: "debug", "info", "warn", "error"
	Level string

	// Format specifies output format: "json" or "text"
	Format string

	// Output is the writer for log output (defaults to os.Stdout)
	Output io.Writer

	// AddSource includes file and line number in log records
	AddSource bool

	// RedactPatterns are additional regex patterns for sensitive data redaction.
	// Default patterns already cover common secrets (API keys, tokens, passwords).
	RedactPatterns []string
}

// ContextKey is the type for context keys used in logging.
type ContextKey string

const (
	// RequestIDKey is the context key for request ids.
	RequestIDKey ContextKey = "request_id"

	// CollectionKey is the context key for the collection a request targets.
	CollectionKey ContextKey = "collection"

	// PrincipalKey is the context key for the authenticated caller.
	PrincipalKey ContextKey = "principal"

	// NodeIDKey is the context key for the federation node handling a request.
	NodeIDKey ContextKey = "node_id"
)

// DefaultRedactPatterns contains regex patterns for common sensitive data.
var DefaultRedactPatterns = []string{
	`(?i)(api[_-]?key|apikey)[\s:=]+["\']?([a-zA-Z0-9_\-]{16,})["\']?`,
	`(?i)(bearer|token)[\s:]+([a-zA-Z0-9_\-\.]{16,})`,
	`(?i)(secret|password|passwd|pwd)[\s:=]+["\']?([^\s"']{8,})["\']?`,
	`eyJ[a-zA-Z0-9_-]*\.eyJ[a-zA-Z0-9_-]*\.[a-zA-Z0-9_-]*`,
	`(?i)(secret|key|token)[\s:=]+["\']?([a-fA-F0-9]{32,})["\']?`,
	`sk-ant-[a-zA-Z0-9_\-]+`,
}

// NewLogger creates a new structured logger with the given configuration.
//
// If config.Output is nil, logs are written to os.Stdout.
// If config.Level is empty or invalid, defaults to "info".
// If config.Format is empty, defaults to "json".
func NewLogger(config LogConfig) *Logger {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Level == "" {
		config.Level = "info"
	}
	if config.Format == "" {
		config.Format = "json"
	}

	level := LogLevelFromString(config.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: config.AddSource,
	}

	var handler slog.Handler
	if config.Format == "json" {
		handler = slog.NewJSONHandler(config.Output, opts)
	} else {
		handler = slog.NewTextHandler(config.Output, opts)
	}

	redacts := make([]*regexp.Regexp, 0)
	allPatterns := append(append([]string{}, DefaultRedactPatterns...), config.RedactPatterns...)
	for _, pattern := range allPatterns {
		if re, err := regexp.Compile(pattern); err == nil {
			redacts = append(redacts, re)
		}
	}

	return &Logger{
		logger:  slog.New(handler),
		config:  config,
		redacts: redacts,
	}
}

// WithFields returns a new logger with the given fields added to all log records.
func (l *Logger) WithFields(args ...any) *Logger {
	return &Logger{
		logger:  l.logger.With(args...),
		config:  l.config,
		redacts: l.redacts,
	}
}

// Debug logs a debug-level message with optional key-value pairs.
func (l *Logger) Debug(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// Info logs an info-level message with optional key-value pairs.
func (l *Logger) Info(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelInfo, msg, args...)
}

// Warn logs a warning-level message with optional key-value pairs.
func (l *Logger) Warn(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// Error logs an error-level message with optional key-value pairs.
func (l *Logger) Error(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelError, msg, args...)
}

func (l *Logger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	msg = l.redactString(msg)

	redactedArgs := make([]any, len(args))
	for i, arg := range args {
		redactedArgs[i] = l.redactValue(arg)
	}

	attrs := make([]any, 0, len(redactedArgs)+8)
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		attrs = append(attrs, "request_id", requestID)
	}
	if collection, ok := ctx.Value(CollectionKey).(string); ok && collection != "" {
		attrs = append(attrs, "collection", collection)
	}
	if principal, ok := ctx.Value(PrincipalKey).(string); ok && principal != "" {
		attrs = append(attrs, "principal", principal)
	}
	if nodeID, ok := ctx.Value(NodeIDKey).(string); ok && nodeID != "" {
		attrs = append(attrs, "node_id", nodeID)
	}
	attrs = append(attrs, redactedArgs...)

	l.logger.Log(ctx, level, msg, attrs...)
}

func (l *Logger) redactValue(v any) any {
	switch val := v.(type) {
	case string:
		return l.redactString(val)
	case error:
		return l.redactString(val.Error())
	case []byte:
		return l.redactString(string(val))
	case map[string]any:
		return l.redactMap(val)
	case map[string]string:
		m := make(map[string]any, len(val))
		for k, v := range val {
			m[k] = v
		}
		return l.redactMap(m)
	default:
		if b, err := json.Marshal(v); err == nil {
			return l.redactString(string(b))
		}
		return v
	}
}

func (l *Logger) redactString(s string) string {
	for _, re := range l.redacts {
		s = re.ReplaceAllString(s, "[REDACTED]")
	}
	return s
}

func (l *Logger) redactMap(m map[string]any) map[string]any {
	result := make(map[string]any, len(m))
	sensitiveKeys := map[string]bool{
		"password": true, "passwd": true, "secret": true, "token": true,
		"api_key": true, "apikey": true, "private_key": true, "privatekey": true,
		"auth": true, "authorization": true,
	}
	for k, v := range m {
		lowerKey := strings.ToLower(strings.ReplaceAll(k, "-", "_"))
		if sensitiveKeys[lowerKey] {
			result[k] = "[REDACTED]"
		} else {
			result[k] = l.redactValue(v)
		}
	}
	return result
}

// MustNewLogger is like NewLogger but panics if the logger cannot be created.
func MustNewLogger(config LogConfig) *Logger {
	logger := NewLogger(config)
	if logger == nil {
		panic("failed to create logger")
	}
	return logger
}

// WithRequestID adds a request id to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithCollection adds the target collection name to the context.
func WithCollection(ctx context.Context, collection string) context.Context {
	return context.WithValue(ctx, CollectionKey, collection)
}

// WithPrincipal adds the authenticated caller to the context.
func WithPrincipal(ctx context.Context, principal string) context.Context {
	return context.WithValue(ctx, PrincipalKey, principal)
}

// WithNodeID adds the federation node id to the context.
func WithNodeID(ctx context.Context, nodeID string) context.Context {
	return context.WithValue(ctx, NodeIDKey, nodeID)
}

// RequestIDFromContext retrieves the request id from the context.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// LogLevelFromString converts a string to a slog.Level. Returns LevelInfo if
// the string is not recognized.
func LogLevelFromString(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
