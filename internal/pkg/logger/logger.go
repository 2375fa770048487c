// internal/pkg/logger/logger.go
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// ContextKey represents keys for context values
type ContextKey string

const (
	ContextKeyRequestID   ContextKey = "request_id"
	ContextKeyRequesterID ContextKey = "requester_id"
	ContextKeyEventID     ContextKey = "event_id"
	ContextKeyFlow        ContextKey = "flow"
	ContextKeyClientIP    ContextKey = "client_ip"
	ContextKeyMethod      ContextKey = "method"
	ContextKeyPath        ContextKey = "path"
)

// LogConfig holds logger configuration
type LogConfig struct {
	Level          string
	Format         string
	Output         string
	AddSource      bool
	Environment    string
	ServiceName    string
	ServiceVersion string
}

// Logger wraps slog.Logger with context extraction
type Logger struct {
	*slog.Logger
	config *LogConfig
}

var defaultLogger *Logger

// SetupLogger builds the process logger and installs it as the slog default
func SetupLogger(level string, format string) *Logger {
	config := &LogConfig{
		Level:          level,
		Format:         format,
		Output:         "stdout",
		AddSource:      level == "debug",
		ServiceName:    os.Getenv("SERVICE_NAME"),
		ServiceVersion: os.Getenv("SERVICE_VERSION"),
		Environment:    os.Getenv("APP_ENV"),
	}

	logger := NewLogger(config, getWriter(config.Output))
	defaultLogger = logger
	slog.SetDefault(logger.Logger)

	return logger
}

// NewLogger creates a logger writing to w
func NewLogger(config *LogConfig, w io.Writer) *Logger {
	if config == nil {
		config = &LogConfig{Level: "info", Format: "json"}
	}
	if w == nil {
		w = os.Stdout
	}

	opts := &slog.HandlerOptions{
		Level:     ParseLevel(config.Level),
		AddSource: config.AddSource,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			return replaceAttr(config, groups, a)
		},
	}

	var handler slog.Handler
	switch config.Format {
	case "text":
		handler = NewPrettyTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}

	// sanitization runs last so context attributes are covered too
	handler = NewContextHandler(handler)
	handler = NewSanitizationHandler(handler)

	var attrs []slog.Attr
	if config.ServiceName != "" {
		attrs = append(attrs, slog.String("service", config.ServiceName))
	}
	if config.ServiceVersion != "" {
		attrs = append(attrs, slog.String("version", config.ServiceVersion))
	}
	if config.Environment != "" {
		attrs = append(attrs, slog.String("env", config.Environment))
	}
	if len(attrs) > 0 {
		handler = handler.WithAttrs(attrs)
	}

	return &Logger{
		Logger: slog.New(handler),
		config: config,
	}
}

// WithContext returns a logger carrying the context values as attributes
func (l *Logger) WithContext(ctx context.Context) *slog.Logger {
	attrs := extractContextAttrs(ctx)
	if len(attrs) == 0 {
		return l.Logger
	}
	args := make([]any, len(attrs))
	for i, a := range attrs {
		args[i] = a
	}
	return l.Logger.With(args...)
}

// GetDefault returns the process logger
func GetDefault() *Logger {
	if defaultLogger == nil {
		defaultLogger = NewLogger(nil, os.Stdout)
	}
	return defaultLogger
}

// WithRequester stores the requester id for log enrichment
func WithRequester(ctx context.Context, requesterID int64) context.Context {
	return context.WithValue(ctx, ContextKeyRequesterID, requesterID)
}

// WithEvent stores the inbound event id for log enrichment
func WithEvent(ctx context.Context, eventID string) context.Context {
	return context.WithValue(ctx, ContextKeyEventID, eventID)
}

// WithFlow stores the active flow name for log enrichment
func WithFlow(ctx context.Context, flow string) context.Context {
	return context.WithValue(ctx, ContextKeyFlow, flow)
}

// RequestID returns the request id stored by the RequestID middleware
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ContextKeyRequestID).(string)
	return id
}

// ParseLevel maps a level name onto slog levels; unknown names mean info
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func getWriter(output string) io.Writer {
	switch output {
	case "stderr":
		return os.Stderr
	default:
		if strings.HasPrefix(output, "file:") {
			file, err := os.OpenFile(strings.TrimPrefix(output, "file:"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return os.Stdout
			}
			return file
		}
		return os.Stdout
	}
}

var contextKeys = []ContextKey{
	ContextKeyRequestID,
	ContextKeyRequesterID,
	ContextKeyEventID,
	ContextKeyFlow,
	ContextKeyClientIP,
	ContextKeyMethod,
	ContextKeyPath,
}

func extractContextAttrs(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	var attrs []slog.Attr
	for _, key := range contextKeys {
		val := ctx.Value(key)
		if val == nil {
			continue
		}
		keyStr := string(key)
		switch v := val.(type) {
		case string:
			if v != "" {
				attrs = append(attrs, slog.String(keyStr, v))
			}
		case int64:
			attrs = append(attrs, slog.Int64(keyStr, v))
		case int:
			attrs = append(attrs, slog.Int(keyStr, v))
		default:
			attrs = append(attrs, slog.Any(keyStr, v))
		}
	}
	return attrs
}

func replaceAttr(config *LogConfig, _ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		if t, ok := a.Value.Any().(time.Time); ok {
			a.Value = slog.StringValue(t.UTC().Format(time.RFC3339Nano))
		}
	}

	// log aggregators expect severity
	if a.Key == slog.LevelKey && config.Format != "text" {
		a.Key = "severity"
	}

	return a
}
