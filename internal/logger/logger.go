package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger *slog.Logger
	once          sync.Once
	mu            sync.Mutex
)

// Options controls how Configure builds the default logger.
type Options struct {
	Level  string    // debug, info, warn, error
	Format string    // json or text
	Output io.Writer // defaults to os.Stdout for json, os.Stderr for text
}

// Init initializes the default logger with a JSON handler writing to os.Stdout.
// It ensures that the logger is initialized only once.
func Init() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if defaultLogger == nil {
			defaultLogger = New(Options{Level: "info", Format: "json"})
			slog.SetDefault(defaultLogger)
		}
	})
}

// Configure replaces the default logger once configuration has been loaded.
func Configure(opts Options) *slog.Logger {
	once.Do(func() {}) // a later Init must not overwrite the configured logger
	l := New(opts)
	mu.Lock()
	defaultLogger = l
	mu.Unlock()
	slog.SetDefault(l)
	return l
}

// New builds a logger without touching the package default.
func New(opts Options) *slog.Logger {
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	if strings.EqualFold(opts.Format, "text") {
		out := opts.Output
		if out == nil {
			out = os.Stderr
		}
		handlerOpts.ReplaceAttr = zerologFieldNames
		console := zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
		return slog.New(slog.NewJSONHandler(console, handlerOpts))
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return slog.New(slog.NewJSONHandler(out, handlerOpts))
}

// zerologFieldNames renames slog's built-in keys so zerolog's ConsoleWriter can render the JSON.
func zerologFieldNames(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 {
		return a
	}
	switch a.Key {
	case slog.MessageKey:
		a.Key = zerolog.MessageFieldName
	case slog.TimeKey:
		a.Key = zerolog.TimestampFieldName
		a.Value = slog.StringValue(a.Value.Time().Format(time.RFC3339))
	case slog.LevelKey:
		a.Key = zerolog.LevelFieldName
		a.Value = slog.StringValue(strings.ToLower(a.Value.String()))
	}
	return a
}

// ParseLevel maps a level name onto slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Get returns the initialized default logger.
// It calls Init() to ensure the logger is ready before returning it.
func Get() *slog.Logger {
	Init()
	mu.Lock()
	defer mu.Unlock()
	return defaultLogger
}

// Info logs an informational message using the default logger.
func Info(msg string, args ...any) {
	Get().Info(msg, args...)
}

// Warn logs a warning message using the default logger.
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// Error logs an error message using the default logger.
func Error(msg string, err error, args ...any) {
	if err != nil {
		args = append(args, "error", err.Error())
	}
	Get().Error(msg, args...)
}

// Debug logs a debug message using the default logger.
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}
