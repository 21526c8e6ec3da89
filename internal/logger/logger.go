package logger

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

type Logger struct {
	*slog.Logger
}

// New creates a JSON logger on stderr, stdout is reserved for route tables
func New(logLevel string) *Logger {
	return NewWithWriter(os.Stderr, logLevel)
}

func NewWithWriter(w io.Writer, logLevel string) *Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLogLevel(logLevel),
		AddSource: logLevel == "debug",
	}

	handler := slog.NewJSONHandler(w, opts)

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Discard returns a logger that drops everything
func Discard() *Logger {
	return &Logger{
		Logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidLevel reports whether level is one of the accepted log levels
func ValidLevel(level string) bool {
	switch strings.ToLower(level) {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
	}
}

func (l *Logger) WithFields(fields ...interface{}) *Logger {
	return &Logger{
		Logger: l.Logger.With(fields...),
	}
}

func (l *Logger) QueryCompleted(mode, target string, routes int, duration int64, success bool) {
	l.Debug("Route query completed",
		slog.String("mode", mode),
		slog.String("target", target),
		slog.Int("routes", routes),
		slog.Int64("duration_ms", duration),
		slog.Bool("success", success))
}

func (l *Logger) RouteEvent(kind, destination, gateway string, metric uint32, iface string) {
	l.Debug("Route event applied",
		slog.String("event", kind),
		slog.String("destination", destination),
		slog.String("gateway", gateway),
		slog.Uint64("metric", uint64(metric)),
		slog.String("interface", iface))
}

func (l *Logger) TableUpdated(size int, fingerprint uint64) {
	l.Info("Route table updated",
		slog.Int("routes", size),
		slog.Uint64("fingerprint", fingerprint))
}

func (l *Logger) KernelError(errno int32, message string) {
	l.Warn("Kernel reported error",
		slog.Int("errno", int(errno)),
		slog.String("message", message))
}

func (l *Logger) ServiceStart(version, pid string) {
	l.Info("Service starting",
		slog.String("version", version),
		slog.String("pid", pid))
}

func (l *Logger) ServiceStop() {
	l.Info("Service stopping")
}

func (l *Logger) MonitorStart(groups uint32) {
	l.Info("Route monitor started",
		slog.String("groups", "0x"+strconv.FormatUint(uint64(groups), 16)))
}

func (l *Logger) MonitorStop() {
	l.Info("Route monitor stopped")
}

func (l *Logger) Performance(operation string, metrics map[string]interface{}) {
	args := []interface{}{
		"operation", operation,
	}

	for k, v := range metrics {
		args = append(args, k, v)
	}

	l.Debug("performance metrics", args...)
}
