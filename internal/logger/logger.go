package logger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

var Log *slog.Logger

var errorLog io.Closer

func init() {
	// Auto-initialize with safe defaults for tests and development
	// Production code can override by calling Initialize() explicitly
	Log = newLogger(os.Stdout, "info", false, nil)
	slog.SetDefault(Log)
}

// Initialize sets up the global logger with the specified level and format.
// When errorLogPath is set, every ERROR record is also appended to that file.
func Initialize(level string, useJSON bool, errorLogPath string) error {
	var errOut io.Writer
	if errorLogPath != "" {
		f, err := os.OpenFile(errorLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open error log %s: %w", errorLogPath, err)
		}
		Close()
		errorLog = f
		errOut = f
	}

	Log = newLogger(os.Stdout, level, useJSON, errOut)
	slog.SetDefault(Log) // Make it the default for entire program
	return nil
}

// Close releases the error log file, if any.
func Close() {
	if errorLog != nil {
		errorLog.Close()
		errorLog = nil
	}
}

func newLogger(out io.Writer, level string, useJSON bool, errOut io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(level),
		AddSource: true, // Equivalent to log.Lshortfile - adds file and line number
	}

	var handler slog.Handler
	if useJSON {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	if errOut != nil {
		errHandler := slog.NewTextHandler(&lockedWriter{w: errOut}, &slog.HandlerOptions{Level: slog.LevelError})
		handler = &teeHandler{primary: handler, errors: errHandler}
	}
	return slog.New(handler)
}

// teeHandler sends every record to primary and ERROR records to the error log too.
type teeHandler struct {
	primary slog.Handler
	errors  slog.Handler
}

func (h *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.primary.Enabled(ctx, level) || h.errors.Enabled(ctx, level)
}

func (h *teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	if h.primary.Enabled(ctx, r.Level) {
		errs = append(errs, h.primary.Handle(ctx, r.Clone()))
	}
	if h.errors.Enabled(ctx, r.Level) {
		errs = append(errs, h.errors.Handle(ctx, r))
	}
	return errors.Join(errs...)
}

func (h *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &teeHandler{primary: h.primary.WithAttrs(attrs), errors: h.errors.WithAttrs(attrs)}
}

func (h *teeHandler) WithGroup(name string) slog.Handler {
	return &teeHandler{primary: h.primary.WithGroup(name), errors: h.errors.WithGroup(name)}
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// parseLevel converts string log level to slog.Level
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		// Default to Info if invalid level provided
		return slog.LevelInfo
	}
}
