package logger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New creates a slog.Logger writing to the enabled console and rotating file outputs.
func New(config Config) (*slog.Logger, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var handlers []slog.Handler
	if config.Console.Enabled {
		handlers = append(handlers, newHandler(os.Stdout, config.Console.Format, config.Console.Level))
	}
	if config.File.Enabled {
		fileWriter := &lumberjack.Logger{
			Filename:   config.File.Filename,
			MaxSize:    config.File.MaxSize,
			MaxBackups: config.File.MaxBackups,
			MaxAge:     config.File.MaxAge,
			Compress:   config.File.Compress,
		}
		handlers = append(handlers, newHandler(fileWriter, config.File.Format, config.File.Level))
	}

	// Create multi-handler
	var handler slog.Handler
	switch len(handlers) {
	case 0:
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	case 1:
		handler = handlers[0]
	default:
		handler = NewMultiHandler(handlers...)
	}

	return slog.New(handler), nil
}

func newHandler(w io.Writer, format Format, level Level) slog.Handler {
	lvl, _ := level.toSlogLevel()
	opts := &slog.HandlerOptions{Level: lvl}
	if format == FormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// SetDefault sets the default logger with the given configuration.
func SetDefault(config Config) error {
	logger, err := New(config)
	if err != nil {
		return err
	}

	slog.SetDefault(logger)
	return nil
}

// ComponentLogger returns a logger with the given component name as a group.
func ComponentLogger(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

// MultiHandler handles multiple slog handlers.
type MultiHandler struct {
	handlers []slog.Handler
}

// NewMultiHandler creates a new multi-handler.
func NewMultiHandler(handlers ...slog.Handler) *MultiHandler {
	return &MultiHandler{handlers: handlers}
}

// Enabled reports whether the handler handles records at the given level.
func (m *MultiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle passes the record to every enabled handler, even if one fails.
func (m *MultiHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, record.Level) {
			if err := h.Handle(ctx, record.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// WithAttrs returns a new handler with the given attributes.
func (m *MultiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithAttrs(attrs)
	}
	return NewMultiHandler(handlers...)
}

// WithGroup returns a new handler with the given group name.
func (m *MultiHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		handlers[i] = h.WithGroup(name)
	}
	return NewMultiHandler(handlers...)
}
