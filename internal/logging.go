package internal

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// ParseLogLevel parses a textual log level (debug, info, warn, error).
func ParseLogLevel(level string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		return slog.LevelInfo, err
	}

	return lvl, nil
}

// NewLogHandler returns the handler used by the binaries.
// Records are printed on w by a tint handler (coloured only when w is
// a terminal) and forwarded to the OpenTelemetry logs bridge.
func NewLogHandler(w io.Writer, level slog.Level) slog.Handler {
	noColor := true
	if file, ok := w.(*os.File); ok {
		noColor = !isatty.IsTerminal(file.Fd()) && !isatty.IsCygwinTerminal(file.Fd())
		w = colorable.NewColorable(file)
	}

	console := tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.DateTime,
		NoColor:    noColor,
	})

	bridge := otelslog.NewHandler(scopePrefix + "cmd")

	return newFanOutHandler(level, console, bridge)
}

// fanOutHandler forwards every record to all the handlers.
type fanOutHandler struct {
	level    slog.Leveler
	handlers []slog.Handler
}

func newFanOutHandler(level slog.Leveler, handlers ...slog.Handler) *fanOutHandler {
	return &fanOutHandler{
		level:    level,
		handlers: handlers,
	}
}

func (h *fanOutHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *fanOutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error

	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}

		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

func (h *fanOutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	handlers := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		handlers = append(handlers, handler.WithAttrs(attrs))
	}

	return newFanOutHandler(h.level, handlers...)
}

func (h *fanOutHandler) WithGroup(name string) slog.Handler {
	handlers := make([]slog.Handler, 0, len(h.handlers))
	for _, handler := range h.handlers {
		handlers = append(handlers, handler.WithGroup(name))
	}

	return newFanOutHandler(h.level, handlers...)
}
