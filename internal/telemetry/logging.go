package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// ParseLevel переводит строку DEBUG/INFO/WARN/ERROR в slog.Level.
// Неизвестные значения — INFO.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// LogOptions — настройки логгера.
type LogOptions struct {
	// Level — DEBUG, INFO, WARN, ERROR. По умолчанию INFO.
	Level string

	// Format — "json" (по умолчанию) или "text".
	Format string

	// Output — куда писать. По умолчанию os.Stdout.
	Output io.Writer
}

// SetupLogger инициализирует глобальный логгер.
//
// На уровне DEBUG видны подавленные ошибки rollup (debug mode выключен),
// на INFO они не попадают в лог.
func SetupLogger(opts LogOptions) *slog.Logger {
	level := ParseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}

	var handler slog.Handler
	if opts.Format == "text" {
		handler = slog.NewTextHandler(out, handlerOpts)
	} else {
		handler = slog.NewJSONHandler(out, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)

	return logger
}

type ctxKey string

// CtxLogger — ключ для логгера в контексте.
const CtxLogger ctxKey = "logger"

// WithLogger добавляет логгер в контекст.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, CtxLogger, logger)
}

// FromContext извлекает логгер из контекста.
// Если логгер не найден, возвращает глобальный.
func FromContext(ctx context.Context) *slog.Logger {
	if logger, ok := ctx.Value(CtxLogger).(*slog.Logger); ok {
		return logger
	}
	return slog.Default()
}

// WithInvocationID возвращает логгер с invocation_id.
func WithInvocationID(logger *slog.Logger, invocationID string) *slog.Logger {
	return logger.With("invocation_id", invocationID)
}

// WithRecord возвращает логгер с типом и id изменившейся записи.
func WithRecord(logger *slog.Logger, entityName, recordID string) *slog.Logger {
	return logger.With("entity", entityName, "record_id", recordID)
}
