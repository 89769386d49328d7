package telemetry

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
)

// LoggerConfig — параметры логгера процесса.
type LoggerConfig struct {
	// Level — "debug", "info", "warn", "error" или смещение ("info+2").
	// Неизвестное значение — info.
	Level string

	// Format — "json" (по умолчанию) или "text".
	Format string

	// Service добавляется ко всем записям; пусто — не добавляется.
	Service string

	// Output — куда писать; nil — os.Stdout.
	Output io.Writer
}

// ParseLevel разбирает уровень логирования без учёта регистра.
func ParseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// NewLogger создаёт логгер по cfg.
//
// На уровне debug в записи добавляется место вызова.
func NewLogger(cfg LoggerConfig) *slog.Logger {
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	level := ParseLevel(cfg.Level)
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level <= slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	logger := slog.New(handler)
	if cfg.Service != "" {
		logger = logger.With("service", cfg.Service)
	}
	return logger
}

// SetupLogger создаёт логгер из LOG_LEVEL, LOG_FORMAT и OTEL_SERVICE
// и делает его логгером по умолчанию.
func SetupLogger() *slog.Logger {
	service := os.Getenv("OTEL_SERVICE")
	if service == "" {
		service = "conduit"
	}

	logger := NewLogger(LoggerConfig{
		Level:   os.Getenv("LOG_LEVEL"),
		Format:  os.Getenv("LOG_FORMAT"),
		Service: service,
	})
	slog.SetDefault(logger)

	return logger
}

type loggerKey struct{}

// WithLogger сохраняет логгер запроса в контексте.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext возвращает логгер запроса или slog.Default().
func FromContext(ctx context.Context) *slog.Logger {
	return FromContextOr(ctx, slog.Default())
}

// FromContextOr возвращает логгер запроса или fallback.
func FromContextOr(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if logger, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok && logger != nil {
		return logger
	}
	return fallback
}

// WithFlowID добавляет flow_id.
func WithFlowID(logger *slog.Logger, flowID string) *slog.Logger {
	return logger.With("flow_id", flowID)
}

// WithStageID добавляет stage_id.
func WithStageID(logger *slog.Logger, stageID string) *slog.Logger {
	return logger.With("stage_id", stageID)
}

// WithTxn добавляет идентификаторы транзакции.
func WithTxn(logger *slog.Logger, txnID, remoteTxnID string) *slog.Logger {
	return logger.With("txn_id", txnID, "remote_txn_id", remoteTxnID)
}
