package api

import (
	"log/slog"
	"time"

	"github.com/shaiso/Conduit/internal/engine"
)

// Значения по умолчанию.
const (
	DefaultRequestTimeout = 60 * time.Second
	DefaultMaxRequestBody = 10 * 1024 * 1024 // 10 MB
)

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine         *engine.Engine
	requestTimeout time.Duration
	maxBody        int64
	logger         *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine *engine.Engine

	// RequestTimeout — дедлайн выполнения flow, передаётся во все стадии.
	// 0 — DefaultRequestTimeout.
	RequestTimeout time.Duration

	// MaxRequestBody — предел тела запроса в байтах. 0 — DefaultMaxRequestBody.
	MaxRequestBody int64

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	maxBody := cfg.MaxRequestBody
	if maxBody <= 0 {
		maxBody = DefaultMaxRequestBody
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:         cfg.Engine,
		requestTimeout: timeout,
		maxBody:        maxBody,
		logger:         logger,
	}
}
