// Package telemetry обеспечивает наблюдаемость системы.
//
// Включает:
//   - logging.go — structured logging через slog
//   - metrics.go — Prometheus метрики стадий, хранилища и очереди уведомлений
//   - tracing.go — OpenTelemetry, span на каждый вызов стадии
//
// Метрики экспортируются на /metrics endpoint.
package telemetry
