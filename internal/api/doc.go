// Package api содержит HTTP сервер flows.
//
// Структура:
//   - handler.go      — Handler с DI (engine, таймаут запроса, logger)
//   - routes.go       — регистрация маршрутов flows и служебных endpoints
//   - middleware.go   — middleware (logging, recovery, идентификаторы транзакции)
//   - response.go     — JSON-ответы, ошибки и запись результата flow
//   - dto.go          — Data Transfer Objects для описания flows
//   - flow_handler.go — вызов flow и обработчики для /api/v1/flows
//
// Каждый flow с входящим путём получает маршрут "POST <path>".
package api
