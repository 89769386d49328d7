// Package transport выполняет исходящие HTTP вызовы стадий.
//
// Client принимает Options (url, method, headers, body) и возвращает
// Response с кодом, телом и заголовками. Код ответа ≥400 не считается
// ошибкой: его классифицирует вызывающая стадия. Ошибка возвращается
// только при сбое транспорта (соединение, таймаут, чтение тела).
package transport
