// Package mq публикует и читает события взаимодействий через RabbitMQ.
//
// Структура:
//   - connection.go — соединение с переподключением в фоне
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация событий interaction.updated
//   - consumer.go   — чтение событий (команда conduit events)
//
// Брокер необязателен: без RABBITMQ_URL обновления взаимодействий
// уходят только в HTTP трекер.
package mq
