package mq

import "errors"

var (
	// ErrNoChannel — соединение с брокером сейчас не установлено.
	ErrNoChannel = errors.New("rabbitmq channel unavailable")

	// ErrConnectionClosed — соединение закрыто через Close.
	ErrConnectionClosed = errors.New("rabbitmq connection closed")

	// ErrDeliveriesClosed — брокер закрыл канал доставки.
	ErrDeliveriesClosed = errors.New("deliveries channel closed")
)
