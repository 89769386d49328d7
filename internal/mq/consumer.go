package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bytedance/sonic"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Conduit/internal/domain"
)

// EventHandler обрабатывает событие обновления взаимодействия.
type EventHandler func(ctx context.Context, task domain.InteractionTask) error

// ConsumerConfig — конфигурация Consumer.
type ConsumerConfig struct {
	// Queue — очередь; по умолчанию QueueInteractionsUpdated.
	Queue Queue

	// Prefetch — неподтверждённых сообщений на канал. По умолчанию 1.
	Prefetch int

	Handler EventHandler
}

// Consumer читает события взаимодействий из очереди.
//
// Подтверждение:
//   - обработано — ack;
//   - сообщение не разбирается — nack в DLQ;
//   - ошибка обработчика — одна повторная доставка, затем DLQ;
//   - неизвестный тип — ack без обработки.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    Queue
	prefetch int
	handler  EventHandler
}

// NewConsumer создаёт Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	queue := cfg.Queue
	if queue == "" {
		queue = QueueInteractionsUpdated
	}
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("queue", queue),
		queue:    queue,
		prefetch: prefetch,
		handler:  cfg.Handler,
	}
}

// Run читает очередь до отмены ctx или закрытия соединения.
// После разрыва соединения чтение продолжается с восстановленного канала.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		deliveries, err := c.subscribe(ctx)
		if err == nil {
			c.logger.Info("consumer started")
			err = c.drain(ctx, deliveries)
		}

		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrConnectionClosed):
			return err
		}

		c.logger.Warn("consumer interrupted, waiting for connection", "error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.Done():
			return ErrConnectionClosed
		case <-c.conn.Redialed():
		}
	}
}

// subscribe настраивает prefetch и начинает чтение очереди.
func (c *Consumer) subscribe(ctx context.Context) (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery

	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		var err error
		deliveries, err = ch.ConsumeWithContext(ctx,
			string(c.queue),
			"",    // consumer tag
			false, // auto-ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", c.queue, err)
		}
		return nil
	})

	return deliveries, err
}

// drain обрабатывает доставки, пока канал открыт.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return ErrDeliveriesClosed
			}
			c.handle(ctx, d)
		}
	}
}

// handle обрабатывает одно сообщение и подтверждает его.
func (c *Consumer) handle(ctx context.Context, d amqp.Delivery) {
	logger := c.logger.With("message_id", d.MessageId)

	task, msgType, err := decodeEvent(d.Body)
	switch {
	case err != nil:
		logger.Error("malformed event, sending to DLQ", "error", err)
		d.Nack(false, false)
		return
	case msgType != MessageTypeInteractionUpdated:
		logger.Warn("unknown event type, skipping", "type", msgType)
		d.Ack(false)
		return
	}

	logger = logger.With(
		"flow_id", task.FlowID,
		"interaction_id", task.InteractionID,
		"txn_id", task.TxnID,
	)

	if err := c.handler(ctx, task); err != nil {
		requeue := !d.Redelivered
		logger.Error("event handler failed", "requeue", requeue, "error", err)
		d.Nack(false, requeue)
		return
	}

	logger.Debug("event processed", "status", task.Status)
	d.Ack(false)
}

// decodeEvent разбирает тело сообщения.
func decodeEvent(body []byte) (domain.InteractionTask, MessageType, error) {
	var msg Message
	if err := sonic.Unmarshal(body, &msg); err != nil {
		return domain.InteractionTask{}, "", fmt.Errorf("unmarshal message: %w", err)
	}
	if msg.Type != MessageTypeInteractionUpdated {
		return domain.InteractionTask{}, msg.Type, nil
	}

	task, err := ParsePayload[domain.InteractionTask](&msg)
	if err != nil {
		return domain.InteractionTask{}, msg.Type, err
	}
	if task.FlowID == "" {
		return domain.InteractionTask{}, msg.Type, fmt.Errorf("event without flowId")
	}
	return task, msg.Type, nil
}

// ParsePayload приводит payload сообщения к типу T.
//
// После разбора сообщения payload — map[string]any; значение
// пересериализуется в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var result T

	raw, err := sonic.Marshal(msg.Payload)
	if err != nil {
		return result, fmt.Errorf("marshal payload: %w", err)
	}
	if err := sonic.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("unmarshal payload: %w", err)
	}

	return result, nil
}
