package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeInteractions Exchange = "conduit.interactions"
	ExchangeDLQ          Exchange = "conduit.dlq"
)

// Queues — имена очередей.
const (
	QueueInteractionsUpdated Queue = "interactions.updated"
	QueueDLQInteractions     Queue = "dlq.interactions"
)

// Routing keys.
const (
	RoutingKeyUpdated         RoutingKey = "updated"
	RoutingKeyDLQInteractions RoutingKey = "interactions"
)

// SetupTopology объявляет обменники, очереди и привязки.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareExchanges(ch); err != nil {
			return err
		}
		if err := declareQueues(ch); err != nil {
			return err
		}
		return bindQueues(ch)
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	for _, name := range []Exchange{ExchangeInteractions, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(name), // name
			"direct",     // type
			true,         // durable
			false,        // auto-deleted
			false,        // internal
			false,        // no-wait
			nil,          // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", name, err)
		}
	}
	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQInteractions),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// interactions.updated — с DLQ (некорректные события уходят в DLQ)
		{QueueInteractionsUpdated, dlqArgs},

		// dlq.interactions — сама DLQ очередь
		{QueueDLQInteractions, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}
	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueInteractionsUpdated, RoutingKeyUpdated, ExchangeInteractions},
		{QueueDLQInteractions, RoutingKeyDLQInteractions, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Conduit RabbitMQ Topology:

    conduit.interactions (direct)
    └── interactions.updated [routing: updated]
            Consumer: conduit events
            DLQ: dlq.interactions

    conduit.dlq (direct)
    └── dlq.interactions [routing: interactions]
            Manual processing
  `
}
