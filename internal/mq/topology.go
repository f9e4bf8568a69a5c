package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange: имя обменника.
type Exchange string

// Queue: имя очереди.
type Queue string

// RoutingKey: ключ маршрутизации.
type RoutingKey string

// ExchangeEvents: topic-обменник событий движка.
const ExchangeEvents Exchange = "flowrunner.events"

// QueueEventsTail: общая очередь, получающая все события.
const QueueEventsTail Queue = "events.tail"

// Ключи маршрутизации совпадают с типами сообщений.
const (
	RoutingKeyNodeStarted    RoutingKey = "node.started"
	RoutingKeyNodeDispatched RoutingKey = "node.dispatched"
	RoutingKeyRunCompleted   RoutingKey = "run.completed"

	// RoutingKeyAll: шаблон, совпадающий с любым ключом.
	RoutingKeyAll RoutingKey = "#"
)

// SetupTopology объявляет обменник, очередь и привязку.
// Операции идемпотентны, вызывать можно при каждом старте.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareEventsExchange(ch); err != nil {
			return err
		}

		if _, err := ch.QueueDeclare(
			string(QueueEventsTail),
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			amqp.Table{"x-max-length": int32(10000)},
		); err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueEventsTail, err)
		}

		if err := ch.QueueBind(string(QueueEventsTail), string(RoutingKeyAll), string(ExchangeEvents), false, nil); err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueueEventsTail, ExchangeEvents, err)
		}

		return nil
	})
}

// DeclareTailQueue объявляет временную эксклюзивную очередь,
// привязанную к ExchangeEvents по ключу pattern. Возвращает имя очереди.
//
// Такая очередь живёт, пока открыто соединение, и даёт каждому
// слушателю собственную копию потока событий.
func DeclareTailQueue(ctx context.Context, conn *Connection, pattern RoutingKey) (string, error) {
	var name string

	err := conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := declareEventsExchange(ch); err != nil {
			return err
		}

		q, err := ch.QueueDeclare("", false, true, true, false, nil)
		if err != nil {
			return fmt.Errorf("declare tail queue: %w", err)
		}

		if err := ch.QueueBind(q.Name, string(pattern), string(ExchangeEvents), false, nil); err != nil {
			return fmt.Errorf("bind tail queue: %w", err)
		}

		name = q.Name
		return nil
	})

	return name, err
}

func declareEventsExchange(ch *amqp.Channel) error {
	err := ch.ExchangeDeclare(
		string(ExchangeEvents),
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
	}
	return nil
}
