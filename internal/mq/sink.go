package mq

import (
	"context"
	"encoding/json"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
)

// publisher: то, что нужно EventSink от Publisher.
type publisher interface {
	Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error
}

// EventSink пересылает события движка в ExchangeEvents.
//
// eval:start уходит как node.started, событие узла как node.dispatched,
// сводка запуска как run.completed. Payload: JSON события движка.
type EventSink struct {
	pub publisher
}

// NewEventSink создаёт EventSink поверх Publisher.
func NewEventSink(pub *Publisher) *EventSink {
	return &EventSink{pub: pub}
}

// PublishEvent публикует одно событие движка.
func (s *EventSink) PublishEvent(ctx context.Context, ev engine.Event) error {
	msgType, key := EventRouting(ev)

	msg, err := NewMessage(msgType, ev)
	if err != nil {
		return err
	}

	return s.pub.Publish(ctx, ExchangeEvents, key, msg)
}

// PublishCompleted публикует сводку запуска.
func (s *EventSink) PublishCompleted(ctx context.Context, summary *domain.RunSummary) error {
	msg, err := NewMessage(MessageTypeRunCompleted, summary)
	if err != nil {
		return err
	}

	return s.pub.Publish(ctx, ExchangeEvents, RoutingKeyRunCompleted, msg)
}

// EventRouting возвращает тип сообщения и ключ маршрутизации события.
func EventRouting(ev engine.Event) (MessageType, RoutingKey) {
	if ev.IsStart() {
		return MessageTypeNodeStarted, RoutingKeyNodeStarted
	}
	return MessageTypeNodeDispatched, RoutingKeyNodeDispatched
}

// EventEnvelope: событие движка в том виде, в каком его читает потребитель.
type EventEnvelope struct {
	Event   string         `json:"event"`
	RunID   string         `json:"run_id"`
	Payload map[string]any `json:"payload"`
}

// DecodeEvent разбирает payload сообщения node.started / node.dispatched.
func DecodeEvent(msg *Message) (EventEnvelope, error) {
	return ParsePayload[EventEnvelope](msg)
}

// ParsePayload разбирает payload сообщения в T.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T
	if err := json.Unmarshal(msg.Payload, &out); err != nil {
		return out, err
	}
	return out, nil
}
