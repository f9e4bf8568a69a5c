// Package redisbus публикует события движка в Redis pub/sub.
//
// Каждое событие уходит в два канала: общий flowrunner:events
// и канал запуска flowrunner:events:<run_id>. Подписчики (websocket API,
// внешние панели) читают нужный им канал.
package redisbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
)

// Каналы.
const (
	ChannelAll    = "flowrunner:events"
	channelPrefix = "flowrunner:events:"
)

// EventRunCompleted: имя сообщения со сводкой запуска.
const EventRunCompleted = "run.completed"

// RunChannel возвращает канал конкретного запуска.
func RunChannel(runID uuid.UUID) string {
	return channelPrefix + runID.String()
}

// NewClient создаёт клиента Redis.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:            addr,
		Protocol:        2,
		DisableIdentity: true,
	})
}

// Sink: получатель событий движка поверх Redis pub/sub.
type Sink struct {
	client *redis.Client
	logger *slog.Logger
}

// NewSink создаёт Sink.
func NewSink(client *redis.Client, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{client: client, logger: logger}
}

// PublishEvent публикует событие движка.
func (s *Sink) PublishEvent(ctx context.Context, ev engine.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return s.publish(ctx, ev.RunID, data)
}

// completedMessage: сводка запуска в формате канала.
type completedMessage struct {
	Event   string             `json:"event"`
	RunID   uuid.UUID          `json:"run_id"`
	Summary *domain.RunSummary `json:"summary"`
}

// PublishCompleted публикует сводку запуска.
func (s *Sink) PublishCompleted(ctx context.Context, summary *domain.RunSummary) error {
	data, err := json.Marshal(completedMessage{
		Event:   EventRunCompleted,
		RunID:   summary.RunID,
		Summary: summary,
	})
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	return s.publish(ctx, summary.RunID, data)
}

func (s *Sink) publish(ctx context.Context, runID uuid.UUID, data []byte) error {
	_, err := s.client.Pipelined(ctx, func(p redis.Pipeliner) error {
		p.Publish(ctx, RunChannel(runID), data)
		p.Publish(ctx, ChannelAll, data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("publish run %s: %w", runID, err)
	}

	return nil
}

// Message: сообщение, полученное из канала.
type Message struct {
	Event string          `json:"event"`
	RunID string          `json:"run_id"`
	Raw   json.RawMessage `json:"-"`
}

// IsCompleted возвращает true для сводки запуска.
func (m Message) IsCompleted() bool {
	return m.Event == EventRunCompleted
}

// Subscription: подписка на канал событий.
type Subscription struct {
	pubsub *redis.PubSub
	out    chan Message
}

// Subscribe подписывается на channel и ждёт подтверждения подписки,
// так что публикации после возврата не теряются.
func Subscribe(ctx context.Context, client *redis.Client, channel string) (*Subscription, error) {
	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub := &Subscription{
		pubsub: pubsub,
		out:    make(chan Message),
	}
	go sub.pump(ctx)

	return sub, nil
}

// Messages возвращает канал сообщений. Закрывается после Close или отмены ctx.
func (s *Subscription) Messages() <-chan Message {
	return s.out
}

// Close отменяет подписку.
func (s *Subscription) Close() error {
	return s.pubsub.Close()
}

func (s *Subscription) pump(ctx context.Context) {
	defer close(s.out)

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-ch:
			if !ok {
				return
			}

			msg := Message{Raw: json.RawMessage(raw.Payload)}
			if err := json.Unmarshal([]byte(raw.Payload), &msg); err != nil {
				continue
			}

			select {
			case s.out <- msg:
			case <-ctx.Done():
				return
			}
		}
	}
}
