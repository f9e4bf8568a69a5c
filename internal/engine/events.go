package engine

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowrunner/internal/domain"
)

// EventStart: имя события, которое публикуется перед эффектом каждого узла.
const EventStart = "eval:start"

// Event: событие движка.
//
// Два класса событий:
//   - Name == EventStart: узел сейчас будет выполнен, Result пуст;
//   - Name == Node.ID: эффект узла выполнен, Result несёт success или fail
//     (только для http_request).
type Event struct {
	Name   string
	RunID  uuid.UUID
	Node   domain.Node
	Result domain.Result
	Time   time.Time
}

// IsStart возвращает true для события EventStart.
func (e Event) IsStart() bool {
	return e.Name == EventStart
}

// Payload возвращает полезную нагрузку события: поля узла плюс
// success или fail, если эффект их дал.
func (e Event) Payload() map[string]any {
	outputs := e.Node.Outputs
	if outputs == nil {
		outputs = []string{}
	}

	p := map[string]any{
		"id":      e.Node.ID,
		"type":    e.Node.Type,
		"name":    e.Node.Name,
		"outputs": outputs,
	}
	if e.Node.Config != nil {
		p["config"] = e.Node.Config
	}

	switch e.Result.Outcome {
	case domain.OutcomeSuccess:
		p["success"] = e.Result.Success
	case domain.OutcomeFail:
		if e.Result.Fail != nil {
			p["fail"] = e.Result.Fail.Error()
		} else {
			p["fail"] = "unknown error"
		}
	}

	return p
}

// eventJSON: форма события на границе (sinks, websocket).
type eventJSON struct {
	Event   string         `json:"event"`
	RunID   uuid.UUID      `json:"run_id"`
	Time    time.Time      `json:"time"`
	Payload map[string]any `json:"payload"`
}

// MarshalJSON кодирует событие для внешних потребителей.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(eventJSON{
		Event:   e.Name,
		RunID:   e.RunID,
		Time:    e.Time,
		Payload: e.Payload(),
	})
}

// Handler: наблюдатель событий.
//
// Вызывается синхронно на горутине обхода. Долгий обработчик
// задерживает обход, паника не перехватывается.
type Handler func(Event)

// observers: реестр наблюдателей одного Engine.
type observers struct {
	mu     sync.RWMutex
	byName map[string][]Handler
	all    []Handler
}

func newObservers() *observers {
	return &observers{
		byName: make(map[string][]Handler),
	}
}

func (o *observers) subscribe(name string, h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.byName[name] = append(o.byName[name], h)
}

func (o *observers) observe(h Handler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.all = append(o.all, h)
}

// emit доставляет событие: сначала наблюдателям всех событий,
// затем подписчикам по имени, каждой группе в порядке регистрации.
// Доставка идёт по снимку, чтобы обработчик мог подписывать новых.
func (o *observers) emit(ev Event) {
	o.mu.RLock()
	handlers := make([]Handler, 0, len(o.all)+len(o.byName[ev.Name]))
	handlers = append(handlers, o.all...)
	handlers = append(handlers, o.byName[ev.Name]...)
	o.mu.RUnlock()

	for _, h := range handlers {
		h(ev)
	}
}
