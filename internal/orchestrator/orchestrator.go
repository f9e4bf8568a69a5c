package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/engine"
	"github.com/shaiso/flowrunner/internal/steps"
	"github.com/shaiso/flowrunner/internal/telemetry"
)

// Sink: внешний получатель событий движка (RabbitMQ, Redis).
type Sink interface {
	// PublishEvent отправляет одно событие движка.
	PublishEvent(ctx context.Context, ev engine.Event) error

	// PublishCompleted отправляет сводку завершённого запуска.
	PublishCompleted(ctx context.Context, summary *domain.RunSummary) error
}

// Orchestrator собирает Engine с наблюдателями окружения
// и выполняет запуски до конца.
//
// Сам движок ничего не знает о логах, метриках и шинах:
// всё это подключается здесь через Observe.
type Orchestrator struct {
	registry *steps.Registry
	metrics  *telemetry.Metrics
	sinks    []Sink
	logger   *slog.Logger
}

// Config: конфигурация Orchestrator.
type Config struct {
	// Registry: реестр шагов (default: steps.DefaultRegistry()).
	Registry *steps.Registry

	// Metrics: Prometheus-метрики, nil отключает.
	Metrics *telemetry.Metrics

	// Sinks: получатели событий.
	Sinks []Sink

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	registry := cfg.Registry
	if registry == nil {
		registry = steps.DefaultRegistry()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		registry: registry,
		metrics:  cfg.Metrics,
		sinks:    cfg.Sinks,
		logger:   logger,
	}
}

// Request: параметры одного запуска.
type Request struct {
	// Nodes: полный набор узлов графа.
	Nodes []domain.Node

	// Entry: ID узлов входа. Пусто: входы вычисляются через engine.Roots.
	Entry []string

	// PreviousRuns: контекст прошлых запусков, передаётся как есть.
	PreviousRuns map[string]string

	// FlowID, ScheduleID попадают в сводку.
	FlowID     *uuid.UUID
	ScheduleID *uuid.UUID

	// Handlers: дополнительные наблюдатели всех событий.
	Handlers []engine.Handler

	// Options: опции движка (WithStopOnTerminate, WithSkipOnFailure).
	Options []engine.Option
}

// Report: результат запуска.
type Report struct {
	Summary domain.RunSummary `json:"summary"`
	Events  []engine.Event    `json:"events"`
}

// ResolveEntry находит узлы входа по ID.
func ResolveEntry(nodes []domain.Node, entry []string) ([]domain.Node, error) {
	if len(entry) == 0 {
		roots := engine.Roots(nodes)
		if len(roots) == 0 {
			return nil, ErrNoEntry
		}
		return roots, nil
	}

	g := engine.BuildGraph(nodes)
	out := make([]domain.Node, 0, len(entry))
	for _, id := range entry {
		n, ok := g.Node(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEntry, id)
		}
		out = append(out, n)
	}

	return out, nil
}

// Start запускает граф и сразу возвращает Execution.
//
// Наблюдатели окружения подключаются раньше req.Handlers.
// onDone вызывается со сводкой после завершения обхода (может быть nil).
func (o *Orchestrator) Start(ctx context.Context, req Request, onDone func(*domain.RunSummary)) (*engine.Execution, error) {
	entry, err := ResolveEntry(req.Nodes, req.Entry)
	if err != nil {
		return nil, err
	}

	opts := append([]engine.Option{
		engine.WithRegistry(o.registry),
		engine.WithLogger(o.logger),
	}, req.Options...)

	e := engine.New(req.Nodes, opts...)

	var (
		mu     sync.Mutex
		failed int
	)
	e.Observe(func(ev engine.Event) {
		if !ev.IsStart() && ev.Result.IsFail() {
			mu.Lock()
			failed++
			mu.Unlock()
		}
	})
	e.Observe(telemetry.LogObserver(o.logger))
	if o.metrics != nil {
		e.Observe(o.metrics.Observer())
	}
	for _, sink := range o.sinks {
		e.Observe(o.forward(ctx, sink))
	}
	for _, h := range req.Handlers {
		e.Observe(h)
	}

	startedAt := time.Now().UTC()
	x := e.Run(ctx, entry, req.PreviousRuns)

	logger := telemetry.WithRunID(o.logger, x.ID().String())
	logger.Info("run started", "entry", len(entry), "nodes", e.Graph().Len())

	go func() {
		x.Wait()

		mu.Lock()
		summary := &domain.RunSummary{
			RunID:      x.ID(),
			FlowID:     req.FlowID,
			ScheduleID: req.ScheduleID,
			StartedAt:  startedAt,
			FinishedAt: time.Now().UTC(),
			Visited:    x.Visited(),
			Failed:     failed,
		}
		mu.Unlock()

		if o.metrics != nil {
			o.metrics.RunFinished(summary.Duration())
		}
		for _, sink := range o.sinks {
			if err := sink.PublishCompleted(context.WithoutCancel(ctx), summary); err != nil {
				logger.Warn("failed to publish run completion", "error", err)
			}
		}

		logger.Info("run finished",
			"visited", summary.Visited,
			"failed", summary.Failed,
			"duration", summary.Duration(),
		)

		if onDone != nil {
			onDone(summary)
		}
	}()

	return x, nil
}

// Execute запускает граф и ждёт завершения.
func (o *Orchestrator) Execute(ctx context.Context, req Request) (*Report, error) {
	report := &Report{}

	var mu sync.Mutex
	req.Handlers = append([]engine.Handler{func(ev engine.Event) {
		mu.Lock()
		report.Events = append(report.Events, ev)
		mu.Unlock()
	}}, req.Handlers...)

	done := make(chan *domain.RunSummary, 1)
	if _, err := o.Start(ctx, req, func(s *domain.RunSummary) { done <- s }); err != nil {
		return nil, err
	}

	summary := <-done

	mu.Lock()
	defer mu.Unlock()
	report.Summary = *summary

	return report, nil
}

// forward возвращает наблюдатель, отправляющий события в sink.
// Ошибка отправки не влияет на обход.
func (o *Orchestrator) forward(ctx context.Context, sink Sink) engine.Handler {
	ctx = context.WithoutCancel(ctx)
	return func(ev engine.Event) {
		if err := sink.PublishEvent(ctx, ev); err != nil {
			o.logger.Warn("failed to publish event",
				"run_id", ev.RunID,
				"event", ev.Name,
				"error", err,
			)
		}
	}
}
