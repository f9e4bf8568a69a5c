package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/flowrunner/internal/domain"
	"github.com/shaiso/flowrunner/internal/steps"
)

// Engine: движок выполнения графа.
//
// Создаётся один раз на полный набор узлов. Наблюдатели регистрируются
// до Run. Каждый Run обходит граф на своей горутине в глубину: поддерево
// узла выполняется полностью, прежде чем начнётся следующий сосед.
type Engine struct {
	graph     *Graph
	observers *observers
	registry  *steps.Registry
	logger    *slog.Logger

	stopOnTerminate bool
	skipOnFailure   bool
}

// Option: настройка Engine.
type Option func(*Engine)

// WithStopOnTerminate: не посещать наследников узла terminate.
func WithStopOnTerminate() Option {
	return func(e *Engine) { e.stopOnTerminate = true }
}

// WithSkipOnFailure: не посещать наследников http_request, завершившегося fail.
func WithSkipOnFailure() Option {
	return func(e *Engine) { e.skipOnFailure = true }
}

// WithRegistry задаёт реестр шагов. По умолчанию steps.DefaultRegistry().
func WithRegistry(r *steps.Registry) Option {
	return func(e *Engine) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithLogger задаёт логгер. По умолчанию slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// New создаёт Engine для набора узлов.
func New(nodes []domain.Node, opts ...Option) *Engine {
	e := &Engine{
		graph:     BuildGraph(nodes),
		observers: newObservers(),
		registry:  steps.DefaultRegistry(),
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Graph возвращает индекс узлов движка.
func (e *Engine) Graph() *Graph {
	return e.graph
}

// Subscribe регистрирует обработчик события name:
// EventStart или ID узла. Обработчики одного имени вызываются
// в порядке регистрации.
func (e *Engine) Subscribe(name string, h Handler) {
	e.observers.subscribe(name, h)
}

// Observe регистрирует обработчик всех событий движка.
func (e *Engine) Observe(h Handler) {
	e.observers.observe(h)
}

// Execution: дескриптор запущенного обхода.
type Execution struct {
	id      uuid.UUID
	done    chan struct{}
	visited int
}

// ID возвращает идентификатор запуска.
func (x *Execution) ID() uuid.UUID {
	return x.id
}

// Done закрывается после завершения обхода.
func (x *Execution) Done() <-chan struct{} {
	return x.done
}

// Wait блокируется до завершения обхода.
func (x *Execution) Wait() {
	<-x.done
}

// Visited возвращает число посещённых узлов. Валидно после Done.
func (x *Execution) Visited() int {
	select {
	case <-x.done:
		return x.visited
	default:
		return 0
	}
}

// Run запускает обход с узлов entry и сразу возвращает управление.
//
// Узлы entry не обязаны присутствовать в индексе. previousRuns
// передаётся каждому шагу как есть. ctx используется только
// сетевыми шагами: отмена не прерывает обход, а даёт fail.
func (e *Engine) Run(ctx context.Context, entry []domain.Node, previousRuns map[string]string) *Execution {
	if ctx == nil {
		ctx = context.Background()
	}

	x := &Execution{
		id:   uuid.New(),
		done: make(chan struct{}),
	}

	roots := make([]domain.Node, len(entry))
	copy(roots, entry)

	go func() {
		defer close(x.done)
		x.visited = e.walk(ctx, x.id, roots, previousRuns)
	}()

	return x
}

// walk обходит граф через явный стек списков соседей.
//
// Вершина стека: непосещённые соседи текущего уровня. После посещения
// узла его наследники кладутся на стек и обрабатываются раньше
// оставшихся соседей. Так получается порядок A,B,D,C для A→[B,C], B→[D].
func (e *Engine) walk(ctx context.Context, runID uuid.UUID, entry []domain.Node, previousRuns map[string]string) int {
	logger := e.logger.With("run_id", runID)
	logger.Debug("run started", "entry", len(entry))

	started := time.Now()
	visited := 0

	stack := [][]domain.Node{entry}
	for len(stack) > 0 {
		top := len(stack) - 1
		if len(stack[top]) == 0 {
			stack = stack[:top]
			continue
		}

		node := stack[top][0]
		stack[top] = stack[top][1:]
		if len(stack[top]) == 0 {
			stack = stack[:top]
		}

		successors := e.visit(ctx, logger, runID, node, previousRuns)
		visited++

		if len(successors) > 0 {
			stack = append(stack, successors)
		}
	}

	logger.Debug("run finished", "visited", visited, "duration", time.Since(started))
	return visited
}

// visit публикует события узла, выполняет его эффект и возвращает
// наследников, которых нужно посетить.
func (e *Engine) visit(ctx context.Context, logger *slog.Logger, runID uuid.UUID, node domain.Node, previousRuns map[string]string) []domain.Node {
	e.observers.emit(Event{
		Name:  EventStart,
		RunID: runID,
		Node:  node,
		Time:  time.Now(),
	})

	result := e.dispatch(ctx, logger, node, previousRuns)

	e.observers.emit(Event{
		Name:   node.ID,
		RunID:  runID,
		Node:   node,
		Result: result,
		Time:   time.Now(),
	})

	if e.stopOnTerminate && node.Type == domain.NodeTypeTerminate {
		return nil
	}
	if e.skipOnFailure && result.IsFail() {
		return nil
	}

	return e.graph.Resolve(node)
}

// dispatch выполняет шаг узла. Тип без шага ведёт себя как log.
func (e *Engine) dispatch(ctx context.Context, logger *slog.Logger, node domain.Node, previousRuns map[string]string) domain.Result {
	step, err := e.registry.Get(node.Type)
	if err != nil {
		logger.Warn("no step for node type, passing through",
			"node_id", node.ID,
			"type", node.Type,
		)
		return domain.Result{Outcome: domain.OutcomeNone}
	}

	return step.Execute(ctx, node, previousRuns)
}
