package steps

import (
	"fmt"
	"sort"
	"sync"

	"github.com/shaiso/flowrunner/internal/domain"
)

// Registry: реестр шагов по типу узла. Потокобезопасен.
type Registry struct {
	mu    sync.RWMutex
	steps map[domain.NodeType]Step
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		steps: make(map[domain.NodeType]Step),
	}
}

// DefaultRegistry создаёт реестр, покрывающий все типы domain.NodeTypes().
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(NewPassthroughStep(domain.NodeTypeStart))
	r.Register(NewHTTPRequestStep(nil))
	r.Register(NewPassthroughStep(domain.NodeTypeLog))
	r.Register(NewPassthroughStep(domain.NodeTypeTerminate))
	r.Register(NewPassthroughStep(domain.NodeTypeEnd))

	return r
}

// Register регистрирует шаг. Шаг того же типа перезаписывается.
func (r *Registry) Register(step Step) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.steps[step.Type()] = step
}

// Get возвращает шаг по типу или ErrStepNotFound.
func (r *Registry) Get(t domain.NodeType) (Step, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	step, exists := r.steps[t]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStepNotFound, t)
	}

	return step, nil
}

// Has проверяет, зарегистрирован ли шаг.
func (r *Registry) Has(t domain.NodeType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.steps[t]
	return exists
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []domain.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]domain.NodeType, 0, len(r.steps))
	for t := range r.steps {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Count возвращает количество зарегистрированных шагов.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.steps)
}

// Unregister удаляет шаг из реестра.
func (r *Registry) Unregister(t domain.NodeType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.steps, t)
}
