package engine

import (
	"errors"
	"fmt"

	"github.com/shaiso/flowrunner/internal/domain"
)

// Validate проверяет описание графа и возвращает все найденные
// проблемы, объединённые через errors.Join. Каждая: *ValidationError.
//
// Движок Validate не вызывает: граф с висячими рёбрами или
// неверными дескрипторами выполняется как есть.
//
// Проверяется:
//   - пустые и повторяющиеся ID
//   - неизвестный тип и отсутствующий config
//   - формат дескрипторов, совпадение source, существование target
//   - отсутствие циклов
func Validate(nodes []domain.Node) error {
	if len(nodes) == 0 {
		return errors.Join(NewValidationError("", "nodes", "graph has no nodes", ErrEmptyGraph))
	}

	var errs []error
	seen := make(map[string]bool, len(nodes))

	for _, n := range nodes {
		if n.ID == "" {
			errs = append(errs, NewValidationError("", "id", "node has empty ID", ErrEmptyNodeID))
			continue
		}
		if seen[n.ID] {
			errs = append(errs, NewValidationError(n.ID, "id", "duplicate node ID", ErrDuplicateNodeID))
		}
		seen[n.ID] = true

		errs = append(errs, validateNode(n)...)
	}

	for _, n := range nodes {
		if n.ID == "" {
			continue
		}
		errs = append(errs, validateOutputs(n, seen)...)
	}

	if err := detectCycle(nodes); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// validateNode проверяет тип и конфигурацию узла.
func validateNode(n domain.Node) []error {
	if !n.Type.IsValid() {
		return []error{NewValidationError(n.ID, "type",
			fmt.Sprintf("unknown node type: %q", n.Type), ErrUnknownNodeType)}
	}

	switch n.Type {
	case domain.NodeTypeHTTPRequest:
		cfg := n.HTTPRequest()
		if cfg == nil {
			return []error{NewValidationError(n.ID, "config",
				"http_request requires config", ErrMissingConfig)}
		}
		if cfg.URL == "" {
			return []error{NewValidationError(n.ID, "config.url",
				"http_request requires url", ErrMissingConfig)}
		}
	case domain.NodeTypeTerminate:
		if n.Terminate() == nil {
			return []error{NewValidationError(n.ID, "config",
				"terminate requires config", ErrMissingConfig)}
		}
	}

	return nil
}

// validateOutputs проверяет дескрипторы исходящих рёбер.
func validateOutputs(n domain.Node, known map[string]bool) []error {
	var errs []error

	for i, descriptor := range n.Outputs {
		field := fmt.Sprintf("outputs[%d]", i)

		edge, ok := domain.ParseEdge(descriptor)
		if !ok {
			errs = append(errs, NewValidationError(n.ID, field,
				fmt.Sprintf("malformed edge descriptor: %q", descriptor), ErrMalformedEdge))
			continue
		}
		if edge.Source != n.ID {
			errs = append(errs, NewValidationError(n.ID, field,
				fmt.Sprintf("edge source %q does not match node", edge.Source), ErrEdgeSourceMismatch))
			continue
		}
		if !known[edge.Target] {
			errs = append(errs, NewValidationError(n.ID, field,
				fmt.Sprintf("edge points to unknown node: %s", edge.Target), ErrDanglingEdge))
		}
	}

	return errs
}

// detectCycle ищет цикл алгоритмом Кана по разрешимым рёбрам.
func detectCycle(nodes []domain.Node) error {
	g := BuildGraph(nodes)

	inDegree := make(map[string]int, g.Len())
	for _, id := range g.order {
		for _, succ := range g.Resolve(g.index[id]) {
			inDegree[succ.ID]++
		}
	}

	queue := make([]string, 0)
	for _, id := range g.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++

		for _, succ := range g.Resolve(g.index[id]) {
			inDegree[succ.ID]--
			if inDegree[succ.ID] == 0 {
				queue = append(queue, succ.ID)
			}
		}
	}

	if processed == g.Len() {
		return nil
	}

	// Узлы с ненулевой степенью лежат на цикле или за ним
	var stuck []string
	for _, id := range g.order {
		if inDegree[id] > 0 {
			stuck = append(stuck, id)
		}
	}

	return NewValidationError("", "outputs",
		fmt.Sprintf("cyclic graph detected, involves nodes: %v", stuck), ErrCyclicGraph)
}
