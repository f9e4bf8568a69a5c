package engine

import "github.com/shaiso/flowrunner/internal/domain"

// Graph: индекс узлов по ID.
//
// Строится один раз при создании Engine и дальше не меняется.
// При дубликатах ID побеждает последний узел в списке.
type Graph struct {
	index map[string]domain.Node

	// order: ID в порядке первого появления, без дубликатов.
	order []string
}

// BuildGraph строит индекс из плоского списка узлов. Никогда не падает.
func BuildGraph(nodes []domain.Node) *Graph {
	g := &Graph{
		index: make(map[string]domain.Node, len(nodes)),
		order: make([]string, 0, len(nodes)),
	}

	for _, n := range nodes {
		if _, exists := g.index[n.ID]; !exists {
			g.order = append(g.order, n.ID)
		}
		g.index[n.ID] = n
	}

	return g
}

// Resolve возвращает прямых наследников узла в порядке Outputs.
//
// Дескрипторы, чей source не совпадает с node.ID, пропускаются.
// Цели, которых нет в индексе, тоже пропускаются. Ошибок нет.
func (g *Graph) Resolve(node domain.Node) []domain.Node {
	successors := make([]domain.Node, 0, len(node.Outputs))

	for _, descriptor := range node.Outputs {
		edge, ok := domain.ParseEdge(descriptor)
		if !ok || edge.Source != node.ID {
			continue
		}

		target, exists := g.index[edge.Target]
		if !exists {
			continue
		}

		successors = append(successors, target)
	}

	return successors
}

// Node возвращает узел по ID.
func (g *Graph) Node(id string) (domain.Node, bool) {
	n, ok := g.index[id]
	return n, ok
}

// Len возвращает количество уникальных узлов.
func (g *Graph) Len() int {
	return len(g.index)
}

// IDs возвращает ID узлов в порядке объявления.
func (g *Graph) IDs() []string {
	ids := make([]string, len(g.order))
	copy(ids, g.order)
	return ids
}

// Roots находит узлы входа: узлы, на которые не указывает
// ни одно разрешимое ребро. Порядок: порядок объявления.
//
// Движок сам входы не вычисляет; это помощник для вызывающей стороны.
func Roots(nodes []domain.Node) []domain.Node {
	g := BuildGraph(nodes)

	targeted := make(map[string]bool, g.Len())
	for _, id := range g.order {
		for _, succ := range g.Resolve(g.index[id]) {
			targeted[succ.ID] = true
		}
	}

	roots := make([]domain.Node, 0)
	for _, id := range g.order {
		if !targeted[id] {
			roots = append(roots, g.index[id])
		}
	}

	return roots
}
