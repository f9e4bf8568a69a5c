package steps

import (
	"context"

	"github.com/shaiso/flowrunner/internal/domain"
)

// PassthroughStep: шаг без эффекта.
//
// Обслуживает start, log, terminate и end: событие узла
// несёт только сам узел. Логирование для log выполняют наблюдатели.
type PassthroughStep struct {
	nodeType domain.NodeType
}

// NewPassthroughStep создаёт шаг без эффекта для указанного типа.
func NewPassthroughStep(t domain.NodeType) *PassthroughStep {
	return &PassthroughStep{nodeType: t}
}

// Type возвращает тип узла.
func (s *PassthroughStep) Type() domain.NodeType {
	return s.nodeType
}

// Execute ничего не делает.
func (s *PassthroughStep) Execute(context.Context, domain.Node, map[string]string) domain.Result {
	return domain.Result{Outcome: domain.OutcomeNone}
}
