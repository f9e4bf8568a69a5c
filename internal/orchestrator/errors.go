package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrUnknownEntry: ID входа отсутствует в наборе узлов.
	ErrUnknownEntry = errors.New("entry node not found")

	// ErrNoEntry: не удалось определить ни одного узла входа.
	ErrNoEntry = errors.New("no entry nodes")
)
