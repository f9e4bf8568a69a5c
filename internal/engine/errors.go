package engine

import "errors"

// Ошибки валидации графа.
var (
	// ErrEmptyGraph: граф не содержит узлов.
	ErrEmptyGraph = errors.New("graph has no nodes")

	// ErrEmptyNodeID: узел без ID.
	ErrEmptyNodeID = errors.New("node has empty ID")

	// ErrDuplicateNodeID: несколько узлов с одним ID.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrUnknownNodeType: тип узла не входит в закрытый набор.
	ErrUnknownNodeType = errors.New("unknown node type")

	// ErrMissingConfig: у узла нет обязательной конфигурации.
	ErrMissingConfig = errors.New("node config is missing")

	// ErrMalformedEdge: дескриптор без разделителя.
	ErrMalformedEdge = errors.New("malformed edge descriptor")

	// ErrEdgeSourceMismatch: source дескриптора не совпадает с ID узла.
	ErrEdgeSourceMismatch = errors.New("edge source does not match node")

	// ErrDanglingEdge: target дескриптора отсутствует в графе.
	ErrDanglingEdge = errors.New("edge points to unknown node")

	// ErrCyclicGraph: в графе есть цикл.
	ErrCyclicGraph = errors.New("cyclic graph detected")
)

// ValidationError: ошибка валидации с контекстом.
type ValidationError struct {
	NodeID  string // ID узла, где найдена проблема
	Field   string // поле узла
	Message string // описание
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.NodeID != "" {
		return "node " + e.NodeID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт ошибку валидации.
func NewValidationError(nodeID, field, message string, err error) *ValidationError {
	return &ValidationError{
		NodeID:  nodeID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// ValidationErrors разворачивает результат Validate в список ошибок.
func ValidationErrors(err error) []*ValidationError {
	if err == nil {
		return nil
	}

	var out []*ValidationError
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, e := range joined.Unwrap() {
			out = append(out, ValidationErrors(e)...)
		}
		return out
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		out = append(out, ve)
	}
	return out
}
