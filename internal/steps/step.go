package steps

import (
	"context"
	"errors"

	"github.com/shaiso/flowrunner/internal/domain"
)

// Ошибки шагов.
var (
	// ErrStepNotFound: тип узла не найден в реестре.
	ErrStepNotFound = errors.New("step type not found")

	// ErrInvalidConfig: конфигурация узла не подходит шагу.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrHTTPRequest: запрос не выполнен (сеть, DNS, отмена контекста).
	ErrHTTPRequest = errors.New("http request failed")

	// ErrResponseParse: тело ответа не удалось прочитать или разобрать как JSON.
	ErrResponseParse = errors.New("response parse failed")
)

// Step: эффект узла определённого типа.
//
// Execute никогда не возвращает ошибку напрямую: всё, что может пойти
// не так, упаковывается в domain.Result с Outcome == fail.
type Step interface {
	// Type возвращает тип узла, который обслуживает шаг.
	Type() domain.NodeType

	// Execute выполняет эффект узла.
	// previousRuns передаётся как есть и шагами не используется.
	Execute(ctx context.Context, node domain.Node, previousRuns map[string]string) domain.Result
}
