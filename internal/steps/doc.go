// Package steps содержит эффекты узлов графа.
//
// # Обзор
//
// Каждому типу узла соответствует Step. Движок находит Step в Registry
// по domain.NodeType и вызывает Execute. Результат: domain.Result:
//
//   - start, log, terminate, end: PassthroughStep, Outcome == none
//   - http_request: HTTPRequestStep, Outcome == success или fail
//
// Ошибки никогда не поднимаются выше шага: HTTPRequestStep превращает
// их в fail. Тип ошибки можно проверить через errors.Is:
//
//	var (
//	    ErrInvalidConfig  // нет config или url
//	    ErrHTTPRequest    // ошибка сети, отмена ctx
//	    ErrResponseParse  // тело не JSON
//	)
//
// # Registry
//
//	registry := steps.DefaultRegistry() // все типы domain.NodeTypes()
//	step, err := registry.Get(domain.NodeTypeHTTPRequest)
//
// Registry потокобезопасен, шаги можно подменять (например, в тестах).
//
// # Файлы пакета
//
//   - step.go: интерфейс Step, ошибки
//   - registry.go: Registry
//   - passthrough.go: PassthroughStep
//   - http.go: HTTPRequestStep
package steps
