// Package engine содержит движок выполнения графа.
//
// Включает:
//   - graph.go: индекс узлов, разрешение рёбер, поиск входов
//   - events.go: события и реестр наблюдателей
//   - engine.go: обход в глубину и диспетчеризация шагов
//   - validate.go: необязательная проверка графа перед запуском
//
// Типичное использование:
//
//	e := engine.New(nodes)
//	e.Subscribe(engine.EventStart, func(ev engine.Event) { ... })
//	e.Subscribe("fetch", func(ev engine.Event) { ... })
//	x := e.Run(ctx, entry, nil)
//	x.Wait()
//
// terminate не останавливает обход, fail у http_request не отменяет
// наследников. Оба поведения меняются опциями WithStopOnTerminate
// и WithSkipOnFailure.
package engine
