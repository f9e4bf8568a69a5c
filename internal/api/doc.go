// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go: Handler с DI (хранилища, runner, redis, logger)
//   - routes.go: регистрация маршрутов
//   - middleware.go: request_id в логгере запроса, logging, recovery
//   - response.go: унифицированные JSON-ответы и обработка ошибок
//   - dto.go: Data Transfer Objects (request/response)
//   - run_handler.go: ad-hoc запуски и /validate
//   - flow_handler.go: обработчики для /flows
//   - schedule_handler.go: обработчики для /schedules
//   - stream.go: websocket-трансляция событий
//
// API предоставляет REST endpoints для запуска графов, каталога flows
// и расписаний, а также потоковую выдачу событий движка.
package api
